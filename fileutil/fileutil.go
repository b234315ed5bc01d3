// Package fileutil collects small filesystem helpers used by the loader
// package and by callers managing on-disk data directories directly,
// the Go analogue of the original FileUtils.
package fileutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// FindFirst searches the top level of root (not recursively) for an
// entry that match accepts, returning its path. It returns an error if
// root cannot be read or no entry matches.
func FindFirst(root string, match func(path string, d fs.DirEntry) bool) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("fileutil: reading %s: %w", root, err)
	}

	for _, entry := range entries {
		path := filepath.Join(root, entry.Name())
		if match(path, entry) {
			return path, nil
		}
	}
	return "", fmt.Errorf("fileutil: no file in %s matched", root)
}

// ForEachMatching calls fn with the path of every top-level entry of
// root that match accepts. It is a no-op if root does not exist.
func ForEachMatching(root string, match func(path string, d fs.DirEntry) bool, fn func(path string) error) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("fileutil: reading %s: %w", root, err)
	}

	for _, entry := range entries {
		path := filepath.Join(root, entry.Name())
		if !match(path, entry) {
			continue
		}
		if err := fn(path); err != nil {
			return err
		}
	}
	return nil
}

// CreateIfNotExists creates an empty file at path, doing nothing if it
// already exists.
func CreateIfNotExists(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		return fmt.Errorf("fileutil: creating %s: %w", path, err)
	}
	return f.Close()
}

// TryDelete removes path, swallowing any error (including fs.ErrNotExist
// and a non-empty directory).
func TryDelete(path string) {
	_ = os.Remove(path)
}

// DeleteRecursively removes every file and directory under dir,
// including dir itself, doing nothing if dir does not exist.
func DeleteRecursively(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("fileutil: stat %s: %w", dir, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("fileutil: removing %s: %w", dir, err)
	}
	return nil
}

// EnsureDirectories creates every path in paths, including parents, one
// at a time; it keeps going after an individual failure and returns the
// first error encountered once all have been attempted.
func EnsureDirectories(paths ...string) error {
	var firstErr error
	for _, path := range paths {
		if err := os.MkdirAll(path, 0o755); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("fileutil: creating %s: %w", path, err)
		}
	}
	return firstErr
}

// HashFile returns an xxhash digest of path's contents, used for
// change-detection (shared with loader.Cache).
func HashFile(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("fileutil: opening %s: %w", path, err)
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, fmt.Errorf("fileutil: hashing %s: %w", path, err)
	}
	return h.Sum64(), nil
}
