package loader

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// errClosed is returned by a Source operation performed after Close.
var errClosed = errors.New("loader: source closed")

// errNoMoreElements is returned by Next once HasNext would report false.
var errNoMoreElements = errors.New("loader: no more elements")

// Source is a sequence of decoded config values. It behaves like an
// iterator that can fail on IO: HasNext/Next both may return an error
// instead of advancing.
type Source interface {
	HasNext() (bool, error)
	Next() (Element, error)
	LastLocation() Location
	io.Closer
}

// SingleFile reads and decodes exactly one file, producing exactly one
// Element.
type SingleFile struct {
	path     string
	codec    Codec
	iterated bool
	closed   bool
}

func NewSingleFile(path string, codec Codec) *SingleFile {
	return &SingleFile{path: path, codec: codec}
}

func (s *SingleFile) load(path string) (Element, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Element{}, NewError().
			WithCause(err).
			WithMessage("failed to load data from file").
			WithLocation(PathLocation(path)).
			WithStage("read").
			Build()
	}

	el, err := s.codec.Decode(data)
	if err != nil {
		return Element{}, NewError().
			WithCause(err).
			WithMessage("failed to decode data file").
			WithLocation(PathLocation(path)).
			WithStage("decode").
			Build()
	}
	return el, nil
}

func (s *SingleFile) HasNext() (bool, error) {
	if s.closed {
		return false, errClosed
	}
	return !s.iterated, nil
}

func (s *SingleFile) Next() (Element, error) {
	if s.closed {
		return Element{}, errClosed
	}
	if s.iterated {
		return Element{}, errNoMoreElements
	}
	s.iterated = true
	return s.load(s.path)
}

// LastLocation returns the path this SingleFile reads from. It returns
// UnknownLocation before the first call to Next.
func (s *SingleFile) LastLocation() Location {
	if !s.iterated {
		return UnknownLocation()
	}
	return PathLocation(s.path)
}

func (s *SingleFile) Close() error {
	s.closed = true
	return nil
}

// OptionalSingleFile behaves like SingleFile, but returns defaultElement
// instead of failing when the file does not exist.
type OptionalSingleFile struct {
	*SingleFile
	defaultElement Element
}

func NewOptionalSingleFile(path string, codec Codec, defaultElement Element) *OptionalSingleFile {
	return &OptionalSingleFile{SingleFile: NewSingleFile(path, codec), defaultElement: defaultElement}
}

func (s *OptionalSingleFile) Next() (Element, error) {
	el, err := s.SingleFile.Next()
	if err != nil {
		var lerr *Error
		if errors.As(err, &lerr) && errors.Is(lerr.Unwrap(), os.ErrNotExist) {
			return s.defaultElement, nil
		}
		return Element{}, err
	}
	return el, nil
}

// Directory walks a directory tree, decoding every regular file that
// passes Match (all files, if Match is nil) up to MaxDepth levels below
// the root (unlimited, if MaxDepth is negative). The walk is performed
// lazily on the first call to HasNext or Next.
type Directory struct {
	root     string
	codec    Codec
	MaxDepth int
	Match    func(path string) bool
	Symlinks bool

	walked bool
	paths  []string
	idx    int
	last   string
	have   bool
	closed bool
}

// NewDirectory creates a Directory walking root with unlimited depth and
// no filter; set MaxDepth/Match/Symlinks on the result before the first
// call to HasNext.
func NewDirectory(root string, codec Codec) *Directory {
	return &Directory{root: root, codec: codec, MaxDepth: -1}
}

// NewDirectoryGlob is a convenience constructor matching file base names
// against a shell glob pattern (as accepted by filepath.Match).
func NewDirectoryGlob(root string, codec Codec, pattern string) *Directory {
	d := NewDirectory(root, codec)
	d.Match = func(path string) bool {
		ok, _ := filepath.Match(pattern, filepath.Base(path))
		return ok
	}
	return d
}

func (d *Directory) ensureWalked() error {
	if d.walked {
		return nil
	}
	d.walked = true

	if _, err := os.Lstat(d.root); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return NewError().WithCause(err).WithMessage("failed to stat data directory").WithLocation(PathLocation(d.root)).Build()
	}

	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == d.root {
			return nil
		}

		if entry.IsDir() {
			if d.MaxDepth >= 0 && d.depthOf(path) >= d.MaxDepth {
				return filepath.SkipDir
			}
			return nil
		}

		if entry.Type()&fs.ModeSymlink != 0 && !d.Symlinks {
			return nil
		}
		if d.Match != nil && !d.Match(path) {
			return nil
		}

		d.paths = append(d.paths, path)
		return nil
	})
	if err != nil {
		return NewError().WithCause(err).WithMessage("failed to initialize data stream").WithLocation(PathLocation(d.root)).Build()
	}
	return nil
}

func (d *Directory) depthOf(path string) int {
	rel, err := filepath.Rel(d.root, path)
	if err != nil {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

func (d *Directory) HasNext() (bool, error) {
	if d.closed {
		return false, errClosed
	}
	if err := d.ensureWalked(); err != nil {
		return false, err
	}
	return d.idx < len(d.paths), nil
}

func (d *Directory) Next() (Element, error) {
	if d.closed {
		return Element{}, errClosed
	}
	if err := d.ensureWalked(); err != nil {
		return Element{}, err
	}
	if d.idx >= len(d.paths) {
		return Element{}, errNoMoreElements
	}

	path := d.paths[d.idx]
	d.idx++
	d.last = path
	d.have = true

	data, err := os.ReadFile(path)
	if err != nil {
		return Element{}, NewError().WithCause(err).WithMessage("failed to access file").WithLocation(PathLocation(path)).WithStage("read").Build()
	}
	el, err := d.codec.Decode(data)
	if err != nil {
		return Element{}, NewError().WithCause(err).WithMessage("failed to decode data file").WithLocation(PathLocation(path)).WithStage("decode").Build()
	}
	return el, nil
}

func (d *Directory) LastLocation() Location {
	if !d.have {
		return UnknownLocation()
	}
	return PathLocation(d.last)
}

func (d *Directory) Close() error {
	d.closed = true
	return nil
}

// Composite flat-maps a sequence of items through fn, concatenating the
// resulting Sources into one. Each inner Source is closed as soon as it
// is exhausted and a new one is opened.
type Composite[T any] struct {
	items []T
	fn    func(T) Source

	idx          int
	current      Source
	lastLocation Location
	closed       bool
}

func NewComposite[T any](items []T, fn func(T) Source) *Composite[T] {
	return &Composite[T]{items: items, fn: fn, lastLocation: UnknownLocation()}
}

func (c *Composite[T]) advance() error {
	for {
		if c.current != nil {
			has, err := c.current.HasNext()
			if err != nil {
				return err
			}
			if has {
				return nil
			}
		}

		if c.idx >= len(c.items) {
			if c.current != nil {
				err := c.current.Close()
				c.current = nil
				return err
			}
			return nil
		}

		item := c.items[c.idx]
		c.idx++
		if c.current != nil {
			if err := c.current.Close(); err != nil {
				return err
			}
		}
		c.current = c.fn(item)
	}
}

func (c *Composite[T]) HasNext() (bool, error) {
	if c.closed {
		return false, errClosed
	}
	if err := c.advance(); err != nil {
		return false, err
	}
	return c.current != nil, nil
}

func (c *Composite[T]) Next() (Element, error) {
	if c.closed {
		return Element{}, errClosed
	}
	if err := c.advance(); err != nil {
		return Element{}, err
	}
	if c.current == nil {
		return Element{}, errNoMoreElements
	}

	el, err := c.current.Next()
	if err != nil {
		return Element{}, err
	}
	c.lastLocation = c.current.LastLocation()
	return el, nil
}

func (c *Composite[T]) LastLocation() Location { return c.lastLocation }

func (c *Composite[T]) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.current != nil {
		return c.current.Close()
	}
	return nil
}

// SourceType distinguishes how a NamedSource contributes to a Merged
// Element: as a list of everything it produces, or as at most one value.
type SourceType int

const (
	SourceList SourceType = iota
	SourceSingle
)

// NamedSource pairs a Source with the key it contributes under in a
// Merged Element.
type NamedSource struct {
	Source Source
	Name   string
	Type   SourceType
}

func NamedList(source Source, name string) NamedSource {
	return NamedSource{Source: source, Name: name, Type: SourceList}
}

func NamedSingle(source Source, name string) NamedSource {
	return NamedSource{Source: source, Name: name, Type: SourceSingle}
}

// Merged stitches any number of NamedSources into a single map Element,
// read out on the one call to Next a Merged source supports.
type Merged struct {
	sources      []NamedSource
	iterated     bool
	closed       bool
	lastLocation Location
}

// NewMerged fails with an OverloadError if two sources share a name.
func NewMerged(sources ...NamedSource) (*Merged, error) {
	seen := make(map[string]bool, len(sources))
	for _, s := range sources {
		if seen[s.Name] {
			return nil, NewOverloadError().
				WithMessage(fmt.Sprintf("source with duplicate name %q", s.Name)).
				Build()
		}
		seen[s.Name] = true
	}

	m := &Merged{sources: sources, lastLocation: UnknownLocation()}
	if len(sources) == 0 {
		m.iterated = true
	}
	return m, nil
}

func (m *Merged) HasNext() (bool, error) {
	if m.closed {
		return false, errClosed
	}
	if m.iterated {
		return false, nil
	}
	for _, named := range m.sources {
		has, err := named.Source.HasNext()
		if err != nil {
			return false, err
		}
		if has {
			return true, nil
		}
	}
	return false, nil
}

func (m *Merged) Next() (Element, error) {
	if m.closed {
		return Element{}, errClosed
	}
	if m.iterated {
		return Element{}, errNoMoreElements
	}

	root := make(map[string]Element, len(m.sources))
	for _, named := range m.sources {
		switch named.Type {
		case SourceList:
			var items []Element
			for {
				has, err := named.Source.HasNext()
				if err != nil {
					return Element{}, err
				}
				if !has {
					break
				}
				el, err := named.Source.Next()
				if err != nil {
					return Element{}, err
				}
				items = append(items, el)
				m.lastLocation = named.Source.LastLocation()
			}
			root[named.Name] = List(items)
		case SourceSingle:
			has, err := named.Source.HasNext()
			if err != nil {
				return Element{}, err
			}
			if has {
				el, err := named.Source.Next()
				if err != nil {
					return Element{}, err
				}
				root[named.Name] = el
				m.lastLocation = named.Source.LastLocation()
			}
		}
	}

	m.iterated = true
	return Map(root), nil
}

func (m *Merged) LastLocation() Location {
	if !m.iterated {
		return UnknownLocation()
	}
	return m.lastLocation
}

func (m *Merged) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true

	var firstErr error
	for _, named := range m.sources {
		if err := named.Source.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
