// Package flag provides a reference-counted set of string flags, the Go
// analogue of the original flag.Flaggable/BasicFlaggable: a flag can be
// set by more than one concurrent caller and stays set until all of them
// have unset it.
package flag

import "sync"

// Flaggable is something that tracks a set of named boolean-ish flags.
type Flaggable interface {
	HasFlag(flag string) bool
	SetFlag(flag string)
	UnsetFlag(flag string)
	ClearFlag(flag string)
}

// Flags is a concurrency-safe, reference-counted Flaggable: SetFlag
// increments a counter (creating it at 1), UnsetFlag decrements it and
// removes the flag once the counter reaches zero, and ClearFlag removes
// it unconditionally regardless of the counter.
type Flags struct {
	counts sync.Map // string -> int, guarded by mu for read-modify-write
	mu     sync.Mutex
}

// NewFlags creates an empty Flags set.
func NewFlags() *Flags {
	return &Flags{}
}

func (f *Flags) HasFlag(flag string) bool {
	_, ok := f.counts.Load(flag)
	return ok
}

// SetFlag increments flag's reference count, creating it at 1 if absent.
func (f *Flags) SetFlag(flag string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if v, ok := f.counts.Load(flag); ok {
		count := v.(int)
		f.counts.Store(flag, count+1)
		return
	}
	f.counts.Store(flag, 1)
}

// UnsetFlag decrements flag's reference count, removing it once the
// count reaches zero. Unsetting a flag that isn't set is a no-op.
func (f *Flags) UnsetFlag(flag string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.counts.Load(flag)
	if !ok {
		return
	}
	count := v.(int) - 1
	if count <= 0 {
		f.counts.Delete(flag)
		return
	}
	f.counts.Store(flag, count)
}

// ClearFlag removes flag unconditionally, regardless of its reference
// count.
func (f *Flags) ClearFlag(flag string) {
	// deliberately does not take mu: it can race SetFlag/UnsetFlag's
	// load-then-store and resurrect a just-cleared flag at a stale
	// count. Carried as-is from the original's unserialized remove.
	f.counts.Delete(flag)
}
