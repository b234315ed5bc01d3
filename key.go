package commons

import "reflect"

// Key is a typed, opaque handle minted by a Container's requestKey. It
// carries the runtime type witness for T, its assigned slot index, and
// provenance (which family and level it is valid against). A Key is
// immutable after construction and has indefinite lifetime; it may be held
// and reused across many get/set calls on any Container it is valid for.
type Key[T any] struct {
	witness     reflect.Type
	index       uint32
	familyID    uint64
	level       int
	containerID uint64
}

// Index returns the dense slot index this Key was assigned. Exposed mainly
// for diagnostics; callers should not need to use it directly.
func (k Key[T]) Index() uint32 {
	return k.index
}

// valid reports whether k may be used against a Container with the given
// identity. A Key is valid either against the exact Container that minted
// it, or against any Container in the same family whose level is >= the
// Key's level of origin — i.e. keys flow down a derivation chain, never up.
func (k Key[T]) valid(containerID, familyID uint64, level int) bool {
	if k.containerID == containerID {
		return true
	}
	return k.familyID == familyID && k.level <= level
}

func newKey[T any](index uint32, familyID uint64, level int, containerID uint64) Key[T] {
	return Key[T]{
		witness:     reflect.TypeFor[T](),
		index:       index,
		familyID:    familyID,
		level:       level,
		containerID: containerID,
	}
}

// assignable reports whether v's runtime type may be stored through k,
// honoring widening: a Key typed as a common supertype (an interface type,
// in Go) accepts any value assignable to it, not only values of exactly
// type T.
func (k Key[T]) assignable(v any) bool {
	if v == nil {
		return false
	}
	return reflect.TypeOf(v).AssignableTo(k.witness)
}
