// Package commons is a grab-bag of small utilities for a game backend.
// Its one subsystem with real engineering is the typed extension
// container below: a thread-safe, per-instance, typed heterogeneous map
// optimized for many concurrent readers and infrequent writers, with a
// derivation/sibling hierarchy that governs which Keys are valid against
// which Container instance while each instance stores its own
// independent values.
//
// Reads never take a lock: get/getOrDefault go straight to a volatile
// slot load. Writes attempt a volatile swap and verify no concurrent
// resize occurred by checking a resize-generation parity counter around
// the swap; if contention is detected, or the backing array must grow,
// the write falls back to a per-Container mutex. A fast-path writer that
// races a grower cannot tell whether its write landed before or after
// the resize snapshot, so it replays the write under the lock and
// reports the value it actually displaced on the fast path as the true
// prior value — that's the only trick in the whole file.
package commons

import (
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
)

const minimumSlotArraySize = 10

// computeRequiredSize mirrors the reference behavior bit-for-bit:
// (i+1) + ((i+1)>>1), i.e. 1.5x the number of slots needed to fit index i.
func computeRequiredSize(index uint32) int {
	n := int(index) + 1
	return n + (n >> 1)
}

func initialArraySize(index uint32) int {
	if s := computeRequiredSize(index); s > minimumSlotArraySize {
		return s
	}
	return minimumSlotArraySize
}

var containerIDCounter atomic.Uint64

func nextContainerID() uint64 {
	return containerIDCounter.Add(1)
}

// family is the transitive closure of one root Container and all of its
// derivations and siblings-of-derivations: the unit across which Keys are
// valid and the indexAllocator and keys-requested counter are shared.
// Containers hold a pointer to their family rather than to each other, so
// the topology is a tagged record passed by ownership-sharing reference,
// not a parent-pointer graph.
type family struct {
	id            uint64
	allocator     indexAllocator
	keysRequested atomic.Uint32
}

// Container is the public entity: it owns a slotArray, references its
// family's shared indexAllocator, enforces key validity, and exposes
// Get/GetOrDefault/Set/SetIfAbsent through the package-level generic
// functions below, with TrimToSize as a method (Go has no generic methods with a fresh type
// parameter, so the Container itself stays non-generic and the typed
// surface lives on Key[T]).
type Container struct {
	id    uint64
	fam   *family
	level int

	mu        sync.Mutex
	resizeGen atomic.Uint32
	array     atomic.Pointer[slotArray]

	logger *slog.Logger
}

// NewContainer creates a new family root Container at level 0.
func NewContainer() *Container {
	id := nextContainerID()
	return &Container{
		id:    id,
		fam:   &family{id: id},
		level: 0,
	}
}

// SetLogger attaches a logger used only for slow-path (mutex-held)
// diagnostics such as array growth; it is never consulted on the read
// path. A nil logger (the default) disables this entirely.
func (c *Container) SetLogger(logger *slog.Logger) {
	c.logger = logger
}

// ID returns this Container's process-wide unique id.
func (c *Container) ID() uint64 { return c.id }

// FamilyID returns the id of this Container's family root.
func (c *Container) FamilyID() uint64 { return c.fam.id }

// Level returns this Container's depth in its family's derivation chain.
func (c *Container) Level() int { return c.level }

func (c *Container) logGrow(newSize int) {
	if c.logger == nil {
		return
	}
	c.logger.Debug("commons: growing slot array",
		slog.Uint64("container", c.id), slog.Int("level", c.level), slog.Int("new_size", newSize))
}

// Derive creates a new Container at level+1, sharing family id, the
// indexAllocator, and the keys-requested counter with c. It is rejected
// once c is already at the deepest level (7). If copyValues is set, the
// child's slot array is seeded with a one-shot shallow copy of c's
// current contents; no later ordering is established with c afterward.
func (c *Container) Derive(copyValues bool) (*Container, error) {
	if c.level >= maxLevel {
		return nil, derivationDepthErr(c.level)
	}

	child := &Container{
		id:     nextContainerID(),
		fam:    c.fam,
		level:  c.level + 1,
		logger: c.logger,
	}

	if copyValues {
		if arr := c.array.Load(); arr != nil {
			seed := newSlotArray(arr.len())
			arr.copyInto(seed)
			child.array.Store(seed)
		}
	}

	return child, nil
}

// Sibling creates a new Container at the same level as c. If c is a
// family root, the sibling starts a fresh family with its own allocator
// and keys-requested counter; otherwise it shares c's family. copyValues
// behaves as for Derive.
func (c *Container) Sibling(copyValues bool) *Container {
	var sib *Container
	if c.level == 0 {
		id := nextContainerID()
		sib = &Container{id: id, fam: &family{id: id}, level: 0, logger: c.logger}
	} else {
		sib = &Container{id: nextContainerID(), fam: c.fam, level: c.level, logger: c.logger}
	}

	if copyValues {
		if arr := c.array.Load(); arr != nil {
			seed := newSlotArray(arr.len())
			arr.copyInto(seed)
			sib.array.Store(seed)
		}
	}

	return sib
}

// TrimToSize re-allocates c's slot array to exactly the current
// high-water mark for its level, releasing any over-allocation. Callers
// must not be concurrently requesting new keys against this family;
// doing so is safe but may waste a later resize rather than corrupt
// state.
func (c *Container) TrimToSize() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resizeGen.Add(1)

	size := int(c.fam.allocator.read(c.level))
	trimmed := newSlotArray(size)
	if old := c.array.Load(); old != nil {
		old.copyInto(trimmed)
	}
	c.array.Store(trimmed)

	c.resizeGen.Add(1)
}

// RequestKey atomically bumps the family's keys-requested counter and
// mints a Key stamped with this Container's provenance. The 65,536th
// request in a family is rejected: the cap is enforced before the
// counter is advanced, so the counter itself never exceeds 65,535.
func RequestKey[T any](c *Container) (Key[T], error) {
	for {
		n := c.fam.keysRequested.Load()
		if n >= maxKeysPerFamily-1 {
			var zero Key[T]
			return zero, keyBudgetErr(c.fam.id)
		}
		if c.fam.keysRequested.CompareAndSwap(n, n+1) {
			break
		}
	}

	idx := c.fam.allocator.next(c.level)
	return newKey[T](uint32(idx), c.fam.id, c.level, c.id), nil
}

func validateKey[T any](c *Container, k Key[T]) error {
	if !k.valid(c.id, c.fam.id, c.level) {
		return invalidKeyErr(c.id, c.fam.id, c.level)
	}
	return nil
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice, reflect.UnsafePointer:
		return rv.IsNil()
	default:
		return false
	}
}

// Get returns the value stored for k in c, or (zero, false, nil) if k is
// valid but nothing has been set yet. It never blocks and never takes
// c's mutex.
func Get[T any](c *Container, k Key[T]) (value T, ok bool, err error) {
	if err = validateKey(c, k); err != nil {
		return
	}

	arr := c.array.Load()
	if arr == nil || int(k.index) >= arr.len() {
		return
	}

	v, present := arr.load(k.index)
	if !present {
		return
	}

	value = v.(T)
	ok = true
	return
}

// GetOrDefault behaves like Get, but calls gen and returns its result
// instead of the zero value when nothing has been set. gen runs on the
// calling goroutine and its result is never memoized.
func GetOrDefault[T any](c *Container, k Key[T], gen func() T) (T, error) {
	v, ok, err := Get(c, k)
	if err != nil {
		var zero T
		return zero, err
	}
	if ok {
		return v, nil
	}
	return gen(), nil
}

// Set atomically stores value for k in c and returns the value that was
// there before (if any). value must be non-nil and assignable to k's
// type witness.
func Set[T any](c *Container, k Key[T], value T) (old T, hadOld bool, err error) {
	if err = validateKey(c, k); err != nil {
		return
	}

	boxed := any(value)
	if isNilValue(boxed) {
		err = nullValueErr()
		return
	}
	if !k.assignable(boxed) {
		err = typeMismatchErr(k.witness, reflect.TypeOf(boxed))
		return
	}

	rawOld, rawHadOld := c.set(k.index, boxed)
	if rawHadOld {
		old = rawOld.(T)
		hadOld = true
	}
	return
}

// set implements the fast/slow-path write protocol described in
// spec.md section 4.5. The fast path does a volatile swap and checks
// the resize generation didn't change around it; any ambiguity (array
// absent, index out of range, a resize already in flight, or one
// starting mid-swap) falls through to the mutex-guarded slow path.
func (c *Container) set(index uint32, value any) (old any, hadOld bool) {
	arr := c.array.Load()
	if arr != nil && int(index) < arr.len() {
		genBefore := c.resizeGen.Load()
		if genBefore%2 == 0 {
			fastOld, fastHadOld := arr.swap(index, value)
			genAfter := c.resizeGen.Load()
			if genAfter == genBefore {
				return fastOld, fastHadOld
			}
			// a resize raced our swap; we can't tell if it landed in the
			// array that's still current. replay it under the lock and
			// report what we actually displaced as the true prior value.
			return c.setRepair(index, value, fastOld, fastHadOld)
		}
	}
	return c.setSlow(index, value)
}

func (c *Container) setRepair(index uint32, value any, fastOld any, fastHadOld bool) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if arr := c.array.Load(); arr != nil && int(index) < arr.len() {
		arr.store(index, value)
	}
	return fastOld, fastHadOld
}

func (c *Container) setSlow(index uint32, value any) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	arr := c.array.Load()
	if arr == nil {
		fresh := newSlotArray(initialArraySize(index))
		fresh.store(index, value)
		c.array.Store(fresh)
		return nil, false
	}

	if int(index) < arr.len() {
		old, hadOld := arr.swap(index, value)
		return old, hadOld
	}

	c.resizeGen.Add(1) // odd: resize in progress
	c.logGrow(computeRequiredSize(index))

	grown := newSlotArray(computeRequiredSize(index))
	arr.copyInto(grown)
	grown.store(index, value)
	c.array.Store(grown)

	c.resizeGen.Add(1) // even: resize complete
	return nil, false
}

// SetIfAbsent stores value for k only if nothing has been set yet,
// reporting whether the store happened.
func SetIfAbsent[T any](c *Container, k Key[T], value T) (bool, error) {
	if err := validateKey(c, k); err != nil {
		return false, err
	}

	boxed := any(value)
	if isNilValue(boxed) {
		return false, nullValueErr()
	}
	if !k.assignable(boxed) {
		return false, typeMismatchErr(k.witness, reflect.TypeOf(boxed))
	}

	return c.setIfAbsent(k.index, boxed), nil
}

// setIfAbsent uses the same fast/slow-path resize-generation protocol
// as set (container.go's set method): the array-pointer-identity check
// this replaced couldn't detect a grower that had already snapshotted
// arr via copyInto but not yet published the grown array, which let a
// successful casAbsent get silently overwritten once the stale copy
// landed.
func (c *Container) setIfAbsent(index uint32, value any) bool {
	arr := c.array.Load()
	if arr != nil && int(index) < arr.len() {
		genBefore := c.resizeGen.Load()
		if genBefore%2 == 0 {
			if !arr.casAbsent(index, value) {
				return false
			}
			genAfter := c.resizeGen.Load()
			if genAfter == genBefore {
				return true
			}
			// a resize raced our CAS; replay it under the lock so the
			// value is visible in whichever array is now current.
			return c.setIfAbsentRepair(index, value)
		}
	}
	return c.setIfAbsentSlow(index, value)
}

func (c *Container) setIfAbsentRepair(index uint32, value any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur := c.array.Load(); cur != nil && int(index) < cur.len() {
		cur.casAbsent(index, value)
	}
	return true
}

func (c *Container) setIfAbsentSlow(index uint32, value any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	arr := c.array.Load()
	if arr == nil {
		fresh := newSlotArray(initialArraySize(index))
		fresh.store(index, value)
		c.array.Store(fresh)
		return true
	}

	if int(index) < arr.len() {
		return arr.casAbsent(index, value)
	}

	c.resizeGen.Add(1)
	c.logGrow(computeRequiredSize(index))

	grown := newSlotArray(computeRequiredSize(index))
	arr.copyInto(grown)
	grown.store(index, value) // freshly grown slot is always absent beforehand
	c.array.Store(grown)

	c.resizeGen.Add(1)
	return true
}
