package commons

import (
	"errors"
	"reflect"
	"strconv"
	"sync"
	"testing"
)

// Executor fans work out across goroutines, or runs it inline when fake is
// set, mirroring the helper in the teacher package's map tests.
type Executor struct {
	fake bool
	wg   sync.WaitGroup
}

func (e *Executor) Go(f func()) {
	if e.fake {
		f()
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		f()
	}()
}

func (e *Executor) Wait() {
	if e.fake {
		return
	}
	e.wg.Wait()
}

// scenario 1: single writer.
func TestScenarioSingleWriter(t *testing.T) {
	c := NewContainer()
	k, err := RequestKey[string](c)
	if err != nil {
		t.Fatal(err)
	}

	old, hadOld, err := Set(c, k, "vegetals")
	if err != nil {
		t.Fatal(err)
	}
	if hadOld {
		t.Fatalf("expected no prior value, got %q", old)
	}

	v, ok, err := Get(c, k)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || v != "vegetals" {
		t.Fatalf("Get = (%q, %v), want (vegetals, true)", v, ok)
	}
}

// scenario 2: two keys, trim.
func TestScenarioTwoKeysTrim(t *testing.T) {
	c := NewContainer()
	a, _ := RequestKey[string](c)
	b, _ := RequestKey[string](c)

	if _, _, err := Set(c, a, "steank"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Set(c, b, "vegetals"); err != nil {
		t.Fatal(err)
	}
	c.TrimToSize()

	if v, ok, _ := Get(c, a); !ok || v != "steank" {
		t.Fatalf("Get(a) = (%q, %v), want (steank, true)", v, ok)
	}
	if v, ok, _ := Get(c, b); !ok || v != "vegetals" {
		t.Fatalf("Get(b) = (%q, %v), want (vegetals, true)", v, ok)
	}
}

// scenario 3: bulk fill.
func TestScenarioBulkFillAndTrim(t *testing.T) {
	c := NewContainer()
	const n = 20_000

	keys := make([]Key[string], n)
	for i := 0; i < n; i++ {
		k, err := RequestKey[string](c)
		if err != nil {
			t.Fatal(err)
		}
		keys[i] = k
		if _, _, err := Set(c, k, strconv.Itoa(i)); err != nil {
			t.Fatal(err)
		}
	}

	c.TrimToSize()

	for i, k := range keys {
		v, ok, err := Get(c, k)
		if err != nil {
			t.Fatal(err)
		}
		if !ok || v != strconv.Itoa(i) {
			t.Fatalf("Get(keys[%d]) = (%q, %v), want (%d, true)", i, v, ok, i)
		}
	}
}

// scenario 4: foreign rejection.
func TestScenarioForeignRejection(t *testing.T) {
	x := NewContainer()
	y := NewContainer()

	kx, _ := RequestKey[any](x)
	ky, _ := RequestKey[any](y)

	if _, _, err := Get(y, kx); !errors.Is(err, &Error{Kind: InvalidKey}) {
		t.Fatalf("Get(y, kx) err = %v, want InvalidKey", err)
	}
	if _, _, err := Get(x, ky); !errors.Is(err, &Error{Kind: InvalidKey}) {
		t.Fatalf("Get(x, ky) err = %v, want InvalidKey", err)
	}
}

// scenario 5: parent/child.
func TestScenarioParentChild(t *testing.T) {
	p := NewContainer()
	c, err := p.Derive(false)
	if err != nil {
		t.Fatal(err)
	}

	kp, _ := RequestKey[string](p)
	kc, _ := RequestKey[string](c)

	if _, _, err := Set(p, kp, "parent"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Set(c, kc, "child"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Set(c, kp, "child-override"); err != nil {
		t.Fatal(err)
	}

	if _, _, err := Set(p, kc, "nope"); !errors.Is(err, &Error{Kind: InvalidKey}) {
		t.Fatalf("Set(p, kc) err = %v, want InvalidKey", err)
	}

	if v, ok, _ := Get(p, kp); !ok || v != "parent" {
		t.Fatalf("Get(p, kp) = (%q, %v), want (parent, true)", v, ok)
	}
	if v, ok, _ := Get(c, kc); !ok || v != "child" {
		t.Fatalf("Get(c, kc) = (%q, %v), want (child, true)", v, ok)
	}
	if v, ok, _ := Get(c, kp); !ok || v != "child-override" {
		t.Fatalf("Get(c, kp) = (%q, %v), want (child-override, true)", v, ok)
	}
}

// scenario 6: multi-derive consistency.
func TestScenarioMultiDeriveConsistency(t *testing.T) {
	r := NewContainer()
	krs, _ := RequestKey[string](r)

	d1, err := r.Derive(false)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := r.Derive(false)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, err := RequestKey[string](d2); err != nil {
			t.Fatal(err)
		}
	}

	kdi, err := RequestKey[int](d1)
	if err != nil {
		t.Fatal(err)
	}

	m, err := d1.Derive(false)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := Set(m, krs, "x"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Set(m, kdi, 0); err != nil {
		t.Fatal(err)
	}

	m.TrimToSize()

	if v, ok, _ := Get(m, krs); !ok || v != "x" {
		t.Fatalf("Get(m, krs) = (%q, %v), want (x, true)", v, ok)
	}
	if v, ok, _ := Get(m, kdi); !ok || v != 0 {
		t.Fatalf("Get(m, kdi) = (%v, %v), want (0, true)", v, ok)
	}
}

func TestGetUnsetKeyIsAbsentNotError(t *testing.T) {
	c := NewContainer()
	k, _ := RequestKey[string](c)

	v, ok, err := Get(c, k)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("expected absent, got %q", v)
	}
	if v != "" {
		t.Fatalf("expected zero value, got %q", v)
	}
}

func TestGetOrDefaultInvokesGenOnlyWhenAbsent(t *testing.T) {
	c := NewContainer()
	k, _ := RequestKey[string](c)

	calls := 0
	gen := func() string {
		calls++
		return "fallback"
	}

	v, err := GetOrDefault(c, k, gen)
	if err != nil {
		t.Fatal(err)
	}
	if v != "fallback" || calls != 1 {
		t.Fatalf("v=%q calls=%d, want fallback/1", v, calls)
	}

	Set(c, k, "real")

	v, err = GetOrDefault(c, k, gen)
	if err != nil {
		t.Fatal(err)
	}
	if v != "real" || calls != 1 {
		t.Fatalf("v=%q calls=%d, want real/1 (gen must not run again)", v, calls)
	}
}

func TestSetIsolationBetweenDistinctKeys(t *testing.T) {
	c := NewContainer()
	a, _ := RequestKey[string](c)
	b, _ := RequestKey[string](c)

	Set(c, b, "b-value")
	Set(c, a, "a-value")

	if v, _, _ := Get(c, b); v != "b-value" {
		t.Fatalf("setting a must not affect b, got %q", v)
	}
}

func TestTrimToSizeIsIdempotent(t *testing.T) {
	c := NewContainer()
	k, _ := RequestKey[string](c)
	Set(c, k, "steank")

	c.TrimToSize()
	v1, _, _ := Get(c, k)

	c.TrimToSize()
	v2, _, _ := Get(c, k)

	if v1 != v2 {
		t.Fatalf("trim is not idempotent: %q != %q", v1, v2)
	}
}

func TestSiblingSharesKeysNotValues(t *testing.T) {
	root := NewContainer()
	d1, _ := root.Derive(false)
	sib := d1.Sibling(false)

	k1, _ := RequestKey[string](d1)
	k2, _ := RequestKey[string](sib)

	if _, _, err := Get(sib, k1); err != nil {
		t.Fatalf("sibling should accept a key minted by its sibling: %v", err)
	}
	if _, _, err := Get(d1, k2); err != nil {
		t.Fatalf("sibling should accept a key minted by its sibling: %v", err)
	}

	Set(d1, k1, "on-d1")
	if v, ok, _ := Get(sib, k1); ok {
		t.Fatalf("a value set on d1 must not be visible on its sibling, got %q", v)
	}
}

func TestRootSiblingStartsNewFamily(t *testing.T) {
	root := NewContainer()
	sib := root.Sibling(false)

	if sib.FamilyID() == root.FamilyID() {
		t.Fatal("a sibling of a family root must start its own family")
	}

	k, _ := RequestKey[string](root)
	if _, _, err := Get(sib, k); !errors.Is(err, &Error{Kind: InvalidKey}) {
		t.Fatalf("a root's key must not validate against an unrelated new family, err=%v", err)
	}
}

func TestDeriveRejectedPastLevelSeven(t *testing.T) {
	c := NewContainer()
	var err error
	for i := 0; i < maxLevel; i++ {
		c, err = c.Derive(false)
		if err != nil {
			t.Fatalf("derive to level %d should succeed: %v", i+1, err)
		}
	}

	if c.Level() != maxLevel {
		t.Fatalf("expected to reach level %d, got %d", maxLevel, c.Level())
	}

	if _, err := c.Derive(false); !errors.Is(err, &Error{Kind: DerivationDepthExceeded}) {
		t.Fatalf("derive past level 7 should fail with DerivationDepthExceeded, got %v", err)
	}
}

func TestKeyBudgetExhaustion(t *testing.T) {
	c := NewContainer()
	for i := 0; i < maxKeysPerFamily-1; i++ {
		if _, err := RequestKey[byte](c); err != nil {
			t.Fatalf("request %d should succeed: %v", i, err)
		}
	}

	if _, err := RequestKey[byte](c); !errors.Is(err, &Error{Kind: KeyBudgetExceeded}) {
		t.Fatalf("the 65,536th requestKey should fail with KeyBudgetExceeded, got %v", err)
	}
}

func TestSetRejectsNilValue(t *testing.T) {
	c := NewContainer()
	k, _ := RequestKey[*int](c)

	if _, _, err := Set(c, k, nil); !errors.Is(err, &Error{Kind: NullValue}) {
		t.Fatalf("Set with a nil value should fail with NullValue, got %v", err)
	}
}

// Go's generics already pin Set's value parameter to T at compile time,
// so a real type mismatch can't be produced through the typed API alone
// (unlike the Java original, where type erasure lets a raw-typed Key
// bypass the compiler). The check still guards a Key whose witness has
// been corrupted some other way, so exercise it white-box.
func TestSetRejectsTypeMismatch(t *testing.T) {
	c := NewContainer()
	k, err := RequestKey[any](c)
	if err != nil {
		t.Fatal(err)
	}
	k.witness = reflect.TypeFor[int]()

	if _, _, err := Set(c, k, "not an int"); !errors.Is(err, &Error{Kind: TypeMismatch}) {
		t.Fatalf("Set with a corrupted witness should fail with TypeMismatch, got %v", err)
	}
}

func TestSetIfAbsentOnlySetsOnce(t *testing.T) {
	c := NewContainer()
	k, _ := RequestKey[string](c)

	ok, err := SetIfAbsent(c, k, "first")
	if err != nil || !ok {
		t.Fatalf("first setIfAbsent should succeed, ok=%v err=%v", ok, err)
	}

	ok, err = SetIfAbsent(c, k, "second")
	if err != nil || ok {
		t.Fatalf("second setIfAbsent should fail, ok=%v err=%v", ok, err)
	}

	v, _, _ := Get(c, k)
	if v != "first" {
		t.Fatalf("value should remain %q, got %q", "first", v)
	}
}

func TestConcurrentSetsOnDistinctKeysAreIsolated(t *testing.T) {
	c := NewContainer()
	const n = 200

	keys := make([]Key[int], n)
	for i := range keys {
		keys[i], _ = RequestKey[int](c)
	}

	ex := Executor{}
	for i, k := range keys {
		i, k := i, k
		ex.Go(func() {
			Set(c, k, i)
		})
	}
	ex.Wait()

	for i, k := range keys {
		v, ok, _ := Get(c, k)
		if !ok || v != i {
			t.Fatalf("Get(keys[%d]) = (%d, %v), want (%d, true)", i, v, ok, i)
		}
	}
}

func TestConcurrentSetsOnSameKeyObserveSomeWrittenValue(t *testing.T) {
	c := NewContainer()
	k, _ := RequestKey[int](c)

	const writers = 32
	var wg sync.WaitGroup
	for i := 1; i <= writers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			Set(c, k, i)
		}()
	}
	wg.Wait()

	v, ok, _ := Get(c, k)
	if !ok {
		t.Fatal("expected a value after concurrent writers finished")
	}
	if v < 1 || v > writers {
		t.Fatalf("observed value %d is not among the values ever written", v)
	}
}

func TestConcurrentGrowthDoesNotLoseWrites(t *testing.T) {
	c := NewContainer()
	const n = 5_000

	keys := make([]Key[int], n)
	for i := range keys {
		keys[i], _ = RequestKey[int](c)
	}

	var wg sync.WaitGroup
	for i, k := range keys {
		i, k := i, k
		wg.Add(1)
		go func() {
			defer wg.Done()
			Set(c, k, i*i)
		}()
	}
	wg.Wait()

	for i, k := range keys {
		v, ok, _ := Get(c, k)
		if !ok || v != i*i {
			t.Fatalf("Get(keys[%d]) = (%d, %v), want (%d, true)", i, v, ok, i*i)
		}
	}
}

func TestConcurrentGrowthDoesNotLoseSetIfAbsentWrites(t *testing.T) {
	c := NewContainer()
	const n = 5_000

	keys := make([]Key[int], n)
	for i := range keys {
		keys[i], _ = RequestKey[int](c)
	}

	var wg sync.WaitGroup
	for i, k := range keys {
		i, k := i, k
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := SetIfAbsent(c, k, i*i); !ok {
				t.Errorf("SetIfAbsent(keys[%d]) = false, want true on first write", i)
			}
		}()
	}
	wg.Wait()

	for i, k := range keys {
		v, ok, _ := Get(c, k)
		if !ok || v != i*i {
			t.Fatalf("Get(keys[%d]) = (%d, %v), want (%d, true)", i, v, ok, i*i)
		}
	}
}
