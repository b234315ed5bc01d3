package futureutil

import (
	"context"
	"testing"
)

func TestTrueAndFalseAreDistinctSingletons(t *testing.T) {
	if True() == False() {
		t.Fatal("True() and False() must not be the same Future")
	}
	v, _ := True().Get(context.Background())
	if !v {
		t.Fatal("True() should resolve to true")
	}
}

func TestNullIsCachedPerType(t *testing.T) {
	a := Null[int]()
	b := Null[int]()
	if a != b {
		t.Fatal("Null[int]() should return the same cached Future across calls")
	}

	v, err := a.Get(context.Background())
	if err != nil || v != 0 {
		t.Fatalf("Get() = (%v, %v), want (0, nil)", v, err)
	}

	s := Null[string]()
	sv, _ := s.Get(context.Background())
	if sv != "" {
		t.Fatalf("Null[string]() resolved to %q, want empty string", sv)
	}
}

func TestEmptyOptionalIsAbsent(t *testing.T) {
	f := EmptyOptional[string]()
	opt, err := f.Get(context.Background())
	if err != nil {
		t.Fatalf("Get(): %v", err)
	}
	if _, present := opt.Get(); present {
		t.Fatal("EmptyOptional should resolve to an absent Optional")
	}
}

func TestEmptySliceIsEmpty(t *testing.T) {
	f := EmptySlice[int]()
	v, err := f.Get(context.Background())
	if err != nil {
		t.Fatalf("Get(): %v", err)
	}
	if len(v) != 0 {
		t.Fatalf("EmptySlice resolved to %v, want an empty slice", v)
	}
}
