// Package loader provides a codec-agnostic configuration data source
// abstraction: a sequence of decoded config values read from files, a
// directory tree, an embedded key-value store, or encrypted secrets,
// stitched together from any number of named sources into one merged
// value.
package loader

import "fmt"

// ElementKind identifies the shape a decoded config value takes.
type ElementKind int

const (
	KindNull ElementKind = iota
	KindScalar
	KindList
	KindMap
)

// Element is a codec-agnostic config value: a tagged union over nil, a
// scalar (string, bool, number), a list of Elements, or a string-keyed
// map of Elements. Every Codec produces Elements so that callers never
// need to know which concrete format a value was decoded from.
type Element struct {
	kind   ElementKind
	scalar any
	list   []Element
	object map[string]Element
}

// Null returns the null Element.
func Null() Element {
	return Element{kind: KindNull}
}

// Scalar wraps a single scalar value (string, bool, int64, float64, or
// any other type a codec produced) as an Element.
func Scalar(v any) Element {
	return Element{kind: KindScalar, scalar: v}
}

// List wraps a slice of Elements.
func List(items []Element) Element {
	return Element{kind: KindList, list: items}
}

// Map wraps a string-keyed map of Elements.
func Map(m map[string]Element) Element {
	return Element{kind: KindMap, object: m}
}

func (e Element) Kind() ElementKind { return e.kind }

func (e Element) IsNull() bool { return e.kind == KindNull }

// AsScalar returns the wrapped scalar and true, or (nil, false) if e is
// not a scalar.
func (e Element) AsScalar() (any, bool) {
	if e.kind != KindScalar {
		return nil, false
	}
	return e.scalar, true
}

// AsList returns the wrapped slice and true, or (nil, false) if e is not
// a list.
func (e Element) AsList() ([]Element, bool) {
	if e.kind != KindList {
		return nil, false
	}
	return e.list, true
}

// AsMap returns the wrapped map and true, or (nil, false) if e is not a
// map.
func (e Element) AsMap() (map[string]Element, bool) {
	if e.kind != KindMap {
		return nil, false
	}
	return e.object, true
}

// Get descends into a map Element by key. It returns the zero Element
// (kind KindNull) and false if e is not a map or the key is absent.
func (e Element) Get(key string) (Element, bool) {
	m, ok := e.AsMap()
	if !ok {
		return Element{}, false
	}
	v, ok := m[key]
	return v, ok
}

// String renders e for inclusion in error messages and logs. It is not a
// serialization format.
func (e Element) String() string {
	switch e.kind {
	case KindNull:
		return "null"
	case KindScalar:
		return fmt.Sprintf("%v", e.scalar)
	case KindList:
		return fmt.Sprintf("list(%d)", len(e.list))
	case KindMap:
		return fmt.Sprintf("map(%d)", len(e.object))
	default:
		return "unknown"
	}
}

// fromAny converts the generic any produced by a decoder (encoding/json,
// gopkg.in/yaml.v3, fxamacker/cbor) into an Element tree. yaml.v3 and
// encoding/json both decode objects as map[string]any; cbor's default
// decode mode can produce map[any]any for non-string-keyed maps, so both
// are handled here. yaml.v3 decodes integers as int; those are widened
// to int64 so integer scalars have one type regardless of codec.
func fromAny(v any) Element {
	switch t := v.(type) {
	case nil:
		return Null()
	case int:
		return Scalar(int64(t))
	case map[string]any:
		m := make(map[string]Element, len(t))
		for k, child := range t {
			m[k] = fromAny(child)
		}
		return Map(m)
	case map[any]any:
		m := make(map[string]Element, len(t))
		for k, child := range t {
			m[fmt.Sprintf("%v", k)] = fromAny(child)
		}
		return Map(m)
	case []any:
		list := make([]Element, len(t))
		for i, child := range t {
			list[i] = fromAny(child)
		}
		return List(list)
	default:
		return Scalar(v)
	}
}
