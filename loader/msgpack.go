package loader

import "github.com/vmihailenco/msgpack/v5"

// EncodeMsgpack implements msgpack.CustomEncoder so Element can be
// embedded directly in msgpack-tagged structs (runtime records that
// carry a blob of arbitrary config alongside their typed fields).
func (e Element) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(e.toAny())
}

// DecodeMsgpack implements msgpack.CustomDecoder, the inverse of
// EncodeMsgpack.
func (e *Element) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := dec.DecodeInterface()
	if err != nil {
		return err
	}
	*e = fromAny(v)
	return nil
}

// toAny converts e back into the plain any shape fromAny accepts,
// so Element round-trips through any encoder capable of handling
// nil/bool/number/string/slice/map values.
func (e Element) toAny() any {
	switch e.kind {
	case KindNull:
		return nil
	case KindScalar:
		return e.scalar
	case KindList:
		out := make([]any, len(e.list))
		for i, child := range e.list {
			out[i] = child.toAny()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(e.object))
		for k, child := range e.object {
			out[k] = child.toAny()
		}
		return out
	default:
		return nil
	}
}
