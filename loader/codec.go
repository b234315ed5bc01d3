package loader

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Codec decodes raw bytes into an Element tree and advertises which file
// extensions it claims.
type Codec interface {
	Decode(data []byte) (Element, error)
	Name() string
	Extensions() []string
}

// YAMLCodec decodes YAML documents.
type YAMLCodec struct{}

func (YAMLCodec) Decode(data []byte) (Element, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return Element{}, fmt.Errorf("yaml decode: %w", err)
	}
	return fromAny(v), nil
}

func (YAMLCodec) Name() string { return "yaml" }

func (YAMLCodec) Extensions() []string { return []string{".yml", ".yaml"} }

// JSONCCodec decodes JSON-with-comments (and trailing commas) by
// stripping it down to strict JSON first, then delegating to
// encoding/json.
type JSONCCodec struct{}

func (JSONCCodec) Decode(data []byte) (Element, error) {
	stripped := jsonc.ToJSON(data)
	var v any
	if err := json.Unmarshal(stripped, &v); err != nil {
		return Element{}, fmt.Errorf("jsonc decode: %w", err)
	}
	return fromAny(v), nil
}

func (JSONCCodec) Name() string { return "jsonc" }

func (JSONCCodec) Extensions() []string { return []string{".json", ".jsonc", ".json5"} }

// CBORCodec decodes CBOR, the format used for prebaked binary data packs
// where YAML/JSONC's textual overhead isn't worth paying.
type CBORCodec struct{}

func (CBORCodec) Decode(data []byte) (Element, error) {
	var v any
	if err := cbor.Unmarshal(data, &v); err != nil {
		return Element{}, fmt.Errorf("cbor decode: %w", err)
	}
	return fromAny(v), nil
}

func (CBORCodec) Name() string { return "cbor" }

func (CBORCodec) Extensions() []string { return []string{".cbor"} }

// ZstdCodec decompresses data before delegating to Inner, for
// zstd-compressed variants of any other codec's files (".yaml.zst",
// ".cbor.zst", and so on). The encoder/decoder pair is built once and
// reused across calls; both are safe for concurrent use.
type ZstdCodec struct {
	Inner Codec
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("loader: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("loader: zstd decoder initialization failed: " + err.Error())
	}
}

func (c ZstdCodec) Decode(data []byte) (Element, error) {
	raw, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return Element{}, fmt.Errorf("zstd decompress: %w", err)
	}
	return c.Inner.Decode(raw)
}

func (c ZstdCodec) Name() string { return "zstd+" + c.Inner.Name() }

func (c ZstdCodec) Extensions() []string {
	inner := c.Inner.Extensions()
	out := make([]string, len(inner))
	for i, ext := range inner {
		out[i] = ext + ".zst"
	}
	return out
}

// EncodeZstd compresses data for a ZstdCodec-wrapped source. Exposed
// alongside Decode since the loader package is also how data packs get
// written, not just read.
func EncodeZstd(data []byte) []byte {
	return zstdEncoder.EncodeAll(data, nil)
}
