package loader

import (
	"bytes"
	"io"
	"os"

	"filippo.io/age"
)

// AgeSource wraps a single encrypted file: its bytes are decrypted with
// an X25519 identity before being handed to codec, for secrets-bearing
// config (API keys, DB credentials) that sits alongside plain data files
// on disk. Decryption failure surfaces as an Error with stage "decrypt".
type AgeSource struct {
	path     string
	identity age.Identity
	codec    Codec
	iterated bool
	closed   bool
}

// NewAgeSource decrypts path with identity (typically an
// *age.X25519Identity parsed from a machine's private key) before
// decoding it with codec.
func NewAgeSource(path string, identity age.Identity, codec Codec) *AgeSource {
	return &AgeSource{path: path, identity: identity, codec: codec}
}

func (s *AgeSource) HasNext() (bool, error) {
	if s.closed {
		return false, errClosed
	}
	return !s.iterated, nil
}

func (s *AgeSource) Next() (Element, error) {
	if s.closed {
		return Element{}, errClosed
	}
	if s.iterated {
		return Element{}, errNoMoreElements
	}
	s.iterated = true

	ciphertext, err := os.ReadFile(s.path)
	if err != nil {
		return Element{}, NewError().
			WithCause(err).
			WithMessage("failed to read encrypted data file").
			WithLocation(PathLocation(s.path)).
			WithStage("read").
			Build()
	}

	reader, err := age.Decrypt(bytes.NewReader(ciphertext), s.identity)
	if err != nil {
		return Element{}, NewError().
			WithCause(err).
			WithMessage("failed to decrypt data file").
			WithLocation(PathLocation(s.path)).
			WithStage("decrypt").
			Build()
	}

	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return Element{}, NewError().
			WithCause(err).
			WithMessage("failed to read decrypted data file").
			WithLocation(PathLocation(s.path)).
			WithStage("decrypt").
			Build()
	}

	el, err := s.codec.Decode(plaintext)
	if err != nil {
		return Element{}, NewError().
			WithCause(err).
			WithMessage("failed to decode decrypted data file").
			WithLocation(PathLocation(s.path)).
			WithStage("decode").
			Build()
	}
	return el, nil
}

func (s *AgeSource) LastLocation() Location {
	if !s.iterated {
		return UnknownLocation()
	}
	return PathLocation(s.path)
}

func (s *AgeSource) Close() error {
	s.closed = true
	return nil
}
