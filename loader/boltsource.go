package loader

import (
	"go.etcd.io/bbolt"
)

// BoltSource reads one Element per key out of a bbolt bucket, the
// embedded-KV-store analogue of Directory: instead of walking loose
// files, it walks a bucket's keys in bbolt's natural sort order.
//
// A BoltSource does not own db: Close rolls back the read transaction the
// source opened but leaves db open.
type BoltSource struct {
	db     *bbolt.DB
	bucket string
	codec  Codec

	tx     *bbolt.Tx
	cursor *bbolt.Cursor
	opened bool

	key     []byte
	value   []byte
	have    bool
	lastKey string
	haveKey bool
	closed  bool
}

// NewBoltSource reads every key in the named bucket, decoding its value
// with codec.
func NewBoltSource(db *bbolt.DB, bucket string, codec Codec) *BoltSource {
	return &BoltSource{db: db, bucket: bucket, codec: codec}
}

func (s *BoltSource) ensureOpen() error {
	if s.opened {
		return nil
	}
	s.opened = true

	tx, err := s.db.Begin(false)
	if err != nil {
		return NewError().WithCause(err).WithMessage("failed to begin bolt transaction").WithStage("open").Build()
	}
	s.tx = tx

	b := tx.Bucket([]byte(s.bucket))
	if b == nil {
		return nil
	}

	s.cursor = b.Cursor()
	s.key, s.value = s.cursor.First()
	s.have = s.key != nil
	return nil
}

func (s *BoltSource) HasNext() (bool, error) {
	if s.closed {
		return false, errClosed
	}
	if err := s.ensureOpen(); err != nil {
		return false, err
	}
	return s.have, nil
}

func (s *BoltSource) Next() (Element, error) {
	if s.closed {
		return Element{}, errClosed
	}
	if err := s.ensureOpen(); err != nil {
		return Element{}, err
	}
	if !s.have {
		return Element{}, errNoMoreElements
	}

	key, value := s.key, s.value
	s.lastKey = string(key)
	s.haveKey = true

	el, err := s.codec.Decode(value)
	if err != nil {
		return Element{}, NewError().
			WithCause(err).
			WithMessage("failed to decode bolt value").
			WithLocation(BucketLocation(s.bucket, s.lastKey)).
			WithStage("decode").
			Build()
	}

	s.key, s.value = s.cursor.Next()
	s.have = s.key != nil
	return el, nil
}

func (s *BoltSource) LastLocation() Location {
	if !s.haveKey {
		return UnknownLocation()
	}
	return BucketLocation(s.bucket, s.lastKey)
}

func (s *BoltSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.tx != nil {
		return s.tx.Rollback()
	}
	return nil
}
