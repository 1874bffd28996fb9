package store

import (
	"context"
	"errors"
	"iter"
	"strings"
)

// ErrNotFound is returned when a key or table does not exist.
var ErrNotFound = errors.New("store: not found")

// Key is a hierarchical backend key made of segments. Segments must not contain
// the backend separator.
type Key []string

// String joins the segments with '/' for display.
func (k Key) String() string {
	return strings.Join(k, "/")
}

// Entry is a raw key/value pair held by a Backend.
type Entry struct {
	Key   Key
	Value []byte
}

// Backend is the byte-level key/value engine underneath a TableStore.
type Backend interface {
	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, key Key) ([]byte, error)
	Set(ctx context.Context, key Key, value []byte) error
	// Delete is a no-op for absent keys.
	Delete(ctx context.Context, key Key) error
	// List yields every entry under prefix in lexicographic key order.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]
	BatchSet(ctx context.Context, entries []Entry) error
	BatchDelete(ctx context.Context, keys []Key) error
	Close() error
}

// DefaultSeparator joins key segments inside a backend. Table paths contain '/'
// and row identifiers may contain ':' so neither can be used.
const DefaultSeparator byte = 0x1f

type codec struct {
	sep byte
}

func (c codec) separator() byte {
	if c.sep == 0 {
		return DefaultSeparator
	}
	return c.sep
}

func (c codec) encode(k Key) []byte {
	n := 0
	for i, seg := range k {
		if i > 0 {
			n++
		}
		n += len(seg)
	}
	buf := make([]byte, 0, n)
	for i, seg := range k {
		if i > 0 {
			buf = append(buf, c.separator())
		}
		buf = append(buf, seg...)
	}
	return buf
}

func (c codec) decode(b []byte) Key {
	parts := strings.Split(string(b), string([]byte{c.separator()}))
	return Key(parts)
}

// prefix returns the encoded prefix including a trailing separator so that
// "a/b" never matches "a/bc". An empty prefix matches everything.
func (c codec) prefix(k Key) []byte {
	p := c.encode(k)
	if len(p) == 0 {
		return nil
	}
	return append(p, c.separator())
}
