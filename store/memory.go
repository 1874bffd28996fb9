package store

import (
	"bytes"
	"context"
	"iter"
	"sort"
	"sync"
)

// Memory is an in-memory Backend. It is safe for concurrent use and is what
// tests and short-lived analyses run against.
type Memory struct {
	mu    sync.RWMutex
	data  map[string][]byte
	codec codec
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key Key) ([]byte, error) {
	k := string(m.codec.encode(key))
	m.mu.RLock()
	v, ok := m.data[k]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(v), nil
}

func (m *Memory) Set(_ context.Context, key Key, value []byte) error {
	k := string(m.codec.encode(key))
	m.mu.Lock()
	m.data[k] = bytes.Clone(value)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key Key) error {
	k := string(m.codec.encode(key))
	m.mu.Lock()
	delete(m.data, k)
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(_ context.Context, prefix Key) iter.Seq2[Entry, error] {
	p := m.codec.prefix(prefix)

	// Snapshot under the read lock so callers may write while iterating.
	m.mu.RLock()
	type pair struct {
		key string
		val []byte
	}
	var matches []pair
	for k, v := range m.data {
		if len(p) == 0 || bytes.HasPrefix([]byte(k), p) {
			matches = append(matches, pair{k, bytes.Clone(v)})
		}
	}
	m.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].key < matches[j].key
	})

	return func(yield func(Entry, error) bool) {
		for _, match := range matches {
			if !yield(Entry{Key: m.codec.decode([]byte(match.key)), Value: match.val}, nil) {
				return
			}
		}
	}
}

func (m *Memory) BatchSet(_ context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.data[string(m.codec.encode(e.Key))] = bytes.Clone(e.Value)
	}
	return nil
}

func (m *Memory) BatchDelete(_ context.Context, keys []Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, string(m.codec.encode(key)))
	}
	return nil
}

func (m *Memory) Close() error {
	return nil
}
