package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"path"
	"slices"
	"sort"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrInvalidKey is returned for empty or root-only table keys.
var ErrInvalidKey = errors.New("store: invalid key")

// Filter reports whether a row should be kept by a selection or removal.
type Filter func(Record) (bool, error)

// Backend layout:
//
//	k/{path}          → msgpack tableMeta (one per table, the catalog)
//	r/{path}/{seq}    → msgpack Record, seq is a 16 digit hex counter
//
// The hex counter keeps lexicographic key order equal to insertion order.
const (
	nsCatalog = "k"
	nsRows    = "r"
)

type tableMeta struct {
	Columns     []string `msgpack:"columns"`
	DataColumns []string `msgpack:"data_columns,omitempty"`
	Next        uint64   `msgpack:"next"`
	Rows        int      `msgpack:"rows"`
}

// TableStore is a hierarchical, path-keyed table store over a Backend.
type TableStore struct {
	backend Backend
}

// New wraps backend in a TableStore.
func New(backend Backend) *TableStore {
	return &TableStore{backend: backend}
}

// NewMemoryStore returns a TableStore backed by a fresh Memory backend.
func NewMemoryStore() *TableStore {
	return New(NewMemory())
}

// Close releases the backend.
func (s *TableStore) Close() error {
	return s.backend.Close()
}

// CleanKey normalises key into "/a/b/c" form.
func CleanKey(key string) (string, error) {
	k := strings.TrimSpace(key)
	if k == "" {
		return "", ErrInvalidKey
	}
	k = path.Clean("/" + k)
	if k == "/" {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return k, nil
}

// Roots returns the distinct first path segments of keys, sorted.
func Roots(keys []string) []string {
	seen := map[string]struct{}{}
	for _, key := range keys {
		trimmed := strings.TrimPrefix(key, "/")
		root, _, _ := strings.Cut(trimmed, "/")
		if root == "" {
			continue
		}
		seen[root] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for root := range seen {
		out = append(out, root)
	}
	sort.Strings(out)
	return out
}

func notFound(key string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, key)
}

func catalogKey(p string) Key { return Key{nsCatalog, p} }

func rowPrefix(p string) Key { return Key{nsRows, p} }

func rowKey(p string, seq uint64) Key {
	return Key{nsRows, p, fmt.Sprintf("%016x", seq)}
}

func (s *TableStore) meta(ctx context.Context, p string) (tableMeta, bool, error) {
	raw, err := s.backend.Get(ctx, catalogKey(p))
	if errors.Is(err, ErrNotFound) {
		return tableMeta{}, false, nil
	}
	if err != nil {
		return tableMeta{}, false, err
	}
	var meta tableMeta
	if err := msgpack.Unmarshal(raw, &meta); err != nil {
		return tableMeta{}, false, fmt.Errorf("store: decode meta %s: %w", p, err)
	}
	return meta, true, nil
}

// Exists reports whether a table is stored under key.
func (s *TableStore) Exists(ctx context.Context, key string) (bool, error) {
	p, err := CleanKey(key)
	if err != nil {
		return false, err
	}
	_, ok, err := s.meta(ctx, p)
	return ok, err
}

// Keys lists every stored table path in sorted order.
func (s *TableStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	for entry, err := range s.backend.List(ctx, Key{nsCatalog}) {
		if err != nil {
			return nil, err
		}
		if len(entry.Key) == 2 {
			keys = append(keys, entry.Key[1])
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Put stores table under key, replacing any previous table. Every entry of
// dataColumns must name a column of the table.
func (s *TableStore) Put(ctx context.Context, key string, table *Table, dataColumns []string) error {
	p, err := CleanKey(key)
	if err != nil {
		return err
	}
	if table == nil {
		table = NewTable()
	}
	for _, col := range dataColumns {
		if !slices.Contains(table.Columns, col) {
			return fmt.Errorf("store: put %s: data column %q not in table columns %v", p, col, table.Columns)
		}
	}
	if err := s.dropRows(ctx, p); err != nil {
		return err
	}
	meta := tableMeta{
		Columns:     append([]string(nil), table.Columns...),
		DataColumns: append([]string(nil), dataColumns...),
	}
	return s.writeRows(ctx, p, meta, table.Rows)
}

// Append adds the rows of table to key, creating the table when absent.
func (s *TableStore) Append(ctx context.Context, key string, table *Table) error {
	p, err := CleanKey(key)
	if err != nil {
		return err
	}
	if table == nil {
		return nil
	}
	meta, _, err := s.meta(ctx, p)
	if err != nil {
		return err
	}
	for _, col := range table.Columns {
		if !slices.Contains(meta.Columns, col) {
			meta.Columns = append(meta.Columns, col)
		}
	}
	return s.writeRows(ctx, p, meta, table.Rows)
}

func (s *TableStore) writeRows(ctx context.Context, p string, meta tableMeta, rows []Record) error {
	entries := make([]Entry, 0, len(rows)+1)
	for _, row := range rows {
		raw, err := msgpack.Marshal(row)
		if err != nil {
			return fmt.Errorf("store: encode row %q of %s: %w", row.Index, p, err)
		}
		entries = append(entries, Entry{Key: rowKey(p, meta.Next), Value: raw})
		meta.Next++
		meta.Rows++
	}
	rawMeta, err := msgpack.Marshal(meta)
	if err != nil {
		return err
	}
	entries = append(entries, Entry{Key: catalogKey(p), Value: rawMeta})
	return s.backend.BatchSet(ctx, entries)
}

func (s *TableStore) dropRows(ctx context.Context, p string) error {
	var keys []Key
	for entry, err := range s.backend.List(ctx, rowPrefix(p)) {
		if err != nil {
			return err
		}
		keys = append(keys, entry.Key)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.backend.BatchDelete(ctx, keys)
}

// Remove deletes the table at key when filter is nil, otherwise only the rows
// the filter keeps. It returns the number of rows removed.
func (s *TableStore) Remove(ctx context.Context, key string, filter Filter) (int, error) {
	p, err := CleanKey(key)
	if err != nil {
		return 0, err
	}
	meta, ok, err := s.meta(ctx, p)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, notFound(p)
	}
	if filter == nil {
		if err := s.dropRows(ctx, p); err != nil {
			return 0, err
		}
		return meta.Rows, s.backend.Delete(ctx, catalogKey(p))
	}

	var doomed []Key
	for entry, err := range s.backend.List(ctx, rowPrefix(p)) {
		if err != nil {
			return 0, err
		}
		row, err := decodeRecord(entry.Value)
		if err != nil {
			return 0, fmt.Errorf("store: decode row of %s: %w", p, err)
		}
		match, err := filter(row)
		if err != nil {
			return 0, err
		}
		if match {
			doomed = append(doomed, entry.Key)
		}
	}
	if len(doomed) == 0 {
		return 0, nil
	}
	if err := s.backend.BatchDelete(ctx, doomed); err != nil {
		return 0, err
	}
	meta.Rows -= len(doomed)
	rawMeta, err := msgpack.Marshal(meta)
	if err != nil {
		return 0, err
	}
	return len(doomed), s.backend.Set(ctx, catalogKey(p), rawMeta)
}

// Get reads the whole table at key.
func (s *TableStore) Get(ctx context.Context, key string) (*Table, error) {
	var out *Table
	for chunk, err := range s.Select(ctx, key, nil, 0) {
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = chunk
			continue
		}
		out.Concat(chunk)
	}
	return out, nil
}

// Select streams the rows of key accepted by filter in chunks of at most
// chunkSize rows. A chunkSize of zero or less yields one chunk. A table with
// no matching rows yields a single empty chunk so callers still see columns.
func (s *TableStore) Select(ctx context.Context, key string, filter Filter, chunkSize int) iter.Seq2[*Table, error] {
	return func(yield func(*Table, error) bool) {
		p, err := CleanKey(key)
		if err != nil {
			yield(nil, err)
			return
		}
		meta, ok, err := s.meta(ctx, p)
		if err != nil {
			yield(nil, err)
			return
		}
		if !ok {
			yield(nil, notFound(p))
			return
		}

		chunk := NewTable(meta.Columns...)
		emitted := false
		for entry, err := range s.backend.List(ctx, rowPrefix(p)) {
			if err != nil {
				yield(nil, err)
				return
			}
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			row, err := decodeRecord(entry.Value)
			if err != nil {
				yield(nil, fmt.Errorf("store: decode row of %s: %w", p, err))
				return
			}
			if filter != nil {
				keep, err := filter(row)
				if err != nil {
					yield(nil, err)
					return
				}
				if !keep {
					continue
				}
			}
			chunk.Rows = append(chunk.Rows, row)
			if chunkSize > 0 && len(chunk.Rows) >= chunkSize {
				emitted = true
				if !yield(chunk, nil) {
					return
				}
				chunk = NewTable(meta.Columns...)
			}
		}
		if len(chunk.Rows) > 0 || !emitted {
			yield(chunk, nil)
		}
	}
}

// SelectAsMultiple inner-joins the tables at keys on row index, in the row
// order of the first key, and streams the joined rows accepted by filter.
// Columns of later tables do not overwrite columns already present.
func (s *TableStore) SelectAsMultiple(ctx context.Context, keys []string, filter Filter, chunkSize int) iter.Seq2[*Table, error] {
	return func(yield func(*Table, error) bool) {
		if len(keys) == 0 {
			yield(nil, fmt.Errorf("%w: no keys to select", ErrInvalidKey))
			return
		}
		others := make([]map[string]Record, 0, len(keys)-1)
		var columns []string
		for i, key := range keys {
			table, err := s.Get(ctx, key)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, col := range table.Columns {
				if !slices.Contains(columns, col) {
					columns = append(columns, col)
				}
			}
			if i == 0 {
				continue
			}
			byIndex := make(map[string]Record, table.Len())
			for _, row := range table.Rows {
				if _, dup := byIndex[row.Index]; !dup {
					byIndex[row.Index] = row
				}
			}
			others = append(others, byIndex)
		}

		joinFilter := func(row Record) (bool, error) {
			for _, other := range others {
				match, ok := other[row.Index]
				if !ok {
					return false, nil
				}
				for col, v := range match.Values {
					if _, exists := row.Values[col]; !exists {
						row.Values[col] = v
					}
				}
			}
			if filter == nil {
				return true, nil
			}
			return filter(row)
		}

		for chunk, err := range s.Select(ctx, keys[0], joinFilter, chunkSize) {
			if err != nil {
				yield(nil, err)
				return
			}
			chunk.Columns = append([]string(nil), columns...)
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

func decodeRecord(raw []byte) (Record, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(raw))
	dec.UseLooseInterfaceDecoding(true)
	var row Record
	if err := dec.Decode(&row); err != nil {
		return Record{}, err
	}
	if row.Values == nil {
		row.Values = map[string]any{}
	}
	return row, nil
}
