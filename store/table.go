package store

import (
	"encoding/json"
	"math"
	"slices"
)

// Record is one indexed row of a table.
type Record struct {
	Index  string         `msgpack:"i" json:"index"`
	Values map[string]any `msgpack:"v" json:"values"`
}

// Value returns the raw value for column.
func (r Record) Value(column string) (any, bool) {
	v, ok := r.Values[column]
	return v, ok
}

// Int returns column as an int64, accepting any numeric representation that
// holds an integral value.
func (r Record) Int(column string) (int64, bool) {
	v, ok := r.Values[column]
	if !ok {
		return 0, false
	}
	return ToInt(v)
}

// Float returns column as a float64.
func (r Record) Float(column string) (float64, bool) {
	v, ok := r.Values[column]
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

// Clone returns a copy with a detached Values map.
func (r Record) Clone() Record {
	out := Record{Index: r.Index, Values: make(map[string]any, len(r.Values))}
	for k, v := range r.Values {
		out.Values[k] = v
	}
	return out
}

// Table is an ordered set of indexed rows sharing a column list.
type Table struct {
	Columns []string
	Rows    []Record
}

// NewTable builds an empty table with the given columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Add appends a row, registering any column not seen before.
func (t *Table) Add(index string, values map[string]any) *Table {
	rec := Record{Index: index, Values: make(map[string]any, len(values))}
	for k, v := range values {
		rec.Values[k] = v
		if !slices.Contains(t.Columns, k) {
			t.Columns = append(t.Columns, k)
		}
	}
	t.Rows = append(t.Rows, rec)
	return t
}

// Len returns the number of rows; a nil table has none.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Indexes returns row indexes in table order.
func (t *Table) Indexes() []string {
	out := make([]string, 0, t.Len())
	for _, row := range t.Rows {
		out = append(out, row.Index)
	}
	return out
}

// Lookup finds the first row with the given index.
func (t *Table) Lookup(index string) (Record, bool) {
	for _, row := range t.Rows {
		if row.Index == index {
			return row, true
		}
	}
	return Record{}, false
}

// Concat appends all rows of other, merging column lists.
func (t *Table) Concat(other *Table) *Table {
	if other == nil {
		return t
	}
	for _, col := range other.Columns {
		if !slices.Contains(t.Columns, col) {
			t.Columns = append(t.Columns, col)
		}
	}
	t.Rows = append(t.Rows, other.Rows...)
	return t
}

// ToInt converts any numeric value holding an integer into int64.
func ToInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		if float32(int64(n)) != n {
			return 0, false
		}
		return int64(n), true
	case float64:
		if float64(int64(n)) != n {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// ToFloat converts any numeric value into float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		i, ok := ToInt(v)
		return float64(i), ok
	}
}

// Normalize widens numeric values so that integers are int64 and floats are
// float64. Expression engines compare those kinds without surprises.
func Normalize(v any) any {
	switch n := v.(type) {
	case float32:
		return float64(n)
	case float64, string, bool, nil, int64:
		return v
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		f, _ := n.Float64()
		return f
	default:
		if i, ok := ToInt(v); ok {
			return i
		}
		return v
	}
}
