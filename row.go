package dbutils

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Row is one result row: column label to value, in column order. A label that
// appears more than once keeps its first position and its last value.
// Row marshals to a JSON object with keys in column order.
type Row struct {
	*orderedmap.OrderedMap[string, Value]
}

// NewRow returns an empty row.
func NewRow() *Row {
	return &Row{orderedmap.New[string, Value]()}
}

// Columns returns the column labels in order.
func (r *Row) Columns() []string {
	cols := make([]string, 0, r.Len())
	for pair := r.Oldest(); pair != nil; pair = pair.Next() {
		cols = append(cols, pair.Key)
	}
	return cols
}

// Values returns the values in column order.
func (r *Row) Values() []Value {
	values := make([]Value, 0, r.Len())
	for pair := r.Oldest(); pair != nil; pair = pair.Next() {
		values = append(values, pair.Value)
	}
	return values
}

// Value returns the value of column, NULL when the row has no such column.
func (r *Row) Value(column string) Value {
	v, _ := r.Get(column)
	return v
}

// Map returns the row as a plain map of driver values.
func (r *Row) Map() map[string]any {
	m := make(map[string]any, r.Len())
	for pair := r.Oldest(); pair != nil; pair = pair.Next() {
		m[pair.Key] = pair.Value.Any()
	}
	return m
}
