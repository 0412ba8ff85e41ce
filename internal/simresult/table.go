// Package simresult defines the standard container a simulation run
// produces: a tabular time series plus derived KPIs, metadata, and the
// parameters that produced it.
package simresult

import (
	"fmt"
	"math"
)

// Table is a tabular result: rows are time steps or samples, columns are
// named state variables. Only numeric columns participate in KPI
// reduction; non-numeric columns (e.g. a label column) are retained for
// inspection but ignored by reducers.
type Table struct {
	Columns []string
	NumRows int

	numeric map[string][]float64
	raw     map[string][]string
}

// NewTable builds an empty table with the given column order. Numeric data
// is added with SetColumn; non-numeric with SetRawColumn.
func NewTable(columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{
		Columns: cols,
		numeric: make(map[string][]float64),
		raw:     make(map[string][]string),
	}
}

// SetColumn installs a numeric column. All columns in a Table must share
// the same row count.
func (t *Table) SetColumn(name string, values []float64) error {
	if t.NumRows != 0 && len(values) != t.NumRows {
		return fmt.Errorf("simresult: column %q has %d rows, table has %d", name, len(values), t.NumRows)
	}
	if t.NumRows == 0 {
		t.NumRows = len(values)
	}
	if !t.hasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
	t.numeric[name] = values
	return nil
}

// SetRawColumn installs a non-numeric (string) column, e.g. a label or
// category column parsed from CSV/JSON that did not type as numeric.
func (t *Table) SetRawColumn(name string, values []string) error {
	if t.NumRows != 0 && len(values) != t.NumRows {
		return fmt.Errorf("simresult: column %q has %d rows, table has %d", name, len(values), t.NumRows)
	}
	if t.NumRows == 0 {
		t.NumRows = len(values)
	}
	if !t.hasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
	t.raw[name] = values
	return nil
}

func (t *Table) hasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Column returns the numeric data for name, or (nil, false) if name is not
// a numeric column.
func (t *Table) Column(name string) ([]float64, bool) {
	v, ok := t.numeric[name]
	return v, ok
}

// RawColumn returns the string data for name, or (nil, false) if absent.
func (t *Table) RawColumn(name string) ([]string, bool) {
	v, ok := t.raw[name]
	return v, ok
}

// RowFilter decides whether row i of t should be included in a reduction.
type RowFilter func(t *Table, row int) bool

// FilteredColumn returns the values of a numeric column restricted to rows
// for which filter returns true. A nil filter includes every row.
func (t *Table) FilteredColumn(name string, filter RowFilter) ([]float64, error) {
	col, ok := t.numeric[name]
	if !ok {
		return nil, fmt.Errorf("simresult: unknown numeric column %q", name)
	}
	if filter == nil {
		return col, nil
	}
	out := make([]float64, 0, len(col))
	for i, v := range col {
		if filter(t, i) {
			out = append(out, v)
		}
	}
	return out, nil
}

// IsAllNaN reports whether every value in values is NaN (or values is
// empty).
func IsAllNaN(values []float64) bool {
	for _, v := range values {
		if !math.IsNaN(v) {
			return false
		}
	}
	return true
}
