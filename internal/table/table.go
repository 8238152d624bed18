// Package table holds the materialized tabular snapshot read from the task
// sheet and resolves logical field names to physical columns.
package table

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SuffixSep separates a logical name from the uniqueness token the upstream
// source appends to repeated headers ("Status___2").
const SuffixSep = "___"

// ErrMissingColumn is returned when a logical field resolves to no physical column.
var ErrMissingColumn = errors.New("missing column")

// Row maps physical header names to cell values.
type Row map[string]string

// Table is an immutable, ordered set of rows sharing one header list.
type Table struct {
	columns []string
	index   map[string]struct{}
	rows    []Row
}

// New builds a table from ordered column names and rows. Neither slice is
// retained; rows are copied so the table cannot change underneath readers.
func New(columns []string, rows []Row) *Table {
	t := &Table{
		columns: append([]string(nil), columns...),
		index:   make(map[string]struct{}, len(columns)),
		rows:    make([]Row, len(rows)),
	}
	for _, c := range t.columns {
		t.index[c] = struct{}{}
	}
	for i, r := range rows {
		cp := make(Row, len(r))
		for k, v := range r {
			cp[k] = v
		}
		t.rows[i] = cp
	}
	return t
}

// FromRecords builds a table from raw records where the first record is the
// header row. Repeated headers get a "___<n>" suffix, n being the 1-based
// occurrence or the next free number when that name is already a header. Short rows are padded with empty cells, extra cells dropped.
// Fewer than two records yields an empty table.
func FromRecords(records [][]string) *Table {
	if len(records) < 2 {
		return New(nil, nil)
	}

	columns := dedupeHeaders(records[0])
	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(Row, len(columns))
		for i, c := range columns {
			if i < len(rec) {
				row[c] = rec[i]
			} else {
				row[c] = ""
			}
		}
		rows = append(rows, row)
	}
	return New(columns, rows)
}

func dedupeHeaders(headers []string) []string {
	reserved := make(map[string]bool, len(headers))
	for _, h := range headers {
		reserved[strings.TrimSpace(h)] = true
	}
	seen := make(map[string]int, len(headers))
	used := make(map[string]bool, len(headers))
	out := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		seen[h]++
		name := h
		if seen[h] > 1 {
			// Skip suffixes that name a real header or an earlier duplicate.
			for n := seen[h]; ; n++ {
				name = h + SuffixSep + strconv.Itoa(n)
				if !reserved[name] && !used[name] {
					break
				}
			}
		}
		used[name] = true
		out[i] = name
	}
	return out
}

// Columns returns a copy of the physical column names in table order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Records renders the table back into header-first records.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.rows)+1)
	out = append(out, t.Columns())
	for _, r := range t.rows {
		rec := make([]string, len(t.columns))
		for i, c := range t.columns {
			rec[i] = r[c]
		}
		out = append(out, rec)
	}
	return out
}

// Resolve maps a logical name to a physical column: the name itself when
// present verbatim, else the first column starting with name+"___", else the
// name unchanged. The last case is not an error here; lookups through Value
// or Column fail with ErrMissingColumn instead.
func (t *Table) Resolve(name string) string {
	if _, ok := t.index[name]; ok {
		return name
	}
	prefix := name + SuffixSep
	for _, c := range t.columns {
		if strings.HasPrefix(c, prefix) {
			return c
		}
	}
	return name
}

// Exists reports whether name resolves to a physical column.
func (t *Table) Exists(name string) bool {
	_, ok := t.index[t.Resolve(name)]
	return ok
}

// First returns the first of names that exists, in argument order.
func (t *Table) First(names ...string) (string, bool) {
	for _, n := range names {
		if t.Exists(n) {
			return n, true
		}
	}
	return "", false
}

// Value returns the cell for the logical field name in row i.
func (t *Table) Value(i int, name string) (string, error) {
	col := t.Resolve(name)
	if _, ok := t.index[col]; !ok {
		return "", fmt.Errorf("table: %q: %w", name, ErrMissingColumn)
	}
	if i < 0 || i >= len(t.rows) {
		return "", fmt.Errorf("table: row %d out of range [0,%d)", i, len(t.rows))
	}
	return t.rows[i][col], nil
}

// Column returns every value of the logical field name in row order.
func (t *Table) Column(name string) ([]string, error) {
	col := t.Resolve(name)
	if _, ok := t.index[col]; !ok {
		return nil, fmt.Errorf("table: %q: %w", name, ErrMissingColumn)
	}
	out := make([]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[col]
	}
	return out, nil
}
