package model

import "strings"

// Table names used across the pipeline
const (
	TableGages          = "gages"
	TablePolicies       = "policies"
	TableClaims         = "claims"
	TableQ100           = "q100"
	TablePeaks          = "peaks"
	TableKeptGages      = "kept_gages"
	TableGoodPolicies   = "good_policies"
	TableGoodClaims     = "good_claims"
	TableAnalyzedClaims = "analyzed_claims"
	TableGageEvents     = "gage_events"
)

// SourceTable returns the input table an output table is derived from, or
// name itself for inputs and unknown tables
func SourceTable(name string) string {
	switch name {
	case TableKeptGages:
		return TableGages
	case TableGoodPolicies:
		return TablePolicies
	case TableGoodClaims, TableAnalyzedClaims:
		return TableClaims
	}
	return name
}

// keySeparator joins composite key parts
const keySeparator = "|"

// Row is a single record, positionally aligned with Table.Columns
type Row []string

// Table is a named set of delimited-text records keyed by one or more columns.
// Columns the pipeline does not know about are carried through untouched.
type Table struct {
	Name    string   `json:"name"`
	Key     []string `json:"key"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`

	index map[string]int
}

// NewTable creates an empty table with the given key and columns
func NewTable(name string, key []string, columns []string) *Table {
	t := &Table{
		Name:    name,
		Key:     append([]string(nil), key...),
		Columns: append([]string(nil), columns...),
		Rows:    []Row{},
	}
	t.reindex()
	return t
}

// NewTableWithRows creates a table holding rows, each fitted to the columns
func NewTableWithRows(name string, key []string, columns []string, rows []Row) *Table {
	t := NewTable(name, key, columns)
	t.Rows = make([]Row, 0, len(rows))
	for _, r := range rows {
		t.Append(r)
	}
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, dup := t.index[c]; !dup {
			t.index[c] = i
		}
	}
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Col returns the position of a column, or -1 when absent
func (t *Table) Col(name string) int {
	if t.index == nil {
		t.reindex()
	}
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Has reports whether the table carries the column
func (t *Table) Has(name string) bool {
	return t.Col(name) >= 0
}

// Value returns the trimmed value of a column in the row ("" when absent)
func (t *Table) Value(r Row, col string) string {
	i := t.Col(col)
	if i < 0 || i >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[i])
}

// KeyOf returns the row key; composite keys are joined with "|"
func (t *Table) KeyOf(r Row) string {
	if len(t.Key) == 1 {
		return t.Value(r, t.Key[0])
	}
	parts := make([]string, len(t.Key))
	for i, k := range t.Key {
		parts[i] = t.Value(r, k)
	}
	return strings.Join(parts, keySeparator)
}

// Append adds a row, padding or truncating it to the column count
func (t *Table) Append(r Row) {
	t.Rows = append(t.Rows, t.fit(r))
}

func (t *Table) fit(r Row) Row {
	if len(r) == len(t.Columns) {
		return r
	}
	out := make(Row, len(t.Columns))
	copy(out, r)
	return out
}

// Index maps row keys to rows. Keys are unique for loaded tables.
func (t *Table) Index() map[string]Row {
	idx := make(map[string]Row, len(t.Rows))
	for _, r := range t.Rows {
		idx[t.KeyOf(r)] = r
	}
	return idx
}

// Select returns a new table named name with the rows keep accepts, in order.
// Rows are shared with the receiver and must not be mutated.
func (t *Table) Select(name string, keep func(r Row) bool) *Table {
	out := NewTable(name, t.Key, t.Columns)
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// Extend returns an empty table named name with cols appended to the
// receiver's columns. Columns already present keep their position.
func (t *Table) Extend(name string, cols ...string) *Table {
	columns := append([]string(nil), t.Columns...)
	for _, c := range cols {
		if !t.Has(c) {
			columns = append(columns, c)
		}
	}
	return NewTable(name, t.Key, columns)
}

// Derive copies r into the receiver's layout (using src for column lookup)
// and sets the given values. The returned row is owned by the caller.
func (t *Table) Derive(src *Table, r Row, values map[string]string) Row {
	out := make(Row, len(t.Columns))
	for i, c := range t.Columns {
		if v, ok := values[c]; ok {
			out[i] = v
			continue
		}
		if j := src.Col(c); j >= 0 && j < len(r) {
			out[i] = r[j]
		}
	}
	return out
}

// Keys returns the row keys in table order
func (t *Table) Keys() []string {
	keys := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		keys[i] = t.KeyOf(r)
	}
	return keys
}
