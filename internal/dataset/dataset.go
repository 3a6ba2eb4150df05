package dataset

import (
	"fmt"
	"strconv"
)

// ColumnType distinguishes continuous (numeric) from categorical columns.
type ColumnType int

const (
	Continuous ColumnType = iota
	Categorical
)

func (t ColumnType) String() string {
	switch t {
	case Continuous:
		return "continuous"
	case Categorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// Value is one cell of a row. For continuous columns Float is set; for
// categorical columns Level is set.
type Value struct {
	Float float64 `json:"float,omitempty"`
	Level string  `json:"level,omitempty"`
}

// Row is one observation, parallel to a Schema's column order.
type Row []Value

// Schema describes the feature columns of a table.
type Schema struct {
	Names []string     `json:"names"`
	Types []ColumnType `json:"types"`
}

// Index returns the position of a named column, or -1 if absent.
func (s Schema) Index(name string) int {
	for i, n := range s.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Len returns the number of columns.
func (s Schema) Len() int { return len(s.Names) }

// Table is a tabular dataset of feature columns only; the response column is
// handled by the caller and never stored here (it is excluded from profiling).
type Table struct {
	Schema Schema
	Rows   []Row
}

// New creates an empty table with the given schema.
func New(schema Schema) (*Table, error) {
	if len(schema.Names) == 0 {
		return nil, fmt.Errorf("schema has no columns")
	}
	if len(schema.Names) != len(schema.Types) {
		return nil, fmt.Errorf("schema names/types length mismatch: %d vs %d",
			len(schema.Names), len(schema.Types))
	}
	seen := make(map[string]bool, len(schema.Names))
	for _, n := range schema.Names {
		if seen[n] {
			return nil, fmt.Errorf("duplicate column name: %s", n)
		}
		seen[n] = true
	}
	return &Table{Schema: schema}, nil
}

// Append adds a row after validating its width.
func (t *Table) Append(r Row) error {
	if len(r) != t.Schema.Len() {
		return fmt.Errorf("row width %d does not match schema width %d",
			len(r), t.Schema.Len())
	}
	t.Rows = append(t.Rows, r)
	return nil
}

// NumRows returns the number of observations.
func (t *Table) NumRows() int { return len(t.Rows) }

// Floats returns the continuous values of one column.
func (t *Table) Floats(col int) []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[col].Float
	}
	return out
}

// Levels returns the categorical levels of one column.
func (t *Table) Levels(col int) []string {
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[col].Level
	}
	return out
}

// ParseValue converts a raw string cell into a Value for the given type.
func ParseValue(raw string, typ ColumnType) (Value, error) {
	if typ == Categorical {
		return Value{Level: raw}, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Value{}, fmt.Errorf("not a number: %q", raw)
	}
	return Value{Float: f}, nil
}

// Clone returns a deep copy of a row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}
