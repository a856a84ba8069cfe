// Package dataset reads the delimited tabular uploads (students, attendance, assessments, fees)
// into immutable tables and decodes their rows into validated structs.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/eudg/core"
)

// KeyColumn is the column every table must carry.
const KeyColumn = "StudentID"

type kind int

const (
	kindString kind = iota
	kindInt
	kindFloat
)

// naValues are the cell values read as missing, on top of the empty cell.
var naValues = map[string]bool{
	"#N/A": true, "#N/A N/A": true, "#NA": true, "-1.#IND": true, "-1.#QNAN": true,
	"-NaN": true, "-nan": true, "1.#IND": true, "1.#QNAN": true, "<NA>": true,
	"N/A": true, "NA": true, "NULL": true, "NaN": true, "None": true,
	"n/a": true, "nan": true, "null": true,
}

// IsNA reports whether a (trimmed) cell holds a missing value.
func IsNA(cell string) bool {
	return cell == "" || naValues[cell]
}

// Table is a parsed CSV file. It is never mutated after Read.
type Table struct {
	Name   string   // the upload field name, used in errors
	Header []string // as found in the file, trimmed
	Rows   [][]string

	columns []string // normalized Header
	index   map[string]int
	key     int
	kinds   []kind
}

// Read parses a CSV file with a header row. Cells are trimmed and columns are looked up
// by their normalized name (see NormalizeHeader), while Header and Record keep the names
// found in the file. Every column in `required` must be present.
func Read(name string, r io.Reader, required ...string) (*Table, error) {
	rdr := csv.NewReader(r)
	rdr.TrimLeadingSpace = true

	records, err := rdr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	if len(records) == 0 {
		return nil, errors.Errorf("%s: empty file", name)
	}

	tbl := &Table{
		Name:    name,
		Header:  make([]string, len(records[0])),
		Rows:    make([][]string, 0, len(records)-1),
		columns: make([]string, len(records[0])),
		index:   make(map[string]int, len(records[0])),
		key:     -1,
	}
	for i, h := range records[0] {
		col := NormalizeHeader(h)
		if col == "" {
			return nil, errors.Errorf("%s: column %d has an empty header", name, i+1)
		}
		if _, dup := tbl.index[col]; dup {
			return nil, errors.Errorf("%s: duplicate column %q", name, col)
		}
		tbl.Header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		tbl.columns[i] = col
		tbl.index[col] = i
		if col == KeyColumn {
			tbl.key = i
		}
	}
	for _, col := range required {
		if _, ok := tbl.index[col]; !ok {
			return nil, &MissingColumnError{File: name, Column: col, Suggestion: closestHeader(col, records[0])}
		}
	}

	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		row := make([]string, len(rec))
		for i, cell := range rec {
			row[i] = core.CleanString(cell)
		}
		tbl.Rows = append(tbl.Rows, row)
	}
	tbl.inferKinds()
	return tbl, nil
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Column returns the normalized name of the i-th column.
func (t *Table) Column(i int) string { return t.columns[i] }

// Has reports whether the table has the column.
func (t *Table) Has(col string) bool {
	_, ok := t.lookup(col)
	return ok
}

func (t *Table) lookup(col string) (int, bool) {
	if i, ok := t.index[col]; ok {
		return i, true
	}
	i, ok := t.index[NormalizeHeader(col)]
	return i, ok
}

// Value returns the raw cell, or "" if the column does not exist.
func (t *Table) Value(row int, col string) string {
	if i, ok := t.lookup(col); ok {
		return t.Rows[row][i]
	}
	return ""
}

// Cell returns the typed cell value: nil for missing cells (see IsNA), int64 or float64
// for numeric columns and string otherwise. The key column is always a string.
func (t *Table) Cell(row int, col string) interface{} {
	i, ok := t.lookup(col)
	if !ok {
		return nil
	}
	return t.typed(i, t.Rows[row][i])
}

// Record returns the typed row keyed by the column names found in the file.
func (t *Table) Record(row int) map[string]interface{} {
	rec := make(map[string]interface{}, len(t.Header))
	for i, col := range t.Header {
		rec[col] = t.typed(i, t.Rows[row][i])
	}
	return rec
}

// Filter returns the indices of the rows whose `col` equals `value`, in input order.
func (t *Table) Filter(col, value string) []int {
	i, ok := t.lookup(col)
	if !ok {
		return nil
	}
	var rows []int
	for r, row := range t.Rows {
		if row[i] == value {
			rows = append(rows, r)
		}
	}
	return rows
}

func (t *Table) typed(i int, cell string) interface{} {
	if cell == "" || (i != t.key && naValues[cell]) {
		return nil
	}
	switch t.kinds[i] {
	case kindInt:
		n, _ := strconv.ParseInt(cell, 10, 64)
		return n
	case kindFloat:
		f, _ := strconv.ParseFloat(cell, 64)
		return f
	default:
		return cell
	}
}

// inferKinds marks a column numeric when all of its non-missing cells parse as finite numbers.
func (t *Table) inferKinds() {
	t.kinds = make([]kind, len(t.Header))
	for i := range t.Header {
		if i == t.key {
			continue
		}
		k, seen := kindInt, false
		for _, row := range t.Rows {
			cell := row[i]
			if IsNA(cell) {
				continue
			}
			seen = true
			if _, err := strconv.ParseInt(cell, 10, 64); err == nil {
				continue
			}
			if f, err := strconv.ParseFloat(cell, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
				k = kindFloat
				continue
			}
			k = kindString
			break
		}
		if seen {
			t.kinds[i] = k
		}
	}
}

func isBlank(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// MissingColumnError is returned when a required column is absent from a file.
type MissingColumnError struct {
	File       string
	Column     string
	Suggestion string
}

func (e *MissingColumnError) Error() string {
	msg := fmt.Sprintf("%s: missing required column %q", e.File, e.Column)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}
