// Copyright 2024 Leon Chen

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package table implements a typed in-memory table materialized from a JSON
// array of row objects, with per-column types inferred from the observed
// values.
package table

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Type of a column, inferred from the JSON values observed in it.
type Type int

const (
	TypeString Type = iota
	TypeInt
	TypeFloat
	TypeBool
)

// String implements fmt.Stringer for Type.
func (tp Type) String() string {
	switch tp {
	case TypeString:
		return "String"
	case TypeInt:
		return "Int"
	case TypeFloat:
		return "Float"
	case TypeBool:
		return "Bool"
	}
	return fmt.Sprintf("Type(%d)", int(tp))
}

// Value is an arbitrary value of a table cell. Depending on the column type
// it holds a string, int64, float64 or bool; nil represents a JSON null or a
// field absent from the source row.
type Value interface{}

// Column is the definition of a single table column.
type Column struct {
	Name string
	Type Type
}

// Table is a column-typed table with row-major storage.
type Table struct {
	columns []Column
	rows    [][]Value
}

// New creates an empty table with the given columns.
func New(columns ...Column) *Table {
	return &Table{columns: columns}
}

// AddRow adds one or more rows to the table. Each row must have exactly one
// value per column; cell types are not checked.
func (t *Table) AddRow(rows ...[]Value) error {
	for _, r := range rows {
		if len(r) != len(t.columns) {
			return errors.Reason("row size [%d] != number of columns [%d]",
				len(r), len(t.columns))
		}
		t.rows = append(t.rows, r)
	}
	return nil
}

// Columns returns a copy of the column definitions.
func (t *Table) Columns() []Column { return slices.Clone(t.columns) }

// NumRows returns the number of rows in the table.
func (t *Table) NumRows() int { return len(t.rows) }

// Row returns the i-th row. The slice is shared with the table and must not
// be modified.
func (t *Table) Row(i int) []Value { return t.rows[i] }

// MapColumns creates a map of {column name -> column index}.
func (t *Table) MapColumns() map[string]int {
	res := make(map[string]int)
	for i, c := range t.columns {
		res[c.Name] = i
	}
	return res
}

// inferType scans the named field across all rows and derives the column
// type. Nulls and absent fields are skipped; a column where two rows disagree
// on the value kind is an error. Numbers become TypeInt when every observed
// value is integral, TypeFloat otherwise. A column with no values at all
// defaults to TypeString.
func inferType(name string, rows []map[string]interface{}) (Type, error) {
	tp := TypeString
	seen := false
	integral := true
	for _, r := range rows {
		v, ok := r[name]
		if !ok || v == nil {
			continue
		}
		var k Type
		switch x := v.(type) {
		case bool:
			k = TypeBool
		case string:
			k = TypeString
		case float64:
			k = TypeFloat
			if x != math.Trunc(x) {
				integral = false
			}
		default:
			return 0, errors.Reason("column %q has a value of unsupported type %T",
				name, v)
		}
		if !seen {
			tp = k
			seen = true
			continue
		}
		if tp != k {
			return 0, errors.Reason("column %q mixes %s and %s values", name, tp, k)
		}
	}
	if seen && tp == TypeFloat && integral {
		tp = TypeInt
	}
	return tp, nil
}

// FromJSON materializes a table from a JSON array of objects, one object per
// row. The column set is the union of the field names across all rows, in
// lexicographic order; each column's type is inferred from the observed
// values. Zero rows are an error, since there is nothing to infer types from.
func FromJSON(data []byte) (*Table, error) {
	var rows []map[string]interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, errors.Annotate(err, "input is not a JSON array of objects")
	}
	if len(rows) == 0 {
		return nil, errors.Reason("cannot infer column types from zero rows")
	}
	set := make(map[string]struct{})
	for _, r := range rows {
		for k := range r {
			set[k] = struct{}{}
		}
	}
	names := maps.Keys(set)
	slices.Sort(names)

	t := &Table{columns: make([]Column, len(names))}
	for i, name := range names {
		tp, err := inferType(name, rows)
		if err != nil {
			return nil, err
		}
		t.columns[i] = Column{Name: name, Type: tp}
	}
	for _, r := range rows {
		cells := make([]Value, len(names))
		for i, name := range names {
			v, ok := r[name]
			if !ok || v == nil {
				continue
			}
			if f, isNum := v.(float64); isNum && t.columns[i].Type == TypeInt {
				cells[i] = int64(f)
				continue
			}
			cells[i] = v
		}
		t.rows = append(t.rows, cells)
	}
	return t, nil
}

// formatCell renders a single cell for CSV or text output. Nulls render as
// the empty string.
func formatCell(v Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprintf("%v", v)
}

// header returns the column names.
func (t *Table) header() []string {
	h := make([]string, len(t.columns))
	for i, c := range t.columns {
		h[i] = c.Name
	}
	return h
}

// csvRow renders the i-th row as strings.
func (t *Table) csvRow(i int) []string {
	row := make([]string, len(t.columns))
	for j, v := range t.rows[i] {
		row[j] = formatCell(v)
	}
	return row
}

// Params are parameters for pretty-printing or CSV export of Table data.
type Params struct {
	Rows        int  // max. number of rows to write; 0 = unlimited (default)
	NoHeader    bool // whether to print the header, default - yes
	MaxColWidth int  // for WriteText only; 0 = unlimited, otherwise must be >= 4
}

// WriteCSV writes the entire table to w in CSV format.
func (t *Table) WriteCSV(w io.Writer, p Params) error {
	cw := csv.NewWriter(w)
	if !p.NoHeader && len(t.columns) > 0 {
		if err := cw.Write(t.header()); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
	}
	for i := range t.rows {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		if err := cw.Write(t.csvRow(i)); err != nil {
			return errors.Annotate(err, "failed to write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Annotate(err, "failed to flush written rows")
	}
	return nil
}

// WriteText writes the table as a text formatted for ease of reading.
func (t *Table) WriteText(w io.Writer, p Params) error {
	if p.MaxColWidth != 0 && p.MaxColWidth < 4 {
		return errors.Reason("MaxColWidth [%d] must be 0 or >= 4", p.MaxColWidth)
	}
	if len(t.columns) == 0 {
		return nil
	}
	widths := make([]int, len(t.columns))
	update := func(row []string) {
		for i := range widths {
			if widths[i] < len(row[i]) {
				widths[i] = len(row[i])
				if p.MaxColWidth > 0 && widths[i] > p.MaxColWidth {
					widths[i] = p.MaxColWidth
				}
			}
		}
	}

	write := func(row []string) error {
		trimmed := make([]string, len(row))
		for i, s := range row {
			trimmed[i] = s
			if len([]rune(s)) > widths[i] {
				r := []rune(s)[:widths[i]-2]
				trimmed[i] = string(r) + ".."
			}
			trimmed[i] = fmt.Sprintf("%[2]*[1]s", trimmed[i], widths[i])
		}
		_, err := fmt.Fprintf(w, "%s\n", strings.Join(trimmed, " | "))
		return err
	}

	dashes := func(n int) string {
		b := make([]byte, n)
		for i := range b {
			b[i] = byte('-')
		}
		return string(b)
	}

	dashedRow := func() []string {
		row := make([]string, len(widths))
		for i, w := range widths {
			row[i] = dashes(w)
		}
		return row
	}

	if !p.NoHeader {
		update(t.header())
	}
	for i := range t.rows {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		update(t.csvRow(i))
	}

	if !p.NoHeader {
		if err := write(t.header()); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
		if err := write(dashedRow()); err != nil {
			return errors.Annotate(err, "failed to write header separator")
		}
	}
	for i := range t.rows {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		if err := write(t.csvRow(i)); err != nil {
			return errors.Annotate(err, "failed to write row")
		}
	}
	return nil
}
