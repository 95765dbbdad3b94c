package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// CellEdit is a single targeted cell write. Row and Col are zero-based.
type CellEdit struct {
	Row   int
	Col   int
	Value string
}

// CellRef addresses one cell. Row and Col are zero-based.
type CellRef struct {
	Row int
	Col int
}

// Sheet holds the rows of one worksheet as trimmed strings and tracks the
// writes made to it so a store can persist only what changed.
type Sheet struct {
	Name string

	rows      [][]string
	edits     []CellEdit
	formulas  map[CellRef]struct{}
	created   bool
	rewritten bool

	// extent of the sheet as loaded
	loadedRows int
	loadedCols int
}

// NewSheet copies the provided rows into a new sheet, trimming every cell.
func NewSheet(name string, rows [][]string) *Sheet {
	s := &Sheet{Name: name, rows: make([][]string, len(rows)), loadedRows: len(rows)}
	for i, row := range rows {
		cp := make([]string, len(row))
		for j, cell := range row {
			cp[j] = strings.TrimSpace(cell)
		}
		s.rows[i] = cp
		if len(cp) > s.loadedCols {
			s.loadedCols = len(cp)
		}
	}
	return s
}

// LoadedExtent returns the row and column count the sheet had when loaded.
func (s *Sheet) LoadedExtent() (rows, cols int) {
	return s.loadedRows, s.loadedCols
}

// MarkFormula records that (row, col) holds a formula in the store. Its value
// in the sheet is the evaluated result.
func (s *Sheet) MarkFormula(row, col int) {
	if row < 0 || col < 0 {
		return
	}
	if s.formulas == nil {
		s.formulas = make(map[CellRef]struct{})
	}
	s.formulas[CellRef{Row: row, Col: col}] = struct{}{}
}

// IsFormula reports whether (row, col) holds a formula.
func (s *Sheet) IsFormula(row, col int) bool {
	_, ok := s.formulas[CellRef{Row: row, Col: col}]
	return ok
}

// Formulas returns the formula cells ordered by row then column.
func (s *Sheet) Formulas() []CellRef {
	out := make([]CellRef, 0, len(s.formulas))
	for ref := range s.formulas {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}

// Refresh replaces the evaluated value of a formula cell. It is not an edit
// and is never persisted.
func (s *Sheet) Refresh(row, col int, value string) {
	if !s.IsFormula(row, col) {
		return
	}
	s.put(row, col, strings.TrimSpace(value))
}

// Len returns the number of rows in the sheet.
func (s *Sheet) Len() int {
	return len(s.rows)
}

// Row returns the cells of row i. The slice must not be modified.
func (s *Sheet) Row(i int) []string {
	if i < 0 || i >= len(s.rows) {
		return nil
	}
	return s.rows[i]
}

// Rows returns a copy of all rows.
func (s *Sheet) Rows() [][]string {
	out := make([][]string, len(s.rows))
	for i, row := range s.rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}

// Cell returns the value at (row, col), or "" when out of range.
func (s *Sheet) Cell(row, col int) string {
	if row < 0 || row >= len(s.rows) || col < 0 {
		return ""
	}
	r := s.rows[row]
	if col >= len(r) {
		return ""
	}
	return r[col]
}

// Set writes value at (row, col), growing the sheet as needed, and records the edit.
func (s *Sheet) Set(row, col int, value string) {
	if row < 0 || col < 0 {
		return
	}
	s.put(row, col, value)
	delete(s.formulas, CellRef{Row: row, Col: col})
	s.edits = append(s.edits, CellEdit{Row: row, Col: col, Value: value})
}

func (s *Sheet) put(row, col int, value string) {
	for len(s.rows) <= row {
		s.rows = append(s.rows, nil)
	}
	r := s.rows[row]
	for len(r) <= col {
		r = append(r, "")
	}
	r[col] = value
	s.rows[row] = r
}

// Append adds a row after the last one. Trailing empty values are dropped.
// It returns the zero-based index of the new row.
func (s *Sheet) Append(values ...string) int {
	for len(values) > 0 && values[len(values)-1] == "" {
		values = values[:len(values)-1]
	}
	idx := len(s.rows)
	s.rows = append(s.rows, make([]string, len(values)))
	for col, v := range values {
		if v == "" {
			continue
		}
		s.Set(idx, col, v)
	}
	return idx
}

// RemoveRows drops every row for which drop returns true and marks the sheet
// for a full rewrite. It returns how many rows were removed.
func (s *Sheet) RemoveRows(drop func(row []string) bool) int {
	kept := s.rows[:0:0]
	removed := 0
	for _, row := range s.rows {
		if drop(row) {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	if removed > 0 {
		s.rows = kept
		s.formulas = nil
		s.rewritten = true
	}
	return removed
}

// Clear removes every row and marks the sheet for a full rewrite.
func (s *Sheet) Clear() {
	s.rows = nil
	s.edits = nil
	s.formulas = nil
	s.rewritten = true
}

// Edits returns the targeted writes recorded since the sheet was loaded.
func (s *Sheet) Edits() []CellEdit {
	return append([]CellEdit(nil), s.edits...)
}

// Created reports whether the sheet did not exist in the store when loaded.
func (s *Sheet) Created() bool {
	return s.created
}

// Rewritten reports whether the sheet content must replace the stored sheet wholesale.
func (s *Sheet) Rewritten() bool {
	return s.rewritten
}

// Dirty reports whether the sheet has anything to persist.
func (s *Sheet) Dirty() bool {
	return s.created || s.rewritten || len(s.edits) > 0
}

// Workbook is an in-memory snapshot of the record store.
type Workbook struct {
	sheets map[string]*Sheet
	order  []string
}

// NewWorkbook builds a workbook from sheets in file order.
func NewWorkbook(sheets ...*Sheet) *Workbook {
	wb := &Workbook{sheets: make(map[string]*Sheet)}
	for _, s := range sheets {
		wb.add(s)
	}
	return wb
}

func (w *Workbook) add(s *Sheet) {
	if _, exists := w.sheets[s.Name]; !exists {
		w.order = append(w.order, s.Name)
	}
	w.sheets[s.Name] = s
}

// Sheet looks up a sheet by name.
func (w *Workbook) Sheet(name string) (*Sheet, bool) {
	s, ok := w.sheets[name]
	return s, ok
}

// EnsureSheet returns the named sheet, creating an empty one when missing.
func (w *Workbook) EnsureSheet(name string) *Sheet {
	if s, ok := w.sheets[name]; ok {
		return s
	}
	s := &Sheet{Name: name, created: true}
	w.add(s)
	return s
}

// Sheets returns the sheets in file order.
func (w *Workbook) Sheets() []*Sheet {
	out := make([]*Sheet, 0, len(w.order))
	for _, name := range w.order {
		out = append(out, w.sheets[name])
	}
	return out
}

// SheetNames returns the sheet names in file order.
func (w *Workbook) SheetNames() []string {
	return append([]string(nil), w.order...)
}

// Dirty reports whether any sheet has pending writes.
func (w *Workbook) Dirty() bool {
	for _, s := range w.sheets {
		if s.Dirty() {
			return true
		}
	}
	return false
}

// CellString renders a raw cell value as a trimmed string. Nil, numeric zero
// and blank strings all render as "".
func CellString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		if v == 0 {
			return ""
		}
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		if v == 0 {
			return ""
		}
		return strconv.Itoa(v)
	case int64:
		if v == 0 {
			return ""
		}
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
