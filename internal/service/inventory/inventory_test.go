package inventory

import (
	"testing"

	"github.com/mamadbah2/assetscan/internal/config"
	"github.com/mamadbah2/assetscan/internal/domain/models"
)

// testLayout maps ids to A,B,C; name D; description E; status F; location G;
// room H; marked check F. Rows 2..6 are counted.
func testLayout() config.LayoutConfig {
	return config.LayoutConfig{
		InventorySheet:    "Inventory",
		UnmatchedSheet:    "Other",
		IDColumns:         []int{0, 1, 2},
		NameColumn:        3,
		DescriptionColumn: 4,
		StatusColumn:      5,
		LocationColumn:    6,
		RoomColumn:        7,
		MarkedColumn:      5,
		StartRow:          2,
		EndRow:            6,
		TotalCount:        5,
	}
}

func inventorySheet() *models.Sheet {
	return models.NewSheet("Inventory", [][]string{
		{"Tag", "Serial", "Alt", "Name", "Description", "Status", "Location", "Room"},
		{"T100", "", "", "Projector", "Epson", "", "", ""},
		{"", "S200", "", "Laptop", "Dell", "F", "EIEAB", "12"},
		{"", "", " A1234 ", "Cart", "AV cart"},
		{"T400", "A1234", "", "Shadow", "second match"},
		{"", "", "", "Blank", "no ids"},
	})
}

func TestMatchAnyCandidateColumn(t *testing.T) {
	sheet := inventorySheet()
	cols := testLayout().SearchColumns()

	tests := []struct {
		id   string
		want int
	}{
		{"T100", 1},
		{"S200", 2},
		{"A1234", 3},
		{"  T400 ", 4},
	}
	for _, tt := range tests {
		got, ok := Match(sheet, tt.id, cols)
		if !ok || got != tt.want {
			t.Errorf("Match(%q) = %d,%v want %d", tt.id, got, ok, tt.want)
		}
	}
}

func TestMatchFirstRowWins(t *testing.T) {
	row, ok := Match(inventorySheet(), "A1234", testLayout().SearchColumns())
	if !ok || row != 3 {
		t.Fatalf("expected first matching row 3, got %d,%v", row, ok)
	}
}

func TestMatchSkipsUnmappedColumnsAndEmptyIdentifiers(t *testing.T) {
	sheet := inventorySheet()

	if _, ok := Match(sheet, "T100", []int{config.NoColumn, 1, 2}); ok {
		t.Fatal("unmapped column must be skipped")
	}
	if _, ok := Match(sheet, "   ", []int{0, 1, 2}); ok {
		t.Fatal("blank identifier must never match")
	}
	if _, ok := Match(sheet, "Z9999", []int{0, 1, 2}); ok {
		t.Fatal("absent identifier matched")
	}
	if _, ok := Match(nil, "T100", []int{0}); ok {
		t.Fatal("nil sheet matched")
	}
}

func TestNumericZeroNeverMatches(t *testing.T) {
	raw := [][]interface{}{
		{0.0, "Zero"},
		{nil, "Missing"},
		{1234.0, "Numeric"},
	}
	rows := make([][]string, len(raw))
	for i, r := range raw {
		for _, v := range r {
			rows[i] = append(rows[i], models.CellString(v))
		}
	}
	sheet := models.NewSheet("Inventory", rows)

	if _, ok := Match(sheet, "0", []int{0}); ok {
		t.Fatal("numeric zero matched")
	}
	row, ok := Match(sheet, "1234", []int{0})
	if !ok || row != 2 {
		t.Fatalf("numeric id should match as string, got %d,%v", row, ok)
	}
}

func TestUpdateRowMarksOnceThenReportsProcessed(t *testing.T) {
	layout := testLayout()
	sheet := inventorySheet()
	sub := models.ScanSubmission{Identifier: "A1234", Status: models.StatusFound, Location: "EIEAB", Room: "101"}

	before := CountMarked(sheet, layout.StartRow, layout.EndRow, layout.MarkedColumn)
	row, _ := Match(sheet, sub.Identifier, layout.SearchColumns())

	outcome := UpdateRow(sheet, layout, row, sub)
	if outcome.Kind != models.OutcomeUpdated {
		t.Fatalf("Kind = %s", outcome.Kind)
	}
	if outcome.Label != "Cart" || outcome.RowNumber != 4 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if outcome.MarkedCount != before+1 || outcome.TotalCount != 5 {
		t.Fatalf("count %d/%d, before %d", outcome.MarkedCount, outcome.TotalCount, before)
	}
	if sheet.Cell(row, 5) != "F" || sheet.Cell(row, 6) != "EIEAB" || sheet.Cell(row, 7) != "101" {
		t.Fatalf("row not updated: %v", sheet.Row(row))
	}
	if sheet.Cell(row, 4) != "AV cart" {
		t.Fatal("untouched column changed")
	}

	edits := len(sheet.Edits())
	again := UpdateRow(sheet, layout, row, models.ScanSubmission{Identifier: "A1234", Status: models.StatusSurplus, Location: "ALUM"})
	if again.Kind != models.OutcomeAlreadyProcessed || again.Label != "Cart" {
		t.Fatalf("second update = %+v", again)
	}
	if len(sheet.Edits()) != edits {
		t.Fatal("already processed row was mutated")
	}
	if sheet.Cell(row, 5) != "F" || sheet.Cell(row, 6) != "EIEAB" {
		t.Fatal("status overwritten")
	}
	if CountMarked(sheet, layout.StartRow, layout.EndRow, layout.MarkedColumn) != before+1 {
		t.Fatal("count changed on already processed")
	}
}

func TestUpdateRowOmitsEmptyLocationAndRoom(t *testing.T) {
	layout := testLayout()
	sheet := inventorySheet()

	UpdateRow(sheet, layout, 1, models.ScanSubmission{Identifier: "T100", Status: models.StatusTransfer})

	edits := sheet.Edits()
	if len(edits) != 1 || edits[0].Col != layout.StatusColumn || edits[0].Value != "T" {
		t.Fatalf("expected single status edit, got %+v", edits)
	}
}

func TestUpdateRowUnmappedRoom(t *testing.T) {
	layout := testLayout()
	layout.RoomColumn = config.NoColumn
	sheet := inventorySheet()

	UpdateRow(sheet, layout, 1, models.ScanSubmission{Identifier: "T100", Status: models.StatusFound, Room: "9"})
	for _, e := range sheet.Edits() {
		if e.Col == 7 {
			t.Fatal("room written to unmapped column")
		}
	}
}

func TestCountMarked(t *testing.T) {
	sheet := inventorySheet()

	if got := CountMarked(sheet, 1, 100, 5); got != 2 {
		t.Fatalf("count including header = %d, want 2", got)
	}
	if got := CountMarked(sheet, 2, 6, 5); got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}
	if got := CountMarked(sheet, 4, 6, 5); got != 0 {
		t.Fatalf("count outside marked rows = %d", got)
	}
	if got := CountMarked(sheet, 2, 6, config.NoColumn); got != 0 {
		t.Fatalf("unmapped column count = %d", got)
	}
}

func TestUpdateRowFillsPlainMarkedCell(t *testing.T) {
	layout := testLayout()
	layout.MarkedColumn = 8
	sheet := inventorySheet()
	sheet.Set(1, 8, "x")

	row, _ := Match(sheet, "A1234", layout.SearchColumns())
	outcome := UpdateRow(sheet, layout, row, models.ScanSubmission{Identifier: "A1234", Status: models.StatusFound})
	if got := sheet.Cell(row, 8); got != markedValue {
		t.Fatalf("marked cell = %q, want %q", got, markedValue)
	}
	if outcome.MarkedCount != 2 {
		t.Fatalf("marked count should include the updated row, got %d", outcome.MarkedCount)
	}

	// an existing mark is kept as is
	UpdateRow(sheet, layout, 1, models.ScanSubmission{Identifier: "T100", Status: models.StatusFound})
	if got := sheet.Cell(1, 8); got != "x" {
		t.Fatalf("existing mark overwritten: %q", got)
	}
}

func TestUpdateRowLeavesFormulaMarkedCell(t *testing.T) {
	layout := testLayout()
	layout.MarkedColumn = 8
	sheet := inventorySheet()
	sheet.MarkFormula(3, 8)

	UpdateRow(sheet, layout, 3, models.ScanSubmission{Identifier: "A1234", Status: models.StatusFound})
	for _, e := range sheet.Edits() {
		if e.Col == 8 {
			t.Fatalf("formula cell overwritten: %+v", e)
		}
	}
	if !sheet.IsFormula(3, 8) {
		t.Fatal("formula flag lost")
	}
}

func TestRecordUnmatchedSkipsDuplicates(t *testing.T) {
	wb := models.NewWorkbook(inventorySheet())
	sheet := wb.EnsureSheet("Other")

	first := RecordUnmatched(sheet, "Z9999", "EIEAB", "101")
	if first.Kind != models.OutcomeAddedToUnmatched {
		t.Fatalf("first = %s", first.Kind)
	}
	if sheet.Len() != 1 || sheet.Cell(0, 0) != "Z9999" || sheet.Cell(0, 1) != "EIEAB" || sheet.Cell(0, 2) != "101" {
		t.Fatalf("unexpected rows %v", sheet.Rows())
	}

	second := RecordUnmatched(sheet, " Z9999 ", "ALUM", "")
	if second.Kind != models.OutcomeDuplicateUnmatched {
		t.Fatalf("second = %s", second.Kind)
	}
	if sheet.Len() != 1 {
		t.Fatalf("duplicate appended, rows %v", sheet.Rows())
	}
	if !sheet.Created() || !wb.Dirty() {
		t.Fatal("auto-created sheet must be persisted")
	}
}

func TestRecordUnmatchedOmitsEmptyFields(t *testing.T) {
	sheet := models.NewSheet("Other", nil)
	RecordUnmatched(sheet, "Q1", "", "")

	if got := sheet.Row(0); len(got) != 1 {
		t.Fatalf("row = %v, want identifier only", got)
	}
}

func TestListAndRemoveUnmatched(t *testing.T) {
	sheet := models.NewSheet("Other", [][]string{
		{"Z1", "EIEAB"},
		{""},
		{"Z2", "ALUM", "4"},
		{"Z1"},
	})

	entries := ListUnmatched(sheet)
	if len(entries) != 3 || entries[1].Identifier != "Z2" || entries[1].Room != "4" {
		t.Fatalf("entries = %+v", entries)
	}

	if n := RemoveUnmatched(sheet, "Z1"); n != 2 {
		t.Fatalf("removed %d, want 2", n)
	}
	if !sheet.Rewritten() {
		t.Fatal("removal must mark sheet rewritten")
	}
	if n := RemoveUnmatched(sheet, "Z404"); n != 0 {
		t.Fatalf("removed %d for absent id", n)
	}
	if got := ListUnmatched(nil); got == nil || len(got) != 0 {
		t.Fatalf("nil sheet should list empty, got %v", got)
	}
}

func TestLookupReflectsMarkedState(t *testing.T) {
	layout := testLayout()
	sheet := inventorySheet()

	res := Lookup(sheet, layout, "A1234")
	if !res.Found || res.Marked {
		t.Fatalf("before update: %+v", res)
	}
	if res.Description != "AV cart" || res.Name != "Cart" || res.Identifier != "A1234" || res.RowNumber != 4 {
		t.Fatalf("lookup fields: %+v", res)
	}

	row, _ := Match(sheet, "A1234", layout.SearchColumns())
	UpdateRow(sheet, layout, row, models.ScanSubmission{Identifier: "A1234", Status: models.StatusFound, Location: "EIEAB", Room: "101"})

	res = Lookup(sheet, layout, "A1234")
	if !res.Found || !res.Marked {
		t.Fatalf("after update: %+v", res)
	}

	if res := Lookup(sheet, layout, "Z9999"); res.Found {
		t.Fatalf("absent id found: %+v", res)
	}
}
