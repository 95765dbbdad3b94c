package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/xuri/excelize/v2"
)

// NoColumn marks a column slot that is not mapped.
const NoColumn = -1

// LayoutConfig describes where the inventory lives inside the workbook. Column
// fields are zero-based indices; NoColumn means unmapped. Rows are 1-based
// spreadsheet row numbers, inclusive.
type LayoutConfig struct {
	InventorySheet string
	UnmatchedSheet string

	IDColumns         []int
	NameColumn        int
	DescriptionColumn int
	StatusColumn      int
	LocationColumn    int
	RoomColumn        int
	MarkedColumn      int

	StartRow   int
	EndRow     int
	TotalCount int
}

// layoutFile is the on-disk TOML shape of a layout.
type layoutFile struct {
	Sheets struct {
		Inventory string `toml:"inventory"`
		Unmatched string `toml:"unmatched"`
	} `toml:"sheets"`
	Columns struct {
		AssetID     []string `toml:"asset_id"`
		Name        string   `toml:"name"`
		Description string   `toml:"description"`
		Status      string   `toml:"status"`
		Location    string   `toml:"location"`
		Room        string   `toml:"room"`
		MarkedCheck string   `toml:"marked_check"`
	} `toml:"columns"`
	Counting struct {
		StartRow   int `toml:"start_row"`
		EndRow     int `toml:"end_row"`
		TotalCount int `toml:"total_count"`
	} `toml:"counting"`
}

// DefaultLayout returns the column mapping used by the inventory template.
func DefaultLayout() LayoutConfig {
	return LayoutConfig{
		InventorySheet:    "Inventory",
		UnmatchedSheet:    "Other",
		IDColumns:         []int{2, 3, 4},
		NameColumn:        5,
		DescriptionColumn: 6,
		StatusColumn:      15,
		LocationColumn:    16,
		RoomColumn:        17,
		MarkedColumn:      18,
		StartRow:          6,
		EndRow:            357,
		TotalCount:        352,
	}
}

// LoadLayoutFile parses a TOML layout file. Missing keys keep their defaults.
func LoadLayoutFile(path string) (LayoutConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LayoutConfig{}, fmt.Errorf("read layout file %s: %w", path, err)
	}
	return ParseLayout(data)
}

// ParseLayout decodes TOML layout content on top of DefaultLayout.
func ParseLayout(data []byte) (LayoutConfig, error) {
	var file layoutFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return LayoutConfig{}, fmt.Errorf("decode layout: %w", err)
	}

	layout := DefaultLayout()
	if file.Sheets.Inventory != "" {
		layout.InventorySheet = file.Sheets.Inventory
	}
	if file.Sheets.Unmatched != "" {
		layout.UnmatchedSheet = file.Sheets.Unmatched
	}

	if file.Columns.AssetID != nil {
		ids, err := parseColumnList(file.Columns.AssetID)
		if err != nil {
			return LayoutConfig{}, fmt.Errorf("asset_id: %w", err)
		}
		layout.IDColumns = ids
	}

	columns := []struct {
		name  string
		value string
		dst   *int
	}{
		{"name", file.Columns.Name, &layout.NameColumn},
		{"description", file.Columns.Description, &layout.DescriptionColumn},
		{"status", file.Columns.Status, &layout.StatusColumn},
		{"location", file.Columns.Location, &layout.LocationColumn},
		{"room", file.Columns.Room, &layout.RoomColumn},
		{"marked_check", file.Columns.MarkedCheck, &layout.MarkedColumn},
	}
	for _, col := range columns {
		if col.value == "" {
			continue
		}
		idx, err := ParseColumn(col.value)
		if err != nil {
			return LayoutConfig{}, fmt.Errorf("%s: %w", col.name, err)
		}
		*col.dst = idx
	}

	if file.Counting.StartRow > 0 {
		layout.StartRow = file.Counting.StartRow
	}
	if file.Counting.EndRow > 0 {
		layout.EndRow = file.Counting.EndRow
	}
	layout.TotalCount = file.Counting.TotalCount
	if layout.TotalCount <= 0 {
		layout.TotalCount = layout.EndRow - layout.StartRow + 1
	}

	return layout, nil
}

// loadLayout resolves the layout from LAYOUT_FILE, or from individual
// environment variables layered over the defaults.
func loadLayout() (LayoutConfig, error) {
	if path := os.Getenv("LAYOUT_FILE"); path != "" {
		return LoadLayoutFile(path)
	}

	layout := DefaultLayout()
	layout.InventorySheet = getenvWithDefault("INVENTORY_SHEET", layout.InventorySheet)
	layout.UnmatchedSheet = getenvWithDefault("UNMATCHED_SHEET", layout.UnmatchedSheet)

	if raw, ok := os.LookupEnv("ASSET_ID_COLUMNS"); ok {
		ids, err := parseColumnList(strings.Split(raw, ","))
		if err != nil {
			return LayoutConfig{}, fmt.Errorf("ASSET_ID_COLUMNS: %w", err)
		}
		layout.IDColumns = ids
	}

	columns := []struct {
		key string
		dst *int
	}{
		{"NAME_COLUMN", &layout.NameColumn},
		{"DESCRIPTION_COLUMN", &layout.DescriptionColumn},
		{"STATUS_COLUMN", &layout.StatusColumn},
		{"LOCATION_COLUMN", &layout.LocationColumn},
		{"ROOM_COLUMN", &layout.RoomColumn},
		{"MARKED_CHECK_COLUMN", &layout.MarkedColumn},
	}
	for _, col := range columns {
		raw, ok := os.LookupEnv(col.key)
		if !ok {
			continue
		}
		idx, err := ParseColumn(raw)
		if err != nil {
			return LayoutConfig{}, fmt.Errorf("%s: %w", col.key, err)
		}
		*col.dst = idx
	}

	var err error
	if layout.StartRow, err = getenvInt("COUNT_START_ROW", layout.StartRow); err != nil {
		return LayoutConfig{}, err
	}
	if layout.EndRow, err = getenvInt("COUNT_END_ROW", layout.EndRow); err != nil {
		return LayoutConfig{}, err
	}
	if layout.TotalCount, err = getenvInt("COUNT_TOTAL", layout.EndRow-layout.StartRow+1); err != nil {
		return LayoutConfig{}, err
	}

	return layout, nil
}

// Validate checks the layout is usable for matching and counting.
func (l LayoutConfig) Validate() error {
	if strings.TrimSpace(l.InventorySheet) == "" {
		return errors.New("inventory sheet name must be provided")
	}
	if strings.TrimSpace(l.UnmatchedSheet) == "" {
		return errors.New("unmatched sheet name must be provided")
	}
	if l.InventorySheet == l.UnmatchedSheet {
		return errors.New("inventory and unmatched sheets must differ")
	}
	if len(l.SearchColumns()) == 0 {
		return errors.New("at least one asset id column must be mapped")
	}
	if l.StatusColumn < 0 {
		return errors.New("status column must be mapped")
	}
	if l.MarkedColumn < 0 {
		return errors.New("marked check column must be mapped")
	}
	if l.StartRow < 1 {
		return errors.New("count start row must be at least 1")
	}
	if l.EndRow < l.StartRow {
		return fmt.Errorf("count end row %d is before start row %d", l.EndRow, l.StartRow)
	}
	return nil
}

// SearchColumns returns the mapped identifier columns in priority order.
func (l LayoutConfig) SearchColumns() []int {
	cols := make([]int, 0, len(l.IDColumns))
	for _, c := range l.IDColumns {
		if c >= 0 {
			cols = append(cols, c)
		}
	}
	return cols
}

// Warnings reports data columns that share a position with an identifier column.
func (l LayoutConfig) Warnings() []string {
	ids := make(map[int]bool)
	for _, c := range l.SearchColumns() {
		ids[c] = true
	}

	var warnings []string
	for _, field := range l.Fields() {
		if field.Index >= 0 && ids[field.Index] {
			warnings = append(warnings, fmt.Sprintf("%s column %s overlaps with asset id columns", field.Label, ColumnName(field.Index)))
		}
	}
	return warnings
}

// LayoutField names one mapped data column.
type LayoutField struct {
	Label string
	Index int
}

// Fields lists the non-identifier columns in display order.
func (l LayoutConfig) Fields() []LayoutField {
	return []LayoutField{
		{"Asset Name", l.NameColumn},
		{"Asset Description", l.DescriptionColumn},
		{"Status", l.StatusColumn},
		{"Location", l.LocationColumn},
		{"Room", l.RoomColumn},
		{"Marked Check", l.MarkedColumn},
	}
}

// ParseColumn converts a spreadsheet column letter ("A", "ZZ") into a zero-based
// index. Empty input and "None" yield NoColumn.
func ParseColumn(value string) (int, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" || value == "NONE" {
		return NoColumn, nil
	}
	n, err := excelize.ColumnNameToNumber(value)
	if err != nil {
		return NoColumn, fmt.Errorf("invalid column %q: %w", value, err)
	}
	return n - 1, nil
}

// ColumnName renders a zero-based index as a column letter, or "None".
func ColumnName(index int) string {
	if index < 0 {
		return "None"
	}
	name, err := excelize.ColumnNumberToName(index + 1)
	if err != nil {
		return "None"
	}
	return name
}

func parseColumnList(values []string) ([]int, error) {
	cols := make([]int, 0, len(values))
	for _, v := range values {
		idx, err := ParseColumn(v)
		if err != nil {
			return nil, err
		}
		cols = append(cols, idx)
	}
	return cols, nil
}
