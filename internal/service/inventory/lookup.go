package inventory

import (
	"github.com/mamadbah2/assetscan/internal/config"
	"github.com/mamadbah2/assetscan/internal/domain/models"
)

// Lookup previews identifier against the inventory without mutating it.
func Lookup(sheet *models.Sheet, layout config.LayoutConfig, identifier string) models.LookupResult {
	row, col, ok := matchCell(sheet, identifier, layout.SearchColumns())
	if !ok {
		return models.LookupResult{}
	}

	asset := AssetAt(sheet, layout, row)
	return models.LookupResult{
		Found:       true,
		RowNumber:   asset.RowNumber,
		Identifier:  sheet.Cell(row, col),
		Name:        asset.Name,
		Description: asset.Description,
		Marked:      asset.Processed(),
	}
}

// AssetAt builds the typed view of a zero-based inventory row.
func AssetAt(sheet *models.Sheet, layout config.LayoutConfig, row int) models.Asset {
	ids := make([]string, 0, len(layout.IDColumns))
	for _, col := range layout.SearchColumns() {
		ids = append(ids, sheet.Cell(row, col))
	}

	return models.Asset{
		RowNumber:   row + 1,
		Identifiers: ids,
		Name:        sheet.Cell(row, layout.NameColumn),
		Description: sheet.Cell(row, layout.DescriptionColumn),
		Status:      sheet.Cell(row, layout.StatusColumn),
		Location:    sheet.Cell(row, layout.LocationColumn),
		Room:        sheet.Cell(row, layout.RoomColumn),
		Marked:      sheet.Cell(row, layout.MarkedColumn),
	}
}
