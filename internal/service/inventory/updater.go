package inventory

import (
	"github.com/mamadbah2/assetscan/internal/config"
	"github.com/mamadbah2/assetscan/internal/domain/models"
)

// markedValue is written into a plain marked-check cell when its row is updated.
const markedValue = "X"

// UpdateRow applies a submission to a matched inventory row. A row whose
// status is already set is left untouched. Besides the status, location and
// room columns, an empty marked-check cell is filled with markedValue unless it
// holds a formula, which the store re-evaluates on save.
func UpdateRow(sheet *models.Sheet, layout config.LayoutConfig, row int, sub models.ScanSubmission) models.MatchOutcome {
	asset := AssetAt(sheet, layout, row)

	if asset.Processed() {
		return models.MatchOutcome{
			Kind:      models.OutcomeAlreadyProcessed,
			Label:     asset.Name,
			RowNumber: asset.RowNumber,
		}
	}

	sheet.Set(row, layout.StatusColumn, string(sub.Status))
	if sub.Location != "" && layout.LocationColumn >= 0 {
		sheet.Set(row, layout.LocationColumn, sub.Location)
	}
	if sub.Room != "" && layout.RoomColumn >= 0 {
		sheet.Set(row, layout.RoomColumn, sub.Room)
	}
	mark(sheet, layout, row)

	return models.MatchOutcome{
		Kind:        models.OutcomeUpdated,
		Label:       asset.Name,
		RowNumber:   asset.RowNumber,
		MarkedCount: CountMarked(sheet, layout.StartRow, layout.EndRow, layout.MarkedColumn),
		TotalCount:  layout.TotalCount,
	}
}

func mark(sheet *models.Sheet, layout config.LayoutConfig, row int) {
	col := layout.MarkedColumn
	if col < 0 || col == layout.StatusColumn || sheet.IsFormula(row, col) {
		return
	}
	if sheet.Cell(row, col) == "" {
		sheet.Set(row, col, markedValue)
	}
}
