package inventory

import (
	"strings"

	"github.com/mamadbah2/assetscan/internal/domain/models"
)

const (
	unmatchedIDColumn       = 0
	unmatchedLocationColumn = 1
	unmatchedRoomColumn     = 2
)

// RecordUnmatched appends identifier to the unmatched sheet unless an entry
// with the same identifier already exists.
func RecordUnmatched(sheet *models.Sheet, identifier, location, room string) models.MatchOutcome {
	identifier = strings.TrimSpace(identifier)
	if findUnmatched(sheet, identifier) >= 0 {
		return models.MatchOutcome{Kind: models.OutcomeDuplicateUnmatched}
	}

	sheet.Append(identifier, strings.TrimSpace(location), strings.TrimSpace(room))
	return models.MatchOutcome{Kind: models.OutcomeAddedToUnmatched}
}

// ListUnmatched returns the non-empty entries of the unmatched sheet in order.
func ListUnmatched(sheet *models.Sheet) []models.UnmatchedEntry {
	entries := make([]models.UnmatchedEntry, 0)
	if sheet == nil {
		return entries
	}
	for row := 0; row < sheet.Len(); row++ {
		id := sheet.Cell(row, unmatchedIDColumn)
		if id == "" {
			continue
		}
		entries = append(entries, models.UnmatchedEntry{
			Identifier: id,
			Location:   sheet.Cell(row, unmatchedLocationColumn),
			Room:       sheet.Cell(row, unmatchedRoomColumn),
		})
	}
	return entries
}

// RemoveUnmatched deletes every entry for identifier and returns how many were removed.
func RemoveUnmatched(sheet *models.Sheet, identifier string) int {
	identifier = strings.TrimSpace(identifier)
	if sheet == nil || identifier == "" {
		return 0
	}
	return sheet.RemoveRows(func(row []string) bool {
		return len(row) > unmatchedIDColumn && row[unmatchedIDColumn] == identifier
	})
}

func findUnmatched(sheet *models.Sheet, identifier string) int {
	if sheet == nil || identifier == "" {
		return -1
	}
	for row := 0; row < sheet.Len(); row++ {
		if sheet.Cell(row, unmatchedIDColumn) == identifier {
			return row
		}
	}
	return -1
}
