package inventory

import "github.com/mamadbah2/assetscan/internal/domain/models"

// CountMarked counts rows in the inclusive 1-based range [startRow, endRow]
// whose value in column is non-empty. It always scans the full range.
func CountMarked(sheet *models.Sheet, startRow, endRow, column int) int {
	if sheet == nil || column < 0 {
		return 0
	}
	if startRow < 1 {
		startRow = 1
	}

	count := 0
	for rowNumber := startRow; rowNumber <= endRow && rowNumber <= sheet.Len(); rowNumber++ {
		if sheet.Cell(rowNumber-1, column) != "" {
			count++
		}
	}
	return count
}
