package inventory

import (
	"strings"

	"github.com/mamadbah2/assetscan/internal/domain/models"
)

// Match returns the index of the first row whose value in any of columns
// equals identifier after trimming. Rows are scanned in order and, within a
// row, columns in the order given. Negative columns are skipped.
func Match(sheet *models.Sheet, identifier string, columns []int) (int, bool) {
	row, _, ok := matchCell(sheet, identifier, columns)
	return row, ok
}

func matchCell(sheet *models.Sheet, identifier string, columns []int) (int, int, bool) {
	identifier = strings.TrimSpace(identifier)
	if sheet == nil || identifier == "" {
		return 0, 0, false
	}

	for row := 0; row < sheet.Len(); row++ {
		for _, col := range columns {
			if col < 0 {
				continue
			}
			if sheet.Cell(row, col) == identifier {
				return row, col, true
			}
		}
	}
	return 0, 0, false
}
