package workbook

import (
	"context"

	"github.com/mamadbah2/assetscan/internal/domain/models"
)

// Store loads and persists the whole workbook. Implementations read every
// sheet on Load and write only the edits tracked by each sheet on Save.
// Formula cells are loaded with their evaluated value and marked on the
// sheet; Save refreshes the formula cells of the sheets it wrote so the
// in-memory workbook reflects the stored results.
type Store interface {
	Load(ctx context.Context) (*models.Workbook, error)
	Save(ctx context.Context, wb *models.Workbook) error
	Ping(ctx context.Context) error
	Describe() string
}

// Backupper is implemented by stores that can copy their backing file.
type Backupper interface {
	Backup(ctx context.Context, dir string, keep int) (string, error)
}
