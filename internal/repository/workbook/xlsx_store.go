package workbook

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/mamadbah2/assetscan/internal/domain/models"
)

const (
	lockRetryDelay     = 50 * time.Millisecond
	backupTimestamp    = "2006-01-02-150405"
	backupNameInfix    = ".backup."
	tempFilePattern    = ".%s-*%s"
	defaultBackupKeep  = 14
	lockFileSuffix     = ".lock"
	zeroNumericLiteral = "0"
)

// XLSXStore persists the inventory in a local .xlsx file. Every operation
// holds an advisory lock on a sibling lock file so separate processes never
// interleave their reads and writes.
type XLSXStore struct {
	path   string
	logger *zap.Logger
	now    func() time.Time
}

// NewXLSXStore builds a store over the workbook at path.
func NewXLSXStore(path string, logger *zap.Logger) *XLSXStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &XLSXStore{path: path, logger: logger, now: time.Now}
}

// Describe identifies the backing workbook file.
func (s *XLSXStore) Describe() string {
	return "xlsx:" + s.path
}

// Load reads every sheet of the workbook.
func (s *XLSXStore) Load(ctx context.Context) (*models.Workbook, error) {
	unlock, err := s.lock(ctx, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", s.path, err)
	}
	defer func() { _ = f.Close() }()

	var sheets []*models.Sheet
	for _, name := range f.GetSheetList() {
		sheet, err := s.readSheet(f, name)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, sheet)
	}

	s.logger.Debug("workbook loaded", zap.String("path", s.path), zap.Int("sheets", len(sheets)))
	return models.NewWorkbook(sheets...), nil
}

// Save applies the tracked edits to the workbook file. The result is written
// to a temporary file and renamed over the original, so a failure leaves the
// original untouched.
func (s *XLSXStore) Save(ctx context.Context, wb *models.Workbook) error {
	if wb == nil || !wb.Dirty() {
		return nil
	}

	unlock, err := s.lock(ctx, true)
	if err != nil {
		return err
	}
	defer unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("stat workbook %s: %w", s.path, err)
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return fmt.Errorf("open workbook %s: %w", s.path, err)
	}
	defer func() { _ = f.Close() }()

	edits := 0
	for _, sheet := range wb.Sheets() {
		if !sheet.Dirty() {
			continue
		}
		if err := applySheet(f, sheet); err != nil {
			return err
		}
		edits += len(sheet.Edits())
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.replace(f, info.Mode().Perm()); err != nil {
		return err
	}

	for _, sheet := range wb.Sheets() {
		if sheet.Dirty() && !sheet.Rewritten() {
			s.refreshFormulas(f, sheet)
		}
	}

	s.logger.Debug("workbook saved", zap.String("path", s.path), zap.Int("edits", edits))
	return nil
}

// Ping checks that the workbook file exists and is readable.
func (s *XLSXStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open workbook %s: %w", s.path, err)
	}
	return file.Close()
}

// Backup copies the workbook into dir as <name>.backup.<timestamp> and prunes
// the oldest copies beyond keep.
func (s *XLSXStore) Backup(ctx context.Context, dir string, keep int) (string, error) {
	if dir == "" {
		dir = filepath.Dir(s.path)
	}
	if keep <= 0 {
		keep = defaultBackupKeep
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir %s: %w", dir, err)
	}

	unlock, err := s.lock(ctx, false)
	if err != nil {
		return "", err
	}
	defer unlock()

	base := filepath.Base(s.path)
	dst := filepath.Join(dir, base+backupNameInfix+s.now().Format(backupTimestamp))
	if err := copyFile(s.path, dst); err != nil {
		return "", fmt.Errorf("copy workbook to %s: %w", dst, err)
	}

	if err := pruneBackups(dir, base, keep); err != nil {
		s.logger.Warn("failed to prune workbook backups", zap.String("dir", dir), zap.Error(err))
	}

	s.logger.Info("workbook backup written", zap.String("path", dst))
	return dst, nil
}

func (s *XLSXStore) lock(ctx context.Context, exclusive bool) (func(), error) {
	// A fresh Flock per call gives each operation its own descriptor, so
	// concurrent readers in this process hold independent shared locks.
	fl := flock.New(s.path + lockFileSuffix)

	var (
		ok  bool
		err error
	)
	if exclusive {
		ok, err = fl.TryLockContext(ctx, lockRetryDelay)
	} else {
		ok, err = fl.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		return nil, fmt.Errorf("lock workbook %s: %w", s.path, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock workbook %s: not acquired", s.path)
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("failed to release workbook lock", zap.String("path", s.path), zap.Error(err))
		}
	}, nil
}

func (s *XLSXStore) replace(f *excelize.File, mode os.FileMode) error {
	dir := filepath.Dir(s.path)
	ext := filepath.Ext(s.path)
	name := strings.TrimSuffix(filepath.Base(s.path), ext)

	tmp, err := os.CreateTemp(dir, fmt.Sprintf(tempFilePattern, name, ext))
	if err != nil {
		return fmt.Errorf("create temp workbook: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := f.Write(tmp); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp workbook: %w", err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("chmod temp workbook: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace workbook %s: %w", s.path, err)
	}

	committed = true
	return nil
}

func (s *XLSXStore) readSheet(f *excelize.File, name string) (*models.Sheet, error) {
	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", name, err)
	}

	// GetRows keeps every cell that carries a formula, even with an empty result.
	var formulas []models.CellRef
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			formula, err := f.GetCellFormula(name, cell)
			if err != nil {
				return nil, fmt.Errorf("formula %s!%s: %w", name, cell, err)
			}
			if formula != "" {
				row[c] = s.evaluate(f, name, cell, value)
				formulas = append(formulas, models.CellRef{Row: r, Col: c})
				continue
			}

			if strings.TrimSpace(value) != zeroNumericLiteral {
				continue
			}
			typ, err := f.GetCellType(name, cell)
			if err != nil {
				return nil, fmt.Errorf("cell type %s!%s: %w", name, cell, err)
			}
			if typ != excelize.CellTypeSharedString && typ != excelize.CellTypeInlineString {
				row[c] = ""
			}
		}
	}

	sheet := models.NewSheet(name, rows)
	for _, ref := range formulas {
		sheet.MarkFormula(ref.Row, ref.Col)
	}
	return sheet, nil
}

// evaluate computes a formula cell. The cached value is kept when the
// calculation engine cannot evaluate the formula.
func (s *XLSXStore) evaluate(f *excelize.File, sheet, cell, cached string) string {
	value, err := f.CalcCellValue(sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		s.logger.Debug("formula not evaluated", zap.String("cell", sheet+"!"+cell), zap.Error(err))
		return cached
	}
	if strings.TrimSpace(value) == zeroNumericLiteral {
		return ""
	}
	return value
}

func (s *XLSXStore) refreshFormulas(f *excelize.File, sheet *models.Sheet) {
	for _, ref := range sheet.Formulas() {
		cell, err := excelize.CoordinatesToCellName(ref.Col+1, ref.Row+1)
		if err != nil {
			continue
		}
		sheet.Refresh(ref.Row, ref.Col, s.evaluate(f, sheet.Name, cell, sheet.Cell(ref.Row, ref.Col)))
	}
}

func applySheet(f *excelize.File, sheet *models.Sheet) error {
	idx, err := f.GetSheetIndex(sheet.Name)
	if err != nil {
		return fmt.Errorf("lookup sheet %s: %w", sheet.Name, err)
	}
	if idx == -1 {
		if _, err := f.NewSheet(sheet.Name); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet.Name, err)
		}
	}

	if sheet.Rewritten() {
		return rewriteSheet(f, sheet)
	}

	for _, edit := range sheet.Edits() {
		cell, err := excelize.CoordinatesToCellName(edit.Col+1, edit.Row+1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet.Name, cell, edit.Value); err != nil {
			return fmt.Errorf("set %s!%s: %w", sheet.Name, cell, err)
		}
	}
	return nil
}

func rewriteSheet(f *excelize.File, sheet *models.Sheet) error {
	existing, err := f.GetRows(sheet.Name)
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", sheet.Name, err)
	}
	for r := len(existing); r >= 1; r-- {
		if err := f.RemoveRow(sheet.Name, r); err != nil {
			return fmt.Errorf("remove row %d of %s: %w", r, sheet.Name, err)
		}
	}

	for i, row := range sheet.Rows() {
		if len(row) == 0 {
			continue
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet.Name, cell, &values); err != nil {
			return fmt.Errorf("write row %d of %s: %w", i+1, sheet.Name, err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

func pruneBackups(dir, base string, keep int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	prefix := base + backupNameInfix
	var backups []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		backups = append(backups, entry.Name())
	}
	if len(backups) <= keep {
		return nil
	}

	// Timestamps sort lexically.
	sort.Strings(backups)
	for _, name := range backups[:len(backups)-keep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}
