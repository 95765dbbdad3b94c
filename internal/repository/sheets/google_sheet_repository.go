package sheets

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/assetscan/internal/config"
	"github.com/mamadbah2/assetscan/internal/domain/models"
	"github.com/mamadbah2/assetscan/internal/retry"
)

const (
	// RAW keeps scanned codes such as "=1" from being evaluated as formulas.
	valueInputOption    = "RAW"
	valueRenderOption   = "UNFORMATTED_VALUE"
	formulaRenderOption = "FORMULA"
)

// GoogleSheetRepository stores the inventory workbook in a Google spreadsheet.
// Reads are retried; writes are not.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	readRetry     retry.Config
	logger        *zap.Logger
}

// NewGoogleSheetRepository builds a Google Sheets backed repository instance.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger, opts ...option.ClientOption) (*GoogleSheetRepository, error) {
	if len(opts) == 0 {
		opts = []option.ClientOption{
			option.WithCredentialsFile(cfg.CredentialsPath),
			option.WithScopes(sheetsapi.SpreadsheetsScope),
		}
	}

	service, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return newRepository(service, cfg.SpreadsheetID, logger), nil
}

func newRepository(service *sheetsapi.Service, spreadsheetID string, logger *zap.Logger) *GoogleSheetRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: spreadsheetID,
		readRetry:     retry.DefaultReadConfig,
		logger:        logger,
	}
}

// Describe identifies the backing spreadsheet.
func (r *GoogleSheetRepository) Describe() string {
	return "gsheets:" + r.spreadsheetID
}

// Ping verifies the spreadsheet is reachable with the configured credentials.
func (r *GoogleSheetRepository) Ping(ctx context.Context) error {
	_, err := retry.Do(ctx, r.readRetry, r.logger, func(ctx context.Context) (*sheetsapi.Spreadsheet, error) {
		return r.service.Spreadsheets.Get(r.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("get spreadsheet %s: %w", r.spreadsheetID, err)
	}
	return nil
}

// Load reads the values and the formulas of every sheet, one batch request each.
func (r *GoogleSheetRepository) Load(ctx context.Context) (*models.Workbook, error) {
	return retry.Do(ctx, r.readRetry, r.logger, r.load)
}

func (r *GoogleSheetRepository) load(ctx context.Context) (*models.Workbook, error) {
	meta, err := r.service.Spreadsheets.Get(r.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}

	names := make([]string, 0, len(meta.Sheets))
	ranges := make([]string, 0, len(meta.Sheets))
	for _, sheet := range meta.Sheets {
		if sheet.Properties == nil {
			continue
		}
		names = append(names, sheet.Properties.Title)
		ranges = append(ranges, quoteSheet(sheet.Properties.Title))
	}
	if len(names) == 0 {
		return models.NewWorkbook(), nil
	}

	values, err := r.batchGet(ctx, ranges, valueRenderOption)
	if err != nil {
		return nil, fmt.Errorf("read sheets: %w", err)
	}
	formulas, err := r.batchGet(ctx, ranges, formulaRenderOption)
	if err != nil {
		return nil, fmt.Errorf("read formulas: %w", err)
	}
	if len(values) != len(names) || len(formulas) != len(names) {
		return nil, fmt.Errorf("read sheets: expected %d ranges, got %d and %d", len(names), len(values), len(formulas))
	}

	sheets := make([]*models.Sheet, 0, len(names))
	for i, vr := range values {
		sheet := models.NewSheet(names[i], toStrings(vr.Values))
		markFormulas(sheet, vr.Values, formulas[i].Values)
		sheets = append(sheets, sheet)
	}

	r.logger.Debug("spreadsheet loaded", zap.String("spreadsheet_id", r.spreadsheetID), zap.Int("sheets", len(sheets)))
	return models.NewWorkbook(sheets...), nil
}

func (r *GoogleSheetRepository) batchGet(ctx context.Context, ranges []string, render string) ([]*sheetsapi.ValueRange, error) {
	resp, err := r.service.Spreadsheets.Values.BatchGet(r.spreadsheetID).
		Ranges(ranges...).
		ValueRenderOption(render).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return resp.ValueRanges, nil
}

// Save creates missing sheets, then writes every cell edit and every
// rewritten sheet in one values request. Rewritten sheets are padded with
// empty strings over their loaded extent so stale rows are blanked by the
// same request that writes the new ones.
func (r *GoogleSheetRepository) Save(ctx context.Context, wb *models.Workbook) error {
	if wb == nil || !wb.Dirty() {
		return nil
	}

	var (
		addRequests []*sheetsapi.Request
		data        []*sheetsapi.ValueRange
		rewrites    int
		edits       int
	)
	for _, sheet := range wb.Sheets() {
		if !sheet.Dirty() {
			continue
		}
		if sheet.Created() {
			addRequests = append(addRequests, &sheetsapi.Request{
				AddSheet: &sheetsapi.AddSheetRequest{Properties: &sheetsapi.SheetProperties{Title: sheet.Name}},
			})
		}
		if sheet.Rewritten() {
			rewrites++
			if vr := rewriteRange(sheet); vr != nil {
				data = append(data, vr)
			}
			continue
		}
		for _, edit := range sheet.Edits() {
			cell, err := excelize.CoordinatesToCellName(edit.Col+1, edit.Row+1)
			if err != nil {
				return err
			}
			data = append(data, &sheetsapi.ValueRange{
				Range:  quoteSheet(sheet.Name) + "!" + cell,
				Values: [][]interface{}{{edit.Value}},
			})
			edits++
		}
	}

	if len(addRequests) > 0 {
		req := &sheetsapi.BatchUpdateSpreadsheetRequest{Requests: addRequests}
		if _, err := r.service.Spreadsheets.BatchUpdate(r.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("add sheets: %w", err)
		}
	}

	if len(data) > 0 {
		req := &sheetsapi.BatchUpdateValuesRequest{ValueInputOption: valueInputOption, Data: data}
		if _, err := r.service.Spreadsheets.Values.BatchUpdate(r.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("update cells: %w", err)
		}
	}

	r.refreshFormulas(ctx, wb)

	r.logger.Debug("spreadsheet saved",
		zap.String("spreadsheet_id", r.spreadsheetID),
		zap.Int("added_sheets", len(addRequests)),
		zap.Int("rewritten_sheets", rewrites),
		zap.Int("edits", edits))
	return nil
}

// refreshFormulas re-reads the sheets whose formula cells may have changed.
// A failed read keeps the previous results; the write itself has succeeded.
func (r *GoogleSheetRepository) refreshFormulas(ctx context.Context, wb *models.Workbook) {
	var (
		targets []*models.Sheet
		ranges  []string
	)
	for _, sheet := range wb.Sheets() {
		if !sheet.Dirty() || sheet.Rewritten() || len(sheet.Formulas()) == 0 {
			continue
		}
		targets = append(targets, sheet)
		ranges = append(ranges, quoteSheet(sheet.Name))
	}
	if len(targets) == 0 {
		return
	}

	values, err := r.batchGet(ctx, ranges, valueRenderOption)
	if err == nil && len(values) != len(targets) {
		err = fmt.Errorf("expected %d ranges, got %d", len(targets), len(values))
	}
	if err != nil {
		r.logger.Warn("failed to refresh formula results", zap.String("spreadsheet_id", r.spreadsheetID), zap.Error(err))
		return
	}

	for i, sheet := range targets {
		fresh := models.NewSheet(sheet.Name, toStrings(values[i].Values))
		for _, ref := range sheet.Formulas() {
			sheet.Refresh(ref.Row, ref.Col, fresh.Cell(ref.Row, ref.Col))
		}
	}
}

func rewriteRange(sheet *models.Sheet) *sheetsapi.ValueRange {
	rows := sheet.Rows()
	height, width := sheet.LoadedExtent()
	height = max(height, len(rows))
	for _, row := range rows {
		width = max(width, len(row))
	}
	if height == 0 || width == 0 {
		return nil
	}

	values := make([][]interface{}, height)
	for i := range values {
		values[i] = make([]interface{}, width)
		for j := range values[i] {
			values[i][j] = ""
			if i < len(rows) && j < len(rows[i]) {
				values[i][j] = rows[i][j]
			}
		}
	}
	return &sheetsapi.ValueRange{Range: quoteSheet(sheet.Name) + "!A1", Values: values}
}

// markFormulas flags the cells whose formula rendering differs from their
// value. A text value that merely starts with "=" renders the same both ways.
func markFormulas(sheet *models.Sheet, values, formulas [][]interface{}) {
	for i, row := range formulas {
		for j, raw := range row {
			text, ok := raw.(string)
			if !ok || !strings.HasPrefix(text, "=") {
				continue
			}
			if i < len(values) && j < len(values[i]) {
				if v, ok := values[i][j].(string); ok && v == text {
					continue
				}
			}
			sheet.MarkFormula(i, j)
		}
	}
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func toStrings(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = models.CellString(v)
		}
		rows[i] = cells
	}
	return rows
}
