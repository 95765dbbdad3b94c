package inventory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/assetscan/internal/config"
	"github.com/mamadbah2/assetscan/internal/domain/models"
	"github.com/mamadbah2/assetscan/internal/repository/workbook"
	"github.com/mamadbah2/assetscan/pkg/clients/notify"
)

const sideEffectTimeout = 5 * time.Second

// AuditRecorder persists scan events and progress snapshots.
type AuditRecorder interface {
	RecordScan(ctx context.Context, event models.ScanEvent) error
	RecordProgress(ctx context.Context, snapshot models.ProgressSnapshot) error
}

// Service applies scan submissions to the workbook. Every mutation runs on a
// single writer goroutine in arrival order; reads share a lock that excludes
// the writer so they always observe a fully saved workbook.
type Service struct {
	store    workbook.Store
	layout   config.LayoutConfig
	audit    AuditRecorder
	notifier notify.Client
	logger   *zap.Logger
	now      func() time.Time

	mu        sync.RWMutex
	jobs      chan *job
	closed    chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

type job struct {
	ctx  context.Context
	run  func(ctx context.Context) error
	done chan error
}

// NewService starts the writer and returns a ready service. audit and
// notifier are optional.
func NewService(store workbook.Store, layout config.LayoutConfig, audit AuditRecorder, notifier notify.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		store:    store,
		layout:   layout,
		audit:    audit,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		jobs:     make(chan *job),
		closed:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go s.writer()
	return s
}

// Layout returns the column layout the service was built with.
func (s *Service) Layout() config.LayoutConfig {
	return s.layout
}

// Submit matches the submission against the inventory and records the result.
func (s *Service) Submit(ctx context.Context, sub models.ScanSubmission) (models.MatchOutcome, error) {
	sub, err := normalizeSubmission(sub)
	if err != nil {
		return models.MatchOutcome{}, err
	}

	var outcome models.MatchOutcome
	err = s.enqueue(ctx, func(ctx context.Context) error {
		wb, inv, err := s.loadInventory(ctx)
		if err != nil {
			return err
		}

		if row, ok := Match(inv, sub.Identifier, s.layout.SearchColumns()); ok {
			outcome = UpdateRow(inv, s.layout, row, sub)
		} else {
			outcome = RecordUnmatched(wb.EnsureSheet(s.layout.UnmatchedSheet), sub.Identifier, sub.Location, sub.Room)
		}

		if err := s.save(ctx, wb); err != nil {
			return err
		}
		if outcome.Kind == models.OutcomeUpdated {
			// formula marked cells were re-evaluated by the store
			outcome.MarkedCount = CountMarked(inv, s.layout.StartRow, s.layout.EndRow, s.layout.MarkedColumn)
		}
		return nil
	})
	if err != nil {
		return models.MatchOutcome{}, err
	}

	s.logger.Info("scan processed",
		zap.String("identifier", sub.Identifier),
		zap.String("status", string(sub.Status)),
		zap.String("outcome", string(outcome.Kind)),
		zap.Int("row", outcome.RowNumber))

	s.afterSubmit(ctx, sub, outcome)
	return outcome, nil
}

// Lookup previews an identifier without changing the workbook.
func (s *Service) Lookup(ctx context.Context, identifier string) (models.LookupResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return models.LookupResult{}, fmt.Errorf("%w: barcode is required", ErrValidation)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, inv, err := s.loadInventory(ctx)
	if err != nil {
		return models.LookupResult{}, err
	}
	return Lookup(inv, s.layout, identifier), nil
}

// ListUnmatched returns the entries of the unmatched sheet. A missing sheet yields an empty list.
func (s *Service) ListUnmatched(ctx context.Context) ([]models.UnmatchedEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wb, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	sheet, _ := wb.Sheet(s.layout.UnmatchedSheet)
	return ListUnmatched(sheet), nil
}

// RemoveUnmatched deletes every unmatched entry for identifier.
func (s *Service) RemoveUnmatched(ctx context.Context, identifier string) (int, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return 0, fmt.Errorf("%w: barcode data is required", ErrValidation)
	}

	var removed int
	err := s.enqueue(ctx, func(ctx context.Context) error {
		wb, err := s.load(ctx)
		if err != nil {
			return err
		}
		sheet, ok := wb.Sheet(s.layout.UnmatchedSheet)
		if !ok {
			return nil
		}
		removed = RemoveUnmatched(sheet, identifier)
		return s.save(ctx, wb)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("unmatched entry removed", zap.String("identifier", identifier), zap.Int("removed", removed))
	return removed, nil
}

// ClearUnmatched empties the unmatched sheet and returns how many rows it held.
func (s *Service) ClearUnmatched(ctx context.Context) (int, error) {
	var cleared int
	err := s.enqueue(ctx, func(ctx context.Context) error {
		wb, err := s.load(ctx)
		if err != nil {
			return err
		}
		sheet, ok := wb.Sheet(s.layout.UnmatchedSheet)
		if !ok || sheet.Len() == 0 {
			return nil
		}
		cleared = sheet.Len()
		sheet.Clear()
		return s.save(ctx, wb)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("unmatched sheet cleared", zap.Int("rows", cleared))
	return cleared, nil
}

// Progress recounts the processed rows in the configured range.
func (s *Service) Progress(ctx context.Context) (models.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, inv, err := s.loadInventory(ctx)
	if err != nil {
		return models.Progress{}, err
	}
	return models.Progress{
		MarkedCount: CountMarked(inv, s.layout.StartRow, s.layout.EndRow, s.layout.MarkedColumn),
		TotalCount:  s.layout.TotalCount,
	}, nil
}

// SnapshotProgress recounts progress and records it with the audit backend.
func (s *Service) SnapshotProgress(ctx context.Context) (models.ProgressSnapshot, error) {
	progress, err := s.Progress(ctx)
	if err != nil {
		return models.ProgressSnapshot{}, err
	}

	snapshot := models.ProgressSnapshot{
		MarkedCount: progress.MarkedCount,
		TotalCount:  progress.TotalCount,
		TakenAt:     s.now().UTC(),
	}
	if s.audit != nil {
		if err := s.audit.RecordProgress(ctx, snapshot); err != nil {
			s.logger.Error("failed to record progress snapshot", zap.Error(err))
		}
	}
	return snapshot, nil
}

// BackupWorkbook copies the backing workbook into dir, keeping the newest keep copies.
func (s *Service) BackupWorkbook(ctx context.Context, dir string, keep int) (string, error) {
	backupper, ok := s.store.(workbook.Backupper)
	if !ok {
		return "", ErrBackupUnsupported
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	path, err := backupper.Backup(ctx, dir, keep)
	if err != nil {
		return "", fmt.Errorf("%w: backup workbook: %w", ErrStoreUnavailable, err)
	}
	return path, nil
}

// Health reports whether the backing workbook is reachable.
func (s *Service) Health(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// StoreName describes the backing workbook for health output.
func (s *Service) StoreName() string {
	return s.store.Describe()
}

// Close stops accepting writes and waits for the in-flight job to finish.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	<-s.stopped
}

func (s *Service) writer() {
	defer close(s.stopped)
	for {
		select {
		case j := <-s.jobs:
			j.done <- s.runJob(j)
		case <-s.closed:
			return
		}
	}
}

func (s *Service) runJob(j *job) error {
	if err := j.ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return j.run(j.ctx)
}

// enqueue hands fn to the writer and waits for its result.
func (s *Service) enqueue(ctx context.Context, fn func(ctx context.Context) error) error {
	j := &job{ctx: ctx, run: fn, done: make(chan error, 1)}

	select {
	case s.jobs <- j:
	case <-s.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-j.done
}

func (s *Service) load(ctx context.Context) (*models.Workbook, error) {
	wb, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load workbook: %w", ErrStoreUnavailable, err)
	}
	return wb, nil
}

func (s *Service) loadInventory(ctx context.Context) (*models.Workbook, *models.Sheet, error) {
	wb, err := s.load(ctx)
	if err != nil {
		return nil, nil, err
	}
	inv, ok := wb.Sheet(s.layout.InventorySheet)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrSectionMissing, s.layout.InventorySheet)
	}
	return wb, inv, nil
}

func (s *Service) save(ctx context.Context, wb *models.Workbook) error {
	if !wb.Dirty() {
		return nil
	}
	if err := s.store.Save(ctx, wb); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// afterSubmit records the audit event and raises alerts. Failures are logged only.
func (s *Service) afterSubmit(ctx context.Context, sub models.ScanSubmission, outcome models.MatchOutcome) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if s.audit != nil {
		event := models.ScanEvent{
			ID:         uuid.NewString(),
			Identifier: sub.Identifier,
			Status:     sub.Status,
			Location:   sub.Location,
			Room:       sub.Room,
			Outcome:    outcome.Kind,
			Label:      outcome.Label,
			RowNumber:  outcome.RowNumber,
			ScannedAt:  s.now().UTC(),
		}
		if err := s.audit.RecordScan(ctx, event); err != nil {
			s.logger.Error("failed to record scan event", zap.String("identifier", sub.Identifier), zap.Error(err))
		}
	}

	if s.notifier != nil && outcome.Kind == models.OutcomeUpdated && sub.Status == models.StatusStolen {
		msg := notify.Message{
			Title:    "Asset reported stolen",
			Body:     stolenMessage(sub, outcome),
			Priority: notify.PriorityHigh,
			Tags:     []string{"warning"},
		}
		if err := s.notifier.Send(ctx, msg); err != nil {
			s.logger.Error("failed to send stolen alert", zap.String("identifier", sub.Identifier), zap.Error(err))
		}
	}
}

func stolenMessage(sub models.ScanSubmission, outcome models.MatchOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (row %d)", sub.Identifier, outcome.RowNumber)
	if outcome.Label != "" {
		fmt.Fprintf(&b, " %s", outcome.Label)
	}
	if sub.Location != "" {
		fmt.Fprintf(&b, " at %s", sub.Location)
		if sub.Room != "" {
			fmt.Fprintf(&b, " room %s", sub.Room)
		}
	}
	return b.String()
}

func normalizeSubmission(sub models.ScanSubmission) (models.ScanSubmission, error) {
	sub.Identifier = strings.TrimSpace(sub.Identifier)
	if sub.Identifier == "" {
		return sub, fmt.Errorf("%w: barcode data is required", ErrValidation)
	}

	status, ok := models.ParseStatus(string(sub.Status))
	if !ok {
		return sub, fmt.Errorf("%w: unknown status %q", ErrValidation, sub.Status)
	}
	sub.Status = status
	sub.Location = strings.ToUpper(strings.TrimSpace(sub.Location))
	sub.Room = strings.TrimSpace(sub.Room)
	return sub, nil
}
