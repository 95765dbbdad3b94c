package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/assetscan/internal/config"
	"github.com/mamadbah2/assetscan/internal/domain/models"
	"github.com/mamadbah2/assetscan/internal/service/inventory"
	"github.com/mamadbah2/assetscan/pkg/clients/notify"
)

const jobTimeout = 2 * time.Minute

// InventoryService is the subset of the inventory service used by scheduled jobs.
type InventoryService interface {
	SnapshotProgress(ctx context.Context) (models.ProgressSnapshot, error)
	BackupWorkbook(ctx context.Context, dir string, keep int) (string, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	svc      InventoryService
	notifier notify.Client
	cfg      config.SchedulerConfig
	store    config.StoreConfig
	logger   *zap.Logger
}

// NewScheduler creates a new scheduler running in the configured timezone.
func NewScheduler(cfg config.SchedulerConfig, store config.StoreConfig, svc InventoryService, notifier notify.Client, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		svc:      svc,
		notifier: notifier,
		cfg:      cfg,
		store:    store,
		logger:   logger,
	}, nil
}

// Start registers the configured jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler")

	if s.cfg.ProgressCron != "" {
		if _, err := s.cron.AddFunc(s.cfg.ProgressCron, s.snapshotProgress); err != nil {
			return fmt.Errorf("schedule progress snapshot: %w", err)
		}
	}

	if s.cfg.BackupCron != "" && s.backupsEnabled() {
		if _, err := s.cron.AddFunc(s.cfg.BackupCron, s.backupWorkbook); err != nil {
			return fmt.Errorf("schedule workbook backup: %w", err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) backupsEnabled() bool {
	return s.store.Backend == config.BackendXLSX && s.store.BackupDir != ""
}

func (s *Scheduler) snapshotProgress() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	snapshot, err := s.svc.SnapshotProgress(ctx)
	if err != nil {
		s.logger.Error("failed to take progress snapshot", zap.Error(err))
		return
	}

	s.logger.Info("progress snapshot taken",
		zap.Int("marked", snapshot.MarkedCount),
		zap.Int("total", snapshot.TotalCount))

	if s.notifier == nil {
		return
	}

	msg := notify.Message{
		Title:    "Inventory progress",
		Body:     progressMessage(snapshot),
		Priority: notify.PriorityLow,
		Tags:     []string{"clipboard"},
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Error("failed to send progress notification", zap.Error(err))
	} else {
		s.logger.Info("progress notification sent")
	}
}

func (s *Scheduler) backupWorkbook() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	path, err := s.svc.BackupWorkbook(ctx, s.store.BackupDir, s.store.BackupKeep)
	if errors.Is(err, inventory.ErrBackupUnsupported) {
		s.logger.Warn("backup skipped, store does not support it")
		return
	}
	if err != nil {
		s.logger.Error("failed to back up workbook", zap.Error(err))
		return
	}
	s.logger.Info("workbook backed up", zap.String("path", path))
}

func progressMessage(snapshot models.ProgressSnapshot) string {
	if snapshot.TotalCount <= 0 {
		return fmt.Sprintf("%d assets processed.", snapshot.MarkedCount)
	}
	pct := float64(snapshot.MarkedCount) * 100 / float64(snapshot.TotalCount)
	return fmt.Sprintf("%d of %d assets processed (%.1f%%).", snapshot.MarkedCount, snapshot.TotalCount, pct)
}
