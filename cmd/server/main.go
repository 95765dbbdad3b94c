package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/assetscan/internal/config"
	"github.com/mamadbah2/assetscan/internal/repository/mongodb"
	"github.com/mamadbah2/assetscan/internal/repository/sheets"
	"github.com/mamadbah2/assetscan/internal/repository/sqlite"
	"github.com/mamadbah2/assetscan/internal/repository/workbook"
	"github.com/mamadbah2/assetscan/internal/scheduler"
	"github.com/mamadbah2/assetscan/internal/server/handlers"
	"github.com/mamadbah2/assetscan/internal/server/router"
	"github.com/mamadbah2/assetscan/internal/service/inventory"
	"github.com/mamadbah2/assetscan/pkg/clients/notify"
	"github.com/mamadbah2/assetscan/pkg/logger"
)

// auditRepository is implemented by every audit backend.
type auditRepository interface {
	inventory.AuditRecorder
	Close(ctx context.Context) error
}

func main() {
	envFile := flag.String("env", "", "path to a .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	for _, warning := range cfg.Layout.Warnings() {
		baseLogger.Warn("layout warning", zap.String("detail", warning))
	}

	store, err := openStore(context.Background(), cfg, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to init workbook store", zap.Error(err))
	}
	baseLogger.Info("workbook store ready", zap.String("store", store.Describe()))

	audit, err := openAudit(context.Background(), cfg)
	if err != nil {
		baseLogger.Fatal("failed to init audit repository", zap.Error(err), zap.String("backend", cfg.Audit.Backend))
	}
	var recorder inventory.AuditRecorder
	if audit != nil {
		recorder = audit
		defer func() {
			if err := audit.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close audit repository", zap.Error(err))
			}
		}()
		baseLogger.Info("scan audit enabled", zap.String("backend", cfg.Audit.Backend))
	}

	var notifier notify.Client
	if cfg.Notify.URL != "" {
		notifier = notify.NewClient(cfg.Notify)
		baseLogger.Info("notifications enabled")
	} else {
		baseLogger.Warn("notify url missing, notifications disabled")
	}

	inventorySvc := inventory.NewService(store, cfg.Layout, recorder, notifier, baseLogger.Named("svc.inventory"))
	defer inventorySvc.Close()

	barcodeHandler := handlers.NewBarcodeHandler(inventorySvc, baseLogger.Named("handlers.barcode"))
	engine := router.New(barcodeHandler, baseLogger.Named("router"))

	sched, err := scheduler.NewScheduler(cfg.Scheduler, cfg.Store, inventorySvc, notifier, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (workbook.Store, error) {
	if cfg.Store.Backend == config.BackendGSheets {
		return sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, log.Named("repo.sheets"))
	}
	return workbook.NewXLSXStore(cfg.Store.WorkbookPath, log.Named("repo.workbook")), nil
}

func openAudit(ctx context.Context, cfg *config.Config) (auditRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	switch cfg.Audit.Backend {
	case config.AuditMongoDB:
		return mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
	case config.AuditSQLite:
		return sqlite.Open(ctx, cfg.Audit.SQLitePath)
	default:
		return nil, nil
	}
}
