package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mamadbah2/assetscan/internal/config"
	"github.com/mamadbah2/assetscan/internal/domain/models"
	"github.com/mamadbah2/assetscan/internal/repository/mongodb"
	"github.com/mamadbah2/assetscan/internal/repository/sheets"
	"github.com/mamadbah2/assetscan/internal/repository/sqlite"
	"github.com/mamadbah2/assetscan/internal/repository/workbook"
	"github.com/mamadbah2/assetscan/internal/service/inventory"
)

// auditHistory is implemented by the audit backends.
type auditHistory interface {
	RecentScans(ctx context.Context, limit int) ([]models.ScanEvent, error)
	LatestProgress(ctx context.Context) (models.ProgressSnapshot, bool, error)
	Close(ctx context.Context) error
}

type commandContext struct {
	envFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	store   workbook.Store
	service *inventory.Service
}

func newCommandContext(envFlag *string) *commandContext {
	return &commandContext{envFlag: envFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.envFlag != nil {
			path = strings.TrimSpace(*c.envFlag)
		}
		c.config, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

func (c *commandContext) workbookStore(ctx context.Context) (workbook.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	if cfg.Store.Backend == config.BackendGSheets {
		repo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, zap.NewNop())
		if err != nil {
			return nil, err
		}
		c.store = repo
	} else {
		c.store = workbook.NewXLSXStore(cfg.Store.WorkbookPath, zap.NewNop())
	}
	return c.store, nil
}

// inventoryService runs without audit or notifications; the CLI is an operator tool.
func (c *commandContext) inventoryService(ctx context.Context) (*inventory.Service, error) {
	if c.service != nil {
		return c.service, nil
	}
	store, err := c.workbookStore(ctx)
	if err != nil {
		return nil, err
	}
	c.service = inventory.NewService(store, c.config.Layout, nil, nil, zap.NewNop())
	return c.service, nil
}

func (c *commandContext) auditHistory(ctx context.Context) (auditHistory, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	switch cfg.Audit.Backend {
	case config.AuditSQLite:
		return sqlite.Open(ctx, cfg.Audit.SQLitePath)
	case config.AuditMongoDB:
		return mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
	default:
		return nil, fmt.Errorf("scan history requires AUDIT_BACKEND=sqlite or mongodb (current %q)", cfg.Audit.Backend)
	}
}

func (c *commandContext) close() {
	if c.service != nil {
		c.service.Close()
		c.service = nil
	}
}
