package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendXLSX    = "xlsx"
	BackendGSheets = "gsheets"
)

// Audit backends.
const (
	AuditNone    = "none"
	AuditMongoDB = "mongodb"
	AuditSQLite  = "sqlite"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Sheets    SheetsConfig
	Layout    LayoutConfig
	Audit     AuditConfig
	MongoDB   MongoDBConfig
	Notify    NotifyConfig
	Scheduler SchedulerConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port     string
	LogLevel string
}

// StoreConfig selects and configures the workbook backend.
type StoreConfig struct {
	Backend      string
	WorkbookPath string
	BackupDir    string
	BackupKeep   int
}

// SheetsConfig contains configuration required to interact with Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// AuditConfig selects where scan events and progress snapshots are recorded.
type AuditConfig struct {
	Backend    string
	SQLitePath string
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// NotifyConfig points at an ntfy-compatible topic URL. Empty disables notifications.
type NotifyConfig struct {
	URL   string
	Token string
}

// SchedulerConfig holds cron expressions for background jobs. An empty expression disables the job.
type SchedulerConfig struct {
	Timezone     string
	ProgressCron string
	BackupCron   string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are acceptable when configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	backupKeep, err := getenvInt("BACKUP_KEEP", 14)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:     getenvWithDefault("APP_PORT", "3000"),
			LogLevel: getenvWithDefault("LOG_LEVEL", "info"),
		},
		Store: StoreConfig{
			Backend:      strings.ToLower(getenvWithDefault("STORE_BACKEND", BackendXLSX)),
			WorkbookPath: os.Getenv("WORKBOOK_PATH"),
			BackupDir:    os.Getenv("BACKUP_DIR"),
			BackupKeep:   backupKeep,
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
		},
		Audit: AuditConfig{
			Backend:    strings.ToLower(getenvWithDefault("AUDIT_BACKEND", AuditNone)),
			SQLitePath: getenvWithDefault("AUDIT_SQLITE_PATH", "scan_audit.db"),
		},
		MongoDB: MongoDBConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "assetscan"),
		},
		Notify: NotifyConfig{
			URL:   os.Getenv("NOTIFY_URL"),
			Token: os.Getenv("NOTIFY_TOKEN"),
		},
		Scheduler: SchedulerConfig{
			Timezone:     getenvWithDefault("TIMEZONE", "America/Chicago"),
			ProgressCron: getenvWithDefault("PROGRESS_CRON", "0 18 * * *"),
			BackupCron:   getenvWithDefault("BACKUP_CRON", "0 2 * * *"),
		},
	}

	layout, err := loadLayout()
	if err != nil {
		return nil, err
	}
	cfg.Layout = layout

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch c.Store.Backend {
	case BackendXLSX:
		if c.Store.WorkbookPath == "" {
			return errors.New("WORKBOOK_PATH must be provided for the xlsx backend")
		}
	case BackendGSheets:
		if c.Sheets.CredentialsPath == "" {
			return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH must be provided")
		}
		if c.Sheets.SpreadsheetID == "" {
			return errors.New("GOOGLE_SHEET_DATABASE_ID must be provided")
		}
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.Store.Backend)
	}

	switch c.Audit.Backend {
	case AuditNone, "":
		c.Audit.Backend = AuditNone
	case AuditMongoDB:
		if c.MongoDB.URI == "" {
			return errors.New("MONGODB_URI must be provided for the mongodb audit backend")
		}
	case AuditSQLite:
		if c.Audit.SQLitePath == "" {
			return errors.New("AUDIT_SQLITE_PATH must not be empty")
		}
	default:
		return fmt.Errorf("unsupported AUDIT_BACKEND %q", c.Audit.Backend)
	}

	if c.Scheduler.Timezone == "" {
		return errors.New("TIMEZONE must be provided")
	}

	return c.Layout.Validate()
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
