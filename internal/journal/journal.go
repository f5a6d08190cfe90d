// Package journal persists a local record of every executed command in
// SQLite. The journal is strictly best-effort: a write failure is logged
// and never surfaces into the poll cycle, since the control plane already
// holds the authoritative result.
//
// Uses modernc.org/sqlite (pure Go, no CGO) through the glebarez/sqlite
// GORM driver, with WAL mode for concurrent reads.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/remora-dev/remora/internal/protocol"
)

// Config holds SQLite-specific configuration.
type Config struct {
	Path        string // Database file path.
	JournalMode string // WAL mode by default.
}

// Entry is one executed command's persisted record.
type Entry struct {
	ID          string    `gorm:"primaryKey;type:text" json:"id"`
	ProjectCode string    `gorm:"index" json:"project_code"`
	CommandID   string    `gorm:"index" json:"command_id"`
	CommandType string    `json:"command_type"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	Data        string    `gorm:"type:text" json:"data,omitempty"` // JSON-encoded result data
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// TableName keeps the table name stable regardless of struct renames.
func (Entry) TableName() string {
	return "command_journal"
}

// Journal is the SQLite-backed command record.
type Journal struct {
	db     *gorm.DB
	logger *slog.Logger
	path   string
}

// Open creates the database file (and parent directory) if needed and
// migrates the schema.
func Open(cfg Config, slogger *slog.Logger) (*Journal, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("journal path is required")
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating journal directory %s: %w", dir, err)
	}

	journalMode := cfg.JournalMode
	if journalMode == "" {
		journalMode = "wal"
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(%s)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", cfg.Path, journalMode)

	gormLogger := logger.New(
		slogAdapter{slogger},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormLogger,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrating journal schema: %w", err)
	}

	slogger.Info("journal opened", slog.String("path", cfg.Path), slog.String("journal_mode", journalMode))
	return &Journal{db: db, logger: slogger, path: cfg.Path}, nil
}

// RecordCommand persists one command outcome. Failures are logged, never
// returned: the journal must not interfere with result submission.
func (j *Journal) RecordCommand(ctx context.Context, projectCode, commandID, cmdType string, result *protocol.CommandResult) {
	if j == nil {
		return
	}

	data := ""
	if result.Data != nil {
		if encoded, err := json.Marshal(result.Data); err == nil {
			data = string(encoded)
		}
	}

	entry := Entry{
		ID:          uuid.NewString(),
		ProjectCode: projectCode,
		CommandID:   commandID,
		CommandType: cmdType,
		Success:     result.Success,
		Error:       result.Error,
		Data:        data,
		CreatedAt:   time.Now().UTC(),
	}

	if err := j.db.WithContext(ctx).Create(&entry).Error; err != nil {
		j.logger.WarnContext(ctx, "journal write failed",
			slog.String("command_id", commandID),
			slog.String("error", err.Error()),
		)
	}
}

// Recent returns the newest entries, most recent first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []Entry
	err := j.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("listing journal entries: %w", err)
	}
	return entries, nil
}

// Prune deletes entries older than the cutoff and returns the count.
func (j *Journal) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res := j.db.WithContext(ctx).
		Where("created_at < ?", olderThan).
		Delete(&Entry{})
	if res.Error != nil {
		return 0, fmt.Errorf("pruning journal: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Ping verifies the database is reachable, for readiness checks.
func (j *Journal) Ping(ctx context.Context) error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// slogAdapter wraps *slog.Logger for GORM's logger.Writer interface.
type slogAdapter struct {
	logger *slog.Logger
}

func (s slogAdapter) Printf(format string, args ...any) {
	s.logger.Info(fmt.Sprintf(format, args...))
}
