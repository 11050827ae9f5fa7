// Package store keeps a SQLite ledger of task outcomes so an interrupted run
// can resume where it stopped.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Outcome names stored in TaskRecord.State.
const (
	StateSucceeded   = "succeeded"
	StateFailed      = "failed"
	StateSkipped     = "skipped"
	StateUnsupported = "unsupported"
)

// TaskRecord is one finished task within a run.
type TaskRecord struct {
	ID        uint      `gorm:"primaryKey"`
	RunID     string    `gorm:"size:36;not null;index:idx_run"`
	TaskKey   string    `gorm:"size:200;not null;index:idx_task"`
	Layout    string    `gorm:"size:40"`
	State     string    `gorm:"size:20;not null;index:idx_task"`
	Score     float64   `gorm:"default:0"`
	Graded    bool      `gorm:"default:false"`
	Attempts  int       `gorm:"default:0"`
	Warnings  int       `gorm:"default:0"`
	Detail    string    `gorm:"size:1000"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Ledger writes records for a single run. Reads for resuming look across all
// runs.
type Ledger struct {
	db    *gorm.DB
	runID string
}

// Open creates the database file and its directory when missing.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	if err := db.AutoMigrate(&TaskRecord{}); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return &Ledger{db: db, runID: uuid.NewString()}, nil
}

func (l *Ledger) RunID() string { return l.runID }

// Record stores rec under the current run.
func (l *Ledger) Record(ctx context.Context, rec TaskRecord) error {
	if rec.TaskKey == "" {
		return errors.New("record without task key")
	}
	rec.ID = 0
	rec.RunID = l.runID
	if len(rec.Detail) > 1000 {
		rec.Detail = rec.Detail[:1000]
	}
	if err := l.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("record %s: %w", rec.TaskKey, err)
	}
	return nil
}

// Succeeded reports whether any run finished key successfully.
func (l *Ledger) Succeeded(ctx context.Context, key string) (bool, error) {
	var n int64
	err := l.db.WithContext(ctx).Model(&TaskRecord{}).
		Where("task_key = ? AND state = ?", key, StateSucceeded).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", key, err)
	}
	return n > 0, nil
}

// Failed lists the current run's failed and unsupported tasks in the order
// they were recorded.
func (l *Ledger) Failed(ctx context.Context) ([]TaskRecord, error) {
	var recs []TaskRecord
	err := l.db.WithContext(ctx).
		Where("run_id = ? AND state IN ?", l.runID, []string{StateFailed, StateUnsupported}).
		Order("id").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list failed: %w", err)
	}
	return recs, nil
}

func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
