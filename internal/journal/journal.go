// Package journal keeps a queryable history of dispatch attempts in SQLite.
// The ledger remains the source of truth for what is published; the journal
// only answers "what happened, and when" for the history command and the
// HTTP surface.
package journal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kingrea/crosspost/internal/catalog"
	"github.com/kingrea/crosspost/internal/events"
)

// FileName is the journal database inside the state directory.
const FileName = "journal.db"

// Entry is one persisted event row.
type Entry struct {
	ID        uint      `gorm:"primaryKey"`
	RunID     string    `gorm:"size:36;index"`
	At        time.Time `gorm:"index"`
	Type      string    `gorm:"size:32;index"`
	Level     string    `gorm:"size:8"`
	Mode      string    `gorm:"size:16"`
	Sequence  int       `gorm:"index"`
	Platform  string    `gorm:"size:32;index"`
	Attempt   int
	Outcome   string `gorm:"size:32"`
	Failure   string `gorm:"size:32"`
	Reference string
	Message   string
	CreatedAt time.Time
}

// TableName pins the table name.
func (Entry) TableName() string {
	return "journal_entries"
}

// Journal wraps the database handle.
type Journal struct {
	db *gorm.DB
}

// Open creates or migrates the journal at path. ":memory:" opens a private
// in-memory database.
func Open(path string) (*Journal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("journal: path is required")
	}
	if path != ":memory:" {
		if err := ensureParentDir(path); err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close releases the underlying connection pool.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// HandleEvent stores e as a row.
func (j *Journal) HandleEvent(e events.Event) error {
	if j == nil {
		return nil
	}
	at := e.Time
	if at.IsZero() {
		at = time.Now()
	}
	entry := Entry{
		RunID:     e.RunID,
		At:        at.UTC(),
		Type:      string(e.Type),
		Level:     string(e.Level),
		Mode:      e.Mode,
		Sequence:  e.Sequence,
		Platform:  string(e.Platform),
		Attempt:   e.Attempt,
		Outcome:   e.Outcome,
		Failure:   e.Failure,
		Reference: e.Reference,
		Message:   e.Message,
	}
	if err := j.db.Create(&entry).Error; err != nil {
		return fmt.Errorf("journal: insert: %w", err)
	}
	return nil
}

// Query filters the history listing. Zero fields match everything.
type Query struct {
	RunID    string
	Sequence int
	Platform catalog.Platform
	Types    []events.Type
	Limit    int
}

// List returns entries newest first.
func (j *Journal) List(q Query) ([]Entry, error) {
	tx := j.db.Model(&Entry{})
	if q.RunID != "" {
		if _, err := uuid.Parse(q.RunID); err != nil {
			tx = tx.Where("run_id LIKE ?", q.RunID+"%")
		} else {
			tx = tx.Where("run_id = ?", q.RunID)
		}
	}
	if q.Sequence > 0 {
		tx = tx.Where("sequence = ?", q.Sequence)
	}
	if q.Platform != "" {
		tx = tx.Where("platform = ?", string(q.Platform))
	}
	if len(q.Types) > 0 {
		names := make([]string, len(q.Types))
		for i, t := range q.Types {
			names[i] = string(t)
		}
		tx = tx.Where("type IN ?", names)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	var out []Entry
	if err := tx.Order("at DESC").Order("id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	return out, nil
}

// RunSummary aggregates one run.
type RunSummary struct {
	RunID     string
	Mode      string
	StartedAt time.Time
	Attempts  int
	Published int
	Failures  int
}

// Runs summarizes the most recent runs, newest first.
func (j *Journal) Runs(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	var starts []Entry
	if err := j.db.Where("type = ?", string(events.RunStarted)).
		Order("at DESC").Order("id DESC").Limit(limit).Find(&starts).Error; err != nil {
		return nil, fmt.Errorf("journal: runs: %w", err)
	}
	out := make([]RunSummary, 0, len(starts))
	for _, start := range starts {
		summary := RunSummary{RunID: start.RunID, Mode: start.Mode, StartedAt: start.At}
		var counts []struct {
			Type  string
			Total int
		}
		err := j.db.Model(&Entry{}).
			Select("type, count(*) as total").
			Where("run_id = ?", start.RunID).
			Group("type").
			Scan(&counts).Error
		if err != nil {
			return nil, fmt.Errorf("journal: runs: %w", err)
		}
		for _, c := range counts {
			switch events.Type(c.Type) {
			case events.Attempt:
				summary.Attempts = c.Total
			case events.Published:
				summary.Published = c.Total
			}
		}
		var failures int64
		if err := j.db.Model(&Entry{}).
			Where("run_id = ? AND type = ? AND outcome = ?", start.RunID, string(events.Attempt), "failure").
			Count(&failures).Error; err != nil {
			return nil, fmt.Errorf("journal: runs: %w", err)
		}
		summary.Failures = int(failures)
		out = append(out, summary)
	}
	return out, nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	return err
}
