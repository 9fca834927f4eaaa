// Package logbook appends one human-readable line per run event to a plain
// text file next to the ledger.
package logbook

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kingrea/crosspost/internal/events"
)

// FileName is the logbook's name inside the state directory.
const FileName = "crosspost.log"

// Level represents the severity of a log entry.
type Level = events.Level

const (
	LevelInfo  = events.LevelInfo
	LevelWarn  = events.LevelWarn
	LevelError = events.LevelError
)

// Logbook persists run progress to a text file.
type Logbook struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// Option customizes a logbook.
type Option func(*Logbook)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Logbook) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a logbook that writes to the provided path.
func New(path string, opts ...Option) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logbook: ensure dir: %w", err)
	}
	l := &Logbook{path: path, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes a single entry stamped with the logbook clock.
func (l *Logbook) Append(level Level, message string) error {
	if l == nil {
		return nil
	}
	return l.write(l.now(), level, message)
}

func (l *Logbook) write(at time.Time, level Level, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	line := fmt.Sprintf("%s %-5s %s\n",
		at.UTC().Format(time.RFC3339),
		string(level),
		strings.TrimSpace(message),
	)
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("logbook: open: %w", err)
	}
	defer file.Close()
	if _, err := file.WriteString(line); err != nil {
		return fmt.Errorf("logbook: write: %w", err)
	}
	return nil
}

// HandleEvent formats e as one logbook line.
func (l *Logbook) HandleEvent(e events.Event) error {
	if l == nil {
		return nil
	}
	at := e.Time
	if at.IsZero() {
		at = l.now()
	}
	level := e.Level
	if level == "" {
		level = LevelInfo
	}
	return l.write(at, level, Format(e))
}

// Format renders the message portion of a logbook line.
func Format(e events.Event) string {
	parts := []string{string(e.Type)}
	if subject := e.Subject(); subject != "" {
		parts = append(parts, subject)
	}
	if e.Attempt > 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d", e.Attempt))
	}
	if e.Outcome != "" {
		parts = append(parts, "outcome="+e.Outcome)
	}
	if e.Failure != "" {
		parts = append(parts, "failure="+e.Failure)
	}
	if e.Reference != "" {
		parts = append(parts, "ref="+e.Reference)
	}
	if e.RunID != "" {
		parts = append(parts, "run="+shortID(e.RunID))
	}
	line := strings.Join(parts, " ")
	if e.Message != "" {
		line += ": " + e.Message
	}
	return line
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Tail returns up to maxLines of the most recent entries and the total line
// count.
func (l *Logbook) Tail(maxLines int) ([]string, int) {
	if l == nil || maxLines <= 0 {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	total := len(lines)
	if total > maxLines {
		lines = lines[total-maxLines:]
	}
	return lines, total
}

// Info appends an informational entry.
func (l *Logbook) Info(format string, args ...any) {
	_ = l.Append(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn appends a warning entry.
func (l *Logbook) Warn(format string, args ...any) {
	_ = l.Append(LevelWarn, fmt.Sprintf(format, args...))
}

// Error appends an error entry.
func (l *Logbook) Error(format string, args ...any) {
	_ = l.Append(LevelError, fmt.Sprintf(format, args...))
}
