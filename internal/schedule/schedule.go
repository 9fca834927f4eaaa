package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Cadence is the interval rule between successive publish dates.
type Cadence string

const (
	CadenceEveryDay   Cadence = "every-day"
	CadenceEveryNDays Cadence = "every-n-days"
)

// ParseCadence accepts the canonical names plus the legacy "daily" and
// "every_other_day" spellings. The returned interval is only meaningful for
// CadenceEveryNDays.
func ParseCadence(raw string) (Cadence, int, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "every-day", "daily":
		return CadenceEveryDay, 1, nil
	case "every-n-days", "interval":
		return CadenceEveryNDays, 0, nil
	case "every_other_day", "every-other-day":
		return CadenceEveryNDays, 2, nil
	default:
		return "", 0, fmt.Errorf("schedule: unknown cadence %q", raw)
	}
}

// Status classifies an item relative to today.
type Status string

const (
	StatusPending  Status = "pending"
	StatusDue      Status = "due"
	StatusOverdue  Status = "overdue"
	StatusComplete Status = "complete"
)

// Config is fixed for the lifetime of the process.
type Config struct {
	// StartDate is the civil date of the first item (time component ignored).
	StartDate time.Time
	Cadence   Cadence
	// IntervalDays is N for CadenceEveryNDays.
	IntervalDays int
	// PerDate groups that many consecutive items onto one date. Zero means one.
	PerDate int
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.StartDate.IsZero() {
		return fmt.Errorf("schedule: start date is required")
	}
	switch c.Cadence {
	case CadenceEveryDay:
	case CadenceEveryNDays:
		if c.IntervalDays < 1 {
			return fmt.Errorf("schedule: every-n-days cadence needs an interval >= 1, got %d", c.IntervalDays)
		}
	default:
		return fmt.Errorf("schedule: unknown cadence %q", c.Cadence)
	}
	if c.PerDate < 0 {
		return fmt.Errorf("schedule: per_date must be >= 0, got %d", c.PerDate)
	}
	return nil
}

// StepDays is the number of days between consecutive publish dates.
func (c Config) StepDays() int {
	if c.Cadence == CadenceEveryNDays && c.IntervalDays > 0 {
		return c.IntervalDays
	}
	return 1
}

func (c Config) perDate() int {
	if c.PerDate <= 0 {
		return 1
	}
	return c.PerDate
}

// ExpectedDate returns the civil date on which sequence is meant to publish.
func (c Config) ExpectedDate(sequence int) time.Time {
	slot := (sequence - 1) / c.perDate()
	return Civil(c.StartDate).AddDate(0, 0, slot*c.StepDays())
}

// DueStatus classifies sequence purely by date: pending before its expected
// date, due on it, overdue after it.
func DueStatus(sequence int, cfg Config, today time.Time) Status {
	expected := cfg.ExpectedDate(sequence)
	day := Civil(today)
	switch {
	case day.Before(expected):
		return StatusPending
	case day.Equal(expected):
		return StatusDue
	default:
		return StatusOverdue
	}
}

// Classify is DueStatus with ledger knowledge folded in: an item whose target
// platforms are all ledgered is complete regardless of date.
func Classify(sequence int, cfg Config, today time.Time, complete bool) Status {
	if complete {
		return StatusComplete
	}
	return DueStatus(sequence, cfg, today)
}

// Civil drops the clock component of t, keeping t's calendar date, and
// returns it as midnight UTC so dates compare with Equal.
func Civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a civil date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule: invalid date %q: %w", raw, err)
	}
	return t, nil
}

// Today returns the civil date of now in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return Civil(now.In(loc))
}
