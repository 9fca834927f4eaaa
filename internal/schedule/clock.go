package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time used for the daemon's daily pass.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses 24h "HH:MM".
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("schedule: publish time %q must be HH:MM", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("schedule: invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("schedule: invalid minute in %q", raw)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// NextOccurrence returns the first instant strictly after now at which the
// wall clock in loc reads t.
func (t TimeOfDay) NextOccurrence(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	y, m, d := local.Date()
	next := time.Date(y, m, d, t.Hour, t.Minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(y, m, d+1, t.Hour, t.Minute, 0, 0, loc)
	}
	return next
}
