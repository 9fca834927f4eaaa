// Package events carries run notifications from the orchestrator to the log
// sinks. Sinks must not fail the run: an error from one sink is reported but
// never stops the fan-out.
package events

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kingrea/crosspost/internal/catalog"
)

// Type identifies what happened.
type Type string

const (
	RunStarted     Type = "run_started"
	RunFinished    Type = "run_finished"
	Attempt        Type = "attempt"
	Published      Type = "published"
	Skipped        Type = "skipped"
	ManualStaged   Type = "manual_staged"
	Confirmed      Type = "confirmed"
	Unrecorded     Type = "unrecorded"
	PlatformHalted Type = "platform_halted"
	DaemonState    Type = "daemon_state"
	CampaignDone   Type = "campaign_complete"
)

// Level mirrors the logbook severities.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Event is a single notification. Zero-valued fields are omitted by sinks.
type Event struct {
	RunID    string
	Time     time.Time
	Type     Type
	Level    Level
	Mode     string
	Sequence int
	Platform catalog.Platform
	// Attempt is 1-based for dispatch attempts.
	Attempt   int
	Outcome   string
	Failure   string
	Reference string
	Message   string
}

// Normalize fills defaults before the event reaches sinks.
func (e *Event) Normalize(now time.Time) {
	if e == nil {
		return
	}
	if e.Time.IsZero() {
		if now.IsZero() {
			now = time.Now()
		}
		e.Time = now.UTC()
	}
	if e.Level == "" {
		e.Level = LevelInfo
	}
	e.Message = strings.TrimSpace(e.Message)
}

// Subject renders "seq/platform" when the event concerns one pair.
func (e Event) Subject() string {
	switch {
	case e.Sequence > 0 && e.Platform != "":
		return fmt.Sprintf("%d/%s", e.Sequence, e.Platform)
	case e.Sequence > 0:
		return fmt.Sprintf("%d", e.Sequence)
	default:
		return string(e.Platform)
	}
}

// Sink consumes events.
type Sink interface {
	HandleEvent(Event) error
}

// SinkFunc adapts a function into a Sink.
type SinkFunc func(Event) error

// HandleEvent executes f(e).
func (f SinkFunc) HandleEvent(e Event) error {
	if f == nil {
		return nil
	}
	return f(e)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) error { return nil })

type multi struct {
	sinks []Sink
}

// Multi fans an event out to every non-nil sink and joins their errors.
func Multi(sinks ...Sink) Sink {
	var kept []Sink
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &multi{sinks: kept}
}

func (m *multi) HandleEvent(e Event) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.HandleEvent(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps every event in memory. Tests and the HTTP surface use it.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// HandleEvent appends e.
func (r *Recorder) HandleEvent(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType filters recorded events by type.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
