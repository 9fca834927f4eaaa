package events

import (
	"errors"
	"testing"
	"time"

	"github.com/kingrea/crosspost/internal/catalog"
)

func TestMultiFansOutAndJoinsErrors(t *testing.T) {
	var first, second Recorder
	boom := errors.New("sink down")
	sink := Multi(&first, nil, SinkFunc(func(Event) error { return boom }), &second)
	err := sink.HandleEvent(Event{Type: Attempt, Sequence: 2, Platform: catalog.PlatformGist})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want joined sink error", err)
	}
	if len(first.Events()) != 1 || len(second.Events()) != 1 {
		t.Fatalf("failing sink must not stop delivery")
	}
}

func TestNormalizeDefaults(t *testing.T) {
	now := time.Date(2026, time.February, 13, 9, 0, 0, 0, time.FixedZone("X", 3600))
	e := Event{Type: RunStarted, Message: "  hello \n"}
	e.Normalize(now)
	if !e.Time.Equal(now) || e.Time.Location() != time.UTC {
		t.Fatalf("time = %s", e.Time)
	}
	if e.Level != LevelInfo || e.Message != "hello" {
		t.Fatalf("normalized = %+v", e)
	}
	if got := (Event{Sequence: 3, Platform: catalog.PlatformDevTo}).Subject(); got != "3/devto" {
		t.Fatalf("subject = %q", got)
	}
}
