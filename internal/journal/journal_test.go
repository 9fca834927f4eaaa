package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/kingrea/crosspost/internal/catalog"
	"github.com/kingrea/crosspost/internal/events"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestListFiltersAndOrders(t *testing.T) {
	j := openTestJournal(t)
	run := NewRunID()
	base := time.Date(2026, time.February, 13, 9, 0, 0, 0, time.UTC)
	for i, e := range []events.Event{
		{Type: events.RunStarted, Mode: "run"},
		{Type: events.Attempt, Sequence: 3, Platform: catalog.PlatformDevTo, Attempt: 1, Outcome: "success"},
		{Type: events.Published, Sequence: 3, Platform: catalog.PlatformDevTo, Reference: "https://dev.to/x"},
		{Type: events.Attempt, Sequence: 3, Platform: catalog.PlatformMedium, Attempt: 1, Outcome: "failure", Failure: "auth"},
	} {
		e.RunID = run
		e.Time = base.Add(time.Duration(i) * time.Second)
		if err := j.HandleEvent(e); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	all, err := j.List(Query{RunID: run[:8]})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("len = %d, want 4", len(all))
	}
	if all[0].Platform != string(catalog.PlatformMedium) {
		t.Fatalf("expected newest first, got %+v", all[0])
	}
	devto, err := j.List(Query{Platform: catalog.PlatformDevTo, Types: []events.Type{events.Published}})
	if err != nil {
		t.Fatalf("list devto: %v", err)
	}
	if len(devto) != 1 || devto[0].Reference != "https://dev.to/x" {
		t.Fatalf("devto entries = %+v", devto)
	}
	limited, err := j.List(Query{Limit: 2})
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("limit ignored: %d", len(limited))
	}
}

func TestRunsSummarizesAttempts(t *testing.T) {
	j := openTestJournal(t)
	run := NewRunID()
	for _, e := range []events.Event{
		{Type: events.RunStarted, Mode: "daemon"},
		{Type: events.Attempt, Outcome: "failure", Failure: "transient_network", Sequence: 1, Platform: catalog.PlatformGist},
		{Type: events.Attempt, Outcome: "success", Sequence: 1, Platform: catalog.PlatformGist},
		{Type: events.Published, Sequence: 1, Platform: catalog.PlatformGist},
	} {
		e.RunID = run
		if err := j.HandleEvent(e); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	runs, err := j.Runs(5)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %+v", runs)
	}
	got := runs[0]
	if got.RunID != run || got.Mode != "daemon" || got.Attempts != 2 || got.Published != 1 || got.Failures != 1 {
		t.Fatalf("summary = %+v", got)
	}
}

func TestOpenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", FileName)
	j, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer j.Close()
	if err := j.HandleEvent(events.Event{Type: events.RunStarted, RunID: NewRunID()}); err != nil {
		t.Fatalf("insert: %v", err)
	}
}
