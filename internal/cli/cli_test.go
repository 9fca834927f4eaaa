package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kingrea/crosspost/internal/catalog"
	"github.com/kingrea/crosspost/internal/config"
	"github.com/kingrea/crosspost/internal/dispatch"
	"github.com/kingrea/crosspost/internal/orchestrator"
)

var fixedNow = time.Date(2026, time.February, 13, 9, 0, 0, 0, time.UTC)

const testConfig = `version: 1
catalog: articles.json
author: Ada
schedule:
  start_date: "2026-02-11"
  cadence: every-day
  per_date: 1
  timezone: UTC
  publish_time: "09:00"
platforms:
  default: [devto]
handoff:
  auto_open: false
  clipboard: false
`

type stubPublisher struct {
	mu    sync.Mutex
	calls []string
}

func (s *stubPublisher) Publish(_ context.Context, item catalog.Item, platform catalog.Platform) dispatch.Outcome {
	s.mu.Lock()
	s.calls = append(s.calls, fmt.Sprintf("%d/%s", item.Sequence, platform))
	s.mu.Unlock()
	if platform == catalog.PlatformLinkedIn {
		return dispatch.ManualStepRequired(dispatch.Prepared{
			Sequence: item.Sequence, Platform: platform, Title: item.Title, Body: item.Body,
		})
	}
	return dispatch.Success(fmt.Sprintf("https://dev.to/ada/%d", item.Sequence))
}

func (s *stubPublisher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	items := []map[string]any{
		{"sequence": 1, "title": "One", "body": "First post.", "tags": []string{"go"}},
		{"sequence": 2, "title": "Two", "body": "Second post.", "platforms": []string{"devto", "linkedin"}},
		{"sequence": 3, "title": "Three", "body": "Third post."},
		{"sequence": 4, "title": "Four", "body": "Fourth post."},
	}
	data, err := json.Marshal(items)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "articles.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, config.FileName), []byte(testConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func testOptions(pub orchestrator.Publisher) Options {
	return Options{
		Now:       func() time.Time { return fixedNow },
		Lookup:    func(string) (string, bool) { return "", false },
		Publisher: pub,
		Sleep:     func(context.Context, time.Duration) error { return nil },
		In:        strings.NewReader(""),
	}
}

func execute(t *testing.T, dir string, opts Options, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(opts)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--dir", dir}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestRunStatusConfirmFlow(t *testing.T) {
	dir := newProject(t)
	pub := &stubPublisher{}
	opts := testOptions(pub)

	out, err := execute(t, dir, opts, "run")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "published=3") || !strings.Contains(out, "awaiting-confirmation=1") {
		t.Fatalf("run summary:\n%s", out)
	}
	if pub.count() != 4 {
		t.Fatalf("calls = %v", pub.calls)
	}
	if _, err := os.Stat(filepath.Join(dir, ".crosspost", "publish_status.json")); err != nil {
		t.Fatalf("ledger not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".crosspost", "handoff", "linkedin_2.md")); err != nil {
		t.Fatalf("hand-off not staged: %v", err)
	}

	// A second pass publishes nothing new.
	out, err = execute(t, dir, opts, "run")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if pub.count() != 5 || !strings.Contains(out, "already-done=1") {
		t.Fatalf("second run calls=%v\n%s", pub.calls, out)
	}

	out, err = execute(t, dir, opts, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "complete=2") || !strings.Contains(out, "overdue=1") || !strings.Contains(out, "remaining: linkedin") {
		t.Fatalf("status:\n%s", out)
	}

	out, err = execute(t, dir, opts, "confirm", "--list")
	if err != nil || !strings.Contains(out, "linkedin_2.md") {
		t.Fatalf("confirm --list: %v\n%s", err, out)
	}
	out, err = execute(t, dir, opts, "confirm", "2", "linkedin", "--ref", "https://linkedin.com/pulse/two")
	if err != nil || !strings.Contains(out, "Recorded #2 on LINKEDIN") {
		t.Fatalf("confirm: %v\n%s", err, out)
	}
	if _, err := execute(t, dir, opts, "confirm", "2", "linkedin"); err == nil {
		t.Fatalf("second confirm should fail")
	}

	out, err = execute(t, dir, opts, "history")
	if err != nil || !strings.Contains(out, "Recent runs (2)") {
		t.Fatalf("history: %v\n%s", err, out)
	}
	out, err = execute(t, dir, opts, "logs", "--lines", "3")
	if err != nil || len(strings.Split(strings.TrimSpace(out), "\n")) < 3 {
		t.Fatalf("logs: %v\n%s", err, out)
	}
}

func TestDryRunWritesNothing(t *testing.T) {
	dir := newProject(t)
	pub := &stubPublisher{}
	out, err := execute(t, dir, testOptions(pub), "run", "--dry-run")
	if err != nil {
		t.Fatalf("dry-run: %v", err)
	}
	if pub.count() != 0 {
		t.Fatalf("dry-run dispatched: %v", pub.calls)
	}
	if !strings.Contains(out, "planned") {
		t.Fatalf("dry-run output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, ".crosspost", "publish_status.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("dry-run wrote the ledger: %v", err)
	}
}

func TestRunDayForcesOneItem(t *testing.T) {
	dir := newProject(t)
	pub := &stubPublisher{}
	if _, err := execute(t, dir, testOptions(pub), "run", "--day", "4"); err != nil {
		t.Fatalf("run --day: %v", err)
	}
	if len(pub.calls) != 1 || pub.calls[0] != "4/devto" {
		t.Fatalf("calls = %v", pub.calls)
	}

	_, err := execute(t, dir, testOptions(pub), "run", "--day", "9")
	if !errors.Is(err, orchestrator.ErrUnknownSequence) || ExitCode(err) != ExitFailure {
		t.Fatalf("unknown day err = %v", err)
	}
}

func TestInteractiveRunRecordsConfirmation(t *testing.T) {
	dir := newProject(t)
	opts := testOptions(&stubPublisher{})
	opts.In = strings.NewReader("y\nhttps://linkedin.com/pulse/two\n")
	out, err := execute(t, dir, opts, "run", "--interactive")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "Published it? [y/N]") || !strings.Contains(out, "published=4") {
		t.Fatalf("interactive run:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, ".crosspost", "handoff", "linkedin_2.md")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("confirmed hand-off file should be cleared: %v", err)
	}
}

func TestConfigErrorsExitTwo(t *testing.T) {
	cases := []struct {
		name  string
		setup func(t *testing.T, dir string)
	}{
		{"missing catalog", func(t *testing.T, dir string) {
			if err := os.Remove(filepath.Join(dir, "articles.json")); err != nil {
				t.Fatal(err)
			}
		}},
		{"corrupt ledger", func(t *testing.T, dir string) {
			state := filepath.Join(dir, ".crosspost")
			if err := os.MkdirAll(state, 0o755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(state, "publish_status.json"), []byte("{not json"), 0o644); err != nil {
				t.Fatal(err)
			}
		}},
		{"bad cadence", func(t *testing.T, dir string) {
			cfg := strings.Replace(testConfig, "every-day", "hourly", 1)
			if err := os.WriteFile(filepath.Join(dir, config.FileName), []byte(cfg), 0o644); err != nil {
				t.Fatal(err)
			}
		}},
		{"unknown platform", func(t *testing.T, dir string) {
			data := `[{"sequence": 1, "title": "One", "body": "b", "platforms": ["myspace"]}]`
			if err := os.WriteFile(filepath.Join(dir, "articles.json"), []byte(data), 0o644); err != nil {
				t.Fatal(err)
			}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := newProject(t)
			tc.setup(t, dir)
			_, err := execute(t, dir, testOptions(&stubPublisher{}), "run")
			if ExitCode(err) != ExitConfigError {
				t.Fatalf("exit = %d, err = %v", ExitCode(err), err)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	if ExitCode(nil) != ExitOK {
		t.Fatalf("nil should exit 0")
	}
	if ExitCode(errors.New("boom")) != ExitFailure {
		t.Fatalf("plain error should exit 1")
	}
	wrapped := fmt.Errorf("run: %w", orchestrator.NewConfigError(errors.New("no catalog")))
	if ExitCode(wrapped) != ExitConfigError {
		t.Fatalf("config error should exit 2")
	}
}

func TestScheduleAndPreview(t *testing.T) {
	dir := newProject(t)
	opts := testOptions(&stubPublisher{})
	out, err := execute(t, dir, opts, "schedule")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if !strings.Contains(out, "Fri 2026-02-13") || !strings.Contains(out, "[devto, linkedin]") {
		t.Fatalf("schedule:\n%s", out)
	}

	out, err = execute(t, dir, opts, "preview", "1")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !strings.Contains(out, "Wednesday, February 11, 2026") || !strings.Contains(out, "#go") || !strings.Contains(out, "~2 words") {
		t.Fatalf("preview:\n%s", out)
	}
	if _, err := execute(t, dir, opts, "preview", "7"); !errors.Is(err, orchestrator.ErrUnknownSequence) {
		t.Fatalf("preview unknown = %v", err)
	}
}

func TestExportWritesSite(t *testing.T) {
	dir := newProject(t)
	site := filepath.Join(t.TempDir(), "site")
	out, err := execute(t, dir, testOptions(&stubPublisher{}), "export", "--out", site)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, "Exported 4 page(s)") {
		t.Fatalf("export:\n%s", out)
	}
	index, err := os.ReadFile(filepath.Join(site, "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(index), "Articles by Ada") {
		t.Fatalf("index title missing")
	}
}

func TestInitCreatesConfigOnce(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(&stubPublisher{})
	out, err := execute(t, dir, opts, "init")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, "Created") || !strings.Contains(out, "START_DATE") {
		t.Fatalf("init:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, ".crosspost", "handoff")); err != nil {
		t.Fatalf("state dir: %v", err)
	}
	out, err = execute(t, dir, opts, "init")
	if err != nil || !strings.Contains(out, "already exists") {
		t.Fatalf("second init: %v\n%s", err, out)
	}

	out, err = execute(t, dir, opts, "logs")
	if err != nil || !strings.Contains(out, "logbook is empty") {
		t.Fatalf("logs: %v\n%s", err, out)
	}
	out, err = execute(t, dir, opts, "history")
	if err != nil || !strings.Contains(out, "No run history") {
		t.Fatalf("history: %v\n%s", err, out)
	}
}
