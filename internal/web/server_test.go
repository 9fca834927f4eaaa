package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kingrea/crosspost/internal/catalog"
	"github.com/kingrea/crosspost/internal/dispatch"
	"github.com/kingrea/crosspost/internal/handoff"
	"github.com/kingrea/crosspost/internal/journal"
	"github.com/kingrea/crosspost/internal/ledger"
	"github.com/kingrea/crosspost/internal/orchestrator"
	"github.com/kingrea/crosspost/internal/schedule"
)

var fixedNow = time.Date(2026, time.February, 13, 9, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

func newBackend(t *testing.T) (*orchestrator.Orchestrator, *ledger.Ledger) {
	t.Helper()
	cat, err := catalog.New([]catalog.Item{
		{Sequence: 1, Title: "One", Body: "b", Platforms: []catalog.Platform{catalog.PlatformDevTo, catalog.PlatformLinkedIn}},
		{Sequence: 2, Title: "Two", Body: "b", Platforms: []catalog.Platform{catalog.PlatformLinkedIn}},
		{Sequence: 3, Title: "Three", Body: "b", Platforms: []catalog.Platform{catalog.PlatformDevTo}},
	})
	if err != nil {
		t.Fatal(err)
	}
	led := ledger.New()
	if err := led.Record(ledger.Record{Sequence: 1, Platform: catalog.PlatformDevTo, PublishedAt: fixedNow, Reference: "https://dev.to/x/one"}); err != nil {
		t.Fatal(err)
	}
	desk := handoff.NewDesk(filepath.Join(t.TempDir(), handoff.DirName))
	if _, err := desk.Stage(context.Background(), dispatch.Prepared{Sequence: 2, Platform: catalog.PlatformLinkedIn, Title: "Two", Body: "b"}); err != nil {
		t.Fatal(err)
	}
	o, err := orchestrator.New(cat,
		schedule.Config{StartDate: schedule.Date(2026, time.February, 12), Cadence: schedule.CadenceEveryDay},
		led, dispatch.New(nil),
		orchestrator.WithClock(func() time.Time { return fixedNow }),
		orchestrator.WithLocation(time.UTC),
		orchestrator.WithDesk(desk),
	)
	if err != nil {
		t.Fatal(err)
	}
	return o, led
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestStatusEndpoint(t *testing.T) {
	o, _ := newBackend(t)
	srv := NewServer(o, WithClock(func() time.Time { return fixedNow }))
	w := do(t, srv.Handler(), http.MethodGet, "/api/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d: %s", w.Code, w.Body.String())
	}
	var resp statusJSON
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Today != "2026-02-13" || len(resp.Items) != 3 {
		t.Fatalf("resp = %+v", resp)
	}
	first := resp.Items[0]
	if first.Status != "overdue" || len(first.Remaining) != 1 || first.Remaining[0] != "linkedin" {
		t.Fatalf("item 1 = %+v", first)
	}
	if len(first.Records) != 1 || first.Records[0].Reference != "https://dev.to/x/one" {
		t.Fatalf("records = %+v", first.Records)
	}
	if resp.Items[2].Status != "pending" {
		t.Fatalf("item 3 = %+v", resp.Items[2])
	}
}

func TestScheduleAndHandoffs(t *testing.T) {
	o, _ := newBackend(t)
	h := NewServer(o).Handler()

	w := do(t, h, http.MethodGet, "/api/schedule", nil)
	var entries []scheduleJSON
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 || entries[1].ExpectedDate != "2026-02-13" {
		t.Fatalf("schedule = %+v", entries)
	}

	w = do(t, h, http.MethodGet, "/api/handoffs", nil)
	var pending []handoffJSON
	if err := json.Unmarshal(w.Body.Bytes(), &pending); err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Sequence != 2 || pending[0].Platform != "linkedin" {
		t.Fatalf("handoffs = %+v", pending)
	}
}

func TestConfirmEndpoint(t *testing.T) {
	o, led := newBackend(t)
	h := NewServer(o).Handler()

	w := do(t, h, http.MethodPost, "/api/confirm", ConfirmRequest{Sequence: 2, Platform: "linkedin", Reference: "https://linkedin.com/pulse/two"})
	if w.Code != http.StatusCreated {
		t.Fatalf("confirm code = %d: %s", w.Code, w.Body.String())
	}
	if !led.HasPublished(2, catalog.PlatformLinkedIn) {
		t.Fatalf("confirmation not recorded")
	}
	w = do(t, h, http.MethodGet, "/api/handoffs", nil)
	if w.Body.String() != "[]" {
		t.Fatalf("handoffs after confirm = %s", w.Body.String())
	}

	cases := []struct {
		name string
		body any
		code int
	}{
		{"duplicate", ConfirmRequest{Sequence: 2, Platform: "linkedin"}, http.StatusConflict},
		{"unknown sequence", ConfirmRequest{Sequence: 9, Platform: "linkedin"}, http.StatusNotFound},
		{"unknown platform", ConfirmRequest{Sequence: 2, Platform: "myspace"}, http.StatusBadRequest},
		{"not targeted", ConfirmRequest{Sequence: 3, Platform: "linkedin"}, http.StatusUnprocessableEntity},
		{"bad body", "nope", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := do(t, h, http.MethodPost, "/api/confirm", tc.body); w.Code != tc.code {
				t.Fatalf("code = %d, want %d: %s", w.Code, tc.code, w.Body.String())
			}
		})
	}
}

type fullDiskStore struct{ snap ledger.Snapshot }

func (s *fullDiskStore) Load() (ledger.Snapshot, error) { return s.snap, nil }
func (s *fullDiskStore) Save(ledger.Snapshot) error    { return errors.New("no space left on device") }

func TestConfirmStorageFailureIsServerError(t *testing.T) {
	cat, err := catalog.New([]catalog.Item{
		{Sequence: 1, Title: "One", Body: "b", Platforms: []catalog.Platform{catalog.PlatformLinkedIn}},
	})
	if err != nil {
		t.Fatal(err)
	}
	led, err := ledger.Open(&fullDiskStore{})
	if err != nil {
		t.Fatal(err)
	}
	o, err := orchestrator.New(cat,
		schedule.Config{StartDate: schedule.Date(2026, time.February, 12), Cadence: schedule.CadenceEveryDay},
		led, dispatch.New(nil),
		orchestrator.WithClock(func() time.Time { return fixedNow }),
		orchestrator.WithLocation(time.UTC),
	)
	if err != nil {
		t.Fatal(err)
	}
	w := do(t, NewServer(o).Handler(), http.MethodPost, "/api/confirm", ConfirmRequest{Sequence: 1, Platform: "linkedin"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d, want 500: %s", w.Code, w.Body.String())
	}
	if led.HasPublished(1, catalog.PlatformLinkedIn) {
		t.Fatalf("failed write must not be recorded")
	}
}

func TestRunsEndpoint(t *testing.T) {
	o, _ := newBackend(t)
	if w := do(t, NewServer(o).Handler(), http.MethodGet, "/api/runs", nil); w.Code != http.StatusNotFound {
		t.Fatalf("runs without journal = %d", w.Code)
	}
	j, err := journal.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	w := do(t, NewServer(o, WithRuns(j)).Handler(), http.MethodGet, "/api/runs?limit=5", nil)
	if w.Code != http.StatusOK || w.Body.String() != "[]" {
		t.Fatalf("runs = %d %s", w.Code, w.Body.String())
	}
}

func TestServerLifecycle(t *testing.T) {
	o, _ := newBackend(t)
	srv := NewServer(o)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx, "127.0.0.1:0"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if srv.Status() != StatusReady || srv.Addr() == "" {
		t.Fatalf("status=%s addr=%q", srv.Status(), srv.Addr())
	}
	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	var health map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if health["status"] != "ready" {
		t.Fatalf("health = %v", health)
	}
	shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if srv.Status() != StatusDraining || srv.Addr() != "" {
		t.Fatalf("after shutdown status=%s addr=%q", srv.Status(), srv.Addr())
	}
}
