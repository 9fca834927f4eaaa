package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kingrea/crosspost/internal/catalog"
)

func TestFileStoreMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))
	if _, err := store.Load(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("load missing err = %v, want ErrNotFound", err)
	}
	l, err := Open(store)
	if err != nil {
		t.Fatalf("open missing: %v", err)
	}
	if l.Len() != 0 {
		t.Fatalf("expected empty ledger")
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	cases := map[string]string{
		"truncated":        `{"version":1,"published":{"5":`,
		"empty":            "   \n",
		"bad sequence":     `{"version":1,"published":{"five":{"devto":{"published_at":"2026-02-13T09:00:02Z"}}}}`,
		"unknown platform": `{"version":1,"published":{"5":{"myspace":{"published_at":"2026-02-13T09:00:02Z"}}}}`,
		"future version":   `{"version":9,"published":{}}`,
		"trailing":         `{"version":1,"published":{}} {}`,
	}
	for name, body := range cases {
		path := filepath.Join(t.TempDir(), "publish_status.json")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := Open(NewFileStore(path))
		var corrupt *CorruptLedgerError
		if !errors.As(err, &corrupt) {
			t.Fatalf("%s: err = %v, want CorruptLedgerError", name, err)
		}
		if corrupt.Path != path {
			t.Fatalf("%s: corrupt path = %s", name, corrupt.Path)
		}
	}
}

func TestFileStoreFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "publish_status.json")
	store := NewFileStore(path)
	at := time.Date(2026, time.February, 13, 9, 0, 2, 0, time.UTC)
	err := store.Save(Snapshot{
		LastRunAt: time.Date(2026, time.February, 13, 9, 0, 4, 0, time.UTC),
		Records: []Record{
			{Sequence: 5, Platform: catalog.PlatformDevTo, PublishedAt: at, Reference: "https://dev.to/x"},
		},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{
		`"version": 1`,
		`"last_run_at": "2026-02-13T09:00:04Z"`,
		`"5": {`,
		`"devto": {`,
		`"published_at": "2026-02-13T09:00:02Z"`,
		`"reference": "https://dev.to/x"`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("ledger file missing %s:\n%s", want, text)
		}
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestFileStoreIgnoresAbsentSequences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "publish_status.json")
	body := `{"version":1,"published":{"2":{"gist":{"published_at":"2026-02-12T09:00:00Z"}}}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	l, err := Load(NewFileStore(path))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !l.HasPublished(2, catalog.PlatformGist) {
		t.Fatalf("expected 2/gist to be published")
	}
	if l.HasPublished(1, catalog.PlatformGist) || l.HasPublished(2, catalog.PlatformDevTo) {
		t.Fatalf("absent pairs must read as unpublished")
	}
	if !l.LastRunAt().IsZero() {
		t.Fatalf("last run should be zero when absent")
	}
}
