package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadJSONAcceptsLegacyDayField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "articles.json")
	body := `[
  {"day": 2, "title": "Second", "tags": ["go", "Go", " seo "], "body": "two words", "platforms": ["hashnode", "devto"]},
  {"sequence": 1, "title": "First", "tags": [], "body": "one", "platforms": ["linkedin", "dev.to", "devto"]}
]`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cat, err := Load(path, LoadOptions{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	items := cat.Items()
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Sequence != 1 || items[1].Sequence != 2 {
		t.Fatalf("items not sorted by sequence: %d, %d", items[0].Sequence, items[1].Sequence)
	}
	if got := items[0].Platforms; len(got) != 2 || got[0] != PlatformDevTo || got[1] != PlatformLinkedIn {
		t.Fatalf("unexpected platforms for item 1: %v", got)
	}
	if got := items[1].Platforms; got[0] != PlatformDevTo || got[1] != PlatformHashnode {
		t.Fatalf("platforms must follow dispatch order, got %v", got)
	}
	if got := items[1].Tags; len(got) != 2 || got[1] != "seo" {
		t.Fatalf("tags not cleaned: %v", got)
	}
	if items[1].WordCount() != 2 {
		t.Fatalf("word count = %d, want 2", items[1].WordCount())
	}
}

func TestLoadYAMLAppliesDefaultPlatforms(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "articles.yaml")
	body := strings.TrimSpace(`
- sequence: 1
  title: Hello
  body: hi
`)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cat, err := Load(path, LoadOptions{DefaultPlatforms: []Platform{PlatformLinkedIn, PlatformDevTo}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	item, ok := cat.Get(1)
	if !ok {
		t.Fatalf("item 1 missing")
	}
	if len(item.Platforms) != 2 || item.Platforms[0] != PlatformDevTo {
		t.Fatalf("expected default platforms, got %v", item.Platforms)
	}
}

func TestLoadRejectsUnknownPlatform(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "articles.json")
	if err := os.WriteFile(path, []byte(`[{"sequence":1,"title":"x","platforms":["myspace"]}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path, LoadOptions{})
	var unknown *UnknownPlatformError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownPlatformError, got %v", err)
	}
	if unknown.Name != "myspace" {
		t.Fatalf("unexpected platform name %q", unknown.Name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"), LoadOptions{})
	if !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("expected ErrCatalogNotFound, got %v", err)
	}
}

func TestNewValidatesItems(t *testing.T) {
	cases := map[string][]Item{
		"duplicate sequence": {
			{Sequence: 1, Title: "a", Platforms: []Platform{PlatformDevTo}},
			{Sequence: 1, Title: "b", Platforms: []Platform{PlatformDevTo}},
		},
		"missing title":     {{Sequence: 1, Platforms: []Platform{PlatformDevTo}}},
		"missing platforms": {{Sequence: 1, Title: "a"}},
		"zero sequence":     {{Sequence: 0, Title: "a", Platforms: []Platform{PlatformDevTo}}},
		"empty":             {},
	}
	for name, items := range cases {
		if _, err := New(items); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParsePlatformAliases(t *testing.T) {
	for raw, want := range map[string]Platform{
		"Dev.to":        PlatformDevTo,
		" GITHUB-PAGES": PlatformGitHubPages,
		"linkedin":      PlatformLinkedIn,
	} {
		got, err := ParsePlatform(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q = %s, want %s", raw, got, want)
		}
	}
}
