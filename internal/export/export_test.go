package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kingrea/crosspost/internal/catalog"
	"github.com/kingrea/crosspost/internal/schedule"
)

func TestWriteRendersIndexPagesAndAll(t *testing.T) {
	cat, err := catalog.New([]catalog.Item{
		{Sequence: 1, Title: "Hello World", Tags: []string{"go"}, Body: "## Intro\n\nSome **bold** text.\n\n<script>alert(1)</script>", Platforms: []catalog.Platform{catalog.PlatformDevTo}},
		{Sequence: 2, Title: "Second <Post>", Body: "Plain.", Platforms: []catalog.Platform{catalog.PlatformLinkedIn}},
	})
	if err != nil {
		t.Fatal(err)
	}
	start := schedule.Date(2026, time.February, 11)
	dir := filepath.Join(t.TempDir(), "site")
	res, err := Write(cat, dir, Options{
		Title:   "Campaign",
		DateFor: func(seq int) time.Time { return start.AddDate(0, 0, seq-1) },
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(res.Pages) != 2 || filepath.Base(res.Pages[0]) != "001-hello-world.html" {
		t.Fatalf("pages = %v", res.Pages)
	}

	page, err := os.ReadFile(res.Pages[0])
	if err != nil {
		t.Fatal(err)
	}
	html := string(page)
	if !strings.Contains(html, "<strong>bold</strong>") || !strings.Contains(html, "<h2") {
		t.Fatalf("markdown not rendered: %s", html)
	}
	if strings.Contains(html, "<script>") {
		t.Fatalf("script survived sanitizing")
	}
	if !strings.Contains(html, "Wednesday, February 11, 2026") || !strings.Contains(html, `<span class="tag">go</span>`) {
		t.Fatalf("meta missing: %s", html)
	}

	index, err := os.ReadFile(res.Index)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(index), `href="001-hello-world.html"`) || !strings.Contains(string(index), "Second &lt;Post&gt;") {
		t.Fatalf("index = %s", index)
	}
	all, err := os.ReadFile(res.All)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(all), "<article") != 2 {
		t.Fatalf("all-in-one page should hold both articles")
	}
}
