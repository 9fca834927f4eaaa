// Package render turns catalog markdown into the shapes each destination
// accepts: sanitized HTML, Telegraph node trees, Jekyll posts and plain
// markdown documents.
package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/crosspost/internal/catalog"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithRendererOptions(html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

// HTML converts markdown to sanitized HTML.
func HTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render: markdown: %w", err)
	}
	return sanitizer.Sanitize(buf.String()), nil
}

var (
	slugStrip    = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugCollapse = regexp.MustCompile(`[\s-]+`)
)

// Slug lowercases title and keeps letters, digits and single hyphens, capped
// at 80 characters.
func Slug(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugCollapse.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 80 {
		s = strings.TrimRight(s[:80], "-")
	}
	if s == "" {
		s = "untitled"
	}
	return s
}

// Filename is the markdown file name used for gists and snippets.
func Filename(title string) string {
	name := strings.NewReplacer(" ", "-", ":", "", "?", "", "/", "-", "\\", "-").Replace(strings.TrimSpace(title))
	if len(name) > 80 {
		name = name[:80]
	}
	if name == "" {
		name = "untitled"
	}
	return name + ".md"
}

// Hashtags renders tags as "#tag" words with inner spaces removed.
func Hashtags(tags []string) string {
	parts := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ReplaceAll(strings.TrimSpace(tag), " ", "")
		if tag != "" {
			parts = append(parts, "#"+tag)
		}
	}
	return strings.Join(parts, " ")
}

// Document is the standalone markdown file used by gist, snippet and manual
// hand-off destinations: title heading, body, then a hashtag footer.
func Document(item catalog.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n", item.Title, strings.TrimRight(item.Body, "\n"))
	if tags := Hashtags(item.Tags); tags != "" {
		fmt.Fprintf(&b, "\n---\n%s\n", tags)
	}
	return b.String()
}

type jekyllFrontMatter struct {
	Layout string   `yaml:"layout"`
	Title  string   `yaml:"title"`
	Author string   `yaml:"author,omitempty"`
	Date   string   `yaml:"date"`
	Tags   []string `yaml:"tags,omitempty"`
}

// JekyllPost renders item as a Jekyll post with YAML front matter.
func JekyllPost(item catalog.Item, author string, date time.Time) (string, error) {
	fm, err := yaml.Marshal(jekyllFrontMatter{
		Layout: "post",
		Title:  item.Title,
		Author: author,
		Date:   date.Format("2006-01-02"),
		Tags:   item.Tags,
	})
	if err != nil {
		return "", fmt.Errorf("render: front matter: %w", err)
	}
	return "---\n" + string(fm) + "---\n\n" + strings.TrimRight(item.Body, "\n") + "\n", nil
}

// JekyllPath is the repository path of a post published on date.
func JekyllPath(title string, date time.Time) string {
	return fmt.Sprintf("_posts/%s-%s.md", date.Format("2006-01-02"), Slug(title))
}
