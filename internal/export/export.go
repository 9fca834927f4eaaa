// Package export renders the catalog as static HTML: an index, one page per
// item and a single all-in-one reading copy.
package export

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kingrea/crosspost/internal/catalog"
	"github.com/kingrea/crosspost/internal/render"
)

const (
	IndexFile = "index.html"
	AllFile   = "all_articles.html"
)

const style = `body{font-family:Georgia,serif;max-width:800px;margin:40px auto;padding:0 20px;color:#333;line-height:1.8}
h1{color:#1a1a2e;border-bottom:2px solid #34d399;padding-bottom:10px}
.meta{color:#718096;font-size:14px;margin-bottom:20px}
.tag{display:inline-block;background:#e2f5ec;color:#276749;padding:2px 10px;border-radius:12px;font-size:12px;margin-right:4px}
hr{border:none;border-top:1px solid #e2e8f0;margin:40px 0}
article{margin-bottom:60px}`

var templates = template.Must(template.New("export").Parse(`
{{define "head"}}<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.}}</title><style>` + style + `</style></head><body>
{{end}}
{{define "meta"}}<div class="meta">#{{.Sequence}} | {{.Date}} | {{.Platforms}} | ~{{.Words}} words</div>{{end}}
{{define "tags"}}{{if .Tags}}<div>{{range .Tags}}<span class="tag">{{.}}</span> {{end}}</div>{{end}}{{end}}
{{define "index"}}{{template "head" .Title}}<h1>{{.Title}}</h1>
<p>{{len .Pages}} articles</p>
<ol>
{{range .Pages}}<li value="{{.Sequence}}"><a href="{{.File}}">{{.Title}}</a> <span class="meta">{{.Date}}</span></li>
{{end}}</ol>
<p><a href="` + AllFile + `">Read everything on one page</a></p>
</body></html>
{{end}}
{{define "page"}}{{template "head" .Title}}<article>
{{template "meta" .}}
<h1>{{.Title}}</h1>
{{.Body}}
{{template "tags" .}}
</article>
<p><a href="` + IndexFile + `">All articles</a></p>
</body></html>
{{end}}
{{define "all"}}{{template "head" .Title}}<h1>{{.Title}}</h1>
<hr>
{{range .Pages}}<article id="item-{{.Sequence}}">
{{template "meta" .}}
<h2>{{.Title}}</h2>
{{.Body}}
{{template "tags" .}}
</article>
<hr>
{{end}}</body></html>
{{end}}
`))

// Page is one rendered item.
type Page struct {
	Sequence  int
	Title     string
	File      string
	Date      string
	Platforms string
	Tags      []string
	Words     int
	Body      template.HTML
}

// Options tune the export.
type Options struct {
	// Title heads the index and the all-in-one page.
	Title string
	// DateFor returns an item's scheduled date. Nil omits dates.
	DateFor func(sequence int) time.Time
}

// Result lists what was written.
type Result struct {
	Dir   string
	Index string
	All   string
	Pages []string
}

// Write renders every catalog item into dir, creating it as needed.
func Write(cat *catalog.Catalog, dir string, opts Options) (Result, error) {
	if cat == nil {
		return Result{}, fmt.Errorf("export: catalog is required")
	}
	if strings.TrimSpace(opts.Title) == "" {
		opts.Title = "Articles"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("export: ensure %s: %w", dir, err)
	}
	pages, err := buildPages(cat, opts)
	if err != nil {
		return Result{}, err
	}

	res := Result{Dir: dir, Index: filepath.Join(dir, IndexFile), All: filepath.Join(dir, AllFile)}
	for _, page := range pages {
		path := filepath.Join(dir, page.File)
		if err := writeTemplate(path, "page", page); err != nil {
			return Result{}, err
		}
		res.Pages = append(res.Pages, path)
	}
	data := struct {
		Title string
		Pages []Page
	}{opts.Title, pages}
	if err := writeTemplate(res.Index, "index", data); err != nil {
		return Result{}, err
	}
	if err := writeTemplate(res.All, "all", data); err != nil {
		return Result{}, err
	}
	return res, nil
}

func buildPages(cat *catalog.Catalog, opts Options) ([]Page, error) {
	items := cat.Items()
	pages := make([]Page, 0, len(items))
	for _, item := range items {
		body, err := render.HTML(item.Body)
		if err != nil {
			return nil, fmt.Errorf("export: item %d: %w", item.Sequence, err)
		}
		labels := make([]string, len(item.Platforms))
		for i, p := range item.Platforms {
			labels[i] = p.Label()
		}
		page := Page{
			Sequence:  item.Sequence,
			Title:     item.Title,
			File:      fmt.Sprintf("%03d-%s.html", item.Sequence, render.Slug(item.Title)),
			Platforms: strings.Join(labels, ", "),
			Tags:      item.Tags,
			Words:     item.WordCount(),
			// Sanitized by render.HTML.
			Body: template.HTML(body),
		}
		if opts.DateFor != nil {
			page.Date = opts.DateFor(item.Sequence).Format("Monday, January 02, 2006")
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func writeTemplate(path, name string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	if err := templates.ExecuteTemplate(f, name, data); err != nil {
		f.Close()
		return fmt.Errorf("export: render %s: %w", path, err)
	}
	return f.Close()
}
