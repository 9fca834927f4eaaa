package dispatch

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/kingrea/crosspost/internal/catalog"
	"github.com/kingrea/crosspost/internal/render"
)

// Medium publishes through the Medium v1 REST API.
type Medium struct {
	client apiClient
	base   string
	token  string
	userID string
}

func (m *Medium) Platform() catalog.Platform { return catalog.PlatformMedium }
func (m *Medium) Capability() Capability     { return CapabilityAutomatic }

func (m *Medium) Publish(ctx context.Context, item catalog.Item) Outcome {
	if m.token == "" {
		return Fail(missingCredential("MEDIUM_TOKEN"))
	}
	headers := map[string]string{"Authorization": bearer(m.token)}
	userID := m.userID
	if userID == "" {
		var me struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		if err := m.client.do(ctx, request{method: http.MethodGet, url: joinURL(m.base, "v1/me"), headers: headers}, &me); err != nil {
			return Fail(err)
		}
		if me.Data.ID == "" {
			return Fail(NewFailure(FailureAuth, "medium did not return a user id"))
		}
		// Cache for the remaining items of this process.
		m.userID = me.Data.ID
		userID = me.Data.ID
	}
	payload := map[string]any{
		"title":         item.Title,
		"contentFormat": "markdown",
		"content":       item.Body,
		"tags":          limitTags(item.Tags, 5),
		"publishStatus": "public",
	}
	var resp struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	req := request{method: http.MethodPost, url: joinURL(m.base, "v1/users", url.PathEscape(userID), "posts"), json: payload, headers: headers}
	if err := m.client.do(ctx, req, &resp); err != nil {
		return Fail(err)
	}
	return Success(resp.Data.URL)
}

// DevTo publishes through the Forem articles API.
type DevTo struct {
	client apiClient
	base   string
	token  string
}

func (d *DevTo) Platform() catalog.Platform { return catalog.PlatformDevTo }
func (d *DevTo) Capability() Capability     { return CapabilityAutomatic }

func (d *DevTo) Publish(ctx context.Context, item catalog.Item) Outcome {
	if d.token == "" {
		return Fail(missingCredential("DEVTO_TOKEN"))
	}
	payload := map[string]any{
		"article": map[string]any{
			"title":         item.Title,
			"published":     true,
			"body_markdown": item.Body,
			"tags":          DevToTags(item.Tags),
		},
	}
	var resp struct {
		URL string `json:"url"`
	}
	req := request{method: http.MethodPost, url: joinURL(d.base, "api/articles"), json: payload, headers: map[string]string{"api-key": d.token}}
	if err := d.client.do(ctx, req, &resp); err != nil {
		return Fail(err)
	}
	return Success(resp.URL)
}

// DevToTags keeps at most four tags, lowercased and stripped of the
// characters dev.to refuses.
func DevToTags(tags []string) []string {
	out := make([]string, 0, 4)
	for _, tag := range limitTags(tags, 4) {
		clean := strings.ToLower(strings.NewReplacer(".", "", " ", "", "-", "").Replace(tag))
		if clean != "" {
			out = append(out, clean)
		}
	}
	return out
}

// WordPress publishes through the WordPress.com REST API with an
// application password.
type WordPress struct {
	client   apiClient
	base     string
	site     string
	username string
	password string
}

func (w *WordPress) Platform() catalog.Platform { return catalog.PlatformWordPress }
func (w *WordPress) Capability() Capability     { return CapabilityAutomatic }

func (w *WordPress) Publish(ctx context.Context, item catalog.Item) Outcome {
	if w.site == "" || w.username == "" || w.password == "" {
		return Fail(missingCredential("WORDPRESS_SITE_URL", "WORDPRESS_USERNAME", "WORDPRESS_APP_PASSWORD"))
	}
	html, err := render.HTML(item.Body)
	if err != nil {
		return Fail(&Failure{Kind: FailureRejected, Message: "render body", Err: err})
	}
	payload := map[string]any{
		"title":   item.Title,
		"content": html,
		"status":  "publish",
		"tags":    strings.Join(item.Tags, ","),
	}
	var resp struct {
		Link string `json:"link"`
	}
	req := request{
		method: http.MethodPost,
		url:    joinURL(w.base, "wp/v2/sites", url.PathEscape(w.site), "posts"),
		json:   payload,
		user:   w.username,
		pass:   w.password,
	}
	if err := w.client.do(ctx, req, &resp); err != nil {
		return Fail(err)
	}
	return Success(resp.Link)
}

// GitLab publishes the item as a public snippet.
type GitLab struct {
	client apiClient
	base   string
	token  string
	author string
}

func (g *GitLab) Platform() catalog.Platform { return catalog.PlatformGitLab }
func (g *GitLab) Capability() Capability     { return CapabilityAutomatic }

func (g *GitLab) Publish(ctx context.Context, item catalog.Item) Outcome {
	if g.token == "" {
		return Fail(missingCredential("GITLAB_TOKEN"))
	}
	description := strings.Join(limitTags(item.Tags, 3), ", ")
	if g.author != "" {
		description = "By " + g.author + " - " + description
	}
	payload := map[string]any{
		"title":       item.Title,
		"description": description,
		"visibility":  "public",
		"files": []map[string]string{{
			"file_path": render.Filename(item.Title),
			"content":   render.Document(item),
		}},
	}
	var resp struct {
		WebURL string `json:"web_url"`
	}
	req := request{method: http.MethodPost, url: joinURL(g.base, "api/v4/snippets"), json: payload, headers: map[string]string{"PRIVATE-TOKEN": g.token}}
	if err := g.client.do(ctx, req, &resp); err != nil {
		return Fail(err)
	}
	return Success(resp.WebURL)
}

func limitTags(tags []string, n int) []string {
	if len(tags) > n {
		tags = tags[:n]
	}
	return append([]string{}, tags...)
}
