package dispatch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kingrea/crosspost/internal/catalog"
	"github.com/kingrea/crosspost/internal/render"
)

const githubAPIVersion = "2022-11-28"

func githubHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization":        bearer(token),
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": githubAPIVersion,
	}
}

// Gist publishes the item as a public GitHub gist.
type Gist struct {
	client apiClient
	base   string
	token  string
	author string
}

func (g *Gist) Platform() catalog.Platform { return catalog.PlatformGist }
func (g *Gist) Capability() Capability     { return CapabilityAutomatic }

func (g *Gist) Publish(ctx context.Context, item catalog.Item) Outcome {
	if g.token == "" {
		return Fail(missingCredential("GIST_TOKEN"))
	}
	description := item.Title
	if g.author != "" {
		description += " - by " + g.author
	}
	payload := map[string]any{
		"description": description,
		"public":      true,
		"files": map[string]any{
			render.Filename(item.Title): map[string]string{"content": render.Document(item)},
		},
	}
	var resp struct {
		HTMLURL string `json:"html_url"`
	}
	req := request{method: http.MethodPost, url: joinURL(g.base, "gists"), json: payload, headers: githubHeaders(g.token)}
	if err := g.client.do(ctx, req, &resp); err != nil {
		return Fail(err)
	}
	return Success(resp.HTMLURL)
}

// GitHubPages commits the item as a Jekyll post to a <owner>.github.io
// repository. An existing file at the same path is updated in place.
type GitHubPages struct {
	client  apiClient
	base    string
	token   string
	repo    string
	author  string
	dateFor func(sequence int) time.Time
}

func (g *GitHubPages) Platform() catalog.Platform { return catalog.PlatformGitHubPages }
func (g *GitHubPages) Capability() Capability     { return CapabilityAutomatic }

// owner derives the account from a user-site repository name, or from an
// explicit "owner/repo".
func (g *GitHubPages) owner() (string, string) {
	if owner, repo, ok := strings.Cut(g.repo, "/"); ok {
		return owner, repo
	}
	owner, _, _ := strings.Cut(g.repo, ".")
	return owner, g.repo
}

func (g *GitHubPages) Publish(ctx context.Context, item catalog.Item) Outcome {
	if g.token == "" || g.repo == "" {
		return Fail(missingCredential("GH_PAGES_TOKEN", "GH_PAGES_REPO"))
	}
	date := g.dateFor(item.Sequence)
	post, err := render.JekyllPost(item, g.author, date)
	if err != nil {
		return Fail(&Failure{Kind: FailureRejected, Message: "render post", Err: err})
	}
	owner, repo := g.owner()
	path := render.JekyllPath(item.Title, date)
	contentsURL := joinURL(g.base, "repos", owner, repo, "contents", path)
	headers := githubHeaders(g.token)

	var existing struct {
		SHA string `json:"sha"`
	}
	err = g.client.do(ctx, request{method: http.MethodGet, url: contentsURL, headers: headers}, &existing)
	var f *Failure
	if err != nil && !(errors.As(err, &f) && f.StatusCode == http.StatusNotFound) {
		return Fail(err)
	}
	payload := map[string]any{
		"message": fmt.Sprintf("Add article: %s", truncate(item.Title, 50)),
		"content": base64.StdEncoding.EncodeToString([]byte(post)),
	}
	if existing.SHA != "" {
		payload["sha"] = existing.SHA
	}
	if err := g.client.do(ctx, request{method: http.MethodPut, url: contentsURL, json: payload, headers: headers}, nil); err != nil {
		// A 409 means the file moved under us. The next attempt fetches the
		// current sha again.
		if errors.As(err, &f) && f.StatusCode == http.StatusConflict && f.Kind == FailureRejected {
			f.Kind = FailureTransientNetwork
			f.Retryable = true
		}
		return Fail(err)
	}
	site := repo
	if !strings.Contains(site, ".") {
		site = owner + ".github.io/" + repo
	}
	return Success(fmt.Sprintf("https://%s/%s", site, render.Slug(item.Title)))
}
