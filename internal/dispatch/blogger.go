package dispatch

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/kingrea/crosspost/internal/catalog"
	"github.com/kingrea/crosspost/internal/render"
)

const googleTokenURL = "https://oauth2.googleapis.com/token"

// Blogger publishes through the Blogger v3 API. Access tokens are minted
// from a long-lived refresh token on demand.
type Blogger struct {
	base         string
	blogID       string
	refreshToken string
	oauth        *oauth2.Config
	httpClient   *http.Client
	client       apiClient
}

func newBlogger(s Settings) *Blogger {
	tokenURL := s.BloggerTokenURL
	if tokenURL == "" {
		tokenURL = googleTokenURL
	}
	return &Blogger{
		base:         s.endpoint(catalog.PlatformBlogger, "https://www.googleapis.com"),
		blogID:       s.Credentials.BloggerBlogID,
		refreshToken: s.Credentials.BloggerRefreshToken,
		oauth: &oauth2.Config{
			ClientID:     s.Credentials.BloggerClientID,
			ClientSecret: s.Credentials.BloggerClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
			Scopes:       []string{"https://www.googleapis.com/auth/blogger"},
		},
		httpClient: s.HTTPClient,
		client:     newAPIClient(s.HTTPClient),
	}
}

func (b *Blogger) Platform() catalog.Platform { return catalog.PlatformBlogger }
func (b *Blogger) Capability() Capability     { return CapabilityAutomatic }

func (b *Blogger) Publish(ctx context.Context, item catalog.Item) Outcome {
	if b.blogID == "" || b.oauth.ClientID == "" || b.oauth.ClientSecret == "" || b.refreshToken == "" {
		return Fail(missingCredential("BLOGGER_BLOG_ID", "BLOGGER_CLIENT_ID", "BLOGGER_CLIENT_SECRET", "BLOGGER_REFRESH_TOKEN"))
	}
	html, err := render.HTML(item.Body)
	if err != nil {
		return Fail(&Failure{Kind: FailureRejected, Message: "render body", Err: err})
	}
	if b.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
	}
	source := b.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: b.refreshToken})
	if _, err := source.Token(); err != nil {
		return Fail(tokenFailure(err))
	}
	client := apiClient{http: oauth2.NewClient(ctx, source), now: b.client.now}
	payload := map[string]any{
		"kind":    "blogger#post",
		"title":   item.Title,
		"content": html,
		"labels":  limitTags(item.Tags, 10),
	}
	var resp struct {
		URL string `json:"url"`
	}
	req := request{method: http.MethodPost, url: joinURL(b.base, "blogger/v3/blogs", url.PathEscape(b.blogID), "posts") + "/", json: payload}
	if err := client.do(ctx, req, &resp); err != nil {
		return Fail(err)
	}
	return Success(resp.URL)
}

// tokenFailure maps refresh failures: a rejected grant is an auth problem,
// anything else is worth retrying.
func tokenFailure(err error) *Failure {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) && retrieve.Response != nil {
		code := retrieve.Response.StatusCode
		switch {
		case code == http.StatusBadRequest || code == http.StatusUnauthorized || code == http.StatusForbidden:
			return &Failure{Kind: FailureAuth, StatusCode: code, Message: "token refresh rejected", Err: err}
		case code == http.StatusTooManyRequests:
			return &Failure{Kind: FailureRateLimited, Retryable: true, StatusCode: code, Message: "token refresh rate limited", Err: err}
		}
	}
	return &Failure{Kind: FailureTransientNetwork, Retryable: true, Message: "token refresh failed", Err: err}
}
