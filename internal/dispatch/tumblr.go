package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/dghubble/oauth1"

	"github.com/kingrea/crosspost/internal/catalog"
)

// Tumblr posts markdown text posts to the account's primary blog. Requests
// are signed with OAuth 1.0a user credentials.
type Tumblr struct {
	base       string
	config     *oauth1.Config
	token      *oauth1.Token
	httpClient *http.Client
	client     apiClient

	mu   sync.Mutex
	blog string
}

func newTumblr(s Settings) *Tumblr {
	c := s.Credentials
	return &Tumblr{
		base:       s.endpoint(catalog.PlatformTumblr, "https://api.tumblr.com"),
		config:     oauth1.NewConfig(c.TumblrConsumerKey, c.TumblrConsumerSecret),
		token:      oauth1.NewToken(c.TumblrOAuthToken, c.TumblrOAuthTokenSecret),
		httpClient: s.HTTPClient,
		client:     newAPIClient(s.HTTPClient),
	}
}

func (t *Tumblr) Platform() catalog.Platform { return catalog.PlatformTumblr }
func (t *Tumblr) Capability() Capability     { return CapabilityAutomatic }

func (t *Tumblr) Publish(ctx context.Context, item catalog.Item) Outcome {
	if t.config.ConsumerKey == "" || t.config.ConsumerSecret == "" || t.token.Token == "" || t.token.TokenSecret == "" {
		return Fail(missingCredential("TUMBLR_CONSUMER_KEY", "TUMBLR_CONSUMER_SECRET", "TUMBLR_OAUTH_TOKEN", "TUMBLR_OAUTH_TOKEN_SECRET"))
	}
	if t.httpClient != nil {
		ctx = context.WithValue(ctx, oauth1.HTTPClient, t.httpClient)
	}
	client := apiClient{http: t.config.Client(ctx, t.token), now: t.client.now}

	blog, err := t.blogName(ctx, client)
	if err != nil {
		return Fail(err)
	}
	form := url.Values{
		"type":   {"text"},
		"title":  {item.Title},
		"body":   {item.Body},
		"tags":   {strings.Join(limitTags(item.Tags, 10), ",")},
		"format": {"markdown"},
	}
	var resp struct {
		Response struct {
			ID       int64  `json:"id"`
			IDString string `json:"id_string"`
		} `json:"response"`
	}
	host := blog + ".tumblr.com"
	req := request{method: http.MethodPost, url: joinURL(t.base, "v2/blog", host, "post"), form: form}
	if err := client.do(ctx, req, &resp); err != nil {
		return Fail(err)
	}
	id := resp.Response.IDString
	if id == "" && resp.Response.ID != 0 {
		id = fmt.Sprint(resp.Response.ID)
	}
	if id == "" {
		return Fail(NewFailure(FailureRejected, "tumblr returned no post id"))
	}
	return Success(fmt.Sprintf("https://%s/post/%s", host, id))
}

// blogName looks up the primary blog once per process.
func (t *Tumblr) blogName(ctx context.Context, client apiClient) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.blog != "" {
		return t.blog, nil
	}
	var info struct {
		Response struct {
			User struct {
				Blogs []struct {
					Name string `json:"name"`
				} `json:"blogs"`
			} `json:"user"`
		} `json:"response"`
	}
	if err := client.do(ctx, request{method: http.MethodGet, url: joinURL(t.base, "v2/user/info")}, &info); err != nil {
		return "", err
	}
	blogs := info.Response.User.Blogs
	if len(blogs) == 0 || blogs[0].Name == "" {
		return "", NewFailure(FailureAuth, "tumblr account has no blog")
	}
	t.blog = blogs[0].Name
	return t.blog, nil
}
