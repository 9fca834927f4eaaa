package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kingrea/crosspost/internal/catalog"
	"github.com/kingrea/crosspost/internal/render"
)

// Telegraph publishes pages through api.telegra.ph. Without a token it
// creates an anonymous account on first use and keeps the token for the
// rest of the process.
type Telegraph struct {
	client apiClient
	base   string
	author string

	mu    sync.Mutex
	token string
}

func (t *Telegraph) Platform() catalog.Platform { return catalog.PlatformTelegraph }
func (t *Telegraph) Capability() Capability     { return CapabilityAutomatic }

type telegraphResponse struct {
	OK     bool            `json:"ok"`
	Error  string          `json:"error"`
	Result json.RawMessage `json:"result"`
}

func (t *Telegraph) call(ctx context.Context, method string, form url.Values, out any) error {
	var resp telegraphResponse
	if err := t.client.do(ctx, request{method: http.MethodPost, url: joinURL(t.base, method), form: form}, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return telegraphFailure(resp.Error)
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return &Failure{Kind: FailureRejected, Message: "decode " + method + " result", Err: err}
	}
	return nil
}

func (t *Telegraph) accessToken(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.token != "" {
		return t.token, nil
	}
	shortName := truncate(t.author, 32)
	var account struct {
		AccessToken string `json:"access_token"`
	}
	form := url.Values{"short_name": {shortName}, "author_name": {t.author}}
	if err := t.call(ctx, "createAccount", form, &account); err != nil {
		return "", err
	}
	if account.AccessToken == "" {
		return "", NewFailure(FailureAuth, "telegraph createAccount returned no token")
	}
	t.token = account.AccessToken
	return t.token, nil
}

func (t *Telegraph) Publish(ctx context.Context, item catalog.Item) Outcome {
	token, err := t.accessToken(ctx)
	if err != nil {
		return Fail(err)
	}
	content, err := json.Marshal(render.TelegraphNodes(item.Body))
	if err != nil {
		return Fail(&Failure{Kind: FailureRejected, Message: "encode content", Err: err})
	}
	form := url.Values{
		"access_token":   {token},
		"title":          {item.Title},
		"author_name":    {t.author},
		"content":        {string(content)},
		"return_content": {"false"},
	}
	var page struct {
		URL string `json:"url"`
	}
	if err := t.call(ctx, "createPage", form, &page); err != nil {
		return Fail(err)
	}
	return Success(page.URL)
}

// telegraphFailure classifies the error strings Telegraph returns with
// HTTP 200 and ok=false.
func telegraphFailure(code string) *Failure {
	upper := strings.ToUpper(strings.TrimSpace(code))
	switch {
	case strings.HasPrefix(upper, "ACCESS_TOKEN_INVALID"):
		return NewFailure(FailureAuth, "%s", code)
	case strings.HasPrefix(upper, "FLOOD_WAIT_"):
		f := NewFailure(FailureRateLimited, "%s", code)
		if secs, err := strconv.Atoi(strings.TrimPrefix(upper, "FLOOD_WAIT_")); err == nil {
			f.RetryAfter = time.Duration(secs) * time.Second
		}
		return f
	case upper == "":
		return NewFailure(FailureRejected, "telegraph returned ok=false")
	default:
		return NewFailure(FailureRejected, "%s", code)
	}
}
