package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxResponseBytes = 1 << 20
	userAgent        = "crosspost/1.0"
)

var duplicatePattern = regexp.MustCompile(`(?i)already (exists|been taken|published)|duplicate`)

// apiClient wraps the JSON and form calls every REST adapter makes and maps
// HTTP status codes onto failure kinds.
type apiClient struct {
	http *http.Client
	now  func() time.Time
}

func newAPIClient(hc *http.Client) apiClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return apiClient{http: hc, now: time.Now}
}

type request struct {
	method  string
	url     string
	json    any
	form    url.Values
	headers map[string]string
	user    string
	pass    string
}

// do sends req and decodes a 2xx JSON response into out. Non-2xx responses
// come back as *Failure.
func (c apiClient) do(ctx context.Context, req request, out any) error {
	var body io.Reader
	contentType := ""
	switch {
	case req.json != nil:
		data, err := json.Marshal(req.json)
		if err != nil {
			return &Failure{Kind: FailureRejected, Message: "encode request", Err: err}
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	case req.form != nil:
		body = strings.NewReader(req.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, body)
	if err != nil {
		return &Failure{Kind: FailureRejected, Message: "build request", Err: err}
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}
	if req.user != "" || req.pass != "" {
		httpReq.SetBasicAuth(req.user, req.pass)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return transportFailure(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportFailure(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusFailure(resp, data, c.now())
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Failure{Kind: FailureRejected, StatusCode: resp.StatusCode, Message: "decode response", Err: err}
	}
	return nil
}

func transportFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	msg := "transport error"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "timed out"
	}
	return &Failure{Kind: FailureTransientNetwork, Retryable: true, Message: msg, Err: err}
}

// statusFailure maps a non-2xx response onto a failure kind.
func statusFailure(resp *http.Response, body []byte, now time.Time) *Failure {
	f := &Failure{StatusCode: resp.StatusCode, Message: snippet(body)}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		f.Kind = FailureAuth
	case resp.StatusCode == http.StatusTooManyRequests:
		f.Kind = FailureRateLimited
		f.Retryable = true
		f.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), now)
	case (resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity) && duplicatePattern.Match(body):
		f.Kind = FailureDuplicateContent
	case resp.StatusCode >= 500:
		f.Kind = FailureTransientNetwork
		f.Retryable = true
	default:
		f.Kind = FailureRejected
	}
	return f
}

func parseRetryAfter(raw string, now time.Time) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if utf8.RuneCountInString(s) > 200 {
		s = truncate(s, 200) + "..."
	}
	if s == "" {
		return "empty response"
	}
	return s
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func missingCredential(names ...string) *Failure {
	return NewFailure(FailureAuth, "missing credential %s", strings.Join(names, ", "))
}

func joinURL(base string, parts ...string) string {
	out := strings.TrimRight(base, "/")
	for _, p := range parts {
		out += "/" + strings.Trim(p, "/")
	}
	return out
}

func bearer(token string) string {
	return fmt.Sprintf("Bearer %s", token)
}
