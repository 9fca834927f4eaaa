package dispatch

import (
	"context"
	"net/http"
	"strings"

	"github.com/kingrea/crosspost/internal/catalog"
)

const hashnodePublishMutation = `mutation PublishPost($input: PublishPostInput!) {
  publishPost(input: $input) {
    post { url title }
  }
}`

// Hashnode publishes through the Hashnode GraphQL API.
type Hashnode struct {
	client        apiClient
	base          string
	token         string
	publicationID string
}

func (h *Hashnode) Platform() catalog.Platform { return catalog.PlatformHashnode }
func (h *Hashnode) Capability() Capability     { return CapabilityAutomatic }

type hashnodeTag struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type hashnodeResponse struct {
	Data *struct {
		PublishPost *struct {
			Post struct {
				URL string `json:"url"`
			} `json:"post"`
		} `json:"publishPost"`
	} `json:"data"`
	Errors []struct {
		Message    string `json:"message"`
		Extensions struct {
			Code string `json:"code"`
		} `json:"extensions"`
	} `json:"errors"`
}

func (h *Hashnode) Publish(ctx context.Context, item catalog.Item) Outcome {
	if h.token == "" || h.publicationID == "" {
		return Fail(missingCredential("HASHNODE_TOKEN", "HASHNODE_PUBLICATION_ID"))
	}
	tags := make([]hashnodeTag, 0, 5)
	for _, tag := range limitTags(item.Tags, 5) {
		slug := strings.NewReplacer(" ", "-", ".", "").Replace(strings.ToLower(tag))
		tags = append(tags, hashnodeTag{Slug: slug, Name: tag})
	}
	payload := map[string]any{
		"query": hashnodePublishMutation,
		"variables": map[string]any{
			"input": map[string]any{
				"title":           item.Title,
				"contentMarkdown": item.Body,
				"tags":            tags,
				"publicationId":   h.publicationID,
			},
		},
	}
	var resp hashnodeResponse
	req := request{method: http.MethodPost, url: h.base, json: payload, headers: map[string]string{"Authorization": h.token}}
	if err := h.client.do(ctx, req, &resp); err != nil {
		return Fail(err)
	}
	if resp.Data != nil && resp.Data.PublishPost != nil {
		return Success(resp.Data.PublishPost.Post.URL)
	}
	return Fail(hashnodeFailure(resp))
}

// hashnodeFailure classifies GraphQL errors, which arrive with HTTP 200.
func hashnodeFailure(resp hashnodeResponse) *Failure {
	if len(resp.Errors) == 0 {
		return NewFailure(FailureRejected, "hashnode returned no post")
	}
	first := resp.Errors[0]
	switch strings.ToUpper(first.Extensions.Code) {
	case "UNAUTHENTICATED", "FORBIDDEN":
		return NewFailure(FailureAuth, "%s", first.Message)
	case "TOO_MANY_REQUESTS", "RATE_LIMITED":
		return NewFailure(FailureRateLimited, "%s", first.Message)
	}
	if duplicatePattern.MatchString(first.Message) {
		return NewFailure(FailureDuplicateContent, "%s", first.Message)
	}
	return NewFailure(FailureRejected, "%s", first.Message)
}
