package dispatch

import (
	"context"
	"strconv"
	"strings"

	"github.com/kingrea/crosspost/internal/catalog"
	"github.com/kingrea/crosspost/internal/render"
)

// LinkedInEditorURL opens a blank article in LinkedIn's editor.
const LinkedInEditorURL = "https://www.linkedin.com/article/new/"

// LinkedIn has no publishing API for individual articles. It prepares the
// content and leaves publishing to the operator.
type LinkedIn struct {
	editorURL string
}

func (l *LinkedIn) Platform() catalog.Platform { return catalog.PlatformLinkedIn }
func (l *LinkedIn) Capability() Capability     { return CapabilityManualAssist }

// Publish never touches the network.
func (l *LinkedIn) Publish(_ context.Context, item catalog.Item) Outcome {
	editor := l.editorURL
	if editor == "" {
		editor = LinkedInEditorURL
	}
	return ManualStepRequired(Prepared{
		Sequence:  item.Sequence,
		Platform:  catalog.PlatformLinkedIn,
		Title:     item.Title,
		Tags:      append([]string(nil), item.Tags...),
		Body:      item.Body,
		EditorURL: editor,
		Instructions: []string{
			"Paste the article into LinkedIn's editor",
			"Title: " + item.Title,
			"Tags: " + strings.Join(item.Tags, ", "),
			"Click Publish",
			"Confirm with: crosspost confirm " + strconv.Itoa(item.Sequence) + " linkedin --ref <url>",
		},
	})
}

// Document is the markdown staged for the operator.
func (p Prepared) Document() string {
	return render.Document(catalog.Item{Sequence: p.Sequence, Title: p.Title, Tags: p.Tags, Body: p.Body})
}
