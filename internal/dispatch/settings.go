package dispatch

import (
	"net/http"
	"time"

	"github.com/kingrea/crosspost/internal/catalog"
)

// Credentials are opaque secrets passed through from the environment.
type Credentials struct {
	MediumToken            string
	MediumUserID           string
	DevToToken             string
	HashnodeToken          string
	HashnodePublicationID  string
	BloggerBlogID          string
	BloggerClientID        string
	BloggerClientSecret    string
	BloggerRefreshToken    string
	WordPressSite          string
	WordPressUsername      string
	WordPressAppPassword   string
	TelegraphToken         string
	TumblrConsumerKey      string
	TumblrConsumerSecret   string
	TumblrOAuthToken       string
	TumblrOAuthTokenSecret string
	GistToken              string
	GitHubPagesToken       string
	GitHubPagesRepo        string
	GitLabToken            string
}

// Settings configure the standard adapter set.
type Settings struct {
	Credentials Credentials
	// Author is the display name sent where a platform asks for one.
	Author     string
	HTTPClient *http.Client
	// DateFor returns the scheduled publish date of a sequence. Adapters that
	// embed a date in the post path use it so re-runs land on the same file.
	DateFor func(sequence int) time.Time
	// Endpoints overrides API base URLs, keyed by platform. Tests point them
	// at httptest servers.
	Endpoints map[catalog.Platform]string
	// BloggerTokenURL overrides the OAuth token endpoint.
	BloggerTokenURL string
}

func (s Settings) endpoint(p catalog.Platform, fallback string) string {
	if v, ok := s.Endpoints[p]; ok && v != "" {
		return v
	}
	return fallback
}

func (s Settings) author() string {
	if s.Author == "" {
		return "crosspost"
	}
	return s.Author
}

func (s Settings) dateFor(sequence int) time.Time {
	if s.DateFor != nil {
		return s.DateFor(sequence)
	}
	return time.Now()
}

// StandardAdapters builds one adapter per known platform.
func StandardAdapters(s Settings) []Adapter {
	client := newAPIClient(s.HTTPClient)
	return []Adapter{
		&Medium{client: client, base: s.endpoint(catalog.PlatformMedium, "https://api.medium.com"), token: s.Credentials.MediumToken, userID: s.Credentials.MediumUserID},
		&DevTo{client: client, base: s.endpoint(catalog.PlatformDevTo, "https://dev.to"), token: s.Credentials.DevToToken},
		&Hashnode{client: client, base: s.endpoint(catalog.PlatformHashnode, "https://gql.hashnode.com"), token: s.Credentials.HashnodeToken, publicationID: s.Credentials.HashnodePublicationID},
		newBlogger(s),
		&WordPress{client: client, base: s.endpoint(catalog.PlatformWordPress, "https://public-api.wordpress.com"), site: s.Credentials.WordPressSite, username: s.Credentials.WordPressUsername, password: s.Credentials.WordPressAppPassword},
		&Telegraph{client: client, base: s.endpoint(catalog.PlatformTelegraph, "https://api.telegra.ph"), token: s.Credentials.TelegraphToken, author: s.author()},
		newTumblr(s),
		&Gist{client: client, base: s.endpoint(catalog.PlatformGist, "https://api.github.com"), token: s.Credentials.GistToken, author: s.Author},
		&GitHubPages{client: client, base: s.endpoint(catalog.PlatformGitHubPages, "https://api.github.com"), token: s.Credentials.GitHubPagesToken, repo: s.Credentials.GitHubPagesRepo, author: s.Author, dateFor: s.dateFor},
		&GitLab{client: client, base: s.endpoint(catalog.PlatformGitLab, "https://gitlab.com"), token: s.Credentials.GitLabToken, author: s.Author},
		&LinkedIn{editorURL: s.endpoint(catalog.PlatformLinkedIn, LinkedInEditorURL)},
	}
}
