package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Platform identifies a publishing destination.
type Platform string

const (
	PlatformMedium      Platform = "medium"
	PlatformDevTo       Platform = "devto"
	PlatformHashnode    Platform = "hashnode"
	PlatformBlogger     Platform = "blogger"
	PlatformWordPress   Platform = "wordpress"
	PlatformTelegraph   Platform = "telegraph"
	PlatformTumblr      Platform = "tumblr"
	PlatformGist        Platform = "gist"
	PlatformGitHubPages Platform = "github_pages"
	PlatformGitLab      Platform = "gitlab"
	PlatformLinkedIn    Platform = "linkedin"
)

// platformOrder is the fixed dispatch order. Logs and retries depend on it
// being stable across runs.
var platformOrder = []Platform{
	PlatformMedium,
	PlatformDevTo,
	PlatformHashnode,
	PlatformBlogger,
	PlatformWordPress,
	PlatformTelegraph,
	PlatformTumblr,
	PlatformGist,
	PlatformGitHubPages,
	PlatformGitLab,
	PlatformLinkedIn,
}

var platformRank = func() map[Platform]int {
	ranks := make(map[Platform]int, len(platformOrder))
	for i, p := range platformOrder {
		ranks[p] = i
	}
	return ranks
}()

// Platforms returns every known platform in dispatch order.
func Platforms() []Platform {
	out := make([]Platform, len(platformOrder))
	copy(out, platformOrder)
	return out
}

// Known reports whether p belongs to the platform enumeration.
func (p Platform) Known() bool {
	_, ok := platformRank[p]
	return ok
}

// Rank is the platform's position in dispatch order; unknown platforms sort
// last.
func (p Platform) Rank() int {
	if rank, ok := platformRank[p]; ok {
		return rank
	}
	return len(platformOrder)
}

// Label is the upper-case form used in reports.
func (p Platform) Label() string {
	return strings.ToUpper(string(p))
}

// ParsePlatform normalizes user input into a known platform.
func ParsePlatform(raw string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(raw)))
	switch p {
	case "dev.to", "dev_to":
		p = PlatformDevTo
	case "githubpages", "github-pages":
		p = PlatformGitHubPages
	}
	if !p.Known() {
		return "", &UnknownPlatformError{Name: raw}
	}
	return p, nil
}

// SortPlatforms orders platforms by dispatch order in place.
func SortPlatforms(platforms []Platform) {
	sort.SliceStable(platforms, func(i, j int) bool {
		return platforms[i].Rank() < platforms[j].Rank()
	})
}

// UnknownPlatformError reports a platform identifier outside the enumeration.
type UnknownPlatformError struct {
	Name string
}

func (e *UnknownPlatformError) Error() string {
	return fmt.Sprintf("catalog: unknown platform %q", e.Name)
}
