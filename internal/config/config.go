// Package config loads crosspost.yaml, the project .env file and the
// credential environment. Every project keeps its state in a directory next
// to the config file, .crosspost/ by default.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/crosspost/internal/catalog"
	"github.com/kingrea/crosspost/internal/dispatch"
	"github.com/kingrea/crosspost/internal/schedule"
)

const (
	// FileName is the project config file.
	FileName = "crosspost.yaml"
	// EnvFileName is the optional dotenv file next to it.
	EnvFileName = ".env"
	// DefaultStateDir holds the ledger, logbook, journal and hand-offs.
	DefaultStateDir = ".crosspost"

	ledgerFileName   = "publish_status.json"
	campaignFlagName = "campaign_complete.flag"
	defaultCatalog   = "articles.json"
	defaultAddr      = "127.0.0.1:8787"
)

const defaultProjectConfigYAML = `# crosspost project configuration
version: 1

# Content catalog: a JSON or YAML array of items.
catalog: articles.json

# Ledger, logbook, journal and hand-off files live here.
state_dir: .crosspost

# Display name sent to platforms that ask for one.
author: ""

schedule:
  # Date of item 1 (YYYY-MM-DD). START_DATE in the environment wins.
  start_date: ""
  # every-day | every-n-days (legacy: daily, every_other_day)
  cadence: every-day
  interval_days: 1
  # Consecutive items sharing one date (items 1-2 on day one, 3-4 on the
  # next publishing day).
  per_date: 2
  timezone: Local
  publish_time: "09:00"
  # Overdue items published per run on top of today's. 0 disables catch-up,
  # negative means unbounded.
  max_catchup: 4

platforms:
  # Targets for items that do not list their own.
  default: [devto, hashnode, linkedin]
  # Platforms skipped by every run.
  disabled: []

dispatch:
  timeout: 30s
  max_attempts: 3
  backoff: 2s
  max_backoff: 30s

handoff:
  # Open the platform editor when content is staged.
  auto_open: true
  clipboard: true

serve:
  addr: 127.0.0.1:8787
`

// ScheduleSection models the schedule block.
type ScheduleSection struct {
	StartDate    string `yaml:"start_date"`
	Cadence      string `yaml:"cadence"`
	IntervalDays int    `yaml:"interval_days"`
	PerDate      int    `yaml:"per_date"`
	Timezone     string `yaml:"timezone"`
	PublishTime  string `yaml:"publish_time"`
	MaxCatchup   *int   `yaml:"max_catchup,omitempty"`
}

// PlatformSection models the platforms block.
type PlatformSection struct {
	Default  []string `yaml:"default"`
	Disabled []string `yaml:"disabled,omitempty"`
}

// DispatchSection models the dispatch block.
type DispatchSection struct {
	Timeout     string `yaml:"timeout"`
	MaxAttempts int    `yaml:"max_attempts"`
	Backoff     string `yaml:"backoff"`
	MaxBackoff  string `yaml:"max_backoff"`
}

// HandoffSection models the handoff block.
type HandoffSection struct {
	AutoOpen  *bool `yaml:"auto_open,omitempty"`
	Clipboard *bool `yaml:"clipboard,omitempty"`
}

// ServeSection models the serve block.
type ServeSection struct {
	Addr string `yaml:"addr"`
}

// ProjectConfig models crosspost.yaml.
type ProjectConfig struct {
	Version   int             `yaml:"version"`
	Catalog   string          `yaml:"catalog"`
	StateDir  string          `yaml:"state_dir"`
	Author    string          `yaml:"author"`
	Schedule  ScheduleSection `yaml:"schedule"`
	Platforms PlatformSection `yaml:"platforms"`
	Dispatch  DispatchSection `yaml:"dispatch"`
	Handoff   HandoffSection  `yaml:"handoff"`
	Serve     ServeSection    `yaml:"serve"`
}

// Config holds the resolved runtime configuration.
type Config struct {
	// ProjectDir is the directory crosspost was run from.
	ProjectDir  string
	Project     ProjectConfig
	Credentials dispatch.Credentials

	lookup func(string) (string, bool)
}

// LoadOption customizes Load.
type LoadOption func(*Config)

// WithLookup replaces os.LookupEnv. The .env file is still consulted for
// keys the lookup does not know.
func WithLookup(fn func(string) (string, bool)) LoadOption {
	return func(c *Config) {
		if fn != nil {
			c.lookup = fn
		}
	}
}

// Load reads projectDir/crosspost.yaml (defaults when absent), layers the
// environment and .env on top and validates the result.
func Load(projectDir string, opts ...LoadOption) (*Config, error) {
	cfg := &Config{
		ProjectDir: projectDir,
		Project:    defaultProjectConfig(),
		lookup:     os.LookupEnv,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	dotenv, err := readDotenv(filepath.Join(projectDir, EnvFileName))
	if err != nil {
		return nil, err
	}
	base := cfg.lookup
	cfg.lookup = func(key string) (string, bool) {
		if v, ok := base(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	cfg.Credentials = cfg.credentials()
	return cfg, nil
}

func readDotenv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return values, nil
}

func (c *Config) env(key string) (string, bool) {
	v, ok := c.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (c *Config) loadProjectConfig() error {
	path := c.ConfigPath()
	parsed := defaultProjectConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		parsed = ProjectConfig{}
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	c.applyEnv(&parsed)
	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	c.Project = parsed
	return nil
}

// applyEnv layers the legacy environment knobs over the file.
func (c *Config) applyEnv(pc *ProjectConfig) {
	if v, ok := c.env("START_DATE"); ok {
		pc.Schedule.StartDate = v
	}
	if v, ok := c.env("FREQUENCY"); ok {
		pc.Schedule.Cadence = v
		pc.Schedule.IntervalDays = 0
	}
	if v, ok := c.env("PUBLISH_TIME"); ok {
		pc.Schedule.PublishTime = v
	}
	if v, ok := c.env("TIMEZONE"); ok {
		pc.Schedule.Timezone = v
	}
	if v, ok := c.env("AUTO_OPEN_LINKEDIN"); ok {
		open := strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
		pc.Handoff.AutoOpen = &open
	}
}

func (c *Config) credentials() dispatch.Credentials {
	get := func(key string) string {
		v, _ := c.env(key)
		return v
	}
	return dispatch.Credentials{
		MediumToken:            get("MEDIUM_TOKEN"),
		MediumUserID:           get("MEDIUM_USER_ID"),
		DevToToken:             get("DEVTO_TOKEN"),
		HashnodeToken:          get("HASHNODE_TOKEN"),
		HashnodePublicationID:  get("HASHNODE_PUBLICATION_ID"),
		BloggerBlogID:          get("BLOGGER_BLOG_ID"),
		BloggerClientID:        get("BLOGGER_CLIENT_ID"),
		BloggerClientSecret:    get("BLOGGER_CLIENT_SECRET"),
		BloggerRefreshToken:    get("BLOGGER_REFRESH_TOKEN"),
		WordPressSite:          get("WORDPRESS_SITE_URL"),
		WordPressUsername:      get("WORDPRESS_USERNAME"),
		WordPressAppPassword:   get("WORDPRESS_APP_PASSWORD"),
		TelegraphToken:         get("TELEGRAPH_TOKEN"),
		TumblrConsumerKey:      get("TUMBLR_CONSUMER_KEY"),
		TumblrConsumerSecret:   get("TUMBLR_CONSUMER_SECRET"),
		TumblrOAuthToken:       get("TUMBLR_OAUTH_TOKEN"),
		TumblrOAuthTokenSecret: get("TUMBLR_OAUTH_TOKEN_SECRET"),
		GistToken:              get("GIST_TOKEN"),
		GitHubPagesToken:       get("GH_PAGES_TOKEN"),
		GitHubPagesRepo:        get("GH_PAGES_REPO"),
		GitLabToken:            get("GITLAB_TOKEN"),
	}
}

func defaultProjectConfig() ProjectConfig {
	pc := ProjectConfig{Version: 1}
	pc.applyDefaults()
	return pc
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.Catalog) == "" {
		pc.Catalog = defaultCatalog
	}
	if strings.TrimSpace(pc.StateDir) == "" {
		pc.StateDir = DefaultStateDir
	}
	if pc.Schedule.Cadence == "" {
		pc.Schedule.Cadence = string(schedule.CadenceEveryDay)
	}
	if pc.Schedule.PerDate == 0 {
		pc.Schedule.PerDate = 2
	}
	if pc.Schedule.Timezone == "" {
		pc.Schedule.Timezone = "Local"
	}
	if pc.Schedule.PublishTime == "" {
		pc.Schedule.PublishTime = "09:00"
	}
	if pc.Schedule.MaxCatchup == nil {
		n := 4
		pc.Schedule.MaxCatchup = &n
	}
	if len(pc.Platforms.Default) == 0 {
		pc.Platforms.Default = []string{"devto", "hashnode", "linkedin"}
	}
	if pc.Dispatch.Timeout == "" {
		pc.Dispatch.Timeout = "30s"
	}
	if pc.Dispatch.MaxAttempts == 0 {
		pc.Dispatch.MaxAttempts = 3
	}
	if pc.Dispatch.Backoff == "" {
		pc.Dispatch.Backoff = "2s"
	}
	if pc.Dispatch.MaxBackoff == "" {
		pc.Dispatch.MaxBackoff = "30s"
	}
	if pc.Handoff.AutoOpen == nil {
		open := true
		pc.Handoff.AutoOpen = &open
	}
	if pc.Handoff.Clipboard == nil {
		clip := true
		pc.Handoff.Clipboard = &clip
	}
	if pc.Serve.Addr == "" {
		pc.Serve.Addr = defaultAddr
	}
}

func (pc *ProjectConfig) normalize() {
	pc.Catalog = strings.TrimSpace(pc.Catalog)
	pc.StateDir = strings.TrimSpace(pc.StateDir)
	pc.Author = strings.TrimSpace(pc.Author)
	pc.Schedule.StartDate = strings.TrimSpace(pc.Schedule.StartDate)
	pc.Schedule.Cadence = strings.ToLower(strings.TrimSpace(pc.Schedule.Cadence))
	pc.Schedule.PublishTime = strings.TrimSpace(pc.Schedule.PublishTime)
	pc.Schedule.Timezone = strings.TrimSpace(pc.Schedule.Timezone)
	pc.Serve.Addr = strings.TrimSpace(pc.Serve.Addr)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if pc.Schedule.StartDate != "" {
		if _, err := schedule.ParseDate(pc.Schedule.StartDate); err != nil {
			return fmt.Errorf("schedule.start_date: %w", err)
		}
	}
	cadence, interval, err := schedule.ParseCadence(pc.Schedule.Cadence)
	if err != nil {
		return fmt.Errorf("schedule.cadence: %w", err)
	}
	if cadence == schedule.CadenceEveryNDays && interval == 0 && pc.Schedule.IntervalDays < 1 {
		return fmt.Errorf("schedule.interval_days must be >= 1 for every-n-days")
	}
	if pc.Schedule.PerDate < 1 {
		return fmt.Errorf("schedule.per_date must be >= 1")
	}
	if _, err := schedule.ParseTimeOfDay(pc.Schedule.PublishTime); err != nil {
		return fmt.Errorf("schedule.publish_time: %w", err)
	}
	if _, err := loadLocation(pc.Schedule.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	for i, name := range pc.Platforms.Default {
		if _, err := catalog.ParsePlatform(name); err != nil {
			return fmt.Errorf("platforms.default[%d]: %w", i, err)
		}
	}
	for i, name := range pc.Platforms.Disabled {
		if _, err := catalog.ParsePlatform(name); err != nil {
			return fmt.Errorf("platforms.disabled[%d]: %w", i, err)
		}
	}
	for field, raw := range map[string]string{
		"dispatch.timeout":     pc.Dispatch.Timeout,
		"dispatch.backoff":     pc.Dispatch.Backoff,
		"dispatch.max_backoff": pc.Dispatch.MaxBackoff,
	} {
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			return fmt.Errorf("%s: invalid duration %q", field, raw)
		}
	}
	if pc.Dispatch.MaxAttempts < 1 {
		return fmt.Errorf("dispatch.max_attempts must be >= 1")
	}
	return nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// ConfigPath returns the on-disk location for the project config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.ProjectDir, FileName)
}

// StateDir returns the resolved state directory.
func (c *Config) StateDir() string {
	return resolvePath(c.ProjectDir, c.Project.StateDir)
}

// CatalogPath returns the resolved catalog file.
func (c *Config) CatalogPath() string {
	return resolvePath(c.ProjectDir, c.Project.Catalog)
}

// LedgerPath returns the publish ledger file.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.StateDir(), ledgerFileName)
}

// LogbookPath returns the text logbook file.
func (c *Config) LogbookPath() string {
	return filepath.Join(c.StateDir(), "crosspost.log")
}

// JournalPath returns the SQLite attempt journal.
func (c *Config) JournalPath() string {
	return filepath.Join(c.StateDir(), "journal.db")
}

// HandoffDir returns the manual hand-off staging directory.
func (c *Config) HandoffDir() string {
	return filepath.Join(c.StateDir(), "handoff")
}

// CampaignFlagPath is written once when every item is complete.
func (c *Config) CampaignFlagPath() string {
	return filepath.Join(c.StateDir(), campaignFlagName)
}

// DefaultPlatforms returns the parsed fallback targets.
func (c *Config) DefaultPlatforms() []catalog.Platform {
	return parsePlatforms(c.Project.Platforms.Default)
}

// DisabledPlatforms returns platforms every run skips.
func (c *Config) DisabledPlatforms() []catalog.Platform {
	return parsePlatforms(c.Project.Platforms.Disabled)
}

func parsePlatforms(names []string) []catalog.Platform {
	out := make([]catalog.Platform, 0, len(names))
	for _, name := range names {
		if p, err := catalog.ParsePlatform(name); err == nil {
			out = append(out, p)
		}
	}
	return out
}

// Schedule builds the schedule configuration. The start date is required
// here rather than at load so commands that never consult the calendar work
// without one.
func (c *Config) Schedule() (schedule.Config, error) {
	s := c.Project.Schedule
	if s.StartDate == "" {
		return schedule.Config{}, fmt.Errorf("config: schedule.start_date (or START_DATE) is required")
	}
	start, err := schedule.ParseDate(s.StartDate)
	if err != nil {
		return schedule.Config{}, fmt.Errorf("config: %w", err)
	}
	cadence, interval, err := schedule.ParseCadence(s.Cadence)
	if err != nil {
		return schedule.Config{}, fmt.Errorf("config: %w", err)
	}
	if cadence == schedule.CadenceEveryNDays && interval == 0 {
		interval = s.IntervalDays
	}
	cfg := schedule.Config{StartDate: start, Cadence: cadence, IntervalDays: interval, PerDate: s.PerDate}
	if err := cfg.Validate(); err != nil {
		return schedule.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Location returns the schedule timezone.
func (c *Config) Location() *time.Location {
	loc, err := loadLocation(c.Project.Schedule.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// PublishTime returns the daemon's daily pass time.
func (c *Config) PublishTime() schedule.TimeOfDay {
	t, err := schedule.ParseTimeOfDay(c.Project.Schedule.PublishTime)
	if err != nil {
		return schedule.TimeOfDay{Hour: 9}
	}
	return t
}

// MaxCatchup returns the overdue bound per run.
func (c *Config) MaxCatchup() int {
	if c.Project.Schedule.MaxCatchup == nil {
		return 4
	}
	return *c.Project.Schedule.MaxCatchup
}

// DispatchTimeout returns the per-call bound.
func (c *Config) DispatchTimeout() time.Duration {
	return mustDuration(c.Project.Dispatch.Timeout, dispatch.DefaultTimeout)
}

// RetryPolicy returns the in-run retry policy.
func (c *Config) RetryPolicy() dispatch.RetryPolicy {
	p := dispatch.DefaultRetryPolicy()
	p.MaxAttempts = c.Project.Dispatch.MaxAttempts
	p.BaseDelay = mustDuration(c.Project.Dispatch.Backoff, p.BaseDelay)
	p.MaxDelay = mustDuration(c.Project.Dispatch.MaxBackoff, p.MaxDelay)
	return p
}

// AutoOpen reports whether hand-offs open the platform editor.
func (c *Config) AutoOpen() bool {
	return c.Project.Handoff.AutoOpen == nil || *c.Project.Handoff.AutoOpen
}

// Clipboard reports whether hand-offs copy content to the clipboard.
func (c *Config) Clipboard() bool {
	return c.Project.Handoff.Clipboard == nil || *c.Project.Handoff.Clipboard
}

// ServeAddr is the HTTP listen address.
func (c *Config) ServeAddr() string {
	return c.Project.Serve.Addr
}

// Summary renders the effective settings for display, never credentials.
func (c *Config) Summary() []string {
	s := c.Project.Schedule
	return []string{
		"catalog: " + c.CatalogPath(),
		"state: " + c.StateDir(),
		"start: " + s.StartDate,
		"cadence: " + s.Cadence + intervalSuffix(s),
		"per date: " + strconv.Itoa(s.PerDate),
		"publish time: " + s.PublishTime + " " + s.Timezone,
	}
}

func intervalSuffix(s ScheduleSection) string {
	if s.Cadence == string(schedule.CadenceEveryNDays) {
		return " (" + strconv.Itoa(s.IntervalDays) + " days)"
	}
	return ""
}

func mustDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

// Init creates the state directory and writes a commented default config
// when none exists. It reports whether the config file was created.
func Init(projectDir string) (bool, error) {
	dirs := []string{
		filepath.Join(projectDir, DefaultStateDir),
		filepath.Join(projectDir, DefaultStateDir, "handoff"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("config: ensure %s: %w", dir, err)
		}
	}
	return ensureProjectConfig(filepath.Join(projectDir, FileName))
}

func ensureProjectConfig(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	if err := os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644); err != nil {
		return false, fmt.Errorf("config: write %s: %w", path, err)
	}
	return true, nil
}
