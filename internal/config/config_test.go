package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kingrea/crosspost/internal/catalog"
	"github.com/kingrea/crosspost/internal/schedule"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	projectDir := t.TempDir()
	c, err := Load(projectDir, WithLookup(noEnv))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if c.Project.Version != 1 {
		t.Fatalf("expected default version 1, got %d", c.Project.Version)
	}
	if c.StateDir() != filepath.Join(projectDir, DefaultStateDir) {
		t.Fatalf("state dir = %s", c.StateDir())
	}
	if c.LedgerPath() != filepath.Join(projectDir, DefaultStateDir, "publish_status.json") {
		t.Fatalf("ledger path = %s", c.LedgerPath())
	}
	if c.MaxCatchup() != 4 || c.DispatchTimeout() != 30*time.Second {
		t.Fatalf("catchup=%d timeout=%s", c.MaxCatchup(), c.DispatchTimeout())
	}
	if !c.AutoOpen() || !c.Clipboard() {
		t.Fatalf("hand-off toggles should default on")
	}
	if c.Project.Schedule.PerDate != 2 {
		t.Fatalf("per_date = %d, want 2", c.Project.Schedule.PerDate)
	}
	if got := c.DefaultPlatforms(); len(got) != 3 || got[2] != catalog.PlatformLinkedIn {
		t.Fatalf("default platforms = %v", got)
	}
	if _, err := c.Schedule(); err == nil {
		t.Fatalf("schedule without a start date should fail")
	}
}

func TestLoadParsesYaml(t *testing.T) {
	projectDir := t.TempDir()
	configYAML := strings.TrimSpace(`
version: 1
catalog: content/posts.yaml
state_dir: /var/lib/crosspost
author: Ada
schedule:
  start_date: 2026-02-11
  cadence: every-n-days
  interval_days: 3
  per_date: 2
  timezone: UTC
  publish_time: "07:30"
  max_catchup: 0
platforms:
  default: [dev.to, gist]
  disabled: [medium]
dispatch:
  timeout: 5s
  max_attempts: 2
  backoff: 1s
  max_backoff: 4s
handoff:
  auto_open: false
`)
	if err := os.WriteFile(filepath.Join(projectDir, FileName), []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(projectDir, WithLookup(noEnv))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if c.CatalogPath() != filepath.Join(projectDir, "content", "posts.yaml") {
		t.Fatalf("catalog path = %s", c.CatalogPath())
	}
	if c.StateDir() != "/var/lib/crosspost" {
		t.Fatalf("absolute state dir should be kept, got %s", c.StateDir())
	}
	sched, err := c.Schedule()
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if sched.Cadence != schedule.CadenceEveryNDays || sched.IntervalDays != 3 || sched.PerDate != 2 {
		t.Fatalf("schedule = %+v", sched)
	}
	if !sched.StartDate.Equal(schedule.Date(2026, time.February, 11)) {
		t.Fatalf("start = %s", sched.StartDate)
	}
	if c.MaxCatchup() != 0 {
		t.Fatalf("explicit zero catch-up must survive defaults, got %d", c.MaxCatchup())
	}
	if c.PublishTime() != (schedule.TimeOfDay{Hour: 7, Minute: 30}) {
		t.Fatalf("publish time = %v", c.PublishTime())
	}
	if c.Location().String() != "UTC" {
		t.Fatalf("location = %s", c.Location())
	}
	policy := c.RetryPolicy()
	if policy.MaxAttempts != 2 || policy.BaseDelay != time.Second || policy.MaxDelay != 4*time.Second {
		t.Fatalf("retry policy = %+v", policy)
	}
	if c.AutoOpen() || !c.Clipboard() {
		t.Fatalf("auto_open=%v clipboard=%v", c.AutoOpen(), c.Clipboard())
	}
	if got := c.DefaultPlatforms(); len(got) != 2 || got[0] != catalog.PlatformDevTo {
		t.Fatalf("default platforms = %v", got)
	}
	if got := c.DisabledPlatforms(); len(got) != 1 || got[0] != catalog.PlatformMedium {
		t.Fatalf("disabled platforms = %v", got)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"cadence":     "schedule:\n  cadence: weekly\n",
		"start":       "schedule:\n  start_date: 11/02/2026\n",
		"platform":    "platforms:\n  default: [myspace]\n",
		"duration":    "dispatch:\n  timeout: soon\n",
		"publishTime": "schedule:\n  publish_time: \"25:00\"\n",
		"timezone":    "schedule:\n  timezone: Mars/Olympus\n",
		"yaml":        "schedule: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			projectDir := t.TempDir()
			if err := os.WriteFile(filepath.Join(projectDir, FileName), []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(projectDir, WithLookup(noEnv)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	projectDir := t.TempDir()
	body := "schedule:\n  start_date: 2026-01-01\n  publish_time: \"06:00\"\n"
	if err := os.WriteFile(filepath.Join(projectDir, FileName), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(projectDir, WithLookup(envMap(map[string]string{
		"START_DATE":         "2026-02-11",
		"FREQUENCY":          "every_other_day",
		"PUBLISH_TIME":       "10:15",
		"AUTO_OPEN_LINKEDIN": "false",
		"DEVTO_TOKEN":        "secret",
	})))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	sched, err := c.Schedule()
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if !sched.StartDate.Equal(schedule.Date(2026, time.February, 11)) || sched.StepDays() != 2 {
		t.Fatalf("schedule = %+v", sched)
	}
	if c.PublishTime() != (schedule.TimeOfDay{Hour: 10, Minute: 15}) {
		t.Fatalf("publish time = %v", c.PublishTime())
	}
	if c.AutoOpen() {
		t.Fatalf("AUTO_OPEN_LINKEDIN=false should disable auto open")
	}
	if c.Credentials.DevToToken != "secret" {
		t.Fatalf("credential not read")
	}
}

func TestDotenvFillsGapsOnly(t *testing.T) {
	projectDir := t.TempDir()
	dotenv := "START_DATE=2026-03-01\nHASHNODE_TOKEN=from-file\nDEVTO_TOKEN=from-file\n"
	if err := os.WriteFile(filepath.Join(projectDir, EnvFileName), []byte(dotenv), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := Load(projectDir, WithLookup(envMap(map[string]string{"DEVTO_TOKEN": "from-env"})))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if c.Credentials.DevToToken != "from-env" {
		t.Fatalf("environment must win over .env, got %q", c.Credentials.DevToToken)
	}
	if c.Credentials.HashnodeToken != "from-file" {
		t.Fatalf(".env should fill missing keys, got %q", c.Credentials.HashnodeToken)
	}
	if c.Project.Schedule.StartDate != "2026-03-01" {
		t.Fatalf("start date = %q", c.Project.Schedule.StartDate)
	}
}

func TestInitWritesDefaultConfigOnce(t *testing.T) {
	projectDir := t.TempDir()
	created, err := Init(projectDir)
	if err != nil || !created {
		t.Fatalf("init = %v, %v", created, err)
	}
	if _, err := os.Stat(filepath.Join(projectDir, DefaultStateDir, "handoff")); err != nil {
		t.Fatalf("handoff dir missing: %v", err)
	}
	path := filepath.Join(projectDir, FileName)
	if err := os.WriteFile(path, []byte("version: 1\nauthor: kept\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	created, err = Init(projectDir)
	if err != nil || created {
		t.Fatalf("second init = %v, %v", created, err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "author: kept") {
		t.Fatalf("init must not overwrite an existing config")
	}
}

func TestDefaultConfigTemplateLoads(t *testing.T) {
	projectDir := t.TempDir()
	if _, err := Init(projectDir); err != nil {
		t.Fatal(err)
	}
	c, err := Load(projectDir, WithLookup(noEnv))
	if err != nil {
		t.Fatalf("default template should load: %v", err)
	}
	if c.ServeAddr() != "127.0.0.1:8787" {
		t.Fatalf("serve addr = %s", c.ServeAddr())
	}
	if c.Project.Schedule.PerDate != 2 {
		t.Fatalf("template per_date = %d", c.Project.Schedule.PerDate)
	}
}
