package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dshills/ralphmgr/internal/config/loader"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.GracePeriod() != 5*time.Second || cfg.CoalesceWindow() != 50*time.Millisecond {
		t.Errorf("durations = %v %v", cfg.GracePeriod(), cfg.CoalesceWindow())
	}
	if cfg.GitTimeout() != 0 {
		t.Errorf("GitTimeout = %v, want 0", cfg.GitTimeout())
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "ralphmgr.toml", `
[log]
level = "debug"

[process]
shell = "sh"
grace_period = "10s"

[git]
remote = "upstream"
log_limit = 25
auto_sync = false
`)

	cfg, err := Load(Options{Path: path, SkipEnv: true})
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Process.Shell != "sh" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.GracePeriod() != 10*time.Second {
		t.Errorf("GracePeriod = %v", cfg.GracePeriod())
	}
	if cfg.Git.Remote != "upstream" || cfg.Git.LogLimit != 25 || cfg.Git.AutoSync {
		t.Errorf("git = %+v", cfg.Git)
	}
	// Untouched keys keep their defaults.
	if cfg.Process.KillTimeout != "2s" || cfg.Workspace.TaskFile != "prd.json" {
		t.Errorf("defaults lost: %+v %+v", cfg.Process, cfg.Workspace)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "ralphmgr.yaml", `
log:
  format: json
workspace:
  root: /srv/project
  loop_script: scripts/loop.sh
watch:
  coalesce: 100ms
`)

	cfg, err := Load(Options{Path: path, SkipEnv: true})
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if cfg.Log.Format != "json" || cfg.Workspace.Root != "/srv/project" || cfg.Workspace.LoopScript != "scripts/loop.sh" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.CoalesceWindow() != 100*time.Millisecond {
		t.Errorf("CoalesceWindow = %v", cfg.CoalesceWindow())
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "ralphmgr.toml", `
[process]
shell = "zsh"

[git]
remote = "upstream"
`)
	t.Setenv("RALPHMGR_SHELL", "sh")
	t.Setenv("RALPHMGR_GIT_AUTHOR_NAME", "Ralph")
	t.Setenv("RALPHMGR_GIT_AUTO_SYNC", "no")
	t.Setenv("RALPHMGR_LOG_LEVEL", "warn")
	t.Setenv("RALPHMGR_GITHUB_LIMIT", "5")

	cfg, err := Load(Options{Path: path})
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if cfg.Process.Shell != "sh" {
		t.Errorf("shell = %q, want env value", cfg.Process.Shell)
	}
	if cfg.Git.Remote != "upstream" || cfg.Git.AuthorName != "Ralph" || cfg.Git.AutoSync {
		t.Errorf("git = %+v", cfg.Git)
	}
	if cfg.Log.Level != "warn" || cfg.GitHub.Limit != 5 {
		t.Errorf("log = %+v github = %+v", cfg.Log, cfg.GitHub)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(Options{Path: "/nonexistent/ralphmgr.toml", SkipEnv: true}); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("missing file error = %v", err)
	}

	path := writeConfig(t, "ralphmgr.json", `{}`)
	if _, err := Load(Options{Path: path, SkipEnv: true}); !errors.Is(err, loader.ErrUnsupportedFormat) {
		t.Errorf("json error = %v", err)
	}

	path = writeConfig(t, "bad.toml", "[log\nlevel = ")
	var pe *loader.ParseError
	if _, err := Load(Options{Path: path, SkipEnv: true}); !errors.As(err, &pe) {
		t.Errorf("syntax error = %v, want ParseError", err)
	}

	path = writeConfig(t, "typo.toml", "[process]\ngrace = \"1s\"\n")
	if _, err := Load(Options{Path: path, SkipEnv: true}); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("unknown key error = %v, want ErrInvalidValue", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"shell", func(c *Config) { c.Process.Shell = "" }, "process.shell"},
		{"grace", func(c *Config) { c.Process.GracePeriod = "soon" }, "process.grace_period"},
		{"negative", func(c *Config) { c.Watch.Coalesce = "-1s" }, "watch.coalesce"},
		{"git timeout", func(c *Config) { c.Git.Timeout = "1x" }, "git.timeout"},
		{"log limit", func(c *Config) { c.Git.LogLimit = 0 }, "git.log_limit"},
		{"remote", func(c *Config) { c.Git.Remote = "" }, "git.remote"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrValidationFailed) {
				t.Fatalf("Validate() = %v, want ErrValidationFailed", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Errorf("field = %v, want %s", err, tt.field)
			}
		})
	}
}

func TestMergeMaps(t *testing.T) {
	dst := map[string]any{
		"git": map[string]any{"remote": "origin", "log_limit": 10},
		"log": map[string]any{"level": "info"},
	}
	mergeMaps(dst, map[string]any{
		"git":     map[string]any{"remote": "upstream"},
		"process": map[string]any{"shell": "sh"},
	})

	git := dst["git"].(map[string]any)
	if git["remote"] != "upstream" || git["log_limit"] != 10 {
		t.Errorf("git = %v", git)
	}
	if dst["process"].(map[string]any)["shell"] != "sh" {
		t.Errorf("process = %v", dst["process"])
	}
}
