// Package config provides configuration loading for ralphmgr.
//
// Configuration is built in layers, later layers winning:
//
//  1. built-in defaults (Default)
//  2. a TOML or YAML file, chosen by extension
//  3. RALPHMGR_* environment variables
//
// Durations are written as strings ("5s", "250ms") and checked by
// Validate.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/ralphmgr/internal/config/loader"
)

// Config is the complete ralphmgr configuration.
type Config struct {
	Log       LogConfig       `yaml:"log" toml:"log"`
	Workspace WorkspaceConfig `yaml:"workspace" toml:"workspace"`
	Watch     WatchConfig     `yaml:"watch" toml:"watch"`
	Process   ProcessConfig   `yaml:"process" toml:"process"`
	Git       GitConfig       `yaml:"git" toml:"git"`
	GitHub    GitHubConfig    `yaml:"github" toml:"github"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level" toml:"level"`

	// Format is text or json.
	// Default: text
	Format string `yaml:"format" toml:"format"`
}

// WorkspaceConfig names the workspace and its loop artifacts.
type WorkspaceConfig struct {
	// Root is the workspace opened when none is given on the command line.
	Root string `yaml:"root" toml:"root"`

	// LoopScript is the agent loop script, relative to the root.
	// Default: ralph-loop.sh
	LoopScript string `yaml:"loop_script" toml:"loop_script"`

	// TaskFile is the task list, relative to the root.
	// Default: prd.json
	TaskFile string `yaml:"task_file" toml:"task_file"`

	// ProgressLog is the progress log, relative to the root.
	// Default: progress.txt
	ProgressLog string `yaml:"progress_log" toml:"progress_log"`
}

// WatchConfig configures the watch registry.
type WatchConfig struct {
	// Coalesce is the reconciliation tick.
	// Default: 50ms
	Coalesce string `yaml:"coalesce" toml:"coalesce"`
}

// ProcessConfig configures the process supervisor.
type ProcessConfig struct {
	// Shell runs the loop script.
	// Default: bash
	Shell string `yaml:"shell" toml:"shell"`

	// GracePeriod is how long a process gets to exit after SIGTERM.
	// Default: 5s
	GracePeriod string `yaml:"grace_period" toml:"grace_period"`

	// KillTimeout bounds the wait after SIGKILL on replacement.
	// Default: 2s
	KillTimeout string `yaml:"kill_timeout" toml:"kill_timeout"`

	// ShutdownTimeout is the grace period on application exit.
	// Default: 5s
	ShutdownTimeout string `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// GitConfig configures the git engine.
type GitConfig struct {
	// Binary is the git executable.
	// Default: git
	Binary string `yaml:"binary" toml:"binary"`

	// Remote is the remote used for sync.
	// Default: origin
	Remote string `yaml:"remote" toml:"remote"`

	// AuthorName and AuthorEmail override the commit identity.
	AuthorName  string `yaml:"author_name" toml:"author_name"`
	AuthorEmail string `yaml:"author_email" toml:"author_email"`

	// InitialBranch is the branch created by init.
	InitialBranch string `yaml:"initial_branch" toml:"initial_branch"`

	// Timeout bounds each git invocation. Empty means no limit.
	Timeout string `yaml:"timeout" toml:"timeout"`

	// LogLimit is the default number of commits shown.
	// Default: 10
	LogLimit int `yaml:"log_limit" toml:"log_limit"`

	// AutoSync makes commit-sync push by default.
	// Default: true
	AutoSync bool `yaml:"auto_sync" toml:"auto_sync"`
}

// GitHubConfig configures the GitHub CLI client.
type GitHubConfig struct {
	// Binary is the gh executable.
	// Default: gh
	Binary string `yaml:"binary" toml:"binary"`

	// Limit is the number of repositories listed.
	// Default: 50
	Limit int `yaml:"limit" toml:"limit"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Workspace: WorkspaceConfig{
			LoopScript:  "ralph-loop.sh",
			TaskFile:    "prd.json",
			ProgressLog: "progress.txt",
		},
		Watch: WatchConfig{
			Coalesce: "50ms",
		},
		Process: ProcessConfig{
			Shell:           "bash",
			GracePeriod:     "5s",
			KillTimeout:     "2s",
			ShutdownTimeout: "5s",
		},
		Git: GitConfig{
			Binary:   "git",
			Remote:   "origin",
			LogLimit: 10,
			AutoSync: true,
		},
		GitHub: GitHubConfig{
			Binary: "gh",
			Limit:  50,
		},
	}
}

// Options controls Load.
type Options struct {
	// Path is an explicit config file. It must exist.
	Path string

	// FS is the file system. Default: the OS.
	FS loader.FileSystem

	// Env is the environment loader. Default: RALPHMGR_ variables.
	// Set SkipEnv to ignore the environment.
	Env     *loader.EnvLoader
	SkipEnv bool
}

// Load builds the configuration from defaults, the file named by
// opts.Path (or the first of DefaultPaths that exists) and the
// environment, then validates it.
func Load(opts Options) (*Config, error) {
	fsys := opts.FS
	if fsys == nil {
		fsys = loader.DefaultFS()
	}

	merged := make(map[string]any)

	path := opts.Path
	if path != "" {
		if _, err := fsys.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
	} else {
		path = findConfig(fsys)
	}

	if path != "" {
		fl, err := loader.ForPath(fsys, path)
		if err != nil {
			return nil, err
		}
		data, err := fl.Load()
		if err != nil {
			return nil, err
		}
		mergeMaps(merged, data)
	}

	if !opts.SkipEnv {
		env := opts.Env
		if env == nil {
			env = loader.NewEnvLoader(loader.DefaultEnvPrefix)
		}
		data, err := env.Load()
		if err != nil {
			return nil, err
		}
		mergeMaps(merged, data)
	}

	cfg := Default()
	if err := decode(merged, cfg); err != nil {
		source := path
		if source == "" {
			source = "environment"
		}
		return nil, &loader.ParseError{Path: source, Message: err.Error(), Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPaths lists the config files tried when none is given.
func DefaultPaths() []string {
	paths := []string{"ralphmgr.toml", "ralphmgr.yaml", "ralphmgr.yml"}
	if dir, err := os.UserConfigDir(); err == nil {
		base := filepath.Join(dir, "ralphmgr")
		paths = append(paths,
			filepath.Join(base, "config.toml"),
			filepath.Join(base, "config.yaml"),
		)
	}
	return paths
}

func findConfig(fsys loader.FileSystem) string {
	for _, p := range DefaultPaths() {
		if info, err := fsys.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// decode fills cfg from the merged map. Keys not set in the map keep the
// values already in cfg. Unknown keys are an error.
func decode(data map[string]any, cfg *Config) error {
	if len(data) == 0 {
		return nil
	}

	raw, err := yaml.Marshal(data)
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return nil
}

// mergeMaps deep-merges src into dst. Values in src win.
func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		if sm, ok := v.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				mergeMaps(dm, sm)
				continue
			}
			cp := make(map[string]any, len(sm))
			mergeMaps(cp, sm)
			dst[k] = cp
			continue
		}
		dst[k] = v
	}
}

// Validate checks every field.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, &ValidationError{Field: "log.level", Message: fmt.Sprintf("unknown level %q", c.Log.Level)})
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, &ValidationError{Field: "log.format", Message: fmt.Sprintf("must be text or json, got %q", c.Log.Format)})
	}

	if c.Workspace.LoopScript == "" {
		errs = append(errs, &ValidationError{Field: "workspace.loop_script", Message: "must not be empty"})
	}
	if c.Process.Shell == "" {
		errs = append(errs, &ValidationError{Field: "process.shell", Message: "must not be empty"})
	}
	if c.Git.Remote == "" {
		errs = append(errs, &ValidationError{Field: "git.remote", Message: "must not be empty"})
	}
	if c.Git.LogLimit <= 0 {
		errs = append(errs, &ValidationError{Field: "git.log_limit", Message: "must be positive"})
	}
	if c.GitHub.Limit <= 0 {
		errs = append(errs, &ValidationError{Field: "github.limit", Message: "must be positive"})
	}

	durations := []struct {
		field    string
		value    string
		optional bool
	}{
		{"watch.coalesce", c.Watch.Coalesce, false},
		{"process.grace_period", c.Process.GracePeriod, false},
		{"process.kill_timeout", c.Process.KillTimeout, false},
		{"process.shutdown_timeout", c.Process.ShutdownTimeout, false},
		{"git.timeout", c.Git.Timeout, true},
	}
	for _, d := range durations {
		if d.value == "" && d.optional {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			errs = append(errs, &ValidationError{Field: d.field, Message: fmt.Sprintf("invalid duration %q", d.value)})
			continue
		}
		if v <= 0 {
			errs = append(errs, &ValidationError{Field: d.field, Message: "must be positive"})
		}
	}

	return errors.Join(errs...)
}

// CoalesceWindow returns the parsed watch.coalesce.
func (c *Config) CoalesceWindow() time.Duration {
	return parseDuration(c.Watch.Coalesce)
}

// GracePeriod returns the parsed process.grace_period.
func (c *Config) GracePeriod() time.Duration {
	return parseDuration(c.Process.GracePeriod)
}

// KillTimeout returns the parsed process.kill_timeout.
func (c *Config) KillTimeout() time.Duration {
	return parseDuration(c.Process.KillTimeout)
}

// ShutdownTimeout returns the parsed process.shutdown_timeout.
func (c *Config) ShutdownTimeout() time.Duration {
	return parseDuration(c.Process.ShutdownTimeout)
}

// GitTimeout returns the parsed git.timeout, zero when unset.
func (c *Config) GitTimeout() time.Duration {
	return parseDuration(c.Git.Timeout)
}

// parseDuration returns zero for empty or invalid values. Validate
// reports invalid ones.
func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
