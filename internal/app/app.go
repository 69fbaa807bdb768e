// Package app wires configuration, logging and the session coordinator
// into a runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dshills/ralphmgr/internal/app/logging"
	"github.com/dshills/ralphmgr/internal/config"
	"github.com/dshills/ralphmgr/internal/event"
	"github.com/dshills/ralphmgr/internal/integration"
	"github.com/dshills/ralphmgr/internal/integration/git"
	"github.com/dshills/ralphmgr/internal/integration/github"
	"github.com/dshills/ralphmgr/internal/project/workspace"
)

// ErrInitialization indicates an initialization failure.
var ErrInitialization = errors.New("initialization failed")

// Options configures New.
type Options struct {
	// Config is the loaded configuration. Default: config.Default().
	Config *config.Config

	// LogOutput receives log records. Default: os.Stderr.
	LogOutput io.Writer
}

// App is one application run: a logger, a session coordinator and the
// GitHub client, built from one configuration.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	session *integration.Coordinator
	github  *github.Client
}

// New bootstraps the application.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	logger := logging.NewLogger(logging.LoggerConfig{
		Level:  logging.ParseLogLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: opts.LogOutput,
	})

	session, err := integration.NewCoordinator(integration.CoordinatorConfig{
		Logger: logger,
		Layout: workspace.Layout{
			LoopScript:  cfg.Workspace.LoopScript,
			TaskFile:    cfg.Workspace.TaskFile,
			ProgressLog: cfg.Workspace.ProgressLog,
		},
		Shell:           cfg.Process.Shell,
		Coalesce:        cfg.CoalesceWindow(),
		GracePeriod:     cfg.GracePeriod(),
		KillTimeout:     cfg.KillTimeout(),
		ShutdownTimeout: cfg.ShutdownTimeout(),
		GitOptions:      gitOptions(cfg.Git, cfg.GitTimeout()),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInitialization, err)
	}

	return &App{
		cfg:     cfg,
		logger:  logger,
		session: session,
		github:  github.NewClient(github.WithRunner(github.ExecRunner{Path: cfg.GitHub.Binary})),
	}, nil
}

func gitOptions(cfg config.GitConfig, timeout time.Duration) []git.Option {
	opts := []git.Option{
		git.WithRunner(git.ExecRunner{Path: cfg.Binary}),
		git.WithRemote(cfg.Remote),
		git.WithTimeout(timeout),
	}
	if cfg.AuthorName != "" || cfg.AuthorEmail != "" {
		opts = append(opts, git.WithIdentity(cfg.AuthorName, cfg.AuthorEmail))
	}
	if cfg.InitialBranch != "" {
		opts = append(opts, git.WithInitialBranch(cfg.InitialBranch))
	}
	return opts
}

// Config returns the configuration the app was built from.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Session returns the session coordinator.
func (a *App) Session() *integration.Coordinator {
	return a.session
}

// GitHub returns the GitHub CLI client.
func (a *App) GitHub() *github.Client {
	return a.github
}

// Close shuts the session down.
func (a *App) Close() error {
	return a.session.Close()
}

// OpenWorkspace opens path, falling back to the configured root and then
// the current directory.
func (a *App) OpenWorkspace(ctx context.Context, path string) (*workspace.Workspace, error) {
	if path == "" {
		path = a.cfg.Workspace.Root
	}
	if path == "" {
		path = "."
	}
	return a.session.OpenWorkspace(ctx, path)
}

// RunLoop starts the loop script of the open workspace, copies its output
// to stdout and stderr and waits for it to exit. Cancelling ctx stops the
// loop. It returns the exit code of the script.
func (a *App) RunLoop(ctx context.Context, script string, stdout, stderr io.Writer) (int, error) {
	sub, err := event.On(a.session.Bus(), event.TopicTerminalOutput, func(o event.TerminalOutput) {
		switch o.Kind {
		case event.OutputStdout:
			_, _ = io.WriteString(stdout, o.Text)
		case event.OutputStderr:
			_, _ = io.WriteString(stderr, o.Text)
		}
	})
	if err != nil {
		return -1, err
	}
	defer sub.Unsubscribe()

	h, err := a.session.StartLoop(ctx, script, "")
	if err != nil {
		return -1, err
	}

	select {
	case <-h.Done():
		return h.ExitCode(), nil
	case <-ctx.Done():
	}

	a.logger.Info("stopping loop", "pid", h.PID())
	if err := a.session.StopLoop(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("loop did not stop gracefully", "error", err)
	}
	return h.ExitCode(), ctx.Err()
}
