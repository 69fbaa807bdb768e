package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/ralphmgr/internal/app"
	"github.com/dshills/ralphmgr/internal/config"
	"github.com/dshills/ralphmgr/internal/integration"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	workspace  string
	logLevel   string
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "ralphmgr",
		Short: "Run and manage autonomous Ralph loops",
		Long: `ralphmgr supervises a workspace's ralph loop script, keeps the
workspace under git and talks to GitHub through the gh CLI.

Configuration is read from ralphmgr.toml or ralphmgr.yaml and
RALPHMGR_* environment variables.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to configuration file")
	pf.StringVarP(&flags.workspace, "workspace", "w", "", "workspace directory (default: configured root or current directory)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&flags.jsonOutput, "json", false, "print results as JSON")

	root.AddCommand(
		newRunCmd(flags),
		newInspectCmd(flags),
		newGitCmd(flags),
		newReposCmd(flags),
	)
	return root
}

// newApp loads the configuration, applies flag overrides and builds the
// application.
func newApp(cmd *cobra.Command, flags *globalFlags) (*app.App, error) {
	cfg, err := config.Load(config.Options{Path: flags.configPath})
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	return app.New(app.Options{Config: cfg, LogOutput: cmd.ErrOrStderr()})
}

// withWorkspace builds the application, opens the workspace and calls fn.
func withWorkspace(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, a *app.App) error) error {
	a, err := newApp(cmd, flags)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if _, err := a.OpenWorkspace(ctx, flags.workspace); err != nil {
		return report(cmd, flags, err)
	}
	return report(cmd, flags, fn(ctx, a))
}

// report prints a failed operation in the selected output format and turns
// it into exit status 1. A nil error passes through.
func report(cmd *cobra.Command, flags *globalFlags, err error) error {
	if err == nil {
		return nil
	}
	res := integration.ResultOf(err)
	if flags.jsonOutput {
		_ = writeJSON(cmd.OutOrStdout(), res)
	} else {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error (%s): %s\n", res.ErrorKind, res.Detail)
	}
	return &exitError{code: 1}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
