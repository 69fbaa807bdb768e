package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/ralphmgr/internal/app"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	var script string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the workspace loop script in the foreground",
		Long: `Run starts the loop script of the workspace with the configured shell,
streams its output and exits with the script's exit code. Ctrl-C
stops the loop with SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withWorkspace(cmd, flags, func(ctx context.Context, a *app.App) error {
				code, err := a.RunLoop(ctx, script, cmd.OutOrStdout(), cmd.ErrOrStderr())
				if errors.Is(err, context.Canceled) {
					fmt.Fprintln(cmd.ErrOrStderr(), "loop stopped")
					return &exitError{code: 130}
				}
				if err != nil {
					return err
				}
				if code != 0 {
					return &exitError{code: code}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&script, "script", "s", "", "loop script (default: the workspace layout's loop script)")
	return cmd
}
