package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/ralphmgr/internal/app"
	"github.com/dshills/ralphmgr/internal/integration"
)

func newInspectCmd(flags *globalFlags) *cobra.Command {
	var logLimit int

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show loop artifacts, git state and remotes of the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withWorkspace(cmd, flags, func(ctx context.Context, a *app.App) error {
				limit := logLimit
				if limit <= 0 {
					limit = a.Config().Git.LogLimit
				}
				ov, err := a.Session().Overview(ctx, limit)
				if err != nil {
					return err
				}
				if flags.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), ov)
				}
				printOverview(cmd.OutOrStdout(), ov)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&logLimit, "log", "n", 0, "number of commits to show (default: git.log_limit)")
	return cmd
}

func printOverview(w io.Writer, ov *integration.Overview) {
	fmt.Fprintf(w, "Workspace: %s\n", ov.Root)
	for _, art := range ov.Artifacts.All() {
		mark := "missing"
		if art.Exists {
			mark = fmt.Sprintf("%d bytes", art.Size)
		}
		fmt.Fprintf(w, "  %-14s %s\n", art.Name, mark)
	}

	if !ov.IsRepo {
		fmt.Fprintln(w, "Git: not a repository")
		return
	}
	printStatus(w, ov.Status)
	for _, r := range ov.Remotes {
		fmt.Fprintf(w, "Remote: %s %s\n", r.Name, r.FetchURL)
	}
	if !ov.HasRemote {
		fmt.Fprintln(w, "Remote: none configured, sync disabled")
	}
	printLog(w, ov.Log)
}
