package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/ralphmgr/internal/app"
	"github.com/dshills/ralphmgr/internal/integration"
	"github.com/dshills/ralphmgr/internal/integration/git"
)

func newGitCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "git",
		Short: "Version control operations on the workspace",
	}

	gitRun := func(fn func(ctx context.Context, cmd *cobra.Command, a *app.App) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			return withWorkspace(cmd, flags, func(ctx context.Context, a *app.App) error {
				return fn(ctx, cmd, a)
			})
		}
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a repository in the workspace if there is none",
		Args:  cobra.NoArgs,
		RunE: gitRun(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			created, err := a.Session().EnsureRepo(ctx)
			if err != nil {
				return err
			}
			if flags.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]bool{"created": created})
			}
			if created {
				fmt.Fprintln(cmd.OutOrStdout(), "Initialized repository")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Repository already exists")
			}
			return nil
		}),
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show branch and changed files",
		Args:  cobra.NoArgs,
		RunE: gitRun(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			st, err := a.Session().GitStatus(ctx)
			if err != nil {
				return err
			}
			if flags.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), st)
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		}),
	}

	var logLimit int
	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent commits",
		Args:  cobra.NoArgs,
		RunE: gitRun(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			limit := logLimit
			if limit <= 0 {
				limit = a.Config().Git.LogLimit
			}
			commits, err := a.Session().GitLog(ctx, limit)
			if err != nil {
				return err
			}
			if flags.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), commits)
			}
			printLog(cmd.OutOrStdout(), commits)
			return nil
		}),
	}
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 0, "number of commits (default: git.log_limit)")

	var staged bool
	diffCmd := &cobra.Command{
		Use:   "diff",
		Short: "Show the working tree or staged diff",
		Args:  cobra.NoArgs,
		RunE: gitRun(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			diff, err := a.Session().GitDiff(ctx, staged)
			if err != nil {
				return err
			}
			if flags.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"diff": diff})
			}
			_, err = io.WriteString(cmd.OutOrStdout(), diff)
			return err
		}),
	}
	diffCmd.Flags().BoolVar(&staged, "staged", false, "show staged changes")

	var message string
	commitCmd := &cobra.Command{
		Use:   "commit",
		Short: "Stage all changes and commit",
		Args:  cobra.NoArgs,
		RunE: gitRun(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			c, err := a.Session().GitStageAndCommit(ctx, message)
			if err != nil {
				return err
			}
			return printCommitResult(cmd.OutOrStdout(), flags, &git.CommitResult{Commit: c})
		}),
	}
	commitCmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	_ = commitCmd.MarkFlagRequired("message")

	var branch string
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull with rebase, then push the branch to the remote",
		Args:  cobra.NoArgs,
		RunE: gitRun(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			synced, err := a.Session().GitSync(ctx, branch)
			if err != nil {
				return err
			}
			if flags.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"branch": synced})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Synced %s\n", synced)
			return nil
		}),
	}
	syncCmd.Flags().StringVarP(&branch, "branch", "b", "", "branch to sync (default: current branch)")

	var csMessage string
	var noSync bool
	commitSyncCmd := &cobra.Command{
		Use:   "commit-sync",
		Short: "Commit all changes and sync when a remote is configured",
		Args:  cobra.NoArgs,
		RunE: gitRun(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			shouldSync := a.Config().Git.AutoSync && !noSync
			res, err := a.Session().GitCommitAndSync(ctx, csMessage, shouldSync)
			if err != nil {
				return err
			}
			return printCommitResult(cmd.OutOrStdout(), flags, res)
		}),
	}
	commitSyncCmd.Flags().StringVarP(&csMessage, "message", "m", "", "commit message")
	commitSyncCmd.Flags().BoolVar(&noSync, "no-sync", false, "commit only")
	_ = commitSyncCmd.MarkFlagRequired("message")

	cmd.AddCommand(initCmd, statusCmd, logCmd, diffCmd, commitCmd, syncCmd, commitSyncCmd)
	return cmd
}

func printCommitResult(w io.Writer, flags *globalFlags, res *git.CommitResult) error {
	if flags.jsonOutput {
		return writeJSON(w, struct {
			integration.Result
			*git.CommitResult
		}{integration.ResultOf(nil), res})
	}
	if res.Commit != nil {
		fmt.Fprintf(w, "[%s] %s\n", res.Commit.ShortHash, firstLine(res.Commit.Message))
	}
	if res.Synced {
		fmt.Fprintf(w, "Synced %s\n", res.Branch)
	}
	return nil
}

func printStatus(w io.Writer, st *git.Status) {
	switch {
	case st.IsDetached:
		fmt.Fprintf(w, "HEAD detached at %s\n", st.Head)
	case st.Upstream != "":
		fmt.Fprintf(w, "On branch %s (%s, ahead %d, behind %d)\n", st.Branch, st.Upstream, st.Ahead, st.Behind)
	default:
		fmt.Fprintf(w, "On branch %s\n", st.Branch)
	}
	if st.IsClean() {
		fmt.Fprintln(w, "Working tree clean")
		return
	}
	for _, f := range st.Staged {
		fmt.Fprintf(w, "  staged     %-10s %s\n", f.Status, f.Path)
	}
	for _, f := range st.Unstaged {
		fmt.Fprintf(w, "  unstaged   %-10s %s\n", f.Status, f.Path)
	}
	for _, p := range st.Untracked {
		fmt.Fprintf(w, "  untracked  %s\n", p)
	}
	for _, p := range st.Conflicts {
		fmt.Fprintf(w, "  conflict   %s\n", p)
	}
}

func printLog(w io.Writer, commits []*git.Commit) {
	for _, c := range commits {
		fmt.Fprintf(w, "%s %s %s (%s)\n",
			c.ShortHash,
			c.AuthorTime.Format("2006-01-02"),
			firstLine(c.Message),
			c.Author,
		)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
