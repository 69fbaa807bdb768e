package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/ralphmgr/internal/integration"
)

func newReposCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repos",
		Short: "List and clone GitHub repositories with the gh CLI",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List repositories of the authenticated user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			n := limit
			if n <= 0 {
				n = a.Config().GitHub.Limit
			}
			repos, err := a.GitHub().ListRepos(cmd.Context(), n)
			if err != nil {
				return report(cmd, flags, err)
			}
			if flags.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), repos)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, r := range repos {
				fmt.Fprintf(tw, "%s\t%s\n", r.FullName(), r.Description)
			}
			return tw.Flush()
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "L", 0, "maximum number of repositories (default: github.limit)")

	cloneCmd := &cobra.Command{
		Use:   "clone OWNER/NAME DIR",
		Short: "Clone a repository into DIR",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.GitHub().Clone(cmd.Context(), args[0], args[1]); err != nil {
				return report(cmd, flags, err)
			}
			if flags.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), integration.ResultOf(nil))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cloned %s into %s\n", args[0], args[1])
			return nil
		},
	}

	cmd.AddCommand(listCmd, cloneCmd)
	return cmd
}
