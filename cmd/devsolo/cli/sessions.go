package cli

import (
	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	var (
		all            bool
		includeExpired bool
	)

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List workflow sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := map[string]any{}
			if all {
				params["all"] = true
			}
			if includeExpired {
				params["includeExpired"] = true
			}
			return runWorkflowTool(cmd, "sessions", params)
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include completed and aborted sessions")
	cmd.Flags().BoolVar(&includeExpired, "include-expired", false, "Include expired sessions")

	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session, branch, and pull request state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorkflowTool(cmd, "status", map[string]any{})
		},
	}
}
