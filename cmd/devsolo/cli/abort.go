package cli

import (
	"github.com/spf13/cobra"
)

func newAbortCmd() *cobra.Command {
	var (
		branch       string
		deleteBranch bool
		auto         bool
	)

	cmd := &cobra.Command{
		Use:   "abort",
		Short: "Abort a workflow session, preserving uncommitted work in a stash",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := map[string]any{}
			if branch != "" {
				params["branchName"] = branch
			}
			if deleteBranch {
				params["deleteBranch"] = true
			}
			if auto {
				params["auto"] = true
			}
			return runWorkflowTool(cmd, "abort", params)
		},
	}

	cmd.Flags().StringVarP(&branch, "branch", "b", "", "Branch whose session to abort (default: current)")
	cmd.Flags().BoolVar(&deleteBranch, "delete-branch", false, "Delete the branch after aborting")
	cmd.Flags().BoolVar(&auto, "auto", false, "Resolve prompts with their recommended option")

	return cmd
}
