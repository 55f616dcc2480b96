package cli

import (
	"github.com/spf13/cobra"
)

func newCleanupCmd() *cobra.Command {
	var (
		deleteBranches bool
		olderThan      int
		dryRun         bool
		confirm        bool
		auto           bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove finished sessions, orphaned locks, and leftover branches",
		Long: "Propose and apply workspace cleanup. Without --yes or --auto, only the\n" +
			"proposal is shown; rerun with --yes to apply it.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := map[string]any{}
			if deleteBranches {
				params["deleteBranches"] = true
			}
			if olderThan > 0 {
				params["olderThan"] = olderThan
			}
			if dryRun {
				params["dryRun"] = true
			}
			if confirm {
				params["confirm"] = true
			}
			if auto {
				params["auto"] = true
			}
			return runWorkflowTool(cmd, "cleanup", params)
		},
	}

	cmd.Flags().BoolVar(&deleteBranches, "delete-branches", false, "Also delete local branches with no session")
	cmd.Flags().IntVar(&olderThan, "older-than", 0, "Only touch sessions idle for at least this many days")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the proposal without applying it")
	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "Apply the proposal")
	cmd.Flags().BoolVar(&auto, "auto", false, "Apply without confirmation")

	return cmd
}
