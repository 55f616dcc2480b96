package cli

import (
	"github.com/spf13/cobra"
)

func newSwapCmd() *cobra.Command {
	var (
		stash bool
		auto  bool
	)

	cmd := &cobra.Command{
		Use:   "swap <branch>",
		Short: "Switch to another session branch, stashing work in flight",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{"branchName": args[0]}
			if stash {
				params["stash"] = true
			}
			if auto {
				params["auto"] = true
			}
			return runWorkflowTool(cmd, "swap", params)
		},
	}

	cmd.Flags().BoolVar(&stash, "stash", false, "Stash uncommitted changes before switching")
	cmd.Flags().BoolVar(&auto, "auto", false, "Resolve prompts with their recommended option")

	return cmd
}
