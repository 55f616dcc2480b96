package cli

import (
	"github.com/spf13/cobra"
)

func newCommitCmd() *cobra.Command {
	var (
		message    string
		stagedOnly bool
		noVerify   bool
		force      bool
		auto       bool
	)

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit changes within the active workflow session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := map[string]any{}
			if message != "" {
				params["message"] = message
			}
			if stagedOnly {
				params["stagedOnly"] = true
			}
			if noVerify {
				params["noVerify"] = true
			}
			if force {
				params["force"] = true
			}
			if auto {
				params["auto"] = true
			}
			return runWorkflowTool(cmd, "commit", params)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Commit message")
	cmd.Flags().BoolVar(&stagedOnly, "staged-only", false, "Commit only already-staged files")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip git hooks for this commit")
	cmd.Flags().BoolVar(&force, "force", false, "Proceed despite failed pre-flight checks")
	cmd.Flags().BoolVar(&auto, "auto", false, "Resolve prompts with their recommended option")

	return cmd
}
