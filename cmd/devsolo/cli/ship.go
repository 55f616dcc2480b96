package cli

import (
	"github.com/spf13/cobra"
)

func newShipCmd() *cobra.Command {
	var (
		message       string
		prDescription string
		stagedOnly    bool
		noPush        bool
		noPR          bool
		noMerge       bool
		force         bool
		auto          bool
	)

	cmd := &cobra.Command{
		Use:   "ship",
		Short: "Push, open the pull request, wait for checks, merge, and clean up",
		Long: "Drive the active session to completion: commit outstanding changes,\n" +
			"push the branch, create or update the pull request, wait for CI,\n" +
			"squash-merge, and clean up local and remote branches.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := map[string]any{}
			if message != "" {
				params["message"] = message
			}
			if prDescription != "" {
				params["prDescription"] = prDescription
			}
			if stagedOnly {
				params["stagedOnly"] = true
			}
			if noPush {
				params["push"] = false
			}
			if noPR {
				params["createPR"] = false
			}
			if noMerge {
				params["merge"] = false
			}
			if force {
				params["force"] = true
			}
			if auto {
				params["auto"] = true
			}
			return runWorkflowTool(cmd, "ship", params)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Commit message for outstanding changes")
	cmd.Flags().StringVar(&prDescription, "pr-description", "", "Pull request body")
	cmd.Flags().BoolVar(&stagedOnly, "staged-only", false, "Commit only already-staged files")
	cmd.Flags().BoolVar(&noPush, "no-push", false, "Stop before pushing")
	cmd.Flags().BoolVar(&noPR, "no-pr", false, "Push but do not create a pull request")
	cmd.Flags().BoolVar(&noMerge, "no-merge", false, "Create the pull request but do not merge")
	cmd.Flags().BoolVar(&force, "force", false, "Proceed despite failed pre-flight checks")
	cmd.Flags().BoolVar(&auto, "auto", false, "Resolve prompts with their recommended option")

	return cmd
}
