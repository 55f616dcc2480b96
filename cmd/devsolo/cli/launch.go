package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newLaunchCmd() *cobra.Command {
	var (
		branch string
		force  bool
		auto   bool
	)

	cmd := &cobra.Command{
		Use:   "launch [description...]",
		Short: "Start a new feature workflow from the trunk",
		Long: "Create a feature branch off the trunk and open a workflow session on it.\n" +
			"With no branch name, the name is derived from the description or the changed files.",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{}
			if branch != "" {
				params["branchName"] = branch
			}
			if len(args) > 0 {
				params["description"] = strings.Join(args, " ")
			}
			if force {
				params["force"] = true
			}
			if auto {
				params["auto"] = true
			}
			return runWorkflowTool(cmd, "launch", params)
		},
	}

	cmd.Flags().StringVarP(&branch, "branch", "b", "", "Branch name to create")
	cmd.Flags().BoolVar(&force, "force", false, "Proceed despite failed pre-flight checks")
	cmd.Flags().BoolVar(&auto, "auto", false, "Resolve prompts with their recommended option")

	return cmd
}
