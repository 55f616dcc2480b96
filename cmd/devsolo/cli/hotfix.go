package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newHotfixCmd() *cobra.Command {
	var (
		severity string
		force    bool
		auto     bool
	)

	cmd := &cobra.Command{
		Use:   "hotfix <issue...>",
		Short: "Start an expedited hotfix workflow from the trunk",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{"issue": strings.Join(args, " ")}
			if severity != "" {
				params["severity"] = severity
			}
			if force {
				params["force"] = true
			}
			if auto {
				params["auto"] = true
			}
			return runWorkflowTool(cmd, "hotfix", params)
		},
	}

	cmd.Flags().StringVar(&severity, "severity", "", "Severity: critical, high, or medium (default high)")
	cmd.Flags().BoolVar(&force, "force", false, "Proceed despite failed pre-flight checks")
	cmd.Flags().BoolVar(&auto, "auto", false, "Resolve prompts with their recommended option")

	return cmd
}
