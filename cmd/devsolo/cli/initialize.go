package cli

import (
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var (
		scope    string
		platform string
		noHooks  bool
		force    bool
		auto     bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize devsolo in this repository",
		Long: "Write the configuration and initialization marker, and install the\n" +
			"git hooks that keep commits off the trunk.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := map[string]any{}
			if scope != "" {
				params["scope"] = scope
			}
			if platform != "" {
				params["gitPlatform"] = platform
			}
			if noHooks {
				params["hooks"] = false
			}
			if force {
				params["force"] = true
			}
			if auto {
				params["auto"] = true
			}
			return runWorkflowTool(cmd, "init", params)
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "Configuration scope: project or user")
	cmd.Flags().StringVar(&platform, "git-platform", "", "Hosting platform (default github)")
	cmd.Flags().BoolVar(&noHooks, "no-hooks", false, "Skip git hook installation")
	cmd.Flags().BoolVar(&force, "force", false, "Reinitialize an already-initialized repository")
	cmd.Flags().BoolVar(&auto, "auto", false, "Accept all defaults without prompting")

	return cmd
}
