package cli

import (
	"github.com/spf13/cobra"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/mcpserver"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/tools"
)

func newMcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server on stdio",
		Long: "Expose the workflow tools over the Model Context Protocol for agent\n" +
			"clients. The server reads requests from stdin and answers on stdout.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := tools.NewEnv(cmd.Context())
			if err != nil {
				return err
			}
			return mcpserver.Serve(cmd.Context(), env, Version)
		},
	}
}
