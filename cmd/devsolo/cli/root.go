// Package cli wires the devsolo commands. Each command is a thin adapter
// from flags to the corresponding workflow tool; the tools own all policy.
package cli

import (
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/config"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/logging"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/telemetry"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/versioncheck"
)

const gettingStarted = `

Getting Started:
  Run 'devsolo init' inside a repository, then 'devsolo launch' to start a
  feature branch. 'devsolo ship' pushes, opens the pull request, waits for
  checks, merges, and cleans up.

`

const accessibilityHelp = `
Environment Variables:
  ACCESSIBLE    Set to any value (e.g., ACCESSIBLE=1) to enable accessibility
                mode. This uses simpler text prompts instead of interactive
                TUI elements, which works better with screen readers.
`

// Version information (can be set at build time)
var (
	Version = "dev"
	Commit  = "unknown"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devsolo",
		Short: "devsolo CLI",
		Long:  "Git workflow automation for solo developers" + gettingStarted + accessibilityHelp,
		// Let main.go handle error printing to avoid duplication
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logging.SetLogLevelGetter(func() string {
				cfg, err := config.Load()
				if err != nil {
					return ""
				}
				return cfg.Preferences.LogLevel
			})
			// Per-invocation log file keyed by a fresh run id.
			_ = logging.Init(uuid.NewString())
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			var enabled *bool
			if cfg, err := config.Load(); err == nil {
				enabled = cfg.Preferences.Telemetry
			}
			client := telemetry.NewClient(Version, enabled)
			defer client.Close()
			client.TrackCommand(cmd, config.IsInitialized())

			versioncheck.CheckAndNotify(cmd, Version)
			logging.Close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Emit the raw tool result as JSON")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newLaunchCmd())
	cmd.AddCommand(newCommitCmd())
	cmd.AddCommand(newShipCmd())
	cmd.AddCommand(newSwapCmd())
	cmd.AddCommand(newAbortCmd())
	cmd.AddCommand(newHotfixCmd())
	cmd.AddCommand(newCleanupCmd())
	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newHooksCmd())
	cmd.AddCommand(newMcpCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "devsolo %s (%s)\n", Version, Commit)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
