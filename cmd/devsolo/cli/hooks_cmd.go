package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/config"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/gitx"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/paths"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/session"
)

func newHooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hooks",
		Short: "Manage the devsolo git hooks",
	}
	cmd.AddCommand(newHooksRunCmd())
	cmd.AddCommand(newHooksInstallCmd())
	cmd.AddCommand(newHooksUninstallCmd())
	return cmd
}

// newHooksRunCmd is the entry point the generated hook scripts exec into.
// It enforces workflow policy; anything it cannot determine allows the git
// operation rather than bricking the repository.
func newHooksRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "run <pre-commit|pre-push>",
		Short:     "Run hook policy checks (invoked by git)",
		Hidden:    true,
		Args:      cobra.ExactArgs(1),
		ValidArgs: config.HookNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHookPolicy(cmd, args[0])
		},
	}
}

func runHookPolicy(cmd *cobra.Command, hook string) error {
	// Workflow tools drive git themselves; their subprocesses pass.
	if os.Getenv(paths.WorkflowEnvVar) != "" {
		return nil
	}

	repo, err := gitx.Open(".")
	if err != nil {
		return nil //nolint:nilerr // outside a repository there is nothing to enforce
	}
	branch, err := repo.CurrentBranch()
	if err != nil {
		return nil //nolint:nilerr // detached HEAD is git's problem, not ours
	}
	trunk, err := repo.MainBranch()
	if err != nil {
		return nil //nolint:nilerr
	}

	if branch == trunk {
		fmt.Fprintf(cmd.ErrOrStderr(),
			"devsolo: %s on %q is blocked; start a feature branch with 'devsolo launch'\n",
			hook, trunk)
		return NewSilentError(fmt.Errorf("%s blocked on trunk", hook))
	}

	// An active session owns the branch: git operations go through the
	// workflow tools so the session state stays truthful. Without a session
	// the operation is allowed, the user just loses workflow tracking.
	if store, err := session.Open(); err == nil {
		s, err := store.GetByBranch(cmd.Context(), branch)
		switch {
		case err == nil && s.IsActive():
			tool := "devsolo commit"
			if hook == "pre-push" {
				tool = "devsolo ship"
			}
			fmt.Fprintf(cmd.ErrOrStderr(),
				"devsolo: session %s owns %q; use '%s' instead of git directly\n",
				s.ID, branch, tool)
			return NewSilentError(fmt.Errorf("%s blocked by active session on %s", hook, branch))
		case errors.Is(err, session.ErrNotFound):
			fmt.Fprintf(cmd.ErrOrStderr(),
				"devsolo: no session on %q; 'devsolo launch' tracks this work\n", branch)
		case err == nil && !s.IsActive():
			fmt.Fprintf(cmd.ErrOrStderr(),
				"devsolo: session on %q is %s; consider 'devsolo launch'\n",
				branch, s.CurrentState)
		}
	}
	return nil
}

func newHooksInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install the devsolo git hooks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			installed, skipped, err := config.MaterializeHooks()
			if err != nil {
				return err
			}
			for _, name := range installed {
				fmt.Fprintf(cmd.OutOrStdout(), "✓ %s installed\n", name)
			}
			for _, name := range skipped {
				fmt.Fprintf(cmd.OutOrStdout(), "○ %s skipped (existing hook kept)\n", name)
			}
			return nil
		},
	}
}

func newHooksUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the devsolo git hooks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.RemoveHooks(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ hooks removed")
			return nil
		},
	}
}
