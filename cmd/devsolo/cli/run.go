package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/checks"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/tools"
)

// jsonOutput is toggled by the root --json persistent flag.
var jsonOutput bool

// maxPromptRounds bounds interactive prompt resolution so a check that keeps
// prompting cannot loop forever.
const maxPromptRounds = 3

// runWorkflowTool dispatches one workflow tool and renders the result.
// Prompt-level pre-flight outcomes are resolved interactively on a TTY and
// the tool is re-dispatched with the chosen option.
func runWorkflowTool(cmd *cobra.Command, name string, params map[string]any) error {
	ctx := cmd.Context()

	env, err := tools.NewEnv(ctx)
	if err != nil {
		return err
	}

	res := dispatch(cmd, env, name, params)

	for round := 0; round < maxPromptRounds; round++ {
		prompt := promptedCheck(res)
		if prompt == nil || !interactive(params) {
			break
		}
		choice, err := pickOption(cmd, prompt)
		if err != nil {
			return NewSilentError(err)
		}
		params["chosenOption"] = choice
		res = dispatch(cmd, env, name, params)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		renderResult(cmd.OutOrStdout(), res)
	}

	if !res.Success {
		return NewSilentError(fmt.Errorf("%s failed", name))
	}
	return nil
}

func dispatch(cmd *cobra.Command, env *tools.Env, name string, params map[string]any) *tools.Result {
	raw, err := json.Marshal(params)
	if err != nil {
		return &tools.Result{Success: false, Errors: []string{err.Error()}}
	}
	return env.Dispatch(cmd.Context(), name, raw)
}

// promptedCheck returns the first unresolved prompt-level pre-flight check.
func promptedCheck(res *tools.Result) *checks.Result {
	if res.Success {
		return nil
	}
	for i := range res.PreFlightChecks {
		check := &res.PreFlightChecks[i]
		if check.Level == checks.LevelPrompt && len(check.Options) > 0 {
			return check
		}
	}
	return nil
}

// interactive reports whether prompts may be shown: stdin is a terminal and
// the caller did not ask for unattended resolution.
func interactive(params map[string]any) bool {
	if auto, ok := params["auto"].(bool); ok && auto {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// pickOption runs the option picker for one prompt-level check. The
// recommended option is preselected.
func pickOption(cmd *cobra.Command, check *checks.Result) (string, error) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mark(check.Level), check.Message)

	var selected string
	options := make([]huh.Option[string], 0, len(check.Options))
	for _, opt := range check.Options {
		label := opt.Label
		if opt.Description != "" {
			label = fmt.Sprintf("%s  (%s)", opt.Label, opt.Description)
		}
		options = append(options, huh.NewOption(label, opt.ID))
		if opt.AutoRecommended {
			selected = opt.ID
		}
	}

	form := NewAccessibleForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(check.Name).
				Options(options...).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("selection cancelled: %w", err)
	}
	return selected, nil
}

// renderResult prints a tool result for humans.
func renderResult(w io.Writer, res *tools.Result) {
	for _, check := range res.PreFlightChecks {
		fmt.Fprintf(w, "%s %s\n", mark(check.Level), check.Message)
		for _, s := range check.Suggestions {
			fmt.Fprintf(w, "    try: %s\n", s)
		}
	}

	switch {
	case res.Success && res.BranchName != "":
		fmt.Fprintf(w, "✓ done (branch %s", res.BranchName)
		if res.State != "" {
			fmt.Fprintf(w, ", state %s", res.State)
		}
		fmt.Fprintln(w, ")")
	case res.Success:
		fmt.Fprintln(w, "✓ done")
	default:
		for _, msg := range res.Errors {
			fmt.Fprintf(w, "✕ %s\n", msg)
		}
	}

	for _, check := range res.PostFlightVerifications {
		if check.Level == checks.LevelFail || check.Level == checks.LevelWarn {
			fmt.Fprintf(w, "%s %s\n", mark(check.Level), check.Message)
		}
	}
	for _, step := range res.NextSteps {
		fmt.Fprintf(w, "  next: %s\n", step)
	}
}

func mark(level checks.Level) string {
	switch level {
	case checks.LevelPass:
		return "✓"
	case checks.LevelFail:
		return "✕"
	case checks.LevelWarn:
		return "!"
	case checks.LevelPrompt:
		return "?"
	default:
		return "○"
	}
}
