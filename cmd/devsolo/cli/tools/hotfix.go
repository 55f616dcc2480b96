package tools

import (
	"context"
	"encoding/json"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/checks"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/errkind"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/logging"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/naming"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/session"
)

// hotfixSeverities are the accepted severity levels.
var hotfixSeverities = map[string]bool{
	"low": true, "medium": true, "high": true, "critical": true,
}

// HotfixTool opens an expedited hotfix session off trunk.
type HotfixTool struct {
	Env *Env
}

// HotfixParams are the hotfix tool arguments.
type HotfixParams struct {
	Issue        string `json:"issue"`
	Severity     string `json:"severity,omitempty"`
	Force        bool   `json:"force,omitempty"`
	Auto         bool   `json:"auto,omitempty"`
	ChosenOption string `json:"chosenOption,omitempty"`
}

func (t *HotfixTool) Name() string { return "hotfix" }

func (t *HotfixTool) Description() string {
	return "Start an expedited hotfix session on a hotfix/ branch off trunk."
}

func (t *HotfixTool) Run(ctx context.Context, args json.RawMessage) *Result {
	var params HotfixParams
	if err := decode(ctx, args, &params); err != nil {
		return t.Env.fail(ctx, t.Name(), nil, err)
	}
	env := t.Env

	return env.run(ctx, pipeline{
		tool:  t.Name(),
		force: params.Force,
		auto:  params.Auto,
		collect: func() []MissingParam {
			var missing []MissingParam
			if params.Issue == "" {
				missing = append(missing, MissingParam{Name: "issue", Description: "what the hotfix addresses"})
			}
			if params.Severity != "" && !hotfixSeverities[params.Severity] {
				missing = append(missing, MissingParam{Name: "severity", Description: "one of low, medium, high, critical"})
			}
			return missing
		},
		build: func(ctx context.Context) (*flow, error) {
			branch := "hotfix/" + naming.Slugify(params.Issue)
			if branch == "hotfix/" {
				return nil, errkind.New(errkind.MissingParameter, "issue %q yields an empty branch name", params.Issue)
			}
			f, err := env.newFlow(ctx, branch)
			if err != nil {
				return nil, err
			}
			f.checks.ChosenOption = params.ChosenOption
			return f, nil
		},
		pre: func(f *flow) []string {
			return []string{
				checks.OnMainBranch,
				checks.WorkingDirectoryClean,
				checks.BranchNameAvailable,
			}
		},
		exec: func(ctx context.Context, f *flow) error {
			if err := env.Git.CreateBranchFrom(ctx, f.branch, f.trunk); err != nil {
				return err
			}
			if err := env.Git.Checkout(ctx, f.branch); err != nil {
				return err
			}

			s := session.New(f.branch, session.WorkflowHotfix)
			s.Metadata.Description = params.Issue
			if env.Config != nil {
				s.Metadata.Author = env.Config.Preferences.Author
			}
			if err := s.TransitionTo(session.StateHotfixReady, "hotfix"); err != nil {
				return err
			}
			if err := env.Store.Save(ctx, s); err != nil {
				return err
			}
			if err := env.Store.SetCurrent(s.ID); err != nil {
				logging.Warn(ctx, "failed to record current session", "error", err.Error())
			}
			f.attachSession(s)

			severity := params.Severity
			if severity == "" {
				severity = "high"
			}
			f.put("severity", severity)
			f.next = append(f.next,
				"apply the fix, then: devsolo commit",
				"ship the hotfix with: devsolo ship",
			)
			return nil
		},
		post: func(f *flow) []string {
			f.checks.ExpectedState = session.StateHotfixReady
			return []string{
				checks.SessionCreated,
				checks.BranchCheckedOut,
				checks.SessionStateCorrect,
			}
		},
	})
}
