package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/checks"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/errkind"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/gitx"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/logging"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/naming"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/session"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/validation"
)

// LaunchTool starts a new workflow session on a new feature branch off
// trunk.
type LaunchTool struct {
	Env *Env
}

// LaunchParams are the launch tool arguments.
type LaunchParams struct {
	BranchName   string `json:"branchName,omitempty"`
	Description  string `json:"description,omitempty"`
	Force        bool   `json:"force,omitempty"`
	StashRef     string `json:"stashRef,omitempty"`
	PopStash     *bool  `json:"popStash,omitempty"`
	Auto         bool   `json:"auto,omitempty"`
	ChosenOption string `json:"chosenOption,omitempty"`
}

func (t *LaunchTool) Name() string { return "launch" }

func (t *LaunchTool) Description() string {
	return "Start a new feature: create a branch off trunk and open a workflow session on it."
}

func (t *LaunchTool) Run(ctx context.Context, args json.RawMessage) *Result {
	var params LaunchParams
	if err := decode(ctx, args, &params); err != nil {
		return t.Env.fail(ctx, t.Name(), nil, err)
	}
	env := t.Env

	return env.run(ctx, pipeline{
		tool:  t.Name(),
		force: params.Force,
		auto:  params.Auto,
		build: func(ctx context.Context) (*flow, error) {
			branch, err := t.deriveBranchName(ctx, params)
			if err != nil {
				return nil, err
			}
			f, err := env.newFlow(ctx, branch)
			if err != nil {
				return nil, err
			}
			// Pre-flight looks at the session on trunk, where launch runs.
			current, err := env.Git.CurrentBranch()
			if err != nil {
				return nil, err
			}
			trunkSession, err := env.sessionFor(ctx, current)
			if err != nil {
				return nil, err
			}
			f.checks.Session = trunkSession
			f.checks.ChosenOption = params.ChosenOption
			return f, nil
		},
		pre: func(f *flow) []string {
			return []string{
				checks.OnMainBranch,
				checks.WorkingDirectoryClean,
				checks.MainUpToDate,
				checks.NoExistingSession,
				checks.BranchNameAvailable,
			}
		},
		exec: func(ctx context.Context, f *flow) error {
			return t.execute(ctx, f, params)
		},
		post: func(f *flow) []string {
			f.checks.Session = f.session
			f.checks.ExpectedState = session.StateBranchReady
			return []string{
				checks.SessionCreated,
				checks.BranchCheckedOut,
				checks.SessionStateCorrect,
				checks.BranchAvailable,
			}
		},
	})
}

// deriveBranchName computes the branch: explicit input, else description,
// else changed files, else a timestamp.
func (t *LaunchTool) deriveBranchName(ctx context.Context, params LaunchParams) (string, error) {
	if params.BranchName != "" {
		if err := validation.ValidateBranchNameSafe(params.BranchName); err != nil {
			return "", errkind.Wrap(errkind.MissingParameter, err, "invalid branch name")
		}
		return params.BranchName, nil
	}
	if params.Description != "" {
		return naming.FromDescription(params.Description)
	}
	if files, err := t.Env.Git.ChangedFiles(ctx); err == nil && len(files) > 0 {
		if branch, err := naming.FromChangedFiles(files); err == nil {
			return branch, nil
		}
	}
	return naming.Timestamped(time.Now()), nil
}

func (t *LaunchTool) execute(ctx context.Context, f *flow, params LaunchParams) error {
	env := t.Env

	// A sentinel session on trunk blocks the branch map; retire it first.
	if trunkSession := f.checks.Session; trunkSession != nil && trunkSession.BranchName == f.trunk && !trunkSession.CurrentState.IsTerminal() {
		if _, err := env.Store.Update(ctx, trunkSession.ID, func(s *session.Session) error {
			return s.Abort("launch")
		}); err != nil {
			return err
		}
	}

	// The dirty-tree prompt may have resolved to a stash.
	stashRef := params.StashRef
	dirty, err := env.Git.HasUncommittedChanges()
	if err != nil {
		return err
	}
	if dirty && stashRef == "" && (params.ChosenOption == "stash" || params.Auto) {
		result, err := env.Git.StashChanges(ctx, gitx.StashReasonLaunch, "")
		if err != nil {
			return err
		}
		stashRef = result.Ref
		logging.Info(ctx, "stashed working tree before launch", "ref", result.Ref)
	}

	if err := env.Git.CreateBranchFrom(ctx, f.branch, f.trunk); err != nil {
		return err
	}
	if err := env.Git.Checkout(ctx, f.branch); err != nil {
		return err
	}

	s := session.New(f.branch, session.WorkflowLaunch)
	s.Metadata.Description = params.Description
	if env.Config != nil {
		s.Metadata.Author = env.Config.Preferences.Author
	}
	if err := s.TransitionTo(session.StateBranchReady, "launch"); err != nil {
		return err
	}
	if err := env.Store.Save(ctx, s); err != nil {
		return err
	}
	if err := env.Store.SetCurrent(s.ID); err != nil {
		logging.Warn(ctx, "failed to record current session", "error", err.Error())
	}
	f.attachSession(s)

	if stashRef != "" && (params.PopStash == nil || *params.PopStash) {
		if err := env.Git.PopStash(ctx, stashRef); err != nil {
			return err
		}
		if _, err := env.Store.Update(ctx, s.ID, func(s *session.Session) error {
			s.Metadata.Stash = &session.StashMetadata{
				Ref:       stashRef,
				Reason:    string(gitx.StashReasonLaunch),
				CreatedAt: time.Now().UTC(),
			}
			return nil
		}); err != nil {
			return err
		}
	}

	f.put("branchCreated", f.branch)
	f.next = append(f.next,
		"make your changes, then: devsolo commit",
		"when ready to merge: devsolo ship",
	)
	return nil
}
