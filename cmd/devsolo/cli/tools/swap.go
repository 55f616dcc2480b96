package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/checks"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/gitx"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/logging"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/session"
)

// SwapTool moves between concurrent sessions, stashing and restoring
// uncommitted work along the way.
type SwapTool struct {
	Env *Env
}

// SwapParams are the swap tool arguments.
type SwapParams struct {
	BranchName string `json:"branchName"`
	Stash      bool   `json:"stash,omitempty"`
	Auto       bool   `json:"auto,omitempty"`
}

func (t *SwapTool) Name() string { return "swap" }

func (t *SwapTool) Description() string {
	return "Switch to another session's branch, stashing uncommitted work on the way out."
}

func (t *SwapTool) Run(ctx context.Context, args json.RawMessage) *Result {
	var params SwapParams
	if err := decode(ctx, args, &params); err != nil {
		return t.Env.fail(ctx, t.Name(), nil, err)
	}
	env := t.Env

	return env.run(ctx, pipeline{
		tool: t.Name(),
		auto: params.Auto,
		collect: func() []MissingParam {
			if params.BranchName == "" {
				return []MissingParam{{Name: "branchName", Description: "the branch to swap to"}}
			}
			return nil
		},
		build: func(ctx context.Context) (*flow, error) {
			return env.newFlow(ctx, params.BranchName)
		},
		pre: func(f *flow) []string {
			return []string{checks.SessionExists, checks.TargetBranchExists}
		},
		exec: func(ctx context.Context, f *flow) error {
			return t.execute(ctx, f, params)
		},
		post: func(f *flow) []string {
			return []string{checks.OnTargetBranch, checks.TargetSessionActive}
		},
	})
}

func (t *SwapTool) execute(ctx context.Context, f *flow, params SwapParams) error {
	env := t.Env

	currentBranch, err := env.Git.CurrentBranch()
	if err != nil {
		return err
	}

	dirty, err := env.Git.HasUncommittedChanges()
	if err != nil {
		return err
	}
	if dirty && (params.Stash || params.Auto) {
		result, err := env.Git.StashChanges(ctx, gitx.StashReasonSwap, currentBranch)
		if err != nil {
			return err
		}
		// The stash ref belongs to the session we are leaving.
		if from, err := env.sessionFor(ctx, currentBranch); err == nil && from != nil {
			if _, err := env.Store.Update(ctx, from.ID, func(s *session.Session) error {
				s.Metadata.Stash = &session.StashMetadata{
					Ref:       result.Ref,
					Reason:    string(gitx.StashReasonSwap),
					CreatedAt: time.Now().UTC(),
				}
				return nil
			}); err != nil {
				return err
			}
		}
		f.put("stashedRef", result.Ref)
	}

	if err := env.Git.Checkout(ctx, params.BranchName); err != nil {
		return err
	}
	if err := env.Store.SetCurrent(f.session.ID); err != nil {
		logging.Warn(ctx, "failed to record current session", "error", err.Error())
	}

	// Restore the target session's parked work. The stash stack renumbers,
	// so the recorded ref is a weak handle; a vanished stash is tolerated.
	if stash := f.session.Metadata.Stash; stash != nil && stash.Reason == string(gitx.StashReasonSwap) {
		ref := stash.Ref
		if err := env.Git.PopStash(ctx, ref); err != nil {
			return err
		}
		updated, err := env.Store.Update(ctx, f.session.ID, func(s *session.Session) error {
			s.Metadata.Stash = nil
			return nil
		})
		if err != nil {
			return err
		}
		f.attachSession(updated)
		f.put("restoredStash", ref)
	}

	f.put("swappedFrom", currentBranch)
	return nil
}
