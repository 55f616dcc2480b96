package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/audit"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/checks"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/gitx"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/logging"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/session"
)

// AbortTool abandons a session: stashes in-flight work, transitions the
// session to ABORTED, and optionally deletes the branch. Trunk's commit
// graph is never touched.
type AbortTool struct {
	Env *Env
}

// AbortParams are the abort tool arguments.
type AbortParams struct {
	BranchName   string `json:"branchName,omitempty"` // defaults to current
	DeleteBranch bool   `json:"deleteBranch,omitempty"`
	Auto         bool   `json:"auto,omitempty"`
}

func (t *AbortTool) Name() string { return "abort" }

func (t *AbortTool) Description() string {
	return "Abandon the session on a branch, stashing uncommitted work and marking it aborted."
}

func (t *AbortTool) Run(ctx context.Context, args json.RawMessage) *Result {
	var params AbortParams
	if err := decode(ctx, args, &params); err != nil {
		return t.Env.fail(ctx, t.Name(), nil, err)
	}
	env := t.Env

	return env.run(ctx, pipeline{
		tool: t.Name(),
		auto: params.Auto,
		build: func(ctx context.Context) (*flow, error) {
			branch := params.BranchName
			if branch == "" {
				current, err := env.Git.CurrentBranch()
				if err != nil {
					return nil, err
				}
				branch = current
			}
			return env.newFlow(ctx, branch)
		},
		pre: func(f *flow) []string {
			return []string{checks.SessionExists, checks.SessionIsActive}
		},
		exec: func(ctx context.Context, f *flow) error {
			return t.execute(ctx, f, params)
		},
	})
}

func (t *AbortTool) execute(ctx context.Context, f *flow, params AbortParams) error {
	env := t.Env

	current, err := env.Git.CurrentBranch()
	if err != nil {
		return err
	}

	if current == f.branch {
		dirty, err := env.Git.HasUncommittedChanges()
		if err != nil {
			return err
		}
		if dirty {
			result, err := env.Git.StashChanges(ctx, gitx.StashReasonAbort, f.branch)
			if err != nil {
				return err
			}
			if _, err := env.Store.Update(ctx, f.session.ID, func(s *session.Session) error {
				s.Metadata.Stash = &session.StashMetadata{
					Ref:       result.Ref,
					Reason:    string(gitx.StashReasonAbort),
					CreatedAt: time.Now().UTC(),
				}
				return nil
			}); err != nil {
				return err
			}
			f.put("stashedRef", result.Ref)
		}
	}

	updated, err := env.Store.Update(ctx, f.session.ID, func(s *session.Session) error {
		return s.Abort("abort")
	})
	if err != nil {
		return err
	}
	f.attachSession(updated)

	env.audit(ctx, audit.Entry{
		SessionID: updated.ID,
		Action:    "abort",
		Result:    audit.ResultAborted,
		Details:   audit.Details{Command: "devsolo abort"},
	})

	if params.DeleteBranch {
		// Step off the branch before force-deleting it.
		if current == f.branch {
			if err := env.Git.Checkout(ctx, f.trunk); err != nil {
				return err
			}
		}
		if err := env.Git.DeleteLocalBranch(ctx, f.branch, true); err != nil {
			return err
		}
		if err := env.Git.DeleteRemoteBranch(ctx, f.branch); err != nil {
			logging.Warn(ctx, "remote branch deletion failed", "error", err.Error())
		}
		f.put("branchDeleted", f.branch)
	}

	if err := env.Store.ClearCurrent(); err != nil {
		logging.Warn(ctx, "failed to clear current session", "error", err.Error())
	}
	f.next = append(f.next, "start fresh with: devsolo launch")
	return nil
}
