package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/audit"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/checks"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/errkind"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/github"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/gitx"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/logging"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/session"
)

// ShipTool drives a committed session through push, PR, CI wait, squash
// merge, and branch cleanup. Every step is a checkpoint: progress lands in
// the session before errors propagate, so a retry resumes where it stopped.
type ShipTool struct {
	Env *Env
}

// ShipParams are the ship tool arguments. The step gates default to true.
type ShipParams struct {
	Message       string `json:"message,omitempty"`
	PRDescription string `json:"prDescription,omitempty"`
	StagedOnly    bool   `json:"stagedOnly,omitempty"`
	Force         bool   `json:"force,omitempty"`
	Push          *bool  `json:"push,omitempty"`
	CreatePR      *bool  `json:"createPR,omitempty"`
	Merge         *bool  `json:"merge,omitempty"`
	Auto          bool   `json:"auto,omitempty"`
}

func (p ShipParams) doPush() bool  { return p.Push == nil || *p.Push }
func (p ShipParams) doPR() bool    { return p.CreatePR == nil || *p.CreatePR }
func (p ShipParams) doMerge() bool { return p.Merge == nil || *p.Merge }

func (t *ShipTool) Name() string { return "ship" }

func (t *ShipTool) Description() string {
	return "Push the session branch, open a PR, wait for CI, squash-merge, and clean up."
}

func (t *ShipTool) Run(ctx context.Context, args json.RawMessage) *Result {
	var params ShipParams
	if err := decode(ctx, args, &params); err != nil {
		return t.Env.fail(ctx, t.Name(), nil, err)
	}
	env := t.Env

	return env.run(ctx, pipeline{
		tool:  t.Name(),
		force: params.Force,
		auto:  params.Auto,
		build: func(ctx context.Context) (*flow, error) {
			f, err := env.currentFlow(ctx)
			if err != nil {
				return nil, err
			}
			f.checks.RequiredStates = []session.State{
				session.StateChangesCommitted,
				session.StatePushed,
				session.StatePRCreated,
				session.StateWaitingApproval,
			}
			env.probePlatform(ctx, f)
			return f, nil
		},
		pre: func(f *flow) []string {
			return []string{
				checks.SessionExists,
				checks.NotOnMainBranch,
				checks.SessionStateIs,
				checks.NoBranchReuse,
				checks.NoPrConflicts,
				checks.GithubConfigured,
				checks.CiConfigured,
			}
		},
		exec: func(ctx context.Context, f *flow) error {
			return t.execute(ctx, f, params)
		},
		post: func(f *flow) []string {
			if !params.doMerge() {
				return nil
			}
			return []string{
				checks.PrMerged,
				checks.FeatureBranchesDeleted,
				checks.MainSyncedWithOrigin,
				checks.NoUncommittedChanges,
			}
		},
	})
}

func (t *ShipTool) execute(ctx context.Context, f *flow, params ShipParams) error {
	env := t.Env
	s := f.session

	// Step 1: commit outstanding work.
	dirty, err := env.Git.HasUncommittedChanges()
	if err != nil {
		return err
	}
	if dirty {
		if params.Message == "" {
			return errkind.New(errkind.MissingParameter,
				"working tree is dirty and no commit message was provided")
		}
		if err := env.Git.Commit(ctx, params.Message, gitx.CommitOptions{StagedOnly: params.StagedOnly}); err != nil {
			return err
		}
		if next, ok := commitTarget(s); ok {
			if err := env.transition(ctx, f, next, "ship"); err != nil {
				return err
			}
		}
	}

	// Step 2: push with upstream. Skipped if the remote already has this
	// commit.
	if params.doPush() {
		if err := t.pushStep(ctx, f); err != nil {
			return err
		}
	}

	if !params.doPR() {
		f.next = append(f.next, "branch pushed; create the PR when ready: devsolo ship")
		return nil
	}
	if env.Platform == nil {
		return errkind.New(errkind.PlatformForbidden,
			"no platform credentials configured; set a token via config or GITHUB_TOKEN")
	}

	// Step 3: create or update the PR.
	pr, err := t.prStep(ctx, f, params)
	if err != nil {
		return err
	}
	f.put("prNumber", pr.Number)
	f.put("prUrl", pr.HTMLURL)

	if !params.doMerge() {
		f.next = append(f.next, fmt.Sprintf("PR #%d is open; merge when ready: devsolo ship", pr.Number))
		return nil
	}

	// Step 4: wait for CI. Approval is recorded only once checks settle, so
	// a failed or timed-out wait leaves the session in PR_CREATED for retry.
	if err := t.waitForChecks(ctx, f, pr); err != nil {
		return err
	}
	if session.CanTransition(f.session.WorkflowType, f.session.CurrentState, session.StateWaitingApproval) {
		if err := env.transition(ctx, f, session.StateWaitingApproval, "ship"); err != nil {
			return err
		}
	}

	// Step 5: squash merge.
	if err := t.mergeStep(ctx, f, pr, params); err != nil {
		return err
	}

	// Step 6: back to trunk, sync, delete branches.
	if err := t.cleanupStep(ctx, f); err != nil {
		return err
	}

	f.next = append(f.next, "all done; start the next feature with: devsolo launch")
	return nil
}

// pushStep pushes the branch with upstream tracking, skipping when the
// remote is already at this commit.
func (t *ShipTool) pushStep(ctx context.Context, f *flow) error {
	env := t.Env

	status, err := env.Git.GetBranchStatus(ctx, f.branch)
	if err != nil {
		return err
	}
	if status.HasRemote && status.Ahead == 0 {
		logging.Debug(ctx, "push skipped, remote is current")
	} else {
		if err := env.Git.Push(ctx, f.branch, gitx.PushOptions{SetUpstream: !status.HasRemote}); err != nil {
			return err
		}
		env.audit(ctx, audit.Entry{
			SessionID: f.session.ID,
			Action:    "push",
			Result:    audit.ResultSuccess,
			Details:   audit.Details{GitOperation: "push --set-upstream origin " + f.branch},
		})
	}

	if session.CanTransition(f.session.WorkflowType, f.session.CurrentState, session.StatePushed) {
		return env.transition(ctx, f, session.StatePushed, "ship")
	}
	return nil
}

// prStep creates or updates the pull request and records it on the session.
func (t *ShipTool) prStep(ctx context.Context, f *flow, params ShipParams) (*github.PullRequest, error) {
	env := t.Env

	action, existing, err := env.classifyPR(ctx, f)
	if err != nil {
		return nil, err
	}

	var pr *github.PullRequest
	switch action {
	case PRUpdateExisting:
		pr = existing
	case PRCreateNew, PRResurrectAfterMerge:
		title := params.Message
		if title == "" {
			title = prTitleFromSession(f.session, f.branch)
		}
		pr, err = env.Platform.CreatePullRequest(ctx, f.branch, f.trunk, title, params.PRDescription)
		if err != nil {
			return nil, err
		}
	}

	updated, err := env.Store.Update(ctx, f.session.ID, func(s *session.Session) error {
		s.Metadata.PR = &session.PRMetadata{Number: pr.Number, URL: pr.HTMLURL}
		return nil
	})
	if err != nil {
		return nil, err
	}
	f.session = updated
	f.checks.Session = updated

	if session.CanTransition(f.session.WorkflowType, f.session.CurrentState, session.StatePRCreated) {
		if err := env.transition(ctx, f, session.StatePRCreated, "ship"); err != nil {
			return nil, err
		}
	}
	return pr, nil
}

// waitForChecks polls CI runs on the PR head until they settle, the budget
// runs out, or the context is cancelled.
func (t *ShipTool) waitForChecks(ctx context.Context, f *flow, pr *github.PullRequest) error {
	env := t.Env
	interval := env.Config.CIPollInterval()
	deadline := time.Now().Add(env.Config.CIPollTimeout())

	for {
		summary, err := env.Platform.ListCheckRuns(ctx, pr.Head.SHA)
		if err != nil {
			return err
		}
		if summary.Failed > 0 {
			names := summary.FailedNames()
			return errkind.New(errkind.CIFailed, "CI checks failed: %s", strings.Join(names, ", "))
		}
		if summary.Settled() {
			logging.Info(ctx, "CI checks passed", "total", summary.Total)
			return nil
		}
		if time.Now().After(deadline) {
			return errkind.New(errkind.CITimeout,
				"CI did not settle within %s (%d checks still pending)",
				env.Config.CIPollTimeout(), summary.Pending)
		}

		logging.Debug(ctx, "waiting for CI", "pending", summary.Pending, "passed", summary.Passed)
		select {
		case <-ctx.Done():
			return errkind.Wrap(errkind.Cancelled, ctx.Err(), "CI wait cancelled")
		case <-time.After(interval):
		}
	}
}

// mergeStep squash-merges the PR, tolerating an already-merged one.
func (t *ShipTool) mergeStep(ctx context.Context, f *flow, pr *github.PullRequest, params ShipParams) error {
	env := t.Env

	if session.CanTransition(f.session.WorkflowType, f.session.CurrentState, session.StateMerging) {
		if err := env.transition(ctx, f, session.StateMerging, "ship"); err != nil {
			return err
		}
	}

	current, err := env.Platform.GetPullRequest(ctx, pr.Number)
	if err != nil {
		return err
	}
	if !current.Merged {
		title := params.Message
		if title == "" {
			title = pr.Title
		}
		if err := env.Platform.MergePullRequest(ctx, pr.Number, github.MergeSquash, fmt.Sprintf("%s (#%d)", title, pr.Number)); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	updated, err := env.Store.Update(ctx, f.session.ID, func(s *session.Session) error {
		if s.Metadata.PR == nil {
			s.Metadata.PR = &session.PRMetadata{Number: pr.Number, URL: pr.HTMLURL}
		}
		s.Metadata.PR.Merged = true
		s.Metadata.PR.MergedAt = &now
		return nil
	})
	if err != nil {
		return err
	}
	f.session = updated
	f.checks.Session = updated

	env.audit(ctx, audit.Entry{
		SessionID: f.session.ID,
		Action:    "merge",
		Result:    audit.ResultSuccess,
		Details:   audit.Details{GitOperation: fmt.Sprintf("squash-merge PR #%d", pr.Number)},
	})
	return nil
}

// cleanupStep returns to trunk, fast-forwards it, and deletes the feature
// branch locally and remotely.
func (t *ShipTool) cleanupStep(ctx context.Context, f *flow) error {
	env := t.Env

	if session.CanTransition(f.session.WorkflowType, f.session.CurrentState, session.StateCleanup) {
		if err := env.transition(ctx, f, session.StateCleanup, "ship"); err != nil {
			return err
		}
	}

	if err := env.Git.Checkout(ctx, f.trunk); err != nil {
		return err
	}
	if err := env.Git.Pull(ctx); err != nil {
		return err
	}
	if err := env.Git.DeleteLocalBranch(ctx, f.branch, true); err != nil {
		return err
	}
	// The branch name is burned only when the remote branch is actually gone;
	// a failed remote delete leaves the name reusable for a manual retry.
	if err := env.Git.DeleteRemoteBranch(ctx, f.branch); err != nil {
		logging.Warn(ctx, "remote branch deletion failed", "error", err.Error())
		f.next = append(f.next, fmt.Sprintf("delete the remote branch manually: git push origin --delete %s", f.branch))
	} else {
		updated, err := env.Validator.TrackBranchDeletion(ctx, f.session.ID)
		if err != nil {
			return err
		}
		f.session = updated
		f.checks.Session = updated
	}

	if err := env.transition(ctx, f, session.StateComplete, "ship"); err != nil {
		return err
	}
	if err := env.Store.ClearCurrent(); err != nil {
		logging.Warn(ctx, "failed to clear current session", "error", err.Error())
	}
	return nil
}

// prTitleFromSession falls back to the session description or branch name.
func prTitleFromSession(s *session.Session, branch string) string {
	if s != nil && s.Metadata.Description != "" {
		return s.Metadata.Description
	}
	if idx := strings.Index(branch, "/"); idx >= 0 {
		return strings.ReplaceAll(branch[idx+1:], "-", " ")
	}
	return branch
}
