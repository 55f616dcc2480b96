package tools

import (
	"context"
	"errors"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/checks"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/errkind"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/logging"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/session"
)

// newFlow builds the common read-only context bundle for a branch.
func (e *Env) newFlow(ctx context.Context, branch string) (*flow, error) {
	trunk, err := e.Git.MainBranch()
	if err != nil {
		return nil, err
	}
	s, err := e.sessionFor(ctx, branch)
	if err != nil {
		return nil, err
	}

	f := &flow{
		branch:  branch,
		trunk:   trunk,
		session: s,
		checks: &checks.Context{
			Git:           e.Git,
			Store:         e.Store,
			Validator:     e.Validator,
			Session:       s,
			Branch:        branch,
			Trunk:         trunk,
			PlatformReady: e.Platform != nil,
			OpenPRCount:   -1,
		},
	}
	return f, nil
}

// currentFlow builds the bundle for the checked-out branch.
func (e *Env) currentFlow(ctx context.Context) (*flow, error) {
	branch, err := e.Git.CurrentBranch()
	if err != nil {
		return nil, err
	}
	return e.newFlow(ctx, branch)
}

// sessionFor resolves the session on a branch, or nil when none exists.
func (e *Env) sessionFor(ctx context.Context, branch string) (*session.Session, error) {
	s, err := e.Store.GetByBranch(ctx, branch)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// attachSession records the session on the flow and keeps the check context
// in step.
func (f *flow) attachSession(s *session.Session) {
	f.session = s
	if f.checks != nil {
		f.checks.Session = s
	}
}

// probePlatform fills the platform-derived check facts without failing the
// tool when the platform is unreachable.
func (e *Env) probePlatform(ctx context.Context, f *flow) {
	if e.Platform == nil {
		return
	}
	pr, err := e.Platform.PullRequestForBranch(ctx, f.branch)
	switch {
	case err == nil && pr == nil:
		f.checks.OpenPRCount = 0
	case err == nil:
		f.checks.OpenPRCount = 1
	case errkind.Is(err, errkind.DuplicateOpenPR):
		f.checks.OpenPRCount = 2
	default:
		logging.Debug(ctx, "platform probe failed", "error", err.Error())
	}

	if head, hashErr := e.Git.HeadHash(); hashErr == nil {
		if summary, ciErr := e.Platform.ListCheckRuns(ctx, head); ciErr == nil {
			f.checks.CIObserved = summary.Total > 0
		}
	}
}
