package tools

import (
	"context"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/errkind"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/github"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/session"
)

// PRAction classifies what ship should do about the pull request, enforcing
// at most one live PR per branch lifecycle.
type PRAction string

const (
	// PRCreateNew means no open PR and no prior merge in this lifecycle.
	PRCreateNew PRAction = "create-new"
	// PRUpdateExisting means exactly one open PR carries this head.
	PRUpdateExisting PRAction = "update-existing"
	// PRResurrectAfterMerge means a merged PR exists for this lifecycle and
	// a new one is explicitly expected (continued work).
	PRResurrectAfterMerge PRAction = "resurrect-after-merge"
)

// classifyPR decides the PR action for the flow's branch. Duplicate open
// PRs surface as a fatal kinded error.
func (e *Env) classifyPR(ctx context.Context, f *flow) (PRAction, *github.PullRequest, error) {
	pr, err := e.Platform.PullRequestForBranch(ctx, f.branch)
	if err != nil {
		return "", nil, err
	}
	if pr != nil {
		return PRUpdateExisting, pr, nil
	}

	if f.session != nil && f.session.Metadata.PR != nil && f.session.Metadata.PR.Merged {
		verdict, err := e.Validator.DetectBranchReuse(ctx, f.session, f.branch)
		if err != nil {
			return "", nil, err
		}
		if verdict == session.ReuseMergedAndRecreated {
			return "", nil, errkind.New(errkind.BranchReuseForbidden,
				"branch %s was merged and its remote deleted; launch a new branch", f.branch)
		}
		return PRResurrectAfterMerge, nil, nil
	}
	return PRCreateNew, nil, nil
}
