package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/session"
	"github.com/slamb2k/devsolo/redact"
)

// registry holds every catalogued check by id.
var registry = map[string]Check{}

func register(c Check) string {
	registry[c.ID] = c
	return c.ID
}

// Catalogued check ids. Tools reference these in their declarations.
var (
	OnMainBranch = register(Check{
		ID: "onMainBranch", Name: "On main branch", Category: "branch",
		Execute: func(ctx context.Context, c *Context) Result {
			return currentBranchIs(ctx, c, registry["onMainBranch"], true)
		},
	})

	NotOnMainBranch = register(Check{
		ID: "notOnMainBranch", Name: "Not on main branch", Category: "branch",
		Execute: func(ctx context.Context, c *Context) Result {
			return currentBranchIs(ctx, c, registry["notOnMainBranch"], false)
		},
	})

	BranchNameAvailable = register(Check{
		ID: "branchNameAvailable", Name: "Branch name available", Category: "branch",
		Execute: func(ctx context.Context, c *Context) Result {
			check := registry["branchNameAvailable"]
			res, err := c.Validator.CheckBranchNameAvailability(ctx, c.Branch)
			if err != nil {
				return fail(check, "cannot validate branch name: %v", err)
			}
			switch res.Status {
			case session.BranchAvailable:
				return pass(check, "branch %s is available", c.Branch)
			case session.BranchBurned:
				r := fail(check, "branch name %s was merged and deleted; it is retired", c.Branch)
				r.Suggestions = res.Suggestions
				return r
			case session.BranchActiveSession:
				r := fail(check, "an active session already uses %s", c.Branch)
				r.Suggestions = []string{"swap to the branch instead of launching"}
				return r
			default:
				return fail(check, "branch %s is %s", c.Branch, res.Status)
			}
		},
	})

	WorkingDirectoryClean = register(Check{
		ID: "workingDirectoryClean", Name: "Working directory clean", Category: "branch",
		Execute: func(ctx context.Context, c *Context) Result {
			check := registry["workingDirectoryClean"]
			dirty, err := c.Git.HasUncommittedChanges()
			if err != nil {
				return fail(check, "cannot inspect working tree: %v", err)
			}
			if !dirty {
				return pass(check, "working directory is clean")
			}
			switch c.ChosenOption {
			case "stash":
				return pass(check, "uncommitted changes will be stashed")
			case "continue":
				return warn(check, "continuing with uncommitted changes")
			case "cancel":
				return fail(check, "cancelled: working directory is not clean")
			}
			return Result{
				ID: check.ID, Name: check.Name, Level: LevelPrompt,
				Message: "working directory has uncommitted changes",
				Options: []Option{
					{ID: "stash", Label: "Stash changes", Action: "stash changes and pop them on the new branch", Risk: "low", AutoRecommended: true},
					{ID: "continue", Label: "Continue anyway", Action: "carry the changes onto the new branch", Risk: "medium"},
					{ID: "cancel", Label: "Cancel", Action: "stop and let me commit first", Risk: "low"},
				},
			}
		},
	})

	MainUpToDate = register(Check{
		ID: "mainUpToDate", Name: "Main up to date", Category: "branch",
		Execute: func(ctx context.Context, c *Context) Result {
			check := registry["mainUpToDate"]
			status, err := c.Git.GetBranchStatus(ctx, c.Trunk)
			if err != nil {
				return warn(check, "cannot compare %s with origin: %v", c.Trunk, err)
			}
			if !status.HasRemote {
				return info(check, "%s has no upstream to compare against", c.Trunk)
			}
			if status.Behind > 0 {
				r := fail(check, "%s is %d commits behind origin/%s", c.Trunk, status.Behind, c.Trunk)
				r.Suggestions = []string{fmt.Sprintf("git pull --ff-only origin %s", c.Trunk)}
				return r
			}
			return pass(check, "%s is up to date", c.Trunk)
		},
	})

	TargetBranchExists = register(Check{
		ID: "targetBranchExists", Name: "Target branch exists", Category: "branch",
		Execute: func(ctx context.Context, c *Context) Result {
			check := registry["targetBranchExists"]
			exists, err := c.Git.BranchExistsLocally(c.Branch)
			if err != nil {
				return fail(check, "cannot inspect branches: %v", err)
			}
			if !exists {
				return fail(check, "branch %s does not exist locally", c.Branch)
			}
			return pass(check, "branch %s exists", c.Branch)
		},
	})

	NoExistingSession = register(Check{
		ID: "noExistingSession", Name: "No existing session", Category: "session",
		Execute: func(ctx context.Context, c *Context) Result {
			check := registry["noExistingSession"]
			if c.Session != nil && c.Session.IsActive() {
				r := fail(check, "an active session already exists on %s", c.Session.BranchName)
				r.Suggestions = []string{"finish it with ship, or abandon it with abort"}
				return r
			}
			return pass(check, "no active session on this branch")
		},
	})

	SessionExists = register(Check{
		ID: "sessionExists", Name: "Session exists", Category: "session",
		Execute: func(ctx context.Context, c *Context) Result {
			check := registry["sessionExists"]
			if c.Session == nil {
				r := fail(check, "no session found for branch %s", c.Branch)
				r.Suggestions = []string{"start one with launch"}
				return r
			}
			return pass(check, "session %s found", c.Session.ID)
		},
	})

	SessionIsActive = register(Check{
		ID: "sessionIsActive", Name: "Session is active", Category: "session",
		Execute: func(ctx context.Context, c *Context) Result {
			check := registry["sessionIsActive"]
			if c.Session == nil {
				return fail(check, "no session found for branch %s", c.Branch)
			}
			if c.Session.CurrentState.IsTerminal() {
				return fail(check, "session is already %s", c.Session.CurrentState)
			}
			if c.Session.IsExpired() {
				return warn(check, "session expired; it will still be used")
			}
			return pass(check, "session is active in state %s", c.Session.CurrentState)
		},
	})

	SessionStateIs = register(Check{
		ID: "sessionStateIs", Name: "Session state", Category: "session",
		Execute: func(ctx context.Context, c *Context) Result {
			check := registry["sessionStateIs"]
			if c.Session == nil {
				return fail(check, "no session found for branch %s", c.Branch)
			}
			for _, want := range c.RequiredStates {
				if c.Session.CurrentState == want {
					return pass(check, "session is in state %s", want)
				}
			}
			names := make([]string, len(c.RequiredStates))
			for i, s := range c.RequiredStates {
				names[i] = string(s)
			}
			return fail(check, "session is in state %s, expected one of %s",
				c.Session.CurrentState, strings.Join(names, ", "))
		},
	})

	HasChangesToCommit = register(Check{
		ID: "hasChangesToCommit", Name: "Has changes to commit", Category: "changes",
		Execute: func(ctx context.Context, c *Context) Result {
			check := registry["hasChangesToCommit"]
			dirty, err := c.Git.HasUncommittedChanges()
			if err != nil {
				return fail(check, "cannot inspect working tree: %v", err)
			}
			if !dirty {
				return fail(check, "nothing to commit")
			}
			stat, err := c.Git.DiffStatSummary(ctx)
			if err != nil {
				return pass(check, "working tree has changes")
			}
			return pass(check, "working tree has changes: %d files, +%d -%d",
				stat.FilesChanged, stat.Added, stat.Removed)
		},
	})

	HasStagedFiles = register(Check{
		ID: "hasStagedFiles", Name: "Has staged files", Category: "changes",
		Execute: func(ctx context.Context, c *Context) Result {
			check := registry["hasStagedFiles"]
			staged, err := c.Git.StagedFiles(ctx)
			if err != nil {
				return fail(check, "cannot inspect index: %v", err)
			}
			if len(staged) == 0 {
				return fail(check, "stagedOnly was requested but the index is empty")
			}
			return pass(check, "%d files staged", len(staged))
		},
	})

	GithubConfigured = register(Check{
		ID: "githubConfigured", Name: "GitHub configured", Category: "pr",
		Execute: func(ctx context.Context, c *Context) Result {
			check := registry["githubConfigured"]
			if !c.PlatformReady {
				r := warn(check, "platform client is not configured; PR steps will be skipped")
				r.Suggestions = []string{"set a token via config or GITHUB_TOKEN"}
				return r
			}
			return pass(check, "platform client ready")
		},
	})

	NoPrConflicts = register(Check{
		ID: "noPrConflicts", Name: "No PR conflicts", Category: "pr",
		Execute: func(ctx context.Context, c *Context) Result {
			check := registry["noPrConflicts"]
			switch {
			case c.OpenPRCount < 0:
				return info(check, "open PR count unknown; platform not reachable")
			case c.OpenPRCount > 1:
				r := fail(check, "%d open pull requests share head %s", c.OpenPRCount, c.Branch)
				r.Suggestions = []string{"close the duplicates on the platform, then retry"}
				return r
			}
			return pass(check, "at most one open pull request for %s", c.Branch)
		},
	})

	NoBranchReuse = register(Check{
		ID: "noBranchReuse", Name: "No branch reuse", Category: "pr",
		Execute: func(ctx context.Context, c *Context) Result {
			check := registry["noBranchReuse"]
			onRemote, err := c.Git.BranchExistsOnRemote(c.Branch)
			if err != nil {
				return warn(check, "cannot inspect remote branches: %v", err)
			}
			if !onRemote {
				return pass(check, "branch has no remote history to conflict with")
			}
			verdict, err := c.Validator.DetectBranchReuse(ctx, c.Session, c.Branch)
			if err != nil {
				return fail(check, "cannot classify branch reuse: %v", err)
			}
			switch verdict {
			case session.ReuseMergedAndRecreated:
				r := fail(check, "branch %s was merged and its remote deleted; pushing it again is forbidden", c.Branch)
				r.Suggestions = []string{"launch a new branch instead"}
				return r
			case session.ReuseContinuedWork:
				return warn(check, "branch %s continues past a merged PR; a new PR will be created", c.Branch)
			}
			return pass(check, "no unsafe branch reuse detected")
		},
	})

	CiConfigured = register(Check{
		ID: "ciConfigured", Name: "CI configured", Category: "ci",
		Execute: func(ctx context.Context, c *Context) Result {
			check := registry["ciConfigured"]
			if !c.CIObserved {
				return warn(check, "no CI check history observed; merge will not wait for checks")
			}
			return pass(check, "CI checks observed on this repository")
		},
	})

	NoSecretsInDiff = register(Check{
		ID: "noSecretsInDiff", Name: "No secrets in diff", Category: "changes",
		Execute: func(ctx context.Context, c *Context) Result {
			check := registry["noSecretsInDiff"]
			diff, err := c.Git.Diff(ctx)
			if err != nil {
				return info(check, "cannot read diff: %v", err)
			}
			if redact.String(diff) != diff {
				r := warn(check, "the diff appears to contain secrets")
				r.Suggestions = []string{"review the flagged content before pushing"}
				return r
			}
			return pass(check, "no secrets detected in the diff")
		},
	})
)

// Post-flight verifications. Advisory: failures are reported, never
// unwound.
var (
	SessionCreated = register(Check{
		ID: "sessionCreated", Name: "Session created", Category: "verify",
		Execute: func(ctx context.Context, c *Context) Result {
			check := registry["sessionCreated"]
			if c.Session == nil {
				return fail(check, "no session was recorded")
			}
			if _, err := c.Store.Get(c.Session.ID); err != nil {
				return fail(check, "session %s is not on disk: %v", c.Session.ID, err)
			}
			return pass(check, "session %s persisted", c.Session.ID)
		},
	})

	BranchCheckedOut = register(Check{
		ID: "branchCheckedOut", Name: "Branch checked out", Category: "verify",
		Execute: func(ctx context.Context, c *Context) Result {
			check := registry["branchCheckedOut"]
			current, err := c.Git.CurrentBranch()
			if err != nil {
				return fail(check, "cannot read current branch: %v", err)
			}
			if current != c.Branch {
				return fail(check, "expected to be on %s, found %s", c.Branch, current)
			}
			return pass(check, "on branch %s", c.Branch)
		},
	})

	SessionStateCorrect = register(Check{
		ID: "sessionStateCorrect", Name: "Session state correct", Category: "verify",
		Execute: func(ctx context.Context, c *Context) Result {
			check := registry["sessionStateCorrect"]
			if c.Session == nil {
				return fail(check, "no session to verify")
			}
			if c.Session.CurrentState != c.ExpectedState {
				return fail(check, "session is in %s, expected %s", c.Session.CurrentState, c.ExpectedState)
			}
			return pass(check, "session is in %s", c.ExpectedState)
		},
	})

	BranchAvailable = register(Check{
		ID: "branchAvailable", Name: "Branch available", Category: "verify",
		Execute: func(ctx context.Context, c *Context) Result {
			check := registry["branchAvailable"]
			if c.Session == nil {
				return fail(check, "no session to verify")
			}
			res, err := c.Validator.CheckBranchNameAvailability(ctx, c.Branch)
			if err != nil {
				return warn(check, "cannot verify branch ownership: %v", err)
			}
			switch res.Status {
			case session.BranchBurned:
				return fail(check, "branch name %s is retired", c.Branch)
			case session.BranchActiveSession:
				if res.SessionID != c.Session.ID {
					return fail(check, "branch %s is owned by session %s", c.Branch, res.SessionID)
				}
				return pass(check, "branch %s is owned by this session", c.Branch)
			default:
				return pass(check, "branch %s has no conflicting session", c.Branch)
			}
		},
	})

	PrMerged = register(Check{
		ID: "prMerged", Name: "PR merged", Category: "verify",
		Execute: func(ctx context.Context, c *Context) Result {
			check := registry["prMerged"]
			if c.Session == nil || c.Session.Metadata.PR == nil {
				return fail(check, "no pull request recorded on the session")
			}
			if !c.Session.Metadata.PR.Merged {
				return fail(check, "pull request #%d is not marked merged", c.Session.Metadata.PR.Number)
			}
			return pass(check, "pull request #%d merged", c.Session.Metadata.PR.Number)
		},
	})

	FeatureBranchesDeleted = register(Check{
		ID: "featureBranchesDeleted", Name: "Feature branches deleted", Category: "verify",
		Execute: func(ctx context.Context, c *Context) Result {
			check := registry["featureBranchesDeleted"]
			local, err := c.Git.BranchExistsLocally(c.Branch)
			if err != nil {
				return warn(check, "cannot inspect local branches: %v", err)
			}
			if local {
				return fail(check, "local branch %s still exists", c.Branch)
			}
			return pass(check, "feature branch %s removed", c.Branch)
		},
	})

	MainSyncedWithOrigin = register(Check{
		ID: "mainSyncedWithOrigin", Name: "Main synced with origin", Category: "verify",
		Execute: func(ctx context.Context, c *Context) Result {
			check := registry["mainSyncedWithOrigin"]
			status, err := c.Git.GetBranchStatus(ctx, c.Trunk)
			if err != nil {
				return warn(check, "cannot compare %s with origin: %v", c.Trunk, err)
			}
			if status.HasRemote && status.Behind > 0 {
				return fail(check, "%s is still %d commits behind origin", c.Trunk, status.Behind)
			}
			return pass(check, "%s is synced with origin", c.Trunk)
		},
	})

	NoUncommittedChanges = register(Check{
		ID: "noUncommittedChanges", Name: "No uncommitted changes", Category: "verify",
		Execute: func(ctx context.Context, c *Context) Result {
			check := registry["noUncommittedChanges"]
			dirty, err := c.Git.HasUncommittedChanges()
			if err != nil {
				return warn(check, "cannot inspect working tree: %v", err)
			}
			if dirty {
				return fail(check, "working tree still has uncommitted changes")
			}
			return pass(check, "working tree is clean")
		},
	})

	OnTargetBranch = register(Check{
		ID: "onTargetBranch", Name: "On target branch", Category: "verify",
		Execute: func(ctx context.Context, c *Context) Result {
			check := registry["onTargetBranch"]
			current, err := c.Git.CurrentBranch()
			if err != nil {
				return fail(check, "cannot read current branch: %v", err)
			}
			if current != c.Branch {
				return fail(check, "expected to be on %s, found %s", c.Branch, current)
			}
			return pass(check, "on branch %s", c.Branch)
		},
	})

	TargetSessionActive = register(Check{
		ID: "targetSessionActive", Name: "Target session active", Category: "verify",
		Execute: func(ctx context.Context, c *Context) Result {
			check := registry["targetSessionActive"]
			if c.Session == nil {
				return fail(check, "no session for target branch")
			}
			if !c.Session.IsActive() {
				return fail(check, "target session is %s", c.Session.CurrentState)
			}
			return pass(check, "target session active in %s", c.Session.CurrentState)
		},
	})
)

// currentBranchIs shares the on/not-on trunk checks.
func currentBranchIs(ctx context.Context, c *Context, check Check, wantTrunk bool) Result {
	current, err := c.Git.CurrentBranch()
	if err != nil {
		return fail(check, "cannot read current branch: %v", err)
	}
	onTrunk := current == c.Trunk
	if wantTrunk && !onTrunk {
		r := fail(check, "must be on %s, currently on %s", c.Trunk, current)
		r.Suggestions = []string{fmt.Sprintf("git checkout %s", c.Trunk)}
		return r
	}
	if !wantTrunk && onTrunk {
		return fail(check, "must not be on %s", c.Trunk)
	}
	return pass(check, "on branch %s", current)
}
