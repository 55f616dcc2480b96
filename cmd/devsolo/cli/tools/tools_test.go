package tools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/audit"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/config"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/errkind"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/github"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/gitx"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/session"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/testutil"
)

// newTestEnv builds an Env over a real throwaway repository with a bare
// origin, and state directories under a separate temp root.
func newTestEnv(t *testing.T) (*Env, string) {
	t.Helper()

	dir := t.TempDir()
	testutil.InitRepoWithCommit(t, dir)
	testutil.AddBareRemote(t, dir)

	repo, err := gitx.Open(dir)
	require.NoError(t, err)

	state := t.TempDir()
	store, err := session.OpenAt(filepath.Join(state, "sessions"), filepath.Join(state, "locks"))
	require.NoError(t, err)

	env := &Env{
		Config:      config.Default(),
		Git:         repo,
		Store:       store,
		Validator:   session.NewValidator(store, repo),
		Audit:       audit.OpenAt(filepath.Join(state, "audit"), "tester", 10*1024*1024, 10),
		Initialized: true,
	}
	return env, dir
}

func runTool(t *testing.T, tool Tool, params any) *Result {
	t.Helper()
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		require.NoError(t, err)
		raw = b
	}
	return tool.Run(context.Background(), raw)
}

func TestLaunch_HappyPath(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(t)

	res := runTool(t, &LaunchTool{Env: env}, LaunchParams{Description: "add user auth"})
	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Equal(t, "feature/add-user-auth", res.BranchName)
	assert.Equal(t, string(session.StateBranchReady), res.State)
	require.NotEmpty(t, res.SessionID)

	branch, err := env.Git.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "feature/add-user-auth", branch)

	s, err := env.Store.GetByBranch(context.Background(), "feature/add-user-auth")
	require.NoError(t, err)
	assert.Equal(t, session.WorkflowLaunch, s.WorkflowType)

	for _, check := range res.PostFlightVerifications {
		assert.NotEqual(t, "fail", string(check.Level), "%s: %s", check.ID, check.Message)
	}
}

func TestLaunch_FailsOffTrunk(t *testing.T) {
	t.Parallel()

	env, dir := newTestEnv(t)
	testutil.Git(t, dir, "checkout", "-b", "feature/elsewhere")

	res := runTool(t, &LaunchTool{Env: env}, LaunchParams{BranchName: "feature/new-work"})
	require.False(t, res.Success)
	assert.Equal(t, string(errkind.PreFlightFailed), res.ErrorKind)

	var sawBranchCheck bool
	for _, check := range res.PreFlightChecks {
		if check.ID == "onMainBranch" {
			sawBranchCheck = true
			assert.Equal(t, "fail", string(check.Level))
		}
	}
	assert.True(t, sawBranchCheck)
}

func TestLaunch_DirtyTreePromptsWithoutAuto(t *testing.T) {
	t.Parallel()

	env, dir := newTestEnv(t)
	testutil.WriteFile(t, dir, "wip.txt", "uncommitted\n")

	res := runTool(t, &LaunchTool{Env: env}, LaunchParams{BranchName: "feature/x"})
	require.False(t, res.Success)

	var prompt bool
	for _, check := range res.PreFlightChecks {
		if check.ID == "workingDirectoryClean" && string(check.Level) == "prompt" {
			prompt = true
			assert.NotEmpty(t, check.Options)
		}
	}
	assert.True(t, prompt)
}

func TestLaunch_DirtyTreeAutoStashes(t *testing.T) {
	t.Parallel()

	env, dir := newTestEnv(t)
	testutil.WriteFile(t, dir, "wip.txt", "uncommitted\n")

	res := runTool(t, &LaunchTool{Env: env}, LaunchParams{BranchName: "feature/x", Auto: true})
	require.True(t, res.Success, "errors: %v", res.Errors)

	// The stash was popped onto the new branch.
	assert.True(t, testutil.FileExists(dir, "wip.txt"))
	dirty, err := env.Git.HasUncommittedChanges()
	require.NoError(t, err)
	assert.True(t, dirty)
}

func TestLaunch_BurnedBranchNameRejected(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(t)
	ctx := context.Background()

	burned := session.New("feature/x", session.WorkflowShip)
	burned.Metadata.PR = &session.PRMetadata{Number: 1, Merged: true}
	burned.Metadata.Branch = &session.BranchMetadata{RemoteDeleted: true}
	require.NoError(t, burned.Abort("test"))
	require.NoError(t, env.Store.Save(ctx, burned))

	res := runTool(t, &LaunchTool{Env: env}, LaunchParams{BranchName: "feature/x"})
	require.False(t, res.Success)

	for _, check := range res.PreFlightChecks {
		if check.ID == "branchNameAvailable" {
			assert.Equal(t, "fail", string(check.Level))
			assert.Contains(t, check.Suggestions, "feature/x-v2")
		}
	}
}

func TestCommit_AdvancesState(t *testing.T) {
	t.Parallel()

	env, dir := newTestEnv(t)

	res := runTool(t, &LaunchTool{Env: env}, LaunchParams{BranchName: "feature/x"})
	require.True(t, res.Success)

	testutil.WriteFile(t, dir, "feature.go", "package feature\n")
	res = runTool(t, &CommitTool{Env: env}, CommitParams{Message: "feat: add feature"})
	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Equal(t, string(session.StateChangesCommitted), res.State)

	clean, err := env.Git.HasUncommittedChanges()
	require.NoError(t, err)
	assert.False(t, clean)
}

func TestCommit_MissingMessageAsksForIt(t *testing.T) {
	t.Parallel()

	env, dir := newTestEnv(t)

	runTool(t, &LaunchTool{Env: env}, LaunchParams{BranchName: "feature/x"})
	testutil.WriteFile(t, dir, "feature.go", "package feature\n")

	res := runTool(t, &CommitTool{Env: env}, CommitParams{})
	require.False(t, res.Success)
	require.Contains(t, res.Data, "missingParameters")
	assert.Empty(t, res.Errors, "missing parameters are a collection round trip, not an error")
}

func TestCommit_NothingToCommitFails(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(t)

	runTool(t, &LaunchTool{Env: env}, LaunchParams{BranchName: "feature/x"})
	res := runTool(t, &CommitTool{Env: env}, CommitParams{Message: "feat: nothing"})
	require.False(t, res.Success)
	assert.Equal(t, string(errkind.PreFlightFailed), res.ErrorKind)
}

func TestShip_PushOnlyWithoutPlatform(t *testing.T) {
	t.Parallel()

	env, dir := newTestEnv(t)

	runTool(t, &LaunchTool{Env: env}, LaunchParams{BranchName: "feature/x"})
	testutil.WriteFile(t, dir, "feature.go", "package feature\n")
	require.True(t, runTool(t, &CommitTool{Env: env}, CommitParams{Message: "feat: x"}).Success)

	noPR := false
	res := runTool(t, &ShipTool{Env: env}, ShipParams{CreatePR: &noPR})
	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Equal(t, string(session.StatePushed), res.State)

	onRemote, err := env.Git.BranchExistsOnRemote("feature/x")
	require.NoError(t, err)
	assert.True(t, onRemote)
}

func TestShip_SecondPushIsIdempotent(t *testing.T) {
	t.Parallel()

	env, dir := newTestEnv(t)

	runTool(t, &LaunchTool{Env: env}, LaunchParams{BranchName: "feature/x"})
	testutil.WriteFile(t, dir, "feature.go", "package feature\n")
	require.True(t, runTool(t, &CommitTool{Env: env}, CommitParams{Message: "feat: x"}).Success)

	noPR := false
	require.True(t, runTool(t, &ShipTool{Env: env}, ShipParams{CreatePR: &noPR}).Success)
	res := runTool(t, &ShipTool{Env: env}, ShipParams{CreatePR: &noPR})
	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Equal(t, string(session.StatePushed), res.State)
}

func TestShip_RequiresCommittedSession(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(t)

	runTool(t, &LaunchTool{Env: env}, LaunchParams{BranchName: "feature/x"})
	res := runTool(t, &ShipTool{Env: env}, ShipParams{})
	require.False(t, res.Success)
	assert.Equal(t, string(errkind.PreFlightFailed), res.ErrorKind)
}

// fakePlatform scripts the hosted-platform surface so ship can run its full
// pipeline against a local repository.
type fakePlatform struct {
	checks github.CheckRunSummary

	pr     *github.PullRequest
	merged bool
}

func (p *fakePlatform) CreatePullRequest(_ context.Context, head, base, title, body string) (*github.PullRequest, error) {
	pr := &github.PullRequest{Number: 42, State: "open", Title: title, Body: body, HTMLURL: "https://github.test/pull/42"}
	pr.Head.Ref = head
	pr.Head.SHA = "deadbeefcafe"
	pr.Base.Ref = base
	p.pr = pr
	return pr, nil
}

func (p *fakePlatform) PullRequestForBranch(_ context.Context, branch string) (*github.PullRequest, error) {
	if p.pr != nil && p.pr.Head.Ref == branch && p.pr.State == "open" {
		return p.pr, nil
	}
	return nil, nil
}

func (p *fakePlatform) GetPullRequest(context.Context, int) (*github.PullRequest, error) {
	return p.pr, nil
}

func (p *fakePlatform) MergePullRequest(context.Context, int, github.MergeMethod, string) error {
	p.merged = true
	p.pr.Merged = true
	p.pr.State = "closed"
	return nil
}

func (p *fakePlatform) ListCheckRuns(context.Context, string) (*github.CheckRunSummary, error) {
	s := p.checks
	return &s, nil
}

func TestShip_CIFailureLeavesSessionInPRCreated(t *testing.T) {
	t.Parallel()

	env, dir := newTestEnv(t)
	env.Platform = &fakePlatform{checks: github.CheckRunSummary{
		Failed: 1,
		Total:  1,
		Runs:   []github.CheckRun{{Name: "build", Status: "completed", Conclusion: "failure"}},
	}}

	require.True(t, runTool(t, &LaunchTool{Env: env}, LaunchParams{BranchName: "feature/x"}).Success)
	testutil.WriteFile(t, dir, "feature.go", "package feature\n")
	require.True(t, runTool(t, &CommitTool{Env: env}, CommitParams{Message: "feat: x"}).Success)

	res := runTool(t, &ShipTool{Env: env}, ShipParams{})
	require.False(t, res.Success)
	assert.Equal(t, string(errkind.CIFailed), res.ErrorKind)

	// The PR is recorded but approval is not; a retry resumes from here.
	s, err := env.Store.GetByBranch(context.Background(), "feature/x")
	require.NoError(t, err)
	assert.Equal(t, session.StatePRCreated, s.CurrentState)
	require.NotNil(t, s.Metadata.PR)
	assert.Equal(t, 42, s.Metadata.PR.Number)
}

func TestShip_RemoteDeleteFailureDoesNotBurnBranchName(t *testing.T) {
	t.Parallel()

	env, dir := newTestEnv(t)
	platform := &fakePlatform{checks: github.CheckRunSummary{Passed: 1, Total: 1}}
	env.Platform = platform

	require.True(t, runTool(t, &LaunchTool{Env: env}, LaunchParams{BranchName: "feature/x"}).Success)
	testutil.WriteFile(t, dir, "feature.go", "package feature\n")
	require.True(t, runTool(t, &CommitTool{Env: env}, CommitParams{Message: "feat: x"}).Success)

	// The remote refuses branch deletions; everything else succeeds.
	remote := testutil.Git(t, dir, "remote", "get-url", "origin")
	testutil.Git(t, remote, "config", "receive.denyDeletes", "true")

	res := runTool(t, &ShipTool{Env: env}, ShipParams{})
	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Equal(t, string(session.StateComplete), res.State)
	assert.True(t, platform.merged)
	assert.Contains(t, res.NextSteps, "delete the remote branch manually: git push origin --delete feature/x")

	// The name stays reusable until the remote branch is actually gone.
	s, err := env.Store.GetByBranch(context.Background(), "feature/x")
	require.NoError(t, err)
	if s.Metadata.Branch != nil {
		assert.False(t, s.Metadata.Branch.RemoteDeleted)
	}
}

func TestSwap_StashesAndRestores(t *testing.T) {
	t.Parallel()

	env, dir := newTestEnv(t)

	require.True(t, runTool(t, &LaunchTool{Env: env}, LaunchParams{BranchName: "feature/one"}).Success)
	testutil.WriteFile(t, dir, "one.txt", "work on one\n")
	testutil.CommitAll(t, dir, "feat: one")

	testutil.Git(t, dir, "checkout", "main")
	require.True(t, runTool(t, &LaunchTool{Env: env}, LaunchParams{BranchName: "feature/two"}).Success)
	testutil.WriteFile(t, dir, "two.txt", "uncommitted on two\n")

	// Swap to one, stashing two's work.
	res := runTool(t, &SwapTool{Env: env}, SwapParams{BranchName: "feature/one", Stash: true})
	require.True(t, res.Success, "errors: %v", res.Errors)

	branch, err := env.Git.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "feature/one", branch)
	assert.False(t, testutil.FileExists(dir, "two.txt"))

	// Swap back restores the stash.
	res = runTool(t, &SwapTool{Env: env}, SwapParams{BranchName: "feature/two", Stash: true})
	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.True(t, testutil.FileExists(dir, "two.txt"))
}

func TestAbort_LeavesTrunkUntouched(t *testing.T) {
	t.Parallel()

	env, dir := newTestEnv(t)

	before, err := env.Git.HeadHash()
	require.NoError(t, err)

	require.True(t, runTool(t, &LaunchTool{Env: env}, LaunchParams{BranchName: "feature/x"}).Success)
	testutil.WriteFile(t, dir, "x.txt", "doomed work\n")
	testutil.CommitAll(t, dir, "feat: doomed")

	res := runTool(t, &AbortTool{Env: env}, AbortParams{DeleteBranch: true})
	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Equal(t, string(session.StateAborted), res.State)

	branch, err := env.Git.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "main", branch)

	after, err := env.Git.HeadHash()
	require.NoError(t, err)
	assert.Equal(t, before, after, "trunk's commit graph must be untouched")

	exists, err := env.Git.BranchExistsLocally("feature/x")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestHotfix_CreatesSession(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(t)

	res := runTool(t, &HotfixTool{Env: env}, HotfixParams{Issue: "payment crash", Severity: "critical"})
	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Equal(t, "hotfix/payment-crash", res.BranchName)
	assert.Equal(t, string(session.StateHotfixReady), res.State)
	assert.Equal(t, "critical", res.Data["severity"])
}

func TestHotfix_RequiresIssue(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(t)

	res := runTool(t, &HotfixTool{Env: env}, HotfixParams{})
	require.False(t, res.Success)
	assert.Contains(t, res.Data, "missingParameters")
}

func TestCleanup_TwoPhase(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(t)
	ctx := context.Background()

	done := session.New("feature/done", session.WorkflowLaunch)
	require.NoError(t, done.Abort("test"))
	require.NoError(t, env.Store.Save(ctx, done))

	// First invocation proposes only.
	res := runTool(t, &CleanupTool{Env: env}, CleanupParams{})
	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Equal(t, true, res.Data["dryRun"])
	_, err := env.Store.Get(done.ID)
	require.NoError(t, err)

	// Confirmed invocation applies.
	res = runTool(t, &CleanupTool{Env: env}, CleanupParams{Confirm: true})
	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Equal(t, 1, res.Data["removedSessions"])
	_, err = env.Store.Get(done.ID)
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestSessionsAndStatus(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(t)

	require.True(t, runTool(t, &LaunchTool{Env: env}, LaunchParams{BranchName: "feature/x"}).Success)

	res := runTool(t, &SessionsTool{Env: env}, SessionsParams{})
	require.True(t, res.Success)
	assert.Equal(t, 1, res.Data["count"])

	res = runTool(t, &StatusTool{Env: env}, nil)
	require.True(t, res.Success)
	assert.Equal(t, "feature/x", res.Data["branch"])
	assert.Equal(t, "main", res.Data["trunk"])
}

func TestDispatch_UnknownTool(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(t)

	res := env.Dispatch(context.Background(), "workflow.nonsense", nil)
	require.False(t, res.Success)
	assert.Equal(t, string(errkind.UnknownTool), res.ErrorKind)
}

func TestDispatch_DottedNames(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(t)

	res := env.Dispatch(context.Background(), "workflow.sessions", nil)
	require.True(t, res.Success)
}

func TestNotInitialized(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(t)
	env.Initialized = false

	res := runTool(t, &LaunchTool{Env: env}, LaunchParams{BranchName: "feature/x"})
	require.False(t, res.Success)
	assert.Equal(t, string(errkind.NotInitialized), res.ErrorKind)
}

func TestUnknownFieldsIgnored(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(t)

	res := env.Dispatch(context.Background(), "sessions", json.RawMessage(`{"bogusField": 1}`))
	require.True(t, res.Success)
}
