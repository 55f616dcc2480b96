package gitx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/errkind"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/testutil"
)

func newTestRepo(t *testing.T) (*Repo, string) {
	t.Helper()
	dir := t.TempDir()
	testutil.InitRepoWithCommit(t, dir)
	repo, err := Open(dir)
	require.NoError(t, err)
	return repo, dir
}

func TestOpen_NotARepo(t *testing.T) {
	t.Parallel()

	_, err := Open(t.TempDir())
	require.Error(t, err)
	assert.Equal(t, errkind.GitFailure, errkind.KindOf(err))
}

func TestCurrentBranch(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepo(t)
	branch, err := repo.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestMainBranch_LocalFallback(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepo(t)
	main, err := repo.MainBranch()
	require.NoError(t, err)
	assert.Equal(t, "main", main)
}

func TestBranchLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, dir := newTestRepo(t)

	require.NoError(t, repo.CreateBranch(ctx, "feature/add-user-auth"))

	current, err := repo.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "feature/add-user-auth", current)

	exists, err := repo.BranchExistsLocally("feature/add-user-auth")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.BranchExistsLocally("feature/nope")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Checkout(ctx, "main"))
	require.NoError(t, repo.DeleteLocalBranch(ctx, "feature/add-user-auth", true))

	exists, err = repo.BranchExistsLocally("feature/add-user-auth")
	require.NoError(t, err)
	assert.False(t, exists)

	_ = dir
}

func TestCommit_StagesAllByDefault(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, dir := newTestRepo(t)

	testutil.WriteFile(t, dir, "a.txt", "one\n")
	testutil.WriteFile(t, dir, "b.txt", "two\n")

	require.NoError(t, repo.Commit(ctx, "feat: add files", CommitOptions{}))

	dirty, err := repo.HasUncommittedChanges()
	require.NoError(t, err)
	assert.False(t, dirty)

	log, err := repo.RecentLog(ctx, 1)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, "feat: add files", log[0].Subject)
}

func TestCommit_StagedOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, dir := newTestRepo(t)

	testutil.WriteFile(t, dir, "staged.txt", "in\n")
	testutil.Git(t, dir, "add", "staged.txt")
	testutil.WriteFile(t, dir, "unstaged.txt", "out\n")

	require.NoError(t, repo.Commit(ctx, "feat: staged only", CommitOptions{StagedOnly: true}))

	dirty, err := repo.HasUncommittedChanges()
	require.NoError(t, err)
	assert.True(t, dirty, "unstaged file should remain")

	files, err := repo.ChangedFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"unstaged.txt"}, files)
}

func TestStagedFiles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, dir := newTestRepo(t)

	files, err := repo.StagedFiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)

	testutil.WriteFile(t, dir, "x.txt", "x\n")
	testutil.Git(t, dir, "add", "x.txt")

	files, err = repo.StagedFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"x.txt"}, files)
}

func TestPushAndBranchStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, dir := newTestRepo(t)
	testutil.AddBareRemote(t, dir)

	require.NoError(t, repo.CreateBranch(ctx, "feature/push-me"))
	testutil.WriteFile(t, dir, "f.txt", "f\n")
	require.NoError(t, repo.Commit(ctx, "feat: f", CommitOptions{}))

	require.NoError(t, repo.Push(ctx, "feature/push-me", PushOptions{SetUpstream: true}))
	assert.True(t, repo.HasUpstream(ctx, "feature/push-me"))

	status, err := repo.GetBranchStatus(ctx, "feature/push-me")
	require.NoError(t, err)
	assert.True(t, status.HasRemote)
	assert.True(t, status.IsClean)
	assert.Zero(t, status.Ahead)
	assert.Zero(t, status.Behind)
	assert.False(t, status.Conflicted)

	// A local commit not yet pushed shows as ahead.
	testutil.WriteFile(t, dir, "g.txt", "g\n")
	require.NoError(t, repo.Commit(ctx, "feat: g", CommitOptions{}))
	status, err = repo.GetBranchStatus(ctx, "feature/push-me")
	require.NoError(t, err)
	assert.Equal(t, 1, status.Ahead)
}

func TestDeleteRemoteBranch_AlreadyDeleted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, dir := newTestRepo(t)
	testutil.AddBareRemote(t, dir)

	err := repo.DeleteRemoteBranch(ctx, "feature/never-pushed")
	assert.NoError(t, err)
}

func TestSquashMerge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, dir := newTestRepo(t)

	require.NoError(t, repo.CreateBranch(ctx, "feature/squash"))
	testutil.WriteFile(t, dir, "one.txt", "1\n")
	require.NoError(t, repo.Commit(ctx, "feat: one", CommitOptions{}))
	testutil.WriteFile(t, dir, "two.txt", "2\n")
	require.NoError(t, repo.Commit(ctx, "feat: two", CommitOptions{}))

	require.NoError(t, repo.Checkout(ctx, "main"))
	require.NoError(t, repo.SquashMerge(ctx, "feature/squash", "feat: squashed"))

	log, err := repo.RecentLog(ctx, 2)
	require.NoError(t, err)
	require.NotEmpty(t, log)
	assert.Equal(t, "feat: squashed", log[0].Subject)
	assert.True(t, testutil.FileExists(dir, "one.txt"))
	assert.True(t, testutil.FileExists(dir, "two.txt"))
}

func TestCommitsSince(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, dir := newTestRepo(t)

	base, err := repo.HeadHash()
	require.NoError(t, err)

	testutil.WriteFile(t, dir, "n.txt", "n\n")
	require.NoError(t, repo.Commit(ctx, "feat: n", CommitOptions{}))

	n, err := repo.CommitsSince(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestConfigGetSet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, _ := newTestRepo(t)

	assert.Empty(t, repo.ConfigGet(ctx, "devsolo.test"))
	require.NoError(t, repo.ConfigSet(ctx, "devsolo.test", "value"))
	assert.Equal(t, "value", repo.ConfigGet(ctx, "devsolo.test"))
}

func TestTags(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, _ := newTestRepo(t)

	require.NoError(t, repo.CreateTag(ctx, "v1.0.0", "release v1.0.0"))
	tags, err := repo.ListTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1.0.0"}, tags)
}

func TestIsRebasing_False(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepo(t)
	assert.False(t, repo.IsRebasing(context.Background()))
}
