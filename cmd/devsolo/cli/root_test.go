package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/paths"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/session"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/testutil"
)

func TestNewRootCmd_RegistersAllCommands(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()

	names := map[string]bool{}
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{
		"init", "launch", "commit", "ship", "swap", "abort", "hotfix",
		"cleanup", "sessions", "status", "hooks", "mcp", "version",
	} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "devsolo")
}

func runHookCmd(t *testing.T, hook string) error {
	t.Helper()

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"hooks", "run", hook})
	return root.Execute()
}

func TestHookPolicy_BlocksTrunkCommits(t *testing.T) {
	dir := t.TempDir()
	testutil.InitRepoWithCommit(t, dir)
	testutil.Chdir(t, dir)
	t.Setenv(paths.BasePathEnvVar, "")
	paths.ClearRepoRootCache()
	t.Cleanup(paths.ClearRepoRootCache)

	err := runHookCmd(t, "pre-commit")
	require.Error(t, err)

	var silent *SilentError
	assert.ErrorAs(t, err, &silent)
}

func TestHookPolicy_AllowsSessionlessFeatureBranches(t *testing.T) {
	dir := t.TempDir()
	testutil.InitRepoWithCommit(t, dir)
	testutil.Git(t, dir, "checkout", "-b", "feature/allowed")
	testutil.Chdir(t, dir)
	t.Setenv(paths.BasePathEnvVar, "")
	paths.ClearRepoRootCache()
	t.Cleanup(paths.ClearRepoRootCache)

	require.NoError(t, runHookCmd(t, "pre-commit"))
	require.NoError(t, runHookCmd(t, "pre-push"))
}

func TestHookPolicy_BlocksDirectGitOnSessionBranches(t *testing.T) {
	dir := t.TempDir()
	testutil.InitRepoWithCommit(t, dir)
	testutil.Git(t, dir, "checkout", "-b", "feature/owned")
	testutil.Chdir(t, dir)
	t.Setenv(paths.BasePathEnvVar, "")
	paths.ClearRepoRootCache()
	t.Cleanup(paths.ClearRepoRootCache)

	store, err := session.Open()
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), session.New("feature/owned", session.WorkflowLaunch)))

	err = runHookCmd(t, "pre-commit")
	require.Error(t, err)
	var silent *SilentError
	assert.ErrorAs(t, err, &silent)

	// The workflow tools mark their own git subprocesses; those pass.
	t.Setenv(paths.WorkflowEnvVar, "1")
	require.NoError(t, runHookCmd(t, "pre-commit"))
	require.NoError(t, runHookCmd(t, "pre-push"))
}
