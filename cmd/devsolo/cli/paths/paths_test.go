package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/testutil"
)

func TestBaseDir(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(BasePathEnvVar, "")
		assert.Equal(t, DefaultBaseDir, BaseDir())
	})

	t.Run("env override", func(t *testing.T) {
		t.Setenv(BasePathEnvVar, ".custom")
		assert.Equal(t, ".custom", BaseDir())
	})
}

func TestBase_ResolvesAgainstRepoRoot(t *testing.T) {
	dir := t.TempDir()
	testutil.InitRepoWithCommit(t, dir)
	testutil.Chdir(t, dir)
	t.Setenv(BasePathEnvVar, "")
	ClearRepoRootCache()
	t.Cleanup(ClearRepoRootCache)

	base, err := Base()
	require.NoError(t, err)

	// macOS tempdirs resolve through /private; compare the resolved forms.
	wantRoot, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	gotRoot, err := filepath.EvalSymlinks(filepath.Dir(base))
	require.NoError(t, err)
	assert.Equal(t, wantRoot, gotRoot)
	assert.Equal(t, DefaultBaseDir, filepath.Base(base))
}

func TestBase_AbsoluteOverrideWinsOutsideRepo(t *testing.T) {
	outside := t.TempDir()
	testutil.Chdir(t, outside)
	override := filepath.Join(t.TempDir(), "state")
	t.Setenv(BasePathEnvVar, override)
	ClearRepoRootCache()
	t.Cleanup(ClearRepoRootCache)

	base, err := Base()
	require.NoError(t, err)
	assert.Equal(t, override, base)
}

func TestBaseOr_FallsBackOutsideRepo(t *testing.T) {
	outside := t.TempDir()
	testutil.Chdir(t, outside)
	t.Setenv(BasePathEnvVar, "")
	ClearRepoRootCache()
	t.Cleanup(ClearRepoRootCache)

	got := BaseOr(outside)
	assert.Equal(t, filepath.Join(outside, DefaultBaseDir), got)
}

func TestWellKnownPaths(t *testing.T) {
	dir := t.TempDir()
	testutil.InitRepoWithCommit(t, dir)
	testutil.Chdir(t, dir)
	t.Setenv(BasePathEnvVar, "")
	ClearRepoRootCache()
	t.Cleanup(ClearRepoRootCache)

	base, err := Base()
	require.NoError(t, err)

	tests := []struct {
		name string
		fn   func() (string, error)
		want string
	}{
		{"config", ConfigFile, ConfigFileName},
		{"marker", MarkerFile, MarkerFileName},
		{"sessions", SessionsDir, SessionsDirName},
		{"locks", LocksDir, LocksDirName},
		{"audit", AuditDir, AuditDirName},
		{"logs", LogsDir, LogsDirName},
		{"hooks", HooksDir, HooksDirName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn()
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(base, tt.want), got)
		})
	}
}

func TestGitHooksDir(t *testing.T) {
	dir := t.TempDir()
	testutil.InitRepoWithCommit(t, dir)
	testutil.Chdir(t, dir)
	ClearRepoRootCache()
	t.Cleanup(ClearRepoRootCache)

	hooks, err := GitHooksDir()
	require.NoError(t, err)
	assert.Equal(t, "hooks", filepath.Base(hooks))
}

func TestIsInfrastructurePath(t *testing.T) {
	t.Setenv(BasePathEnvVar, "")

	assert.True(t, IsInfrastructurePath(".devsolo"))
	assert.True(t, IsInfrastructurePath(".devsolo/sessions/abc.json"))
	assert.False(t, IsInfrastructurePath("src/main.go"))
	assert.False(t, IsInfrastructurePath(".devsolorc"))
}
