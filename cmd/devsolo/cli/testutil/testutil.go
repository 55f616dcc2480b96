// Package testutil provides shared git repository fixtures for tests.
// This package has no build tags, making it usable by all test packages.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// Git runs a git command in dir and fails the test on error.
// Returns trimmed stdout.
func Git(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test User",
		"GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=Test User",
		"GIT_COMMITTER_EMAIL=test@example.com",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

// InitRepo initializes a git repository with main as the initial branch and
// test user config.
func InitRepo(t *testing.T, dir string) {
	t.Helper()

	Git(t, dir, "init", "-b", "main")
	Git(t, dir, "config", "user.name", "Test User")
	Git(t, dir, "config", "user.email", "test@example.com")
	Git(t, dir, "config", "commit.gpgsign", "false")
}

// InitRepoWithCommit initializes a repository and creates an initial commit
// so HEAD resolves.
func InitRepoWithCommit(t *testing.T, dir string) {
	t.Helper()

	InitRepo(t, dir)
	WriteFile(t, dir, "README.md", "# test\n")
	Git(t, dir, "add", "--all")
	Git(t, dir, "commit", "-m", "initial commit")
}

// WriteFile creates a file with the given content in the repo directory.
// It creates parent directories as needed.
func WriteFile(t *testing.T, dir, path, content string) {
	t.Helper()

	fullPath := filepath.Join(dir, path)
	//nolint:gosec // test code, permissions are intentionally standard
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	//nolint:gosec // test code, permissions are intentionally standard
	if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
}

// CommitAll stages everything and commits with the given message.
func CommitAll(t *testing.T, dir, message string) {
	t.Helper()

	Git(t, dir, "add", "--all")
	Git(t, dir, "commit", "-m", message)
}

// AddBareRemote creates a bare repository, registers it as origin, and pushes
// the current branch. Returns the bare repository path.
func AddBareRemote(t *testing.T, dir string) string {
	t.Helper()

	remoteDir := filepath.Join(t.TempDir(), "origin.git")
	cmd := exec.Command("git", "init", "--bare", remoteDir)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git init --bare failed: %v\n%s", err, out)
	}

	Git(t, dir, "remote", "add", "origin", remoteDir)
	branch := Git(t, dir, "rev-parse", "--abbrev-ref", "HEAD")
	Git(t, dir, "push", "--set-upstream", "origin", branch)
	return remoteDir
}

// FileExists checks if a file exists in the repo directory.
func FileExists(dir, path string) bool {
	_, err := os.Stat(filepath.Join(dir, path))
	return err == nil
}

// Chdir changes into dir for the duration of the test.
func Chdir(t *testing.T, dir string) {
	t.Helper()

	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(old)
	})
}
