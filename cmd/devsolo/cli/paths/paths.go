package paths

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// BasePathEnvVar overrides the workspace directory name (default ".devsolo").
const BasePathEnvVar = "DEVSOLO_BASE_PATH"

// WorkflowEnvVar marks git subprocesses spawned by the workflow tools. The
// policy hooks exempt them so a tool-driven commit or push is not blocked by
// the hook that routes direct git usage through the tools.
const WorkflowEnvVar = "DEVSOLO_WORKFLOW"

// DefaultBaseDir is the workspace directory relative to the repository root.
const DefaultBaseDir = ".devsolo"

// Well-known file and directory names inside the workspace directory.
const (
	ConfigFileName     = "config.yaml"
	MarkerFileName     = "devsolo.yaml"
	SessionsDirName    = "sessions"
	IndexFileName      = "index.json"
	CurrentSessionFile = "current.json"
	LocksDirName       = "locks"
	AuditDirName       = "audit"
	LogsDirName        = "logs"
	HooksDirName       = "hooks"
)

// BaseDir returns the workspace directory name, honoring DEVSOLO_BASE_PATH.
func BaseDir() string {
	if override := os.Getenv(BasePathEnvVar); override != "" {
		return override
	}
	return DefaultBaseDir
}

// repoRootCache caches the repository root to avoid repeated git commands.
// The cache is keyed by the current working directory to handle directory changes.
var (
	repoRootMu       sync.RWMutex
	repoRootCache    string
	repoRootCacheDir string
)

// RepoRoot returns the git repository root directory.
// Uses 'git rev-parse --show-toplevel' which works from any subdirectory.
// The result is cached per working directory.
// Returns an error if not inside a git repository.
func RepoRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}

	repoRootMu.RLock()
	if repoRootCache != "" && repoRootCacheDir == cwd {
		cached := repoRootCache
		repoRootMu.RUnlock()
		return cached, nil
	}
	repoRootMu.RUnlock()

	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get git repository root: %w", err)
	}

	root := strings.TrimSpace(string(output))

	repoRootMu.Lock()
	repoRootCache = root
	repoRootCacheDir = cwd
	repoRootMu.Unlock()

	return root, nil
}

// ClearRepoRootCache clears the cached repository root.
// This is primarily useful for testing when changing directories.
func ClearRepoRootCache() {
	repoRootMu.Lock()
	repoRootCache = ""
	repoRootCacheDir = ""
	repoRootMu.Unlock()
}

// Base returns the absolute path to the workspace directory.
// If an absolute DEVSOLO_BASE_PATH is set, it is used as-is; otherwise the
// base directory is resolved relative to the repository root.
func Base() (string, error) {
	dir := BaseDir()
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	root, err := RepoRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, dir), nil
}

// BaseOr returns the workspace directory, or joins the base dir onto the
// fallback when not inside a git repository.
func BaseOr(fallback string) string {
	base, err := Base()
	if err != nil {
		return filepath.Join(fallback, BaseDir())
	}
	return base
}

// ConfigFile returns the absolute path to the configuration file.
func ConfigFile() (string, error) {
	return join(ConfigFileName)
}

// MarkerFile returns the absolute path to the initialization marker file.
func MarkerFile() (string, error) {
	return join(MarkerFileName)
}

// SessionsDir returns the absolute path to the sessions directory.
func SessionsDir() (string, error) {
	return join(SessionsDirName)
}

// LocksDir returns the absolute path to the per-session lock directory.
func LocksDir() (string, error) {
	return join(LocksDirName)
}

// AuditDir returns the absolute path to the audit log directory.
func AuditDir() (string, error) {
	return join(AuditDirName)
}

// LogsDir returns the absolute path to the structured log directory.
func LogsDir() (string, error) {
	return join(LogsDirName)
}

// HooksDir returns the absolute path to the generated hook scripts directory.
func HooksDir() (string, error) {
	return join(HooksDirName)
}

func join(name string) (string, error) {
	base, err := Base()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, name), nil
}

// GitHooksDir returns the repository's .git/hooks directory.
// Uses the git common dir so linked worktrees share the same hooks.
func GitHooksDir() (string, error) {
	commonDir, err := GitCommonDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(commonDir, "hooks"), nil
}

// GitCommonDir returns the path to the shared git directory.
// In a regular checkout, this is .git/
// In a worktree, this is the main repo's .git/ (not .git/worktrees/<name>/)
func GitCommonDir() (string, error) {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--git-common-dir")
	cmd.Dir = "."
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get git common dir: %w", err)
	}

	commonDir := strings.TrimSpace(string(output))
	if !filepath.IsAbs(commonDir) {
		commonDir = filepath.Join(".", commonDir)
	}
	return filepath.Clean(commonDir), nil
}

// AbsPath returns the absolute path for a relative path within the repository.
// If the path is already absolute, it is returned as-is.
func AbsPath(relPath string) (string, error) {
	if filepath.IsAbs(relPath) {
		return relPath, nil
	}
	root, err := RepoRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, relPath), nil
}

// IsInfrastructurePath returns true if the path is part of devsolo
// infrastructure (i.e., inside the workspace directory).
func IsInfrastructurePath(path string) bool {
	base := BaseDir()
	return strings.HasPrefix(path, base+"/") || path == base
}
