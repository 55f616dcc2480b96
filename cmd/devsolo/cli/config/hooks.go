package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/paths"
)

// HookNames are the git hooks devsolo materializes.
var HookNames = []string{"pre-commit", "pre-push"}

// hookScript delegates the policy decision to the CLI so the enforcement
// logic (active-session scan, trunk protection) lives in one place. If the
// binary is not on PATH the hook allows the operation rather than bricking
// the repository.
const hookScript = `#!/bin/sh
# Generated by devsolo. Do not edit; rerun 'devsolo init' to regenerate.
if ! command -v devsolo >/dev/null 2>&1; then
  exit 0
fi
exec devsolo hooks run %s
`

// MaterializeHooks writes the hook scripts under <base>/hooks and symlinks
// them into the repository's hooks directory. Existing non-devsolo hooks are
// left alone and reported as skipped.
func MaterializeHooks() (installed, skipped []string, err error) {
	hooksDir, err := paths.HooksDir()
	if err != nil {
		return nil, nil, fmt.Errorf("resolving hooks directory: %w", err)
	}
	if err := os.MkdirAll(hooksDir, 0o750); err != nil {
		return nil, nil, fmt.Errorf("creating hooks directory: %w", err)
	}

	gitHooksDir, err := paths.GitHooksDir()
	if err != nil {
		return nil, nil, fmt.Errorf("resolving git hooks directory: %w", err)
	}
	if err := os.MkdirAll(gitHooksDir, 0o750); err != nil {
		return nil, nil, fmt.Errorf("creating git hooks directory: %w", err)
	}

	for _, name := range HookNames {
		script := filepath.Join(hooksDir, name)
		content := fmt.Sprintf(hookScript, name)
		if err := os.WriteFile(script, []byte(content), 0o755); err != nil { //nolint:gosec // hook scripts must be executable
			return installed, skipped, fmt.Errorf("writing %s hook: %w", name, err)
		}

		target := filepath.Join(gitHooksDir, name)
		switch existing, lerr := os.Lstat(target); {
		case lerr == nil && existing.Mode()&os.ModeSymlink == 0:
			// A real file the user owns. Leave it.
			skipped = append(skipped, name)
			continue
		case lerr == nil:
			if rmErr := os.Remove(target); rmErr != nil {
				return installed, skipped, fmt.Errorf("replacing %s hook symlink: %w", name, rmErr)
			}
		}

		if err := os.Symlink(script, target); err != nil {
			return installed, skipped, fmt.Errorf("linking %s hook: %w", name, err)
		}
		installed = append(installed, name)
	}
	return installed, skipped, nil
}

// RemoveHooks deletes devsolo-owned hook symlinks from the repository's hooks
// directory. Scripts under the workspace directory are removed with it.
func RemoveHooks() error {
	gitHooksDir, err := paths.GitHooksDir()
	if err != nil {
		return fmt.Errorf("resolving git hooks directory: %w", err)
	}

	for _, name := range HookNames {
		target := filepath.Join(gitHooksDir, name)
		info, err := os.Lstat(target)
		if err != nil {
			continue
		}
		if info.Mode()&os.ModeSymlink == 0 {
			continue // not ours
		}
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("removing %s hook: %w", name, err)
		}
	}
	return nil
}
