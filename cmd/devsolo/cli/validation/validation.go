// Package validation provides input validation functions for the devsolo CLI.
// This package has no dependencies to avoid import cycles.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// pathSafeRegex matches alphanumeric characters, underscores, and hyphens only.
// Used to validate IDs that will be used in file paths.
var pathSafeRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// branchNameRegex is the canonical feature branch shape: a recognized type
// prefix followed by kebab-cased words.
var branchNameRegex = regexp.MustCompile(`^(feature|bugfix|hotfix|release|chore|docs|test|refactor)/[a-z0-9]+(?:-[a-z0-9]+)*$`)

// BranchPrefixes lists the recognized branch type prefixes.
var BranchPrefixes = []string{"feature", "bugfix", "hotfix", "release", "chore", "docs", "test", "refactor"}

// ValidateSessionID validates that a session ID contains only safe characters
// for paths. This prevents path traversal attacks when session IDs are used in
// file path construction.
func ValidateSessionID(id string) error {
	if id == "" {
		return errors.New("session ID cannot be empty")
	}
	if !pathSafeRegex.MatchString(id) {
		return fmt.Errorf("invalid session ID %q: must be alphanumeric with underscores/hyphens only", id)
	}
	return nil
}

// ValidateBranchName validates that a branch name matches the enforced
// convention: <type>/<kebab-case-words>.
func ValidateBranchName(name string) error {
	if name == "" {
		return errors.New("branch name cannot be empty")
	}
	if !branchNameRegex.MatchString(name) {
		return fmt.Errorf("invalid branch name %q: must match <type>/<kebab-case> with type one of %s",
			name, strings.Join(BranchPrefixes, ", "))
	}
	return nil
}

// IsConventionalBranchName reports whether a name matches the branch
// convention without returning an error.
func IsConventionalBranchName(name string) bool {
	return branchNameRegex.MatchString(name)
}

// ValidateBranchNameSafe validates that a branch name is safe to pass to git
// on the command line. It is looser than ValidateBranchName: existing branches
// created outside devsolo may not follow the convention but must still be
// addressable for swap and cleanup.
func ValidateBranchNameSafe(name string) error {
	if name == "" {
		return errors.New("branch name cannot be empty")
	}
	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("invalid branch name %q: cannot start with a dash", name)
	}
	if strings.ContainsAny(name, " \t\n~^:?*[\\") || strings.Contains(name, "..") {
		return fmt.Errorf("invalid branch name %q: contains characters git rejects", name)
	}
	return nil
}
