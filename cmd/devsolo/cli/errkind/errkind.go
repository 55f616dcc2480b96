// Package errkind defines the tagged error taxonomy surfaced on tool results.
// Every failure a tool reports carries exactly one Kind; callers branch on the
// kind, never on error strings.
package errkind

import (
	"errors"
	"fmt"
)

// Kind tags an error with its workflow failure category.
type Kind string

const (
	// NotInitialized means the workspace has no devsolo configuration.
	NotInitialized Kind = "not-initialized"
	// PreFlightFailed means one or more pre-flight checks failed without force.
	PreFlightFailed Kind = "pre-flight-failed"
	// MissingParameter means a required parameter was not collected.
	MissingParameter Kind = "missing-parameter"
	// InvalidStateTransition means the state machine rejected a move.
	InvalidStateTransition Kind = "invalid-state-transition"
	// GitFailure means an underlying git command failed.
	GitFailure Kind = "git-failure"
	// PlatformUnreachable means network/5xx/rate-limit retries were exhausted.
	PlatformUnreachable Kind = "platform-unreachable"
	// PlatformForbidden means the platform rejected credentials (401/403).
	PlatformForbidden Kind = "platform-forbidden"
	// DuplicateOpenPR means more than one open PR shares the same head branch.
	DuplicateOpenPR Kind = "duplicate-open-pr"
	// BranchReuseForbidden means a merged-and-deleted branch name was pushed again.
	BranchReuseForbidden Kind = "branch-reuse-forbidden"
	// CIFailed means one or more check runs concluded failure.
	CIFailed Kind = "ci-failed"
	// CITimeout means the CI polling budget was exceeded.
	CITimeout Kind = "ci-timeout"
	// Cancelled means cooperative cancellation ended the tool.
	Cancelled Kind = "cancelled"
	// LockHeld means another process holds the session lock.
	LockHeld Kind = "lock-held"
	// UnknownTool means the transport named a tool that does not exist.
	UnknownTool Kind = "unknown-tool"
	// Internal is the catch-all for unexpected failures.
	Internal Kind = "internal"
)

// Error is a kinded workflow error. It wraps an optional cause so callers can
// still reach the original failure with errors.Is/As.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a kinded error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a kinded error around a cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from an error chain.
// Unkinded errors report Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Kinded reports whether the chain already carries a Kind. Wrappers use it to
// avoid masking a more specific kind assigned closer to the failure.
func Kinded(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// Is reports whether the error chain carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
