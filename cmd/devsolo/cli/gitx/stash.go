package gitx

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/errkind"
)

// StashReason says why an auto-stash was created.
type StashReason string

const (
	StashReasonSwap   StashReason = "swap"
	StashReasonLaunch StashReason = "launch"
	StashReasonAbort  StashReason = "abort"
)

// StashEntry is one entry in the repository stash stack.
type StashEntry struct {
	Ref     string // stash@{N}
	Message string
}

// StashResult is the outcome of an auto-stash.
type StashResult struct {
	Ref     string
	Message string
}

// stashMessageRegex matches the devsolo auto-stash message template.
var stashMessageRegex = regexp.MustCompile(`^devsolo auto-stash \((swap|launch|abort)\) \[([^\]]*)\] - `)

// stashRefRegex extracts the stash ref from `git stash list` lines.
var stashRefRegex = regexp.MustCompile(`^(stash@\{\d+\}):\s*(.*)$`)

// FormatStashMessage renders the auto-stash message template.
func FormatStashMessage(reason StashReason, branch string, now time.Time) string {
	return fmt.Sprintf("devsolo auto-stash (%s) [%s] - %s", reason, branch, now.UTC().Format(time.RFC3339))
}

// StashChanges pushes a named auto-stash including untracked files.
// The returned ref must be kept for a later targeted pop: the stash stack
// renumbers as entries come and go, so refs are re-resolved by message.
func (r *Repo) StashChanges(ctx context.Context, reason StashReason, branch string) (*StashResult, error) {
	if branch == "" {
		current, err := r.CurrentBranch()
		if err != nil {
			return nil, err
		}
		branch = current
	}

	message := FormatStashMessage(reason, branch, time.Now())
	if _, err := r.git(ctx, "stash", "push", "--include-untracked", "-m", message); err != nil {
		return nil, err
	}

	// The new stash is always stash@{0}, but return the message-resolved ref
	// to guard against races with other stash writers.
	ref, err := r.FindStashByMessage(ctx, message)
	if err != nil {
		return nil, err
	}
	return &StashResult{Ref: ref, Message: message}, nil
}

// PopStash pops a specific stash entry.
// A vanished stash is not an error: the ref is a weak handle.
func (r *Repo) PopStash(ctx context.Context, ref string) error {
	_, err := r.git(ctx, "stash", "pop", ref)
	if err != nil && isMissingStash(err) {
		return nil
	}
	return err
}

// DropStash drops a specific stash entry.
// A vanished stash is not an error.
func (r *Repo) DropStash(ctx context.Context, ref string) error {
	_, err := r.git(ctx, "stash", "drop", ref)
	if err != nil && isMissingStash(err) {
		return nil
	}
	return err
}

// ListStashes lists every entry in the stash stack.
func (r *Repo) ListStashes(ctx context.Context) ([]StashEntry, error) {
	out, err := r.git(ctx, "stash", "list")
	if err != nil {
		return nil, err
	}
	var entries []StashEntry
	for _, line := range splitLines(out) {
		m := stashRefRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		entries = append(entries, StashEntry{Ref: m[1], Message: m[2]})
	}
	return entries, nil
}

// DevsoloStashes lists only entries created by the auto-stash template.
func (r *Repo) DevsoloStashes(ctx context.Context) ([]StashEntry, error) {
	entries, err := r.ListStashes(ctx)
	if err != nil {
		return nil, err
	}
	var filtered []StashEntry
	for _, e := range entries {
		// `git stash list` prefixes messages with "On <branch>: ".
		msg := e.Message
		if idx := strings.Index(msg, "devsolo auto-stash"); idx >= 0 {
			msg = msg[idx:]
		}
		if stashMessageRegex.MatchString(msg) {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

// FindStashByMessage resolves the current ref of the stash carrying message.
func (r *Repo) FindStashByMessage(ctx context.Context, message string) (string, error) {
	entries, err := r.ListStashes(ctx)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if strings.Contains(e.Message, message) {
			return e.Ref, nil
		}
	}
	return "", errkind.New(errkind.GitFailure, "stash with message %q not found", message)
}

func isMissingStash(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "is not a valid reference") ||
		strings.Contains(msg, "No stash entries found") ||
		strings.Contains(msg, "only has") // "log for 'stash' only has N entries"
}
