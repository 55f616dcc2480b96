// Package checks is the pre-flight and post-flight check engine. Tools
// declare checks by id; the engine runs them in declaration order, never
// short-circuits, and reports a single verdict alongside the full result
// list so the caller sees the complete picture.
package checks

import (
	"context"
	"fmt"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/gitx"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/session"
)

// Level classifies one check outcome. Only fail and prompt block execution.
type Level string

const (
	LevelInfo   Level = "info"
	LevelPass   Level = "pass"
	LevelWarn   Level = "warn"
	LevelFail   Level = "fail"
	LevelPrompt Level = "prompt"
)

// Option is one resolution offered by a prompt-level result. Exactly one
// option per prompt carries AutoRecommended.
type Option struct {
	ID              string `json:"id"`
	Label           string `json:"label"`
	Description     string `json:"description,omitempty"`
	Action          string `json:"action"`
	Risk            string `json:"risk"` // low | medium | high
	AutoRecommended bool   `json:"autoRecommended"`
}

// Result is one check outcome.
type Result struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Level       Level    `json:"level"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
	Options     []Option `json:"options,omitempty"`
}

// Git is the slice of git operations checks read from. Checks never mutate.
type Git interface {
	CurrentBranch() (string, error)
	MainBranch() (string, error)
	HasUncommittedChanges() (bool, error)
	StagedFiles(ctx context.Context) ([]string, error)
	GetBranchStatus(ctx context.Context, branch string) (*gitx.BranchStatus, error)
	BranchExistsLocally(branch string) (bool, error)
	BranchExistsOnRemote(branch string) (bool, error)
	HasUpstream(ctx context.Context, branch string) bool
	RemoteURL() (string, error)
	Diff(ctx context.Context) (string, error)
	DiffStatSummary(ctx context.Context) (*gitx.DiffStat, error)
}

// Context is the read-only bundle checks evaluate against. Tools populate
// the fields their declared checks need.
type Context struct {
	Git       Git
	Store     *session.Store
	Validator *session.Validator

	// Session is the session under consideration, nil when none exists.
	Session *session.Session
	// Branch is the branch under consideration, usually the current one.
	Branch string
	// Trunk is the repository's main branch name.
	Trunk string

	// RequiredStates parameterizes sessionStateIs.
	RequiredStates []session.State
	// ExpectedState parameterizes sessionStateCorrect.
	ExpectedState session.State

	// StagedOnly selects hasStagedFiles over hasChangesToCommit.
	StagedOnly bool

	// ChosenOption resolves a previously surfaced prompt.
	ChosenOption string
	// Auto resolves prompts via their recommended option without a round
	// trip.
	Auto bool

	// PlatformReady reports whether the platform client initialized.
	PlatformReady bool
	// CIObserved reports whether the repository has check-suite history.
	CIObserved bool
	// OpenPRCount is the number of open PRs for Branch; -1 when unknown.
	OpenPRCount int
}

// Check is one registry entry.
type Check struct {
	ID       string
	Name     string
	Category string
	Execute  func(ctx context.Context, c *Context) Result
}

// Run executes the named checks in declaration order. Unknown ids fail
// loudly. Prompt-level results auto-resolve to the recommended option when
// the context says so.
func Run(ctx context.Context, c *Context, ids []string) ([]Result, error) {
	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		check, ok := registry[id]
		if !ok {
			return nil, fmt.Errorf("unknown check id %q", id)
		}
		res := check.Execute(ctx, c)
		if res.Level == LevelPrompt && c.Auto {
			res = autoResolve(res)
		}
		results = append(results, res)
	}
	return results, nil
}

// AllPassed is true iff every result is info, pass, or warn.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if r.Level == LevelFail || r.Level == LevelPrompt {
			return false
		}
	}
	return true
}

// Failures returns the failing and prompting results.
func Failures(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Level == LevelFail || r.Level == LevelPrompt {
			out = append(out, r)
		}
	}
	return out
}

// autoResolve converts a prompt into the outcome of its recommended option.
func autoResolve(res Result) Result {
	for _, opt := range res.Options {
		if opt.AutoRecommended {
			res.Level = LevelWarn
			res.Message = fmt.Sprintf("%s (auto-selected: %s)", res.Message, opt.Label)
			res.Suggestions = []string{opt.Action}
			return res
		}
	}
	res.Level = LevelFail
	return res
}

func pass(check Check, format string, args ...any) Result {
	return Result{ID: check.ID, Name: check.Name, Level: LevelPass, Message: fmt.Sprintf(format, args...)}
}

func fail(check Check, format string, args ...any) Result {
	return Result{ID: check.ID, Name: check.Name, Level: LevelFail, Message: fmt.Sprintf(format, args...)}
}

func warn(check Check, format string, args ...any) Result {
	return Result{ID: check.ID, Name: check.Name, Level: LevelWarn, Message: fmt.Sprintf(format, args...)}
}

func info(check Check, format string, args ...any) Result {
	return Result{ID: check.ID, Name: check.Name, Level: LevelInfo, Message: fmt.Sprintf(format, args...)}
}
