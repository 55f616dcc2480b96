// Package tools implements the workflow tools behind both the CLI commands
// and the MCP server. Every mutating tool runs the same pipeline:
// initialization check, parameter collection, read-only context derivation,
// pre-flight checks, execution, post-flight verification, final result.
// Errors never escape a tool; they are folded into the result.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/audit"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/checks"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/config"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/errkind"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/github"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/gitx"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/logging"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/session"
)

// Platform is the slice of the hosted-platform client the tools drive.
type Platform interface {
	CreatePullRequest(ctx context.Context, head, base, title, body string) (*github.PullRequest, error)
	PullRequestForBranch(ctx context.Context, branch string) (*github.PullRequest, error)
	GetPullRequest(ctx context.Context, number int) (*github.PullRequest, error)
	MergePullRequest(ctx context.Context, number int, method github.MergeMethod, commitTitle string) error
	ListCheckRuns(ctx context.Context, ref string) (*github.CheckRunSummary, error)
}

// Env is the shared dependency bundle tools run against.
type Env struct {
	Config    *config.Config
	Git       *gitx.Repo
	Store     *session.Store
	Validator *session.Validator
	Audit     *audit.Log

	// Platform is nil when no token or remote is configured; tools degrade
	// to local-only behavior.
	Platform Platform

	// Initialized mirrors the marker file at startup.
	Initialized bool

	// mu serializes config reloads against in-flight tool runs.
	mu sync.RWMutex
}

// ReloadConfig swaps the live configuration. Long-running servers call this
// from the config watcher; the swap waits for in-flight tools to finish.
func (e *Env) ReloadConfig(cfg *config.Config) {
	e.mu.Lock()
	e.Config = cfg
	e.mu.Unlock()
	logging.SetLogLevelGetter(func() string { return cfg.Preferences.LogLevel })
}

// Result is the uniform tool response shape.
type Result struct {
	Success                 bool            `json:"success"`
	SessionID               string          `json:"sessionId,omitempty"`
	BranchName              string          `json:"branchName,omitempty"`
	State                   string          `json:"state,omitempty"`
	Data                    map[string]any  `json:"data,omitempty"`
	Errors                  []string        `json:"errors,omitempty"`
	ErrorKind               string          `json:"errorKind,omitempty"`
	PreFlightChecks         []checks.Result `json:"preFlightChecks,omitempty"`
	PostFlightVerifications []checks.Result `json:"postFlightVerifications,omitempty"`
	NextSteps               []string        `json:"nextSteps,omitempty"`
}

// MissingParam describes one parameter the caller must supply.
type MissingParam struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Tool is one addressable workflow operation.
type Tool interface {
	Name() string
	Description() string
	Run(ctx context.Context, args json.RawMessage) *Result
}

// flow is the per-invocation state threaded through the pipeline phases.
type flow struct {
	checks  *checks.Context
	session *session.Session
	branch  string
	trunk   string
	data    map[string]any
	next    []string
}

func (f *flow) put(key string, value any) {
	if f.data == nil {
		f.data = map[string]any{}
	}
	f.data[key] = value
}

// pipeline declares a tool's phases for the shared runner.
type pipeline struct {
	tool     string
	skipInit bool
	force    bool
	auto     bool

	collect func() []MissingParam
	build   func(ctx context.Context) (*flow, error)
	pre     func(f *flow) []string
	exec    func(ctx context.Context, f *flow) error
	post    func(f *flow) []string
}

// run drives the uniform pipeline. All failure paths produce a Result; no
// error escapes.
func (e *Env) run(ctx context.Context, p pipeline) *Result {
	ctx = logging.WithTool(ctx, p.tool)

	if !p.skipInit && !e.Initialized {
		return e.fail(ctx, p.tool, nil, errkind.New(errkind.NotInitialized,
			"devsolo is not initialized in this repository; run init first"))
	}

	if p.collect != nil {
		if missing := p.collect(); len(missing) > 0 {
			res := &Result{Success: false, Data: map[string]any{"missingParameters": missing}}
			for _, m := range missing {
				res.NextSteps = append(res.NextSteps, fmt.Sprintf("provide %s: %s", m.Name, m.Description))
			}
			return res
		}
	}

	f, err := p.build(ctx)
	if err != nil {
		return e.fail(ctx, p.tool, f, err)
	}
	if f.checks != nil {
		f.checks.Auto = p.auto
	}
	if f.session != nil {
		ctx = logging.WithSession(ctx, f.session.ID)
	}
	if f.branch != "" {
		ctx = logging.WithBranch(ctx, f.branch)
	}

	var preResults []checks.Result
	if p.pre != nil {
		preResults, err = checks.Run(ctx, f.checks, p.pre(f))
		if err != nil {
			return e.fail(ctx, p.tool, f, errkind.Wrap(errkind.Internal, err, "running pre-flight checks"))
		}
		if !checks.AllPassed(preResults) && !p.force {
			res := e.fail(ctx, p.tool, f, errkind.New(errkind.PreFlightFailed, "pre-flight checks failed"))
			res.PreFlightChecks = preResults
			return res
		}
	}

	if err := e.cancelled(ctx, p.tool, f); err != nil {
		res := e.fail(ctx, p.tool, f, err)
		res.PreFlightChecks = preResults
		return res
	}

	if err := p.exec(ctx, f); err != nil {
		res := e.fail(ctx, p.tool, f, err)
		res.PreFlightChecks = preResults
		return res
	}

	var postResults []checks.Result
	if p.post != nil {
		postResults, err = checks.Run(ctx, f.checks, p.post(f))
		if err != nil {
			logging.Warn(ctx, "post-flight verification error", "error", err.Error())
		}
	}

	e.audit(ctx, audit.Entry{
		SessionID: f.sessionID(),
		Action:    p.tool,
		Details:   audit.Details{Command: "devsolo " + p.tool},
		Result:    audit.ResultSuccess,
	})

	res := &Result{
		Success:                 true,
		SessionID:               f.sessionID(),
		BranchName:              f.branch,
		Data:                    f.data,
		PreFlightChecks:         preResults,
		PostFlightVerifications: postResults,
		NextSteps:               f.next,
	}
	if f.session != nil {
		res.State = string(f.session.CurrentState)
	}
	return res
}

func (f *flow) sessionID() string {
	if f == nil || f.session == nil {
		return ""
	}
	return f.session.ID
}

// cancelled checks for cooperative cancellation between phases. A cancelled
// invocation aborts its session and leaves an audit trail.
func (e *Env) cancelled(ctx context.Context, tool string, f *flow) error {
	if ctx.Err() == nil {
		return nil
	}
	if f != nil && f.session != nil && !f.session.CurrentState.IsTerminal() {
		if _, err := e.Store.Update(ctx, f.session.ID, func(s *session.Session) error {
			return s.Abort(tool)
		}); err != nil {
			logging.Warn(ctx, "failed to abort session on cancellation", "error", err.Error())
		}
	}
	e.audit(ctx, audit.Entry{
		SessionID: f.sessionID(),
		Action:    tool,
		Result:    audit.ResultAborted,
		Details:   audit.Details{Command: "devsolo " + tool},
	})
	return errkind.Wrap(errkind.Cancelled, ctx.Err(), "%s cancelled", tool)
}

// fail folds an error into a Result and audits the failure.
func (e *Env) fail(ctx context.Context, tool string, f *flow, err error) *Result {
	kind := errkind.KindOf(err)
	if kind != errkind.Cancelled {
		e.audit(ctx, audit.Entry{
			SessionID:    f.sessionID(),
			Action:       tool,
			Result:       audit.ResultFailure,
			ErrorMessage: err.Error(),
			Details:      audit.Details{Command: "devsolo " + tool},
		})
	}
	logging.Error(ctx, "tool failed", "tool", tool, "kind", string(kind), "error", err.Error())

	res := &Result{
		Success:    false,
		BranchName: branchOf(f),
		SessionID:  f.sessionID(),
		Errors:     []string{err.Error()},
		ErrorKind:  string(kind),
	}
	if f != nil && f.session != nil {
		res.State = string(f.session.CurrentState)
	}
	return res
}

func branchOf(f *flow) string {
	if f == nil {
		return ""
	}
	return f.branch
}

// audit records an entry, tolerating audit I/O failures.
func (e *Env) audit(ctx context.Context, entry audit.Entry) {
	if e.Audit == nil {
		return
	}
	if err := e.Audit.Record(ctx, entry); err != nil {
		logging.Warn(ctx, "audit write failed", "error", err.Error())
	}
}

// transition moves a session through its state machine, persisting and
// auditing the change. Partial progress lands on disk before errors
// propagate, so retries resume instead of restarting.
func (e *Env) transition(ctx context.Context, f *flow, to session.State, trigger string) error {
	updated, err := e.Store.Update(ctx, f.session.ID, func(s *session.Session) error {
		return s.TransitionTo(to, trigger)
	})
	if err != nil {
		return err
	}
	from := f.session.CurrentState
	f.session = updated
	e.audit(ctx, audit.Entry{
		SessionID: updated.ID,
		Action:    "state-transition",
		Result:    audit.ResultSuccess,
		Details: audit.Details{
			StateTransition: &audit.StateTransition{From: string(from), To: string(to)},
		},
	})
	return nil
}

// decode unmarshals tool arguments, ignoring unknown fields with a debug
// note so callers can spot typos.
func decode(ctx context.Context, raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errkind.Wrap(errkind.MissingParameter, err, "invalid tool parameters")
	}
	var all map[string]any
	if err := json.Unmarshal(raw, &all); err == nil {
		known := map[string]any{}
		if b, err := json.Marshal(v); err == nil {
			_ = json.Unmarshal(b, &known)
		}
		for key := range all {
			if _, ok := known[key]; !ok {
				logging.Debug(ctx, "ignoring unknown tool parameter", "field", key)
			}
		}
	}
	return nil
}
