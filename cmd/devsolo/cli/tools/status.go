package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/session"
)

// SessionsTool lists sessions. Read-only.
type SessionsTool struct {
	Env *Env
}

// SessionsParams are the sessions tool arguments.
type SessionsParams struct {
	All            bool `json:"all,omitempty"`
	IncludeExpired bool `json:"includeExpired,omitempty"`
}

func (t *SessionsTool) Name() string { return "sessions" }

func (t *SessionsTool) Description() string {
	return "List workflow sessions: active by default, everything with all."
}

func (t *SessionsTool) Run(ctx context.Context, args json.RawMessage) *Result {
	var params SessionsParams
	if err := decode(ctx, args, &params); err != nil {
		return t.Env.fail(ctx, t.Name(), nil, err)
	}
	env := t.Env

	return env.run(ctx, pipeline{
		tool: t.Name(),
		build: func(ctx context.Context) (*flow, error) {
			return &flow{}, nil
		},
		exec: func(ctx context.Context, f *flow) error {
			sessions, err := env.Store.List(ctx, session.ListOptions{
				All:            params.All,
				IncludeExpired: params.IncludeExpired,
			})
			if err != nil {
				return err
			}
			summaries := make([]session.Summary, 0, len(sessions))
			for _, s := range sessions {
				summaries = append(summaries, s.Summarize())
			}
			f.put("sessions", summaries)
			f.put("count", len(summaries))
			return nil
		},
	})
}

// StatusTool reports the current session, branch, and repository state.
// Read-only.
type StatusTool struct {
	Env *Env
}

func (t *StatusTool) Name() string { return "status" }

func (t *StatusTool) Description() string {
	return "Show the current session, branch status, and pull request state."
}

func (t *StatusTool) Run(ctx context.Context, args json.RawMessage) *Result {
	env := t.Env

	return env.run(ctx, pipeline{
		tool: t.Name(),
		build: func(ctx context.Context) (*flow, error) {
			return env.currentFlow(ctx)
		},
		exec: func(ctx context.Context, f *flow) error {
			f.put("branch", f.branch)
			f.put("trunk", f.trunk)

			dirty, err := env.Git.HasUncommittedChanges()
			if err != nil {
				return err
			}
			f.put("dirty", dirty)
			if dirty {
				if stat, err := env.Git.DiffStatSummary(ctx); err == nil {
					f.put("diffStat", map[string]int{
						"filesChanged": stat.FilesChanged,
						"added":        stat.Added,
						"removed":      stat.Removed,
					})
				}
			}

			if status, err := env.Git.GetBranchStatus(ctx, f.branch); err == nil {
				f.put("ahead", status.Ahead)
				f.put("behind", status.Behind)
				f.put("hasRemote", status.HasRemote)
			}

			if f.session == nil {
				// The current pointer may know better than the branch map.
				if current, err := env.Store.Current(); err == nil && current.BranchName == f.branch {
					f.attachSession(current)
				} else if err != nil && !errors.Is(err, session.ErrNotFound) {
					return err
				}
			}
			if f.session != nil {
				f.put("workflowType", string(f.session.WorkflowType))
				f.put("stateHistory", len(f.session.StateHistory))
				if pr := f.session.Metadata.PR; pr != nil {
					f.put("prNumber", pr.Number)
					f.put("prMerged", pr.Merged)
				}
			} else {
				f.next = append(f.next, "no session on this branch; start one with: devsolo launch")
			}
			return nil
		},
	})
}
