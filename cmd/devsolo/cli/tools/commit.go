package tools

import (
	"context"
	"encoding/json"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/checks"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/gitx"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/session"
)

// CommitTool commits the working tree inside the current session and
// advances the session state.
type CommitTool struct {
	Env *Env
}

// CommitParams are the commit tool arguments.
type CommitParams struct {
	Message    string `json:"message,omitempty"`
	StagedOnly bool   `json:"stagedOnly,omitempty"`
	NoVerify   bool   `json:"noVerify,omitempty"`
	Force      bool   `json:"force,omitempty"`
	Auto       bool   `json:"auto,omitempty"`
}

func (t *CommitTool) Name() string { return "commit" }

func (t *CommitTool) Description() string {
	return "Commit changes on the session branch and advance the workflow state."
}

func (t *CommitTool) Run(ctx context.Context, args json.RawMessage) *Result {
	var params CommitParams
	if err := decode(ctx, args, &params); err != nil {
		return t.Env.fail(ctx, t.Name(), nil, err)
	}
	env := t.Env

	return env.run(ctx, pipeline{
		tool:  t.Name(),
		force: params.Force,
		auto:  params.Auto,
		collect: func() []MissingParam {
			// No silent default message: the caller must provide one.
			if params.Message == "" {
				return []MissingParam{{
					Name:        "message",
					Description: "the commit message to use",
				}}
			}
			return nil
		},
		build: func(ctx context.Context) (*flow, error) {
			f, err := env.currentFlow(ctx)
			if err != nil {
				return nil, err
			}
			f.checks.StagedOnly = params.StagedOnly
			return f, nil
		},
		pre: func(f *flow) []string {
			ids := []string{checks.SessionExists, checks.SessionIsActive}
			if params.StagedOnly {
				ids = append(ids, checks.HasStagedFiles)
			} else {
				ids = append(ids, checks.HasChangesToCommit)
			}
			return ids
		},
		exec: func(ctx context.Context, f *flow) error {
			if err := env.Git.Commit(ctx, params.Message, gitx.CommitOptions{
				StagedOnly: params.StagedOnly,
				NoVerify:   params.NoVerify,
			}); err != nil {
				return err
			}

			if next, ok := commitTarget(f.session); ok {
				if err := env.transition(ctx, f, next, "commit"); err != nil {
					return err
				}
			}

			f.put("message", params.Message)
			f.next = append(f.next, "ship it when ready: devsolo ship")
			return nil
		},
	})
}

// commitTarget maps the session's position to the post-commit state. A
// session already at or past the committed state stays put; committing more
// work there is normal.
func commitTarget(s *session.Session) (session.State, bool) {
	switch s.CurrentState {
	case session.StateBranchReady, session.StateInit:
		return session.StateChangesCommitted, true
	case session.StateHotfixReady, session.StateHotfixInit:
		return session.StateHotfixCommitted, true
	}
	return "", false
}
