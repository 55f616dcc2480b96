package tools

import (
	"context"
	"encoding/json"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/audit"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/config"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/errkind"
)

// InitTool initializes the workspace: configuration, marker file, and the
// selected component installers.
type InitTool struct {
	Env *Env
}

// InitParams are the init tool arguments.
type InitParams struct {
	Scope       string `json:"scope,omitempty"` // project | user
	Hooks       *bool  `json:"hooks,omitempty"`
	StatusLine  *bool  `json:"statusLine,omitempty"`
	Templates   *bool  `json:"templates,omitempty"`
	GitPlatform string `json:"gitPlatform,omitempty"`
	Force       bool   `json:"force,omitempty"`
	Auto        bool   `json:"auto,omitempty"`
}

func (t *InitTool) Name() string { return "init" }

func (t *InitTool) Description() string {
	return "Initialize devsolo in this repository: configuration, session storage, and git hooks."
}

func (t *InitTool) Run(ctx context.Context, args json.RawMessage) *Result {
	var params InitParams
	if err := decode(ctx, args, &params); err != nil {
		return t.Env.fail(ctx, t.Name(), nil, err)
	}

	return t.Env.run(ctx, pipeline{
		tool:     t.Name(),
		skipInit: true,
		force:    params.Force,
		auto:     params.Auto,
		build: func(ctx context.Context) (*flow, error) {
			return t.Env.currentFlow(ctx)
		},
		exec: func(ctx context.Context, f *flow) error {
			if t.Env.Initialized && !params.Force {
				f.put("alreadyInitialized", true)
				f.next = append(f.next, "devsolo is already initialized; use force to re-run")
				return nil
			}

			cfg := config.Default()
			cfg.Initialized = true
			if params.Scope == string(config.ScopeUser) {
				cfg.Scope = config.ScopeUser
			}
			if params.GitPlatform != "" {
				cfg.GitPlatform.Type = params.GitPlatform
			}
			if params.Hooks != nil {
				cfg.Components.Hooks = *params.Hooks
			}
			if params.StatusLine != nil {
				cfg.Components.StatusLine = *params.StatusLine
			}
			if params.Templates != nil {
				cfg.Components.Templates = *params.Templates
			}

			if err := config.Save(cfg); err != nil {
				return errkind.Wrap(errkind.Internal, err, "saving configuration")
			}
			if err := config.WriteMarker(); err != nil {
				return errkind.Wrap(errkind.Internal, err, "writing initialization marker")
			}

			if cfg.Components.Hooks {
				installed, skipped, err := config.MaterializeHooks()
				if err != nil {
					return errkind.Wrap(errkind.Internal, err, "installing git hooks")
				}
				f.put("hooksInstalled", installed)
				if len(skipped) > 0 {
					f.put("hooksSkipped", skipped)
					f.next = append(f.next, "some hooks were skipped because your own hook scripts exist")
				}
			}

			t.Env.Config = cfg
			t.Env.Initialized = true

			t.Env.audit(ctx, audit.Entry{
				Action:  "init",
				Result:  audit.ResultSuccess,
				Details: audit.Details{Command: "devsolo init"},
			})

			f.put("scope", string(cfg.Scope))
			f.next = append(f.next, "start a feature with: devsolo launch")
			return nil
		},
	})
}
