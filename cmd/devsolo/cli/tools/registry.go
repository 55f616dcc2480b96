package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/audit"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/config"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/errkind"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/github"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/gitx"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/logging"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/session"
)

// ToolPrefix namespaces the dotted tool names on the transport.
const ToolPrefix = "workflow."

// NewEnv wires the full dependency bundle from the repository the process
// runs in. The platform client is optional: without a usable remote or
// token, platform-dependent steps degrade.
func NewEnv(ctx context.Context) (*Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	repo, err := gitx.Open(".")
	if err != nil {
		return nil, err
	}

	store, err := session.Open()
	if err != nil {
		return nil, err
	}

	auditLog, err := audit.Open(cfg.Preferences.Author, cfg.AuditMaxBytes(), cfg.AuditMaxFiles())
	if err != nil {
		return nil, err
	}

	env := &Env{
		Config:      cfg,
		Git:         repo,
		Store:       store,
		Validator:   session.NewValidator(store, repo),
		Audit:       auditLog,
		Initialized: config.IsInitialized(),
	}

	if remote, err := repo.RemoteURL(); err == nil {
		if client, err := github.NewClient(remote, cfg.Token()); err == nil {
			env.Platform = client
		} else {
			logging.Debug(ctx, "platform client unavailable", "error", err.Error())
		}
	}

	// Stale locks from crashed runs are recovered on startup.
	if _, err := store.CleanupOrphanedLocks(ctx); err != nil {
		logging.Warn(ctx, "orphaned lock cleanup failed", "error", err.Error())
	}

	return env, nil
}

// Tools returns every registered tool, in presentation order.
func (e *Env) Tools() []Tool {
	return []Tool{
		&InitTool{Env: e},
		&LaunchTool{Env: e},
		&CommitTool{Env: e},
		&ShipTool{Env: e},
		&SwapTool{Env: e},
		&AbortTool{Env: e},
		&HotfixTool{Env: e},
		&CleanupTool{Env: e},
		&SessionsTool{Env: e},
		&StatusTool{Env: e},
	}
}

// Lookup resolves a tool by bare or dotted name.
func (e *Env) Lookup(name string) (Tool, bool) {
	name = strings.TrimPrefix(name, ToolPrefix)
	for _, t := range e.Tools() {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// Dispatch runs the named tool. Unknown tools produce a kinded error
// result, never a transport failure.
func (e *Env) Dispatch(ctx context.Context, name string, args json.RawMessage) *Result {
	e.mu.RLock()
	defer e.mu.RUnlock()

	tool, ok := e.Lookup(name)
	if !ok {
		err := errkind.New(errkind.UnknownTool, "unknown tool %q", name)
		return &Result{
			Success:   false,
			Errors:    []string{err.Error()},
			ErrorKind: string(errkind.UnknownTool),
		}
	}
	return tool.Run(ctx, args)
}
