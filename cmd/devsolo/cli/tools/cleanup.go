package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/logging"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/session"
)

// CleanupTool retires finished and expired sessions, removes orphaned locks,
// and optionally deletes leftover local branches. It is two-phase: without
// auto or confirm it only proposes.
type CleanupTool struct {
	Env *Env
}

// CleanupParams are the cleanup tool arguments.
type CleanupParams struct {
	DeleteBranches bool `json:"deleteBranches,omitempty"`
	OlderThan      int  `json:"olderThan,omitempty"` // days
	DryRun         bool `json:"dryRun,omitempty"`
	Confirm        bool `json:"confirm,omitempty"`
	Auto           bool `json:"auto,omitempty"`
}

// CleanupProposal is what a dry run reports.
type CleanupProposal struct {
	Sessions         []string `json:"sessions"`
	OrphanedBranches []string `json:"orphanedBranches,omitempty"`
}

func (t *CleanupTool) Name() string { return "cleanup" }

func (t *CleanupTool) Description() string {
	return "Remove finished and expired sessions, orphaned locks, and leftover branches."
}

func (t *CleanupTool) Run(ctx context.Context, args json.RawMessage) *Result {
	var params CleanupParams
	if err := decode(ctx, args, &params); err != nil {
		return t.Env.fail(ctx, t.Name(), nil, err)
	}
	env := t.Env

	return env.run(ctx, pipeline{
		tool: t.Name(),
		auto: params.Auto,
		build: func(ctx context.Context) (*flow, error) {
			return env.currentFlow(ctx)
		},
		exec: func(ctx context.Context, f *flow) error {
			return t.execute(ctx, f, params)
		},
	})
}

func (t *CleanupTool) execute(ctx context.Context, f *flow, params CleanupParams) error {
	env := t.Env

	cutoff := time.Time{}
	if params.OlderThan > 0 {
		cutoff = time.Now().AddDate(0, 0, -params.OlderThan)
	}

	all, err := env.Store.List(ctx, session.ListOptions{All: true})
	if err != nil {
		return err
	}

	var candidates []*session.Session
	for _, s := range all {
		if !s.CurrentState.IsTerminal() && !s.IsExpired() {
			continue
		}
		if !cutoff.IsZero() && s.UpdatedAt.After(cutoff) {
			continue
		}
		candidates = append(candidates, s)
	}

	var orphanedBranches []string
	if params.DeleteBranches {
		orphanedBranches, err = t.orphanedBranches(ctx, f, all)
		if err != nil {
			return err
		}
	}

	proposal := CleanupProposal{OrphanedBranches: orphanedBranches}
	for _, s := range candidates {
		proposal.Sessions = append(proposal.Sessions,
			fmt.Sprintf("%s (%s, %s)", s.BranchName, s.ID, s.CurrentState))
	}
	f.put("proposal", proposal)

	// Two-phase: propose only, unless confirmed or auto.
	if params.DryRun || (!params.Confirm && !params.Auto) {
		f.put("dryRun", true)
		if len(candidates) > 0 || len(orphanedBranches) > 0 {
			f.next = append(f.next, "re-run with confirm (or auto) to apply")
		}
		return nil
	}

	removedSessions := 0
	for _, s := range candidates {
		if err := env.Store.Delete(ctx, s.ID); err != nil {
			return err
		}
		_ = env.Store.ReleaseLock(s.ID)
		removedSessions++
	}

	deletedBranches := 0
	for _, branch := range orphanedBranches {
		if err := env.Git.DeleteLocalBranch(ctx, branch, true); err != nil {
			logging.Warn(ctx, "could not delete branch", "branch", branch, "error", err.Error())
			continue
		}
		deletedBranches++
	}

	orphanedLocks, err := env.Store.CleanupOrphanedLocks(ctx)
	if err != nil {
		logging.Warn(ctx, "orphaned lock cleanup failed", "error", err.Error())
	}

	f.put("removedSessions", removedSessions)
	f.put("deletedBranches", deletedBranches)
	f.put("removedLocks", orphanedLocks)
	return nil
}

// orphanedBranches lists local branches with no session and no special role.
func (t *CleanupTool) orphanedBranches(ctx context.Context, f *flow, all []*session.Session) ([]string, error) {
	known := map[string]bool{f.trunk: true}
	for _, s := range all {
		known[s.BranchName] = true
	}

	current, err := t.Env.Git.CurrentBranch()
	if err != nil {
		return nil, err
	}
	known[current] = true

	branches, err := t.Env.Git.LocalBranches(ctx)
	if err != nil {
		return nil, err
	}
	var orphaned []string
	for _, b := range branches {
		if !known[b] {
			orphaned = append(orphaned, b)
		}
	}
	return orphaned, nil
}
