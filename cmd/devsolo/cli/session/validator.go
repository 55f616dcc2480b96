package session

import (
	"context"
	"time"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/naming"
)

// BranchGit is the slice of git the branch validator needs.
type BranchGit interface {
	BranchExistsLocally(branch string) (bool, error)
	BranchExistsOnRemote(branch string) (bool, error)
}

// Availability classifies whether a branch name can start a new session.
type Availability string

const (
	BranchAvailable     Availability = "available"
	BranchTakenLocal    Availability = "taken-local"
	BranchTakenRemote   Availability = "taken-remote"
	BranchActiveSession Availability = "active-session-exists"
	BranchBurned        Availability = "burned"
)

// AvailabilityResult carries the classification plus alternatives when the
// name is burned.
type AvailabilityResult struct {
	Status      Availability
	SessionID   string   // set for active-session-exists and burned
	Suggestions []string // set for burned
}

// ReuseVerdict classifies pushing to a branch name that has a merge history.
type ReuseVerdict string

const (
	// ReuseMergedAndRecreated is fatal: the name was merged, its remote
	// branch deleted, and someone pushed the name again.
	ReuseMergedAndRecreated ReuseVerdict = "merged-and-recreated"
	// ReuseContinuedWork is allowed: a prior merge exists but the branch was
	// never deleted, so a new PR is expected.
	ReuseContinuedWork ReuseVerdict = "continued-work"
	// ReuseClean means no prior merge record for this name.
	ReuseClean ReuseVerdict = "clean"
)

// Validator answers branch reuse and availability questions against the
// session history.
type Validator struct {
	store *Store
	git   BranchGit
}

// NewValidator wires a validator over the store and git.
func NewValidator(store *Store, git BranchGit) *Validator {
	return &Validator{store: store, git: git}
}

// CheckBranchNameAvailability decides whether branch can host a new session.
// Burned names (merged PR, remote branch deleted) are permanently retired.
func (v *Validator) CheckBranchNameAvailability(ctx context.Context, branch string) (*AvailabilityResult, error) {
	all, err := v.store.List(ctx, ListOptions{All: true})
	if err != nil {
		return nil, err
	}
	for _, s := range all {
		if s.BranchName != branch {
			continue
		}
		if isBurned(s) {
			return &AvailabilityResult{
				Status:      BranchBurned,
				SessionID:   s.ID,
				Suggestions: naming.ReuseSuggestions(branch, time.Now()),
			}, nil
		}
		if s.IsActive() {
			return &AvailabilityResult{Status: BranchActiveSession, SessionID: s.ID}, nil
		}
	}

	if exists, err := v.git.BranchExistsLocally(branch); err != nil {
		return nil, err
	} else if exists {
		return &AvailabilityResult{Status: BranchTakenLocal}, nil
	}
	if exists, err := v.git.BranchExistsOnRemote(branch); err != nil {
		return nil, err
	} else if exists {
		return &AvailabilityResult{Status: BranchTakenRemote}, nil
	}
	return &AvailabilityResult{Status: BranchAvailable}, nil
}

// DetectBranchReuse classifies a push to a branch name with session history.
// Callers invoke this only when the remote branch currently exists.
func (v *Validator) DetectBranchReuse(ctx context.Context, current *Session, branch string) (ReuseVerdict, error) {
	all, err := v.store.List(ctx, ListOptions{All: true})
	if err != nil {
		return ReuseClean, err
	}
	verdict := ReuseClean
	for _, s := range all {
		if s.BranchName != branch {
			continue
		}
		if current != nil && s.ID == current.ID {
			continue
		}
		if s.Metadata.PR == nil || !s.Metadata.PR.Merged {
			continue
		}
		if s.Metadata.Branch != nil && s.Metadata.Branch.RemoteDeleted {
			return ReuseMergedAndRecreated, nil
		}
		verdict = ReuseContinuedWork
	}
	return verdict, nil
}

// TrackBranchDeletion records that the session's remote branch was deleted.
// From this point the name is burned if the PR was merged.
func (v *Validator) TrackBranchDeletion(ctx context.Context, id string) (*Session, error) {
	return v.store.Update(ctx, id, func(s *Session) error {
		now := time.Now().UTC()
		if s.Metadata.Branch == nil {
			s.Metadata.Branch = &BranchMetadata{}
		}
		s.Metadata.Branch.RemoteDeleted = true
		s.Metadata.Branch.DeletedAt = &now
		return nil
	})
}

func isBurned(s *Session) bool {
	return s.Metadata.PR != nil && s.Metadata.PR.Merged &&
		s.Metadata.Branch != nil && s.Metadata.Branch.RemoteDeleted
}
