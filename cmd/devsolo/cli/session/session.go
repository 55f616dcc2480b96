// Package session holds the workflow session model, its state machine, and
// the on-disk store. A session is one end-to-end unit of work on one branch,
// from launch to merge or abort.
package session

import (
	"time"

	"github.com/google/uuid"
)

// ExpiryWindow is how long a session may sit untouched before it is
// considered expired and eligible for cleanup.
const ExpiryWindow = 30 * 24 * time.Hour

// WorkflowType selects which transition table governs a session.
type WorkflowType string

const (
	WorkflowLaunch WorkflowType = "launch"
	WorkflowShip   WorkflowType = "ship"
	WorkflowHotfix WorkflowType = "hotfix"
)

// State is a named position in a workflow.
type State string

const (
	StateInit             State = "INIT"
	StateBranchReady      State = "BRANCH_READY"
	StateChangesCommitted State = "CHANGES_COMMITTED"
	StatePushed           State = "PUSHED"
	StatePRCreated        State = "PR_CREATED"
	StateWaitingApproval  State = "WAITING_APPROVAL"
	StateRebasing         State = "REBASING"
	StateMerging          State = "MERGING"
	StateCleanup          State = "CLEANUP"
	StateComplete         State = "COMPLETE"
	StateAborted          State = "ABORTED"

	StateHotfixInit      State = "HOTFIX_INIT"
	StateHotfixReady     State = "HOTFIX_READY"
	StateHotfixCommitted State = "HOTFIX_COMMITTED"
	StateHotfixPushed    State = "HOTFIX_PUSHED"
	StateHotfixValidated State = "HOTFIX_VALIDATED"
	StateHotfixDeployed  State = "HOTFIX_DEPLOYED"
	StateHotfixCleanup   State = "HOTFIX_CLEANUP"
	StateHotfixComplete  State = "HOTFIX_COMPLETE"
)

// IsTerminal reports whether a state is absorbing.
func (s State) IsTerminal() bool {
	switch s {
	case StateComplete, StateAborted, StateHotfixComplete:
		return true
	}
	return false
}

// Transition is one recorded state change.
type Transition struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Trigger   string    `json:"trigger"`
	Timestamp time.Time `json:"timestamp"`
}

// PRMetadata records the pull request attached to a session.
type PRMetadata struct {
	Number   int        `json:"number"`
	URL      string     `json:"url,omitempty"`
	Merged   bool       `json:"merged"`
	MergedAt *time.Time `json:"mergedAt,omitempty"`
}

// BranchMetadata records branch lifecycle facts beyond git itself.
type BranchMetadata struct {
	RemoteDeleted bool       `json:"remoteDeleted"`
	DeletedAt     *time.Time `json:"deletedAt,omitempty"`
	Recreated     bool       `json:"recreated,omitempty"`
}

// StashMetadata records an auto-stash attached to a session.
type StashMetadata struct {
	Ref       string    `json:"ref"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}

// Metadata is the optional side data a session accumulates.
type Metadata struct {
	PR          *PRMetadata     `json:"pr,omitempty"`
	Branch      *BranchMetadata `json:"branch,omitempty"`
	Stash       *StashMetadata  `json:"stash,omitempty"`
	Description string          `json:"description,omitempty"`
	Author      string          `json:"author,omitempty"`
}

// Session is one persisted workflow session.
type Session struct {
	ID           string       `json:"id"`
	BranchName   string       `json:"branchName"`
	WorkflowType WorkflowType `json:"workflowType"`
	CurrentState State        `json:"currentState"`
	StateHistory []Transition `json:"stateHistory"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	ExpiresAt    time.Time    `json:"expiresAt"`
	Metadata     Metadata     `json:"metadata"`
}

// New creates a session in the workflow's initial state.
func New(branch string, workflow WorkflowType) *Session {
	now := time.Now().UTC()
	initial := StateInit
	if workflow == WorkflowHotfix {
		initial = StateHotfixInit
	}
	return &Session{
		ID:           uuid.NewString(),
		BranchName:   branch,
		WorkflowType: workflow,
		CurrentState: initial,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(ExpiryWindow),
	}
}

// IsActive reports whether the session is still in flight: not terminal and
// not expired.
func (s *Session) IsActive() bool {
	return !s.CurrentState.IsTerminal() && !s.IsExpired()
}

// IsExpired reports whether the session has sat untouched past its expiry.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// touch bumps updatedAt and slides the expiry window.
func (s *Session) touch(now time.Time) {
	s.UpdatedAt = now
	s.ExpiresAt = now.Add(ExpiryWindow)
}

// Summary is the per-session slice kept in the index.
type Summary struct {
	ID           string       `json:"id"`
	BranchName   string       `json:"branchName"`
	WorkflowType WorkflowType `json:"workflowType"`
	CurrentState State        `json:"currentState"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Summarize extracts the index summary for a session.
func (s *Session) Summarize() Summary {
	return Summary{
		ID:           s.ID,
		BranchName:   s.BranchName,
		WorkflowType: s.WorkflowType,
		CurrentState: s.CurrentState,
		UpdatedAt:    s.UpdatedAt,
	}
}
