package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/errkind"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		workflow WorkflowType
		from     State
		to       State
		want     bool
	}{
		{"launch_init_to_ready", WorkflowLaunch, StateInit, StateBranchReady, true},
		{"launch_skip_forbidden", WorkflowLaunch, StateInit, StatePushed, false},
		{"launch_approval_to_complete", WorkflowLaunch, StateWaitingApproval, StateComplete, true},
		{"ship_init_to_committed", WorkflowShip, StateInit, StateChangesCommitted, true},
		{"ship_init_to_pushed_when_committed", WorkflowShip, StateInit, StatePushed, true},
		{"ship_approval_to_rebasing", WorkflowShip, StateWaitingApproval, StateRebasing, true},
		{"ship_approval_to_merging", WorkflowShip, StateWaitingApproval, StateMerging, true},
		{"ship_cleanup_to_complete", WorkflowShip, StateCleanup, StateComplete, true},
		{"hotfix_chain", WorkflowHotfix, StateHotfixValidated, StateHotfixDeployed, true},
		{"hotfix_no_launch_states", WorkflowHotfix, StateInit, StateBranchReady, false},
		{"abort_from_anywhere", WorkflowShip, StateRebasing, StateAborted, true},
		{"terminal_is_absorbing", WorkflowLaunch, StateComplete, StateAborted, false},
		{"aborted_is_absorbing", WorkflowShip, StateAborted, StateInit, false},
		{"backwards_forbidden", WorkflowShip, StateMerging, StatePushed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CanTransition(tt.workflow, tt.from, tt.to))
		})
	}
}

func TestTransitionTo_AppendsHistory(t *testing.T) {
	t.Parallel()

	s := New("feature/add-auth", WorkflowLaunch)
	require.Equal(t, StateInit, s.CurrentState)

	require.NoError(t, s.TransitionTo(StateBranchReady, "launch"))
	require.NoError(t, s.TransitionTo(StateChangesCommitted, "commit"))

	assert.Equal(t, StateChangesCommitted, s.CurrentState)
	require.Len(t, s.StateHistory, 2)
	assert.Equal(t, StateInit, s.StateHistory[0].From)
	assert.Equal(t, StateBranchReady, s.StateHistory[0].To)
	assert.Equal(t, "launch", s.StateHistory[0].Trigger)
	assert.Equal(t, StateBranchReady, s.StateHistory[1].From)
	assert.False(t, s.StateHistory[1].Timestamp.Before(s.StateHistory[0].Timestamp))
}

func TestTransitionTo_RejectsIllegalMove(t *testing.T) {
	t.Parallel()

	s := New("feature/x", WorkflowLaunch)
	err := s.TransitionTo(StatePushed, "ship")
	require.Error(t, err)
	assert.Equal(t, errkind.InvalidStateTransition, errkind.KindOf(err))
	assert.Equal(t, StateInit, s.CurrentState)
	assert.Empty(t, s.StateHistory)
}

func TestAbort(t *testing.T) {
	t.Parallel()

	s := New("feature/x", WorkflowShip)
	require.NoError(t, s.TransitionTo(StateChangesCommitted, "commit"))
	require.NoError(t, s.Abort("abort"))
	assert.Equal(t, StateAborted, s.CurrentState)

	// A second ship on a completed session must fail, not repeat work.
	err := s.TransitionTo(StatePushed, "ship")
	require.Error(t, err)
	assert.Equal(t, errkind.InvalidStateTransition, errkind.KindOf(err))
}

func TestHotfixInitialState(t *testing.T) {
	t.Parallel()

	s := New("hotfix/urgent-fix", WorkflowHotfix)
	assert.Equal(t, StateHotfixInit, s.CurrentState)
	require.NoError(t, s.TransitionTo(StateHotfixReady, "hotfix"))
}
