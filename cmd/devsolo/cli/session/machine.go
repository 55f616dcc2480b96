package session

import (
	"time"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/errkind"
)

// transitionTables declares, per workflow, every legal state move.
// Terminal states have no outgoing edges; ABORTED is reachable from any
// non-terminal state and is handled separately in CanTransition.
var transitionTables = map[WorkflowType]map[State][]State{
	WorkflowLaunch: {
		StateInit:             {StateBranchReady},
		StateBranchReady:      {StateChangesCommitted},
		StateChangesCommitted: {StatePushed},
		StatePushed:           {StatePRCreated},
		StatePRCreated:        {StateWaitingApproval},
		StateWaitingApproval:  {StateComplete},
	},
	WorkflowShip: {
		StateInit:             {StateChangesCommitted, StatePushed},
		StateChangesCommitted: {StatePushed},
		StatePushed:           {StatePRCreated},
		StatePRCreated:        {StateWaitingApproval},
		StateWaitingApproval:  {StateRebasing, StateMerging},
		StateRebasing:         {StateMerging},
		StateMerging:          {StateCleanup},
		StateCleanup:          {StateComplete},
	},
	WorkflowHotfix: {
		StateHotfixInit:      {StateHotfixReady},
		StateHotfixReady:     {StateHotfixCommitted},
		StateHotfixCommitted: {StateHotfixPushed},
		StateHotfixPushed:    {StateHotfixValidated},
		StateHotfixValidated: {StateHotfixDeployed},
		StateHotfixDeployed:  {StateHotfixCleanup},
		StateHotfixCleanup:   {StateHotfixComplete},
	},
}

// CanTransition reports whether the workflow's table permits from -> to.
func CanTransition(workflow WorkflowType, from, to State) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StateAborted {
		return true
	}
	for _, next := range transitionTables[workflow][from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStates lists the legal successors of a state, excluding ABORTED.
func NextStates(workflow WorkflowType, from State) []State {
	if from.IsTerminal() {
		return nil
	}
	return transitionTables[workflow][from]
}

// TransitionTo validates and applies a state change, appending history and
// sliding the expiry window. The trigger names the tool that caused the move.
func (s *Session) TransitionTo(to State, trigger string) error {
	if !CanTransition(s.WorkflowType, s.CurrentState, to) {
		return errkind.New(errkind.InvalidStateTransition,
			"%s workflow cannot move from %s to %s", s.WorkflowType, s.CurrentState, to)
	}
	now := time.Now().UTC()
	s.StateHistory = append(s.StateHistory, Transition{
		From:      s.CurrentState,
		To:        to,
		Trigger:   trigger,
		Timestamp: now,
	})
	s.CurrentState = to
	s.touch(now)
	return nil
}

// Abort moves any non-terminal session to ABORTED.
func (s *Session) Abort(trigger string) error {
	return s.TransitionTo(StateAborted, trigger)
}
