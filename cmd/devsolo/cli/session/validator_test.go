package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBranchGit struct {
	local  map[string]bool
	remote map[string]bool
}

func (f *fakeBranchGit) BranchExistsLocally(branch string) (bool, error) {
	return f.local[branch], nil
}

func (f *fakeBranchGit) BranchExistsOnRemote(branch string) (bool, error) {
	return f.remote[branch], nil
}

func mergedSession(t *testing.T, ctx context.Context, st *Store, branch string, remoteDeleted bool) *Session {
	t.Helper()
	s := New(branch, WorkflowShip)
	now := time.Now().UTC()
	s.Metadata.PR = &PRMetadata{Number: 1, Merged: true, MergedAt: &now}
	if remoteDeleted {
		s.Metadata.Branch = &BranchMetadata{RemoteDeleted: true, DeletedAt: &now}
	}
	require.NoError(t, s.TransitionTo(StateChangesCommitted, "ship"))
	require.NoError(t, s.TransitionTo(StatePushed, "ship"))
	require.NoError(t, s.TransitionTo(StatePRCreated, "ship"))
	require.NoError(t, s.TransitionTo(StateWaitingApproval, "ship"))
	require.NoError(t, s.TransitionTo(StateMerging, "ship"))
	require.NoError(t, s.TransitionTo(StateCleanup, "ship"))
	require.NoError(t, s.TransitionTo(StateComplete, "ship"))
	require.NoError(t, st.Save(ctx, s))
	return s
}

func TestCheckBranchNameAvailability(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("available", func(t *testing.T) {
		t.Parallel()
		v := NewValidator(newTestStore(t), &fakeBranchGit{})
		res, err := v.CheckBranchNameAvailability(ctx, "feature/fresh")
		require.NoError(t, err)
		assert.Equal(t, BranchAvailable, res.Status)
	})

	t.Run("taken_local", func(t *testing.T) {
		t.Parallel()
		git := &fakeBranchGit{local: map[string]bool{"feature/x": true}}
		v := NewValidator(newTestStore(t), git)
		res, err := v.CheckBranchNameAvailability(ctx, "feature/x")
		require.NoError(t, err)
		assert.Equal(t, BranchTakenLocal, res.Status)
	})

	t.Run("taken_remote", func(t *testing.T) {
		t.Parallel()
		git := &fakeBranchGit{remote: map[string]bool{"feature/x": true}}
		v := NewValidator(newTestStore(t), git)
		res, err := v.CheckBranchNameAvailability(ctx, "feature/x")
		require.NoError(t, err)
		assert.Equal(t, BranchTakenRemote, res.Status)
	})

	t.Run("active_session", func(t *testing.T) {
		t.Parallel()
		st := newTestStore(t)
		s := New("feature/x", WorkflowLaunch)
		require.NoError(t, st.Save(ctx, s))

		v := NewValidator(st, &fakeBranchGit{})
		res, err := v.CheckBranchNameAvailability(ctx, "feature/x")
		require.NoError(t, err)
		assert.Equal(t, BranchActiveSession, res.Status)
		assert.Equal(t, s.ID, res.SessionID)
	})

	t.Run("burned", func(t *testing.T) {
		t.Parallel()
		st := newTestStore(t)
		mergedSession(t, ctx, st, "feature/done", true)

		v := NewValidator(st, &fakeBranchGit{})
		res, err := v.CheckBranchNameAvailability(ctx, "feature/done")
		require.NoError(t, err)
		assert.Equal(t, BranchBurned, res.Status)
		require.Len(t, res.Suggestions, 3)
		assert.Equal(t, "feature/done-v2", res.Suggestions[0])
		assert.Contains(t, res.Suggestions[1], "feature/done-20")
		assert.Equal(t, "feature/done-continued", res.Suggestions[2])
	})
}

func TestDetectBranchReuse(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("clean", func(t *testing.T) {
		t.Parallel()
		v := NewValidator(newTestStore(t), &fakeBranchGit{})
		verdict, err := v.DetectBranchReuse(ctx, nil, "feature/x")
		require.NoError(t, err)
		assert.Equal(t, ReuseClean, verdict)
	})

	t.Run("merged_and_recreated", func(t *testing.T) {
		t.Parallel()
		st := newTestStore(t)
		mergedSession(t, ctx, st, "feature/x", true)

		v := NewValidator(st, &fakeBranchGit{})
		verdict, err := v.DetectBranchReuse(ctx, nil, "feature/x")
		require.NoError(t, err)
		assert.Equal(t, ReuseMergedAndRecreated, verdict)
	})

	t.Run("continued_work", func(t *testing.T) {
		t.Parallel()
		st := newTestStore(t)
		mergedSession(t, ctx, st, "feature/x", false)

		v := NewValidator(st, &fakeBranchGit{})
		verdict, err := v.DetectBranchReuse(ctx, nil, "feature/x")
		require.NoError(t, err)
		assert.Equal(t, ReuseContinuedWork, verdict)
	})

	t.Run("current_session_excluded", func(t *testing.T) {
		t.Parallel()
		st := newTestStore(t)
		s := mergedSession(t, ctx, st, "feature/x", true)

		v := NewValidator(st, &fakeBranchGit{})
		verdict, err := v.DetectBranchReuse(ctx, s, "feature/x")
		require.NoError(t, err)
		assert.Equal(t, ReuseClean, verdict)
	})
}

func TestTrackBranchDeletion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	s := New("feature/x", WorkflowShip)
	require.NoError(t, st.Save(ctx, s))

	v := NewValidator(st, &fakeBranchGit{})
	updated, err := v.TrackBranchDeletion(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.Metadata.Branch)
	assert.True(t, updated.Metadata.Branch.RemoteDeleted)
	assert.NotNil(t, updated.Metadata.Branch.DeletedAt)
}
