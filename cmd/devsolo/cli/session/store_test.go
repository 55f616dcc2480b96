package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/errkind"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	base := t.TempDir()
	st, err := OpenAt(filepath.Join(base, "sessions"), filepath.Join(base, "locks"))
	require.NoError(t, err)
	return st
}

func TestStore_SaveAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)

	s := New("feature/add-auth", WorkflowLaunch)
	s.Metadata.Description = "add user auth"
	require.NoError(t, st.Save(ctx, s))

	got, err := st.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, "feature/add-auth", got.BranchName)
	assert.Equal(t, WorkflowLaunch, got.WorkflowType)
	assert.Equal(t, "add user auth", got.Metadata.Description)
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	_, err := st.Get("0b100f5c-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetByBranch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)

	s := New("feature/add-auth", WorkflowLaunch)
	require.NoError(t, st.Save(ctx, s))

	got, err := st.GetByBranch(ctx, "feature/add-auth")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	_, err = st.GetByBranch(ctx, "feature/unknown")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_IndexPrefersActiveSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)

	done := New("feature/x", WorkflowLaunch)
	require.NoError(t, done.Abort("abort"))
	require.NoError(t, st.Save(ctx, done))

	active := New("feature/x", WorkflowLaunch)
	require.NoError(t, st.Save(ctx, active))

	got, err := st.GetByBranch(ctx, "feature/x")
	require.NoError(t, err)
	assert.Equal(t, active.ID, got.ID)
}

func TestStore_ListFiltersTerminalAndExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)

	active := New("feature/a", WorkflowLaunch)
	require.NoError(t, st.Save(ctx, active))

	aborted := New("feature/b", WorkflowLaunch)
	require.NoError(t, aborted.Abort("abort"))
	require.NoError(t, st.Save(ctx, aborted))

	expired := New("feature/c", WorkflowLaunch)
	expired.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, st.Save(ctx, expired))

	activeOnly, err := st.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, activeOnly, 1)
	assert.Equal(t, active.ID, activeOnly[0].ID)

	withExpired, err := st.List(ctx, ListOptions{IncludeExpired: true})
	require.NoError(t, err)
	assert.Len(t, withExpired, 2)

	all, err := st.List(ctx, ListOptions{All: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStore_ListSkipsCorruptedRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)

	good := New("feature/a", WorkflowLaunch)
	require.NoError(t, st.Save(ctx, good))

	bad := filepath.Join(st.sessionsDir, "deadbeef.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))

	sessions, err := st.List(ctx, ListOptions{All: true})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, good.ID, sessions[0].ID)

	// The corrupted record is skipped, never deleted.
	_, statErr := os.Stat(bad)
	assert.NoError(t, statErr)
}

func TestStore_UpdateBumpsTimestamps(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)

	s := New("feature/a", WorkflowLaunch)
	require.NoError(t, st.Save(ctx, s))
	before := s.UpdatedAt

	time.Sleep(10 * time.Millisecond)
	updated, err := st.Update(ctx, s.ID, func(s *Session) error {
		return s.TransitionTo(StateBranchReady, "launch")
	})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(before))
	assert.True(t, updated.ExpiresAt.After(updated.UpdatedAt))

	got, err := st.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, StateBranchReady, got.CurrentState)
}

func TestStore_CleanupExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)

	fresh := New("feature/a", WorkflowLaunch)
	require.NoError(t, st.Save(ctx, fresh))

	stale := New("feature/b", WorkflowLaunch)
	stale.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, st.Save(ctx, stale))

	removed, err := st.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = st.Get(stale.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = st.Get(fresh.ID)
	require.NoError(t, err)
}

func TestStore_CurrentSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)

	_, err := st.Current()
	require.ErrorIs(t, err, ErrNotFound)

	s := New("feature/a", WorkflowLaunch)
	require.NoError(t, st.Save(ctx, s))
	require.NoError(t, st.SetCurrent(s.ID))

	got, err := st.Current()
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	require.NoError(t, st.ClearCurrent())
	_, err = st.Current()
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Locks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	id := New("feature/a", WorkflowLaunch).ID

	require.NoError(t, st.AcquireLock(ctx, id))
	// Re-acquiring our own lock is fine.
	require.NoError(t, st.AcquireLock(ctx, id))
	require.NoError(t, st.ReleaseLock(id))
	// Releasing a released lock is fine.
	require.NoError(t, st.ReleaseLock(id))
}

func TestStore_LockHeldByLiveProcess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	id := New("feature/a", WorkflowLaunch).ID

	// PID 1 is always alive and never ours.
	require.NoError(t, writeJSONAtomic(st.lockPath(id), &lockFile{PID: 1, AcquiredAt: time.Now()}))

	err := st.AcquireLock(ctx, id)
	require.Error(t, err)
	assert.Equal(t, errkind.LockHeld, errkind.KindOf(err))
}

func TestStore_UpdateRespectsForeignLock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	s := New("feature/a", WorkflowLaunch)
	require.NoError(t, st.Save(ctx, s))

	// PID 1 is always alive and never ours.
	require.NoError(t, writeJSONAtomic(st.lockPath(s.ID), &lockFile{PID: 1, AcquiredAt: time.Now()}))

	_, err := st.Update(ctx, s.ID, func(*Session) error { return nil })
	require.Error(t, err)
	assert.Equal(t, errkind.LockHeld, errkind.KindOf(err))

	// The write goes through once the owner lets go.
	require.NoError(t, os.Remove(st.lockPath(s.ID)))
	updated, err := st.Update(ctx, s.ID, func(s *Session) error {
		s.Metadata.Description = "after lock release"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "after lock release", updated.Metadata.Description)

	// Update drops its own lock on the way out.
	_, err = os.Stat(st.lockPath(s.ID))
	assert.True(t, os.IsNotExist(err))
}

func TestStore_LockStealsOrphan(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	id := New("feature/a", WorkflowLaunch).ID

	// A pid far beyond pid_max is never alive.
	require.NoError(t, writeJSONAtomic(st.lockPath(id), &lockFile{PID: 1 << 30, AcquiredAt: time.Now()}))
	require.NoError(t, st.AcquireLock(ctx, id))

	lock, err := readLockFile(st.lockPath(id))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), lock.PID)
}

func TestStore_CleanupOrphanedLocks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)

	old := &lockFile{PID: 1 << 30, AcquiredAt: time.Now().Add(-2 * time.Hour)}
	require.NoError(t, writeJSONAtomic(filepath.Join(st.locksDir, "stale.lock"), old))

	recent := &lockFile{PID: 1 << 30, AcquiredAt: time.Now()}
	require.NoError(t, writeJSONAtomic(filepath.Join(st.locksDir, "recent.lock"), recent))

	held := &lockFile{PID: os.Getpid(), AcquiredAt: time.Now().Add(-2 * time.Hour)}
	require.NoError(t, writeJSONAtomic(filepath.Join(st.locksDir, "held.lock"), held))

	removed, err := st.CleanupOrphanedLocks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(filepath.Join(st.locksDir, "stale.lock"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(st.locksDir, "recent.lock"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(st.locksDir, "held.lock"))
	assert.NoError(t, err)
}
