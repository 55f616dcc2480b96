package session

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/logging"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/validation"
)

// lockFile is the on-disk shape of a per-session lock.
type lockFile struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

func (st *Store) lockPath(id string) string {
	return filepath.Join(st.locksDir, id+".lock")
}

// AcquireLock takes the per-session write lock for this process. A lock held
// by a process that no longer exists is stolen; a lock held by a live process
// fails with kind lock-held.
func (st *Store) AcquireLock(ctx context.Context, id string) error {
	if err := validation.ValidateSessionID(id); err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	path := st.lockPath(id)
	existing, err := readLockFile(path)
	if err == nil {
		if existing.PID != os.Getpid() && processAlive(existing.PID) {
			return lockError(id, existing.PID)
		}
		if existing.PID != os.Getpid() {
			logging.Warn(ctx, "stealing orphaned session lock",
				"session_id", id, "orphan_pid", existing.PID)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		// Unreadable lock files belong to no live protocol participant.
		logging.Warn(ctx, "replacing unreadable session lock",
			"session_id", id, "error", err.Error())
	}

	return writeJSONAtomic(path, &lockFile{PID: os.Getpid(), AcquiredAt: time.Now().UTC()})
}

// ReleaseLock drops the per-session lock. Best effort: a missing lock is
// fine.
func (st *Store) ReleaseLock(id string) error {
	if err := validation.ValidateSessionID(id); err != nil {
		return err
	}
	err := os.Remove(st.lockPath(id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// CleanupOrphanedLocks removes locks older than an hour whose owning process
// is gone. Returns how many were removed.
func (st *Store) CleanupOrphanedLocks(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(st.locksDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	cutoff := time.Now().Add(-orphanLockAge)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".lock") {
			continue
		}
		path := filepath.Join(st.locksDir, entry.Name())
		lock, err := readLockFile(path)
		if err != nil {
			// Unreadable locks age out through file mtime.
			info, statErr := entry.Info()
			if statErr != nil || info.ModTime().After(cutoff) {
				continue
			}
		} else {
			if lock.AcquiredAt.After(cutoff) || processAlive(lock.PID) {
				continue
			}
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, err
		}
		logging.Info(ctx, "removed orphaned session lock", "lock", entry.Name())
		removed++
	}
	return removed, nil
}

func readLockFile(path string) (*lockFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lock lockFile
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, err
	}
	return &lock, nil
}

// processAlive probes a pid with signal 0. EPERM means the process exists
// but belongs to someone else, which still counts as alive.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
