package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/errkind"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/logging"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/paths"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/validation"
)

// orphanLockAge is how old a lock must be before cleanup considers it
// abandoned, in addition to its owner being unreachable.
const orphanLockAge = time.Hour

// ErrNotFound is returned when no session matches a lookup.
var ErrNotFound = errors.New("session not found")

// Index maps branches to sessions and carries per-session summaries.
// It is rewritten atomically after every session write.
type Index struct {
	Sessions  []Summary         `json:"sessions"`
	BranchMap map[string]string `json:"branchMap"`
}

// Store persists sessions under the workspace directory. Writes are
// single-writer per session via lock files; every write is temp+rename so
// readers observe either the old record or the new one, never a torn one.
type Store struct {
	sessionsDir string
	locksDir    string
	currentPath string

	mu sync.Mutex
}

// Open resolves the store location from the workspace layout.
func Open() (*Store, error) {
	sessionsDir, err := paths.SessionsDir()
	if err != nil {
		return nil, err
	}
	locksDir, err := paths.LocksDir()
	if err != nil {
		return nil, err
	}
	return OpenAt(sessionsDir, locksDir)
}

// OpenAt opens a store rooted at explicit directories, creating them as
// needed.
func OpenAt(sessionsDir, locksDir string) (*Store, error) {
	for _, dir := range []string{sessionsDir, locksDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return &Store{
		sessionsDir: sessionsDir,
		locksDir:    locksDir,
		currentPath: filepath.Join(sessionsDir, paths.CurrentSessionFile),
	}, nil
}

func (st *Store) sessionPath(id string) string {
	return filepath.Join(st.sessionsDir, id+".json")
}

func (st *Store) indexPath() string {
	return filepath.Join(st.sessionsDir, paths.IndexFileName)
}

// Save writes a session record and rewrites the index.
func (st *Store) Save(ctx context.Context, s *Session) error {
	if err := validation.ValidateSessionID(s.ID); err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := writeJSONAtomic(st.sessionPath(s.ID), s); err != nil {
		return fmt.Errorf("saving session %s: %w", s.ID, err)
	}
	return st.rewriteIndex(ctx)
}

// Get loads one session by id.
func (st *Store) Get(id string) (*Session, error) {
	if err := validation.ValidateSessionID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(st.sessionPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session %s is corrupted: %w", id, err)
	}
	return &s, nil
}

// GetByBranch resolves a session through the index.
func (st *Store) GetByBranch(ctx context.Context, branch string) (*Session, error) {
	idx, err := st.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	id, ok := idx.BranchMap[branch]
	if !ok {
		return nil, fmt.Errorf("%w: branch %s", ErrNotFound, branch)
	}
	return st.Get(id)
}

// ListOptions filters List. The zero value lists active sessions only.
type ListOptions struct {
	All            bool
	IncludeExpired bool
}

// List loads sessions from disk. With the zero options only active sessions
// are returned: terminal and expired records are filtered out. Corrupted
// records are logged and skipped, never surfaced.
func (st *Store) List(ctx context.Context, opts ListOptions) ([]*Session, error) {
	entries, err := os.ReadDir(st.sessionsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var sessions []*Session
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if name == paths.IndexFileName || name == paths.CurrentSessionFile {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		s, err := st.Get(id)
		if err != nil {
			logging.Warn(ctx, "skipping unreadable session record",
				"session_id", id, "error", err.Error())
			continue
		}
		if !opts.All && s.CurrentState.IsTerminal() {
			continue
		}
		if !opts.All && !opts.IncludeExpired && s.IsExpired() {
			continue
		}
		sessions = append(sessions, s)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

// Update applies a mutation under the per-session lock and persists the
// result. A live foreign owner of the lock fails the write with kind
// lock-held; updatedAt is bumped and the expiry window slides.
func (st *Store) Update(ctx context.Context, id string, mutate func(*Session) error) (*Session, error) {
	if err := st.AcquireLock(ctx, id); err != nil {
		return nil, err
	}
	defer func() {
		if err := st.ReleaseLock(id); err != nil {
			logging.Warn(ctx, "failed to release session lock",
				"session_id", id, "error", err.Error())
		}
	}()

	s, err := st.Get(id)
	if err != nil {
		return nil, err
	}
	if err := mutate(s); err != nil {
		return nil, err
	}
	s.touch(time.Now().UTC())
	if err := st.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Delete removes a session record and rewrites the index.
func (st *Store) Delete(ctx context.Context, id string) error {
	if err := validation.ValidateSessionID(id); err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := os.Remove(st.sessionPath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return st.rewriteIndex(ctx)
}

// CleanupExpired deletes expired non-terminal and terminal sessions past
// their window and returns how many were removed.
func (st *Store) CleanupExpired(ctx context.Context) (int, error) {
	all, err := st.List(ctx, ListOptions{All: true})
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, s := range all {
		if !s.IsExpired() {
			continue
		}
		if err := st.Delete(ctx, s.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// SetCurrent marks a session as the one the working tree is on.
func (st *Store) SetCurrent(id string) error {
	if err := validation.ValidateSessionID(id); err != nil {
		return err
	}
	return writeJSONAtomic(st.currentPath, map[string]string{"id": id})
}

// Current returns the session the working tree is on, or ErrNotFound.
func (st *Store) Current() (*Session, error) {
	data, err := os.ReadFile(st.currentPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var ref struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &ref); err != nil || ref.ID == "" {
		return nil, ErrNotFound
	}
	return st.Get(ref.ID)
}

// ClearCurrent forgets the current-session marker.
func (st *Store) ClearCurrent() error {
	err := os.Remove(st.currentPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// loadIndex reads the index, rebuilding it from session files when missing
// or corrupted.
func (st *Store) loadIndex(ctx context.Context) (*Index, error) {
	data, err := os.ReadFile(st.indexPath())
	if err == nil {
		var idx Index
		if jsonErr := json.Unmarshal(data, &idx); jsonErr == nil {
			if idx.BranchMap == nil {
				idx.BranchMap = map[string]string{}
			}
			return &idx, nil
		}
		logging.Warn(ctx, "session index corrupted, rebuilding")
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.rewriteIndex(ctx); err != nil {
		return nil, err
	}
	data, err = os.ReadFile(st.indexPath())
	if err != nil {
		return nil, err
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

// rewriteIndex rebuilds the index from the session files on disk.
// Callers must hold st.mu. For branch collisions the most recently updated
// non-terminal session wins.
func (st *Store) rewriteIndex(ctx context.Context) error {
	entries, err := os.ReadDir(st.sessionsDir)
	if err != nil {
		return err
	}

	idx := Index{BranchMap: map[string]string{}}
	byBranch := map[string]*Session{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if name == paths.IndexFileName || name == paths.CurrentSessionFile {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		s, err := st.Get(id)
		if err != nil {
			logging.Warn(ctx, "skipping unreadable session record while indexing",
				"session_id", id, "error", err.Error())
			continue
		}
		idx.Sessions = append(idx.Sessions, s.Summarize())

		prev, seen := byBranch[s.BranchName]
		if !seen || betterIndexCandidate(s, prev) {
			byBranch[s.BranchName] = s
		}
	}
	for branch, s := range byBranch {
		idx.BranchMap[branch] = s.ID
	}
	sort.Slice(idx.Sessions, func(i, j int) bool {
		return idx.Sessions[i].UpdatedAt.After(idx.Sessions[j].UpdatedAt)
	})
	return writeJSONAtomic(st.indexPath(), &idx)
}

// betterIndexCandidate prefers active sessions over terminal ones, then
// recency.
func betterIndexCandidate(candidate, incumbent *Session) bool {
	candActive := !candidate.CurrentState.IsTerminal()
	incActive := !incumbent.CurrentState.IsTerminal()
	if candActive != incActive {
		return candActive
	}
	return candidate.UpdatedAt.After(incumbent.UpdatedAt)
}

// writeJSONAtomic serializes v to a temporary sibling and renames it over
// path.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func lockError(id string, pid int) error {
	return errkind.New(errkind.LockHeld, "session %s is locked by process %d", id, pid)
}
