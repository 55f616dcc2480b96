// Package audit appends workflow events to a JSONL trail under the
// workspace directory. Files are grouped by year-month and day; an entry is
// written for every tool invocation and every state transition.
package audit

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

	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/logging"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/paths"
	"github.com/slamb2k/devsolo/redact"
)

// Result is the outcome class recorded on an entry.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultAborted Result = "aborted"
)

// StateTransition records a session state change on an entry.
type StateTransition struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Details carries the optional specifics of an audited action.
type Details struct {
	Command         string           `json:"command,omitempty"`
	GitOperation    string           `json:"gitOperation,omitempty"`
	StateTransition *StateTransition `json:"stateTransition,omitempty"`
}

// Entry is one audit record. ID, Timestamp and Actor are filled by Record.
type Entry struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	SessionID    string    `json:"sessionId,omitempty"`
	Action       string    `json:"action"`
	Actor        string    `json:"actor"`
	Details      Details   `json:"details"`
	Result       Result    `json:"result"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// Log is an append-only JSONL audit trail with size-based rotation.
type Log struct {
	dir      string
	actor    string
	maxBytes int64
	maxFiles int

	mu  sync.Mutex
	now func() time.Time
}

// Open resolves the audit directory from the workspace layout.
func Open(actor string, maxBytes int64, maxFiles int) (*Log, error) {
	dir, err := paths.AuditDir()
	if err != nil {
		return nil, err
	}
	return OpenAt(dir, actor, maxBytes, maxFiles), nil
}

// OpenAt opens a log rooted at an explicit directory.
func OpenAt(dir, actor string, maxBytes int64, maxFiles int) *Log {
	if actor == "" {
		actor = DefaultActor()
	}
	return &Log{
		dir:      dir,
		actor:    actor,
		maxBytes: maxBytes,
		maxFiles: maxFiles,
		now:      time.Now,
	}
}

// DefaultActor identifies the machine when no author is configured.
func DefaultActor() string {
	if id, err := machineid.ProtectedID("devsolo"); err == nil && len(id) >= 12 {
		return "machine-" + id[:12]
	}
	return "unknown"
}

// Record appends one entry. Secrets in the error message and details are
// redacted before the entry touches disk. Audit failures are logged but do
// not fail the caller's operation.
func (l *Log) Record(ctx context.Context, entry Entry) error {
	entry.ID = uuid.NewString()
	entry.Timestamp = l.now().UTC()
	if entry.Actor == "" {
		entry.Actor = l.actor
	}
	entry.ErrorMessage = redact.String(entry.ErrorMessage)
	entry.Details.Command = redact.String(entry.Details.Command)
	entry.Details.GitOperation = redact.String(entry.Details.GitOperation)

	line, err := json.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("marshaling audit entry: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	path := l.dayPath(entry.Timestamp)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := l.rotateIfNeeded(path, int64(len(line))); err != nil {
		logging.Warn(ctx, "audit rotation failed", "error", err.Error())
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(line)
	return err
}

// dayPath is <dir>/2006-01/02.jsonl.
func (l *Log) dayPath(ts time.Time) string {
	return filepath.Join(l.dir, ts.Format("2006-01"), ts.Format("02")+".jsonl")
}

// rotatedSuffixFormat is fixed width, so lexical order over rotated file
// names is chronological.
const rotatedSuffixFormat = "20060102T150405.000000000"

// rotateIfNeeded renames the active file to a timestamped sibling when the
// pending write would push it past maxBytes, then drops the oldest rotated
// siblings beyond maxFiles.
func (l *Log) rotateIfNeeded(path string, pending int64) error {
	if l.maxBytes <= 0 {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.Size()+pending <= l.maxBytes {
		return nil
	}

	suffix := l.now().UTC().Format(rotatedSuffixFormat)
	rotated := path + "." + suffix
	for seq := 1; ; seq++ {
		if _, err := os.Stat(rotated); errors.Is(err, fs.ErrNotExist) {
			break
		}
		rotated = fmt.Sprintf("%s.%s-%d", path, suffix, seq)
	}
	if err := os.Rename(path, rotated); err != nil {
		return err
	}
	return l.pruneRotated(path)
}

// pruneRotated removes the oldest rotated siblings past maxFiles.
func (l *Log) pruneRotated(path string) error {
	if l.maxFiles <= 0 {
		return nil
	}
	rotated, err := filepath.Glob(path + ".*")
	if err != nil {
		return err
	}
	sort.Strings(rotated)
	for len(rotated) > l.maxFiles {
		if err := os.Remove(rotated[0]); err != nil {
			return err
		}
		rotated = rotated[1:]
	}
	return nil
}

// Query filters entries read back from disk.
type Query struct {
	SessionID string
	Since     time.Time
	Limit     int
}

// List reads entries matching the query, newest first. Unparseable lines are
// skipped.
func (l *Log) List(ctx context.Context, q Query) ([]Entry, error) {
	var files []string
	err := filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.Contains(filepath.Base(path), ".jsonl") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		for _, line := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			var e Entry
			if err := json.Unmarshal([]byte(line), &e); err != nil {
				logging.Warn(ctx, "skipping unparseable audit line", "file", filepath.Base(path))
				continue
			}
			if q.SessionID != "" && e.SessionID != q.SessionID {
				continue
			}
			if !q.Since.IsZero() && e.Timestamp.Before(q.Since) {
				continue
			}
			entries = append(entries, e)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if q.Limit > 0 && len(entries) > q.Limit {
		entries = entries[:q.Limit]
	}
	return entries, nil
}
