package gitx

import (
	"context"
	"strconv"
	"strings"

	diffmatchpatch "github.com/sergi/go-diff/diffmatchpatch"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/errkind"
)

// BranchStatus summarizes a branch relative to its remote counterpart.
type BranchStatus struct {
	Ahead      int
	Behind     int
	HasRemote  bool
	IsClean    bool
	Conflicted bool
}

// CommitInfo is one entry from the recent log.
type CommitInfo struct {
	Hash    string
	Subject string
}

// DiffStat summarizes line churn between the working tree and HEAD.
type DiffStat struct {
	FilesChanged int
	Added        int
	Removed      int
}

// HasUncommittedChanges reports whether any staged, unstaged, or untracked
// changes exist.
func (r *Repo) HasUncommittedChanges() (bool, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return false, errkind.Wrap(errkind.GitFailure, err, "failed to get worktree")
	}
	status, err := wt.Status()
	if err != nil {
		return false, errkind.Wrap(errkind.GitFailure, err, "failed to get status")
	}
	return !status.IsClean(), nil
}

// ChangedFiles lists paths with any modification (staged, unstaged, untracked).
func (r *Repo) ChangedFiles(ctx context.Context) ([]string, error) {
	out, err := r.git(ctx, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range splitLines(out) {
		if len(line) < 4 {
			continue
		}
		path := strings.TrimSpace(line[2:])
		// Renames show as "old -> new"; keep the new path.
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+4:]
		}
		files = append(files, path)
	}
	return files, nil
}

// StagedFiles lists paths staged in the index.
func (r *Repo) StagedFiles(ctx context.Context) ([]string, error) {
	out, err := r.git(ctx, "diff", "--cached", "--name-only")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// ConflictedFiles lists paths with unresolved merge conflicts.
func (r *Repo) ConflictedFiles(ctx context.Context) ([]string, error) {
	out, err := r.git(ctx, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// GetBranchStatus summarizes the named branch (current branch when empty).
func (r *Repo) GetBranchStatus(ctx context.Context, branch string) (*BranchStatus, error) {
	if branch == "" {
		current, err := r.CurrentBranch()
		if err != nil {
			return nil, err
		}
		branch = current
	}

	status := &BranchStatus{}

	hasRemote, err := r.BranchExistsOnRemote(branch)
	if err != nil {
		return nil, err
	}
	status.HasRemote = hasRemote
	if hasRemote {
		ahead, behind, err := r.AheadBehind(ctx, branch, "origin/"+branch)
		if err != nil {
			return nil, err
		}
		status.Ahead = ahead
		status.Behind = behind
	}

	dirty, err := r.HasUncommittedChanges()
	if err != nil {
		return nil, err
	}
	status.IsClean = !dirty

	conflicted, err := r.ConflictedFiles(ctx)
	if err != nil {
		return nil, err
	}
	status.Conflicted = len(conflicted) > 0

	return status, nil
}

// CommitOptions control Commit behavior.
type CommitOptions struct {
	// StagedOnly commits only the index; otherwise all tracked modifications
	// are staged first.
	StagedOnly bool
	// NoVerify skips commit hooks.
	NoVerify bool
}

// StageAll stages all modifications including untracked files.
func (r *Repo) StageAll(ctx context.Context) error {
	_, err := r.git(ctx, "add", "--all")
	return err
}

// Commit records the staged changes with the given message.
// When StagedOnly is false, all tracked modifications are staged first.
func (r *Repo) Commit(ctx context.Context, message string, opts CommitOptions) error {
	if !opts.StagedOnly {
		if err := r.StageAll(ctx); err != nil {
			return err
		}
	}
	args := []string{"commit", "-m", message}
	if opts.NoVerify {
		args = append(args, "--no-verify")
	}
	_, err := r.git(ctx, args...)
	return err
}

// RecentLog returns up to limit commits from HEAD backwards.
func (r *Repo) RecentLog(ctx context.Context, limit int) ([]CommitInfo, error) {
	if limit <= 0 {
		limit = 10
	}
	out, err := r.git(ctx, "log", "--format=%H%x09%s", "-n", strconv.Itoa(limit))
	if err != nil {
		return nil, err
	}
	var commits []CommitInfo
	for _, line := range splitLines(out) {
		hash, subject, found := strings.Cut(line, "\t")
		if !found {
			continue
		}
		commits = append(commits, CommitInfo{Hash: hash, Subject: subject})
	}
	return commits, nil
}

// Diff returns the unified diff of the working tree against HEAD.
func (r *Repo) Diff(ctx context.Context) (string, error) {
	return r.git(ctx, "diff", "HEAD")
}

// DiffStatSummary computes line churn for the working tree against HEAD
// using go-diff for a stable count independent of diff formatting.
func (r *Repo) DiffStatSummary(ctx context.Context) (*DiffStat, error) {
	files, err := r.ChangedFiles(ctx)
	if err != nil {
		return nil, err
	}
	stat := &DiffStat{FilesChanged: len(files)}

	raw, err := r.Diff(ctx)
	if err != nil {
		return nil, err
	}
	old, updated := splitUnifiedDiff(raw)
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(old, updated)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	for _, d := range diffs {
		n := strings.Count(d.Text, "\n")
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			stat.Added += n
		case diffmatchpatch.DiffDelete:
			stat.Removed += n
		}
	}
	return stat, nil
}

// splitUnifiedDiff reconstructs the before/after line streams from a unified
// diff so go-diff can count churn.
func splitUnifiedDiff(diff string) (old, updated string) {
	var oldB, newB strings.Builder
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"),
			strings.HasPrefix(line, "@@"), strings.HasPrefix(line, "diff "),
			strings.HasPrefix(line, "index "):
			continue
		case strings.HasPrefix(line, "+"):
			newB.WriteString(line[1:])
			newB.WriteByte('\n')
		case strings.HasPrefix(line, "-"):
			oldB.WriteString(line[1:])
			oldB.WriteByte('\n')
		default:
			trimmed := strings.TrimPrefix(line, " ")
			oldB.WriteString(trimmed)
			oldB.WriteByte('\n')
			newB.WriteString(trimmed)
			newB.WriteByte('\n')
		}
	}
	return oldB.String(), newB.String()
}
