// Package gitx is the typed surface over the local repository.
//
// Reads go through go-git where it is reliable; mutations shell out to the
// git CLI (go-git v5's Checkout deletes untracked files, see
// https://github.com/go-git/go-git/issues/970, and its stash support is
// incomplete). Every command failure surfaces as an errkind.GitFailure with
// the original stderr preserved, secrets redacted.
package gitx

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/errkind"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/paths"
	"github.com/slamb2k/devsolo/redact"
)

// Repo wraps one local repository working tree.
type Repo struct {
	root string
	repo *gogit.Repository
}

// Open opens the repository containing dir (or dir itself).
func Open(dir string) (*Repo, error) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, errkind.Wrap(errkind.GitFailure, err, "not a git repository: %s", dir)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, errkind.Wrap(errkind.GitFailure, err, "failed to get worktree")
	}

	return &Repo{root: wt.Filesystem.Root(), repo: repo}, nil
}

// Root returns the working tree root.
func (r *Repo) Root() string {
	return r.root
}

// git runs a git command in the repository root and returns trimmed stdout.
// Subprocesses carry the workflow marker so the policy hooks let them pass.
func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.root
	cmd.Env = append(os.Environ(), paths.WorkflowEnvVar+"=1")
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := redact.String(strings.TrimSpace(stderr.String()))
		if msg == "" {
			msg = err.Error()
		}
		return "", errkind.Wrap(errkind.GitFailure, errors.New(msg), "git %s failed", args[0])
	}
	return strings.TrimSpace(string(out)), nil
}

// CurrentBranch returns the name of the current branch.
// Returns an error in detached HEAD state.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", errkind.Wrap(errkind.GitFailure, err, "failed to get HEAD")
	}
	if !head.Name().IsBranch() {
		return "", errkind.New(errkind.GitFailure, "not on a branch (detached HEAD)")
	}
	return head.Name().Short(), nil
}

// MainBranch detects the trunk branch name.
// Prefers the remote origin HEAD, falling back to local main then master.
func (r *Repo) MainBranch() (string, error) {
	if ref, err := r.repo.Reference(plumbing.NewRemoteReferenceName("origin", "HEAD"), true); err == nil && ref != nil {
		target := ref.Target().String()
		if strings.HasPrefix(target, "refs/remotes/origin/") {
			return strings.TrimPrefix(target, "refs/remotes/origin/"), nil
		}
	}

	for _, name := range []string{"main", "master"} {
		if ok, _ := r.BranchExistsLocally(name); ok {
			return name, nil
		}
		if ok, _ := r.BranchExistsOnRemote(name); ok {
			return name, nil
		}
	}
	return "", errkind.New(errkind.GitFailure, "could not detect main branch (no main or master)")
}

// BranchExistsLocally checks if a local branch exists.
func (r *Repo) BranchExistsLocally(branch string) (bool, error) {
	_, err := r.repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return false, nil
		}
		return false, errkind.Wrap(errkind.GitFailure, err, "failed to check branch %s", branch)
	}
	return true, nil
}

// BranchExistsOnRemote checks if a branch is tracked on the origin remote.
// This consults the local remote-tracking refs, not the network.
func (r *Repo) BranchExistsOnRemote(branch string) (bool, error) {
	_, err := r.repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return false, nil
		}
		return false, errkind.Wrap(errkind.GitFailure, err, "failed to check remote branch %s", branch)
	}
	return true, nil
}

// LocalBranches lists the names of all local branches.
func (r *Repo) LocalBranches(ctx context.Context) ([]string, error) {
	out, err := r.git(ctx, "for-each-ref", "--format=%(refname:short)", "refs/heads")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// CreateBranch creates a branch at the current HEAD and checks it out.
func (r *Repo) CreateBranch(ctx context.Context, branch string) error {
	_, err := r.git(ctx, "checkout", "-b", branch)
	return err
}

// CreateBranchFrom creates a branch off the named start point and checks it out.
func (r *Repo) CreateBranchFrom(ctx context.Context, branch, startPoint string) error {
	_, err := r.git(ctx, "checkout", "-b", branch, startPoint)
	return err
}

// Checkout switches to the named branch or ref.
func (r *Repo) Checkout(ctx context.Context, ref string) error {
	_, err := r.git(ctx, "checkout", ref)
	return err
}

// DeleteLocalBranch deletes a local branch. Force tolerates unmerged commits.
func (r *Repo) DeleteLocalBranch(ctx context.Context, branch string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	_, err := r.git(ctx, "branch", flag, branch)
	if err != nil && strings.Contains(err.Error(), "not found") {
		return nil // already deleted
	}
	return err
}

// DeleteRemoteBranch deletes a branch on origin.
// An already-deleted branch is not an error.
func (r *Repo) DeleteRemoteBranch(ctx context.Context, branch string) error {
	_, err := r.git(ctx, "push", "origin", "--delete", branch)
	if err != nil && strings.Contains(err.Error(), "remote ref does not exist") {
		return nil
	}
	return err
}

// Fetch updates remote-tracking refs from origin.
func (r *Repo) Fetch(ctx context.Context) error {
	_, err := r.git(ctx, "fetch", "origin", "--prune")
	return err
}

// Pull fast-forwards the current branch from its upstream.
// Refuses to create merge commits.
func (r *Repo) Pull(ctx context.Context) error {
	_, err := r.git(ctx, "pull", "--ff-only")
	return err
}

// PushOptions control Push behavior.
type PushOptions struct {
	SetUpstream bool
	Force       bool
}

// Push pushes the named branch to origin.
func (r *Repo) Push(ctx context.Context, branch string, opts PushOptions) error {
	args := []string{"push"}
	if opts.SetUpstream {
		args = append(args, "--set-upstream")
	}
	if opts.Force {
		args = append(args, "--force-with-lease")
	}
	args = append(args, "origin", branch)
	_, err := r.git(ctx, args...)
	return err
}

// HasUpstream reports whether the branch has an upstream configured.
func (r *Repo) HasUpstream(ctx context.Context, branch string) bool {
	_, err := r.git(ctx, "rev-parse", "--abbrev-ref", branch+"@{upstream}")
	return err == nil
}

// Rebase rebases the current branch onto the given ref.
func (r *Repo) Rebase(ctx context.Context, onto string) error {
	_, err := r.git(ctx, "rebase", onto)
	return err
}

// RebaseAbort aborts an in-progress rebase.
func (r *Repo) RebaseAbort(ctx context.Context) error {
	_, err := r.git(ctx, "rebase", "--abort")
	return err
}

// RebaseContinue continues an in-progress rebase.
func (r *Repo) RebaseContinue(ctx context.Context) error {
	_, err := r.git(ctx, "rebase", "--continue")
	return err
}

// IsRebasing reports whether a rebase is in progress.
func (r *Repo) IsRebasing(ctx context.Context) bool {
	gitDir, err := r.git(ctx, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return false
	}
	for _, marker := range []string{"rebase-merge", "rebase-apply"} {
		if _, err := os.Stat(filepath.Join(gitDir, marker)); err == nil {
			return true
		}
	}
	return false
}

// SquashMerge merges the named branch into the current branch as a single
// staged change, then commits with the given message.
func (r *Repo) SquashMerge(ctx context.Context, branch, message string) error {
	if _, err := r.git(ctx, "merge", "--squash", branch); err != nil {
		return err
	}
	_, err := r.git(ctx, "commit", "-m", message)
	return err
}

// CreateTag creates an annotated tag at HEAD.
func (r *Repo) CreateTag(ctx context.Context, name, message string) error {
	_, err := r.git(ctx, "tag", "-a", name, "-m", message)
	return err
}

// ListTags lists tag names.
func (r *Repo) ListTags(ctx context.Context) ([]string, error) {
	out, err := r.git(ctx, "tag", "--list")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// RemoteURL returns the fetch URL of the origin remote.
func (r *Repo) RemoteURL() (string, error) {
	remote, err := r.repo.Remote("origin")
	if err != nil {
		return "", errkind.Wrap(errkind.GitFailure, err, "failed to get origin remote")
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", errkind.New(errkind.GitFailure, "origin remote has no URL")
	}
	return urls[0], nil
}

// ConfigGet reads an arbitrary git config value.
// Returns empty string when unset.
func (r *Repo) ConfigGet(ctx context.Context, key string) string {
	out, err := r.git(ctx, "config", "--get", key)
	if err != nil {
		return ""
	}
	return out
}

// ConfigSet writes an arbitrary git config value in the local scope.
func (r *Repo) ConfigSet(ctx context.Context, key, value string) error {
	_, err := r.git(ctx, "config", key, value)
	return err
}

// AheadBehind returns how many commits branch is ahead of and behind the
// given upstream ref.
func (r *Repo) AheadBehind(ctx context.Context, branch, upstream string) (ahead, behind int, err error) {
	out, err := r.git(ctx, "rev-list", "--left-right", "--count", branch+"..."+upstream)
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Fields(out)
	if len(fields) != 2 {
		return 0, 0, errkind.New(errkind.GitFailure, "unexpected rev-list output %q", out)
	}
	ahead, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, errkind.Wrap(errkind.GitFailure, err, "parsing ahead count")
	}
	behind, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, errkind.Wrap(errkind.GitFailure, err, "parsing behind count")
	}
	return ahead, behind, nil
}

// HeadHash returns the full hash of HEAD.
func (r *Repo) HeadHash() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", errkind.Wrap(errkind.GitFailure, err, "failed to get HEAD")
	}
	return head.Hash().String(), nil
}

// CommitsSince counts commits on the current branch newer than the given ref.
func (r *Repo) CommitsSince(ctx context.Context, ref string) (int, error) {
	out, err := r.git(ctx, "rev-list", "--count", ref+"..HEAD")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(out)
	if err != nil {
		return 0, errkind.Wrap(errkind.GitFailure, err, "parsing commit count %q", out)
	}
	return n, nil
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
