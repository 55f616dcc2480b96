package github

import (
	"context"
	"net/url"
	"strings"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/errkind"
)

// PullRequest is the slice of the platform PR resource devsolo uses.
type PullRequest struct {
	Number  int    `json:"number"`
	State   string `json:"state"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
	Merged  bool   `json:"merged"`
	Head    struct {
		Ref string `json:"ref"`
		SHA string `json:"sha"`
	} `json:"head"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
}

// MergeMethod selects how the platform merges a pull request.
type MergeMethod string

const (
	MergeSquash MergeMethod = "squash"
	MergeMerge  MergeMethod = "merge"
	MergeRebase MergeMethod = "rebase"
)

// CreatePullRequest opens a PR from head into base. The call is idempotent:
// when the platform reports that an open PR for head already exists, that PR
// is returned instead of an error.
func (c *Client) CreatePullRequest(ctx context.Context, head, base, title, body string) (*PullRequest, error) {
	req := map[string]string{
		"head":  head,
		"base":  base,
		"title": title,
		"body":  body,
	}
	var pr PullRequest
	err := c.do(ctx, "POST", c.apiPath("pulls"), req, &pr)
	if err == nil {
		return &pr, nil
	}
	if statusCodeOf(err) == 422 {
		existing, findErr := c.PullRequestForBranch(ctx, head)
		if findErr == nil && existing != nil {
			return existing, nil
		}
		if findErr != nil {
			return nil, findErr
		}
	}
	return nil, wrapCall(err, "creating pull request for %s", head)
}

// PullRequestForBranch returns the single open PR whose head is branch, or
// nil when none exists. More than one open PR for the same head is a
// repository state devsolo refuses to guess about.
func (c *Client) PullRequestForBranch(ctx context.Context, branch string) (*PullRequest, error) {
	head := url.QueryEscape(c.repo.Owner + ":" + branch)
	var prs []PullRequest
	if err := c.do(ctx, "GET", c.apiPath("pulls?state=open&head=%s", head), nil, &prs); err != nil {
		return nil, wrapCall(err, "listing pull requests for %s", branch)
	}
	switch len(prs) {
	case 0:
		return nil, nil
	case 1:
		pr := prs[0]
		return &pr, nil
	default:
		return nil, errkind.New(errkind.DuplicateOpenPR,
			"%d open pull requests found for branch %s, resolve manually", len(prs), branch)
	}
}

// GetPullRequest fetches one PR by number.
func (c *Client) GetPullRequest(ctx context.Context, number int) (*PullRequest, error) {
	var pr PullRequest
	if err := c.do(ctx, "GET", c.apiPath("pulls/%d", number), nil, &pr); err != nil {
		return nil, wrapCall(err, "fetching pull request #%d", number)
	}
	return &pr, nil
}

// MergePullRequest merges a PR with the given method.
// An already-merged PR is not an error.
func (c *Client) MergePullRequest(ctx context.Context, number int, method MergeMethod, commitTitle string) error {
	if method == "" {
		method = MergeSquash
	}
	req := map[string]string{"merge_method": string(method)}
	if commitTitle != "" {
		req["commit_title"] = commitTitle
	}
	var resp struct {
		Merged  bool   `json:"merged"`
		Message string `json:"message"`
	}
	err := c.do(ctx, "PUT", c.apiPath("pulls/%d/merge", number), req, &resp)
	if err != nil {
		if statusCodeOf(err) == 405 && isAlreadyMerged(err) {
			return nil
		}
		return wrapCall(err, "merging pull request #%d", number)
	}
	if !resp.Merged {
		return errkind.New(errkind.GitFailure, "platform declined merge of #%d: %s", number, resp.Message)
	}
	return nil
}

// ClosePullRequest closes a PR without merging.
func (c *Client) ClosePullRequest(ctx context.Context, number int) error {
	req := map[string]string{"state": "closed"}
	var pr PullRequest
	if err := c.do(ctx, "PATCH", c.apiPath("pulls/%d", number), req, &pr); err != nil {
		return wrapCall(err, "closing pull request #%d", number)
	}
	return nil
}

// AddComment posts an issue comment on a PR.
func (c *Client) AddComment(ctx context.Context, number int, body string) error {
	req := map[string]string{"body": body}
	var resp struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, "POST", c.apiPath("issues/%d/comments", number), req, &resp); err != nil {
		return wrapCall(err, "commenting on pull request #%d", number)
	}
	return nil
}

// ReviewDecision aggregates the review state of a PR.
type ReviewDecision string

const (
	ReviewApproved         ReviewDecision = "approved"
	ReviewChangesRequested ReviewDecision = "changes-requested"
	ReviewNone             ReviewDecision = "none"
)

// ReviewDecisionFor aggregates per-reviewer latest states: any outstanding
// CHANGES_REQUESTED wins over approvals.
func (c *Client) ReviewDecisionFor(ctx context.Context, number int) (ReviewDecision, error) {
	var reviews []struct {
		State string `json:"state"`
		User  struct {
			Login string `json:"login"`
		} `json:"user"`
	}
	if err := c.do(ctx, "GET", c.apiPath("pulls/%d/reviews?per_page=100", number), nil, &reviews); err != nil {
		return ReviewNone, wrapCall(err, "listing reviews for #%d", number)
	}

	// Reviews arrive oldest first; keep each reviewer's latest decisive state.
	latest := make(map[string]string)
	for _, r := range reviews {
		switch r.State {
		case "APPROVED", "CHANGES_REQUESTED", "DISMISSED":
			latest[r.User.Login] = r.State
		}
	}

	decision := ReviewNone
	for _, state := range latest {
		switch state {
		case "CHANGES_REQUESTED":
			return ReviewChangesRequested, nil
		case "APPROVED":
			decision = ReviewApproved
		}
	}
	return decision, nil
}

// Release creates a platform release for an existing tag.
func (c *Client) CreateRelease(ctx context.Context, tag, name, body string) (string, error) {
	req := map[string]any{
		"tag_name": tag,
		"name":     name,
		"body":     body,
	}
	var resp struct {
		HTMLURL string `json:"html_url"`
	}
	if err := c.do(ctx, "POST", c.apiPath("releases"), req, &resp); err != nil {
		return "", wrapCall(err, "creating release %s", tag)
	}
	return resp.HTMLURL, nil
}

func isAlreadyMerged(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "already merged")
}
