package github

import "context"

// CheckRun is one CI check run reported for a commit.
type CheckRun struct {
	Name       string `json:"name"`
	Status     string `json:"status"`     // queued | in_progress | completed
	Conclusion string `json:"conclusion"` // success | failure | neutral | skipped | ...
	HTMLURL    string `json:"html_url"`
}

// CheckRunSummary aggregates the check runs for one ref.
type CheckRunSummary struct {
	Passed  int
	Failed  int
	Pending int
	Total   int
	Runs    []CheckRun
}

// AllPassed reports whether every run completed without failure.
// A ref with zero check runs counts as passed.
func (s CheckRunSummary) AllPassed() bool {
	return s.Failed == 0 && s.Pending == 0
}

// Settled reports whether no runs are still pending.
func (s CheckRunSummary) Settled() bool {
	return s.Pending == 0
}

// FailedNames returns the names of failed runs, for error messages.
func (s CheckRunSummary) FailedNames() []string {
	var names []string
	for _, r := range s.Runs {
		if r.Status == "completed" && isFailureConclusion(r.Conclusion) {
			names = append(names, r.Name)
		}
	}
	return names
}

// ListCheckRuns summarizes the check runs for a commit ref.
func (c *Client) ListCheckRuns(ctx context.Context, ref string) (*CheckRunSummary, error) {
	var resp struct {
		TotalCount int        `json:"total_count"`
		CheckRuns  []CheckRun `json:"check_runs"`
	}
	if err := c.do(ctx, "GET", c.apiPath("commits/%s/check-runs?per_page=100", ref), nil, &resp); err != nil {
		return nil, wrapCall(err, "listing check runs for %s", ref)
	}

	summary := &CheckRunSummary{Total: len(resp.CheckRuns), Runs: resp.CheckRuns}
	for _, run := range resp.CheckRuns {
		switch {
		case run.Status != "completed":
			summary.Pending++
		case isFailureConclusion(run.Conclusion):
			summary.Failed++
		default:
			summary.Passed++
		}
	}
	return summary, nil
}

// Neutral, skipped and success all count as passing; only hard failures and
// cancellations block a ship.
func isFailureConclusion(conclusion string) bool {
	switch conclusion {
	case "failure", "timed_out", "cancelled", "action_required", "startup_failure":
		return true
	}
	return false
}
