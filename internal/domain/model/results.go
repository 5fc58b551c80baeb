package model

// ReviewSummary is the composite result of a full reconciliation pass:
// threads plus reviewer statuses plus the discovered stack.
type ReviewSummary struct {
	Threads           []ReviewThread   `json:"threads"`
	ReviewerStatuses  []ReviewerStatus `json:"reviewer_statuses"`
	Stack             []StackPR        `json:"stack"`
	ReviewsInProgress bool             `json:"reviews_in_progress"`
}

// ResolveStaleResult reports the outcome of a bulk stale-thread resolution.
type ResolveStaleResult struct {
	ResolvedCount     int      `json:"resolved_count"`
	ResolvedThreadIDs []string `json:"resolved_thread_ids"`
	SkippedCount      int      `json:"skipped_count"`
	BlockedCount      int      `json:"blocked_count"`
}

// TriageAction is the suggested next step for an actionable thread.
type TriageAction string

const (
	ActionFix         TriageAction = "fix"          // bug or flagged severity
	ActionReply       TriageAction = "reply"        // info or warning severity
	ActionCreateIssue TriageAction = "create_issue" // followup noted without an issue reference
)

// TriageItem is a single review thread that needs agent action.
type TriageItem struct {
	ThreadID string       `json:"thread_id"`
	PRNumber int          `json:"pr_number"`
	File     string       `json:"file,omitempty"`
	Line     int          `json:"line,omitempty"`
	Reviewer string       `json:"reviewer"`
	Severity Severity     `json:"severity"`
	Title    string       `json:"title,omitempty"`
	IsStale  bool         `json:"is_stale"`
	Action   TriageAction `json:"action"`
	Snippet  string       `json:"snippet,omitempty"`
}

// TriageResult is the actionable-only view across one or more PRs,
// ordered by severity with bugs first.
type TriageResult struct {
	Items      []TriageItem `json:"items"`
	NeedsFix   int          `json:"needs_fix"`
	NeedsReply int          `json:"needs_reply"`
	NeedsIssue int          `json:"needs_issue"`
	Total      int          `json:"total"`
}

// PRStatusSummary is a lightweight per-PR review status without comment bodies.
type PRStatusSummary struct {
	PRNumber   int    `json:"pr_number"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Unresolved int    `json:"unresolved"`
	Resolved   int    `json:"resolved"`
	Bugs       int    `json:"bugs"`
	Flagged    int    `json:"flagged"`
	Warnings   int    `json:"warnings"`
	Info       int    `json:"info"`
	Stale      int    `json:"stale"`
}

// StackStatusResult is the stack-wide status overview, bottom to top.
type StackStatusResult struct {
	PRs             []PRStatusSummary `json:"prs"`
	TotalUnresolved int               `json:"total_unresolved"`
}

// RereviewResult reports which reviewers were manually triggered and which
// re-review automatically on push.
type RereviewResult struct {
	Triggered    []string `json:"triggered"`
	AutoTriggers []string `json:"auto_triggers"`
}

// CreateIssueResult reports a GitHub issue created from a review thread.
type CreateIssueResult struct {
	IssueNumber int    `json:"issue_number"`
	IssueURL    string `json:"issue_url"`
	Title       string `json:"title"`
}
