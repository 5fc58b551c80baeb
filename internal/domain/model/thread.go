// Package model defines the domain entities for review thread reconciliation.
// All entities are transient value types rebuilt from live API responses on
// every operation; nothing here is persisted.
package model

import "time"

// CommentStatus represents whether a review thread is resolved.
type CommentStatus string

const (
	StatusResolved   CommentStatus = "resolved"
	StatusUnresolved CommentStatus = "unresolved"
)

// ReviewComment is a single authored message within a review thread.
// Immutable once parsed.
type ReviewComment struct {
	Author    string     `json:"author"`
	Body      string     `json:"body"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	URL       string     `json:"url,omitempty"`
}

// ReviewThread is the unit of reconciliation: one conversation on a PR,
// regardless of whether it originated as an inline review thread, a
// PR-level review, or a bot issue comment. The ThreadID prefix encodes the
// kind; parse it with ParseThreadID before routing mutations.
type ReviewThread struct {
	ThreadID   string          `json:"thread_id"`
	PRNumber   int             `json:"pr_number"`
	Status     CommentStatus   `json:"status"`
	File       string          `json:"file,omitempty"`
	Line       int             `json:"line,omitempty"`
	Reviewer   string          `json:"reviewer"`
	Comments   []ReviewComment `json:"comments"`
	IsStale    bool            `json:"is_stale"`
	IsPRReview bool            `json:"is_pr_review"`
}

// FirstComment returns the originating comment of the thread. A thread with
// zero comments is invalid and must be dropped at construction, so callers
// may rely on this being present.
func (t ReviewThread) FirstComment() ReviewComment {
	if len(t.Comments) == 0 {
		return ReviewComment{Author: "unknown"}
	}
	return t.Comments[0]
}
