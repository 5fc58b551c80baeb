package model

import "time"

// ReviewerState classifies whether a reviewer has caught up with the latest push.
type ReviewerState string

const (
	ReviewerCompleted ReviewerState = "completed"
	ReviewerPending   ReviewerState = "pending"
)

// ReviewerStatus is the derived per-reviewer completion status for a PR.
// It is computed on every call, never stored.
type ReviewerStatus struct {
	Reviewer     string        `json:"reviewer"`
	Status       ReviewerState `json:"status"`
	Detail       string        `json:"detail"`
	LastReviewAt *time.Time    `json:"last_review_at,omitempty"`
	LastPushAt   *time.Time    `json:"last_push_at,omitempty"`
}
