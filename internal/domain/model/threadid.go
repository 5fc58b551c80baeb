package model

import (
	"errors"
	"fmt"
	"strings"
)

// ThreadKind distinguishes the three origins a thread identifier can have.
// Each kind routes to a different mutation API for resolving and replying.
type ThreadKind string

const (
	ThreadKindInline       ThreadKind = "inline"        // PRRT_ — inline review thread, resolvable via resolveReviewThread.
	ThreadKindPRReview     ThreadKind = "pr_review"     // PRR_ — PR-level review, dismissable but not inline-resolvable.
	ThreadKindIssueComment ThreadKind = "issue_comment" // IC_ — bot issue comment, reply-only.
)

// ErrUnsupportedThreadID is returned when an identifier does not carry one of
// the three known prefixes.
var ErrUnsupportedThreadID = errors.New("unsupported thread ID (expected PRRT_ inline thread, PRR_ PR-level review, or IC_ issue comment)")

// ThreadID is the parsed form of an opaque GraphQL node identifier. The raw
// string prefix is a closed discriminated union; classify once here and route
// all subsequent logic on Kind rather than repeated prefix checks.
type ThreadID struct {
	Kind ThreadKind
	Node string // The full node ID as accepted by the GitHub API.
}

// ParseThreadID classifies a raw node identifier into its variant.
func ParseThreadID(raw string) (ThreadID, error) {
	switch {
	case strings.HasPrefix(raw, "PRRT_"):
		return ThreadID{Kind: ThreadKindInline, Node: raw}, nil
	case strings.HasPrefix(raw, "PRR_"):
		return ThreadID{Kind: ThreadKindPRReview, Node: raw}, nil
	case strings.HasPrefix(raw, "IC_"):
		return ThreadID{Kind: ThreadKindIssueComment, Node: raw}, nil
	default:
		return ThreadID{}, fmt.Errorf("%w: %q", ErrUnsupportedThreadID, raw)
	}
}
