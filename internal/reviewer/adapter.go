// Package reviewer encodes the behavior quirks of each known AI code
// reviewer: how its comments are identified, how it marks severity, whether
// it resolves its own threads after a fix push, and how a re-review is
// triggered. The set of adapters is closed; there is no plugin mechanism.
package reviewer

import "github.com/reviewbuddy/reviewbuddy/internal/domain/model"

// Adapter is the capability interface every reviewer variant implements.
type Adapter interface {
	// Name is the short identifier for this reviewer (e.g. "unblocked").
	Name() string

	// Identify reports whether the given GitHub username belongs to this
	// reviewer. Matching is case-insensitive.
	Identify(author string) bool

	// ClassifySeverity maps a comment body to a severity tier using the
	// reviewer's marker vocabulary. Unrecognized markers classify as info.
	ClassifySeverity(body string) model.Severity

	// AutoResolvesComments reports whether this reviewer resolves its own
	// threads once it detects the issue fixed on a new push.
	AutoResolvesComments() bool

	// AutoResolvesThread is the per-thread override of AutoResolvesComments
	// based on the originating comment body.
	AutoResolvesThread(body string) bool

	// NeedsManualRereview reports whether a re-review must be triggered
	// explicitly after pushing fixes.
	NeedsManualRereview() bool

	// RereviewTrigger returns the PR comment body that triggers a re-review,
	// or "" when the reviewer re-reviews automatically on push.
	RereviewTrigger(prNumber int, owner, repo string) string

	// DefaultAutoResolveStale is the policy default for whether bulk stale
	// resolution touches this reviewer's threads.
	DefaultAutoResolveStale() bool

	// DefaultResolveLevels is the policy default for which severities may be
	// auto-resolved for this reviewer.
	DefaultResolveLevels() []model.Severity
}
