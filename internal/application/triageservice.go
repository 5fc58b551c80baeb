package application

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/reviewbuddy/reviewbuddy/internal/config"
	"github.com/reviewbuddy/reviewbuddy/internal/domain/model"
	"github.com/reviewbuddy/reviewbuddy/internal/domain/port/driven"
	"github.com/reviewbuddy/reviewbuddy/internal/reviewer"
)

const resolveThreadMutation = `mutation($threadId: ID!) {
	resolveReviewThread(input: {threadId: $threadId}) {
		thread { id isResolved }
	}
}`

const dismissReviewMutation = `mutation($reviewId: ID!, $message: String!) {
	dismissPullRequestReview(input: {pullRequestReviewId: $reviewId, message: $message}) {
		pullRequestReview { id state }
	}
}`

// firstCommentQuery fetches the originating comment of an inline thread:
// enough to classify severity, gate policy, and reply via REST.
const firstCommentQuery = `query($threadId: ID!) {
	node(id: $threadId) {
		... on PullRequestReviewThread {
			comments(first: 1) {
				nodes {
					databaseId
					author { login }
					body
					path
					line
					url
				}
			}
		}
	}
}`

// reviewAuthorQuery fetches the author and body of a PR-level review for
// policy gating before dismissal.
const reviewAuthorQuery = `query($reviewId: ID!) {
	node(id: $reviewId) {
		... on PullRequestReview {
			author { login }
			body
		}
	}
}`

type firstCommentResponse struct {
	Node *struct {
		Comments struct {
			Nodes []struct {
				DatabaseID int64  `json:"databaseId"`
				Author     *actor `json:"author"`
				Body       string `json:"body"`
				Path       string `json:"path"`
				Line       int    `json:"line"`
				URL        string `json:"url"`
			} `json:"nodes"`
		} `json:"comments"`
	} `json:"node"`
}

type reviewAuthorResponse struct {
	Node *struct {
		Author *actor `json:"author"`
		Body   string `json:"body"`
	} `json:"node"`
}

// ResolveOutcome reports a single-thread resolve attempt. A policy denial is
// a structured refusal with a reason, not an error: the caller is expected
// to act on the reason.
type ResolveOutcome struct {
	ThreadID string `json:"thread_id"`
	Resolved bool   `json:"resolved"`
	Message  string `json:"message"`
}

// followupPhrases are owner-reply fragments meaning "acknowledged, deferred".
// Matching is case-insensitive substring.
var followupPhrases = []string{
	"noted for followup",
	"noted for follow-up",
	"tracked for later",
	"will follow up",
	"address later",
	"follow up later",
}

// issueRefPattern matches a GitHub issue reference like #42.
var issueRefPattern = regexp.MustCompile(`#\d+`)

// boldPattern captures the first **bold** span of a comment body.
var boldPattern = regexp.MustCompile(`\*\*(.+?)\*\*`)

// severityLabelPrefix strips a leading "Bug:"-style label from an extracted
// title, since the severity is reported in its own field.
var severityLabelPrefix = regexp.MustCompile(`(?i)^(bug|flagged|warning|info|issue|note):\s*`)

// TriageService applies policy and adapter rules to review threads: single
// and bulk resolution, replies, the actionable-only triage view, and issue
// creation from threads.
type TriageService struct {
	transport driven.Transport
	local     driven.LocalRepo
	threads   *ThreadService
	cfg       *config.Config
	logger    *slog.Logger
}

// NewTriageService creates a TriageService.
func NewTriageService(transport driven.Transport, local driven.LocalRepo, threads *ThreadService, cfg *config.Config) *TriageService {
	return &TriageService{
		transport: transport,
		local:     local,
		threads:   threads,
		cfg:       cfg,
		logger:    slog.Default(),
	}
}

// ResolveComment resolves one thread by its identifier, routing on the ID
// variant: inline threads use resolveReviewThread, PR-level reviews are
// dismissed, issue comments have no resolve semantics and are rejected.
// Every path passes the policy gate first.
func (s *TriageService) ResolveComment(ctx context.Context, prNumber int, threadID, repo string) (ResolveOutcome, error) {
	id, err := model.ParseThreadID(threadID)
	if err != nil {
		return ResolveOutcome{}, err
	}

	switch id.Kind {
	case model.ThreadKindInline:
		return s.resolveInlineThread(ctx, prNumber, id.Node)
	case model.ThreadKindPRReview:
		return s.dismissPRReview(ctx, prNumber, id.Node)
	default:
		return ResolveOutcome{}, fmt.Errorf("%w: issue comments cannot be resolved, reply to them instead", model.ErrUnsupportedThreadID)
	}
}

func (s *TriageService) resolveInlineThread(ctx context.Context, prNumber int, node string) (ResolveOutcome, error) {
	author, body, _, err := s.fetchFirstComment(ctx, node)
	if err != nil {
		return ResolveOutcome{}, err
	}

	if outcome, allowed := s.gate(node, author, body); !allowed {
		return outcome, nil
	}

	var resp struct {
		ResolveReviewThread struct {
			Thread struct {
				ID         string `json:"id"`
				IsResolved bool   `json:"isResolved"`
			} `json:"thread"`
		} `json:"resolveReviewThread"`
	}
	if err := s.transport.GraphQL(ctx, resolveThreadMutation, map[string]any{"threadId": node}, &resp); err != nil {
		return ResolveOutcome{}, fmt.Errorf("resolving thread %s on PR #%d: %w", node, prNumber, err)
	}
	if !resp.ResolveReviewThread.Thread.IsResolved {
		return ResolveOutcome{}, fmt.Errorf("thread %s on PR #%d did not resolve", node, prNumber)
	}

	s.logger.Info("resolved thread", "thread_id", node, "pr_number", prNumber)
	return ResolveOutcome{
		ThreadID: node,
		Resolved: true,
		Message:  fmt.Sprintf("Resolved thread %s on PR #%d", node, prNumber),
	}, nil
}

func (s *TriageService) dismissPRReview(ctx context.Context, prNumber int, node string) (ResolveOutcome, error) {
	var review reviewAuthorResponse
	if err := s.transport.GraphQL(ctx, reviewAuthorQuery, map[string]any{"reviewId": node}, &review); err != nil {
		return ResolveOutcome{}, fmt.Errorf("fetching review %s: %w", node, err)
	}
	if review.Node == nil {
		return ResolveOutcome{}, fmt.Errorf("review %s not found", node)
	}

	if outcome, allowed := s.gate(node, review.Node.Author.login(), review.Node.Body); !allowed {
		return outcome, nil
	}

	variables := map[string]any{
		"reviewId": node,
		"message":  "Addressed in a subsequent push.",
	}
	if err := s.transport.GraphQL(ctx, dismissReviewMutation, variables, nil); err != nil {
		return ResolveOutcome{}, fmt.Errorf("dismissing review %s on PR #%d: %w", node, prNumber, err)
	}

	s.logger.Info("dismissed PR-level review", "review_id", node, "pr_number", prNumber)
	return ResolveOutcome{
		ThreadID: node,
		Resolved: true,
		Message:  fmt.Sprintf("Dismissed review %s on PR #%d", node, prNumber),
	}, nil
}

// gate runs the single policy gate for a resolve attempt. It cannot be
// bypassed by tool callers; both the single and bulk paths go through it.
func (s *TriageService) gate(node, author, body string) (ResolveOutcome, bool) {
	name := reviewer.Identify(author)
	severity := model.SeverityInfo
	if adapter, ok := reviewer.Get(name); ok {
		severity = adapter.ClassifySeverity(body)
	}

	allowed, reason := s.cfg.CanResolve(name, severity)
	if allowed {
		return ResolveOutcome{}, true
	}
	return ResolveOutcome{
		ThreadID: node,
		Resolved: false,
		Message:  fmt.Sprintf("Not allowed to resolve %s thread: %s", name, reason),
	}, false
}

// fetchFirstComment returns the author login, body, and REST database ID of
// an inline thread's originating comment.
func (s *TriageService) fetchFirstComment(ctx context.Context, node string) (author, body string, databaseID int64, err error) {
	var resp firstCommentResponse
	if err := s.transport.GraphQL(ctx, firstCommentQuery, map[string]any{"threadId": node}, &resp); err != nil {
		return "", "", 0, fmt.Errorf("fetching thread %s: %w", node, err)
	}
	if resp.Node == nil || len(resp.Node.Comments.Nodes) == 0 {
		return "", "", 0, fmt.Errorf("thread %s has no comments", node)
	}
	first := resp.Node.Comments.Nodes[0]
	return first.Author.login(), first.Body, first.DatabaseID, nil
}

// ResolveStale bulk-resolves unresolved stale inline threads on a PR.
// PR-level reviews are excluded (not inline-resolvable). Threads whose
// reviewer resolves its own comments are skipped; threads blocked by
// resolve_levels are counted but left alone; the rest are resolved in one
// batched mutation.
func (s *TriageService) ResolveStale(ctx context.Context, prNumber int, repo string) (model.ResolveStaleResult, error) {
	summary, err := s.threads.ListReviewComments(ctx, prNumber, repo, string(model.StatusUnresolved))
	if err != nil {
		return model.ResolveStaleResult{}, err
	}

	var skipped, blocked, allowed []model.ReviewThread
	for _, t := range summary.Threads {
		if !t.IsStale || t.IsPRReview {
			continue
		}
		if s.reviewerWillResolve(t) {
			skipped = append(skipped, t)
			continue
		}
		severity := classifySeverity(t)
		if ok, _ := s.cfg.CanResolve(t.Reviewer, severity); !ok {
			blocked = append(blocked, t)
			continue
		}
		allowed = append(allowed, t)
	}

	result := model.ResolveStaleResult{
		ResolvedThreadIDs: []string{},
		SkippedCount:      len(skipped),
		BlockedCount:      len(blocked),
	}
	if len(allowed) == 0 {
		return result, nil
	}

	// One combined mutation with aliased sub-operations instead of N round
	// trips. Node IDs come from the GitHub API and are embedded directly.
	var b strings.Builder
	b.WriteString("mutation {\n")
	for i, t := range allowed {
		fmt.Fprintf(&b, "  t%d: resolveReviewThread(input: {threadId: %q}) { thread { id isResolved } }\n", i, t.ThreadID)
	}
	b.WriteString("}")

	if err := s.transport.GraphQL(ctx, b.String(), nil, nil); err != nil {
		return model.ResolveStaleResult{}, fmt.Errorf("batch-resolving %d threads on PR #%d: %w", len(allowed), prNumber, err)
	}

	for _, t := range allowed {
		result.ResolvedThreadIDs = append(result.ResolvedThreadIDs, t.ThreadID)
	}
	result.ResolvedCount = len(allowed)

	s.logger.Info("bulk-resolved stale threads",
		"pr_number", prNumber, "resolved", result.ResolvedCount,
		"skipped", result.SkippedCount, "blocked", result.BlockedCount)
	return result, nil
}

// reviewerWillResolve reports whether the reviewer is expected to resolve
// the thread itself after a fix push, making bulk resolution redundant.
// Config's auto_resolve_stale=false also keeps hands off.
func (s *TriageService) reviewerWillResolve(t model.ReviewThread) bool {
	adapter, known := reviewer.Get(t.Reviewer)
	if known && adapter.AutoResolvesThread(t.FirstComment().Body) {
		return true
	}
	return !s.cfg.Reviewer(t.Reviewer).AutoResolveStale
}

// ReplyToComment posts a reply to a thread, routing on the ID variant:
// inline threads reply via the review-comment reply endpoint, PR-level
// reviews and issue comments get a conversation-tab comment.
func (s *TriageService) ReplyToComment(ctx context.Context, prNumber int, threadID, body, repo string) (string, error) {
	owner, name, err := resolveRepo(repo, s.local)
	if err != nil {
		return "", err
	}
	id, err := model.ParseThreadID(threadID)
	if err != nil {
		return "", err
	}

	switch id.Kind {
	case model.ThreadKindInline:
		_, _, databaseID, err := s.fetchFirstComment(ctx, id.Node)
		if err != nil {
			return "", err
		}
		if databaseID == 0 {
			return "", fmt.Errorf("could not find comment ID for thread %s", id.Node)
		}
		endpoint := fmt.Sprintf("/repos/%s/%s/pulls/%d/comments/%d/replies", owner, name, prNumber, databaseID)
		if err := s.transport.REST(ctx, "POST", endpoint, map[string]any{"body": body}, nil); err != nil {
			return "", fmt.Errorf("replying to thread %s on PR #%d: %w", id.Node, prNumber, err)
		}
	default:
		endpoint := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", owner, name, prNumber)
		if err := s.transport.REST(ctx, "POST", endpoint, map[string]any{"body": body}, nil); err != nil {
			return "", fmt.Errorf("commenting on PR #%d: %w", prNumber, err)
		}
	}

	s.logger.Info("replied to thread", "thread_id", id.Node, "pr_number", prNumber)
	return fmt.Sprintf("Replied to thread %s on PR #%d", id.Node, prNumber), nil
}

// Triage produces the actionable-only view across the given PRs: unresolved
// inline threads without an owner reply, classified into fix or reply by
// severity, plus threads where the owner noted a followup but never filed an
// issue. Sorted by severity, bug first.
func (s *TriageService) Triage(ctx context.Context, prNumbers []int, repo string, ownerLogins []string) (model.TriageResult, error) {
	if len(ownerLogins) == 0 {
		ownerLogins = s.cfg.OwnerLogins
	}
	owners := make(map[string]bool, len(ownerLogins))
	for _, login := range ownerLogins {
		owners[login] = true
	}

	result := model.TriageResult{Items: []model.TriageItem{}}
	for _, pr := range prNumbers {
		summary, err := s.threads.ListReviewComments(ctx, pr, repo, string(model.StatusUnresolved))
		if err != nil {
			return model.TriageResult{}, fmt.Errorf("triaging PR #%d: %w", pr, err)
		}

		for _, t := range summary.Threads {
			if t.IsPRReview {
				continue
			}

			item := model.TriageItem{
				ThreadID: t.ThreadID,
				PRNumber: t.PRNumber,
				File:     t.File,
				Line:     t.Line,
				Reviewer: t.Reviewer,
				Severity: classifySeverity(t),
				Title:    extractTitle(t.FirstComment().Body),
				IsStale:  t.IsStale,
				Snippet:  snippet(t.FirstComment().Body, 200),
			}

			// The followup check runs before and independently of the
			// owner-reply exclusion: a replied thread still surfaces when
			// the reply promised a followup but no issue was filed.
			switch {
			case hasFollowupWithoutIssue(t, owners):
				item.Action = model.ActionCreateIssue
				result.NeedsIssue++
			case hasOwnerReply(t, owners):
				continue
			case item.Severity == model.SeverityBug || item.Severity == model.SeverityFlagged:
				item.Action = model.ActionFix
				result.NeedsFix++
			default:
				item.Action = model.ActionReply
				result.NeedsReply++
			}
			result.Items = append(result.Items, item)
		}
	}

	sort.SliceStable(result.Items, func(i, j int) bool {
		return result.Items[i].Severity.Rank() > result.Items[j].Severity.Rank()
	})
	result.Total = len(result.Items)
	return result, nil
}

// CreateIssueFromThread creates a GitHub issue carrying the content of an
// inline review thread: location, reviewer, and the quoted comment body.
func (s *TriageService) CreateIssueFromThread(ctx context.Context, prNumber int, threadID, title string, labels []string, repo string) (model.CreateIssueResult, error) {
	owner, name, err := resolveRepo(repo, s.local)
	if err != nil {
		return model.CreateIssueResult{}, err
	}
	id, err := model.ParseThreadID(threadID)
	if err != nil {
		return model.CreateIssueResult{}, err
	}
	if id.Kind != model.ThreadKindInline {
		return model.CreateIssueResult{}, fmt.Errorf("%w: issues can only be created from inline threads", model.ErrUnsupportedThreadID)
	}

	var resp firstCommentResponse
	if err := s.transport.GraphQL(ctx, firstCommentQuery, map[string]any{"threadId": id.Node}, &resp); err != nil {
		return model.CreateIssueResult{}, fmt.Errorf("fetching thread %s: %w", id.Node, err)
	}
	if resp.Node == nil || len(resp.Node.Comments.Nodes) == 0 {
		return model.CreateIssueResult{}, fmt.Errorf("could not find comment content for thread %s", id.Node)
	}
	first := resp.Node.Comments.Nodes[0]

	body := buildIssueBody(prNumber, first.URL, first.Path, first.Line, first.Author.login(), first.Body)

	params := map[string]any{"title": title, "body": body}
	if len(labels) > 0 {
		params["labels"] = labels
	}

	var issue struct {
		Number  int    `json:"number"`
		HTMLURL string `json:"html_url"`
	}
	endpoint := fmt.Sprintf("/repos/%s/%s/issues", owner, name)
	if err := s.transport.REST(ctx, "POST", endpoint, params, &issue); err != nil {
		return model.CreateIssueResult{}, fmt.Errorf("creating issue in %s/%s: %w", owner, name, err)
	}

	s.logger.Info("created issue from thread",
		"thread_id", id.Node, "issue_number", issue.Number)
	return model.CreateIssueResult{
		IssueNumber: issue.Number,
		IssueURL:    issue.HTMLURL,
		Title:       title,
	}, nil
}

func buildIssueBody(prNumber int, commentURL, file string, line int, author, body string) string {
	parts := []string{fmt.Sprintf("From review comment on PR #%d", prNumber)}
	if commentURL != "" {
		parts[0] = fmt.Sprintf("From [review comment](%s) on PR #%d", commentURL, prNumber)
	}
	if file != "" {
		location := fmt.Sprintf("`%s`", file)
		if line > 0 {
			location += fmt.Sprintf(" line %d", line)
		}
		parts = append(parts, "**Location:** "+location)
	}
	quoted := "> " + strings.ReplaceAll(body, "\n", "\n> ")
	parts = append(parts, "**Reviewer:** "+author, "", quoted)
	return strings.Join(parts, "\n\n")
}

// classifySeverity classifies a thread's first comment through its
// reviewer's adapter; unknown reviewers classify as info.
func classifySeverity(t model.ReviewThread) model.Severity {
	adapter, ok := reviewer.Get(t.Reviewer)
	if !ok {
		return model.SeverityInfo
	}
	return adapter.ClassifySeverity(t.FirstComment().Body)
}

// hasOwnerReply reports whether any comment in the thread was authored by
// one of the owner identities.
func hasOwnerReply(t model.ReviewThread, owners map[string]bool) bool {
	for _, c := range t.Comments {
		if owners[c.Author] {
			return true
		}
	}
	return false
}

// hasFollowupWithoutIssue reports whether an owner reply contains followup
// language while no owner comment anywhere in the thread references an
// issue number. The phrase scan and the issue-reference scan are
// independent across all owner comments, so an issue reference in an
// unrelated earlier reply suppresses the flag; this can false-negative.
func hasFollowupWithoutIssue(t model.ReviewThread, owners map[string]bool) bool {
	followupSeen := false
	for _, c := range t.Comments {
		if !owners[c.Author] {
			continue
		}
		if issueRefPattern.MatchString(c.Body) {
			return false
		}
		lower := strings.ToLower(c.Body)
		for _, phrase := range followupPhrases {
			if strings.Contains(lower, phrase) {
				followupSeen = true
				break
			}
		}
	}
	return followupSeen
}

// extractTitle pulls the first bold span out of a comment body, minus any
// leading severity label. Returns "" when no bold span exists.
func extractTitle(body string) string {
	m := boldPattern.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(severityLabelPrefix.ReplaceAllString(m[1], ""))
}
