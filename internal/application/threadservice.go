package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/reviewbuddy/reviewbuddy/internal/config"
	"github.com/reviewbuddy/reviewbuddy/internal/domain/model"
	"github.com/reviewbuddy/reviewbuddy/internal/domain/port/driven"
	"github.com/reviewbuddy/reviewbuddy/internal/reviewer"
)

// threadsQuery fetches inline review threads for a PR, cursor-paginated.
const threadsQuery = `query($owner: String!, $repo: String!, $pr: Int!, $cursor: String) {
	repository(owner: $owner, name: $repo) {
		pullRequest(number: $pr) {
			reviewThreads(first: 100, after: $cursor) {
				pageInfo { hasNextPage endCursor }
				nodes {
					id
					isResolved
					isOutdated
					comments(first: 50) {
						nodes {
							author { login }
							body
							createdAt
							path
							line
							url
						}
					}
				}
			}
		}
	}
}`

// threadsResponse is the data shape of threadsQuery.
type threadsResponse struct {
	Repository struct {
		PullRequest *struct {
			ReviewThreads struct {
				PageInfo struct {
					HasNextPage bool   `json:"hasNextPage"`
					EndCursor   string `json:"endCursor"`
				} `json:"pageInfo"`
				Nodes []threadNode `json:"nodes"`
			} `json:"reviewThreads"`
		} `json:"pullRequest"`
	} `json:"repository"`
}

type threadNode struct {
	ID         string `json:"id"`
	IsResolved bool   `json:"isResolved"`
	IsOutdated bool   `json:"isOutdated"`
	Comments   struct {
		Nodes []commentNode `json:"nodes"`
	} `json:"comments"`
}

type commentNode struct {
	Author    *actor     `json:"author"`
	Body      string     `json:"body"`
	CreatedAt *time.Time `json:"createdAt"`
	Path      string     `json:"path"`
	Line      int        `json:"line"`
	URL       string     `json:"url"`
}

// actor is a GraphQL actor; nil for ghost/deleted accounts.
type actor struct {
	Login string `json:"login"`
}

func (a *actor) login() string {
	if a == nil || a.Login == "" {
		return reviewer.UnknownReviewer
	}
	return a.Login
}

// restReview is a PR-level review object from the REST API.
type restReview struct {
	NodeID      string     `json:"node_id"`
	User        *restUser  `json:"user"`
	Body        string     `json:"body"`
	State       string     `json:"state"`
	SubmittedAt *time.Time `json:"submitted_at"`
	HTMLURL     string     `json:"html_url"`
}

// restComment is an issue comment object from the REST API.
type restComment struct {
	NodeID    string     `json:"node_id"`
	User      *restUser  `json:"user"`
	Body      string     `json:"body"`
	CreatedAt *time.Time `json:"created_at"`
	HTMLURL   string     `json:"html_url"`
}

type restUser struct {
	Login string `json:"login"`
	Type  string `json:"type"`
}

// restCommit is the slice of a PR commit object needed for push timestamps.
type restCommit struct {
	Commit struct {
		Committer struct {
			Date *time.Time `json:"date"`
		} `json:"committer"`
	} `json:"commit"`
}

// reviewStateMap maps GitHub review states to thread status. APPROVED and
// DISMISSED reviews carry no pending request.
var reviewStateMap = map[string]model.CommentStatus{
	"APPROVED":          model.StatusResolved,
	"DISMISSED":         model.StatusResolved,
	"CHANGES_REQUESTED": model.StatusUnresolved,
	"COMMENTED":         model.StatusUnresolved,
}

// ThreadService reconciles the three GitHub comment sources into the unified
// thread list and derives per-reviewer completion status from it.
type ThreadService struct {
	transport driven.Transport
	local     driven.LocalRepo
	stacks    *StackService
	cfg       *config.Config
	logger    *slog.Logger
}

// NewThreadService creates a ThreadService. stacks may be nil, in which case
// summaries carry an empty stack.
func NewThreadService(transport driven.Transport, local driven.LocalRepo, stacks *StackService, cfg *config.Config) *ThreadService {
	return &ThreadService{
		transport: transport,
		local:     local,
		stacks:    stacks,
		cfg:       cfg,
		logger:    slog.Default(),
	}
}

// ListReviewComments produces the full reconciliation result for one PR:
// threads from all three sources, reviewer completion statuses, and the
// discovered stack. statusFilter narrows threads to "resolved" or
// "unresolved"; empty means all.
func (s *ThreadService) ListReviewComments(ctx context.Context, prNumber int, repo, statusFilter string) (model.ReviewSummary, error) {
	owner, name, err := resolveRepo(repo, s.local)
	if err != nil {
		return model.ReviewSummary{}, err
	}

	threads, err := s.fetchInlineThreads(ctx, owner, name, prNumber)
	if err != nil {
		return model.ReviewSummary{}, err
	}

	prReviews, err := s.fetchPRReviews(ctx, owner, name, prNumber)
	if err != nil {
		return model.ReviewSummary{}, err
	}
	threads = append(threads, prReviews...)

	issueComments, err := s.fetchBotIssueComments(ctx, owner, name, prNumber)
	if err != nil {
		return model.ReviewSummary{}, err
	}
	threads = append(threads, issueComments...)

	threads = s.filterDisabled(threads)

	lastPush, err := s.fetchLastPush(ctx, owner, name, prNumber)
	if err != nil {
		return model.ReviewSummary{}, err
	}
	statuses := computeReviewerStatuses(threads, lastPush)

	// Stack discovery is best-effort: a failure here must not discard the
	// threads we already fetched.
	var stack []model.StackPR
	if s.stacks != nil {
		stack, err = s.stacks.DiscoverStack(ctx, owner, name, prNumber)
		if err != nil {
			s.logger.Warn("stack discovery failed, continuing without stack",
				"repo", owner+"/"+name, "pr_number", prNumber, "error", err)
			stack = nil
		}
	}

	if statusFilter != "" {
		target := model.CommentStatus(statusFilter)
		filtered := threads[:0]
		for _, t := range threads {
			if t.Status == target {
				filtered = append(filtered, t)
			}
		}
		threads = filtered
	}

	inProgress := false
	for _, st := range statuses {
		if st.Status == model.ReviewerPending {
			inProgress = true
			break
		}
	}

	s.logger.Info("reconciled review threads",
		"repo", owner+"/"+name, "pr_number", prNumber, "threads", len(threads))

	return model.ReviewSummary{
		Threads:           threads,
		ReviewerStatuses:  statuses,
		Stack:             stack,
		ReviewsInProgress: inProgress,
	}, nil
}

// ListStackReviewComments runs ListReviewComments for each PR, collapsing N
// tool calls into one for the stacked-PR workflow.
func (s *ThreadService) ListStackReviewComments(ctx context.Context, prNumbers []int, repo, statusFilter string) (map[int]model.ReviewSummary, error) {
	results := make(map[int]model.ReviewSummary, len(prNumbers))
	for _, pr := range prNumbers {
		summary, err := s.ListReviewComments(ctx, pr, repo, statusFilter)
		if err != nil {
			return nil, fmt.Errorf("listing threads for PR #%d: %w", pr, err)
		}
		results[pr] = summary
	}
	return results, nil
}

// fetchInlineThreads pages through the GraphQL reviewThreads connection.
// A page reporting hasNextPage with an empty cursor terminates the loop
// rather than refetching the first page forever.
func (s *ThreadService) fetchInlineThreads(ctx context.Context, owner, repo string, prNumber int) ([]model.ReviewThread, error) {
	var nodes []threadNode
	cursor := ""
	for page := 1; ; page++ {
		variables := map[string]any{"owner": owner, "repo": repo, "pr": prNumber}
		if cursor != "" {
			variables["cursor"] = cursor
		}

		var resp threadsResponse
		if err := s.transport.GraphQL(ctx, threadsQuery, variables, &resp); err != nil {
			return nil, fmt.Errorf("fetching review threads for %s/%s#%d (page %d): %w", owner, repo, prNumber, page, err)
		}
		pr := resp.Repository.PullRequest
		if pr == nil {
			return nil, nil
		}
		nodes = append(nodes, pr.ReviewThreads.Nodes...)

		info := pr.ReviewThreads.PageInfo
		if !info.HasNextPage || info.EndCursor == "" {
			break
		}
		cursor = info.EndCursor
	}

	threads := make([]model.ReviewThread, 0, len(nodes))
	for _, node := range nodes {
		if len(node.Comments.Nodes) == 0 {
			continue
		}
		first := node.Comments.Nodes[0]

		comments := make([]model.ReviewComment, 0, len(node.Comments.Nodes))
		for _, c := range node.Comments.Nodes {
			comments = append(comments, model.ReviewComment{
				Author:    c.Author.login(),
				Body:      sanitizeBody(c.Body),
				CreatedAt: c.CreatedAt,
				URL:       c.URL,
			})
		}

		status := model.StatusUnresolved
		if node.IsResolved {
			status = model.StatusResolved
		}

		threads = append(threads, model.ReviewThread{
			ThreadID: node.ID,
			PRNumber: prNumber,
			Status:   status,
			File:     first.Path,
			Line:     first.Line,
			Reviewer: reviewer.Identify(first.Author.login()),
			Comments: comments,
			IsStale:  node.IsOutdated,
		})
	}
	return threads, nil
}

// fetchPRReviews returns PR-level review summaries posted by known AI
// reviewers (e.g. a "3 potential issues" verdict on the conversation tab).
// Human and CI reviews are dropped, as are empty bodies.
func (s *ThreadService) fetchPRReviews(ctx context.Context, owner, repo string, prNumber int) ([]model.ReviewThread, error) {
	var reviews []restReview
	endpoint := fmt.Sprintf("/repos/%s/%s/pulls/%d/reviews", owner, repo, prNumber)
	if err := s.transport.RESTPaginated(ctx, endpoint, nil, &reviews); err != nil {
		return nil, fmt.Errorf("fetching PR reviews for %s/%s#%d: %w", owner, repo, prNumber, err)
	}

	var threads []model.ReviewThread
	for _, rev := range reviews {
		login := reviewer.UnknownReviewer
		if rev.User != nil && rev.User.Login != "" {
			login = rev.User.Login
		}
		name := reviewer.Identify(login)
		if name == reviewer.UnknownReviewer {
			continue
		}

		body := strings.TrimSpace(rev.Body)
		if body == "" {
			continue
		}

		status, ok := reviewStateMap[rev.State]
		if !ok {
			status = model.StatusUnresolved
		}

		threads = append(threads, model.ReviewThread{
			ThreadID: rev.NodeID,
			PRNumber: prNumber,
			Status:   status,
			Reviewer: name,
			Comments: []model.ReviewComment{{
				Author:    login,
				Body:      sanitizeBody(body),
				CreatedAt: rev.SubmittedAt,
				URL:       rev.HTMLURL,
			}},
			IsPRReview: true,
		})
	}
	return threads, nil
}

// fetchBotIssueComments returns conversation-tab comments posted by bot
// accounts. Unrecognized bots keep their raw login as a pseudo-reviewer
// label so a coverage bot shows up distinctly from "unknown".
func (s *ThreadService) fetchBotIssueComments(ctx context.Context, owner, repo string, prNumber int) ([]model.ReviewThread, error) {
	var comments []restComment
	endpoint := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", owner, repo, prNumber)
	if err := s.transport.RESTPaginated(ctx, endpoint, nil, &comments); err != nil {
		return nil, fmt.Errorf("fetching issue comments for %s/%s#%d: %w", owner, repo, prNumber, err)
	}

	var threads []model.ReviewThread
	for _, c := range comments {
		if c.User == nil || !isBotAccount(c.User) {
			continue
		}
		body := strings.TrimSpace(c.Body)
		if body == "" {
			continue
		}

		name := reviewer.Identify(c.User.Login)
		if name == reviewer.UnknownReviewer {
			name = c.User.Login
		}

		threads = append(threads, model.ReviewThread{
			ThreadID: c.NodeID,
			PRNumber: prNumber,
			Status:   model.StatusUnresolved,
			Reviewer: name,
			Comments: []model.ReviewComment{{
				Author:    c.User.Login,
				Body:      sanitizeBody(body),
				CreatedAt: c.CreatedAt,
				URL:       c.HTMLURL,
			}},
			IsPRReview: true,
		})
	}
	return threads, nil
}

func isBotAccount(u *restUser) bool {
	return u.Type == "Bot" || strings.HasSuffix(u.Login, "[bot]")
}

// fetchLastPush returns the committer timestamp of the PR's last commit.
// The commit list is paginated; on a PR with more than 100 commits the last
// page, not the first, holds the latest push.
func (s *ThreadService) fetchLastPush(ctx context.Context, owner, repo string, prNumber int) (*time.Time, error) {
	var commits []restCommit
	endpoint := fmt.Sprintf("/repos/%s/%s/pulls/%d/commits", owner, repo, prNumber)
	if err := s.transport.RESTPaginated(ctx, endpoint, nil, &commits); err != nil {
		return nil, fmt.Errorf("fetching commits for %s/%s#%d: %w", owner, repo, prNumber, err)
	}
	if len(commits) == 0 {
		return nil, nil
	}
	return commits[len(commits)-1].Commit.Committer.Date, nil
}

// filterDisabled drops threads from reviewers disabled in policy config.
func (s *ThreadService) filterDisabled(threads []model.ReviewThread) []model.ReviewThread {
	kept := threads[:0]
	for _, t := range threads {
		if s.cfg.Reviewer(t.Reviewer).Enabled {
			kept = append(kept, t)
		}
	}
	return kept
}
