package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/reviewbuddy/reviewbuddy/internal/config"
	"github.com/reviewbuddy/reviewbuddy/internal/domain/model"
	"github.com/reviewbuddy/reviewbuddy/internal/domain/port/driven"
	"github.com/reviewbuddy/reviewbuddy/internal/reviewer"
)

// restPullRequest is the slice of an open PR needed for stack discovery.
type restPullRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	HTMLURL string `json:"html_url"`
	Head    struct {
		Ref string `json:"ref"`
	} `json:"head"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
}

// summaryQuery is the lightweight per-thread query for status counts: only
// the first comment per thread, no full history.
const summaryQuery = `query($owner: String!, $repo: String!, $pr: Int!, $cursor: String) {
	repository(owner: $owner, name: $repo) {
		pullRequest(number: $pr) {
			title
			url
			reviewThreads(first: 100, after: $cursor) {
				pageInfo { hasNextPage endCursor }
				nodes {
					isResolved
					isOutdated
					comments(first: 1) {
						nodes {
							author { login }
							body
						}
					}
				}
			}
		}
	}
}`

type summaryResponse struct {
	Repository struct {
		PullRequest *struct {
			Title         string `json:"title"`
			URL           string `json:"url"`
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

// StackService discovers chains of stacked PRs from branch head/base
// relationships and summarizes review status across a stack.
type StackService struct {
	transport driven.Transport
	local     driven.LocalRepo
	cfg       *config.Config
	logger    *slog.Logger

	// mu guards lastStack, the session-scoped stack cache. Validity is a
	// membership check on the requested PR, not a TTL: a stack changes when
	// PRs merge, and a merged-away stack must never be served from cache.
	mu        sync.Mutex
	lastStack []model.StackPR
}

// NewStackService creates a StackService.
func NewStackService(transport driven.Transport, local driven.LocalRepo, cfg *config.Config) *StackService {
	return &StackService{
		transport: transport,
		local:     local,
		cfg:       cfg,
		logger:    slog.Default(),
	}
}

// Discover resolves the repo slug and discovers the stack containing
// prNumber. This is the entry point for tool callers; DiscoverStack is the
// resolved-slug core used internally.
func (s *StackService) Discover(ctx context.Context, prNumber int, repo string) ([]model.StackPR, error) {
	owner, name, err := resolveRepo(repo, s.local)
	if err != nil {
		return nil, err
	}
	return s.DiscoverStack(ctx, owner, name, prNumber)
}

// Summarize resolves the repo slug and summarizes review status across the
// given PRs. With no PR numbers, the stack is auto-discovered from the
// current branch's open PR.
func (s *StackService) Summarize(ctx context.Context, prNumbers []int, repo string) (model.StackStatusResult, error) {
	owner, name, err := resolveRepo(repo, s.local)
	if err != nil {
		return model.StackStatusResult{}, err
	}

	currentPR := 0
	if len(prNumbers) == 0 {
		if s.local == nil {
			return model.StackStatusResult{}, fmt.Errorf("no PR numbers given and no local repository to detect the current branch from")
		}
		branch, err := s.local.CurrentBranch()
		if err != nil {
			return model.StackStatusResult{}, fmt.Errorf("detecting current branch: %w", err)
		}
		currentPR, err = s.FindPRForBranch(ctx, owner, name, branch)
		if err != nil {
			return model.StackStatusResult{}, err
		}
		if currentPR == 0 {
			return model.StackStatusResult{}, fmt.Errorf("no open PR found for branch %q", branch)
		}
	}
	return s.SummarizeReviewStatus(ctx, owner, name, prNumbers, currentPR)
}

// DiscoverStack returns the ordered bottom-to-top chain of stacked PRs
// containing prNumber. A PR absent from the open-PR list yields an empty
// stack. The result is cached per session; the cache is valid only while
// the requested PR is still a member of the cached chain.
func (s *StackService) DiscoverStack(ctx context.Context, owner, repo string, prNumber int) ([]model.StackPR, error) {
	s.mu.Lock()
	for _, pr := range s.lastStack {
		if pr.PRNumber == prNumber {
			cached := make([]model.StackPR, len(s.lastStack))
			copy(cached, s.lastStack)
			s.mu.Unlock()
			return cached, nil
		}
	}
	s.mu.Unlock()

	openPRs, err := s.fetchOpenPRs(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	stack := buildStack(prNumber, openPRs)
	if len(stack) > 0 {
		s.mu.Lock()
		s.lastStack = stack
		s.mu.Unlock()
	}
	if len(stack) > 1 {
		nums := make([]int, len(stack))
		for i, pr := range stack {
			nums[i] = pr.PRNumber
		}
		s.logger.Info("discovered PR stack", "repo", owner+"/"+repo, "prs", nums)
	}
	return stack, nil
}

// FindPRForBranch returns the open PR whose head branch matches, or 0.
func (s *StackService) FindPRForBranch(ctx context.Context, owner, repo, branch string) (int, error) {
	openPRs, err := s.fetchOpenPRs(ctx, owner, repo)
	if err != nil {
		return 0, err
	}
	for _, pr := range openPRs {
		if pr.Head.Ref == branch {
			return pr.Number, nil
		}
	}
	return 0, nil
}

func (s *StackService) fetchOpenPRs(ctx context.Context, owner, repo string) ([]restPullRequest, error) {
	var prs []restPullRequest
	endpoint := fmt.Sprintf("/repos/%s/%s/pulls", owner, repo)
	if err := s.transport.RESTPaginated(ctx, endpoint, map[string]any{"state": "open"}, &prs); err != nil {
		return nil, fmt.Errorf("fetching open PRs for %s/%s: %w", owner, repo, err)
	}
	return prs, nil
}

// buildStack walks the branch graph in both directions from the starting PR.
// Down: repeatedly follow the PR whose head branch is the current base. Up:
// follow the first not-yet-collected PR based on the current head (first in
// list order when several PRs share a base). Collected membership doubles as
// the cycle guard.
func buildStack(prNumber int, openPRs []restPullRequest) []model.StackPR {
	byHead := make(map[string]restPullRequest)
	byBase := make(map[string][]restPullRequest)
	byNumber := make(map[int]restPullRequest)
	for _, pr := range openPRs {
		byHead[pr.Head.Ref] = pr
		byBase[pr.Base.Ref] = append(byBase[pr.Base.Ref], pr)
		byNumber[pr.Number] = pr
	}

	current, ok := byNumber[prNumber]
	if !ok {
		return nil
	}

	collected := map[int]bool{prNumber: true}

	var down []restPullRequest
	for pr := current; ; {
		parent, found := byHead[pr.Base.Ref]
		if !found || collected[parent.Number] {
			break
		}
		collected[parent.Number] = true
		down = append(down, parent)
		pr = parent
	}

	var up []restPullRequest
	for pr := current; ; {
		var child *restPullRequest
		for _, c := range byBase[pr.Head.Ref] {
			if !collected[c.Number] {
				child = &c
				break
			}
		}
		if child == nil {
			break
		}
		collected[child.Number] = true
		up = append(up, *child)
		pr = *child
	}

	ordered := make([]restPullRequest, 0, len(down)+1+len(up))
	for i := len(down) - 1; i >= 0; i-- {
		ordered = append(ordered, down[i])
	}
	ordered = append(ordered, current)
	ordered = append(ordered, up...)

	stack := make([]model.StackPR, len(ordered))
	for i, pr := range ordered {
		stack[i] = model.StackPR{
			PRNumber: pr.Number,
			Branch:   pr.Head.Ref,
			Title:    pr.Title,
			URL:      pr.HTMLURL,
		}
	}
	return stack
}

// SummarizeReviewStatus produces the lightweight per-PR status counts for a
// stack. When prNumbers is empty, the stack containing currentPR is
// discovered first.
func (s *StackService) SummarizeReviewStatus(ctx context.Context, owner, repo string, prNumbers []int, currentPR int) (model.StackStatusResult, error) {
	if len(prNumbers) == 0 && currentPR > 0 {
		stack, err := s.DiscoverStack(ctx, owner, repo, currentPR)
		if err != nil {
			return model.StackStatusResult{}, err
		}
		for _, pr := range stack {
			prNumbers = append(prNumbers, pr.PRNumber)
		}
	}
	if len(prNumbers) == 0 {
		return model.StackStatusResult{}, fmt.Errorf("no PRs to summarize")
	}

	result := model.StackStatusResult{PRs: make([]model.PRStatusSummary, 0, len(prNumbers))}
	for _, pr := range prNumbers {
		summary, err := s.summarizePR(ctx, owner, repo, pr)
		if err != nil {
			return model.StackStatusResult{}, err
		}
		result.PRs = append(result.PRs, summary)
		result.TotalUnresolved += summary.Unresolved
	}
	return result, nil
}

func (s *StackService) summarizePR(ctx context.Context, owner, repo string, prNumber int) (model.PRStatusSummary, error) {
	summary := model.PRStatusSummary{PRNumber: prNumber}

	cursor := ""
	for page := 1; ; page++ {
		variables := map[string]any{"owner": owner, "repo": repo, "pr": prNumber}
		if cursor != "" {
			variables["cursor"] = cursor
		}

		var resp summaryResponse
		if err := s.transport.GraphQL(ctx, summaryQuery, variables, &resp); err != nil {
			return model.PRStatusSummary{}, fmt.Errorf("summarizing %s/%s#%d (page %d): %w", owner, repo, prNumber, page, err)
		}
		pr := resp.Repository.PullRequest
		if pr == nil {
			return summary, nil
		}
		summary.Title = pr.Title
		summary.URL = pr.URL

		for _, node := range pr.ReviewThreads.Nodes {
			s.countThread(&summary, node)
		}

		info := pr.ReviewThreads.PageInfo
		if !info.HasNextPage || info.EndCursor == "" {
			break
		}
		cursor = info.EndCursor
	}
	return summary, nil
}

// countThread buckets one thread node into the summary counters, skipping
// threads with no comments or from disabled reviewers.
func (s *StackService) countThread(summary *model.PRStatusSummary, node threadNode) {
	if len(node.Comments.Nodes) == 0 {
		return
	}
	first := node.Comments.Nodes[0]
	name := reviewer.Identify(first.Author.login())
	if !s.cfg.Reviewer(name).Enabled {
		return
	}

	if node.IsResolved {
		summary.Resolved++
		return
	}

	summary.Unresolved++
	if node.IsOutdated {
		summary.Stale++
	}

	severity := model.SeverityInfo
	if adapter, ok := reviewer.Get(name); ok {
		severity = adapter.ClassifySeverity(first.Body)
	}
	switch severity {
	case model.SeverityBug:
		summary.Bugs++
	case model.SeverityFlagged:
		summary.Flagged++
	case model.SeverityWarning:
		summary.Warnings++
	default:
		summary.Info++
	}
}
