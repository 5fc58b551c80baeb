package application

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewbuddy/reviewbuddy/internal/domain/model"
)

// openPRsFixture models the chain 73 <- 74 <- 80 plus the unrelated PR 99.
const openPRsFixture = `[
	{"number": 73, "title": "base work", "html_url": "https://github.com/o/r/pull/73", "head": {"ref": "feature-a"}, "base": {"ref": "main"}},
	{"number": 74, "title": "middle work", "html_url": "https://github.com/o/r/pull/74", "head": {"ref": "feature-b"}, "base": {"ref": "feature-a"}},
	{"number": 80, "title": "top work", "html_url": "https://github.com/o/r/pull/80", "head": {"ref": "feature-c"}, "base": {"ref": "feature-b"}},
	{"number": 99, "title": "unrelated", "html_url": "https://github.com/o/r/pull/99", "head": {"ref": "hotfix"}, "base": {"ref": "main"}}
]`

func openPRsTransport() *mockTransport {
	return &mockTransport{
		pagFn: func(endpoint string, params map[string]any, out any) error {
			return decodeJSON(openPRsFixture, out)
		},
	}
}

func stackNumbers(stack []model.StackPR) []int {
	nums := make([]int, len(stack))
	for i, pr := range stack {
		nums[i] = pr.PRNumber
	}
	return nums
}

func TestDiscoverStack_FullChainFromAnyMember(t *testing.T) {
	for _, start := range []int{73, 74, 80} {
		svc := NewStackService(openPRsTransport(), nil, testConfig())
		stack, err := svc.DiscoverStack(context.Background(), "o", "r", start)
		require.NoError(t, err, "starting from #%d", start)
		assert.Equal(t, []int{73, 74, 80}, stackNumbers(stack), "starting from #%d", start)
	}
}

func TestDiscoverStack_SinglePROnMain(t *testing.T) {
	svc := NewStackService(openPRsTransport(), nil, testConfig())
	stack, err := svc.DiscoverStack(context.Background(), "o", "r", 99)
	require.NoError(t, err)
	assert.Equal(t, []int{99}, stackNumbers(stack))
}

func TestDiscoverStack_UnknownPR(t *testing.T) {
	svc := NewStackService(openPRsTransport(), nil, testConfig())
	stack, err := svc.DiscoverStack(context.Background(), "o", "r", 500)
	require.NoError(t, err)
	assert.Empty(t, stack)
}

func TestDiscoverStack_CarriesBranchAndTitle(t *testing.T) {
	svc := NewStackService(openPRsTransport(), nil, testConfig())
	stack, err := svc.DiscoverStack(context.Background(), "o", "r", 73)
	require.NoError(t, err)
	require.Len(t, stack, 3)
	assert.Equal(t, "feature-a", stack[0].Branch)
	assert.Equal(t, "base work", stack[0].Title)
	assert.Equal(t, "https://github.com/o/r/pull/73", stack[0].URL)
}

func TestDiscoverStack_SessionCacheHit(t *testing.T) {
	tr := openPRsTransport()
	svc := NewStackService(tr, nil, testConfig())

	_, err := svc.DiscoverStack(context.Background(), "o", "r", 73)
	require.NoError(t, err)
	require.Len(t, tr.pagCalls, 1)

	// Second lookup for a member of the cached chain hits no API.
	stack, err := svc.DiscoverStack(context.Background(), "o", "r", 80)
	require.NoError(t, err)
	assert.Equal(t, []int{73, 74, 80}, stackNumbers(stack))
	assert.Len(t, tr.pagCalls, 1)
}

func TestDiscoverStack_CacheMissOnNonMember(t *testing.T) {
	tr := openPRsTransport()
	svc := NewStackService(tr, nil, testConfig())

	_, err := svc.DiscoverStack(context.Background(), "o", "r", 73)
	require.NoError(t, err)

	stack, err := svc.DiscoverStack(context.Background(), "o", "r", 99)
	require.NoError(t, err)
	assert.Equal(t, []int{99}, stackNumbers(stack))
	assert.Len(t, tr.pagCalls, 2)
}

func TestBuildStack_CycleTerminates(t *testing.T) {
	var cyclic []restPullRequest
	require.NoError(t, decodeJSON(`[
		{"number": 1, "head": {"ref": "a"}, "base": {"ref": "b"}},
		{"number": 2, "head": {"ref": "b"}, "base": {"ref": "a"}}
	]`, &cyclic))

	stack := buildStack(1, cyclic)
	assert.Equal(t, []int{2, 1}, stackNumbers(stack))
}

func TestFindPRForBranch(t *testing.T) {
	svc := NewStackService(openPRsTransport(), nil, testConfig())

	pr, err := svc.FindPRForBranch(context.Background(), "o", "r", "feature-b")
	require.NoError(t, err)
	assert.Equal(t, 74, pr)

	pr, err = svc.FindPRForBranch(context.Background(), "o", "r", "no-such-branch")
	require.NoError(t, err)
	assert.Zero(t, pr)
}

func summaryPage(nodes string) string {
	return fmt.Sprintf(`{
		"repository": {"pullRequest": {
			"title": "base work",
			"url": "https://github.com/o/r/pull/73",
			"reviewThreads": {
				"pageInfo": {"hasNextPage": false, "endCursor": ""},
				"nodes": [%s]
			}
		}}
	}`, nodes)
}

func TestSummarizeReviewStatus_Buckets(t *testing.T) {
	nodes := `
		{"isResolved": true, "isOutdated": false, "comments": {"nodes": [{"author": {"login": "devin-ai-integration[bot]"}, "body": "📝 note"}]}},
		{"isResolved": false, "isOutdated": true, "comments": {"nodes": [{"author": {"login": "devin-ai-integration[bot]"}, "body": "🔴 **Bug: bad**"}]}},
		{"isResolved": false, "isOutdated": false, "comments": {"nodes": [{"author": {"login": "devin-ai-integration[bot]"}, "body": "🚩 flagged thing"}]}},
		{"isResolved": false, "isOutdated": false, "comments": {"nodes": [{"author": {"login": "devin-ai-integration[bot]"}, "body": "🟡 could be better"}]}},
		{"isResolved": false, "isOutdated": false, "comments": {"nodes": [{"author": {"login": "devin-ai-integration[bot]"}, "body": "plain remark"}]}},
		{"isResolved": false, "isOutdated": false, "comments": {"nodes": []}}`
	tr := &mockTransport{
		graphqlFn: func(_ string, _ map[string]any, out any) error {
			return decodeJSON(summaryPage(nodes), out)
		},
	}

	svc := NewStackService(tr, nil, testConfig())
	result, err := svc.SummarizeReviewStatus(context.Background(), "o", "r", []int{73}, 0)
	require.NoError(t, err)
	require.Len(t, result.PRs, 1)

	pr := result.PRs[0]
	assert.Equal(t, 73, pr.PRNumber)
	assert.Equal(t, "base work", pr.Title)
	assert.Equal(t, 1, pr.Resolved)
	assert.Equal(t, 4, pr.Unresolved)
	assert.Equal(t, 1, pr.Stale)
	assert.Equal(t, 1, pr.Bugs)
	assert.Equal(t, 1, pr.Flagged)
	assert.Equal(t, 1, pr.Warnings)
	assert.Equal(t, 1, pr.Info)
	assert.Equal(t, 4, result.TotalUnresolved)
}

func TestSummarizeReviewStatus_DisabledReviewerSkipped(t *testing.T) {
	nodes := `{"isResolved": false, "isOutdated": false, "comments": {"nodes": [{"author": {"login": "devin-ai-integration[bot]"}, "body": "🔴 bug"}]}}`
	tr := &mockTransport{
		graphqlFn: func(_ string, _ map[string]any, out any) error {
			return decodeJSON(summaryPage(nodes), out)
		},
	}

	cfg := testConfig()
	rc := cfg.Reviewers["devin"]
	rc.Enabled = false
	cfg.Reviewers["devin"] = rc

	svc := NewStackService(tr, nil, cfg)
	result, err := svc.SummarizeReviewStatus(context.Background(), "o", "r", []int{73}, 0)
	require.NoError(t, err)
	assert.Zero(t, result.PRs[0].Unresolved)
	assert.Zero(t, result.PRs[0].Resolved)
}

func TestSummarize_AutoDiscoversFromBranch(t *testing.T) {
	tr := &mockTransport{
		pagFn: func(endpoint string, _ map[string]any, out any) error {
			return decodeJSON(openPRsFixture, out)
		},
		graphqlFn: func(_ string, _ map[string]any, out any) error {
			return decodeJSON(summaryPage(""), out)
		},
	}

	local := &mockLocalRepo{repo: "o/r", branch: "feature-b"}
	svc := NewStackService(tr, local, testConfig())
	result, err := svc.Summarize(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Len(t, result.PRs, 3, "whole stack summarized from the current branch")
}

func TestSummarize_NoPRForBranch(t *testing.T) {
	local := &mockLocalRepo{repo: "o/r", branch: "orphan-branch"}
	svc := NewStackService(openPRsTransport(), local, testConfig())
	_, err := svc.Summarize(context.Background(), nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no open PR found")
}
