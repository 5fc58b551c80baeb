package application

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitTransport serves a PR whose devin thread timestamp starts behind the
// latest push, then jumps ahead of it after flipCount polls.
func waitTransport(flipAfter int) *mockTransport {
	polls := 0
	return &mockTransport{
		graphqlFn: func(_ string, _ map[string]any, out any) error {
			reviewedAt := "2026-08-20T09:00:00Z" // behind the push
			if polls >= flipAfter {
				reviewedAt = "2026-08-20T11:00:00Z"
			}
			polls++
			node := `{
				"id": "PRRT_x",
				"isResolved": false,
				"isOutdated": false,
				"comments": {"nodes": [{"author": {"login": "devin-ai-integration[bot]"}, "body": "issue", "createdAt": "` + reviewedAt + `", "path": "a.go", "line": 1, "url": ""}]}
			}`
			return decodeJSON(threadsPage(false, "", node), out)
		},
		pagFn: func(endpoint string, _ map[string]any, out any) error {
			if strings.HasSuffix(endpoint, "/commits") {
				return decodeJSON(`[{"commit": {"committer": {"date": "2026-08-20T10:00:00Z"}}}]`, out)
			}
			return decodeJSON("[]", out)
		},
	}
}

func newTestWaitService(tr *mockTransport) (*WaitService, *[]time.Duration) {
	var slept []time.Duration
	svc := NewWaitService(NewThreadService(tr, &mockLocalRepo{repo: "o/r"}, nil, testConfig()))
	svc.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return svc, &slept
}

func TestWaitForReviews_CompletesImmediately(t *testing.T) {
	svc, slept := newTestWaitService(waitTransport(0))

	summary, err := svc.WaitForReviews(context.Background(), 7, "o/r", time.Minute, time.Second)
	require.NoError(t, err)
	assert.False(t, summary.ReviewsInProgress)
	assert.Empty(t, *slept)
}

func TestWaitForReviews_PollsUntilComplete(t *testing.T) {
	svc, slept := newTestWaitService(waitTransport(2))

	summary, err := svc.WaitForReviews(context.Background(), 7, "o/r", time.Minute, 5*time.Second)
	require.NoError(t, err)
	assert.False(t, summary.ReviewsInProgress)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, *slept)
}

// The summary is returned on timeout, not an error: the caller decides what
// a still-pending reviewer means.
func TestWaitForReviews_TimeoutReturnsSummary(t *testing.T) {
	svc, slept := newTestWaitService(waitTransport(100))

	summary, err := svc.WaitForReviews(context.Background(), 7, "o/r", 12*time.Second, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, summary.ReviewsInProgress)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, *slept)
}

func TestWaitForReviews_InvalidIntervals(t *testing.T) {
	svc, _ := newTestWaitService(waitTransport(0))

	_, err := svc.WaitForReviews(context.Background(), 7, "o/r", time.Minute, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll interval")

	_, err = svc.WaitForReviews(context.Background(), 7, "o/r", -time.Second, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestWaitForReviews_CancelledDuringSleep(t *testing.T) {
	tr := waitTransport(100)
	svc := NewWaitService(NewThreadService(tr, &mockLocalRepo{repo: "o/r"}, nil, testConfig()))
	svc.sleep = func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	}

	summary, err := svc.WaitForReviews(context.Background(), 7, "o/r", time.Minute, time.Second)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, summary.ReviewsInProgress, "partial summary still returned")
}
