package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/reviewbuddy/reviewbuddy/internal/domain/model"
)

// WaitService polls the reconciliation pipeline until every reviewer has
// caught up with the latest push, or a timeout elapses.
type WaitService struct {
	threads *ThreadService
	logger  *slog.Logger

	// sleep is swapped in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWaitService creates a WaitService.
func NewWaitService(threads *ThreadService) *WaitService {
	return &WaitService{
		threads: threads,
		logger:  slog.Default(),
		sleep:   sleepCtx,
	}
}

// WaitForReviews repeatedly reconciles the PR until no reviewer is pending.
// The final summary is returned either way; on timeout it may still report
// reviews in progress. The loop yields between polls and honors context
// cancellation.
func (s *WaitService) WaitForReviews(ctx context.Context, prNumber int, repo string, timeout, pollInterval time.Duration) (model.ReviewSummary, error) {
	if pollInterval <= 0 {
		return model.ReviewSummary{}, fmt.Errorf("poll interval must be positive, got %s", pollInterval)
	}
	if timeout < 0 {
		return model.ReviewSummary{}, fmt.Errorf("timeout must be non-negative, got %s", timeout)
	}

	elapsed := time.Duration(0)
	for {
		summary, err := s.threads.ListReviewComments(ctx, prNumber, repo, "")
		if err != nil {
			return model.ReviewSummary{}, err
		}

		if !summary.ReviewsInProgress {
			s.logger.Info("all reviews complete", "pr_number", prNumber)
			return summary, nil
		}

		if elapsed+pollInterval > timeout {
			s.logger.Warn("timed out waiting for reviews",
				"pr_number", prNumber, "elapsed", elapsed, "pending", pendingReviewers(summary))
			return summary, nil
		}

		s.logger.Info("reviews still in progress, waiting",
			"pr_number", prNumber, "poll_interval", pollInterval, "pending", pendingReviewers(summary))
		if err := s.sleep(ctx, pollInterval); err != nil {
			return summary, err
		}
		elapsed += pollInterval
	}
}

func pendingReviewers(summary model.ReviewSummary) []string {
	var pending []string
	for _, st := range summary.ReviewerStatuses {
		if st.Status == model.ReviewerPending {
			pending = append(pending, st.Reviewer)
		}
	}
	return pending
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
