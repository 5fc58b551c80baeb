package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/reviewbuddy/reviewbuddy/internal/domain/model"
	"github.com/reviewbuddy/reviewbuddy/internal/domain/port/driven"
	"github.com/reviewbuddy/reviewbuddy/internal/reviewer"
)

// RereviewService triggers re-reviews after a fix push. Reviewers that need
// a manual trigger get their magic comment posted; reviewers that re-review
// automatically on push are reported as such with no action taken.
type RereviewService struct {
	transport driven.Transport
	local     driven.LocalRepo
	logger    *slog.Logger
}

// NewRereviewService creates a RereviewService.
func NewRereviewService(transport driven.Transport, local driven.LocalRepo) *RereviewService {
	return &RereviewService{
		transport: transport,
		local:     local,
		logger:    slog.Default(),
	}
}

// RequestRereview triggers a re-review on a PR. With a reviewer name it
// targets that reviewer only; otherwise every manually-triggered reviewer
// is triggered.
func (s *RereviewService) RequestRereview(ctx context.Context, prNumber int, reviewerName, repo string) (model.RereviewResult, error) {
	owner, name, err := resolveRepo(repo, s.local)
	if err != nil {
		return model.RereviewResult{}, err
	}

	adapters := reviewer.Registry()
	if reviewerName != "" {
		adapter, ok := reviewer.Get(reviewerName)
		if !ok {
			known := make([]string, 0, len(adapters))
			for _, a := range adapters {
				known = append(known, a.Name())
			}
			return model.RereviewResult{}, fmt.Errorf("unknown reviewer %q (known: %s)", reviewerName, strings.Join(known, ", "))
		}
		adapters = []reviewer.Adapter{adapter}
	}

	result := model.RereviewResult{Triggered: []string{}, AutoTriggers: []string{}}
	for _, adapter := range adapters {
		if !adapter.NeedsManualRereview() {
			result.AutoTriggers = append(result.AutoTriggers, adapter.Name())
			continue
		}
		trigger := adapter.RereviewTrigger(prNumber, owner, name)
		if trigger == "" {
			continue
		}

		endpoint := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", owner, name, prNumber)
		if err := s.transport.REST(ctx, "POST", endpoint, map[string]any{"body": trigger}, nil); err != nil {
			return model.RereviewResult{}, fmt.Errorf("triggering %s re-review on PR #%d: %w", adapter.Name(), prNumber, err)
		}
		result.Triggered = append(result.Triggered, adapter.Name())
		s.logger.Info("triggered re-review", "reviewer", adapter.Name(), "pr_number", prNumber)
	}
	return result, nil
}
