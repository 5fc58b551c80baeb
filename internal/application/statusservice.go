package application

import (
	"fmt"
	"sort"
	"time"

	"github.com/reviewbuddy/reviewbuddy/internal/domain/model"
	"github.com/reviewbuddy/reviewbuddy/internal/reviewer"
)

// computeReviewerStatuses classifies each known reviewer present on the PR
// as completed or pending by comparing its latest own-identity comment
// timestamp against the latest push. Reviewers that never posted are not
// reported; human replies inside an AI thread do not count as reviewer
// activity.
func computeReviewerStatuses(threads []model.ReviewThread, lastPush *time.Time) []model.ReviewerStatus {
	lastSeen := make(map[string]*time.Time)
	for _, t := range threads {
		adapter, known := reviewer.Get(t.Reviewer)
		if !known {
			continue
		}
		for _, c := range t.Comments {
			if !adapter.Identify(c.Author) || c.CreatedAt == nil {
				continue
			}
			if prev := lastSeen[t.Reviewer]; prev == nil || c.CreatedAt.After(*prev) {
				lastSeen[t.Reviewer] = c.CreatedAt
			}
		}
		if _, present := lastSeen[t.Reviewer]; !present {
			// Reviewer owns the thread but all its comments lack timestamps.
			lastSeen[t.Reviewer] = nil
		}
	}

	names := make([]string, 0, len(lastSeen))
	for name := range lastSeen {
		names = append(names, name)
	}
	sort.Strings(names)

	statuses := make([]model.ReviewerStatus, 0, len(names))
	for _, name := range names {
		statuses = append(statuses, classifyReviewer(name, lastSeen[name], lastPush))
	}
	return statuses
}

// classifyReviewer applies the completion rule for one reviewer. An unknown
// push time means completed: commit data being unavailable must not produce
// a false "still pending".
func classifyReviewer(name string, lastReview, lastPush *time.Time) model.ReviewerStatus {
	st := model.ReviewerStatus{
		Reviewer:     name,
		LastReviewAt: lastReview,
		LastPushAt:   lastPush,
	}

	switch {
	case lastPush == nil:
		st.Status = model.ReviewerCompleted
		st.Detail = "no push timestamp available, assuming review is current"
	case lastReview != nil && !lastReview.Before(*lastPush):
		st.Status = model.ReviewerCompleted
		st.Detail = fmt.Sprintf("reviewed at %s, after latest push", lastReview.Format(time.RFC3339))
	default:
		st.Status = model.ReviewerPending
		st.Detail = fmt.Sprintf("no review since latest push at %s", lastPush.Format(time.RFC3339))
	}
	return st
}
