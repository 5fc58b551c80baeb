package reviewer

import (
	"strings"

	"github.com/reviewbuddy/reviewbuddy/internal/domain/model"
)

// unblockedLogins are the exact usernames Unblocked posts under.
var unblockedLogins = map[string]struct{}{
	"unblocked[bot]": {},
	"unblocked-bot":  {},
	"unblocked":      {},
}

// Unblocked is the adapter for the Unblocked AI reviewer.
//
// Unblocked does not resolve its own threads and does not re-review on push;
// it needs an explicit trigger comment. It has no severity marker vocabulary,
// so every comment classifies as info.
type Unblocked struct{}

func (Unblocked) Name() string { return "unblocked" }

func (Unblocked) Identify(author string) bool {
	_, ok := unblockedLogins[strings.ToLower(strings.TrimSpace(author))]
	return ok
}

func (Unblocked) ClassifySeverity(string) model.Severity { return model.SeverityInfo }

func (Unblocked) AutoResolvesComments() bool { return false }

func (Unblocked) AutoResolvesThread(string) bool { return false }

func (Unblocked) NeedsManualRereview() bool { return true }

func (Unblocked) RereviewTrigger(int, string, string) string {
	return "@unblocked please re-review"
}

func (Unblocked) DefaultAutoResolveStale() bool { return true }

func (Unblocked) DefaultResolveLevels() []model.Severity { return model.AllSeverities() }
