package reviewer

import (
	"strings"

	"github.com/reviewbuddy/reviewbuddy/internal/domain/model"
)

// Devin is the adapter for the Devin AI reviewer.
//
// Devin re-reviews automatically on push and resolves its own bug and
// flagged threads once fixed; info (📝) threads are left for us. Its
// severity markers are emoji prefixes: 🔴 bug, 🚩 flagged, 🟡 warning,
// 📝 info. When a body carries multiple markers the most critical wins.
type Devin struct{}

func (Devin) Name() string { return "devin" }

func (Devin) Identify(author string) bool {
	return strings.Contains(strings.ToLower(strings.TrimSpace(author)), "devin")
}

func (Devin) ClassifySeverity(body string) model.Severity {
	switch {
	case strings.Contains(body, "🔴"):
		return model.SeverityBug
	case strings.Contains(body, "🚩"):
		return model.SeverityFlagged
	case strings.Contains(body, "🟡"):
		return model.SeverityWarning
	default:
		return model.SeverityInfo
	}
}

func (Devin) AutoResolvesComments() bool { return true }

// AutoResolvesThread reports true for everything except info threads, which
// Devin never closes on its own.
func (Devin) AutoResolvesThread(body string) bool {
	return !strings.Contains(body, "📝")
}

func (Devin) NeedsManualRereview() bool { return false }

func (Devin) RereviewTrigger(int, string, string) string { return "" }

func (Devin) DefaultAutoResolveStale() bool { return false }

func (Devin) DefaultResolveLevels() []model.Severity {
	return []model.Severity{model.SeverityInfo}
}
