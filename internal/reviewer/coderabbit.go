package reviewer

import (
	"strings"

	"github.com/reviewbuddy/reviewbuddy/internal/domain/model"
)

// CodeRabbit is the adapter for the CodeRabbit AI reviewer.
//
// CodeRabbit re-reviews automatically on push and resolves its own threads
// when it detects a fix, so bulk resolution never touches them. It has no
// severity marker vocabulary.
type CodeRabbit struct{}

func (CodeRabbit) Name() string { return "coderabbit" }

func (CodeRabbit) Identify(author string) bool {
	return strings.Contains(strings.ToLower(strings.TrimSpace(author)), "coderabbit")
}

func (CodeRabbit) ClassifySeverity(string) model.Severity { return model.SeverityInfo }

func (CodeRabbit) AutoResolvesComments() bool { return true }

func (CodeRabbit) AutoResolvesThread(string) bool { return true }

func (CodeRabbit) NeedsManualRereview() bool { return false }

func (CodeRabbit) RereviewTrigger(int, string, string) string { return "" }

func (CodeRabbit) DefaultAutoResolveStale() bool { return false }

func (CodeRabbit) DefaultResolveLevels() []model.Severity { return nil }
