package model

// Severity is a reviewer-assigned criticality tier, ordered from least to
// most critical. It gates auto-resolution policy and drives triage sort
// order (bug first).
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityFlagged Severity = "flagged"
	SeverityBug     Severity = "bug"
)

// Rank returns the ordering position of the severity, info lowest. Unknown
// values rank below info so they never outrank a real classification.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityFlagged:
		return 3
	case SeverityBug:
		return 4
	default:
		return 0
	}
}

// AllSeverities returns every severity level, least critical first.
func AllSeverities() []Severity {
	return []Severity{SeverityInfo, SeverityWarning, SeverityFlagged, SeverityBug}
}
