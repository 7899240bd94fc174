package review

import "strings"

// Severity levels reported by the bug finder, ordered from least to most severe.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// NormalizeSeverity maps free-form model output onto a known severity.
// Anything unrecognized is treated as LOW rather than dropped.
func NormalizeSeverity(value string) Severity {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case string(SeverityCritical):
		return SeverityCritical
	case string(SeverityHigh):
		return SeverityHigh
	case string(SeverityMedium):
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Status is the coarse verdict attached to an analysis.
type Status string

const (
	StatusGreatStart     Status = "GREAT_START"
	StatusNeedsReview    Status = "NEEDS_REVIEW"
	StatusCriticalIssues Status = "CRITICAL_ISSUES"

	// StatusAnalysisFailed marks runs where the bug finder errored, so an
	// empty findings list is never presented as a clean result.
	StatusAnalysisFailed Status = "ANALYSIS_FAILED"
)

// Finding is one detected issue within a diff. Claimed/Fixed flags and
// LessonContent are mutated in place after the analysis is persisted.
type Finding struct {
	Type           string   `json:"type"`
	Severity       Severity `json:"severity"`
	Description    string   `json:"description"`
	File           string   `json:"file"`
	Line           int      `json:"line"`
	Recommendation string   `json:"recommendation"`
	Claimed        bool     `json:"claimed,omitempty"`
	Fixed          bool     `json:"fixed,omitempty"`
	LessonContent  string   `json:"lessonContent,omitempty"`
}
