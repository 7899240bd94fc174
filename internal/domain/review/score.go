package review

const (
	scorePerIssue          = 10
	scorePerSevereIssue    = 20
	scoreCeiling           = 100
	criticalScoreThreshold = 70
	reviewScoreThreshold   = 40
)

// Score maps findings to the 0-100 risk score. Every finding contributes a
// base amount; HIGH and CRITICAL findings contribute an extra weight on top.
func Score(findings []Finding) int {
	severe := 0
	for _, f := range findings {
		if f.Severity == SeverityHigh || f.Severity == SeverityCritical {
			severe++
		}
	}

	score := len(findings)*scorePerIssue + severe*scorePerSevereIssue
	if score > scoreCeiling {
		score = scoreCeiling
	}
	return score
}

// StatusForScore buckets a risk score into the coarse verdict.
func StatusForScore(score int) Status {
	switch {
	case score > criticalScoreThreshold:
		return StatusCriticalIssues
	case score > reviewScoreThreshold:
		return StatusNeedsReview
	default:
		return StatusGreatStart
	}
}
