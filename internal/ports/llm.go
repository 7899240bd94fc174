package ports

import (
	"context"

	"codesensei/internal/domain/review"
)

// BugFinder asks a model to extract structured findings from a unified diff.
type BugFinder interface {
	FindBugs(ctx context.Context, diff string) ([]review.Finding, error)
}

// Summarizer produces the short Markdown comment posted back to the PR.
type Summarizer interface {
	Summarize(ctx context.Context, findings []review.Finding, diff string) (string, error)
}

// LessonWriter generates educational content for one finding on demand.
type LessonWriter interface {
	WriteLesson(ctx context.Context, finding review.Finding) (string, error)
}
