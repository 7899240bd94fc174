package review

import (
	"context"
	"strings"
	"time"

	domainreview "codesensei/internal/domain/review"
	"codesensei/internal/ports"
)

const defaultDiffCharBudget = 15000

// Service wires the webhook ingress, the analysis pipeline, and the reward
// ledger over the persistence and provider ports.
type Service struct {
	repo  ports.ReviewRepository
	uow   ports.UnitOfWork
	cache ports.Cache

	queue      ports.JobQueue
	pulls      ports.PullRequestClient
	finder     ports.BugFinder
	summarizer ports.Summarizer
	lessons    ports.LessonWriter

	dashboardBaseURL string
	diffCharBudget   int
	rewards          RewardsProfile
}

// NewService builds a Service with persistence wired; the queue, GitHub, and
// LLM collaborators are attached by the command that needs them.
func NewService(repo ports.ReviewRepository, uow ports.UnitOfWork, cache ports.Cache) *Service {
	return &Service{
		repo:             repo,
		uow:              uow,
		cache:            cache,
		dashboardBaseURL: "http://localhost:3000",
		diffCharBudget:   defaultDiffCharBudget,
		rewards:          DefaultRewardsProfile(),
	}
}

func (s *Service) SetQueue(queue ports.JobQueue) {
	s.queue = queue
}

func (s *Service) SetPullRequestClient(pulls ports.PullRequestClient) {
	s.pulls = pulls
}

func (s *Service) SetAnalyzers(finder ports.BugFinder, summarizer ports.Summarizer) {
	s.finder = finder
	s.summarizer = summarizer
}

func (s *Service) SetLessonWriter(lessons ports.LessonWriter) {
	s.lessons = lessons
}

func (s *Service) SetDashboardBaseURL(baseURL string) {
	if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
		s.dashboardBaseURL = strings.TrimSuffix(trimmed, "/")
	}
}

func (s *Service) SetDiffCharBudget(budget int) {
	if budget > 0 {
		s.diffCharBudget = budget
	}
}

func (s *Service) SetRewardsProfile(profile RewardsProfile) {
	s.rewards = profile
}

func (s *Service) setCacheBestEffort(ctx context.Context, key string, value string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, key, value, 0)
}

func (s *Service) getCache(ctx context.Context, key string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	value, found, err := s.cache.Get(ctx, key)
	if err != nil {
		return "", false
	}
	return value, found
}

func nowUTCString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func truncateDiff(diff string, budget int) string {
	if budget <= 0 || len(diff) <= budget {
		return diff
	}
	return diff[:budget]
}

func marshalableFindings(findings []domainreview.Finding) []domainreview.Finding {
	if findings == nil {
		return []domainreview.Finding{}
	}
	return findings
}
