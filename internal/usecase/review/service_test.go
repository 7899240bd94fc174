package review

import (
	"context"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	domainreview "codesensei/internal/domain/review"
	"codesensei/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "codesensei/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "codesensei/internal/infrastructure/persistence/sqlite/uow"
	"codesensei/internal/ports"
)

type testCache struct {
	data map[string]string
}

func newTestCache() *testCache {
	return &testCache{
		data: make(map[string]string),
	}
}

func (c *testCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *testCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	c.data[key] = value
	return nil
}

func (c *testCache) Delete(_ context.Context, key string) error {
	delete(c.data, key)
	return nil
}

type stubQueue struct {
	jobs []ports.AnalysisJob
	err  error
}

func (q *stubQueue) EnqueueAnalysis(_ context.Context, job ports.AnalysisJob) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type stubPulls struct {
	diff       string
	diffErr    error
	fetchCalls int
	comments   []string
	commentErr error
}

func (p *stubPulls) FetchDiff(_ context.Context, _ int64, _ string, _ string, _ int) (string, error) {
	p.fetchCalls++
	return p.diff, p.diffErr
}

func (p *stubPulls) PostComment(_ context.Context, _ int64, _ string, _ string, _ int, body string) error {
	if p.commentErr != nil {
		return p.commentErr
	}
	p.comments = append(p.comments, body)
	return nil
}

type stubFinder struct {
	findings []domainreview.Finding
	err      error
}

func (f *stubFinder) FindBugs(_ context.Context, _ string) ([]domainreview.Finding, error) {
	return f.findings, f.err
}

type stubSummarizer struct {
	summary string
	err     error
	lesson  string
}

func (s *stubSummarizer) Summarize(_ context.Context, _ []domainreview.Finding, _ string) (string, error) {
	return s.summary, s.err
}

func (s *stubSummarizer) WriteLesson(_ context.Context, _ domainreview.Finding) (string, error) {
	return s.lesson, nil
}

type testFixture struct {
	cache      *testCache
	repo       ports.ReviewRepository
	queue      *stubQueue
	pulls      *stubPulls
	finder     *stubFinder
	summarizer *stubSummarizer
}

func setupService(t *testing.T) (*Service, *testFixture) {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := db.Exec("PRAGMA foreign_keys = ON;").Error; err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}

	if err := db.AutoMigrate(
		&model.WebhookDelivery{},
		&model.User{},
		&model.Repository{},
		&model.Analysis{},
		&model.Wallet{},
		&model.WalletBadge{},
		&model.ReviewKV{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	env := &testFixture{
		cache:      newTestCache(),
		repo:       sqliterepo.NewReviewRepository(db),
		queue:      &stubQueue{},
		pulls:      &stubPulls{diff: "diff --git a/main.go b/main.go"},
		finder:     &stubFinder{},
		summarizer: &stubSummarizer{summary: "all clear"},
	}

	svc := NewService(env.repo, sqliteuow.NewUnitOfWork(db), env.cache)
	svc.SetQueue(env.queue)
	svc.SetPullRequestClient(env.pulls)
	svc.SetAnalyzers(env.finder, env.summarizer)
	svc.SetLessonWriter(env.summarizer)
	return svc, env
}

// registerUserWithRepo seeds a connected user and repository the way the
// installation webhook would.
func registerUserWithRepo(t *testing.T, svc *Service, env *testFixture, fullName string) ports.User {
	t.Helper()
	ctx := context.Background()

	user, err := svc.RegisterUser(ctx, RegisterUserInput{GitHubAccountID: 4242, Login: "octocat"})
	if err != nil {
		t.Fatalf("RegisterUser() error = %v", err)
	}

	if err := env.repo.UpsertRepository(ctx, ports.RepositoryUpsert{
		ExternalRepoID: 1001,
		FullName:       fullName,
		InstallationID: 555,
		OwnerUserID:    user.UserID,
	}); err != nil {
		t.Fatalf("UpsertRepository() error = %v", err)
	}
	return user
}
