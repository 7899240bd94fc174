package review

import (
	"context"
	"errors"
	"testing"

	domainreview "codesensei/internal/domain/review"
	"codesensei/internal/ports"
)

// seedAnalysis runs the pipeline once so the claim tests operate on an
// analysis produced the same way production does.
func seedAnalysis(t *testing.T, svc *Service, env *testFixture, findings []domainreview.Finding) (ports.User, string) {
	t.Helper()
	ctx := context.Background()

	user := registerUserWithRepo(t, svc, env, "octocat/hello")
	seedDelivery(t, svc, "delivery-claim")
	env.finder.findings = findings

	out, err := svc.RunAnalysisJob(ctx, ports.AnalysisJob{
		JobID:          "job-claim",
		Owner:          "octocat",
		Repo:           "hello",
		PRNumber:       5,
		InstallationID: 555,
		DeliveryID:     "delivery-claim",
	})
	if err != nil {
		t.Fatalf("RunAnalysisJob() error = %v", err)
	}
	return user, out.AnalysisID
}

func TestClaimFindingPaysOutOnce(t *testing.T) {
	svc, env := setupService(t)
	ctx := context.Background()

	user, analysisID := seedAnalysis(t, svc, env, []domainreview.Finding{
		{Type: "HARDCODED_SECRET", Severity: domainreview.SeverityHigh, Description: "api key in source"},
	})

	first, err := svc.ClaimFinding(ctx, RewardActionInput{
		AnalysisID:   analysisID,
		FindingIndex: 0,
		UserID:       user.UserID,
	})
	if err != nil {
		t.Fatalf("ClaimFinding() error = %v", err)
	}
	if first.AlreadyClaimed {
		t.Fatal("first claim reported already claimed")
	}
	if first.Reward.Coins != 200 || first.Reward.XP != 50 {
		t.Fatalf("reward = %+v, want 200 coins / 50 xp", first.Reward)
	}
	if first.Wallet.Coins != 200 || first.Wallet.XP != 50 {
		t.Fatalf("wallet = %+v", first.Wallet)
	}
	if first.Wallet.StreakCount != 1 {
		t.Fatalf("streak = %d, want 1", first.Wallet.StreakCount)
	}

	second, err := svc.ClaimFinding(ctx, RewardActionInput{
		AnalysisID:   analysisID,
		FindingIndex: 0,
		UserID:       user.UserID,
	})
	if err != nil {
		t.Fatalf("ClaimFinding() replay error = %v", err)
	}
	if !second.AlreadyClaimed {
		t.Fatal("replay not reported already claimed")
	}

	wallet, found, err := env.repo.GetWallet(ctx, user.UserID)
	if err != nil || !found {
		t.Fatalf("GetWallet() = %v found=%v", err, found)
	}
	if wallet.Coins != 200 || wallet.XP != 50 {
		t.Fatalf("wallet after replay = %+v, want unchanged", wallet)
	}
}

func TestClaimFindingRejectsNonOwner(t *testing.T) {
	svc, env := setupService(t)
	ctx := context.Background()

	_, analysisID := seedAnalysis(t, svc, env, []domainreview.Finding{
		{Type: "XSS", Severity: domainreview.SeverityLow, Description: "unescaped output"},
	})

	intruder, err := env.repo.CreateUser(ctx, ports.UserCreate{
		GitHubAccountID: 777,
		Login:           "intruder",
		APIToken:        "tok-intruder",
	})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	_, err = svc.ClaimFinding(ctx, RewardActionInput{
		AnalysisID:   analysisID,
		FindingIndex: 0,
		UserID:       intruder.UserID,
	})
	if err == nil || !errors.Is(err, domainreview.ErrNotRepositoryOwner) {
		t.Fatalf("error = %v, want ErrNotRepositoryOwner", err)
	}
}

func TestClaimFindingOutOfRange(t *testing.T) {
	svc, env := setupService(t)
	ctx := context.Background()

	user, analysisID := seedAnalysis(t, svc, env, []domainreview.Finding{
		{Type: "XSS", Severity: domainreview.SeverityLow, Description: "unescaped output"},
	})

	_, err := svc.ClaimFinding(ctx, RewardActionInput{
		AnalysisID:   analysisID,
		FindingIndex: 5,
		UserID:       user.UserID,
	})
	if err == nil || !errors.Is(err, domainreview.ErrFindingOutOfRange) {
		t.Fatalf("error = %v, want ErrFindingOutOfRange", err)
	}
}

func TestClaimCriticalAwardsBadgesOnce(t *testing.T) {
	svc, env := setupService(t)
	ctx := context.Background()

	user, analysisID := seedAnalysis(t, svc, env, []domainreview.Finding{
		{Type: "SQL_INJECTION", Severity: domainreview.SeverityCritical, Description: "raw query"},
		{Type: "SQL_INJECTION", Severity: domainreview.SeverityCritical, Description: "another raw query"},
	})

	first, err := svc.ClaimFinding(ctx, RewardActionInput{
		AnalysisID:   analysisID,
		FindingIndex: 0,
		UserID:       user.UserID,
	})
	if err != nil {
		t.Fatalf("ClaimFinding() error = %v", err)
	}

	gotFirstSteps := false
	gotChampion := false
	for _, b := range first.NewBadges {
		switch b.BadgeID {
		case "first-steps":
			gotFirstSteps = true
		case "security-champion":
			gotChampion = true
		}
	}
	if !gotFirstSteps || !gotChampion {
		t.Fatalf("new badges = %+v, want first-steps and security-champion", first.NewBadges)
	}

	second, err := svc.ClaimFinding(ctx, RewardActionInput{
		AnalysisID:   analysisID,
		FindingIndex: 1,
		UserID:       user.UserID,
	})
	if err != nil {
		t.Fatalf("ClaimFinding() second error = %v", err)
	}
	for _, b := range second.NewBadges {
		if b.BadgeID == "first-steps" || b.BadgeID == "security-champion" {
			t.Fatalf("badge %q awarded twice", b.BadgeID)
		}
	}

	badges, err := env.repo.ListBadges(ctx, user.UserID)
	if err != nil {
		t.Fatalf("ListBadges() error = %v", err)
	}
	seen := map[string]int{}
	for _, b := range badges {
		seen[b.BadgeID]++
	}
	if seen["first-steps"] != 1 || seen["security-champion"] != 1 {
		t.Fatalf("badge counts = %v, want exactly one each", seen)
	}
}

func TestMarkFindingFixedAlsoClaims(t *testing.T) {
	svc, env := setupService(t)
	ctx := context.Background()

	user, analysisID := seedAnalysis(t, svc, env, []domainreview.Finding{
		{Type: "XSS", Severity: domainreview.SeverityMedium, Description: "unescaped output"},
	})

	out, err := svc.MarkFindingFixed(ctx, RewardActionInput{
		AnalysisID:   analysisID,
		FindingIndex: 0,
		UserID:       user.UserID,
	})
	if err != nil {
		t.Fatalf("MarkFindingFixed() error = %v", err)
	}
	if out.Reward.Coins != 75 || out.Reward.XP != 25 {
		t.Fatalf("reward = %+v, want medium tier", out.Reward)
	}
	if out.Wallet.TotalDebtPaid != 75 {
		t.Fatalf("total debt paid = %d, want 75", out.Wallet.TotalDebtPaid)
	}

	view, err := svc.GetAnalysisForUser(ctx, analysisID, user.UserID)
	if err != nil {
		t.Fatalf("GetAnalysisForUser() error = %v", err)
	}
	if !view.Findings[0].Fixed || !view.Findings[0].Claimed {
		t.Fatalf("finding = %+v, want fixed and claimed", view.Findings[0])
	}
}

func TestMarkFixedAfterClaimPaysOnce(t *testing.T) {
	svc, env := setupService(t)
	ctx := context.Background()

	user, analysisID := seedAnalysis(t, svc, env, []domainreview.Finding{
		{Type: "SQL_INJECTION", Severity: domainreview.SeverityCritical, Description: "raw query"},
	})

	input := RewardActionInput{
		AnalysisID:   analysisID,
		FindingIndex: 0,
		UserID:       user.UserID,
	}
	if _, err := svc.ClaimFinding(ctx, input); err != nil {
		t.Fatalf("ClaimFinding() error = %v", err)
	}

	fixedOut, err := svc.MarkFindingFixed(ctx, input)
	if err != nil {
		t.Fatalf("MarkFindingFixed() error = %v", err)
	}
	if !fixedOut.AlreadyClaimed {
		t.Fatal("fix after claim not reported already claimed")
	}

	wallet, found, err := env.repo.GetWallet(ctx, user.UserID)
	if err != nil || !found {
		t.Fatalf("GetWallet() = %v found=%v", err, found)
	}
	if wallet.Coins != 500 || wallet.XP != 100 {
		t.Fatalf("wallet = %+v, want a single critical payout", wallet)
	}

	view, err := svc.GetAnalysisForUser(ctx, analysisID, user.UserID)
	if err != nil {
		t.Fatalf("GetAnalysisForUser() error = %v", err)
	}
	if !view.Findings[0].Fixed || !view.Findings[0].Claimed {
		t.Fatalf("finding = %+v, want fixed and claimed", view.Findings[0])
	}
}

func TestUnlockLessonCachesContent(t *testing.T) {
	svc, env := setupService(t)
	ctx := context.Background()

	user, analysisID := seedAnalysis(t, svc, env, []domainreview.Finding{
		{Type: "XSS", Severity: domainreview.SeverityLow, Description: "unescaped output"},
	})
	env.summarizer.lesson = "escape user input before rendering"

	lesson, err := svc.UnlockLesson(ctx, RewardActionInput{
		AnalysisID:   analysisID,
		FindingIndex: 0,
		UserID:       user.UserID,
	})
	if err != nil {
		t.Fatalf("UnlockLesson() error = %v", err)
	}
	if lesson != "escape user input before rendering" {
		t.Fatalf("lesson = %q", lesson)
	}

	// Second unlock serves the stored copy even if the model changes.
	env.summarizer.lesson = "different output"
	again, err := svc.UnlockLesson(ctx, RewardActionInput{
		AnalysisID:   analysisID,
		FindingIndex: 0,
		UserID:       user.UserID,
	})
	if err != nil {
		t.Fatalf("UnlockLesson() replay error = %v", err)
	}
	if again != lesson {
		t.Fatalf("lesson = %q, want cached %q", again, lesson)
	}
}

func TestGetWalletBeforeFirstClaimIsEmpty(t *testing.T) {
	svc, env := setupService(t)
	ctx := context.Background()

	user := registerUserWithRepo(t, svc, env, "octocat/hello")

	view, err := svc.GetWallet(ctx, user.UserID)
	if err != nil {
		t.Fatalf("GetWallet() error = %v", err)
	}
	if view.Coins != 0 || view.XP != 0 || len(view.Badges) != 0 {
		t.Fatalf("wallet view = %+v, want empty", view)
	}
}
