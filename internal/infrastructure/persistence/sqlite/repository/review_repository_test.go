package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"codesensei/internal/infrastructure/persistence/sqlite/model"
	"codesensei/internal/ports"
)

func setupReviewRepository(t *testing.T) *ReviewRepository {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "review.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
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
	return NewReviewRepository(db)
}

func TestCreateWebhookDeliveryDedup(t *testing.T) {
	repo := setupReviewRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	inserted, err := repo.CreateWebhookDelivery(ctx, ports.WebhookDeliveryCreate{
		DeliveryID: "d-1",
		EventType:  "pull_request",
		ReceivedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateWebhookDelivery() error = %v", err)
	}
	if !inserted {
		t.Fatal("first insert reported inserted=false")
	}

	inserted, err = repo.CreateWebhookDelivery(ctx, ports.WebhookDeliveryCreate{
		DeliveryID: "d-1",
		EventType:  "pull_request",
		ReceivedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateWebhookDelivery() replay error = %v", err)
	}
	if inserted {
		t.Fatal("replay insert reported inserted=true")
	}
}

func TestUpsertRepositoryUpdatesInstallation(t *testing.T) {
	repo := setupReviewRepository(t)
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, ports.UserCreate{
		GitHubAccountID: 4242,
		Login:           "octocat",
		APIToken:        "tok-1",
	})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	for _, installationID := range []int64{100, 200} {
		if err := repo.UpsertRepository(ctx, ports.RepositoryUpsert{
			ExternalRepoID: 1001,
			FullName:       "octocat/hello",
			InstallationID: installationID,
			OwnerUserID:    user.UserID,
		}); err != nil {
			t.Fatalf("UpsertRepository(%d) error = %v", installationID, err)
		}
	}

	got, err := repo.GetRepositoryByFullName(ctx, "Octocat/Hello")
	if err != nil {
		t.Fatalf("GetRepositoryByFullName() error = %v", err)
	}
	if got.InstallationID != 200 {
		t.Fatalf("installation id = %d, want 200", got.InstallationID)
	}
	if got.OwnerUserID != user.UserID {
		t.Fatalf("owner = %d, want %d", got.OwnerUserID, user.UserID)
	}
}

func TestApplyWalletRewardAccumulates(t *testing.T) {
	repo := setupReviewRepository(t)
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, ports.UserCreate{
		GitHubAccountID: 4242,
		Login:           "octocat",
		APIToken:        "tok-1",
	})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	if _, err := repo.EnsureWallet(ctx, user.UserID); err != nil {
		t.Fatalf("EnsureWallet() error = %v", err)
	}
	// EnsureWallet is idempotent.
	if _, err := repo.EnsureWallet(ctx, user.UserID); err != nil {
		t.Fatalf("EnsureWallet() second error = %v", err)
	}

	if _, err := repo.ApplyWalletReward(ctx, user.UserID, ports.WalletReward{Coins: 200, XP: 50, DebtPaid: 200}); err != nil {
		t.Fatalf("ApplyWalletReward() error = %v", err)
	}
	wallet, err := repo.ApplyWalletReward(ctx, user.UserID, ports.WalletReward{Coins: 25, XP: 10, DebtPaid: 25})
	if err != nil {
		t.Fatalf("ApplyWalletReward() second error = %v", err)
	}

	if wallet.Coins != 225 || wallet.XP != 60 {
		t.Fatalf("wallet = %+v, want coins 225 xp 60", wallet)
	}
	if wallet.TotalEarned != 225 || wallet.TotalDebtPaid != 225 {
		t.Fatalf("wallet totals = %+v", wallet)
	}
	if wallet.ClaimCount != 2 {
		t.Fatalf("claim count = %d, want 2", wallet.ClaimCount)
	}
}

func TestAddBadgeOnlyOnce(t *testing.T) {
	repo := setupReviewRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	badge := ports.BadgeCreate{
		UserID:      1,
		BadgeID:     "first-steps",
		Name:        "First Steps",
		Description: "Claimed your first finding",
		Icon:        "x",
		EarnedAt:    now,
	}

	inserted, err := repo.AddBadge(ctx, badge)
	if err != nil {
		t.Fatalf("AddBadge() error = %v", err)
	}
	if !inserted {
		t.Fatal("first AddBadge reported inserted=false")
	}

	inserted, err = repo.AddBadge(ctx, badge)
	if err != nil {
		t.Fatalf("AddBadge() replay error = %v", err)
	}
	if inserted {
		t.Fatal("replay AddBadge reported inserted=true")
	}

	badges, err := repo.ListBadges(ctx, 1)
	if err != nil {
		t.Fatalf("ListBadges() error = %v", err)
	}
	if len(badges) != 1 {
		t.Fatalf("badges = %d, want 1", len(badges))
	}
}

func TestListTopWalletsOrdersByXP(t *testing.T) {
	repo := setupReviewRepository(t)
	ctx := context.Background()

	for i, xp := range []int64{50, 300, 120} {
		user, err := repo.CreateUser(ctx, ports.UserCreate{
			GitHubAccountID: int64(1000 + i),
			Login:           "user",
			APIToken:        "tok-" + string(rune('a'+i)),
		})
		if err != nil {
			t.Fatalf("CreateUser() error = %v", err)
		}
		if _, err := repo.EnsureWallet(ctx, user.UserID); err != nil {
			t.Fatalf("EnsureWallet() error = %v", err)
		}
		if _, err := repo.ApplyWalletReward(ctx, user.UserID, ports.WalletReward{XP: xp}); err != nil {
			t.Fatalf("ApplyWalletReward() error = %v", err)
		}
	}

	top, err := repo.ListTopWallets(ctx, 2)
	if err != nil {
		t.Fatalf("ListTopWallets() error = %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("top wallets = %d, want 2", len(top))
	}
	if top[0].XP != 300 || top[1].XP != 120 {
		t.Fatalf("top = %+v, want xp 300 then 120", top)
	}
}
