package ports

import (
	"context"
	"errors"
)

var (
	ErrDeliveryNotFound   = errors.New("webhook delivery not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrRepositoryNotFound = errors.New("repository not found")
	ErrAnalysisNotFound   = errors.New("analysis not found")
)

type WebhookDelivery struct {
	DeliveryID  string
	EventType   string
	ReceivedAt  string
	Processed   bool
	ProcessedAt string
	Error       string
}

type WebhookDeliveryCreate struct {
	DeliveryID string
	EventType  string
	ReceivedAt string
}

type User struct {
	UserID          uint64
	GitHubAccountID int64
	Login           string
	APIToken        string
}

type UserCreate struct {
	GitHubAccountID int64
	Login           string
	APIToken        string
}

type Repository struct {
	RepositoryID   uint64
	ExternalRepoID int64
	FullName       string
	InstallationID int64
	OwnerUserID    uint64
}

type RepositoryUpsert struct {
	ExternalRepoID int64
	FullName       string
	InstallationID int64
	OwnerUserID    uint64
}

type Analysis struct {
	AnalysisID   string
	RepositoryID uint64
	PRNumber     int
	RiskScore    int
	Status       string
	IssuesFound  int
	FindingsJSON string
	CreatedAt    string
}

type Wallet struct {
	UserID        uint64
	XP            int64
	Coins         int64
	TotalEarned   int64
	TotalDebtPaid int64
	StreakCount   int64
	ClaimCount    int64
	LastRewardAt  string
}

type Badge struct {
	BadgeID     string `json:"badge_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	EarnedAt    string `json:"earned_at"`
}

type BadgeCreate struct {
	UserID      uint64
	BadgeID     string
	Name        string
	Description string
	Icon        string
	EarnedAt    string
}

// WalletReward carries the deltas for one reward action. StreakCount and
// RewardedAt are set absolutely, not added.
type WalletReward struct {
	Coins       int64
	XP          int64
	DebtPaid    int64
	StreakCount int64
	RewardedAt  string
}

// ReviewRepository is the persistence boundary for the analysis pipeline and
// the reward ledger.
type ReviewRepository interface {
	// CreateWebhookDelivery inserts a delivery record unless one already
	// exists for the delivery id. The bool reports whether a row was written;
	// false means the delivery is a duplicate.
	CreateWebhookDelivery(ctx context.Context, input WebhookDeliveryCreate) (bool, error)
	GetWebhookDelivery(ctx context.Context, deliveryID string) (WebhookDelivery, error)
	MarkDeliveryProcessed(ctx context.Context, deliveryID string, processedAt string) error
	MarkDeliveryFailed(ctx context.Context, deliveryID string, message string) error

	CreateUser(ctx context.Context, input UserCreate) (User, error)
	GetUserByGitHubAccountID(ctx context.Context, accountID int64) (User, error)
	GetUserByAPIToken(ctx context.Context, token string) (User, error)

	// UpsertRepository creates or updates the row keyed by
	// (external_repo_id, owner_user_id), refreshing name and installation id.
	UpsertRepository(ctx context.Context, input RepositoryUpsert) error
	GetRepository(ctx context.Context, repositoryID uint64) (Repository, error)
	// GetRepositoryByFullName matches full_name case-insensitively.
	GetRepositoryByFullName(ctx context.Context, fullName string) (Repository, error)
	UpdateRepositoryInstallation(ctx context.Context, repositoryID uint64, installationID int64) error

	CreateAnalysis(ctx context.Context, input Analysis) error
	GetAnalysis(ctx context.Context, analysisID string) (Analysis, error)
	UpdateAnalysisFindings(ctx context.Context, analysisID string, findingsJSON string, issuesFound int) error

	// EnsureWallet returns the user's wallet, creating an empty one on first use.
	EnsureWallet(ctx context.Context, userID uint64) (Wallet, error)
	GetWallet(ctx context.Context, userID uint64) (Wallet, bool, error)
	ApplyWalletReward(ctx context.Context, userID uint64, reward WalletReward) (Wallet, error)
	ListTopWallets(ctx context.Context, limit int) ([]Wallet, error)

	ListBadges(ctx context.Context, userID uint64) ([]Badge, error)
	// AddBadge appends a badge unless the user already holds it.
	AddBadge(ctx context.Context, input BadgeCreate) (bool, error)
}
