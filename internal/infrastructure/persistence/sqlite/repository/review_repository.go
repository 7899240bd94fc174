package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"codesensei/internal/errs"
	"codesensei/internal/infrastructure/persistence/sqlite/model"
	"codesensei/internal/ports"
)

type ReviewRepository struct {
	db *gorm.DB
}

var _ ports.ReviewRepository = (*ReviewRepository)(nil)

func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func (r *ReviewRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *ReviewRepository) CreateWebhookDelivery(ctx context.Context, input ports.WebhookDeliveryCreate) (bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	row := model.WebhookDelivery{
		DeliveryID: input.DeliveryID,
		EventType:  input.EventType,
		ReceivedAt: input.ReceivedAt,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "delivery_id"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "insert webhook delivery")
	}
	return result.RowsAffected > 0, nil
}

func (r *ReviewRepository) GetWebhookDelivery(ctx context.Context, deliveryID string) (ports.WebhookDelivery, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.WebhookDelivery{}, err
	}

	var row model.WebhookDelivery
	if err := db.Where("delivery_id = ?", deliveryID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.WebhookDelivery{}, ports.ErrDeliveryNotFound
		}
		return ports.WebhookDelivery{}, errs.Wrap(err, "query webhook delivery")
	}
	return ports.WebhookDelivery{
		DeliveryID:  row.DeliveryID,
		EventType:   row.EventType,
		ReceivedAt:  row.ReceivedAt,
		Processed:   row.Processed,
		ProcessedAt: row.ProcessedAt,
		Error:       row.Error,
	}, nil
}

func (r *ReviewRepository) MarkDeliveryProcessed(ctx context.Context, deliveryID string, processedAt string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Model(&model.WebhookDelivery{}).
		Where("delivery_id = ?", deliveryID).
		Updates(map[string]any{
			"processed":    true,
			"processed_at": processedAt,
		}).Error; err != nil {
		return errs.Wrap(err, "mark delivery processed")
	}
	return nil
}

func (r *ReviewRepository) MarkDeliveryFailed(ctx context.Context, deliveryID string, message string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Model(&model.WebhookDelivery{}).
		Where("delivery_id = ?", deliveryID).
		Update("error", message).Error; err != nil {
		return errs.Wrap(err, "mark delivery failed")
	}
	return nil
}

func (r *ReviewRepository) CreateUser(ctx context.Context, input ports.UserCreate) (ports.User, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.User{}, err
	}

	row := model.User{
		GitHubAccountID: input.GitHubAccountID,
		Login:           input.Login,
		APIToken:        input.APIToken,
		CreatedAt:       time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.User{}, errs.Wrap(err, "insert user")
	}
	return mapUser(row), nil
}

func (r *ReviewRepository) GetUserByGitHubAccountID(ctx context.Context, accountID int64) (ports.User, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.User{}, err
	}

	var row model.User
	if err := db.Where("github_account_id = ?", accountID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.User{}, ports.ErrUserNotFound
		}
		return ports.User{}, errs.Wrap(err, "query user by github account")
	}
	return mapUser(row), nil
}

func (r *ReviewRepository) GetUserByAPIToken(ctx context.Context, token string) (ports.User, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.User{}, err
	}

	var row model.User
	if err := db.Where("api_token = ?", token).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.User{}, ports.ErrUserNotFound
		}
		return ports.User{}, errs.Wrap(err, "query user by api token")
	}
	return mapUser(row), nil
}

func (r *ReviewRepository) UpsertRepository(ctx context.Context, input ports.RepositoryUpsert) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	row := model.Repository{
		ExternalRepoID: input.ExternalRepoID,
		OwnerUserID:    input.OwnerUserID,
		FullName:       input.FullName,
		InstallationID: input.InstallationID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_repo_id"}, {Name: "owner_user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"full_name":       input.FullName,
			"installation_id": input.InstallationID,
			"updated_at":      now,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert repository")
	}
	return nil
}

func (r *ReviewRepository) GetRepository(ctx context.Context, repositoryID uint64) (ports.Repository, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Repository{}, err
	}

	var row model.Repository
	if err := db.Where("repository_id = ?", repositoryID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Repository{}, ports.ErrRepositoryNotFound
		}
		return ports.Repository{}, errs.Wrap(err, "query repository")
	}
	return mapRepository(row), nil
}

func (r *ReviewRepository) GetRepositoryByFullName(ctx context.Context, fullName string) (ports.Repository, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Repository{}, err
	}

	var row model.Repository
	if err := db.Where("lower(full_name) = ?", strings.ToLower(strings.TrimSpace(fullName))).
		Order("repository_id asc").
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Repository{}, ports.ErrRepositoryNotFound
		}
		return ports.Repository{}, errs.Wrap(err, "query repository by full name")
	}
	return mapRepository(row), nil
}

func (r *ReviewRepository) UpdateRepositoryInstallation(ctx context.Context, repositoryID uint64, installationID int64) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Model(&model.Repository{}).
		Where("repository_id = ?", repositoryID).
		Updates(map[string]any{
			"installation_id": installationID,
			"updated_at":      time.Now().UTC().Format(time.RFC3339Nano),
		}).Error; err != nil {
		return errs.Wrap(err, "update repository installation")
	}
	return nil
}

func (r *ReviewRepository) CreateAnalysis(ctx context.Context, input ports.Analysis) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.Analysis{
		AnalysisID:   input.AnalysisID,
		RepositoryID: input.RepositoryID,
		PRNumber:     input.PRNumber,
		RiskScore:    input.RiskScore,
		Status:       input.Status,
		IssuesFound:  input.IssuesFound,
		FindingsJSON: input.FindingsJSON,
		CreatedAt:    input.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert analysis")
	}
	return nil
}

func (r *ReviewRepository) GetAnalysis(ctx context.Context, analysisID string) (ports.Analysis, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Analysis{}, err
	}

	var row model.Analysis
	if err := db.Where("analysis_id = ?", analysisID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Analysis{}, ports.ErrAnalysisNotFound
		}
		return ports.Analysis{}, errs.Wrap(err, "query analysis")
	}
	return ports.Analysis{
		AnalysisID:   row.AnalysisID,
		RepositoryID: row.RepositoryID,
		PRNumber:     row.PRNumber,
		RiskScore:    row.RiskScore,
		Status:       row.Status,
		IssuesFound:  row.IssuesFound,
		FindingsJSON: row.FindingsJSON,
		CreatedAt:    row.CreatedAt,
	}, nil
}

func (r *ReviewRepository) UpdateAnalysisFindings(ctx context.Context, analysisID string, findingsJSON string, issuesFound int) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Model(&model.Analysis{}).
		Where("analysis_id = ?", analysisID).
		Updates(map[string]any{
			"findings_json": findingsJSON,
			"issues_found":  issuesFound,
		}).Error; err != nil {
		return errs.Wrap(err, "update analysis findings")
	}
	return nil
}

func (r *ReviewRepository) EnsureWallet(ctx context.Context, userID uint64) (ports.Wallet, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Wallet{}, err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	row := model.Wallet{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		return ports.Wallet{}, errs.Wrap(err, "ensure wallet")
	}

	wallet, found, err := r.GetWallet(ctx, userID)
	if err != nil {
		return ports.Wallet{}, err
	}
	if !found {
		return ports.Wallet{}, fmt.Errorf("wallet for user %d missing after ensure", userID)
	}
	return wallet, nil
}

func (r *ReviewRepository) GetWallet(ctx context.Context, userID uint64) (ports.Wallet, bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Wallet{}, false, err
	}

	var row model.Wallet
	if err := db.Where("user_id = ?", userID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Wallet{}, false, nil
		}
		return ports.Wallet{}, false, errs.Wrap(err, "query wallet")
	}
	return mapWallet(row), true, nil
}

func (r *ReviewRepository) ApplyWalletReward(ctx context.Context, userID uint64, reward ports.WalletReward) (ports.Wallet, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Wallet{}, err
	}

	if err := db.Model(&model.Wallet{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"coins":           gorm.Expr("coins + ?", reward.Coins),
			"xp":              gorm.Expr("xp + ?", reward.XP),
			"total_earned":    gorm.Expr("total_earned + ?", reward.Coins),
			"total_debt_paid": gorm.Expr("total_debt_paid + ?", reward.DebtPaid),
			"claim_count":     gorm.Expr("claim_count + 1"),
			"streak_count":    reward.StreakCount,
			"last_reward_at":  reward.RewardedAt,
			"updated_at":      time.Now().UTC().Format(time.RFC3339Nano),
		}).Error; err != nil {
		return ports.Wallet{}, errs.Wrap(err, "apply wallet reward")
	}

	wallet, found, err := r.GetWallet(ctx, userID)
	if err != nil {
		return ports.Wallet{}, err
	}
	if !found {
		return ports.Wallet{}, fmt.Errorf("wallet for user %d missing after reward", userID)
	}
	return wallet, nil
}

func (r *ReviewRepository) ListTopWallets(ctx context.Context, limit int) ([]ports.Wallet, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Wallet{}).Order("xp desc, user_id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.Wallet
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query top wallets")
	}

	items := make([]ports.Wallet, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapWallet(row))
	}
	return items, nil
}

func (r *ReviewRepository) ListBadges(ctx context.Context, userID uint64) ([]ports.Badge, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.WalletBadge
	if err := db.
		Where("user_id = ?", userID).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query wallet badges")
	}

	items := make([]ports.Badge, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.Badge{
			BadgeID:     row.BadgeID,
			Name:        row.Name,
			Description: row.Description,
			Icon:        row.Icon,
			EarnedAt:    row.EarnedAt,
		})
	}
	return items, nil
}

func (r *ReviewRepository) AddBadge(ctx context.Context, input ports.BadgeCreate) (bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	row := model.WalletBadge{
		UserID:      input.UserID,
		BadgeID:     input.BadgeID,
		Name:        input.Name,
		Description: input.Description,
		Icon:        input.Icon,
		EarnedAt:    input.EarnedAt,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "badge_id"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "insert wallet badge")
	}
	return result.RowsAffected > 0, nil
}

func mapUser(row model.User) ports.User {
	return ports.User{
		UserID:          row.UserID,
		GitHubAccountID: row.GitHubAccountID,
		Login:           row.Login,
		APIToken:        row.APIToken,
	}
}

func mapRepository(row model.Repository) ports.Repository {
	return ports.Repository{
		RepositoryID:   row.RepositoryID,
		ExternalRepoID: row.ExternalRepoID,
		FullName:       row.FullName,
		InstallationID: row.InstallationID,
		OwnerUserID:    row.OwnerUserID,
	}
}

func mapWallet(row model.Wallet) ports.Wallet {
	return ports.Wallet{
		UserID:        row.UserID,
		XP:            row.XP,
		Coins:         row.Coins,
		TotalEarned:   row.TotalEarned,
		TotalDebtPaid: row.TotalDebtPaid,
		StreakCount:   row.StreakCount,
		ClaimCount:    row.ClaimCount,
		LastRewardAt:  row.LastRewardAt,
	}
}
