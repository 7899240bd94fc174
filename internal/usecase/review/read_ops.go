package review

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	domainreview "codesensei/internal/domain/review"
	"codesensei/internal/errs"
	"codesensei/internal/ports"
)

type AnalysisView struct {
	AnalysisID         string                 `json:"analysis_id"`
	RepositoryFullName string                 `json:"repository_full_name"`
	PRNumber           int                    `json:"pr_number"`
	RiskScore          int                    `json:"risk_score"`
	Status             domainreview.Status    `json:"status"`
	IssuesFound        int                    `json:"issues_found"`
	Findings           []domainreview.Finding `json:"findings"`
	CreatedAt          string                 `json:"created_at"`
}

type WalletView struct {
	UserID        uint64        `json:"user_id"`
	XP            int64         `json:"xp"`
	Coins         int64         `json:"coins"`
	TotalEarned   int64         `json:"total_earned"`
	TotalDebtPaid int64         `json:"total_debt_paid"`
	StreakCount   int64         `json:"streak_count"`
	Badges        []ports.Badge `json:"badges"`
}

type LeaderboardEntry struct {
	UserID uint64 `json:"user_id"`
	XP     int64  `json:"xp"`
	Coins  int64  `json:"coins"`
	Badges int    `json:"badges"`
}

// GetAnalysisForUser loads one analysis and enforces repository ownership.
func (s *Service) GetAnalysisForUser(ctx context.Context, analysisID string, userID uint64) (AnalysisView, error) {
	if ctx == nil {
		return AnalysisView{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return AnalysisView{}, errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return AnalysisView{}, errors.New("review repository is required")
	}

	analysis, err := s.repo.GetAnalysis(ctx, analysisID)
	if err != nil {
		return AnalysisView{}, err
	}
	repoRow, err := s.repo.GetRepository(ctx, analysis.RepositoryID)
	if err != nil {
		return AnalysisView{}, err
	}
	if repoRow.OwnerUserID != userID {
		return AnalysisView{}, domainreview.ErrNotRepositoryOwner
	}

	var findings []domainreview.Finding
	if err := json.Unmarshal([]byte(analysis.FindingsJSON), &findings); err != nil {
		return AnalysisView{}, errs.Wrap(err, "parse findings")
	}

	return AnalysisView{
		AnalysisID:         analysis.AnalysisID,
		RepositoryFullName: repoRow.FullName,
		PRNumber:           analysis.PRNumber,
		RiskScore:          analysis.RiskScore,
		Status:             domainreview.Status(analysis.Status),
		IssuesFound:        analysis.IssuesFound,
		Findings:           findings,
		CreatedAt:          analysis.CreatedAt,
	}, nil
}

// GetWallet reads the user's wallet. Wallets are created lazily on first
// reward, so a user who never claimed gets an empty view, not an error.
func (s *Service) GetWallet(ctx context.Context, userID uint64) (WalletView, error) {
	if ctx == nil {
		return WalletView{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return WalletView{}, errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return WalletView{}, errors.New("review repository is required")
	}
	if userID == 0 {
		return WalletView{}, errors.New("user id is required")
	}

	wallet, found, err := s.repo.GetWallet(ctx, userID)
	if err != nil {
		return WalletView{}, err
	}
	if !found {
		return WalletView{UserID: userID, Badges: []ports.Badge{}}, nil
	}

	badges, err := s.repo.ListBadges(ctx, userID)
	if err != nil {
		return WalletView{}, err
	}
	if badges == nil {
		badges = []ports.Badge{}
	}

	return WalletView{
		UserID:        wallet.UserID,
		XP:            wallet.XP,
		Coins:         wallet.Coins,
		TotalEarned:   wallet.TotalEarned,
		TotalDebtPaid: wallet.TotalDebtPaid,
		StreakCount:   wallet.StreakCount,
		Badges:        badges,
	}, nil
}

// Leaderboard returns the top wallets ordered by XP.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return nil, errors.New("review repository is required")
	}
	if limit <= 0 {
		limit = 10
	}

	wallets, err := s.repo.ListTopWallets(ctx, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(wallets))
	for _, w := range wallets {
		badges, err := s.repo.ListBadges(ctx, w.UserID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, LeaderboardEntry{
			UserID: w.UserID,
			XP:     w.XP,
			Coins:  w.Coins,
			Badges: len(badges),
		})
	}
	return entries, nil
}

// AuthenticateAPIToken resolves a dashboard bearer token to its user.
func (s *Service) AuthenticateAPIToken(ctx context.Context, token string) (ports.User, error) {
	if ctx == nil {
		return ports.User{}, errors.New("context is required")
	}
	if s.repo == nil {
		return ports.User{}, errors.New("review repository is required")
	}

	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return ports.User{}, ports.ErrUserNotFound
	}
	return s.repo.GetUserByAPIToken(ctx, trimmed)
}

type RegisterUserInput struct {
	GitHubAccountID int64
	Login           string
}

// RegisterUser connects a GitHub account and mints its dashboard API token.
// Registering an existing account returns the stored user unchanged.
func (s *Service) RegisterUser(ctx context.Context, input RegisterUserInput) (ports.User, error) {
	if ctx == nil {
		return ports.User{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.User{}, errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return ports.User{}, errors.New("review repository is required")
	}
	if input.GitHubAccountID == 0 {
		return ports.User{}, errors.New("github account id is required")
	}

	existing, err := s.repo.GetUserByGitHubAccountID(ctx, input.GitHubAccountID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ports.ErrUserNotFound) {
		return ports.User{}, err
	}

	return s.repo.CreateUser(ctx, ports.UserCreate{
		GitHubAccountID: input.GitHubAccountID,
		Login:           strings.TrimSpace(input.Login),
		APIToken:        uuid.NewString(),
	})
}
