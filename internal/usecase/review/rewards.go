package review

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"codesensei/internal/bootstrap/logging"
	domainreview "codesensei/internal/domain/review"
	"codesensei/internal/errs"
	"codesensei/internal/ports"
)

type RewardActionInput struct {
	AnalysisID   string
	FindingIndex int
	UserID       uint64
}

type RewardActionResult struct {
	AlreadyClaimed bool
	Reward         domainreview.Reward
	Wallet         ports.Wallet
	NewBadges      []ports.Badge
}

// ClaimFinding pays out the reward for one finding. A second claim of the
// same finding is a no-op guarded by the claimed flag.
func (s *Service) ClaimFinding(ctx context.Context, input RewardActionInput) (RewardActionResult, error) {
	return s.applyReward(ctx, input, false)
}

// MarkFindingFixed records the finding as fixed and pays out the reward.
func (s *Service) MarkFindingFixed(ctx context.Context, input RewardActionInput) (RewardActionResult, error) {
	return s.applyReward(ctx, input, true)
}

// applyReward runs the findings mutation, the wallet increment, and the badge
// check-then-append inside one transaction so concurrent claims by the same
// user cannot race the badge list.
func (s *Service) applyReward(ctx context.Context, input RewardActionInput, fixed bool) (RewardActionResult, error) {
	if ctx == nil {
		return RewardActionResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return RewardActionResult{}, errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return RewardActionResult{}, errors.New("review repository is required")
	}
	if s.uow == nil {
		return RewardActionResult{}, errors.New("unit of work is required")
	}
	if input.UserID == 0 {
		return RewardActionResult{}, errors.New("user id is required")
	}

	var out RewardActionResult
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		analysis, err := s.repo.GetAnalysis(txCtx, input.AnalysisID)
		if err != nil {
			return err
		}

		repoRow, err := s.repo.GetRepository(txCtx, analysis.RepositoryID)
		if err != nil {
			return err
		}
		if repoRow.OwnerUserID != input.UserID {
			return domainreview.ErrNotRepositoryOwner
		}

		var findings []domainreview.Finding
		if err := json.Unmarshal([]byte(analysis.FindingsJSON), &findings); err != nil {
			return errs.Wrap(err, "parse findings")
		}
		if input.FindingIndex < 0 || input.FindingIndex >= len(findings) {
			return domainreview.ErrFindingOutOfRange
		}

		// The claimed flag is the idempotency guard for both verbs: a finding
		// that was already claimed never pays again, even when it is fixed
		// afterwards. The fixed flag is still recorded in that case.
		finding := &findings[input.FindingIndex]
		payout := !finding.Claimed
		if fixed {
			if finding.Fixed {
				out.AlreadyClaimed = true
				return nil
			}
			finding.Fixed = true
			finding.Claimed = true
		} else {
			if finding.Claimed {
				out.AlreadyClaimed = true
				return nil
			}
			finding.Claimed = true
		}

		updatedJSON, err := json.Marshal(findings)
		if err != nil {
			return errs.Wrap(err, "marshal findings")
		}
		if err := s.repo.UpdateAnalysisFindings(txCtx, analysis.AnalysisID, string(updatedJSON), analysis.IssuesFound); err != nil {
			return err
		}
		if !payout {
			out.AlreadyClaimed = true
			return nil
		}

		current, err := s.repo.EnsureWallet(txCtx, input.UserID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		reward := s.rewards.Table.RewardFor(finding.Severity)
		wallet, err := s.repo.ApplyWalletReward(txCtx, input.UserID, ports.WalletReward{
			Coins:       reward.Coins,
			XP:          reward.XP,
			DebtPaid:    reward.Coins,
			StreakCount: domainreview.NextStreak(current.LastRewardAt, now, current.StreakCount),
			RewardedAt:  now.Format(time.RFC3339Nano),
		})
		if err != nil {
			return err
		}
		out.Reward = reward
		out.Wallet = wallet

		newBadges, err := s.awardBadges(txCtx, input.UserID, wallet, domainreview.ClaimContext{
			Severity: finding.Severity,
			Fixed:    fixed,
		})
		if err != nil {
			return err
		}
		out.NewBadges = newBadges
		return nil
	}); err != nil {
		return RewardActionResult{}, err
	}

	if len(out.NewBadges) > 0 {
		names := make([]string, 0, len(out.NewBadges))
		for _, b := range out.NewBadges {
			names = append(names, b.BadgeID)
		}
		logging.Info(
			logging.WithAttrs(ctx, slog.String("component", "usecase.rewards")),
			"badges unlocked",
			slog.Uint64("user_id", input.UserID),
			slog.Any("badges", names),
		)
	}
	return out, nil
}

func (s *Service) awardBadges(ctx context.Context, userID uint64, wallet ports.Wallet, claim domainreview.ClaimContext) ([]ports.Badge, error) {
	snapshot := domainreview.WalletSnapshot{
		XP:            wallet.XP,
		Coins:         wallet.Coins,
		TotalEarned:   wallet.TotalEarned,
		TotalDebtPaid: wallet.TotalDebtPaid,
		ClaimCount:    wallet.ClaimCount,
	}

	var awarded []ports.Badge
	for _, spec := range domainreview.BadgeSpecs(s.rewards.Thresholds) {
		if !spec.Unlocked(snapshot, claim) {
			continue
		}
		badge := ports.BadgeCreate{
			UserID:      userID,
			BadgeID:     spec.ID,
			Name:        spec.Name,
			Description: spec.Description,
			Icon:        spec.Icon,
			EarnedAt:    nowUTCString(),
		}
		inserted, err := s.repo.AddBadge(ctx, badge)
		if err != nil {
			return nil, err
		}
		if inserted {
			awarded = append(awarded, ports.Badge{
				BadgeID:     badge.BadgeID,
				Name:        badge.Name,
				Description: badge.Description,
				Icon:        badge.Icon,
				EarnedAt:    badge.EarnedAt,
			})
		}
	}
	return awarded, nil
}

// UnlockLesson generates (or returns the cached) educational write-up for one
// finding and stores it on the finding in place.
func (s *Service) UnlockLesson(ctx context.Context, input RewardActionInput) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return "", errors.New("review repository is required")
	}
	if s.uow == nil {
		return "", errors.New("unit of work is required")
	}
	if s.lessons == nil {
		return "", errors.New("lesson writer is not configured")
	}

	analysis, err := s.repo.GetAnalysis(ctx, input.AnalysisID)
	if err != nil {
		return "", err
	}
	repoRow, err := s.repo.GetRepository(ctx, analysis.RepositoryID)
	if err != nil {
		return "", err
	}
	if repoRow.OwnerUserID != input.UserID {
		return "", domainreview.ErrNotRepositoryOwner
	}

	var findings []domainreview.Finding
	if err := json.Unmarshal([]byte(analysis.FindingsJSON), &findings); err != nil {
		return "", errs.Wrap(err, "parse findings")
	}
	if input.FindingIndex < 0 || input.FindingIndex >= len(findings) {
		return "", domainreview.ErrFindingOutOfRange
	}
	if lesson := findings[input.FindingIndex].LessonContent; lesson != "" {
		return lesson, nil
	}

	lesson, err := s.lessons.WriteLesson(ctx, findings[input.FindingIndex])
	if err != nil {
		return "", errs.Wrap(err, "generate lesson")
	}

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.repo.GetAnalysis(txCtx, input.AnalysisID)
		if err != nil {
			return err
		}
		var latest []domainreview.Finding
		if err := json.Unmarshal([]byte(current.FindingsJSON), &latest); err != nil {
			return errs.Wrap(err, "parse findings")
		}
		if input.FindingIndex >= len(latest) {
			return domainreview.ErrFindingOutOfRange
		}
		latest[input.FindingIndex].LessonContent = lesson

		updatedJSON, err := json.Marshal(latest)
		if err != nil {
			return errs.Wrap(err, "marshal findings")
		}
		return s.repo.UpdateAnalysisFindings(txCtx, current.AnalysisID, string(updatedJSON), current.IssuesFound)
	}); err != nil {
		return "", err
	}
	return lesson, nil
}
