package review

import (
	"errors"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	domainreview "codesensei/internal/domain/review"
	"codesensei/internal/errs"
)

// RewardsProfile bundles the payout table and badge thresholds. Operators can
// override the compiled-in defaults from a small toml file.
type RewardsProfile struct {
	Table      domainreview.RewardTable
	Thresholds domainreview.BadgeThresholds
}

type rewardsProfileTier struct {
	Coins int64 `toml:"coins"`
	XP    int64 `toml:"xp"`
}

type rewardsProfileFile struct {
	Rewards map[string]rewardsProfileTier `toml:"rewards"`
	Badges  struct {
		BugHunterXP       int64 `toml:"bug_hunter_xp"`
		DebtCrusherEarned int64 `toml:"debt_crusher_earned"`
	} `toml:"badges"`
}

func DefaultRewardsProfile() RewardsProfile {
	return RewardsProfile{
		Table:      domainreview.DefaultRewardTable(),
		Thresholds: domainreview.DefaultBadgeThresholds(),
	}
}

// LoadRewardsProfile reads a toml override file. An empty path returns the
// defaults; a missing or malformed file is an error rather than a silent
// fallback, since payouts are money-adjacent.
func LoadRewardsProfile(profileFile string) (RewardsProfile, error) {
	profile := DefaultRewardsProfile()

	path := strings.TrimSpace(profileFile)
	if path == "" {
		return profile, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return RewardsProfile{}, errs.Wrapf(err, "read rewards profile %q", path)
	}

	var file rewardsProfileFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return RewardsProfile{}, errs.Wrapf(err, "parse rewards profile %q", path)
	}

	for name, tier := range file.Rewards {
		severity := domainreview.NormalizeSeverity(name)
		if !strings.EqualFold(name, string(severity)) {
			return RewardsProfile{}, errors.New("unknown severity in rewards profile: " + name)
		}
		if tier.Coins < 0 || tier.XP < 0 {
			return RewardsProfile{}, errors.New("rewards profile amounts must be non-negative: " + name)
		}
		profile.Table[severity] = domainreview.Reward{Coins: tier.Coins, XP: tier.XP}
	}

	if file.Badges.BugHunterXP > 0 {
		profile.Thresholds.BugHunterXP = file.Badges.BugHunterXP
	}
	if file.Badges.DebtCrusherEarned > 0 {
		profile.Thresholds.DebtCrusherEarned = file.Badges.DebtCrusherEarned
	}
	return profile, nil
}
