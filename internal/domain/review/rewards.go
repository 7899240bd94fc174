package review

// Reward is the wallet delta for resolving one finding.
type Reward struct {
	Coins int64
	XP    int64
}

// RewardTable maps severity to the payout for claiming or fixing a finding
// of that severity.
type RewardTable map[Severity]Reward

// DefaultRewardTable is the compiled-in payout schedule. A rewards profile
// file may override individual entries.
func DefaultRewardTable() RewardTable {
	return RewardTable{
		SeverityCritical: {Coins: 500, XP: 100},
		SeverityHigh:     {Coins: 200, XP: 50},
		SeverityMedium:   {Coins: 75, XP: 25},
		SeverityLow:      {Coins: 25, XP: 10},
	}
}

// RewardFor returns the payout for a severity, falling back to the LOW tier
// for severities missing from a partial override table.
func (t RewardTable) RewardFor(severity Severity) Reward {
	if r, ok := t[severity]; ok {
		return r
	}
	if r, ok := t[SeverityLow]; ok {
		return r
	}
	return Reward{}
}

// WalletSnapshot is the state a badge rule is evaluated against, after the
// current reward has been applied.
type WalletSnapshot struct {
	XP            int64
	Coins         int64
	TotalEarned   int64
	TotalDebtPaid int64
	ClaimCount    int64
}

// ClaimContext describes the action that triggered badge evaluation.
type ClaimContext struct {
	Severity Severity
	Fixed    bool
}

// BadgeSpec is one unlockable badge with its predicate.
type BadgeSpec struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Unlocked    func(w WalletSnapshot, c ClaimContext) bool
}

// BadgeSpecs returns the badge catalog in evaluation order. Thresholds live
// in BadgeThresholds so a rewards profile can tune them.
func BadgeSpecs(th BadgeThresholds) []BadgeSpec {
	return []BadgeSpec{
		{
			ID:          "first-steps",
			Name:        "First Steps",
			Description: "Claimed your first finding",
			Icon:        "🌱",
			Unlocked: func(w WalletSnapshot, _ ClaimContext) bool {
				return w.ClaimCount >= 1
			},
		},
		{
			ID:          "security-champion",
			Name:        "Security Champion",
			Description: "Resolved a critical security issue",
			Icon:        "🛡️",
			Unlocked: func(_ WalletSnapshot, c ClaimContext) bool {
				return c.Severity == SeverityCritical
			},
		},
		{
			ID:          "bug-hunter",
			Name:        "Bug Hunter",
			Description: "Earned enough XP hunting bugs",
			Icon:        "🐛",
			Unlocked: func(w WalletSnapshot, _ ClaimContext) bool {
				return w.XP >= th.BugHunterXP
			},
		},
		{
			ID:          "debt-crusher",
			Name:        "Debt Crusher",
			Description: "Paid down a serious chunk of security debt",
			Icon:        "💰",
			Unlocked: func(w WalletSnapshot, _ ClaimContext) bool {
				return w.TotalEarned >= th.DebtCrusherEarned
			},
		},
	}
}

// BadgeThresholds are the tunable cutoffs referenced by badge predicates.
type BadgeThresholds struct {
	BugHunterXP       int64
	DebtCrusherEarned int64
}

func DefaultBadgeThresholds() BadgeThresholds {
	return BadgeThresholds{
		BugHunterXP:       500,
		DebtCrusherEarned: 2500,
	}
}
