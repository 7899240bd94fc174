package model

// Wallet fields are monotonically incremented by the reward ledger.
type Wallet struct {
	UserID        uint64 `gorm:"column:user_id;primaryKey"`
	XP            int64  `gorm:"column:xp;not null;default:0"`
	Coins         int64  `gorm:"column:coins;not null;default:0"`
	TotalEarned   int64  `gorm:"column:total_earned;not null;default:0"`
	TotalDebtPaid int64  `gorm:"column:total_debt_paid;not null;default:0"`
	StreakCount   int64  `gorm:"column:streak_count;not null;default:0"`
	ClaimCount    int64  `gorm:"column:claim_count;not null;default:0"`
	LastRewardAt  string `gorm:"column:last_reward_at;type:text;not null;default:''"`
	CreatedAt     string `gorm:"column:created_at;type:text;not null"`
	UpdatedAt     string `gorm:"column:updated_at;type:text;not null"`
}

func (Wallet) TableName() string {
	return "wallets"
}
