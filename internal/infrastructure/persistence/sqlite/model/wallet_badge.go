package model

// WalletBadge rows are append-only; the unique index keeps a badge id from
// being awarded to the same user twice.
type WalletBadge struct {
	ID          uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	UserID      uint64 `gorm:"column:user_id;not null;uniqueIndex:idx_user_badge"`
	BadgeID     string `gorm:"column:badge_id;type:text;not null;uniqueIndex:idx_user_badge"`
	Name        string `gorm:"column:name;type:text;not null"`
	Description string `gorm:"column:description;type:text;not null"`
	Icon        string `gorm:"column:icon;type:text;not null"`
	EarnedAt    string `gorm:"column:earned_at;type:text;not null"`
}

func (WalletBadge) TableName() string {
	return "wallet_badges"
}
