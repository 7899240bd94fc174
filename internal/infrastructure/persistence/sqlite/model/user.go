package model

type User struct {
	UserID          uint64 `gorm:"column:user_id;primaryKey;autoIncrement"`
	GitHubAccountID int64  `gorm:"column:github_account_id;not null;uniqueIndex"`
	Login           string `gorm:"column:login;type:text;not null"`
	APIToken        string `gorm:"column:api_token;type:text;not null;uniqueIndex"`
	CreatedAt       string `gorm:"column:created_at;type:text;not null"`
}

func (User) TableName() string {
	return "users"
}
