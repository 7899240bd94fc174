package model

type Repository struct {
	RepositoryID   uint64 `gorm:"column:repository_id;primaryKey;autoIncrement"`
	ExternalRepoID int64  `gorm:"column:external_repo_id;not null;uniqueIndex:idx_repo_owner"`
	OwnerUserID    uint64 `gorm:"column:owner_user_id;not null;uniqueIndex:idx_repo_owner"`
	FullName       string `gorm:"column:full_name;type:text;not null;index"`
	InstallationID int64  `gorm:"column:installation_id;not null"`
	CreatedAt      string `gorm:"column:created_at;type:text;not null"`
	UpdatedAt      string `gorm:"column:updated_at;type:text;not null"`
}

func (Repository) TableName() string {
	return "repositories"
}
