package model

// Analysis is immutable after the pipeline writes it, except for
// findings_json which is mutated in place when a user claims a reward or
// unlocks a lesson for one finding.
type Analysis struct {
	AnalysisID   string `gorm:"column:analysis_id;type:text;primaryKey"`
	RepositoryID uint64 `gorm:"column:repository_id;not null;index"`
	PRNumber     int    `gorm:"column:pr_number;not null;index"`
	RiskScore    int    `gorm:"column:risk_score;not null"`
	Status       string `gorm:"column:status;type:text;not null"`
	IssuesFound  int    `gorm:"column:issues_found;not null"`
	FindingsJSON string `gorm:"column:findings_json;type:text;not null"`
	CreatedAt    string `gorm:"column:created_at;type:text;not null;index"`
}

func (Analysis) TableName() string {
	return "analyses"
}
