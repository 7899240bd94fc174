package ports

import "context"

// AnalysisJob is the durable payload handed from the webhook receiver to the
// background worker.
type AnalysisJob struct {
	JobID          string `json:"job_id"`
	Owner          string `json:"owner"`
	Repo           string `json:"repo"`
	PRNumber       int    `json:"pr_number"`
	InstallationID int64  `json:"installation_id"`
	DiffURL        string `json:"diff_url"`
	DeliveryID     string `json:"delivery_id"`
}

// JobQueue enqueues analysis jobs for at-least-once background execution.
type JobQueue interface {
	EnqueueAnalysis(ctx context.Context, job AnalysisJob) error
}
