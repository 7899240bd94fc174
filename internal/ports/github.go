package ports

import "context"

// PullRequestClient is the GitHub surface the pipeline needs, authenticated
// per App installation.
type PullRequestClient interface {
	FetchDiff(ctx context.Context, installationID int64, owner string, repo string, number int) (string, error)
	PostComment(ctx context.Context, installationID int64, owner string, repo string, number int, body string) error
}
