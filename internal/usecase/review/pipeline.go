package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"codesensei/internal/bootstrap/logging"
	domainreview "codesensei/internal/domain/review"
	"codesensei/internal/errs"
	"codesensei/internal/ports"
)

const fallbackSummaryWithIssues = "⚠️ CodeSensei found potential issues in this pull request. " +
	"The detailed write-up could not be generated right now; check the dashboard for the full findings."

const fallbackSummaryClean = "✅ CodeSensei reviewed this pull request and found no issues to report."

const fallbackSummaryFailed = "⚠️ CodeSensei could not complete the security scan for this pull request. " +
	"Treat this review as incomplete; no findings were produced."

type AnalysisJobResult struct {
	AnalysisID      string
	RiskScore       int
	Status          domainreview.Status
	IssuesFound     int
	RepositoryFound bool
	CommentPosted   bool
}

// RunAnalysisJob executes one enqueued analysis end to end. Returning an
// error leaves the delivery marked failed and lets the queue redeliver.
func (s *Service) RunAnalysisJob(ctx context.Context, job ports.AnalysisJob) (AnalysisJobResult, error) {
	if ctx == nil {
		return AnalysisJobResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return AnalysisJobResult{}, errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return AnalysisJobResult{}, errors.New("review repository is required")
	}
	if s.pulls == nil {
		return AnalysisJobResult{}, errors.New("pull request client is required")
	}
	if s.finder == nil || s.summarizer == nil {
		return AnalysisJobResult{}, errors.New("analyzers are required")
	}

	logCtx := logging.WithAttrs(
		ctx,
		slog.String("component", "usecase.pipeline"),
		slog.String("job_id", job.JobID),
		slog.String("repo", job.Owner+"/"+job.Repo),
		slog.Int("pr_number", job.PRNumber),
	)

	result, err := s.runAnalysis(logCtx, job)
	if err != nil {
		if strings.TrimSpace(job.DeliveryID) != "" {
			if markErr := s.repo.MarkDeliveryFailed(logCtx, job.DeliveryID, err.Error()); markErr != nil {
				logging.Error(logCtx, "record pipeline failure", slog.Any("err", errs.Loggable(markErr)))
			}
		}
		return AnalysisJobResult{}, err
	}
	return result, nil
}

func (s *Service) runAnalysis(ctx context.Context, job ports.AnalysisJob) (AnalysisJobResult, error) {
	diff, err := s.fetchDiff(ctx, job)
	if err != nil {
		return AnalysisJobResult{}, err
	}
	truncated := truncateDiff(diff, s.diffCharBudget)
	if len(truncated) < len(diff) {
		logging.Info(ctx, "diff truncated for analysis",
			slog.Int("original_len", len(diff)),
			slog.Int("truncated_len", len(truncated)),
		)
	}

	findings, finderErr := s.finder.FindBugs(ctx, truncated)
	if finderErr != nil {
		// Fail open on the finder but never report the run as clean: the
		// status records that the scanner errored.
		logging.Error(ctx, "bug finder failed, recording analysis as failed",
			slog.Any("err", errs.Loggable(finderErr)),
		)
		findings = nil
	}

	// An errored scan must never read as a clean one, so the failure text
	// replaces the summarizer output entirely.
	var summary string
	if finderErr != nil {
		summary = fallbackSummaryFailed
	} else if summary, err = s.summarizer.Summarize(ctx, findings, truncated); err != nil {
		logging.Warn(ctx, "summarizer failed, using fallback comment", slog.Any("err", errs.Loggable(err)))
		summary = fallbackSummaryClean
		if len(findings) > 0 {
			summary = fallbackSummaryWithIssues
		}
	}

	score := domainreview.Score(findings)
	status := domainreview.StatusForScore(score)
	if finderErr != nil {
		status = domainreview.StatusAnalysisFailed
	}

	result := AnalysisJobResult{
		RiskScore:   score,
		Status:      status,
		IssuesFound: len(findings),
	}

	analysisID, persistErr := s.persistAnalysis(ctx, job, score, status, findings)
	switch {
	case persistErr == nil && analysisID == "":
		// Repository is not connected; the user has to link it first.
		// Returning success avoids a webhook retry storm.
		if err := s.markDeliveryDone(ctx, job); err != nil {
			return AnalysisJobResult{}, err
		}
		return result, nil
	case persistErr != nil:
		logging.Error(ctx, "persist analysis failed, posting unlinked comment", slog.Any("err", errs.Loggable(persistErr)))
	default:
		result.AnalysisID = analysisID
		result.RepositoryFound = true
	}

	body := summary
	if result.AnalysisID != "" {
		body = fmt.Sprintf("%s\n\n---\n📊 [View your full analysis](%s/dashboard/learn/%s)",
			summary, s.dashboardBaseURL, result.AnalysisID)
	}
	if err := s.pulls.PostComment(ctx, job.InstallationID, job.Owner, job.Repo, job.PRNumber, body); err != nil {
		return AnalysisJobResult{}, errs.Wrap(err, "post pr comment")
	}
	result.CommentPosted = true

	if err := s.markDeliveryDone(ctx, job); err != nil {
		return AnalysisJobResult{}, err
	}

	logging.Info(ctx, "analysis completed",
		slog.String("analysis_id", result.AnalysisID),
		slog.Int("risk_score", score),
		slog.String("status", string(status)),
		slog.Int("issues_found", len(findings)),
	)
	return result, nil
}

// fetchDiff memoizes the diff per job so a retried job does not refetch.
func (s *Service) fetchDiff(ctx context.Context, job ports.AnalysisJob) (string, error) {
	cacheKey := "diff:" + job.JobID
	if cached, found := s.getCache(ctx, cacheKey); found {
		return cached, nil
	}

	diff, err := s.pulls.FetchDiff(ctx, job.InstallationID, job.Owner, job.Repo, job.PRNumber)
	if err != nil {
		return "", errs.Wrap(err, "fetch pr diff")
	}
	s.setCacheBestEffort(ctx, cacheKey, diff)
	return diff, nil
}

// persistAnalysis returns ("", nil) when the repository is not connected.
func (s *Service) persistAnalysis(
	ctx context.Context,
	job ports.AnalysisJob,
	score int,
	status domainreview.Status,
	findings []domainreview.Finding,
) (string, error) {
	fullName := job.Owner + "/" + job.Repo
	repoRow, err := s.repo.GetRepositoryByFullName(ctx, fullName)
	if err != nil {
		if errors.Is(err, ports.ErrRepositoryNotFound) {
			logging.Warn(ctx, "repository not connected, skipping persistence",
				slog.String("full_name", fullName),
			)
			return "", nil
		}
		return "", err
	}

	// Installations can be reinstalled under a new id while the repo record
	// persists; heal the stored reference from the live event.
	if job.InstallationID != 0 && repoRow.InstallationID != job.InstallationID {
		if err := s.repo.UpdateRepositoryInstallation(ctx, repoRow.RepositoryID, job.InstallationID); err != nil {
			return "", err
		}
		logging.Info(ctx, "repository installation id healed",
			slog.Int64("old", repoRow.InstallationID),
			slog.Int64("new", job.InstallationID),
		)
	}

	findingsJSON, err := json.Marshal(marshalableFindings(findings))
	if err != nil {
		return "", errs.Wrap(err, "marshal findings")
	}

	analysisID := uuid.NewString()
	if err := s.repo.CreateAnalysis(ctx, ports.Analysis{
		AnalysisID:   analysisID,
		RepositoryID: repoRow.RepositoryID,
		PRNumber:     job.PRNumber,
		RiskScore:    score,
		Status:       string(status),
		IssuesFound:  len(findings),
		FindingsJSON: string(findingsJSON),
		CreatedAt:    nowUTCString(),
	}); err != nil {
		return "", err
	}
	return analysisID, nil
}

func (s *Service) markDeliveryDone(ctx context.Context, job ports.AnalysisJob) error {
	if strings.TrimSpace(job.DeliveryID) == "" {
		return nil
	}
	if err := s.repo.MarkDeliveryProcessed(ctx, job.DeliveryID, nowUTCString()); err != nil {
		return errs.Wrap(err, "mark delivery processed")
	}
	return nil
}
