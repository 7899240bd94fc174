package review

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"codesensei/internal/bootstrap/logging"
	"codesensei/internal/errs"
	"codesensei/internal/ports"
)

type WebhookEventInput struct {
	DeliveryID string
	EventType  string
	Payload    []byte
}

type WebhookEventResult struct {
	Duplicate   bool
	Enqueued    bool
	JobID       string
	ReposSynced int
	Ignored     bool
}

type webhookAccount struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

type webhookRepo struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Name     string `json:"name"`
}

type installationEventPayload struct {
	Action       string `json:"action"`
	Installation struct {
		ID      int64          `json:"id"`
		Account webhookAccount `json:"account"`
	} `json:"installation"`
	Repositories      []webhookRepo  `json:"repositories"`
	RepositoriesAdded []webhookRepo  `json:"repositories_added"`
	Sender            webhookAccount `json:"sender"`
}

type pullRequestEventPayload struct {
	Action      string `json:"action"`
	Number      int    `json:"number"`
	PullRequest struct {
		Number  int    `json:"number"`
		DiffURL string `json:"diff_url"`
	} `json:"pull_request"`
	Repository struct {
		ID       int64          `json:"id"`
		FullName string         `json:"full_name"`
		Name     string         `json:"name"`
		Owner    webhookAccount `json:"owner"`
	} `json:"repository"`
	Installation struct {
		ID int64 `json:"id"`
	} `json:"installation"`
}

// IngestWebhookEvent records the delivery (insert-before-processing is the
// idempotency guarantee), then routes by event type. Everything slow happens
// out of band: pull_request events only enqueue a job.
func (s *Service) IngestWebhookEvent(ctx context.Context, input WebhookEventInput) (WebhookEventResult, error) {
	if ctx == nil {
		return WebhookEventResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return WebhookEventResult{}, errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return WebhookEventResult{}, errors.New("review repository is required")
	}

	deliveryID := strings.TrimSpace(input.DeliveryID)
	if deliveryID == "" {
		return WebhookEventResult{}, errors.New("delivery id is required")
	}
	eventType := strings.ToLower(strings.TrimSpace(input.EventType))
	if eventType == "" {
		return WebhookEventResult{}, errors.New("event type is required")
	}

	logCtx := logging.WithAttrs(
		ctx,
		slog.String("component", "usecase.webhook"),
		slog.String("delivery_id", deliveryID),
		slog.String("event_type", eventType),
	)

	inserted, err := s.repo.CreateWebhookDelivery(ctx, ports.WebhookDeliveryCreate{
		DeliveryID: deliveryID,
		EventType:  eventType,
		ReceivedAt: nowUTCString(),
	})
	if err != nil {
		return WebhookEventResult{}, err
	}
	if !inserted {
		logging.Info(logCtx, "duplicate delivery, skipping")
		return WebhookEventResult{Duplicate: true}, nil
	}

	switch eventType {
	case "installation", "installation_repositories":
		return s.handleInstallationEvent(logCtx, deliveryID, input.Payload)
	case "pull_request":
		return s.handlePullRequestEvent(logCtx, deliveryID, input.Payload)
	default:
		if err := s.repo.MarkDeliveryProcessed(ctx, deliveryID, nowUTCString()); err != nil {
			return WebhookEventResult{}, err
		}
		logging.Info(logCtx, "event acknowledged, nothing to do")
		return WebhookEventResult{Ignored: true}, nil
	}
}

func (s *Service) handleInstallationEvent(ctx context.Context, deliveryID string, payload []byte) (WebhookEventResult, error) {
	var event installationEventPayload
	if err := json.Unmarshal(payload, &event); err != nil {
		return WebhookEventResult{}, errs.Wrap(err, "parse installation event")
	}

	action := strings.ToLower(strings.TrimSpace(event.Action))
	if action != "created" && action != "added" {
		if err := s.repo.MarkDeliveryProcessed(ctx, deliveryID, nowUTCString()); err != nil {
			return WebhookEventResult{}, err
		}
		return WebhookEventResult{Ignored: true}, nil
	}

	repos := event.Repositories
	repos = append(repos, event.RepositoriesAdded...)

	owner, err := s.repo.GetUserByGitHubAccountID(ctx, event.Sender.ID)
	if err != nil {
		if errors.Is(err, ports.ErrUserNotFound) {
			// Repositories will sync when the user connects later.
			logging.Info(ctx, "installation sender unknown, skipping repo sync",
				slog.Int64("sender_id", event.Sender.ID),
				slog.Int("repositories", len(repos)),
			)
			if err := s.repo.MarkDeliveryProcessed(ctx, deliveryID, nowUTCString()); err != nil {
				return WebhookEventResult{}, err
			}
			return WebhookEventResult{}, nil
		}
		return WebhookEventResult{}, err
	}

	synced := 0
	for _, repo := range repos {
		fullName := strings.TrimSpace(repo.FullName)
		if fullName == "" || repo.ID == 0 {
			continue
		}
		if err := s.repo.UpsertRepository(ctx, ports.RepositoryUpsert{
			ExternalRepoID: repo.ID,
			FullName:       fullName,
			InstallationID: event.Installation.ID,
			OwnerUserID:    owner.UserID,
		}); err != nil {
			return WebhookEventResult{}, err
		}
		synced++
	}

	if err := s.repo.MarkDeliveryProcessed(ctx, deliveryID, nowUTCString()); err != nil {
		return WebhookEventResult{}, err
	}

	logging.Info(ctx, "installation repositories synced",
		slog.Int("synced", synced),
		slog.Int64("installation_id", event.Installation.ID),
	)
	return WebhookEventResult{ReposSynced: synced}, nil
}

func (s *Service) handlePullRequestEvent(ctx context.Context, deliveryID string, payload []byte) (WebhookEventResult, error) {
	var event pullRequestEventPayload
	if err := json.Unmarshal(payload, &event); err != nil {
		return WebhookEventResult{}, errs.Wrap(err, "parse pull request event")
	}

	action := strings.ToLower(strings.TrimSpace(event.Action))
	if action != "opened" && action != "synchronize" {
		if err := s.repo.MarkDeliveryProcessed(ctx, deliveryID, nowUTCString()); err != nil {
			return WebhookEventResult{}, err
		}
		return WebhookEventResult{Ignored: true}, nil
	}

	if s.queue == nil {
		return WebhookEventResult{}, errors.New("job queue is not configured")
	}

	prNumber := event.PullRequest.Number
	if prNumber == 0 {
		prNumber = event.Number
	}

	job := ports.AnalysisJob{
		JobID:          uuid.NewString(),
		Owner:          event.Repository.Owner.Login,
		Repo:           event.Repository.Name,
		PRNumber:       prNumber,
		InstallationID: event.Installation.ID,
		DiffURL:        event.PullRequest.DiffURL,
		DeliveryID:     deliveryID,
	}
	if err := s.queue.EnqueueAnalysis(ctx, job); err != nil {
		if markErr := s.repo.MarkDeliveryFailed(ctx, deliveryID, "enqueue: "+err.Error()); markErr != nil {
			logging.Error(ctx, "record enqueue failure", slog.Any("err", errs.Loggable(markErr)))
		}
		return WebhookEventResult{}, errs.Wrap(err, "enqueue analysis job")
	}

	logging.Info(ctx, "analysis job enqueued",
		slog.String("job_id", job.JobID),
		slog.String("repo", event.Repository.FullName),
		slog.Int("pr_number", prNumber),
	)
	return WebhookEventResult{Enqueued: true, JobID: job.JobID}, nil
}
