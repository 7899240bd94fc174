package review

import (
	"context"
	"testing"
)

func TestIngestDuplicateDeliverySkipsProcessing(t *testing.T) {
	svc, env := setupService(t)
	ctx := context.Background()

	payload := []byte(`{"action":"opened","pull_request":{"number":7,"diff_url":"https://example.com/7.diff"},` +
		`"repository":{"id":1001,"full_name":"octocat/hello","name":"hello","owner":{"id":4242,"login":"octocat"}},` +
		`"installation":{"id":555}}`)

	first, err := svc.IngestWebhookEvent(ctx, WebhookEventInput{
		DeliveryID: "delivery-1",
		EventType:  "pull_request",
		Payload:    payload,
	})
	if err != nil {
		t.Fatalf("IngestWebhookEvent() error = %v", err)
	}
	if first.Duplicate {
		t.Fatal("first delivery marked duplicate")
	}
	if !first.Enqueued {
		t.Fatal("first delivery not enqueued")
	}

	second, err := svc.IngestWebhookEvent(ctx, WebhookEventInput{
		DeliveryID: "delivery-1",
		EventType:  "pull_request",
		Payload:    payload,
	})
	if err != nil {
		t.Fatalf("IngestWebhookEvent() replay error = %v", err)
	}
	if !second.Duplicate {
		t.Fatal("replay not marked duplicate")
	}
	if second.Enqueued {
		t.Fatal("replay enqueued a second job")
	}
	if len(env.queue.jobs) != 1 {
		t.Fatalf("queued jobs = %d, want 1", len(env.queue.jobs))
	}
}

func TestIngestPullRequestEnqueuesJob(t *testing.T) {
	svc, env := setupService(t)
	ctx := context.Background()

	out, err := svc.IngestWebhookEvent(ctx, WebhookEventInput{
		DeliveryID: "delivery-2",
		EventType:  "pull_request",
		Payload: []byte(`{"action":"synchronize","pull_request":{"number":12,"diff_url":"https://example.com/12.diff"},` +
			`"repository":{"id":1001,"full_name":"octocat/hello","name":"hello","owner":{"id":4242,"login":"octocat"}},` +
			`"installation":{"id":555}}`),
	})
	if err != nil {
		t.Fatalf("IngestWebhookEvent() error = %v", err)
	}
	if !out.Enqueued || out.JobID == "" {
		t.Fatalf("result = %+v, want enqueued with job id", out)
	}

	if len(env.queue.jobs) != 1 {
		t.Fatalf("queued jobs = %d, want 1", len(env.queue.jobs))
	}
	job := env.queue.jobs[0]
	if job.Owner != "octocat" || job.Repo != "hello" || job.PRNumber != 12 {
		t.Fatalf("job = %+v", job)
	}
	if job.InstallationID != 555 {
		t.Fatalf("job installation id = %d, want 555", job.InstallationID)
	}
	if job.DeliveryID != "delivery-2" {
		t.Fatalf("job delivery id = %q, want delivery-2", job.DeliveryID)
	}
}

func TestIngestPullRequestClosedIsIgnored(t *testing.T) {
	svc, env := setupService(t)
	ctx := context.Background()

	out, err := svc.IngestWebhookEvent(ctx, WebhookEventInput{
		DeliveryID: "delivery-3",
		EventType:  "pull_request",
		Payload:    []byte(`{"action":"closed","pull_request":{"number":3}}`),
	})
	if err != nil {
		t.Fatalf("IngestWebhookEvent() error = %v", err)
	}
	if !out.Ignored {
		t.Fatalf("result = %+v, want ignored", out)
	}
	if len(env.queue.jobs) != 0 {
		t.Fatalf("queued jobs = %d, want 0", len(env.queue.jobs))
	}

	delivery, err := env.repo.GetWebhookDelivery(ctx, "delivery-3")
	if err != nil {
		t.Fatalf("GetWebhookDelivery() error = %v", err)
	}
	if delivery.ProcessedAt == "" {
		t.Fatal("ignored delivery not marked processed")
	}
}

func TestIngestInstallationSyncsRepositories(t *testing.T) {
	svc, env := setupService(t)
	ctx := context.Background()

	user, err := svc.RegisterUser(ctx, RegisterUserInput{GitHubAccountID: 4242, Login: "octocat"})
	if err != nil {
		t.Fatalf("RegisterUser() error = %v", err)
	}

	out, err := svc.IngestWebhookEvent(ctx, WebhookEventInput{
		DeliveryID: "delivery-4",
		EventType:  "installation",
		Payload: []byte(`{"action":"created","installation":{"id":555,"account":{"id":4242,"login":"octocat"}},` +
			`"repositories":[{"id":1001,"full_name":"octocat/hello","name":"hello"},{"id":1002,"full_name":"octocat/world","name":"world"}],` +
			`"sender":{"id":4242,"login":"octocat"}}`),
	})
	if err != nil {
		t.Fatalf("IngestWebhookEvent() error = %v", err)
	}
	if out.ReposSynced != 2 {
		t.Fatalf("repos synced = %d, want 2", out.ReposSynced)
	}

	repoRow, err := env.repo.GetRepositoryByFullName(ctx, "OCTOCAT/HELLO")
	if err != nil {
		t.Fatalf("GetRepositoryByFullName() error = %v", err)
	}
	if repoRow.OwnerUserID != user.UserID {
		t.Fatalf("owner = %d, want %d", repoRow.OwnerUserID, user.UserID)
	}
	if repoRow.InstallationID != 555 {
		t.Fatalf("installation id = %d, want 555", repoRow.InstallationID)
	}
}

func TestIngestInstallationUnknownSenderWritesNothing(t *testing.T) {
	svc, env := setupService(t)
	ctx := context.Background()

	out, err := svc.IngestWebhookEvent(ctx, WebhookEventInput{
		DeliveryID: "delivery-5",
		EventType:  "installation",
		Payload: []byte(`{"action":"created","installation":{"id":555},` +
			`"repositories":[{"id":1001,"full_name":"octocat/hello","name":"hello"}],` +
			`"sender":{"id":999,"login":"stranger"}}`),
	})
	if err != nil {
		t.Fatalf("IngestWebhookEvent() error = %v", err)
	}
	if out.ReposSynced != 0 {
		t.Fatalf("repos synced = %d, want 0", out.ReposSynced)
	}

	if _, err := env.repo.GetRepositoryByFullName(ctx, "octocat/hello"); err == nil {
		t.Fatal("repository was created for unknown sender")
	}

	delivery, err := env.repo.GetWebhookDelivery(ctx, "delivery-5")
	if err != nil {
		t.Fatalf("GetWebhookDelivery() error = %v", err)
	}
	if delivery.ProcessedAt == "" {
		t.Fatal("delivery not marked processed")
	}
}

func TestIngestEnqueueFailureMarksDeliveryFailed(t *testing.T) {
	svc, env := setupService(t)
	ctx := context.Background()

	env.queue.err = context.DeadlineExceeded

	_, err := svc.IngestWebhookEvent(ctx, WebhookEventInput{
		DeliveryID: "delivery-6",
		EventType:  "pull_request",
		Payload: []byte(`{"action":"opened","pull_request":{"number":1},` +
			`"repository":{"id":1,"full_name":"octocat/hello","name":"hello","owner":{"id":4242,"login":"octocat"}},` +
			`"installation":{"id":555}}`),
	})
	if err == nil {
		t.Fatal("IngestWebhookEvent() error = nil, want enqueue failure")
	}

	delivery, getErr := env.repo.GetWebhookDelivery(ctx, "delivery-6")
	if getErr != nil {
		t.Fatalf("GetWebhookDelivery() error = %v", getErr)
	}
	if delivery.Processed {
		t.Fatal("failed delivery marked processed")
	}
	if delivery.Error == "" {
		t.Fatal("failed delivery has no recorded error")
	}
}
