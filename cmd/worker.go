package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"codesensei/internal/bootstrap"
	"codesensei/internal/bootstrap/logging"
	"codesensei/internal/errs"
	githubinfra "codesensei/internal/infrastructure/github"
	"codesensei/internal/infrastructure/llm"
	queueinfra "codesensei/internal/infrastructure/queue"
	"codesensei/internal/ports"
	"codesensei/internal/usecase/review"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the analysis worker consuming queued pull request jobs",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *review.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		cfg := app.Config

		if cfg.GitHub.AppID == 0 {
			return errors.New("github.app_id is required")
		}
		privateKey, err := os.ReadFile(cfg.GitHub.PrivateKeyFile)
		if err != nil {
			return errs.Wrapf(err, "read github private key %q", cfg.GitHub.PrivateKeyFile)
		}
		pulls, err := githubinfra.NewAppClient(cfg.GitHub.AppID, privateKey)
		if err != nil {
			return errs.Wrap(err, "build github app client")
		}

		finder, err := llm.NewBugFinder(cfg.LLM.Finder.BaseURL, cfg.LLM.Finder.APIKey, cfg.LLM.Finder.Model)
		if err != nil {
			return errs.Wrap(err, "build bug finder")
		}
		summarizer, err := llm.NewSummarizer(cfg.LLM.Summarizer.BaseURL, cfg.LLM.Summarizer.APIKey, cfg.LLM.Summarizer.Model)
		if err != nil {
			return errs.Wrap(err, "build summarizer")
		}

		queue, err := queueinfra.Connect(ctx, cfg.Queue.URL, cfg.Queue.Stream, cfg.Queue.Subject)
		if err != nil {
			return errs.Wrap(err, "connect job queue")
		}
		defer queue.Close()

		svc.SetPullRequestClient(pulls)
		svc.SetAnalyzers(finder, summarizer)
		svc.SetLessonWriter(summarizer)
		svc.SetQueue(queue)

		runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		logging.Info(ctx, "analysis worker started",
			slog.String("queue_url", cfg.Queue.URL),
			slog.String("durable", cfg.Queue.Durable),
		)

		err = queue.Consume(runCtx, cfg.Queue.Durable, func(jobCtx context.Context, job ports.AnalysisJob) error {
			_, err := svc.RunAnalysisJob(jobCtx, job)
			return err
		})
		if err != nil {
			logging.Error(ctx, "analysis worker failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "consume analysis jobs")
		}

		logging.Info(ctx, "analysis worker stopped")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
