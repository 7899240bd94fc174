package cmd

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"codesensei/internal/bootstrap"
	"codesensei/internal/bootstrap/logging"
	"codesensei/internal/errs"
	"codesensei/internal/infrastructure/llm"
	queueinfra "codesensei/internal/infrastructure/queue"
	"codesensei/internal/usecase/review"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook receiver and dashboard API server",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *review.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		cfg := app.Config

		addr, _ := cmd.Flags().GetString("addr")
		addr = strings.TrimSpace(addr)
		if addr == "" {
			addr = cfg.Server.Addr
		}

		queue, err := queueinfra.Connect(ctx, cfg.Queue.URL, cfg.Queue.Stream, cfg.Queue.Subject)
		if err != nil {
			return errs.Wrap(err, "connect job queue")
		}
		defer queue.Close()
		svc.SetQueue(queue)

		// Lessons are served from the dashboard API, so the server needs the
		// summarizer model even though analysis runs in the worker.
		if cfg.LLM.Summarizer.APIKey != "" {
			summarizer, err := llm.NewSummarizer(cfg.LLM.Summarizer.BaseURL, cfg.LLM.Summarizer.APIKey, cfg.LLM.Summarizer.Model)
			if err != nil {
				return errs.Wrap(err, "build summarizer")
			}
			svc.SetLessonWriter(summarizer)
		}

		server := &http.Server{
			Addr:    addr,
			Handler: newDashboardHandler(svc, cfg.GitHub.WebhookSecret),
		}

		logging.Info(
			ctx,
			"dashboard server started",
			slog.String("addr", addr),
			slog.Bool("webhook_secret_set", cfg.GitHub.WebhookSecret != ""),
		)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(ctx, "dashboard server failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "serve dashboard")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default from config)")
}
