package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"codesensei/internal/bootstrap/logging"
	"codesensei/internal/errs"
	"codesensei/internal/ports"
)

// NATSQueue is the durable job queue between the webhook receiver and the
// analysis worker. JetStream gives at-least-once delivery plus publish-side
// dedup on the job id, so a replayed enqueue does not double a job.
type NATSQueue struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	subject string
}

var _ ports.JobQueue = (*NATSQueue)(nil)

func Connect(ctx context.Context, url string, stream string, subject string) (*NATSQueue, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("queue url is required")
	}
	if strings.TrimSpace(stream) == "" || strings.TrimSpace(subject) == "" {
		return nil, errors.New("queue stream and subject are required")
	}

	conn, err := nats.Connect(url, nats.Name("codesensei"))
	if err != nil {
		return nil, errs.Wrap(err, "connect nats")
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, errs.Wrap(err, "open jetstream context")
	}

	if _, err := js.StreamInfo(stream); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			conn.Close()
			return nil, errs.Wrap(err, "query stream info")
		}
		if _, err := js.AddStream(&nats.StreamConfig{
			Name:      stream,
			Subjects:  []string{subject},
			Retention: nats.WorkQueuePolicy,
		}); err != nil {
			conn.Close()
			return nil, errs.Wrap(err, "create stream")
		}
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "queue.nats")),
		"job queue connected",
		slog.String("stream", stream),
		slog.String("subject", subject),
	)

	return &NATSQueue{
		conn:    conn,
		js:      js,
		subject: subject,
	}, nil
}

func (q *NATSQueue) EnqueueAnalysis(ctx context.Context, job ports.AnalysisJob) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if strings.TrimSpace(job.JobID) == "" {
		return errors.New("job id is required")
	}

	data, err := json.Marshal(job)
	if err != nil {
		return errs.Wrap(err, "marshal analysis job")
	}

	if _, err := q.js.Publish(q.subject, data, nats.MsgId(job.JobID), nats.Context(ctx)); err != nil {
		return errs.Wrap(err, "publish analysis job")
	}
	return nil
}

// Consume pulls jobs one at a time until the context is canceled. A handler
// error naks the message so JetStream redelivers it later; success acks.
func (q *NATSQueue) Consume(ctx context.Context, durable string, handler func(ctx context.Context, job ports.AnalysisJob) error) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if handler == nil {
		return errors.New("handler is required")
	}

	sub, err := q.js.PullSubscribe(q.subject, durable, nats.AckExplicit())
	if err != nil {
		return errs.Wrap(err, "pull subscribe")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "queue.nats"), slog.String("durable", durable))
	logging.Info(logCtx, "worker consuming analysis jobs")

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		msgs, err := sub.Fetch(1, nats.Context(ctx))
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			return errs.Wrap(err, "fetch analysis job")
		}

		for _, msg := range msgs {
			var job ports.AnalysisJob
			if err := json.Unmarshal(msg.Data, &job); err != nil {
				logging.Error(logCtx, "drop undecodable job", slog.Any("err", errs.Loggable(err)))
				_ = msg.Term()
				continue
			}

			if err := handler(ctx, job); err != nil {
				logging.Error(
					logCtx,
					"analysis job failed, requeueing",
					slog.String("job_id", job.JobID),
					slog.Any("err", errs.Loggable(err)),
				)
				_ = msg.Nak()
				continue
			}
			_ = msg.Ack()
		}
	}
}

func (q *NATSQueue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}
