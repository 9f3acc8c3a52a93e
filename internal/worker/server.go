package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dunamismax/pixeledit/internal/config"
	"github.com/dunamismax/pixeledit/internal/queue"
	"github.com/dunamismax/pixeledit/internal/store"
	"github.com/dunamismax/pixeledit/internal/webhook"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Server consumes media:edited tasks: it records the edit log and tells
// the media library about the new reference through a signed webhook.
type Server struct {
	logger        *log.Logger
	server        *asynq.Server
	webhookClient webhookSender
	webhookURL    string
	editLogs      store.EditLogStore
	metrics       *metrics
	tracer        trace.Tracer
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

func NewServer(
	logger *log.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	webhookClient webhookSender,
	editLogs store.EditLogStore,
) *Server {
	return &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: workerCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Printf("task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
				}),
			},
		),
		webhookClient: webhookClient,
		webhookURL:    workerCfg.WebhookURL,
		editLogs:      editLogs,
		metrics:       newMetrics(),
		tracer:        otel.Tracer("pixeledit/worker"),
	}
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeMediaEdited, s.handleMediaEdited)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleMediaEdited(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := "failed"

	payload, err := queue.ParseMediaEditedPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.media_edited", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("session.id", payload.SessionID),
		attribute.String("media.original_id", payload.Original.ID),
		attribute.String("media.updated_id", payload.Updated.ID),
		attribute.Bool("edit.processed_locally", payload.ProcessedLocally),
	)
	defer span.End()
	defer func() {
		s.metrics.notificationDuration.WithLabelValues(outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.notificationsTotal.WithLabelValues(outcome).Inc()
	}()

	s.logger.Printf(
		"Notifying... session_id=%s media_id=%s result_media_id=%s processed_locally=%t",
		payload.SessionID,
		payload.Original.ID,
		payload.Updated.ID,
		payload.ProcessedLocally,
	)

	if err := s.recordEditLog(ctx, payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "edit log write failed")
		return err
	}

	if err := s.dispatchWebhook(ctx, payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook dispatch failed")
		return err
	}

	outcome = "delivered"
	span.SetStatus(codes.Ok, "notified")
	return nil
}

func (s *Server) dispatchWebhook(ctx context.Context, payload queue.MediaEditedPayload) error {
	endpoint := s.webhookURL
	if endpoint == "" || s.webhookClient == nil {
		return nil
	}

	body := map[string]any{
		"session_id":        payload.SessionID,
		"original":          payload.Original,
		"media":             payload.Updated,
		"processed_locally": payload.ProcessedLocally,
		"fallback":          payload.Fallback,
		"edited_at":         payload.EditedAt,
	}
	if err := s.webhookClient.Send(ctx, endpoint, webhook.EventMediaEdited, body); err != nil {
		s.logger.Printf("webhook delivery failed session_id=%s media_id=%s err=%v", payload.SessionID, payload.Updated.ID, err)
		return fmt.Errorf("dispatch webhook: %w", err)
	}
	return nil
}

// recordEditLog writes the audit row on every attempt until it sticks. The
// store keeps one row per session, so a retry after a webhook failure is
// a no-op.
func (s *Server) recordEditLog(ctx context.Context, payload queue.MediaEditedPayload) error {
	if s.editLogs == nil {
		return nil
	}

	entry := payload.EditLog()
	if strings.TrimSpace(entry.UserID) == "" {
		entry.UserID = "anonymous"
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if err := s.editLogs.CreateEditLog(ctx, entry); err != nil {
		if errors.Is(err, store.ErrEditLogExists) {
			return nil
		}
		s.logger.Printf("edit log write failed session_id=%s err=%v", payload.SessionID, err)
		return fmt.Errorf("record edit log: %w", err)
	}

	s.metrics.pixelsProcessedTotal.Add(float64(entry.PixelsProcessed))
	s.metrics.outputBytesTotal.Add(float64(entry.OutputBytes))
	s.metrics.computeTimeMSTotal.Add(float64(entry.ComputeTimeMS))
	return nil
}
