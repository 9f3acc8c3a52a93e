package worker

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/dunamismax/pixeledit/internal/domain"
	"github.com/dunamismax/pixeledit/internal/queue"
	"github.com/dunamismax/pixeledit/internal/store"
	"github.com/dunamismax/pixeledit/internal/webhook"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
)

func newTestServer(sender webhookSender, logs store.EditLogStore, defaultURL string) *Server {
	return &Server{
		logger:        log.New(io.Discard, "", 0),
		webhookClient: sender,
		webhookURL:    defaultURL,
		editLogs:      logs,
		metrics:       newMetrics(),
		tracer:        otel.Tracer("test"),
	}
}

func mediaEditedTask(t *testing.T, payload queue.MediaEditedPayload) *asynq.Task {
	t.Helper()
	task, err := queue.NewMediaEditedTask(payload)
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	return task
}

func TestHandleMediaEditedRecordsLogAndNotifies(t *testing.T) {
	logs := store.NewMemoryEditLogStore()
	sender := &captureSender{}
	s := newTestServer(sender, logs, "https://library.example.com/hooks")

	task := mediaEditedTask(t, queue.MediaEditedPayload{
		SessionID:        "sess-1",
		Original:         domain.MediaReference{ID: "m-1"},
		Updated:          domain.MediaReference{ID: "m-2", URL: "/uploads/m-2.png"},
		ProcessedLocally: true,
		PixelsProcessed:  1_000,
		OutputBytes:      300,
		ComputeTimeMS:    12,
		EditedAt:         time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	})

	if err := s.handleMediaEdited(context.Background(), task); err != nil {
		t.Fatalf("handle task: %v", err)
	}

	entries, _ := logs.ListByMedia(context.Background(), "m-1", 0)
	if len(entries) != 1 {
		t.Fatalf("expected one edit log, got %d", len(entries))
	}
	if entries[0].UserID != "anonymous" || entries[0].ResultMediaID != "m-2" || entries[0].PixelsProcessed != 1_000 {
		t.Fatalf("unexpected edit log %+v", entries[0])
	}

	if sender.endpoint != "https://library.example.com/hooks" {
		t.Fatalf("expected default webhook url, got %q", sender.endpoint)
	}
	if sender.event != webhook.EventMediaEdited {
		t.Fatalf("expected %s event, got %q", webhook.EventMediaEdited, sender.event)
	}
}

func TestHandleMediaEditedRetriesFailedEditLog(t *testing.T) {
	logs := &flakyEditLogStore{MemoryEditLogStore: store.NewMemoryEditLogStore(), failures: 1}
	sender := &captureSender{}
	s := newTestServer(sender, logs, "https://library.example.com/hooks")

	task := mediaEditedTask(t, queue.MediaEditedPayload{SessionID: "sess-3", Original: domain.MediaReference{ID: "m-1"}, Updated: domain.MediaReference{ID: "m-2"}})

	if err := s.handleMediaEdited(context.Background(), task); err == nil {
		t.Fatal("expected a failed edit log write to fail the task for retry")
	}
	if sender.endpoint != "" {
		t.Fatal("expected no webhook before the edit log is recorded")
	}

	if err := s.handleMediaEdited(context.Background(), task); err != nil {
		t.Fatalf("retry: %v", err)
	}
	entries, _ := logs.ListByMedia(context.Background(), "m-1", 0)
	if len(entries) != 1 || entries[0].SessionID != "sess-3" {
		t.Fatalf("expected the retry to record the edit log, got %+v", entries)
	}
	if sender.endpoint == "" {
		t.Fatal("expected the webhook after the retry")
	}
}

func TestHandleMediaEditedWebhookRetryKeepsOneEditLog(t *testing.T) {
	logs := store.NewMemoryEditLogStore()
	sender := &captureSender{err: errors.New("connection refused")}
	s := newTestServer(sender, logs, "https://library.example.com/hooks")

	task := mediaEditedTask(t, queue.MediaEditedPayload{SessionID: "sess-4", Original: domain.MediaReference{ID: "m-1"}, Updated: domain.MediaReference{ID: "m-2"}})
	if err := s.handleMediaEdited(context.Background(), task); err == nil {
		t.Fatal("expected webhook failure")
	}

	sender.err = nil
	if err := s.handleMediaEdited(context.Background(), task); err != nil {
		t.Fatalf("retry: %v", err)
	}
	entries, _ := logs.ListByMedia(context.Background(), "m-1", 0)
	if len(entries) != 1 {
		t.Fatalf("expected one edit log across retries, got %d", len(entries))
	}
}

func TestHandleMediaEditedReturnsWebhookError(t *testing.T) {
	sender := &captureSender{err: errors.New("connection refused")}
	s := newTestServer(sender, store.NewMemoryEditLogStore(), "https://library.example.com/hooks")

	task := mediaEditedTask(t, queue.MediaEditedPayload{SessionID: "s", Updated: domain.MediaReference{ID: "m-2"}})
	if err := s.handleMediaEdited(context.Background(), task); err == nil {
		t.Fatal("expected webhook failure to fail the task for retry")
	}
}

func TestHandleMediaEditedSkipsRetryOnBadPayload(t *testing.T) {
	s := newTestServer(nil, nil, "")
	err := s.handleMediaEdited(context.Background(), asynq.NewTask(queue.TypeMediaEdited, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

type captureSender struct {
	endpoint string
	event    string
	payload  any
	err      error
}

func (s *captureSender) Send(_ context.Context, endpoint, event string, payload any) error {
	s.endpoint = endpoint
	s.event = event
	s.payload = payload
	return s.err
}

type flakyEditLogStore struct {
	*store.MemoryEditLogStore
	failures int
}

func (s *flakyEditLogStore) CreateEditLog(ctx context.Context, entry domain.EditLog) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("connection reset by peer")
	}
	return s.MemoryEditLogStore.CreateEditLog(ctx, entry)
}
