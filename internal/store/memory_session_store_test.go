package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dunamismax/pixeledit/internal/domain"
	"github.com/dunamismax/pixeledit/internal/editor"
	"github.com/dunamismax/pixeledit/internal/submit"
)

type noopSubmitter struct{}

func (noopSubmitter) Submit(context.Context, domain.MediaReference, domain.TransformState, string) (domain.MediaReference, submit.Outcome, error) {
	return domain.MediaReference{}, submit.Outcome{}, nil
}

func TestMemorySessionStoreGetDelete(t *testing.T) {
	s := NewMemorySessionStore(time.Minute)
	session := editor.New("s-1", domain.MediaReference{ID: "m-1"}, noopSubmitter{}, editor.Options{})
	s.Put(session)

	got, err := s.Get("s-1")
	if err != nil || got != session {
		t.Fatalf("expected stored session, got %v err=%v", got, err)
	}

	if _, ok := s.Delete("s-1"); !ok {
		t.Fatal("expected delete to find the session")
	}
	if !session.Closed() {
		t.Fatal("expected deleted session to be closed")
	}
	if _, err := s.Get("s-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestMemorySessionStoreSweepsIdleSessions(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base

	s := NewMemorySessionStore(10 * time.Minute)
	s.now = func() time.Time { return clock }

	opts := editor.Options{Now: func() time.Time { return clock }}
	stale := editor.New("stale", domain.MediaReference{ID: "m-1"}, noopSubmitter{}, opts)
	s.Put(stale)

	clock = base.Add(8 * time.Minute)
	fresh := editor.New("fresh", domain.MediaReference{ID: "m-2"}, noopSubmitter{}, opts)
	s.Put(fresh)

	clock = base.Add(12 * time.Minute)
	if removed := s.Sweep(); removed != 1 {
		t.Fatalf("expected one expired session, got %d", removed)
	}
	if _, err := s.Get("stale"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatal("expected stale session to be removed")
	}
	if _, err := s.Get("fresh"); err != nil {
		t.Fatalf("expected fresh session to survive: %v", err)
	}
	if !stale.Closed() {
		t.Fatal("expected swept session to be closed")
	}
}

func TestMemoryEditLogStoreListByMedia(t *testing.T) {
	s := NewMemoryEditLogStore()
	ctx := context.Background()
	_ = s.CreateEditLog(ctx, domain.EditLog{SessionID: "a", MediaID: "m-1"})
	_ = s.CreateEditLog(ctx, domain.EditLog{SessionID: "b", MediaID: "m-2"})
	_ = s.CreateEditLog(ctx, domain.EditLog{SessionID: "c", MediaID: "m-1"})

	logs, err := s.ListByMedia(ctx, "m-1", 0)
	if err != nil {
		t.Fatalf("list edit logs: %v", err)
	}
	if len(logs) != 2 || logs[0].SessionID != "c" || logs[1].SessionID != "a" {
		t.Fatalf("unexpected logs %+v", logs)
	}

	logs, _ = s.ListByMedia(ctx, "m-1", 1)
	if len(logs) != 1 || logs[0].SessionID != "c" {
		t.Fatalf("expected limit to keep the newest entry, got %+v", logs)
	}
}

func TestMemoryEditLogStoreKeepsOneEntryPerSession(t *testing.T) {
	s := NewMemoryEditLogStore()
	ctx := context.Background()

	if err := s.CreateEditLog(ctx, domain.EditLog{SessionID: "a", MediaID: "m-1", OutputBytes: 10}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	err := s.CreateEditLog(ctx, domain.EditLog{SessionID: "a", MediaID: "m-1", OutputBytes: 20})
	if !errors.Is(err, ErrEditLogExists) {
		t.Fatalf("expected ErrEditLogExists, got %v", err)
	}

	logs, _ := s.ListByMedia(ctx, "m-1", 0)
	if len(logs) != 1 || logs[0].OutputBytes != 10 {
		t.Fatalf("expected the first entry to be kept, got %+v", logs)
	}
}
