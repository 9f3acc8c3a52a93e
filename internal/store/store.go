package store

import (
	"context"
	"errors"

	"github.com/dunamismax/pixeledit/internal/domain"
	"github.com/dunamismax/pixeledit/internal/editor"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrEditLogExists   = errors.New("edit log already recorded for session")
)

type SessionStore interface {
	Put(session *editor.Session)
	Get(id string) (*editor.Session, error)
	Delete(id string) (*editor.Session, bool)
}

// EditLogStore records completed saves, at most one per session. A second
// write for the same session returns ErrEditLogExists.
type EditLogStore interface {
	CreateEditLog(ctx context.Context, entry domain.EditLog) error
	ListByMedia(ctx context.Context, mediaID string, limit int) ([]domain.EditLog, error)
}
