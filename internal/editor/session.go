// Package editor holds one image edit session: the current transform, its
// undo history, and the save state machine around the submission adapter.
package editor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dunamismax/pixeledit/internal/domain"
	"github.com/dunamismax/pixeledit/internal/history"
	"github.com/dunamismax/pixeledit/internal/submit"
)

var (
	ErrBusy   = errors.New("a save is already in progress")
	ErrClosed = errors.New("editor session is closed")
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Submitter sends a finished edit to the media backend.
type Submitter interface {
	Submit(ctx context.Context, media domain.MediaReference, state domain.TransformState, token string) (domain.MediaReference, submit.Outcome, error)
}

// SaveResult is handed to OnSaved after a successful save.
type SaveResult struct {
	SessionID string
	Original  domain.MediaReference
	Updated   domain.MediaReference
	Outcome   submit.Outcome
	Token     string
}

type Options struct {
	// SourceWidth and SourceHeight bound the crop area when known.
	SourceWidth  int
	SourceHeight int
	// HistoryCapacity defaults to history.DefaultCapacity.
	HistoryCapacity int
	// OnSaved runs once after a successful save, outside the session lock.
	OnSaved func(SaveResult)
	// OnTransition observes status changes. It runs under the session
	// lock and must not call back into the session.
	OnTransition func(from, to Status)
	Now          func() time.Time
}

type Session struct {
	mu sync.Mutex

	id        string
	media     domain.MediaReference
	sourceW   int
	sourceH   int
	submitter Submitter

	state   domain.TransformState
	history *history.Stack

	status  Status
	lastErr error
	closed  bool
	result  *domain.MediaReference

	onSaved      func(SaveResult)
	onTransition func(from, to Status)
	now          func() time.Time
	lastActive   time.Time
}

// New opens a session on media. The neutral state is the history baseline
// so undoing every change returns to it.
func New(id string, media domain.MediaReference, submitter Submitter, opts Options) *Session {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Session{
		id:           id,
		media:        media,
		sourceW:      opts.SourceWidth,
		sourceH:      opts.SourceHeight,
		submitter:    submitter,
		state:        domain.NeutralState(),
		history:      history.New(opts.HistoryCapacity, domain.NeutralState()),
		status:       StatusIdle,
		onSaved:      opts.OnSaved,
		onTransition: opts.OnTransition,
		now:          now,
		lastActive:   now(),
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Media() domain.MediaReference {
	return s.media
}

// Update merges patch into the current state and records the result. A
// patch that changes nothing records nothing. When the source size is
// known, geometry changes recompute the crop rectangle unless the patch
// carries one.
func (s *Session) Update(patch domain.TransformPatch) (domain.TransformState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return s.state.Clone(), err
	}

	next := patch.Apply(s.state)
	if s.sourceW > 0 && s.sourceH > 0 {
		if patch.TouchesGeometry() && patch.CroppedAreaPixels == nil {
			area := domain.ComputeCroppedArea(s.sourceW, s.sourceH, next)
			next.CroppedAreaPixels = &area
		}
		next = next.ClampCropArea(s.sourceW, s.sourceH)
	}

	if !next.Equal(s.state) {
		s.state = next
		s.history.Push(next)
	}
	return s.state.Clone(), nil
}

// ReportCropArea stores a crop widget measurement in the current state
// and the current history entry without adding a new entry.
func (s *Session) ReportCropArea(area domain.Rect) (domain.TransformState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return s.state.Clone(), err
	}

	next := domain.TransformPatch{CroppedAreaPixels: &area}.Apply(s.state)
	next = next.ClampCropArea(s.sourceW, s.sourceH)
	s.state = next
	s.history.ReplaceCurrent(next)
	return s.state.Clone(), nil
}

func (s *Session) Undo() (domain.TransformState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return s.state.Clone(), err
	}
	if entry, ok := s.history.Undo(); ok {
		s.state = entry
	}
	return s.state.Clone(), nil
}

func (s *Session) Redo() (domain.TransformState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return s.state.Clone(), err
	}
	if entry, ok := s.history.Redo(); ok {
		s.state = entry
	}
	return s.state.Clone(), nil
}

// Reset restores the neutral state and records it as a new entry.
func (s *Session) Reset() (domain.TransformState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return s.state.Clone(), err
	}
	s.state = domain.NeutralState()
	s.history.Push(s.state)
	return s.state.Clone(), nil
}

// Save submits a snapshot of the current state. Edits are refused while
// it runs. On failure the state and history are untouched, the error is
// kept as LastError and the session returns to idle. On success the
// session is finished.
func (s *Session) Save(ctx context.Context, token string) (domain.MediaReference, submit.Outcome, error) {
	s.mu.Lock()
	if err := s.editableLocked(); err != nil {
		s.mu.Unlock()
		return domain.MediaReference{}, submit.Outcome{}, err
	}
	snapshot := s.state.Clone()
	media := s.media
	s.lastErr = nil
	s.transitionLocked(StatusProcessing)
	s.mu.Unlock()

	updated, outcome, err := s.submitter.Submit(ctx, media, snapshot, token)

	s.mu.Lock()
	if s.closed {
		// Closed while the request was in flight: the result is dropped.
		s.transitionLocked(StatusIdle)
		s.mu.Unlock()
		return domain.MediaReference{}, outcome, ErrClosed
	}
	if err != nil {
		s.lastErr = err
		s.transitionLocked(StatusFailed)
		s.transitionLocked(StatusIdle)
		s.mu.Unlock()
		return domain.MediaReference{}, outcome, err
	}

	s.result = &updated
	s.closed = true
	s.transitionLocked(StatusSucceeded)
	onSaved := s.onSaved
	s.mu.Unlock()

	if onSaved != nil {
		onSaved(SaveResult{
			SessionID: s.id,
			Original:  media,
			Updated:   updated,
			Outcome:   outcome,
			Token:     token,
		})
	}
	return updated, outcome, nil
}

// Close discards the session. A save in flight keeps running but its
// result is ignored.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *Session) State() domain.TransformState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// IdleSince reports when the session was last touched. Sessions with a
// save in flight report now.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusProcessing {
		return s.now()
	}
	return s.lastActive
}

// History returns a copy of the neutral baseline followed by the recorded
// entries, and the index of the current state within it.
func (s *Session) History() ([]domain.TransformState, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Timeline()
}

func (s *Session) editableLocked() error {
	s.lastActive = s.now()
	if s.closed {
		return ErrClosed
	}
	if s.status == StatusProcessing {
		return ErrBusy
	}
	return nil
}

func (s *Session) transitionLocked(to Status) {
	from := s.status
	s.status = to
	if s.onTransition != nil && from != to {
		s.onTransition(from, to)
	}
}
