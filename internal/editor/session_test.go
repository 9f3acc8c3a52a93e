package editor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dunamismax/pixeledit/internal/domain"
	"github.com/dunamismax/pixeledit/internal/history"
	"github.com/dunamismax/pixeledit/internal/submit"
	"github.com/stretchr/testify/require"
)

type fakeSubmitter struct {
	mu      sync.Mutex
	calls   int
	got     domain.TransformState
	updated domain.MediaReference
	err     error
	block   chan struct{}
	started chan struct{}
}

func (f *fakeSubmitter) Submit(_ context.Context, _ domain.MediaReference, state domain.TransformState, _ string) (domain.MediaReference, submit.Outcome, error) {
	f.mu.Lock()
	f.calls++
	f.got = state
	f.mu.Unlock()

	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return domain.MediaReference{}, submit.Outcome{}, f.err
	}
	return f.updated, submit.Outcome{ProcessedLocally: true}, nil
}

func intPtr(v int) *int {
	return &v
}

func floatPtr(v float64) *float64 {
	return &v
}

func presetPtr(p domain.FilterPreset) *domain.FilterPreset {
	return &p
}

func newSession(sub Submitter, opts Options) *Session {
	return New("s-1", domain.MediaReference{ID: "m-1", URL: "/uploads/a.png"}, sub, opts)
}

func TestUpdateUndoRedoRoundTrip(t *testing.T) {
	s := newSession(&fakeSubmitter{}, Options{})

	const n = 19
	for i := 1; i <= n; i++ {
		_, err := s.Update(domain.TransformPatch{Brightness: intPtr(100 + i)})
		require.NoError(t, err)
	}
	final := s.State()
	require.Equal(t, 100+n, final.Brightness)

	for i := 0; i < n; i++ {
		_, err := s.Undo()
		require.NoError(t, err)
	}
	require.True(t, s.State().Equal(domain.NeutralState()))
	require.False(t, s.View().CanUndo)

	for i := 0; i < n; i++ {
		_, err := s.Redo()
		require.NoError(t, err)
	}
	require.True(t, s.State().Equal(final))
	require.False(t, s.View().CanRedo)
}

func TestUpdateUndoRoundTripAtFullCapacity(t *testing.T) {
	s := newSession(&fakeSubmitter{}, Options{})

	for i := 1; i <= history.DefaultCapacity; i++ {
		_, err := s.Update(domain.TransformPatch{Brightness: intPtr(100 + i)})
		require.NoError(t, err)
	}
	view := s.View()
	require.Equal(t, history.DefaultCapacity, view.HistoryLen)
	require.Equal(t, history.DefaultCapacity-1, view.Cursor)

	for i := 0; i < history.DefaultCapacity; i++ {
		_, err := s.Undo()
		require.NoError(t, err)
	}
	require.True(t, s.State().Equal(domain.NeutralState()), "brightness=%d", s.State().Brightness)
	require.False(t, s.View().CanUndo)
	require.Equal(t, -1, s.View().Cursor)

	for i := 0; i < history.DefaultCapacity; i++ {
		_, err := s.Redo()
		require.NoError(t, err)
	}
	require.Equal(t, 100+history.DefaultCapacity, s.State().Brightness)
}

func TestUpdateAfterUndoTruncatesRedo(t *testing.T) {
	s := newSession(&fakeSubmitter{}, Options{})

	_, _ = s.Update(domain.TransformPatch{Brightness: intPtr(120)})
	_, _ = s.Update(domain.TransformPatch{Brightness: intPtr(140)})
	_, _ = s.Undo()
	_, err := s.Update(domain.TransformPatch{Contrast: intPtr(80)})
	require.NoError(t, err)

	entries, cursor := s.History()
	require.Len(t, entries, 3)
	require.Equal(t, 2, cursor)
	require.False(t, s.View().CanRedo)
	require.Equal(t, 120, s.State().Brightness)
	require.Equal(t, 80, s.State().Contrast)
}

func TestUpdateClampsAndSkipsNoOps(t *testing.T) {
	s := newSession(&fakeSubmitter{}, Options{})

	state, err := s.Update(domain.TransformPatch{Brightness: intPtr(500), Zoom: floatPtr(0.2)})
	require.NoError(t, err)
	require.Equal(t, domain.MaxLevel, state.Brightness)
	require.Equal(t, float64(domain.MinZoom), state.Zoom)

	_, err = s.Update(domain.TransformPatch{Brightness: intPtr(900)})
	require.NoError(t, err)

	entries, _ := s.History()
	require.Len(t, entries, 2, "a patch that clamps to the current state must not add an entry")
}

func TestPresetSelectionCopiesRecipe(t *testing.T) {
	s := newSession(&fakeSubmitter{}, Options{})

	state, err := s.Update(domain.TransformPatch{FilterPreset: presetPtr(domain.PresetVivid)})
	require.NoError(t, err)
	require.Equal(t, domain.PresetVivid, state.FilterPreset)
	require.Equal(t, 110, state.Brightness)
	require.Equal(t, 120, state.Contrast)
	require.Equal(t, 150, state.Saturation)
}

func TestResetRecordsNeutralEntry(t *testing.T) {
	s := newSession(&fakeSubmitter{}, Options{})

	_, _ = s.Update(domain.TransformPatch{RotateBy: floatPtr(90)})
	state, err := s.Reset()
	require.NoError(t, err)
	require.True(t, state.Equal(domain.NeutralState()))

	entries, cursor := s.History()
	require.Len(t, entries, 3)
	require.Equal(t, 2, cursor)

	undone, err := s.Undo()
	require.NoError(t, err)
	require.Equal(t, float64(90), undone.RotationDegrees)
}

func TestGeometryChangesRecomputeCropArea(t *testing.T) {
	s := newSession(&fakeSubmitter{}, Options{SourceWidth: 200, SourceHeight: 100})

	state, err := s.Update(domain.TransformPatch{RotateBy: floatPtr(90)})
	require.NoError(t, err)
	require.NotNil(t, state.CroppedAreaPixels)
	require.Equal(t, domain.Rect{X: 0, Y: 0, Width: 100, Height: 200}, *state.CroppedAreaPixels)

	state, err = s.Update(domain.TransformPatch{Zoom: floatPtr(2)})
	require.NoError(t, err)
	require.Equal(t, domain.Rect{X: 25, Y: 50, Width: 50, Height: 100}, *state.CroppedAreaPixels)
}

func TestReportCropAreaAddsNoEntry(t *testing.T) {
	s := newSession(&fakeSubmitter{}, Options{SourceWidth: 40, SourceHeight: 30})

	_, _ = s.Update(domain.TransformPatch{Brightness: intPtr(120)})
	state, err := s.ReportCropArea(domain.Rect{X: 30, Y: 20, Width: 50, Height: 50})
	require.NoError(t, err)
	require.Equal(t, domain.Rect{X: 30, Y: 20, Width: 10, Height: 10}, *state.CroppedAreaPixels)

	entries, cursor := s.History()
	require.Len(t, entries, 2)
	require.Equal(t, 1, cursor)
	require.NotNil(t, entries[1].CroppedAreaPixels)
}

func TestSaveSuccessFinishesSession(t *testing.T) {
	sub := &fakeSubmitter{updated: domain.MediaReference{ID: "m-2", URL: "/uploads/b.png"}}

	var (
		saved       []SaveResult
		transitions []Status
	)
	s := newSession(sub, Options{
		OnSaved:      func(r SaveResult) { saved = append(saved, r) },
		OnTransition: func(_, to Status) { transitions = append(transitions, to) },
	})
	_, _ = s.Update(domain.TransformPatch{Brightness: intPtr(130)})

	updated, outcome, err := s.Save(context.Background(), "tok")
	require.NoError(t, err)
	require.Equal(t, "m-2", updated.ID)
	require.True(t, outcome.ProcessedLocally)
	require.Equal(t, 130, sub.got.Brightness)

	require.Equal(t, StatusSucceeded, s.Status())
	require.Equal(t, []Status{StatusProcessing, StatusSucceeded}, transitions)
	require.Len(t, saved, 1)
	require.Equal(t, "m-1", saved[0].Original.ID)
	require.Equal(t, "m-2", saved[0].Updated.ID)
	require.Equal(t, "m-2", s.View().Result.ID)

	_, err = s.Update(domain.TransformPatch{Brightness: intPtr(90)})
	require.ErrorIs(t, err, ErrClosed)
	_, _, err = s.Save(context.Background(), "tok")
	require.ErrorIs(t, err, ErrClosed)
}

func TestSaveFailureLeavesStateAndHistoryIntact(t *testing.T) {
	subErr := &submit.SubmissionError{Message: "Could not reach the media service. Try again.", Err: errors.New("dial tcp: refused")}
	sub := &fakeSubmitter{err: subErr}

	var transitions []Status
	s := newSession(sub, Options{OnTransition: func(_, to Status) { transitions = append(transitions, to) }})
	_, _ = s.Update(domain.TransformPatch{RotateBy: floatPtr(90)})
	_, _ = s.Update(domain.TransformPatch{Saturation: intPtr(40)})
	_, _ = s.Undo()

	stateBefore := s.State()
	entriesBefore, cursorBefore := s.History()

	_, _, err := s.Save(context.Background(), "tok")
	require.ErrorIs(t, err, subErr)

	require.Equal(t, StatusIdle, s.Status())
	require.Equal(t, []Status{StatusProcessing, StatusFailed, StatusIdle}, transitions)
	require.True(t, s.State().Equal(stateBefore))

	entriesAfter, cursorAfter := s.History()
	require.Equal(t, cursorBefore, cursorAfter)
	require.Equal(t, entriesBefore, entriesAfter)

	require.ErrorIs(t, s.LastError(), subErr)
	require.Equal(t, subErr.Message, s.View().LastError)

	// The editor stays usable for a retry.
	_, err = s.Redo()
	require.NoError(t, err)
	require.Equal(t, 40, s.State().Saturation)
}

func TestEditsRefusedWhileProcessing(t *testing.T) {
	sub := &fakeSubmitter{
		updated: domain.MediaReference{ID: "m-2"},
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	s := newSession(sub, Options{})

	done := make(chan error, 1)
	go func() {
		_, _, err := s.Save(context.Background(), "tok")
		done <- err
	}()
	<-sub.started

	require.Equal(t, StatusProcessing, s.Status())

	_, err := s.Update(domain.TransformPatch{Brightness: intPtr(10)})
	require.ErrorIs(t, err, ErrBusy)
	_, err = s.Undo()
	require.ErrorIs(t, err, ErrBusy)
	_, err = s.Reset()
	require.ErrorIs(t, err, ErrBusy)
	_, err = s.ReportCropArea(domain.Rect{Width: 1, Height: 1})
	require.ErrorIs(t, err, ErrBusy)
	_, _, err = s.Save(context.Background(), "tok")
	require.ErrorIs(t, err, ErrBusy)

	close(sub.block)
	require.NoError(t, <-done)
	require.Equal(t, 1, sub.calls)
}

func TestCloseDuringSaveDiscardsResult(t *testing.T) {
	sub := &fakeSubmitter{
		updated: domain.MediaReference{ID: "m-2"},
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	savedCalled := false
	s := newSession(sub, Options{OnSaved: func(SaveResult) { savedCalled = true }})

	done := make(chan error, 1)
	go func() {
		_, _, err := s.Save(context.Background(), "tok")
		done <- err
	}()
	<-sub.started

	s.Close()
	close(sub.block)

	require.ErrorIs(t, <-done, ErrClosed)
	require.False(t, savedCalled)
	require.Nil(t, s.View().Result)
	require.True(t, s.Closed())
}
