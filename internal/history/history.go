// Package history keeps a bounded, linear undo/redo log of transform
// snapshots on top of a baseline.
//
// The baseline sits outside the bounded entries, so capacity counts edits
// only. A cursor of -1 points at the baseline.
package history

import "github.com/dunamismax/pixeledit/internal/domain"

const DefaultCapacity = 20

type Stack struct {
	base     domain.TransformState
	entries  []domain.TransformState
	cursor   int
	capacity int
}

func New(capacity int, base domain.TransformState) *Stack {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Stack{
		base:     base.Clone(),
		entries:  make([]domain.TransformState, 0, capacity),
		cursor:   -1,
		capacity: capacity,
	}
}

// Push drops every entry after the cursor, appends state and moves the
// cursor onto it. Once capacity is exceeded the oldest entry becomes the
// new baseline.
func (s *Stack) Push(state domain.TransformState) {
	s.entries = s.entries[:s.cursor+1]
	s.entries = append(s.entries, state.Clone())
	if len(s.entries) > s.capacity {
		overflow := len(s.entries) - s.capacity
		s.base = s.entries[overflow-1]
		copy(s.entries, s.entries[overflow:])
		s.entries = s.entries[:s.capacity]
	}
	s.cursor = len(s.entries) - 1
}

func (s *Stack) Undo() (domain.TransformState, bool) {
	if !s.CanUndo() {
		return domain.TransformState{}, false
	}
	s.cursor--
	return s.Current(), true
}

func (s *Stack) Redo() (domain.TransformState, bool) {
	if !s.CanRedo() {
		return domain.TransformState{}, false
	}
	s.cursor++
	return s.Current(), true
}

// ReplaceCurrent overwrites the snapshot under the cursor, the baseline
// included, without touching the redo tail.
func (s *Stack) ReplaceCurrent(state domain.TransformState) {
	if s.cursor < 0 {
		s.base = state.Clone()
		return
	}
	s.entries[s.cursor] = state.Clone()
}

func (s *Stack) Current() domain.TransformState {
	if s.cursor < 0 {
		return s.base.Clone()
	}
	return s.entries[s.cursor].Clone()
}

func (s *Stack) Base() domain.TransformState {
	return s.base.Clone()
}

func (s *Stack) CanUndo() bool {
	return s.cursor >= 0
}

func (s *Stack) CanRedo() bool {
	return s.cursor < len(s.entries)-1
}

// Len counts the bounded entries, not the baseline.
func (s *Stack) Len() int {
	return len(s.entries)
}

func (s *Stack) Cursor() int {
	return s.cursor
}

func (s *Stack) Capacity() int {
	return s.capacity
}

// Entries returns a copy of the bounded entries, oldest first.
func (s *Stack) Entries() []domain.TransformState {
	out := make([]domain.TransformState, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Clone()
	}
	return out
}

// Timeline returns the baseline followed by the entries, and the index of
// the current snapshot within it.
func (s *Stack) Timeline() ([]domain.TransformState, int) {
	out := make([]domain.TransformState, 0, len(s.entries)+1)
	out = append(out, s.base.Clone())
	for _, e := range s.entries {
		out = append(out, e.Clone())
	}
	return out, s.cursor + 1
}
