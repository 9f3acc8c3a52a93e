package editor

import (
	"errors"
	"time"

	"github.com/dunamismax/pixeledit/internal/domain"
	"github.com/dunamismax/pixeledit/internal/submit"
)

// View is the JSON shape the dashboard renders for a session.
type View struct {
	ID           string                 `json:"id"`
	Media        domain.MediaReference  `json:"media"`
	State        domain.TransformState  `json:"state"`
	Status       Status                 `json:"status"`
	CanUndo      bool                   `json:"can_undo"`
	CanRedo      bool                   `json:"can_redo"`
	// HistoryLen counts recorded edits. Cursor is -1 on the neutral baseline.
	HistoryLen   int                    `json:"history_length"`
	Cursor       int                    `json:"cursor"`
	SourceWidth  int                    `json:"source_width,omitempty"`
	SourceHeight int                    `json:"source_height,omitempty"`
	LastError    string                 `json:"last_error,omitempty"`
	Result       *domain.MediaReference `json:"result,omitempty"`
	Closed       bool                   `json:"closed"`
	LastActive   time.Time              `json:"last_active"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:           s.id,
		Media:        s.media,
		State:        s.state.Clone(),
		Status:       s.status,
		CanUndo:      s.history.CanUndo(),
		CanRedo:      s.history.CanRedo(),
		HistoryLen:   s.history.Len(),
		Cursor:       s.history.Cursor(),
		SourceWidth:  s.sourceW,
		SourceHeight: s.sourceH,
		Closed:       s.closed,
		LastActive:   s.lastActive,
	}
	if s.lastErr != nil {
		v.LastError = displayMessage(s.lastErr)
	}
	if s.result != nil {
		result := *s.result
		v.Result = &result
	}
	return v
}

// displayMessage prefers the user-facing message of a submission error.
func displayMessage(err error) string {
	var subErr *submit.SubmissionError
	if errors.As(err, &subErr) && subErr.Message != "" {
		return subErr.Message
	}
	return err.Error()
}
