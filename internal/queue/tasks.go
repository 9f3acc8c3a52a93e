package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dunamismax/pixeledit/internal/domain"
	"github.com/hibiken/asynq"
)

const TypeMediaEdited = "media:edited"

// MediaEditedPayload tells the media library that an edit replaced a
// reference.
type MediaEditedPayload struct {
	SessionID        string                `json:"session_id"`
	UserID           string                `json:"user_id,omitempty"`
	Original         domain.MediaReference `json:"original"`
	Updated          domain.MediaReference `json:"updated"`
	ProcessedLocally bool                  `json:"processed_locally"`
	Fallback         string                `json:"fallback,omitempty"`
	PixelsProcessed  int64                 `json:"pixels_processed,omitempty"`
	OutputBytes      int64                 `json:"output_bytes,omitempty"`
	ComputeTimeMS    int64                 `json:"compute_time_ms,omitempty"`
	EditedAt         time.Time             `json:"edited_at"`
}

func NewMediaEditedTask(payload MediaEditedPayload) (*asynq.Task, error) {
	if strings.TrimSpace(payload.Updated.ID) == "" {
		return nil, fmt.Errorf("updated media id is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal media edited payload: %w", err)
	}
	return asynq.NewTask(TypeMediaEdited, body), nil
}

// EditLog converts the payload into the audit record of the save.
func (p MediaEditedPayload) EditLog() domain.EditLog {
	return domain.EditLog{
		SessionID:        p.SessionID,
		UserID:           p.UserID,
		MediaID:          p.Original.ID,
		ResultMediaID:    p.Updated.ID,
		ProcessedLocally: p.ProcessedLocally,
		Fallback:         p.Fallback,
		PixelsProcessed:  p.PixelsProcessed,
		OutputBytes:      p.OutputBytes,
		ComputeTimeMS:    p.ComputeTimeMS,
		CreatedAt:        p.EditedAt,
	}
}

func ParseMediaEditedPayload(task *asynq.Task) (MediaEditedPayload, error) {
	var payload MediaEditedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return MediaEditedPayload{}, fmt.Errorf("unmarshal media edited payload: %w", err)
	}
	return payload, nil
}
