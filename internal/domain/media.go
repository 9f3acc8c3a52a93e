package domain

import (
	"errors"
	"strings"
	"time"
)

// MediaReference identifies an image in the media library. A reference
// without ID is a bare URL and cannot be submitted for editing.
type MediaReference struct {
	ID       string `json:"_id,omitempty"`
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

func (m MediaReference) IsTrusted() bool {
	return strings.TrimSpace(m.ID) != ""
}

// EditRequest is the payload sent to the remote media-edit endpoint. File
// is empty when the source could not be processed locally.
type EditRequest struct {
	MediaID     string
	File        []byte
	FileName    string
	ContentType string
	Crop        *Rect
	Rotation    float64
	Flip        Flip
	Filters     Filters
}

func (r EditRequest) HasFile() bool {
	return len(r.File) > 0
}

type OpenSessionRequest struct {
	Media        MediaReference `json:"media"`
	SourceWidth  int            `json:"source_width,omitempty"`
	SourceHeight int            `json:"source_height,omitempty"`
}

func (r OpenSessionRequest) Validate() error {
	if strings.TrimSpace(r.Media.URL) == "" && strings.TrimSpace(r.Media.ID) == "" {
		return errors.New("media.url or media._id is required")
	}
	if r.SourceWidth < 0 || r.SourceHeight < 0 {
		return errors.New("source dimensions must not be negative")
	}
	if (r.SourceWidth == 0) != (r.SourceHeight == 0) {
		return errors.New("source_width and source_height must be provided together")
	}
	return nil
}

// EditLog records one completed save.
type EditLog struct {
	SessionID        string    `json:"session_id"`
	UserID           string    `json:"user_id,omitempty"`
	MediaID          string    `json:"media_id"`
	ResultMediaID    string    `json:"result_media_id"`
	ProcessedLocally bool      `json:"processed_locally"`
	Fallback         string    `json:"fallback,omitempty"`
	PixelsProcessed  int64     `json:"pixels_processed"`
	OutputBytes      int64     `json:"output_bytes"`
	ComputeTimeMS    int64     `json:"compute_time_ms"`
	CreatedAt        time.Time `json:"created_at"`
}
