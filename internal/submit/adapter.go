// Package submit sends finished edits to the media backend's edit
// endpoint, rendering the raster locally first when the source allows it.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/pixeledit/internal/auth"
	"github.com/dunamismax/pixeledit/internal/domain"
	"github.com/dunamismax/pixeledit/internal/pipeline"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 1 << 20
)

// Fallback reasons reported in Outcome when no raster was sent.
const (
	FallbackNone   = ""
	FallbackOrigin = "origin"
	FallbackRaster = "raster"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	Format  string
	Quality int
}

// Renderer runs the local crop and filter pipeline.
type Renderer interface {
	Process(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// Outcome describes how a successful save was produced.
type Outcome struct {
	ProcessedLocally bool          `json:"processed_locally"`
	Fallback         string        `json:"fallback,omitempty"`
	Bytes            int           `json:"bytes,omitempty"`
	Width            int           `json:"width,omitempty"`
	Height           int           `json:"height,omitempty"`
	Pixels           int64         `json:"-"`
	ComputeTime      time.Duration `json:"-"`
}

type Adapter struct {
	logger   *log.Logger
	baseURL  string
	client   *http.Client
	policy   pipeline.OriginPolicy
	renderer Renderer
	format   string
	quality  int
	tracer   trace.Tracer
	now      func() time.Time
}

func NewAdapter(logger *log.Logger, cfg Config, policy pipeline.OriginPolicy, renderer Renderer) (*Adapter, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("submit base url is required")
	}
	if u, err := url.Parse(base); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("submit base url must be absolute: %s", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Adapter{
		logger:   logger,
		baseURL:  base,
		client:   &http.Client{Timeout: timeout},
		policy:   policy,
		renderer: renderer,
		format:   cfg.Format,
		quality:  cfg.Quality,
		tracer:   otel.Tracer("pixeledit/submit"),
		now:      time.Now,
	}, nil
}

// Submit saves state for media and returns the backend's new reference.
// Every failure is a *SubmissionError; local raster failures only degrade
// the request to metadata.
func (a *Adapter) Submit(ctx context.Context, media domain.MediaReference, state domain.TransformState, token string) (domain.MediaReference, Outcome, error) {
	if !media.IsTrusted() {
		return domain.MediaReference{}, Outcome{}, &SubmissionError{
			Message: "This image cannot be edited because it is not in the media library.",
			Err:     ErrMissingMediaID,
		}
	}

	token, err := auth.Check(token, a.now())
	if err != nil {
		return domain.MediaReference{}, Outcome{}, &SubmissionError{
			Message: "Your session has expired. Sign in again to save changes.",
			Err:     err,
		}
	}

	ctx, span := a.tracer.Start(ctx, "submit.media_edit", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("media.id", media.ID))
	defer span.End()

	req, outcome := a.buildRequest(ctx, media, state)
	span.SetAttributes(
		attribute.Bool("edit.processed_locally", outcome.ProcessedLocally),
		attribute.String("edit.fallback", outcome.Fallback),
	)

	updated, err := a.send(ctx, req, token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		return domain.MediaReference{}, outcome, err
	}

	span.SetStatus(codes.Ok, "saved")
	return updated, outcome, nil
}

func (a *Adapter) buildRequest(ctx context.Context, media domain.MediaReference, state domain.TransformState) (domain.EditRequest, Outcome) {
	req := domain.EditRequest{
		MediaID:  media.ID,
		Rotation: state.NormalizedRotation(),
		Flip:     state.Flip,
		Filters:  state.Filters(),
	}
	if state.CroppedAreaPixels != nil {
		area := *state.CroppedAreaPixels
		req.Crop = &area
	}

	if a.renderer == nil || !a.policy.CanProcessLocally(media.URL) {
		return req, Outcome{Fallback: FallbackOrigin}
	}

	startedAt := time.Now()
	result, err := a.renderer.Process(ctx, pipeline.Request{
		Source:  media.URL,
		State:   state,
		Format:  a.format,
		Quality: a.quality,
	})
	if err != nil {
		a.logger.Printf("local processing skipped media_id=%s source=%s err=%v", media.ID, media.URL, err)
		return req, Outcome{Fallback: FallbackRaster}
	}

	if clamped := state.ClampCropArea(result.SourceWidth, result.SourceHeight); clamped.CroppedAreaPixels != nil {
		req.Crop = clamped.CroppedAreaPixels
	}
	req.File = result.Data
	req.ContentType = result.ContentType
	req.FileName = editedFileName(media, result.Format)

	return req, Outcome{
		ProcessedLocally: true,
		Bytes:            len(result.Data),
		Width:            result.Width,
		Height:           result.Height,
		Pixels:           int64(result.SourceWidth) * int64(result.SourceHeight),
		ComputeTime:      time.Since(startedAt),
	}
}

func (a *Adapter) send(ctx context.Context, req domain.EditRequest, token string) (domain.MediaReference, error) {
	body, contentType, err := encodeMultipart(req)
	if err != nil {
		return domain.MediaReference{}, &SubmissionError{Message: "Could not prepare the edit request.", Err: err}
	}

	endpoint := a.baseURL + "/media/" + url.PathEscape(req.MediaID) + "/edit"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return domain.MediaReference{}, &SubmissionError{Message: "Could not prepare the edit request.", Err: err}
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return domain.MediaReference{}, &SubmissionError{Message: "Could not reach the media service. Try again.", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.MediaReference{}, &SubmissionError{Message: "Could not read the media service response.", StatusCode: resp.StatusCode, Err: err}
	}

	var decoded editResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := "The media service rejected the edit."
		if decodeErr == nil && strings.TrimSpace(decoded.Message) != "" {
			msg = decoded.Message
		}
		return domain.MediaReference{}, &SubmissionError{
			Message:    msg,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("media edit returned status=%d", resp.StatusCode),
		}
	}
	if decodeErr != nil {
		return domain.MediaReference{}, &SubmissionError{
			Message:    "The media service returned an unreadable response.",
			StatusCode: resp.StatusCode,
			Err:        decodeErr,
		}
	}
	if !decoded.Success || decoded.Data.Media == nil {
		msg := strings.TrimSpace(decoded.Message)
		if msg == "" {
			msg = "The media service could not save the edit."
		}
		return domain.MediaReference{}, &SubmissionError{
			Message:    msg,
			StatusCode: resp.StatusCode,
			Err:        errors.New("media edit reported failure"),
		}
	}

	return *decoded.Data.Media, nil
}

type editResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Media *domain.MediaReference `json:"media"`
	} `json:"data"`
	Message string `json:"message"`
}

// encodeMultipart writes the form fields in a fixed order: file (only
// when present), crop, rotation, flip, filters.
func encodeMultipart(req domain.EditRequest) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if req.HasFile() {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, req.FileName))
		header.Set("Content-Type", req.ContentType)
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("create file part: %w", err)
		}
		if _, err := part.Write(req.File); err != nil {
			return nil, "", fmt.Errorf("write file part: %w", err)
		}
	}

	crop, err := json.Marshal(req.Crop)
	if err != nil {
		return nil, "", fmt.Errorf("marshal crop: %w", err)
	}
	flip, err := json.Marshal(req.Flip)
	if err != nil {
		return nil, "", fmt.Errorf("marshal flip: %w", err)
	}
	filters, err := json.Marshal(req.Filters)
	if err != nil {
		return nil, "", fmt.Errorf("marshal filters: %w", err)
	}

	fields := []struct {
		name  string
		value string
	}{
		{"crop", string(crop)},
		{"rotation", strconv.FormatFloat(req.Rotation, 'f', -1, 64)},
		{"flip", string(flip)},
		{"filters", string(filters)},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("write %s field: %w", f.name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func editedFileName(media domain.MediaReference, format string) string {
	name := strings.TrimSpace(media.Filename)
	if name == "" {
		if u, err := url.Parse(media.URL); err == nil {
			name = path.Base(u.Path)
		}
	}
	name = strings.TrimSuffix(name, path.Ext(name))
	if name == "" || name == "." || name == "/" {
		name = media.ID
	}
	return name + "-edited." + pipeline.ExtensionForFormat(format)
}
