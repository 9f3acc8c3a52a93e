package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/pixeledit/internal/auth"
	"github.com/dunamismax/pixeledit/internal/domain"
	"github.com/dunamismax/pixeledit/internal/editor"
	"github.com/dunamismax/pixeledit/internal/id"
	"github.com/dunamismax/pixeledit/internal/queue"
	"github.com/dunamismax/pixeledit/internal/store"
	"github.com/dunamismax/pixeledit/internal/submit"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/trace"
)

const maxBodyBytes = 1 << 20

type Server struct {
	logger                *log.Logger
	sessions              store.SessionStore
	editLogs              store.EditLogStore
	submitter             editor.Submitter
	notifier              notifier
	validator             *requestValidator
	rateLimiter           RateLimiter
	rateLimitUserIDHeader string
	metrics               *metrics
	tracer                trace.Tracer
	mux                   *http.ServeMux
}

type notifier interface {
	EnqueueMediaEdited(ctx context.Context, payload queue.MediaEditedPayload) (*asynq.TaskInfo, error)
}

type Options struct {
	Sessions  store.SessionStore
	EditLogs  store.EditLogStore
	Submitter editor.Submitter
	// Notifier is optional; without it saves are logged directly.
	Notifier              notifier
	RateLimiter           RateLimiter
	RateLimitUserIDHeader string
	Tracer                trace.Tracer
}

func NewServer(logger *log.Logger, opts Options) (*Server, error) {
	if opts.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if opts.Submitter == nil {
		return nil, errors.New("submitter is required")
	}

	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}

	header := strings.TrimSpace(opts.RateLimitUserIDHeader)
	if header == "" {
		header = "X-User-ID"
	}

	s := &Server{
		logger:                logger,
		sessions:              opts.Sessions,
		editLogs:              opts.EditLogs,
		submitter:             opts.Submitter,
		notifier:              opts.Notifier,
		validator:             validator,
		rateLimiter:           opts.RateLimiter,
		rateLimitUserIDHeader: header,
		metrics:               newMetrics(),
		tracer:                opts.Tracer,
		mux:                   http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.metrics.withHTTPMetrics(s.withTracing(s.withRateLimit(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())

	s.mux.HandleFunc("POST /v1/sessions", s.handleOpenSession)
	s.mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleCloseSession)
	s.mux.HandleFunc("PATCH /v1/sessions/{id}/transform", s.handleTransform)
	s.mux.HandleFunc("POST /v1/sessions/{id}/crop-area", s.handleCropArea)
	s.mux.HandleFunc("POST /v1/sessions/{id}/undo", s.handleHistory(func(sess *editor.Session) (domain.TransformState, error) { return sess.Undo() }))
	s.mux.HandleFunc("POST /v1/sessions/{id}/redo", s.handleHistory(func(sess *editor.Session) (domain.TransformState, error) { return sess.Redo() }))
	s.mux.HandleFunc("POST /v1/sessions/{id}/reset", s.handleHistory(func(sess *editor.Session) (domain.TransformState, error) { return sess.Reset() }))
	s.mux.HandleFunc("POST /v1/sessions/{id}/save", s.handleSave)

	s.mux.HandleFunc("GET /v1/media/{id}/edits", s.handleListEdits)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req domain.OpenSessionRequest
	if err := s.readBody(r, schemaOpenSession, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	sessionID := id.New()
	session := editor.New(sessionID, req.Media, s.submitter, editor.Options{
		SourceWidth:  req.SourceWidth,
		SourceHeight: req.SourceHeight,
		OnSaved:      s.onSaved,
	})
	s.sessions.Put(session)
	s.metrics.sessionsOpened.Inc()

	s.logger.Printf("session opened session_id=%s media_id=%s trusted=%t", sessionID, req.Media.ID, req.Media.IsTrusted())
	writeJSON(w, http.StatusCreated, session.View())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.View())
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessions.Delete(r.PathValue("id")); !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": store.ErrSessionNotFound.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var patch domain.TransformPatch
	if err := s.readBody(r, schemaTransform, &patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if _, err := session.Update(patch); err != nil {
		writeEditorError(w, err, session)
		return
	}
	writeJSON(w, http.StatusOK, session.View())
}

func (s *Server) handleCropArea(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var area domain.Rect
	if err := s.readBody(r, schemaCropArea, &area); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if _, err := session.ReportCropArea(area); err != nil {
		writeEditorError(w, err, session)
		return
	}
	writeJSON(w, http.StatusOK, session.View())
}

func (s *Server) handleHistory(op func(*editor.Session) (domain.TransformState, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := s.lookup(w, r)
		if !ok {
			return
		}
		if _, err := op(session); err != nil {
			writeEditorError(w, err, session)
			return
		}
		writeJSON(w, http.StatusOK, session.View())
	}
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookup(w, r)
	if !ok {
		return
	}

	token := auth.FromHeader(r.Header.Get("Authorization"))

	// A dropped client connection does not cancel the backend request.
	ctx := context.WithoutCancel(r.Context())
	updated, outcome, err := session.Save(ctx, token)
	if err != nil {
		var subErr *submit.SubmissionError
		if errors.As(err, &subErr) {
			s.metrics.savesTotal.WithLabelValues("failed").Inc()
			s.logger.Printf("save failed session_id=%s media_id=%s err=%v", session.ID(), session.Media().ID, err)
			writeJSON(w, submissionStatus(subErr), map[string]any{
				"error":   subErr.Message,
				"session": session.View(),
			})
			return
		}
		writeEditorError(w, err, session)
		return
	}

	label := "remote"
	if outcome.ProcessedLocally {
		label = "local"
	}
	s.metrics.savesTotal.WithLabelValues(label).Inc()
	s.logger.Printf(
		"save succeeded session_id=%s media_id=%s result_media_id=%s processed_locally=%t fallback=%s",
		session.ID(),
		session.Media().ID,
		updated.ID,
		outcome.ProcessedLocally,
		outcome.Fallback,
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"media":   updated,
		"outcome": outcome,
	})
}

func (s *Server) handleListEdits(w http.ResponseWriter, r *http.Request) {
	if s.editLogs == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "edit log is not configured"})
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 500"})
			return
		}
		limit = parsed
	}

	entries, err := s.editLogs.ListByMedia(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.logger.Printf("list edit logs failed media_id=%s err=%v", r.PathValue("id"), err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load edit log"})
		return
	}
	if entries == nil {
		entries = []domain.EditLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"edits": entries})
}

// onSaved hands the new reference to the media library through the
// queue, or records the edit directly when the queue is unavailable.
func (s *Server) onSaved(result editor.SaveResult) {
	payload := queue.MediaEditedPayload{
		SessionID:        result.SessionID,
		UserID:           auth.Subject(result.Token),
		Original:         result.Original,
		Updated:          result.Updated,
		ProcessedLocally: result.Outcome.ProcessedLocally,
		Fallback:         result.Outcome.Fallback,
		PixelsProcessed:  result.Outcome.Pixels,
		OutputBytes:      int64(result.Outcome.Bytes),
		ComputeTimeMS:    result.Outcome.ComputeTime.Milliseconds(),
		EditedAt:         time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.notifier != nil {
		info, err := s.notifier.EnqueueMediaEdited(ctx, payload)
		if err == nil {
			s.metrics.notificationsEnqueued.WithLabelValues(info.Queue).Inc()
			return
		}
		s.logger.Printf("enqueue media edited failed session_id=%s err=%v", result.SessionID, err)
	}

	if s.editLogs == nil {
		return
	}
	if err := s.editLogs.CreateEditLog(ctx, payload.EditLog()); err != nil {
		s.logger.Printf("edit log write failed session_id=%s err=%v", result.SessionID, err)
	}
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*editor.Session, bool) {
	session, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return nil, false
		}
		s.logger.Printf("session lookup failed session_id=%s err=%v", r.PathValue("id"), err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load session"})
		return nil, false
	}
	return session, true
}

// readBody validates the body against the named schema, then decodes it.
func (s *Server) readBody(r *http.Request, schema string, into any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return errors.New("request body too large")
	}
	if err := s.validator.validate(schema, body); err != nil {
		return err
	}
	return decodeJSON(body, into)
}

func writeEditorError(w http.ResponseWriter, err error, session *editor.Session) {
	switch {
	case errors.Is(err, editor.ErrBusy), errors.Is(err, editor.ErrClosed):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":   err.Error(),
			"session": session.View(),
		})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// submissionStatus maps a failed save onto the status returned to the
// dashboard.
func submissionStatus(err *submit.SubmissionError) int {
	switch {
	case errors.Is(err, auth.ErrTokenMissing), errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, submit.ErrMissingMediaID):
		return http.StatusUnprocessableEntity
	case err.StatusCode == http.StatusUnauthorized, err.StatusCode == http.StatusForbidden:
		return err.StatusCode
	case err.StatusCode >= 400 && err.StatusCode < 500:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func decodeJSON(body []byte, into any) error {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
