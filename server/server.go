package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"auto_thread_publisher/generator"
	"auto_thread_publisher/metrics"
	"auto_thread_publisher/publisher"
	"auto_thread_publisher/review"
)

// UserHeader carries the caller identity for the REST review API.
const UserHeader = "X-User-ID"

type Server struct {
	manager    *review.Manager
	apiEnabled bool
	timeout    time.Duration
	logger     zerolog.Logger
}

// Options 控制 HTTP 服务行为。
type Options struct {
	// APIEnabled exposes /api/sessions; health and metrics are always served.
	APIEnabled bool
	// Timeout bounds a single generation or publish call made by a handler.
	Timeout time.Duration
	Logger  zerolog.Logger
}

func New(manager *review.Manager, opts Options) (*Server, error) {
	if opts.APIEnabled && manager == nil {
		return nil, errors.New("session manager required when the api is enabled")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Server{
		manager:    manager,
		apiEnabled: opts.APIEnabled,
		timeout:    opts.Timeout,
		logger:     opts.Logger,
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /{$}", handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	if s.apiEnabled {
		mux.HandleFunc("POST /api/sessions", s.handleSessionCreate)
		mux.HandleFunc("GET /api/sessions/{id}", s.handleSessionGet)
		mux.HandleFunc("POST /api/sessions/{id}/revise", s.handleSessionRevise)
		mux.HandleFunc("POST /api/sessions/{id}/finalize", s.handleSessionFinalize)
		mux.HandleFunc("GET /api/sessions/{id}/preview", s.handleSessionPreview)
	}
	return logMiddleware(s.logger, mux)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// --- Handlers ---

type sessionCreateReq struct {
	Topic    string   `json:"main_topic"`
	Context  string   `json:"context"`
	Keywords []string `json:"keywords"`
	Mentions []string `json:"mentions"`
	Tone     string   `json:"tone"`
	Length   int      `json:"desired_length"`
	Link     string   `json:"link"`
	Deadline string   `json:"deadline"`
}

type reviseReq struct {
	Feedback string `json:"feedback"`
}

type finalizeResp struct {
	SessionID string `json:"session_id"`
	ShareURL  string `json:"share_url"`
}

type errorResp struct {
	Error string `json:"error"`
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	if caller == "" {
		writeError(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
		return
	}
	var req sessionCreateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	genReq := generator.Request{
		Topic:    req.Topic,
		Context:  req.Context,
		Keywords: cleanList(req.Keywords),
		Mentions: cleanList(req.Mentions),
		Tone:     generator.ParseTone(req.Tone),
		Length:   req.Length,
		Link:     strings.TrimSpace(req.Link),
		Deadline: req.Deadline,
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	sess, err := s.manager.Create(ctx, genReq, caller)
	if err != nil {
		s.fail(w, err)
		return
	}
	snap, err := sess.Snapshot(caller)
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Location", "/api/sessions/"+sess.ID)
	writeJSONStatus(w, http.StatusCreated, snap)
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	sess, caller, ok := s.lookup(w, r)
	if !ok {
		return
	}
	snap, err := sess.Snapshot(caller)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleSessionRevise(w http.ResponseWriter, r *http.Request) {
	sess, caller, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req reviseReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	if _, err := sess.Revise(ctx, caller, req.Feedback); err != nil {
		s.fail(w, err)
		return
	}
	snap, err := sess.Snapshot(caller)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleSessionFinalize(w http.ResponseWriter, r *http.Request) {
	sess, caller, ok := s.lookup(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	url, err := sess.Finalize(ctx, caller)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, finalizeResp{SessionID: sess.ID, ShareURL: url})
}

func (s *Server) handleSessionPreview(w http.ResponseWriter, r *http.Request) {
	sess, caller, ok := s.lookup(w, r)
	if !ok {
		return
	}
	snap, err := sess.Snapshot(caller)
	if err != nil {
		s.fail(w, err)
		return
	}
	page, err := RenderPreview(snap)
	if err != nil {
		s.logger.Error().Err(err).Str("session", snap.ID).Msg("render preview")
		writeError(w, http.StatusInternalServerError, "could not render preview")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(page))
}

// --- Helpers ---

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*review.Session, string, bool) {
	caller := callerID(r)
	if caller == "" {
		writeError(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
		return nil, "", false
	}
	sess, err := s.manager.Get(r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return nil, "", false
	}
	return sess, caller, true
}

// fail logs the full error and writes only the user-facing message.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	ev := s.logger.Warn()
	if status >= http.StatusInternalServerError {
		ev = s.logger.Error()
	}
	ev.Err(err).Int("status", status).Msg("request failed")
	writeError(w, status, review.UserMessage(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, generator.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, review.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, review.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, review.ErrAlreadyFinalized):
		return http.StatusConflict
	case errors.Is(err, review.ErrSessionExpired):
		return http.StatusGone
	case errors.Is(err, generator.ErrGeneration), errors.Is(err, publisher.ErrPublish):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func callerID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserHeader))
}

func cleanList(items []string) []string {
	var out []string
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSONStatus(w, status, errorResp{Error: msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logMiddleware(logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
