// Package server exposes the render pipeline over HTTP and WebSocket
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ppiankov/annofrag/internal/fragment"
	"github.com/ppiankov/annofrag/internal/logging"
	"github.com/ppiankov/annofrag/internal/model"
	"github.com/ppiankov/annofrag/internal/pipeline"
	"github.com/ppiankov/annofrag/internal/render"
	"github.com/ppiankov/annofrag/internal/validate"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request id in and out
const RequestIDHeader = "X-Request-ID"

// Server serves render requests
type Server struct {
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
	maxBody  int64
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// New creates a server around a configured pipeline
func New(p *pipeline.Pipeline, cfg model.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 4 << 20
	}

	s := &Server{
		pipeline: p,
		logger:   logger,
		maxBody:  maxBody,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		mux: http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /v1/render", s.handleRender)
	s.mux.HandleFunc("GET /v1/stream", s.handleStream)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	return s
}

// Handler returns the root handler with request ids and access logging
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests for up to ten seconds
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		log := s.logger.With(zap.String("request_id", id))
		ctx := logging.NewContext(r.Context(), log)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))
		log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)))
	})
}

// statusRecorder remembers the status code and still lets the WebSocket
// upgrader hijack the connection
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer cannot hijack")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{
		Error:     err.Error(),
		RequestID: w.Header().Get(RequestIDHeader),
	})
}

// statusFor maps pipeline errors to HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, fragment.ErrInvalidRange), errors.Is(err, fragment.ErrTooManyRanges),
		errors.Is(err, validate.ErrInvalidName):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) decodeDocument(w http.ResponseWriter, r *http.Request) (model.Document, error) {
	var doc model.Document
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return model.Document{}, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	p := s.pipeline
	if format := r.URL.Query().Get("format"); format != "" {
		var err error
		if p, err = p.WithFormat(format); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	doc, err := s.decodeDocument(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := p.RenderDocument(r.Context(), doc)
	if err != nil {
		logging.L(r.Context()).Warn("render failed", zap.String("document", doc.ID), zap.Error(err))
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result.Report)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// streamDone ends a successful stream
var streamDone = map[string]string{"kind": "done"}

// handleStream reads one document from the socket and streams its events,
// one record per message, lazily as the fragmenter produces them
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	log := logging.L(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()
	conn.SetReadLimit(s.maxBody)

	var doc model.Document
	if err := conn.ReadJSON(&doc); err != nil {
		log.Warn("read document", zap.Error(err))
		_ = conn.WriteJSON(map[string]string{"kind": "error", "error": fmt.Sprintf("decode document: %v", err)})
		return
	}

	doc, _, err = s.pipeline.Prepare(doc)
	if err != nil {
		_ = conn.WriteJSON(map[string]string{"kind": "error", "error": err.Error()})
		return
	}
	events, err := s.pipeline.Fragmenter().Events(doc.Text, doc.Ranges)
	if err != nil {
		_ = conn.WriteJSON(map[string]string{"kind": "error", "error": err.Error()})
		return
	}

	sent := 0
	for ev := range events {
		if err := conn.WriteJSON(render.Record(ev)); err != nil {
			log.Warn("stream aborted", zap.Int("sent", sent), zap.Error(err))
			return
		}
		sent++
	}
	_ = conn.WriteJSON(streamDone)
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	log.Debug("stream finished", zap.String("document", doc.ID), zap.Int("events", sent))
}
