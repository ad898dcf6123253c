package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/clerkbot/activity-clerk/internal/domain"
)

// Server is the status HTTP server: it exposes the latest report, single
// lookup values, the run history, and a websocket stream of cycle events.
type Server struct {
	service    *domain.ActivityService
	hub        *Hub
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a new HTTP server listening on addr. The hub must also
// be registered as a cycle observer of the service for the stream to carry
// events.
func NewServer(addr string, service *domain.ActivityService, hub *Hub, logger *slog.Logger) *Server {
	s := &Server{
		service: service,
		hub:     hub,
		logger:  logger,
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      withLogging(logger, s.routes()),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/report", s.handleReport)
	mux.HandleFunc("GET /v1/lookup", s.handleLookup)
	mux.HandleFunc("GET /v1/runs", s.handleRuns)
	mux.Handle("GET /v1/stream", s.hub)
	return mux
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server and disconnects stream
// clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReport(w http.ResponseWriter, _ *http.Request) {
	report := s.service.LatestReport()
	if report == nil {
		writeError(w, http.StatusServiceUnavailable, "NotReady", "no cycle has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	proceeding := q.Get("proceeding")
	user := q.Get("user")
	if proceeding == "" || user == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "proceeding and user parameters are required")
		return
	}
	field := q.Get("field")
	if field == "" {
		field = domain.FieldStatus
	}

	if s.service.LatestReport() == nil {
		writeError(w, http.StatusServiceUnavailable, "NotReady", "no cycle has completed yet")
		return
	}

	value, ok := s.service.Lookup(proceeding, user, field)
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "no value for that proceeding, user and field")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"proceeding": proceeding,
		"user":       user,
		"field":      field,
		"value":      value,
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > 100 {
			s.logger.Warn("invalid limit parameter", "limit", l, "error", err)
			writeError(w, http.StatusBadRequest, "InvalidRequest", "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	runs, err := s.service.RecentRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list runs", "limit", limit, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to list runs")
		return
	}
	if runs == nil {
		runs = []domain.Run{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrader take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
