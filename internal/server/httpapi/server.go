// Package httpapi serves avatar resolution, registry administration,
// health and metrics over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/avatar/internal/health"
	"github.com/vietddude/avatar/internal/resolver"
)

const defaultRequestTimeout = 15 * time.Second

// Server provides the HTTP endpoints.
type Server struct {
	resolver *resolver.Resolver
	monitor  *health.Monitor
	server   *http.Server
	handler  http.Handler
	timeout  time.Duration
	log      *slog.Logger
}

// NewServer creates a new HTTP server.
func NewServer(res *resolver.Resolver, monitor *health.Monitor, port int, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	mux := http.NewServeMux()
	s := &Server{
		resolver: res,
		monitor:  monitor,
		handler:  mux,
		timeout:  defaultRequestTimeout,
		log:      log.With("component", "http"),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	mux.HandleFunc("GET /v1/avatar", s.handleResolveQuery)
	mux.HandleFunc("POST /v1/avatar", s.handleResolveBody)
	mux.HandleFunc("GET /v1/failed", s.handleListFailed)
	mux.HandleFunc("DELETE /v1/failed", s.handleClearFailed)
	mux.HandleFunc("DELETE /v1/failed/{key}", s.handleRemoveFailed)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Handler returns the routing handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleResolveQuery(w http.ResponseWriter, r *http.Request) {
	fields := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	s.resolve(w, r, fields)
}

func (s *Server) handleResolveBody(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err))
		return
	}

	fields := make(map[string]string, len(body))
	for k, v := range body {
		switch val := v.(type) {
		case nil:
			fields[k] = ""
		case string:
			fields[k] = val
		case json.Number, bool:
			fields[k] = fmt.Sprint(val)
		default:
			writeError(w, http.StatusBadRequest, fmt.Errorf("field %q must be a scalar", k))
			return
		}
	}
	s.resolve(w, r, fields)
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request, fields map[string]string) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	view, err := s.resolver.ResolveFields(ctx, fields)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, view)
	case errors.Is(err, resolver.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err)
	default:
		s.log.Error("Resolve failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) handleListFailed(w http.ResponseWriter, r *http.Request) {
	all, err := s.resolver.Registry().GetAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"failed": all, "count": len(all)})
}

func (s *Server) handleClearFailed(w http.ResponseWriter, r *http.Request) {
	if err := s.resolver.Registry().Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.log.Info("Failure registry cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveFailed(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if err := s.resolver.Registry().Remove(r.Context(), key); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth(r.Context())

	status := http.StatusOK
	if report.SystemStatus == health.StatusCritical {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"status": string(report.SystemStatus)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.CheckHealth(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
