// Package httpapi exposes the sync engine over a small JSON HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stafflink/dirsync/internal/reconcile"
	"github.com/stafflink/dirsync/internal/store"
	"github.com/stafflink/dirsync/internal/telemetry"
)

// Config holds the HTTP listener configuration.
type Config struct {
	// Addr is the listen address. Default: ":8080".
	Addr string

	// ShutdownTimeout bounds graceful shutdown. Default: 10 seconds.
	ShutdownTimeout time.Duration
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// Server serves the sync API: trigger endpoints, run history, status,
// health and metrics.
type Server struct {
	orch *reconcile.Orchestrator
	runs store.SyncRunStore
	cfg  Config
	srv  *http.Server
}

// NewServer creates the API server.
func NewServer(orch *reconcile.Orchestrator, runs store.SyncRunStore, cfg Config) *Server {
	cfg.ApplyDefaults()
	s := &Server{orch: orch, runs: runs, cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sync", s.handleSyncAll)
	mux.HandleFunc("POST /v1/tenants/{id}/sync", s.handleSyncTenant)
	mux.HandleFunc("GET /v1/sync/status", s.handleStatus)
	mux.HandleFunc("GET /v1/tenants/{id}/runs", s.handleListRuns)
	mux.HandleFunc("GET /v1/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /v1/runs/{id}/errors", s.handleListErrors)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", telemetry.Handler())

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           logRequests(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.cfg.Addr).Msg("API server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// Handler exposes the routing stack for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) handleSyncAll(w http.ResponseWriter, r *http.Request) {
	runs, err := s.orch.SyncAll(r.Context(), requestedBy(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleSyncTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid tenant id: %w", err))
		return
	}

	run, err := s.orch.SyncTenant(r.Context(), tenantID, requestedBy(r))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrSyncInProgress):
			writeError(w, http.StatusConflict, err)
		case errors.Is(err, store.ErrTenantNotFound):
			writeError(w, http.StatusNotFound, err)
		default:
			// The run itself carries the failure detail; surface both.
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"message": err.Error(),
				"run":     run,
			})
		}
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.orch.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid tenant id: %w", err))
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 200 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be between 1 and 200"))
			return
		}
	}

	runs, err := s.runs.ListRuns(r.Context(), tenantID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid run id: %w", err))
		return
	}

	run, err := s.runs.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListErrors(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid run id: %w", err))
		return
	}

	syncErrs, err := s.runs.ListErrors(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"errors": syncErrs})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestedBy identifies the caller for the run audit trail. There is no
// authentication layer; the header is advisory.
func requestedBy(r *http.Request) string {
	if who := r.Header.Get("X-Requested-By"); who != "" {
		return who
	}
	return "api"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"message": err.Error()})
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
