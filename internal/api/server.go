// Package api is the lift-sync HTTP server. It exposes the remote entity
// store that lift clients sync against. Payloads are opaque bytes so that
// end-to-end encrypted clients work unchanged.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/marcus/lift/internal/serverdb"
)

// Server is the HTTP API server for lift-sync.
type Server struct {
	config Config
	http   *http.Server
	store  *serverdb.ServerDB
}

// NewServer creates a new Server with the given config and store.
func NewServer(cfg Config, store *serverdb.ServerDB) *Server {
	s := &Server{
		config: cfg,
		store:  store,
	}

	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests (non-blocking).
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server", "err", err)
		}
	}()

	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// routes builds the HTTP handler with all routes and middleware.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /statusz", s.requireAuth(s.handleStatus))

	mux.HandleFunc("GET /v1/entities/{type}", s.requireAuth(s.handleListEntities))
	mux.HandleFunc("GET /v1/entities/{type}/{id}", s.requireAuth(s.handleGetEntity))
	mux.HandleFunc("PUT /v1/entities/{type}/{id}", s.requireAuth(s.handlePutEntity))
	mux.HandleFunc("DELETE /v1/entities/{type}/{id}", s.requireAuth(s.handleDeleteEntity))

	return chain(mux, recoveryMiddleware, requestIDMiddleware, loggerMiddleware, loggingMiddleware, maxBytesMiddleware(s.config.MaxBodyBytes))
}

// handleHealth returns a health check response, pinging the server DB.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "detail": "db unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus returns per-type entity counts and known devices.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountEntities()
	if err != nil {
		logFor(r.Context()).Error("count entities", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to count entities")
		return
	}
	devices, err := s.store.ListDevices()
	if err != nil {
		logFor(r.Context()).Error("list devices", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list devices")
		return
	}
	deviceIDs := make([]string, 0, len(devices))
	for _, d := range devices {
		deviceIDs = append(deviceIDs, d.DeviceID)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entities": counts,
		"devices":  deviceIDs,
	})
}
