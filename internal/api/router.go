package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each component health probe.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/devices", s.handleListDevices)
		r.Get("/bindings", s.handleListBindings)
		r.Post("/reload", s.handleReload)
	})

	return r
}

// handleHealth reports server liveness and per-component health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	components := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		if err := check(ctx); err != nil {
			components[name] = err.Error()
			status = "degraded"
		} else {
			components[name] = "ok"
		}
		cancel()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"version":    s.version,
		"uptime_s":   int(time.Since(s.started).Seconds()),
		"devices":    s.bridge.DeviceCount(),
		"components": components,
	})
}

// handleListDevices returns the current directory record snapshot.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	records := s.bridge.Records()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(records),
		"devices": records,
	})
}

// handleListBindings returns the current control topic bindings.
func (s *Server) handleListBindings(w http.ResponseWriter, _ *http.Request) {
	bindings := s.bridge.Bindings()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(bindings),
		"bindings": bindings,
	})
}

// handleReload triggers a full bridge reload. The reload itself runs in
// the background; the response only acknowledges the trigger.
func (s *Server) handleReload(w http.ResponseWriter, _ *http.Request) {
	go s.bridge.Reload(context.Background())
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "reload started",
	})
}
