// Package api provides the local status HTTP server for the miio bridge.
//
// It exposes a read-only view of the bridge's runtime state (device
// records, control bindings, component health) plus a reload trigger for
// operators, on a loopback-oriented listener.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/foraone/fora-contrib-app-miio/internal/bridge"
	"github.com/foraone/fora-contrib-app-miio/internal/directory"
	"github.com/foraone/fora-contrib-app-miio/internal/infrastructure/config"
	"github.com/foraone/fora-contrib-app-miio/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// BridgeStatus is the view of the running bridge the server exposes.
// Satisfied by *bridge.Bridge; narrowed to an interface so handler tests
// can run against a stub.
type BridgeStatus interface {
	Records() []directory.DeviceRecord
	Bindings() []bridge.Binding
	DeviceCount() int
	Reload(ctx context.Context)
}

// HealthChecker verifies one component's health.
type HealthChecker func(ctx context.Context) error

// Deps holds the dependencies required by the status server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Bridge  BridgeStatus
	Version string

	// Checks maps component names to health checks, reported by the
	// health endpoint. Optional.
	Checks map[string]HealthChecker
}

// Server is the local status HTTP server.
//
// It is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	bridge  BridgeStatus
	version string
	checks  map[string]HealthChecker
	server  *http.Server
	started time.Time
}

// New creates a new status server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}

	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		bridge:  deps.Bridge,
		version: deps.Version,
		checks:  deps.Checks,
	}, nil
}

// Start begins listening for HTTP connections.
//
// The listener runs in a background goroutine; the server is stopped with
// Close().
func (s *Server) Start(_ context.Context) error {
	s.started = time.Now()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("status API listening", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the status server.
//
// It waits up to 10 seconds for in-flight requests to complete.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("status API shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down status API: %w", err)
	}
	return nil
}
