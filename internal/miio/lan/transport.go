package lan

import (
	"context"
	"time"

	"github.com/foraone/fora-contrib-app-miio/internal/miio"
)

// Defaults for transport tuning knobs.
const (
	defaultPollInterval = 30 * time.Second
	defaultCallTimeout  = 5 * time.Second
)

// Logger defines the logging interface used by the transport.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options holds configuration for creating a transport.
type Options struct {
	// PollInterval is how often opened devices are polled for property
	// changes. Defaults to 30s.
	PollInterval time.Duration

	// CallTimeout bounds one request/response exchange with a device.
	// Defaults to 5s.
	CallTimeout time.Duration

	// Logger is optional structured logging.
	Logger Logger
}

// Transport is the UDP LAN implementation of the miio device transport.
// Discovery broadcasts handshake frames; device handles speak the
// encrypted JSON-RPC protocol and derive change events by polling.
type Transport struct {
	pollInterval time.Duration
	callTimeout  time.Duration
	logger       Logger
}

// NewTransport creates a LAN transport.
func NewTransport(opts Options) *Transport {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Transport{
		pollInterval: opts.PollInterval,
		callTimeout:  opts.CallTimeout,
		logger:       logger,
	}
}

// Browse starts a LAN discovery session.
func (t *Transport) Browse(ctx context.Context, opts miio.BrowseOptions) (miio.Browser, error) {
	return newBrowser(opts, t.logger)
}

// Open constructs a live handle for a discovered device.
func (t *Transport) Open(ctx context.Context, reg miio.Registration) (miio.Device, error) {
	return openDevice(ctx, reg, t.pollInterval, t.callTimeout, t.logger)
}
