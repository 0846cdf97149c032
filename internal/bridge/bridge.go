package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/foraone/fora-contrib-app-miio/internal/directory"
	"github.com/foraone/fora-contrib-app-miio/internal/infrastructure/mqtt"
	"github.com/foraone/fora-contrib-app-miio/internal/miio"
)

// reloadCommand is the notify payload that triggers a full reload.
const reloadCommand = "reloadApplication"

// deviceEventBuffer sizes the shared device event channel. Events are
// consumed by a single loop; the buffer absorbs bursts from chatty
// devices without blocking their pumps.
const deviceEventBuffer = 64

// Bridge orchestrates the bidirectional flow between the local miio
// transport and the Fora platform. It owns the device record store, the
// control topic bindings, the live device handles, and the single event
// loop that turns device events into retained datapoint publishes.
//
// Thread Safety: all methods are safe for concurrent use.
type Bridge struct {
	appID  string
	qos    byte
	topics mqtt.Topics

	broker    Broker
	dir       DirectoryService
	transport miio.Transport

	tokens     *miio.TokenTable
	tokenStore TokenPersistence  // optional
	telemetry  TelemetryRecorder // optional

	records  *RecordStore
	bindings *BindingTable

	// Live device handles and their event routing, keyed by device id.
	devices map[string]*liveDevice
	devMu   sync.RWMutex

	// Current discovery session.
	browser   miio.Browser
	browserMu sync.Mutex

	// Discovery options.
	cacheTime int

	// Shared device event stream, drained by the event loop.
	events chan miio.Event

	// Serialises full reloads.
	reloadMu sync.Mutex

	// Shutdown coordination.
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger Logger
}

// liveDevice pairs an opened handle with its event routing table
// (event name → canonical datapoint name).
type liveDevice struct {
	handle miio.Device
	routes map[string]string
}

// Broker is the message broker transport used by the bridge.
// Satisfied by an adapter over the infrastructure mqtt client; mocked in
// tests.
type Broker interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error

	// Unsubscribe removes a subscription.
	Unsubscribe(topic string) error

	// Log publishes a best-effort diagnostic on the app's log topic.
	Log(message string)
}

// DirectoryService is the remote device directory.
// Satisfied by *directory.Client.
type DirectoryService interface {
	SetConfigSchema(ctx context.Context, schema any) error
	FetchAppConfig(ctx context.Context) (*directory.AppConfig, error)
	FetchDevices(ctx context.Context) ([]directory.DeviceRecord, error)
	RegisterDevice(ctx context.Context, record directory.DeviceRecord) (*directory.DeviceRecord, error)
}

// TokenPersistence is the optional persistent token store.
// Satisfied by *miio.TokenStore.
type TokenPersistence interface {
	LoadAll(ctx context.Context) (map[int64]string, error)
	SaveAll(ctx context.Context, tokens map[int64]string) error
}

// TelemetryRecorder is the optional datapoint history sink.
// Satisfied by *tsdb.Client.
type TelemetryRecorder interface {
	WriteDatapointValue(deviceTypeID, name string, value float64)
}

// Logger defines the logging interface used by the bridge.
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

// Options holds configuration for creating a bridge.
type Options struct {
	// AppID is this bridge's Fora app id.
	AppID string

	// QoS is the broker QoS level for subscriptions and publishes.
	QoS byte

	// DiscoveryCacheTime is the discovery freshness window in seconds.
	DiscoveryCacheTime int

	// Broker is the message broker transport.
	Broker Broker

	// Directory is the device directory service.
	Directory DirectoryService

	// Transport is the local device transport.
	Transport miio.Transport

	// TokenStore is the optional persistent token store.
	// If nil, tokens live only in memory for the current epoch.
	TokenStore TokenPersistence

	// Telemetry is the optional datapoint history sink.
	// If nil, no history is recorded.
	Telemetry TelemetryRecorder

	// Logger is optional structured logging.
	Logger Logger
}

// New creates a new bridge instance.
// Call Start() to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.AppID == "" {
		return nil, fmt.Errorf("app id is required")
	}
	if opts.Broker == nil {
		return nil, fmt.Errorf("broker is required")
	}
	if opts.Directory == nil {
		return nil, fmt.Errorf("directory service is required")
	}
	if opts.Transport == nil {
		return nil, fmt.Errorf("device transport is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Bridge{
		appID:      opts.AppID,
		qos:        opts.QoS,
		topics:     mqtt.NewTopics(opts.AppID),
		broker:     opts.Broker,
		dir:        opts.Directory,
		transport:  opts.Transport,
		tokens:     miio.NewTokenTable(),
		tokenStore: opts.TokenStore,
		telemetry:  opts.Telemetry,
		records:    NewRecordStore(),
		bindings:   NewBindingTable(),
		devices:    make(map[string]*liveDevice),
		cacheTime:  opts.DiscoveryCacheTime,
		events:     make(chan miio.Event, deviceEventBuffer),
		done:       make(chan struct{}),
		ctx:        ctx,
		ctxCancel:  cancel,
		logger:     logger,
	}, nil
}

// Start begins bridge operation.
//
// It pushes the app's configuration schema to the directory, subscribes
// to the fixed command and notify topics, starts the device event loop,
// and performs the initial full reload.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.dir.SetConfigSchema(ctx, directory.ConfigSchema()); err != nil {
		// Schema push failing is not fatal: the platform keeps the
		// previously uploaded schema.
		b.logger.Warn("config schema push failed", "error", err)
	}

	if err := b.broker.Subscribe(b.topics.AppCommand(), b.qos, b.handleCommandMessage); err != nil {
		return fmt.Errorf("subscribe to command topic: %w", err)
	}
	if err := b.broker.Subscribe(b.topics.AppNotify(), b.qos, b.handleNotifyMessage); err != nil {
		return fmt.Errorf("subscribe to notify topic: %w", err)
	}
	b.broker.Log("Subscribed to command topic: " + b.topics.AppCommand())

	b.wg.Add(1)
	go b.eventLoop()

	b.Reload(ctx)

	b.logger.Info("bridge started", "app_id", b.appID)
	return nil
}

// OnBrokerConnect is wired as the broker client's connect callback.
// Subscriptions are restored by the broker client itself; the bridge only
// re-triggers a full reload so records and bindings reflect the directory
// again after an outage.
func (b *Bridge) OnBrokerConnect() {
	b.logger.Info("broker connected")
	b.broker.Log("MQTT is connected")

	select {
	case <-b.done:
		return
	default:
	}
	go b.Reload(b.ctx)
}

// OnBrokerDisconnect is wired as the broker client's disconnect callback.
func (b *Bridge) OnBrokerDisconnect(err error) {
	b.logger.Warn("broker disconnected", "error", err)
}

// OnBrokerReconnecting is wired as the broker client's reconnecting callback.
func (b *Bridge) OnBrokerReconnecting() {
	b.logger.Info("broker reconnect attempt")
}

// Stop gracefully shuts down the bridge.
// It tears down discovery, closes all device handles, and waits for
// pending work. In-flight directory calls are cancelled.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()

		b.stopDiscovery()

		b.devMu.Lock()
		for id, dev := range b.devices {
			if err := dev.handle.Close(); err != nil {
				b.logger.Warn("closing device handle", "device", id, "error", err)
			}
		}
		b.devices = make(map[string]*liveDevice)
		b.devMu.Unlock()

		b.wg.Wait()
		b.logger.Info("bridge stopped")
	})
}

// Records returns a snapshot of the device record store.
func (b *Bridge) Records() []directory.DeviceRecord {
	return b.records.Snapshot()
}

// Bindings returns a snapshot of the control topic bindings.
func (b *Bridge) Bindings() []Binding {
	return b.bindings.Snapshot()
}

// DeviceCount returns the number of open device handles.
func (b *Bridge) DeviceCount() int {
	b.devMu.RLock()
	defer b.devMu.RUnlock()
	return len(b.devices)
}

// device returns the live device entry for a device id.
func (b *Bridge) device(id string) (*liveDevice, bool) {
	b.devMu.RLock()
	defer b.devMu.RUnlock()
	dev, ok := b.devices[id]
	return dev, ok
}
