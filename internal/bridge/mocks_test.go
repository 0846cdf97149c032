package bridge

import (
	"context"
	"sync"

	"github.com/foraone/fora-contrib-app-miio/internal/datapoint"
	"github.com/foraone/fora-contrib-app-miio/internal/directory"
	"github.com/foraone/fora-contrib-app-miio/internal/miio"
)

// publishedMessage records one MockBroker publish.
type publishedMessage struct {
	Topic    string
	Payload  string
	QoS      byte
	Retained bool
}

// MockBroker implements Broker for testing.
type MockBroker struct {
	mu            sync.Mutex
	published     []publishedMessage
	subscriptions map[string]func(topic string, payload []byte) error
	unsubscribed  []string
	logs          []string

	PublishError   error
	SubscribeError error
}

func NewMockBroker() *MockBroker {
	return &MockBroker{
		subscriptions: make(map[string]func(topic string, payload []byte) error),
	}
}

func (m *MockBroker) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishError != nil {
		return m.PublishError
	}
	m.published = append(m.published, publishedMessage{
		Topic:    topic,
		Payload:  string(payload),
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockBroker) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SubscribeError != nil {
		return m.SubscribeError
	}
	m.subscriptions[topic] = handler
	return nil
}

func (m *MockBroker) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, topic)
	m.unsubscribed = append(m.unsubscribed, topic)
	return nil
}

func (m *MockBroker) Log(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, message)
}

// Published returns a copy of all recorded publishes.
func (m *MockBroker) Published() []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]publishedMessage, len(m.published))
	copy(out, m.published)
	return out
}

// HasSubscription reports whether a topic is currently subscribed.
func (m *MockBroker) HasSubscription(topic string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.subscriptions[topic]
	return ok
}

// Deliver invokes the registered handler for a topic, simulating an
// inbound broker message.
func (m *MockBroker) Deliver(topic string, payload []byte) error {
	m.mu.Lock()
	handler, ok := m.subscriptions[topic]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return handler(topic, payload)
}

// MockDirectory implements DirectoryService for testing.
type MockDirectory struct {
	mu         sync.Mutex
	appConfig  directory.AppConfig
	devices    []directory.DeviceRecord
	registered []directory.DeviceRecord
	schemas    []any
	fetchCount int

	FetchConfigError  error
	FetchDevicesError error
	RegisterError     error
}

func NewMockDirectory() *MockDirectory {
	return &MockDirectory{}
}

func (m *MockDirectory) SetAppConfig(cfg directory.AppConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appConfig = cfg
}

func (m *MockDirectory) SetDevices(records []directory.DeviceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices = records
}

func (m *MockDirectory) SetConfigSchema(ctx context.Context, schema any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemas = append(m.schemas, schema)
	return nil
}

func (m *MockDirectory) FetchAppConfig(ctx context.Context) (*directory.AppConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchConfigError != nil {
		return nil, m.FetchConfigError
	}
	cfg := m.appConfig
	return &cfg, nil
}

func (m *MockDirectory) FetchDevices(ctx context.Context) ([]directory.DeviceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchDevicesError != nil {
		return nil, m.FetchDevicesError
	}
	m.fetchCount++
	out := make([]directory.DeviceRecord, len(m.devices))
	copy(out, m.devices)
	return out, nil
}

func (m *MockDirectory) RegisterDevice(ctx context.Context, record directory.DeviceRecord) (*directory.DeviceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RegisterError != nil {
		return nil, m.RegisterError
	}
	m.registered = append(m.registered, record)
	confirmed := record
	confirmed.ID = "assigned"
	return &confirmed, nil
}

// Registered returns a copy of all registration requests received.
func (m *MockDirectory) Registered() []directory.DeviceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]directory.DeviceRecord, len(m.registered))
	copy(out, m.registered)
	return out
}

// FetchCount returns how many device snapshots were served.
func (m *MockDirectory) FetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCount
}

// deviceCall records one MockDevice action invocation.
type deviceCall struct {
	Action string
	Arg    any
}

// MockDevice implements miio.Device for testing.
type MockDevice struct {
	mu       sync.Mutex
	id       string
	model    string
	metadata datapoint.RawMetadata
	children []miio.Device
	events   chan miio.Event
	calls    []deviceCall
	closed   bool

	CallError error
}

func NewMockDevice(id, model string, metadata datapoint.RawMetadata) *MockDevice {
	return &MockDevice{
		id:       id,
		model:    model,
		metadata: metadata,
		events:   make(chan miio.Event, 16),
	}
}

func (m *MockDevice) ID() string                       { return m.id }
func (m *MockDevice) Model() string                    { return m.model }
func (m *MockDevice) Metadata() datapoint.RawMetadata  { return m.metadata }
func (m *MockDevice) Children() []miio.Device          { return m.children }
func (m *MockDevice) Events() <-chan miio.Event        { return m.events }

func (m *MockDevice) Call(ctx context.Context, action string, arg any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CallError != nil {
		return m.CallError
	}
	m.calls = append(m.calls, deviceCall{Action: action, Arg: arg})
	return nil
}

func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.events)
	}
	return nil
}

// Emit feeds one event into the device's stream.
func (m *MockDevice) Emit(name string, payload any) {
	m.events <- miio.Event{DeviceID: m.id, Name: name, Payload: payload}
}

// Calls returns a copy of all recorded action invocations.
func (m *MockDevice) Calls() []deviceCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]deviceCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// IsClosed reports whether the handle was closed.
func (m *MockDevice) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockBrowser implements miio.Browser for testing.
type MockBrowser struct {
	regs     chan miio.Registration
	stopOnce sync.Once
}

func NewMockBrowser() *MockBrowser {
	return &MockBrowser{regs: make(chan miio.Registration, 16)}
}

func (m *MockBrowser) Registrations() <-chan miio.Registration { return m.regs }

func (m *MockBrowser) Stop() {
	m.stopOnce.Do(func() { close(m.regs) })
}

// Announce feeds one discovery announcement.
func (m *MockBrowser) Announce(reg miio.Registration) {
	m.regs <- reg
}

// MockTransport implements miio.Transport for testing.
type MockTransport struct {
	mu       sync.Mutex
	browsers []*MockBrowser
	opened   []miio.Registration

	// OpenFunc constructs the handle for an opened registration.
	// Required for any test that resolves a registration.
	OpenFunc func(reg miio.Registration) (miio.Device, error)
}

func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

func (m *MockTransport) Browse(ctx context.Context, opts miio.BrowseOptions) (miio.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	browser := NewMockBrowser()
	m.browsers = append(m.browsers, browser)
	return browser, nil
}

func (m *MockTransport) Open(ctx context.Context, reg miio.Registration) (miio.Device, error) {
	m.mu.Lock()
	m.opened = append(m.opened, reg)
	open := m.OpenFunc
	m.mu.Unlock()
	return open(reg)
}

// CurrentBrowser returns the most recently created discovery session.
func (m *MockTransport) CurrentBrowser() *MockBrowser {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.browsers) == 0 {
		return nil
	}
	return m.browsers[len(m.browsers)-1]
}

// Opened returns a copy of all registrations passed to Open.
func (m *MockTransport) Opened() []miio.Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]miio.Registration, len(m.opened))
	copy(out, m.opened)
	return out
}

// MockLogger records log lines for assertions.
type MockLogger struct {
	mu      sync.Mutex
	entries []string
}

func (m *MockLogger) log(level, msg string) {
	m.mu.Lock()
	m.entries = append(m.entries, level+": "+msg)
	m.mu.Unlock()
}

func (m *MockLogger) Debug(msg string, _ ...any) { m.log("debug", msg) }
func (m *MockLogger) Info(msg string, _ ...any)  { m.log("info", msg) }
func (m *MockLogger) Warn(msg string, _ ...any)  { m.log("warn", msg) }
func (m *MockLogger) Error(msg string, _ ...any) { m.log("error", msg) }

// Contains reports whether any recorded line matches level and message.
func (m *MockLogger) Contains(level, msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e == level+": "+msg {
			return true
		}
	}
	return false
}
