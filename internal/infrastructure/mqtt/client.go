package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/foraone/fora-contrib-app-miio/internal/infrastructure/config"
)

// Client is the bridge's connection to the Fora broker, wrapping
// paho.mqtt.golang. It authenticates as an app ("app:{appId}" plus the app
// token), carries a Last Will of retained "false" on apps/{appId}/online,
// and restores tracked subscriptions whenever paho reconnects.
//
// All methods are safe for concurrent use.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig
	topics  Topics

	// subscriptions are replayed by restoreSubscriptions after a reconnect.
	subscriptions map[string]subscription
	subMu         sync.RWMutex

	// mu guards connection state, lifecycle callbacks, and the logger.
	mu             sync.RWMutex
	connected      bool
	onConnect      func()
	onDisconnect   func(err error)
	onReconnecting func()
	logger         Logger
}

// Logger is the subset of logging the client needs for handler failures.
// Satisfied by logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler receives inbound messages. Paho invokes handlers on its
// own goroutines, so long-running work belongs elsewhere; a returned error
// is logged and otherwise ignored.
type MessageHandler func(topic string, payload []byte) error

// Connect dials the Fora broker and blocks until the first connection
// succeeds or times out. The app identity and Last Will are derived from
// cfg and app; the retained online marker itself is published from the
// connect handler so every reconnect refreshes it.
func Connect(cfg config.MQTTConfig, app config.AppConfig) (*Client, error) {
	topics := NewTopics(app.ID)
	opts := buildClientOptions(cfg, app)
	configureLWT(opts, topics)

	c := &Client{
		cfg:           cfg,
		options:       opts,
		topics:        topics,
		subscriptions: make(map[string]subscription),
	}
	c.installLifecycleHandlers(opts)

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// Paho runs the connect handler asynchronously; mark connected here so
	// IsConnected is true the moment Connect returns.
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	return c, nil
}

func (c *Client) installLifecycleHandlers(opts *pahomqtt.ClientOptions) {
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.mu.Lock()
		c.connected = true
		callback := c.onConnect
		c.mu.Unlock()

		c.restoreSubscriptions()

		// Retained "true" counters the Last Will's "false".
		c.client.Publish(c.topics.AppOnline(), byte(c.cfg.QoS), true, onlinePayload)

		if callback != nil {
			callback()
		}
	})

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.mu.Lock()
		c.connected = false
		callback := c.onDisconnect
		c.mu.Unlock()

		if callback != nil {
			callback(err)
		}
	})

	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		c.mu.RLock()
		callback := c.onReconnecting
		c.mu.RUnlock()

		if callback != nil {
			callback()
		}
	})
}

// Topics returns the topic builder bound to this client's app id.
func (c *Client) Topics() Topics {
	return c.topics
}

// restoreSubscriptions replays tracked subscriptions after a reconnect.
// Failures are left for the next reconnect cycle.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

// Close publishes a retained "false" on the online topic, then disconnects.
// Subscribers see a clean offline transition instead of waiting on the
// Last Will.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.client.Publish(c.topics.AppOnline(), byte(c.cfg.QoS), true, offlinePayload)
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	return nil
}

// HealthCheck reports whether the broker connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetOnConnect registers a callback for the initial connect and every
// reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.mu.Lock()
	c.onConnect = callback
	c.mu.Unlock()
}

// SetOnDisconnect registers a callback for connection loss; err says why.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.mu.Lock()
	c.onDisconnect = callback
	c.mu.Unlock()
}

// SetOnReconnecting registers a callback invoked per reconnection attempt.
func (c *Client) SetOnReconnecting(callback func()) {
	c.mu.Lock()
	c.onReconnecting = callback
	c.mu.Unlock()
}

// SetLogger supplies a logger for handler errors and panics. Without one
// they are dropped.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

// wrapHandler adds panic recovery and error logging around a handler
// before handing it to paho.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}
