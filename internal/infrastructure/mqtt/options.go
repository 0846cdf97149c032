package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/foraone/fora-contrib-app-miio/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12

	// clientIDSuffixLen is how many uuid characters to append to generated
	// client IDs so parallel bridge instances don't steal each other's session.
	clientIDSuffixLen = 8
)

// Liveness payloads for the apps/{appId}/online topic.
const (
	onlinePayload  = "true"
	offlinePayload = "false"
)

// buildClientOptions creates paho MQTT options from bridge config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Fora app identity: username "app:{appId}", password app token
//   - Client ID (configured, or generated from the app id)
//   - Auto-reconnect with exponential backoff
//   - TLS configuration (if enabled)
func buildClientOptions(cfg config.MQTTConfig, app config.AppConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	brokerURL := fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
	opts.AddBroker(brokerURL)

	clientID := cfg.Broker.ClientID
	if clientID == "" {
		clientID = generateClientID(app.ID)
	}
	opts.SetClientID(clientID)

	// App identity: the broker's ACL maps "app:{id}" onto the app's
	// apps/{id}/* and dps/* topic grants.
	opts.SetUsername("app:" + app.ID)
	opts.SetPassword(app.Token)

	// Clean session - start fresh on connect (no persistent session on broker)
	opts.SetCleanSession(true)

	// Auto-reconnect with exponential backoff
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}

// generateClientID builds a unique client ID from the app id.
//
// Example: fora-app-miio-bridge-01-3f2a91bc
func generateClientID(appID string) string {
	suffix := uuid.NewString()
	return fmt.Sprintf("fora-app-%s-%s", appID, suffix[:clientIDSuffixLen])
}

// configureLWT sets up the Last Will and Testament for offline detection.
//
// The broker publishes "false" on apps/{appId}/online if the bridge
// disconnects unexpectedly (crash, network failure). The message is retained
// so platform components joining later still see the offline state.
func configureLWT(opts *pahomqtt.ClientOptions, topics Topics) {
	opts.SetWill(topics.AppOnline(), offlinePayload, 1, true)
}
