// miio bridge - Fora platform app
//
// Bridges Xiaomi miio LAN devices onto the Fora platform: discovered
// devices are registered with the device directory, their state changes
// are published as retained datapoint values on the broker, and inbound
// control messages are dispatched back to the devices.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/foraone/fora-contrib-app-miio/internal/api"
	"github.com/foraone/fora-contrib-app-miio/internal/bridge"
	"github.com/foraone/fora-contrib-app-miio/internal/directory"
	"github.com/foraone/fora-contrib-app-miio/internal/infrastructure/config"
	"github.com/foraone/fora-contrib-app-miio/internal/infrastructure/database"
	"github.com/foraone/fora-contrib-app-miio/internal/infrastructure/logging"
	"github.com/foraone/fora-contrib-app-miio/internal/infrastructure/mqtt"
	"github.com/foraone/fora-contrib-app-miio/internal/infrastructure/tsdb"
	"github.com/foraone/fora-contrib-app-miio/internal/miio"
	"github.com/foraone/fora-contrib-app-miio/internal/miio/lan"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting miio bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Open the token database (optional)
	var db *database.DB
	if cfg.Discovery.TokenStorage {
		db, err = database.Open(ctx, database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		if setupErr := db.Setup(ctx); setupErr != nil {
			return fmt.Errorf("setting up database: %w", setupErr)
		}
		log.Info("token database ready", "path", cfg.Database.Path)
	} else {
		log.Info("persistent token storage disabled")
	}

	// Connect telemetry history (optional)
	telemetryClient, err := tsdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, tsdb.ErrDisabled):
		log.Info("telemetry history disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := telemetryClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		telemetryClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// Directory client
	dir := directory.New(cfg.Directory.BaseURL, cfg.App.ID, cfg.App.Token, cfg.GetDirectoryTimeout())

	// Connect to the Fora broker
	mqttClient, err := mqtt.Connect(cfg.MQTT, cfg.App)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
	)

	// Local device transport
	transport := lan.NewTransport(lan.Options{Logger: log})

	// Assemble the bridge
	var tokenStore bridge.TokenPersistence
	if db != nil {
		tokenStore = miio.NewTokenStore(db.DB)
	}
	var telemetry bridge.TelemetryRecorder
	if telemetryClient != nil {
		telemetry = telemetryClient
	}

	b, err := bridge.New(bridge.Options{
		AppID:              cfg.App.ID,
		QoS:                byte(cfg.MQTT.QoS),
		DiscoveryCacheTime: cfg.Discovery.CacheTime,
		Broker:             brokerAdapter{client: mqttClient},
		Directory:          dir,
		Transport:          transport,
		TokenStore:         tokenStore,
		Telemetry:          telemetry,
		Logger:             log,
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	mqttClient.SetOnConnect(b.OnBrokerConnect)
	mqttClient.SetOnDisconnect(b.OnBrokerDisconnect)
	mqttClient.SetOnReconnecting(b.OnBrokerReconnecting)

	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		b.Stop()
	}()

	// Local status API (optional)
	if cfg.API.Enabled {
		checks := map[string]api.HealthChecker{
			"mqtt": mqttClient.HealthCheck,
		}
		if db != nil {
			checks["database"] = db.HealthCheck
		}
		if telemetryClient != nil {
			checks["influxdb"] = telemetryClient.HealthCheck
		}

		statusServer, err := api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log,
			Bridge:  b,
			Version: version,
			Checks:  checks,
		})
		if err != nil {
			return fmt.Errorf("creating status API: %w", err)
		}
		if err := statusServer.Start(ctx); err != nil {
			return fmt.Errorf("starting status API: %w", err)
		}
		defer func() {
			if closeErr := statusServer.Close(); closeErr != nil {
				log.Error("error closing status API", "error", closeErr)
			}
		}()
	} else {
		log.Info("status API disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses MIIOBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("MIIOBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// brokerAdapter narrows the MQTT client to the bridge's broker interface.
// The subscribe signatures differ only by the handler's named type.
type brokerAdapter struct {
	client *mqtt.Client
}

func (a brokerAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

func (a brokerAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	return a.client.Subscribe(topic, qos, handler)
}

func (a brokerAdapter) Unsubscribe(topic string) error {
	return a.client.Unsubscribe(topic)
}

func (a brokerAdapter) Log(message string) {
	a.client.Log(message)
}
