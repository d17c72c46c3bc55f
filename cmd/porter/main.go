// Porter Core - Physical Access Hub
//
// This is the main entry point for the Porter Core application. Porter
// is the hub of a smart receptionist for a gated property: it accepts
// WebSocket connections from the edge devices (camera unit, gate
// controller), confirms whether a detected presence is a person, and
// brokers access decisions with the humans inside over chat and voice.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/porterhq/porter-core/migrations"

	"github.com/porterhq/porter-core/internal/audio"
	"github.com/porterhq/porter-core/internal/bridges/twin"
	"github.com/porterhq/porter-core/internal/chat"
	"github.com/porterhq/porter-core/internal/event"
	"github.com/porterhq/porter-core/internal/gateway"
	"github.com/porterhq/porter-core/internal/hub"
	"github.com/porterhq/porter-core/internal/imaging"
	"github.com/porterhq/porter-core/internal/infrastructure/config"
	"github.com/porterhq/porter-core/internal/infrastructure/database"
	"github.com/porterhq/porter-core/internal/infrastructure/influxdb"
	"github.com/porterhq/porter-core/internal/infrastructure/logging"
	"github.com/porterhq/porter-core/internal/infrastructure/mqtt"
	"github.com/porterhq/porter-core/internal/journal"
	"github.com/porterhq/porter-core/internal/media"
	"github.com/porterhq/porter-core/internal/presence"
	"github.com/porterhq/porter-core/internal/state"
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
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Porter Core",
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
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
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
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Media storage for captured stills, recordings and the enrollment
	// counter
	mediaStore, err := media.NewStore(cfg.Media.Dir)
	if err != nil {
		return fmt.Errorf("initialising media store: %w", err)
	}
	log.Info("media store initialised", "dir", cfg.Media.Dir)

	// Observable state store and event bus
	store := state.NewStore()
	bus := event.NewBus(cfg.Events.QueueSize, cfg.ShutdownGrace(), log)

	// Image pipeline with the external face detection helper
	detector := imaging.NewExecDetector(cfg.Imaging.DetectorBinary, cfg.Imaging.DetectorArgs)
	pipeline := imaging.NewPipeline(detector,
		cfg.Imaging.UnprocessedCapacity,
		cfg.Imaging.ProcessedCapacity,
		log,
	)

	// Audio accumulation and transcoding
	audioBuf := audio.NewBuffer(cfg.Audio.SettleDelay(), cfg.Audio.ChunkTimeout(), cfg.Audio.MaxChunks)
	transcoder := audio.NewFFmpegTranscoder(cfg.Audio.FFmpegBinary, cfg.Audio.SampleRate)

	// Connect to MQTT broker (chat relay and voice-bridge twin)
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	journalRepo := journal.NewRepository(db.DB)

	// Chat relay: notifications out, commands in with origin chat
	qos := byte(cfg.MQTT.QoS)
	chatRelay := chat.NewRelay(mqttClient, bus, qos, log)
	if err := chatRelay.Start(); err != nil {
		return fmt.Errorf("starting chat relay: %w", err)
	}
	log.Info("chat relay started")

	// Voice-bridge twin: retained state mirror plus set-topic commands
	twinBridge := twin.New(mqttClient, bus, store, qos, log)
	if err := twinBridge.Start(); err != nil {
		return fmt.Errorf("starting twin bridge: %w", err)
	}
	log.Info("twin bridge started")

	// Device gateway
	gw, err := gateway.New(gateway.Deps{
		Config: cfg.Server,
		Logger: log,
		Bus:    bus,
		State:  store,
	})
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	// Presence-confirmation engine
	engineDeps := presence.Deps{
		Config: presence.Config{
			MotionBackoff:   cfg.Presence.MotionBackoff(),
			PersonRetry:     cfg.Presence.PersonRetry(),
			MotionThreshold: cfg.Presence.MotionConfirmThreshold,
			PersonThreshold: cfg.Presence.PersonConfirmThreshold,
			RoundTimeout:    cfg.Presence.RoundTimeout(),
		},
		Pipeline:  pipeline,
		Commander: &deviceCommander{gw: gw},
		Notifier:  chatRelay,
		Media:     mediaStore,
		State:     store,
		Journal:   journalRepo,
		Logger:    log,
	}
	if influxClient != nil {
		engineDeps.Metrics = influxClient
	}
	engine := presence.NewEngine(engineDeps)

	// Hub: event routing, cross-device sync, audio sessions, enrollment
	hubDeps := hub.Deps{
		Gateway:        gw,
		Engine:         engine,
		Images:         pipeline,
		Audio:          audioBuf,
		Transcoder:     transcoder,
		Media:          mediaStore,
		Notifier:       chatRelay,
		State:          store,
		Journal:        journalRepo,
		CommandTimeout: cfg.Presence.CommandTimeout(),
		Logger:         log,
	}
	if influxClient != nil {
		hubDeps.Metrics = influxClient
	}
	h, err := hub.New(hubDeps)
	if err != nil {
		return fmt.Errorf("creating hub: %w", err)
	}
	if err := h.Register(bus); err != nil {
		return fmt.Errorf("registering hub handlers: %w", err)
	}

	// Fan state changes out to the observers that live outside the
	// per-event flow: connectivity metrics and journal entries, and the
	// retained twin mirror for the voice bridge.
	store.SetOnChange(func(field state.Field, value string) {
		switch field {
		case state.FieldCameraConnected, state.FieldControllerConnected:
			device := "camera"
			if field == state.FieldControllerConnected {
				device = "controller"
			}
			connected := value == "true"
			if influxClient != nil {
				influxClient.WriteConnectivity(device, connected)
			}
			if err := journalRepo.RecordTransition(context.Background(), device, value, "device"); err != nil {
				log.Error("journaling connectivity failed", "device", device, "error", err)
			}
		case state.FieldGate, state.FieldLight:
			twinBridge.MirrorField(field, value)
		}
	})

	// Start the gateway last so devices connect into a fully wired hub
	if err := gw.Start(ctx); err != nil {
		return fmt.Errorf("starting gateway: %w", err)
	}
	defer func() {
		log.Info("closing gateway")
		if closeErr := gw.Close(); closeErr != nil {
			log.Error("error closing gateway", "error", closeErr)
		}
	}()
	log.Info("gateway listening",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"ws_path", cfg.Server.WSPath,
	)

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, processing events")

	// Listen blocks until the context is cancelled, then drains with the
	// configured grace period.
	if err := bus.Listen(ctx); err != nil {
		return fmt.Errorf("event loop: %w", err)
	}

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. Gateway (disconnects devices)
	// 2. InfluxDB (if enabled)
	// 3. MQTT
	// 4. Database

	log.Info("Porter Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses PORTER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PORTER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// deviceCommander adapts the gateway to the presence engine's device
// command surface.
type deviceCommander struct {
	gw *gateway.Server
}

// RequestCapture implements presence.Commander.
func (c *deviceCommander) RequestCapture() {
	c.gw.Send(gateway.IdentityCamera, string(event.TypeCaptureImage), nil)
}

// SendAccess implements presence.Commander.
func (c *deviceCommander) SendAccess(grant bool) {
	eventType := event.TypeDenyAccess
	if grant {
		eventType = event.TypeGrantAccess
	}
	c.gw.Send(gateway.IdentityController, string(eventType), nil)
}
