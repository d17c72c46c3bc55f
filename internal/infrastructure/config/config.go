package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Porter Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Events   EventsConfig   `yaml:"events"`
	Media    MediaConfig    `yaml:"media"`
	Imaging  ImagingConfig  `yaml:"imaging"`
	Audio    AudioConfig    `yaml:"audio"`
	Presence PresenceConfig `yaml:"presence"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig contains the device gateway HTTP/WebSocket server settings.
type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	WSPath         string `yaml:"ws_path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
// The broker carries both the chat relay and the voice-bridge twin topics.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// EventsConfig contains event bus settings.
type EventsConfig struct {
	// QueueSize is the ingress queue capacity. Events enqueued while the
	// queue is full are dropped and logged.
	QueueSize int `yaml:"queue_size"`

	// ShutdownGraceSeconds is how long in-flight handlers are given to
	// finish before they are cancelled at shutdown.
	ShutdownGraceSeconds int `yaml:"shutdown_grace_seconds"`
}

// MediaConfig contains media storage settings.
type MediaConfig struct {
	// Dir is the root directory for saved images, audio and the
	// enrollment counter file.
	Dir string `yaml:"dir"`
}

// ImagingConfig contains image pipeline settings.
type ImagingConfig struct {
	UnprocessedCapacity int `yaml:"unprocessed_capacity"`
	ProcessedCapacity   int `yaml:"processed_capacity"`

	// DetectorBinary is the face detection helper. It reads a JPEG on
	// stdin, writes the annotated JPEG on stdout and exits 0 when at
	// least one face was found, 1 when none was.
	DetectorBinary string `yaml:"detector_binary"`

	// DetectorArgs are extra arguments passed to the detector.
	DetectorArgs []string `yaml:"detector_args"`
}

// AudioConfig contains audio accumulation settings.
type AudioConfig struct {
	// SettleDelayMs is how long a drain waits for in-flight chunks to arrive.
	SettleDelayMs int `yaml:"settle_delay_ms"`

	// ChunkTimeoutMs is the per-pop timeout during a drain.
	ChunkTimeoutMs int `yaml:"chunk_timeout_ms"`

	// MaxChunks caps how many chunks one drain concatenates.
	MaxChunks int `yaml:"max_chunks"`

	// FFmpegBinary is the transcoder executable.
	FFmpegBinary string `yaml:"ffmpeg_binary"`

	// SampleRate is the raw PCM sample rate the camera streams at.
	SampleRate int `yaml:"sample_rate"`
}

// PresenceConfig contains decision engine thresholds and schedules.
//
// The two confirmation thresholds are deliberately independent: the motion
// escalation path demands more corroborating evidence than a direct
// person-detected report from the camera.
type PresenceConfig struct {
	// MotionBackoffSeconds is the escalating wait schedule used after a
	// motion report before each re-capture.
	MotionBackoffSeconds []int `yaml:"motion_backoff_seconds"`

	// PersonRetrySeconds is the shorter schedule used on the direct
	// person-detected path.
	PersonRetrySeconds []int `yaml:"person_retry_seconds"`

	// MotionConfirmThreshold is the positive-image count that confirms a
	// person on the motion escalation path.
	MotionConfirmThreshold int `yaml:"motion_confirm_threshold"`

	// PersonConfirmThreshold is the positive-image count that confirms a
	// face on the direct person-detected path.
	PersonConfirmThreshold int `yaml:"person_confirm_threshold"`

	// RoundTimeoutSeconds bounds the wait for one detection round.
	RoundTimeoutSeconds int `yaml:"round_timeout_seconds"`

	// CommandTimeoutSeconds bounds the wait for a device to confirm a
	// human-initiated state change.
	CommandTimeoutSeconds int `yaml:"command_timeout_seconds"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: PORTER_SECTION_KEY
// For example: PORTER_DATABASE_PATH, PORTER_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8765,
			WSPath:         "/ws",
			MaxMessageSize: 1 << 20, // raw image frames are large
			PingInterval:   30,
			PongTimeout:    10,
		},
		Database: DatabaseConfig{
			Path:        "./data/porter.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "porter-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Events: EventsConfig{
			QueueSize:            100,
			ShutdownGraceSeconds: 5,
		},
		Media: MediaConfig{
			Dir: "./media",
		},
		Imaging: ImagingConfig{
			UnprocessedCapacity: 20,
			ProcessedCapacity:   10,
			DetectorBinary:      "porter-detect",
		},
		Audio: AudioConfig{
			SettleDelayMs:  1000,
			ChunkTimeoutMs: 500,
			MaxChunks:      512,
			FFmpegBinary:   "ffmpeg",
			SampleRate:     16000,
		},
		Presence: PresenceConfig{
			MotionBackoffSeconds:   []int{2, 3, 4},
			PersonRetrySeconds:     []int{2, 3},
			MotionConfirmThreshold: 2,
			PersonConfirmThreshold: 1,
			RoundTimeoutSeconds:    10,
			CommandTimeoutSeconds:  5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PORTER_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("PORTER_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PORTER_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	// Database
	if v := os.Getenv("PORTER_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("PORTER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PORTER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PORTER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Media
	if v := os.Getenv("PORTER_MEDIA_DIR"); v != "" {
		cfg.Media.Dir = v
	}

	// InfluxDB
	if v := os.Getenv("PORTER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if !strings.HasPrefix(c.Server.WSPath, "/") {
		errs = append(errs, "server.ws_path must start with /")
	}
	if c.Server.MaxMessageSize <= 0 {
		errs = append(errs, "server.max_message_size must be positive")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation — the chat relay and voice-bridge twin both need it
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1 or 2")
	}

	// Events validation
	if c.Events.QueueSize <= 0 {
		errs = append(errs, "events.queue_size must be positive")
	}

	// Media validation
	if c.Media.Dir == "" {
		errs = append(errs, "media.dir is required")
	}

	// Imaging validation
	if c.Imaging.UnprocessedCapacity <= 0 {
		errs = append(errs, "imaging.unprocessed_capacity must be positive")
	}
	if c.Imaging.ProcessedCapacity <= 0 {
		errs = append(errs, "imaging.processed_capacity must be positive")
	}
	if c.Imaging.DetectorBinary == "" {
		errs = append(errs, "imaging.detector_binary is required")
	}

	// Audio validation
	if c.Audio.FFmpegBinary == "" {
		errs = append(errs, "audio.ffmpeg_binary is required")
	}
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, "audio.sample_rate must be positive")
	}

	// Presence validation
	if len(c.Presence.MotionBackoffSeconds) == 0 {
		errs = append(errs, "presence.motion_backoff_seconds must not be empty")
	}
	if len(c.Presence.PersonRetrySeconds) == 0 {
		errs = append(errs, "presence.person_retry_seconds must not be empty")
	}
	if c.Presence.MotionConfirmThreshold < 1 {
		errs = append(errs, "presence.motion_confirm_threshold must be at least 1")
	}
	if c.Presence.PersonConfirmThreshold < 1 {
		errs = append(errs, "presence.person_confirm_threshold must be at least 1")
	}
	if c.Presence.RoundTimeoutSeconds <= 0 {
		errs = append(errs, "presence.round_timeout_seconds must be positive")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ShutdownGrace returns the bus shutdown grace period as a Duration.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Events.ShutdownGraceSeconds) * time.Second
}

// RoundTimeout returns the detection round timeout as a Duration.
func (c *PresenceConfig) RoundTimeout() time.Duration {
	return time.Duration(c.RoundTimeoutSeconds) * time.Second
}

// CommandTimeout returns the human-command confirmation timeout as a Duration.
func (c *PresenceConfig) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}

// MotionBackoff returns the motion escalation schedule as Durations.
func (c *PresenceConfig) MotionBackoff() []time.Duration {
	return secondsToDurations(c.MotionBackoffSeconds)
}

// PersonRetry returns the person retry schedule as Durations.
func (c *PresenceConfig) PersonRetry() []time.Duration {
	return secondsToDurations(c.PersonRetrySeconds)
}

// SettleDelay returns the audio drain settle delay as a Duration.
func (c *AudioConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

// ChunkTimeout returns the audio drain per-pop timeout as a Duration.
func (c *AudioConfig) ChunkTimeout() time.Duration {
	return time.Duration(c.ChunkTimeoutMs) * time.Millisecond
}

// secondsToDurations converts a schedule of whole seconds to Durations.
func secondsToDurations(seconds []int) []time.Duration {
	out := make([]time.Duration, len(seconds))
	for i, s := range seconds {
		out[i] = time.Duration(s) * time.Second
	}
	return out
}
