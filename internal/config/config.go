package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultSource            = SourceMQTT
	DefaultCapacity          = 100
	DefaultTemperatureMax    = 50.0
	DefaultFlameThreshold    = 2000
	DefaultTopic             = "esp32/sensors"
	DefaultConnectTimeout    = 10 * time.Second
	DefaultKeepAlive         = 30 * time.Second
	DefaultPath              = "sensors"
	DefaultPollInterval      = 5 * time.Second
	DefaultFetchTimeout      = 10 * time.Second
	DefaultHTTPAddr          = ":8080"
	DefaultBroadcastInterval = 2 * time.Second
	DefaultEnvFile           = ".env"
	DefaultAPIKeyHeader      = "X-API-Key"
)

// MaxKeepAlive is the largest keep-alive the MQTT CONNECT packet can carry.
const MaxKeepAlive = math.MaxUint16 * time.Second

// Source kinds.
const (
	SourceMQTT     = "mqtt"
	SourceFirebase = "firebase"
)

// Config is the top-level envwatch configuration.
type Config struct {
	// Source selects the ingestion path: mqtt | firebase.
	Source string `yaml:"source"`

	Window     WindowConfig     `yaml:"window"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Firebase   FirebaseConfig   `yaml:"firebase"`
	HTTP       HTTPConfig       `yaml:"http"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Log        LogConfig        `yaml:"log"`

	// EnvFile is an optional dotenv file loaded before secrets are resolved.
	// Relative paths are resolved against the config file's directory.
	// A missing file is not an error.
	EnvFile string `yaml:"env_file"`
}

// WindowConfig sizes the in-memory history.
type WindowConfig struct {
	Capacity int `yaml:"capacity"`
}

// ThresholdsConfig holds the default alert thresholds. Both can be
// overridden per API request.
type ThresholdsConfig struct {
	TemperatureMax float64 `yaml:"temperature_max"`
	FlameThreshold int     `yaml:"flame_threshold"`
}

// MQTTConfig configures the push source.
type MQTTConfig struct {
	// Broker is the TCP address of the broker, host:port. A tcp:// or
	// mqtt:// prefix is accepted.
	Broker string `yaml:"broker"`

	// Topic is the single topic the device publishes to.
	Topic string `yaml:"topic"`

	// ClientID defaults to envwatch-<uuid> when empty.
	ClientID string `yaml:"client_id"`

	Username string `yaml:"username"`

	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`

	// QoS is the subscription QoS, 0 or 1.
	QoS byte `yaml:"qos"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
}

// Password returns the broker password resolved from the environment.
func (m MQTTConfig) Password() string {
	if m.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(m.PasswordEnv)
}

// FirebaseConfig configures the pull source.
type FirebaseConfig struct {
	// DatabaseURL is the Realtime Database root, e.g.
	// https://my-project-default-rtdb.firebaseio.com.
	DatabaseURL string `yaml:"database_url"`

	// Path is the collection holding one document per reading.
	Path string `yaml:"path"`

	// Limit is the number of most recent documents fetched per refresh.
	// Defaults to the window capacity and must not be smaller.
	Limit int `yaml:"limit"`

	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds one fetch, including reading the body.
	Timeout time.Duration `yaml:"timeout"`

	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig specifies how the pull source authenticates.
type AuthConfig struct {
	// Mode is one of: none | token | bearer.
	// "token" sends a database secret or ID token as the auth= query parameter;
	// "bearer" sends an OAuth2 access token in the Authorization header.
	Mode string `yaml:"mode"`

	// TokenEnv is the name of the environment variable that holds the token.
	TokenEnv string `yaml:"token_env"`
}

// Token returns the token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// HTTPConfig configures the API listener and the WebSocket broadcast.
type HTTPConfig struct {
	Addr              string        `yaml:"addr"`
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`
	Auth              APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig guards the mutating API routes (reset, refresh, reconnect).
type APIAuthConfig struct {
	// Mode is one of: none | apikey.
	Mode string `yaml:"mode"`

	// Header carries the key. Defaults to X-API-Key.
	Header string `yaml:"header"`

	// KeyEnv is the name of the environment variable holding the key.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the API key resolved from the environment.
func (a APIAuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// AlertsConfig holds webhook delivery targets for alert transitions.
type AlertsConfig struct {
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`

	// Format is one of: json | text.
	Format string `yaml:"format"`
}

// SlogLevel maps Level to a slog.Level. Unknown values map to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if cfg.Firebase.Limit == 0 {
		cfg.Firebase.Limit = cfg.Window.Capacity
	}

	if err := loadEnvFile(path, cfg.EnvFile); err != nil {
		return nil, fmt.Errorf("config: env file: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// loadEnvFile loads name into the process environment. Variables already
// set are not overridden.
func loadEnvFile(configPath, name string) error {
	if name == "" {
		return nil
	}
	if !filepath.IsAbs(name) {
		name = filepath.Join(filepath.Dir(configPath), name)
	}
	err := godotenv.Load(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Source: DefaultSource,
		Window: WindowConfig{Capacity: DefaultCapacity},
		Thresholds: ThresholdsConfig{
			TemperatureMax: DefaultTemperatureMax,
			FlameThreshold: DefaultFlameThreshold,
		},
		MQTT: MQTTConfig{
			Topic:          DefaultTopic,
			ConnectTimeout: DefaultConnectTimeout,
			KeepAlive:      DefaultKeepAlive,
		},
		Firebase: FirebaseConfig{
			Path:         DefaultPath,
			PollInterval: DefaultPollInterval,
			Timeout:      DefaultFetchTimeout,
		},
		HTTP: HTTPConfig{
			Addr:              DefaultHTTPAddr,
			BroadcastInterval: DefaultBroadcastInterval,
			Auth:              APIAuthConfig{Mode: "none", Header: DefaultAPIKeyHeader},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		EnvFile: DefaultEnvFile,
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.Window.Capacity <= 0 {
		return fmt.Errorf("window.capacity must be positive")
	}

	switch cfg.Source {
	case SourceMQTT:
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when source is mqtt")
		}
		if cfg.MQTT.Topic == "" {
			return fmt.Errorf("mqtt.topic is required when source is mqtt")
		}
		if cfg.MQTT.QoS > 1 {
			return fmt.Errorf("mqtt.qos %d unsupported: want 0 or 1", cfg.MQTT.QoS)
		}
		if cfg.MQTT.ConnectTimeout <= 0 {
			return fmt.Errorf("mqtt.connect_timeout must be positive")
		}
		if cfg.MQTT.KeepAlive < 0 || cfg.MQTT.KeepAlive > MaxKeepAlive {
			return fmt.Errorf("mqtt.keep_alive must be between 0 and %s", MaxKeepAlive)
		}
	case SourceFirebase:
		if cfg.Firebase.DatabaseURL == "" {
			return fmt.Errorf("firebase.database_url is required when source is firebase")
		}
		if cfg.Firebase.Limit < cfg.Window.Capacity {
			return fmt.Errorf("firebase.limit %d must be at least window.capacity %d",
				cfg.Firebase.Limit, cfg.Window.Capacity)
		}
		if cfg.Firebase.PollInterval <= 0 {
			return fmt.Errorf("firebase.poll_interval must be positive")
		}
		if cfg.Firebase.Timeout <= 0 {
			return fmt.Errorf("firebase.timeout must be positive")
		}
		switch cfg.Firebase.Auth.Mode {
		case "none", "token", "bearer", "":
		default:
			return fmt.Errorf("firebase.auth.mode %q unknown: want none|token|bearer", cfg.Firebase.Auth.Mode)
		}
	default:
		return fmt.Errorf("source %q unknown: want mqtt|firebase", cfg.Source)
	}

	if cfg.HTTP.BroadcastInterval <= 0 {
		return fmt.Errorf("http.broadcast_interval must be positive")
	}
	switch cfg.HTTP.Auth.Mode {
	case "none", "":
	case "apikey":
		if cfg.HTTP.Auth.KeyEnv == "" {
			return fmt.Errorf("http.auth.key_env is required when http.auth.mode is apikey")
		}
	default:
		return fmt.Errorf("http.auth.mode %q unknown: want none|apikey", cfg.HTTP.Auth.Mode)
	}

	for i, wh := range cfg.Alerts.Webhooks {
		switch wh.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d]: unknown type %q", i, wh.Type)
		}
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q unknown: want debug|info|warn|error", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q unknown: want json|text", cfg.Log.Format)
	}
	return nil
}
