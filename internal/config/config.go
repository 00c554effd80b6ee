// Package config loads application configuration from an optional YAML file
// and STATUSRELAY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables that override file values.
// The first underscore after the prefix separates the section from the key,
// so STATUSRELAY_SERVER_METRICS_PORT sets server.metrics_port.
const EnvPrefix = "STATUSRELAY_"

// Storage drivers.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Storage  StorageConfig  `koanf:"storage"`
	Log      LogConfig      `koanf:"log"`
	CORS     CORSConfig     `koanf:"cors"`
	Realtime RealtimeConfig `koanf:"realtime"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
}

// DatabaseConfig configures the PostgreSQL pool. Used only with the
// postgres storage driver.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	Migrate         bool          `koanf:"migrate"`
}

// StorageConfig selects the repository implementation and seeding.
type StorageConfig struct {
	Driver   string `koanf:"driver"`
	Seed     bool   `koanf:"seed"`
	SeedFile string `koanf:"seed_file"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CORSConfig lists origins allowed for both HTTP and websocket requests.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// RealtimeConfig configures the websocket endpoint.
type RealtimeConfig struct {
	Path                  string        `koanf:"path"`
	SendBuffer            int           `koanf:"send_buffer"`
	MaxMessageSize        int64         `koanf:"max_message_size"`
	WriteTimeout          time.Duration `koanf:"write_timeout"`
	PongTimeout           time.Duration `koanf:"pong_timeout"`
	PingInterval          time.Duration `koanf:"ping_interval"`
	RateLimit             float64       `koanf:"rate_limit"`
	RateBurst             int           `koanf:"rate_burst"`
	PublishStatusOnChange bool          `koanf:"publish_status_on_change"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "5000",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			RequestTimeout:    60 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnectAttempts: 5,
			ConnectTimeout:  30 * time.Second,
			Migrate:         true,
		},
		Storage: StorageConfig{
			Driver: StorageMemory,
			Seed:   true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		CORS: CORSConfig{
			AllowedOrigins: defaultAllowedOrigins(),
		},
		Realtime: RealtimeConfig{
			Path:           "/ws",
			SendBuffer:     64,
			MaxMessageSize: 4096,
			WriteTimeout:   5 * time.Second,
			PongTimeout:    60 * time.Second,
			PingInterval:   50 * time.Second,
			RateLimit:      10,
			RateBurst:      20,
		},
	}
}

func defaultAllowedOrigins() []string {
	return []string{"http://localhost:5173", "http://127.0.0.1:5173"}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		return strings.Replace(key, "_", ".", 1), value
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	// Slices are decoded element-wise into existing values, so start from nil.
	if k.Exists("cors.allowed_origins") {
		cfg.CORS.AllowedOrigins = nil
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid value at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Server.MetricsPort == "" {
		errs = append(errs, errors.New("server.metrics_port is required"))
	}
	if c.Server.Port != "0" && c.Server.Port == c.Server.MetricsPort {
		errs = append(errs, errors.New("server.port and server.metrics_port must differ"))
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be %q or %q, got %q", StorageMemory, StoragePostgres, c.Storage.Driver))
	}

	if c.Storage.SeedFile != "" {
		if _, err := os.Stat(c.Storage.SeedFile); err != nil {
			errs = append(errs, fmt.Errorf("storage.seed_file: %w", err))
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}

	if !strings.HasPrefix(c.Realtime.Path, "/") {
		errs = append(errs, errors.New("realtime.path must start with /"))
	}
	if c.Realtime.SendBuffer <= 0 {
		errs = append(errs, errors.New("realtime.send_buffer must be positive"))
	}
	if c.Realtime.MaxMessageSize <= 0 {
		errs = append(errs, errors.New("realtime.max_message_size must be positive"))
	}
	if c.Realtime.RateLimit <= 0 || c.Realtime.RateBurst <= 0 {
		errs = append(errs, errors.New("realtime.rate_limit and realtime.rate_burst must be positive"))
	}
	if c.Realtime.PingInterval <= 0 || c.Realtime.PingInterval >= c.Realtime.PongTimeout {
		errs = append(errs, errors.New("realtime.ping_interval must be positive and shorter than realtime.pong_timeout"))
	}

	return errors.Join(errs...)
}
