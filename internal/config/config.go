// Package config loads the server's YAML configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Images   ImagesConfig   `yaml:"images"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`

	ReadHeaderTimeout time.Duration `yaml:"-"`
	ReadTimeout       time.Duration `yaml:"-"`
	WriteTimeout      time.Duration `yaml:"-"`
	IdleTimeout       time.Duration `yaml:"-"`
	ShutdownTimeout   time.Duration `yaml:"-"`

	ReadHeaderTimeoutRaw string `yaml:"read_header_timeout"`
	ReadTimeoutRaw       string `yaml:"read_timeout"`
	WriteTimeoutRaw      string `yaml:"write_timeout"`
	IdleTimeoutRaw       string `yaml:"idle_timeout"`
	ShutdownTimeoutRaw   string `yaml:"shutdown_timeout"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path           string        `yaml:"path"`
	BusyTimeout    time.Duration `yaml:"-"`
	BusyTimeoutRaw string        `yaml:"busy_timeout"`
}

// AuthConfig configures token issuing. An empty JWTSecret means the secret
// is generated once and kept in the database.
type AuthConfig struct {
	JWTSecret   string        `yaml:"jwt_secret"`
	TokenTTL    time.Duration `yaml:"-"`
	TokenTTLRaw string        `yaml:"token_ttl"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// On reports whether metrics are served. Metrics are on unless disabled
// explicitly.
func (m MetricsConfig) On() bool {
	return m.Enabled == nil || *m.Enabled
}

// ImagesConfig configures asset image processing.
type ImagesConfig struct {
	MaxDimension int   `yaml:"max_dimension"`
	JPEGQuality  int   `yaml:"jpeg_quality"`
	MaxBytes     int64 `yaml:"max_bytes"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	if err := cfg.validateAndNormalize(); err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the configuration file at path. An empty path yields Default.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validateAndNormalize() error {
	if err := c.Server.validateAndNormalize(); err != nil {
		return err
	}

	if c.Database.Path == "" {
		c.Database.Path = "assetverse.sqlite3"
	}
	busy, err := parseDurationDefault(c.Database.BusyTimeoutRaw, 5*time.Second)
	if err != nil {
		return fmt.Errorf("config: database.busy_timeout: %w", err)
	}
	c.Database.BusyTimeout = busy

	ttl, err := parseDurationDefault(c.Auth.TokenTTLRaw, 7*24*time.Hour)
	if err != nil {
		return fmt.Errorf("config: auth.token_ttl: %w", err)
	}
	c.Auth.TokenTTL = ttl

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("config: metrics.path must start with /")
	}

	if c.Images.MaxDimension < 0 {
		return fmt.Errorf("config: images.max_dimension must not be negative")
	}
	if c.Images.MaxDimension == 0 {
		c.Images.MaxDimension = 1024
	}
	if c.Images.JPEGQuality == 0 {
		c.Images.JPEGQuality = 85
	}
	if c.Images.JPEGQuality < 1 || c.Images.JPEGQuality > 100 {
		return fmt.Errorf("config: images.jpeg_quality must be between 1 and 100")
	}
	if c.Images.MaxBytes <= 0 {
		c.Images.MaxBytes = 10 << 20
	}

	return nil
}

func (s *ServerConfig) validateAndNormalize() error {
	if s.Addr == "" {
		s.Addr = ":8080"
	}

	durations := []struct {
		name string
		raw  string
		def  time.Duration
		dst  *time.Duration
	}{
		{"read_header_timeout", s.ReadHeaderTimeoutRaw, 10 * time.Second, &s.ReadHeaderTimeout},
		{"read_timeout", s.ReadTimeoutRaw, 30 * time.Second, &s.ReadTimeout},
		{"write_timeout", s.WriteTimeoutRaw, 60 * time.Second, &s.WriteTimeout},
		{"idle_timeout", s.IdleTimeoutRaw, 120 * time.Second, &s.IdleTimeout},
		{"shutdown_timeout", s.ShutdownTimeoutRaw, 5 * time.Second, &s.ShutdownTimeout},
	}
	for _, d := range durations {
		v, err := parseDurationDefault(d.raw, d.def)
		if err != nil {
			return fmt.Errorf("config: server.%s: %w", d.name, err)
		}
		*d.dst = v
	}

	for i, origin := range s.CORSOrigins {
		s.CORSOrigins[i] = strings.TrimRight(strings.TrimSpace(origin), "/")
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return level, nil
}

func parseDurationDefault(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return d, nil
}
