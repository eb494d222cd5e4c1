// Package config loads runtime settings.
//
// SOURCES, LOWEST TO HIGHEST PRECEDENCE:
//  1. Built-in defaults
//  2. An optional YAML file named by CONFIG_FILE
//  3. Environment variables (a local .env file is loaded into the
//     environment first, if present; real env vars win over it)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sakif/applysync/internal/repository/store"
)

// EnvDevelopment enables error detail in responses and debug logging.
const EnvDevelopment = "development"

// Defaults.
const (
	DefaultPort            = 3000
	DefaultStoreURI        = "sqlite://data/applysync.db"
	DefaultEnvironment     = "production"
	DefaultKafkaTopic      = "subscribers.created"
	DefaultStoreTimeout    = 5 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)

// DefaultAllowedOrigins are the browser origins the landing page is served from.
var DefaultAllowedOrigins = []string{
	"http://127.0.0.1:5500",
	"http://localhost:5500",
	"http://127.0.0.1:3000",
	"http://localhost:3000",
	"https://applysync.netlify.app",
}

// Config holds everything main needs to assemble the server.
type Config struct {
	Port            int           `yaml:"port"`
	StoreURI        string        `yaml:"store_uri"`
	Environment     string        `yaml:"environment"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	LogLevel        string        `yaml:"log_level"`
	StoreTimeout    time.Duration `yaml:"store_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Kafka           KafkaConfig   `yaml:"kafka"`
}

// KafkaConfig enables event publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Load builds a Config from .env, CONFIG_FILE and the environment, then validates it.
func Load() (*Config, error) {
	// Missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields with any variables that are set.
func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid PORT %q: %w", v, err)
		}
		c.Port = port
	}

	// MONGO_URI and NODE_ENV are kept so existing deployments keep their
	// store and error-detail settings.
	if v := getenv("STORE_URI"); v != "" {
		c.StoreURI = v
	} else if v := getenv("MONGO_URI"); v != "" {
		c.StoreURI = v
	}

	if v := getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	} else if v := getenv("NODE_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}

	for name, dst := range map[string]*time.Duration{
		"STORE_TIMEOUT":    &c.StoreTimeout,
		"SHUTDOWN_TIMEOUT": &c.ShutdownTimeout,
	} {
		v := getenv(name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid %s %q: %w", name, v, err)
		}
		*dst = d
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.StoreURI == "" {
		c.StoreURI = DefaultStoreURI
	}
	if c.Environment == "" {
		c.Environment = DefaultEnvironment
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = append([]string(nil), DefaultAllowedOrigins...)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
		if c.DevMode() {
			c.LogLevel = "debug"
		}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = DefaultKafkaTopic
	}
	if c.StoreTimeout == 0 {
		c.StoreTimeout = DefaultStoreTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Validate reports every problem at once rather than stopping at the first.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if _, err := store.Backend(c.StoreURI); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.StoreTimeout < 0 {
		errs = append(errs, fmt.Errorf("store timeout %s is negative", c.StoreTimeout))
	}
	if c.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout %s is negative", c.ShutdownTimeout))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// DevMode reports whether internal error detail may be shown to clients.
func (c *Config) DevMode() bool {
	return c.Environment == EnvDevelopment
}

// Addr is the listen address for http.Server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// SlogLevel parses LogLevel (debug, info, warn, error; case-insensitive).
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return level, nil
}

// EventsEnabled reports whether a Kafka publisher should be built.
func (c *Config) EventsEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
