package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP    HTTPConfig
	Graph   GraphConfig
	Redis   RedisConfig
	Engine  EngineConfig
	Board   BoardConfig
	Logging LoggingConfig
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	AllowedOriginsCSV string
}

// GraphConfig describes connectivity to the Neo4j store. An empty URI selects the
// in-memory store seeded from the board file.
type GraphConfig struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
	TxTimeout      time.Duration
}

// RedisConfig enables the cross-instance session lock. An empty URL keeps locking in-process.
type RedisConfig struct {
	URL              string
	LockTTL          time.Duration
	LockPollInterval time.Duration
}

// EngineConfig bounds how a move interacts with the store.
type EngineConfig struct {
	StoreTimeout time.Duration
	MaxRetries   int
}

// BoardConfig points at the YAML board definition.
type BoardConfig struct {
	Path string
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string
	Format        string // json|text
	Colored       bool
	IncludeCaller bool
}

const (
	defaultHost             = "0.0.0.0"
	defaultPort             = 8080
	defaultReadTimeout      = 10 * time.Second
	defaultWriteTimeout     = 15 * time.Second
	defaultIdleTimeout      = 60 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultLoggingLevel     = "info"
	defaultLoggingFormat    = "json"
	defaultGraphMaxSessions = 10
	defaultLockTTL          = 5 * time.Second
	defaultLockPoll         = 25 * time.Millisecond
	defaultStoreTimeout     = 2 * time.Second
	defaultMaxRetries       = 3
	defaultBoardPath        = "boards/default.yaml"
)

// Load reads configuration from environment variables, applying defaults. Variables
// from a .env file in the working directory are applied first, without overriding
// anything already set.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		HTTP: HTTPConfig{
			Host:              valueOrDefault("SERVER_HOST", defaultHost),
			AllowedOriginsCSV: os.Getenv("SERVER_ALLOWED_ORIGINS"),
		},
		Logging: LoggingConfig{
			Level:         valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format:        valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
			Colored:       parseBoolWithDefault("LOG_COLOR", false),
			IncludeCaller: parseBoolWithDefault("LOG_INCLUDE_CALLER", false),
		},
		Graph: GraphConfig{
			URI:            os.Getenv("GRAPH_URI"),
			Database:       valueOrDefault("GRAPH_DATABASE", ""),
			Username:       os.Getenv("GRAPH_USERNAME"),
			Password:       os.Getenv("GRAPH_PASSWORD"),
			MaxConnections: parseIntWithDefault("GRAPH_MAX_CONNECTIONS", defaultGraphMaxSessions),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Board: BoardConfig{
			Path: valueOrDefault("BOARD_FILE", defaultBoardPath),
		},
	}

	port, err := parsePort("SERVER_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.Port = port

	durations := []struct {
		key      string
		fallback time.Duration
		target   *time.Duration
	}{
		{"SERVER_READ_TIMEOUT", defaultReadTimeout, &cfg.HTTP.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", defaultWriteTimeout, &cfg.HTTP.WriteTimeout},
		{"SERVER_IDLE_TIMEOUT", defaultIdleTimeout, &cfg.HTTP.IdleTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout, &cfg.HTTP.ShutdownTimeout},
		{"GRAPH_TX_TIMEOUT", 0, &cfg.Graph.TxTimeout},
		{"REDIS_LOCK_TTL", defaultLockTTL, &cfg.Redis.LockTTL},
		{"REDIS_LOCK_POLL_INTERVAL", defaultLockPoll, &cfg.Redis.LockPollInterval},
		{"ENGINE_STORE_TIMEOUT", defaultStoreTimeout, &cfg.Engine.StoreTimeout},
	}
	for _, d := range durations {
		value, err := parseDuration(d.key, d.fallback)
		if err != nil {
			return Config{}, err
		}
		*d.target = value
	}

	retries, err := parseNonNegativeInt("ENGINE_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		return Config{}, err
	}
	cfg.Engine.MaxRetries = retries

	return cfg, nil
}

// Addr returns the host:port the HTTP server listens on.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}

func parseNonNegativeInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	val, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %d", key, val)
	}
	return val, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}
