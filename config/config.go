// Package config loads the pool core's tuning knobs the same way the
// teacher's gateway config does: godotenv for an optional .env file, then
// os.Getenv with typed fallbacks, read once at startup into a plain struct
// (no live-reload — config changes require a restart).
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-tunable knob the pool core and its demo
// wiring need.
type Config struct {
	// Process
	Env      string
	LogLevel string

	// Dispatcher
	DispatcherTickInterval time.Duration

	// Per-cluster resource ceilings (resource.ManagerConfig inputs)
	MaxConnections        uint64
	MaxPendingRequests    uint64
	MaxRequests           uint64
	MaxConnectionPools    uint64
	MaxConnectionsPerHost uint64

	// Per-cluster pool behavior
	PerUpstreamPreconnectRatio float32
	MaxRequestsPerConnection   uint64

	// Connect/drain timers (spec §4.3; the cluster health-check/timer
	// wiring the source leaves as TODOs is still out of scope here, per
	// spec.md §1). Loaded only: no component reads these two values, and
	// the pool runs no connect or connection-duration timer.
	ConnectTimeout            time.Duration
	ConnectionDurationTimeout time.Duration

	// Transport dialing (transport.DialConfig inputs)
	DialTimeout time.Duration
	KeepAlive   time.Duration

	// TCP tunnel half-close behavior (spec §4.7)
	ForceResetOnUpstreamHalfClose bool

	// adminapi introspection server
	AdminAddr string

	// statsmirror exporter
	RedisURL             string
	StatsMirrorInterval  time.Duration
	StatsMirrorKeyPrefix string
}

// Load reads configuration from environment variables and an optional .env
// file, the same two-step the teacher's config.Load() does.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DispatcherTickInterval: time.Duration(getEnvInt("CONNPOOL_DISPATCHER_TICK_MS", 50)) * time.Millisecond,

		MaxConnections:        getEnvUint64("CONNPOOL_MAX_CONNECTIONS", 1024),
		MaxPendingRequests:    getEnvUint64("CONNPOOL_MAX_PENDING_REQUESTS", 1024),
		MaxRequests:           getEnvUint64("CONNPOOL_MAX_REQUESTS", 1024),
		MaxConnectionPools:    getEnvUint64("CONNPOOL_MAX_CONNECTION_POOLS", 10),
		MaxConnectionsPerHost: getEnvUint64("CONNPOOL_MAX_CONNECTIONS_PER_HOST", 1<<32),

		PerUpstreamPreconnectRatio: float32(getEnvFloat("CONNPOOL_PRECONNECT_RATIO", 1.0)),
		MaxRequestsPerConnection:   getEnvUint64("CONNPOOL_MAX_REQUESTS_PER_CONNECTION", 0),

		ConnectTimeout:            time.Duration(getEnvInt("CONNPOOL_CONNECT_TIMEOUT_SEC", 10)) * time.Second,
		ConnectionDurationTimeout: time.Duration(getEnvInt("CONNPOOL_CONNECTION_DURATION_TIMEOUT_SEC", 0)) * time.Second,

		DialTimeout: time.Duration(getEnvInt("CONNPOOL_DIAL_TIMEOUT_SEC", 10)) * time.Second,
		KeepAlive:   time.Duration(getEnvInt("CONNPOOL_KEEPALIVE_SEC", 30)) * time.Second,

		ForceResetOnUpstreamHalfClose: getEnvBool("CONNPOOL_TCP_FORCE_RESET_ON_HALF_CLOSE", true),

		AdminAddr: getEnv("CONNPOOL_ADMIN_ADDR", ":9901"),

		RedisURL:             getEnv("REDIS_URL", "redis://redis:6379"),
		StatsMirrorInterval:  time.Duration(getEnvInt("CONNPOOL_STATS_MIRROR_INTERVAL_SEC", 10)) * time.Second,
		StatsMirrorKeyPrefix: getEnv("CONNPOOL_STATS_MIRROR_KEY_PREFIX", "connpool:stats"),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool { return c.Env == "development" }

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool { return c.Env == "production" }

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvUint64(key string, fallback uint64) uint64 {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseUint(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
