package devtools

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config controls the inspector server. Every field maps to a
// SYNAPSE_DEVTOOLS_* environment variable so embedding applications need
// no flag plumbing.
type Config struct {
	// Addr is the listen address for the inspector HTTP server.
	Addr string `env:"SYNAPSE_DEVTOOLS_ADDR" envDefault:"127.0.0.1:6363"`

	// RecordPath is the bbolt file the flight recorder appends to.
	// Recording is disabled when empty.
	RecordPath string `env:"SYNAPSE_DEVTOOLS_RECORD_PATH"`

	// BufferSize is the per-client send queue length. A client whose
	// queue is full misses records rather than stalling the graph.
	BufferSize int `env:"SYNAPSE_DEVTOOLS_BUFFER_SIZE" envDefault:"256"`

	// PingInterval is how often each stream client is pinged. A client
	// that misses two pings is considered dead and dropped.
	PingInterval time.Duration `env:"SYNAPSE_DEVTOOLS_PING_INTERVAL" envDefault:"30s"`

	// WriteTimeout bounds each WebSocket write.
	WriteTimeout time.Duration `env:"SYNAPSE_DEVTOOLS_WRITE_TIMEOUT" envDefault:"10s"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `env:"SYNAPSE_DEVTOOLS_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// ConfigFromEnv loads configuration from the environment, applying
// defaults for anything unset.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// withDefaults fills zero fields with the same values the env defaults
// carry, so a Config built in code behaves like one from ConfigFromEnv.
func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:6363"
	}
	if c.BufferSize == 0 {
		c.BufferSize = 256
	}
	if c.PingInterval == 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	return c
}
