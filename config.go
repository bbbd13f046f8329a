package dbutils

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// Configuration keys read from a properties source.
const (
	KeyDriverClass = "driverClass"
	KeyURL         = "url"
	KeyUser        = "user"
	KeyPassword    = "password"
)

// Default chunk policy for batch operations.
const (
	DefaultChunkThreshold = 100000
	DefaultChunkSize      = 1000
)

// ChunkPolicy controls intermediate flushes of batch operations. Once a batch
// repeats more than Threshold times, pending work is flushed after the first
// repetition and then every Size repetitions.
type ChunkPolicy struct {
	Threshold int
	Size      int
}

// DefaultChunkPolicy returns the 100000/1000 policy.
func DefaultChunkPolicy() ChunkPolicy {
	return ChunkPolicy{Threshold: DefaultChunkThreshold, Size: DefaultChunkSize}
}

func (p ChunkPolicy) withDefaults() ChunkPolicy {
	if p.Threshold <= 0 {
		p.Threshold = DefaultChunkThreshold
	}
	if p.Size <= 0 {
		p.Size = DefaultChunkSize
	}
	return p
}

// Config holds database configuration
type Config struct {
	// Connection
	DriverClass string // database/sql driver name (required), e.g. "pgx", "pg", "postgres", "sqlite3"
	URL         string // Driver specific connection string (required)
	User        string // Overrides the user in URL when set
	Password    string // Overrides the password in URL when set

	// Timeouts
	DialTimeout  time.Duration // Connection dial and ping timeout (default: 5s)
	ReadTimeout  time.Duration // Read timeout, pg driver only (default: 30s)
	WriteTimeout time.Duration // Write timeout, pg driver only (default: 30s)

	// Statement behaviour
	Chunk         ChunkPolicy // Batch flushing (default: 100000/1000)
	StrictBinding bool        // Abort on the first parameter that cannot be bound

	// Observability (all optional)
	Logger          *slog.Logger          // Structured logger (default: slog.Default())
	LogQueries      bool                  // Log all statements
	LogSlowQueries  time.Duration         // Log statements slower than this (0 = disabled)
	MetricsRegistry prometheus.Registerer // Prometheus registry for metrics
	Tracer          trace.Tracer          // OpenTelemetry tracer
}

// DefaultConfig returns sensible defaults
func DefaultConfig(driverClass, url string) Config {
	return Config{
		DriverClass:  driverClass,
		URL:          url,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Chunk:        DefaultChunkPolicy(),
	}
}

// applyDefaults fills in zero values with defaults
func (c *Config) applyDefaults() {
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	c.Chunk = c.Chunk.withDefaults()
}

// WithCredentials sets the user and password
func (c Config) WithCredentials(user, password string) Config {
	c.User = user
	c.Password = password
	return c
}

// WithChunkPolicy overrides batch flushing
func (c Config) WithChunkPolicy(p ChunkPolicy) Config {
	c.Chunk = p
	return c
}

// WithStrictBinding makes parameter binding fail fast
func (c Config) WithStrictBinding() Config {
	c.StrictBinding = true
	return c
}

// WithLogger enables statement logging
func (c Config) WithLogger(logger *slog.Logger) Config {
	c.Logger = logger
	c.LogQueries = true
	return c
}

// WithSlowQueryLog logs statements slower than the threshold
func (c Config) WithSlowQueryLog(threshold time.Duration) Config {
	c.LogSlowQueries = threshold
	return c
}

// WithMetrics enables Prometheus metrics
func (c Config) WithMetrics(registry prometheus.Registerer) Config {
	c.MetricsRegistry = registry
	return c
}

// WithTracing enables OpenTelemetry tracing
func (c Config) WithTracing(tracer trace.Tracer) Config {
	c.Tracer = tracer
	return c
}
