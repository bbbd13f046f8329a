package dbutils

import (
	"context"
	"database/sql"
	"time"
)

// HealthStatus represents the database health status
type HealthStatus struct {
	Healthy   bool          `json:"healthy"`
	Latency   time.Duration `json:"latency"`
	System    string        `json:"system"`
	Error     string        `json:"error,omitempty"`
	PoolStats *PoolStats    `json:"pool_stats,omitempty"`
}

// PoolStats contains connection pool statistics
type PoolStats struct {
	MaxOpenConnections int           `json:"max_open_connections"`
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
}

// Ping verifies the connection is alive
func (c *Conn) Ping(ctx context.Context) error {
	if err := c.conn.Conn.PingContext(ctx); err != nil {
		return wrapError(err, StageConnect, "Ping")
	}
	return nil
}

// Health performs a health check of the connection
func (c *Conn) Health(ctx context.Context) HealthStatus {
	return health(ctx, c.settings.system, c.Ping)
}

// IsHealthy returns true if the connection is usable
func (c *Conn) IsHealthy(ctx context.Context) bool {
	return c.Ping(ctx) == nil
}

// Ping verifies the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return wrapError(err, StageConnect, "Ping")
	}
	return nil
}

// Health performs a health check with pool statistics
func (db *DB) Health(ctx context.Context) HealthStatus {
	status := health(ctx, db.Dialect().Name().String(), db.Ping)
	stats := PoolStatsFromSQL(db.DB.Stats())
	status.PoolStats = &stats
	return status
}

// IsHealthy returns true if the database is reachable
func (db *DB) IsHealthy(ctx context.Context) bool {
	return db.Ping(ctx) == nil
}

func health(ctx context.Context, system string, ping func(context.Context) error) HealthStatus {
	start := time.Now()
	err := ping(ctx)

	status := HealthStatus{
		Healthy: err == nil,
		Latency: time.Since(start),
		System:  system,
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status
}

// PoolStatsFromSQL converts sql.DBStats to PoolStats
func PoolStatsFromSQL(stats sql.DBStats) PoolStats {
	return PoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}
}
