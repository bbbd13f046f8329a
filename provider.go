package dbutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/fernandezvara/dbutils/hooks"
)

// DB is a connection pool for one configured database. It wraps bun.DB, so
// bun queries run through the same observability hooks as dbutils operations.
type DB struct {
	*bun.DB
	config Config
	hooks  []hooks.Hook
	// hookLogs is set when a logger hook already reports failed statements.
	hookLogs bool
}

// Open creates a pool for cfg and verifies that the database is reachable.
func Open(cfg Config) (*DB, error) {
	// Apply defaults for zero values
	cfg.applyDefaults()

	if cfg.DriverClass == "" || cfg.URL == "" {
		return nil, &Error{
			Stage:   StageConnect,
			Code:    CodeConnectionFailed,
			Message: "driver class and URL are required",
			Op:      "Open",
		}
	}
	drv, ok := drivers[cfg.DriverClass]
	if !ok {
		return nil, &Error{
			Stage:   StageConnect,
			Code:    CodeConnectionFailed,
			Message: fmt.Sprintf("unsupported driver class %q", cfg.DriverClass),
			Op:      "Open",
		}
	}

	sqlDB, err := drv.open(cfg)
	if err != nil {
		return nil, &Error{
			Stage:   StageConnect,
			Code:    CodeConnectionFailed,
			Message: "failed to open database",
			Op:      "Open",
			Cause:   err,
		}
	}

	bunDB := bun.NewDB(sqlDB, drv.dialect())
	db := &DB{
		DB:     bunDB,
		config: cfg,
	}

	// Add observability hooks
	if cfg.Logger != nil && (cfg.LogQueries || cfg.LogSlowQueries > 0) {
		db.addHook(hooks.NewLoggerHook(cfg.Logger, cfg.LogQueries, cfg.LogSlowQueries))
		db.hookLogs = true
	}
	if cfg.MetricsRegistry != nil {
		hook, err := hooks.NewMetricsHook(cfg.MetricsRegistry)
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("dbutils: failed to create metrics hook: %w", err)
		}
		db.addHook(hook)
	}
	if cfg.Tracer != nil {
		db.addHook(hooks.NewTracingHook(cfg.Tracer))
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := bunDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, &Error{
			Stage:   StageConnect,
			Code:    CodeConnectionFailed,
			Message: "failed to connect to database",
			Op:      "Open",
			Cause:   err,
		}
	}

	return db, nil
}

// observer is satisfied by every hook in the hooks package.
type observer interface {
	hooks.Hook
	bun.QueryHook
}

func (db *DB) addHook(h observer) {
	db.DB.AddQueryHook(h)
	db.hooks = append(db.hooks, h)
}

// Conn takes a dedicated connection from the pool. The connection goes back to
// the pool on Conn.Close; the pool stays open.
func (db *DB) Conn(ctx context.Context) (*Conn, error) {
	bc, err := db.DB.Conn(ctx)
	if err != nil {
		return nil, wrapError(err, StageConnect, "Conn")
	}
	return &Conn{
		conn:     bc,
		driver:   db.config.DriverClass,
		settings: db.settings(),
	}, nil
}

func (db *DB) settings() settings {
	s := settings{
		logger:   db.Logger(),
		hooks:    db.hooks,
		hookLogs: db.hookLogs,
		chunk:    db.config.Chunk,
		strict:   db.config.StrictBinding,
		system:   db.Dialect().Name().String(),
	}
	if db.Dialect().Name() == dialect.PG {
		s.style = dollarPlaceholders
	}
	return s
}

// Close closes the pool
func (db *DB) Close() error {
	return db.DB.Close()
}

// Bun returns the underlying bun.DB for direct access
func (db *DB) Bun() *bun.DB {
	return db.DB
}

// Config returns the current configuration
func (db *DB) Config() Config {
	return db.config
}

// Logger returns the configured logger, or slog.Default().
func (db *DB) Logger() *slog.Logger {
	if db.config.Logger != nil {
		return db.config.Logger
	}
	return slog.Default()
}

// Connect opens a pool for cfg and takes one connection from it. Closing the
// returned Conn also closes its pool.
func Connect(ctx context.Context, cfg Config) (*Conn, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	c, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	c.owner = db
	return c, nil
}

// OpenConnection loads the configuration from src and connects with it.
func OpenConnection(ctx context.Context, src Source) (*Conn, error) {
	cfg, err := LoadConfig(src)
	if err != nil {
		return nil, err
	}
	return Connect(ctx, cfg)
}

// GetConnection is OpenConnection for callers that only need to know whether a
// connection could be made: any failure is logged and reported as nil.
func GetConnection(ctx context.Context, src Source) *Conn {
	c, err := OpenConnection(ctx, src)
	if err != nil {
		logFailure(ctx, slog.Default(), "GetConnection", err, true)
		return nil
	}
	return c
}
