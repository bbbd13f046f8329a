package dbutils

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
)

// Conn is a single database connection. Every dbutils operation accepts a
// Conn as its Preparer and runs on it with the settings of the DB it came from.
type Conn struct {
	conn     bun.Conn
	owner    *DB // closed with the connection when set by Connect
	driver   string
	settings settings

	mu     sync.Mutex
	closed bool
}

var _ Preparer = (*Conn)(nil)

// PrepareContext prepares query on the connection, rewriting ? placeholders
// for dialects that use numbered ones.
func (c *Conn) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return c.conn.Conn.PrepareContext(ctx, rebind(query, c.settings.style))
}

// Close returns the connection to its pool, closing the pool as well when the
// connection was made by Connect. Only the first call has any effect.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	return Release(c.conn.Conn, c.owner)
}

// Bun returns the underlying bun.Conn for direct access
func (c *Conn) Bun() bun.Conn {
	return c.conn
}

// Driver returns the driver class the connection was opened with.
func (c *Conn) Driver() string {
	return c.driver
}

// withPgx runs fn on the native pgx connection behind c.
func (c *Conn) withPgx(fn func(*pgx.Conn) error) error {
	return c.conn.Conn.Raw(func(driverConn any) error {
		sc, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("driver connection is %T, not pgx", driverConn)
		}
		return fn(sc.Conn())
	})
}
