package dbutils

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"reflect"
)

// Release closes every non-nil closer, each independently of the others.
// A failure closing one does not stop the rest; all failures are joined.
// Nil and typed-nil closers are skipped.
func Release(closers ...io.Closer) error {
	var errs []error
	for _, c := range closers {
		if isNil(c) {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CloseStatement closes stmt. Closing a nil or already closed statement is a no-op.
func CloseStatement(stmt *sql.Stmt) error {
	if stmt == nil {
		return nil
	}
	return stmt.Close()
}

// CloseConnection closes conn. Closing a nil or already closed connection is a no-op.
func CloseConnection(conn *Conn) error {
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// release is the operation-scoped variant of Release: failures are logged with
// the operation name and never change the operation's outcome.
func release(ctx context.Context, logger *slog.Logger, op string, closers ...io.Closer) {
	for _, c := range closers {
		if isNil(c) {
			continue
		}
		if err := c.Close(); err != nil {
			logger.LogAttrs(ctx, slog.LevelWarn, "failed to release database resource",
				slog.String("op", op),
				slog.String("resource", reflect.TypeOf(c).String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

func isNil(c any) bool {
	if c == nil {
		return true
	}
	v := reflect.ValueOf(c)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
