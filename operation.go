package dbutils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fernandezvara/dbutils/hooks"
)

// Preparer prepares statements. *Conn, *sql.Conn, *sql.DB and *sql.Tx all
// satisfy it; only *Conn carries hooks and per-database settings.
type Preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// settings is the per-connection behaviour of operations.
type settings struct {
	logger   *slog.Logger
	hooks    []hooks.Hook
	hookLogs bool
	chunk    ChunkPolicy
	strict   bool
	system   string
	style    placeholderStyle
}

func settingsOf(p Preparer) *settings {
	if c, ok := p.(*Conn); ok && c != nil {
		return &c.settings
	}
	return &settings{
		logger: slog.Default(),
		chunk:  DefaultChunkPolicy(),
	}
}

// begin starts the observation of one operation.
func (s *settings) begin(ctx context.Context, op, query string, nargs int) (context.Context, *hooks.Event) {
	event := &hooks.Event{
		Operation: op,
		System:    s.system,
		Query:     query,
		Args:      nargs,
		StartTime: time.Now(),
		Rows:      -1,
	}
	for _, h := range s.hooks {
		ctx = h.BeforeStatement(ctx, event)
	}
	return ctx, event
}

// finish ends the observation of one operation and logs err, unless a logger
// hook already did. failed reports whether the operation returned its
// sentinel result.
func (s *settings) finish(ctx context.Context, event *hooks.Event, err error, failed bool) {
	event.Err = err
	event.Partial = err != nil && !failed
	for i := len(s.hooks) - 1; i >= 0; i-- {
		s.hooks[i].AfterStatement(ctx, event)
	}
	if err != nil && !s.hookLogs {
		logFailure(ctx, s.logger, event.Operation, err, failed)
	}
}

// logFailure logs an error returned from an exported operation. Partial
// failures, where a result was still produced, are warnings.
func logFailure(ctx context.Context, logger *slog.Logger, op string, err error, failed bool) {
	level, msg := slog.LevelError, "database operation failed"
	if !failed {
		level, msg = slog.LevelWarn, "database operation completed with errors"
	}
	attrs := []slog.Attr{
		slog.String("op", op),
		slog.String("error", err.Error()),
	}
	if stage, ok := GetStage(err); ok {
		attrs = append(attrs, slog.String("stage", string(stage)))
	}
	if code, ok := GetErrorCode(err); ok && code != CodeUnknown {
		attrs = append(attrs, slog.String("code", string(code)))
	}
	logger.LogAttrs(ctx, level, msg, attrs...)
}

func prepareStmt(ctx context.Context, p Preparer, op, query string) (*sql.Stmt, error) {
	if isNil(p) {
		return nil, &Error{
			Stage:   StageConnect,
			Code:    CodeConnectionFailed,
			Message: "no connection",
			Op:      op,
		}
	}
	stmt, err := p.PrepareContext(ctx, query)
	if err != nil {
		e := wrapError(err, StagePrepare, op)
		var de *Error
		if errors.As(e, &de) && de.Query == "" {
			de.Query = query
		}
		return nil, e
	}
	return stmt, nil
}

// bindParams binds params for query. A non-nil fatal error aborts the
// operation; partial holds the positions best-effort binding left unbound.
func (s *settings) bindParams(op, query string, params []any) (a []any, partial, fatal error) {
	placeholders := countPlaceholders(query)
	if placeholders == 0 {
		// Named or driver specific markers: pass everything through.
		placeholders = -1
	}
	values, err := bind(op, params, placeholders, s.strict)
	if err != nil && s.strict {
		return nil, nil, err
	}
	return args(values), err, nil
}

// openRows prepares query, binds params and runs it. On success the caller
// releases rows and stmt; on failure nothing is left open.
func (s *settings) openRows(ctx context.Context, p Preparer, op, query string, params []any) (stmt *sql.Stmt, rows *sql.Rows, partial, err error) {
	stmt, err = prepareStmt(ctx, p, op, query)
	if err != nil {
		return nil, nil, nil, err
	}
	a, partial, err := s.bindParams(op, query, params)
	if err != nil {
		release(ctx, s.logger, op, stmt)
		return nil, nil, nil, err
	}
	rows, err = stmt.QueryContext(ctx, a...)
	if err != nil {
		release(ctx, s.logger, op, stmt)
		return nil, nil, nil, joinPartial(wrapError(err, StageExecute, op), partial)
	}
	return stmt, rows, partial, nil
}

// scanTargets returns n scan destinations and the values they fill.
func scanTargets(n int) (raw []any, dest []any) {
	raw = make([]any, n)
	dest = make([]any, n)
	for i := range raw {
		dest[i] = &raw[i]
	}
	return raw, dest
}

// joinPartial attaches the partial failures of an operation to its error.
func joinPartial(err, partial error) error {
	switch {
	case partial == nil:
		return err
	case err == nil:
		return partial
	}
	return errors.Join(err, partial)
}

// columnErrors keeps the first mapping failure of each column.
type columnErrors struct {
	op   string
	seen map[string]bool
	errs []error
}

func newColumnErrors(op string) *columnErrors {
	return &columnErrors{op: op, seen: make(map[string]bool)}
}

func (c *columnErrors) add(column, msg string, cause error) {
	if c.seen[column] {
		return
	}
	c.seen[column] = true
	c.errs = append(c.errs, &Error{
		Stage:   StageMap,
		Code:    CodeUnknown,
		Op:      c.op,
		Column:  column,
		Message: msg,
		Cause:   cause,
	})
}

func (c *columnErrors) err() error {
	if len(c.errs) == 0 {
		return nil
	}
	return &Error{
		Stage:   StageMap,
		Code:    CodeUnknown,
		Op:      c.op,
		Message: fmt.Sprintf("%d column(s) could not be mapped", len(c.errs)),
		Cause:   errors.Join(c.errs...),
	}
}
