package dbutils

import (
	"context"
)

// Insert runs an INSERT and returns the number of rows affected, or -1 and an
// error when the statement could not run. Parameters that could not be bound
// are left NULL and reported alongside the count with an error for which
// IsBind reports true.
func Insert(ctx context.Context, p Preparer, query string, params ...any) (int64, error) {
	return update(ctx, p, "Insert", query, params)
}

// Update runs an UPDATE; see Insert.
func Update(ctx context.Context, p Preparer, query string, params ...any) (int64, error) {
	return update(ctx, p, "Update", query, params)
}

// Delete runs a DELETE; see Insert.
func Delete(ctx context.Context, p Preparer, query string, params ...any) (int64, error) {
	return update(ctx, p, "Delete", query, params)
}

func update(ctx context.Context, p Preparer, op, query string, params []any) (affected int64, err error) {
	s := settingsOf(p)
	ctx, event := s.begin(ctx, op, query, len(params))
	defer func() {
		event.Rows = affected
		s.finish(ctx, event, err, affected < 0)
	}()

	stmt, err := prepareStmt(ctx, p, op, query)
	if err != nil {
		return -1, err
	}
	defer release(ctx, s.logger, op, stmt)

	a, partial, err := s.bindParams(op, query, params)
	if err != nil {
		return -1, err
	}

	res, err := stmt.ExecContext(ctx, a...)
	if err != nil {
		return -1, joinPartial(wrapError(err, StageExecute, op), partial)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return -1, joinPartial(wrapError(err, StageExecute, op), partial)
	}
	return n, partial
}
