package dbutils

import (
	"context"
	"fmt"
)

// QueryMaps runs a SELECT and returns every row as a Row, in result order.
// A statement returning no rows yields an empty, non-nil slice.
//
// On failure the result is nil. A column value the driver returns in an
// unsupported type is left NULL, and the rows are returned together with an
// error for which IsMapping reports true. Parameters that could not be bound
// are reported the same way, with IsBind.
func QueryMaps(ctx context.Context, p Preparer, query string, params ...any) (out []*Row, err error) {
	const op = "QueryMaps"
	s := settingsOf(p)
	ctx, event := s.begin(ctx, op, query, len(params))
	defer func() {
		event.Rows = int64(len(out))
		s.finish(ctx, event, err, out == nil)
	}()

	stmt, rows, partial, err := s.openRows(ctx, p, op, query, params)
	if err != nil {
		return nil, err
	}
	defer release(ctx, s.logger, op, rows, stmt)

	cols, err := rows.Columns()
	if err != nil {
		return nil, wrapError(err, StageExecute, op)
	}
	raw, dest := scanTargets(len(cols))
	mapErrs := newColumnErrors(op)

	out = make([]*Row, 0)
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, wrapError(err, StageExecute, op)
		}
		row := NewRow()
		for i, col := range cols {
			v, err := valueFromDriver(raw[i])
			if err != nil {
				mapErrs.add(col, "unsupported column value", err)
			}
			row.Set(col, v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(err, StageExecute, op)
	}
	return out, joinPartial(partial, mapErrs.err())
}

// QueryOne runs a SELECT and maps its first row into a T using MappingFor.
// It returns nil and no error when the statement yields no rows.
//
// Columns that cannot be mapped leave their field unset; the record is
// returned together with an error for which IsMapping reports true.
func QueryOne[T any](ctx context.Context, p Preparer, query string, params ...any) (*T, error) {
	return first(queryRecords[T](ctx, p, "QueryOne", nil, true, query, params))
}

// QueryOneWith is QueryOne with an explicit mapping.
func QueryOneWith[T any](ctx context.Context, p Preparer, m Mapping[T], query string, params ...any) (*T, error) {
	if m == nil {
		m = Mapping[T]{}
	}
	return first(queryRecords(ctx, p, "QueryOneWith", m, true, query, params))
}

// QueryAll runs a SELECT and maps every row into a T using MappingFor.
// A statement returning no rows yields an empty, non-nil slice.
func QueryAll[T any](ctx context.Context, p Preparer, query string, params ...any) ([]T, error) {
	return queryRecords[T](ctx, p, "QueryAll", nil, false, query, params)
}

// QueryAllWith is QueryAll with an explicit mapping.
func QueryAllWith[T any](ctx context.Context, p Preparer, m Mapping[T], query string, params ...any) ([]T, error) {
	if m == nil {
		m = Mapping[T]{}
	}
	return queryRecords(ctx, p, "QueryAllWith", m, false, query, params)
}

func first[T any](recs []T, err error) (*T, error) {
	if len(recs) == 0 {
		return nil, err
	}
	return &recs[0], err
}

// queryRecords maps rows into records with m, or with MappingFor[T] when m is
// nil. With one set it stops after the first row.
func queryRecords[T any](ctx context.Context, p Preparer, op string, m Mapping[T], one bool, query string, params []any) (out []T, err error) {
	s := settingsOf(p)
	ctx, event := s.begin(ctx, op, query, len(params))
	defer func() {
		event.Rows = int64(len(out))
		s.finish(ctx, event, err, out == nil)
	}()

	if m == nil {
		if m, err = MappingFor[T](); err != nil {
			return nil, err
		}
	}

	stmt, rows, partial, err := s.openRows(ctx, p, op, query, params)
	if err != nil {
		return nil, err
	}
	defer release(ctx, s.logger, op, rows, stmt)

	cols, err := rows.Columns()
	if err != nil {
		return nil, wrapError(err, StageExecute, op)
	}
	setters := make([]Setter[T], len(cols))
	var unmapped []string
	for i, col := range cols {
		if set, ok := m[col]; ok {
			setters[i] = set
		} else {
			unmapped = append(unmapped, col)
		}
	}
	raw, dest := scanTargets(len(cols))
	mapErrs := newColumnErrors(op)

	out = make([]T, 0)
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, wrapError(err, StageExecute, op)
		}
		var rec T
		for i, set := range setters {
			if set == nil {
				continue
			}
			v, err := valueFromDriver(raw[i])
			if err == nil {
				err = set(&rec, v)
			}
			if err != nil {
				mapErrs.add(cols[i], "cannot assign column value", err)
			}
		}
		out = append(out, rec)
		if one {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(err, StageExecute, op)
	}

	// Columns without a field only matter once a record was produced.
	if len(out) > 0 {
		for _, col := range unmapped {
			mapErrs.add(col, fmt.Sprintf("no field for column %q", col), nil)
		}
	}
	return out, joinPartial(partial, mapErrs.err())
}
