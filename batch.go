package dbutils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BatchResult reports what a batch operation submitted.
type BatchResult struct {
	Executed     int   // repetitions the database ran and kept
	Flushes      int   // flushes issued, the final one included
	RowsAffected int64 // rows affected, summed over every repetition
}

// BatchInsert runs an INSERT count times, with row i of params as the
// parameters of repetition i. A nil params runs every repetition without
// parameters. Repetitions are queued and submitted on flush: once count
// exceeds the connection's ChunkPolicy threshold, the first repetition and
// every Size repetitions after it are flushed, ceil(count/Size) intermediate
// flushes in all, and a final flush always submits the rest.
//
// On failure the result holds what earlier flushes executed. A failing pgx
// flush is rolled back as a whole and adds nothing; on other drivers the
// repetitions of the failing flush that ran before the error are counted.
// Parameters that could not be bound are left NULL and reported with an error
// for which IsBind reports true.
func BatchInsert(ctx context.Context, p Preparer, query string, count int, params [][]any) (BatchResult, error) {
	return batch(ctx, p, "BatchInsert", query, count, params)
}

// BatchDelete runs a DELETE count times; see BatchInsert.
func BatchDelete(ctx context.Context, p Preparer, query string, count int, params [][]any) (BatchResult, error) {
	return batch(ctx, p, "BatchDelete", query, count, params)
}

// batchSink queues repetitions and submits them on flush.
type batchSink interface {
	queue(args []any)
	// flush submits every queued repetition and empties the queue, whether or
	// not the submission succeeds.
	flush(ctx context.Context) (executed int, affected int64, err error)
}

func batch(ctx context.Context, p Preparer, op, query string, count int, params [][]any) (res BatchResult, err error) {
	s := settingsOf(p)
	ctx, event := s.begin(ctx, op, query, count)
	failed := true
	defer func() {
		event.Rows = res.RowsAffected
		event.Flushes = res.Flushes
		s.finish(ctx, event, err, failed)
	}()

	if params != nil && len(params) < count {
		return res, &Error{
			Stage:   StageBind,
			Code:    CodeUnknown,
			Op:      op,
			Message: fmt.Sprintf("%d parameter rows for %d repetitions", len(params), count),
		}
	}

	var partial error
	if c, ok := p.(*Conn); ok && c != nil && c.driver == "pgx" {
		q := rebind(query, s.style)
		err = c.withPgx(func(pc *pgx.Conn) error {
			var runErr error
			res, partial, runErr = runBatch(ctx, &pgxSink{conn: pc, query: q}, s, op, query, count, params)
			return runErr
		})
		if err != nil {
			return res, joinPartial(wrapError(err, StageExecute, op), partial)
		}
		failed = false
		return res, partial
	}

	stmt, err := prepareStmt(ctx, p, op, query)
	if err != nil {
		return res, err
	}
	defer release(ctx, s.logger, op, stmt)

	res, partial, err = runBatch(ctx, &stmtSink{stmt: stmt}, s, op, query, count, params)
	if err != nil {
		return res, joinPartial(err, partial)
	}
	failed = false
	return res, partial
}

// runBatch queues count repetitions into sink, flushing per the chunk policy.
func runBatch(ctx context.Context, sink batchSink, s *settings, op, query string, count int, params [][]any) (res BatchResult, partial, err error) {
	placeholders := countPlaceholders(query)
	if placeholders == 0 {
		placeholders = -1
	}
	chunked := count > s.chunk.Threshold
	var bindErrs []error

	for i := range max(count, 0) {
		var a []any
		if params != nil {
			values, err := bind(op, params[i], placeholders, s.strict)
			if err != nil {
				if s.strict {
					return res, nil, err
				}
				bindErrs = append(bindErrs, fmt.Errorf("repetition %d: %w", i+1, err))
			}
			a = args(values)
		}
		sink.queue(a)

		// Repetitions 1, Size+1, 2*Size+1 and so on close a chunk.
		if chunked && i%s.chunk.Size == 0 {
			if err := flushSink(ctx, sink, &res); err != nil {
				return res, errors.Join(bindErrs...), wrapError(err, StageExecute, op)
			}
		}
	}

	// The final flush runs even when the last chunk left nothing queued.
	if err := flushSink(ctx, sink, &res); err != nil {
		return res, errors.Join(bindErrs...), wrapError(err, StageExecute, op)
	}
	return res, errors.Join(bindErrs...), nil
}

func flushSink(ctx context.Context, sink batchSink, res *BatchResult) error {
	executed, affected, err := sink.flush(ctx)
	res.Flushes++
	res.Executed += executed
	res.RowsAffected += affected
	return err
}

// stmtSink runs queued repetitions on a prepared statement.
type stmtSink struct {
	stmt    *sql.Stmt
	pending [][]any
}

func (b *stmtSink) queue(args []any) {
	b.pending = append(b.pending, args)
}

func (b *stmtSink) flush(ctx context.Context) (executed int, affected int64, err error) {
	defer func() { b.pending = b.pending[:0] }()

	for _, a := range b.pending {
		res, err := b.stmt.ExecContext(ctx, a...)
		if err != nil {
			return executed, affected, err
		}
		executed++
		if n, err := res.RowsAffected(); err == nil {
			affected += n
		}
	}
	return executed, affected, nil
}
