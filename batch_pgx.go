package dbutils

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// pgxSink queues repetitions in a pgx.Batch, so a flush is one round trip.
// A batch runs in an implicit transaction: when one repetition fails, none of
// the flush is kept and the flush reports nothing executed.
type pgxSink struct {
	conn  *pgx.Conn
	query string
	batch pgx.Batch
}

func (b *pgxSink) queue(args []any) {
	b.batch.Queue(b.query, args...)
}

func (b *pgxSink) flush(ctx context.Context) (executed int, affected int64, err error) {
	n := b.batch.Len()
	if n == 0 {
		return 0, 0, nil
	}
	queued := b.batch
	b.batch = pgx.Batch{}

	br := b.conn.SendBatch(ctx, &queued)
	defer func() {
		if cerr := br.Close(); err == nil {
			err = cerr
		}
	}()

	for range n {
		tag, err := br.Exec()
		if err != nil {
			return 0, 0, err
		}
		executed++
		affected += tag.RowsAffected()
	}
	return executed, affected, nil
}
