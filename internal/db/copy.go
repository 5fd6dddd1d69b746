package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CopyFrom bulk-inserts rows into a table using PostgreSQL COPY protocol.
func CopyFrom(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := pool.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}
	return n, nil
}

// ReplaceRows deletes every row of table where keyCol = key, then COPYs rows
// in, all in one transaction. Re-saving a run's rows is idempotent.
func ReplaceRows(ctx context.Context, pool Pool, table, keyCol string, key any, columns []string, rows [][]any) (int64, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "db: replace %s: begin tx", table)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	del := "DELETE FROM " + pgx.Identifier{table}.Sanitize() + " WHERE " + pgx.Identifier{keyCol}.Sanitize() + " = $1"
	tag, err := tx.Exec(ctx, del, key)
	if err != nil {
		return 0, eris.Wrapf(err, "db: replace %s: delete", table)
	}

	var n int64
	if len(rows) > 0 {
		n, err = tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
		if err != nil {
			return 0, eris.Wrapf(err, "db: replace %s: COPY", table)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "db: replace %s: commit", table)
	}

	zap.L().Debug("db: replaced rows",
		zap.String("table", table),
		zap.Int64("deleted", tag.RowsAffected()),
		zap.Int64("inserted", n),
	)
	return n, nil
}
