package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyFromSchema bulk-inserts rows into a schema-qualified table using the
// PostgreSQL COPY protocol.
func CopyFromSchema(ctx context.Context, pool Pool, schema, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := pool.CopyFrom(ctx, pgx.Identifier{schema, table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s.%s", schema, table)
	}

	return n, nil
}

// ReplaceRows truncates schema.table and copies rows into it.
func ReplaceRows(ctx context.Context, pool Pool, schema, table string, columns []string, rows [][]any) (int64, error) {
	ident := pgx.Identifier{schema, table}.Sanitize()
	if _, err := pool.Exec(ctx, "TRUNCATE "+ident); err != nil {
		return 0, eris.Wrapf(err, "db: truncate %s.%s", schema, table)
	}
	return CopyFromSchema(ctx, pool, schema, table, columns, rows)
}
