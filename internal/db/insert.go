package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// InsertIfAbsent inserts one row and suppresses the conflict on the
// given key columns. The returned boolean reports whether the row was
// actually inserted; false means a row with the same key already
// existed and nothing changed. Callers rely on the boolean rather than
// on the absence of a duplicate-key error.
func InsertIfAbsent(ctx context.Context, pool Pool, table string, columns, conflictKeys []string, values []any) (bool, error) {
	if len(columns) != len(values) {
		return false, eris.Errorf("db: insert-if-absent: %d columns, %d values", len(columns), len(values))
	}
	if len(conflictKeys) == 0 {
		return false, eris.New("db: insert-if-absent: no conflict keys specified")
	}

	placeholders := make([]string, len(values))
	for i := range values {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING",
		quoteTable(table),
		quoteAndJoin(columns),
		strings.Join(placeholders, ", "),
		quoteAndJoin(conflictKeys),
	)

	tag, err := pool.Exec(ctx, sql, values...)
	if err != nil {
		return false, eris.Wrapf(err, "db: insert-if-absent into %s", table)
	}
	return tag.RowsAffected() > 0, nil
}

// quoteTable handles schema-qualified table names.
func quoteTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
