package citystore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrSchemaMissing means the target database has not been initialized;
// reconciliation cannot proceed without the schema.
var ErrSchemaMissing = errors.New("city schema missing, run `nlsctl setup` against this database first")

func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("%w (%v)", ErrSchemaMissing, err)
	}
	return err
}

// valueString normalizes a bound value for column diffing. Everything we
// write is text, an integer or NULL, and sqlite reports all of those back
// as text.
func valueString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// upsertRow is the single write primitive everything reconciles through.
// The first `identity` columns define domain identity: the existing row
// is selected by them, remaining columns are diffed one by one and an
// update is issued only when something actually changed. A missing row is
// inserted. Either way the row id comes back.
//
// A concurrent insert between the select and our insert trips the unique
// constraint; that race is resolved by re-running once.
func upsertRow(ctx context.Context, tx *sql.Tx, table string, cols []string, vals []any, identity int) (int64, error) {
	id, err := upsertRowOnce(ctx, tx, table, cols, vals, identity)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint") {
		id, err = upsertRowOnce(ctx, tx, table, cols, vals, identity)
	}
	return id, classifyErr(err)
}

func upsertRowOnce(ctx context.Context, tx *sql.Tx, table string, cols []string, vals []any, identity int) (int64, error) {
	where := make([]string, identity)
	for i, col := range cols[:identity] {
		where[i] = fmt.Sprintf("%s = ?", col)
	}
	rest := cols[identity:]

	selectCols := "id"
	if len(rest) > 0 {
		selectCols += ", " + strings.Join(rest, ", ")
	}
	selectQuery := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s",
		selectCols, table, strings.Join(where, " AND "),
	)

	var id int64
	stored := make([]sql.NullString, len(rest))
	dest := make([]any, 0, len(rest)+1)
	dest = append(dest, &id)
	for i := range stored {
		dest = append(dest, &stored[i])
	}

	err := tx.QueryRowContext(ctx, selectQuery, vals[:identity]...).Scan(dest...)
	if err == nil {
		changed := false
		for i := range rest {
			if stored[i].String != valueString(vals[identity+i]) {
				changed = true
				break
			}
		}
		if !changed {
			return id, nil
		}

		set := make([]string, len(rest))
		for i, col := range rest {
			set[i] = fmt.Sprintf("%s = ?", col)
		}
		args := append(append([]any{}, vals[identity:]...), id)
		_, err = tx.ExecContext(ctx, fmt.Sprintf(
			"UPDATE %s SET %s WHERE id = ?",
			table, strings.Join(set, ", "),
		), args...)
		return id, err
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	res, err := tx.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), placeholders,
	), vals...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
