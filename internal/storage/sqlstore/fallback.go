package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrColumnFallbackExhausted is returned when a write kept failing on missing
// columns after the configured number of retries.
var ErrColumnFallbackExhausted = errors.New("optional column fallback exhausted")

// DefaultFallbackRetries bounds how many optional columns a single write may drop.
const DefaultFallbackRetries = 5

type column struct {
	name     string
	value    any
	required bool
}

// dropFunc is told which column was dropped; rest is the remaining column
// set and may be edited in place (e.g. to move the value into a JSON column).
type dropFunc func(dropped column, rest []column)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertWithFallback inserts a row. When the database reports a missing
// optional column, the column is dropped and the insert retried. Required
// columns are never dropped.
func (s *Store) insertWithFallback(ctx context.Context, ex execer, table string, cols []column, onDrop dropFunc) error {
	_, err := s.writeWithFallback(ctx, table, cols, onDrop, func(cols []column) (sql.Result, error) {
		names := make([]string, len(cols))
		marks := make([]string, len(cols))
		args := make([]any, len(cols))
		for i, c := range cols {
			names[i] = s.dialect.Quote(c.name)
			marks[i] = "?"
			args[i] = c.value
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(names, ", "), strings.Join(marks, ", "))
		return ex.ExecContext(ctx, s.dialect.Rebind(q), args...)
	})
	return err
}

// updateWithFallback is insertWithFallback for UPDATE ... SET ... WHERE where.
func (s *Store) updateWithFallback(ctx context.Context, ex execer, table string, cols []column, where string, whereArgs []any, onDrop dropFunc) (int64, error) {
	res, err := s.writeWithFallback(ctx, table, cols, onDrop, func(cols []column) (sql.Result, error) {
		sets := make([]string, len(cols))
		args := make([]any, 0, len(cols)+len(whereArgs))
		for i, c := range cols {
			sets[i] = s.dialect.Quote(c.name) + " = ?"
			args = append(args, c.value)
		}
		args = append(args, whereArgs...)
		q := fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, strings.Join(sets, ", "), where)
		return ex.ExecContext(ctx, s.dialect.Rebind(q), args...)
	})
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) writeWithFallback(ctx context.Context, table string, cols []column, onDrop dropFunc, exec func([]column) (sql.Result, error)) (sql.Result, error) {
	cols = append([]column(nil), cols...)
	for dropped := 0; ; dropped++ {
		res, err := exec(cols)
		if err == nil {
			return res, nil
		}
		name, ok := MissingColumn(err)
		if !ok {
			return nil, err
		}
		idx := -1
		for i, c := range cols {
			if c.name == name {
				idx = i
				break
			}
		}
		if idx < 0 || cols[idx].required {
			return nil, fmt.Errorf("%s: required column %q missing: %w", table, name, err)
		}
		if dropped >= s.maxRetries {
			return nil, fmt.Errorf("%w: %s after %d retries: %w", ErrColumnFallbackExhausted, table, dropped, err)
		}
		gone := cols[idx]
		cols = append(cols[:idx], cols[idx+1:]...)
		log.Warn().Str("table", table).Str("column", name).Msg("column missing on schema, retrying without it")
		if s.onFallback != nil {
			s.onFallback(table, name)
		}
		if onDrop != nil {
			onDrop(gone, cols)
		}
	}
}
