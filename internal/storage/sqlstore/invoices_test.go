package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"postgres unique", &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}, true},
		{"postgres wrapped", fmt.Errorf("insert invoices: %w", &pgconn.PgError{Code: "23505"}), true},
		{"postgres other code", &pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"}, false},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'x' for key 'uniq'"}, true},
		{"mysql wrapped", fmt.Errorf("insert invoices: %w", &mysql.MySQLError{Number: 1062}), true},
		{"mysql other number", &mysql.MySQLError{Number: 1452}, false},
		{"text only", errors.New("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)"), false},
		{"nil", nil, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := isUniqueViolation(c.err); got != c.want {
				t.Fatalf("isUniqueViolation(%v) = %v, want %v", c.err, got, c.want)
			}
		})
	}
}

type dupExec struct{ err error }

func (d dupExec) ExecContext(context.Context, string, ...any) (sql.Result, error) { return nil, d.err }

func TestInsertWithFallback_KeepsDriverError(t *testing.T) {
	s := New(nil, Postgres)
	cols := []column{{name: "id", value: 1, required: true}, {name: "period", value: "2024-03"}}
	err := s.insertWithFallback(context.Background(), dupExec{&pgconn.PgError{Code: "23505"}}, "invoices", cols, nil)
	if !isUniqueViolation(err) {
		t.Fatalf("driver error lost on the way out: %v", err)
	}
}
