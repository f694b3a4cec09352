package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"talok/internal/domain"
)

type fakeResult int64

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return int64(r), nil }

// fakeExec fails with a missing-column error while the statement mentions
// one of the missing columns.
type fakeExec struct {
	missing []string
	style   string
	calls   []string
	args    [][]any
}

func (f *fakeExec) ExecContext(_ context.Context, q string, args ...any) (sql.Result, error) {
	f.calls = append(f.calls, q)
	f.args = append(f.args, args)
	for _, m := range f.missing {
		if !strings.Contains(q, `"`+m+`"`) && !strings.Contains(q, "`"+m+"`") {
			continue
		}
		switch f.style {
		case "mysql":
			return nil, fmt.Errorf("Error 1054 (42S22): Unknown column '%s' in 'field list'", m)
		case "postgrest":
			return nil, fmt.Errorf("Could not find the '%s' column of 'properties' in the schema cache", m)
		default:
			return nil, fmt.Errorf(`ERROR: column "%s" of relation "properties" does not exist (SQLSTATE 42703)`, m)
		}
	}
	return fakeResult(1), nil
}

func TestInsertWithFallback_DropsMissingOptionalColumns(t *testing.T) {
	for _, style := range []string{"postgres", "mysql", "postgrest"} {
		t.Run(style, func(t *testing.T) {
			d := Postgres
			if style == "mysql" {
				d = MySQL
			}
			var observed []string
			s := New(nil, d, WithFallbackObserver(func(table, col string) { observed = append(observed, table+"."+col) }))
			ex := &fakeExec{missing: []string{"floor", "dpe_class"}, style: style}
			cols := []column{
				{name: "id", value: "1", required: true},
				{name: "floor", value: 3},
				{name: "dpe_class", value: "C"},
				{name: "city", value: "Lyon"},
			}
			var dropped []string
			err := s.insertWithFallback(context.Background(), ex, "properties", cols, func(c column, rest []column) {
				dropped = append(dropped, c.name)
			})
			if err != nil {
				t.Fatalf("insert: %v", err)
			}
			if len(ex.calls) != 3 {
				t.Fatalf("expected 3 attempts, got %d: %v", len(ex.calls), ex.calls)
			}
			last := ex.calls[2]
			if strings.Contains(last, "floor") || strings.Contains(last, "dpe_class") || !strings.Contains(last, "city") {
				t.Fatalf("final insert has wrong columns: %s", last)
			}
			if got := len(ex.args[2]); got != 2 {
				t.Fatalf("final insert has %d args", got)
			}
			if strings.Join(dropped, ",") != "floor,dpe_class" {
				t.Fatalf("dropped = %v", dropped)
			}
			if len(observed) != 2 || observed[0] != "properties.floor" {
				t.Fatalf("observed = %v", observed)
			}
		})
	}
}

func TestInsertWithFallback_Exhausts(t *testing.T) {
	s := New(nil, Postgres, WithMaxFallbackRetries(1))
	ex := &fakeExec{missing: []string{"a", "b"}}
	cols := []column{{name: "id", value: 1, required: true}, {name: "a", value: 1}, {name: "b", value: 2}}
	err := s.insertWithFallback(context.Background(), ex, "t", cols, nil)
	if !errors.Is(err, ErrColumnFallbackExhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	if !strings.Contains(err.Error(), `column "b"`) {
		t.Fatalf("exhaustion should wrap the last error: %v", err)
	}
	if len(ex.calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(ex.calls))
	}
}

func TestInsertWithFallback_RequiredColumnIsNotDropped(t *testing.T) {
	s := New(nil, Postgres)
	ex := &fakeExec{missing: []string{"owner_id"}}
	cols := []column{{name: "id", value: 1, required: true}, {name: "owner_id", value: 2, required: true}}
	err := s.insertWithFallback(context.Background(), ex, "t", cols, nil)
	if err == nil || errors.Is(err, ErrColumnFallbackExhausted) {
		t.Fatalf("expected a plain error, got %v", err)
	}
	if len(ex.calls) != 1 {
		t.Fatalf("required column must not be retried")
	}
}

func TestInsertWithFallback_OtherErrorsPassThrough(t *testing.T) {
	s := New(nil, Postgres)
	boom := errors.New("connection reset")
	ex := execFunc(func(context.Context, string, ...any) (sql.Result, error) { return nil, boom })
	err := s.insertWithFallback(context.Background(), ex, "t", []column{{name: "a", value: 1}}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected passthrough, got %v", err)
	}
}

type execFunc func(ctx context.Context, q string, args ...any) (sql.Result, error)

func (f execFunc) ExecContext(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return f(ctx, q, args...)
}

func TestPropertyInsert_MovesDroppedValuesToExtras(t *testing.T) {
	s := New(nil, Postgres)
	ex := &fakeExec{missing: []string{"floor", "surface"}}
	surface := 42.0
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	p := domain.Property{
		ID: uuid.New(), OwnerID: uuid.New(), Type: domain.TypeAppartement, Status: domain.PropertyDraft,
		Surface: &surface, Extras: map[string]any{"description": "Lumineux"},
		ColumnValues: map[string]any{"floor": 2.0, "dpe_class": "B"},
		CreatedAt:    now, UpdatedAt: now,
	}
	cols, extras := s.propertyColumns(p, true)
	if err := s.insertWithFallback(context.Background(), ex, "properties", cols, moveToExtras(extras)); err != nil {
		t.Fatal(err)
	}

	last := ex.calls[len(ex.calls)-1]
	names := strings.Split(strings.SplitN(strings.SplitN(last, "(", 2)[1], ")", 2)[0], ", ")
	var raw string
	for i, n := range names {
		if n == `"extras"` {
			raw = ex.args[len(ex.args)-1][i].(string)
		}
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("extras json %q: %v", raw, err)
	}
	if got["floor"] != 2.0 || got["surface"] != 42.0 || got["description"] != "Lumineux" {
		t.Fatalf("extras = %v", got)
	}
	if _, ok := got["dpe_class"]; ok {
		t.Fatalf("dpe_class column exists and must not move")
	}
}

func TestPropertyFromRow_RestoresFallbackValues(t *testing.T) {
	id, owner := uuid.New(), uuid.New()
	row := map[string]any{
		"id":             []byte(id.String()),
		"owner_id":       owner.String(),
		"type":           "appartement",
		"status":         "draft",
		"title":          "T2",
		"rent_cents":     int64(85000),
		"vat_applicable": int64(0),
		"furnished":      int64(1),
		"extras":         `{"surface":42,"floor":3,"description":"Lumineux"}`,
		"dpe_class":      []byte("C"),
		"elevator":       nil,
		"created_at":     time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		"updated_at":     "2024-05-02 10:00:00",
	}
	p, err := propertyFromRow(row)
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != id || p.OwnerID != owner || p.Title != "T2" || p.RentCents != 85000 || !p.Furnished {
		t.Fatalf("core fields wrong: %+v", p)
	}
	if p.Surface == nil || *p.Surface != 42 {
		t.Fatalf("surface should be restored from extras: %v", p.Surface)
	}
	if p.ColumnValues["floor"] != 3.0 || p.ColumnValues["dpe_class"] != "C" {
		t.Fatalf("column values = %v", p.ColumnValues)
	}
	if _, ok := p.ColumnValues["elevator"]; ok {
		t.Fatalf("NULL columns are omitted")
	}
	if len(p.Extras) != 1 || p.Extras["description"] != "Lumineux" {
		t.Fatalf("extras = %v", p.Extras)
	}
	if p.UpdatedAt.Day() != 2 {
		t.Fatalf("updated_at = %v", p.UpdatedAt)
	}
}
