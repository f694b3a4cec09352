package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"talok/internal/domain"
)

const invoiceSelect = `
SELECT id, lease_id, owner_id, period, rent_cents, charges_cents, total_cents,
       status, due_date, paid_at, created_at, updated_at
FROM invoices`

func (s *Store) CreateInvoice(ctx context.Context, inv domain.Invoice) error {
	cols := []column{
		{name: "id", value: inv.ID.String(), required: true},
		{name: "lease_id", value: inv.LeaseID.String(), required: true},
		{name: "owner_id", value: inv.OwnerID.String(), required: true},
		{name: "period", value: inv.Period, required: true},
		{name: "rent_cents", value: inv.RentCents, required: true},
		{name: "charges_cents", value: inv.ChargesCents, required: true},
		{name: "total_cents", value: inv.TotalCents, required: true},
		{name: "status", value: string(inv.Status), required: true},
		{name: "due_date", value: inv.DueDate.UTC(), required: true},
		{name: "paid_at", value: valTime(inv.PaidAt)},
		{name: "created_at", value: inv.CreatedAt.UTC(), required: true},
		{name: "updated_at", value: inv.UpdatedAt.UTC(), required: true},
	}
	err := s.insertWithFallback(ctx, s.db, "invoices", cols, nil)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("invoice %s for lease %s: %w", inv.Period, inv.LeaseID, domain.ErrConflict)
	}
	return err
}

func (s *Store) UpdateInvoice(ctx context.Context, inv domain.Invoice) error {
	res, err := s.exec(ctx, `UPDATE invoices SET status = ?, paid_at = ?, updated_at = ? WHERE id = ?`,
		string(inv.Status), valTime(inv.PaidAt), inv.UpdatedAt.UTC(), inv.ID.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_, err = s.GetInvoice(ctx, inv.ID)
	}
	return err
}

func (s *Store) GetInvoice(ctx context.Context, id uuid.UUID) (domain.Invoice, error) {
	inv, err := scanInvoice(s.queryRow(ctx, invoiceSelect+` WHERE id = ?`, id.String()))
	if err != nil {
		return domain.Invoice{}, notFound(err, "invoice", id)
	}
	return inv, nil
}

func (s *Store) FindInvoice(ctx context.Context, leaseID uuid.UUID, period string) (domain.Invoice, error) {
	inv, err := scanInvoice(s.queryRow(ctx, invoiceSelect+` WHERE lease_id = ? AND period = ?`, leaseID.String(), period))
	if err != nil {
		return domain.Invoice{}, notFound(err, "invoice "+period+" of lease", leaseID)
	}
	return inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, f domain.InvoiceFilter) ([]domain.Invoice, error) {
	var where []string
	var args []any
	if f.LeaseID != nil {
		where = append(where, "lease_id = ?")
		args = append(args, f.LeaseID.String())
	}
	if f.OwnerID != nil {
		where = append(where, "owner_id = ?")
		args = append(args, f.OwnerID.String())
	}
	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*f.Status))
	}
	q := invoiceSelect
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY period DESC, id"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func scanInvoice(sc scanner) (domain.Invoice, error) {
	var (
		inv                  domain.Invoice
		id, leaseID, ownerID string
		status               string
		paidAt               sql.NullTime
	)
	if err := sc.Scan(&id, &leaseID, &ownerID, &inv.Period, &inv.RentCents, &inv.ChargesCents, &inv.TotalCents,
		&status, &inv.DueDate, &paidAt, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return domain.Invoice{}, err
	}
	var err error
	if inv.ID, err = uuid.Parse(id); err != nil {
		return domain.Invoice{}, fmt.Errorf("invoice id: %w", err)
	}
	if inv.LeaseID, err = uuid.Parse(leaseID); err != nil {
		return domain.Invoice{}, fmt.Errorf("invoice lease_id: %w", err)
	}
	if inv.OwnerID, err = uuid.Parse(ownerID); err != nil {
		return domain.Invoice{}, fmt.Errorf("invoice owner_id: %w", err)
	}
	inv.Status = domain.InvoiceStatus(status)
	inv.DueDate = inv.DueDate.UTC()
	inv.PaidAt = nullTime(paidAt)
	inv.CreatedAt = inv.CreatedAt.UTC()
	inv.UpdatedAt = inv.UpdatedAt.UTC()
	return inv, nil
}

const (
	pgUniqueViolation   = "23505"
	mysqlDuplicateEntry = 1062
)

// isUniqueViolation matches Postgres SQLSTATE 23505 and MySQL error 1062.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return false
}
