package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"talok/internal/domain"
)

const leaseSelect = `
SELECT id, property_id, owner_id, tenant_ids, type, status, start_date, end_date,
       rent_cents, charges_cents, deposit_cents, irl_reference, signatures,
       terminated_at, termination_reason, created_at, updated_at
FROM leases`

func leaseColumns(l domain.Lease) []column {
	tenants, _ := json.Marshal(l.TenantIDs)
	sigs, _ := json.Marshal(l.Signatures)
	if l.Signatures == nil {
		sigs = []byte("[]")
	}
	return []column{
		{name: "property_id", value: l.PropertyID.String(), required: true},
		{name: "owner_id", value: l.OwnerID.String(), required: true},
		{name: "tenant_ids", value: string(tenants), required: true},
		{name: "type", value: string(l.Type), required: true},
		{name: "status", value: string(l.Status), required: true},
		{name: "start_date", value: l.StartDate.UTC(), required: true},
		{name: "end_date", value: valTime(l.EndDate)},
		{name: "rent_cents", value: l.RentCents, required: true},
		{name: "charges_cents", value: l.ChargesCents, required: true},
		{name: "deposit_cents", value: l.DepositCents, required: true},
		{name: "irl_reference", value: valF64(l.IRLReference)},
		{name: "signatures", value: string(sigs), required: true},
		{name: "terminated_at", value: valTime(l.TerminatedAt)},
		{name: "termination_reason", value: valStr(l.TerminationReason)},
		{name: "updated_at", value: l.UpdatedAt.UTC(), required: true},
	}
}

func (s *Store) CreateLease(ctx context.Context, l domain.Lease) error {
	cols := append([]column{{name: "id", value: l.ID.String(), required: true}}, leaseColumns(l)...)
	cols = append(cols, column{name: "created_at", value: l.CreatedAt.UTC(), required: true})
	return s.insertWithFallback(ctx, s.db, "leases", cols, nil)
}

func (s *Store) UpdateLease(ctx context.Context, l domain.Lease) error {
	n, err := s.updateWithFallback(ctx, s.db, "leases", leaseColumns(l), "id = ?", []any{l.ID.String()}, nil)
	if err != nil {
		return err
	}
	if n == 0 {
		_, err = s.GetLease(ctx, l.ID)
	}
	return err
}

func (s *Store) GetLease(ctx context.Context, id uuid.UUID) (domain.Lease, error) {
	l, err := scanLease(s.queryRow(ctx, leaseSelect+` WHERE id = ?`, id.String()))
	if err != nil {
		return domain.Lease{}, notFound(err, "lease", id)
	}
	return l, nil
}

func (s *Store) ListLeases(ctx context.Context, f domain.LeaseFilter) ([]domain.Lease, error) {
	var where []string
	var args []any
	if f.OwnerID != nil {
		where = append(where, "owner_id = ?")
		args = append(args, f.OwnerID.String())
	}
	if f.PropertyID != nil {
		where = append(where, "property_id = ?")
		args = append(args, f.PropertyID.String())
	}
	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*f.Status))
	}
	if f.TenantID != nil {
		// tenant_ids is a JSON array of quoted uuids
		where = append(where, "tenant_ids LIKE ?")
		args = append(args, `%"`+f.TenantID.String()+`"%`)
	}
	q := leaseSelect
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY start_date DESC, id"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Lease
	for rows.Next() {
		l, err := scanLease(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLease(sc scanner) (domain.Lease, error) {
	var (
		l                       domain.Lease
		id, propertyID, ownerID string
		tenants, sigs           string
		typ, status             string
		endDate, terminatedAt   sql.NullTime
		irl                     sql.NullFloat64
		reason                  sql.NullString
	)
	if err := sc.Scan(&id, &propertyID, &ownerID, &tenants, &typ, &status, &l.StartDate, &endDate,
		&l.RentCents, &l.ChargesCents, &l.DepositCents, &irl, &sigs,
		&terminatedAt, &reason, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return domain.Lease{}, err
	}
	var err error
	if l.ID, err = uuid.Parse(id); err != nil {
		return domain.Lease{}, fmt.Errorf("lease id: %w", err)
	}
	if l.PropertyID, err = uuid.Parse(propertyID); err != nil {
		return domain.Lease{}, fmt.Errorf("lease property_id: %w", err)
	}
	if l.OwnerID, err = uuid.Parse(ownerID); err != nil {
		return domain.Lease{}, fmt.Errorf("lease owner_id: %w", err)
	}
	if err := json.Unmarshal([]byte(tenants), &l.TenantIDs); err != nil {
		return domain.Lease{}, fmt.Errorf("lease tenant_ids: %w", err)
	}
	if err := json.Unmarshal([]byte(sigs), &l.Signatures); err != nil {
		return domain.Lease{}, fmt.Errorf("lease signatures: %w", err)
	}
	l.Type = domain.LeaseType(typ)
	l.Status = domain.LeaseStatus(status)
	l.StartDate = l.StartDate.UTC()
	l.EndDate = nullTime(endDate)
	l.IRLReference = nullF64(irl)
	l.TerminatedAt = nullTime(terminatedAt)
	l.TerminationReason = nullStr(reason)
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	return l, nil
}
