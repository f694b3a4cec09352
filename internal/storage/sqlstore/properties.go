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

// OptionalPropertyColumns are the wizard-backed columns a deployment may
// not have yet. Values for missing ones are kept in extras.
var OptionalPropertyColumns = []string{"floor", "elevator", "construction_year", "lots_count", "dpe_class", "heating_type"}

// propertyCoreColumns are mapped onto Property fields; any other column read
// back from the table lands in ColumnValues.
var propertyCoreColumns = map[string]bool{
	"id": true, "owner_id": true, "type": true, "status": true, "title": true,
	"address": true, "postal_code": true, "city": true, "surface": true, "rooms": true,
	"rent_cents": true, "charges_cents": true, "deposit_cents": true,
	"vat_applicable": true, "furnished": true, "extras": true, "reject_reason": true,
	"created_at": true, "updated_at": true,
}

func (s *Store) propertyColumns(p domain.Property, forInsert bool) ([]column, map[string]any) {
	extras := make(map[string]any, len(p.Extras))
	for k, v := range p.Extras {
		extras[k] = v
	}
	cols := []column{
		{name: "type", value: string(p.Type), required: true},
		{name: "status", value: string(p.Status), required: true},
		{name: "title", value: p.Title},
		{name: "address", value: p.Address},
		{name: "postal_code", value: p.PostalCode},
		{name: "city", value: p.City},
		{name: "surface", value: valF64(p.Surface)},
		{name: "rooms", value: valInt(p.Rooms)},
		{name: "rent_cents", value: p.RentCents},
		{name: "charges_cents", value: p.ChargesCents},
		{name: "deposit_cents", value: p.DepositCents},
		{name: "vat_applicable", value: p.VATApplicable},
		{name: "furnished", value: p.Furnished},
		{name: "extras", value: nil, required: true},
		{name: "reject_reason", value: valStr(p.RejectReason)},
		{name: "updated_at", value: p.UpdatedAt.UTC(), required: true},
	}
	for _, name := range OptionalPropertyColumns {
		if v, ok := p.ColumnValues[name]; ok {
			cols = append(cols, column{name: name, value: v})
		}
	}
	if forInsert {
		cols = append([]column{
			{name: "id", value: p.ID.String(), required: true},
			{name: "owner_id", value: p.OwnerID.String(), required: true},
		}, cols...)
		cols = append(cols, column{name: "created_at", value: p.CreatedAt.UTC(), required: true})
	}
	setJSON(cols, "extras", extras)
	return cols, extras
}

// moveToExtras keeps a dropped column's value in the extras JSON column.
func moveToExtras(extras map[string]any) dropFunc {
	return func(dropped column, rest []column) {
		if dropped.value != nil {
			extras[dropped.name] = dropped.value
		}
		setJSON(rest, "extras", extras)
	}
}

func setJSON(cols []column, name string, v map[string]any) {
	b, _ := json.Marshal(v)
	for i := range cols {
		if cols[i].name == name {
			cols[i].value = string(b)
		}
	}
}

func (s *Store) CreateProperty(ctx context.Context, p domain.Property) error {
	cols, extras := s.propertyColumns(p, true)
	return s.insertWithFallback(ctx, s.db, "properties", cols, moveToExtras(extras))
}

func (s *Store) UpdateProperty(ctx context.Context, p domain.Property) error {
	cols, extras := s.propertyColumns(p, false)
	n, err := s.updateWithFallback(ctx, s.db, "properties", cols, "id = ?", []any{p.ID.String()}, moveToExtras(extras))
	if err != nil {
		return err
	}
	if n == 0 {
		// MySQL reports 0 affected rows when nothing changed
		if _, err := s.GetProperty(ctx, p.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetProperty(ctx context.Context, id uuid.UUID) (domain.Property, error) {
	rows, err := s.query(ctx, `SELECT * FROM properties WHERE id = ?`, id.String())
	if err != nil {
		return domain.Property{}, err
	}
	defer rows.Close()
	ps, err := scanProperties(rows)
	if err != nil {
		return domain.Property{}, err
	}
	if len(ps) == 0 {
		return domain.Property{}, fmt.Errorf("property %s: %w", id, domain.ErrNotFound)
	}
	return ps[0], nil
}

func (s *Store) ListProperties(ctx context.Context, f domain.PropertyFilter) ([]domain.Property, error) {
	var where []string
	var args []any
	if f.OwnerID != nil {
		where = append(where, "owner_id = ?")
		args = append(args, f.OwnerID.String())
	}
	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*f.Status))
	}
	if f.Type != nil {
		where = append(where, "type = ?")
		args = append(args, string(*f.Type))
	}
	q := `SELECT * FROM properties`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit, max(f.Offset, 0))

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProperties(rows)
}

func (s *Store) DeleteProperty(ctx context.Context, id uuid.UUID) error {
	res, err := s.exec(ctx, `DELETE FROM properties WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	return mustAffect(res, "property", id)
}

// scanProperties reads SELECT * rows so that optional columns present on
// this deployment are picked up without knowing them in advance.
func scanProperties(rows *sql.Rows) ([]domain.Property, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []domain.Property
	for rows.Next() {
		vals := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(names))
		for i, n := range names {
			row[strings.ToLower(n)] = vals[i]
		}
		p, err := propertyFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func propertyFromRow(row map[string]any) (domain.Property, error) {
	var p domain.Property
	extras := map[string]any{}
	if raw := asString(row["extras"]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &extras); err != nil {
			return p, fmt.Errorf("property extras: %w", err)
		}
	}
	// values of core columns absent from this schema were parked in extras
	for name := range propertyCoreColumns {
		if _, present := row[name]; present {
			continue
		}
		if v, ok := extras[name]; ok {
			row[name] = v
			delete(extras, name)
		}
	}

	var err error
	if p.ID, err = asUUID(row["id"]); err != nil {
		return p, fmt.Errorf("property id: %w", err)
	}
	if p.OwnerID, err = asUUID(row["owner_id"]); err != nil {
		return p, fmt.Errorf("property owner_id: %w", err)
	}
	p.Type = domain.PropertyType(asString(row["type"]))
	p.Status = domain.PropertyStatus(asString(row["status"]))
	p.Title = asString(row["title"])
	p.Address = asString(row["address"])
	p.PostalCode = asString(row["postal_code"])
	p.City = asString(row["city"])
	if f, ok := asFloat(row["surface"]); ok {
		p.Surface = &f
	}
	if n, ok := asInt64(row["rooms"]); ok {
		r := int(n)
		p.Rooms = &r
	}
	p.RentCents, _ = asInt64(row["rent_cents"])
	p.ChargesCents, _ = asInt64(row["charges_cents"])
	p.DepositCents, _ = asInt64(row["deposit_cents"])
	p.VATApplicable = asBool(row["vat_applicable"])
	p.Furnished = asBool(row["furnished"])
	if v := row["reject_reason"]; v != nil {
		r := asString(v)
		p.RejectReason = &r
	}
	p.CreatedAt = asTime(row["created_at"])
	p.UpdatedAt = asTime(row["updated_at"])

	for name, v := range row {
		if propertyCoreColumns[name] || v == nil {
			continue
		}
		if p.ColumnValues == nil {
			p.ColumnValues = map[string]any{}
		}
		p.ColumnValues[name] = asValue(v)
	}
	// optional columns missing on this schema are still reported as column values
	for _, name := range OptionalPropertyColumns {
		if _, present := row[name]; present {
			continue
		}
		if v, ok := extras[name]; ok {
			if p.ColumnValues == nil {
				p.ColumnValues = map[string]any{}
			}
			p.ColumnValues[name] = v
			delete(extras, name)
		}
	}
	if len(extras) > 0 {
		p.Extras = extras
	}
	return p, nil
}
