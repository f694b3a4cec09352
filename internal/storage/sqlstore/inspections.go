package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"talok/internal/domain"
)

const inspectionSelect = `
SELECT id, lease_id, property_id, owner_id, kind, inspected_on, rooms, meters, furniture,
       keys_count, general_notes, signatures, created_at, updated_at
FROM inspections`

// inspectionDoc groups the JSON-encoded parts of an inspection.
type inspectionDoc struct {
	rooms, meters, furniture, signatures string
}

func encodeInspection(in domain.Inspection) (inspectionDoc, error) {
	enc := func(v any, empty string) (string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		if string(b) == "null" {
			return empty, nil
		}
		return string(b), nil
	}
	var d inspectionDoc
	var err error
	if d.rooms, err = enc(in.Rooms, "[]"); err != nil {
		return d, err
	}
	if d.meters, err = enc(in.Meters, "[]"); err != nil {
		return d, err
	}
	if d.furniture, err = enc(in.Furniture, "[]"); err != nil {
		return d, err
	}
	if d.signatures, err = enc(in.Signatures, "[]"); err != nil {
		return d, err
	}
	return d, nil
}

func (s *Store) CreateInspection(ctx context.Context, in domain.Inspection) error {
	d, err := encodeInspection(in)
	if err != nil {
		return fmt.Errorf("encode inspection: %w", err)
	}
	cols := []column{
		{name: "id", value: in.ID.String(), required: true},
		{name: "lease_id", value: in.LeaseID.String(), required: true},
		{name: "property_id", value: in.PropertyID.String(), required: true},
		{name: "owner_id", value: in.OwnerID.String(), required: true},
		{name: "kind", value: string(in.Kind), required: true},
		{name: "inspected_on", value: in.Date.UTC(), required: true},
		{name: "rooms", value: d.rooms, required: true},
		{name: "meters", value: d.meters, required: true},
		{name: "furniture", value: d.furniture},
		{name: "keys_count", value: in.KeysCount},
		{name: "general_notes", value: in.GeneralNotes},
		{name: "signatures", value: d.signatures, required: true},
		{name: "created_at", value: in.CreatedAt.UTC(), required: true},
		{name: "updated_at", value: in.UpdatedAt.UTC(), required: true},
	}
	return s.insertWithFallback(ctx, s.db, "inspections", cols, nil)
}

func (s *Store) UpdateInspection(ctx context.Context, in domain.Inspection) error {
	d, err := encodeInspection(in)
	if err != nil {
		return fmt.Errorf("encode inspection: %w", err)
	}
	cols := []column{
		{name: "inspected_on", value: in.Date.UTC(), required: true},
		{name: "rooms", value: d.rooms, required: true},
		{name: "meters", value: d.meters, required: true},
		{name: "furniture", value: d.furniture},
		{name: "keys_count", value: in.KeysCount},
		{name: "general_notes", value: in.GeneralNotes},
		{name: "signatures", value: d.signatures, required: true},
		{name: "updated_at", value: in.UpdatedAt.UTC(), required: true},
	}
	n, err := s.updateWithFallback(ctx, s.db, "inspections", cols, "id = ?", []any{in.ID.String()}, nil)
	if err != nil {
		return err
	}
	if n == 0 {
		_, err = s.GetInspection(ctx, in.ID)
	}
	return err
}

func (s *Store) GetInspection(ctx context.Context, id uuid.UUID) (domain.Inspection, error) {
	in, err := scanInspection(s.queryRow(ctx, inspectionSelect+` WHERE id = ?`, id.String()))
	if err != nil {
		return domain.Inspection{}, notFound(err, "inspection", id)
	}
	return in, nil
}

func (s *Store) ListInspections(ctx context.Context, leaseID uuid.UUID) ([]domain.Inspection, error) {
	rows, err := s.query(ctx, inspectionSelect+` WHERE lease_id = ? ORDER BY inspected_on, id`, leaseID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Inspection
	for rows.Next() {
		in, err := scanInspection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func scanInspection(sc scanner) (domain.Inspection, error) {
	var (
		in                               domain.Inspection
		id, leaseID, propertyID, ownerID string
		kind                             string
		rooms, meters, furniture, sigs   string
	)
	if err := sc.Scan(&id, &leaseID, &propertyID, &ownerID, &kind, &in.Date, &rooms, &meters, &furniture,
		&in.KeysCount, &in.GeneralNotes, &sigs, &in.CreatedAt, &in.UpdatedAt); err != nil {
		return domain.Inspection{}, err
	}
	for _, p := range []struct {
		dst *uuid.UUID
		src string
	}{{&in.ID, id}, {&in.LeaseID, leaseID}, {&in.PropertyID, propertyID}, {&in.OwnerID, ownerID}} {
		u, err := uuid.Parse(p.src)
		if err != nil {
			return domain.Inspection{}, fmt.Errorf("inspection ids: %w", err)
		}
		*p.dst = u
	}
	for _, p := range []struct {
		dst any
		src string
	}{{&in.Rooms, rooms}, {&in.Meters, meters}, {&in.Furniture, furniture}, {&in.Signatures, sigs}} {
		if p.src == "" {
			continue
		}
		if err := json.Unmarshal([]byte(p.src), p.dst); err != nil {
			return domain.Inspection{}, fmt.Errorf("inspection json: %w", err)
		}
	}
	in.Kind = domain.InspectionKind(kind)
	in.Date = in.Date.UTC()
	in.CreatedAt = in.CreatedAt.UTC()
	in.UpdatedAt = in.UpdatedAt.UTC()
	return in, nil
}
