package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type PropertyRepository interface {
	CreateProperty(ctx context.Context, p Property) error
	UpdateProperty(ctx context.Context, p Property) error
	GetProperty(ctx context.Context, id uuid.UUID) (Property, error)
	ListProperties(ctx context.Context, f PropertyFilter) ([]Property, error)
	DeleteProperty(ctx context.Context, id uuid.UUID) error
}

type LeaseRepository interface {
	CreateLease(ctx context.Context, l Lease) error
	UpdateLease(ctx context.Context, l Lease) error
	GetLease(ctx context.Context, id uuid.UUID) (Lease, error)
	ListLeases(ctx context.Context, f LeaseFilter) ([]Lease, error)
}

type InvoiceRepository interface {
	CreateInvoice(ctx context.Context, inv Invoice) error
	UpdateInvoice(ctx context.Context, inv Invoice) error
	GetInvoice(ctx context.Context, id uuid.UUID) (Invoice, error)
	FindInvoice(ctx context.Context, leaseID uuid.UUID, period string) (Invoice, error)
	ListInvoices(ctx context.Context, f InvoiceFilter) ([]Invoice, error)
}

type InspectionRepository interface {
	CreateInspection(ctx context.Context, in Inspection) error
	UpdateInspection(ctx context.Context, in Inspection) error
	GetInspection(ctx context.Context, id uuid.UUID) (Inspection, error)
	ListInspections(ctx context.Context, leaseID uuid.UUID) ([]Inspection, error)
}

type ProfileRepository interface {
	UpsertProfile(ctx context.Context, p Profile) error
	GetProfileByUser(ctx context.Context, userID uuid.UUID) (Profile, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Clock is injected so lifecycle timestamps are deterministic in tests.
type Clock func() time.Time

func SystemClock() time.Time { return time.Now().UTC() }
