package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"talok/internal/domain"
)

type LeaseService struct {
	base
	leases domain.LeaseRepository
	props  domain.PropertyRepository
}

func NewLeaseService(l domain.LeaseRepository, p domain.PropertyRepository, opts ...Option) *LeaseService {
	return &LeaseService{base: newBase(opts), leases: l, props: p}
}

type LeaseInput struct {
	PropertyID   uuid.UUID        `json:"property_id"`
	TenantIDs    []uuid.UUID      `json:"tenant_ids"`
	Type         domain.LeaseType `json:"type"`
	StartDate    time.Time        `json:"start_date"`
	EndDate      *time.Time       `json:"end_date,omitempty"`
	RentCents    int64            `json:"rent_cents"`
	ChargesCents int64            `json:"charges_cents"`
	DepositCents int64            `json:"deposit_cents"`
	IRLReference *float64         `json:"irl_reference,omitempty"`
}

// Create drafts a lease on a property of the caller. Without an end date the
// statutory duration of the lease type applies.
func (s *LeaseService) Create(ctx context.Context, who domain.Identity, in LeaseInput) (domain.Lease, error) {
	dctx, cancel := s.db(ctx)
	p, err := s.props.GetProperty(dctx, in.PropertyID)
	cancel()
	if err != nil {
		return domain.Lease{}, err
	}
	if !canAccessOwned(who, p.OwnerID) {
		return domain.Lease{}, fmt.Errorf("property %s: %w", p.ID, domain.ErrForbidden)
	}
	if p.Status == domain.PropertyArchived {
		return domain.Lease{}, fmt.Errorf("property %s is archived: %w", p.ID, domain.ErrInvalidTransition)
	}

	now := s.now()
	l := domain.Lease{
		ID:           uuid.New(),
		PropertyID:   p.ID,
		OwnerID:      p.OwnerID,
		TenantIDs:    in.TenantIDs,
		Type:         in.Type,
		Status:       domain.LeaseDraft,
		StartDate:    in.StartDate.UTC(),
		EndDate:      in.EndDate,
		RentCents:    in.RentCents,
		ChargesCents: in.ChargesCents,
		DepositCents: in.DepositCents,
		IRLReference: in.IRLReference,
		Signatures:   []domain.Signature{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if l.EndDate == nil && l.Type.Valid() && !l.StartDate.IsZero() {
		y, m := l.Type.DefaultDuration()
		end := l.StartDate.AddDate(y, m, 0)
		l.EndDate = &end
	}
	if err := l.Validate(); err != nil {
		return domain.Lease{}, err
	}
	dctx, cancel = s.db(ctx)
	defer cancel()
	if err := s.leases.CreateLease(dctx, l); err != nil {
		return domain.Lease{}, err
	}
	log.Info().Str("lease", l.ID.String()).Str("property", p.ID.String()).Str("type", string(l.Type)).Msg("lease created")
	return l, nil
}

func (s *LeaseService) Get(ctx context.Context, who domain.Identity, id uuid.UUID) (domain.Lease, error) {
	dctx, cancel := s.db(ctx)
	defer cancel()
	l, err := s.leases.GetLease(dctx, id)
	if err != nil {
		return domain.Lease{}, err
	}
	if !isLeaseParty(who, l) {
		return domain.Lease{}, fmt.Errorf("lease %s: %w", id, domain.ErrForbidden)
	}
	return l, nil
}

// List scopes owners to their leases and tenants to the leases they are party to.
func (s *LeaseService) List(ctx context.Context, who domain.Identity, f domain.LeaseFilter) ([]domain.Lease, error) {
	switch who.Role {
	case domain.RoleAdmin:
	case domain.RoleTenant:
		f.TenantID = &who.UserID
	default:
		f.OwnerID = &who.UserID
	}
	ctx, cancel := s.db(ctx)
	defer cancel()
	return s.leases.ListLeases(ctx, f)
}

func (s *LeaseService) Send(ctx context.Context, who domain.Identity, id uuid.UUID) (domain.Lease, error) {
	return s.mutate(ctx, who, id, true, "sent for signature", func(l *domain.Lease, now time.Time) error {
		return l.SendForSignature(now)
	})
}

// Sign records the caller's signature. Every party signs for themselves.
func (s *LeaseService) Sign(ctx context.Context, who domain.Identity, id uuid.UUID) (domain.Lease, error) {
	return s.mutate(ctx, who, id, false, "signed", func(l *domain.Lease, now time.Time) error {
		role := domain.RoleTenant
		if who.UserID == l.OwnerID {
			role = domain.RoleOwner
		}
		return l.Sign(who.UserID, role, now)
	})
}

type TerminateInput struct {
	Date   time.Time `json:"date"`
	Reason string    `json:"reason"`
}

func (s *LeaseService) Terminate(ctx context.Context, who domain.Identity, id uuid.UUID, in TerminateInput) (domain.Lease, error) {
	return s.mutate(ctx, who, id, false, "terminated", func(l *domain.Lease, now time.Time) error {
		at := in.Date
		if at.IsZero() {
			at = now
		}
		return l.Terminate(at.UTC(), in.Reason, now)
	})
}

type RenewInput struct {
	EndDate time.Time `json:"end_date"`
	// IRL is the latest published rent reference index, if the rent is revised.
	IRL *float64 `json:"irl,omitempty"`
}

func (s *LeaseService) Renew(ctx context.Context, who domain.Identity, id uuid.UUID, in RenewInput) (domain.Lease, error) {
	return s.mutate(ctx, who, id, true, "renewed", func(l *domain.Lease, now time.Time) error {
		return l.Renew(in.EndDate.UTC(), in.IRL, now)
	})
}

// mutate loads, authorizes, applies fn and persists the lease.
func (s *LeaseService) mutate(ctx context.Context, who domain.Identity, id uuid.UUID, ownerOnly bool, what string, fn func(*domain.Lease, time.Time) error) (domain.Lease, error) {
	l, err := s.Get(ctx, who, id)
	if err != nil {
		return domain.Lease{}, err
	}
	if ownerOnly && !canAccessOwned(who, l.OwnerID) {
		return domain.Lease{}, fmt.Errorf("lease %s: only the owner may do this: %w", id, domain.ErrForbidden)
	}
	if err := fn(&l, s.now()); err != nil {
		return domain.Lease{}, err
	}
	dctx, cancel := s.db(ctx)
	defer cancel()
	if err := s.leases.UpdateLease(dctx, l); err != nil {
		return domain.Lease{}, err
	}
	log.Info().Str("lease", id.String()).Str("status", string(l.Status)).Str("by", who.UserID.String()).Msg("lease " + what)
	return l, nil
}
