package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"talok/internal/domain"
)

type InvoiceService struct {
	base
	invoices domain.InvoiceRepository
	leases   domain.LeaseRepository
}

func NewInvoiceService(i domain.InvoiceRepository, l domain.LeaseRepository, opts ...Option) *InvoiceService {
	return &InvoiceService{base: newBase(opts), invoices: i, leases: l}
}

// Generate issues the invoice of a lease for the month containing period. It
// is idempotent per (lease, period): an existing invoice is returned with
// created=false.
func (s *InvoiceService) Generate(ctx context.Context, who domain.Identity, leaseID uuid.UUID, period time.Time) (domain.Invoice, bool, error) {
	dctx, cancel := s.db(ctx)
	l, err := s.leases.GetLease(dctx, leaseID)
	cancel()
	if err != nil {
		return domain.Invoice{}, false, err
	}
	if !canAccessOwned(who, l.OwnerID) {
		return domain.Invoice{}, false, fmt.Errorf("lease %s: %w", leaseID, domain.ErrForbidden)
	}
	return s.GenerateFor(ctx, l, period)
}

// GenerateFor is Generate without the authorization step, for batch jobs.
func (s *InvoiceService) GenerateFor(ctx context.Context, l domain.Lease, period time.Time) (domain.Invoice, bool, error) {
	now := s.now()
	inv, err := domain.NewMonthlyInvoice(l, period, now)
	if err != nil {
		return domain.Invoice{}, false, err
	}
	if existing, err := s.find(ctx, l.ID, inv.Period); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Invoice{}, false, err
	}

	if err := inv.Transition(domain.InvoiceSent, now); err != nil {
		return domain.Invoice{}, false, err
	}
	dctx, cancel := s.db(ctx)
	err = s.invoices.CreateInvoice(dctx, inv)
	cancel()
	if errors.Is(err, domain.ErrConflict) {
		// another generator won the race for this period
		existing, ferr := s.find(ctx, l.ID, inv.Period)
		if ferr != nil {
			return domain.Invoice{}, false, ferr
		}
		return existing, false, nil
	}
	if err != nil {
		return domain.Invoice{}, false, err
	}
	log.Info().Str("invoice", inv.ID.String()).Str("lease", l.ID.String()).Str("period", inv.Period).Int64("total_cents", inv.TotalCents).Msg("invoice generated")
	return inv, true, nil
}

func (s *InvoiceService) find(ctx context.Context, leaseID uuid.UUID, period string) (domain.Invoice, error) {
	ctx, cancel := s.db(ctx)
	defer cancel()
	return s.invoices.FindInvoice(ctx, leaseID, period)
}

// MarkPaid settles a sent or late invoice. Only the owner records payments.
func (s *InvoiceService) MarkPaid(ctx context.Context, who domain.Identity, id uuid.UUID) (domain.Invoice, error) {
	dctx, cancel := s.db(ctx)
	inv, err := s.invoices.GetInvoice(dctx, id)
	cancel()
	if err != nil {
		return domain.Invoice{}, err
	}
	if !canAccessOwned(who, inv.OwnerID) {
		return domain.Invoice{}, fmt.Errorf("invoice %s: %w", id, domain.ErrForbidden)
	}
	if err := inv.Transition(domain.InvoicePaid, s.now()); err != nil {
		return domain.Invoice{}, err
	}
	dctx, cancel = s.db(ctx)
	defer cancel()
	if err := s.invoices.UpdateInvoice(dctx, inv); err != nil {
		return domain.Invoice{}, err
	}
	log.Info().Str("invoice", id.String()).Msg("invoice paid")
	return inv, nil
}

// MarkLate flags every sent invoice past its due date and returns how many changed.
func (s *InvoiceService) MarkLate(ctx context.Context) (int, error) {
	sent := domain.InvoiceSent
	dctx, cancel := s.db(ctx)
	list, err := s.invoices.ListInvoices(dctx, domain.InvoiceFilter{Status: &sent})
	cancel()
	if err != nil {
		return 0, err
	}
	now := s.now()
	n := 0
	for _, inv := range list {
		if !inv.Overdue(now) {
			continue
		}
		if err := inv.Transition(domain.InvoiceLate, now); err != nil {
			return n, err
		}
		dctx, cancel := s.db(ctx)
		err := s.invoices.UpdateInvoice(dctx, inv)
		cancel()
		if err != nil {
			return n, err
		}
		n++
		log.Info().Str("invoice", inv.ID.String()).Str("period", inv.Period).Msg("invoice late")
	}
	return n, nil
}

// List returns invoices of one lease for its parties, or the caller's invoices as owner.
func (s *InvoiceService) List(ctx context.Context, who domain.Identity, leaseID *uuid.UUID) ([]domain.Invoice, error) {
	f := domain.InvoiceFilter{LeaseID: leaseID}
	if leaseID != nil {
		dctx, cancel := s.db(ctx)
		l, err := s.leases.GetLease(dctx, *leaseID)
		cancel()
		if err != nil {
			return nil, err
		}
		if !isLeaseParty(who, l) {
			return nil, fmt.Errorf("lease %s: %w", *leaseID, domain.ErrForbidden)
		}
	} else if !who.IsAdmin() {
		f.OwnerID = &who.UserID
	}
	ctx, cancel := s.db(ctx)
	defer cancel()
	return s.invoices.ListInvoices(ctx, f)
}

// ActiveLeases lists the leases the batch generator works on.
func (s *InvoiceService) ActiveLeases(ctx context.Context) ([]domain.Lease, error) {
	active := domain.LeaseActive
	ctx, cancel := s.db(ctx)
	defer cancel()
	return s.leases.ListLeases(ctx, domain.LeaseFilter{Status: &active})
}
