package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"talok/internal/domain"
)

// OwnerDashboard aggregates an owner's portfolio.
type OwnerDashboard struct {
	Properties map[domain.PropertyStatus]int `json:"properties"`
	Leases     map[domain.LeaseStatus]int    `json:"leases"`
	Invoices   map[domain.InvoiceStatus]int  `json:"invoices"`
	// Period is the current month (YYYY-MM) the revenue figures refer to.
	Period            string `json:"period"`
	ExpectedCents     int64  `json:"expected_cents"`
	CollectedCents    int64  `json:"collected_cents"`
	OutstandingCents  int64  `json:"outstanding_cents"`
	MonthlyRentCents  int64  `json:"monthly_rent_cents"`
	ActiveTenantCount int    `json:"active_tenant_count"`
}

type DashboardService struct {
	base
	props    domain.PropertyRepository
	leases   domain.LeaseRepository
	invoices domain.InvoiceRepository
}

func NewDashboardService(p domain.PropertyRepository, l domain.LeaseRepository, i domain.InvoiceRepository, opts ...Option) *DashboardService {
	return &DashboardService{base: newBase(opts), props: p, leases: l, invoices: i}
}

// Owner loads properties, leases and invoices concurrently; the first error cancels the rest.
func (s *DashboardService) Owner(ctx context.Context, who domain.Identity) (OwnerDashboard, error) {
	ctx, cancel := s.db(ctx)
	defer cancel()
	owner := who.UserID

	var (
		props    []domain.Property
		leases   []domain.Lease
		invoices []domain.Invoice
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		props, err = allProperties(gctx, s.props.ListProperties, domain.PropertyFilter{OwnerID: &owner})
		return err
	})
	g.Go(func() error {
		var err error
		leases, err = s.leases.ListLeases(gctx, domain.LeaseFilter{OwnerID: &owner})
		return err
	})
	g.Go(func() error {
		var err error
		invoices, err = s.invoices.ListInvoices(gctx, domain.InvoiceFilter{OwnerID: &owner})
		return err
	})
	if err := g.Wait(); err != nil {
		return OwnerDashboard{}, err
	}

	d := OwnerDashboard{
		Properties: map[domain.PropertyStatus]int{},
		Leases:     map[domain.LeaseStatus]int{},
		Invoices:   map[domain.InvoiceStatus]int{},
		Period:     s.now().Format("2006-01"),
	}
	for _, p := range props {
		d.Properties[p.Status]++
	}
	for _, l := range leases {
		d.Leases[l.Status]++
		if l.Status == domain.LeaseActive {
			d.MonthlyRentCents += l.RentCents + l.ChargesCents
			d.ActiveTenantCount += len(l.TenantIDs)
		}
	}
	for _, inv := range invoices {
		d.Invoices[inv.Status]++
		if inv.Status == domain.InvoiceLate {
			d.OutstandingCents += inv.TotalCents
		}
		if inv.Period != d.Period {
			continue
		}
		d.ExpectedCents += inv.TotalCents
		switch inv.Status {
		case domain.InvoicePaid:
			d.CollectedCents += inv.TotalCents
		case domain.InvoiceSent:
			d.OutstandingCents += inv.TotalCents
		}
	}
	return d, nil
}
