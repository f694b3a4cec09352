package app

import (
	"context"
	"fmt"
	"io"

	"talok/internal/domain"
	"talok/internal/export"
)

// Exportable entities.
const (
	EntityProperties = "properties"
	EntityLeases     = "leases"
	EntityInvoices   = "invoices"
)

var exportColumns = map[string][]export.Column{
	EntityProperties: {
		{Key: "title", Header: "Titre"},
		{Key: "type", Header: "Type"},
		{Key: "status", Header: "Statut"},
		{Key: "address", Header: "Adresse"},
		{Key: "postal_code", Header: "Code postal"},
		{Key: "city", Header: "Ville"},
		{Key: "surface", Header: "Surface (m²)", Format: export.Number},
		{Key: "rent", Header: "Loyer HC", Format: export.Currency},
		{Key: "charges", Header: "Charges", Format: export.Currency},
		{Key: "created_at", Header: "Créé le", Format: export.Date},
	},
	EntityLeases: {
		{Key: "id", Header: "Bail"},
		{Key: "type", Header: "Type"},
		{Key: "status", Header: "Statut"},
		{Key: "start_date", Header: "Début", Format: export.Date},
		{Key: "end_date", Header: "Fin", Format: export.Date},
		{Key: "rent", Header: "Loyer HC", Format: export.Currency},
		{Key: "charges", Header: "Charges", Format: export.Currency},
		{Key: "deposit", Header: "Dépôt de garantie", Format: export.Currency},
		{Key: "tenants", Header: "Locataires", Format: export.Number},
	},
	EntityInvoices: {
		{Key: "period", Header: "Période"},
		{Key: "lease_id", Header: "Bail"},
		{Key: "status", Header: "Statut"},
		{Key: "rent", Header: "Loyer", Format: export.Currency},
		{Key: "charges", Header: "Charges", Format: export.Currency},
		{Key: "total", Header: "Total", Format: export.Currency},
		{Key: "due_date", Header: "Échéance", Format: export.Date},
		{Key: "paid_at", Header: "Payée le", Format: export.Date},
	},
}

var exportTitles = map[string]string{
	EntityProperties: "Biens",
	EntityLeases:     "Baux",
	EntityInvoices:   "Quittances et factures",
}

// ExportColumns returns the configured columns of an entity.
func ExportColumns(entity string) ([]export.Column, bool) {
	c, ok := exportColumns[entity]
	return c, ok
}

type ExportService struct {
	props    *PropertyService
	leases   *LeaseService
	invoices *InvoiceService
}

func NewExportService(p *PropertyService, l *LeaseService, i *InvoiceService) *ExportService {
	return &ExportService{props: p, leases: l, invoices: i}
}

// Export writes the caller's records of entity in format f.
func (s *ExportService) Export(ctx context.Context, who domain.Identity, entity string, f export.Format, w io.Writer) error {
	t, err := s.Table(ctx, who, entity)
	if err != nil {
		return err
	}
	return export.Write(w, f, t)
}

func (s *ExportService) Table(ctx context.Context, who domain.Identity, entity string) (export.Table, error) {
	cols, ok := exportColumns[entity]
	if !ok {
		return export.Table{}, fmt.Errorf("export entity %q: %w", entity, domain.ErrNotFound)
	}
	t := export.Table{Title: exportTitles[entity], Columns: cols}
	switch entity {
	case EntityProperties:
		list, err := s.props.ListAll(ctx, who, domain.PropertyFilter{})
		if err != nil {
			return export.Table{}, err
		}
		t.Records = PropertyRecords(list)
	case EntityLeases:
		list, err := s.leases.List(ctx, who, domain.LeaseFilter{})
		if err != nil {
			return export.Table{}, err
		}
		t.Records = LeaseRecords(list)
	case EntityInvoices:
		list, err := s.invoices.List(ctx, who, nil)
		if err != nil {
			return export.Table{}, err
		}
		t.Records = InvoiceRecords(list)
	}
	return t, nil
}

func PropertyRecords(list []domain.Property) []export.Record {
	out := make([]export.Record, 0, len(list))
	for _, p := range list {
		r := export.Record{
			"id": p.ID.String(), "title": p.Title, "type": string(p.Type), "status": string(p.Status),
			"address": p.Address, "postal_code": p.PostalCode, "city": p.City,
			"rent": euros(p.RentCents), "charges": euros(p.ChargesCents), "created_at": p.CreatedAt,
		}
		if p.Surface != nil {
			r["surface"] = *p.Surface
		}
		out = append(out, r)
	}
	return out
}

func LeaseRecords(list []domain.Lease) []export.Record {
	out := make([]export.Record, 0, len(list))
	for _, l := range list {
		r := export.Record{
			"id": l.ID.String(), "type": string(l.Type), "status": string(l.Status),
			"start_date": l.StartDate, "rent": euros(l.RentCents), "charges": euros(l.ChargesCents),
			"deposit": euros(l.DepositCents), "tenants": len(l.TenantIDs),
		}
		if l.EndDate != nil {
			r["end_date"] = *l.EndDate
		}
		out = append(out, r)
	}
	return out
}

func InvoiceRecords(list []domain.Invoice) []export.Record {
	out := make([]export.Record, 0, len(list))
	for _, inv := range list {
		r := export.Record{
			"period": inv.Period, "lease_id": inv.LeaseID.String(), "status": string(inv.Status),
			"rent": euros(inv.RentCents), "charges": euros(inv.ChargesCents), "total": euros(inv.TotalCents),
			"due_date": inv.DueDate,
		}
		if inv.PaidAt != nil {
			r["paid_at"] = *inv.PaidAt
		}
		out = append(out, r)
	}
	return out
}
