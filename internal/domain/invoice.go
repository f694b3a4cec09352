package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type InvoiceStatus string

const (
	InvoiceDraft InvoiceStatus = "draft"
	InvoiceSent  InvoiceStatus = "sent"
	InvoicePaid  InvoiceStatus = "paid"
	InvoiceLate  InvoiceStatus = "late"
)

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceDraft: {InvoiceSent},
	InvoiceSent:  {InvoicePaid, InvoiceLate},
	InvoiceLate:  {InvoicePaid},
}

// InvoiceDueDay is the day of the month rent is due.
const InvoiceDueDay = 5

type Invoice struct {
	ID           uuid.UUID     `json:"id"`
	LeaseID      uuid.UUID     `json:"lease_id"`
	OwnerID      uuid.UUID     `json:"owner_id"`
	Period       string        `json:"period"` // YYYY-MM
	RentCents    int64         `json:"rent_cents"`
	ChargesCents int64         `json:"charges_cents"`
	TotalCents   int64         `json:"total_cents"`
	Status       InvoiceStatus `json:"status"`
	DueDate      time.Time     `json:"due_date"`
	PaidAt       *time.Time    `json:"paid_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// NewMonthlyInvoice builds the draft invoice of an active lease for the month containing period.
func NewMonthlyInvoice(l Lease, period time.Time, now time.Time) (Invoice, error) {
	if l.Status != LeaseActive {
		return Invoice{}, fmt.Errorf("lease %s is %s: %w", l.ID, l.Status, ErrInvalidTransition)
	}
	first := time.Date(period.Year(), period.Month(), 1, 0, 0, 0, 0, time.UTC)
	if l.EndDate != nil && first.After(*l.EndDate) {
		return Invoice{}, fmt.Errorf("lease %s ended before %s: %w", l.ID, first.Format("2006-01"), ErrValidation)
	}
	return Invoice{
		ID:           uuid.New(),
		LeaseID:      l.ID,
		OwnerID:      l.OwnerID,
		Period:       first.Format("2006-01"),
		RentCents:    l.RentCents,
		ChargesCents: l.ChargesCents,
		TotalCents:   l.RentCents + l.ChargesCents,
		Status:       InvoiceDraft,
		DueDate:      first.AddDate(0, 0, InvoiceDueDay-1),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (inv *Invoice) Transition(to InvoiceStatus, now time.Time) error {
	ok := false
	for _, next := range invoiceTransitions[inv.Status] {
		if next == to {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("invoice %s: %s -> %s: %w", inv.ID, inv.Status, to, ErrInvalidTransition)
	}
	inv.Status = to
	if to == InvoicePaid {
		inv.PaidAt = &now
	}
	inv.UpdatedAt = now
	return nil
}

// Overdue reports whether a sent invoice is past its due date.
func (inv *Invoice) Overdue(now time.Time) bool {
	return inv.Status == InvoiceSent && now.After(inv.DueDate.AddDate(0, 0, 1))
}

type InvoiceFilter struct {
	LeaseID *uuid.UUID
	OwnerID *uuid.UUID
	Status  *InvoiceStatus
	Limit   int
}
