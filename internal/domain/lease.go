package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

type LeaseType string

const (
	LeaseNu         LeaseType = "nu"
	LeaseMeuble     LeaseType = "meuble"
	LeaseColocation LeaseType = "colocation"
	LeaseSaisonnier LeaseType = "saisonnier"
	LeaseMobilite   LeaseType = "mobilite"
)

func (t LeaseType) Valid() bool {
	switch t {
	case LeaseNu, LeaseMeuble, LeaseColocation, LeaseSaisonnier, LeaseMobilite:
		return true
	}
	return false
}

// MaxDepositMonths returns the legal deposit cap in months of rent excluding charges.
// A negative value means uncapped.
func (t LeaseType) MaxDepositMonths() int {
	switch t {
	case LeaseNu:
		return 1
	case LeaseMeuble, LeaseColocation:
		return 2
	case LeaseMobilite:
		return 0
	default:
		return -1
	}
}

// DefaultDuration is the statutory minimum length for an individual landlord.
func (t LeaseType) DefaultDuration() (years, months int) {
	switch t {
	case LeaseNu:
		return 3, 0
	case LeaseMeuble, LeaseColocation:
		return 1, 0
	case LeaseMobilite:
		return 0, 10
	default:
		return 0, 3
	}
}

type LeaseStatus string

const (
	LeaseDraft            LeaseStatus = "draft"
	LeasePendingSignature LeaseStatus = "pending_signature"
	LeaseActive           LeaseStatus = "active"
	LeaseTerminated       LeaseStatus = "terminated"
)

type Signature struct {
	SignerID uuid.UUID `json:"signer_id"`
	Role     Role      `json:"role"`
	SignedAt time.Time `json:"signed_at"`
}

type Lease struct {
	ID           uuid.UUID   `json:"id"`
	PropertyID   uuid.UUID   `json:"property_id"`
	OwnerID      uuid.UUID   `json:"owner_id"`
	TenantIDs    []uuid.UUID `json:"tenant_ids"`
	Type         LeaseType   `json:"type"`
	Status       LeaseStatus `json:"status"`
	StartDate    time.Time   `json:"start_date"`
	EndDate      *time.Time  `json:"end_date,omitempty"`
	RentCents    int64       `json:"rent_cents"`
	ChargesCents int64       `json:"charges_cents"`
	DepositCents int64       `json:"deposit_cents"`
	// IRLReference is the IRL index value the rent was last indexed on.
	IRLReference      *float64    `json:"irl_reference,omitempty"`
	Signatures        []Signature `json:"signatures"`
	TerminatedAt      *time.Time  `json:"terminated_at,omitempty"`
	TerminationReason *string     `json:"termination_reason,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// Validate checks the financial terms and dates of a lease before it is persisted.
func (l *Lease) Validate() error {
	v := NewValidationError()
	if !l.Type.Valid() {
		v.Add("type", "unknown lease type")
	}
	if len(l.TenantIDs) == 0 {
		v.Add("tenant_ids", "at least one tenant is required")
	}
	if l.RentCents <= 0 {
		v.Add("rent_cents", "rent must be positive")
	}
	if l.ChargesCents < 0 {
		v.Add("charges_cents", "charges cannot be negative")
	}
	if l.StartDate.IsZero() {
		v.Add("start_date", "start date is required")
	}
	if l.EndDate != nil && !l.EndDate.After(l.StartDate) {
		v.Add("end_date", "end date must be after start date")
	}
	if months := l.Type.MaxDepositMonths(); months >= 0 && l.DepositCents > int64(months)*l.RentCents {
		v.Add("deposit_cents", fmt.Sprintf("deposit exceeds %d month(s) of rent for a %s lease", months, l.Type))
	}
	if l.DepositCents < 0 {
		v.Add("deposit_cents", "deposit cannot be negative")
	}
	return v.OrNil()
}

// Parties returns every user who must sign: the owner then each tenant.
func (l *Lease) Parties() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(l.TenantIDs)+1)
	out = append(out, l.OwnerID)
	return append(out, l.TenantIDs...)
}

func (l *Lease) HasSigned(id uuid.UUID) bool {
	for _, s := range l.Signatures {
		if s.SignerID == id {
			return true
		}
	}
	return false
}

func (l *Lease) FullySigned() bool {
	for _, p := range l.Parties() {
		if !l.HasSigned(p) {
			return false
		}
	}
	return true
}

func (l *Lease) SendForSignature(now time.Time) error {
	if l.Status != LeaseDraft {
		return fmt.Errorf("lease %s: send from %s: %w", l.ID, l.Status, ErrInvalidTransition)
	}
	l.Status = LeasePendingSignature
	l.UpdatedAt = now
	return nil
}

// Sign records a signature; the lease becomes active once every party has signed.
func (l *Lease) Sign(signer uuid.UUID, role Role, now time.Time) error {
	if l.Status != LeasePendingSignature {
		return fmt.Errorf("lease %s: sign while %s: %w", l.ID, l.Status, ErrInvalidTransition)
	}
	party := false
	for _, p := range l.Parties() {
		if p == signer {
			party = true
			break
		}
	}
	if !party {
		return fmt.Errorf("lease %s: %s is not a party: %w", l.ID, signer, ErrForbidden)
	}
	if l.HasSigned(signer) {
		return fmt.Errorf("lease %s: %s already signed: %w", l.ID, signer, ErrConflict)
	}
	l.Signatures = append(l.Signatures, Signature{SignerID: signer, Role: role, SignedAt: now})
	if l.FullySigned() {
		l.Status = LeaseActive
	}
	l.UpdatedAt = now
	return nil
}

func (l *Lease) Terminate(at time.Time, reason string, now time.Time) error {
	if l.Status != LeaseActive {
		return fmt.Errorf("lease %s: terminate while %s: %w", l.ID, l.Status, ErrInvalidTransition)
	}
	if at.Before(l.StartDate) {
		return fmt.Errorf("lease %s: termination before start: %w", l.ID, ErrValidation)
	}
	l.Status = LeaseTerminated
	l.TerminatedAt = &at
	l.EndDate = &at
	if reason != "" {
		l.TerminationReason = &reason
	}
	l.UpdatedAt = now
	return nil
}

// Renew extends an active lease. When newIRL is set and the lease has an IRL
// reference, the rent is revised by newIRL/oldIRL.
func (l *Lease) Renew(newEnd time.Time, newIRL *float64, now time.Time) error {
	if l.Status != LeaseActive {
		return fmt.Errorf("lease %s: renew while %s: %w", l.ID, l.Status, ErrInvalidTransition)
	}
	if l.EndDate != nil && !newEnd.After(*l.EndDate) {
		return fmt.Errorf("lease %s: new end must be after current end: %w", l.ID, ErrValidation)
	}
	if !newEnd.After(l.StartDate) {
		return fmt.Errorf("lease %s: new end must be after start: %w", l.ID, ErrValidation)
	}
	if newIRL != nil && *newIRL > 0 {
		if l.IRLReference != nil && *l.IRLReference > 0 {
			l.RentCents = ReviseRent(l.RentCents, *l.IRLReference, *newIRL)
		}
		irl := *newIRL
		l.IRLReference = &irl
	}
	l.EndDate = &newEnd
	l.UpdatedAt = now
	return nil
}

// ReviseRent applies the IRL ratio to a rent in cents, rounded to the nearest cent.
func ReviseRent(rentCents int64, oldIRL, newIRL float64) int64 {
	if oldIRL <= 0 || newIRL <= 0 {
		return rentCents
	}
	return int64(math.Round(float64(rentCents) * newIRL / oldIRL))
}

type LeaseFilter struct {
	OwnerID    *uuid.UUID
	TenantID   *uuid.UUID
	PropertyID *uuid.UUID
	Status     *LeaseStatus
	Limit      int
}
