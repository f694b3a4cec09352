package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"talok/internal/domain"
	"talok/internal/edl"
)

type InspectionService struct {
	base
	repo    domain.InspectionRepository
	leases  domain.LeaseRepository
	preview *edl.Previewer
}

func NewInspectionService(r domain.InspectionRepository, l domain.LeaseRepository, p *edl.Previewer, opts ...Option) *InspectionService {
	return &InspectionService{base: newBase(opts), repo: r, leases: l, preview: p}
}

type InspectionInput struct {
	LeaseID      uuid.UUID              `json:"lease_id"`
	Kind         domain.InspectionKind  `json:"kind"`
	Date         time.Time              `json:"date"`
	Rooms        []domain.Room          `json:"rooms"`
	Meters       []domain.MeterReading  `json:"meters"`
	Furniture    []domain.FurnitureItem `json:"furniture,omitempty"`
	KeysCount    int                    `json:"keys_count"`
	GeneralNotes string                 `json:"general_notes,omitempty"`
}

// furnishedLease reports whether the decree furniture list applies.
func furnishedLease(t domain.LeaseType) bool {
	return t == domain.LeaseMeuble || t == domain.LeaseColocation || t == domain.LeaseMobilite
}

// Create records an inspection for a lease the caller owns. Furnished leases
// always carry the mandatory furniture inventory.
func (s *InspectionService) Create(ctx context.Context, who domain.Identity, in InspectionInput) (domain.Inspection, error) {
	l, err := s.lease(ctx, in.LeaseID)
	if err != nil {
		return domain.Inspection{}, err
	}
	if !canAccessOwned(who, l.OwnerID) {
		return domain.Inspection{}, fmt.Errorf("lease %s: %w", l.ID, domain.ErrForbidden)
	}
	now := s.now()
	insp := domain.Inspection{
		ID:           uuid.New(),
		LeaseID:      l.ID,
		PropertyID:   l.PropertyID,
		OwnerID:      l.OwnerID,
		Kind:         in.Kind,
		Date:         in.Date.UTC(),
		Rooms:        in.Rooms,
		Meters:       in.Meters,
		Furniture:    in.Furniture,
		KeysCount:    in.KeysCount,
		GeneralNotes: in.GeneralNotes,
		Signatures:   []domain.Signature{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if insp.Date.IsZero() {
		insp.Date = now
	}
	if furnishedLease(l.Type) {
		if len(insp.Furniture) == 0 {
			insp.Furniture = edl.NewFurnitureInventory()
		} else {
			insp.Furniture = edl.Normalize(insp.Furniture)
		}
	}
	if err := edl.Validate(insp); err != nil {
		return domain.Inspection{}, err
	}
	dctx, cancel := s.db(ctx)
	defer cancel()
	if err := s.repo.CreateInspection(dctx, insp); err != nil {
		return domain.Inspection{}, err
	}
	s.preview.Request(insp)
	log.Info().Str("inspection", insp.ID.String()).Str("lease", l.ID.String()).Str("kind", string(insp.Kind)).Msg("inspection created")
	return insp, nil
}

func (s *InspectionService) Get(ctx context.Context, who domain.Identity, id uuid.UUID) (domain.Inspection, error) {
	insp, _, err := s.load(ctx, who, id)
	return insp, err
}

// UpdateFurniture replaces the inventory; mandatory items can be marked absent
// but never removed.
func (s *InspectionService) UpdateFurniture(ctx context.Context, who domain.Identity, id uuid.UUID, items []domain.FurnitureItem) (domain.Inspection, error) {
	insp, l, err := s.load(ctx, who, id)
	if err != nil {
		return domain.Inspection{}, err
	}
	if !canAccessOwned(who, l.OwnerID) {
		return domain.Inspection{}, fmt.Errorf("inspection %s: %w", id, domain.ErrForbidden)
	}
	if len(insp.Signatures) > 0 {
		return domain.Inspection{}, fmt.Errorf("inspection %s is signed: %w", id, domain.ErrInvalidTransition)
	}
	insp.Furniture = edl.Normalize(items)
	insp.UpdatedAt = s.now()
	if err := edl.Validate(insp); err != nil {
		return domain.Inspection{}, err
	}
	dctx, cancel := s.db(ctx)
	defer cancel()
	if err := s.repo.UpdateInspection(dctx, insp); err != nil {
		return domain.Inspection{}, err
	}
	s.preview.Request(insp)
	return insp, nil
}

// Compliance is the furniture check of an inspection.
type Compliance struct {
	Compliant bool          `json:"compliant"`
	Warnings  []edl.Warning `json:"warnings"`
}

func (s *InspectionService) Compliance(ctx context.Context, who domain.Identity, id uuid.UUID) (Compliance, error) {
	insp, l, err := s.load(ctx, who, id)
	if err != nil {
		return Compliance{}, err
	}
	if !furnishedLease(l.Type) && len(insp.Furniture) == 0 {
		return Compliance{Compliant: true, Warnings: []edl.Warning{}}, nil
	}
	w := edl.CheckCompliance(insp.Furniture)
	if w == nil {
		w = []edl.Warning{}
	}
	return Compliance{Compliant: len(w) == 0, Warnings: w}, nil
}

// Sign adds the caller's signature to the inspection.
func (s *InspectionService) Sign(ctx context.Context, who domain.Identity, id uuid.UUID) (domain.Inspection, error) {
	insp, l, err := s.load(ctx, who, id)
	if err != nil {
		return domain.Inspection{}, err
	}
	for _, sig := range insp.Signatures {
		if sig.SignerID == who.UserID {
			return domain.Inspection{}, fmt.Errorf("inspection %s: already signed: %w", id, domain.ErrConflict)
		}
	}
	role := domain.RoleTenant
	if who.UserID == l.OwnerID {
		role = domain.RoleOwner
	} else if who.IsAdmin() {
		return domain.Inspection{}, fmt.Errorf("inspection %s: admins do not sign: %w", id, domain.ErrForbidden)
	}
	now := s.now()
	insp.Signatures = append(insp.Signatures, domain.Signature{SignerID: who.UserID, Role: role, SignedAt: now})
	insp.UpdatedAt = now
	dctx, cancel := s.db(ctx)
	defer cancel()
	if err := s.repo.UpdateInspection(dctx, insp); err != nil {
		return domain.Inspection{}, err
	}
	// the inventory is frozen once signed; later previews render on demand
	s.preview.Forget(id)
	return insp, nil
}

// Preview renders the inspection, reusing the last render when unchanged.
func (s *InspectionService) Preview(ctx context.Context, who domain.Identity, id uuid.UUID) (edl.Preview, error) {
	insp, _, err := s.load(ctx, who, id)
	if err != nil {
		return edl.Preview{}, err
	}
	return s.preview.Preview(ctx, insp)
}

// Compare diffs the entry and exit inspections of a lease, using the latest of each kind.
func (s *InspectionService) Compare(ctx context.Context, who domain.Identity, leaseID uuid.UUID) (edl.Comparison, error) {
	l, err := s.lease(ctx, leaseID)
	if err != nil {
		return edl.Comparison{}, err
	}
	if !isLeaseParty(who, l) {
		return edl.Comparison{}, fmt.Errorf("lease %s: %w", leaseID, domain.ErrForbidden)
	}
	dctx, cancel := s.db(ctx)
	list, err := s.repo.ListInspections(dctx, leaseID)
	cancel()
	if err != nil {
		return edl.Comparison{}, err
	}
	var entry, exit *domain.Inspection
	for i := range list {
		switch list[i].Kind {
		case domain.InspectionEntry:
			entry = &list[i]
		case domain.InspectionExit:
			exit = &list[i]
		}
	}
	if entry == nil || exit == nil {
		return edl.Comparison{}, fmt.Errorf("lease %s needs an entry and an exit inspection: %w", leaseID, domain.ErrNotFound)
	}
	return edl.Compare(*entry, *exit)
}

func (s *InspectionService) load(ctx context.Context, who domain.Identity, id uuid.UUID) (domain.Inspection, domain.Lease, error) {
	dctx, cancel := s.db(ctx)
	insp, err := s.repo.GetInspection(dctx, id)
	cancel()
	if err != nil {
		return domain.Inspection{}, domain.Lease{}, err
	}
	l, err := s.lease(ctx, insp.LeaseID)
	if err != nil {
		return domain.Inspection{}, domain.Lease{}, err
	}
	if !isLeaseParty(who, l) {
		return domain.Inspection{}, domain.Lease{}, fmt.Errorf("inspection %s: %w", id, domain.ErrForbidden)
	}
	return insp, l, nil
}

func (s *InspectionService) lease(ctx context.Context, id uuid.UUID) (domain.Lease, error) {
	ctx, cancel := s.db(ctx)
	defer cancel()
	return s.leases.GetLease(ctx, id)
}
