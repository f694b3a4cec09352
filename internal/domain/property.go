package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PropertyType string

const (
	TypeAppartement     PropertyType = "appartement"
	TypeMaison          PropertyType = "maison"
	TypeStudio          PropertyType = "studio"
	TypeColocation      PropertyType = "colocation"
	TypeSaisonnier      PropertyType = "saisonnier"
	TypeLocalCommercial PropertyType = "local_commercial"
	TypeBureaux         PropertyType = "bureaux"
	TypeEntrepot        PropertyType = "entrepot"
	TypeParking         PropertyType = "parking"
	TypeImmeuble        PropertyType = "immeuble"
)

var PropertyTypes = []PropertyType{
	TypeAppartement, TypeMaison, TypeStudio, TypeColocation, TypeSaisonnier,
	TypeLocalCommercial, TypeBureaux, TypeEntrepot, TypeParking, TypeImmeuble,
}

func (t PropertyType) Valid() bool {
	for _, k := range PropertyTypes {
		if k == t {
			return true
		}
	}
	return false
}

// Habitable reports whether the type is a dwelling (rooms, DPE, furniture apply).
func (t PropertyType) Habitable() bool {
	switch t {
	case TypeAppartement, TypeMaison, TypeStudio, TypeColocation, TypeSaisonnier:
		return true
	}
	return false
}

type PropertyStatus string

const (
	PropertyDraft     PropertyStatus = "draft"
	PropertyPending   PropertyStatus = "pending"
	PropertyPublished PropertyStatus = "published"
	PropertyRejected  PropertyStatus = "rejected"
	PropertyArchived  PropertyStatus = "archived"
)

var propertyTransitions = map[PropertyStatus][]PropertyStatus{
	PropertyDraft:     {PropertyPending, PropertyArchived},
	PropertyPending:   {PropertyPublished, PropertyRejected, PropertyArchived},
	PropertyPublished: {PropertyArchived},
	PropertyRejected:  {PropertyDraft, PropertyArchived},
}

func (s PropertyStatus) CanTransition(to PropertyStatus) bool {
	for _, next := range propertyTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type Property struct {
	ID            uuid.UUID      `json:"id"`
	OwnerID       uuid.UUID      `json:"owner_id"`
	Type          PropertyType   `json:"type"`
	Status        PropertyStatus `json:"status"`
	Title         string         `json:"title"`
	Address       string         `json:"address"`
	PostalCode    string         `json:"postal_code"`
	City          string         `json:"city"`
	Surface       *float64       `json:"surface,omitempty"`
	Rooms         *int           `json:"rooms,omitempty"`
	RentCents     int64          `json:"rent_cents"`
	ChargesCents  int64          `json:"charges_cents"`
	DepositCents  int64          `json:"deposit_cents"`
	VATApplicable bool           `json:"vat_applicable"`
	Furnished     bool           `json:"furnished"`
	// Extras holds wizard fields without a dedicated column.
	Extras map[string]any `json:"extras,omitempty"`
	// ColumnValues holds wizard fields stored in optional columns of the
	// properties table (floor, dpe_class, ...). Columns missing on the
	// deployed schema fall back into Extras.
	ColumnValues map[string]any `json:"column_values,omitempty"`
	RejectReason *string        `json:"reject_reason,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Transition moves the property to the target status or returns ErrInvalidTransition.
func (p *Property) Transition(to PropertyStatus, now time.Time) error {
	if !p.Status.CanTransition(to) {
		return fmt.Errorf("property %s: %s -> %s: %w", p.ID, p.Status, to, ErrInvalidTransition)
	}
	p.Status = to
	p.UpdatedAt = now
	return nil
}

type PropertyFilter struct {
	OwnerID *uuid.UUID
	Status  *PropertyStatus
	Type    *PropertyType
	Limit   int
	Offset  int
}
