package domain

import (
	"time"

	"github.com/google/uuid"
)

type InspectionKind string

const (
	InspectionEntry InspectionKind = "entree"
	InspectionExit  InspectionKind = "sortie"
)

type Condition string

const (
	ConditionNew  Condition = "neuf"
	ConditionGood Condition = "bon"
	ConditionWorn Condition = "usage"
	ConditionBad  Condition = "mauvais"
)

// Rank orders conditions from best (0) to worst; unknown conditions rank -1.
func (c Condition) Rank() int {
	switch c {
	case ConditionNew:
		return 0
	case ConditionGood:
		return 1
	case ConditionWorn:
		return 2
	case ConditionBad:
		return 3
	}
	return -1
}

type InspectionItem struct {
	Name      string    `json:"name"`
	Condition Condition `json:"condition"`
	Notes     string    `json:"notes,omitempty"`
	Photos    []string  `json:"photos,omitempty"`
}

type Room struct {
	Name  string           `json:"name"`
	Items []InspectionItem `json:"items"`
}

type MeterKind string

const (
	MeterElectricity MeterKind = "electricite"
	MeterGas         MeterKind = "gaz"
	MeterWater       MeterKind = "eau"
)

type MeterReading struct {
	Kind   MeterKind `json:"kind"`
	Serial string    `json:"serial,omitempty"`
	Value  float64   `json:"value"`
	Unit   string    `json:"unit"`
}

type FurnitureItem struct {
	Key         string    `json:"key"`
	Label       string    `json:"label"`
	IsMandatory bool      `json:"is_mandatory"`
	Present     bool      `json:"present"`
	Quantity    int       `json:"quantity"`
	Condition   Condition `json:"condition,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

type Inspection struct {
	ID           uuid.UUID       `json:"id"`
	LeaseID      uuid.UUID       `json:"lease_id"`
	PropertyID   uuid.UUID       `json:"property_id"`
	OwnerID      uuid.UUID       `json:"owner_id"`
	Kind         InspectionKind  `json:"kind"`
	Date         time.Time       `json:"date"`
	Rooms        []Room          `json:"rooms"`
	Meters       []MeterReading  `json:"meters"`
	Furniture    []FurnitureItem `json:"furniture,omitempty"`
	KeysCount    int             `json:"keys_count"`
	GeneralNotes string          `json:"general_notes,omitempty"`
	Signatures   []Signature     `json:"signatures"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
