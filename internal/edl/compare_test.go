package edl

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"talok/internal/domain"
)

func TestCompare(t *testing.T) {
	lease := uuid.New()
	entry := domain.Inspection{
		LeaseID: lease,
		Kind:    domain.InspectionEntry,
		Rooms: []domain.Room{
			{Name: "Séjour", Items: []domain.InspectionItem{
				{Name: "Parquet", Condition: domain.ConditionGood},
				{Name: "Murs", Condition: domain.ConditionNew},
				{Name: "Rideaux", Condition: domain.ConditionWorn},
			}},
		},
		Meters: []domain.MeterReading{
			{Kind: domain.MeterWater, Value: 120, Unit: "m3"},
			{Kind: domain.MeterElectricity, Value: 1000, Unit: "kWh"},
		},
	}
	exit := domain.Inspection{
		LeaseID: lease,
		Kind:    domain.InspectionExit,
		Rooms: []domain.Room{
			{Name: "séjour ", Items: []domain.InspectionItem{
				{Name: "parquet", Condition: domain.ConditionBad, Notes: "rayures"},
				{Name: "Murs", Condition: domain.ConditionNew},
			}},
		},
		Meters: []domain.MeterReading{
			{Kind: domain.MeterElectricity, Value: 3500, Unit: "kWh"},
			{Kind: domain.MeterWater, Value: 150, Unit: "m3"},
		},
	}

	got, err := Compare(entry, exit)
	if err != nil {
		t.Fatal(err)
	}
	want := Comparison{
		Degradations: []Degradation{{Room: "Séjour", Item: "Parquet", Entry: domain.ConditionGood, Exit: domain.ConditionBad, Notes: "rayures"}},
		Missing:      []MissingItem{{Room: "Séjour", Item: "Rideaux"}},
		Meters: []MeterDelta{
			{Kind: domain.MeterWater, Entry: 120, Exit: 150, Consumption: 30, Unit: "m3"},
			{Kind: domain.MeterElectricity, Entry: 1000, Exit: 3500, Consumption: 2500, Unit: "kWh"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("comparison mismatch (-want +got):\n%s", diff)
	}
}

func TestCompare_Rejects(t *testing.T) {
	a := domain.Inspection{LeaseID: uuid.New(), Kind: domain.InspectionEntry}
	b := domain.Inspection{LeaseID: uuid.New(), Kind: domain.InspectionExit}
	if _, err := Compare(b, a); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := Compare(a, b); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	in := domain.Inspection{
		Kind:   "visite",
		Rooms:  []domain.Room{{Name: "", Items: []domain.InspectionItem{{Name: "Porte", Condition: "cassé"}}}},
		Meters: []domain.MeterReading{{Kind: "fioul", Value: -1}},
	}
	err := Validate(in)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, k := range []string{"kind", "rooms[0].name", "rooms[0].items[0].condition", "meters[0].kind", "meters[0].value"} {
		if _, ok := verr.Fields[k]; !ok {
			t.Fatalf("missing error for %s in %v", k, verr.Fields)
		}
	}
	if err := Validate(domain.Inspection{Kind: domain.InspectionEntry}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}
