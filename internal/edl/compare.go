package edl

import (
	"fmt"
	"sort"
	"strings"

	"talok/internal/domain"
)

// Degradation is an item whose condition got worse between entry and exit.
type Degradation struct {
	Room  string           `json:"room"`
	Item  string           `json:"item"`
	Entry domain.Condition `json:"entry"`
	Exit  domain.Condition `json:"exit"`
	Notes string           `json:"notes,omitempty"`
}

type MissingItem struct {
	Room string `json:"room"`
	Item string `json:"item"`
}

type MeterDelta struct {
	Kind        domain.MeterKind `json:"kind"`
	Entry       float64          `json:"entry"`
	Exit        float64          `json:"exit"`
	Consumption float64          `json:"consumption"`
	Unit        string           `json:"unit"`
}

type Comparison struct {
	Degradations []Degradation `json:"degradations"`
	Missing      []MissingItem `json:"missing"`
	Meters       []MeterDelta  `json:"meters"`
}

// Compare matches rooms and items by name, case-insensitively.
func Compare(entry, exit domain.Inspection) (Comparison, error) {
	if entry.Kind != domain.InspectionEntry || exit.Kind != domain.InspectionExit {
		return Comparison{}, fmt.Errorf("compare needs an entry and an exit inspection: %w", domain.ErrValidation)
	}
	if entry.LeaseID != exit.LeaseID {
		return Comparison{}, fmt.Errorf("inspections belong to different leases: %w", domain.ErrConflict)
	}

	exitItems := map[string]domain.InspectionItem{}
	for _, r := range exit.Rooms {
		for _, it := range r.Items {
			exitItems[itemKey(r.Name, it.Name)] = it
		}
	}

	var cmp Comparison
	for _, r := range entry.Rooms {
		for _, it := range r.Items {
			out, ok := exitItems[itemKey(r.Name, it.Name)]
			if !ok {
				cmp.Missing = append(cmp.Missing, MissingItem{Room: r.Name, Item: it.Name})
				continue
			}
			if it.Condition.Rank() >= 0 && out.Condition.Rank() > it.Condition.Rank() {
				cmp.Degradations = append(cmp.Degradations, Degradation{
					Room: r.Name, Item: it.Name, Entry: it.Condition, Exit: out.Condition, Notes: out.Notes,
				})
			}
		}
	}

	exitMeters := map[domain.MeterKind]domain.MeterReading{}
	for _, m := range exit.Meters {
		exitMeters[m.Kind] = m
	}
	for _, m := range entry.Meters {
		out, ok := exitMeters[m.Kind]
		if !ok {
			continue
		}
		cmp.Meters = append(cmp.Meters, MeterDelta{
			Kind: m.Kind, Entry: m.Value, Exit: out.Value, Consumption: out.Value - m.Value, Unit: m.Unit,
		})
	}
	sort.Slice(cmp.Meters, func(i, j int) bool { return cmp.Meters[i].Kind < cmp.Meters[j].Kind })
	return cmp, nil
}

func itemKey(room, item string) string {
	return strings.ToLower(strings.TrimSpace(room)) + "\x00" + strings.ToLower(strings.TrimSpace(item))
}

// Validate checks kinds, conditions and meter readings of an inspection.
func Validate(in domain.Inspection) error {
	errs := domain.NewValidationError()
	if in.Kind != domain.InspectionEntry && in.Kind != domain.InspectionExit {
		errs.Add("kind", "type d'état des lieux inconnu")
	}
	for ri, r := range in.Rooms {
		if strings.TrimSpace(r.Name) == "" {
			errs.Add(fmt.Sprintf("rooms[%d].name", ri), "nom de pièce requis")
		}
		for ii, it := range r.Items {
			if it.Condition.Rank() < 0 {
				errs.Add(fmt.Sprintf("rooms[%d].items[%d].condition", ri, ii), "état inconnu")
			}
		}
	}
	for mi, m := range in.Meters {
		switch m.Kind {
		case domain.MeterElectricity, domain.MeterGas, domain.MeterWater:
		default:
			errs.Add(fmt.Sprintf("meters[%d].kind", mi), "compteur inconnu")
		}
		if m.Value < 0 {
			errs.Add(fmt.Sprintf("meters[%d].value", mi), "relevé négatif")
		}
	}
	if in.KeysCount < 0 {
		errs.Add("keys_count", "nombre de clés négatif")
	}
	return errs.OrNil()
}
