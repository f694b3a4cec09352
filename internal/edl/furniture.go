// Package edl holds the état des lieux rules: the mandatory furniture
// inventory of furnished lets, entry/exit comparison and the HTML preview.
package edl

import (
	"fmt"
	"strings"

	"talok/internal/domain"
)

// mandatoryFurniture is the list set by décret n° 2015-981 for furnished lets.
var mandatoryFurniture = []struct{ Key, Label string }{
	{"literie", "Literie comprenant couette ou couverture"},
	{"occultation", "Dispositif d'occultation des fenêtres dans les chambres"},
	{"plaques_cuisson", "Plaques de cuisson"},
	{"four", "Four ou four à micro-ondes"},
	{"refrigerateur", "Réfrigérateur avec compartiment congélation"},
	{"vaisselle", "Vaisselle nécessaire à la prise des repas"},
	{"ustensiles", "Ustensiles de cuisine"},
	{"table_sieges", "Table et sièges"},
	{"etageres", "Étagères de rangement"},
	{"luminaires", "Luminaires"},
	{"entretien", "Matériel d'entretien ménager adapté au logement"},
}

// IsMandatory reports whether key names a legally required item.
func IsMandatory(key string) bool {
	_, ok := mandatoryLabel(key)
	return ok
}

func mandatoryLabel(key string) (string, bool) {
	for _, m := range mandatoryFurniture {
		if m.Key == key {
			return m.Label, true
		}
	}
	return "", false
}

// NewFurnitureInventory returns every mandatory item, marked present.
func NewFurnitureInventory() []domain.FurnitureItem {
	out := make([]domain.FurnitureItem, 0, len(mandatoryFurniture))
	for _, m := range mandatoryFurniture {
		out = append(out, domain.FurnitureItem{
			Key:         m.Key,
			Label:       m.Label,
			IsMandatory: true,
			Present:     true,
			Quantity:    1,
			Condition:   domain.ConditionGood,
		})
	}
	return out
}

// Normalize re-derives IsMandatory from the legal list and appends mandatory
// items that were removed from the inventory as absent, so they stay visible
// to the compliance check.
func Normalize(items []domain.FurnitureItem) []domain.FurnitureItem {
	out := make([]domain.FurnitureItem, 0, len(items))
	seen := map[string]bool{}
	for _, it := range items {
		it.Key = strings.TrimSpace(it.Key)
		if it.Key == "" || seen[it.Key] {
			continue
		}
		seen[it.Key] = true
		label, mandatory := mandatoryLabel(it.Key)
		it.IsMandatory = mandatory
		if it.Label == "" {
			it.Label = label
		}
		if !it.Present {
			it.Quantity = 0
		}
		out = append(out, it)
	}
	for _, m := range mandatoryFurniture {
		if !seen[m.Key] {
			out = append(out, domain.FurnitureItem{Key: m.Key, Label: m.Label, IsMandatory: true})
		}
	}
	return out
}

// SetPresent marks an item present or absent.
func SetPresent(items []domain.FurnitureItem, key string, present bool) error {
	for i := range items {
		if items[i].Key == key {
			items[i].Present = present
			if present && items[i].Quantity == 0 {
				items[i].Quantity = 1
			}
			if !present {
				items[i].Quantity = 0
			}
			return nil
		}
	}
	return fmt.Errorf("furniture item %q: %w", key, domain.ErrNotFound)
}

// Warning flags one non-compliant mandatory item.
type Warning struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Message string `json:"message"`
}

// CheckCompliance lists the mandatory items that are absent or missing from
// the inventory.
func CheckCompliance(items []domain.FurnitureItem) []Warning {
	byKey := make(map[string]domain.FurnitureItem, len(items))
	for _, it := range items {
		byKey[it.Key] = it
	}
	var out []Warning
	for _, m := range mandatoryFurniture {
		it, ok := byKey[m.Key]
		if ok && it.Present && it.Quantity > 0 {
			continue
		}
		out = append(out, Warning{
			Key:     m.Key,
			Label:   m.Label,
			Message: fmt.Sprintf("Équipement obligatoire absent : %s (décret n° 2015-981)", m.Label),
		})
	}
	return out
}

func AllMandatoryPresent(items []domain.FurnitureItem) bool {
	return len(CheckCompliance(items)) == 0
}
