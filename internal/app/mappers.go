package app

import (
	"math"
	"strconv"
	"strings"

	"talok/internal/domain"
	"talok/internal/wizard"
)

/********** wizard values -> property **********/

// coreFields are wizard ids stored on dedicated Property fields.
var coreFields = map[string]bool{
	"type": true, "title": true, "address": true, "postal_code": true, "city": true,
	"surface": true, "rooms": true, "rent": true, "charges": true, "deposit": true,
	"vat_applicable": true, "furnished": true,
}

// applyWizardValues rebuilds the property from the full wizard value set.
// Fields with a Column go to ColumnValues, the rest of the non-core fields to Extras.
func applyWizardValues(cfg *wizard.Config, p *domain.Property, values map[string]any) {
	p.Type = domain.PropertyType(str(values["type"]))
	p.Title = str(values["title"])
	p.Address = str(values["address"])
	p.PostalCode = str(values["postal_code"])
	p.City = str(values["city"])
	p.Surface = floatFlexible(values["surface"])
	p.Rooms = nil
	if f := floatFlexible(values["rooms"]); f != nil {
		n := int(*f)
		p.Rooms = &n
	}
	p.RentCents = cents(values["rent"])
	p.ChargesCents = cents(values["charges"])
	p.DepositCents = cents(values["deposit"])
	p.VATApplicable = boolFlexible(values["vat_applicable"])
	p.Furnished = boolFlexible(values["furnished"])
	if p.Title == "" {
		p.Title = defaultTitle(p)
	}

	p.Extras = map[string]any{}
	p.ColumnValues = map[string]any{}
	for id, v := range values {
		if coreFields[id] || v == nil {
			continue
		}
		f, ok := cfg.Field(id)
		if ok && f.Column != "" {
			p.ColumnValues[f.Column] = columnValue(f, v)
			continue
		}
		p.Extras[id] = v
	}
}

// wizardValues is the inverse of applyWizardValues, used to resume editing
// an existing property and to validate it before submission.
func wizardValues(cfg *wizard.Config, p domain.Property) map[string]any {
	out := map[string]any{}
	set := func(k string, v any) {
		if v != nil && v != "" {
			out[k] = v
		}
	}
	set("type", string(p.Type))
	set("title", p.Title)
	set("address", p.Address)
	set("postal_code", p.PostalCode)
	set("city", p.City)
	if p.Surface != nil {
		out["surface"] = *p.Surface
	}
	if p.Rooms != nil {
		out["rooms"] = float64(*p.Rooms)
	}
	if p.RentCents > 0 {
		out["rent"] = euros(p.RentCents)
	}
	out["charges"] = euros(p.ChargesCents)
	if p.DepositCents > 0 {
		out["deposit"] = euros(p.DepositCents)
	}
	if p.VATApplicable {
		out["vat_applicable"] = true
	}
	if p.Furnished {
		out["furnished"] = true
	}
	for k, v := range p.Extras {
		if f, ok := cfg.Field(k); ok {
			set(k, wizard.Coerce(f, v))
		}
	}
	for _, f := range cfg.AllFields() {
		if f.Column == "" {
			continue
		}
		if v, ok := p.ColumnValues[f.Column]; ok {
			// drivers hand back int64 for booleans and []byte for text
			if b, isBytes := v.([]byte); isBytes {
				v = string(b)
			}
			set(f.ID, wizard.Coerce(f, v))
		}
	}
	return out
}

func columnValue(f *wizard.Field, v any) any {
	if f.Kind == wizard.KindNumber && f.Integer {
		if x := floatFlexible(v); x != nil {
			return int64(*x)
		}
	}
	return v
}

func defaultTitle(p *domain.Property) string {
	parts := []string{}
	if p.Type != "" {
		parts = append(parts, strings.ReplaceAll(string(p.Type), "_", " "))
	}
	if p.City != "" {
		parts = append(parts, p.City)
	}
	return strings.Join(parts, " - ")
}

/********** tiny helpers **********/

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// floatFlexible: number from float64/int/int64/string like "8,5".
func floatFlexible(v any) *float64 {
	switch x := v.(type) {
	case float64:
		return &x
	case int:
		f := float64(x)
		return &f
	case int64:
		f := float64(x)
		return &f
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(x, ",", "."))
		if s == "" {
			return nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return &f
		}
	}
	return nil
}

func boolFlexible(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	}
	if f := floatFlexible(v); f != nil {
		return *f != 0
	}
	return false
}

func cents(v any) int64 {
	f := floatFlexible(v)
	if f == nil {
		return 0
	}
	return int64(math.Round(*f * 100))
}

func euros(c int64) float64 { return float64(c) / 100 }
