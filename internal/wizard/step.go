package wizard

import (
	"html/template"
	"strings"

	"talok/internal/domain"
)

// FieldVisible reports whether a field is shown for the current values:
// its step, section and own type lists include the property type and every
// visible_if condition on the path holds.
func FieldVisible(cfg *Config, id string, values map[string]any) bool {
	ref, ok := cfg.fields[id]
	if !ok {
		return false
	}
	t := typeOf(values)
	step := &cfg.Steps[ref.step]
	if !appliesTo(step.Types, t) {
		return false
	}
	if ref.section >= 0 && !sectionVisible(cfg, &step.Sections[ref.section], values) {
		return false
	}
	return fieldSelfVisible(cfg, ref.field, values)
}

func sectionVisible(cfg *Config, s *Section, values map[string]any) bool {
	if !appliesTo(s.Types, typeOf(values)) {
		return false
	}
	return cfg.when(s.ID, s.VisibleIf, values)
}

func fieldSelfVisible(cfg *Config, f *Field, values map[string]any) bool {
	if !appliesTo(f.Types, typeOf(values)) {
		return false
	}
	return cfg.when(f.ID, f.VisibleIf, values)
}

// VisibleFields lists the visible fields of a step in display order.
func VisibleFields(cfg *Config, step int, values map[string]any) []*Field {
	if step < 0 || step >= len(cfg.Steps) {
		return nil
	}
	s := &cfg.Steps[step]
	if !appliesTo(s.Types, typeOf(values)) {
		return nil
	}
	var out []*Field
	for i := range s.Fields {
		if fieldSelfVisible(cfg, &s.Fields[i], values) {
			out = append(out, &s.Fields[i])
		}
	}
	for si := range s.Sections {
		sec := &s.Sections[si]
		if !sectionVisible(cfg, sec, values) {
			continue
		}
		for i := range sec.Fields {
			if fieldSelfVisible(cfg, &sec.Fields[i], values) {
				out = append(out, &sec.Fields[i])
			}
		}
	}
	return out
}

// VisibleFieldIDs returns the ids of every visible field across the steps of the current type.
func VisibleFieldIDs(cfg *Config, values map[string]any) []string {
	var out []string
	for _, si := range cfg.StepsFor(typeOf(values)) {
		for _, f := range VisibleFields(cfg, si, values) {
			out = append(out, f.ID)
		}
	}
	return out
}

type SectionView struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Widgets []Widget `json:"widgets"`
}

// StepView is a rendered step: visible widgets grouped by section plus the
// errors aggregated from every widget.
type StepView struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Index       int                 `json:"index"`
	Position    int                 `json:"position"`
	Total       int                 `json:"total"`
	First       bool                `json:"first"`
	Last        bool                `json:"last"`
	Widgets     []Widget            `json:"widgets"`
	Sections    []SectionView       `json:"sections,omitempty"`
	Errors      map[string][]string `json:"errors,omitempty"`
}

// RenderStep renders the visible content of a step. errs may be nil.
func RenderStep(cfg *Config, v *Validator, step int, values map[string]any, errs *domain.ValidationError) StepView {
	s := &cfg.Steps[step]
	order := cfg.StepsFor(typeOf(values))
	pos := indexOf(order, step)
	view := StepView{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		Index:       step,
		Position:    pos + 1,
		Total:       len(order),
		First:       pos <= 0,
		Last:        pos == len(order)-1,
	}
	fieldErrs := func(id string) []string {
		if errs == nil {
			return nil
		}
		return errs.Fields[id]
	}
	widget := func(f *Field) Widget {
		w := RenderField(f, values[f.ID], v.RequiredNow(f, values), fieldErrs(f.ID))
		if len(w.Errors) > 0 {
			if view.Errors == nil {
				view.Errors = map[string][]string{}
			}
			view.Errors[f.ID] = w.Errors
		}
		return w
	}
	for i := range s.Fields {
		if fieldSelfVisible(cfg, &s.Fields[i], values) {
			view.Widgets = append(view.Widgets, widget(&s.Fields[i]))
		}
	}
	for si := range s.Sections {
		sec := &s.Sections[si]
		if !sectionVisible(cfg, sec, values) {
			continue
		}
		sv := SectionView{ID: sec.ID, Title: sec.Title}
		for i := range sec.Fields {
			if fieldSelfVisible(cfg, &sec.Fields[i], values) {
				sv.Widgets = append(sv.Widgets, widget(&sec.Fields[i]))
			}
		}
		if len(sv.Widgets) > 0 {
			view.Sections = append(view.Sections, sv)
		}
	}
	return view
}

// HTML renders every widget of the step.
func (sv StepView) HTML() (template.HTML, error) {
	var b strings.Builder
	b.WriteString(`<section class="wizard-step" data-step="` + template.HTMLEscapeString(sv.ID) + `"><h2>` + template.HTMLEscapeString(sv.Title) + `</h2>`)
	write := func(ws []Widget) error {
		for _, w := range ws {
			h, err := w.HTML()
			if err != nil {
				return err
			}
			b.WriteString(string(h))
		}
		return nil
	}
	if err := write(sv.Widgets); err != nil {
		return "", err
	}
	for _, sec := range sv.Sections {
		b.WriteString(`<fieldset class="wizard-section"><legend>` + template.HTMLEscapeString(sec.Title) + `</legend>`)
		if err := write(sec.Widgets); err != nil {
			return "", err
		}
		b.WriteString(`</fieldset>`)
	}
	b.WriteString(`</section>`)
	return template.HTML(b.String()), nil
}

func indexOf(xs []int, x int) int {
	for i, v := range xs {
		if v == x {
			return i
		}
	}
	return -1
}
