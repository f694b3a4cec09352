package wizard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"talok/internal/domain"
)

const msgRequired = "Ce champ est obligatoire"

// Validator checks form values against the config: required fields,
// per-field type schemas and conditional rules. Hidden fields are skipped.
type Validator struct {
	cfg     *Config
	schemas map[string]*openapi3.Schema
}

func NewValidator(cfg *Config) *Validator {
	v := &Validator{cfg: cfg, schemas: map[string]*openapi3.Schema{}}
	for _, f := range cfg.AllFields() {
		v.schemas[f.ID] = fieldSchema(f)
	}
	return v
}

func fieldSchema(f *Field) *openapi3.Schema {
	enum := func(opts []Option) []any {
		out := make([]any, 0, len(opts))
		for _, o := range opts {
			out = append(out, o.Value)
		}
		return out
	}
	switch f.Kind {
	case KindText, KindTextarea:
		s := openapi3.NewStringSchema()
		if f.MinLength != nil {
			s = s.WithMinLength(int64(*f.MinLength))
		}
		if f.MaxLength != nil {
			s = s.WithMaxLength(int64(*f.MaxLength))
		}
		if f.Pattern != "" {
			s = s.WithPattern(f.Pattern)
		}
		return s
	case KindNumber:
		s := openapi3.NewFloat64Schema()
		if f.Integer {
			s = openapi3.NewIntegerSchema()
		}
		if f.Min != nil {
			s = s.WithMin(*f.Min)
		}
		if f.Max != nil {
			s = s.WithMax(*f.Max)
		}
		return s
	case KindSelect:
		return openapi3.NewStringSchema().WithEnum(enum(f.Options)...)
	case KindBoolean:
		return openapi3.NewBoolSchema()
	case KindCheckboxGroup:
		return openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema().WithEnum(enum(f.Options)...))
	case KindCheckboxGrid:
		obj := openapi3.NewObjectSchema()
		cols := openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema().WithEnum(enum(f.Columns)...))
		for _, r := range f.Rows {
			obj = obj.WithProperty(r.Value, cols)
		}
		return obj
	}
	return openapi3.NewSchema()
}

// ValidateStep validates the visible fields of one step.
func (v *Validator) ValidateStep(step int, values map[string]any) *domain.ValidationError {
	errs := domain.NewValidationError()
	if step < 0 || step >= len(v.cfg.Steps) {
		return errs
	}
	scope := map[string]bool{}
	for _, f := range VisibleFields(v.cfg, step, values) {
		scope[f.ID] = true
		v.checkField(f, values, errs)
	}
	v.applyRules(scope, values, errs)
	return errs
}

// ValidateAll validates every visible field of every step shown for the current type.
func (v *Validator) ValidateAll(values map[string]any) *domain.ValidationError {
	errs := domain.NewValidationError()
	scope := map[string]bool{}
	for _, si := range v.cfg.StepsFor(typeOf(values)) {
		for _, f := range VisibleFields(v.cfg, si, values) {
			scope[f.ID] = true
			v.checkField(f, values, errs)
		}
	}
	if !v.cfg.HasType(typeOf(values)) {
		errs.Add(TypeField, msgRequired)
	}
	v.applyRules(scope, values, errs)
	return errs
}

// RequiredNow reports whether a visible field is currently required, either
// statically or through an active rule.
func (v *Validator) RequiredNow(f *Field, values map[string]any) bool {
	if f.Required {
		return true
	}
	for _, r := range v.activeRules(values) {
		for _, id := range r.Require {
			if id == f.ID {
				return true
			}
		}
	}
	return false
}

func (v *Validator) checkField(f *Field, values map[string]any, errs *domain.ValidationError) {
	val := values[f.ID]
	if isEmpty(val) {
		if f.Required {
			errs.Add(f.ID, msgRequired)
		}
		return
	}
	if msg := v.typeError(f, val); msg != "" {
		errs.Add(f.ID, msg)
	}
}

func (v *Validator) typeError(f *Field, val any) string {
	s, ok := v.schemas[f.ID]
	if !ok {
		return ""
	}
	if f.Kind == KindCheckboxGrid {
		if m, ok := val.(map[string]any); ok {
			for row := range m {
				if !hasOption(f.Rows, row) {
					return fmt.Sprintf("ligne inconnue %q", row)
				}
			}
		}
	}
	err := s.VisitJSON(val)
	if err == nil {
		return ""
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) && se.Reason != "" {
		return se.Reason
	}
	return err.Error()
}

func (v *Validator) activeRules(values map[string]any) []Rule {
	t := typeOf(values)
	var out []Rule
	for _, r := range v.cfg.Rules {
		if !appliesTo(r.Types, t) {
			continue
		}
		var on bool
		if r.If != "" {
			on = v.cfg.when(r.ID, r.If, values)
		} else {
			on = looseEqual(values[r.Field], r.Equals)
		}
		if on {
			out = append(out, r)
		}
	}
	return out
}

// applyRules adds conditional-required errors for fields inside scope.
func (v *Validator) applyRules(scope map[string]bool, values map[string]any, errs *domain.ValidationError) {
	for _, r := range v.activeRules(values) {
		for _, id := range r.Require {
			if !scope[id] || !isEmpty(values[id]) {
				continue
			}
			msg := r.Message
			if strings.TrimSpace(msg) == "" {
				msg = msgRequired
			}
			errs.Add(id, msg)
		}
	}
}

func hasOption(opts []Option, v string) bool {
	for _, o := range opts {
		if o.Value == v {
			return true
		}
	}
	return false
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}

func typeOf(values map[string]any) string {
	s, _ := values[TypeField].(string)
	return s
}
