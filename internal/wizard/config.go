// Package wizard drives the property-creation form: a declarative config of
// steps and fields, per-type visibility, validation and a session
// orchestrator with debounced auto-save.
package wizard

type FieldKind string

const (
	KindText          FieldKind = "text"
	KindTextarea      FieldKind = "textarea"
	KindNumber        FieldKind = "number"
	KindSelect        FieldKind = "select"
	KindBoolean       FieldKind = "boolean"
	KindCheckboxGroup FieldKind = "checkbox_group"
	KindCheckboxGrid  FieldKind = "checkbox_grid"
)

func (k FieldKind) valid() bool {
	switch k {
	case KindText, KindTextarea, KindNumber, KindSelect, KindBoolean, KindCheckboxGroup, KindCheckboxGrid:
		return true
	}
	return false
}

// TypeField is the field id holding the selected property type.
const TypeField = "type"

type Option struct {
	Value string `json:"value" yaml:"value" toml:"value"`
	Label string `json:"label" yaml:"label" toml:"label"`
}

type PropertyType struct {
	ID       string `json:"id" yaml:"id" toml:"id"`
	Label    string `json:"label" yaml:"label" toml:"label"`
	Category string `json:"category" yaml:"category" toml:"category"`
}

type Field struct {
	ID          string    `json:"id" yaml:"id" toml:"id"`
	Label       string    `json:"label" yaml:"label" toml:"label"`
	Help        string    `json:"help,omitempty" yaml:"help" toml:"help"`
	Placeholder string    `json:"placeholder,omitempty" yaml:"placeholder" toml:"placeholder"`
	Kind        FieldKind `json:"kind" yaml:"kind" toml:"kind"`
	Options     []Option  `json:"options,omitempty" yaml:"options" toml:"options"`
	// Rows and Columns describe a checkbox grid.
	Rows      []Option `json:"rows,omitempty" yaml:"rows" toml:"rows"`
	Columns   []Option `json:"columns,omitempty" yaml:"columns" toml:"columns"`
	Required  bool     `json:"required,omitempty" yaml:"required" toml:"required"`
	Integer   bool     `json:"integer,omitempty" yaml:"integer" toml:"integer"`
	Min       *float64 `json:"min,omitempty" yaml:"min" toml:"min"`
	Max       *float64 `json:"max,omitempty" yaml:"max" toml:"max"`
	MinLength *int     `json:"min_length,omitempty" yaml:"min_length" toml:"min_length"`
	MaxLength *int     `json:"max_length,omitempty" yaml:"max_length" toml:"max_length"`
	Pattern   string   `json:"pattern,omitempty" yaml:"pattern" toml:"pattern"`
	Unit      string   `json:"unit,omitempty" yaml:"unit" toml:"unit"`
	Types     []string `json:"types,omitempty" yaml:"types" toml:"types"`
	VisibleIf string   `json:"visible_if,omitempty" yaml:"visible_if" toml:"visible_if"`
	// Column names the optional database column the value is stored in.
	Column  string `json:"column,omitempty" yaml:"column" toml:"column"`
	Default any    `json:"default,omitempty" yaml:"default" toml:"default"`
}

type Section struct {
	ID        string   `json:"id" yaml:"id" toml:"id"`
	Title     string   `json:"title" yaml:"title" toml:"title"`
	Types     []string `json:"types,omitempty" yaml:"types" toml:"types"`
	VisibleIf string   `json:"visible_if,omitempty" yaml:"visible_if" toml:"visible_if"`
	Fields    []Field  `json:"fields" yaml:"fields" toml:"fields"`
}

type Step struct {
	ID          string    `json:"id" yaml:"id" toml:"id"`
	Title       string    `json:"title" yaml:"title" toml:"title"`
	Description string    `json:"description,omitempty" yaml:"description" toml:"description"`
	Types       []string  `json:"types,omitempty" yaml:"types" toml:"types"`
	Fields      []Field   `json:"fields,omitempty" yaml:"fields" toml:"fields"`
	Sections    []Section `json:"sections,omitempty" yaml:"sections" toml:"sections"`
}

// Rule requires fields when a condition holds. The condition is either
// Field == Equals or the expression in If.
type Rule struct {
	ID      string   `json:"id" yaml:"id" toml:"id"`
	Field   string   `json:"field,omitempty" yaml:"field" toml:"field"`
	Equals  any      `json:"equals,omitempty" yaml:"equals" toml:"equals"`
	If      string   `json:"if,omitempty" yaml:"if" toml:"if"`
	Require []string `json:"require" yaml:"require" toml:"require"`
	Message string   `json:"message,omitempty" yaml:"message" toml:"message"`
	Types   []string `json:"types,omitempty" yaml:"types" toml:"types"`
}

type Config struct {
	Version       int            `json:"version" yaml:"version" toml:"version"`
	PropertyTypes []PropertyType `json:"property_types" yaml:"property_types" toml:"property_types"`
	Steps         []Step         `json:"steps" yaml:"steps" toml:"steps"`
	Rules         []Rule         `json:"rules,omitempty" yaml:"rules" toml:"rules"`

	conds  map[string]bool // condition source -> valid
	fields map[string]fieldRef
}

// fieldRef locates a field inside the step tree.
type fieldRef struct {
	step    int
	section int // -1 when the field sits directly on the step
	field   *Field
}

// Field returns the descriptor of a field by id.
func (c *Config) Field(id string) (*Field, bool) {
	ref, ok := c.fields[id]
	if !ok {
		return nil, false
	}
	return ref.field, true
}

// StepOf returns the index of the step holding the field.
func (c *Config) StepOf(id string) (int, bool) {
	ref, ok := c.fields[id]
	return ref.step, ok
}

func (c *Config) HasType(t string) bool {
	for _, pt := range c.PropertyTypes {
		if pt.ID == t {
			return true
		}
	}
	return false
}

// StepsFor returns the indexes of the steps shown for a property type.
func (c *Config) StepsFor(t string) []int {
	out := make([]int, 0, len(c.Steps))
	for i, s := range c.Steps {
		if appliesTo(s.Types, t) {
			out = append(out, i)
		}
	}
	return out
}

// AllFields walks every field in declaration order.
func (c *Config) AllFields() []*Field {
	var out []*Field
	for si := range c.Steps {
		s := &c.Steps[si]
		for fi := range s.Fields {
			out = append(out, &s.Fields[fi])
		}
		for sci := range s.Sections {
			for fi := range s.Sections[sci].Fields {
				out = append(out, &s.Sections[sci].Fields[fi])
			}
		}
	}
	return out
}

func appliesTo(types []string, t string) bool {
	if len(types) == 0 {
		return true
	}
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}
