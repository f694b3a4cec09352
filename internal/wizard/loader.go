package wizard

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

//go:embed property_wizard.yaml
var defaultConfig []byte

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Default returns the built-in property wizard config.
func Default() (*Config, error) {
	return Parse(defaultConfig, FormatYAML)
}

// Load reads a config file; the format follows the extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wizard: read %s: %w", path, err)
	}
	var f Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		f = FormatJSON
	case ".yaml", ".yml":
		f = FormatYAML
	case ".toml":
		f = FormatTOML
	default:
		return nil, fmt.Errorf("wizard: unsupported config extension %q", filepath.Ext(path))
	}
	cfg, err := Parse(data, f)
	if err != nil {
		return nil, fmt.Errorf("wizard: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a config document.
func Parse(data []byte, f Format) (*Config, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("wizard: empty config")
	}
	var cfg Config
	var err error
	switch f {
	case FormatJSON:
		err = json.Unmarshal(data, &cfg)
	case FormatYAML:
		err = yaml.Unmarshal(data, &cfg)
	case FormatTOML:
		err = toml.Unmarshal(data, &cfg)
	default:
		return nil, fmt.Errorf("wizard: unknown format %q", f)
	}
	if err != nil {
		return nil, fmt.Errorf("wizard: decode %s: %w", f, err)
	}
	if err := cfg.prepare(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// prepare validates the config and builds the field index and compiled expressions.
func (c *Config) prepare() error {
	if len(c.PropertyTypes) == 0 {
		return fmt.Errorf("wizard: no property types declared")
	}
	if len(c.Steps) == 0 {
		return fmt.Errorf("wizard: no steps declared")
	}
	types := map[string]bool{}
	for _, t := range c.PropertyTypes {
		if t.ID == "" {
			return fmt.Errorf("wizard: property type with empty id")
		}
		if types[t.ID] {
			return fmt.Errorf("wizard: duplicate property type %q", t.ID)
		}
		types[t.ID] = true
	}
	checkTypes := func(where string, ts []string) error {
		for _, t := range ts {
			if !types[t] {
				return fmt.Errorf("wizard: %s references unknown property type %q", where, t)
			}
		}
		return nil
	}

	c.fields = map[string]fieldRef{}
	c.conds = map[string]bool{}
	compile := func(where, src string) error {
		if strings.TrimSpace(src) == "" {
			return nil
		}
		if _, ok := c.conds[src]; ok {
			return nil
		}
		if err := CheckCondition(src); err != nil {
			c.conds[src] = false
			return fmt.Errorf("wizard: %s: %w", where, err)
		}
		c.conds[src] = true
		return nil
	}
	addField := func(step, section int, f *Field) error {
		if f.ID == "" {
			return fmt.Errorf("wizard: step %q has a field without id", c.Steps[step].ID)
		}
		if _, dup := c.fields[f.ID]; dup {
			return fmt.Errorf("wizard: duplicate field %q", f.ID)
		}
		if !f.Kind.valid() {
			return fmt.Errorf("wizard: field %q has unknown kind %q", f.ID, f.Kind)
		}
		switch f.Kind {
		case KindSelect, KindCheckboxGroup:
			if len(f.Options) == 0 {
				return fmt.Errorf("wizard: field %q needs options", f.ID)
			}
		case KindCheckboxGrid:
			if len(f.Rows) == 0 || len(f.Columns) == 0 {
				return fmt.Errorf("wizard: field %q needs rows and columns", f.ID)
			}
		}
		if f.Pattern != "" {
			if _, err := regexp.Compile(f.Pattern); err != nil {
				return fmt.Errorf("wizard: field %q pattern: %w", f.ID, err)
			}
		}
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			return fmt.Errorf("wizard: field %q has min > max", f.ID)
		}
		if err := checkTypes("field "+f.ID, f.Types); err != nil {
			return err
		}
		if err := compile("field "+f.ID, f.VisibleIf); err != nil {
			return err
		}
		c.fields[f.ID] = fieldRef{step: step, section: section, field: f}
		return nil
	}

	stepIDs := map[string]bool{}
	for si := range c.Steps {
		s := &c.Steps[si]
		if s.ID == "" || stepIDs[s.ID] {
			return fmt.Errorf("wizard: step %d has an empty or duplicate id %q", si, s.ID)
		}
		stepIDs[s.ID] = true
		if err := checkTypes("step "+s.ID, s.Types); err != nil {
			return err
		}
		for fi := range s.Fields {
			if err := addField(si, -1, &s.Fields[fi]); err != nil {
				return err
			}
		}
		for sci := range s.Sections {
			sec := &s.Sections[sci]
			if err := checkTypes("section "+sec.ID, sec.Types); err != nil {
				return err
			}
			if err := compile("section "+sec.ID, sec.VisibleIf); err != nil {
				return err
			}
			for fi := range sec.Fields {
				if err := addField(si, sci, &sec.Fields[fi]); err != nil {
					return err
				}
			}
		}
	}

	if tf, ok := c.fields[TypeField]; !ok || tf.field.Kind != KindSelect {
		return fmt.Errorf("wizard: a select field %q is required", TypeField)
	} else {
		for _, o := range tf.field.Options {
			if !types[o.Value] {
				return fmt.Errorf("wizard: type option %q is not a declared property type", o.Value)
			}
		}
	}

	for i := range c.Rules {
		r := &c.Rules[i]
		if r.ID == "" {
			r.ID = fmt.Sprintf("rule_%d", i+1)
		}
		if len(r.Require) == 0 {
			return fmt.Errorf("wizard: rule %q requires nothing", r.ID)
		}
		if r.Field == "" && r.If == "" {
			return fmt.Errorf("wizard: rule %q has no condition", r.ID)
		}
		if r.Field != "" {
			if _, ok := c.fields[r.Field]; !ok {
				return fmt.Errorf("wizard: rule %q references unknown field %q", r.ID, r.Field)
			}
		}
		for _, id := range r.Require {
			if _, ok := c.fields[id]; !ok {
				return fmt.Errorf("wizard: rule %q requires unknown field %q", r.ID, id)
			}
		}
		if err := checkTypes("rule "+r.ID, r.Types); err != nil {
			return err
		}
		if err := compile("rule "+r.ID, r.If); err != nil {
			return err
		}
	}
	return nil
}
