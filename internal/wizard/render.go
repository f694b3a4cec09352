package wizard

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"
)

// Coerce converts a raw input (JSON value or form string) into the canonical
// value type of the field. Unconvertible input is returned unchanged so that
// validation can report it.
func Coerce(f *Field, raw any) any {
	switch f.Kind {
	case KindText, KindTextarea:
		switch x := raw.(type) {
		case nil:
			return nil
		case string:
			if strings.TrimSpace(x) == "" {
				return nil
			}
			return x
		default:
			return fmt.Sprint(x)
		}
	case KindNumber:
		switch x := raw.(type) {
		case nil:
			return nil
		case string:
			if strings.TrimSpace(x) == "" {
				return nil
			}
			if v, ok := toFloat(strings.ReplaceAll(x, " ", "")); ok {
				return v
			}
			return x
		default:
			if v, ok := toFloat(x); ok {
				return v
			}
			return raw
		}
	case KindSelect:
		switch x := raw.(type) {
		case nil:
			return nil
		case string:
			if x == "" {
				return nil
			}
			return x
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(x)
		default:
			if v, ok := toFloat(x); ok {
				return strconv.FormatFloat(v, 'f', -1, 64)
			}
			return raw
		}
	case KindBoolean:
		if raw == nil {
			return nil
		}
		if b, ok := toBool(raw); ok {
			return b
		}
		return raw
	case KindCheckboxGroup:
		return stringList(raw)
	case KindCheckboxGrid:
		m, ok := raw.(map[string]any)
		if !ok {
			if raw == nil {
				return nil
			}
			return raw
		}
		out := make(map[string]any, len(m))
		for row, cols := range m {
			if l := stringList(cols); l != nil {
				out[row] = l
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
	return raw
}

func stringList(raw any) any {
	var out []any
	switch x := raw.(type) {
	case nil:
		return nil
	case string:
		for _, p := range strings.Split(x, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	case []string:
		for _, p := range x {
			out = append(out, p)
		}
	case []any:
		for _, p := range x {
			out = append(out, fmt.Sprint(p))
		}
	default:
		return raw
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

type OptionState struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

type GridRow struct {
	Value string        `json:"value"`
	Label string        `json:"label"`
	Cells []OptionState `json:"cells"`
}

// Widget is a field ready to be drawn: the descriptor resolved against the
// current value and errors.
type Widget struct {
	ID          string        `json:"id"`
	Kind        FieldKind     `json:"kind"`
	Input       string        `json:"input"`
	Label       string        `json:"label"`
	Help        string        `json:"help,omitempty"`
	Placeholder string        `json:"placeholder,omitempty"`
	Unit        string        `json:"unit,omitempty"`
	Required    bool          `json:"required"`
	Value       any           `json:"value"`
	Options     []OptionState `json:"options,omitempty"`
	Grid        []GridRow     `json:"grid,omitempty"`
	Min         *float64      `json:"min,omitempty"`
	Max         *float64      `json:"max,omitempty"`
	Step        string        `json:"step,omitempty"`
	Errors      []string      `json:"errors,omitempty"`
}

// RenderField resolves a field descriptor and its value into a widget.
func RenderField(f *Field, value any, required bool, errs []string) Widget {
	if value == nil && f.Default != nil {
		value = Coerce(f, f.Default)
	}
	w := Widget{
		ID:          f.ID,
		Kind:        f.Kind,
		Label:       f.Label,
		Help:        f.Help,
		Placeholder: f.Placeholder,
		Unit:        f.Unit,
		Required:    required,
		Value:       value,
		Errors:      errs,
	}
	switch f.Kind {
	case KindText:
		w.Input = "text"
	case KindTextarea:
		w.Input = "textarea"
	case KindNumber:
		w.Input = "number"
		w.Min, w.Max = f.Min, f.Max
		w.Step = "any"
		if f.Integer {
			w.Step = "1"
		}
	case KindSelect:
		w.Input = "select"
		sel := fmt.Sprint(value)
		for _, o := range f.Options {
			w.Options = append(w.Options, OptionState{Value: o.Value, Label: o.Label, Selected: value != nil && o.Value == sel})
		}
	case KindBoolean:
		w.Input = "checkbox"
		b, _ := toBool(value)
		w.Value = b
	case KindCheckboxGroup:
		w.Input = "checkbox_group"
		for _, o := range f.Options {
			w.Options = append(w.Options, OptionState{Value: o.Value, Label: o.Label, Selected: looseEqual(value, o.Value)})
		}
	case KindCheckboxGrid:
		w.Input = "checkbox_grid"
		m, _ := value.(map[string]any)
		for _, r := range f.Rows {
			row := GridRow{Value: r.Value, Label: r.Label}
			for _, c := range f.Columns {
				row.Cells = append(row.Cells, OptionState{Value: c.Value, Label: c.Label, Selected: looseEqual(m[r.Value], c.Value)})
			}
			w.Grid = append(w.Grid, row)
		}
	}
	return w
}

var widgetTmpl = template.Must(template.New("widget").Funcs(template.FuncMap{
	"val": func(v any) string {
		if v == nil {
			return ""
		}
		if f, ok := v.(float64); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return fmt.Sprint(v)
	},
	"num": func(f *float64) string { return strconv.FormatFloat(*f, 'f', -1, 64) },
}).Parse(`<div class="field field-{{.Kind}}{{if .Errors}} has-error{{end}}" data-field="{{.ID}}">
{{- if ne .Input "checkbox"}}<label for="f-{{.ID}}">{{.Label}}{{if .Required}} *{{end}}</label>{{end}}
{{- if eq .Input "text"}}<input type="text" id="f-{{.ID}}" name="{{.ID}}" value="{{val .Value}}"{{if .Placeholder}} placeholder="{{.Placeholder}}"{{end}}{{if .Required}} required{{end}}>
{{- else if eq .Input "textarea"}}<textarea id="f-{{.ID}}" name="{{.ID}}"{{if .Required}} required{{end}}>{{val .Value}}</textarea>
{{- else if eq .Input "number"}}<input type="number" id="f-{{.ID}}" name="{{.ID}}" value="{{val .Value}}" step="{{.Step}}"{{with .Min}} min="{{num .}}"{{end}}{{with .Max}} max="{{num .}}"{{end}}{{if .Required}} required{{end}}>{{if .Unit}}<span class="unit">{{.Unit}}</span>{{end}}
{{- else if eq .Input "select"}}<select id="f-{{.ID}}" name="{{.ID}}"{{if .Required}} required{{end}}><option value=""></option>{{range .Options}}<option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Label}}</option>{{end}}</select>
{{- else if eq .Input "checkbox"}}<label><input type="checkbox" id="f-{{.ID}}" name="{{.ID}}" value="true"{{if .Value}} checked{{end}}> {{.Label}}</label>
{{- else if eq .Input "checkbox_group"}}<fieldset id="f-{{.ID}}">{{$id := .ID}}{{range .Options}}<label><input type="checkbox" name="{{$id}}" value="{{.Value}}"{{if .Selected}} checked{{end}}> {{.Label}}</label>{{end}}</fieldset>
{{- else if eq .Input "checkbox_grid"}}<table id="f-{{.ID}}">{{$id := .ID}}{{range .Grid}}{{$row := .Value}}<tr><th>{{.Label}}</th>{{range .Cells}}<td><label><input type="checkbox" name="{{$id}}[{{$row}}]" value="{{.Value}}"{{if .Selected}} checked{{end}}> {{.Label}}</label></td>{{end}}</tr>{{end}}</table>
{{- end}}
{{- if .Help}}<p class="help">{{.Help}}</p>{{end}}
{{- range .Errors}}<p class="error">{{.}}</p>{{end}}
</div>`))

// HTML renders the widget as an HTML fragment.
func (w Widget) HTML() (template.HTML, error) {
	var buf bytes.Buffer
	if err := widgetTmpl.Execute(&buf, w); err != nil {
		return "", fmt.Errorf("wizard: render %s: %w", w.ID, err)
	}
	return template.HTML(buf.String()), nil
}
