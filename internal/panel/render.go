package panel

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"slices"
	"strings"

	"github.com/matthewbaird/bridgepanel/internal/schema"
	"github.com/matthewbaird/bridgepanel/internal/types"
)

//go:embed templates/*.html
var templateFS embed.FS

func parseTemplates() (*template.Template, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing panel templates: %w", err)
	}
	return tmpl, nil
}

type optionView struct {
	Value, Label string
	Selected     bool
}

type itemView struct {
	ID, Value, Label string
	Checked          bool
}

type fieldView struct {
	Field     schema.Field
	ID        string
	ToggleID  string
	InputType string
	Value     string
	Multiple  bool
	Options   []optionView
	Items     []itemView
}

// Renderer turns one field and its current value into markup.
type Renderer struct {
	ids    IDScheme
	sorter Sorter
	tmpl   *template.Template
}

func NewRenderer(ids IDScheme, sorter Sorter) (*Renderer, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &Renderer{ids: ids, sorter: sorter, tmpl: tmpl}, nil
}

// Render produces the markup for f on device entityID. entries is only
// consulted for checkbox lists.
func (r *Renderer) Render(f schema.Field, current, entityID string, entries []types.DeviceListEntry) (template.HTML, error) {
	v := fieldView{
		Field: f,
		ID:    r.ids.ElementID(f.Key, entityID),
		Value: current,
	}

	var name string
	switch f.Kind {
	case schema.KindText:
		name, v.InputType = "field_text", "text"
	case schema.KindPassword:
		name, v.InputType = "field_password", "password"
		v.ToggleID = r.ids.ToggleID(f.Key, entityID)
	case schema.KindSingleSelect, schema.KindMultiSelect:
		name = "field_select"
		v.Multiple = f.Kind == schema.KindMultiSelect
		v.Options = selectOptions(f, current)
	case schema.KindCheckboxList:
		name = "field_checkboxList"
		checked := splitList(current)
		for i, e := range r.sorter.Sort(entries) {
			v.Items = append(v.Items, itemView{
				ID:      r.ids.ItemID(f.Key, entityID, i),
				Value:   e.ID,
				Label:   fmt.Sprintf("%s (%s)", e.Name, e.ID),
				Checked: slices.Contains(checked, e.ID),
			})
		}
	default:
		return "", fmt.Errorf("field %s: unsupported kind %q", f.Key, f.Kind)
	}

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, v); err != nil {
		return "", fmt.Errorf("rendering field %s: %w", f.Key, err)
	}
	return template.HTML(buf.String()), nil
}

// selectOptions marks the options to preselect. A multi-select value is a
// comma-separated list; a single select matches at most one option.
func selectOptions(f schema.Field, current string) []optionView {
	selected := []string{current}
	if f.Kind == schema.KindMultiSelect {
		selected = splitList(current)
	}
	out := make([]optionView, len(f.Options))
	matched := false
	for i, o := range f.Options {
		sel := slices.Contains(selected, o.Value)
		if f.Kind == schema.KindSingleSelect {
			sel = sel && !matched
			matched = matched || sel
		}
		out[i] = optionView{Value: o.Value, Label: o.Label, Selected: sel}
	}
	return out
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}
