package panel

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"go.uber.org/zap"

	"github.com/matthewbaird/bridgepanel/internal/schema"
	"github.com/matthewbaird/bridgepanel/internal/store"
	"github.com/matthewbaird/bridgepanel/internal/types"
)

type block struct {
	SectionID string
	Visible   bool
	Fields    []template.HTML
}

type ruleView struct {
	ControlID string
	Operator  string
	Value     string
	SectionID string
}

type panelView struct {
	FormID string
	Panel  schema.Panel
	Entity types.Entity
	Notice string
	Blocks []block
	Rules  []ruleView
}

// Assembler builds a complete panel for one device: title, fields grouped
// into sections, the save control and the visibility bindings.
type Assembler struct {
	state     store.StateStore
	namespace string
	ids       IDScheme
	fields    *Renderer
	log       *zap.Logger
}

// NewAssembler creates an assembler reading state variables under namespace.
// It shares the field renderer's templates.
func NewAssembler(state store.StateStore, namespace string, ids IDScheme, fields *Renderer, log *zap.Logger) *Assembler {
	return &Assembler{
		state:     state,
		namespace: namespace,
		ids:       ids,
		fields:    fields,
		log:       log,
	}
}

// Assemble renders panel p for device e. A disabled device gets only the
// disabled notice. A checkbox list with an empty device list replaces the
// whole form with the panel's empty-list notice.
func (a *Assembler) Assemble(ctx context.Context, p schema.Panel, e types.Entity) (template.HTML, error) {
	view := panelView{
		FormID: a.ids.FormID(p.Name, e.ID),
		Panel:  p,
		Entity: e,
	}
	if e.Disabled {
		view.Notice = p.DisabledNotice
		return a.execute(view)
	}

	values := make(map[string]string, len(p.Fields))
	for _, f := range p.Fields {
		values[f.Key] = a.current(ctx, f, e)
	}

	lists := make(map[string][]types.DeviceListEntry)
	for _, f := range p.Fields {
		if f.Kind != schema.KindCheckboxList {
			continue
		}
		entries, err := a.deviceList(ctx, f, e.ID)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			view.Notice = p.EmptyListNotice
			if view.Notice == "" {
				view.Notice = "No devices found."
			}
			return a.execute(view)
		}
		lists[f.Key] = entries
	}

	for _, f := range p.Fields {
		markup, err := a.fields.Render(f, values[f.Key], e.ID, lists[f.Key])
		if err != nil {
			return "", err
		}
		// Consecutive fields of the same section share one container.
		n := len(view.Blocks)
		sectionID := ""
		if f.Section != "" {
			sectionID = a.ids.SectionID(f.Section, e.ID)
		}
		if n == 0 || view.Blocks[n-1].SectionID != sectionID {
			view.Blocks = append(view.Blocks, block{
				SectionID: sectionID,
				Visible:   sectionVisible(p, f.Section, values),
			})
			n++
		}
		view.Blocks[n-1].Fields = append(view.Blocks[n-1].Fields, markup)
	}

	for _, r := range p.Rules {
		view.Rules = append(view.Rules, ruleView{
			ControlID: a.ids.ElementID(r.Field, e.ID),
			Operator:  r.Operator,
			Value:     r.Value,
			SectionID: a.ids.SectionID(r.Section, e.ID),
		})
	}
	return a.execute(view)
}

// current resolves a field's pre-populated value. Failed state reads
// degrade to "".
func (a *Assembler) current(ctx context.Context, f schema.Field, e types.Entity) string {
	switch f.Source {
	case schema.SourceAttribute:
		switch f.Attribute {
		case types.AttrIP:
			return e.NetworkAddress
		case types.AttrName:
			return e.Name
		}
		return ""
	case schema.SourceLiteral:
		return f.Default
	}
	v, err := store.ReadValue(ctx, a.state, e.ID, a.namespace, f.Key)
	if err != nil {
		a.log.Debug("reading state variable failed",
			zap.String("entity_id", e.ID),
			zap.String("key", f.Key),
			zap.Error(err))
		return ""
	}
	return v
}

func (a *Assembler) deviceList(ctx context.Context, f schema.Field, entityID string) ([]types.DeviceListEntry, error) {
	raw, err := store.ReadValue(ctx, a.state, entityID, a.namespace, f.ListSource)
	if err != nil {
		a.log.Debug("reading device list failed",
			zap.String("entity_id", entityID),
			zap.String("key", f.ListSource),
			zap.Error(err))
	}
	entries, err := ParseDeviceList(raw)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", f.Key, err)
	}
	return entries, nil
}

// sectionVisible applies the rules targeting section to the values the
// panel was rendered with. A section without rules is shown.
func sectionVisible(p schema.Panel, section string, values map[string]string) bool {
	if section == "" {
		return true
	}
	for _, r := range p.Rules {
		if r.Section == section && !r.Visible(values[r.Field]) {
			return false
		}
	}
	return true
}

func (a *Assembler) execute(v panelView) (template.HTML, error) {
	var buf bytes.Buffer
	if err := a.fields.tmpl.ExecuteTemplate(&buf, "panel", v); err != nil {
		return "", fmt.Errorf("rendering panel %s: %w", v.Panel.Name, err)
	}
	return template.HTML(buf.String()), nil
}
