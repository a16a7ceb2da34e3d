// Package schema loads the declarative panel definitions (field lists,
// sections and visibility rules) from CUE.
package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed panels.cue
var builtinPanels []byte

// Panel names shipped with the builtin definitions.
const (
	PanelSettings = "settings"
	PanelBridge   = "bridge"
)

// ErrUnknownPanel is returned when a panel name has no definition.
var ErrUnknownPanel = errors.New("schema: unknown panel")

// Keys and section ids end up inside element ids, joined with "-".
var identPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Kind identifies how a field is rendered and serialized.
type Kind string

const (
	KindText         Kind = "text"
	KindPassword     Kind = "password"
	KindSingleSelect Kind = "singleSelect"
	KindMultiSelect  Kind = "multiSelect"
	KindCheckboxList Kind = "checkboxList"
)

// IsSelect reports whether the kind renders as a dropdown.
func (k Kind) IsSelect() bool {
	return k == KindSingleSelect || k == KindMultiSelect
}

// Source says where a field's pre-populated value is read from.
type Source string

const (
	SourceState     Source = "state"
	SourceAttribute Source = "attribute"
	SourceLiteral   Source = "literal"
)

type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Field is one entry of a panel's field list. Fields are immutable once loaded.
type Field struct {
	Key           string   `json:"key"`
	Label         string   `json:"label"`
	Kind          Kind     `json:"kind"`
	Size          int      `json:"size"`
	Options       []Option `json:"options"`
	Source        Source   `json:"source"`
	Attribute     string   `json:"attribute"`
	Default       string   `json:"default"`
	KeepWhenEmpty bool     `json:"keepWhenEmpty"`
	Section       string   `json:"section"`
	ListSource    string   `json:"listSource"`
}

// VisibilityRule shows Section when the value of Field satisfies the operator.
type VisibilityRule struct {
	Field    string `json:"field"`
	Operator string `json:"operator"` // "eq" or "neq"
	Value    string `json:"value"`
	Section  string `json:"section"`
}

// Visible evaluates the rule against the controlling field's current value.
func (r VisibilityRule) Visible(value string) bool {
	if r.Operator == "neq" {
		return value != r.Value
	}
	return value == r.Value
}

type Panel struct {
	Name            string           `json:"name"`
	ContainerClass  string           `json:"containerClass"`
	SaveAction      string           `json:"saveAction"`
	SuccessMessage  string           `json:"successMessage"`
	DisabledNotice  string           `json:"disabledNotice"`
	EmptyListNotice string           `json:"emptyListNotice"`
	Fields          []Field          `json:"fields"`
	Rules           []VisibilityRule `json:"rules"`
}

// Field returns the field with the given key.
func (p Panel) Field(key string) (Field, bool) {
	for _, f := range p.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Definitions is the decoded form of a panels CUE document.
// DeviceListKey is the list source of checkbox lists that name none.
type Definitions struct {
	Namespace     string           `json:"namespace"`
	DeviceListKey string           `json:"deviceListKey"`
	Panels        map[string]Panel `json:"panels"`
}

// Panel looks up a panel by name.
func (d *Definitions) Panel(name string) (Panel, error) {
	p, ok := d.Panels[name]
	if !ok {
		return Panel{}, fmt.Errorf("%w: %s", ErrUnknownPanel, name)
	}
	return p, nil
}

// Load decodes the builtin panel definitions.
func Load() (*Definitions, error) {
	return compile("panels.cue", builtinPanels)
}

// LoadFile decodes panel definitions from a CUE file on disk.
func LoadFile(path string) (*Definitions, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading panel definitions: %w", err)
	}
	return compile(path, src)
}

func compile(filename string, src []byte) (*Definitions, error) {
	ctx := cuecontext.New()
	val := ctx.CompileBytes(src, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("compiling %s: %w", filename, err)
	}

	var defs Definitions
	if err := val.Decode(&defs); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filename, err)
	}
	for name, p := range defs.Panels {
		p.Name = name
		defs.Panels[name] = p
	}
	if err := defs.validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", filename, err)
	}
	return &defs, nil
}

// validate checks references the CUE schema cannot express and fills in
// default list sources.
func (d *Definitions) validate() error {
	if d.Namespace == "" {
		return errors.New("namespace is empty")
	}
	if len(d.Panels) == 0 {
		return errors.New("no panels defined")
	}
	for name, p := range d.Panels {
		sections := map[string]bool{}
		seen := map[string]bool{}
		for i := range p.Fields {
			f := &p.Fields[i]
			if f.Kind == KindCheckboxList && f.ListSource == "" {
				f.ListSource = d.DeviceListKey
			}
			if !identPattern.MatchString(f.Key) {
				return fmt.Errorf("panel %s: invalid field key %q", name, f.Key)
			}
			if f.Section != "" && !identPattern.MatchString(f.Section) {
				return fmt.Errorf("panel %s: invalid section id %q", name, f.Section)
			}
			if seen[f.Key] {
				return fmt.Errorf("panel %s: duplicate field %q", name, f.Key)
			}
			seen[f.Key] = true
			if f.Section != "" {
				sections[f.Section] = true
			}
			switch {
			case f.Kind.IsSelect() && len(f.Options) == 0:
				return fmt.Errorf("panel %s: field %s has no options", name, f.Key)
			case f.Kind == KindCheckboxList && f.ListSource == "":
				return fmt.Errorf("panel %s: field %s has no list source", name, f.Key)
			case f.Source == SourceAttribute && f.Attribute == "":
				return fmt.Errorf("panel %s: field %s reads an attribute but names none", name, f.Key)
			}
		}
		for _, r := range p.Rules {
			if !seen[r.Field] {
				return fmt.Errorf("panel %s: rule references unknown field %q", name, r.Field)
			}
			if !sections[r.Section] {
				return fmt.Errorf("panel %s: rule references unknown section %q", name, r.Section)
			}
		}
	}
	return nil
}
