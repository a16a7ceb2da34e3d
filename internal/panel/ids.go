// Package panel renders the bridge device's settings panels and writes the
// submitted values back to the device store.
package panel

import (
	"regexp"
	"strconv"
)

// DefaultPrefix is prepended to every element id the panels emit.
const DefaultPrefix = "vbEzloBridge_"

var entityIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidEntityID reports whether id can be embedded in element ids. Keys and
// device ids never contain "-", which keeps ids unique across devices.
func ValidEntityID(id string) bool {
	return entityIDPattern.MatchString(id)
}

// IDScheme derives element ids and form field names. Ids are unique per
// (key, device) as long as neither contains "-".
type IDScheme struct {
	Prefix string
}

// ElementID is the id and form name of the control for key on device entityID.
func (s IDScheme) ElementID(key, entityID string) string {
	return s.Prefix + key + "-" + entityID
}

// ItemID is the id of the i-th checkbox of a checkbox list.
func (s IDScheme) ItemID(key, entityID string, i int) string {
	return s.ElementID(key, entityID) + "-" + strconv.Itoa(i)
}

// ToggleID is the id of a password field's show-password checkbox.
func (s IDScheme) ToggleID(key, entityID string) string {
	return s.ElementID(key, entityID) + "-show"
}

func (s IDScheme) SectionID(section, entityID string) string {
	return s.Prefix + "section_" + section + "-" + entityID
}

func (s IDScheme) FormID(panel, entityID string) string {
	return s.Prefix + "panel_" + panel + "-" + entityID
}
