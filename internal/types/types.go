// Package types provides the Go structs shared between the device store,
// the panel controller and the HTTP surface.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Entity is the host's descriptor for a configurable device.
type Entity struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Disabled       bool   `json:"disabled"`
	NetworkAddress string `json:"ip"`
}

// UnmarshalJSON accepts the disabled flag as a bool, a number or a numeric
// string, the way host attributes are usually written.
func (e *Entity) UnmarshalJSON(b []byte) error {
	type plain Entity
	var raw struct {
		plain
		Disabled json.RawMessage `json:"disabled"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*e = Entity(raw.plain)
	disabled, err := parseFlag(raw.Disabled)
	if err != nil {
		return fmt.Errorf("disabled: %w", err)
	}
	e.Disabled = disabled
	return nil
}

func parseFlag(raw json.RawMessage) (bool, error) {
	v := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	switch v {
	case "", "null", "0", "false":
		return false, nil
	case "1", "true":
		return true, nil
	}
	return false, fmt.Errorf("unsupported flag value %s", raw)
}

// Host attribute names accepted by SetAttribute.
const (
	AttrName = "name"
	AttrIP   = "ip"
)

// Variable is one persisted device state variable.
type Variable struct {
	EntityID  string    `json:"entity_id"`
	Namespace string    `json:"service_id"`
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeviceListEntry is a remote device offered for bridge selection.
type DeviceListEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EventEntry is a stored panel event, indexed by the entity it concerns.
type EventEntry struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	EntityID   string          `json:"entity_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Summary    string          `json:"summary"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Snapshot is the coarse "save all" document written on every settings save.
type Snapshot struct {
	ID        string     `json:"id"`
	TakenAt   time.Time  `json:"taken_at"`
	Force     bool       `json:"force"`
	Devices   []Entity   `json:"devices"`
	Variables []Variable `json:"variables"`
}
