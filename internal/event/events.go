package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/matthewbaird/bridgepanel/internal/types"
)

// Event types emitted by the panel and its host collaborators.
const (
	TypePanelRendered = "panel_rendered"
	TypePanelClosed   = "panel_closed"
	TypeBusyChanged   = "busy_changed"
	TypeMessageShown  = "message_shown"
	TypeSettingsSaved = "settings_saved"
	TypeSnapshotSaved = "snapshot_saved"
	TypeActionInvoked = "action_invoked"
)

// Event carries the canonical shape of every panel event.
type Event struct {
	ID         string
	EventType  string
	EntityID   string
	OccurredAt time.Time
	Summary    string
	Payload    json.RawMessage
}

// Entry converts the event to its stored form.
func (e Event) Entry() types.EventEntry {
	return types.EventEntry{
		EventID:    e.ID,
		EventType:  e.EventType,
		EntityID:   e.EntityID,
		OccurredAt: e.OccurredAt,
		Summary:    e.Summary,
		Payload:    e.Payload,
	}
}

func newID() string { return uuid.New().String() }

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func newEvent(eventType, entityID, summary string, payload any) Event {
	return Event{
		ID:         newID(),
		EventType:  eventType,
		EntityID:   entityID,
		OccurredAt: time.Now(),
		Summary:    summary,
		Payload:    mustJSON(payload),
	}
}

// ── Shell events ─────────────────────────────────────────────────────────────

type PanelPayload struct {
	Panel string `json:"panel,omitempty"`
	Bytes int    `json:"bytes,omitempty"`
}

func NewPanelRendered(entityID, panel string, size int) Event {
	return newEvent(TypePanelRendered, entityID,
		fmt.Sprintf("Panel %s rendered for device %s", panel, entityID),
		PanelPayload{Panel: panel, Bytes: size})
}

func NewPanelClosed(entityID string) Event {
	return newEvent(TypePanelClosed, entityID,
		fmt.Sprintf("Panel closed for device %s", entityID),
		PanelPayload{})
}

// BusyPayload carries the new busy state of a device panel.
type BusyPayload struct {
	Busy bool `json:"busy"`
}

func NewBusyChanged(entityID string, busy bool) Event {
	state := "idle"
	if busy {
		state = "busy"
	}
	return newEvent(TypeBusyChanged, entityID,
		fmt.Sprintf("Panel for device %s is %s", entityID, state),
		BusyPayload{Busy: busy})
}

// MessagePayload carries a transient notification text.
type MessagePayload struct {
	Text string `json:"text"`
}

func NewMessageShown(entityID, text string) Event {
	return newEvent(TypeMessageShown, entityID, text, MessagePayload{Text: text})
}

// ── Save round trip events ───────────────────────────────────────────────────

// SettingsSavedPayload lists the keys written by one save.
type SettingsSavedPayload struct {
	Panel   string   `json:"panel"`
	Written []string `json:"written"`
	Skipped []string `json:"skipped,omitempty"`
}

func NewSettingsSaved(entityID string, p SettingsSavedPayload) Event {
	return newEvent(TypeSettingsSaved, entityID,
		fmt.Sprintf("Saved %d values from the %s panel of device %s", len(p.Written), p.Panel, entityID), p)
}

type SnapshotSavedPayload struct {
	SnapshotID string `json:"snapshot_id"`
	Force      bool   `json:"force"`
}

// NewSnapshotSaved is not tied to a single device; it is indexed under the
// gateway device id.
func NewSnapshotSaved(gatewayID string, p SnapshotSavedPayload) Event {
	return newEvent(TypeSnapshotSaved, gatewayID,
		fmt.Sprintf("Configuration snapshot %s saved", p.SnapshotID), p)
}

type ActionPayload struct {
	ServiceID string            `json:"service_id"`
	Action    string            `json:"action"`
	Params    map[string]string `json:"params,omitempty"`
}

func NewActionInvoked(targetID string, p ActionPayload) Event {
	return newEvent(TypeActionInvoked, targetID,
		fmt.Sprintf("Action %s invoked on device %s", p.Action, targetID), p)
}
