// Package store is the host's durable key/value layer: device descriptors,
// namespaced device state variables, configuration snapshots and the panel
// event log.
package store

import (
	"context"
	"errors"

	"github.com/matthewbaird/bridgepanel/internal/types"
)

// ErrNotFound is returned when a device does not exist.
var ErrNotFound = errors.New("store: not found")

// StateStore reads and writes device state variables scoped by namespace.
type StateStore interface {
	// GetValue returns the stored value and whether it exists.
	GetValue(ctx context.Context, entityID, namespace, key string) (string, bool, error)

	// SetValue durably writes a value, creating the variable if needed.
	SetValue(ctx context.Context, entityID, namespace, key, value string) error
}

// EntityStore reads device descriptors and writes host attributes.
type EntityStore interface {
	Entity(ctx context.Context, id string) (types.Entity, error)
	PutEntity(ctx context.Context, e types.Entity) error
	SetAttribute(ctx context.Context, id, name, value string) error
}

// SnapshotStore captures the whole configuration as one document.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, force bool) (string, error)
}

// EventLog stores panel events for later inspection.
type EventLog interface {
	WriteEvents(ctx context.Context, entries []types.EventEntry) error
	EventsByEntity(ctx context.Context, entityID string, limit int) ([]types.EventEntry, error)
}

// Store is everything the service needs from persistence.
type Store interface {
	StateStore
	EntityStore
	SnapshotStore
	EventLog

	// Variables lists every state variable of a device.
	Variables(ctx context.Context, entityID string) ([]types.Variable, error)
}

// Normalize maps a missing read, or the literal "null" some writers leave
// behind, to the empty string.
func Normalize(value string, ok bool) string {
	if !ok || value == "null" {
		return ""
	}
	return value
}

// ReadValue reads a state variable and degrades every failure to "".
// The error is returned alongside so callers can log it.
func ReadValue(ctx context.Context, s StateStore, entityID, namespace, key string) (string, error) {
	v, ok, err := s.GetValue(ctx, entityID, namespace, key)
	if err != nil {
		return "", err
	}
	return Normalize(v, ok), nil
}

const defaultEventLimit = 50

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return defaultEventLimit
	}
	return limit
}
