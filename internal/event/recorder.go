// Package event provides panel event recording.
// Events are written to the event log via store.EventLog, then published to
// the in-process event bus for downstream consumers.
package event

import (
	"context"

	"github.com/matthewbaird/bridgepanel/internal/store"
	"github.com/matthewbaird/bridgepanel/internal/types"
)

// Recorder persists and publishes panel events.
type Recorder interface {
	Record(ctx context.Context, evt Event) error
}

// Publisher sends events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

// StoreRecorder implements Recorder by writing the event to the event log.
// If a Publisher is set, the event is also published to the event bus
// after the store write succeeds.
type StoreRecorder struct {
	log store.EventLog
	bus Publisher
}

// NewStoreRecorder creates a new StoreRecorder backed by the given log.
func NewStoreRecorder(log store.EventLog) *StoreRecorder {
	return &StoreRecorder{log: log}
}

// SetPublisher attaches an event bus. Events are published after store writes.
func (r *StoreRecorder) SetPublisher(p Publisher) {
	r.bus = p
}

func (r *StoreRecorder) Record(ctx context.Context, evt Event) error {
	if err := r.log.WriteEvents(ctx, []types.EventEntry{evt.Entry()}); err != nil {
		return err
	}
	if r.bus != nil {
		r.bus.Publish(ctx, evt)
	}
	return nil
}
