package event

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/bridgepanel/internal/store"
)

type publisherFunc func(ctx context.Context, evt Event)

func (f publisherFunc) Publish(ctx context.Context, evt Event) { f(ctx, evt) }

func TestStoreRecorder_WritesThenPublishes(t *testing.T) {
	ctx := context.Background()
	log := store.NewMemoryStore()
	rec := NewStoreRecorder(log)

	var published []Event
	rec.SetPublisher(publisherFunc(func(_ context.Context, evt Event) {
		published = append(published, evt)
	}))

	evt := NewSettingsSaved("12", SettingsSavedPayload{
		Panel:   "settings",
		Written: []string{"UserID", "LogLevel"},
		Skipped: []string{"IPAddress"},
	})
	require.NoError(t, rec.Record(ctx, evt))

	require.Len(t, published, 1)
	assert.Equal(t, evt.ID, published[0].ID)

	entries, err := log.EventsByEntity(ctx, "12", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, TypeSettingsSaved, entries[0].EventType)
	assert.Equal(t, "Saved 2 values from the settings panel of device 12", entries[0].Summary)

	var p SettingsSavedPayload
	require.NoError(t, json.Unmarshal(entries[0].Payload, &p))
	assert.Equal(t, []string{"IPAddress"}, p.Skipped)
}

func TestNewBusyChanged(t *testing.T) {
	busy := NewBusyChanged("12", true)
	assert.Equal(t, "Panel for device 12 is busy", busy.Summary)
	assert.JSONEq(t, `{"busy":true}`, string(busy.Payload))
	assert.NotEmpty(t, busy.ID)

	idle := NewBusyChanged("12", false)
	assert.JSONEq(t, `{"busy":false}`, string(idle.Payload))
	assert.NotEqual(t, busy.ID, idle.ID)
}
