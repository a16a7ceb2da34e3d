package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/matthewbaird/bridgepanel/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNS = "urn:rboer-com:serviceId:EzloBridge1"

func openSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "panel.db")
	s, err := OpenSQLite(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// stores runs fn against every Store implementation.
func stores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, openSQLite(t)) })
}

func TestStore_ValueRoundTrip(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, ok, err := s.GetValue(ctx, "12", testNS, "HouseModeMirror")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.SetValue(ctx, "12", testNS, "HouseModeMirror", "1"))
		require.NoError(t, s.SetValue(ctx, "12", testNS, "HouseModeMirror", "2"))
		require.NoError(t, s.SetValue(ctx, "13", testNS, "HouseModeMirror", "0"))
		require.NoError(t, s.SetValue(ctx, "12", "urn:other", "HouseModeMirror", "9"))

		v, ok, err := s.GetValue(ctx, "12", testNS, "HouseModeMirror")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "2", v)

		v, _, _ = s.GetValue(ctx, "13", testNS, "HouseModeMirror")
		assert.Equal(t, "0", v)
	})
}

func TestStore_EmptyStringIsStored(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.SetValue(ctx, "12", testNS, "UserID", ""))

		v, ok, err := s.GetValue(ctx, "12", testNS, "UserID")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "", v)
	})
}

func TestStore_Variables(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.SetValue(ctx, "12", testNS, "UserID", "bob"))
		require.NoError(t, s.SetValue(ctx, "12", testNS, "BridgeScenes", "1"))
		require.NoError(t, s.SetValue(ctx, "99", testNS, "UserID", "eve"))

		vars, err := s.Variables(ctx, "12")
		require.NoError(t, err)
		require.Len(t, vars, 2)
		assert.Equal(t, "BridgeScenes", vars[0].Name)
		assert.Equal(t, "UserID", vars[1].Name)
		assert.Equal(t, "bob", vars[1].Value)
		assert.False(t, vars[1].UpdatedAt.IsZero())
	})
}

func TestStore_Entities(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.Entity(ctx, "12")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.PutEntity(ctx, types.Entity{ID: "12", Name: "Ezlo Bridge", NetworkAddress: "10.0.0.4"}))
		require.NoError(t, s.SetAttribute(ctx, "12", types.AttrIP, "10.0.0.5"))

		e, err := s.Entity(ctx, "12")
		require.NoError(t, err)
		assert.Equal(t, types.Entity{ID: "12", Name: "Ezlo Bridge", NetworkAddress: "10.0.0.5"}, e)

		require.NoError(t, s.PutEntity(ctx, types.Entity{ID: "12", Name: "Renamed", Disabled: true, NetworkAddress: "10.0.0.5"}))
		e, err = s.Entity(ctx, "12")
		require.NoError(t, err)
		assert.True(t, e.Disabled)
		assert.Equal(t, "Renamed", e.Name)

		assert.ErrorIs(t, s.SetAttribute(ctx, "404", types.AttrIP, "1.2.3.4"), ErrNotFound)
		assert.Error(t, s.SetAttribute(ctx, "12", "room", "Kitchen"))
	})
}

func TestStore_Events(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		entries := []types.EventEntry{
			{EventID: "e1", EventType: "busy_changed", EntityID: "12", OccurredAt: base, Summary: "busy"},
			{EventID: "e2", EventType: "message_shown", EntityID: "12", OccurredAt: base.Add(time.Second), Summary: "saved", Payload: json.RawMessage(`{"text":"ok"}`)},
			{EventID: "e3", EventType: "busy_changed", EntityID: "13", OccurredAt: base, Summary: "busy"},
		}
		require.NoError(t, s.WriteEvents(ctx, entries))
		require.NoError(t, s.WriteEvents(ctx, nil))

		got, err := s.EventsByEntity(ctx, "12", 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "e2", got[0].EventID)
		assert.JSONEq(t, `{"text":"ok"}`, string(got[0].Payload))
		assert.Equal(t, "e1", got[1].EventID)

		got, err = s.EventsByEntity(ctx, "12", 1)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestStore_SaveSnapshot(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	require.NoError(t, s.PutEntity(ctx, types.Entity{ID: "12", Name: "Ezlo Bridge"}))
	require.NoError(t, s.SetValue(ctx, "12", testNS, "LogLevel", "8"))

	id, err := s.SaveSnapshot(ctx, true)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	snap, err := s.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, snap.ID)
	assert.True(t, snap.Force)
	require.Len(t, snap.Devices, 1)
	require.Len(t, snap.Variables, 1)
	assert.Equal(t, "8", snap.Variables[0].Value)
}

func TestSQLiteStore_LatestSnapshotEmpty(t *testing.T) {
	s := openSQLite(t)
	_, err := s.LatestSnapshot(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Snapshots(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.SetValue(ctx, "12", testNS, "LogLevel", "8"))

	_, err := s.SaveSnapshot(ctx, true)
	require.NoError(t, err)
	_, err = s.SaveSnapshot(ctx, false)
	require.NoError(t, err)

	snaps := s.Snapshots()
	require.Len(t, snaps, 2)
	assert.True(t, snaps[0].Force)
	assert.False(t, snaps[1].Force)
	assert.Len(t, snaps[0].Variables, 1)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "", Normalize("x", false))
	assert.Equal(t, "", Normalize("null", true))
	assert.Equal(t, "0", Normalize("0", true))
	assert.Equal(t, "false", Normalize("false", true))
}

func TestReadValue(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	v, err := ReadValue(ctx, s, "12", testNS, "BridgeType")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, s.SetValue(ctx, "12", testNS, "BridgeType", "null"))
	v, err = ReadValue(ctx, s, "12", testNS, "BridgeType")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}
