package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matthewbaird/bridgepanel/internal/types"
)

type varKey struct {
	entityID, namespace, name string
}

// MemoryStore implements Store in memory.
// Intended for demos and testing; no database required.
type MemoryStore struct {
	mu        sync.RWMutex
	entities  map[string]types.Entity
	vars      map[varKey]types.Variable
	snapshots []types.Snapshot
	events    []types.EventEntry
	now       func() time.Time
}

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities: make(map[string]types.Entity),
		vars:     make(map[varKey]types.Variable),
		now:      time.Now,
	}
}

func (s *MemoryStore) GetValue(_ context.Context, entityID, namespace, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[varKey{entityID, namespace, key}]
	return v.Value, ok, nil
}

func (s *MemoryStore) SetValue(_ context.Context, entityID, namespace, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[varKey{entityID, namespace, key}] = types.Variable{
		EntityID:  entityID,
		Namespace: namespace,
		Name:      key,
		Value:     value,
		UpdatedAt: s.now(),
	}
	return nil
}

func (s *MemoryStore) Variables(_ context.Context, entityID string) ([]types.Variable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Variable
	for k, v := range s.vars {
		if k.entityID == entityID {
			out = append(out, v)
		}
	}
	sortVariables(out)
	return out, nil
}

func (s *MemoryStore) Entity(_ context.Context, id string) (types.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return types.Entity{}, fmt.Errorf("device %s: %w", id, ErrNotFound)
	}
	return e, nil
}

func (s *MemoryStore) PutEntity(_ context.Context, e types.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.ID] = e
	return nil
}

func (s *MemoryStore) SetAttribute(_ context.Context, id, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return fmt.Errorf("device %s: %w", id, ErrNotFound)
	}
	switch name {
	case types.AttrIP:
		e.NetworkAddress = value
	case types.AttrName:
		e.Name = value
	default:
		return fmt.Errorf("unsupported attribute %q", name)
	}
	s.entities[id] = e
	return nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, force bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := types.Snapshot{
		ID:      uuid.New().String(),
		TakenAt: s.now(),
		Force:   force,
	}
	for _, e := range s.entities {
		snap.Devices = append(snap.Devices, e)
	}
	sort.Slice(snap.Devices, func(i, j int) bool { return snap.Devices[i].ID < snap.Devices[j].ID })
	for _, v := range s.vars {
		snap.Variables = append(snap.Variables, v)
	}
	sortVariables(snap.Variables)
	s.snapshots = append(s.snapshots, snap)
	return snap.ID, nil
}

// Snapshots returns every snapshot taken so far, oldest first.
func (s *MemoryStore) Snapshots() []types.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Snapshot(nil), s.snapshots...)
}

func (s *MemoryStore) WriteEvents(_ context.Context, entries []types.EventEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, entries...)
	return nil
}

func (s *MemoryStore) EventsByEntity(_ context.Context, entityID string, limit int) ([]types.EventEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []types.EventEntry
	for _, e := range s.events {
		if e.EntityID == entityID {
			matched = append(matched, e)
		}
	}

	// Newest first.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].OccurredAt.After(matched[j].OccurredAt)
	})

	if limit = clampLimit(limit); len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func sortVariables(vs []types.Variable) {
	sort.Slice(vs, func(i, j int) bool {
		if vs[i].EntityID != vs[j].EntityID {
			return vs[i].EntityID < vs[j].EntityID
		}
		if vs[i].Namespace != vs[j].Namespace {
			return vs[i].Namespace < vs[j].Namespace
		}
		return vs[i].Name < vs[j].Name
	})
}
