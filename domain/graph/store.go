package graph

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrThingNotFound is returned by point lookups that match nothing.
var ErrThingNotFound = errors.New("thing not found")

// Store is the read side of the graph document store. The compiler treats
// everything it returns as read-only.
type Store interface {
	FindThing(ctx context.Context, id string) (*Thing, error)
	FindThingsByType(ctx context.Context, kind ThingKind) ([]*Thing, error)
	FindThingByName(ctx context.Context, name string) (*Thing, error)
	FindConnectionsByType(ctx context.Context, kind ConnectionType) ([]*Connection, error)
}

// Load reads every Thing and Connection kind from s into a Graph.
func Load(ctx context.Context, s Store) (*Graph, error) {
	var things []*Thing
	for _, kind := range AllKinds {
		ts, err := s.FindThingsByType(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("load %s things: %w", kind, err)
		}
		things = append(things, ts...)
	}

	var conns []*Connection
	for _, kind := range AllConnectionTypes {
		cs, err := s.FindConnectionsByType(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("load %s connections: %w", kind, err)
		}
		conns = append(conns, cs...)
	}

	return New(things, conns), nil
}

// MemoryStore is an in-process Store used by the CLI and tests. Results are
// returned in insertion order.
type MemoryStore struct {
	mu          sync.RWMutex
	things      []*Thing
	connections []*Connection
}

// NewMemoryStore creates a store holding the given records.
func NewMemoryStore(things []*Thing, connections []*Connection) *MemoryStore {
	return &MemoryStore{
		things:      slices.Clone(things),
		connections: slices.Clone(connections),
	}
}

// Put appends things and connections.
func (m *MemoryStore) Put(things []*Thing, connections []*Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.things = append(m.things, things...)
	m.connections = append(m.connections, connections...)
}

func (m *MemoryStore) FindThing(_ context.Context, id string) (*Thing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.things {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, ErrThingNotFound
}

func (m *MemoryStore) FindThingsByType(_ context.Context, kind ThingKind) ([]*Thing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Thing
	for _, t := range m.things {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MemoryStore) FindThingByName(_ context.Context, name string) (*Thing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.things {
		if t.Name() == name {
			return t, nil
		}
	}
	return nil, ErrThingNotFound
}

func (m *MemoryStore) FindConnectionsByType(_ context.Context, kind ConnectionType) ([]*Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Connection
	for _, c := range m.connections {
		if c.Type == kind {
			out = append(out, c)
		}
	}
	return out, nil
}
