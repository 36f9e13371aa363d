package runs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrRunNotFound is returned when no Run matches a lookup.
	ErrRunNotFound = errors.New("run not found")
	// ErrDuplicateHash is returned by Insert when a Run with the same hash exists.
	ErrDuplicateHash = errors.New("run with this hash already exists")
)

// Store persists Runs. Implementations must reject a second Run for the
// same hash with ErrDuplicateHash.
type Store interface {
	Insert(ctx context.Context, run *Run) error
	Update(ctx context.Context, id uuid.UUID, patch Patch) error
	FindByID(ctx context.Context, id uuid.UUID) (*Run, error)
	FindByHash(ctx context.Context, hash string) (*Run, error)
	// ListOpen returns Runs started before the cutoff that have not ended.
	ListOpen(ctx context.Context, startedBefore time.Time) ([]*Run, error)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*Run
	byHash map[string]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[uuid.UUID]*Run),
		byHash: make(map[string]uuid.UUID),
	}
}

func (m *MemoryStore) Insert(_ context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byHash[run.Hash]; ok {
		return ErrDuplicateHash
	}
	if _, ok := m.byID[run.ProblemID]; ok {
		return ErrDuplicateHash
	}
	c := run.Clone()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	m.byID[c.ProblemID] = c
	m.byHash[c.Hash] = c.ProblemID
	return nil
}

func (m *MemoryStore) Update(_ context.Context, id uuid.UUID, patch Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.byID[id]
	if !ok {
		return ErrRunNotFound
	}
	patch.Apply(run)
	return nil
}

func (m *MemoryStore) FindByID(_ context.Context, id uuid.UUID) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.byID[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run.Clone(), nil
}

func (m *MemoryStore) FindByHash(ctx context.Context, hash string) (*Run, error) {
	m.mu.RLock()
	id, ok := m.byHash[hash]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrRunNotFound
	}
	return m.FindByID(ctx, id)
}

func (m *MemoryStore) ListOpen(_ context.Context, startedBefore time.Time) ([]*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Run
	for _, run := range m.byID {
		if isOpen(run, startedBefore) {
			out = append(out, run.Clone())
		}
	}
	sortByStart(out)
	return out, nil
}

func isOpen(run *Run, startedBefore time.Time) bool {
	return run.StartedAt != nil && run.EndedAt == nil && run.StartedAt.Before(startedBefore)
}
