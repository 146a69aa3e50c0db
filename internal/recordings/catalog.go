package recordings

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Catalog stores the last known recordings of every target.
type Catalog interface {
	// Replace sets the full recording list of a target, dropping any
	// recording that is no longer present.
	Replace(ctx context.Context, targetID string, recs []Recording) error
	Upsert(ctx context.Context, rec Recording) error
	List(ctx context.Context, targetID string) ([]Recording, error)
	Get(ctx context.Context, targetID, name string) (Recording, error)
	DeleteTarget(ctx context.Context, targetID string) error
}

// MemoryCatalog is a Catalog held in process memory.
type MemoryCatalog struct {
	mu       sync.RWMutex
	byTarget map[string]map[string]Recording
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{byTarget: make(map[string]map[string]Recording)}
}

func (m *MemoryCatalog) Replace(_ context.Context, targetID string, recs []Recording) error {
	next := make(map[string]Recording, len(recs))
	for _, r := range recs {
		r.TargetID = targetID
		next[r.Name] = r
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.byTarget[targetID] = next
	return nil
}

func (m *MemoryCatalog) Upsert(_ context.Context, rec Recording) error {
	if rec.TargetID == "" || rec.Name == "" {
		return fmt.Errorf("recording needs a target id and a name")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	recs, ok := m.byTarget[rec.TargetID]
	if !ok {
		recs = make(map[string]Recording)
		m.byTarget[rec.TargetID] = recs
	}
	recs[rec.Name] = rec
	return nil
}

// List returns the target's recordings ordered by name.
func (m *MemoryCatalog) List(_ context.Context, targetID string) ([]Recording, error) {
	m.mu.RLock()
	recs := m.byTarget[targetID]
	out := make([]Recording, 0, len(recs))
	for _, r := range recs {
		out = append(out, r)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryCatalog) Get(_ context.Context, targetID, name string) (Recording, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.byTarget[targetID][name]
	if !ok {
		return Recording{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryCatalog) DeleteTarget(_ context.Context, targetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byTarget, targetID)
	return nil
}
