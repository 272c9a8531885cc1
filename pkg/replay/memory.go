package replay

import (
	"context"
	"sync"
)

// MemoryStore keeps the most recent transitions in memory. Once capacity is
// reached the oldest transition is evicted. A capacity <= 0 is unbounded.
type MemoryStore struct {
	transitions []Transition
	capacity    int
	mu          sync.RWMutex
}

func NewMemoryStore(capacity int) *MemoryStore {
	initial := capacity
	if initial <= 0 || initial > 1024 {
		initial = 1024
	}
	return &MemoryStore{
		transitions: make([]Transition, 0, initial),
		capacity:    capacity,
	}
}

func (m *MemoryStore) Init(context.Context) error {
	return nil
}

func (m *MemoryStore) Add(_ context.Context, t Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transitions = append(m.transitions, cloneTransition(t))
	if m.capacity > 0 && len(m.transitions) > m.capacity {
		m.transitions = m.transitions[1:]
	}
	return nil
}

// List returns copies so callers cannot modify stored transitions.
func (m *MemoryStore) List(_ context.Context, runID string, limit int) ([]Transition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Transition
	for _, t := range m.transitions {
		if t.RunID != runID {
			continue
		}
		out = append(out, cloneTransition(t))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) Count(_ context.Context, runID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, t := range m.transitions {
		if t.RunID == runID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func cloneTransition(t Transition) Transition {
	t.Observation = t.Observation.Clone()
	t.Action = t.Action.Clone()
	t.NextObservation = t.NextObservation.Clone()
	return t
}
