package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/gleehq/interviewd/internal/graph"
)

type memoryEntry[T graph.State[T]] struct {
	checkpoint *Checkpoint[T]
	expiresAt  time.Time
}

// MemoryStore keeps checkpoints in process memory. A non-zero TTL bounds the
// lifetime of idle sessions; every save refreshes the deadline.
type MemoryStore[T graph.State[T]] struct {
	checkpoints map[Key]memoryEntry[T]
	ttl         time.Duration
	mu          sync.RWMutex
}

func NewMemoryStore[T graph.State[T]](ttl time.Duration) *MemoryStore[T] {
	return &MemoryStore[T]{
		checkpoints: make(map[Key]memoryEntry[T]),
		ttl:         ttl,
	}
}

func (m *MemoryStore[T]) Save(_ context.Context, checkpoint Checkpoint[T]) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	checkpoint.Meta.UpdatedAt = time.Now()
	entry := memoryEntry[T]{checkpoint: &checkpoint}
	if m.ttl > 0 {
		entry.expiresAt = time.Now().Add(m.ttl)
	}
	m.checkpoints[checkpoint.Key] = entry
	return nil
}

func (m *MemoryStore[T]) Load(_ context.Context, key Key) (*Checkpoint[T], error) {
	m.mu.RLock()
	entry, exists := m.checkpoints[key]
	m.mu.RUnlock()

	if !exists {
		return nil, errors.Wrapf(ErrNotFound, "%s/%s", key.GraphID, key.SessionID)
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.checkpoints, key)
		m.mu.Unlock()
		return nil, errors.Wrapf(ErrNotFound, "%s/%s expired", key.GraphID, key.SessionID)
	}
	return entry.checkpoint, nil
}

func (m *MemoryStore[T]) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.checkpoints, key)
	return nil
}

// Sweep drops all expired checkpoints and reports how many were removed.
func (m *MemoryStore[T]) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range m.checkpoints {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(m.checkpoints, key)
			removed++
		}
	}
	return removed
}
