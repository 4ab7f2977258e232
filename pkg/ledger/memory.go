package ledger

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore implements an in-memory ledger. It is safe for concurrent use
// by multiple goroutines.
//
// Events are held in insertion order in a single slice guarded by a mutex;
// ids are the 1-based insertion sequence. Nothing is ever evicted. For
// deployments needing durability use SQLiteStore, for multi-instance setups
// use RedisStore.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append records the event and returns its insertion sequence id.
func (s *MemoryStore) Append(ctx context.Context, event Event) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	if len(event.Payload) == 0 {
		return 0, fmt.Errorf("event payload cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	event.ID = int64(len(s.events) + 1)
	s.events = append(s.events, event)
	return event.ID, nil
}

// List returns up to limit events, most recent first.
func (s *MemoryStore) List(ctx context.Context, limit int) ([]Event, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	limit = normalizeLimit(limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.events)
	if limit > n {
		limit = n
	}

	out := make([]Event, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

// Len returns the number of stored events. Primarily useful for tests.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
