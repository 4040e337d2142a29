package notify

import (
	"context"
	"slices"
	"sync"
)

// SubscriberStore keeps the addresses subscribed to each thread.
type SubscriberStore interface {
	Add(ctx context.Context, threadID, address string) (bool, error)
	Members(ctx context.Context, threadID string) ([]string, error)
	Remove(ctx context.Context, threadID, address string) error
}

// MemoryStore is an in-process SubscriberStore. Subscriptions do not survive
// a restart.
type MemoryStore struct {
	mu      sync.Mutex
	threads map[string]map[string]struct{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string]map[string]struct{})}
}

// Add subscribes address and reports whether it was new.
func (s *MemoryStore) Add(_ context.Context, threadID, address string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.threads[threadID]
	if !ok {
		set = make(map[string]struct{})
		s.threads[threadID] = set
	}
	if _, exists := set[address]; exists {
		return false, nil
	}
	set[address] = struct{}{}
	return true, nil
}

// Members returns the sorted addresses of a thread.
func (s *MemoryStore) Members(_ context.Context, threadID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.threads[threadID]))
	for addr := range s.threads[threadID] {
		out = append(out, addr)
	}
	slices.Sort(out)
	return out, nil
}

// Remove unsubscribes address.
func (s *MemoryStore) Remove(_ context.Context, threadID, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads[threadID], address)
	return nil
}
