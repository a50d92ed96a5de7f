package lock

import (
	"context"
	"sync"
	"time"

	"github.com/sand/chain-compliance/backend/internal/entities"
)

// MemoryStore is a process-local LeaseStore for tests and single-instance runs.
type MemoryStore struct {
	mu     sync.Mutex
	leases map[string]entities.Lease
}

// NewMemoryStore creates an empty in-memory lease store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{leases: make(map[string]entities.Lease)}
}

func (s *MemoryStore) DeleteExpired(_ context.Context, key string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lease, ok := s.leases[key]; ok && lease.Expired(now) {
		delete(s.leases, key)
	}
	return nil
}

func (s *MemoryStore) TryInsert(_ context.Context, lease entities.Lease) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.leases[lease.LockKey]; exists {
		return false, nil
	}
	s.leases[lease.LockKey] = lease
	return true, nil
}

func (s *MemoryStore) DeleteOwned(_ context.Context, key, ownerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lease, ok := s.leases[key]
	if !ok || lease.OwnerID != ownerID {
		return false, nil
	}
	delete(s.leases, key)
	return true, nil
}

// Get returns the current lease for key, if any.
func (s *MemoryStore) Get(key string) (entities.Lease, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lease, ok := s.leases[key]
	return lease, ok
}
