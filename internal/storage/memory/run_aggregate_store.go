package memory

import (
	"context"
	"sync"

	"quantsim/internal/domain"
	"quantsim/internal/storage"
)

// RunAggregateStore is an in-memory implementation of storage.RunAggregateStore.
type RunAggregateStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunAggregate // keyed by run_id
}

// NewRunAggregateStore creates a new in-memory run aggregate store.
func NewRunAggregateStore() *RunAggregateStore {
	return &RunAggregateStore{
		data: make(map[string]*domain.RunAggregate),
	}
}

// Compile-time interface check.
var _ storage.RunAggregateStore = (*RunAggregateStore)(nil)

// Insert adds a new aggregate. Returns ErrDuplicateKey if run_id exists.
func (s *RunAggregateStore) Insert(_ context.Context, a *domain.RunAggregate) error {
	if a == nil || a.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *a
	s.data[a.RunID] = &copy
	return nil
}

// GetByRunID retrieves the aggregate for a run. Returns ErrNotFound if not exists.
func (s *RunAggregateStore) GetByRunID(_ context.Context, runID string) (*domain.RunAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *a
	return &copy, nil
}
