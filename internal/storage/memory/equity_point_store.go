package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"quantsim/internal/domain"
	"quantsim/internal/storage"
)

// EquityPointStore is an in-memory implementation of storage.EquityPointStore.
type EquityPointStore struct {
	mu   sync.RWMutex
	data map[string]*domain.EquityPoint // keyed by (run_id, step, column)
}

// NewEquityPointStore creates a new in-memory equity point store.
func NewEquityPointStore() *EquityPointStore {
	return &EquityPointStore{
		data: make(map[string]*domain.EquityPoint),
	}
}

// Compile-time interface check.
var _ storage.EquityPointStore = (*EquityPointStore)(nil)

func equityKey(p *domain.EquityPoint) string {
	return fmt.Sprintf("%s|%d|%d", p.RunID, p.Step, p.Column)
}

// InsertBulk adds an equity curve atomically. Fails entire batch on any duplicate.
func (s *EquityPointStore) InsertBulk(_ context.Context, points []*domain.EquityPoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(points))

	for _, p := range points {
		if p == nil || p.RunID == "" {
			return storage.ErrInvalidInput
		}

		k := equityKey(p)
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	for _, p := range points {
		copy := *p
		s.data[equityKey(p)] = &copy
	}

	return nil
}

// GetByRunID retrieves all points for a run, ordered by (step, column) ASC.
func (s *EquityPointStore) GetByRunID(_ context.Context, runID string) ([]*domain.EquityPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EquityPoint
	for _, p := range s.data {
		if p.RunID == runID {
			copy := *p
			result = append(result, &copy)
		}
	}

	sortEquity(result)
	return result, nil
}

// GetByColumn retrieves a single column's curve for a run, ordered by step ASC.
func (s *EquityPointStore) GetByColumn(_ context.Context, runID string, column int) ([]*domain.EquityPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EquityPoint
	for _, p := range s.data {
		if p.RunID == runID && p.Column == column {
			copy := *p
			result = append(result, &copy)
		}
	}

	sortEquity(result)
	return result, nil
}

func sortEquity(points []*domain.EquityPoint) {
	sort.Slice(points, func(i, j int) bool {
		a, b := points[i], points[j]
		if a.Step != b.Step {
			return a.Step < b.Step
		}
		return a.Column < b.Column
	})
}
