package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"quantsim/internal/domain"
	"quantsim/internal/storage"
)

// OrderRecordStore is an in-memory implementation of storage.OrderRecordStore.
type OrderRecordStore struct {
	mu   sync.RWMutex
	data map[string]*domain.OrderRecord // keyed by (run_id, step, column, attempt)
}

// NewOrderRecordStore creates a new in-memory order record store.
func NewOrderRecordStore() *OrderRecordStore {
	return &OrderRecordStore{
		data: make(map[string]*domain.OrderRecord),
	}
}

// Compile-time interface check.
var _ storage.OrderRecordStore = (*OrderRecordStore)(nil)

func orderKey(o *domain.OrderRecord) string {
	return fmt.Sprintf("%s|%d|%d|%d", o.RunID, o.Step, o.Column, o.Attempt)
}

// InsertBulk adds an order log atomically. Fails entire batch on any duplicate.
func (s *OrderRecordStore) InsertBulk(_ context.Context, orders []*domain.OrderRecord) error {
	if len(orders) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(orders))

	// First pass: check for duplicates (existing + intra-batch)
	for _, o := range orders {
		if o == nil || o.RunID == "" {
			return storage.ErrInvalidInput
		}

		k := orderKey(o)
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	// Second pass: insert all
	for _, o := range orders {
		copy := *o
		s.data[orderKey(o)] = &copy
	}

	return nil
}

// GetByRunID retrieves all orders for a run, ordered by (step, column, attempt) ASC.
func (s *OrderRecordStore) GetByRunID(_ context.Context, runID string) ([]*domain.OrderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OrderRecord
	for _, o := range s.data {
		if o.RunID == runID {
			copy := *o
			result = append(result, &copy)
		}
	}

	sortOrders(result)
	return result, nil
}

// GetByColumn retrieves a single column's orders for a run, ordered by step ASC.
func (s *OrderRecordStore) GetByColumn(_ context.Context, runID string, column int) ([]*domain.OrderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OrderRecord
	for _, o := range s.data {
		if o.RunID == runID && o.Column == column {
			copy := *o
			result = append(result, &copy)
		}
	}

	sortOrders(result)
	return result, nil
}

func sortOrders(orders []*domain.OrderRecord) {
	sort.Slice(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		if a.Step != b.Step {
			return a.Step < b.Step
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Attempt < b.Attempt
	})
}
