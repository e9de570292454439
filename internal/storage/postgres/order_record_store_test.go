package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantsim/internal/domain"
	"quantsim/internal/storage"
)

func createTestOrderRecord(runID string, step, column, attempt int) *domain.OrderRecord {
	return &domain.OrderRecord{
		RunID:         runID,
		Step:          step,
		Column:        column,
		Attempt:       attempt,
		Side:          domain.SideBuy,
		RequestedSize: 2.0,
		FilledSize:    2.0,
		Price:         50.0,
		FillPrice:     50.05,
		Fees:          0.1,
		Status:        domain.OrderFilled,
	}
}

func TestOrderRecordStore_InsertBulkAndGetByRunID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOrderRecordStore(pool)

	orders := []*domain.OrderRecord{
		createTestOrderRecord("run-1", 1, 0, 0),
		createTestOrderRecord("run-1", 0, 1, 0),
		createTestOrderRecord("run-1", 0, 0, 0),
	}

	err := store.InsertBulk(ctx, orders)
	require.NoError(t, err)

	retrieved, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, retrieved, 3)

	// Ordered by (step, column_idx, attempt)
	assert.Equal(t, 0, retrieved[0].Step)
	assert.Equal(t, 0, retrieved[0].Column)
	assert.Equal(t, 0, retrieved[1].Step)
	assert.Equal(t, 1, retrieved[1].Column)
	assert.Equal(t, 1, retrieved[2].Step)
}

func TestOrderRecordStore_DuplicateBatch(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOrderRecordStore(pool)

	orders := []*domain.OrderRecord{createTestOrderRecord("run-1", 0, 0, 0)}

	require.NoError(t, store.InsertBulk(ctx, orders))

	err := store.InsertBulk(ctx, orders)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestOrderRecordStore_AtomicBatch(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOrderRecordStore(pool)

	require.NoError(t, store.InsertBulk(ctx, []*domain.OrderRecord{
		createTestOrderRecord("run-1", 0, 0, 0),
	}))

	// Second batch collides on its last row; the first row must roll back
	err := store.InsertBulk(ctx, []*domain.OrderRecord{
		createTestOrderRecord("run-1", 5, 0, 0),
		createTestOrderRecord("run-1", 0, 0, 0),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	retrieved, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, retrieved, 1)
}

func TestOrderRecordStore_RejectedOrderRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOrderRecordStore(pool)

	rejected := createTestOrderRecord("run-1", 2, 0, 0)
	rejected.FilledSize = 0
	rejected.Status = domain.OrderRejected
	rejected.Reason = domain.ReasonInsufficientCash

	require.NoError(t, store.InsertBulk(ctx, []*domain.OrderRecord{rejected}))

	retrieved, err := store.GetByColumn(ctx, "run-1", 0)
	require.NoError(t, err)
	require.Len(t, retrieved, 1)
	assert.Equal(t, domain.OrderRejected, retrieved[0].Status)
	assert.Equal(t, domain.ReasonInsufficientCash, retrieved[0].Reason)
	assert.Zero(t, retrieved[0].FilledSize)
}

func TestOrderRecordStore_GetByColumnFilters(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOrderRecordStore(pool)

	require.NoError(t, store.InsertBulk(ctx, []*domain.OrderRecord{
		createTestOrderRecord("run-1", 0, 0, 0),
		createTestOrderRecord("run-1", 0, 1, 0),
		createTestOrderRecord("run-2", 0, 0, 0),
	}))

	retrieved, err := store.GetByColumn(ctx, "run-1", 0)
	require.NoError(t, err)
	assert.Len(t, retrieved, 1)
}
