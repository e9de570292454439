package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"quantsim/internal/domain"
	"quantsim/internal/storage"
)

// OrderRecordStore implements storage.OrderRecordStore using PostgreSQL.
type OrderRecordStore struct {
	pool *Pool
}

// NewOrderRecordStore creates a new OrderRecordStore.
func NewOrderRecordStore(pool *Pool) *OrderRecordStore {
	return &OrderRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OrderRecordStore = (*OrderRecordStore)(nil)

const orderColumns = `
	run_id, step, column_idx, attempt,
	side, requested_size, filled_size,
	price, fill_price, fees, status, reason
`

// InsertBulk adds an order log atomically. Fails entire batch on any duplicate.
func (s *OrderRecordStore) InsertBulk(ctx context.Context, orders []*domain.OrderRecord) (err error) {
	defer func(start time.Time) { observeQuery("order_records_insert_bulk", start, err) }(time.Now())

	if len(orders) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO order_records (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	for _, o := range orders {
		_, err := tx.Exec(ctx, query,
			o.RunID, o.Step, o.Column, o.Attempt,
			string(o.Side), o.RequestedSize, o.FilledSize,
			o.Price, o.FillPrice, o.Fees, string(o.Status), o.Reason,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert order record in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByRunID retrieves all orders for a run, ordered by (step, column, attempt) ASC.
func (s *OrderRecordStore) GetByRunID(ctx context.Context, runID string) (orders []*domain.OrderRecord, err error) {
	defer func(start time.Time) { observeQuery("order_records_get_by_run_id", start, err) }(time.Now())

	query := `
		SELECT ` + orderColumns + `
		FROM order_records
		WHERE run_id = $1
		ORDER BY step ASC, column_idx ASC, attempt ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get order records by run id: %w", err)
	}
	defer rows.Close()

	return scanOrderRecords(rows)
}

// GetByColumn retrieves a single column's orders for a run, ordered by step ASC.
func (s *OrderRecordStore) GetByColumn(ctx context.Context, runID string, column int) (orders []*domain.OrderRecord, err error) {
	defer func(start time.Time) { observeQuery("order_records_get_by_column", start, err) }(time.Now())

	query := `
		SELECT ` + orderColumns + `
		FROM order_records
		WHERE run_id = $1 AND column_idx = $2
		ORDER BY step ASC, attempt ASC
	`

	rows, err := s.pool.Query(ctx, query, runID, column)
	if err != nil {
		return nil, fmt.Errorf("get order records by column: %w", err)
	}
	defer rows.Close()

	return scanOrderRecords(rows)
}

// scanOrderRecords scans multiple rows into a slice of OrderRecord.
func scanOrderRecords(rows pgx.Rows) ([]*domain.OrderRecord, error) {
	var orders []*domain.OrderRecord

	for rows.Next() {
		var o domain.OrderRecord
		var side, status string

		err := rows.Scan(
			&o.RunID, &o.Step, &o.Column, &o.Attempt,
			&side, &o.RequestedSize, &o.FilledSize,
			&o.Price, &o.FillPrice, &o.Fees, &status, &o.Reason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order record row: %w", err)
		}

		o.Side = domain.Side(side)
		o.Status = domain.OrderStatus(status)
		orders = append(orders, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order record rows: %w", err)
	}

	return orders, nil
}
