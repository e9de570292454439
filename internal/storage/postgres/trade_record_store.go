package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"quantsim/internal/domain"
	"quantsim/internal/storage"
)

// TradeRecordStore implements storage.TradeRecordStore using PostgreSQL.
type TradeRecordStore struct {
	pool *Pool
}

// NewTradeRecordStore creates a new TradeRecordStore.
func NewTradeRecordStore(pool *Pool) *TradeRecordStore {
	return &TradeRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

const tradeColumns = `
	trade_id, run_id, column_idx, direction, size,
	entry_step, entry_price, entry_fees,
	exit_step, exit_price, exit_fees,
	pnl, trade_return, status, exit_reason
`

const tradeInsertQuery = `
	INSERT INTO trade_records (` + tradeColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
`

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeRecordStore) Insert(ctx context.Context, t *domain.TradeRecord) (err error) {
	defer func(start time.Time) { observeQuery("trade_records_insert", start, err) }(time.Now())

	_, err = s.pool.Exec(ctx, tradeInsertQuery, tradeArgs(t)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade record: %w", err)
	}
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeRecordStore) InsertBulk(ctx context.Context, trades []*domain.TradeRecord) (err error) {
	defer func(start time.Time) { observeQuery("trade_records_insert_bulk", start, err) }(time.Now())

	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range trades {
		if _, err := tx.Exec(ctx, tradeInsertQuery, tradeArgs(t)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade record in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeRecordStore) GetByID(ctx context.Context, tradeID string) (trade *domain.TradeRecord, err error) {
	defer func(start time.Time) { observeQuery("trade_records_get_by_id", start, err) }(time.Now())

	query := `
		SELECT ` + tradeColumns + `
		FROM trade_records
		WHERE trade_id = $1
	`

	row := s.pool.QueryRow(ctx, query, tradeID)
	t, err := scanTradeRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade record by id: %w", err)
	}
	return t, nil
}

// GetByRunID retrieves all trades for a run, ordered by (entry_step, column) ASC.
func (s *TradeRecordStore) GetByRunID(ctx context.Context, runID string) (trades []*domain.TradeRecord, err error) {
	defer func(start time.Time) { observeQuery("trade_records_get_by_run_id", start, err) }(time.Now())

	query := `
		SELECT ` + tradeColumns + `
		FROM trade_records
		WHERE run_id = $1
		ORDER BY entry_step ASC, column_idx ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get trade records by run id: %w", err)
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

// GetByColumn retrieves a single column's trades for a run, ordered by entry_step ASC.
func (s *TradeRecordStore) GetByColumn(ctx context.Context, runID string, column int) (trades []*domain.TradeRecord, err error) {
	defer func(start time.Time) { observeQuery("trade_records_get_by_column", start, err) }(time.Now())

	query := `
		SELECT ` + tradeColumns + `
		FROM trade_records
		WHERE run_id = $1 AND column_idx = $2
		ORDER BY entry_step ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, runID, column)
	if err != nil {
		return nil, fmt.Errorf("get trade records by column: %w", err)
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

func tradeArgs(t *domain.TradeRecord) []any {
	return []any{
		t.TradeID, t.RunID, t.Column, string(t.Direction), t.Size,
		t.EntryStep, t.EntryPrice, t.EntryFees,
		t.ExitStep, t.ExitPrice, t.ExitFees,
		t.PnL, t.Return, string(t.Status), t.ExitReason,
	}
}

// scanTradeRecord scans a single row into a TradeRecord.
func scanTradeRecord(row pgx.Row) (*domain.TradeRecord, error) {
	var t domain.TradeRecord
	var direction, status string

	err := row.Scan(
		&t.TradeID, &t.RunID, &t.Column, &direction, &t.Size,
		&t.EntryStep, &t.EntryPrice, &t.EntryFees,
		&t.ExitStep, &t.ExitPrice, &t.ExitFees,
		&t.PnL, &t.Return, &status, &t.ExitReason,
	)
	if err != nil {
		return nil, err
	}

	t.Direction = domain.TradeDirection(direction)
	t.Status = domain.TradeStatus(status)
	return &t, nil
}

// scanTradeRecords scans multiple rows into a slice of TradeRecord.
func scanTradeRecords(rows pgx.Rows) ([]*domain.TradeRecord, error) {
	var trades []*domain.TradeRecord

	for rows.Next() {
		t, err := scanTradeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade record row: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade record rows: %w", err)
	}

	return trades, nil
}
