package clickhouse

import (
	"context"
	"fmt"
	"time"

	"quantsim/internal/domain"
	"quantsim/internal/storage"
)

// RunAggregateStore implements storage.RunAggregateStore using ClickHouse.
type RunAggregateStore struct {
	conn *Conn
}

// NewRunAggregateStore creates a new RunAggregateStore.
func NewRunAggregateStore(conn *Conn) *RunAggregateStore {
	return &RunAggregateStore{conn: conn}
}

// Compile-time interface check.
var _ storage.RunAggregateStore = (*RunAggregateStore)(nil)

// Insert adds a new aggregate. Returns ErrDuplicateKey if run_id exists.
func (s *RunAggregateStore) Insert(ctx context.Context, a *domain.RunAggregate) (err error) {
	defer func(start time.Time) { observeQuery("run_aggregates_insert", start, err) }(time.Now())

	// ReplacingMergeTree would silently replace, so check first to keep
	// append-only semantics.
	exists, err := s.exists(ctx, a.RunID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `
		INSERT INTO run_aggregates (
			run_id, columns,
			total_orders, filled_orders, partial_orders, rejected, no_ops,
			total_trades, open_trades, wins, losses, win_rate,
			total_pnl, mean_pnl, median_pnl, pnl_p10, pnl_p90,
			pnl_min, pnl_max, pnl_stddev,
			total_fees, final_value, max_drawdown, max_consecutive_losses
		) VALUES (
			?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?,
			?, ?, ?, ?
		)
	`

	err = s.conn.Exec(ctx, query,
		a.RunID, uint32(a.Columns),
		uint32(a.TotalOrders), uint32(a.FilledOrders), uint32(a.PartialOrders), uint32(a.Rejected), uint32(a.NoOps),
		uint32(a.TotalTrades), uint32(a.OpenTrades), uint32(a.Wins), uint32(a.Losses), a.WinRate,
		a.TotalPnL, a.MeanPnL, a.MedianPnL, a.PnLP10, a.PnLP90,
		a.PnLMin, a.PnLMax, a.PnLStddev,
		a.TotalFees, a.FinalValue, a.MaxDrawdown, uint32(a.MaxConsecutiveLosses),
	)
	if err != nil {
		return fmt.Errorf("insert run aggregate: %w", err)
	}
	return nil
}

// GetByRunID retrieves the aggregate for a run. Returns ErrNotFound if not exists.
func (s *RunAggregateStore) GetByRunID(ctx context.Context, runID string) (agg *domain.RunAggregate, err error) {
	defer func(start time.Time) { observeQuery("run_aggregates_get_by_run_id", start, err) }(time.Now())

	query := `
		SELECT
			run_id, columns,
			total_orders, filled_orders, partial_orders, rejected, no_ops,
			total_trades, open_trades, wins, losses, win_rate,
			total_pnl, mean_pnl, median_pnl, pnl_p10, pnl_p90,
			pnl_min, pnl_max, pnl_stddev,
			total_fees, final_value, max_drawdown, max_consecutive_losses
		FROM run_aggregates FINAL
		WHERE run_id = ?
		LIMIT 1
	`

	var (
		a                                        domain.RunAggregate
		columns                                  uint32
		totalOrders, filledOrders, partialOrders uint32
		rejected, noOps                          uint32
		totalTrades, openTrades, wins, losses    uint32
		maxConsecutiveLosses                     uint32
	)

	err = s.conn.QueryRow(ctx, query, runID).Scan(
		&a.RunID, &columns,
		&totalOrders, &filledOrders, &partialOrders, &rejected, &noOps,
		&totalTrades, &openTrades, &wins, &losses, &a.WinRate,
		&a.TotalPnL, &a.MeanPnL, &a.MedianPnL, &a.PnLP10, &a.PnLP90,
		&a.PnLMin, &a.PnLMax, &a.PnLStddev,
		&a.TotalFees, &a.FinalValue, &a.MaxDrawdown, &maxConsecutiveLosses,
	)
	if err != nil {
		return nil, storage.ErrNotFound
	}

	a.Columns = int(columns)
	a.TotalOrders = int(totalOrders)
	a.FilledOrders = int(filledOrders)
	a.PartialOrders = int(partialOrders)
	a.Rejected = int(rejected)
	a.NoOps = int(noOps)
	a.TotalTrades = int(totalTrades)
	a.OpenTrades = int(openTrades)
	a.Wins = int(wins)
	a.Losses = int(losses)
	a.MaxConsecutiveLosses = int(maxConsecutiveLosses)

	return &a, nil
}

func (s *RunAggregateStore) exists(ctx context.Context, runID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count() FROM run_aggregates WHERE run_id = ?`, runID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
