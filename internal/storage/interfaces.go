package storage

import (
	"context"

	"quantsim/internal/domain"
)

// OrderRecordStore provides access to order_records storage.
type OrderRecordStore interface {
	// InsertBulk adds an order log atomically. Fails entire batch on duplicate
	// (run_id, step, column, attempt).
	InsertBulk(ctx context.Context, orders []*domain.OrderRecord) error

	// GetByRunID retrieves all orders for a run, ordered by (step, column, attempt) ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.OrderRecord, error)

	// GetByColumn retrieves a single column's orders for a run, ordered by step ASC.
	GetByColumn(ctx context.Context, runID string, column int) ([]*domain.OrderRecord, error)
}

// TradeRecordStore provides access to trade_records storage.
type TradeRecordStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.TradeRecord) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error)

	// GetByRunID retrieves all trades for a run, ordered by (entry_step, column) ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.TradeRecord, error)

	// GetByColumn retrieves a single column's trades for a run, ordered by entry_step ASC.
	GetByColumn(ctx context.Context, runID string, column int) ([]*domain.TradeRecord, error)
}

// EquityPointStore provides access to equity_points storage.
type EquityPointStore interface {
	// InsertBulk adds an equity curve. Fails entire batch on duplicate
	// (run_id, step, column).
	InsertBulk(ctx context.Context, points []*domain.EquityPoint) error

	// GetByRunID retrieves all points for a run, ordered by (step, column) ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.EquityPoint, error)

	// GetByColumn retrieves a single column's curve for a run, ordered by step ASC.
	GetByColumn(ctx context.Context, runID string, column int) ([]*domain.EquityPoint, error)
}

// RunAggregateStore provides access to run_aggregates storage.
type RunAggregateStore interface {
	// Insert adds a new aggregate. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, a *domain.RunAggregate) error

	// GetByRunID retrieves the aggregate for a run. Returns ErrNotFound if not exists.
	GetByRunID(ctx context.Context, runID string) (*domain.RunAggregate, error)
}
