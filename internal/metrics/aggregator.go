package metrics

import (
	"context"
	"errors"
	"fmt"

	"quantsim/internal/domain"
	"quantsim/internal/storage"
)

// ErrNoOrders is returned when a run has no order log to aggregate.
var ErrNoOrders = errors.New("no orders available for aggregation")

// ComputeRunAggregate computes a run's statistics directly from in-memory
// logs, without touching storage.
func ComputeRunAggregate(
	runID string,
	columns int,
	orders []*domain.OrderRecord,
	trades []*domain.TradeRecord,
	equity []*domain.EquityPoint,
) *domain.RunAggregate {
	return computeFromLogs(runID, columns, orders, trades, equity)
}

// Aggregator computes run aggregates from stored simulation logs.
type Aggregator struct {
	orderStore  storage.OrderRecordStore
	tradeStore  storage.TradeRecordStore
	equityStore storage.EquityPointStore
	aggStore    storage.RunAggregateStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(
	orderStore storage.OrderRecordStore,
	tradeStore storage.TradeRecordStore,
	equityStore storage.EquityPointStore,
	aggStore storage.RunAggregateStore,
) *Aggregator {
	return &Aggregator{
		orderStore:  orderStore,
		tradeStore:  tradeStore,
		equityStore: equityStore,
		aggStore:    aggStore,
	}
}

// ComputeAggregate loads a run's logs and computes its aggregate.
// Returns ErrNoOrders if the run has no order log.
func (a *Aggregator) ComputeAggregate(ctx context.Context, runID string, columns int) (*domain.RunAggregate, error) {
	orders, err := a.orderStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load order log: %w", err)
	}
	if len(orders) == 0 {
		return nil, ErrNoOrders
	}

	trades, err := a.tradeStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load trade log: %w", err)
	}

	// The equity log is optional; an empty curve leaves FinalValue and
	// MaxDrawdown at zero.
	equity, err := a.equityStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load equity log: %w", err)
	}

	return computeFromLogs(runID, columns, orders, trades, equity), nil
}

// ComputeAndStore computes a run's aggregate and persists it.
func (a *Aggregator) ComputeAndStore(ctx context.Context, runID string, columns int) (*domain.RunAggregate, error) {
	agg, err := a.ComputeAggregate(ctx, runID, columns)
	if err != nil {
		return nil, err
	}

	if err := a.aggStore.Insert(ctx, agg); err != nil {
		return nil, fmt.Errorf("store run aggregate: %w", err)
	}

	return agg, nil
}
