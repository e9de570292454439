// Package orchestrator coordinates a full simulation run.
// It wires: input matrices → kernel → log persistence → metrics aggregation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"quantsim/internal/domain"
	"quantsim/internal/engine"
	"quantsim/internal/metrics"
	"quantsim/internal/observability"
	"quantsim/internal/storage"
)

// Orchestrator runs the kernel and persists its logs.
type Orchestrator struct {
	// Stores
	orderStore  storage.OrderRecordStore
	tradeStore  storage.TradeRecordStore
	equityStore storage.EquityPointStore
	aggStore    storage.RunAggregateStore

	// Options
	workers int
	logger  *zap.Logger
}

// Options for creating Orchestrator.
type Options struct {
	// Required stores
	OrderStore  storage.OrderRecordStore
	TradeStore  storage.TradeRecordStore
	EquityStore storage.EquityPointStore
	AggStore    storage.RunAggregateStore

	// Workers bounds group-level parallelism; 0 uses GOMAXPROCS.
	Workers int

	// Logger defaults to a no-op logger when nil.
	Logger *zap.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		orderStore:  opts.OrderStore,
		tradeStore:  opts.TradeStore,
		equityStore: opts.EquityStore,
		aggStore:    opts.AggStore,
		workers:     opts.Workers,
		logger:      logger,
	}
}

// RunResult contains results from one orchestrated run.
type RunResult struct {
	RunID        string
	Orders       int
	Trades       int
	EquityPoints int
	Accounts     []domain.AccountState
	Aggregate    *domain.RunAggregate
}

// Run executes a full simulation run.
// Phases:
//  1. Simulate (kernel, group-parallel)
//  2. Persist logs
//  3. Aggregate metrics
func (o *Orchestrator) Run(ctx context.Context, in engine.RunInput) (*RunResult, error) {
	start := time.Now()

	// Phase 1: simulate
	steps, columns := 0, 0
	if in.Prices != nil {
		steps, columns = in.Prices.Steps(), in.Prices.Columns()
	}
	o.logger.Info("phase 1: simulating",
		zap.Int("steps", steps),
		zap.Int("columns", columns),
		zap.Int("workers", o.workers))

	res, err := engine.RunParallel(ctx, in, o.workers)
	if err != nil {
		observability.RecordRun("failed", time.Since(start).Seconds())
		return nil, fmt.Errorf("phase 1 (simulate) failed: %w", err)
	}
	o.logger.Info("simulation finished",
		zap.String("run_id", res.RunID),
		zap.Int("orders", len(res.Orders)),
		zap.Int("trades", len(res.Trades)))

	// Phase 2: persist logs
	if err := o.persist(ctx, res); err != nil {
		observability.RecordRun("failed", time.Since(start).Seconds())
		return nil, fmt.Errorf("phase 2 (persist) failed: %w", err)
	}

	// Phase 3: aggregate metrics
	orders := orderPtrs(res.Orders)
	trades := tradePtrs(res.Trades)
	equity := equityPtrs(res.Equity)

	agg := metrics.ComputeRunAggregate(res.RunID, in.Prices.Columns(), orders, trades, equity)
	if err := o.aggStore.Insert(ctx, agg); err != nil {
		observability.RecordRun("failed", time.Since(start).Seconds())
		return nil, fmt.Errorf("phase 3 (aggregate) failed: %w", err)
	}
	observability.RecordAggregateComputed()

	observability.RecordRun("success", time.Since(start).Seconds())
	for _, rec := range orders {
		observability.RecordOrders(string(rec.Status), 1)
	}
	for _, rec := range trades {
		observability.RecordTrades(string(rec.Status), 1)
	}
	observability.RecordEquityPoints(len(equity))
	observability.MarkRunSuccess(time.Now().Unix())
	o.logger.Info("run aggregated",
		zap.String("run_id", res.RunID),
		zap.Float64("final_value", agg.FinalValue),
		zap.Float64("win_rate", agg.WinRate))

	return &RunResult{
		RunID:        res.RunID,
		Orders:       len(res.Orders),
		Trades:       len(res.Trades),
		EquityPoints: len(res.Equity),
		Accounts:     res.Accounts,
		Aggregate:    agg,
	}, nil
}

// persist writes all logs of a finished run. A duplicate run id means the
// identical run was persisted before, which is reported as such.
func (o *Orchestrator) persist(ctx context.Context, res *engine.Result) error {
	if err := o.orderStore.InsertBulk(ctx, orderPtrs(res.Orders)); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("run %s already persisted: %w", res.RunID, err)
		}
		return fmt.Errorf("persist order log: %w", err)
	}

	if err := o.tradeStore.InsertBulk(ctx, tradePtrs(res.Trades)); err != nil {
		return fmt.Errorf("persist trade log: %w", err)
	}

	if len(res.Equity) > 0 {
		if err := o.equityStore.InsertBulk(ctx, equityPtrs(res.Equity)); err != nil {
			return fmt.Errorf("persist equity log: %w", err)
		}
	}

	return nil
}

func orderPtrs(orders []domain.OrderRecord) []*domain.OrderRecord {
	out := make([]*domain.OrderRecord, len(orders))
	for i := range orders {
		out[i] = &orders[i]
	}
	return out
}

func tradePtrs(trades []domain.TradeRecord) []*domain.TradeRecord {
	out := make([]*domain.TradeRecord, len(trades))
	for i := range trades {
		out[i] = &trades[i]
	}
	return out
}

func equityPtrs(points []domain.EquityPoint) []*domain.EquityPoint {
	out := make([]*domain.EquityPoint, len(points))
	for i := range points {
		out[i] = &points[i]
	}
	return out
}
