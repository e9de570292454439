package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"quantsim/internal/domain"
	"quantsim/internal/metrics"
	"quantsim/internal/observability"
	"quantsim/internal/storage"
)

// Generator produces run reports from stored simulation logs.
type Generator struct {
	orderStore  storage.OrderRecordStore
	tradeStore  storage.TradeRecordStore
	equityStore storage.EquityPointStore
	aggStore    storage.RunAggregateStore
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	orderStore storage.OrderRecordStore,
	tradeStore storage.TradeRecordStore,
	equityStore storage.EquityPointStore,
	aggStore storage.RunAggregateStore,
) *Generator {
	return &Generator{
		orderStore:  orderStore,
		tradeStore:  tradeStore,
		equityStore: equityStore,
		aggStore:    aggStore,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a complete report for one run. When no stored aggregate
// exists it is computed from the logs on the fly.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	orders, err := g.orderStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load order log: %w", err)
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, storage.ErrNotFound)
	}

	trades, err := g.tradeStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load trade log: %w", err)
	}

	equity, err := g.equityStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load equity log: %w", err)
	}

	columns := countColumns(orders)

	agg, err := g.aggStore.GetByRunID(ctx, runID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("load run aggregate: %w", err)
		}
		agg = metrics.ComputeRunAggregate(runID, columns, orders, trades, equity)
	}

	observability.RecordReportGenerated()

	return &Report{
		GeneratedAt:     g.now(),
		RunID:           runID,
		Aggregate:       agg,
		ColumnSummaries: buildColumnSummaries(columns, orders, trades, equity),
		Trades:          buildTradeRows(trades),
	}, nil
}

func countColumns(orders []*domain.OrderRecord) int {
	max := 0
	for _, o := range orders {
		if o.Column > max {
			max = o.Column
		}
	}
	return max + 1
}

func buildColumnSummaries(
	columns int,
	orders []*domain.OrderRecord,
	trades []*domain.TradeRecord,
	equity []*domain.EquityPoint,
) []ColumnSummaryRow {
	rows := make([]ColumnSummaryRow, columns)
	for i := range rows {
		rows[i].Column = i
	}

	for _, o := range orders {
		if o.Column >= columns {
			continue
		}
		r := &rows[o.Column]
		r.Orders++
		switch o.Status {
		case domain.OrderFilled, domain.OrderPartial:
			r.Filled++
		case domain.OrderRejected:
			r.Rejected++
		}
		r.FeesPaid += o.Fees
	}

	for _, t := range trades {
		if t.Column >= columns {
			continue
		}
		r := &rows[t.Column]
		r.Trades++
		if t.Status == domain.TradeClosed {
			r.ClosedPnL += t.PnL
		}
	}

	// Last equity point per column
	lastStep := make([]int, columns)
	for i := range lastStep {
		lastStep[i] = -1
	}
	for _, p := range equity {
		if p.Column >= columns {
			continue
		}
		if p.Step >= lastStep[p.Column] {
			lastStep[p.Column] = p.Step
			rows[p.Column].FinalValue = p.Value
		}
	}

	return rows
}

func buildTradeRows(trades []*domain.TradeRecord) []TradeRow {
	rows := make([]TradeRow, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, TradeRow{
			TradeID:    t.TradeID,
			Column:     t.Column,
			Direction:  t.Direction,
			Size:       t.Size,
			EntryStep:  t.EntryStep,
			EntryPrice: t.EntryPrice,
			ExitStep:   t.ExitStep,
			ExitPrice:  t.ExitPrice,
			PnL:        t.PnL,
			Return:     t.Return,
			Status:     t.Status,
			ExitReason: t.ExitReason,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].EntryStep != rows[j].EntryStep {
			return rows[i].EntryStep < rows[j].EntryStep
		}
		if rows[i].Column != rows[j].Column {
			return rows[i].Column < rows[j].Column
		}
		return rows[i].TradeID < rows[j].TradeID
	})

	return rows
}
