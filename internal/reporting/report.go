package reporting

import (
	"time"

	"quantsim/internal/domain"
)

// Report is the rendered view of one finished simulation run.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string

	// Run-level statistics
	Aggregate *domain.RunAggregate

	// Per-column breakdown (sorted by column)
	ColumnSummaries []ColumnSummaryRow

	// Trade table (sorted by entry_step, column, trade_id)
	Trades []TradeRow
}

// ColumnSummaryRow summarizes one column's activity.
type ColumnSummaryRow struct {
	Column     int
	Orders     int
	Filled     int // includes partial fills
	Rejected   int
	Trades     int
	ClosedPnL  float64
	FeesPaid   float64
	FinalValue float64 // last equity point's value, 0 without an equity log
}

// TradeRow is one row of the report's trade table.
type TradeRow struct {
	TradeID    string
	Column     int
	Direction  domain.TradeDirection
	Size       float64
	EntryStep  int
	EntryPrice float64
	ExitStep   int
	ExitPrice  float64
	PnL        float64
	Return     float64
	Status     domain.TradeStatus
	ExitReason string
}
