package domain

// RunAggregate holds per-run descriptive statistics computed from the trade
// log and the equity snapshot log after a simulation finishes.
// Corresponds to the run_aggregates table.
type RunAggregate struct {
	RunID   string
	Columns int

	// Counts
	TotalOrders   int
	FilledOrders  int
	PartialOrders int
	Rejected      int
	NoOps         int

	TotalTrades int
	OpenTrades  int
	Wins        int
	Losses      int
	WinRate     float64 // wins / closed trades

	// PnL distribution over closed trades
	TotalPnL  float64
	MeanPnL   float64
	MedianPnL float64
	PnLP10    float64
	PnLP90    float64
	PnLMin    float64
	PnLMax    float64
	PnLStddev float64

	TotalFees float64

	// Equity curve
	FinalValue           float64 // summed across columns at the last step
	MaxDrawdown          float64 // worst peak-to-trough fraction of the summed curve
	MaxConsecutiveLosses int
}
