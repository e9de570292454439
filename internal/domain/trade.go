package domain

// TradeDirection is the sign of a trade's position.
type TradeDirection string

// Trade direction constants
const (
	TradeLong  TradeDirection = "LONG"
	TradeShort TradeDirection = "SHORT"
)

// TradeStatus marks whether a trade's position lifecycle has completed.
type TradeStatus string

// Trade status constants
const (
	TradeOpen   TradeStatus = "OPEN"
	TradeClosed TradeStatus = "CLOSED"
)

// Exit reason codes
const (
	ExitReasonClose    = "CLOSE"    // position returned to zero
	ExitReasonReversal = "REVERSAL" // position crossed zero to the opposite sign
	ExitReasonEndOfRun = "END"      // still open when the run finished
)

// TradeRecord is one immutable row of the trade log: a position-lifecycle
// span from zero-crossing open to zero-crossing close or reversal.
// Corresponds to the trade_records table.
type TradeRecord struct {
	TradeID string // deterministic hash
	RunID   string
	Column  int

	Direction TradeDirection
	Size      float64 // peak absolute size of the span

	EntryStep  int
	EntryPrice float64 // size-weighted average entry price
	EntryFees  float64

	ExitStep  int     // -1 while open
	ExitPrice float64 // size-weighted average exit price; 0 while open
	ExitFees  float64

	PnL    float64 // realized, net of attributable fees
	Return float64 // PnL / (EntryPrice * Size); 0 when entry value is 0

	Status     TradeStatus
	ExitReason string // "END" for trades still open when the run finished
}

// EquityPoint is one row of the optional per-step valuation snapshot log,
// taken after all of a column's fills for the step were applied.
// Corresponds to the equity_points table.
type EquityPoint struct {
	RunID  string
	Step   int
	Column int

	Price    float64 // valuation price for the step
	Cash     float64 // free cash; an equal share of the pool when cash sharing
	Position float64 // signed position size
	Value    float64 // cash share + position*price; sums to portfolio value per step
}

// AccountState is the final per-column account snapshot returned by a run.
type AccountState struct {
	Column int

	Cash          float64 // free cash (the group pool when cash sharing)
	Position      float64 // signed
	AvgEntryPrice float64 // weighted average entry of the open position, 0 when flat
	RealizedPnL   float64
	FeesPaid      float64
}
