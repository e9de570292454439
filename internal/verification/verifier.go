// Package verification checks persisted simulation logs against a
// deterministic replay: the same inputs re-run through the kernel must
// reproduce every stored order and trade record exactly.
package verification

import (
	"math"

	"quantsim/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons. Replays are
// bit-deterministic in process; the tolerance absorbs storage roundtrips.
const FloatTolerance = 1e-9

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// TradeVerification is the result of verifying a single trade record.
type TradeVerification struct {
	TradeID     string
	Match       bool
	Divergences []FieldDivergence
}

// VerificationReport summarizes a full run verification.
type VerificationReport struct {
	RunID string

	TotalOrders     int
	MatchedOrders   int
	DivergentOrders int

	TotalTrades     int
	MatchedTrades   int
	DivergentTrades int

	// MissingTrades are stored trade ids the replay did not produce;
	// ExtraTrades are replayed ids missing from storage. Either is a
	// determinism failure.
	MissingTrades []string
	ExtraTrades   []string

	Trades []TradeVerification
}

// Clean reports whether the stored logs match the replay completely.
func (r *VerificationReport) Clean() bool {
	return r.DivergentOrders == 0 && r.DivergentTrades == 0 &&
		len(r.MissingTrades) == 0 && len(r.ExtraTrades) == 0 &&
		r.TotalOrders == r.MatchedOrders
}

// CompareTradeRecords compares two trade records and returns divergences.
// Uses FloatTolerance for float64 comparisons.
func CompareTradeRecords(stored, replayed *domain.TradeRecord) []FieldDivergence {
	var divergences []FieldDivergence

	if stored.Column != replayed.Column {
		divergences = append(divergences, FieldDivergence{"Column", stored.Column, replayed.Column})
	}
	if stored.Direction != replayed.Direction {
		divergences = append(divergences, FieldDivergence{"Direction", stored.Direction, replayed.Direction})
	}
	if !floatsEqual(stored.Size, replayed.Size) {
		divergences = append(divergences, FieldDivergence{"Size", stored.Size, replayed.Size})
	}
	if stored.EntryStep != replayed.EntryStep {
		divergences = append(divergences, FieldDivergence{"EntryStep", stored.EntryStep, replayed.EntryStep})
	}
	if !floatsEqual(stored.EntryPrice, replayed.EntryPrice) {
		divergences = append(divergences, FieldDivergence{"EntryPrice", stored.EntryPrice, replayed.EntryPrice})
	}
	if !floatsEqual(stored.EntryFees, replayed.EntryFees) {
		divergences = append(divergences, FieldDivergence{"EntryFees", stored.EntryFees, replayed.EntryFees})
	}
	if stored.ExitStep != replayed.ExitStep {
		divergences = append(divergences, FieldDivergence{"ExitStep", stored.ExitStep, replayed.ExitStep})
	}
	if !floatsEqual(stored.ExitPrice, replayed.ExitPrice) {
		divergences = append(divergences, FieldDivergence{"ExitPrice", stored.ExitPrice, replayed.ExitPrice})
	}
	if !floatsEqual(stored.ExitFees, replayed.ExitFees) {
		divergences = append(divergences, FieldDivergence{"ExitFees", stored.ExitFees, replayed.ExitFees})
	}
	if !floatsEqual(stored.PnL, replayed.PnL) {
		divergences = append(divergences, FieldDivergence{"PnL", stored.PnL, replayed.PnL})
	}
	if !floatsEqual(stored.Return, replayed.Return) {
		divergences = append(divergences, FieldDivergence{"Return", stored.Return, replayed.Return})
	}
	if stored.Status != replayed.Status {
		divergences = append(divergences, FieldDivergence{"Status", stored.Status, replayed.Status})
	}
	if stored.ExitReason != replayed.ExitReason {
		divergences = append(divergences, FieldDivergence{"ExitReason", stored.ExitReason, replayed.ExitReason})
	}

	return divergences
}

// CompareOrderRecords compares two order records keyed by the same
// (step, column, attempt) and returns divergences.
func CompareOrderRecords(stored, replayed *domain.OrderRecord) []FieldDivergence {
	var divergences []FieldDivergence

	if stored.Side != replayed.Side {
		divergences = append(divergences, FieldDivergence{"Side", stored.Side, replayed.Side})
	}
	if !floatsEqual(stored.RequestedSize, replayed.RequestedSize) {
		divergences = append(divergences, FieldDivergence{"RequestedSize", stored.RequestedSize, replayed.RequestedSize})
	}
	if !floatsEqual(stored.FilledSize, replayed.FilledSize) {
		divergences = append(divergences, FieldDivergence{"FilledSize", stored.FilledSize, replayed.FilledSize})
	}
	if !floatsEqual(stored.Price, replayed.Price) {
		divergences = append(divergences, FieldDivergence{"Price", stored.Price, replayed.Price})
	}
	if !floatsEqual(stored.FillPrice, replayed.FillPrice) {
		divergences = append(divergences, FieldDivergence{"FillPrice", stored.FillPrice, replayed.FillPrice})
	}
	if !floatsEqual(stored.Fees, replayed.Fees) {
		divergences = append(divergences, FieldDivergence{"Fees", stored.Fees, replayed.Fees})
	}
	if stored.Status != replayed.Status {
		divergences = append(divergences, FieldDivergence{"Status", stored.Status, replayed.Status})
	}
	if stored.Reason != replayed.Reason {
		divergences = append(divergences, FieldDivergence{"Reason", stored.Reason, replayed.Reason})
	}

	return divergences
}

// floatsEqual treats two NaNs as equal: NaN prices are legitimate on no-op
// records for steps with no quote.
func floatsEqual(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return math.Abs(a-b) <= FloatTolerance
}
