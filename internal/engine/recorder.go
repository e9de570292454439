package engine

import "quantsim/internal/domain"

// recorder owns the append-only output logs of one run (or of one group
// range when groups run in parallel). Records are immutable once appended.
// Capacity is pre-sized from the step×column count so the hot loop never
// reallocates.
type recorder struct {
	runID       string
	orders      []domain.OrderRecord
	trades      []domain.TradeRecord
	equity      []domain.EquityPoint
	trackEquity bool
}

func newRecorder(runID string, steps, columns int, trackEquity bool) *recorder {
	r := &recorder{
		runID:       runID,
		orders:      make([]domain.OrderRecord, 0, steps*columns),
		trades:      make([]domain.TradeRecord, 0, steps*columns),
		trackEquity: trackEquity,
	}
	if trackEquity {
		r.equity = make([]domain.EquityPoint, 0, steps*columns)
	}
	return r
}

func (r *recorder) appendOrder(rec domain.OrderRecord) {
	rec.RunID = r.runID
	r.orders = append(r.orders, rec)
}

func (r *recorder) appendTrade(rec domain.TradeRecord) {
	rec.RunID = r.runID
	r.trades = append(r.trades, rec)
}

func (r *recorder) appendEquity(rec domain.EquityPoint) {
	if !r.trackEquity {
		return
	}
	rec.RunID = r.runID
	r.equity = append(r.equity, rec)
}
