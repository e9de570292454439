package engine

import (
	"math"

	"quantsim/internal/domain"
	"quantsim/internal/idhash"
)

// cashTolerance absorbs float drift in the non-negative-cash invariant and
// in zero-position snapping.
const cashTolerance = 1e-9

// columnState is the per-column slice of the account ledger. Cash lives on
// the group, positions on the column.
type columnState struct {
	position float64
	avgEntry float64
	realized float64
	feesPaid float64

	open     *openTrade
	tradeSeq int
}

// openTrade tracks the position-lifecycle span currently in flight for a
// column: opened when size crossed zero, closed when it returns to zero or
// reverses.
type openTrade struct {
	id        string
	direction domain.TradeDirection
	entryStep int

	entryPrice float64 // size-weighted
	size       float64 // current absolute size
	peakSize   float64
	entryFees  float64

	exitSize  float64 // cumulative closed units
	exitValue float64 // Σ closed units × exit price
	exitFees  float64
	realized  float64 // Σ per-close PnL net of exit fees
}

// ledger mutates account state by applying fills and emits trade records at
// lifecycle boundaries. One ledger spans all columns; parallel group workers
// touch disjoint indices.
type ledger struct {
	cfg   *domain.SimConfig
	runID string
	cash  []float64 // indexed by group
	cols  []columnState

	// negTol bounds how far below zero a cash balance may land before it
	// counts as an invariant violation. With rounding enabled the rounded
	// gross and fee legs of a maximally clipped buy can overdraw by up to
	// half a unit of the last decimal place.
	negTol float64
}

func newLedger(cfg *domain.SimConfig, runID string, columns int) *ledger {
	negTol := cashTolerance
	if cfg.CashPrecision >= 0 {
		negTol += 0.5 * math.Pow(10, -float64(cfg.CashPrecision))
	}
	l := &ledger{
		cfg:    cfg,
		runID:  runID,
		cash:   make([]float64, cfg.NumGroups(columns)),
		cols:   make([]columnState, columns),
		negTol: negTol,
	}
	for g := range l.cash {
		l.cash[g] = cfg.InitialCash
	}
	for c := range l.cols {
		l.cols[c].position = cfg.InitPosition
	}
	return l
}

// applyFill mutates cash and position state for one fill and appends any
// resulting trade records. The returned error is always an InvariantError:
// a recoverable rejection never reaches the ledger.
func (l *ledger) applyFill(step, column int, f fill, rec *recorder) error {
	group := l.cfg.GroupOf(column)
	st := &l.cols[column]

	gross := roundTo(f.size*f.price, l.cfg.CashPrecision)
	signedDelta := f.size
	if f.side == domain.SideSell {
		gross = -gross
		signedDelta = -f.size
	}

	// Cash leg: buys debit gross+fees, sells credit gross-fees.
	l.cash[group] -= gross + f.fees
	st.feesPaid += f.fees

	if l.cash[group] < 0 {
		if l.cash[group] < -l.negTol {
			return &InvariantError{Step: step, Column: column, Msg: "cash balance went negative"}
		}
		l.cash[group] = 0
	}

	pos0 := st.position
	pos1 := pos0 + signedDelta
	if math.Abs(pos1) < cashTolerance {
		pos1 = 0
	}

	switch {
	case pos0 == 0:
		st.position = pos1
		l.openTrade(column, step, pos1, f)

	case sameSign(pos0, pos1) && math.Abs(pos1) > math.Abs(pos0):
		// Accumulation: same-direction fill grows the open trade.
		st.position = pos1
		l.accumulate(column, f)

	case pos1 == 0 || sameSign(pos0, pos1):
		// Reduction, possibly to flat.
		st.position = pos1
		l.reduce(column, math.Abs(signedDelta), f.price, f.fees)
		if pos1 == 0 {
			l.closeTrade(column, step, domain.ExitReasonClose, rec)
		}

	default:
		// Reversal: close the old trade at the crossing point and open a
		// new opposite-direction trade with the remainder, atomically
		// within this step.
		closePart := math.Abs(pos0)
		openPart := math.Abs(pos1)
		closeFees := f.fees * closePart / f.size
		openFees := f.fees - closeFees

		st.position = pos1
		l.reduce(column, closePart, f.price, closeFees)
		l.closeTrade(column, step, domain.ExitReasonReversal, rec)
		l.openTrade(column, step, pos1, fill{side: f.side, size: openPart, price: f.price, fees: openFees})
	}

	if st.open == nil {
		st.avgEntry = 0
	} else {
		st.avgEntry = st.open.entryPrice
	}
	return nil
}

func (l *ledger) openTrade(column, step int, signedPos float64, f fill) {
	if signedPos == 0 {
		return
	}
	st := &l.cols[column]
	dir := domain.TradeLong
	if signedPos < 0 {
		dir = domain.TradeShort
	}
	st.open = &openTrade{
		id:         idhash.ComputeTradeID(l.runID, column, step, st.tradeSeq),
		direction:  dir,
		entryStep:  step,
		entryPrice: f.price,
		size:       math.Abs(signedPos),
		peakSize:   math.Abs(signedPos),
		entryFees:  f.fees,
	}
	st.tradeSeq++
}

func (l *ledger) accumulate(column int, f fill) {
	st := &l.cols[column]
	t := st.open
	newSize := t.size + f.size
	t.entryPrice = (t.size*t.entryPrice + f.size*f.price) / newSize
	t.size = newSize
	if newSize > t.peakSize {
		t.peakSize = newSize
	}
	t.entryFees += f.fees
}

// reduce realizes PnL for the closed portion of the open trade.
func (l *ledger) reduce(column int, closedSize, price, fees float64) {
	st := &l.cols[column]
	t := st.open
	dir := 1.0
	if t.direction == domain.TradeShort {
		dir = -1
	}
	pnl := closedSize*(price-t.entryPrice)*dir - fees

	t.size -= closedSize
	if t.size < cashTolerance {
		t.size = 0
	}
	t.exitSize += closedSize
	t.exitValue += closedSize * price
	t.exitFees += fees
	t.realized += pnl
	st.realized += pnl
}

// closeTrade finalizes the open trade and appends its record. Entry fees are
// charged against the trade (and the column's realized PnL) here, once.
func (l *ledger) closeTrade(column, exitStep int, reason string, rec *recorder) {
	st := &l.cols[column]
	t := st.open
	st.realized -= t.entryFees
	rec.appendTrade(l.tradeRecord(column, t, exitStep, domain.TradeClosed, reason))
	st.open = nil
}

// finalizeColumn appends a record for a trade still open at end of run.
func (l *ledger) finalizeColumn(column int, rec *recorder) {
	st := &l.cols[column]
	if st.open == nil {
		return
	}
	rec.appendTrade(l.tradeRecord(column, st.open, -1, domain.TradeOpen, domain.ExitReasonEndOfRun))
}

func (l *ledger) tradeRecord(column int, t *openTrade, exitStep int, status domain.TradeStatus, reason string) domain.TradeRecord {
	exitPrice := 0.0
	if t.exitSize > 0 {
		exitPrice = t.exitValue / t.exitSize
	}
	pnl := t.realized - t.entryFees
	entryValue := t.entryPrice * t.peakSize
	ret := 0.0
	if entryValue > 0 {
		ret = pnl / entryValue
	}
	return domain.TradeRecord{
		TradeID:    t.id,
		Column:     column,
		Direction:  t.direction,
		Size:       t.peakSize,
		EntryStep:  t.entryStep,
		EntryPrice: t.entryPrice,
		EntryFees:  t.entryFees,
		ExitStep:   exitStep,
		ExitPrice:  exitPrice,
		ExitFees:   t.exitFees,
		PnL:        pnl,
		Return:     ret,
		Status:     status,
		ExitReason: reason,
	}
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}
