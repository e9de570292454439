// Package engine is the portfolio simulation kernel: it walks aligned
// (step × column) input arrays in strict order, converts abstract order
// requests into concrete fills subject to cash constraints, fees and
// slippage, and emits append-only order, trade and valuation logs.
//
// The kernel performs no I/O. Persistence and analytics live downstream in
// internal/storage and internal/metrics.
package engine

import (
	"context"
	"fmt"
	"math"
	"sort"

	"quantsim/internal/domain"
	"quantsim/internal/idhash"
	"quantsim/internal/inputs"
)

// RunInput is a fully broadcast simulation input: one price matrix plus
// either a size-request matrix or an entry/exit signal matrix pair, all
// sharing one time index and one column axis.
type RunInput struct {
	Config domain.SimConfig
	Prices *inputs.Matrix

	// Sizes carries per-step order size requests (NaN = hold). Mutually
	// exclusive with Entries/Exits.
	Sizes *inputs.Matrix

	// Entries and Exits carry boolean trading signals. Both must be set
	// together.
	Entries *inputs.BoolMatrix
	Exits   *inputs.BoolMatrix

	// TrackEquity enables the per-step valuation snapshot log.
	TrackEquity bool

	// RunID overrides the computed deterministic run identifier.
	RunID string
}

// Result is the kernel's sole externally observable output: the three event
// logs plus final per-column account state.
type Result struct {
	RunID    string
	Orders   []domain.OrderRecord
	Trades   []domain.TradeRecord
	Equity   []domain.EquityPoint
	Accounts []domain.AccountState
}

// Run executes the simulation sequentially: steps in ascending time order,
// columns in ascending order within a step. Setup errors abort before step 0;
// recoverable execution errors are recorded and skipped; invariant violations
// abort with step/column context. Cancellation is cooperative at step
// granularity.
func Run(ctx context.Context, in RunInput) (*Result, error) {
	s, err := newSim(&in)
	if err != nil {
		return nil, err
	}
	rec := newRecorder(s.runID, s.steps, s.columns, in.TrackEquity)
	if err := s.runRange(ctx, 0, s.columns, rec); err != nil {
		return nil, err
	}
	return s.collect([]*recorder{rec}), nil
}

// sim holds the threaded simulation state. Cash is indexed by group,
// positions by column; parallel group workers touch disjoint indices.
type sim struct {
	cfg     *domain.SimConfig
	runID   string
	steps   int
	columns int

	prices  *inputs.Matrix
	sizes   *inputs.Matrix
	entries *inputs.BoolMatrix
	exits   *inputs.BoolMatrix

	led *ledger

	// lastPrice is the most recent non-NaN price per column, used for
	// valuation when the current step's price is missing.
	lastPrice []float64

	// groupFrom/groupTo hold each group's contiguous [from, to) column
	// span, so grouped valuation never scans the full column axis.
	groupFrom []int
	groupTo   []int

	trackEquity bool
}

func newSim(in *RunInput) (*sim, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	steps := in.Prices.Steps()
	columns := in.Prices.Columns()

	// cash_sharing without an explicit group map means one pool over all
	// columns. Resolving it here keeps the rest of the kernel on Groups.
	if in.Config.CashSharing && in.Config.Groups == nil {
		in.Config.Groups = make([]int, columns)
	}

	runID := in.RunID
	if runID == "" {
		runID = computeRunID(in)
	}

	s := &sim{
		cfg:         &in.Config,
		runID:       runID,
		steps:       steps,
		columns:     columns,
		prices:      in.Prices,
		sizes:       in.Sizes,
		entries:     in.Entries,
		exits:       in.Exits,
		led:         newLedger(&in.Config, runID, columns),
		lastPrice:   make([]float64, columns),
		trackEquity: in.TrackEquity,
	}
	for c := range s.lastPrice {
		s.lastPrice[c] = math.NaN()
	}

	s.groupFrom = make([]int, s.cfg.NumGroups(columns))
	s.groupTo = make([]int, len(s.groupFrom))
	for c := 0; c < columns; c++ {
		g := s.cfg.GroupOf(c)
		if s.groupTo[g] == 0 {
			s.groupFrom[g] = c
		}
		s.groupTo[g] = c + 1
	}
	return s, nil
}

// validateInput fails fast on malformed input, before any step is processed.
// Partial simulations are never returned.
func validateInput(in *RunInput) error {
	if in.Prices == nil {
		return ErrNoPrices
	}
	signalMode := in.Entries != nil || in.Exits != nil
	if in.Sizes == nil && !signalMode {
		return ErrNoRequestInput
	}
	if in.Sizes != nil && signalMode {
		return ErrAmbiguousInput
	}
	if signalMode {
		if in.Entries == nil || in.Exits == nil {
			return fmt.Errorf("%w: entry and exit matrices must be set together", ErrNoRequestInput)
		}
		if !in.Entries.AlignedWith(in.Prices) || !in.Exits.AlignedWith(in.Prices) {
			return ErrMisaligned
		}
	} else if !in.Prices.SameShape(in.Sizes) {
		return ErrMisaligned
	}
	for _, v := range in.Prices.Raw() {
		if v < 0 || math.IsInf(v, 0) {
			return ErrMalformedPrice
		}
	}
	if err := in.Config.Validate(in.Prices.Columns()); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func computeRunID(in *RunInput) string {
	digest := idhash.DigestFloats(in.Prices.Raw())
	if in.Sizes != nil {
		digest += "|" + idhash.DigestFloats(in.Sizes.Raw())
	} else {
		digest += "|" + idhash.DigestBools(in.Entries.Raw()) + "|" + idhash.DigestBools(in.Exits.Raw())
	}
	fingerprint := fmt.Sprintf("%+v", in.Config)
	return idhash.ComputeRunID(fingerprint, in.Prices.Steps(), in.Prices.Columns(), digest)
}

// runRange processes all steps for columns in [colFrom, colTo). The range
// must cover whole cash-sharing groups. A step is atomic: cancellation takes
// effect only between steps, never mid-fill.
func (s *sim) runRange(ctx context.Context, colFrom, colTo int, rec *recorder) error {
	for step := 0; step < s.steps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for col := colFrom; col < colTo; col++ {
			if err := s.processColumn(step, col, rec); err != nil {
				return err
			}
		}
	}
	for col := colFrom; col < colTo; col++ {
		s.led.finalizeColumn(col, rec)
	}
	return nil
}

// processColumn handles one (step, column) unit of work: request → resolve →
// execute → apply → record, then the valuation snapshot.
func (s *sim) processColumn(step, col int, rec *recorder) error {
	price := s.prices.At(step, col)
	if !math.IsNaN(price) {
		s.lastPrice[col] = price
	}

	if s.sizes != nil {
		size := s.sizes.At(step, col)
		if !math.IsNaN(size) {
			req := domain.OrderRequest{Size: size, SizeType: s.cfg.SizeType, Price: math.NaN()}
			if err := s.processRequest(step, col, 0, req, rec); err != nil {
				return err
			}
		}
	} else {
		if err := s.processSignals(step, col, rec); err != nil {
			return err
		}
	}

	s.snapshot(step, col, rec)
	return nil
}

func (s *sim) processSignals(step, col int, rec *recorder) error {
	entry := s.entries.At(step, col)
	exit := s.exits.At(step, col)
	req, reason, present, reopen := signalOrder(entry, exit, s.led.cols[col].position, s.cfg)
	if !present {
		return nil
	}
	if reason != "" {
		rec.appendOrder(domain.OrderRecord{
			Step: step, Column: col,
			Price:  s.prices.At(step, col),
			Status: domain.OrderNoOp,
			Reason: reason,
		})
		return nil
	}
	if err := s.processRequest(step, col, 0, req, rec); err != nil {
		return err
	}
	if reopen && s.led.cols[col].position == 0 {
		// Close-then-reopen: the deferred entry fires as a second attempt
		// on the same step.
		return s.processRequest(step, col, 1, entryRequest(s.cfg), rec)
	}
	return nil
}

// processRequest runs one order request through resolver, execution engine
// and ledger, and appends exactly one order record for it.
func (s *sim) processRequest(step, col, attempt int, req domain.OrderRequest, rec *recorder) error {
	view := s.view(step, col)
	stepPrice := s.prices.At(step, col)

	order, noop := resolveOrder(req, stepPrice, view, s.cfg)
	if noop != "" {
		rec.appendOrder(domain.OrderRecord{
			Step: step, Column: col, Attempt: attempt,
			Price:  stepPrice,
			Status: domain.OrderNoOp,
			Reason: noop,
		})
		return nil
	}

	feeRate, fixedFee, slippage := s.cfg.ColumnFees(col)
	f := executeOrder(order, feeParams{feeRate: feeRate, fixedFee: fixedFee, slippage: slippage}, view, s.cfg)

	if f.status == domain.OrderRejected {
		rec.appendOrder(domain.OrderRecord{
			Step: step, Column: col, Attempt: attempt,
			Side:          order.side,
			RequestedSize: order.size,
			Price:         order.price,
			FillPrice:     f.price,
			Status:        domain.OrderRejected,
			Reason:        f.reason,
		})
		return nil
	}

	if err := s.led.applyFill(step, col, f, rec); err != nil {
		return err
	}
	rec.appendOrder(domain.OrderRecord{
		Step: step, Column: col, Attempt: attempt,
		Side:          order.side,
		RequestedSize: order.size,
		FilledSize:    f.size,
		Price:         order.price,
		FillPrice:     f.price,
		Fees:          f.fees,
		Status:        f.status,
	})
	return nil
}

// view builds the account snapshot an order resolves and executes against.
// Value is group-level: free cash plus every group member's position valued
// at its most recent price.
func (s *sim) view(step, col int) accountView {
	group := s.cfg.GroupOf(col)
	cash := s.led.cash[group]
	value := cash
	for c := s.groupFrom[group]; c < s.groupTo[group]; c++ {
		value += s.positionValue(c)
	}
	st := &s.led.cols[col]
	return accountView{
		cash:     cash,
		position: st.position,
		avgEntry: st.avgEntry,
		value:    value,
	}
}

func (s *sim) positionValue(col int) float64 {
	pos := s.led.cols[col].position
	if pos == 0 || math.IsNaN(s.lastPrice[col]) {
		return 0
	}
	return pos * s.lastPrice[col]
}

func (s *sim) snapshot(step, col int, rec *recorder) {
	if !s.trackEquity {
		return
	}
	st := &s.led.cols[col]
	price := s.lastPrice[col]
	posValue := 0.0
	if !math.IsNaN(price) {
		posValue = st.position * price
	}
	// Each column reports an equal share of its group's cash pool, so the
	// per-step sum over columns equals total portfolio value.
	group := s.cfg.GroupOf(col)
	cash := s.led.cash[group] / float64(s.groupTo[group]-s.groupFrom[group])
	rec.appendEquity(domain.EquityPoint{
		Step: step, Column: col,
		Price:    price,
		Cash:     cash,
		Position: st.position,
		Value:    cash + posValue,
	})
}

// collect merges per-range recorders into one canonically ordered result:
// orders and snapshots by (step, column), trades by exit step then column.
// The parallel and sequential paths share this so their outputs are
// identical.
func (s *sim) collect(recs []*recorder) *Result {
	res := &Result{RunID: s.runID}
	for _, r := range recs {
		res.Orders = append(res.Orders, r.orders...)
		res.Trades = append(res.Trades, r.trades...)
		res.Equity = append(res.Equity, r.equity...)
	}

	sort.SliceStable(res.Orders, func(i, j int) bool {
		a, b := res.Orders[i], res.Orders[j]
		if a.Step != b.Step {
			return a.Step < b.Step
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Attempt < b.Attempt
	})
	sort.SliceStable(res.Equity, func(i, j int) bool {
		a, b := res.Equity[i], res.Equity[j]
		if a.Step != b.Step {
			return a.Step < b.Step
		}
		return a.Column < b.Column
	})
	sort.SliceStable(res.Trades, func(i, j int) bool {
		a, b := res.Trades[i], res.Trades[j]
		ae, be := a.ExitStep, b.ExitStep
		if a.Status == domain.TradeOpen {
			ae = s.steps
		}
		if b.Status == domain.TradeOpen {
			be = s.steps
		}
		if ae != be {
			return ae < be
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.EntryStep < b.EntryStep
	})

	res.Accounts = make([]domain.AccountState, s.columns)
	for c := range res.Accounts {
		st := &s.led.cols[c]
		res.Accounts[c] = domain.AccountState{
			Column:        c,
			Cash:          s.led.cash[s.cfg.GroupOf(c)],
			Position:      st.position,
			AvgEntryPrice: st.avgEntry,
			RealizedPnL:   st.realized,
			FeesPaid:      st.feesPaid,
		}
	}
	return res
}
