package metrics

import (
	"math"
	"sort"

	"quantsim/internal/domain"
)

// computeFromLogs calculates all run statistics from the order, trade and
// equity logs of a single run. Logs are re-sorted deterministically before
// order-dependent metrics (MaxDrawdown, MaxConsecutiveLosses) are computed,
// so callers may pass them in any order.
func computeFromLogs(
	runID string,
	columns int,
	orders []*domain.OrderRecord,
	trades []*domain.TradeRecord,
	equity []*domain.EquityPoint,
) *domain.RunAggregate {
	agg := &domain.RunAggregate{
		RunID:   runID,
		Columns: columns,
	}

	countOrders(agg, orders)
	computeTradeStats(agg, trades)
	computeEquityStats(agg, equity)

	return agg
}

// countOrders tallies the order log by status and sums fees actually paid.
func countOrders(agg *domain.RunAggregate, orders []*domain.OrderRecord) {
	agg.TotalOrders = len(orders)
	for _, o := range orders {
		switch o.Status {
		case domain.OrderFilled:
			agg.FilledOrders++
		case domain.OrderPartial:
			agg.PartialOrders++
		case domain.OrderRejected:
			agg.Rejected++
		case domain.OrderNoOp:
			agg.NoOps++
		}
		agg.TotalFees += o.Fees
	}
}

// computeTradeStats fills win/loss counts and the PnL distribution over
// closed trades. Open trades count toward OpenTrades only.
func computeTradeStats(agg *domain.RunAggregate, trades []*domain.TradeRecord) {
	agg.TotalTrades = len(trades)

	// Closed trades in exit order for the loss-streak calculation
	var closed []*domain.TradeRecord
	for _, t := range trades {
		if t.Status == domain.TradeOpen {
			agg.OpenTrades++
			continue
		}
		closed = append(closed, t)
	}

	n := len(closed)
	if n == 0 {
		return
	}

	sort.Slice(closed, func(i, j int) bool {
		if closed[i].ExitStep != closed[j].ExitStep {
			return closed[i].ExitStep < closed[j].ExitStep
		}
		if closed[i].Column != closed[j].Column {
			return closed[i].Column < closed[j].Column
		}
		return closed[i].TradeID < closed[j].TradeID
	})

	pnls := make([]float64, n)
	for i, t := range closed {
		pnls[i] = t.PnL
		if t.PnL > 0 {
			agg.Wins++
		} else {
			agg.Losses++
		}
		agg.TotalPnL += t.PnL
	}
	agg.WinRate = float64(agg.Wins) / float64(n)

	sorted := make([]float64, n)
	copy(sorted, pnls)
	sort.Float64s(sorted)

	agg.MeanPnL = computeMean(pnls)
	agg.MedianPnL = computePercentile(sorted, 0.50)
	agg.PnLP10 = computePercentile(sorted, 0.10)
	agg.PnLP90 = computePercentile(sorted, 0.90)
	agg.PnLMin = sorted[0]
	agg.PnLMax = sorted[n-1]
	agg.PnLStddev = computeStddev(pnls, agg.MeanPnL)

	agg.MaxConsecutiveLosses = computeMaxConsecutiveLosses(closed)
}

// computeEquityStats derives FinalValue and MaxDrawdown from the per-step
// total value curve, columns summed within each step.
func computeEquityStats(agg *domain.RunAggregate, equity []*domain.EquityPoint) {
	if len(equity) == 0 {
		return
	}

	// Sum value per step
	totals := make(map[int]float64)
	maxStep := 0
	for _, p := range equity {
		totals[p.Step] += p.Value
		if p.Step > maxStep {
			maxStep = p.Step
		}
	}

	steps := make([]int, 0, len(totals))
	for s := range totals {
		steps = append(steps, s)
	}
	sort.Ints(steps)

	agg.FinalValue = totals[maxStep]
	agg.MaxDrawdown = computeMaxDrawdown(steps, totals)
}

// computeMean calculates arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC. p is the percentile (0.10 = 10th).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown calculates the worst peak-to-trough decline of the
// summed equity curve as a fraction of the peak.
func computeMaxDrawdown(steps []int, totals map[int]float64) float64 {
	peak := math.Inf(-1)
	maxDrawdown := 0.0

	for _, s := range steps {
		v := totals[s]
		if v > peak {
			peak = v
		}
		if peak > 0 {
			drawdown := (peak - v) / peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}
	return maxDrawdown
}

// computeMaxConsecutiveLosses finds the longest streak of PnL <= 0.
// Trades must be in exit order.
func computeMaxConsecutiveLosses(trades []*domain.TradeRecord) int {
	maxStreak := 0
	currentStreak := 0

	for _, t := range trades {
		if t.PnL <= 0 {
			currentStreak++
			if currentStreak > maxStreak {
				maxStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}
	return maxStreak
}
