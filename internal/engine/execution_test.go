package engine

import (
	"testing"

	"quantsim/internal/domain"
)

func TestExecuteBuy_FullFill(t *testing.T) {
	cfg := domain.DefaultSimConfig()
	view := accountView{cash: 1000, value: 1000}
	o := resolvedOrder{side: domain.SideBuy, size: 2, price: 100}

	f := executeOrder(o, feeParams{feeRate: 0.01, slippage: 0.02}, view, &cfg)
	if f.status != domain.OrderFilled {
		t.Fatalf("expected FILLED, got %s", f.status)
	}
	if !almostEqual(f.price, 102) {
		t.Errorf("expected slipped price 102, got %f", f.price)
	}
	if !almostEqual(f.size, 2) {
		t.Errorf("expected full size 2, got %f", f.size)
	}
	// 2 * 102 * 0.01
	if !almostEqual(f.fees, 2.04) {
		t.Errorf("expected fees 2.04, got %f", f.fees)
	}
}

func TestExecuteBuy_ClipAtAffordability(t *testing.T) {
	cfg := domain.DefaultSimConfig()
	view := accountView{cash: 100, value: 100}
	o := resolvedOrder{side: domain.SideBuy, size: 5, price: 50}

	f := executeOrder(o, feeParams{}, view, &cfg)
	if f.status != domain.OrderPartial {
		t.Fatalf("expected PARTIALLY_FILLED, got %s", f.status)
	}
	if !almostEqual(f.size, 2) {
		t.Errorf("expected affordable size 2, got %f", f.size)
	}
}

func TestExecuteBuy_NoPartialFillsRejects(t *testing.T) {
	cfg := domain.DefaultSimConfig()
	cfg.AllowPartialFills = false
	view := accountView{cash: 100, value: 100}
	o := resolvedOrder{side: domain.SideBuy, size: 5, price: 50}

	f := executeOrder(o, feeParams{}, view, &cfg)
	if f.status != domain.OrderRejected || f.reason != domain.ReasonInsufficientCash {
		t.Errorf("expected REJECTED insufficient-cash, got %s %q", f.status, f.reason)
	}
}

func TestExecuteBuy_FixedFeeExceedsBudget(t *testing.T) {
	cfg := domain.DefaultSimConfig()
	view := accountView{cash: 5, value: 5}
	o := resolvedOrder{side: domain.SideBuy, size: 1, price: 50}

	f := executeOrder(o, feeParams{fixedFee: 10}, view, &cfg)
	if f.status != domain.OrderRejected || f.reason != domain.ReasonInsufficientCash {
		t.Errorf("expected REJECTED insufficient-cash, got %s %q", f.status, f.reason)
	}
}

func TestExecuteBuy_FeeRateReducesAffordableSize(t *testing.T) {
	cfg := domain.DefaultSimConfig()
	view := accountView{cash: 101, value: 101}
	o := resolvedOrder{side: domain.SideBuy, size: 5, price: 100}

	// 101 / (100 * 1.01) affords exactly 1 unit including its fee.
	f := executeOrder(o, feeParams{feeRate: 0.01}, view, &cfg)
	if f.status != domain.OrderPartial {
		t.Fatalf("expected PARTIALLY_FILLED, got %s", f.status)
	}
	if !almostEqual(f.size, 1) {
		t.Errorf("expected size 1, got %f", f.size)
	}
	if !almostEqual(f.size*f.price+f.fees, 101) {
		t.Errorf("fill must consume exactly the cash budget, used %f", f.size*f.price+f.fees)
	}
}

func TestExecuteBuy_ShortOnlyCoversAtMost(t *testing.T) {
	cfg := domain.DefaultSimConfig()
	cfg.Direction = domain.DirShortOnly

	// Covering a 2-unit short with a 5-unit buy clips at 2.
	view := accountView{cash: 1000, position: -2, value: 980}
	o := resolvedOrder{side: domain.SideBuy, size: 5, price: 10}
	f := executeOrder(o, feeParams{}, view, &cfg)
	if f.status != domain.OrderPartial || !almostEqual(f.size, 2) {
		t.Errorf("expected cover clipped to 2, got %s %f", f.status, f.size)
	}
	if f.reason != "" {
		t.Errorf("partial fills carry no reason, got %q", f.reason)
	}

	// Buying with no short open is rejected outright.
	view.position = 0
	f = executeOrder(o, feeParams{}, view, &cfg)
	if f.status != domain.OrderRejected || f.reason != domain.ReasonInsufficientPosition {
		t.Errorf("expected REJECTED insufficient-position, got %s %q", f.status, f.reason)
	}
}

func TestExecuteSell_LongOnlyClipsAtHeld(t *testing.T) {
	cfg := domain.DefaultSimConfig()
	view := accountView{cash: 0, position: 3, value: 30}
	o := resolvedOrder{side: domain.SideSell, size: 5, price: 10}

	f := executeOrder(o, feeParams{}, view, &cfg)
	if f.status != domain.OrderPartial || !almostEqual(f.size, 3) {
		t.Errorf("expected sell clipped to held 3, got %s %f", f.status, f.size)
	}

	view.position = 0
	f = executeOrder(o, feeParams{}, view, &cfg)
	if f.status != domain.OrderRejected || f.reason != domain.ReasonInsufficientPosition {
		t.Errorf("expected REJECTED insufficient-position, got %s %q", f.status, f.reason)
	}
}

func TestExecuteSell_Slippage(t *testing.T) {
	cfg := domain.DefaultSimConfig()
	view := accountView{cash: 0, position: 1, value: 100}
	o := resolvedOrder{side: domain.SideSell, size: 1, price: 100}

	// Sells slip downward.
	f := executeOrder(o, feeParams{slippage: 0.02}, view, &cfg)
	if f.status != domain.OrderFilled {
		t.Fatalf("expected FILLED, got %s", f.status)
	}
	if !almostEqual(f.price, 98) {
		t.Errorf("expected slipped price 98, got %f", f.price)
	}
}

func TestExecuteSell_ShortCapacityFromLeverage(t *testing.T) {
	cfg := domain.DefaultSimConfig()
	cfg.Direction = domain.DirBoth

	// Flat account, value 100, leverage 1, price 10: at most 10 short units.
	view := accountView{cash: 100, value: 100}
	o := resolvedOrder{side: domain.SideSell, size: 25, price: 10}
	f := executeOrder(o, feeParams{}, view, &cfg)
	if f.status != domain.OrderPartial || !almostEqual(f.size, 10) {
		t.Errorf("expected short capped at 10, got %s %f", f.status, f.size)
	}
	if f.reason != "" {
		t.Errorf("partial fills carry no reason, got %q", f.reason)
	}

	// Doubling leverage doubles the cap.
	cfg.Leverage = 2
	f = executeOrder(o, feeParams{}, view, &cfg)
	if f.status != domain.OrderPartial || !almostEqual(f.size, 20) {
		t.Errorf("expected short capped at 20 with 2x leverage, got %s %f", f.status, f.size)
	}

	// An existing short consumes capacity.
	cfg.Leverage = 1
	view = accountView{cash: 150, position: -5, value: 100}
	f = executeOrder(o, feeParams{}, view, &cfg)
	if f.status != domain.OrderPartial || !almostEqual(f.size, 5) {
		t.Errorf("expected remaining capacity 5, got %s %f", f.status, f.size)
	}
}

func TestExecuteSell_FixedFeeExceedingProceeds(t *testing.T) {
	cfg := domain.DefaultSimConfig()

	// Gross proceeds 1, fixed fee 5: the account cannot cover the shortfall.
	view := accountView{cash: 0, position: 1, value: 1}
	o := resolvedOrder{side: domain.SideSell, size: 1, price: 1}
	f := executeOrder(o, feeParams{fixedFee: 5}, view, &cfg)
	if f.status != domain.OrderRejected || f.reason != domain.ReasonInsufficientCash {
		t.Errorf("expected REJECTED insufficient-cash, got %s %q", f.status, f.reason)
	}

	// With spare cash the shortfall is payable.
	view.cash = 10
	f = executeOrder(o, feeParams{fixedFee: 5}, view, &cfg)
	if f.status != domain.OrderFilled {
		t.Errorf("expected FILLED with cash cover, got %s %q", f.status, f.reason)
	}
}

func TestExecute_GranularityFloorsBeforeMinCheck(t *testing.T) {
	cfg := domain.DefaultSimConfig()
	cfg.SizeGranularity = 1
	cfg.MinTradableUnit = 1

	// 1.9 affordable units floor to 1 lot.
	view := accountView{cash: 19, value: 19}
	o := resolvedOrder{side: domain.SideBuy, size: 5, price: 10}
	f := executeOrder(o, feeParams{}, view, &cfg)
	if f.status != domain.OrderPartial || !almostEqual(f.size, 1) {
		t.Errorf("expected 1 lot, got %s %f", f.status, f.size)
	}

	// 0.9 affordable units floor below the minimum.
	view = accountView{cash: 9, value: 9}
	f = executeOrder(o, feeParams{}, view, &cfg)
	if f.status != domain.OrderRejected || f.reason != domain.ReasonInsufficientCash {
		t.Errorf("expected REJECTED insufficient-cash, got %s %q", f.status, f.reason)
	}
}

func TestRoundingHelpers(t *testing.T) {
	if got := floorToGranularity(1.7, 0.5); !almostEqual(got, 1.5) {
		t.Errorf("floorToGranularity(1.7, 0.5) = %f", got)
	}
	if got := floorToGranularity(1.7, 0); !almostEqual(got, 1.7) {
		t.Errorf("zero granularity must be a no-op, got %f", got)
	}
	if got := roundTo(1.23456, 2); !almostEqual(got, 1.23) {
		t.Errorf("roundTo(1.23456, 2) = %f", got)
	}
	if got := roundTo(1.23456, -1); !almostEqual(got, 1.23456) {
		t.Errorf("negative precision must disable rounding, got %f", got)
	}
}

func TestFillRoundsFeesToCashPrecision(t *testing.T) {
	cfg := domain.DefaultSimConfig()
	cfg.CashPrecision = 2
	view := accountView{cash: 1000, value: 1000}
	o := resolvedOrder{side: domain.SideBuy, size: 1, price: 33.333}

	f := executeOrder(o, feeParams{feeRate: 0.001}, view, &cfg)
	// 33.333 * 0.001 = 0.033333 rounds to 0.03.
	if !almostEqual(f.fees, 0.03) {
		t.Errorf("expected fees rounded to 0.03, got %f", f.fees)
	}
}
