package engine

import (
	"math"

	"quantsim/internal/domain"
)

// resolvedOrder is a concrete executable instruction: direction, positive
// unit count and the reference price slippage is applied to.
type resolvedOrder struct {
	side  domain.Side
	size  float64
	price float64
}

// fill is the outcome of executing a resolved order. It carries no state:
// applying it to the account is the ledger's job.
type fill struct {
	side   domain.Side
	size   float64 // executed units, possibly smaller than requested
	price  float64 // executed price after slippage
	fees   float64 // rounded per the cash precision policy
	status domain.OrderStatus
	reason string // reason code when status is REJECTED
}

// feeParams are the effective per-column execution cost parameters.
type feeParams struct {
	feeRate  float64
	fixedFee float64
	slippage float64
}

// accountView is a read-only snapshot of the account the order executes
// against. Cash and value are group-level when cash sharing is on.
type accountView struct {
	cash     float64
	position float64
	avgEntry float64
	value    float64
}

// executeOrder turns a resolved order into a fill against the given account
// view. It is a pure function: clipping, fees and slippage are computed here,
// state mutation happens in the ledger.
func executeOrder(o resolvedOrder, fees feeParams, view accountView, cfg *domain.SimConfig) fill {
	if o.side == domain.SideBuy {
		return executeBuy(o, fees, view, cfg)
	}
	return executeSell(o, fees, view, cfg)
}

func executeBuy(o resolvedOrder, fees feeParams, view accountView, cfg *domain.SimConfig) fill {
	adjPrice := o.price * (1 + fees.slippage)
	size := o.size
	clipped := false
	clipReason := domain.ReasonInsufficientCash

	// Short-only columns may only buy to cover; clip at the open short size.
	if cfg.Direction == domain.DirShortOnly {
		cover := math.Max(0, -view.position)
		if cover < cfg.MinTradableUnit {
			return rejected(o, adjPrice, domain.ReasonInsufficientPosition)
		}
		if size > cover {
			size = cover
			clipped = true
			clipReason = domain.ReasonInsufficientPosition
		}
	}

	// Affordability: size*adj*(1+rate) + fixed <= cash.
	budget := view.cash - fees.fixedFee
	if budget <= 0 {
		return rejected(o, adjPrice, domain.ReasonInsufficientCash)
	}
	maxAffordable := budget / (adjPrice * (1 + fees.feeRate))
	if size > maxAffordable {
		if !cfg.AllowPartialFills {
			return rejected(o, adjPrice, domain.ReasonInsufficientCash)
		}
		size = maxAffordable
		clipped = true
		clipReason = domain.ReasonInsufficientCash
	}

	size = floorToGranularity(size, cfg.SizeGranularity)
	if size < cfg.MinTradableUnit {
		return rejected(o, adjPrice, clipReason)
	}

	return filled(o, size, adjPrice, fees, clipped, cfg)
}

func executeSell(o resolvedOrder, fees feeParams, view accountView, cfg *domain.SimConfig) fill {
	adjPrice := o.price * (1 - fees.slippage)
	size := o.size
	clipped := false
	clipReason := domain.ReasonInsufficientPosition

	if cfg.Direction == domain.DirLongOnly {
		// Shorting disabled: a sell may at most flatten the position.
		held := math.Max(0, view.position)
		if held < cfg.MinTradableUnit {
			return rejected(o, adjPrice, domain.ReasonInsufficientPosition)
		}
		if size > held {
			size = held
			clipped = true
		}
	} else {
		// Shorting enabled: cap the resulting short notional at
		// leverage * total value, measured at the execution price.
		shortNotional := math.Max(0, -view.position) * adjPrice
		capacity := math.Max(0, cfg.Leverage*view.value-shortNotional) / adjPrice
		maxSell := math.Max(0, view.position) + capacity
		if maxSell < cfg.MinTradableUnit {
			return rejected(o, adjPrice, domain.ReasonInsufficientCash)
		}
		if size > maxSell {
			if !cfg.AllowPartialFills {
				return rejected(o, adjPrice, domain.ReasonInsufficientCash)
			}
			size = maxSell
			clipped = true
			clipReason = domain.ReasonInsufficientCash
		}
	}

	size = floorToGranularity(size, cfg.SizeGranularity)
	if size < cfg.MinTradableUnit {
		return rejected(o, adjPrice, clipReason)
	}

	// A fixed fee larger than the gross proceeds would debit cash; reject
	// when the account cannot cover the difference.
	feesPaid := size*adjPrice*fees.feeRate + fees.fixedFee
	if net := size*adjPrice - feesPaid; net < 0 && view.cash+net < 0 {
		return rejected(o, adjPrice, domain.ReasonInsufficientCash)
	}

	return filled(o, size, adjPrice, fees, clipped, cfg)
}

func filled(o resolvedOrder, size, adjPrice float64, fees feeParams, clipped bool, cfg *domain.SimConfig) fill {
	status := domain.OrderFilled
	if clipped {
		status = domain.OrderPartial
	}
	// Round-at-end policy: fees are the only monetary output rounded here;
	// the ledger rounds the gross cash leg once when applying the fill.
	feesPaid := roundTo(size*adjPrice*fees.feeRate+fees.fixedFee, cfg.CashPrecision)
	return fill{
		side:   o.side,
		size:   size,
		price:  adjPrice,
		fees:   feesPaid,
		status: status,
	}
}

func rejected(o resolvedOrder, adjPrice float64, reason string) fill {
	return fill{
		side:   o.side,
		price:  adjPrice,
		status: domain.OrderRejected,
		reason: reason,
	}
}

// floorToGranularity rounds a size down to a multiple of the lot size.
func floorToGranularity(size, granularity float64) float64 {
	if granularity <= 0 {
		return size
	}
	return math.Floor(size/granularity) * granularity
}

// roundTo rounds to the given number of decimal places; negative disables.
func roundTo(x float64, places int) float64 {
	if places < 0 {
		return x
	}
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
