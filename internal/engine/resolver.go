package engine

import (
	"math"

	"quantsim/internal/domain"
)

// resolveOrder turns an abstract order request into a concrete executable
// order. A non-empty reason means no order fires (a no-op), never an error:
// partial-affordability clipping is the execution engine's job, but a buy
// with no free cash at all resolves to a no-op here to keep rejection noise
// out of the logs.
func resolveOrder(req domain.OrderRequest, stepPrice float64, view accountView, cfg *domain.SimConfig) (resolvedOrder, string) {
	price := req.Price
	if math.IsNaN(price) {
		price = stepPrice
	}
	if math.IsNaN(price) || price <= 0 {
		return resolvedOrder{}, domain.ReasonInvalidPrice
	}

	// Size types form a closed set; config validation guarantees one of the
	// four cases below.
	var delta float64
	switch req.SizeType {
	case domain.SizeAmount:
		delta = req.Size
	case domain.SizePercentOfValue:
		delta = req.Size * view.value / price
	case domain.SizeTargetValue:
		delta = req.Size/price - view.position
	case domain.SizeTargetPercent:
		delta = req.Size*view.value/price - view.position
	}

	if math.IsNaN(delta) || delta == 0 {
		return resolvedOrder{}, domain.ReasonZeroSize
	}

	size := math.Abs(delta)
	if cfg.MaxSize > 0 && size > cfg.MaxSize {
		size = cfg.MaxSize
	}
	size = floorToGranularity(size, cfg.SizeGranularity)
	if size < cfg.MinTradableUnit {
		if req.Size == 0 {
			return resolvedOrder{}, domain.ReasonZeroSize
		}
		return resolvedOrder{}, domain.ReasonBelowMinSize
	}

	side := domain.SideBuy
	if delta < 0 {
		side = domain.SideSell
	}
	if side == domain.SideBuy && view.cash <= 0 {
		return resolvedOrder{}, domain.ReasonNoFreeCash
	}

	return resolvedOrder{side: side, size: size, price: price}, ""
}

// signalOrder translates an entry/exit signal pair into an order request.
// It returns the request, a no-op reason when no order applies, whether any
// signal was present at all, and whether a same-step reopen should follow
// the produced exit (close-then-reopen, only when explicitly enabled).
func signalOrder(entry, exit bool, position float64, cfg *domain.SimConfig) (req domain.OrderRequest, reason string, present, reopen bool) {
	if !entry && !exit {
		return domain.NoRequest(), "", false, false
	}

	if entry && exit {
		switch cfg.ConflictPolicy {
		case domain.ConflictIgnore:
			return domain.NoRequest(), domain.ReasonSignalConflict, true, false
		case domain.ConflictEntry:
			exit = false
		default: // exit precedence
			if position == 0 {
				// Nothing to exit; the entry is dropped for this step.
				return domain.NoRequest(), domain.ReasonSignalConflict, true, false
			}
			entry = false
			reopen = cfg.AllowReentry
		}
	}

	if exit {
		if position == 0 {
			return domain.NoRequest(), domain.ReasonNoPosition, true, false
		}
		// Close order: a delta to a zero-value target.
		return domain.OrderRequest{Size: 0, SizeType: domain.SizeTargetValue, Price: math.NaN()}, "", true, reopen
	}

	// Entry signal.
	if position != 0 {
		return domain.NoRequest(), domain.ReasonDuplicateSignal, true, false
	}
	return entryRequest(cfg), "", true, false
}

// entryRequest builds the order an entry signal opens, honoring the allowed
// direction.
func entryRequest(cfg *domain.SimConfig) domain.OrderRequest {
	size := cfg.SignalSize
	if cfg.Direction == domain.DirShortOnly {
		size = -size
	}
	return domain.OrderRequest{Size: size, SizeType: cfg.SignalSizeType, Price: math.NaN()}
}
