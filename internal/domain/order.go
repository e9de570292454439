package domain

import "math"

// Side is the direction of a resolved order.
type Side string

// Side constants
const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderStatus classifies the outcome of an order attempt.
// Every order request resolves to exactly one of these.
type OrderStatus string

// Order status constants
const (
	OrderFilled   OrderStatus = "FILLED"
	OrderPartial  OrderStatus = "PARTIALLY_FILLED"
	OrderRejected OrderStatus = "REJECTED"
	OrderNoOp     OrderStatus = "NO_OP"
)

// Reason codes for rejected and no-op order attempts.
const (
	ReasonInsufficientCash     = "insufficient-cash"
	ReasonInsufficientPosition = "insufficient-position"
	ReasonBelowMinSize         = "below-min-size"
	ReasonSignalConflict       = "signal-conflict"
	ReasonDuplicateSignal      = "duplicate-signal"
	ReasonNoFreeCash           = "no-free-cash"
	ReasonZeroSize             = "zero-size"
	ReasonNoPosition           = "no-position"
	ReasonInvalidPrice         = "invalid-price"
)

// OrderRequest is an abstract per-step instruction for one column.
// Size is signed: positive buys, negative sells. For target size types the
// sign is the sign of the target itself. A NaN size means no request.
type OrderRequest struct {
	Size     float64
	SizeType SizeType
	// Price overrides the step reference price when not NaN.
	Price float64
}

// NoRequest returns the request meaning "hold".
func NoRequest() OrderRequest {
	return OrderRequest{Size: math.NaN(), Price: math.NaN()}
}

// Absent reports whether the request carries no instruction.
func (r OrderRequest) Absent() bool {
	return math.IsNaN(r.Size)
}

// OrderRecord is one immutable row of the order-attempt log.
// Corresponds to the order_records table. Exactly one record exists per
// processed order request, whatever its outcome.
type OrderRecord struct {
	RunID  string
	Step   int
	Column int
	// Attempt disambiguates multiple attempts at one (step, column):
	// 0 for the primary order, 1 for a same-step reopen after an exit.
	Attempt int

	Side          Side
	RequestedSize float64 // units requested after resolution
	FilledSize    float64 // units actually filled
	Price         float64 // reference price before slippage
	FillPrice     float64 // executed price after slippage
	Fees          float64 // total fees charged for the fill

	Status OrderStatus
	Reason string // reason code for rejected/no-op records, empty otherwise
}
