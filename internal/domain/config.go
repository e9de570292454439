package domain

import (
	"errors"
	"fmt"
	"math"
)

// SizeType determines how the size field of an order request is interpreted.
type SizeType string

// Size type constants
const (
	SizeAmount         SizeType = "amount"          // size is a unit count
	SizePercentOfValue SizeType = "percent-of-value" // size is a fraction of total value
	SizeTargetValue    SizeType = "target-value"    // size is a target position value
	SizeTargetPercent  SizeType = "target-percent"  // size is a target fraction of total value
)

// Direction restricts which position signs a column may take.
type Direction string

// Direction constants
const (
	DirLongOnly  Direction = "long-only"
	DirShortOnly Direction = "short-only"
	DirBoth      Direction = "both"
)

// ConflictPolicy resolves simultaneous entry and exit signals on the same step.
type ConflictPolicy string

// Conflict policy constants
const (
	ConflictExit   ConflictPolicy = "exit"   // exit wins, entry is dropped
	ConflictEntry  ConflictPolicy = "entry"  // entry wins, exit is dropped
	ConflictIgnore ConflictPolicy = "ignore" // both signals are dropped
)

// SimConfig holds all simulation parameters. Zero value is not usable;
// start from DefaultSimConfig and override.
type SimConfig struct {
	InitialCash  float64 // starting cash per column (per group when cash sharing)
	InitPosition float64 // starting position per column

	SizeType  SizeType
	Direction Direction

	FeeRate  float64 // percentage fee per fill, e.g. 0.001 = 10 bps
	FixedFee float64 // fixed fee per fill
	Slippage float64 // adverse price adjustment fraction

	MinTradableUnit float64 // resolved sizes below this become no-ops
	SizeGranularity float64 // lot size; 0 disables lot rounding
	MaxSize         float64 // cap on resolved size; 0 disables

	// CashSharing pools cash across columns. With a nil Groups map every
	// column joins one shared pool; Groups overrides the pool layout.
	CashSharing       bool
	AllowPartialFills bool
	Leverage          float64 // short notional cap as a multiple of total value

	// CashPrecision is the number of decimal places monetary outputs are
	// rounded to, applied once at the end of each fill computation.
	// Negative disables rounding.
	CashPrecision int

	ConflictPolicy ConflictPolicy

	// SignalSize and SignalSizeType control the order generated by an entry
	// signal in signal mode.
	SignalSize     float64
	SignalSizeType SizeType

	// AllowReentry permits an entry signal to fire on the same step an exit
	// closed the position (close-then-reopen). Off by default.
	AllowReentry bool

	// Groups maps each column to its cash-sharing group. Group indices must
	// start at 0, be non-decreasing, and be contiguous. Nil means one group
	// per column.
	Groups []int

	// Optional per-column overrides. When non-nil, length must equal the
	// column count and the scalar field above is ignored.
	FeeRateByColumn  []float64
	FixedFeeByColumn []float64
	SlippageByColumn []float64
}

// Config validation errors
var (
	ErrInvalidSizeType       = errors.New("invalid size type")
	ErrInvalidDirection      = errors.New("invalid direction")
	ErrInvalidConflictPolicy = errors.New("invalid conflict policy")
)

// DefaultSimConfig returns the default simulation parameters.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		InitialCash:       100,
		SizeType:          SizeAmount,
		Direction:         DirLongOnly,
		MinTradableUnit:   1e-8,
		AllowPartialFills: true,
		Leverage:          1,
		CashPrecision:     -1,
		ConflictPolicy:    ConflictExit,
		SignalSize:        1,
		SignalSizeType:    SizePercentOfValue,
	}
}

// Validate checks the configuration against the given column count.
// A failed validation is a setup error: the run must not start.
func (c *SimConfig) Validate(columns int) error {
	if columns <= 0 {
		return errors.New("column count must be > 0")
	}
	switch c.SizeType {
	case SizeAmount, SizePercentOfValue, SizeTargetValue, SizeTargetPercent:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSizeType, c.SizeType)
	}
	switch c.SignalSizeType {
	case SizeAmount, SizePercentOfValue, SizeTargetValue, SizeTargetPercent:
	default:
		return fmt.Errorf("%w: signal size type %q", ErrInvalidSizeType, c.SignalSizeType)
	}
	switch c.Direction {
	case DirLongOnly, DirShortOnly, DirBoth:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDirection, c.Direction)
	}
	switch c.ConflictPolicy {
	case ConflictExit, ConflictEntry, ConflictIgnore:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidConflictPolicy, c.ConflictPolicy)
	}
	if c.InitialCash < 0 || math.IsNaN(c.InitialCash) {
		return errors.New("initial_cash must be >= 0")
	}
	if c.FeeRate < 0 {
		return errors.New("fee_rate must be >= 0")
	}
	if c.FixedFee < 0 {
		return errors.New("fixed_fee must be >= 0")
	}
	if c.Slippage < 0 {
		return errors.New("slippage must be >= 0")
	}
	if c.MinTradableUnit <= 0 {
		return errors.New("min_tradable_unit must be > 0")
	}
	if c.SizeGranularity < 0 {
		return errors.New("size_granularity must be >= 0")
	}
	if c.MaxSize < 0 {
		return errors.New("max_size must be >= 0")
	}
	if c.Leverage <= 0 {
		return errors.New("leverage must be > 0")
	}
	if c.Groups != nil {
		if len(c.Groups) != columns {
			return fmt.Errorf("groups has %d entries for %d columns", len(c.Groups), columns)
		}
		prev := -1
		for i, g := range c.Groups {
			if g < 0 || g < prev || g > prev+1 {
				return fmt.Errorf("groups must be contiguous and non-decreasing (column %d)", i)
			}
			prev = g
		}
	}
	for name, s := range map[string][]float64{
		"fee_rate_by_column":  c.FeeRateByColumn,
		"fixed_fee_by_column": c.FixedFeeByColumn,
		"slippage_by_column":  c.SlippageByColumn,
	} {
		if s == nil {
			continue
		}
		if len(s) != columns {
			return fmt.Errorf("%s has %d entries for %d columns", name, len(s), columns)
		}
		for i, v := range s {
			if v < 0 || math.IsNaN(v) {
				return fmt.Errorf("%s[%d] must be >= 0", name, i)
			}
		}
	}
	return nil
}

// NumGroups returns the number of cash-sharing groups for the column count.
func (c *SimConfig) NumGroups(columns int) int {
	if c.Groups == nil {
		return columns
	}
	return c.Groups[len(c.Groups)-1] + 1
}

// GroupOf returns the group index of a column.
func (c *SimConfig) GroupOf(column int) int {
	if c.Groups == nil {
		return column
	}
	return c.Groups[column]
}

// ColumnFees returns the effective fee rate, fixed fee and slippage for a column.
func (c *SimConfig) ColumnFees(column int) (feeRate, fixedFee, slippage float64) {
	feeRate, fixedFee, slippage = c.FeeRate, c.FixedFee, c.Slippage
	if c.FeeRateByColumn != nil {
		feeRate = c.FeeRateByColumn[column]
	}
	if c.FixedFeeByColumn != nil {
		fixedFee = c.FixedFeeByColumn[column]
	}
	if c.SlippageByColumn != nil {
		slippage = c.SlippageByColumn[column]
	}
	return feeRate, fixedFee, slippage
}
