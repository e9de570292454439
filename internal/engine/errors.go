package engine

import (
	"errors"
	"fmt"
)

// Setup errors. All of these abort a run before any step is processed.
var (
	ErrNoPrices       = errors.New("price matrix is required")
	ErrNoRequestInput = errors.New("either a size matrix or entry/exit signal matrices are required")
	ErrAmbiguousInput = errors.New("size matrix and signal matrices are mutually exclusive")
	ErrMisaligned     = errors.New("input matrices are not aligned")
	ErrMalformedPrice = errors.New("price matrix contains negative or infinite values")
)

// InvariantError reports a kernel-side consistency violation (not a caller
// input error). The run aborts at the step and column where it was detected.
type InvariantError struct {
	Step   int
	Column int
	Msg    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation at step %d column %d: %s", e.Step, e.Column, e.Msg)
}
