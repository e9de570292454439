// Package inputs holds the broadcast input set: aligned per-step, per-column
// arrays sharing one time index and one column axis. The kernel consumes
// these as-is; broadcasting scalars into full grids is the caller's job.
package inputs

import (
	"errors"
	"fmt"
	"math"
)

// Matrix is a dense row-major (step × column) float matrix.
// NaN cells mean "absent" where a request matrix is expected.
type Matrix struct {
	steps   int
	columns int
	data    []float64
}

// Matrix errors
var (
	ErrEmptyMatrix = errors.New("matrix must have at least one step and one column")
	ErrRaggedRows  = errors.New("matrix rows have inconsistent lengths")
)

// NewMatrix allocates a steps × columns matrix filled with NaN.
func NewMatrix(steps, columns int) (*Matrix, error) {
	if steps <= 0 || columns <= 0 {
		return nil, ErrEmptyMatrix
	}
	data := make([]float64, steps*columns)
	for i := range data {
		data[i] = math.NaN()
	}
	return &Matrix{steps: steps, columns: columns, data: data}, nil
}

// FromRows builds a matrix from per-step rows. All rows must have equal length.
func FromRows(rows [][]float64) (*Matrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmptyMatrix
	}
	columns := len(rows[0])
	m := &Matrix{steps: len(rows), columns: columns, data: make([]float64, len(rows)*columns)}
	for i, row := range rows {
		if len(row) != columns {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrRaggedRows, i, len(row), columns)
		}
		copy(m.data[i*columns:(i+1)*columns], row)
	}
	return m, nil
}

// Steps returns the number of time steps.
func (m *Matrix) Steps() int { return m.steps }

// Columns returns the number of columns.
func (m *Matrix) Columns() int { return m.columns }

// At returns the value at (step, column). No bounds checks beyond the slice's
// own; callers iterate within Steps()/Columns().
func (m *Matrix) At(step, column int) float64 {
	return m.data[step*m.columns+column]
}

// Set writes the value at (step, column).
func (m *Matrix) Set(step, column int, v float64) {
	m.data[step*m.columns+column] = v
}

// Raw exposes the backing slice for digesting. Callers must not mutate it.
func (m *Matrix) Raw() []float64 { return m.data }

// SameShape reports whether two matrices are step/column aligned.
func (m *Matrix) SameShape(o *Matrix) bool {
	return o != nil && m.steps == o.steps && m.columns == o.columns
}

// BoolMatrix is a dense row-major (step × column) boolean matrix, used for
// entry/exit signal arrays.
type BoolMatrix struct {
	steps   int
	columns int
	data    []bool
}

// NewBoolMatrix allocates a steps × columns matrix of false.
func NewBoolMatrix(steps, columns int) (*BoolMatrix, error) {
	if steps <= 0 || columns <= 0 {
		return nil, ErrEmptyMatrix
	}
	return &BoolMatrix{steps: steps, columns: columns, data: make([]bool, steps*columns)}, nil
}

// BoolFromRows builds a signal matrix from per-step rows.
func BoolFromRows(rows [][]bool) (*BoolMatrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmptyMatrix
	}
	columns := len(rows[0])
	m := &BoolMatrix{steps: len(rows), columns: columns, data: make([]bool, len(rows)*columns)}
	for i, row := range rows {
		if len(row) != columns {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrRaggedRows, i, len(row), columns)
		}
		copy(m.data[i*columns:(i+1)*columns], row)
	}
	return m, nil
}

// Steps returns the number of time steps.
func (m *BoolMatrix) Steps() int { return m.steps }

// Columns returns the number of columns.
func (m *BoolMatrix) Columns() int { return m.columns }

// At returns the value at (step, column).
func (m *BoolMatrix) At(step, column int) bool {
	return m.data[step*m.columns+column]
}

// Set writes the value at (step, column).
func (m *BoolMatrix) Set(step, column int, v bool) {
	m.data[step*m.columns+column] = v
}

// Raw exposes the backing slice for digesting. Callers must not mutate it.
func (m *BoolMatrix) Raw() []bool { return m.data }

// AlignedWith reports whether the signal matrix matches a price matrix shape.
func (m *BoolMatrix) AlignedWith(p *Matrix) bool {
	return p != nil && m.steps == p.steps && m.columns == p.columns
}
