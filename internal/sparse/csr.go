// Package sparse provides the compressed sparse row matrix used for network
// conductance and capacitance matrices, with iterative and direct solvers.
package sparse

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrDimension       = errors.New("sparse: dimension mismatch")
	ErrNotConverged    = errors.New("sparse: iterative solve did not converge")
	ErrSingular        = errors.New("sparse: matrix is singular")
	ErrNotPosDef       = errors.New("sparse: matrix is not positive definite")
	ErrUnknownSolver   = errors.New("sparse: unknown solver kind")
	ErrIndexOutOfRange = errors.New("sparse: index out of range")
)

// CSR is an immutable compressed sparse row matrix. Column indices within a
// row are sorted. CSR implements mat.Matrix so it can feed gonum routines.
type CSR struct {
	rows, cols int
	rowPtr     []int
	colInd     []int
	values     []float64
}

var _ mat.Matrix = (*CSR)(nil)

func (m *CSR) Dims() (int, int) { return m.rows, m.cols }

// At returns element (i, j), zero if it is not stored.
func (m *CSR) At(i, j int) float64 {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(ErrIndexOutOfRange)
	}
	start, end := m.rowPtr[i], m.rowPtr[i+1]
	pos := sort.SearchInts(m.colInd[start:end], j) + start
	if pos < end && m.colInd[pos] == j {
		return m.values[pos]
	}
	return 0
}

func (m *CSR) T() mat.Matrix { return mat.Transpose{Matrix: m} }

func (m *CSR) NNZ() int { return len(m.values) }

// Row calls fn for every stored entry of row i in column order.
func (m *CSR) Row(i int, fn func(j int, v float64)) {
	for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
		fn(m.colInd[k], m.values[k])
	}
}

// MulVec computes dst = m·x. dst must not alias x.
func (m *CSR) MulVec(dst, x []float64) {
	if len(x) != m.cols || len(dst) != m.rows {
		panic(fmt.Errorf("%w: %dx%d times %d into %d", ErrDimension, m.rows, m.cols, len(x), len(dst)))
	}
	for i := 0; i < m.rows; i++ {
		s := 0.0
		for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
			s += m.values[k] * x[m.colInd[k]]
		}
		dst[i] = s
	}
}

// MulDense returns m·x for a dense right-hand side.
func (m *CSR) MulDense(x mat.Matrix) *mat.Dense {
	r, c := x.Dims()
	if r != m.cols {
		panic(fmt.Errorf("%w: %dx%d times %dx%d", ErrDimension, m.rows, m.cols, r, c))
	}
	out := mat.NewDense(m.rows, c, nil)
	col := make([]float64, r)
	dst := make([]float64, m.rows)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		m.MulVec(dst, col)
		out.SetCol(j, dst)
	}
	return out
}

func (m *CSR) Diagonal() []float64 {
	n := min(m.rows, m.cols)
	d := make([]float64, n)
	for i := 0; i < n; i++ {
		d[i] = m.At(i, i)
	}
	return d
}

func (m *CSR) Dense() *mat.Dense {
	d := mat.NewDense(m.rows, m.cols, nil)
	for i := 0; i < m.rows; i++ {
		m.Row(i, func(j int, v float64) { d.Set(i, j, v) })
	}
	return d
}

// Symmetric reports whether m equals its transpose within tol.
func (m *CSR) Symmetric(tol float64) bool {
	if m.rows != m.cols {
		return false
	}
	for i := 0; i < m.rows; i++ {
		for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
			j := m.colInd[k]
			d := m.values[k] - m.At(j, i)
			if d > tol || d < -tol {
				return false
			}
		}
	}
	return true
}
