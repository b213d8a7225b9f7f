package sparse

import (
	"container/heap"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// pivotTol is the pivot magnitude, relative to the largest entry of its
// original row, below which a matrix is treated as singular.
const pivotTol = 1e-12

// rows is a growing row-compressed triangular factor.
type rows struct {
	ptr []int
	col []int
	val []float64
}

func (r *rows) each(i int, fn func(j int, v float64)) {
	for k := r.ptr[i]; k < r.ptr[i+1]; k++ {
		fn(r.col[k], r.val[k])
	}
}

// factor is a sparse row-by-row Gaussian elimination PAPᵀ = L·U with the
// rows and columns symmetrically permuted by RCM and pivots taken on the
// diagonal. Conductance matrices are diagonally dominant, so diagonal pivots
// are stable. With symmetric set only U is kept and L is read from it as
// L[i][k] = U[k][i]/U[k][k].
type factor struct {
	n         int
	perm      []int
	symmetric bool
	l, u      rows
	diag      []float64
}

func newFactor(a *CSR, symmetric bool) (*factor, error) {
	n, _ := a.Dims()
	f := &factor{n: n, perm: RCM(a), symmetric: symmetric, diag: make([]float64, n)}
	inv := invert(f.perm)
	f.l.ptr = append(f.l.ptr, 0)
	f.u.ptr = append(f.u.ptr, 0)

	w := make([]float64, n)
	mark := make([]int, n)
	for i := range mark {
		mark[i] = -1
	}
	var pattern []int
	var pending intHeap

	for i := 0; i < n; i++ {
		pattern = pattern[:0]
		pending = pending[:0]
		scale := 0.0
		a.Row(f.perm[i], func(j int, v float64) {
			c := inv[j]
			mark[c] = i
			w[c] = v
			pattern = append(pattern, c)
			if c < i {
				pending = append(pending, c)
			}
			scale = math.Max(scale, math.Abs(v))
		})
		heap.Init(&pending)

		for pending.Len() > 0 {
			k := heap.Pop(&pending).(int)
			lik := w[k] / f.diag[k]
			w[k] = lik
			if lik == 0 {
				continue
			}
			f.u.each(k, func(j int, ukj float64) {
				if mark[j] != i {
					mark[j] = i
					w[j] = 0
					pattern = append(pattern, j)
					if j < i {
						heap.Push(&pending, j)
					}
				}
				w[j] -= lik * ukj
			})
		}

		if mark[i] != i {
			return nil, fmt.Errorf("%w: row %d has no diagonal", ErrSingular, f.perm[i])
		}
		d := w[i]
		switch {
		case symmetric && !(d > pivotTol*scale):
			return nil, fmt.Errorf("%w: pivot %g at row %d", ErrNotPosDef, d, f.perm[i])
		case math.Abs(d) <= pivotTol*scale || math.IsNaN(d):
			return nil, fmt.Errorf("%w: pivot %g at row %d", ErrSingular, d, f.perm[i])
		}
		f.diag[i] = d

		sort.Ints(pattern)
		for _, c := range pattern {
			switch {
			case c < i && !symmetric:
				f.l.col = append(f.l.col, c)
				f.l.val = append(f.l.val, w[c])
			case c > i:
				f.u.col = append(f.u.col, c)
				f.u.val = append(f.u.val, w[c])
			}
		}
		f.l.ptr = append(f.l.ptr, len(f.l.col))
		f.u.ptr = append(f.u.ptr, len(f.u.col))
	}
	return f, nil
}

// NNZ is the number of stored off-diagonal factor entries.
func (f *factor) NNZ() int { return len(f.l.val) + len(f.u.val) }

func (f *factor) Solve(b []float64) ([]float64, error) {
	if len(b) != f.n {
		return nil, fmt.Errorf("%w: rhs has %d entries, want %d", ErrDimension, len(b), f.n)
	}
	y := make([]float64, f.n)
	for i, p := range f.perm {
		y[i] = b[p]
	}

	if f.symmetric {
		for k := 0; k < f.n; k++ {
			if y[k] == 0 {
				continue
			}
			s := y[k] / f.diag[k]
			f.u.each(k, func(j int, v float64) { y[j] -= v * s })
		}
	} else {
		for i := 0; i < f.n; i++ {
			s := y[i]
			f.l.each(i, func(k int, v float64) { s -= v * y[k] })
			y[i] = s
		}
	}

	for i := f.n - 1; i >= 0; i-- {
		s := y[i]
		f.u.each(i, func(j int, v float64) { s -= v * y[j] })
		y[i] = s / f.diag[i]
	}

	x := make([]float64, f.n)
	for i, p := range f.perm {
		x[p] = y[i]
	}
	return x, nil
}

func (f *factor) SolveDense(b mat.Matrix) (*mat.Dense, error) {
	return solveColumns(f, f.n, b)
}

type intHeap []int

func (h intHeap) Len() int           { return len(h) }
func (h intHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intHeap) Pop() any {
	old := *h
	v := old[len(old)-1]
	*h = old[:len(old)-1]
	return v
}
