// Package mor reduces a thermal state space with PRIMA: a block Arnoldi
// iteration over the Krylov space of G⁻¹C seeded with G⁻¹B, followed by a
// congruence projection that keeps the reduced model passive.
package mor

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/etherm/internal/mna"
	"github.com/san-kum/etherm/internal/sparse"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrInvalidOrder = errors.New("mor: invalid reduction order")
	ErrSingular     = errors.New("mor: reduced capacitance matrix is singular")
)

// dropTol is the relative norm below which a Krylov direction is treated as
// already spanned.
const dropTol = 1e-10

// Reduction is the projection basis and the reduced system
//
//	Cr·dz/dt = −Gr·z + Br·u,  x ≈ X·z
//
// together with the explicit form dz/dt = Coeff·z + Input·u.
type Reduction struct {
	X      *mat.Dense
	Gr     *mat.Dense
	Cr     *mat.Dense
	Br     *mat.Dense
	Coeff  *mat.Dense
	Input  *mat.Dense
	Blocks []int // column count of each Arnoldi block
}

func (r *Reduction) Order() int {
	_, q := r.X.Dims()
	return q
}

// Reduce runs PRIMA on a state space. The conductance matrix is factorized
// once with the given solver kind. q must cover every port of ss, the ambient
// port included.
func Reduce(ss *mna.StateSpace, q int, kind sparse.Kind) (*Reduction, error) {
	return PRIMA(ss.G, sparse.Diagonal(ss.C), ss.B, q, kind)
}

// PRIMA reduces (G, C, B) to order q. It requires p <= q < N and
// 1 <= p < N where B is N×p, so the first Arnoldi block, which carries the
// steady response to every port, is never truncated.
func PRIMA(g, c *sparse.CSR, b mat.Matrix, q int, kind sparse.Kind) (*Reduction, error) {
	n, _ := g.Dims()
	_, p := b.Dims()
	if q < p || q >= n || p < 1 || p >= n {
		return nil, fmt.Errorf("%w: q=%d p=%d N=%d", ErrInvalidOrder, q, p, n)
	}

	solver, err := sparse.NewSolver(kind, g, sparse.DefaultCGOptions)
	if err != nil {
		return nil, fmt.Errorf("factorize G: %w", err)
	}

	r0, err := solver.SolveDense(b)
	if err != nil {
		return nil, fmt.Errorf("solve G·R = B: %w", err)
	}
	first := orthonormalize(r0, nil)
	if first == nil {
		return nil, fmt.Errorf("%w: inputs span nothing", ErrInvalidOrder)
	}

	blocks := []*mat.Dense{first}
	total := colsOf(first)
	steps := (q + p - 1) / p
	for k := 1; k < steps && total < q; k++ {
		w, err := solver.SolveDense(c.MulDense(blocks[k-1]))
		if err != nil {
			return nil, fmt.Errorf("arnoldi step %d: %w", k, err)
		}
		ref := colNorms(w)
		// Two passes of block Gram-Schmidt keep the basis orthogonal when
		// the Krylov vectors are nearly parallel.
		for pass := 0; pass < 2; pass++ {
			for _, prev := range blocks {
				var h mat.Dense
				h.Mul(prev.T(), w)
				var proj mat.Dense
				proj.Mul(prev, &h)
				w.Sub(w, &proj)
			}
		}
		next := orthonormalize(w, ref)
		if next == nil {
			break
		}
		blocks = append(blocks, next)
		total += colsOf(next)
	}

	x, sizes := concat(blocks, q)
	red := &Reduction{X: x, Blocks: sizes}
	if err := red.project(g, c, b); err != nil {
		return nil, err
	}
	return red, nil
}

func (r *Reduction) project(g, c *sparse.CSR, b mat.Matrix) error {
	q := r.Order()
	r.Gr = congruence(r.X, g)
	r.Cr = congruence(r.X, c)
	r.Br = mat.NewDense(q, colsOf(b), nil)
	r.Br.Mul(r.X.T(), b)

	var lu mat.LU
	lu.Factorize(r.Cr)
	if cond := lu.Cond(); math.IsInf(cond, 0) || math.IsNaN(cond) || cond > mat.ConditionTolerance {
		return ErrSingular
	}
	negG := mat.NewDense(q, q, nil)
	negG.Scale(-1, r.Gr)

	r.Coeff = mat.NewDense(q, q, nil)
	if err := lu.SolveTo(r.Coeff, false, negG); err != nil {
		return fmt.Errorf("%w: %v", ErrSingular, err)
	}
	r.Input = mat.NewDense(q, colsOf(b), nil)
	if err := lu.SolveTo(r.Input, false, r.Br); err != nil {
		return fmt.Errorf("%w: %v", ErrSingular, err)
	}
	return nil
}

// congruence returns Xᵀ·A·X.
func congruence(x *mat.Dense, a *sparse.CSR) *mat.Dense {
	ax := a.MulDense(x)
	_, q := x.Dims()
	out := mat.NewDense(q, q, nil)
	out.Mul(x.T(), ax)
	return out
}

// orthonormalize returns an orthonormal basis of the columns of m by modified
// Gram-Schmidt, dropping columns whose remaining norm falls below dropTol of
// their reference norm (ref[j], or the column's own norm when ref is nil). A
// single column is just normalized. It returns nil when every column is
// dependent.
func orthonormalize(m *mat.Dense, ref []float64) *mat.Dense {
	rows, cols := m.Dims()
	var basis []*mat.VecDense
	for j := 0; j < cols; j++ {
		v := mat.VecDenseCopyOf(m.ColView(j))
		orig := mat.Norm(v, 2)
		if ref != nil {
			orig = ref[j]
		}
		if orig == 0 {
			continue
		}
		for pass := 0; pass < 2; pass++ {
			for _, u := range basis {
				v.AddScaledVec(v, -mat.Dot(u, v), u)
			}
		}
		nv := mat.Norm(v, 2)
		if nv <= dropTol*orig {
			continue
		}
		v.ScaleVec(1/nv, v)
		basis = append(basis, v)
	}
	if len(basis) == 0 {
		return nil
	}
	out := mat.NewDense(rows, len(basis), nil)
	for j, u := range basis {
		out.SetCol(j, u.RawVector().Data)
	}
	return out
}

func colNorms(m *mat.Dense) []float64 {
	_, cols := m.Dims()
	out := make([]float64, cols)
	for j := range out {
		out[j] = mat.Norm(m.ColView(j), 2)
	}
	return out
}

// concat joins blocks column-wise and truncates to at most q columns.
func concat(blocks []*mat.Dense, q int) (*mat.Dense, []int) {
	rows, _ := blocks[0].Dims()
	total := 0
	for _, b := range blocks {
		total += colsOf(b)
	}
	q = min(q, total)
	out := mat.NewDense(rows, q, nil)
	col := make([]float64, rows)
	var sizes []int
	at := 0
	for _, b := range blocks {
		take := min(colsOf(b), q-at)
		if take <= 0 {
			break
		}
		for j := 0; j < take; j++ {
			mat.Col(col, j, b)
			out.SetCol(at+j, col)
		}
		sizes = append(sizes, take)
		at += take
	}
	return out, sizes
}

func colsOf(m mat.Matrix) int {
	_, c := m.Dims()
	return c
}
