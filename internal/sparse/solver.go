package sparse

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Kind selects a linear solver family.
type Kind string

const (
	CG       Kind = "cg"
	LU       Kind = "lu"
	Cholesky Kind = "cholesky"
)

// Solver solves A·x = b for a fixed A. Direct solvers factorize once into
// sparse triangular factors; CG keeps only A and suits the largest meshes.
type Solver interface {
	Solve(b []float64) ([]float64, error)
	// SolveDense solves for every column of b.
	SolveDense(b mat.Matrix) (*mat.Dense, error)
}

type CGOptions struct {
	// Tol is the relative residual ||b - A·x|| / ||b|| to reach.
	Tol     float64
	MaxIter int // 0 means 10·n
}

var DefaultCGOptions = CGOptions{Tol: 1e-12}

// NewSolver prepares a solver of the given kind for a square matrix a.
func NewSolver(kind Kind, a *CSR, opts CGOptions) (Solver, error) {
	r, c := a.Dims()
	if r != c || r == 0 {
		return nil, fmt.Errorf("%w: %dx%d is not square and non-empty", ErrDimension, r, c)
	}
	var (
		f   *factor
		err error
	)
	switch kind {
	case CG:
		return newCG(a, opts), nil
	case LU:
		f, err = newLU(a)
	case Cholesky:
		f, err = newCholesky(a)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSolver, kind)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func solveColumns(s Solver, n int, b mat.Matrix) (*mat.Dense, error) {
	r, c := b.Dims()
	if r != n {
		return nil, fmt.Errorf("%w: rhs has %d rows, want %d", ErrDimension, r, n)
	}
	out := mat.NewDense(n, c, nil)
	col := make([]float64, n)
	for j := 0; j < c; j++ {
		mat.Col(col, j, b)
		x, err := s.Solve(col)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", j, err)
		}
		out.SetCol(j, x)
	}
	return out, nil
}

// cgSolver is Jacobi-preconditioned conjugate gradient for symmetric positive
// definite matrices.
type cgSolver struct {
	a    *CSR
	inv  []float64
	opts CGOptions
}

func newCG(a *CSR, opts CGOptions) *cgSolver {
	if opts.Tol <= 0 {
		opts.Tol = DefaultCGOptions.Tol
	}
	n, _ := a.Dims()
	if opts.MaxIter <= 0 {
		opts.MaxIter = 10 * max(n, 1)
	}
	inv := a.Diagonal()
	for i, d := range inv {
		if d != 0 {
			inv[i] = 1 / d
		} else {
			inv[i] = 1
		}
	}
	return &cgSolver{a: a, inv: inv, opts: opts}
}

func (s *cgSolver) Solve(b []float64) ([]float64, error) {
	n := len(s.inv)
	if len(b) != n {
		return nil, fmt.Errorf("%w: rhs has %d entries, want %d", ErrDimension, len(b), n)
	}
	x := make([]float64, n)
	bnorm := norm(b)
	if bnorm == 0 {
		return x, nil
	}

	r := append([]float64(nil), b...)
	z := make([]float64, n)
	for i := range z {
		z[i] = s.inv[i] * r[i]
	}
	p := append([]float64(nil), z...)
	ap := make([]float64, n)
	rz := dot(r, z)

	for it := 0; it < s.opts.MaxIter; it++ {
		s.a.MulVec(ap, p)
		pap := dot(p, ap)
		if pap <= 0 {
			return nil, ErrNotPosDef
		}
		alpha := rz / pap
		for i := range x {
			x[i] += alpha * p[i]
			r[i] -= alpha * ap[i]
		}
		if norm(r) <= s.opts.Tol*bnorm {
			return x, nil
		}
		for i := range z {
			z[i] = s.inv[i] * r[i]
		}
		rzNew := dot(r, z)
		beta := rzNew / rz
		rz = rzNew
		for i := range p {
			p[i] = z[i] + beta*p[i]
		}
	}
	return x, fmt.Errorf("%w after %d iterations (residual %.3g)", ErrNotConverged, s.opts.MaxIter, norm(r)/bnorm)
}

func (s *cgSolver) SolveDense(b mat.Matrix) (*mat.Dense, error) {
	return solveColumns(s, len(s.inv), b)
}

func newLU(a *CSR) (*factor, error) {
	return newFactor(a, false)
}

// newCholesky factorizes a symmetric positive definite matrix as UᵀD⁻¹U,
// the LDLᵀ form of its Cholesky factor.
func newCholesky(a *CSR) (*factor, error) {
	if !a.Symmetric(1e-12 * maxAbs(a)) {
		return nil, fmt.Errorf("%w: matrix is not symmetric", ErrNotPosDef)
	}
	return newFactor(a, true)
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func norm(a []float64) float64 { return math.Sqrt(dot(a, a)) }

func maxAbs(a *CSR) float64 {
	m := 0.0
	for _, v := range a.values {
		m = math.Max(m, math.Abs(v))
	}
	return m
}
