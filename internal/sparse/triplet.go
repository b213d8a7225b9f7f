package sparse

import (
	"fmt"
	"sort"
)

// Triplets accumulates (i, j, v) entries. Duplicates are summed on
// conversion, which is how conductance stamps combine.
type Triplets struct {
	rows, cols int
	is, js     []int
	vs         []float64
}

func NewTriplets(rows, cols int) *Triplets {
	return &Triplets{rows: rows, cols: cols}
}

func (t *Triplets) Dims() (int, int) { return t.rows, t.cols }

func (t *Triplets) Add(i, j int, v float64) {
	if i < 0 || i >= t.rows || j < 0 || j >= t.cols {
		panic(fmt.Errorf("%w: (%d,%d) in %dx%d", ErrIndexOutOfRange, i, j, t.rows, t.cols))
	}
	if v == 0 {
		return
	}
	t.is = append(t.is, i)
	t.js = append(t.js, j)
	t.vs = append(t.vs, v)
}

// StampConductance adds g between nodes i and j. A negative index is the
// reference node and only contributes to the diagonal of the other.
func (t *Triplets) StampConductance(i, j int, g float64) {
	if i >= 0 {
		t.Add(i, i, g)
	}
	if j >= 0 {
		t.Add(j, j, g)
	}
	if i >= 0 && j >= 0 {
		t.Add(i, j, -g)
		t.Add(j, i, -g)
	}
}

// CSR compresses the triplets. Entries that sum to exactly zero are kept so
// the sparsity pattern does not depend on cancellation.
func (t *Triplets) CSR() *CSR {
	order := make([]int, len(t.vs))
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(a, b int) bool {
		ka, kb := order[a], order[b]
		if t.is[ka] != t.is[kb] {
			return t.is[ka] < t.is[kb]
		}
		return t.js[ka] < t.js[kb]
	})

	m := &CSR{rows: t.rows, cols: t.cols, rowPtr: make([]int, t.rows+1)}
	lastI, lastJ := -1, -1
	for _, k := range order {
		i, j := t.is[k], t.js[k]
		if i == lastI && j == lastJ {
			m.values[len(m.values)-1] += t.vs[k]
			continue
		}
		m.colInd = append(m.colInd, j)
		m.values = append(m.values, t.vs[k])
		m.rowPtr[i+1]++
		lastI, lastJ = i, j
	}
	for i := 0; i < t.rows; i++ {
		m.rowPtr[i+1] += m.rowPtr[i]
	}
	return m
}

// Diagonal builds a diagonal CSR matrix.
func Diagonal(d []float64) *CSR {
	t := NewTriplets(len(d), len(d))
	for i, v := range d {
		t.Add(i, i, v)
	}
	return t.CSR()
}
