package builder

import (
	"github.com/san-kum/etherm/internal/model"
	"github.com/san-kum/etherm/internal/network"
)

// cover is the share of an element face inside one block boundary region.
type cover struct {
	bc    model.BC
	ratio float64
}

// surface holds the boundary conditions of one side of the model.
type surface struct {
	uniform    model.BC
	hasUniform bool
}

func surfaceOf(m model.Model, side model.Side) surface {
	bc, ok := m.UniformBC(side)
	return surface{uniform: bc, hasUniform: ok}
}

// apply adds the boundary terms of a face of area a, of which exposed is the
// fraction open to the outside. Blocks claim their share first, in order; the
// uniform condition covers what remains.
func (s surface) apply(net boundaryNet, i int, a, exposed float64, blocks []cover) {
	if exposed <= 0 || a <= 0 {
		return
	}
	rest := 1.0
	for _, c := range blocks {
		share := min(c.ratio, rest)
		if share <= 0 {
			continue
		}
		net.addBC(i, c.bc, a*exposed*share)
		rest -= share
	}
	if s.hasUniform && rest > 0 {
		net.addBC(i, s.uniform, a*exposed*rest)
	}
}

type boundaryNet interface {
	addBC(i int, bc model.BC, area float64)
}

// bcWriter adapts a network to boundaryNet.
type bcWriter[F network.Float] struct {
	net *network.Network[F]
}

func (w bcWriter[F]) addBC(i int, bc model.BC, area float64) {
	switch bc.Type {
	case model.HTC:
		w.net.AddHTC(i, F(bc.Value*area))
	case model.HeatFlux:
		w.net.AddHF(i, F(bc.Value*area))
	}
}
