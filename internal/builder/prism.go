package builder

import (
	"fmt"
	"sync"

	"github.com/san-kum/etherm/internal/geom"
	"github.com/san-kum/etherm/internal/material"
	"github.com/san-kum/etherm/internal/model"
	"github.com/san-kum/etherm/internal/network"
)

// PrismBuilder builds networks from a prism model. Vertical coupling follows
// the shared-template top/bottom neighbors, or area-weighted contacts when
// built for a stackup model.
type PrismBuilder[F network.Float] struct {
	m     *model.PrismModel
	stack *model.StackupPrismModel
	mdl   model.Model
	name  string
	opts  Options

	coverOnce sync.Once
	covers    [2]map[int][]cover
}

func NewPrismBuilder[F network.Float](m *model.PrismModel, opts Options) *PrismBuilder[F] {
	return &PrismBuilder[F]{m: m, mdl: m, name: "prism", opts: opts}
}

// StackupPrismBuilder is a PrismBuilder over contacts between independently
// triangulated layers.
type StackupPrismBuilder[F network.Float] struct {
	*PrismBuilder[F]
}

// NewStackupPrismBuilder computes the model's contacts if that has not
// happened yet.
func NewStackupPrismBuilder[F network.Float](m *model.StackupPrismModel, opts Options) (*StackupPrismBuilder[F], error) {
	if !m.ContactsBuilt() {
		if err := m.BuildContacts(opts.Workers); err != nil {
			return nil, fmt.Errorf("stackup contacts: %w", err)
		}
	}
	return &StackupPrismBuilder[F]{&PrismBuilder[F]{m: m.PrismModel, stack: m, mdl: m, name: "stackup-prism", opts: opts}}, nil
}

func (b *PrismBuilder[F]) Model() model.Model { return b.mdl }
func (b *PrismBuilder[F]) Name() string       { return b.name }

type prismProps struct {
	kxy, kz float64
	rhoCp   float64
}

func (b *PrismBuilder[F]) props(r *reader, i int, t float64) prismProps {
	mat := b.m.Prisms[i].MaterialID
	return prismProps{
		kxy:   r.get(mat, material.ThermalConductivity, t, material.AxisX),
		kz:    r.get(mat, material.ThermalConductivity, t, material.AxisZ),
		rhoCp: r.heatCapacity(mat, t),
	}
}

func (b *PrismBuilder[F]) Build(temps []F) (*network.Network[F], error) {
	m := b.m
	return build(b.name, m.TotalElements(), temps, b.opts, func(net *network.Network[F]) error {
		b.coverOnce.Do(b.resolveBlocks)
		top, bottom := surfaceOf(b.mdl, model.Top), surfaceOf(b.mdl, model.Bottom)
		w := bcWriter[F]{net: net}

		err := forEach(m.Materials(), m.TotalPrisms(), b.opts, func(r *reader, i int) error {
			e := m.Prisms[i]
			t := float64(temps[i])
			p := b.props(r, i, t)
			area := m.Area(i)
			th := m.Thickness(i)

			net.SetC(i, F(p.rhoCp*area*th))

			for k := 0; k < 3; k++ {
				j := e.Neighbors[k]
				if j == model.NoNeighbor || j < i {
					continue
				}
				q := b.props(r, j, float64(temps[j]))
				rr := m.EdgeDistance(i, k)/(p.kxy*m.SideArea(i, k)) +
					m.EdgeDistance(j, backEdge(m, j, i))/(q.kxy*m.SideArea(i, k))
				if err := net.SetR(i, j, F(rr)); err != nil {
					return err
				}
			}

			exposedTop, exposedBottom := 0.0, 0.0
			if b.stack != nil {
				contacts, err := b.stack.Contacts(i, model.Bottom)
				if err != nil {
					return err
				}
				for _, c := range contacts {
					q := b.props(r, c.Index, float64(temps[c.Index]))
					overlap := c.Ratio * area
					rr := 0.5*th/(p.kz*overlap) + 0.5*m.Thickness(c.Index)/(q.kz*overlap)
					if err := net.SetR(i, c.Index, F(rr)); err != nil {
						return err
					}
				}
				exposedTop = b.stack.Exposed(i, model.Top)
				exposedBottom = b.stack.Exposed(i, model.Bottom)
			} else {
				if j := e.Neighbors[model.NeighborBottom]; j != model.NoNeighbor {
					q := b.props(r, j, float64(temps[j]))
					rr := 0.5*th/(p.kz*area) + 0.5*m.Thickness(j)/(q.kz*m.Area(j))
					if err := net.SetR(i, j, F(rr)); err != nil {
						return err
					}
				} else {
					exposedBottom = 1
				}
				if e.Neighbors[model.NeighborTop] == model.NoNeighbor {
					exposedTop = 1
				}
			}

			for _, src := range e.Sources {
				pw := m.Powers[src.ID]
				net.AddHF(i, F(pw.Watts(t)*src.Ratio))
				net.SetScenario(i, pw.Scenario)
			}

			top.apply(w, i, area, exposedTop, b.covers[model.Top][i])
			bottom.apply(w, i, area, exposedBottom, b.covers[model.Bottom][i])
			return nil
		})
		if err != nil {
			return err
		}
		if err := b.buildLines(net, temps); err != nil {
			return err
		}
		return addJumps(net, m.Materials(), m.Jumps, temps)
	})
}

// backEdge finds the edge of prism j that faces prism i.
func backEdge(m *model.PrismModel, j, i int) int {
	for k := 0; k < 3; k++ {
		if m.Prisms[j].Neighbors[k] == i {
			return k
		}
	}
	return 0
}

// resolveBlocks finds, through the spatial index, the share of every prism
// face covered by each block boundary region.
func (b *PrismBuilder[F]) resolveBlocks() {
	for _, side := range []model.Side{model.Top, model.Bottom} {
		blocks := b.mdl.BlockBCs(side)
		if len(blocks) == 0 {
			continue
		}
		covers := make(map[int][]cover)
		for l := range b.m.Layers {
			layer := b.m.Index().Layer(l)
			for _, blk := range blocks {
				for _, it := range layer.Intersects(blk.Box) {
					a := geom.BoxTriangleIntersectionArea(blk.Box, it.Tri)
					if a > 0 {
						covers[it.Index] = append(covers[it.Index], cover{bc: blk.BC, ratio: a / it.Tri.Area()})
					}
				}
			}
		}
		b.covers[side] = covers
	}
}

// buildLines adds bondwire segments. They attach to prisms owned by other
// partitions, so they run after the parallel pass.
func (b *PrismBuilder[F]) buildLines(net *network.Network[F], temps []F) error {
	m := b.m
	r := &reader{lib: m.Materials()}
	halfR := func(l model.LineElement, t float64) float64 {
		k := r.get(l.MaterialID, material.ThermalConductivity, t, material.AxisX)
		return 0.5 * l.Length() / (k * l.Area())
	}

	for n := range m.Lines {
		i := m.TotalPrisms() + n
		l := m.Lines[n]
		t := float64(temps[i])

		net.SetC(i, F(r.heatCapacity(l.MaterialID, t)*l.Volume()))
		if l.Current != 0 {
			rho := r.get(l.MaterialID, material.Resistivity, t, material.AxisX)
			net.AddHF(i, F(rho*l.Length()*l.Current*l.Current/l.Area()))
			net.SetScenario(i, l.Scenario)
		}

		own := halfR(l, t)
		if l.Next != model.NoNeighbor {
			next := m.Line(l.Next)
			if err := net.SetR(i, l.Next, F(own+halfR(next, float64(temps[l.Next])))); err != nil {
				return err
			}
		}
		// An attached prism adds its own half: center to face through kz.
		for _, p := range []int{l.StartPrism, l.EndPrism} {
			if p == model.NoNeighbor {
				continue
			}
			q := b.props(r, p, float64(temps[p]))
			side := 0.5 * m.Thickness(p) / (q.kz * m.Area(p))
			if err := net.AddR(i, p, F(own+side)); err != nil {
				return err
			}
		}
		if r.err != nil {
			return fmt.Errorf("line element %d: %w", i, r.err)
		}
	}
	return nil
}
