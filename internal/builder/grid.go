package builder

import (
	"github.com/san-kum/etherm/internal/material"
	"github.com/san-kum/etherm/internal/model"
	"github.com/san-kum/etherm/internal/network"
)

// GridBuilder builds networks from a voxel grid. Cell properties mix the
// conductor and dielectric of the layer linearly by metal fraction.
type GridBuilder[F network.Float] struct {
	m    *model.GridModel
	opts Options
}

func NewGridBuilder[F network.Float](m *model.GridModel, opts Options) *GridBuilder[F] {
	return &GridBuilder[F]{m: m, opts: opts}
}

func (b *GridBuilder[F]) Model() model.Model { return b.m }
func (b *GridBuilder[F]) Name() string       { return "grid" }

type cellProps struct {
	k     [3]float64
	rhoCp float64
}

func (b *GridBuilder[F]) props(r *reader, i int, t float64) cellProps {
	m := b.m
	x, y, z := m.Coord(i)
	layer := m.Layers[z]
	f := layer.Fraction(y*m.Nx + x)

	mix := func(get func(mat int) float64) float64 {
		switch {
		case f <= 0:
			return get(layer.DielectricMat)
		case f >= 1:
			return get(layer.ConductorMat)
		default:
			return f*get(layer.ConductorMat) + (1-f)*get(layer.DielectricMat)
		}
	}

	var p cellProps
	for axis := material.AxisX; axis <= material.AxisZ; axis++ {
		p.k[axis] = mix(func(mat int) float64 { return r.get(mat, material.ThermalConductivity, t, axis) })
	}
	p.rhoCp = mix(func(mat int) float64 { return r.heatCapacity(mat, t) })
	return p
}

func (b *GridBuilder[F]) Build(temps []F) (*network.Network[F], error) {
	m := b.m
	return build(b.Name(), m.TotalElements(), temps, b.opts, func(net *network.Network[F]) error {
		top, bottom := surfaceOf(m, model.Top), surfaceOf(m, model.Bottom)
		w := bcWriter[F]{net: net}
		cellArea := m.Dx * m.Dy
		nz := m.Nz()

		err := forEach(m.Materials(), m.TotalElements(), b.opts, func(r *reader, i int) error {
			x, y, z := m.Coord(i)
			t := float64(temps[i])
			th := m.Layers[z].Thickness
			p := b.props(r, i, t)

			net.SetC(i, F(p.rhoCp*cellArea*th))

			// Each cell owns the edges to its +x, +y and lower neighbors.
			if x+1 < m.Nx {
				j := m.Index(x+1, y, z)
				q := b.props(r, j, float64(temps[j]))
				side := m.Dy * th
				rr := 0.5*m.Dx/(p.k[material.AxisX]*side) + 0.5*m.Dx/(q.k[material.AxisX]*side)
				if err := net.SetR(i, j, F(rr)); err != nil {
					return err
				}
			}
			if y+1 < m.Ny {
				j := m.Index(x, y+1, z)
				q := b.props(r, j, float64(temps[j]))
				side := m.Dx * th
				rr := 0.5*m.Dy/(p.k[material.AxisY]*side) + 0.5*m.Dy/(q.k[material.AxisY]*side)
				if err := net.SetR(i, j, F(rr)); err != nil {
					return err
				}
			}
			if z+1 < nz {
				j := m.Index(x, y, z+1)
				q := b.props(r, j, float64(temps[j]))
				rr := 0.5*th/(p.k[material.AxisZ]*cellArea) + 0.5*m.Layers[z+1].Thickness/(q.k[material.AxisZ]*cellArea)
				if err := net.SetR(i, j, F(rr)); err != nil {
					return err
				}
			}

			cell := y*m.Nx + x
			for _, pw := range m.Powers {
				if pw.Layer != z || pw.Ratio[cell] == 0 {
					continue
				}
				net.AddHF(i, F(pw.Power.Watts(t)*pw.Ratio[cell]))
				net.SetScenario(i, pw.Power.Scenario)
			}

			if z == 0 {
				top.apply(w, i, cellArea, 1, b.blockCover(model.Top, x, y))
			}
			if z == nz-1 {
				bottom.apply(w, i, cellArea, 1, b.blockCover(model.Bottom, x, y))
			}
			return nil
		})
		if err != nil {
			return err
		}
		return addJumps(net, m.Materials(), m.Jumps, temps)
	})
}

func (b *GridBuilder[F]) blockCover(side model.Side, x, y int) []cover {
	blocks := b.m.BlockBCs(side)
	if len(blocks) == 0 {
		return nil
	}
	box := b.m.CellBox(x, y)
	var out []cover
	for _, blk := range blocks {
		if a := box.Intersection(blk.Box).Area(); a > 0 {
			out = append(out, cover{bc: blk.BC, ratio: a / box.Area()})
		}
	}
	return out
}
