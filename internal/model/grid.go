package model

import (
	"fmt"
	"math"

	"github.com/san-kum/etherm/internal/geom"
	"github.com/san-kum/etherm/internal/material"
)

// GridLayer is one slab of the voxel stack. Each cell mixes the conductor and
// dielectric materials by its metal fraction.
type GridLayer struct {
	Name          string
	Thickness     float64
	ConductorMat  int
	DielectricMat int
	// MetalFraction has one entry per cell (nx*ny, row-major) or is empty for 0.
	MetalFraction []float64
}

func (l GridLayer) Fraction(cell int) float64 {
	if len(l.MetalFraction) == 0 {
		return 0
	}
	return l.MetalFraction[cell]
}

// GridPower distributes a power model over the cells of one layer. Ratio has
// one entry per cell and usually sums to 1.
type GridPower struct {
	Layer int
	Power Power
	Ratio []float64
}

// GridModel is a regular nx × ny × nz voxel stack. Layer 0 is the top.
// Element index is z*nx*ny + y*nx + x.
type GridModel struct {
	boundary

	Nx, Ny int
	Dx, Dy float64
	Origin geom.Point2
	Layers []GridLayer
	Powers []GridPower
	Jumps  []JumpConnection

	lib material.Library
}

func NewGridModel(lib material.Library, nx, ny int, dx, dy float64) *GridModel {
	return &GridModel{Nx: nx, Ny: ny, Dx: dx, Dy: dy, lib: lib}
}

func (m *GridModel) Kind() Kind                   { return KindGrid }
func (m *GridModel) Materials() material.Library { return m.lib }
func (m *GridModel) Nz() int                      { return len(m.Layers) }
func (m *GridModel) CellsPerLayer() int           { return m.Nx * m.Ny }
func (m *GridModel) TotalElements() int           { return m.Nx * m.Ny * len(m.Layers) }

func (m *GridModel) AddLayer(l GridLayer) error {
	if l.Thickness <= 0 {
		return fmt.Errorf("layer %q: thickness must be positive", l.Name)
	}
	if n := len(l.MetalFraction); n != 0 && n != m.CellsPerLayer() {
		return fmt.Errorf("layer %q: metal fraction has %d cells, want %d", l.Name, n, m.CellsPerLayer())
	}
	m.Layers = append(m.Layers, l)
	return nil
}

func (m *GridModel) AddPower(p GridPower) error {
	if p.Layer < 0 || p.Layer >= len(m.Layers) {
		return fmt.Errorf("power layer %d out of range", p.Layer)
	}
	if len(p.Ratio) != m.CellsPerLayer() {
		return fmt.Errorf("power ratio has %d cells, want %d", len(p.Ratio), m.CellsPerLayer())
	}
	for _, q := range m.Powers {
		if q.Layer != p.Layer || q.Power.Scenario == p.Power.Scenario {
			continue
		}
		for c, r := range p.Ratio {
			if r != 0 && q.Ratio[c] != 0 {
				return fmt.Errorf("%w: cell %d of layer %d has scenarios %d and %d",
					ErrScenarioConflict, c, p.Layer, q.Power.Scenario, p.Power.Scenario)
			}
		}
	}
	m.Powers = append(m.Powers, p)
	return nil
}

// AddPowerBlock spreads p uniformly over cells [x0,x1)×[y0,y1) of a layer.
func (m *GridModel) AddPowerBlock(layer, x0, y0, x1, y1 int, p Power) error {
	if x0 < 0 || y0 < 0 || x1 > m.Nx || y1 > m.Ny || x0 >= x1 || y0 >= y1 {
		return fmt.Errorf("power block [%d,%d)x[%d,%d) outside %dx%d grid", x0, x1, y0, y1, m.Nx, m.Ny)
	}
	ratio := make([]float64, m.CellsPerLayer())
	share := 1 / float64((x1-x0)*(y1-y0))
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			ratio[y*m.Nx+x] = share
		}
	}
	return m.AddPower(GridPower{Layer: layer, Power: p, Ratio: ratio})
}

func (m *GridModel) AddJumpConnection(j JumpConnection) error {
	if err := checkJump(j, m.TotalElements()); err != nil {
		return err
	}
	m.Jumps = append(m.Jumps, j)
	return nil
}

func (m *GridModel) Index(x, y, z int) int { return z*m.Nx*m.Ny + y*m.Nx + x }

func (m *GridModel) Coord(i int) (x, y, z int) {
	per := m.Nx * m.Ny
	z = i / per
	r := i % per
	return r % m.Nx, r / m.Nx, z
}

func (m *GridModel) CellBox(x, y int) geom.Box2 {
	lo := geom.Point2{X: m.Origin.X + float64(x)*m.Dx, Y: m.Origin.Y + float64(y)*m.Dy}
	return geom.Box2{Min: lo, Max: geom.Point2{X: lo.X + m.Dx, Y: lo.Y + m.Dy}}
}

// LayerTop returns the z coordinate of the top face of layer z; the top of the
// stack is at 0 and z grows negative downwards.
func (m *GridModel) LayerTop(z int) float64 {
	top := 0.0
	for i := 0; i < z; i++ {
		top -= m.Layers[i].Thickness
	}
	return top
}

func (m *GridModel) ElementAt(p geom.Point3) (int, error) {
	x := int(math.Floor((p.X - m.Origin.X) / m.Dx))
	y := int(math.Floor((p.Y - m.Origin.Y) / m.Dy))
	if x < 0 || y < 0 || x >= m.Nx || y >= m.Ny {
		return -1, fmt.Errorf("%w: (%g, %g, %g)", ErrNoElement, p.X, p.Y, p.Z)
	}
	for z := range m.Layers {
		top := m.LayerTop(z)
		if p.Z <= top && p.Z >= top-m.Layers[z].Thickness {
			return m.Index(x, y, z), nil
		}
	}
	return -1, fmt.Errorf("%w: (%g, %g, %g)", ErrNoElement, p.X, p.Y, p.Z)
}

func (m *GridModel) TemperatureIndependent() bool {
	ids := make(map[int]struct{})
	for _, l := range m.Layers {
		ids[l.ConductorMat] = struct{}{}
		ids[l.DielectricMat] = struct{}{}
	}
	for _, j := range m.Jumps {
		ids[j.MaterialID] = struct{}{}
	}
	for _, p := range m.Powers {
		if !p.Power.Constant() {
			return false
		}
	}
	return materialsConstant(m.lib, ids)
}
