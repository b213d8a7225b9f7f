package model

import (
	"fmt"
	"math"

	"github.com/san-kum/etherm/internal/geom"
	"github.com/san-kum/etherm/internal/material"
	"github.com/san-kum/etherm/internal/spatial"
)

// Neighbor slots of a prism: three in-plane edges, then top and bottom.
const (
	NeighborTop    = 3
	NeighborBottom = 4
)

// PrismLayer is one extruded layer. Layer 0 is the top of the stack.
type PrismLayer struct {
	Name      string
	Elevation float64 // z of the top face
	Thickness float64
	Template  int // index into PrismModel.Templates
}

func (l PrismLayer) Contains(z float64) bool {
	return z <= l.Elevation && z >= l.Elevation-l.Thickness
}

type PrismElement struct {
	Layer      int
	TemplateID int // triangle index in the layer's template
	MaterialID int
	NetID      int
	Neighbors  [5]int
	Sources    []PowerShare
}

// PowerShare is the fraction of PrismModel.Powers[ID] dissipated in a prism.
type PowerShare struct {
	ID    int
	Ratio float64
}

// MaterialFunc assigns the material and net of triangle tri in layer.
type MaterialFunc func(layer, tri int) (mat, net int)

// PrismModel is a stack of layers extruded from triangulated templates. Element
// indices number prisms layer by layer, followed by line elements.
type PrismModel struct {
	boundary

	Templates []*Template
	Layers    []PrismLayer
	Prisms    []PrismElement
	Lines     []LineElement
	Powers    []Power
	Jumps     []JumpConnection

	lib        material.Library
	index      *spatial.Index
	layerStart []int
}

// NewPrismModel extrudes one template through every layer; prisms stacked on
// the same triangle are top/bottom neighbors.
func NewPrismModel(lib material.Library, tmpl *Template, layers []PrismLayer, fn MaterialFunc) (*PrismModel, error) {
	m, err := newPrismBase(lib, []*Template{tmpl}, layers, fn, func(int) int { return 0 })
	if err != nil {
		return nil, err
	}
	n := tmpl.Size()
	for i := range m.Prisms {
		p := &m.Prisms[i]
		if p.Layer > 0 {
			p.Neighbors[NeighborTop] = i - n
		}
		if p.Layer < len(layers)-1 {
			p.Neighbors[NeighborBottom] = i + n
		}
	}
	return m, nil
}

func newPrismBase(lib material.Library, tmpls []*Template, layers []PrismLayer, fn MaterialFunc, tmplOf func(layer int) int) (*PrismModel, error) {
	m := &PrismModel{Templates: tmpls, lib: lib}
	for l, layer := range layers {
		if layer.Thickness <= 0 {
			return nil, fmt.Errorf("layer %q: thickness must be positive", layer.Name)
		}
		layer.Template = tmplOf(l)
		m.Layers = append(m.Layers, layer)
		m.layerStart = append(m.layerStart, len(m.Prisms))

		tmpl := tmpls[layer.Template]
		start := len(m.Prisms)
		for t := 0; t < tmpl.Size(); t++ {
			mat, net := fn(l, t)
			p := PrismElement{
				Layer:      l,
				TemplateID: t,
				MaterialID: mat,
				NetID:      net,
				Neighbors:  [5]int{NoNeighbor, NoNeighbor, NoNeighbor, NoNeighbor, NoNeighbor},
			}
			for k, nb := range tmpl.Neighbors(t) {
				if nb != NoNeighbor {
					p.Neighbors[k] = start + nb
				}
			}
			m.Prisms = append(m.Prisms, p)
		}
	}
	m.layerStart = append(m.layerStart, len(m.Prisms))
	m.index = spatial.NewIndex(m.LayerItems)
	return m, nil
}

func (m *PrismModel) Kind() Kind                   { return KindPrism }
func (m *PrismModel) Materials() material.Library { return m.lib }
func (m *PrismModel) TotalElements() int           { return len(m.Prisms) + len(m.Lines) }
func (m *PrismModel) TotalPrisms() int             { return len(m.Prisms) }

// Index returns the lazily built per-layer spatial index over prism footprints.
func (m *PrismModel) Index() *spatial.Index { return m.index }

// InvalidateIndex must be called after changing templates or prism layout.
func (m *PrismModel) InvalidateIndex() { m.index.Invalidate() }

// LayerRange returns the [start, end) prism indices of a layer.
func (m *PrismModel) LayerRange(layer int) (int, int) {
	return m.layerStart[layer], m.layerStart[layer+1]
}

// LayerItems lists the footprints of a layer for the spatial index.
func (m *PrismModel) LayerItems(layer int) []spatial.Item {
	if layer < 0 || layer >= len(m.Layers) {
		return nil
	}
	start, end := m.LayerRange(layer)
	items := make([]spatial.Item, 0, end-start)
	for i := start; i < end; i++ {
		items = append(items, spatial.Item{Index: i, Tri: m.Triangle(i)})
	}
	return items
}

func (m *PrismModel) template(i int) *Template {
	return m.Templates[m.Layers[m.Prisms[i].Layer].Template]
}

func (m *PrismModel) Triangle(i int) geom.Triangle {
	return m.template(i).Triangle(m.Prisms[i].TemplateID)
}

func (m *PrismModel) Thickness(i int) float64 { return m.Layers[m.Prisms[i].Layer].Thickness }

// Area is the top (and bottom) face area of a prism.
func (m *PrismModel) Area(i int) float64 { return m.Triangle(i).Area() }

func (m *PrismModel) Volume(i int) float64 { return m.Area(i) * m.Thickness(i) }

func (m *PrismModel) Centroid(i int) geom.Point3 {
	c := m.Triangle(i).Centroid()
	l := m.Layers[m.Prisms[i].Layer]
	return geom.Point3{X: c.X, Y: c.Y, Z: l.Elevation - l.Thickness/2}
}

// SideArea is the area of the side face across edge k.
func (m *PrismModel) SideArea(i, k int) float64 {
	a, b := m.Triangle(i).Edge(k)
	return a.Dist(b) * m.Thickness(i)
}

// EdgeDistance is the distance from the prism center to the plane of side k.
func (m *PrismModel) EdgeDistance(i, k int) float64 {
	tri := m.Triangle(i)
	a, b := tri.Edge(k)
	return geom.DistanceToLine(tri.Centroid(), a, b)
}

// LayerAt returns the layer whose z range contains z.
func (m *PrismModel) LayerAt(z float64) (int, bool) {
	for l, layer := range m.Layers {
		if layer.Contains(z) {
			return l, true
		}
	}
	return -1, false
}

// nearestLayer is LayerAt with a fallback to the closest layer in z.
func (m *PrismModel) nearestLayer(z float64) int {
	if l, ok := m.LayerAt(z); ok {
		return l
	}
	best, dist := 0, math.Inf(1)
	for l, layer := range m.Layers {
		d := math.Min(math.Abs(z-layer.Elevation), math.Abs(z-(layer.Elevation-layer.Thickness)))
		if d < dist {
			best, dist = l, d
		}
	}
	return best
}

func (m *PrismModel) ElementAt(p geom.Point3) (int, error) {
	l, ok := m.LayerAt(p.Z)
	if !ok {
		return -1, fmt.Errorf("%w: z=%g outside the stack", ErrNoElement, p.Z)
	}
	it, ok := m.index.Layer(l).Locate(p.XY())
	if !ok || !it.Tri.Contains(p.XY()) {
		return -1, fmt.Errorf("%w: (%g, %g) in layer %d", ErrNoElement, p.X, p.Y, l)
	}
	return it.Index, nil
}

// AddPower registers a power model and returns its id.
func (m *PrismModel) AddPower(p Power) int {
	m.Powers = append(m.Powers, p)
	return len(m.Powers) - 1
}

// SetElementPower adds ratio of power id to prism i. Sources on one prism
// accumulate but must share a scenario.
func (m *PrismModel) SetElementPower(i, id int, ratio float64) error {
	if i < 0 || i >= len(m.Prisms) || id < 0 || id >= len(m.Powers) {
		return fmt.Errorf("%w: power %d on prism %d", ErrBadElement, id, i)
	}
	if err := m.checkScenario(i, m.Powers[id].Scenario); err != nil {
		return err
	}
	m.Prisms[i].Sources = append(m.Prisms[i].Sources, PowerShare{ID: id, Ratio: ratio})
	return nil
}

func (m *PrismModel) checkScenario(i, scenario int) error {
	for _, src := range m.Prisms[i].Sources {
		if s := m.Powers[src.ID].Scenario; s != scenario {
			return fmt.Errorf("%w: prism %d has scenario %d, adding %d", ErrScenarioConflict, i, s, scenario)
		}
	}
	return nil
}

// AssignPower spreads p over the prisms of layer that overlap box, in
// proportion to their overlap area. It returns the number of prisms touched.
// Nothing is assigned when a touched prism already carries a source of
// another scenario.
func (m *PrismModel) AssignPower(layer int, box geom.Box2, p Power) (int, error) {
	if layer < 0 || layer >= len(m.Layers) {
		return 0, fmt.Errorf("power layer %d out of range", layer)
	}
	items := m.index.Layer(layer).Intersects(box)
	areas := make([]float64, len(items))
	total := 0.0
	for k, it := range items {
		areas[k] = geom.BoxTriangleIntersectionArea(box, it.Tri)
		if areas[k] <= minContactRatio*it.Tri.Area() {
			areas[k] = 0
			continue
		}
		if err := m.checkScenario(it.Index, p.Scenario); err != nil {
			return 0, err
		}
		total += areas[k]
	}
	if total <= 0 {
		return 0, fmt.Errorf("%w: power block does not overlap layer %d", ErrNoElement, layer)
	}
	id := m.AddPower(p)
	n := 0
	for k, it := range items {
		if areas[k] <= 0 {
			continue
		}
		e := &m.Prisms[it.Index]
		e.Sources = append(e.Sources, PowerShare{ID: id, Ratio: areas[k] / total})
		n++
	}
	return n, nil
}

func (m *PrismModel) AddJumpConnection(j JumpConnection) error {
	if err := checkJump(j, m.TotalElements()); err != nil {
		return err
	}
	m.Jumps = append(m.Jumps, j)
	return nil
}

func (m *PrismModel) TemperatureIndependent() bool {
	ids := make(map[int]struct{})
	for _, p := range m.Prisms {
		ids[p.MaterialID] = struct{}{}
	}
	for _, l := range m.Lines {
		ids[l.MaterialID] = struct{}{}
	}
	for _, j := range m.Jumps {
		ids[j.MaterialID] = struct{}{}
	}
	for _, p := range m.Powers {
		if !p.Constant() {
			return false
		}
	}
	return materialsConstant(m.lib, ids)
}
