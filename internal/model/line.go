package model

import (
	"fmt"
	"math"

	"github.com/san-kum/etherm/internal/geom"
)

// LineElement is one cylindrical segment of a bondwire chain.
type LineElement struct {
	Start, End geom.Point3
	Radius     float64
	MaterialID int
	NetID      int
	Current    float64 // A, drives Joule heating
	Scenario   int
	// Prev and Next are element indices of the adjacent segments.
	Prev, Next int
	// StartPrism and EndPrism are the prisms the chain ends attach to.
	StartPrism, EndPrism int
}

func (l LineElement) Length() float64 { return l.Start.Dist(l.End) }

// Area is the conductor cross section.
func (l LineElement) Area() float64 { return math.Pi * l.Radius * l.Radius }

func (l LineElement) Volume() float64 { return l.Area() * l.Length() }

// Wire describes a bondwire to be added to a prism model.
type Wire struct {
	Points     []geom.Point3
	Radius     float64
	MaterialID int
	NetID      int
	Current    float64
	Scenario   int
	// Segments splits each leg into this many line elements (minimum 1).
	Segments int
}

// AddBondWire appends a chain of line elements along w.Points and attaches
// both chain ends to the nearest prism in the layer at that height. It returns
// the element indices of the new segments. Must be called before networks are
// built.
func (m *PrismModel) AddBondWire(w Wire) ([]int, error) {
	if len(w.Points) < 2 {
		return nil, fmt.Errorf("bondwire needs at least 2 points, got %d", len(w.Points))
	}
	if w.Radius <= 0 {
		return nil, fmt.Errorf("bondwire radius must be positive")
	}
	segs := max(w.Segments, 1)

	base := len(m.Prisms) + len(m.Lines)
	var ids []int
	for k := 0; k+1 < len(w.Points); k++ {
		a, b := w.Points[k], w.Points[k+1]
		for s := 0; s < segs; s++ {
			f0, f1 := float64(s)/float64(segs), float64(s+1)/float64(segs)
			ids = append(ids, base+len(ids))
			m.Lines = append(m.Lines, LineElement{
				Start:      lerp3(a, b, f0),
				End:        lerp3(a, b, f1),
				Radius:     w.Radius,
				MaterialID: w.MaterialID,
				NetID:      w.NetID,
				Current:    w.Current,
				Scenario:   w.Scenario,
				Prev:       NoNeighbor,
				Next:       NoNeighbor,
				StartPrism: NoNeighbor,
				EndPrism:   NoNeighbor,
			})
		}
	}

	for k, id := range ids {
		l := m.line(id)
		if k > 0 {
			l.Prev = ids[k-1]
		}
		if k+1 < len(ids) {
			l.Next = ids[k+1]
		}
	}

	if len(m.Prisms) > 0 {
		first, last := m.line(ids[0]), m.line(ids[len(ids)-1])
		first.StartPrism = m.nearestPrism(first.Start)
		last.EndPrism = m.nearestPrism(last.End)
	}
	return ids, nil
}

func (m *PrismModel) nearestPrism(p geom.Point3) int {
	layer := m.nearestLayer(p.Z)
	near := m.index.Layer(layer).Nearest(p.XY(), 1)
	if len(near) == 0 {
		return NoNeighbor
	}
	return near[0].Index
}

func (m *PrismModel) line(i int) *LineElement { return &m.Lines[i-len(m.Prisms)] }

// IsLine reports whether element i is a line element.
func (m *PrismModel) IsLine(i int) bool { return i >= len(m.Prisms) && i < m.TotalElements() }

// Line returns line element i by its global element index.
func (m *PrismModel) Line(i int) LineElement { return *m.line(i) }

func lerp3(a, b geom.Point3, f float64) geom.Point3 {
	return geom.Point3{X: a.X + (b.X-a.X)*f, Y: a.Y + (b.Y-a.Y)*f, Z: a.Z + (b.Z-a.Z)*f}
}
