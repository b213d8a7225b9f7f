package model

import (
	"errors"
	"fmt"

	"github.com/san-kum/etherm/internal/dynamo"
	"github.com/san-kum/etherm/internal/geom"
	"github.com/san-kum/etherm/internal/material"
)

// overlaps smaller than this fraction of an element's area are ignored
const minContactRatio = 1e-9

var ErrNoContacts = errors.New("model: contacts not built")

// Contact is a partial overlap with a prism in the adjacent layer. Ratio is
// the overlap area divided by the owning prism's face area.
type Contact struct {
	Index int
	Ratio float64
}

// StackupLayer pairs a layer with its own triangulation.
type StackupLayer struct {
	PrismLayer
	Template *Template
}

// StackupPrismModel stacks layers with independent triangulations. Vertical
// coupling goes through contacts found by footprint intersection instead of
// shared triangles.
type StackupPrismModel struct {
	*PrismModel

	contacts [2][][]Contact
}

func NewStackupPrismModel(lib material.Library, layers []StackupLayer, fn MaterialFunc) (*StackupPrismModel, error) {
	tmpls := make([]*Template, len(layers))
	plain := make([]PrismLayer, len(layers))
	for l, layer := range layers {
		if layer.Template == nil {
			return nil, fmt.Errorf("layer %q: missing template", layer.Name)
		}
		tmpls[l] = layer.Template
		plain[l] = layer.PrismLayer
	}
	base, err := newPrismBase(lib, tmpls, plain, fn, func(l int) int { return l })
	if err != nil {
		return nil, err
	}
	return &StackupPrismModel{PrismModel: base}, nil
}

func (m *StackupPrismModel) Kind() Kind { return KindStackupPrism }

// BuildContacts computes top and bottom contacts for every prism. Each prism
// only writes its own slots, so partitions run independently.
func (m *StackupPrismModel) BuildContacts(workers int) error {
	n := len(m.Prisms)
	var contacts [2][][]Contact
	contacts[Top] = make([][]Contact, n)
	contacts[Bottom] = make([][]Contact, n)

	err := dynamo.ParallelFor(n, workers, 64, func(start, end int) error {
		for i := start; i < end; i++ {
			layer := m.Prisms[i].Layer
			if layer > 0 {
				contacts[Top][i] = m.overlaps(i, layer-1)
			}
			if layer < len(m.Layers)-1 {
				contacts[Bottom][i] = m.overlaps(i, layer+1)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.contacts = contacts
	return nil
}

func (m *StackupPrismModel) overlaps(i, layer int) []Contact {
	tri := m.Triangle(i)
	area := tri.Area()
	if area <= 0 {
		return nil
	}
	var out []Contact
	for _, it := range m.index.Layer(layer).Intersects(tri.BBox()) {
		ratio := geom.TriangleIntersectionArea(tri, it.Tri) / area
		if ratio > minContactRatio {
			out = append(out, Contact{Index: it.Index, Ratio: ratio})
		}
	}
	return out
}

func (m *StackupPrismModel) ContactsBuilt() bool { return m.contacts[Top] != nil }

// Contacts returns the overlaps of prism i with the layer above (Top) or
// below (Bottom).
func (m *StackupPrismModel) Contacts(i int, side Side) ([]Contact, error) {
	if m.contacts[side] == nil {
		return nil, ErrNoContacts
	}
	if i < 0 || i >= len(m.Prisms) {
		return nil, fmt.Errorf("%w: prism %d", ErrBadElement, i)
	}
	return m.contacts[side][i], nil
}

// Exposed returns the fraction of prism i's face on side that touches no
// prism of the adjacent layer.
func (m *StackupPrismModel) Exposed(i int, side Side) float64 {
	if m.contacts[side] == nil {
		return 1
	}
	covered := 0.0
	for _, c := range m.contacts[side][i] {
		covered += c.Ratio
	}
	return max(0, 1-covered)
}
