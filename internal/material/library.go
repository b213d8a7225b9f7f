package material

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrMissingMaterial = errors.New("material: unknown material id")
	ErrMissingProperty = errors.New("material: property not defined")
)

type PropertyID int

const (
	ThermalConductivity PropertyID = iota
	MassDensity
	SpecificHeat
	Resistivity
)

func (p PropertyID) String() string {
	switch p {
	case ThermalConductivity:
		return "thermal_conductivity"
	case MassDensity:
		return "mass_density"
	case SpecificHeat:
		return "specific_heat"
	case Resistivity:
		return "resistivity"
	default:
		return fmt.Sprintf("property(%d)", int(p))
	}
}

// Library resolves material properties for the network builders.
type Library interface {
	Property(id int, prop PropertyID, t float64, axis Axis) (float64, error)
	TemperatureDependent(id int) bool
}

type Material struct {
	ID    int
	Name  string
	Props map[PropertyID]Property
}

func NewMaterial(id int, name string) *Material {
	return &Material{ID: id, Name: name, Props: make(map[PropertyID]Property)}
}

func (m *Material) Set(prop PropertyID, p Property) *Material {
	m.Props[prop] = p
	return m
}

// SetConstant sets an isotropic, temperature-independent property.
func (m *Material) SetConstant(prop PropertyID, v float64) *Material {
	return m.Set(prop, Isotropic{ConstantScalar(v)})
}

// Table is an in-memory Library. It is safe for concurrent reads once populated.
type Table struct {
	mu        sync.RWMutex
	materials map[int]*Material
}

func NewTable(ms ...*Material) *Table {
	t := &Table{materials: make(map[int]*Material)}
	for _, m := range ms {
		t.Add(m)
	}
	return t
}

func (t *Table) Add(m *Material) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.materials[m.ID] = m
}

func (t *Table) Get(id int) (*Material, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.materials[id]
	return m, ok
}

func (t *Table) IDs() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]int, 0, len(t.materials))
	for id := range t.materials {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (t *Table) Property(id int, prop PropertyID, temp float64, axis Axis) (float64, error) {
	m, ok := t.Get(id)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrMissingMaterial, id)
	}
	p, ok := m.Props[prop]
	if !ok {
		return 0, fmt.Errorf("%w: %s of material %d (%s)", ErrMissingProperty, prop, id, m.Name)
	}
	return p.Value(temp, axis), nil
}

func (t *Table) TemperatureDependent(id int) bool {
	m, ok := t.Get(id)
	if !ok {
		return false
	}
	for _, p := range m.Props {
		if p.TemperatureDependent() {
			return true
		}
	}
	return false
}
