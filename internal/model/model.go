// Package model holds the discretized thermal models consumed by the network
// builders. Models are assembled once by a geometry stage, optionally extended
// with bondwires and jump connections, and then treated as read-only while
// networks are built from them.
package model

import (
	"errors"
	"fmt"

	"github.com/san-kum/etherm/internal/geom"
	"github.com/san-kum/etherm/internal/material"
)

var (
	ErrNoElement  = errors.New("model: no element at location")
	ErrBadElement = errors.New("model: invalid element reference")

	// ErrScenarioConflict rejects overlapping sources of different scenarios,
	// since an element follows a single excitation.
	ErrScenarioConflict = errors.New("model: overlapping sources drive different scenarios")
)

type Kind int

const (
	KindGrid Kind = iota
	KindPrism
	KindStackupPrism
)

func (k Kind) String() string {
	switch k {
	case KindGrid:
		return "grid"
	case KindPrism:
		return "prism"
	case KindStackupPrism:
		return "stackup-prism"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type Side int

const (
	Top Side = iota
	Bottom
)

func (s Side) String() string {
	if s == Top {
		return "top"
	}
	return "bottom"
}

type BCType int

const (
	HTC BCType = iota
	HeatFlux
)

// BC is a surface boundary condition. HTC is in W/(m²·K) against the ambient
// reference; HeatFlux is in W/m² and positive into the model.
type BC struct {
	Type  BCType
	Value float64
}

func (b BC) IsZero() bool { return b.Value == 0 }

// BlockBC confines a boundary condition to a rectangle of the surface.
type BlockBC struct {
	Box geom.Box2
	BC  BC
}

// Model is the capability shared by every model variant.
type Model interface {
	Kind() Kind
	TotalElements() int
	UniformBC(side Side) (BC, bool)
	BlockBCs(side Side) []BlockBC
	Materials() material.Library
	// TemperatureIndependent reports whether no material property or power
	// model referenced by the model varies with temperature.
	TemperatureIndependent() bool
	// ElementAt resolves a point to the element containing it.
	ElementAt(p geom.Point3) (int, error)
}

type boundary struct {
	uniform [2]*BC
	blocks  [2][]BlockBC
}

func (b *boundary) SetUniformBC(side Side, bc BC) { b.uniform[side] = &bc }

func (b *boundary) AddBlockBC(side Side, box geom.Box2, bc BC) {
	b.blocks[side] = append(b.blocks[side], BlockBC{Box: box, BC: bc})
}

func (b *boundary) UniformBC(side Side) (BC, bool) {
	if b.uniform[side] == nil {
		return BC{}, false
	}
	return *b.uniform[side], true
}

func (b *boundary) BlockBCs(side Side) []BlockBC { return b.blocks[side] }

// Power is a heat source model. Watts may depend on the element temperature.
type Power struct {
	Model    material.Scalar
	Scenario int
}

func ConstantPower(watts float64, scenario int) Power {
	return Power{Model: material.ConstantScalar(watts), Scenario: scenario}
}

func (p Power) Watts(t float64) float64 {
	if p.Model == nil {
		return 0
	}
	return p.Model.At(t)
}

func (p Power) Constant() bool { return p.Model == nil || p.Model.Constant() }

// JumpConnection is a lumped conductor between two arbitrary elements, such as
// a via or bondwire that is not meshed. R = Length / (k · Area).
type JumpConnection struct {
	From, To   int
	Area       float64
	Length     float64
	MaterialID int
}

func checkJump(j JumpConnection, total int) error {
	if j.From < 0 || j.To < 0 || j.From >= total || j.To >= total || j.From == j.To {
		return fmt.Errorf("%w: jump %d -> %d", ErrBadElement, j.From, j.To)
	}
	if j.Area <= 0 || j.Length <= 0 {
		return fmt.Errorf("%w: jump %d -> %d needs positive area and length", ErrBadElement, j.From, j.To)
	}
	return nil
}

func materialsConstant(lib material.Library, ids map[int]struct{}) bool {
	for id := range ids {
		if lib.TemperatureDependent(id) {
			return false
		}
	}
	return true
}
