package material

import (
	"math"
	"sort"
)

// Scalar is a temperature-dependent scalar quantity. Temperatures are in Kelvin.
type Scalar interface {
	At(t float64) float64
	Constant() bool
}

type ConstantScalar float64

func (c ConstantScalar) At(float64) float64 { return float64(c) }
func (c ConstantScalar) Constant() bool     { return true }

// PolynomialScalar evaluates c0 + c1*T + c2*T^2 + ...
type PolynomialScalar []float64

func (p PolynomialScalar) At(t float64) float64 {
	v := 0.0
	for i := len(p) - 1; i >= 0; i-- {
		v = v*t + p[i]
	}
	return v
}

func (p PolynomialScalar) Constant() bool {
	for _, c := range p[min(1, len(p)):] {
		if c != 0 {
			return false
		}
	}
	return true
}

// TableScalar interpolates linearly between samples and clamps outside them.
type TableScalar struct {
	Temps  []float64
	Values []float64
}

func NewTableScalar(temps, values []float64) TableScalar {
	idx := make([]int, len(temps))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return temps[idx[a]] < temps[idx[b]] })
	ts := TableScalar{Temps: make([]float64, len(idx)), Values: make([]float64, len(idx))}
	for i, j := range idx {
		ts.Temps[i] = temps[j]
		ts.Values[i] = values[j]
	}
	return ts
}

func (s TableScalar) At(t float64) float64 {
	n := len(s.Temps)
	switch {
	case n == 0:
		return math.NaN()
	case n == 1 || t <= s.Temps[0]:
		return s.Values[0]
	case t >= s.Temps[n-1]:
		return s.Values[n-1]
	}
	i := sort.SearchFloat64s(s.Temps, t)
	t0, t1 := s.Temps[i-1], s.Temps[i]
	v0, v1 := s.Values[i-1], s.Values[i]
	if t1 == t0 {
		return v1
	}
	return v0 + (v1-v0)*(t-t0)/(t1-t0)
}

func (s TableScalar) Constant() bool {
	for _, v := range s.Values[min(1, len(s.Values)):] {
		if v != s.Values[0] {
			return false
		}
	}
	return true
}

type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Property is a material property that may differ per axis.
type Property interface {
	Value(t float64, axis Axis) float64
	TemperatureDependent() bool
}

type Isotropic struct {
	Scalar
}

func (p Isotropic) Value(t float64, _ Axis) float64 { return p.At(t) }
func (p Isotropic) TemperatureDependent() bool      { return !p.Constant() }

type Anisotropic [3]Scalar

func (p Anisotropic) Value(t float64, axis Axis) float64 { return p[axis].At(t) }

func (p Anisotropic) TemperatureDependent() bool {
	return !p[0].Constant() || !p[1].Constant() || !p[2].Constant()
}

// Tensor is a full 3x3 conductivity tensor. A finite-volume network only couples
// along the principal axes, so Value returns the diagonal entry.
type Tensor [9]Scalar

func (p Tensor) Value(t float64, axis Axis) float64 { return p[4*int(axis)].At(t) }

func (p Tensor) TemperatureDependent() bool {
	for _, s := range p {
		if s != nil && !s.Constant() {
			return true
		}
	}
	return false
}
