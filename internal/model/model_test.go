package model

import (
	"testing"

	"github.com/san-kum/etherm/internal/geom"
	"github.com/san-kum/etherm/internal/material"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	matCopper = iota
	matMold
)

func testLibrary() *material.Table {
	return material.NewTable(
		material.NewMaterial(matCopper, "copper").
			SetConstant(material.ThermalConductivity, 400).
			SetConstant(material.MassDensity, 8960).
			SetConstant(material.SpecificHeat, 385).
			SetConstant(material.Resistivity, 1.7e-8),
		material.NewMaterial(matMold, "mold").
			SetConstant(material.ThermalConductivity, 0.8).
			SetConstant(material.MassDensity, 1900).
			SetConstant(material.SpecificHeat, 900),
	)
}

func pt(x, y float64) geom.Point2 { return geom.Point2{X: x, Y: y} }

func TestGridIndexing(t *testing.T) {
	m := NewGridModel(testLibrary(), 3, 3, 1e-3, 1e-3)
	for _, th := range []float64{1e-4, 2e-4} {
		require.NoError(t, m.AddLayer(GridLayer{Thickness: th, ConductorMat: matCopper, DielectricMat: matMold}))
	}
	assert.Equal(t, 18, m.TotalElements())

	for i := 0; i < m.TotalElements(); i++ {
		x, y, z := m.Coord(i)
		assert.Equal(t, i, m.Index(x, y, z))
	}

	i, err := m.ElementAt(geom.Point3{X: 1.5e-3, Y: 2.5e-3, Z: -2e-4})
	require.NoError(t, err)
	assert.Equal(t, m.Index(1, 2, 1), i)

	_, err = m.ElementAt(geom.Point3{X: 5e-3, Y: 0, Z: 0})
	assert.ErrorIs(t, err, ErrNoElement)
	_, err = m.ElementAt(geom.Point3{X: 0, Y: 0, Z: -1})
	assert.ErrorIs(t, err, ErrNoElement)

	assert.InDelta(t, -1e-4, m.LayerTop(1), 1e-15)
}

func TestGridLayerValidation(t *testing.T) {
	m := NewGridModel(testLibrary(), 2, 2, 1, 1)
	assert.Error(t, m.AddLayer(GridLayer{Thickness: 0}))
	assert.Error(t, m.AddLayer(GridLayer{Thickness: 1, MetalFraction: []float64{0.5}}))
}

func TestGridPowerBlock(t *testing.T) {
	m := NewGridModel(testLibrary(), 4, 4, 1, 1)
	require.NoError(t, m.AddLayer(GridLayer{Thickness: 1}))

	require.NoError(t, m.AddPowerBlock(0, 1, 1, 3, 3, ConstantPower(2, 0)))
	require.Len(t, m.Powers, 1)
	sum := 0.0
	for _, r := range m.Powers[0].Ratio {
		sum += r
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.Equal(t, 0.25, m.Powers[0].Ratio[1*4+1])
	assert.Zero(t, m.Powers[0].Ratio[0])

	assert.Error(t, m.AddPowerBlock(0, 3, 3, 5, 5, ConstantPower(1, 0)))
	assert.Error(t, m.AddPowerBlock(1, 0, 0, 1, 1, ConstantPower(1, 0)))

	require.NoError(t, m.AddPowerBlock(0, 2, 2, 4, 4, ConstantPower(1, 0)))
	assert.ErrorIs(t, m.AddPowerBlock(0, 0, 0, 2, 2, ConstantPower(1, 1)), ErrScenarioConflict)
	require.NoError(t, m.AddPowerBlock(0, 0, 0, 1, 1, ConstantPower(1, 1)))
	assert.Len(t, m.Powers, 3)
}

func TestTemperatureIndependent(t *testing.T) {
	lib := testLibrary()
	m := NewGridModel(lib, 1, 1, 1, 1)
	require.NoError(t, m.AddLayer(GridLayer{Thickness: 1, ConductorMat: matCopper, DielectricMat: matMold}))
	assert.True(t, m.TemperatureIndependent())

	require.NoError(t, m.AddPower(GridPower{Power: Power{Model: material.PolynomialScalar{1, 0.01}}, Ratio: []float64{1}}))
	assert.False(t, m.TemperatureIndependent())

	m.Powers = nil
	lib.Add(material.NewMaterial(matMold, "mold").
		Set(material.ThermalConductivity, material.Isotropic{Scalar: material.PolynomialScalar{0.5, 1e-3}}))
	assert.False(t, m.TemperatureIndependent())
}

func TestTemplateAdjacency(t *testing.T) {
	tmpl := GridTemplate(1, 1, 1, 1)
	require.Equal(t, 2, tmpl.Size())
	assert.Equal(t, [3]int{NoNeighbor, NoNeighbor, 1}, tmpl.Neighbors(0))
	assert.Equal(t, [3]int{0, NoNeighbor, NoNeighbor}, tmpl.Neighbors(1))

	_, err := NewTemplate([]geom.Point2{pt(0, 0)}, [][3]int{{0, 1, 2}})
	assert.Error(t, err)
}

func twoLayerPrism(t *testing.T) *PrismModel {
	t.Helper()
	layers := []PrismLayer{
		{Name: "die", Elevation: 0, Thickness: 1},
		{Name: "substrate", Elevation: -1, Thickness: 1},
	}
	m, err := NewPrismModel(testLibrary(), GridTemplate(2, 2, 1, 1), layers, func(layer, _ int) (int, int) {
		return layer, 0
	})
	require.NoError(t, err)
	return m
}

func TestPrismModelTopology(t *testing.T) {
	m := twoLayerPrism(t)
	require.Equal(t, 16, m.TotalElements())

	assert.Equal(t, NoNeighbor, m.Prisms[0].Neighbors[NeighborTop])
	assert.Equal(t, 8, m.Prisms[0].Neighbors[NeighborBottom])
	assert.Equal(t, 0, m.Prisms[8].Neighbors[NeighborTop])
	assert.Equal(t, NoNeighbor, m.Prisms[8].Neighbors[NeighborBottom])
	assert.Equal(t, 9, m.Prisms[8].Neighbors[2], "in-plane neighbors stay in their layer")

	assert.InDelta(t, 0.5, m.Volume(0), 1e-12)
	c := m.Centroid(8)
	assert.InDelta(t, -1.5, c.Z, 1e-12)

	start, end := m.LayerRange(1)
	assert.Equal(t, 8, start)
	assert.Equal(t, 16, end)
	assert.Len(t, m.LayerItems(1), 8)
	assert.Nil(t, m.LayerItems(2))
}

func TestPrismElementAt(t *testing.T) {
	m := twoLayerPrism(t)

	i, err := m.ElementAt(geom.Point3{X: 0.9, Y: 0.1, Z: -0.5})
	require.NoError(t, err)
	assert.Equal(t, 0, i)

	i, err = m.ElementAt(geom.Point3{X: 0.9, Y: 0.1, Z: -1.5})
	require.NoError(t, err)
	assert.Equal(t, 8, i)

	_, err = m.ElementAt(geom.Point3{X: 0.5, Y: 0.5, Z: -3})
	assert.ErrorIs(t, err, ErrNoElement)
	_, err = m.ElementAt(geom.Point3{X: 5, Y: 5, Z: -0.5})
	assert.ErrorIs(t, err, ErrNoElement)
}

func TestPrismAssignPower(t *testing.T) {
	m := twoLayerPrism(t)
	n, err := m.AssignPower(0, geom.NewBox2(pt(0, 0), pt(1, 1)), ConstantPower(1, 3))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, m.Prisms[0].Sources, 1)
	assert.InDelta(t, 0.5, m.Prisms[0].Sources[0].Ratio, 1e-12)
	assert.InDelta(t, 0.5, m.Prisms[1].Sources[0].Ratio, 1e-12)
	assert.Empty(t, m.Prisms[2].Sources)

	_, err = m.AssignPower(0, geom.NewBox2(pt(10, 10), pt(11, 11)), ConstantPower(1, 0))
	assert.ErrorIs(t, err, ErrNoElement)
}

func TestPrismOverlappingPowerAccumulates(t *testing.T) {
	m := twoLayerPrism(t)
	box := geom.NewBox2(pt(0, 0), pt(1, 1))
	_, err := m.AssignPower(0, box, ConstantPower(1, 3))
	require.NoError(t, err)
	_, err = m.AssignPower(0, box, ConstantPower(2, 3))
	require.NoError(t, err)

	require.Len(t, m.Prisms[0].Sources, 2)
	total := 0.0
	for _, src := range m.Prisms[0].Sources {
		total += m.Powers[src.ID].Watts(300) * src.Ratio
	}
	assert.InDelta(t, 1.5, total, 1e-12)

	powers := len(m.Powers)
	_, err = m.AssignPower(0, box, ConstantPower(1, 4))
	assert.ErrorIs(t, err, ErrScenarioConflict)
	assert.Len(t, m.Powers, powers)
	assert.Len(t, m.Prisms[0].Sources, 2)

	assert.ErrorIs(t, m.SetElementPower(1, m.AddPower(ConstantPower(1, 5)), 1), ErrScenarioConflict)
}

func TestAddBondWire(t *testing.T) {
	m := twoLayerPrism(t)
	ids, err := m.AddBondWire(Wire{
		Points:     []geom.Point3{{X: 0.7, Y: 0.3, Z: 0.2}, {X: 1.7, Y: 1.3, Z: 0.2}},
		Radius:     1e-2,
		MaterialID: matCopper,
		Current:    0.5,
		Segments:   2,
	})
	require.NoError(t, err)
	assert.Equal(t, []int{16, 17}, ids)
	assert.Equal(t, 18, m.TotalElements())

	first, last := m.Line(16), m.Line(17)
	assert.Equal(t, NoNeighbor, first.Prev)
	assert.Equal(t, 17, first.Next)
	assert.Equal(t, 16, last.Prev)
	assert.Equal(t, 0, first.StartPrism)
	assert.Equal(t, 6, last.EndPrism)
	assert.True(t, m.IsLine(17))
	assert.False(t, m.IsLine(15))
	assert.InDelta(t, 0.7071067811865476, first.Length(), 1e-12)

	_, err = m.AddBondWire(Wire{Points: []geom.Point3{{}}, Radius: 1})
	assert.Error(t, err)

	require.NoError(t, m.AddJumpConnection(JumpConnection{From: 17, To: 3, Area: 1e-6, Length: 1e-3, MaterialID: matCopper}))
	assert.Error(t, m.AddJumpConnection(JumpConnection{From: 3, To: 3, Area: 1, Length: 1}))
}

// overlapStack builds an upper triangle that fully covers lower triangle A and
// half of lower triangle B.
func overlapStack(t *testing.T) *StackupPrismModel {
	t.Helper()
	upper, err := NewTemplate([]geom.Point2{pt(0, 0), pt(2, 0), pt(0, 2)}, [][3]int{{0, 1, 2}})
	require.NoError(t, err)
	lower, err := NewTemplate(
		[]geom.Point2{pt(0, 0), pt(1, 1), pt(0, 2), pt(2, 0), pt(2, 2)},
		[][3]int{{0, 1, 2}, {0, 3, 4}},
	)
	require.NoError(t, err)

	m, err := NewStackupPrismModel(testLibrary(), []StackupLayer{
		{PrismLayer: PrismLayer{Name: "top", Elevation: 0, Thickness: 1}, Template: upper},
		{PrismLayer: PrismLayer{Name: "bottom", Elevation: -1, Thickness: 1}, Template: lower},
	}, func(int, int) (int, int) { return matCopper, 0 })
	require.NoError(t, err)
	return m
}

func TestStackupContacts(t *testing.T) {
	m := overlapStack(t)
	assert.Equal(t, KindStackupPrism, m.Kind())
	require.Equal(t, 3, m.TotalElements())

	_, err := m.Contacts(0, Bottom)
	assert.ErrorIs(t, err, ErrNoContacts)

	require.NoError(t, m.BuildContacts(4))

	down, err := m.Contacts(0, Bottom)
	require.NoError(t, err)
	require.Len(t, down, 2)
	assert.Equal(t, 1, down[0].Index)
	assert.Equal(t, 2, down[1].Index)
	assert.InDelta(t, 1.0, down[0].Ratio+down[1].Ratio, 1e-9)
	assert.InDelta(t, 0, m.Exposed(0, Bottom), 1e-9)

	upA, err := m.Contacts(1, Top)
	require.NoError(t, err)
	require.Len(t, upA, 1)
	assert.InDelta(t, 1.0, upA[0].Ratio, 1e-9)

	upB, err := m.Contacts(2, Top)
	require.NoError(t, err)
	require.Len(t, upB, 1)
	assert.InDelta(t, 0.5, upB[0].Ratio, 1e-9)
	assert.InDelta(t, 0.5, m.Exposed(2, Top), 1e-9)

	top, err := m.Contacts(0, Top)
	require.NoError(t, err)
	assert.Empty(t, top)
	assert.Equal(t, 1.0, m.Exposed(0, Top))
}

func TestStackupRejectsMissingTemplate(t *testing.T) {
	_, err := NewStackupPrismModel(testLibrary(), []StackupLayer{{PrismLayer: PrismLayer{Thickness: 1}}}, nil)
	assert.Error(t, err)
}
