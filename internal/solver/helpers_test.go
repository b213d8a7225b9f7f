package solver

import (
	"github.com/san-kum/etherm/internal/builder"
	"github.com/san-kum/etherm/internal/material"
	"github.com/san-kum/etherm/internal/model"
)

const (
	matSlab      = iota
	matSoftening // conductivity falls below matSlab's as it heats
)

func testLibrary() *material.Table {
	return material.NewTable(
		material.NewMaterial(matSlab, "slab").
			SetConstant(material.ThermalConductivity, 1).
			SetConstant(material.MassDensity, 1000).
			SetConstant(material.SpecificHeat, 1000),
		material.NewMaterial(matSoftening, "softening").
			Set(material.ThermalConductivity, material.Isotropic{Scalar: material.PolynomialScalar{1.149, -0.0005}}).
			SetConstant(material.MassDensity, 1000).
			SetConstant(material.SpecificHeat, 1000),
	)
}

// chipModel is a 3×3×2 grid of 1 cm cubes with one source in the center of
// the bottom layer and a uniform HTC of 10 on top. Every cube holds 1 J/K and
// neighbors couple with 0.01 W/K.
func chipModel(mat int, watts float64) *model.GridModel {
	m := model.NewGridModel(testLibrary(), 3, 3, 0.01, 0.01)
	for i := 0; i < 2; i++ {
		if err := m.AddLayer(model.GridLayer{Thickness: 0.01, ConductorMat: mat, DielectricMat: mat}); err != nil {
			panic(err)
		}
	}
	if err := m.AddPowerBlock(1, 1, 1, 2, 2, model.ConstantPower(watts, 0)); err != nil {
		panic(err)
	}
	m.SetUniformBC(model.Top, model.BC{Type: model.HTC, Value: 10})
	return m
}

const (
	topCenter    = 4
	sourceCenter = 13
)

func chipBuilder(mat int, watts float64) builder.Builder[float64] {
	b, err := builder.New[float64](chipModel(mat, watts), builder.Options{Workers: 2})
	if err != nil {
		panic(err)
	}
	return b
}
