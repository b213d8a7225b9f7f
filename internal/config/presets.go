package config

import (
	"sort"

	"github.com/san-kum/etherm/internal/geom"
	"github.com/san-kum/etherm/internal/material"
	"github.com/san-kum/etherm/internal/solver"
)

const (
	matSilicon = 1
	matMold    = 2
	matCopper  = 3
	matFR4     = 4
)

func constProp(v float64) *material.PropertySpec {
	return &material.PropertySpec{ScalarSpec: material.Constant(v)}
}

func silicon() material.MaterialSpec {
	return material.MaterialSpec{
		ID: matSilicon, Name: "silicon",
		Conductivity: constProp(148), Density: constProp(2330), SpecificHeat: constProp(712),
	}
}

// Presets build ready-to-run configs. Each call returns a fresh copy.
var Presets = map[string]func() *Config{
	"chip-3x3x2": func() *Config {
		cfg := DefaultConfig()
		cfg.Model = ModelConfig{
			Name: "chip-3x3x2",
			Nx:   3, Ny: 3, Dx: 1e-3, Dy: 1e-3,
			Materials: []material.MaterialSpec{silicon()},
			Layers: []LayerConfig{
				{Name: "top", Thickness: 2e-4, Conductor: matSilicon, Dielectric: matSilicon},
				{Name: "active", Thickness: 2e-4, Conductor: matSilicon, Dielectric: matSilicon},
			},
			Sources: []SourceConfig{
				{Layer: 1, X0: 1, Y0: 1, X1: 2, Y1: 2, Power: material.Constant(1)},
			},
			Top:    BoundaryConfig{Uniform: &BCConfig{Type: "htc", Value: 1000}},
			Bottom: BoundaryConfig{Uniform: &BCConfig{Type: "htc", Value: 10}},
		}
		cfg.Transient.Duration = 0.5
		cfg.Transient.Probes = []int{4, 13}
		return cfg
	},
	"package-16x16x4": func() *Config {
		cfg := DefaultConfig()
		die := silicon()
		die.Conductivity = &material.PropertySpec{ScalarSpec: material.ScalarSpec{Polynomial: []float64{290, -0.48}}}
		cfg.Model = ModelConfig{
			Name: "package-16x16x4",
			Nx:   16, Ny: 16, Dx: 5e-4, Dy: 5e-4,
			Materials: []material.MaterialSpec{
				die,
				{ID: matMold, Name: "mold", Conductivity: constProp(0.9), Density: constProp(1900), SpecificHeat: constProp(880)},
				{ID: matCopper, Name: "copper", Conductivity: constProp(398), Density: constProp(8960), SpecificHeat: constProp(385)},
				{ID: matFR4, Name: "fr4", Conductivity: constProp(0.3), Density: constProp(1850), SpecificHeat: constProp(1100)},
			},
			Layers: []LayerConfig{
				{Name: "mold", Thickness: 5e-4, Conductor: matMold, Dielectric: matMold},
				{Name: "die", Thickness: 3e-4, Conductor: matSilicon, Dielectric: matMold},
				{Name: "redistribution", Thickness: 5e-5, Conductor: matCopper, Dielectric: matFR4, MetalFraction: 0.3},
				{Name: "board", Thickness: 1.6e-3, Conductor: matCopper, Dielectric: matFR4, MetalFraction: 0.05},
			},
			Sources: []SourceConfig{
				{Layer: 1, X0: 4, Y0: 4, X1: 8, Y1: 8, Power: material.Constant(0.8)},
				{Layer: 1, X0: 9, Y0: 9, X1: 12, Y1: 12, Power: material.Constant(0.4), Scenario: 1},
			},
			Top: BoundaryConfig{Uniform: &BCConfig{Type: "htc", Value: 20}},
			Bottom: BoundaryConfig{
				Uniform: &BCConfig{Type: "htc", Value: 50},
				Blocks: []BlockBCConfig{{
					BCConfig: BCConfig{Type: "htc", Value: 2000},
					Max:      geom.Point2{X: 8e-3, Y: 8e-3},
				}},
			},
		}
		cfg.Transient.Duration = 5
		cfg.Transient.Step = 1e-2
		cfg.Transient.TemperatureDependent = true
		cfg.Transient.MOROrder = 16
		cfg.Transient.Excitation = map[int]solver.Waveform{
			1: {Kind: solver.WavePulse, Amplitude: 1, Period: 1, Duty: 0.25},
		}
		cfg.Transient.MinSamplingInterval = 0.05
		return cfg
	},
}

func GetPreset(name string) *Config {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	return fn()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
