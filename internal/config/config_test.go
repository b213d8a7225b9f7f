package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/etherm/internal/geom"
	"github.com/san-kum/etherm/internal/model"
	"github.com/san-kum/etherm/internal/solver"
	"github.com/san-kum/etherm/internal/sparse"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Static.IterationCap != DefaultIterationCap {
		t.Errorf("expected cap %d, got %d", DefaultIterationCap, cfg.Static.IterationCap)
	}
	if cfg.Transient.Step <= 0 {
		t.Error("step should be positive")
	}
	if cfg.Static.Unit != "C" {
		t.Errorf("expected unit C, got %s", cfg.Static.Unit)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("chip-3x3x2")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Model.Nx != 3 || len(cfg.Model.Layers) != 2 {
		t.Errorf("unexpected model %dx%d layers", cfg.Model.Nx, len(cfg.Model.Layers))
	}

	cfg.Model.Nx = 7
	if GetPreset("chip-3x3x2").Model.Nx != 3 {
		t.Error("preset was mutated through a previous copy")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	names := ListPresets()
	if len(names) != len(Presets) {
		t.Fatalf("expected %d presets, got %d", len(Presets), len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("presets not sorted: %v", names)
		}
	}
}

func TestPresetsValidateAndBuild(t *testing.T) {
	for _, name := range ListPresets() {
		cfg := GetPreset(name)
		if err := cfg.Validate(); err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		m, err := cfg.Model.Build()
		if err != nil {
			t.Errorf("%s: build: %v", name, err)
			continue
		}
		want := cfg.Model.Nx * cfg.Model.Ny * len(cfg.Model.Layers)
		if m.TotalElements() != want {
			t.Errorf("%s: expected %d elements, got %d", name, want, m.TotalElements())
		}
	}
}

func TestBuildChip(t *testing.T) {
	m, err := GetPreset("chip-3x3x2").Model.Build()
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Powers) != 1 || m.Powers[0].Ratio[4] != 1 {
		t.Errorf("expected the whole source on the center cell, got %+v", m.Powers)
	}
	top, ok := m.UniformBC(model.Top)
	if !ok || top.Type != model.HTC || top.Value != 1000 {
		t.Errorf("unexpected top bc %+v", top)
	}
	if !m.TemperatureIndependent() {
		t.Error("chip preset should be temperature independent")
	}
}

func TestBuildPackage(t *testing.T) {
	m, err := GetPreset("package-16x16x4").Model.Build()
	if err != nil {
		t.Fatal(err)
	}
	if m.TemperatureIndependent() {
		t.Error("package preset has a temperature dependent die")
	}
	if f := m.Layers[2].Fraction(17); f != 0.3 {
		t.Errorf("expected metal fraction 0.3, got %g", f)
	}
	if blocks := m.BlockBCs(model.Bottom); len(blocks) != 1 || blocks[0].BC.Value != 2000 {
		t.Errorf("unexpected bottom blocks %+v", blocks)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad unit", func(c *Config) { c.Static.Unit = "F" }, "Static.Unit"},
		{"zero step", func(c *Config) { c.Transient.Step = 0 }, "Transient.Step"},
		{"bad solver", func(c *Config) { c.Transient.LinearSolver = "qr" }, "Transient.LinearSolver"},
		{"no layers", func(c *Config) { c.Model.Layers = nil }, "Model.Layers"},
		{"empty source", func(c *Config) { c.Model.Sources[0].X1 = 1 }, "X1"},
		{"unknown material", func(c *Config) { c.Model.Layers[0].Conductor = 9 }, "unknown material"},
		{"source layer", func(c *Config) { c.Model.Sources[0].Layer = 5 }, "layer 5 out of range"},
		{"bad waveform", func(c *Config) {
			c.Transient.Excitation = map[int]solver.Waveform{0: {Kind: "saw"}}
		}, "Kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetPreset("chip-3x3x2")
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q in %q", tt.want, err.Error())
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkg.yaml")
	orig := GetPreset("package-16x16x4")
	if err := Save(path, orig); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Model.Nx != 16 || len(cfg.Model.Materials) != 4 {
		t.Errorf("model did not survive: %+v", cfg.Model)
	}
	if w := cfg.Transient.Excitation[1]; w.Kind != solver.WavePulse || w.Duty != 0.25 {
		t.Errorf("excitation did not survive: %+v", w)
	}
}

func TestLoadPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	if err := os.WriteFile(path, []byte("static:\n  iteration_cap: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Static.IterationCap != 3 {
		t.Errorf("expected cap 3, got %d", cfg.Static.IterationCap)
	}
	if cfg.Static.ResidualThreshold != DefaultResidualThreshold {
		t.Errorf("defaults lost: threshold %g", cfg.Static.ResidualThreshold)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not exist, got %v", err)
	}
}

func TestStaticOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Static.Unit = "K"
	cfg.Static.EnvTemperature = 300
	cfg.Static.LinearSolver = "lu"
	opts := cfg.StaticOptions()
	if opts.Unit != solver.Kelvin || opts.EnvTemperature != 300 || opts.LinearSolver != sparse.LU {
		t.Errorf("unexpected options %+v", opts)
	}
}

func TestTransientOptions(t *testing.T) {
	cfg := GetPreset("chip-3x3x2")
	m, err := cfg.Model.Build()
	if err != nil {
		t.Fatal(err)
	}
	// Center of cell (2,0) in the bottom layer.
	cfg.Transient.ProbePoints = []geom.Point3{{X: 2.5e-3, Y: 0.5e-3, Z: -3e-4}}
	cfg.Transient.Excitation = map[int]solver.Waveform{0: {Kind: solver.WaveStep, Amplitude: 2, Start: 1}}

	opts, err := cfg.TransientOptions(m)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{4, 13, m.Index(2, 0, 1)}
	if len(opts.Probes) != len(want) {
		t.Fatalf("expected probes %v, got %v", want, opts.Probes)
	}
	for i := range want {
		if opts.Probes[i] != want[i] {
			t.Errorf("probe %d: expected %d, got %d", i, want[i], opts.Probes[i])
		}
	}
	if v := opts.Excitation(0.5, 0); v != 0 {
		t.Errorf("expected 0 before the step, got %g", v)
	}
	if v := opts.Excitation(2, 0); v != 2 {
		t.Errorf("expected 2 after the step, got %g", v)
	}

	cfg.Transient.ProbePoints = []geom.Point3{{X: 1, Y: 1, Z: 1}}
	if _, err := cfg.TransientOptions(m); err == nil {
		t.Error("expected error for a probe outside the model")
	}
}
