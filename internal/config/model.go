package config

import (
	"fmt"

	"github.com/san-kum/etherm/internal/geom"
	"github.com/san-kum/etherm/internal/material"
	"github.com/san-kum/etherm/internal/model"
)

// ModelConfig describes a grid model. Layer 0 is the top of the stack.
type ModelConfig struct {
	Name      string                  `yaml:"name"`
	Nx        int                     `yaml:"nx" validate:"gte=1"`
	Ny        int                     `yaml:"ny" validate:"gte=1"`
	Dx        float64                 `yaml:"dx" validate:"gt=0"`
	Dy        float64                 `yaml:"dy" validate:"gt=0"`
	Layers    []LayerConfig           `yaml:"layers" validate:"min=1,dive"`
	Materials []material.MaterialSpec `yaml:"materials" validate:"min=1"`
	Sources   []SourceConfig          `yaml:"sources" validate:"dive"`
	Top       BoundaryConfig          `yaml:"top"`
	Bottom    BoundaryConfig          `yaml:"bottom"`
	Jumps     []JumpConfig            `yaml:"jumps" validate:"dive"`
}

type LayerConfig struct {
	Name       string  `yaml:"name"`
	Thickness  float64 `yaml:"thickness" validate:"gt=0"`
	Conductor  int     `yaml:"conductor"`
	Dielectric int     `yaml:"dielectric"`
	// MetalFraction applies to every cell unless Fractions is given.
	MetalFraction float64   `yaml:"metal_fraction" validate:"gte=0,lte=1"`
	Fractions     []float64 `yaml:"fractions" validate:"dive,gte=0,lte=1"`
}

// SourceConfig spreads a power over cells [X0,X1)×[Y0,Y1) of a layer.
type SourceConfig struct {
	Layer    int                 `yaml:"layer" validate:"gte=0"`
	X0       int                 `yaml:"x0" validate:"gte=0"`
	Y0       int                 `yaml:"y0" validate:"gte=0"`
	X1       int                 `yaml:"x1" validate:"gtfield=X0"`
	Y1       int                 `yaml:"y1" validate:"gtfield=Y0"`
	Power    material.ScalarSpec `yaml:"power"`
	Scenario int                 `yaml:"scenario" validate:"gte=0"`
}

type BCConfig struct {
	Type  string  `yaml:"type" validate:"omitempty,oneof=htc heat_flux"`
	Value float64 `yaml:"value"`
}

// BlockBCConfig confines a BC to a rectangle in model coordinates.
type BlockBCConfig struct {
	BCConfig `yaml:",inline"`
	Min      geom.Point2 `yaml:"min"`
	Max      geom.Point2 `yaml:"max"`
}

type BoundaryConfig struct {
	Uniform *BCConfig       `yaml:"uniform,omitempty"`
	Blocks  []BlockBCConfig `yaml:"blocks,omitempty" validate:"dive"`
}

type JumpConfig struct {
	From     int     `yaml:"from" validate:"gte=0"`
	To       int     `yaml:"to" validate:"gte=0,nefield=From"`
	Area     float64 `yaml:"area" validate:"gt=0"`
	Length   float64 `yaml:"length" validate:"gt=0"`
	Material int     `yaml:"material"`
}

func (b BCConfig) build() (model.BC, error) {
	switch b.Type {
	case "htc", "":
		return model.BC{Type: model.HTC, Value: b.Value}, nil
	case "heat_flux":
		return model.BC{Type: model.HeatFlux, Value: b.Value}, nil
	}
	return model.BC{}, fmt.Errorf("%w: unknown boundary type %q", ErrInvalid, b.Type)
}

// check resolves the cross-references validator tags cannot express.
func (m ModelConfig) check() error {
	ids := make(map[int]bool, len(m.Materials))
	for _, ms := range m.Materials {
		if ids[ms.ID] {
			return fmt.Errorf("%w: duplicate material id %d", ErrInvalid, ms.ID)
		}
		ids[ms.ID] = true
	}
	for i, l := range m.Layers {
		if !ids[l.Conductor] || !ids[l.Dielectric] {
			return fmt.Errorf("%w: layer %d references an unknown material", ErrInvalid, i)
		}
		if n := len(l.Fractions); n != 0 && n != m.Nx*m.Ny {
			return fmt.Errorf("%w: layer %d has %d fractions, want %d", ErrInvalid, i, n, m.Nx*m.Ny)
		}
	}
	for i, s := range m.Sources {
		if s.Layer >= len(m.Layers) {
			return fmt.Errorf("%w: source %d layer %d out of range", ErrInvalid, i, s.Layer)
		}
		if s.X1 > m.Nx || s.Y1 > m.Ny {
			return fmt.Errorf("%w: source %d exceeds the %dx%d grid", ErrInvalid, i, m.Nx, m.Ny)
		}
	}
	total := m.Nx * m.Ny * len(m.Layers)
	for i, j := range m.Jumps {
		if j.From >= total || j.To >= total {
			return fmt.Errorf("%w: jump %d references element beyond %d", ErrInvalid, i, total)
		}
		if !ids[j.Material] {
			return fmt.Errorf("%w: jump %d references unknown material %d", ErrInvalid, i, j.Material)
		}
	}
	return nil
}

// Build constructs the grid model and its material library.
func (m ModelConfig) Build() (*model.GridModel, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	lib, err := m.LibrarySpec().Build()
	if err != nil {
		return nil, err
	}

	gm := model.NewGridModel(lib, m.Nx, m.Ny, m.Dx, m.Dy)
	for _, l := range m.Layers {
		frac := l.Fractions
		if len(frac) == 0 && l.MetalFraction > 0 {
			frac = make([]float64, m.Nx*m.Ny)
			for i := range frac {
				frac[i] = l.MetalFraction
			}
		}
		if err := gm.AddLayer(model.GridLayer{
			Name:          l.Name,
			Thickness:     l.Thickness,
			ConductorMat:  l.Conductor,
			DielectricMat: l.Dielectric,
			MetalFraction: frac,
		}); err != nil {
			return nil, err
		}
	}

	for i, s := range m.Sources {
		p, err := s.Power.Build()
		if err != nil {
			return nil, fmt.Errorf("source %d power: %w", i, err)
		}
		if err := gm.AddPowerBlock(s.Layer, s.X0, s.Y0, s.X1, s.Y1, model.Power{Model: p, Scenario: s.Scenario}); err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
	}

	for side, bc := range map[model.Side]BoundaryConfig{model.Top: m.Top, model.Bottom: m.Bottom} {
		if bc.Uniform != nil {
			u, err := bc.Uniform.build()
			if err != nil {
				return nil, err
			}
			gm.SetUniformBC(side, u)
		}
		for _, b := range bc.Blocks {
			v, err := b.build()
			if err != nil {
				return nil, err
			}
			gm.AddBlockBC(side, geom.NewBox2(b.Min, b.Max), v)
		}
	}

	for _, j := range m.Jumps {
		if err := gm.AddJumpConnection(model.JumpConnection{
			From: j.From, To: j.To, Area: j.Area, Length: j.Length, MaterialID: j.Material,
		}); err != nil {
			return nil, err
		}
	}
	return gm, nil
}
