// Package config reads the YAML description of a solve: the grid model with
// its materials, sources and boundaries, and the static and transient solver
// settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/etherm/internal/geom"
	"github.com/san-kum/etherm/internal/material"
	"github.com/san-kum/etherm/internal/model"
	"github.com/san-kum/etherm/internal/solver"
	"github.com/san-kum/etherm/internal/sparse"
)

var ErrInvalid = errors.New("config: invalid")

var validate = validator.New()

const (
	DefaultIterationCap      = solver.DefaultIterationCap
	DefaultResidualThreshold = solver.DefaultResidualThreshold
	DefaultStep              = 1e-3
	DefaultDuration          = 1.0
	DefaultPrecision         = "float64"
)

type Config struct {
	Precision string          `yaml:"precision" validate:"oneof=float32 float64"`
	Threads   int             `yaml:"threads" validate:"gte=0"`
	Model     ModelConfig     `yaml:"model"`
	Static    StaticConfig    `yaml:"static"`
	Transient TransientConfig `yaml:"transient"`
}

type StaticConfig struct {
	EnvTemperature    float64 `yaml:"env_temperature"`
	Unit              string  `yaml:"unit" validate:"oneof=K C"`
	IterationCap      int     `yaml:"iteration_cap" validate:"gte=1"`
	ResidualThreshold float64 `yaml:"residual_threshold" validate:"gte=0"`
	ResidualMode      string  `yaml:"residual_mode" validate:"oneof=max mean"`
	LinearSolver      string  `yaml:"linear_solver" validate:"oneof=cg lu cholesky"`
	DumpHotmaps       bool    `yaml:"dump_hotmaps"`
	DumpRaw           bool    `yaml:"dump_raw"`
	WorkDir           string  `yaml:"work_dir"`
}

type TransientConfig struct {
	EnvTemperature       float64                 `yaml:"env_temperature"`
	Unit                 string                  `yaml:"unit" validate:"oneof=K C"`
	Step                 float64                 `yaml:"step" validate:"gt=0"`
	Duration             float64                 `yaml:"duration" validate:"gt=0"`
	AbsoluteError        float64                 `yaml:"absolute_error" validate:"gte=0"`
	RelativeError        float64                 `yaml:"relative_error" validate:"gte=0"`
	MinSamplingInterval  float64                 `yaml:"min_sampling_interval" validate:"gte=0"`
	SamplingWindow       float64                 `yaml:"sampling_window" validate:"gte=0"`
	TemperatureDependent bool                    `yaml:"temperature_dependent"`
	MacroStep            float64                 `yaml:"macro_step" validate:"gte=0"`
	MOROrder             int                     `yaml:"mor_order" validate:"gte=0"`
	LinearSolver         string                  `yaml:"linear_solver" validate:"oneof=cg lu cholesky"`
	Integrator           string                  `yaml:"integrator" validate:"oneof=rk45 rk4 euler"`
	Excitation           map[int]solver.Waveform `yaml:"excitation" validate:"dive"`
	Probes               []int                   `yaml:"probes" validate:"dive,gte=0"`
	// ProbePoints are monitor locations resolved to the containing element.
	ProbePoints []geom.Point3 `yaml:"probe_points"`
	DumpRawData bool          `yaml:"dump_raw_data"`
	WorkDir     string        `yaml:"work_dir"`
}

func DefaultConfig() *Config {
	return &Config{
		Precision: DefaultPrecision,
		Model:     ModelConfig{Name: "model"},
		Static: StaticConfig{
			EnvTemperature:    solver.DefaultEnvTemperature,
			Unit:              string(solver.Celsius),
			IterationCap:      DefaultIterationCap,
			ResidualThreshold: DefaultResidualThreshold,
			ResidualMode:      string(solver.ResidualMax),
			LinearSolver:      string(sparse.CG),
		},
		Transient: TransientConfig{
			EnvTemperature: solver.DefaultEnvTemperature,
			Unit:           string(solver.Celsius),
			Step:           DefaultStep,
			Duration:       DefaultDuration,
			AbsoluteError:  solver.DefaultAbsoluteError,
			RelativeError:  solver.DefaultRelativeError,
			LinearSolver:   string(sparse.CG),
			Integrator:     string(solver.RK45),
		},
	}
}

// Load reads a config file over the defaults. It does not validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks field ranges and the cross-references of the model.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return c.Model.check()
}

// StaticOptions converts the static section for the solver.
func (c *Config) StaticOptions() solver.StaticOptions {
	s := c.Static
	opts := solver.DefaultStaticOptions()
	opts.EnvTemperature = s.EnvTemperature
	opts.Unit = solver.Unit(s.Unit)
	opts.IterationCap = s.IterationCap
	opts.ResidualThreshold = s.ResidualThreshold
	opts.ResidualMode = solver.ResidualMode(s.ResidualMode)
	opts.LinearSolver = sparse.Kind(s.LinearSolver)
	opts.DumpHotmaps = s.DumpHotmaps
	opts.DumpRaw = s.DumpRaw
	opts.WorkDir = s.WorkDir
	return opts
}

// TransientOptions converts the transient section for the solver, resolving
// probe points against m.
func (c *Config) TransientOptions(m model.Model) (solver.TransientOptions, error) {
	s := c.Transient
	exc, err := solver.Excitations(s.Excitation)
	if err != nil {
		return solver.TransientOptions{}, err
	}

	probes := append([]int(nil), s.Probes...)
	for _, p := range s.ProbePoints {
		i, err := m.ElementAt(p)
		if err != nil {
			return solver.TransientOptions{}, fmt.Errorf("probe point: %w", err)
		}
		probes = append(probes, i)
	}

	return solver.TransientOptions{
		EnvTemperature:       s.EnvTemperature,
		Unit:                 solver.Unit(s.Unit),
		Step:                 s.Step,
		Duration:             s.Duration,
		AbsoluteError:        s.AbsoluteError,
		RelativeError:        s.RelativeError,
		MinSamplingInterval:  s.MinSamplingInterval,
		SamplingWindow:       s.SamplingWindow,
		TemperatureDependent: s.TemperatureDependent,
		MacroStep:            s.MacroStep,
		MOROrder:             s.MOROrder,
		LinearSolver:         sparse.Kind(s.LinearSolver),
		Excitation:           exc,
		Probes:               probes,
		DumpRawData:          s.DumpRawData,
		WorkDir:              s.WorkDir,
		Integrator:           solver.IntegratorKind(s.Integrator),
	}, nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.TrimPrefix(e.Namespace(), "Config.")
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s], got %v", field, e.Param(), e.Value()))
		case "gt", "gte", "lt", "lte", "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s must be %s %s, got %v", field, e.Tag(), e.Param(), e.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, e.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

// LibrarySpec collects the model's materials for material.LibrarySpec.Build.
func (m ModelConfig) LibrarySpec() material.LibrarySpec {
	return material.LibrarySpec{Materials: m.Materials}
}
