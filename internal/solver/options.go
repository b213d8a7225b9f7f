// Package solver runs static and transient thermal solves over a network
// builder. Both solvers work in kelvin internally and convert to the
// requested unit on exit. Re-linearization iterations are strictly
// sequential; parallelism lives in the builder and the linear algebra.
package solver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/san-kum/etherm/internal/dynamo"
	"github.com/san-kum/etherm/internal/integrators"
	"github.com/san-kum/etherm/internal/mna"
	"github.com/san-kum/etherm/internal/sparse"
)

var (
	ErrInvalidOptions = errors.New("solver: invalid options")
	ErrNoSamples      = errors.New("solver: no samples retained")
)

const absoluteZeroC = 273.15

type Unit string

const (
	Kelvin  Unit = "K"
	Celsius Unit = "C"
)

func ParseUnit(s string) (Unit, error) {
	switch strings.ToUpper(s) {
	case "K", "KELVIN":
		return Kelvin, nil
	case "C", "CELSIUS":
		return Celsius, nil
	}
	return "", fmt.Errorf("%w: unknown unit %q", ErrInvalidOptions, s)
}

func (u Unit) ToKelvin(v float64) float64 {
	if u == Celsius {
		return v + absoluteZeroC
	}
	return v
}

func (u Unit) FromKelvin(v float64) float64 {
	if u == Celsius {
		return v - absoluteZeroC
	}
	return v
}

func (u Unit) convert(vs []float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = u.FromKelvin(v)
	}
	return out
}

type ResidualMode string

const (
	ResidualMax  ResidualMode = "max"
	ResidualMean ResidualMode = "mean"
)

type IntegratorKind string

const (
	RK45  IntegratorKind = "rk45"
	RK4   IntegratorKind = "rk4"
	Euler IntegratorKind = "euler"
)

func (k IntegratorKind) integrator() (dynamo.Integrator, error) {
	switch k {
	case RK45, "":
		return integrators.NewRK45(), nil
	case RK4:
		return integrators.NewRK4(), nil
	case Euler:
		return integrators.NewEuler(), nil
	}
	return nil, fmt.Errorf("%w: unknown integrator %q", ErrInvalidOptions, k)
}

// Default option values.
const (
	DefaultEnvTemperature    = 25.0
	DefaultIterationCap      = 10
	DefaultResidualThreshold = 0.1
	DefaultAbsoluteError     = 1e-4
	DefaultRelativeError     = 1e-6
)

type StaticOptions struct {
	// EnvTemperature is the ambient reference, in Unit.
	EnvTemperature    float64
	Unit              Unit
	IterationCap      int
	ResidualThreshold float64
	ResidualMode      ResidualMode
	LinearSolver      sparse.Kind
	CG                sparse.CGOptions
	DumpHotmaps       bool
	DumpRaw           bool
	WorkDir           string
}

func DefaultStaticOptions() StaticOptions {
	return StaticOptions{
		EnvTemperature:    DefaultEnvTemperature,
		Unit:              Celsius,
		IterationCap:      DefaultIterationCap,
		ResidualThreshold: DefaultResidualThreshold,
		ResidualMode:      ResidualMax,
		LinearSolver:      sparse.CG,
		CG:                sparse.DefaultCGOptions,
	}
}

func (o StaticOptions) validate() error {
	if err := validateUnit(o.Unit); err != nil {
		return err
	}
	if o.IterationCap < 1 {
		return fmt.Errorf("%w: iteration cap must be at least 1, got %d", ErrInvalidOptions, o.IterationCap)
	}
	if o.ResidualThreshold < 0 {
		return fmt.Errorf("%w: residual threshold must be non-negative", ErrInvalidOptions)
	}
	if o.ResidualMode != ResidualMax && o.ResidualMode != ResidualMean {
		return fmt.Errorf("%w: unknown residual mode %q", ErrInvalidOptions, o.ResidualMode)
	}
	if (o.DumpHotmaps || o.DumpRaw) && o.WorkDir == "" {
		return fmt.Errorf("%w: dumps need a work directory", ErrInvalidOptions)
	}
	return nil
}

type TransientOptions struct {
	// EnvTemperature is the ambient reference and the initial temperature of
	// every node, in Unit.
	EnvTemperature float64
	Unit           Unit
	// Step is the initial step of the adaptive integrator and the fixed step
	// of the others.
	Step          float64
	Duration      float64
	AbsoluteError float64
	RelativeError float64
	// MinSamplingInterval is the minimum spacing of retained samples.
	MinSamplingInterval float64
	// SamplingWindow keeps only samples in the trailing window of the run;
	// zero keeps the whole run.
	SamplingWindow float64
	// TemperatureDependent rebuilds the network every MacroStep seconds from
	// the temperatures at the start of the window.
	TemperatureDependent bool
	MacroStep            float64
	// MOROrder enables PRIMA reduction to the given order; zero integrates
	// the full-order system.
	MOROrder     int
	LinearSolver sparse.Kind
	Excitation   mna.Excitation
	Probes       []int
	DumpRawData  bool
	WorkDir      string
	Integrator   IntegratorKind
}

func DefaultTransientOptions() TransientOptions {
	return TransientOptions{
		EnvTemperature: DefaultEnvTemperature,
		Unit:           Celsius,
		Step:           1e-3,
		Duration:       1,
		AbsoluteError:  DefaultAbsoluteError,
		RelativeError:  DefaultRelativeError,
		LinearSolver:   sparse.CG,
		Integrator:     RK45,
	}
}

func (o TransientOptions) validate() error {
	if err := validateUnit(o.Unit); err != nil {
		return err
	}
	if o.Step <= 0 {
		return fmt.Errorf("%w: step must be positive, got %g", ErrInvalidOptions, o.Step)
	}
	if o.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %g", ErrInvalidOptions, o.Duration)
	}
	if o.AbsoluteError <= 0 && o.RelativeError <= 0 {
		return fmt.Errorf("%w: error tolerances must not both be zero", ErrInvalidOptions)
	}
	if o.MinSamplingInterval < 0 || o.SamplingWindow < 0 || o.MacroStep < 0 {
		return fmt.Errorf("%w: sampling interval, window and macro step must be non-negative", ErrInvalidOptions)
	}
	if o.MOROrder < 0 {
		return fmt.Errorf("%w: MOR order must be non-negative", ErrInvalidOptions)
	}
	if o.DumpRawData && o.WorkDir == "" {
		return fmt.Errorf("%w: dumps need a work directory", ErrInvalidOptions)
	}
	_, err := o.Integrator.integrator()
	return err
}

// macroStep is the re-linearization window length.
func (o TransientOptions) macroStep() float64 {
	if !o.TemperatureDependent {
		return o.Duration
	}
	if o.MacroStep > 0 {
		return o.MacroStep
	}
	return o.Duration / 10
}

func validateUnit(u Unit) error {
	if u != Kelvin && u != Celsius {
		return fmt.Errorf("%w: unknown unit %q", ErrInvalidOptions, u)
	}
	return nil
}
