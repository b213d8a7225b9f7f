package solver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/etherm/internal/builder"
	"github.com/san-kum/etherm/internal/dynamo"
	"github.com/san-kum/etherm/internal/metrics"
	"github.com/san-kum/etherm/internal/mor"
	"github.com/san-kum/etherm/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitConversion(t *testing.T) {
	assert.InDelta(t, 298.15, Celsius.ToKelvin(25), 1e-12)
	assert.InDelta(t, 25, Celsius.FromKelvin(298.15), 1e-12)
	assert.Equal(t, 300.0, Kelvin.ToKelvin(300))

	u, err := ParseUnit("celsius")
	require.NoError(t, err)
	assert.Equal(t, Celsius, u)
	_, err = ParseUnit("F")
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestResidualModes(t *testing.T) {
	prev := []float64{1, 2, 3, 4}
	cur := []float64{1, 3, 3, 7}
	assert.Equal(t, 3.0, residualOf(prev, cur, ResidualMax))
	assert.Equal(t, 1.0, residualOf(prev, cur, ResidualMean))
}

func TestStaticOptionsValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*StaticOptions)
	}{
		{"zero cap", func(o *StaticOptions) { o.IterationCap = 0 }},
		{"negative threshold", func(o *StaticOptions) { o.ResidualThreshold = -1 }},
		{"bad mode", func(o *StaticOptions) { o.ResidualMode = "median" }},
		{"bad unit", func(o *StaticOptions) { o.Unit = "F" }},
		{"dump without dir", func(o *StaticOptions) { o.DumpHotmaps = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultStaticOptions()
			tt.modify(&opts)
			_, err := NewStatic(chipBuilder(matSlab, 1), opts)
			assert.ErrorIs(t, err, ErrInvalidOptions)
		})
	}
}

func TestTransientOptionsValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*TransientOptions)
	}{
		{"zero step", func(o *TransientOptions) { o.Step = 0 }},
		{"zero duration", func(o *TransientOptions) { o.Duration = 0 }},
		{"no tolerance", func(o *TransientOptions) { o.AbsoluteError, o.RelativeError = 0, 0 }},
		{"negative window", func(o *TransientOptions) { o.SamplingWindow = -1 }},
		{"negative order", func(o *TransientOptions) { o.MOROrder = -2 }},
		{"bad integrator", func(o *TransientOptions) { o.Integrator = "leapfrog" }},
		{"dump without dir", func(o *TransientOptions) { o.DumpRawData = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultTransientOptions()
			tt.modify(&opts)
			_, err := NewTransient(chipBuilder(matSlab, 1), opts)
			assert.ErrorIs(t, err, ErrInvalidOptions)
		})
	}
}

func TestWaveforms(t *testing.T) {
	step := Waveform{Kind: WaveStep, Amplitude: 2, Offset: 0.5, Start: 1}
	assert.Equal(t, 0.5, step.At(0.5))
	assert.Equal(t, 2.0, step.At(1))

	pulse := Waveform{Kind: WavePulse, Amplitude: 1, Period: 4, Duty: 0.25}
	assert.Equal(t, 1.0, pulse.At(0.5))
	assert.Equal(t, 0.0, pulse.At(2))
	assert.Equal(t, 1.0, pulse.At(4.5))

	sine := Waveform{Kind: WaveSine, Amplitude: 1, Offset: 1, Period: 4}
	assert.InDelta(t, 2, sine.At(1), 1e-12)
	assert.InDelta(t, 0, sine.At(3), 1e-12)

	assert.Equal(t, 3.0, Waveform{Kind: WaveConstant, Amplitude: 3}.At(100))

	assert.Error(t, Waveform{Kind: WaveSine}.Validate())
	assert.Error(t, Waveform{Kind: "ramp"}.Validate())
	assert.Error(t, Waveform{Kind: WavePulse, Period: 1, Duty: 2}.Validate())
}

func TestExcitations(t *testing.T) {
	exc, err := Excitations(nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, exc(10, 3))

	waves := map[int]Waveform{1: {Kind: WaveStep, Amplitude: 4, Start: 2}}
	exc, err = Excitations(waves)
	require.NoError(t, err)
	waves[1] = Waveform{Kind: WaveConstant, Amplitude: 9}
	assert.Equal(t, 0.0, exc(1, 1))
	assert.Equal(t, 4.0, exc(3, 1))
	assert.Equal(t, 1.0, exc(3, 0))

	_, err = Excitations(map[int]Waveform{0: {Kind: "ramp"}})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestSamplerIntervalAndWindow(t *testing.T) {
	s := newSampler(1, 10, 4, []int{0}, nil)
	s.bind(
		func(x dynamo.State) []float64 { return []float64{x[0]} },
		func(x dynamo.State) []float64 { return x.Clone() },
	)
	for _, tm := range []float64{0, 5, 6, 6.5, 7, 7.2, 8.9, 9.5} {
		s.OnStep(dynamo.State{tm}, tm)
	}
	s.flush(dynamo.State{10}, 10)
	s.flush(dynamo.State{10}, 10)

	var times []float64
	for _, sm := range s.samples {
		times = append(times, sm.Time)
	}
	assert.Equal(t, []float64{6, 7, 8.9, 10}, times)
	assert.Equal(t, 6.0, s.min)
	assert.Equal(t, 10.0, s.max)
}

func TestSamplerFlushBeforeWindow(t *testing.T) {
	s := newSampler(1, 10, 4, []int{0}, nil)
	s.bind(
		func(x dynamo.State) []float64 { return []float64{x[0]} },
		func(x dynamo.State) []float64 { return x.Clone() },
	)
	s.flush(dynamo.State{3}, 3)
	assert.Empty(t, s.samples)
	assert.True(t, math.IsInf(s.min, 1))

	s.flush(dynamo.State{10}, 10)
	require.Len(t, s.samples, 1)
	assert.Equal(t, 10.0, s.min)
}

func TestTransientWindowSpansMacroSteps(t *testing.T) {
	opts := DefaultTransientOptions()
	opts.Duration = 100
	opts.Step = 0.1
	opts.TemperatureDependent = true
	opts.MacroStep = 10
	opts.SamplingWindow = 5
	opts.Probes = []int{sourceCenter, topCenter}

	tr, err := NewTransient(chipBuilder(matSoftening, 1), opts)
	require.NoError(t, err)
	res, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, res.Rebuilds)

	require.NotEmpty(t, res.Samples)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, sm := range res.Samples {
		assert.GreaterOrEqual(t, sm.Time, 95.0, "sample at t=%g", sm.Time)
		for _, v := range sm.Values {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	assert.Equal(t, 100.0, res.Samples[len(res.Samples)-1].Time)
	assert.Equal(t, lo, res.Min)
	assert.Equal(t, hi, res.Max)
}

func TestStaticLinearModel(t *testing.T) {
	opts := DefaultStaticOptions()
	opts.LinearSolver = "cholesky"
	res, err := mustStatic(t, chipBuilder(matSlab, 1), opts).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Equal(t, 1, res.Iterations)
	assert.Len(t, res.Temperatures, 18)
	assert.Equal(t, res.Temperatures[sourceCenter], res.Max)
	assert.InDelta(t, 1, res.Injected, 1e-12)
	assert.Less(t, res.Imbalance(), 1e-8)
}

func TestStaticNoSourcesStaysAtAmbient(t *testing.T) {
	opts := DefaultStaticOptions()
	res, err := mustStatic(t, chipBuilder(matSlab, 0), opts).Run(context.Background())
	require.NoError(t, err)
	for i, v := range res.Temperatures {
		assert.InDelta(t, 25, v, 1e-6, "element %d", i)
	}
}

func TestStaticPicardConverges(t *testing.T) {
	reg := metrics.NewRegistry()
	opts := DefaultStaticOptions()
	opts.ResidualThreshold = 1e-3
	opts.IterationCap = 50
	res, err := mustStatic(t, chipBuilder(matSoftening, 1), opts).WithMetrics(reg).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Greater(t, res.Iterations, 1)
	assert.LessOrEqual(t, res.Residual, 1e-3)

	// the softening slab conducts worse than the linear one once heated
	linear, err := mustStatic(t, chipBuilder(matSlab, 1), DefaultStaticOptions()).Run(context.Background())
	require.NoError(t, err)
	assert.Greater(t, res.Max, linear.Max)
}

func TestStaticCapReportsNonConvergence(t *testing.T) {
	var logs bytes.Buffer
	opts := DefaultStaticOptions()
	opts.IterationCap = 1
	res, err := mustStatic(t, chipBuilder(matSoftening, 1), opts).
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))).
		Run(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Converged)
	assert.Equal(t, 1, res.Iterations)
	assert.Greater(t, res.Residual, opts.ResidualThreshold)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Equal(t, res.Temperatures[sourceCenter], res.Max)
}

func TestStaticDumps(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultStaticOptions()
	opts.Unit = Kelvin
	opts.EnvTemperature = 300
	opts.DumpHotmaps = true
	opts.DumpRaw = true
	opts.WorkDir = dir
	res, err := mustStatic(t, chipBuilder(matSlab, 1), opts).Run(context.Background())
	require.NoError(t, err)

	hot, err := storage.ReadHotmap(filepath.Join(dir, storage.HotmapFile))
	require.NoError(t, err)
	require.Len(t, hot, 18)
	assert.InDelta(t, res.Max, hot[sourceCenter], 1e-6)

	raw, err := storage.ReadRaw(filepath.Join(dir, storage.RawFile))
	require.NoError(t, err)
	assert.Equal(t, res.Temperatures, raw[0])

	_, err = os.Stat(filepath.Join(dir, storage.VTKFile))
	assert.NoError(t, err)
}

func TestStaticDumpFailureIsNotFatal(t *testing.T) {
	opts := DefaultStaticOptions()
	opts.DumpHotmaps = true
	opts.WorkDir = filepath.Join(t.TempDir(), "missing", "dir")
	res, err := mustStatic(t, chipBuilder(matSlab, 1), opts).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Converged)
}

func TestStaticCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := mustStatic(t, chipBuilder(matSlab, 1), DefaultStaticOptions()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStaticFloat32(t *testing.T) {
	b, err := builder.New[float32](chipModel(matSlab, 1), builder.Options{})
	require.NoError(t, err)
	s, err := NewStatic(b, DefaultStaticOptions())
	require.NoError(t, err)
	res, err := s.Run(context.Background())
	require.NoError(t, err)

	ref, err := mustStatic(t, chipBuilder(matSlab, 1), DefaultStaticOptions()).Run(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, ref.Max, res.Max, 1e-3)
}

func TestTransientRebuildsPerMacroStep(t *testing.T) {
	reg := metrics.NewRegistry()
	opts := DefaultTransientOptions()
	opts.Duration = 40
	opts.Step = 0.1
	opts.TemperatureDependent = true
	opts.MacroStep = 10
	opts.Probes = []int{sourceCenter}

	tr, err := NewTransient(chipBuilder(matSoftening, 1), opts)
	require.NoError(t, err)
	res, err := tr.WithMetrics(reg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rebuilds)
	assert.Greater(t, res.Accepted, 0)
	assert.Greater(t, res.Max, res.Min)

	// constant properties never rebuild
	tr, err = NewTransient(chipBuilder(matSlab, 1), opts)
	require.NoError(t, err)
	res, err = tr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Rebuilds)
}

func TestTransientHeatsMonotonically(t *testing.T) {
	opts := DefaultTransientOptions()
	opts.Duration = 100
	opts.Step = 0.1
	opts.MinSamplingInterval = 5
	opts.Probes = []int{sourceCenter, topCenter}

	tr, err := NewTransient(chipBuilder(matSlab, 1), opts)
	require.NoError(t, err)
	peak := metrics.NewPeakTemperature()
	tr.AddMetric(peak)
	res, err := tr.Run(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, res.Samples)
	assert.Equal(t, 0.0, res.Samples[0].Time)
	assert.InDelta(t, 100, res.Samples[len(res.Samples)-1].Time, 1e-9)
	for k := 1; k < len(res.Samples); k++ {
		if k < len(res.Samples)-1 {
			assert.GreaterOrEqual(t, res.Samples[k].Time-res.Samples[k-1].Time, 5.0)
		}
		assert.GreaterOrEqual(t, res.Samples[k].Values[0], res.Samples[k-1].Values[0]-1e-9)
		assert.Greater(t, res.Samples[k].Values[0], res.Samples[k].Values[1])
	}
	assert.InDelta(t, 25, res.Min, 1e-9)
	assert.Equal(t, res.Samples[len(res.Samples)-1].Values[0], res.Max)
	assert.InDelta(t, Celsius.ToKelvin(res.Max), res.Metrics[peak.Name()], 1e-9)
}

func TestTransientFixedStepIntegrators(t *testing.T) {
	ref := runTransient(t, RK45, 0)
	for _, kind := range []IntegratorKind{RK4, Euler} {
		got := runTransient(t, kind, 0)
		assert.InDelta(t, ref.Final[sourceCenter], got.Final[sourceCenter], 0.1, "%s", kind)
	}
}

func TestTransientReducedMatchesFullOrder(t *testing.T) {
	full := runTransient(t, RK45, 0)
	reduced := runTransient(t, RK45, 8)
	// the symmetric model deflates the Krylov space below the requested order
	assert.Greater(t, reduced.MOROrder, 0)
	assert.LessOrEqual(t, reduced.MOROrder, 8)
	assert.InDelta(t, full.Final[sourceCenter], reduced.Final[sourceCenter], 0.05)
	assert.InDelta(t, full.Max, reduced.Max, 0.05)
}

func TestTransientReducedAtPortCount(t *testing.T) {
	opts := DefaultTransientOptions()
	opts.Duration = 20
	opts.Step = 0.05
	opts.Probes = []int{sourceCenter, topCenter}

	// one source scenario plus the ambient port
	opts.MOROrder = 1
	tr, err := NewTransient(chipBuilder(matSlab, 1), opts)
	require.NoError(t, err)
	_, err = tr.Run(context.Background())
	assert.ErrorIs(t, err, mor.ErrInvalidOrder)

	opts.MOROrder = 2
	tr, err = NewTransient(chipBuilder(matSlab, 1), opts)
	require.NoError(t, err)
	res, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.MOROrder)

	require.NotEmpty(t, res.Samples)
	first := res.Samples[0]
	assert.Equal(t, 0.0, first.Time)
	for _, v := range first.Values {
		assert.InDelta(t, 25, v, 1e-6)
	}
	assert.Greater(t, res.Final[sourceCenter], 25.0)
	assert.Greater(t, res.Final[sourceCenter], res.Final[topCenter])
	assert.Greater(t, res.Max, 25.0)
}

func TestTransientDump(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultTransientOptions()
	opts.Duration = 10
	opts.Step = 0.1
	opts.Probes = []int{sourceCenter}
	opts.DumpRawData = true
	opts.WorkDir = dir

	tr, err := NewTransient(chipBuilder(matSlab, 1), opts)
	require.NoError(t, err)
	res, err := tr.Run(context.Background())
	require.NoError(t, err)

	series, err := storage.ReadProbes(filepath.Join(dir, storage.ProbesFile))
	require.NoError(t, err)
	assert.Equal(t, []int{sourceCenter}, series.Probes)
	assert.Equal(t, len(res.Samples), series.Len())

	raw, err := storage.ReadRaw(filepath.Join(dir, storage.RawFile))
	require.NoError(t, err)
	assert.Len(t, raw, len(res.Samples))
	assert.Len(t, raw[0], 2)
}

func TestTransientBadProbe(t *testing.T) {
	opts := DefaultTransientOptions()
	opts.Probes = []int{99}
	tr, err := NewTransient(chipBuilder(matSlab, 1), opts)
	require.NoError(t, err)
	_, err = tr.Run(context.Background())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidOptions))
}

func runTransient(t *testing.T, kind IntegratorKind, order int) *TransientResult {
	t.Helper()
	opts := DefaultTransientOptions()
	opts.Duration = 20
	opts.Step = 0.05
	opts.Integrator = kind
	opts.MOROrder = order
	opts.Probes = []int{sourceCenter}
	tr, err := NewTransient(chipBuilder(matSlab, 1), opts)
	require.NoError(t, err)
	res, err := tr.Run(context.Background())
	require.NoError(t, err)
	require.False(t, math.IsNaN(res.Max))
	return res
}

func mustStatic(t *testing.T, b builder.Builder[float64], opts StaticOptions) *Static[float64] {
	t.Helper()
	s, err := NewStatic(b, opts)
	require.NoError(t, err)
	return s
}

func TestScaled(t *testing.T) {
	exc, err := Excitations(map[int]Waveform{1: {Kind: WaveConstant, Amplitude: 3}})
	require.NoError(t, err)
	s := Scaled(exc, 2)
	assert.Equal(t, 2.0, s(0, 0))
	assert.Equal(t, 6.0, s(0, 1))
	assert.Equal(t, 0.5, Scaled(nil, 0.5)(10, 4))
}

func TestEnsembleScalesLinearly(t *testing.T) {
	b := chipBuilder(matSlab, 1)
	scales := []float64{0.5, 1, 2}

	ens := NewEnsemble[float64](2)
	for _, k := range scales {
		opts := DefaultTransientOptions()
		opts.Duration = 50
		opts.Step = 0.5
		opts.AbsoluteError = 1e-8
		opts.RelativeError = 1e-10
		opts.Probes = []int{sourceCenter}
		opts.Excitation = Scaled(nil, k)
		ens.Add(Variant[float64]{Name: fmt.Sprint(k), Builder: b, Options: opts, Metrics: []metrics.Metric{metrics.NewPeakTemperature()}})
	}
	require.Equal(t, 3, ens.Len())

	results, err := ens.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	base := results[1].Final[sourceCenter] - DefaultEnvTemperature
	require.Greater(t, base, 0.0)
	for i, k := range scales {
		rise := results[i].Final[sourceCenter] - DefaultEnvTemperature
		assert.InEpsilon(t, k*base, rise, 1e-4, "scale %g", k)
		assert.InDelta(t, Celsius.ToKelvin(results[i].Max), results[i].Metrics["peak_temperature"], 1e-9)
	}
}

func TestEnsembleReportsFailingVariant(t *testing.T) {
	good := DefaultTransientOptions()
	good.Duration = 1
	bad := good
	bad.Probes = []int{99}

	ens := NewEnsemble[float64](0)
	ens.Add(Variant[float64]{Name: "good", Builder: chipBuilder(matSlab, 1), Options: good})
	ens.Add(Variant[float64]{Name: "bad", Builder: chipBuilder(matSlab, 1), Options: bad})

	results, err := ens.Run(context.Background())
	assert.Nil(t, results)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variant bad")
}
