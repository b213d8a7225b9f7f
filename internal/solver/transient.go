package solver

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"time"

	"github.com/san-kum/etherm/internal/builder"
	"github.com/san-kum/etherm/internal/dynamo"
	"github.com/san-kum/etherm/internal/integrators"
	"github.com/san-kum/etherm/internal/metrics"
	"github.com/san-kum/etherm/internal/mna"
	"github.com/san-kum/etherm/internal/mor"
	"github.com/san-kum/etherm/internal/network"
	"github.com/san-kum/etherm/internal/storage"
)

type TransientResult struct {
	Unit   Unit
	Probes []int
	// Samples holds the retained probe samples, in Unit. It is empty when the
	// run has no probes.
	Samples []Sample
	// Min and Max span the retained samples: the probe values, or every node
	// when the run has no probes.
	Min, Max float64
	// Final is the temperature of every element at the end of the run.
	Final    []float64
	Accepted int
	Rejected int
	Rebuilds int
	MOROrder int
	Metrics  map[string]float64
	Elapsed  time.Duration
}

// Series converts the retained samples for storage.
func (r *TransientResult) Series() *storage.ProbeSeries {
	series := &storage.ProbeSeries{Probes: r.Probes}
	for _, s := range r.Samples {
		series.Times = append(series.Times, s.Time)
		series.Values = append(series.Values, s.Values)
	}
	return series
}

type Transient[F network.Float] struct {
	b        builder.Builder[F]
	opts     TransientOptions
	integ    dynamo.Integrator
	logger   *slog.Logger
	registry *metrics.Registry
	metrics  []metrics.Metric
	observer []dynamo.Observer
}

func NewTransient[F network.Float](b builder.Builder[F], opts TransientOptions) (*Transient[F], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	integ, _ := opts.Integrator.integrator()
	if opts.Excitation == nil {
		opts.Excitation = mna.Constant
	}
	return &Transient[F]{b: b, opts: opts, integ: integ, logger: slog.Default()}, nil
}

func (s *Transient[F]) WithLogger(l *slog.Logger) *Transient[F] {
	if l != nil {
		s.logger = l
	}
	return s
}

func (s *Transient[F]) WithMetrics(r *metrics.Registry) *Transient[F] {
	s.registry = r
	return s
}

// AddMetric observes every retained sample with the full temperature field in
// kelvin.
func (s *Transient[F]) AddMetric(m metrics.Metric) { s.metrics = append(s.metrics, m) }

// AddObserver sees every accepted integration step of the integrated state,
// which is the reduced state when MOR is enabled.
func (s *Transient[F]) AddObserver(o dynamo.Observer) { s.observer = append(s.observer, o) }

// window is the system integrated between two re-linearizations.
type window struct {
	sys    dynamo.System
	x0     dynamo.State
	output func(dynamo.State) []float64
	field  func(dynamo.State) []float64
	order  int
}

// Run integrates from a uniform ambient field over the configured duration.
// Temperature-dependent runs rebuild the network, and the reduced basis, at
// the start of every macro step.
func (s *Transient[F]) Run(ctx context.Context) (*TransientResult, error) {
	start := time.Now()
	o := s.opts
	m := s.b.Model()
	refT := o.Unit.ToKelvin(o.EnvTemperature)

	x := make([]float64, m.TotalElements())
	for i := range x {
		x[i] = refT
	}

	for _, mt := range s.metrics {
		mt.Reset()
	}
	smp := newSampler(o.MinSamplingInterval, o.Duration, o.SamplingWindow, o.Probes, s.metrics)
	obs := dynamo.ObserverFunc(func(z dynamo.State, t float64) {
		smp.OnStep(z, t)
		for _, ob := range s.observer {
			ob.OnStep(z, t)
		}
	})

	res := &TransientResult{Unit: o.Unit, Probes: o.Probes}
	iopts := integrators.Options{
		Dt:        o.Step,
		Tolerance: dynamo.Tolerance{Abs: o.AbsoluteError, Rel: o.RelativeError},
	}

	macro := o.macroStep()
	if m.TemperatureIndependent() {
		macro = o.Duration
	}

	t := 0.0
	var z dynamo.State
	for k := 0; o.Duration-t > 1e-12*o.Duration; k++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		w, err := s.linearize(x, refT)
		if err != nil {
			return nil, fmt.Errorf("window %d at t=%g: %w", k, t, err)
		}
		if k > 0 {
			res.Rebuilds++
			s.registry.RecordRebuild()
		}
		smp.bind(w.output, w.field)
		res.MOROrder = w.order

		h := math.Min(macro, o.Duration-t)
		iopts.MaxDt = h
		zEnd, stats, err := integrators.Integrate(s.integ, w.sys, w.x0, t, t+h, iopts, obs)
		res.Accepted += stats.Accepted
		res.Rejected += stats.Rejected
		s.registry.RecordSteps(stats.Accepted, stats.Rejected)
		if err != nil {
			return nil, fmt.Errorf("window %d at t=%g: %w", k, t, err)
		}
		s.logger.Debug("transient window", "window", k, "t", t+h, "accepted", stats.Accepted, "rejected", stats.Rejected)

		t += h
		z = zEnd
		x = w.field(z)
	}
	smp.flush(z, t)

	res.Samples = make([]Sample, len(smp.samples))
	for i, sm := range smp.samples {
		res.Samples[i] = Sample{Time: sm.Time, Values: o.Unit.convert(sm.Values)}
	}
	res.Min = o.Unit.FromKelvin(smp.min)
	res.Max = o.Unit.FromKelvin(smp.max)
	res.Final = o.Unit.convert(x)
	res.Metrics = make(map[string]float64, len(s.metrics))
	for _, mt := range s.metrics {
		res.Metrics[mt.Name()] = mt.Value()
	}
	res.Elapsed = time.Since(start)

	s.logger.Info("transient solve finished",
		"builder", s.b.Name(),
		"duration", o.Duration,
		"accepted", res.Accepted,
		"rejected", res.Rejected,
		"rebuilds", res.Rebuilds,
		"mor_order", res.MOROrder,
		"min", res.Min,
		"max", res.Max,
		"elapsed", res.Elapsed)

	if o.DumpRawData {
		s.dump(res)
	}
	return res, nil
}

// linearize builds the network at temperatures x and prepares the system to
// integrate, reduced when MOR is enabled.
func (s *Transient[F]) linearize(x []float64, refT float64) (window, error) {
	net, err := s.b.Build(toF[F](x))
	if err != nil {
		return window{}, err
	}
	ss, err := mna.New(net, refT)
	if err != nil {
		return window{}, err
	}
	if err := ss.CheckDynamic(); err != nil {
		return window{}, err
	}
	if err := ss.CheckProbes(s.opts.Probes); err != nil {
		return window{}, err
	}

	if s.opts.MOROrder == 0 {
		return window{
			sys:    mna.NewFullOrder(ss, s.opts.Excitation),
			x0:     dynamo.State(x).Clone(),
			output: func(z dynamo.State) []float64 { return mna.Select(z, s.opts.Probes) },
			field:  func(z dynamo.State) []float64 { return z.Clone() },
		}, nil
	}

	r, err := mor.Reduce(ss, s.opts.MOROrder, s.opts.LinearSolver)
	if err != nil {
		return window{}, err
	}
	s.registry.SetMOROrder(r.Order())
	return window{
		sys:    mor.NewSystem(r, ss, s.opts.Excitation),
		x0:     r.Project(x),
		output: func(z dynamo.State) []float64 { return r.Output(z, s.opts.Probes) },
		field:  r.Lift,
		order:  r.Order(),
	}, nil
}

// dump writes the probe series as CSV and, compressed, as raw rows of
// (time, probe values...). Failures are logged and skipped.
func (s *Transient[F]) dump(res *TransientResult) {
	dir := s.opts.WorkDir
	if len(res.Samples) == 0 {
		s.logger.Warn("probe dump skipped", "err", ErrNoSamples)
		return
	}
	if err := storage.WriteProbes(filepath.Join(dir, storage.ProbesFile), res.Series()); err != nil {
		s.logger.Warn("probe dump skipped", "err", err)
	}

	rows := make([][]float64, len(res.Samples))
	for i, sm := range res.Samples {
		rows[i] = append([]float64{sm.Time}, sm.Values...)
	}
	if err := storage.WriteRaw(filepath.Join(dir, storage.RawFile), rows); err != nil {
		s.logger.Warn("raw dump skipped", "err", err)
	}
}
