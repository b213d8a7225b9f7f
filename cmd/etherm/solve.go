package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/etherm/internal/builder"
	"github.com/san-kum/etherm/internal/metrics"
	"github.com/san-kum/etherm/internal/model"
	"github.com/san-kum/etherm/internal/network"
	"github.com/san-kum/etherm/internal/solver"
	"github.com/san-kum/etherm/internal/storage"
)

func runStatic(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd, args)
	if err != nil {
		return err
	}
	defer e.finish()

	m, err := e.cfg.Model.Build()
	if err != nil {
		return err
	}
	run, err := e.store.Create("static")
	if err != nil {
		return err
	}

	opts := e.cfg.StaticOptions()
	if cmd.Flags().Changed("cap") {
		opts.IterationCap = iterationCap
	}
	if cmd.Flags().Changed("unit") {
		if opts.Unit, err = solver.ParseUnit(unit); err != nil {
			return err
		}
	}
	if opts.WorkDir == "" {
		opts.WorkDir = run.Dir
		opts.DumpHotmaps = true
	}

	ctx, cancel := signalContext()
	defer cancel()

	var res *solver.StaticResult
	if e.cfg.Precision == "float32" {
		res, err = solveStatic[float32](ctx, e, m, opts)
	} else {
		res, err = solveStatic[float64](ctx, e, m, opts)
	}
	if err != nil {
		return err
	}

	converged := res.Converged
	meta := storage.RunMetadata{
		Model:      e.cfg.Model.Name,
		Elements:   m.TotalElements(),
		Elapsed:    res.Elapsed.Seconds(),
		Unit:       string(res.Unit),
		Min:        res.Min,
		Max:        res.Max,
		Converged:  &converged,
		Residual:   res.Residual,
		Iterations: res.Iterations,
		Metrics:    map[string]float64{"injected_w": res.Injected, "boundary_w": res.Boundary},
	}
	if err := e.store.Save(run, meta); err != nil {
		return err
	}

	if !res.Converged {
		warn("static solve stopped at the iteration cap (residual %.4g > %.4g)", res.Residual, opts.ResidualThreshold)
	}
	printSummary("static "+run.ID, [][2]string{
		{"model", fmt.Sprintf("%s (%d elements)", meta.Model, meta.Elements)},
		{"iterations", fmt.Sprintf("%d", res.Iterations)},
		{"residual", fmt.Sprintf("%.4g", res.Residual)},
		{"min", fmt.Sprintf("%.3f %s", res.Min, res.Unit)},
		{"max", fmt.Sprintf("%.3f %s", res.Max, res.Unit)},
		{"balance", fmt.Sprintf("%.4g W in, %.4g W out", res.Injected, res.Boundary)},
		{"elapsed", res.Elapsed.Round(time.Millisecond).String()},
	})
	return nil
}

func solveStatic[F network.Float](ctx context.Context, e *env, m model.Model, opts solver.StaticOptions) (*solver.StaticResult, error) {
	b, err := builder.New[F](m, e.builderOptions())
	if err != nil {
		return nil, err
	}
	s, err := solver.NewStatic(b, opts)
	if err != nil {
		return nil, err
	}
	return s.WithLogger(e.log).WithMetrics(e.reg).Run(ctx)
}

// transientOptions applies the command line overrides to the configured
// transient section.
func transientOptions(cmd *cobra.Command, e *env, m model.Model) (solver.TransientOptions, error) {
	opts, err := e.cfg.TransientOptions(m)
	if err != nil {
		return opts, err
	}
	flags := cmd.Flags()
	if flags.Changed("time") {
		opts.Duration = duration
	}
	if flags.Changed("dt") {
		opts.Step = step
	}
	if flags.Changed("mor") {
		opts.MOROrder = morOrder
	}
	if flags.Changed("integrator") {
		opts.Integrator = solver.IntegratorKind(integrator)
	}
	if flags.Changed("probe") {
		opts.Probes = probes
	}
	if flags.Changed("unit") {
		if opts.Unit, err = solver.ParseUnit(unit); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// runMetrics builds the per-run metrics. Temperatures are observed in kelvin.
func runMetrics[F network.Float](b builder.Builder[F], opts solver.TransientOptions) ([]metrics.Metric, error) {
	refK := opts.Unit.ToKelvin(opts.EnvTemperature)
	net, err := b.Build(builder.Uniform(b.Model(), F(refK)))
	if err != nil {
		return nil, err
	}
	caps := make([]float64, net.Size())
	for i := range caps {
		caps[i] = float64(net.Node(i).C)
	}
	ms := []metrics.Metric{
		metrics.NewPeakTemperature(),
		metrics.NewStoredEnergy(caps, refK),
		metrics.NewSettling(caps, refK),
	}
	if limit > 0 {
		ms = append(ms, metrics.NewLimit(opts.Unit.ToKelvin(limit)))
	}
	return ms, nil
}

func runTransient(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd, args)
	if err != nil {
		return err
	}
	defer e.finish()

	m, err := e.cfg.Model.Build()
	if err != nil {
		return err
	}
	opts, err := transientOptions(cmd, e, m)
	if err != nil {
		return err
	}
	run, err := e.store.Create("transient")
	if err != nil {
		return err
	}
	if opts.WorkDir == "" {
		opts.WorkDir = run.Dir
	}

	ctx, cancel := signalContext()
	defer cancel()

	var res *solver.TransientResult
	if e.cfg.Precision == "float32" {
		res, err = solveTransient[float32](ctx, e, m, opts)
	} else {
		res, err = solveTransient[float64](ctx, e, m, opts)
	}
	if err != nil {
		return err
	}

	meta := transientMeta(e, m, opts, res)
	if err := e.store.Save(run, meta); err != nil {
		return err
	}
	printTransient("transient "+run.ID, meta, res)
	return nil
}

func solveTransient[F network.Float](ctx context.Context, e *env, m model.Model, opts solver.TransientOptions) (*solver.TransientResult, error) {
	b, err := builder.New[F](m, e.builderOptions())
	if err != nil {
		return nil, err
	}
	ms, err := runMetrics(b, opts)
	if err != nil {
		return nil, err
	}
	tr, err := solver.NewTransient(b, opts)
	if err != nil {
		return nil, err
	}
	tr.WithLogger(e.log).WithMetrics(e.reg)
	for _, mt := range ms {
		tr.AddMetric(mt)
	}
	return tr.Run(ctx)
}

func transientMeta(e *env, m model.Model, opts solver.TransientOptions, res *solver.TransientResult) storage.RunMetadata {
	return storage.RunMetadata{
		Model:      e.cfg.Model.Name,
		Elements:   m.TotalElements(),
		Elapsed:    res.Elapsed.Seconds(),
		Unit:       string(res.Unit),
		Min:        res.Min,
		Max:        res.Max,
		Duration:   opts.Duration,
		Integrator: string(opts.Integrator),
		MOROrder:   res.MOROrder,
		Probes:     res.Probes,
		Metrics:    res.Metrics,
	}
}

func printTransient(title string, meta storage.RunMetadata, res *solver.TransientResult) {
	order := "full"
	if res.MOROrder > 0 {
		order = fmt.Sprintf("%d", res.MOROrder)
	}
	rows := [][2]string{
		{"model", fmt.Sprintf("%s (%d elements)", meta.Model, meta.Elements)},
		{"duration", fmt.Sprintf("%gs (%s)", meta.Duration, meta.Integrator)},
		{"order", order},
		{"steps", fmt.Sprintf("%d accepted, %d rejected, %d rebuilds", res.Accepted, res.Rejected, res.Rebuilds)},
		{"samples", fmt.Sprintf("%d", len(res.Samples))},
		{"min", fmt.Sprintf("%.3f %s", res.Min, res.Unit)},
		{"max", fmt.Sprintf("%.3f %s", res.Max, res.Unit)},
	}
	for _, name := range sortedKeys(res.Metrics) {
		rows = append(rows, [2]string{name, fmt.Sprintf("%.4g", res.Metrics[name])})
	}
	rows = append(rows, [2]string{"elapsed", res.Elapsed.Round(time.Millisecond).String()})
	printSummary(title, rows)
}

func runSweep(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd, args)
	if err != nil {
		return err
	}
	defer e.finish()

	m, err := e.cfg.Model.Build()
	if err != nil {
		return err
	}
	base, err := transientOptions(cmd, e, m)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	if e.cfg.Precision == "float32" {
		return sweep[float32](ctx, e, m, base)
	}
	return sweep[float64](ctx, e, m, base)
}

func sweep[F network.Float](ctx context.Context, e *env, m model.Model, base solver.TransientOptions) error {
	b, err := builder.New[F](m, e.builderOptions())
	if err != nil {
		return err
	}

	ens := solver.NewEnsemble[F](e.cfg.Threads).WithLogger(e.log).WithMetrics(e.reg)
	runs := make([]*storage.Run, 0, len(scales))
	for _, k := range scales {
		run, err := e.store.Create("sweep")
		if err != nil {
			return err
		}
		opts := base
		opts.Excitation = solver.Scaled(base.Excitation, k)
		opts.WorkDir = run.Dir
		ms, err := runMetrics(b, opts)
		if err != nil {
			return err
		}
		ens.Add(solver.Variant[F]{Name: fmt.Sprintf("x%g", k), Builder: b, Options: opts, Metrics: ms})
		runs = append(runs, run)
	}

	results, err := ens.Run(ctx)
	if err != nil {
		return err
	}
	for i, res := range results {
		meta := transientMeta(e, m, base, res)
		meta.Metrics["excitation_scale"] = scales[i]
		if err := e.store.Save(runs[i], meta); err != nil {
			return err
		}
		printTransient(fmt.Sprintf("sweep x%g %s", scales[i], runs[i].ID), meta, res)
	}
	return nil
}
