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
	"github.com/san-kum/etherm/internal/metrics"
	"github.com/san-kum/etherm/internal/mna"
	"github.com/san-kum/etherm/internal/network"
	"github.com/san-kum/etherm/internal/sparse"
	"github.com/san-kum/etherm/internal/storage"
)

// StaticResult is the outcome of a Picard iteration. A run that reaches the
// iteration cap without meeting the residual threshold still returns its last
// temperatures with Converged false.
type StaticResult struct {
	// Temperatures holds one entry per model element, in Unit.
	Temperatures []float64
	Unit         Unit
	Converged    bool
	Residual     float64
	Iterations   int
	Min, Max     float64
	// Injected and Boundary are the source heat and the heat leaving through
	// convective boundaries at the final temperatures, in W.
	Injected, Boundary float64
	Elapsed            time.Duration
}

// Imbalance is the relative mismatch between injected and boundary heat.
func (r *StaticResult) Imbalance() float64 {
	if r.Injected == 0 {
		return math.Abs(r.Boundary)
	}
	return math.Abs(r.Injected-r.Boundary) / math.Abs(r.Injected)
}

type Static[F network.Float] struct {
	b       builder.Builder[F]
	opts    StaticOptions
	logger  *slog.Logger
	metrics *metrics.Registry
}

func NewStatic[F network.Float](b builder.Builder[F], opts StaticOptions) (*Static[F], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Static[F]{b: b, opts: opts, logger: slog.Default()}, nil
}

func (s *Static[F]) WithLogger(l *slog.Logger) *Static[F] {
	if l != nil {
		s.logger = l
	}
	return s
}

func (s *Static[F]) WithMetrics(r *metrics.Registry) *Static[F] {
	s.metrics = r
	return s
}

// Run iterates build, solve and residual until the residual drops to the
// threshold or the iteration cap is reached. Models whose properties do not
// depend on temperature take a single iteration.
func (s *Static[F]) Run(ctx context.Context) (*StaticResult, error) {
	start := time.Now()
	m := s.b.Model()
	refT := s.opts.Unit.ToKelvin(s.opts.EnvTemperature)
	linear := m.TemperatureIndependent()
	iterCap := s.opts.IterationCap
	if linear {
		iterCap = 1
	}

	estimate := builder.Uniform[F](m, F(refT))
	prev := make([]float64, len(estimate))
	for i := range prev {
		prev[i] = refT
	}

	var (
		temps     []float64
		net       *network.Network[F]
		residual  = math.Inf(1)
		converged bool
		iter      int
	)
	for iter = 1; iter <= iterCap; iter++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var err error
		net, err = s.b.Build(estimate)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", iter, err)
		}
		temps, err = s.solve(net, refT)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", iter, err)
		}

		residual = residualOf(prev, temps, s.opts.ResidualMode)
		s.logger.Debug("static iteration", "iteration", iter, "residual", residual)
		if linear || residual <= s.opts.ResidualThreshold {
			converged = true
			break
		}

		for i, v := range temps {
			estimate[i] = F(v)
		}
		prev = temps
	}
	if iter > iterCap {
		iter = iterCap
	}

	injected, boundary := network.HeatBalance(net, toF[F](temps), F(refT))
	lo, hi := dynamo.State(temps).MinMax()
	res := &StaticResult{
		Temperatures: s.opts.Unit.convert(temps),
		Unit:         s.opts.Unit,
		Converged:    converged,
		Residual:     residual,
		Iterations:   iter,
		Min:          s.opts.Unit.FromKelvin(lo),
		Max:          s.opts.Unit.FromKelvin(hi),
		Injected:     float64(injected),
		Boundary:     float64(boundary),
		Elapsed:      time.Since(start),
	}

	s.metrics.RecordStatic(res.Iterations, res.Residual, res.Converged)
	level := slog.LevelInfo
	if !converged {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "static solve finished",
		"builder", s.b.Name(),
		"iterations", res.Iterations,
		"residual", res.Residual,
		"converged", res.Converged,
		"min", res.Min,
		"max", res.Max,
		"elapsed", res.Elapsed)

	s.dump(res)
	return res, nil
}

func (s *Static[F]) solve(net *network.Network[F], refT float64) ([]float64, error) {
	ss, err := mna.New(net, refT)
	if err != nil {
		return nil, err
	}
	lin, err := sparse.NewSolver(s.opts.LinearSolver, ss.G, s.opts.CG)
	if err != nil {
		return nil, err
	}
	return lin.Solve(ss.SteadyRHS())
}

// dump writes the requested diagnostics. Failures are logged and skipped.
func (s *Static[F]) dump(res *StaticResult) {
	dir := s.opts.WorkDir
	if s.opts.DumpHotmaps {
		if err := storage.WriteHotmap(filepath.Join(dir, storage.HotmapFile), res.Temperatures); err != nil {
			s.logger.Warn("hotmap dump skipped", "err", err)
		}
		if err := storage.WriteVTK(filepath.Join(dir, storage.VTKFile), s.b.Model(), res.Temperatures); err != nil {
			s.logger.Warn("vtk dump skipped", "err", err)
		}
	}
	if s.opts.DumpRaw {
		if err := storage.WriteRaw(filepath.Join(dir, storage.RawFile), [][]float64{res.Temperatures}); err != nil {
			s.logger.Warn("raw dump skipped", "err", err)
		}
	}
}

func residualOf(prev, cur []float64, mode ResidualMode) float64 {
	if len(cur) == 0 {
		return 0
	}
	worst, sum := 0.0, 0.0
	for i := range cur {
		d := math.Abs(cur[i] - prev[i])
		worst = math.Max(worst, d)
		sum += d
	}
	if mode == ResidualMean {
		return sum / float64(len(cur))
	}
	return worst
}

func toF[F network.Float](vs []float64) []F {
	out := make([]F, len(vs))
	for i, v := range vs {
		out[i] = F(v)
	}
	return out
}
