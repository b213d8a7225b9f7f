package solver

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/etherm/internal/builder"
	"github.com/san-kum/etherm/internal/metrics"
	"github.com/san-kum/etherm/internal/mna"
	"github.com/san-kum/etherm/internal/network"
)

// Variant is one member of an ensemble. Metrics are owned by the variant and
// must not be shared with another one.
type Variant[F network.Float] struct {
	Name    string
	Builder builder.Builder[F]
	Options TransientOptions
	Metrics []metrics.Metric
}

// Ensemble runs independent transients concurrently. Builders may share a
// model since Build does not mutate it.
type Ensemble[F network.Float] struct {
	workers  int
	variants []Variant[F]
	logger   *slog.Logger
	registry *metrics.Registry
}

// NewEnsemble runs at most workers variants at a time; 0 means no limit.
func NewEnsemble[F network.Float](workers int) *Ensemble[F] {
	return &Ensemble[F]{workers: workers, logger: slog.Default()}
}

func (e *Ensemble[F]) Add(v Variant[F]) { e.variants = append(e.variants, v) }

func (e *Ensemble[F]) Len() int { return len(e.variants) }

func (e *Ensemble[F]) WithLogger(l *slog.Logger) *Ensemble[F] {
	if l != nil {
		e.logger = l
	}
	return e
}

func (e *Ensemble[F]) WithMetrics(r *metrics.Registry) *Ensemble[F] {
	e.registry = r
	return e
}

// Run returns one result per variant in insertion order. The first failure
// cancels the remaining runs.
func (e *Ensemble[F]) Run(ctx context.Context) ([]*TransientResult, error) {
	results := make([]*TransientResult, len(e.variants))
	g, ctx := errgroup.WithContext(ctx)
	if e.workers > 0 {
		g.SetLimit(e.workers)
	}

	for i, v := range e.variants {
		i, v := i, v
		g.Go(func() error {
			tr, err := NewTransient(v.Builder, v.Options)
			if err != nil {
				return fmt.Errorf("variant %s: %w", v.Name, err)
			}
			tr.WithLogger(e.logger.With("variant", v.Name)).WithMetrics(e.registry)
			for _, m := range v.Metrics {
				tr.AddMetric(m)
			}
			res, err := tr.Run(ctx)
			if err != nil {
				return fmt.Errorf("variant %s: %w", v.Name, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Scaled multiplies every scenario of exc by k. A nil exc is constant 1.
func Scaled(exc mna.Excitation, k float64) mna.Excitation {
	if exc == nil {
		exc = mna.Constant
	}
	return func(t float64, scenario int) float64 { return k * exc(t, scenario) }
}
