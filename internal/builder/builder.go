// Package builder turns a thermal model and a temperature estimate into a
// thermal network. Per-element work runs in contiguous partitions on a worker
// pool; each element writes only its own node and the edges it owns (those to
// higher-indexed neighbors), so partitions never contend.
package builder

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/etherm/internal/dynamo"
	"github.com/san-kum/etherm/internal/material"
	"github.com/san-kum/etherm/internal/metrics"
	"github.com/san-kum/etherm/internal/model"
	"github.com/san-kum/etherm/internal/network"
)

var (
	ErrSizeMismatch = errors.New("builder: temperature vector length does not match model")
	ErrUnsupported  = errors.New("builder: unsupported model")
)

// minChunk keeps partitions large enough to amortize scheduling.
const minChunk = 256

// Builder produces a network from a temperature estimate in kelvin, one entry
// per model element. Build does not mutate the model.
type Builder[F network.Float] interface {
	Build(temps []F) (*network.Network[F], error)
	Model() model.Model
	Name() string
}

type Options struct {
	Workers int
	Metrics *metrics.Registry
	Logger  *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// New selects the builder matching the model variant.
func New[F network.Float](m model.Model, opts Options) (Builder[F], error) {
	switch mm := m.(type) {
	case *model.GridModel:
		return NewGridBuilder[F](mm, opts), nil
	case *model.StackupPrismModel:
		b, err := NewStackupPrismBuilder[F](mm, opts)
		if err != nil {
			return nil, err
		}
		return b, nil
	case *model.PrismModel:
		return NewPrismBuilder[F](mm, opts), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupported, m)
	}
}

// Uniform returns a temperature estimate with every element at t.
func Uniform[F network.Float](m model.Model, t F) []F {
	temps := make([]F, m.TotalElements())
	for i := range temps {
		temps[i] = t
	}
	return temps
}

// build runs the shared envelope of every builder: size check, allocation,
// timing and instrumentation.
func build[F network.Float](name string, total int, temps []F, opts Options, body func(*network.Network[F]) error) (*network.Network[F], error) {
	if len(temps) != total {
		opts.Metrics.RecordBuild(name, 0, 0, 0, ErrSizeMismatch)
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSizeMismatch, len(temps), total)
	}
	start := time.Now()
	net := network.New[F](total)
	if err := body(net); err != nil {
		opts.Metrics.RecordBuild(name, 0, 0, 0, err)
		return nil, err
	}
	elapsed := time.Since(start)
	opts.Metrics.RecordBuild(name, net.Size(), net.EdgeCount(), elapsed, nil)
	opts.logger().Debug("network built",
		"builder", name,
		"nodes", net.Size(),
		"edges", net.EdgeCount(),
		"elapsed", elapsed,
	)
	return net, nil
}

// forEach runs fn over [0, n) in partitions. fn receives a reader private to
// its partition.
func forEach(lib material.Library, n int, opts Options, fn func(r *reader, i int) error) error {
	return dynamo.ParallelFor(n, opts.Workers, minChunk, func(start, end int) error {
		r := &reader{lib: lib}
		for i := start; i < end; i++ {
			err := fn(r, i)
			if r.err != nil {
				return fmt.Errorf("element %d: %w", i, r.err)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// reader looks up material properties and keeps the first failure.
type reader struct {
	lib material.Library
	err error
}

func (r *reader) get(mat int, prop material.PropertyID, t float64, axis material.Axis) float64 {
	if r.err != nil {
		return 0
	}
	v, err := r.lib.Property(mat, prop, t, axis)
	if err != nil {
		r.err = err
		return 0
	}
	return v
}

// heatCapacity is the volumetric heat capacity rho*cp in J/(m³·K).
func (r *reader) heatCapacity(mat int, t float64) float64 {
	return r.get(mat, material.MassDensity, t, material.AxisX) * r.get(mat, material.SpecificHeat, t, material.AxisX)
}

// addJumps connects lumped conductors. k is evaluated at the mean temperature
// of both ends.
func addJumps[F network.Float](net *network.Network[F], lib material.Library, jumps []model.JumpConnection, temps []F) error {
	r := &reader{lib: lib}
	for _, j := range jumps {
		t := (float64(temps[j.From]) + float64(temps[j.To])) / 2
		k := r.get(j.MaterialID, material.ThermalConductivity, t, material.AxisZ)
		if r.err != nil {
			return fmt.Errorf("jump %d -> %d: %w", j.From, j.To, r.err)
		}
		if err := net.AddR(j.From, j.To, F(j.Length/(k*j.Area))); err != nil {
			return err
		}
	}
	return nil
}

// Summary describes a built network for logs and reports.
type Summary struct {
	Nodes    int
	Edges    int
	Sources  int
	TotalC   float64
	TotalHF  float64
	TotalHTC float64
}

func Summarize[F network.Float](net *network.Network[F]) Summary {
	return Summary{
		Nodes:    net.Size(),
		Edges:    net.EdgeCount(),
		Sources:  len(net.Sources()),
		TotalC:   float64(net.TotalC()),
		TotalHF:  float64(net.TotalHF()),
		TotalHTC: float64(net.TotalHTC()),
	}
}
