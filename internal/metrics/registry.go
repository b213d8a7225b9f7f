// Package metrics carries two kinds of instrumentation: Prometheus collectors
// for builds and solves, and run metrics that observe temperature samples of a
// transient run and reduce them to a single value.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds the Prometheus collectors. A nil *Registry records nothing.
type Registry struct {
	registry *prometheus.Registry

	NetworkBuildsTotal  *prometheus.CounterVec
	NetworkBuildSeconds *prometheus.HistogramVec
	NetworkNodes        *prometheus.GaugeVec
	NetworkEdges        *prometheus.GaugeVec

	StaticSolvesTotal *prometheus.CounterVec
	StaticIterations  prometheus.Gauge
	StaticResidual    prometheus.Gauge

	TransientStepsTotal *prometheus.CounterVec
	TransientRebuilds   prometheus.Counter
	MOROrder            prometheus.Gauge
}

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	r.initBuildMetrics()
	r.initSolverMetrics()
	return r
}

func (r *Registry) initBuildMetrics() {
	r.NetworkBuildsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "etherm_network_builds_total",
			Help: "Total number of thermal network builds",
		},
		[]string{"builder", "status"},
	)

	r.NetworkBuildSeconds = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "etherm_network_build_seconds",
			Help:    "Duration of thermal network builds in seconds",
			Buckets: prometheus.ExponentialBuckets(1e-4, 4, 10),
		},
		[]string{"builder"},
	)

	r.NetworkNodes = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "etherm_network_nodes",
			Help: "Node count of the last built network",
		},
		[]string{"builder"},
	)

	r.NetworkEdges = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "etherm_network_edges",
			Help: "Edge count of the last built network",
		},
		[]string{"builder"},
	)
}

func (r *Registry) initSolverMetrics() {
	r.StaticSolvesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "etherm_static_solves_total",
			Help: "Total number of static solves",
		},
		[]string{"converged"},
	)

	r.StaticIterations = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "etherm_static_iterations",
			Help: "Picard iterations of the last static solve",
		},
	)

	r.StaticResidual = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "etherm_static_residual",
			Help: "Final residual of the last static solve in kelvin",
		},
	)

	r.TransientStepsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "etherm_transient_steps_total",
			Help: "Total number of ODE steps taken by transient solves",
		},
		[]string{"result"}, // accepted, rejected
	)

	r.TransientRebuilds = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "etherm_transient_rebuilds_total",
			Help: "Total number of macro-step re-linearizations",
		},
	)

	r.MOROrder = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "etherm_mor_order",
			Help: "Order of the last reduced model, 0 when reduction is off",
		},
	)
}

// Gatherer exposes the underlying registry for scraping or dumping.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.registry }

// WriteTextfile dumps every collector in the text exposition format.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// RecordBuild records one network build.
func (r *Registry) RecordBuild(builder string, nodes, edges int, d time.Duration, err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.NetworkBuildsTotal.WithLabelValues(builder, "error").Inc()
		return
	}
	r.NetworkBuildsTotal.WithLabelValues(builder, "ok").Inc()
	r.NetworkBuildSeconds.WithLabelValues(builder).Observe(d.Seconds())
	r.NetworkNodes.WithLabelValues(builder).Set(float64(nodes))
	r.NetworkEdges.WithLabelValues(builder).Set(float64(edges))
}

// RecordStatic records the outcome of a static solve.
func (r *Registry) RecordStatic(iterations int, residual float64, converged bool) {
	if r == nil {
		return
	}
	label := "false"
	if converged {
		label = "true"
	}
	r.StaticSolvesTotal.WithLabelValues(label).Inc()
	r.StaticIterations.Set(float64(iterations))
	r.StaticResidual.Set(residual)
}

// RecordSteps records the ODE steps of one integration window.
func (r *Registry) RecordSteps(accepted, rejected int) {
	if r == nil {
		return
	}
	r.TransientStepsTotal.WithLabelValues("accepted").Add(float64(accepted))
	r.TransientStepsTotal.WithLabelValues("rejected").Add(float64(rejected))
}

func (r *Registry) RecordRebuild() {
	if r == nil {
		return
	}
	r.TransientRebuilds.Inc()
}

func (r *Registry) SetMOROrder(q int) {
	if r == nil {
		return
	}
	r.MOROrder.Set(float64(q))
}
