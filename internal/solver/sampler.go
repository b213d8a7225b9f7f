package solver

import (
	"math"

	"github.com/san-kum/etherm/internal/dynamo"
	"github.com/san-kum/etherm/internal/metrics"
)

// Sample holds probe temperatures at one instant.
type Sample struct {
	Time   float64
	Values []float64
}

// sampler records probe outputs of accepted integration steps. It keeps at
// most one sample per minimum interval and only inside the trailing window.
type sampler struct {
	interval float64
	from     float64
	probes   []int

	// output maps the integrated state to probe temperatures in kelvin;
	// field lifts it to every node and is only consulted when there are no
	// probes or when metrics observe the run.
	output func(x dynamo.State) []float64
	field  func(x dynamo.State) []float64

	metrics []metrics.Metric
	samples []Sample
	last    float64
	min     float64
	max     float64
}

func newSampler(interval, duration, window float64, probes []int, ms []metrics.Metric) *sampler {
	from := 0.0
	if window > 0 && window < duration {
		from = duration - window
	}
	return &sampler{
		interval: interval,
		from:     from,
		probes:   probes,
		metrics:  ms,
		last:     math.Inf(-1),
		min:      math.Inf(1),
		max:      math.Inf(-1),
	}
}

// bind points the sampler at the system integrated in the current window.
func (s *sampler) bind(output, field func(dynamo.State) []float64) {
	s.output = output
	s.field = field
}

func (s *sampler) OnStep(x dynamo.State, t float64) {
	if t < s.from || t <= s.last || t-s.last < s.interval {
		return
	}
	s.record(x, t)
}

// flush records the final state unless it is already the last sample or
// falls before the trailing window.
func (s *sampler) flush(x dynamo.State, t float64) {
	if t >= s.from && t > s.last {
		s.record(x, t)
	}
}

func (s *sampler) record(x dynamo.State, t float64) {
	s.last = t

	var full []float64
	if len(s.probes) == 0 || len(s.metrics) > 0 {
		full = s.field(x)
	}
	for _, m := range s.metrics {
		m.Observe(full, t)
	}

	var vals []float64
	if len(s.probes) > 0 {
		vals = s.output(x)
		s.samples = append(s.samples, Sample{Time: t, Values: vals})
	} else {
		vals = full
	}
	lo, hi := dynamo.State(vals).MinMax()
	s.min = math.Min(s.min, lo)
	s.max = math.Max(s.max, hi)
}
