package metrics

import (
	"math"

	"github.com/san-kum/etherm/internal/dynamo"
)

// StoredEnergy is the mean heat stored above the reference temperature,
// sum C_i (T_i - ref), over all samples.
type StoredEnergy struct {
	name    string
	caps    []float64
	ref     float64
	samples int
	total   float64
}

func NewStoredEnergy(caps []float64, ref float64) *StoredEnergy {
	return &StoredEnergy{name: "stored_energy", caps: caps, ref: ref}
}

func (e *StoredEnergy) Name() string { return e.name }

func (e *StoredEnergy) Observe(x dynamo.State, t float64) {
	e.total += storedEnergy(e.caps, x, e.ref)
	e.samples++
}

func (e *StoredEnergy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.total / float64(e.samples)
}

func (e *StoredEnergy) Reset() {
	e.total = 0
	e.samples = 0
}

func storedEnergy(caps []float64, x dynamo.State, ref float64) float64 {
	s := 0.0
	for i, c := range caps {
		if i < len(x) {
			s += c * (x[i] - ref)
		}
	}
	return s
}

// Settling is the relative change of stored energy between the last two
// samples. It approaches zero as a run reaches steady state.
type Settling struct {
	name    string
	caps    []float64
	ref     float64
	prev    float64
	change  float64
	samples int
}

func NewSettling(caps []float64, ref float64) *Settling {
	return &Settling{name: "settling", caps: caps, ref: ref}
}

func (s *Settling) Name() string { return s.name }

func (s *Settling) Observe(x dynamo.State, t float64) {
	e := storedEnergy(s.caps, x, s.ref)
	if s.samples > 0 {
		s.change = math.Abs(e - s.prev)
		if s.prev != 0 {
			s.change /= math.Abs(s.prev)
		}
	}
	s.prev = e
	s.samples++
}

func (s *Settling) Value() float64 { return s.change }

func (s *Settling) Reset() {
	s.prev = 0
	s.change = 0
	s.samples = 0
}
