package metrics

import "github.com/san-kum/etherm/internal/dynamo"

// Limit is the fraction of samples in which every temperature stays at or
// below a limit, such as a junction temperature rating.
type Limit struct {
	name       string
	limit      float64
	violations int
	samples    int
}

func NewLimit(limit float64) *Limit {
	return &Limit{
		name:  "within_limit",
		limit: limit,
	}
}

func (l *Limit) Name() string {
	return l.name
}

func (l *Limit) Observe(x dynamo.State, t float64) {
	l.samples++
	for _, v := range x {
		if v > l.limit {
			l.violations++
			break
		}
	}
}

func (l *Limit) Value() float64 {
	if l.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(l.violations)/float64(l.samples)
}

func (l *Limit) Reset() {
	l.violations = 0
	l.samples = 0
}

// PeakTemperature is the hottest value seen in any sample.
type PeakTemperature struct {
	peak float64
	seen bool
}

func NewPeakTemperature() *PeakTemperature { return &PeakTemperature{} }

func (p *PeakTemperature) Name() string { return "peak_temperature" }

func (p *PeakTemperature) Observe(x dynamo.State, t float64) {
	if len(x) == 0 {
		return
	}
	_, hi := x.MinMax()
	if !p.seen || hi > p.peak {
		p.peak = hi
		p.seen = true
	}
}

func (p *PeakTemperature) Value() float64 { return p.peak }

func (p *PeakTemperature) Reset() {
	p.peak = 0
	p.seen = false
}
