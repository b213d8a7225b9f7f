package solver

import (
	"fmt"
	"maps"
	"math"

	"github.com/san-kum/etherm/internal/mna"
)

type WaveformKind string

const (
	WaveConstant WaveformKind = "constant"
	WaveStep     WaveformKind = "step"
	WavePulse    WaveformKind = "pulse"
	WaveSine     WaveformKind = "sine"
)

// Waveform scales the nominal power of a scenario over time:
//
//	constant: Amplitude
//	step:     Offset before Start, Amplitude after
//	pulse:    Amplitude for the first Duty fraction of every Period after
//	          Start, Offset otherwise
//	sine:     Offset + Amplitude·sin(2π(t−Start)/Period) after Start
type Waveform struct {
	Kind      WaveformKind `yaml:"kind" validate:"required,oneof=constant step pulse sine"`
	Amplitude float64      `yaml:"amplitude"`
	Offset    float64      `yaml:"offset"`
	Start     float64      `yaml:"start" validate:"gte=0"`
	Period    float64      `yaml:"period" validate:"gte=0"`
	Duty      float64      `yaml:"duty" validate:"gte=0,lte=1"`
}

func (w Waveform) Validate() error {
	switch w.Kind {
	case WaveConstant, WaveStep:
	case WavePulse, WaveSine:
		if w.Period <= 0 {
			return fmt.Errorf("%w: %s waveform needs a positive period", ErrInvalidOptions, w.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown waveform %q", ErrInvalidOptions, w.Kind)
	}
	if w.Duty < 0 || w.Duty > 1 {
		return fmt.Errorf("%w: duty %g outside [0, 1]", ErrInvalidOptions, w.Duty)
	}
	return nil
}

func (w Waveform) At(t float64) float64 {
	switch w.Kind {
	case WaveStep:
		if t < w.Start {
			return w.Offset
		}
		return w.Amplitude
	case WavePulse:
		if t < w.Start {
			return w.Offset
		}
		phase := math.Mod(t-w.Start, w.Period) / w.Period
		if phase < w.Duty {
			return w.Amplitude
		}
		return w.Offset
	case WaveSine:
		if t < w.Start {
			return w.Offset
		}
		return w.Offset + w.Amplitude*math.Sin(2*math.Pi*(t-w.Start)/w.Period)
	default:
		return w.Amplitude
	}
}

// Excitations builds the excitation of a transient solve from per-scenario
// waveforms. Scenarios without a waveform run at nominal power.
func Excitations(waves map[int]Waveform) (mna.Excitation, error) {
	for s, w := range waves {
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("scenario %d: %w", s, err)
		}
	}
	if len(waves) == 0 {
		return mna.Constant, nil
	}
	waves = maps.Clone(waves)
	return func(t float64, scenario int) float64 {
		w, ok := waves[scenario]
		if !ok {
			return 1
		}
		return w.At(t)
	}, nil
}
