package metrics

import "github.com/san-kum/etherm/internal/dynamo"

// Metric reduces the temperature samples of a run to one value.
type Metric interface {
	Name() string
	Observe(temps dynamo.State, t float64)
	Value() float64
	Reset()
}
