// Package metrics summarizes a coupled run from the per-step samples the
// driver records after every coarse step.
package metrics

import "github.com/san-kum/cosim/internal/structural"

// Sample is the coupled state at the end of one coarse step.
type Sample struct {
	Time              float64
	Step              int
	Origin            structural.Snapshot
	Destination       structural.Snapshot
	InterfaceMismatch float64
}

func (s Sample) TotalEnergy() float64 {
	return s.Origin.TotalEnergy() + s.Destination.TotalEnergy()
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

// Default returns the metrics recorded for every run.
func Default() []Metric {
	return []Metric{
		NewEnergy(),
		NewEnergyDrift(),
		NewInterfaceMismatch(),
		NewMaxDisplacement(),
		NewStability(1.0),
	}
}
