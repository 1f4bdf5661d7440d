package metrics

import "math"

// Stability is the fraction of samples whose displacements stay below the
// threshold in both domains.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(sample Sample) {
	s.samples++
	d := math.Max(sample.Origin.MaxDisplacement, sample.Destination.MaxDisplacement)
	if d > s.threshold || math.IsNaN(d) {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
