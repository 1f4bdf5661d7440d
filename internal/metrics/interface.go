package metrics

import "math"

// InterfaceMismatch is the largest interface incompatibility seen at the end
// of a coarse step.
type InterfaceMismatch struct {
	max float64
}

func NewInterfaceMismatch() *InterfaceMismatch { return &InterfaceMismatch{} }

func (m *InterfaceMismatch) Name() string     { return "interface_mismatch" }
func (m *InterfaceMismatch) Observe(s Sample) { m.max = math.Max(m.max, s.InterfaceMismatch) }
func (m *InterfaceMismatch) Value() float64   { return m.max }
func (m *InterfaceMismatch) Reset()           { m.max = 0 }

type MaxDisplacement struct {
	max float64
}

func NewMaxDisplacement() *MaxDisplacement { return &MaxDisplacement{} }

func (m *MaxDisplacement) Name() string { return "max_displacement" }

func (m *MaxDisplacement) Observe(s Sample) {
	m.max = math.Max(m.max, math.Max(s.Origin.MaxDisplacement, s.Destination.MaxDisplacement))
}

func (m *MaxDisplacement) Value() float64 { return m.max }
func (m *MaxDisplacement) Reset()         { m.max = 0 }
