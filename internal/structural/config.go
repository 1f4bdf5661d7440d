package structural

import (
	"fmt"
)

const (
	DefaultModelPartName  = "Structure"
	DefaultDensity        = 1.0
	DefaultStiffness      = 100.0
	DefaultShearStiffness = 10.0
	DefaultNewmarkBeta    = 0.25
	DefaultNewmarkGamma   = 0.5
	DefaultTimeStep       = 0.01
)

const (
	EdgeLeft  = "left"
	EdgeRight = "right"
	EdgeNone  = "none"
)

// Sub model part names created on every structure.
const (
	InterfacePartName = "interface"
	FixedPartName     = "fixed"
	LoadPartName      = "load"
)

type LoadConfig struct {
	Edge      string  `yaml:"edge" json:"edge"`
	Amplitude float64 `yaml:"amplitude" json:"amplitude"`
	Frequency float64 `yaml:"frequency" json:"frequency"`
}

// Config describes a rectangular lumped-mass spring grid carrying one
// horizontal degree of freedom per node.
type Config struct {
	ModelPartName   string     `yaml:"model_part_name" json:"model_part_name"`
	OriginX         float64    `yaml:"origin_x" json:"origin_x"`
	OriginY         float64    `yaml:"origin_y" json:"origin_y"`
	Length          float64    `yaml:"length" json:"length"`
	Height          float64    `yaml:"height" json:"height"`
	NX              int        `yaml:"nx" json:"nx"`
	NY              int        `yaml:"ny" json:"ny"`
	Density         float64    `yaml:"density" json:"density"`
	Stiffness       float64    `yaml:"stiffness" json:"stiffness"`
	ShearStiffness  float64    `yaml:"shear_stiffness" json:"shear_stiffness"`
	FixedEdge       string     `yaml:"fixed_edge" json:"fixed_edge"`
	InterfaceEdge   string     `yaml:"interface_edge" json:"interface_edge"`
	Load            LoadConfig `yaml:"load" json:"load"`
	InitialVelocity float64    `yaml:"initial_velocity" json:"initial_velocity"`
	TimeStep        float64    `yaml:"time_step" json:"time_step"`
	NewmarkBeta     float64    `yaml:"newmark_beta" json:"newmark_beta"`
	NewmarkGamma    float64    `yaml:"newmark_gamma" json:"newmark_gamma"`
}

func DefaultConfig() Config {
	return Config{
		ModelPartName:  DefaultModelPartName,
		Length:         1.0,
		Height:         0.2,
		NX:             11,
		NY:             3,
		Density:        DefaultDensity,
		Stiffness:      DefaultStiffness,
		ShearStiffness: DefaultShearStiffness,
		FixedEdge:      EdgeLeft,
		InterfaceEdge:  EdgeRight,
		Load:           LoadConfig{Edge: EdgeNone},
		TimeStep:       DefaultTimeStep,
		NewmarkBeta:    DefaultNewmarkBeta,
		NewmarkGamma:   DefaultNewmarkGamma,
	}
}

// Explicit reports whether the scheme is the central difference variant.
func (c Config) Explicit() bool { return c.NewmarkBeta == 0.0 }

func validEdge(e string, allowNone bool) bool {
	switch e {
	case EdgeLeft, EdgeRight:
		return true
	case EdgeNone, "":
		return allowNone
	}
	return false
}

func (c Config) Validate() error {
	if c.ModelPartName == "" {
		return fmt.Errorf("structural: model_part_name must not be empty")
	}
	if c.NX < 2 {
		return fmt.Errorf("structural: nx must be at least 2, got %d", c.NX)
	}
	if c.NY < 1 {
		return fmt.Errorf("structural: ny must be at least 1, got %d", c.NY)
	}
	if c.Length <= 0 {
		return fmt.Errorf("structural: length must be positive, got %f", c.Length)
	}
	if c.NY > 1 && c.Height <= 0 {
		return fmt.Errorf("structural: height must be positive when ny > 1, got %f", c.Height)
	}
	if c.Density <= 0 || c.Stiffness <= 0 || c.ShearStiffness < 0 {
		return fmt.Errorf("structural: density and stiffness must be positive")
	}
	if c.TimeStep <= 0 {
		return fmt.Errorf("structural: time_step must be positive, got %f", c.TimeStep)
	}
	if c.NewmarkBeta < 0 || c.NewmarkGamma < 0 {
		return fmt.Errorf("structural: newmark parameters must be resolved (beta=%g, gamma=%g)", c.NewmarkBeta, c.NewmarkGamma)
	}
	if !validEdge(c.FixedEdge, true) {
		return fmt.Errorf("structural: invalid fixed_edge %q", c.FixedEdge)
	}
	if !validEdge(c.InterfaceEdge, false) {
		return fmt.Errorf("structural: invalid interface_edge %q", c.InterfaceEdge)
	}
	if !validEdge(c.Load.Edge, true) {
		return fmt.Errorf("structural: invalid load edge %q", c.Load.Edge)
	}
	if c.FixedEdge == c.InterfaceEdge {
		return fmt.Errorf("structural: interface edge %q cannot be fixed", c.InterfaceEdge)
	}
	return nil
}
