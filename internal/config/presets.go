package config

import (
	"sort"

	"github.com/san-kum/cosim/internal/structural"
)

// Presets modify the unresolved defaults.
var Presets = map[string]func(*Config){
	"matching": func(c *Config) {
		c.Name = "matching"
		d := &c.SolverSettings.Solvers.Destination
		d.NY = c.SolverSettings.Solvers.Origin.NY
	},
	"subcycling": func(c *Config) {
		c.Name = "subcycling"
		c.SetTimestepRatio(4)
	},
	"explicit_destination": func(c *Config) {
		c.Name = "explicit_destination"
		c.SolverSettings.DestinationNewmarkBeta = 0
		c.SetTimestepRatio(10)
	},
	"loaded": func(c *Config) {
		c.Name = "loaded"
		o := &c.SolverSettings.Solvers.Origin
		o.InitialVelocity = 0
		o.Load.Edge = structural.EdgeLeft
		o.FixedEdge = structural.EdgeNone
		o.Load.Amplitude = 5
		o.Load.Frequency = 2
		c.SetTimestepRatio(2)
		c.ProblemData.EndTime = 2
	},
	"uncoupled": func(c *Config) {
		c.Name = "uncoupled"
		c.SolverSettings.IsDisableCoupling = true
		c.SetTimestepRatio(2)
	},
}

// SetTimestepRatio sets the ratio and the destination time step that goes
// with it.
func (c *Config) SetTimestepRatio(r float64) {
	c.SolverSettings.TimestepRatio = r
	if r > 0 {
		c.SolverSettings.Solvers.Destination.TimeStep = c.SolverSettings.Solvers.Origin.TimeStep / r
	}
}

// GetPreset returns a fresh resolved configuration, or nil for an unknown name.
func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := defaults()
	apply(cfg)
	if err := cfg.Resolve(); err != nil {
		return nil
	}
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
