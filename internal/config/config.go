package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/san-kum/cosim/internal/cosim"
	"github.com/san-kum/cosim/internal/feti"
	"github.com/san-kum/cosim/internal/mapping"
	"github.com/san-kum/cosim/internal/structural"
	"gopkg.in/yaml.v3"
)

const (
	DefaultEndTime       = 1.0
	DefaultSolverType    = "feti_dynamic_coupled_solver"
	DefaultStructureType = "structural"
	DefaultOutputDir     = "vtk_output"
)

const (
	SolverOrigin      = "origin"
	SolverDestination = "destination"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	Name           string         `yaml:"name"`
	ProblemData    ProblemData    `yaml:"problem_data"`
	SolverSettings SolverSettings `yaml:"solver_settings"`
}

type ProblemData struct {
	StartTime float64 `yaml:"start_time"`
	EndTime   float64 `yaml:"end_time"`
	EchoLevel int     `yaml:"echo_level"`
}

// SolverSettings is the coupled solver block. The coupling options sit
// directly in it.
type SolverSettings struct {
	Type                  string `yaml:"type"`
	cosim.Settings        `yaml:",inline"`
	Solvers               Solvers               `yaml:"solvers"`
	DataTransferOperators DataTransferOperators `yaml:"data_transfer_operators"`
	CouplingOperations    []CouplingOperation   `yaml:"coupling_operations"`
}

type Solvers struct {
	Origin      SolverConfig `yaml:"origin"`
	Destination SolverConfig `yaml:"destination"`
}

type SolverConfig struct {
	Type              string `yaml:"type"`
	structural.Config `yaml:",inline"`
}

type DataTransferOperators struct {
	Mapper MapperOperator `yaml:"mapper"`
}

type MapperOperator struct {
	Type           string               `yaml:"type"`
	MapperSettings cosim.MapperSettings `yaml:"mapper_settings"`
}

// CouplingOperation configures one output writer bound to a solver.
type CouplingOperation struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Solver     string `yaml:"solver"`
	OutputPath string `yaml:"output_path"`
}

// DefaultConfig is a moving bar coupled to a bar at rest, Newmark
// parameters resolved.
func DefaultConfig() *Config {
	cfg := defaults()
	if err := cfg.Resolve(); err != nil {
		panic(err)
	}
	return cfg
}

// defaults leaves the Newmark parameters of the solvers unset so that they
// follow the coupled block unless a file sets them.
func defaults() *Config {
	origin := structural.DefaultConfig()
	origin.InitialVelocity = 1.0
	origin.NewmarkBeta, origin.NewmarkGamma = -1, -1

	dest := structural.DefaultConfig()
	dest.OriginX = origin.Length
	dest.Length = 0.5
	dest.NX = 6
	dest.NY = 5
	dest.FixedEdge = structural.EdgeRight
	dest.InterfaceEdge = structural.EdgeLeft
	dest.NewmarkBeta, dest.NewmarkGamma = -1, -1

	coupled := cosim.DefaultSettings()
	mapper := coupled.Mapper

	return &Config{
		Name: "feti_two_bars",
		ProblemData: ProblemData{
			EndTime: DefaultEndTime,
		},
		SolverSettings: SolverSettings{
			Type:     DefaultSolverType,
			Settings: coupled,
			Solvers: Solvers{
				Origin:      SolverConfig{Type: DefaultStructureType, Config: origin},
				Destination: SolverConfig{Type: DefaultStructureType, Config: dest},
			},
			DataTransferOperators: DataTransferOperators{
				Mapper: MapperOperator{Type: "kratos_mapping", MapperSettings: mapper},
			},
			CouplingOperations: []CouplingOperation{
				{Name: "vtk_origin", Type: "vtk_output", Solver: SolverOrigin, OutputPath: DefaultOutputDir},
				{Name: "vtk_destination", Type: "vtk_output", Solver: SolverDestination, OutputPath: DefaultOutputDir},
			},
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and resolves the Newmark parameters.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// Resolve fills unset (negative) Newmark parameters of the coupled block
// from the domain schemes and the other way round, then checks that both
// sides agree.
func (c *Config) Resolve() error {
	s := &c.SolverSettings
	s.Mapper = s.DataTransferOperators.Mapper.MapperSettings

	pairs := []struct {
		name    string
		coupled *float64
		domain  *float64
		def     float64
	}{
		{"origin_newmark_beta", &s.OriginNewmarkBeta, &s.Solvers.Origin.NewmarkBeta, structural.DefaultNewmarkBeta},
		{"origin_newmark_gamma", &s.OriginNewmarkGamma, &s.Solvers.Origin.NewmarkGamma, structural.DefaultNewmarkGamma},
		{"destination_newmark_beta", &s.DestinationNewmarkBeta, &s.Solvers.Destination.NewmarkBeta, structural.DefaultNewmarkBeta},
		{"destination_newmark_gamma", &s.DestinationNewmarkGamma, &s.Solvers.Destination.NewmarkGamma, structural.DefaultNewmarkGamma},
	}
	for _, p := range pairs {
		switch {
		case *p.coupled < 0 && *p.domain < 0:
			*p.coupled, *p.domain = p.def, p.def
		case *p.coupled < 0:
			*p.coupled = *p.domain
		case *p.domain < 0:
			*p.domain = *p.coupled
		}
		if *p.coupled != *p.domain {
			return fmt.Errorf("%w: %s is %g but the solver scheme uses %g", ErrInvalidConfig, p.name, *p.coupled, *p.domain)
		}
	}
	return nil
}

// Coupled returns the settings handed to the coupled solver session.
func (c *Config) Coupled() cosim.Settings {
	s := c.SolverSettings.Settings
	s.Mapper = c.SolverSettings.DataTransferOperators.Mapper.MapperSettings
	return s
}

func (c *Config) Validate() error {
	pd := c.ProblemData
	if pd.EndTime <= pd.StartTime {
		return fmt.Errorf("%w: end_time %g must be after start_time %g", ErrInvalidConfig, pd.EndTime, pd.StartTime)
	}
	s := c.SolverSettings
	if s.Type != DefaultSolverType {
		return fmt.Errorf("%w: unknown coupled solver type %q", ErrInvalidConfig, s.Type)
	}
	ratio, err := s.Ratio()
	if err != nil {
		return err
	}
	switch s.EquilibriumVariable {
	case feti.EquilibriumVelocity, feti.EquilibriumAcceleration:
	default:
		return fmt.Errorf("%w: equilibrium_variable %q", ErrInvalidConfig, s.EquilibriumVariable)
	}
	if mt := s.DataTransferOperators.Mapper.MapperSettings.MapperType; mt != mapping.CouplingGeometry {
		return &cosim.ConfigError{Option: "mapper_type", Value: mt, Wrapped: cosim.ErrUnsupportedMapper}
	}

	for _, sc := range []struct {
		name string
		cfg  SolverConfig
	}{{SolverOrigin, s.Solvers.Origin}, {SolverDestination, s.Solvers.Destination}} {
		if sc.cfg.Type != DefaultStructureType {
			return fmt.Errorf("%w: %s solver type %q", ErrInvalidConfig, sc.name, sc.cfg.Type)
		}
		if err := sc.cfg.Config.Validate(); err != nil {
			return fmt.Errorf("%w: %s solver: %v", ErrInvalidConfig, sc.name, err)
		}
	}

	dtA, dtB := s.Solvers.Origin.TimeStep, s.Solvers.Destination.TimeStep
	if math.Abs(dtA-float64(ratio)*dtB) > 1e-9*dtA {
		return fmt.Errorf("%w: destination time_step %g times timestep_ratio %d must equal origin time_step %g",
			ErrInvalidConfig, dtB, ratio, dtA)
	}

	seen := map[string]bool{}
	for _, op := range s.CouplingOperations {
		if op.Name == "" || seen[op.Name] {
			return fmt.Errorf("%w: coupling operation names must be unique and non-empty (%q)", ErrInvalidConfig, op.Name)
		}
		seen[op.Name] = true
		if op.Solver != SolverOrigin && op.Solver != SolverDestination {
			return fmt.Errorf("%w: coupling operation %s: unknown solver %q", ErrInvalidConfig, op.Name, op.Solver)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.SolverSettings.CouplingOperations = append([]CouplingOperation(nil), c.SolverSettings.CouplingOperations...)
	return &out
}
