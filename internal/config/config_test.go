package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/san-kum/cosim/internal/cosim"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	s := cfg.SolverSettings
	if s.OriginNewmarkBeta != 0.25 || s.Solvers.Origin.NewmarkBeta != 0.25 {
		t.Errorf("expected resolved beta 0.25, got %g/%g", s.OriginNewmarkBeta, s.Solvers.Origin.NewmarkBeta)
	}
	if s.DestinationNewmarkGamma != 0.5 {
		t.Errorf("expected resolved gamma 0.5, got %g", s.DestinationNewmarkGamma)
	}
	if got := cfg.Coupled().Mapper.MapperType; got != "coupling_geometry" {
		t.Errorf("expected coupling_geometry mapper, got %q", got)
	}
	if len(s.CouplingOperations) != 2 || s.CouplingOperations[1].Solver != SolverDestination {
		t.Errorf("expected origin and destination writers, got %+v", s.CouplingOperations)
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
name: explicit_b
problem_data:
  end_time: 0.5
solver_settings:
  type: feti_dynamic_coupled_solver
  timestep_ratio: 4
  destination_newmark_beta: 0.0
  is_vtk_fine_timestep_output: false
  linear_solver_settings:
    solver_type: dense_lu
  solvers:
    destination:
      time_step: 0.0025
  data_transfer_operators:
    mapper:
      mapper_settings:
        mapper_type: coupling_geometry
  coupling_operations:
    - name: vtk_b
      type: vtk_output
      solver: destination
      output_path: out
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	s := cfg.SolverSettings
	if s.TimestepRatio != 4 {
		t.Errorf("expected ratio 4, got %g", s.TimestepRatio)
	}
	if s.Solvers.Destination.NewmarkBeta != 0 {
		t.Errorf("destination scheme should follow the coupled beta, got %g", s.Solvers.Destination.NewmarkBeta)
	}
	if s.Solvers.Destination.NY != 5 {
		t.Errorf("unset fields keep defaults, got ny=%d", s.Solvers.Destination.NY)
	}
	if s.IsVTKFineTimestepOutput {
		t.Error("fine output should be off")
	}
	if s.LinearSolverSettings.SolverType != "dense_lu" {
		t.Errorf("expected dense_lu, got %q", s.LinearSolverSettings.SolverType)
	}
	if got := cfg.Coupled().Mapper.ModelerParameters.OriginInterfaceSubModelPartName; got != "Structure.interface" {
		t.Errorf("modeler parameters keep defaults, got %q", got)
	}
	if len(s.CouplingOperations) != 1 || s.CouplingOperations[0].Name != "vtk_b" {
		t.Errorf("coupling operations replaced, got %+v", s.CouplingOperations)
	}
}

func TestParse_SchemeMismatch(t *testing.T) {
	_, err := Parse([]byte(`
solver_settings:
  origin_newmark_beta: 0.3
  solvers:
    origin:
      newmark_beta: 0.25
`))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		target error
	}{
		{"end before start", func(c *Config) { c.ProblemData.EndTime = -1 }, ErrInvalidConfig},
		{"non-integer ratio", func(c *Config) { c.SolverSettings.TimestepRatio = 2.5 }, cosim.ErrNonIntegerRatio},
		{"zero ratio", func(c *Config) { c.SolverSettings.TimestepRatio = 0 }, cosim.ErrNonPositiveRatio},
		{"mapper", func(c *Config) { c.SolverSettings.DataTransferOperators.Mapper.MapperSettings.MapperType = "nearest_element" }, cosim.ErrUnsupportedMapper},
		{"time steps", func(c *Config) { c.SolverSettings.TimestepRatio = 2 }, ErrInvalidConfig},
		{"solver type", func(c *Config) { c.SolverSettings.Solvers.Origin.Type = "fluid" }, ErrInvalidConfig},
		{"structure", func(c *Config) { c.SolverSettings.Solvers.Destination.NX = 1 }, ErrInvalidConfig},
		{"equilibrium", func(c *Config) { c.SolverSettings.EquilibriumVariable = "DISPLACEMENT" }, ErrInvalidConfig},
		{"writer solver", func(c *Config) { c.SolverSettings.CouplingOperations[0].Solver = "fluid" }, ErrInvalidConfig},
		{"writer name", func(c *Config) { c.SolverSettings.CouplingOperations[1].Name = "vtk_origin" }, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.target) {
				t.Errorf("expected %v, got %v", tt.target, err)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cosim.yaml")
	cfg := GetPreset("explicit_destination")
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.SolverSettings.TimestepRatio != 10 || loaded.SolverSettings.DestinationNewmarkBeta != 0 {
		t.Errorf("round trip lost settings: %+v", loaded.SolverSettings.Settings)
	}
	if err := loaded.Validate(); err != nil {
		t.Errorf("loaded preset invalid: %v", err)
	}
}

func TestPresets(t *testing.T) {
	for _, name := range ListPresets() {
		cfg := GetPreset(name)
		if cfg == nil {
			t.Fatalf("preset %s: nil", name)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("preset %s invalid: %v", name, err)
		}
	}
	if GetPreset("nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
	if cfg := GetPreset("subcycling"); cfg.SolverSettings.Solvers.Destination.TimeStep != 0.0025 {
		t.Errorf("expected destination dt 0.0025, got %g", cfg.SolverSettings.Solvers.Destination.TimeStep)
	}
}
