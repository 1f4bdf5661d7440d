package cosim

import (
	"math"

	"github.com/san-kum/cosim/internal/feti"
	"github.com/san-kum/cosim/internal/linsolve"
	"github.com/san-kum/cosim/internal/mapping"
)

// ModelerParameters name the interface sub model parts on each domain.
type ModelerParameters struct {
	OriginInterfaceSubModelPartName      string `yaml:"origin_interface_sub_model_part_name" json:"origin_interface_sub_model_part_name"`
	DestinationInterfaceSubModelPartName string `yaml:"destination_interface_sub_model_part_name" json:"destination_interface_sub_model_part_name"`
}

type MapperSettings struct {
	MapperType        string            `yaml:"mapper_type" json:"mapper_type"`
	EchoLevel         int               `yaml:"echo_level" json:"echo_level"`
	ModelerParameters ModelerParameters `yaml:"modeler_parameters" json:"modeler_parameters"`
}

func (m MapperSettings) mapperSettings() mapping.Settings {
	return mapping.Settings{MapperType: m.MapperType}
}

// Settings are the options of the dynamic coupled solver.
type Settings struct {
	TimestepRatio           float64           `yaml:"timestep_ratio" json:"timestep_ratio"`
	OriginNewmarkBeta       float64           `yaml:"origin_newmark_beta" json:"origin_newmark_beta"`
	OriginNewmarkGamma      float64           `yaml:"origin_newmark_gamma" json:"origin_newmark_gamma"`
	DestinationNewmarkBeta  float64           `yaml:"destination_newmark_beta" json:"destination_newmark_beta"`
	DestinationNewmarkGamma float64           `yaml:"destination_newmark_gamma" json:"destination_newmark_gamma"`
	IsVTKFineTimestepOutput bool              `yaml:"is_vtk_fine_timestep_output" json:"is_vtk_fine_timestep_output"`
	EquilibriumVariable     string            `yaml:"equilibrium_variable" json:"equilibrium_variable"`
	IsDisableCoupling       bool              `yaml:"is_disable_coupling" json:"is_disable_coupling"`
	LinearSolverSettings    linsolve.Settings `yaml:"linear_solver_settings" json:"linear_solver_settings"`
	Mapper                  MapperSettings    `yaml:"-" json:"mapper_settings"`
}

func DefaultSettings() Settings {
	return Settings{
		TimestepRatio:           1.0,
		OriginNewmarkBeta:       -1.0,
		OriginNewmarkGamma:      -1.0,
		DestinationNewmarkBeta:  -1.0,
		DestinationNewmarkGamma: -1.0,
		IsVTKFineTimestepOutput: true,
		EquilibriumVariable:     feti.EquilibriumVelocity,
		Mapper: MapperSettings{
			MapperType: mapping.CouplingGeometry,
			ModelerParameters: ModelerParameters{
				OriginInterfaceSubModelPartName:      "Structure.interface",
				DestinationInterfaceSubModelPartName: "Structure.interface",
			},
		},
	}
}

// Ratio returns timestep_ratio as an integer.
func (s Settings) Ratio() (int, error) {
	r := s.TimestepRatio
	if math.IsNaN(r) || math.IsInf(r, 0) || r != math.Trunc(r) {
		return 0, &ConfigError{Option: "timestep_ratio", Value: r, Wrapped: ErrNonIntegerRatio}
	}
	if r < 1 {
		return 0, &ConfigError{Option: "timestep_ratio", Value: r, Wrapped: ErrNonPositiveRatio}
	}
	return int(r), nil
}

func (s Settings) couplingSettings(ratio int) feti.Settings {
	return feti.Settings{
		OriginNewmarkBeta:       s.OriginNewmarkBeta,
		OriginNewmarkGamma:      s.OriginNewmarkGamma,
		DestinationNewmarkBeta:  s.DestinationNewmarkBeta,
		DestinationNewmarkGamma: s.DestinationNewmarkGamma,
		TimestepRatio:           ratio,
		EquilibriumVariable:     s.EquilibriumVariable,
		IsDisableCoupling:       s.IsDisableCoupling,
	}
}
