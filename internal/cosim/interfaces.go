package cosim

import (
	"github.com/san-kum/cosim/internal/feti"
	"github.com/san-kum/cosim/internal/linsolve"
	"github.com/san-kum/cosim/internal/mapping"
	"github.com/san-kum/cosim/internal/model"
	"gonum.org/v1/gonum/mat"
)

// SolverWrapper is one physical sub-domain time integrator. A wrapper that
// does not track time returns 0 from AdvanceInTime.
type SolverWrapper interface {
	Name() string
	Initialize() error
	Finalize() error
	AdvanceInTime(current float64) float64
	InitializeSolutionStep() error
	Predict() error
	SolveSolutionStep() error
	FinalizeSolutionStep() error
	OutputSolutionStep() error
	GetModelPart(path string) (*model.ModelPart, error)
	// SystemMatrix is the currently assembled effective matrix. Only
	// called for implicit domains.
	SystemMatrix() (mat.Symmetric, error)
}

// CouplingOperation runs alongside the solvers, output writers for instance.
type CouplingOperation interface {
	Name() string
	Initialize() error
	Finalize() error
	InitializeSolutionStep() error
	FinalizeSolutionStep() error
}

type InterfaceMapper interface {
	GetInterfaceModelPart(index int) (*model.ModelPart, error)
	MappingMatrix() *mat.Dense
}

type MapperFactory func(origin, destination *model.ModelPart, s mapping.Settings) (InterfaceMapper, error)

type CouplingUtility interface {
	SetOriginAndDestinationDomainsWithInterfaceModelParts(origin, destination *model.ModelPart)
	SetLinearSolver(s linsolve.Solver)
	SetMappingMatrix(p *mat.Dense) error
	SetOriginInitialKinematics()
	SetEffectiveStiffnessMatrixImplicit(k mat.Symmetric, index int) error
	SetEffectiveStiffnessMatrixExplicit(index int) error
	EquilibrateDomains() error
}

type CouplingFactory func(origin, destination *model.ModelPart, s feti.Settings) (CouplingUtility, error)

type LinearSolverFactory interface {
	Construct(s linsolve.Settings) (linsolve.Solver, error)
	FastestAvailableDirect() (linsolve.Solver, error)
}

// Dependencies are the collaborators a session builds during coupling setup.
type Dependencies struct {
	Mappers       MapperFactory
	Coupling      CouplingFactory
	LinearSolvers LinearSolverFactory
}

func DefaultDependencies() Dependencies {
	return Dependencies{
		Mappers: func(o, d *model.ModelPart, s mapping.Settings) (InterfaceMapper, error) {
			m, err := mapping.CreateMapper(o, d, s)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
		Coupling: func(o, d *model.ModelPart, s feti.Settings) (CouplingUtility, error) {
			u, err := feti.New(o, d, s)
			if err != nil {
				return nil, err
			}
			return u, nil
		},
		LinearSolvers: linsolve.Factory{},
	}
}

func (d Dependencies) withDefaults() Dependencies {
	def := DefaultDependencies()
	if d.Mappers == nil {
		d.Mappers = def.Mappers
	}
	if d.Coupling == nil {
		d.Coupling = def.Coupling
	}
	if d.LinearSolvers == nil {
		d.LinearSolvers = def.LinearSolvers
	}
	return d
}
