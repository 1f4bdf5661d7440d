// Package feti implements the dynamic FETI coupling utility: it enforces
// interface compatibility between an origin and a destination structure with
// Lagrange multipliers, allowing the destination to sub-cycle within one
// origin step.
//
// At fine sub-step j of r the unbalanced interface quantity is
//
//	u = P q_B - q_A(j)
//
// where q is the velocity (or acceleration), P the mapping matrix and q_A(j)
// the origin value linearly interpolated between the start of the coarse step
// and the origin's free solution. The multipliers solve (H_A + H_B) λ = u.
// The destination is corrected on every sub-step, the origin only on the
// last one, after which the origin start kinematics are refreshed.
package feti

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/san-kum/cosim/internal/linsolve"
	"github.com/san-kum/cosim/internal/model"
	"gonum.org/v1/gonum/mat"
)

const (
	EquilibriumVelocity     = "VELOCITY"
	EquilibriumAcceleration = "ACCELERATION"
)

const (
	Origin      = 0
	Destination = 1
)

var (
	ErrUnsupportedEquilibrium = errors.New("feti: unsupported equilibrium variable")
	ErrMissingDomains         = errors.New("feti: origin and destination domains not set")
	ErrMissingStiffness       = errors.New("feti: effective stiffness not set")
	ErrMissingLinearSolver    = errors.New("feti: linear solver not set")
	ErrMissingMappingMatrix   = errors.New("feti: mapping matrix not set")
	ErrDimensionMismatch      = errors.New("feti: dimension mismatch")
)

// Settings are the coupling parameters read from the coupled solver block.
type Settings struct {
	OriginNewmarkBeta       float64
	OriginNewmarkGamma      float64
	DestinationNewmarkBeta  float64
	DestinationNewmarkGamma float64
	TimestepRatio           int
	EquilibriumVariable     string
	IsDisableCoupling       bool
}

type scheme struct{ beta, gamma float64 }

func resolve(beta, gamma float64) scheme {
	if beta < 0 {
		beta = 0.25
	}
	if gamma < 0 {
		gamma = 0.5
	}
	return scheme{beta: beta, gamma: gamma}
}

// Utility is the FETI dynamic coupling utility.
type Utility struct {
	iface    [2]*model.ModelPart // mapper produced
	domain   [2]*model.ModelPart // root parts of the coupled structures
	schemes  [2]scheme
	settings Settings

	solver   linsolve.Solver
	mapping  *mat.Dense
	keff     [2]mat.Symmetric
	explicit [2]bool

	originStart []float64
	substep     int
	residual    float64
	logger      zerolog.Logger
}

// New binds the utility to the interface parts produced by the mapper.
func New(origin, destination *model.ModelPart, s Settings) (*Utility, error) {
	switch s.EquilibriumVariable {
	case EquilibriumVelocity, EquilibriumAcceleration:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEquilibrium, s.EquilibriumVariable)
	}
	if s.TimestepRatio < 1 {
		return nil, fmt.Errorf("feti: timestep ratio must be at least 1, got %d", s.TimestepRatio)
	}
	return &Utility{
		iface:    [2]*model.ModelPart{origin, destination},
		settings: s,
		schemes: [2]scheme{
			resolve(s.OriginNewmarkBeta, s.OriginNewmarkGamma),
			resolve(s.DestinationNewmarkBeta, s.DestinationNewmarkGamma),
		},
		logger: zerolog.Nop(),
	}, nil
}

func (u *Utility) SetLogger(l zerolog.Logger) { u.logger = l }

// SetOriginAndDestinationDomainsWithInterfaceModelParts gives access to the
// full structures through interface parts living in their models.
func (u *Utility) SetOriginAndDestinationDomainsWithInterfaceModelParts(origin, destination *model.ModelPart) {
	u.domain = [2]*model.ModelPart{origin.Root(), destination.Root()}
}

func (u *Utility) SetLinearSolver(s linsolve.Solver) { u.solver = s }

func (u *Utility) SetMappingMatrix(p *mat.Dense) error {
	r, c := p.Dims()
	if r != u.iface[Origin].NumberOfNodes() || c != u.iface[Destination].NumberOfNodes() {
		return fmt.Errorf("%w: mapping matrix is %dx%d, interfaces have %d and %d nodes",
			ErrDimensionMismatch, r, c, u.iface[Origin].NumberOfNodes(), u.iface[Destination].NumberOfNodes())
	}
	u.mapping = p
	return nil
}

// SetOriginInitialKinematics records the origin interface state used as the
// start of the interpolation over the first coarse step.
func (u *Utility) SetOriginInitialKinematics() {
	u.originStart = u.interfaceQuantity(Origin)
	u.substep = 0
}

func (u *Utility) SetEffectiveStiffnessMatrixImplicit(k mat.Symmetric, index int) error {
	if err := u.checkIndex(index); err != nil {
		return err
	}
	u.keff[index] = k
	u.explicit[index] = false
	return nil
}

// SetEffectiveStiffnessMatrixExplicit uses the lumped mass of the domain as
// the effective stiffness.
func (u *Utility) SetEffectiveStiffnessMatrixExplicit(index int) error {
	if err := u.checkIndex(index); err != nil {
		return err
	}
	if u.domain[index] == nil {
		return ErrMissingDomains
	}
	nodes := u.domain[index].Nodes()
	m := mat.NewSymDense(len(nodes), nil)
	for _, n := range nodes {
		if n.Fixed || n.Mass == 0 {
			m.SetSym(n.EquationID, n.EquationID, 1)
			continue
		}
		m.SetSym(n.EquationID, n.EquationID, n.Mass)
	}
	u.keff[index] = m
	u.explicit[index] = true
	return nil
}

func (u *Utility) checkIndex(index int) error {
	if index != Origin && index != Destination {
		return fmt.Errorf("feti: domain index must be 0 or 1, got %d", index)
	}
	return nil
}

// Substep is the number of fine sub-steps equilibrated in the current coarse step.
func (u *Utility) Substep() int { return u.substep }

// Residual is the norm of the interface incompatibility after the last equilibration.
func (u *Utility) Residual() float64 { return u.residual }

// Explicit reports whether the last stiffness handed for index was explicit.
func (u *Utility) Explicit(index int) bool { return u.explicit[index] }

func (u *Utility) ready() error {
	switch {
	case u.domain[Origin] == nil || u.domain[Destination] == nil:
		return ErrMissingDomains
	case u.solver == nil:
		return ErrMissingLinearSolver
	case u.mapping == nil:
		return ErrMissingMappingMatrix
	case u.keff[Origin] == nil:
		return fmt.Errorf("%w: origin", ErrMissingStiffness)
	case u.keff[Destination] == nil:
		return fmt.Errorf("%w: destination", ErrMissingStiffness)
	}
	for i := range u.domain {
		if u.keff[i].SymmetricDim() != u.domain[i].NumberOfNodes() {
			return fmt.Errorf("%w: effective stiffness of domain %d is %d, model has %d dofs",
				ErrDimensionMismatch, i, u.keff[i].SymmetricDim(), u.domain[i].NumberOfNodes())
		}
	}
	return nil
}

func (u *Utility) interfaceQuantity(index int) []float64 {
	nodes := u.iface[index].Nodes()
	q := make([]float64, len(nodes))
	for i, n := range nodes {
		if u.settings.EquilibriumVariable == EquilibriumAcceleration {
			q[i] = n.Acceleration
		} else {
			q[i] = n.Velocity
		}
	}
	return q
}

// scale converts an acceleration correction into the equilibrium quantity.
func (u *Utility) scale(index int) float64 {
	if u.settings.EquilibriumVariable == EquilibriumAcceleration {
		return 1
	}
	return u.schemes[index].gamma * u.domain[index].ProcessInfo().DeltaTime
}
