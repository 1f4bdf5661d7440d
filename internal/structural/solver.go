// Package structural implements a small structural dynamics solver used as a
// sub-domain of the coupled solver: a rectangular lumped-mass spring grid with
// one horizontal degree of freedom per node, integrated with the Newmark
// family of schemes.
package structural

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/san-kum/cosim/internal/linsolve"
	"github.com/san-kum/cosim/internal/model"
	"gonum.org/v1/gonum/mat"
)

// ErrNotAssembled is returned by SystemMatrix before the first solve.
var ErrNotAssembled = errors.New("structural: system matrix not assembled yet")

// Snapshot is handed to observers on every OutputSolutionStep.
type Snapshot struct {
	Domain                string
	Time                  float64
	Step                  int
	KineticEnergy         float64
	StrainEnergy          float64
	InterfaceVelocity     float64
	InterfaceDisplacement float64
	MaxDisplacement       float64
}

func (s Snapshot) TotalEnergy() float64 { return s.KineticEnergy + s.StrainEnergy }

type Observer interface {
	OnOutput(s Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Snapshot)

func (f ObserverFunc) OnOutput(s Snapshot) { f(s) }

// Solver is a time integrator for one structure. It satisfies the solver
// wrapper contract of the coupled solver.
type Solver struct {
	name      string
	cfg       Config
	model     *model.Model
	mesh      *mesh
	scheme    newmark
	linear    linsolve.Solver
	keff      *mat.SymDense
	predicted bool
	observers []Observer
	logger    zerolog.Logger
}

func New(name string, cfg Config) (*Solver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := model.New()
	msh, err := buildMesh(m, cfg)
	if err != nil {
		return nil, fmt.Errorf("structural: building %s: %w", name, err)
	}
	s := &Solver{
		name:   name,
		cfg:    cfg,
		model:  m,
		mesh:   msh,
		scheme: newmark{beta: cfg.NewmarkBeta, gamma: cfg.NewmarkGamma},
		linear: &linsolve.Cholesky{},
		logger: zerolog.Nop(),
	}
	msh.root.ProcessInfo().DeltaTime = cfg.TimeStep
	return s, nil
}

func (s *Solver) SetLogger(l zerolog.Logger) { s.logger = l.With().Str("solver", s.name).Logger() }

func (s *Solver) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Solver) Name() string                { return s.name }
func (s *Solver) Model() *model.Model         { return s.model }
func (s *Solver) ModelPart() *model.ModelPart { return s.mesh.root }
func (s *Solver) TimeStep() float64           { return s.cfg.TimeStep }
func (s *Solver) Config() Config              { return s.cfg }
func (s *Solver) Explicit() bool              { return s.scheme.explicit() }

// GetModelPart resolves a dotted model part path in this solver's model.
func (s *Solver) GetModelPart(path string) (*model.ModelPart, error) {
	return s.model.GetModelPart(path)
}

// Initialize computes the initial acceleration from the initial state.
func (s *Solver) Initialize() error {
	nodes := s.mesh.root.Nodes()
	s.applyLoads(s.mesh.root.ProcessInfo().Time)
	r := residual(s.mesh, nodes)
	for _, n := range nodes {
		if n.Fixed {
			continue
		}
		n.Acceleration = r.At(n.EquationID, 0) / n.Mass
	}
	s.logger.Debug().Int("nodes", len(nodes)).Bool("explicit", s.Explicit()).Msg("structure initialized")
	return nil
}

func (s *Solver) Finalize() error { return nil }

// AdvanceInTime moves the solver clock one time step beyond current.
func (s *Solver) AdvanceInTime(current float64) float64 {
	info := s.mesh.root.ProcessInfo()
	info.Time = current + s.cfg.TimeStep
	info.DeltaTime = s.cfg.TimeStep
	info.Step++
	return info.Time
}

func (s *Solver) InitializeSolutionStep() error {
	s.predicted = false
	s.applyLoads(s.mesh.root.ProcessInfo().Time)
	return nil
}

func (s *Solver) Predict() error {
	s.scheme.predict(s.mesh.root.Nodes(), s.cfg.TimeStep)
	s.predicted = true
	return nil
}

func (s *Solver) SolveSolutionStep() error {
	if !s.predicted {
		if err := s.Predict(); err != nil {
			return err
		}
	}
	nodes := s.mesh.root.Nodes()
	dt := s.cfg.TimeStep
	rhs := residual(s.mesh, nodes)

	acc := make([]float64, s.mesh.size())
	if s.scheme.explicit() {
		if s.keff == nil {
			s.keff = s.lumpedMass()
		}
		for _, n := range nodes {
			if !n.Fixed {
				acc[n.EquationID] = rhs.At(n.EquationID, 0) / n.Mass
			}
		}
	} else {
		s.keff = s.scheme.effectiveMatrix(s.mesh, nodes, dt)
		x, err := s.linear.Solve(s.keff, rhs)
		if err != nil {
			return fmt.Errorf("structural %s: solving step %d: %w", s.name, s.mesh.root.ProcessInfo().Step, err)
		}
		for i := range acc {
			acc[i] = x.At(i, 0)
		}
	}
	s.scheme.correct(nodes, acc, dt)
	s.predicted = false
	return nil
}

func (s *Solver) FinalizeSolutionStep() error {
	for _, n := range s.mesh.root.Nodes() {
		if math.IsNaN(n.Displacement) || math.IsInf(n.Displacement, 0) {
			return fmt.Errorf("structural %s: invalid displacement at node %d (t=%.4f)", s.name, n.ID, s.mesh.root.ProcessInfo().Time)
		}
	}
	return nil
}

func (s *Solver) OutputSolutionStep() error {
	snap := s.Snapshot()
	for _, o := range s.observers {
		o.OnOutput(snap)
	}
	return nil
}

// SystemMatrix returns the effective matrix of the last solve: M + beta dt^2 K
// for implicit schemes and the lumped mass for the explicit one.
func (s *Solver) SystemMatrix() (mat.Symmetric, error) {
	if s.keff == nil {
		return nil, fmt.Errorf("%s: %w", s.name, ErrNotAssembled)
	}
	return s.keff, nil
}

func (s *Solver) lumpedMass() *mat.SymDense {
	n := s.mesh.size()
	m := mat.NewSymDense(n, nil)
	for _, node := range s.mesh.root.Nodes() {
		if node.Fixed {
			m.SetSym(node.EquationID, node.EquationID, 1)
			continue
		}
		m.SetSym(node.EquationID, node.EquationID, node.Mass)
	}
	return m
}

func (s *Solver) applyLoads(t float64) {
	for _, n := range s.mesh.root.Nodes() {
		n.ExternalForce = 0
	}
	load, ok := s.mesh.root.GetSubModelPart(LoadPartName)
	if !ok {
		return
	}
	f := edgeLoad(s.cfg.Load, t)
	for _, n := range load.Nodes() {
		n.ExternalForce = f * s.mesh.width[n.EquationID]
	}
}

// Energy returns the kinetic and strain energy of the current state.
func (s *Solver) Energy() (kinetic, strain float64) {
	nodes := s.mesh.root.Nodes()
	for _, n := range nodes {
		kinetic += 0.5 * n.Mass * n.Velocity * n.Velocity
	}
	return kinetic, s.mesh.strainEnergy(nodes)
}

func (s *Solver) Snapshot() Snapshot {
	info := s.mesh.root.ProcessInfo()
	ke, se := s.Energy()
	snap := Snapshot{
		Domain:        s.name,
		Time:          info.Time,
		Step:          info.Step,
		KineticEnergy: ke,
		StrainEnergy:  se,
	}
	for _, n := range s.mesh.root.Nodes() {
		snap.MaxDisplacement = math.Max(snap.MaxDisplacement, math.Abs(n.Displacement))
	}
	if iface, ok := s.mesh.root.GetSubModelPart(InterfacePartName); ok && iface.NumberOfNodes() > 0 {
		for _, n := range iface.Nodes() {
			snap.InterfaceVelocity += n.Velocity
			snap.InterfaceDisplacement += n.Displacement
		}
		k := float64(iface.NumberOfNodes())
		snap.InterfaceVelocity /= k
		snap.InterfaceDisplacement /= k
	}
	return snap
}
