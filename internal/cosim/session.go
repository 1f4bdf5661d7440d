// Package cosim orchestrates a FETI dynamic coupled solve of two structural
// domains. The origin domain takes one coupling step while the destination
// sub-cycles timestep_ratio times, the interface being equilibrated after
// every fine sub-step.
package cosim

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/san-kum/cosim/internal/linsolve"
	"github.com/san-kum/cosim/internal/mapping"
	"github.com/san-kum/cosim/internal/model"
)

// Session is the coupled solver. It is not safe for concurrent use.
type Session struct {
	settings Settings
	ratio    int
	wrappers DomainPair[SolverWrapper]
	ops      []CouplingOperation
	deps     Dependencies
	logger   zerolog.Logger

	state       initState
	integration DomainPair[Integration]
	interfaces  DomainPair[*model.ModelPart] // caller named
	mapped      DomainPair[*model.ModelPart] // mapper produced
	mapper      InterfaceMapper
	coupling    CouplingUtility
	linear      linsolve.Solver
	writers     []CouplingOperation

	time        float64
	solverBTime float64
}

// NewSession validates the settings. Nothing is touched on the wrappers
// until the first InitializeSolutionStep.
func NewSession(settings Settings, wrappers DomainPair[SolverWrapper], ops []CouplingOperation, deps Dependencies, logger zerolog.Logger) (*Session, error) {
	if wrappers.Origin == nil || wrappers.Destination == nil {
		return nil, ErrMissingWrapper
	}
	ratio, err := settings.Ratio()
	if err != nil {
		return nil, err
	}
	return &Session{
		settings: settings,
		ratio:    ratio,
		wrappers: wrappers,
		ops:      ops,
		deps:     deps.withDefaults(),
		logger:   logger.With().Str("component", "feti_dynamic_coupled_solver").Logger(),
	}, nil
}

func (s *Session) TimestepRatio() int                  { return s.ratio }
func (s *Session) Settings() Settings                  { return s.settings }
func (s *Session) Initialized() bool                   { return s.state == ready }
func (s *Session) Integration(d Domain) Integration    { return s.integration.Get(d) }
func (s *Session) Wrappers() DomainPair[SolverWrapper] { return s.wrappers }

// Mapper is nil before the coupling setup.
func (s *Session) Mapper() InterfaceMapper { return s.mapper }

// LinearSolver is nil before the coupling setup.
func (s *Session) LinearSolver() linsolve.Solver { return s.linear }

func (s *Session) Initialize() error {
	var err error
	s.wrappers.Each(func(d Domain, w SolverWrapper) {
		if err == nil {
			if e := w.Initialize(); e != nil {
				err = fmt.Errorf("cosim: initializing %s solver %s: %w", d, w.Name(), e)
			}
		}
	})
	if err != nil {
		return err
	}
	for _, op := range s.ops {
		if err := op.Initialize(); err != nil {
			return fmt.Errorf("cosim: initializing coupling operation %s: %w", op.Name(), err)
		}
	}
	return nil
}

func (s *Session) Finalize() error {
	var err error
	s.wrappers.Each(func(d Domain, w SolverWrapper) {
		if err == nil {
			if e := w.Finalize(); e != nil {
				err = fmt.Errorf("cosim: finalizing %s solver %s: %w", d, w.Name(), e)
			}
		}
	})
	if err != nil {
		return err
	}
	for _, op := range s.ops {
		if err := op.Finalize(); err != nil {
			return fmt.Errorf("cosim: finalizing coupling operation %s: %w", op.Name(), err)
		}
	}
	return nil
}

// AdvanceInTime advances the destination, then the origin. The destination
// time seeds the sub-cycling clock. The returned time is the first non-zero
// time reported, looking at the origin first; differing non-zero times are
// not reconciled.
func (s *Session) AdvanceInTime(current float64) float64 {
	s.time = 0.0
	s.solverBTime = s.wrappers.Destination.AdvanceInTime(current)
	originTime := s.wrappers.Origin.AdvanceInTime(current)

	for _, t := range []float64{originTime, s.solverBTime} {
		if t != 0.0 && s.time == 0.0 {
			s.time = t
		}
	}
	if originTime != 0.0 && s.solverBTime != 0.0 && originTime != s.solverBTime {
		s.logger.Debug().
			Float64("origin_time", originTime).
			Float64("destination_time", s.solverBTime).
			Msg("domain times differ, keeping origin time")
	}
	return s.time
}

// InitializeSolutionStep begins the step on every solver and coupling
// operation, then sets up the coupling on the first call.
func (s *Session) InitializeSolutionStep() error {
	var err error
	s.wrappers.Each(func(d Domain, w SolverWrapper) {
		if err == nil {
			if e := w.InitializeSolutionStep(); e != nil {
				err = fmt.Errorf("cosim: initializing step of %s solver %s: %w", d, w.Name(), e)
			}
		}
	})
	if err != nil {
		return err
	}
	for _, op := range s.ops {
		if err := op.InitializeSolutionStep(); err != nil {
			return fmt.Errorf("cosim: initializing step of coupling operation %s: %w", op.Name(), err)
		}
	}
	if s.state == uninitialized {
		return s.initializeCoupling()
	}
	return nil
}

func (s *Session) Predict() error {
	var err error
	s.wrappers.Each(func(d Domain, w SolverWrapper) {
		if err == nil {
			if e := w.Predict(); e != nil {
				err = fmt.Errorf("cosim: predicting %s solver %s: %w", d, w.Name(), e)
			}
		}
	})
	return err
}

// SolveSolutionStep solves the origin once and the destination
// timestep_ratio times, equilibrating the interface after every destination
// sub-step. Finalize and output of the last sub-step are left to the
// coupled level FinalizeSolutionStep and OutputSolutionStep.
func (s *Session) SolveSolutionStep() (bool, error) {
	if s.state != ready {
		if err := s.initializeCoupling(); err != nil {
			return false, err
		}
	}
	a, b := s.wrappers.Origin, s.wrappers.Destination
	fineOutput := s.settings.IsVTKFineTimestepOutput && len(s.writers) == 2

	if err := a.SolveSolutionStep(); err != nil {
		return false, fmt.Errorf("cosim: solving origin %s: %w", a.Name(), err)
	}
	if err := s.sendStiffness(Origin); err != nil {
		return false, err
	}

	for sub := 1; sub <= s.ratio; sub++ {
		s.logger.Debug().Int("sub_timestep", sub).Int("ratio", s.ratio).Msg("sub timestep")

		if sub > 1 {
			s.solverBTime = b.AdvanceInTime(s.solverBTime)
			if err := b.InitializeSolutionStep(); err != nil {
				return false, fmt.Errorf("cosim: initializing destination sub-step %d: %w", sub, err)
			}
			if fineOutput {
				if err := s.writers[1].InitializeSolutionStep(); err != nil {
					return false, fmt.Errorf("cosim: initializing fine output %s: %w", s.writers[1].Name(), err)
				}
			}
			if err := b.Predict(); err != nil {
				return false, fmt.Errorf("cosim: predicting destination sub-step %d: %w", sub, err)
			}
		}

		if err := b.SolveSolutionStep(); err != nil {
			return false, fmt.Errorf("cosim: solving destination sub-step %d: %w", sub, err)
		}
		if err := s.sendStiffness(Destination); err != nil {
			return false, err
		}
		if err := s.coupling.EquilibrateDomains(); err != nil {
			return false, fmt.Errorf("cosim: equilibrating sub-step %d of %d: %w", sub, s.ratio, err)
		}

		if sub == s.ratio {
			break
		}
		if err := b.FinalizeSolutionStep(); err != nil {
			return false, fmt.Errorf("cosim: finalizing destination sub-step %d: %w", sub, err)
		}
		if fineOutput {
			if err := s.writers[1].FinalizeSolutionStep(); err != nil {
				return false, fmt.Errorf("cosim: finalizing fine output %s: %w", s.writers[1].Name(), err)
			}
		}
		if err := b.OutputSolutionStep(); err != nil {
			return false, fmt.Errorf("cosim: output of destination sub-step %d: %w", sub, err)
		}
	}
	return true, nil
}

func (s *Session) FinalizeSolutionStep() error {
	var err error
	s.wrappers.Each(func(d Domain, w SolverWrapper) {
		if err == nil {
			if e := w.FinalizeSolutionStep(); e != nil {
				err = fmt.Errorf("cosim: finalizing step of %s solver %s: %w", d, w.Name(), e)
			}
		}
	})
	if err != nil {
		return err
	}
	for _, op := range s.ops {
		if err := op.FinalizeSolutionStep(); err != nil {
			return fmt.Errorf("cosim: finalizing step of coupling operation %s: %w", op.Name(), err)
		}
	}
	return nil
}

func (s *Session) OutputSolutionStep() error {
	var err error
	s.wrappers.Each(func(d Domain, w SolverWrapper) {
		if err == nil {
			if e := w.OutputSolutionStep(); e != nil {
				err = fmt.Errorf("cosim: output of %s solver %s: %w", d, w.Name(), e)
			}
		}
	})
	return err
}

// initializeCoupling runs once: it resolves the interfaces, builds the
// mapper, the coupling utility and the linear solver, and records the
// origin start kinematics.
func (s *Session) initializeCoupling() error {
	if s.state == ready {
		return nil
	}
	ms := s.settings.Mapper
	if ms.MapperType != mapping.CouplingGeometry {
		return &ConfigError{Option: "mapper_type", Value: ms.MapperType, Wrapped: ErrUnsupportedMapper}
	}

	names := DomainPair[string]{
		Origin:      ms.ModelerParameters.OriginInterfaceSubModelPartName,
		Destination: ms.ModelerParameters.DestinationInterfaceSubModelPartName,
	}
	var err error
	s.wrappers.Each(func(d Domain, w SolverWrapper) {
		if err != nil {
			return
		}
		part, e := w.GetModelPart(names.Get(d))
		if e != nil {
			err = &MissingDependencyError{Domain: d, ModelPart: names.Get(d), Wrapped: e}
			return
		}
		s.interfaces.Set(d, part)
	})
	if err != nil {
		return err
	}

	mapper, err := s.deps.Mappers(s.interfaces.Origin, s.interfaces.Destination, ms.mapperSettings())
	if err != nil {
		return fmt.Errorf("cosim: creating mapper: %w", err)
	}
	for _, d := range []Domain{Origin, Destination} {
		part, err := mapper.GetInterfaceModelPart(d.Index())
		if err != nil {
			return fmt.Errorf("cosim: %s interface from mapper: %w", d, err)
		}
		s.mapped.Set(d, part)
	}
	if ms.EchoLevel > 0 {
		rows, cols := mapper.MappingMatrix().Dims()
		s.logger.Info().
			Str("mapper_type", ms.MapperType).
			Int("origin_nodes", s.mapped.Origin.NumberOfNodes()).
			Int("destination_nodes", s.mapped.Destination.NumberOfNodes()).
			Int("rows", rows).
			Int("cols", cols).
			Msg("mapper created")
	}

	s.integration = DomainPair[Integration]{
		Origin:      ClassifyNewmarkBeta(s.settings.OriginNewmarkBeta),
		Destination: ClassifyNewmarkBeta(s.settings.DestinationNewmarkBeta),
	}

	coupling, err := s.deps.Coupling(s.mapped.Origin, s.mapped.Destination, s.settings.couplingSettings(s.ratio))
	if err != nil {
		return fmt.Errorf("cosim: creating coupling utility: %w", err)
	}
	if l, ok := coupling.(interface{ SetLogger(zerolog.Logger) }); ok {
		l.SetLogger(s.logger)
	}
	coupling.SetOriginAndDestinationDomainsWithInterfaceModelParts(s.interfaces.Origin, s.interfaces.Destination)

	linear, err := s.createLinearSolver()
	if err != nil {
		return err
	}
	coupling.SetLinearSolver(linear)

	if err := coupling.SetMappingMatrix(mapper.MappingMatrix()); err != nil {
		return fmt.Errorf("cosim: setting mapping matrix: %w", err)
	}
	coupling.SetOriginInitialKinematics()

	s.writers = append([]CouplingOperation(nil), s.ops...)
	s.mapper = mapper
	s.coupling = coupling
	s.linear = linear
	s.state = ready

	s.logger.Info().
		Int("timestep_ratio", s.ratio).
		Stringer("origin", s.integration.Origin).
		Stringer("destination", s.integration.Destination).
		Str("linear_solver", linear.Name()).
		Int("writers", len(s.writers)).
		Msg("coupling initialized")
	return nil
}

func (s *Session) createLinearSolver() (linsolve.Solver, error) {
	cfg := s.settings.LinearSolverSettings
	if cfg.HasSolverType() {
		ls, err := s.deps.LinearSolvers.Construct(cfg)
		if err != nil {
			return nil, fmt.Errorf("cosim: constructing linear solver: %w", err)
		}
		return ls, nil
	}
	ls, err := s.deps.LinearSolvers.FastestAvailableDirect()
	if err != nil {
		return nil, fmt.Errorf("cosim: selecting linear solver: %w", err)
	}
	s.logger.Info().Str("solver_type", ls.Name()).Msg("no linear solver was specified, using fastest available direct solver")
	return ls, nil
}

// sendStiffness hands the effective stiffness of a domain to the coupling
// utility. Explicit domains only send their index.
func (s *Session) sendStiffness(d Domain) error {
	if s.integration.Get(d) == Explicit {
		if err := s.coupling.SetEffectiveStiffnessMatrixExplicit(d.Index()); err != nil {
			return fmt.Errorf("cosim: explicit stiffness of %s: %w", d, err)
		}
		return nil
	}
	k, err := s.wrappers.Get(d).SystemMatrix()
	if err != nil {
		return fmt.Errorf("cosim: system matrix of %s: %w", d, err)
	}
	if err := s.coupling.SetEffectiveStiffnessMatrixImplicit(k, d.Index()); err != nil {
		return fmt.Errorf("cosim: implicit stiffness of %s: %w", d, err)
	}
	return nil
}
