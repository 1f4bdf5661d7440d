// Package experiment assembles a coupled case from its configuration: both
// structures, the output writers and the coupled solver session.
package experiment

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/san-kum/cosim/internal/config"
	"github.com/san-kum/cosim/internal/cosim"
)

type Options struct {
	// OutputRoot prefixes the output_path of every coupling operation.
	OutputRoot string
	// NoOutput drops the configured coupling operations.
	NoOutput bool
	Logger   zerolog.Logger
	Registry *Registry
}

// Case is a ready to run coupled problem.
type Case struct {
	Name        string
	Config      *config.Config
	Session     *cosim.Session
	Origin      Structure
	Destination Structure
	Operations  []cosim.CouplingOperation
}

func Build(cfg *config.Config, opts Options) (*Case, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	logger := opts.Logger

	s := cfg.SolverSettings
	origin, err := reg.GetSolver(config.SolverOrigin, s.Solvers.Origin)
	if err != nil {
		return nil, fmt.Errorf("experiment: origin: %w", err)
	}
	dest, err := reg.GetSolver(config.SolverDestination, s.Solvers.Destination)
	if err != nil {
		return nil, fmt.Errorf("experiment: destination: %w", err)
	}
	origin.SetLogger(logger)
	dest.SetLogger(logger)

	c := &Case{
		Name:        cfg.Name,
		Config:      cfg,
		Origin:      origin,
		Destination: dest,
	}

	if !opts.NoOutput {
		for _, op := range s.CouplingOperations {
			target := origin
			if op.Solver == config.SolverDestination {
				target = dest
			}
			dir := filepath.Join(opts.OutputRoot, op.OutputPath, op.Name)
			operation, err := reg.GetOperation(op, target.ModelPart(), dir)
			if err != nil {
				return nil, fmt.Errorf("experiment: coupling operation %s: %w", op.Name, err)
			}
			if l, ok := operation.(interface{ SetLogger(zerolog.Logger) }); ok {
				l.SetLogger(logger)
			}
			c.Operations = append(c.Operations, operation)
		}
	}

	wrappers := cosim.DomainPair[cosim.SolverWrapper]{Origin: origin, Destination: dest}
	session, err := cosim.NewSession(cfg.Coupled(), wrappers, c.Operations, cosim.DefaultDependencies(), logger)
	if err != nil {
		return nil, err
	}
	c.Session = session
	return c, nil
}
