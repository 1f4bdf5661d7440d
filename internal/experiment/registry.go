package experiment

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/san-kum/cosim/internal/config"
	"github.com/san-kum/cosim/internal/cosim"
	"github.com/san-kum/cosim/internal/model"
	"github.com/san-kum/cosim/internal/output"
	"github.com/san-kum/cosim/internal/structural"
)

// Structure is a solver wrapper that reports its state after each step.
type Structure interface {
	cosim.SolverWrapper
	Snapshot() structural.Snapshot
	ModelPart() *model.ModelPart
	SetLogger(l zerolog.Logger)
}

type solverFunc func(name string, cfg config.SolverConfig) (Structure, error)

type operationFunc func(op config.CouplingOperation, part *model.ModelPart, dir string) (cosim.CouplingOperation, error)

type Registry struct {
	solvers    map[string]solverFunc
	operations map[string]operationFunc
}

func NewRegistry() *Registry {
	r := &Registry{
		solvers:    make(map[string]solverFunc),
		operations: make(map[string]operationFunc),
	}

	r.solvers[config.DefaultStructureType] = func(name string, cfg config.SolverConfig) (Structure, error) {
		s, err := structural.New(name, cfg.Config)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	r.operations[output.TypeVTK] = func(op config.CouplingOperation, part *model.ModelPart, dir string) (cosim.CouplingOperation, error) {
		return output.NewVTKOutput(op.Name, part, dir), nil
	}

	return r
}

func (r *Registry) GetSolver(name string, cfg config.SolverConfig) (Structure, error) {
	fn, ok := r.solvers[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown solver type: %s", cfg.Type)
	}
	return fn(name, cfg)
}

func (r *Registry) GetOperation(op config.CouplingOperation, part *model.ModelPart, dir string) (cosim.CouplingOperation, error) {
	fn, ok := r.operations[op.Type]
	if !ok {
		return nil, fmt.Errorf("unknown coupling operation type: %s", op.Type)
	}
	return fn(op, part, dir)
}

func (r *Registry) ListSolvers() []string {
	names := make([]string, 0, len(r.solvers))
	for name := range r.solvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) ListOperations() []string {
	names := make([]string, 0, len(r.operations))
	for name := range r.operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
