// Package linsolve provides the linear solvers used to condense and solve the
// interface problem of the coupled solver.
//
// Solvers are registered by name in an allocator table. A solver is either
// built from explicit settings (solver_type) or picked as the fastest direct
// solver available in the current build.
package linsolve

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrUnknownSolver indicates a solver_type that has no allocator.
	ErrUnknownSolver = errors.New("linsolve: unknown solver type")

	// ErrNoDirectSolver indicates that none of the ranked direct solvers is available.
	ErrNoDirectSolver = errors.New("linsolve: no direct solver available")

	// ErrNotConverged indicates an iterative solver hit its iteration limit.
	ErrNotConverged = errors.New("linsolve: iterative solver did not converge")

	// ErrSingular indicates a factorization failed.
	ErrSingular = errors.New("linsolve: matrix is singular or not positive definite")
)

// Settings mirrors the linear_solver_settings block. An empty SolverType means
// the block did not name a solver.
type Settings struct {
	SolverType   string  `yaml:"solver_type,omitempty" json:"solver_type,omitempty"`
	Tolerance    float64 `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`
	MaxIteration int     `yaml:"max_iteration,omitempty" json:"max_iteration,omitempty"`
}

func (s Settings) HasSolverType() bool { return s.SolverType != "" }

// Solver solves A X = B for a symmetric A and one or more right-hand sides.
type Solver interface {
	Name() string
	IsDirect() bool
	Solve(a mat.Symmetric, b *mat.Dense) (*mat.Dense, error)
}

type allocator struct {
	direct    bool
	available func() bool
	create    func(Settings) Solver
}

var allocators = make(map[string]allocator)

// directRanking lists direct solvers from fastest to slowest for the small
// dense symmetric systems handled here.
var directRanking = []string{"cholesky", "dense_lu"}

func always() bool { return true }

func init() {
	allocators["cholesky"] = allocator{direct: true, available: always, create: func(Settings) Solver { return &Cholesky{} }}
	allocators["dense_lu"] = allocator{direct: true, available: always, create: func(Settings) Solver { return &LU{} }}
	allocators["cg"] = allocator{direct: false, available: always, create: func(s Settings) Solver { return NewCG(s.Tolerance, s.MaxIteration) }}
}

// Construct builds the solver named by s.SolverType.
func Construct(s Settings) (Solver, error) {
	alloc, ok := allocators[s.SolverType]
	if !ok || !alloc.available() {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownSolver, s.SolverType, Names())
	}
	return alloc.create(s), nil
}

// FastestAvailableDirect returns the first available solver of the direct ranking.
func FastestAvailableDirect() (Solver, error) {
	for _, name := range directRanking {
		if alloc, ok := allocators[name]; ok && alloc.direct && alloc.available() {
			return alloc.create(Settings{SolverType: name}), nil
		}
	}
	return nil, ErrNoDirectSolver
}

// Names lists the registered solver types.
func Names() []string {
	names := make([]string, 0, len(allocators))
	for n, a := range allocators {
		if a.available() {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// Factory exposes the package level constructors through a value so callers
// can swap it out.
type Factory struct{}

func (Factory) Construct(s Settings) (Solver, error) { return Construct(s) }
func (Factory) FastestAvailableDirect() (Solver, error) { return FastestAvailableDirect() }

func checkDims(a mat.Symmetric, b *mat.Dense) error {
	n := a.SymmetricDim()
	if r, _ := b.Dims(); r != n {
		return fmt.Errorf("linsolve: dimension mismatch: matrix %dx%d, rhs has %d rows", n, n, r)
	}
	return nil
}
