package linsolve

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	DefaultTolerance    = 1e-10
	DefaultMaxIteration = 1000
)

// CG is an unpreconditioned conjugate gradient solver for symmetric positive
// definite systems. Each right-hand side column is solved independently.
type CG struct {
	tol     float64
	maxIter int
}

func NewCG(tol float64, maxIter int) *CG {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	if maxIter <= 0 {
		maxIter = DefaultMaxIteration
	}
	return &CG{tol: tol, maxIter: maxIter}
}

func (*CG) Name() string   { return "cg" }
func (*CG) IsDirect() bool { return false }

func (c *CG) Solve(a mat.Symmetric, b *mat.Dense) (*mat.Dense, error) {
	if err := checkDims(a, b); err != nil {
		return nil, err
	}
	n, cols := b.Dims()
	x := mat.NewDense(n, cols, nil)
	for j := 0; j < cols; j++ {
		rhs := mat.VecDenseCopyOf(b.ColView(j))
		sol, err := c.solveVec(a, rhs)
		if err != nil {
			return nil, fmt.Errorf("%s: column %d: %w", c.Name(), j, err)
		}
		x.SetCol(j, sol.RawVector().Data)
	}
	return x, nil
}

func (c *CG) solveVec(a mat.Symmetric, b *mat.VecDense) (*mat.VecDense, error) {
	n := b.Len()
	x := mat.NewVecDense(n, nil)
	r := mat.VecDenseCopyOf(b)
	p := mat.VecDenseCopyOf(r)
	ap := mat.NewVecDense(n, nil)

	bnorm := mat.Norm(b, 2)
	if bnorm == 0 {
		return x, nil
	}
	rr := mat.Dot(r, r)
	for it := 0; it < c.maxIter; it++ {
		if math.Sqrt(rr) <= c.tol*bnorm {
			return x, nil
		}
		ap.MulVec(a, p)
		pap := mat.Dot(p, ap)
		if pap <= 0 {
			return nil, ErrSingular
		}
		alpha := rr / pap
		x.AddScaledVec(x, alpha, p)
		r.AddScaledVec(r, -alpha, ap)
		rrNew := mat.Dot(r, r)
		p.AddScaledVec(r, rrNew/rr, p)
		rr = rrNew
	}
	if math.Sqrt(rr) <= c.tol*bnorm {
		return x, nil
	}
	return nil, fmt.Errorf("%w after %d iterations", ErrNotConverged, c.maxIter)
}
