package linsolve

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

type Cholesky struct{}

func (*Cholesky) Name() string   { return "cholesky" }
func (*Cholesky) IsDirect() bool { return true }

func (c *Cholesky) Solve(a mat.Symmetric, b *mat.Dense) (*mat.Dense, error) {
	if err := checkDims(a, b); err != nil {
		return nil, err
	}
	var ch mat.Cholesky
	if ok := ch.Factorize(a); !ok {
		return nil, fmt.Errorf("%s: %w", c.Name(), ErrSingular)
	}
	var x mat.Dense
	if err := ch.SolveTo(&x, b); err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name(), err)
	}
	return &x, nil
}

type LU struct{}

func (*LU) Name() string   { return "dense_lu" }
func (*LU) IsDirect() bool { return true }

func (l *LU) Solve(a mat.Symmetric, b *mat.Dense) (*mat.Dense, error) {
	if err := checkDims(a, b); err != nil {
		return nil, err
	}
	var lu mat.LU
	lu.Factorize(a)
	if math.IsInf(lu.Cond(), 1) {
		return nil, fmt.Errorf("%s: %w", l.Name(), ErrSingular)
	}
	var x mat.Dense
	if err := lu.SolveTo(&x, false, b); err != nil {
		return nil, fmt.Errorf("%s: %w", l.Name(), err)
	}
	return &x, nil
}
