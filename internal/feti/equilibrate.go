package feti

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// EquilibrateDomains solves the interface problem for the current fine
// sub-step and applies the corrections. It must be called exactly
// TimestepRatio times per coarse step.
func (u *Utility) EquilibrateDomains() error {
	u.substep++
	j, r := u.substep, u.settings.TimestepRatio
	last := j >= r

	if u.settings.IsDisableCoupling {
		if last {
			u.SetOriginInitialKinematics()
		}
		return nil
	}
	if err := u.ready(); err != nil {
		return err
	}
	if u.originStart == nil {
		u.originStart = u.interfaceQuantity(Origin)
	}

	unbalanced := u.unbalanced(float64(j) / float64(r))

	xa, ba, err := u.condense(Origin)
	if err != nil {
		return err
	}
	xb, bb, err := u.condense(Destination)
	if err != nil {
		return err
	}

	h := u.interfaceOperator(xa, ba, xb, bb)
	rhs := mat.NewDense(len(unbalanced), 1, unbalanced)
	lambda, err := u.solver.Solve(h, rhs)
	if err != nil {
		return fmt.Errorf("feti: solving interface problem at sub-step %d/%d: %w", j, r, err)
	}

	for i, n := range u.iface[Origin].Nodes() {
		n.LagrangeMultiplier = lambda.At(i, 0)
	}

	var da, db mat.Dense
	db.Mul(xb, lambda)
	db.Scale(-1, &db)
	u.correct(Destination, &db)
	if last {
		da.Mul(xa, lambda)
		u.correct(Origin, &da)
	}

	u.residual = norm(u.unbalanced(float64(j) / float64(r)))
	u.logger.Debug().
		Int("substep", j).
		Int("ratio", r).
		Float64("lambda_norm", mat.Norm(lambda, 2)).
		Float64("residual", u.residual).
		Msg("interface equilibrated")

	if last {
		u.SetOriginInitialKinematics()
	}
	return nil
}

// unbalanced returns P q_B - q_A(alpha) with q_A interpolated between the
// start of the coarse step and the current origin state.
func (u *Utility) unbalanced(alpha float64) []float64 {
	qa := u.interfaceQuantity(Origin)
	qb := mat.NewVecDense(u.iface[Destination].NumberOfNodes(), u.interfaceQuantity(Destination))

	var pqb mat.VecDense
	pqb.MulVec(u.mapping, qb)

	out := make([]float64, len(qa))
	for i := range qa {
		start := qa[i]
		if i < len(u.originStart) {
			start = u.originStart[i]
		}
		out[i] = pqb.AtVec(i) - (start + alpha*(qa[i]-start))
	}
	return out
}

// condense returns X = K^-1 B and the interface operator B = L^T (P^T for
// the destination) of one domain, both with one column per multiplier.
func (u *Utility) condense(index int) (x, b *mat.Dense, err error) {
	ndof := u.domain[index].NumberOfNodes()
	nlambda := u.iface[Origin].NumberOfNodes()
	b = mat.NewDense(ndof, nlambda, nil)

	for k, n := range u.iface[index].Nodes() {
		if n.Fixed {
			continue
		}
		if index == Origin {
			b.Set(n.EquationID, k, 1)
			continue
		}
		for i := 0; i < nlambda; i++ {
			b.Set(n.EquationID, i, b.At(n.EquationID, i)+u.mapping.At(i, k))
		}
	}

	x, err = u.solver.Solve(u.keff[index], b)
	if err != nil {
		return nil, nil, fmt.Errorf("feti: condensing domain %d: %w", index, err)
	}
	return x, b, nil
}

// interfaceOperator assembles H = s_A B_A^T X_A + s_B B_B^T X_B, symmetrized.
func (u *Utility) interfaceOperator(xa, ba, xb, bb *mat.Dense) *mat.SymDense {
	var ha, hb mat.Dense
	ha.Mul(ba.T(), xa)
	ha.Scale(u.scale(Origin), &ha)
	hb.Mul(bb.T(), xb)
	hb.Scale(u.scale(Destination), &hb)
	ha.Add(&ha, &hb)

	n, _ := ha.Dims()
	h := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			h.SetSym(i, j, 0.5*(ha.At(i, j)+ha.At(j, i)))
		}
	}
	return h
}

// correct applies an acceleration correction to every free node of a domain
// consistently with its Newmark scheme.
func (u *Utility) correct(index int, da *mat.Dense) {
	sc := u.schemes[index]
	dt := u.domain[index].ProcessInfo().DeltaTime
	for _, n := range u.domain[index].Nodes() {
		if n.Fixed {
			continue
		}
		a := da.At(n.EquationID, 0)
		n.Acceleration += a
		n.Velocity += sc.gamma * dt * a
		n.Displacement += sc.beta * dt * dt * a
	}
}

func norm(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}
