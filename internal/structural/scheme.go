package structural

import (
	"math"

	"github.com/san-kum/cosim/internal/model"
	"gonum.org/v1/gonum/mat"
)

// newmark integrates M a + K u = f in acceleration form. beta == 0 gives the
// explicit central difference scheme with a lumped mass.
type newmark struct {
	beta, gamma float64
}

func (s newmark) explicit() bool { return s.beta == 0.0 }

// predict writes the predictor displacement and velocity into the nodes.
func (s newmark) predict(nodes []*model.Node, dt float64) {
	for _, n := range nodes {
		if n.Fixed {
			n.Displacement, n.Velocity, n.Acceleration = 0, 0, 0
			continue
		}
		n.Displacement += dt*n.Velocity + dt*dt*(0.5-s.beta)*n.Acceleration
		n.Velocity += dt * (1 - s.gamma) * n.Acceleration
	}
}

// correct completes the step from the solved acceleration.
func (s newmark) correct(nodes []*model.Node, acc []float64, dt float64) {
	for _, n := range nodes {
		if n.Fixed {
			continue
		}
		a := acc[n.EquationID]
		n.Acceleration = a
		n.Displacement += s.beta * dt * dt * a
		n.Velocity += s.gamma * dt * a
	}
}

// effectiveMatrix returns M + beta dt^2 K with identity rows on fixed nodes.
func (s newmark) effectiveMatrix(m *mesh, nodes []*model.Node, dt float64) *mat.SymDense {
	n := m.size()
	keff := mat.NewSymDense(n, nil)
	c := s.beta * dt * dt
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := c * m.stiff.At(i, j)
			if i == j {
				v += m.mass[i]
			}
			keff.SetSym(i, j, v)
		}
	}
	for _, node := range nodes {
		if !node.Fixed {
			continue
		}
		eq := node.EquationID
		for j := 0; j < n; j++ {
			keff.SetSym(eq, j, 0)
		}
		keff.SetSym(eq, eq, 1)
	}
	return keff
}

// residual returns f - K u with zero entries on fixed nodes.
func residual(m *mesh, nodes []*model.Node) *mat.Dense {
	n := m.size()
	u := mat.NewVecDense(n, nil)
	for _, node := range nodes {
		u.SetVec(node.EquationID, node.Displacement)
	}
	var ku mat.VecDense
	ku.MulVec(m.stiff, u)
	r := mat.NewDense(n, 1, nil)
	for _, node := range nodes {
		if node.Fixed {
			continue
		}
		r.Set(node.EquationID, 0, node.ExternalForce-ku.AtVec(node.EquationID))
	}
	return r
}

func edgeLoad(cfg LoadConfig, t float64) float64 {
	if cfg.Frequency == 0 {
		return cfg.Amplitude
	}
	return cfg.Amplitude * math.Sin(2*math.Pi*cfg.Frequency*t)
}
