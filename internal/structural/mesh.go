package structural

import (
	"github.com/san-kum/cosim/internal/model"
	"gonum.org/v1/gonum/mat"
)

type spring struct {
	a, b int // equation ids
	k    float64
}

// mesh holds the assembled, time independent operators of the grid.
type mesh struct {
	root    *model.ModelPart
	springs []spring
	mass    []float64
	width   []float64 // tributary length along y, used for edge tractions
	stiff   *mat.SymDense
}

func tributary(i, n int, h float64) float64 {
	if n == 1 {
		return 1
	}
	if i == 0 || i == n-1 {
		return h / 2
	}
	return h
}

// buildMesh creates the node grid inside m and its sub model parts.
func buildMesh(m *model.Model, cfg Config) (*mesh, error) {
	root, err := m.CreateModelPart(cfg.ModelPartName)
	if err != nil {
		return nil, err
	}
	iface, err := root.CreateSubModelPart(InterfacePartName)
	if err != nil {
		return nil, err
	}
	fixed, err := root.CreateSubModelPart(FixedPartName)
	if err != nil {
		return nil, err
	}
	load, err := root.CreateSubModelPart(LoadPartName)
	if err != nil {
		return nil, err
	}

	dx := cfg.Length / float64(cfg.NX-1)
	dy := 0.0
	if cfg.NY > 1 {
		dy = cfg.Height / float64(cfg.NY-1)
	}
	height := cfg.Height
	if cfg.NY == 1 && height <= 0 {
		height = 1
	}

	n := cfg.NX * cfg.NY
	msh := &mesh{
		root:  root,
		mass:  make([]float64, n),
		width: make([]float64, n),
	}

	edgeColumn := func(edge string) int {
		switch edge {
		case EdgeLeft:
			return 0
		case EdgeRight:
			return cfg.NX - 1
		}
		return -1
	}
	fixedCol := edgeColumn(cfg.FixedEdge)
	ifaceCol := edgeColumn(cfg.InterfaceEdge)
	loadCol := edgeColumn(cfg.Load.Edge)

	// column-major numbering so that interface nodes are contiguous in y
	nodes := make([]*model.Node, 0, n)
	for i := 0; i < cfg.NX; i++ {
		for j := 0; j < cfg.NY; j++ {
			eq := i*cfg.NY + j
			wx := tributary(i, cfg.NX, dx)
			wy := height
			if cfg.NY > 1 {
				wy = tributary(j, cfg.NY, dy)
			}
			node := &model.Node{
				ID:         eq + 1,
				X:          cfg.OriginX + float64(i)*dx,
				Y:          cfg.OriginY + float64(j)*dy,
				EquationID: eq,
				Mass:       cfg.Density * wx * wy,
				Fixed:      i == fixedCol,
			}
			if !node.Fixed {
				node.Velocity = cfg.InitialVelocity
			}
			msh.mass[eq] = node.Mass
			msh.width[eq] = wy
			nodes = append(nodes, node)
		}
	}
	root.AddNodes(nodes...)

	for _, node := range nodes {
		col := node.EquationID / cfg.NY
		if col == fixedCol {
			fixed.AddNodes(node)
		}
		if col == ifaceCol {
			iface.AddNodes(node)
		}
		if col == loadCol {
			load.AddNodes(node)
		}
	}

	for i := 0; i < cfg.NX; i++ {
		for j := 0; j < cfg.NY; j++ {
			eq := i*cfg.NY + j
			wy := height
			if cfg.NY > 1 {
				wy = tributary(j, cfg.NY, dy)
			}
			if i+1 < cfg.NX {
				msh.springs = append(msh.springs, spring{a: eq, b: eq + cfg.NY, k: cfg.Stiffness * wy / dx})
			}
			if j+1 < cfg.NY && cfg.ShearStiffness > 0 {
				wx := tributary(i, cfg.NX, dx)
				msh.springs = append(msh.springs, spring{a: eq, b: eq + 1, k: cfg.ShearStiffness * wx / dy})
			}
		}
	}

	msh.stiff = mat.NewSymDense(n, nil)
	for _, s := range msh.springs {
		msh.stiff.SetSym(s.a, s.a, msh.stiff.At(s.a, s.a)+s.k)
		msh.stiff.SetSym(s.b, s.b, msh.stiff.At(s.b, s.b)+s.k)
		msh.stiff.SetSym(s.a, s.b, msh.stiff.At(s.a, s.b)-s.k)
	}
	return msh, nil
}

func (m *mesh) size() int { return len(m.mass) }

func (m *mesh) strainEnergy(nodes []*model.Node) float64 {
	e := 0.0
	for _, s := range m.springs {
		d := nodes[s.a].Displacement - nodes[s.b].Displacement
		e += 0.5 * s.k * d * d
	}
	return e
}
