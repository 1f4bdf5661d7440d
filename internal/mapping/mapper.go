// Package mapping relates the degrees of freedom of two non-matching interface
// meshes. The coupling_geometry mapper builds its own interface model parts
// and a mapping matrix P with q_origin ≈ P q_destination.
package mapping

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/cosim/internal/model"
	"gonum.org/v1/gonum/mat"
)

const (
	CouplingGeometry = "coupling_geometry"

	OriginPartName      = "CouplingInterfaceOrigin"
	DestinationPartName = "CouplingInterfaceDestination"
)

var (
	ErrUnknownMapper  = errors.New("mapping: unknown mapper type")
	ErrEmptyInterface = errors.New("mapping: interface model part has no nodes")
)

// Settings mirrors the mapper_settings block.
type Settings struct {
	MapperType string `yaml:"mapper_type" json:"mapper_type"`
}

type allocatorFunc func(origin, destination *model.ModelPart, s Settings) (*CouplingGeometryMapper, error)

var allocators = map[string]allocatorFunc{
	CouplingGeometry: NewCouplingGeometry,
}

// CreateMapper builds the mapper named by s.MapperType.
func CreateMapper(origin, destination *model.ModelPart, s Settings) (*CouplingGeometryMapper, error) {
	alloc, ok := allocators[s.MapperType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMapper, s.MapperType)
	}
	return alloc(origin, destination, s)
}

// CouplingGeometryMapper interpolates linearly along the interface.
type CouplingGeometryMapper struct {
	model       *model.Model
	origin      *model.ModelPart
	destination *model.ModelPart
	matrix      *mat.Dense
}

func NewCouplingGeometry(origin, destination *model.ModelPart, s Settings) (*CouplingGeometryMapper, error) {
	if origin.NumberOfNodes() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyInterface, origin.FullName())
	}
	if destination.NumberOfNodes() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyInterface, destination.FullName())
	}

	m := model.New()
	axis := interfaceAxis(origin.Nodes(), destination.Nodes())

	op, err := orderedCopy(m, OriginPartName, origin, axis)
	if err != nil {
		return nil, err
	}
	dp, err := orderedCopy(m, DestinationPartName, destination, axis)
	if err != nil {
		return nil, err
	}

	return &CouplingGeometryMapper{
		model:       m,
		origin:      op,
		destination: dp,
		matrix:      interpolationMatrix(op.Nodes(), dp.Nodes(), axis),
	}, nil
}

// GetInterfaceModelPart returns the mapper owned origin (0) or destination (1) part.
func (c *CouplingGeometryMapper) GetInterfaceModelPart(index int) (*model.ModelPart, error) {
	switch index {
	case 0:
		return c.origin, nil
	case 1:
		return c.destination, nil
	}
	return nil, fmt.Errorf("mapping: interface index must be 0 or 1, got %d", index)
}

func (c *CouplingGeometryMapper) MappingMatrix() *mat.Dense { return c.matrix }

func (c *CouplingGeometryMapper) Model() *model.Model { return c.model }

type coordinate func(*model.Node) float64

func byX(n *model.Node) float64 { return n.X }
func byY(n *model.Node) float64 { return n.Y }

// interfaceAxis picks the coordinate with the largest spread.
func interfaceAxis(sets ...[]*model.Node) coordinate {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, nodes := range sets {
		for _, n := range nodes {
			minX, maxX = math.Min(minX, n.X), math.Max(maxX, n.X)
			minY, maxY = math.Min(minY, n.Y), math.Max(maxY, n.Y)
		}
	}
	if maxX-minX > maxY-minY {
		return byX
	}
	return byY
}

// orderedCopy creates a mapper owned part sharing the nodes of src, sorted
// along the interface. Each side gets its own root since node ids of the two
// domains may collide.
func orderedCopy(m *model.Model, name string, src *model.ModelPart, axis coordinate) (*model.ModelPart, error) {
	part, err := m.CreateModelPart(name)
	if err != nil {
		return nil, err
	}
	nodes := append([]*model.Node(nil), src.Nodes()...)
	sort.SliceStable(nodes, func(i, j int) bool { return axis(nodes[i]) < axis(nodes[j]) })
	part.AddNodes(nodes...)
	return part, nil
}

// interpolationMatrix evaluates the piecewise linear interpolant of the
// destination nodes at every origin node. Origin nodes outside the
// destination range take the nearest end value.
func interpolationMatrix(origin, destination []*model.Node, axis coordinate) *mat.Dense {
	p := mat.NewDense(len(origin), len(destination), nil)
	if len(destination) == 1 {
		for i := range origin {
			p.Set(i, 0, 1)
		}
		return p
	}
	last := len(destination) - 1
	for i, on := range origin {
		s := axis(on)
		switch {
		case s <= axis(destination[0]):
			p.Set(i, 0, 1)
		case s >= axis(destination[last]):
			p.Set(i, last, 1)
		default:
			j := sort.Search(len(destination), func(k int) bool { return axis(destination[k]) > s }) - 1
			s0, s1 := axis(destination[j]), axis(destination[j+1])
			w := (s - s0) / (s1 - s0)
			p.Set(i, j, 1-w)
			p.Set(i, j+1, w)
		}
	}
	return p
}
