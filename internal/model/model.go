package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrModelPartNotFound is returned when a dotted model part path does not
// resolve inside a Model.
var ErrModelPartNotFound = errors.New("model: model part not found")

// Node is a single mesh node carrying one scalar degree of freedom per
// kinematic quantity.
type Node struct {
	ID         int
	X, Y       float64
	Mass       float64
	Fixed      bool
	EquationID int

	Displacement       float64
	Velocity           float64
	Acceleration       float64
	ExternalForce      float64
	LagrangeMultiplier float64
}

type ProcessInfo struct {
	Time      float64
	DeltaTime float64
	Step      int
}

// ModelPart is a named node set. Sub model parts share node pointers with
// their parent, so writing a value through any part is visible everywhere.
type ModelPart struct {
	name     string
	parent   *ModelPart
	model    *Model
	nodes    []*Node
	index    map[int]*Node
	subParts map[string]*ModelPart
	info     *ProcessInfo
}

func newModelPart(name string, parent *ModelPart, m *Model) *ModelPart {
	p := &ModelPart{
		name:     name,
		parent:   parent,
		model:    m,
		index:    make(map[int]*Node),
		subParts: make(map[string]*ModelPart),
	}
	if parent == nil {
		p.info = &ProcessInfo{}
	}
	return p
}

func (p *ModelPart) Name() string { return p.name }

// FullName returns the dotted path from the root part, e.g. "Structure.interface".
func (p *ModelPart) FullName() string {
	if p.parent == nil {
		return p.name
	}
	return p.parent.FullName() + "." + p.name
}

func (p *ModelPart) Model() *Model { return p.model }

func (p *ModelPart) Root() *ModelPart {
	r := p
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// ProcessInfo is shared by the whole part tree.
func (p *ModelPart) ProcessInfo() *ProcessInfo { return p.Root().info }

func (p *ModelPart) CreateSubModelPart(name string) (*ModelPart, error) {
	if name == "" || strings.Contains(name, ".") {
		return nil, fmt.Errorf("model: invalid sub model part name %q", name)
	}
	if _, ok := p.subParts[name]; ok {
		return nil, fmt.Errorf("model: sub model part %q already exists in %s", name, p.FullName())
	}
	sub := newModelPart(name, p, p.model)
	p.subParts[name] = sub
	return sub, nil
}

func (p *ModelPart) GetSubModelPart(name string) (*ModelPart, bool) {
	sub, ok := p.subParts[name]
	return sub, ok
}

func (p *ModelPart) SubModelPartNames() []string {
	names := make([]string, 0, len(p.subParts))
	for n := range p.subParts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AddNodes adds nodes to the part and to all its ancestors. Nodes already
// present are skipped.
func (p *ModelPart) AddNodes(nodes ...*Node) {
	for part := p; part != nil; part = part.parent {
		for _, n := range nodes {
			if _, ok := part.index[n.ID]; ok {
				continue
			}
			part.index[n.ID] = n
			part.nodes = append(part.nodes, n)
		}
	}
}

func (p *ModelPart) Nodes() []*Node { return p.nodes }

func (p *ModelPart) NumberOfNodes() int { return len(p.nodes) }

func (p *ModelPart) GetNode(id int) (*Node, bool) {
	n, ok := p.index[id]
	return n, ok
}

// Model is a registry of root model parts.
type Model struct {
	parts map[string]*ModelPart
}

func New() *Model {
	return &Model{parts: make(map[string]*ModelPart)}
}

func (m *Model) CreateModelPart(name string) (*ModelPart, error) {
	if name == "" || strings.Contains(name, ".") {
		return nil, fmt.Errorf("model: invalid model part name %q", name)
	}
	if _, ok := m.parts[name]; ok {
		return nil, fmt.Errorf("model: model part %q already exists", name)
	}
	p := newModelPart(name, nil, m)
	m.parts[name] = p
	return p, nil
}

// GetModelPart resolves a dotted path such as "Structure.interface".
func (m *Model) GetModelPart(path string) (*ModelPart, error) {
	segments := strings.Split(path, ".")
	p, ok := m.parts[segments[0]]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrModelPartNotFound, path)
	}
	for _, s := range segments[1:] {
		if p, ok = p.subParts[s]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrModelPartNotFound, path)
		}
	}
	return p, nil
}

func (m *Model) HasModelPart(path string) bool {
	_, err := m.GetModelPart(path)
	return err == nil
}
