package cosim

import (
	"errors"
	"fmt"
	"strings"

	"github.com/san-kum/cosim/internal/feti"
	"github.com/san-kum/cosim/internal/linsolve"
	"github.com/san-kum/cosim/internal/mapping"
	"github.com/san-kum/cosim/internal/model"
	"gonum.org/v1/gonum/mat"
)

type trace struct{ calls []string }

func (t *trace) add(format string, args ...any) { t.calls = append(t.calls, fmt.Sprintf(format, args...)) }

func (t *trace) reset() { t.calls = nil }

func (t *trace) count(call string) int {
	n := 0
	for _, c := range t.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (t *trace) String() string { return strings.Join(t.calls, "\n") + "\n" }

type fakeWrapper struct {
	name  string
	dt    float64
	trace *trace
	model *model.Model
	fail  map[string]error
}

func newFakeWrapper(name string, dt float64, tr *trace) *fakeWrapper {
	m := model.New()
	root, _ := m.CreateModelPart("Structure")
	iface, _ := root.CreateSubModelPart("interface")
	iface.AddNodes(&model.Node{ID: 1, X: 1})
	return &fakeWrapper{name: name, dt: dt, trace: tr, model: m, fail: map[string]error{}}
}

func (w *fakeWrapper) call(method string) error {
	w.trace.add("%s.%s", w.name, method)
	return w.fail[method]
}

func (w *fakeWrapper) Name() string                  { return w.name }
func (w *fakeWrapper) Initialize() error             { return w.call("Initialize") }
func (w *fakeWrapper) Finalize() error               { return w.call("Finalize") }
func (w *fakeWrapper) InitializeSolutionStep() error { return w.call("InitializeSolutionStep") }
func (w *fakeWrapper) Predict() error                { return w.call("Predict") }
func (w *fakeWrapper) SolveSolutionStep() error      { return w.call("SolveSolutionStep") }
func (w *fakeWrapper) FinalizeSolutionStep() error   { return w.call("FinalizeSolutionStep") }
func (w *fakeWrapper) OutputSolutionStep() error     { return w.call("OutputSolutionStep") }

func (w *fakeWrapper) AdvanceInTime(current float64) float64 {
	w.trace.add("%s.AdvanceInTime", w.name)
	if w.dt == 0 {
		return 0
	}
	return current + w.dt
}

func (w *fakeWrapper) GetModelPart(path string) (*model.ModelPart, error) {
	return w.model.GetModelPart(path)
}

func (w *fakeWrapper) SystemMatrix() (mat.Symmetric, error) {
	if err := w.call("SystemMatrix"); err != nil {
		return nil, err
	}
	return mat.NewSymDense(1, []float64{1}), nil
}

type fakeMapper struct {
	origin, destination *model.ModelPart
}

func (m *fakeMapper) GetInterfaceModelPart(index int) (*model.ModelPart, error) {
	if index == 0 {
		return m.origin, nil
	}
	return m.destination, nil
}

func (m *fakeMapper) MappingMatrix() *mat.Dense { return mat.NewDense(1, 1, []float64{1}) }

type fakeCoupling struct {
	trace    *trace
	settings feti.Settings
	failEq   error
}

func (c *fakeCoupling) SetOriginAndDestinationDomainsWithInterfaceModelParts(_, _ *model.ModelPart) {
	c.trace.add("coupling.SetOriginAndDestinationDomainsWithInterfaceModelParts")
}

func (c *fakeCoupling) SetLinearSolver(s linsolve.Solver) {
	c.trace.add("coupling.SetLinearSolver(%s)", s.Name())
}

func (c *fakeCoupling) SetMappingMatrix(*mat.Dense) error {
	c.trace.add("coupling.SetMappingMatrix")
	return nil
}

func (c *fakeCoupling) SetOriginInitialKinematics() { c.trace.add("coupling.SetOriginInitialKinematics") }

func (c *fakeCoupling) SetEffectiveStiffnessMatrixImplicit(_ mat.Symmetric, index int) error {
	c.trace.add("coupling.SetEffectiveStiffnessMatrixImplicit(%d)", index)
	return nil
}

func (c *fakeCoupling) SetEffectiveStiffnessMatrixExplicit(index int) error {
	c.trace.add("coupling.SetEffectiveStiffnessMatrixExplicit(%d)", index)
	return nil
}

func (c *fakeCoupling) EquilibrateDomains() error {
	c.trace.add("coupling.EquilibrateDomains")
	return c.failEq
}

type fakeLinearSolvers struct{ trace *trace }

func (f fakeLinearSolvers) Construct(s linsolve.Settings) (linsolve.Solver, error) {
	f.trace.add("linsolve.Construct(%s)", s.SolverType)
	return linsolve.Construct(s)
}

func (f fakeLinearSolvers) FastestAvailableDirect() (linsolve.Solver, error) {
	f.trace.add("linsolve.FastestAvailableDirect")
	return linsolve.FastestAvailableDirect()
}

type fakeOp struct {
	name  string
	trace *trace
}

func (o *fakeOp) Name() string                  { return o.name }
func (o *fakeOp) Initialize() error             { o.trace.add("%s.Initialize", o.name); return nil }
func (o *fakeOp) Finalize() error               { o.trace.add("%s.Finalize", o.name); return nil }
func (o *fakeOp) InitializeSolutionStep() error { o.trace.add("%s.InitializeSolutionStep", o.name); return nil }
func (o *fakeOp) FinalizeSolutionStep() error   { o.trace.add("%s.FinalizeSolutionStep", o.name); return nil }

// harness wires a session to recording fakes.
type harness struct {
	trace    *trace
	a, b     *fakeWrapper
	coupling *fakeCoupling
	mappers  int
	ops      []CouplingOperation
}

func newHarness(writers int) *harness {
	tr := &trace{}
	h := &harness{
		trace:    tr,
		a:        newFakeWrapper("A", 1.0, tr),
		b:        newFakeWrapper("B", 1.0, tr),
		coupling: &fakeCoupling{trace: tr},
	}
	names := []string{"vtk_origin", "vtk_destination"}
	for i := 0; i < writers; i++ {
		h.ops = append(h.ops, &fakeOp{name: names[i], trace: tr})
	}
	return h
}

func (h *harness) deps() Dependencies {
	return Dependencies{
		Mappers: func(o, d *model.ModelPart, s mapping.Settings) (InterfaceMapper, error) {
			h.mappers++
			h.trace.add("mapper.Create(%s)", s.MapperType)
			return &fakeMapper{origin: o, destination: d}, nil
		},
		Coupling: func(o, d *model.ModelPart, s feti.Settings) (CouplingUtility, error) {
			h.coupling.settings = s
			h.trace.add("coupling.New")
			return h.coupling, nil
		},
		LinearSolvers: fakeLinearSolvers{trace: h.trace},
	}
}

func implicitSettings(ratio float64) Settings {
	s := DefaultSettings()
	s.TimestepRatio = ratio
	s.OriginNewmarkBeta = 0.25
	s.DestinationNewmarkBeta = 0.25
	return s
}

func (h *harness) session(s Settings) (*Session, error) {
	return NewSession(s, DomainPair[SolverWrapper]{Origin: h.a, Destination: h.b}, h.ops, h.deps(), zeroLogger())
}

var errBoom = errors.New("boom")
