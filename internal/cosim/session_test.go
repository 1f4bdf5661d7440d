package cosim

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/san-kum/cosim/internal/feti"
	"github.com/san-kum/cosim/internal/model"
)

var _ = Describe("NewSession", func() {
	It("rejects a non-integer timestep ratio before touching any solver", func() {
		h := newHarness(1)
		_, err := h.session(implicitSettings(2.5))

		var cfgErr *ConfigError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
		Expect(cfgErr.Option).To(Equal("timestep_ratio"))
		Expect(err).To(MatchError(ErrNonIntegerRatio))
		Expect(h.trace.calls).To(BeEmpty())
	})

	It("rejects ratios below one", func() {
		for _, r := range []float64{0, -2} {
			_, err := newHarness(0).session(implicitSettings(r))
			Expect(err).To(MatchError(ErrNonPositiveRatio))
		}
	})

	It("requires both wrappers", func() {
		h := newHarness(0)
		_, err := NewSession(DefaultSettings(), DomainPair[SolverWrapper]{Origin: h.a}, nil, Dependencies{}, zeroLogger())
		Expect(err).To(MatchError(ErrMissingWrapper))
	})

	It("accepts integral float ratios", func() {
		s, err := newHarness(0).session(implicitSettings(4.0))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.TimestepRatio()).To(Equal(4))
		Expect(s.Initialized()).To(BeFalse())
	})
})

var _ = Describe("AdvanceInTime", func() {
	DescribeTable("effective time",
		func(dtA, dtB, want float64) {
			h := newHarness(0)
			h.a.dt, h.b.dt = dtA, dtB
			s, err := h.session(implicitSettings(1))
			Expect(err).NotTo(HaveOccurred())

			Expect(s.AdvanceInTime(0)).To(Equal(want))
			Expect(h.trace.calls).To(Equal([]string{"B.AdvanceInTime", "A.AdvanceInTime"}))
		},
		Entry("origin does not track time", 0.0, 3.5, 3.5),
		Entry("neither tracks time", 0.0, 0.0, 0.0),
		Entry("destination does not track time", 2.0, 0.0, 2.0),
		Entry("differing times keep the origin", 2.0, 0.5, 2.0),
	)

	It("seeds the sub-cycling clock from the destination", func() {
		h := newHarness(0)
		h.b.dt = 0.25
		s, _ := h.session(implicitSettings(1))
		s.AdvanceInTime(1.0)
		Expect(s.solverBTime).To(Equal(1.25))
	})
})

var _ = Describe("coupling initialization", func() {
	var (
		h *harness
		s *Session
	)

	BeforeEach(func() {
		h = newHarness(2)
		var err error
		s, err = h.session(implicitSettings(2))
		Expect(err).NotTo(HaveOccurred())
	})

	It("runs once across any number of step starts", func() {
		for i := 0; i < 3; i++ {
			Expect(s.InitializeSolutionStep()).To(Succeed())
		}
		Expect(s.Initialized()).To(BeTrue())
		Expect(h.mappers).To(Equal(1))
		Expect(h.trace.count("coupling.New")).To(Equal(1))
		Expect(h.trace.count("coupling.SetOriginInitialKinematics")).To(Equal(1))
		Expect(h.trace.count("A.InitializeSolutionStep")).To(Equal(3))
	})

	It("follows the setup order", func() {
		Expect(s.InitializeSolutionStep()).To(Succeed())
		Expect(h.trace.calls).To(Equal([]string{
			"A.InitializeSolutionStep",
			"B.InitializeSolutionStep",
			"vtk_origin.InitializeSolutionStep",
			"vtk_destination.InitializeSolutionStep",
			"mapper.Create(coupling_geometry)",
			"coupling.New",
			"coupling.SetOriginAndDestinationDomainsWithInterfaceModelParts",
			"linsolve.FastestAvailableDirect",
			"coupling.SetLinearSolver(cholesky)",
			"coupling.SetMappingMatrix",
			"coupling.SetOriginInitialKinematics",
		}))
		Expect(s.LinearSolver().Name()).To(Equal("cholesky"))
		Expect(s.Mapper()).NotTo(BeNil())
	})

	It("passes the coupling settings through", func() {
		st := implicitSettings(3)
		st.EquilibriumVariable = feti.EquilibriumAcceleration
		st.IsDisableCoupling = true
		st.DestinationNewmarkGamma = 0.6
		s, err := h.session(st)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.InitializeSolutionStep()).To(Succeed())

		Expect(h.coupling.settings).To(Equal(feti.Settings{
			OriginNewmarkBeta:       0.25,
			OriginNewmarkGamma:      -1,
			DestinationNewmarkBeta:  0.25,
			DestinationNewmarkGamma: 0.6,
			TimestepRatio:           3,
			EquilibriumVariable:     feti.EquilibriumAcceleration,
			IsDisableCoupling:       true,
		}))
	})

	It("builds the named linear solver", func() {
		st := implicitSettings(1)
		st.LinearSolverSettings.SolverType = "cg"
		s, err := h.session(st)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.InitializeSolutionStep()).To(Succeed())
		Expect(h.trace.calls).To(ContainElement("linsolve.Construct(cg)"))
		Expect(h.trace.calls).NotTo(ContainElement("linsolve.FastestAvailableDirect"))
		Expect(s.LinearSolver().IsDirect()).To(BeFalse())
	})

	It("propagates linear solver construction failures", func() {
		st := implicitSettings(1)
		st.LinearSolverSettings.SolverType = "mumps"
		s, err := h.session(st)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.InitializeSolutionStep()).To(MatchError(ContainSubstring("mumps")))
		Expect(s.Initialized()).To(BeFalse())
	})

	It("fails on an unsupported mapper before any stiffness hand-off", func() {
		st := implicitSettings(1)
		st.Mapper.MapperType = "nearest_element"
		s, err := h.session(st)
		Expect(err).NotTo(HaveOccurred())

		err = s.InitializeSolutionStep()
		Expect(err).To(MatchError(ErrUnsupportedMapper))
		var cfgErr *ConfigError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())

		_, err = s.SolveSolutionStep()
		Expect(err).To(MatchError(ErrUnsupportedMapper))
		for _, c := range h.trace.calls {
			Expect(c).NotTo(ContainSubstring("Stiffness"))
			Expect(c).NotTo(ContainSubstring("SystemMatrix"))
		}
		Expect(h.mappers).To(BeZero())
	})

	It("reports a missing interface model part", func() {
		st := implicitSettings(1)
		st.Mapper.ModelerParameters.DestinationInterfaceSubModelPartName = "Structure.wet"
		s, err := h.session(st)
		Expect(err).NotTo(HaveOccurred())

		err = s.InitializeSolutionStep()
		var missing *MissingDependencyError
		Expect(errors.As(err, &missing)).To(BeTrue())
		Expect(missing.Domain).To(Equal(Destination))
		Expect(missing.ModelPart).To(Equal("Structure.wet"))
		Expect(err).To(MatchError(model.ErrModelPartNotFound))
		Expect(s.Initialized()).To(BeFalse())
	})

	It("classifies domains once from the newmark beta", func() {
		st := implicitSettings(1)
		st.DestinationNewmarkBeta = 0.0
		st.OriginNewmarkBeta = -1.0
		s, err := h.session(st)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.InitializeSolutionStep()).To(Succeed())
		Expect(s.Integration(Origin)).To(Equal(Implicit))
		Expect(s.Integration(Destination)).To(Equal(Explicit))
	})
})

var _ = Describe("SolveSolutionStep", func() {
	solve := func(h *harness, st Settings) *Session {
		s, err := h.session(st)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.InitializeSolutionStep()).To(Succeed())
		s.AdvanceInTime(0)
		h.trace.reset()
		ok, err := s.SolveSolutionStep()
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		return s
	}

	It("sub-cycles the destination", func() {
		h := newHarness(1)
		solve(h, implicitSettings(4))
		Expect(h.trace.count("A.SolveSolutionStep")).To(Equal(1))
		Expect(h.trace.count("B.SolveSolutionStep")).To(Equal(4))
		Expect(h.trace.count("coupling.EquilibrateDomains")).To(Equal(4))
		Expect(h.trace.count("B.AdvanceInTime")).To(Equal(3))
		Expect(h.trace.count("B.FinalizeSolutionStep")).To(Equal(3))
		Expect(h.trace.count("B.OutputSolutionStep")).To(Equal(3))
		Expect(h.trace.calls[len(h.trace.calls)-1]).To(Equal("coupling.EquilibrateDomains"))
	})

	It("advances the destination from its own clock", func() {
		h := newHarness(0)
		h.b.dt = 0.5
		s := solve(h, implicitSettings(3))
		Expect(s.solverBTime).To(Equal(1.5))
	})

	It("never retrieves the matrix of an explicit domain", func() {
		h := newHarness(0)
		st := implicitSettings(3)
		st.DestinationNewmarkBeta = 0
		solve(h, st)
		Expect(h.trace.count("B.SystemMatrix")).To(BeZero())
		Expect(h.trace.count("coupling.SetEffectiveStiffnessMatrixExplicit(1)")).To(Equal(3))
		Expect(h.trace.count("A.SystemMatrix")).To(Equal(1))
		Expect(h.trace.count("coupling.SetEffectiveStiffnessMatrixImplicit(0)")).To(Equal(1))
	})

	It("retrieves the matrix of an implicit domain every sub-step", func() {
		h := newHarness(0)
		solve(h, implicitSettings(3))
		Expect(h.trace.count("B.SystemMatrix")).To(Equal(3))
	})

	DescribeTable("fine output",
		func(writers int, fine bool, want int) {
			h := newHarness(writers)
			st := implicitSettings(3)
			st.IsVTKFineTimestepOutput = fine
			solve(h, st)
			Expect(h.trace.count("vtk_destination.InitializeSolutionStep")).To(Equal(want))
			Expect(h.trace.count("vtk_destination.FinalizeSolutionStep")).To(Equal(want))
			Expect(h.trace.count("vtk_origin.InitializeSolutionStep")).To(BeZero())
			Expect(h.trace.count("vtk_origin.FinalizeSolutionStep")).To(BeZero())
		},
		Entry("two writers", 2, true, 2),
		Entry("two writers, fine output off", 2, false, 0),
		Entry("one writer", 1, true, 0),
		Entry("no writer", 0, true, 0),
	)

	It("propagates a failing system matrix retrieval", func() {
		h := newHarness(0)
		s, err := h.session(implicitSettings(2))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.InitializeSolutionStep()).To(Succeed())
		h.b.fail["SystemMatrix"] = errBoom

		ok, err := s.SolveSolutionStep()
		Expect(ok).To(BeFalse())
		Expect(err).To(MatchError(errBoom))
		Expect(h.trace.count("coupling.EquilibrateDomains")).To(BeZero())
	})

	It("propagates equilibration failures without retrying", func() {
		h := newHarness(0)
		h.coupling.failEq = errBoom
		s, err := h.session(implicitSettings(3))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.InitializeSolutionStep()).To(Succeed())

		_, err = s.SolveSolutionStep()
		Expect(err).To(MatchError(errBoom))
		Expect(h.trace.count("coupling.EquilibrateDomains")).To(Equal(1))
		Expect(h.trace.count("B.SolveSolutionStep")).To(Equal(1))
	})

	It("propagates an origin solve failure before any destination work", func() {
		h := newHarness(0)
		h.a.fail["SolveSolutionStep"] = errBoom
		s, _ := h.session(implicitSettings(2))
		Expect(s.InitializeSolutionStep()).To(Succeed())
		_, err := s.SolveSolutionStep()
		Expect(err).To(MatchError(errBoom))
		Expect(h.trace.count("B.SolveSolutionStep")).To(BeZero())
	})
})

var _ = Describe("coupled lifecycle", func() {
	It("finalizes and outputs both domains at the coupled level", func() {
		h := newHarness(2)
		s, err := h.session(implicitSettings(2))
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Initialize()).To(Succeed())
		Expect(s.InitializeSolutionStep()).To(Succeed())
		Expect(s.Predict()).To(Succeed())
		h.trace.reset()
		Expect(s.FinalizeSolutionStep()).To(Succeed())
		Expect(s.OutputSolutionStep()).To(Succeed())
		Expect(s.Finalize()).To(Succeed())

		Expect(h.trace.calls).To(Equal([]string{
			"A.FinalizeSolutionStep",
			"B.FinalizeSolutionStep",
			"vtk_origin.FinalizeSolutionStep",
			"vtk_destination.FinalizeSolutionStep",
			"A.OutputSolutionStep",
			"B.OutputSolutionStep",
			"A.Finalize",
			"B.Finalize",
			"vtk_origin.Finalize",
			"vtk_destination.Finalize",
		}))
	})

	It("stops at the first failing wrapper", func() {
		h := newHarness(0)
		h.a.fail["Predict"] = errBoom
		s, _ := h.session(implicitSettings(1))
		Expect(s.Predict()).To(MatchError(errBoom))
		Expect(h.trace.count("B.Predict")).To(BeZero())
	})
})

var _ = Describe("ClassifyNewmarkBeta", func() {
	It("selects explicit only for exactly zero", func() {
		Expect(ClassifyNewmarkBeta(0.0)).To(Equal(Explicit))
		Expect(ClassifyNewmarkBeta(0.25)).To(Equal(Implicit))
		Expect(ClassifyNewmarkBeta(-1.0)).To(Equal(Implicit))
		Expect(ClassifyNewmarkBeta(1e-300)).To(Equal(Implicit))
		Expect(Explicit.String()).To(Equal("explicit"))
	})
})
