// Package analysis drives coupled runs.
//
// The package provides the outer time loop of a coupled case and a parallel
// sweep over several cases:
//
//   - [Driver]: advances a [experiment.Case] coarse step by coarse step
//   - [Sweep]: runs independent cases concurrently, each one sequential
//   - [InterfaceMismatch]: measures P v_B - v_A on the mapper interfaces
//
// # Coarse Step
//
// Every coarse step calls, on the coupled session:
//
//	AdvanceInTime, InitializeSolutionStep, Predict, SolveSolutionStep,
//	FinalizeSolutionStep, OutputSolutionStep
//
// The session sub-cycles the destination inside SolveSolutionStep; the
// finalize and output of its last fine sub-step happen here.
//
//	d := analysis.NewDriver(c, logger)
//	res, err := d.Run(ctx, analysis.RunConfigFrom(c.Config))
package analysis
