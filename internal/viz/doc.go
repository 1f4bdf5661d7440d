// Package viz renders coupled runs in the terminal.
//
//   - [Summary]: a lipgloss panel with the result metrics of a run
//   - [RunTable]: the stored runs as a table
//   - [Plot]: asciigraph line charts of a history series
//   - [Live]: a Bubble Tea program stepping a run coarse step by coarse step
//
// # Key Bindings
//
//	Space - Pause/Resume
//	N     - Single coarse step while paused
//	Tab   - Cycle the plotted series
//	T     - Cycle color themes
//	?     - Show help overlay
//	Q     - Quit
//
// The live view draws both structures on a Braille [Canvas] with the
// displacements exaggerated so that the interface motion is visible.
package viz
