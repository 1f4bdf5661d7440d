// Package output provides the coupling operations that write model part
// states to disk.
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/san-kum/cosim/internal/model"
)

const TypeVTK = "vtk_output"

var ErrNotInitialized = errors.New("output: writer not initialized")

// VTKOutput writes one legacy VTK polydata file per finalized step.
type VTKOutput struct {
	name    string
	part    *model.ModelPart
	dir     string
	prefix  string
	started bool
	ready   bool
	files   []string
	logger  zerolog.Logger
}

func NewVTKOutput(name string, part *model.ModelPart, dir string) *VTKOutput {
	prefix := strings.ReplaceAll(part.FullName(), ".", "_")
	return &VTKOutput{name: name, part: part, dir: dir, prefix: prefix, logger: zerolog.Nop()}
}

func (v *VTKOutput) SetLogger(l zerolog.Logger) { v.logger = l.With().Str("output", v.name).Logger() }

func (v *VTKOutput) Name() string { return v.name }

// Files lists the paths written so far, oldest first.
func (v *VTKOutput) Files() []string { return v.files }

func (v *VTKOutput) Initialize() error {
	if err := os.MkdirAll(v.dir, 0755); err != nil {
		return fmt.Errorf("output %s: %w", v.name, err)
	}
	v.ready = true
	return nil
}

func (v *VTKOutput) InitializeSolutionStep() error {
	if !v.ready {
		return ErrNotInitialized
	}
	v.started = true
	return nil
}

// FinalizeSolutionStep writes the state of the part. A finalize without a
// matching InitializeSolutionStep writes nothing.
func (v *VTKOutput) FinalizeSolutionStep() error {
	if !v.ready {
		return ErrNotInitialized
	}
	if !v.started {
		return nil
	}
	v.started = false

	info := v.part.ProcessInfo()
	path := filepath.Join(v.dir, fmt.Sprintf("%s_%d.vtk", v.prefix, info.Step))
	if err := os.WriteFile(path, []byte(Encode(v.part)), 0644); err != nil {
		return fmt.Errorf("output %s: %w", v.name, err)
	}
	v.files = append(v.files, path)
	v.logger.Debug().Str("path", path).Float64("time", info.Time).Msg("vtk written")
	return nil
}

func (v *VTKOutput) Finalize() error {
	v.ready = false
	v.logger.Info().Int("files", len(v.files)).Str("dir", v.dir).Msg("vtk output closed")
	return nil
}

// Encode renders the nodes of part as legacy ASCII VTK. Nodal values are
// written as vectors along x.
func Encode(part *model.ModelPart) string {
	nodes := part.Nodes()
	info := part.ProcessInfo()

	var sb strings.Builder
	sb.WriteString("# vtk DataFile Version 3.0\n")
	sb.WriteString(fmt.Sprintf("%s t=%g step=%d\n", part.FullName(), info.Time, info.Step))
	sb.WriteString("ASCII\nDATASET POLYDATA\n")
	sb.WriteString(fmt.Sprintf("POINTS %d double\n", len(nodes)))
	for _, n := range nodes {
		sb.WriteString(fmt.Sprintf("%g %g 0\n", n.X+n.Displacement, n.Y))
	}
	sb.WriteString(fmt.Sprintf("VERTICES %d %d\n", len(nodes), 2*len(nodes)))
	for i := range nodes {
		sb.WriteString(fmt.Sprintf("1 %d\n", i))
	}

	sb.WriteString(fmt.Sprintf("POINT_DATA %d\n", len(nodes)))
	fields := []struct {
		name  string
		value func(*model.Node) float64
	}{
		{"DISPLACEMENT", func(n *model.Node) float64 { return n.Displacement }},
		{"VELOCITY", func(n *model.Node) float64 { return n.Velocity }},
		{"ACCELERATION", func(n *model.Node) float64 { return n.Acceleration }},
		{"LAGRANGE_MULTIPLIER", func(n *model.Node) float64 { return n.LagrangeMultiplier }},
	}
	for _, f := range fields {
		sb.WriteString(fmt.Sprintf("VECTORS %s double\n", f.name))
		for _, n := range nodes {
			sb.WriteString(fmt.Sprintf("%g 0 0\n", f.value(n)))
		}
	}
	return sb.String()
}
