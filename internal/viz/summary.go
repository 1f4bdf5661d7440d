package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/cosim/internal/analysis"
	"github.com/san-kum/cosim/internal/metrics"
	"github.com/san-kum/cosim/internal/storage"
)

// Series extracts one curve per domain, or a single coupled curve.
type Series struct {
	Name    string
	Caption string
	Values  func(s metrics.Sample) []float64
}

var seriesList = []Series{
	{"energy", "total energy (origin, destination)", func(s metrics.Sample) []float64 {
		return []float64{s.Origin.TotalEnergy(), s.Destination.TotalEnergy()}
	}},
	{"coupled_energy", "total energy of the coupled system", func(s metrics.Sample) []float64 {
		return []float64{s.TotalEnergy()}
	}},
	{"interface_velocity", "interface velocity (origin, destination)", func(s metrics.Sample) []float64 {
		return []float64{s.Origin.InterfaceVelocity, s.Destination.InterfaceVelocity}
	}},
	{"max_displacement", "max displacement (origin, destination)", func(s metrics.Sample) []float64 {
		return []float64{s.Origin.MaxDisplacement, s.Destination.MaxDisplacement}
	}},
	{"interface_mismatch", "interface velocity mismatch", func(s metrics.Sample) []float64 {
		return []float64{s.InterfaceMismatch}
	}},
}

func SeriesNames() []string {
	names := make([]string, len(seriesList))
	for i, s := range seriesList {
		names[i] = s.Name
	}
	return names
}

func GetSeries(name string) (Series, bool) {
	for _, s := range seriesList {
		if s.Name == name {
			return s, true
		}
	}
	return Series{}, false
}

// Plot charts a series over the samples.
func Plot(samples []metrics.Sample, name string, width, height int) (string, error) {
	series, ok := GetSeries(name)
	if !ok {
		return "", fmt.Errorf("unknown series %q (available: %s)", name, strings.Join(SeriesNames(), ", "))
	}
	if len(samples) < 2 {
		return "", fmt.Errorf("need at least 2 samples to plot, have %d", len(samples))
	}

	var data [][]float64
	for _, s := range samples {
		vals := series.Values(s)
		if data == nil {
			data = make([][]float64, len(vals))
		}
		for i, v := range vals {
			data[i] = append(data[i], v)
		}
	}

	opts := []asciigraph.Option{
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(series.Caption),
	}
	if len(data) > 1 {
		opts = append(opts, asciigraph.SeriesColors(asciigraph.Magenta, asciigraph.Yellow))
	}
	return asciigraph.PlotMany(data, opts...), nil
}

// Summary renders the metrics of a finished run in a panel.
func Summary(res *analysis.Result) string {
	var b strings.Builder
	b.WriteString(Title.Render(strings.ToUpper(res.Name)) + "\n\n")
	b.WriteString(row("timestep ratio", fmt.Sprintf("%d", res.Ratio)))
	b.WriteString(row("coarse steps", fmt.Sprintf("%d", res.Steps)))
	if n := len(res.Times); n > 0 {
		b.WriteString(row("time", fmt.Sprintf("%.4g → %.4g", res.Times[0], res.Times[n-1])))
	}
	b.WriteString(row("elapsed", res.Duration.String()))
	b.WriteString("\n" + Separator(36) + "\n\n")

	names := make([]string, 0, len(res.Metrics))
	for name := range res.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString(row(name, fmt.Sprintf("%.6g", res.Metrics[name])))
	}

	if len(res.Samples) > 1 {
		energy := make([]float64, len(res.Samples))
		for i, s := range res.Samples {
			energy[i] = s.TotalEnergy()
		}
		b.WriteString("\n" + MetricLabel.Render("energy") + Sparkline(energy, 36))
	}
	return Panel.Render(b.String())
}

func row(label, value string) string {
	return MetricLabel.Render(label) + MetricValue.Render(value) + "\n"
}

// RunTable lists stored runs, newest first.
func RunTable(runs []storage.RunMetadata) string {
	if len(runs) == 0 {
		return Subtle.Render("no runs stored")
	}
	header := fmt.Sprintf("%-10s %-24s %-19s %5s %6s %12s %12s",
		"ID", "NAME", "CREATED", "RATIO", "STEPS", "MISMATCH", "ENERGY")
	lines := []string{HeaderStyle.Render(header)}
	for _, r := range runs {
		lines = append(lines, fmt.Sprintf("%-10s %-24s %-19s %5d %6d %12.3e %12.6g",
			shortID(r.ID), truncate(r.Name, 24), r.Timestamp.Local().Format("2006-01-02 15:04:05"),
			r.TimestepRatio, r.Steps, r.Metrics["interface_mismatch"], r.Metrics["energy"]))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// shortID keeps the random tail of a time ordered id.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
