// Package export renders run histories as standalone SVG charts.
package export

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/san-kum/cosim/internal/metrics"
	"github.com/san-kum/cosim/internal/viz"
)

var ErrTooFewSamples = errors.New("export: need at least 2 samples")

// curve colors, origin first
var strokeColors = []string{"#ff00ff", "#ffd700", "#00ffff"}

// SeriesSVG writes a time chart of one viz series, one path per curve.
func SeriesSVG(w io.Writer, samples []metrics.Sample, name string, width, height int) error {
	series, ok := viz.GetSeries(name)
	if !ok {
		return fmt.Errorf("export: unknown series %q (available: %s)", name, strings.Join(viz.SeriesNames(), ", "))
	}
	if len(samples) < 2 {
		return ErrTooFewSamples
	}

	times := make([]float64, len(samples))
	var curves [][]float64
	for i, s := range samples {
		times[i] = s.Time
		vals := series.Values(s)
		if curves == nil {
			curves = make([][]float64, len(vals))
		}
		for j, v := range vals {
			curves[j] = append(curves[j], v)
		}
	}

	minX, maxX := times[0], times[len(times)-1]
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, c := range curves {
		for _, v := range c {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			minY, maxY = math.Min(minY, v), math.Max(maxY, v)
		}
	}
	if math.IsInf(minY, 1) {
		minY, maxY = 0, 1
	}

	rangeX, rangeY := maxX-minX, maxY-minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = math.Max(1e-12, math.Abs(maxY))
	}
	minY -= rangeY * 0.1
	rangeY *= 1.2

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<text x="8" y="16" fill="#888899" font-family="monospace" font-size="12">%s</text>
`, width, height, width, height, series.Caption)

	for j, c := range curves {
		fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="`, strokeColors[j%len(strokeColors)])
		pen := "M"
		for i, v := range c {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				pen = "M"
				continue
			}
			x := (times[i] - minX) / rangeX * float64(width)
			y := float64(height) - (v-minY)/rangeY*float64(height)
			fmt.Fprintf(&sb, "%s%.1f,%.1f ", pen, x, y)
			pen = "L"
		}
		sb.WriteString("\"/>\n")
	}
	sb.WriteString("</svg>\n")

	_, err := io.WriteString(w, sb.String())
	return err
}
