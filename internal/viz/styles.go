package viz

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles are rebuilt from the current theme by SetTheme.
var (
	Panel         lipgloss.Style
	Title         lipgloss.Style
	Subtle        lipgloss.Style
	StatusRunning lipgloss.Style
	StatusPaused  lipgloss.Style
	StatusFailed  lipgloss.Style
	MetricValue   lipgloss.Style
	MetricLabel   lipgloss.Style
	KeyHint       lipgloss.Style
	HeaderStyle   lipgloss.Style
	OriginStyle   lipgloss.Style
	DestStyle     lipgloss.Style

	SparkHigh lipgloss.Style
	SparkMid  lipgloss.Style
	SparkLow  lipgloss.Style
)

func init() { applyTheme(CurrentTheme) }

func applyTheme(t Theme) {
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Muted).
		Padding(1, 2)
	Title = lipgloss.NewStyle().Bold(true).Foreground(t.Secondary)
	Subtle = lipgloss.NewStyle().Foreground(t.Muted)

	StatusRunning = lipgloss.NewStyle().Bold(true).Foreground(t.Success)
	StatusPaused = lipgloss.NewStyle().Bold(true).Foreground(t.Warning)
	StatusFailed = lipgloss.NewStyle().Bold(true).Foreground(t.Error)

	MetricValue = lipgloss.NewStyle().Bold(true).Foreground(t.Secondary)
	MetricLabel = lipgloss.NewStyle().Foreground(t.Muted).Width(22)
	KeyHint = lipgloss.NewStyle().Italic(true).Foreground(t.Muted)
	HeaderStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Text).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(t.Muted)

	OriginStyle = lipgloss.NewStyle().Foreground(t.Primary)
	DestStyle = lipgloss.NewStyle().Foreground(t.Accent)

	SparkHigh = lipgloss.NewStyle().Foreground(t.Success)
	SparkMid = lipgloss.NewStyle().Foreground(t.Warning)
	SparkLow = lipgloss.NewStyle().Foreground(t.Error)
}

func Spinner(frame int) string {
	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	return frames[frame%len(frames)]
}

// ProgressBar renders the run progress, percent in [0, 1].
func ProgressBar(percent float64, width int) string {
	filled := int(math.Round(percent * float64(width)))
	filled = max(0, min(filled, width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	switch {
	case percent >= 1:
		return SparkHigh.Render(bar)
	case percent > 0.4:
		return SparkMid.Render(bar)
	}
	return SparkLow.Render(bar)
}

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders the last width values, scaled to their own range.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	var b strings.Builder
	for _, v := range values {
		norm := (v - lo) / rng
		idx := max(0, min(int(norm*float64(len(sparkChars)-1)), len(sparkChars)-1))
		c := string(sparkChars[idx])
		switch {
		case norm > 0.7:
			b.WriteString(SparkHigh.Render(c))
		case norm > 0.3:
			b.WriteString(SparkMid.Render(c))
		default:
			b.WriteString(SparkLow.Render(c))
		}
	}
	return b.String()
}

func Separator(width int) string {
	mid := width / 2
	return Subtle.Render(strings.Repeat("─", max(0, mid-3)) + " ◆ " + strings.Repeat("─", max(0, width-mid-3)))
}
