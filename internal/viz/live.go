package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/cosim/internal/analysis"
	"github.com/san-kum/cosim/internal/metrics"
	"github.com/san-kum/cosim/internal/model"
)

const (
	canvasWidth     = 60
	canvasHeight    = 16
	historyCapacity = 600
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(48)
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
)

type TickMsg time.Time

func tick(fps int) tea.Cmd {
	return tea.Tick(time.Second/time.Duration(fps), func(t time.Time) tea.Msg { return TickMsg(t) })
}

// LiveModel steps a driver that has already begun.
type LiveModel struct {
	driver  *analysis.Driver
	endTime float64
	fps     int

	canvas   *canvasPair
	history  []metrics.Sample
	series   int
	running  bool
	done     bool
	err      error
	frame    int
	showHelp bool

	// displacement magnification on the canvas
	exaggeration float64
}

func NewLiveModel(d *analysis.Driver, endTime float64, fps int) LiveModel {
	if fps <= 0 {
		fps = 30
	}
	m := LiveModel{
		driver:       d,
		endTime:      endTime,
		fps:          fps,
		canvas:       newCanvasPair(d),
		running:      true,
		exaggeration: 5,
	}
	if res := d.Result(); res != nil {
		m.history = append(m.history, res.Samples...)
	}
	return m
}

func (m LiveModel) Init() tea.Cmd { return tick(m.fps) }

func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "n":
			if !m.running {
				m.advance()
			}
		case "tab":
			m.series = (m.series + 1) % len(seriesList)
		case "+", "=":
			m.exaggeration *= 2
		case "-", "_":
			m.exaggeration = math.Max(1, m.exaggeration/2)
		case "t":
			NextTheme()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		m.frame++
		if m.running {
			m.advance()
		}
		return m, tick(m.fps)
	}
	return m, nil
}

func (m *LiveModel) advance() {
	if m.done || m.err != nil {
		return
	}
	if m.driver.Done() {
		_, m.err = m.driver.End()
		m.done = true
		m.running = false
		return
	}
	s, err := m.driver.Step()
	if err != nil {
		m.err = err
		m.running = false
		return
	}
	m.history = append(m.history, s)
	if len(m.history) > historyCapacity {
		m.history = m.history[1:]
	}
}

// Err is the failure that stopped the run, if any.
func (m LiveModel) Err() error { return m.err }

func (m LiveModel) View() string {
	m.canvas.draw(m.exaggeration)

	var s strings.Builder
	s.WriteString(Title.Render(strings.ToUpper(m.driver.Case().Name)) + "\n")
	s.WriteString(m.status() + "\n\n")

	t := m.driver.Time()
	progress := 0.0
	if m.endTime > 0 {
		progress = t / m.endTime
	}
	s.WriteString(ProgressBar(progress, 30) + "\n\n")

	if len(m.history) > 1 {
		series := seriesList[m.series]
		if chart, err := Plot(m.history, series.Name, 30, 5); err == nil {
			s.WriteString(graphStyle.Render(chart) + "\n")
		}
	}

	var last metrics.Sample
	if n := len(m.history); n > 0 {
		last = m.history[n-1]
	}
	s.WriteString(row("time", fmt.Sprintf("%.4fs", t)))
	s.WriteString(row("coarse step", fmt.Sprintf("%d", last.Step)))
	s.WriteString(row("timestep ratio", fmt.Sprintf("%d", m.driver.Case().Session.TimestepRatio())))
	s.WriteString(row("origin energy", fmt.Sprintf("%.5g", last.Origin.TotalEnergy())))
	s.WriteString(row("destination energy", fmt.Sprintf("%.5g", last.Destination.TotalEnergy())))
	s.WriteString(row("interface mismatch", fmt.Sprintf("%.3e", last.InterfaceMismatch)))
	s.WriteString(row("exaggeration", fmt.Sprintf("x%g", m.exaggeration)))
	s.WriteString(KeyHint.Render("\nSP:Pause N:Step TAB:Series\n+/-:Scale T:Theme ?:Help Q:Quit"))

	canvasView := canvasStyle.Render(m.canvas.String())
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
	if m.showHelp {
		return helpText + "\n\n" + mainView
	}
	return mainView
}

func (m LiveModel) status() string {
	switch {
	case m.err != nil:
		return StatusFailed.Render("FAILED: " + m.err.Error())
	case m.done:
		return StatusRunning.Render("DONE")
	case !m.running:
		return StatusPaused.Render("PAUSED")
	}
	return StatusRunning.Render(Spinner(m.frame) + " RUNNING")
}

const helpText = `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  Space  - Pause/Resume               ║
║  N      - Single coarse step         ║
║  Tab    - Cycle plotted series       ║
║  +/-    - Displacement scale         ║
║  T      - Cycle themes               ║
║  ?      - Toggle this help           ║
║  Q      - Quit                       ║
╚══════════════════════════════════════╝`

// canvasPair draws both structures on one canvas, colored per domain.
type canvasPair struct {
	origin, destination *Canvas
	parts               [2]*model.ModelPart
}

func newCanvasPair(d *analysis.Driver) *canvasPair {
	c := d.Case()
	p := &canvasPair{
		origin:      NewCanvas(canvasWidth, canvasHeight),
		destination: NewCanvas(canvasWidth, canvasHeight),
		parts:       [2]*model.ModelPart{c.Origin.ModelPart(), c.Destination.ModelPart()},
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, part := range p.parts {
		for _, n := range part.Nodes() {
			minX, maxX = math.Min(minX, n.X), math.Max(maxX, n.X)
			minY, maxY = math.Min(minY, n.Y), math.Max(maxY, n.Y)
		}
	}
	padX, padY := 0.15*(maxX-minX), 0.5*(maxY-minY)+0.05
	for _, cv := range []*Canvas{p.origin, p.destination} {
		cv.SetWindow(minX-padX, minY-padY, maxX+padX, maxY+padY)
	}
	return p
}

func (p *canvasPair) draw(scale float64) {
	for i, cv := range []*Canvas{p.origin, p.destination} {
		cv.Clear()
		for _, n := range p.parts[i].Nodes() {
			cv.Point(n.X+scale*n.Displacement, n.Y)
		}
	}
}

// String overlays the two canvases cell by cell.
func (p *canvasPair) String() string {
	var b strings.Builder
	for r := range p.origin.Grid {
		for c := range p.origin.Grid[r] {
			a, d := p.origin.Grid[r][c], p.destination.Grid[r][c]
			switch {
			case d == brailleBlank:
				b.WriteString(OriginStyle.Render(string(a)))
			case a == brailleBlank:
				b.WriteString(DestStyle.Render(string(d)))
			default:
				b.WriteString(Title.Render(string(a | d)))
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// RunLive begins the driver and runs the interactive program. The driver
// result is returned once the program exits.
func RunLive(d *analysis.Driver, cfg analysis.RunConfig, fps int) (*analysis.Result, error) {
	if err := d.Begin(cfg); err != nil {
		return nil, err
	}
	final, err := tea.NewProgram(NewLiveModel(d, cfg.EndTime, fps), tea.WithAltScreen()).Run()
	if err != nil {
		d.End()
		return nil, err
	}
	return finishLive(d, final)
}

// finishLive ends a driver the live model left running, for instance when
// the user quit early.
func finishLive(d *analysis.Driver, final tea.Model) (*analysis.Result, error) {
	lm, _ := final.(LiveModel)
	if !lm.done {
		if _, err := d.End(); err != nil && lm.err == nil {
			lm.err = err
		}
	}
	return d.Result(), lm.err
}
