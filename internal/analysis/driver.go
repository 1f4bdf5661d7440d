package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/san-kum/cosim/internal/config"
	"github.com/san-kum/cosim/internal/cosim"
	"github.com/san-kum/cosim/internal/experiment"
	"github.com/san-kum/cosim/internal/metrics"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrNoTime         = errors.New("analysis: no solver provides time")
	ErrSolveFailed    = errors.New("analysis: coupled solve reported failure")
	ErrInvalidRunTime = errors.New("analysis: end time must be after start time")
)

// StepError wraps a failure with the coarse step it happened in.
type StepError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.6g): %v", e.Step, e.Time, e.Wrapped)
}

func (e *StepError) Unwrap() error { return e.Wrapped }

type RunConfig struct {
	StartTime float64
	EndTime   float64
}

func RunConfigFrom(cfg *config.Config) RunConfig {
	return RunConfig{StartTime: cfg.ProblemData.StartTime, EndTime: cfg.ProblemData.EndTime}
}

type Observer interface {
	OnStep(s metrics.Sample)
}

type ObserverFunc func(metrics.Sample)

func (f ObserverFunc) OnStep(s metrics.Sample) { f(s) }

type Result struct {
	Name     string
	Ratio    int
	Steps    int
	Times    []float64
	Samples  []metrics.Sample
	Metrics  map[string]float64
	Duration time.Duration
}

type Driver struct {
	c         *experiment.Case
	metrics   []metrics.Metric
	observers []Observer
	logger    zerolog.Logger

	cfg    RunConfig
	result *Result
	begin  time.Time
	t      float64
	step   int
}

func NewDriver(c *experiment.Case, logger zerolog.Logger) *Driver {
	return &Driver{
		c:       c,
		metrics: metrics.Default(),
		logger:  logger.With().Str("case", c.Name).Logger(),
	}
}

func (d *Driver) AddMetric(m metrics.Metric) { d.metrics = append(d.metrics, m) }
func (d *Driver) AddObserver(o Observer)     { d.observers = append(d.observers, o) }

func (d *Driver) Case() *experiment.Case { return d.c }
func (d *Driver) Time() float64          { return d.t }

// Run advances the case from StartTime until EndTime. Cancellation is
// checked between coarse steps; the partial result is returned with the
// context error.
func (d *Driver) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if err := d.Begin(cfg); err != nil {
		return nil, err
	}
	for !d.Done() {
		select {
		case <-ctx.Done():
			d.finish()
			return d.result, ctx.Err()
		default:
		}
		if _, err := d.Step(); err != nil {
			d.finish()
			return d.result, err
		}
	}
	return d.End()
}

// Begin initializes the session and records the initial sample.
func (d *Driver) Begin(cfg RunConfig) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	d.cfg = cfg
	d.begin = time.Now()
	d.result = &Result{
		Name:    d.c.Name,
		Ratio:   d.c.Session.TimestepRatio(),
		Metrics: make(map[string]float64),
	}
	for _, m := range d.metrics {
		m.Reset()
	}
	if err := d.c.Session.Initialize(); err != nil {
		return err
	}
	d.t, d.step = cfg.StartTime, 0
	d.record()
	return nil
}

// Done reports whether EndTime is reached, up to round-off in the
// accumulated time.
func (d *Driver) Done() bool {
	eps := 1e-9 * math.Max(1, math.Abs(d.cfg.EndTime))
	return d.t >= d.cfg.EndTime-eps
}

// Step runs one coarse step and returns its sample.
func (d *Driver) Step() (metrics.Sample, error) {
	session := d.c.Session
	next := session.AdvanceInTime(d.t)
	if next == 0.0 {
		return metrics.Sample{}, &StepError{Step: d.step + 1, Time: d.t, Wrapped: ErrNoTime}
	}
	d.t = next
	d.step++

	if err := d.coarseStep(session); err != nil {
		return metrics.Sample{}, &StepError{Step: d.step, Time: d.t, Wrapped: err}
	}
	return d.record(), nil
}

// End finalizes the session and returns the result.
func (d *Driver) End() (*Result, error) {
	if err := d.c.Session.Finalize(); err != nil {
		return d.result, err
	}
	d.finish()
	d.logger.Info().
		Int("steps", d.result.Steps).
		Int("ratio", d.result.Ratio).
		Dur("elapsed", d.result.Duration).
		Float64("interface_mismatch", d.result.Metrics["interface_mismatch"]).
		Msg("run complete")
	return d.result, nil
}

// Result is the result so far, nil before Begin.
func (d *Driver) Result() *Result {
	if d.result == nil {
		return nil
	}
	d.finish()
	return d.result
}

func (d *Driver) coarseStep(s *cosim.Session) error {
	if err := s.InitializeSolutionStep(); err != nil {
		return err
	}
	if err := s.Predict(); err != nil {
		return err
	}
	ok, err := s.SolveSolutionStep()
	if err != nil {
		return err
	}
	if !ok {
		return ErrSolveFailed
	}
	if err := s.FinalizeSolutionStep(); err != nil {
		return err
	}
	return s.OutputSolutionStep()
}

func (d *Driver) record() metrics.Sample {
	sample := metrics.Sample{
		Time:        d.t,
		Step:        d.step,
		Origin:      d.c.Origin.Snapshot(),
		Destination: d.c.Destination.Snapshot(),
	}
	if m := d.c.Session.Mapper(); m != nil {
		sample.InterfaceMismatch = InterfaceMismatch(m)
	}
	result := d.result
	result.Steps = d.step
	result.Times = append(result.Times, d.t)
	result.Samples = append(result.Samples, sample)

	for _, m := range d.metrics {
		m.Observe(sample)
	}
	for _, o := range d.observers {
		o.OnStep(sample)
	}
	d.logger.Debug().
		Int("step", d.step).
		Float64("time", d.t).
		Float64("energy", sample.TotalEnergy()).
		Float64("mismatch", sample.InterfaceMismatch).
		Msg("coarse step")
	return sample
}

func (d *Driver) finish() {
	for _, m := range d.metrics {
		d.result.Metrics[m.Name()] = m.Value()
	}
	d.result.Duration = time.Since(d.begin)
}

func validateConfig(cfg RunConfig) error {
	if cfg.EndTime <= cfg.StartTime {
		return fmt.Errorf("%w (start %g, end %g)", ErrInvalidRunTime, cfg.StartTime, cfg.EndTime)
	}
	return nil
}

// InterfaceMismatch returns max |P v_B - v_A| over the mapper interfaces.
func InterfaceMismatch(m cosim.InterfaceMapper) float64 {
	origin, err := m.GetInterfaceModelPart(0)
	if err != nil {
		return math.NaN()
	}
	dest, err := m.GetInterfaceModelPart(1)
	if err != nil {
		return math.NaN()
	}
	vb := mat.NewVecDense(dest.NumberOfNodes(), nil)
	for k, n := range dest.Nodes() {
		vb.SetVec(k, n.Velocity)
	}
	var pv mat.VecDense
	pv.MulVec(m.MappingMatrix(), vb)

	worst := 0.0
	for i, n := range origin.Nodes() {
		worst = math.Max(worst, math.Abs(pv.AtVec(i)-n.Velocity))
	}
	return worst
}
