package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/san-kum/cosim/internal/analysis"
	"github.com/san-kum/cosim/internal/config"
	"github.com/san-kum/cosim/internal/cosim"
	"github.com/san-kum/cosim/internal/experiment"
	"github.com/san-kum/cosim/internal/export"
	"github.com/san-kum/cosim/internal/logging"
	"github.com/san-kum/cosim/internal/storage"
	"github.com/san-kum/cosim/internal/viz"
	"github.com/spf13/cobra"
)

// exit codes
const (
	exitError  = 1
	exitConfig = 4
)

var (
	dataDir    string
	logLevel   string
	logFormat  string
	configFile string
	preset     string
	ratio      float64
	endTime    float64
	equilib    string
	outputDir  string
	noOutput   bool
	sweepDir   string
	sweepQuiet bool
	noSave     bool
	frameRate  int
	ratios     string
	parallel   int
	series     string
	exportPath string
	plotHeight int
	svgPath    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "cosim",
		Short:         "FETI coupled structural dynamics with sub-cycling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".cosim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error); default follows problem_data.echo_level")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatConsole, "log format (console, json)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a coupled problem",
		Args:  cobra.NoArgs,
		RunE:  runCoupled,
	}
	addProblemFlags(runCmd)
	runCmd.Flags().StringVar(&outputDir, "output", ".", "root directory of the coupling operation output")
	runCmd.Flags().BoolVar(&noOutput, "no-output", false, "skip the configured coupling operations")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a coupled problem with live visualization",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addProblemFlags(liveCmd)
	liveCmd.Flags().IntVar(&frameRate, "fps", 30, "coarse steps per second")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run one problem over several timestep ratios in parallel",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addProblemFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&ratios, "ratios", "1,2,4,8", "comma separated timestep ratios")
	sweepCmd.Flags().IntVar(&parallel, "parallel", 0, "concurrent cases (0 for unlimited)")
	sweepCmd.Flags().StringVar(&sweepDir, "output", "sweep", "root directory of the coupling operation output")
	sweepCmd.Flags().BoolVar(&sweepQuiet, "no-output", true, "skip the configured coupling operations")
	sweepCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the runs")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the history of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&series, "series", "energy", "series to plot ("+strings.Join(viz.SeriesNames(), ", ")+")")
	plotCmd.Flags().IntVar(&plotHeight, "height", 12, "plot height")
	plotCmd.Flags().StringVar(&svgPath, "svg", "", "also write the chart as SVG to this file")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a stored run to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&exportPath, "out", "o", "-", "output file, - for stdout")

	deleteCmd := &cobra.Command{
		Use:   "delete [run_id]",
		Short: "delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  deleteRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("available presets:")
			for _, p := range config.ListPresets() {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "validate a configuration and print it resolved",
		Args:  cobra.NoArgs,
		RunE:  validateConfig,
	}
	addProblemFlags(validateCmd)

	rootCmd.AddCommand(runCmd, liveCmd, sweepCmd, listCmd, plotCmd, exportJSONCmd, deleteCmd, presetsCmd, validateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, viz.StatusFailed.Render("error: ")+err.Error())
		var cfgErr *cosim.ConfigError
		if errors.As(err, &cfgErr) || errors.Is(err, config.ErrInvalidConfig) {
			os.Exit(exitConfig)
		}
		os.Exit(exitError)
	}
}

func addProblemFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().Float64Var(&ratio, "ratio", 1, "timestep ratio; the destination time step follows")
	cmd.Flags().Float64Var(&endTime, "end-time", config.DefaultEndTime, "end time")
	cmd.Flags().StringVar(&equilib, "equilibrium", "VELOCITY", "equilibrium variable (VELOCITY, ACCELERATION)")
}

// loadConfig starts from the file, the preset or the defaults, then applies
// the flags that were set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "" && preset != "":
		return nil, fmt.Errorf("%w: --config and --preset are exclusive", config.ErrInvalidConfig)
	case configFile != "":
		c, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c
	case preset != "":
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("%w: unknown preset %s (available: %v)", config.ErrInvalidConfig, preset, config.ListPresets())
		}
	default:
		cfg = config.DefaultConfig()
	}

	if cmd.Flags().Changed("ratio") {
		cfg.SetTimestepRatio(ratio)
	}
	if cmd.Flags().Changed("end-time") {
		cfg.ProblemData.EndTime = endTime
	}
	if cmd.Flags().Changed("equilibrium") {
		cfg.SolverSettings.EquilibriumVariable = strings.ToUpper(equilib)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (zerolog.Logger, error) {
	level := logLevel
	if level == "" {
		level = logging.EchoLevel(cfg.ProblemData.EchoLevel).String()
	}
	return logging.NewLogger(os.Stderr, logging.Options{Level: level, Format: logFormat})
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runCoupled(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	c, err := experiment.Build(cfg, experiment.Options{OutputRoot: outputDir, NoOutput: noOutput, Logger: logger})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	res, runErr := analysis.NewDriver(c, logger).Run(ctx, analysis.RunConfigFrom(cfg))
	if res == nil {
		return runErr
	}
	fmt.Println(viz.Summary(res))

	if runErr != nil {
		return runErr
	}
	if noSave {
		return nil
	}
	return saveRun(cmd.Context(), cfg, res)
}

func saveRun(ctx context.Context, cfg *config.Config, res *analysis.Result) error {
	st, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := st.Save(ctx, cfg, res)
	if err != nil {
		return err
	}
	fmt.Printf("saved: %s\n", id)
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// the terminal belongs to the live view
	logger := zerolog.Nop()

	c, err := experiment.Build(cfg, experiment.Options{NoOutput: true, Logger: logger})
	if err != nil {
		return err
	}
	res, err := viz.RunLive(analysis.NewDriver(c, logger), analysis.RunConfigFrom(cfg), frameRate)
	if err != nil {
		return err
	}
	fmt.Println(viz.Summary(res))
	return nil
}

func parseRatios(s string) ([]int, error) {
	var out []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		r, err := strconv.Atoi(field)
		if err != nil || r < 1 {
			return nil, &cosim.ConfigError{Option: "ratios", Value: field, Wrapped: cosim.ErrNonPositiveRatio}
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no ratios given", config.ErrInvalidConfig)
	}
	return out, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rs, err := parseRatios(ratios)
	if err != nil {
		return err
	}
	logger, err := newLogger(base)
	if err != nil {
		return err
	}

	cfgs := analysis.RatioSweep(base, rs)
	for _, cfg := range cfgs {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("%s: %w", cfg.Name, err)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	results, err := analysis.Sweep(ctx, cfgs, experiment.Options{OutputRoot: sweepDir, NoOutput: sweepQuiet, Logger: logger}, parallel)
	if err != nil {
		return err
	}

	fmt.Println(viz.HeaderStyle.Render(fmt.Sprintf("%-28s %5s %6s %14s %14s %12s", "CASE", "RATIO", "STEPS", "MISMATCH", "ENERGY DRIFT", "ELAPSED")))
	for _, r := range results {
		fmt.Printf("%-28s %5d %6d %14.3e %14.3e %12s\n",
			r.Name, r.Ratio, r.Steps, r.Metrics["interface_mismatch"], r.Metrics["energy_drift"], r.Duration.Round(time.Microsecond))
	}
	if noSave {
		return nil
	}
	for i, r := range results {
		if err := saveRun(ctx, cfgs[i], r); err != nil {
			return err
		}
	}
	return nil
}

func openStore() (*storage.Store, error) {
	return storage.Open(dataDir)
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.List(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Println(viz.RunTable(runs))
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	meta, err := st.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	samples, err := st.LoadHistory(meta.ID)
	if err != nil {
		return err
	}
	chart, err := viz.Plot(samples, series, 80, plotHeight)
	if err != nil {
		return err
	}
	fmt.Println(viz.Title.Render(fmt.Sprintf("%s (ratio %d)", meta.Name, meta.TimestepRatio)))
	fmt.Println(chart)

	if svgPath == "" {
		return nil
	}
	f, err := os.Create(svgPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := export.SeriesSVG(f, samples, series, 800, 300); err != nil {
		return err
	}
	return f.Close()
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	meta, err := st.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if err := st.ExportRun(meta, exportPath); err != nil {
		return err
	}
	if exportPath != "-" {
		fmt.Fprintf(os.Stderr, "exported %s to %s\n", meta.ID, exportPath)
	}
	return nil
}

func deleteRun(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	meta, err := st.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if err := st.Delete(cmd.Context(), meta.ID); err != nil {
		return err
	}
	fmt.Printf("deleted: %s\n", meta.ID)
	return nil
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	data, err := config.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	fmt.Fprintln(os.Stderr, viz.StatusRunning.Render("configuration is valid"))
	return nil
}
