package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/san-kum/etherm/internal/builder"
	"github.com/san-kum/etherm/internal/config"
	"github.com/san-kum/etherm/internal/logging"
	"github.com/san-kum/etherm/internal/metrics"
	"github.com/san-kum/etherm/internal/storage"
)

var (
	dataDir    string
	configFile string
	logLevel   string
	logFormat  string
	metricsOut string
	threads    int

	// static
	iterationCap int
	unit         string

	// transient
	duration   float64
	step       float64
	morOrder   int
	integrator string
	probes     []int
	limit      float64
	scales     []float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "etherm",
		Short:        "thermal network simulation",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".etherm", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&metricsOut, "metrics-out", "", "write prometheus metrics to this file")
	rootCmd.PersistentFlags().IntVar(&threads, "threads", 0, "builder workers (0 = all cpus)")

	staticCmd := &cobra.Command{
		Use:   "static [preset]",
		Short: "solve the steady state",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runStatic,
	}
	staticCmd.Flags().IntVar(&iterationCap, "cap", config.DefaultIterationCap, "picard iteration cap")
	staticCmd.Flags().StringVar(&unit, "unit", "C", "temperature unit (K, C)")

	transientCmd := &cobra.Command{
		Use:   "transient [preset]",
		Short: "integrate the heat equation over time",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTransient,
	}
	transientFlags(transientCmd)
	transientCmd.Flags().Float64Var(&limit, "limit", 0, "temperature limit for the within_limit metric")

	sweepCmd := &cobra.Command{
		Use:   "sweep [preset]",
		Short: "run transients with scaled excitation in parallel",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	transientFlags(sweepCmd)
	sweepCmd.Flags().Float64SliceVar(&scales, "scale", []float64{0.5, 1, 2}, "excitation scale factors")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show run summary",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot probe series or the static profile",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in models",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("presets:")
			for _, p := range config.ListPresets() {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	rootCmd.AddCommand(staticCmd, transientCmd, sweepCmd, listCmd, showCmd, plotCmd, exportCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func transientFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration in seconds")
	cmd.Flags().Float64Var(&step, "dt", config.DefaultStep, "integrator step")
	cmd.Flags().IntVar(&morOrder, "mor", 0, "reduced order (0 = full order)")
	cmd.Flags().StringVar(&integrator, "integrator", "rk45", "integrator (rk45, rk4, euler)")
	cmd.Flags().IntSliceVar(&probes, "probe", nil, "probe element index (repeatable)")
	cmd.Flags().StringVar(&unit, "unit", "C", "temperature unit (K, C)")
}

// env carries what every solve command shares.
type env struct {
	log   *slog.Logger
	reg   *metrics.Registry
	store *storage.Store
	cfg   *config.Config
}

func (e *env) builderOptions() builder.Options {
	return builder.Options{Workers: e.cfg.Threads, Metrics: e.reg, Logger: e.log}
}

// finish writes the metrics textfile when requested.
func (e *env) finish() {
	if metricsOut == "" {
		return
	}
	if err := e.reg.WriteTextfile(metricsOut); err != nil {
		e.log.Warn("metrics dump skipped", "path", metricsOut, "err", err)
	}
}

func newLogger() (*slog.Logger, error) {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	return logging.New(os.Stderr, level, logging.Format(logFormat))
}

// setup loads the config from --config or a preset name and prepares logging,
// metrics and storage.
func setup(cmd *cobra.Command, args []string) (*env, error) {
	log, err := newLogger()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(log)

	var cfg *config.Config
	switch {
	case configFile != "":
		cfg, err = config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	case len(args) == 1:
		cfg = config.GetPreset(args[0])
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
		}
	default:
		return nil, errors.New("need a preset name or --config")
	}
	if cmd.Flags().Changed("threads") {
		cfg.Threads = threads
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return nil, err
	}
	return &env{log: log, reg: metrics.NewRegistry(), store: st, cfg: cfg}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
