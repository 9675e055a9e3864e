package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/freight-sim/freight-sim/sim"
	"github.com/freight-sim/freight-sim/sim/eventlog"
	"github.com/freight-sim/freight-sim/sim/scenario"
	"github.com/freight-sim/freight-sim/sim/trace"
)

var (
	scenarioPath string  // Scenario YAML file
	seed         int64   // Overrides the scenario seed when set
	horizon      float64 // Overrides the scenario horizon when set (hours)
	logLevel     string  // Log verbosity level
	traceLevel   string  // Trace verbosity: none, summary, events
	eventLogPath string  // zstd JSONL event log output, empty disables it
	indexPath    string  // SQLite event index output, empty disables it
	summaryPath  string  // JSON run summary output, empty disables it
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "freight-sim",
	Short: "Discrete-event simulator for maritime freight markets",
}

// runOptions are the flag values a run depends on.
type runOptions struct {
	Scenario   string
	Seed       *int64
	Horizon    *float64
	TraceLevel string
	EventLog   string
	Index      string
}

// runResult is what a finished run hands back to the commands.
type runResult struct {
	Built   *scenario.Built
	Trace   *trace.SimulationTrace
	Summary *trace.TraceSummary
}

func optionsFromFlags(cmd *cobra.Command) runOptions {
	opts := runOptions{
		Scenario:   scenarioPath,
		TraceLevel: traceLevel,
		EventLog:   eventLogPath,
		Index:      indexPath,
	}
	if cmd.Flags().Changed("seed") {
		opts.Seed = &seed
	}
	if cmd.Flags().Changed("horizon") {
		opts.Horizon = &horizon
	}
	return opts
}

func setUpLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// loadAndBuild loads the scenario, applies flag overrides and builds it.
func loadAndBuild(opts runOptions) (*scenario.Built, error) {
	spec, err := scenario.LoadScenario(opts.Scenario)
	if err != nil {
		return nil, err
	}
	if opts.Seed != nil {
		logrus.Infof("seed %d overrides scenario seed %d", *opts.Seed, spec.Seed)
		spec.Seed = *opts.Seed
	}
	if opts.Horizon != nil {
		spec.Horizon = *opts.Horizon
	}
	return scenario.Build(spec)
}

// simulate builds and runs a scenario with the configured outputs attached.
// extra observers are registered after the built-in ones; done, if not nil,
// is called from the simulating goroutine once the run is over.
func simulate(ctx context.Context, opts runOptions, done func(*sim.Simulator, error), extra ...sim.EventObserver) (*runResult, error) {
	if !trace.IsValidTraceLevel(opts.TraceLevel) {
		return nil, fmt.Errorf("invalid trace level %q; valid: none, summary, events", opts.TraceLevel)
	}
	built, err := loadAndBuild(opts)
	if err != nil {
		return nil, err
	}
	s := built.Simulator

	level := trace.TraceLevel(opts.TraceLevel)
	if level == "" || level == trace.TraceLevelNone {
		level = trace.TraceLevelSummary
	}
	tr := trace.NewSimulationTrace(level)
	s.RegisterObserver(tr)

	var closers []io.Closer
	if opts.EventLog != "" {
		w, err := eventlog.NewJSONLZstdWriter(opts.EventLog)
		if err != nil {
			return nil, fmt.Errorf("opening event log: %w", err)
		}
		s.RegisterObserver(w)
		closers = append(closers, w)
	}
	if opts.Index != "" {
		idx, err := eventlog.OpenSQLite(opts.Index)
		if err != nil {
			closeAll(closers)
			return nil, fmt.Errorf("opening event index: %w", err)
		}
		s.RegisterObserver(idx)
		closers = append(closers, idx)
	}
	for _, o := range extra {
		s.RegisterObserver(o)
	}

	start := time.Now()
	runErr := s.Run(ctx)
	if done != nil {
		done(s, runErr)
	}
	closeErr := closeAll(closers)
	logrus.Infof("Simulation took %s", time.Since(start))

	result := &runResult{Built: built, Trace: tr, Summary: trace.Summarize(tr, s.Authority())}
	return result, errors.Join(runErr, closeErr)
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for _, c := range closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func writeSummary(path string, summary *trace.TraceSummary) error {
	b, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

// printCompanies writes the per-company contract table.
func printCompanies(w io.Writer, r *runResult) {
	fmt.Fprintln(w, "=== Companies ===")
	for _, c := range r.Built.Companies {
		cs, ok := r.Summary.Companies[c.Name()]
		if !ok {
			cs = &trace.CompanySummary{}
		}
		fmt.Fprintf(w, "%-20s: %d contracts, %d fulfilled, income %.2f\n", c.Name(), cs.Contracts, cs.Fulfilled, cs.Income)
	}
}

// runCmd executes the simulation of a scenario
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a freight market scenario",
	Run: func(cmd *cobra.Command, args []string) {
		setUpLogging()
		if scenarioPath == "" {
			logrus.Fatalf("Scenario not provided. Exiting simulation.")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		result, err := simulate(ctx, optionsFromFlags(cmd), nil)
		if result == nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		if err != nil {
			logrus.Errorf("Simulation ended with errors: %v", err)
		}
		result.Built.Simulator.Metrics().Print(os.Stdout)
		printCompanies(os.Stdout, result)
		if summaryPath != "" {
			if err := writeSummary(summaryPath, result.Summary); err != nil {
				logrus.Fatalf("Writing summary: %v", err)
			}
		}
		logrus.Info("Simulation complete.")
	},
}

// validateCmd checks a scenario without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a scenario file",
	Run: func(cmd *cobra.Command, args []string) {
		setUpLogging()
		built, err := loadAndBuild(optionsFromFlags(cmd))
		if err != nil {
			logrus.Fatalf("Invalid scenario: %v", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "scenario ok: %d companies, %d vessels, %d trading times\n",
			len(built.Companies), len(built.Simulator.Vessels()), len(built.Cargo.TradingTimes()))
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addScenarioFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&scenarioPath, "scenario", "", "Scenario YAML file")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Seed overriding the scenario seed")
	cmd.Flags().Float64Var(&horizon, "horizon", 0, "Simulation horizon in hours overriding the scenario (0 = until no events are left)")
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&traceLevel, "trace-level", "summary", "Trace level (none, summary, events)")
	cmd.Flags().StringVar(&eventLogPath, "event-log", "", "Write every event to this zstd-compressed JSONL file")
	cmd.Flags().StringVar(&indexPath, "index", "", "Index events, auctions and contracts in this SQLite database")
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	addScenarioFlags(runCmd)
	addOutputFlags(runCmd)
	runCmd.Flags().StringVar(&summaryPath, "summary", "", "Write the run summary as JSON to this file")

	addScenarioFlags(validateCmd)

	addScenarioFlags(serveCmd)
	addOutputFlags(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "addr", ":8080", "HTTP listen address")
	serveCmd.Flags().BoolVar(&exitAfterRun, "exit-after-run", false, "Stop serving once the run is over")

	rootCmd.AddCommand(runCmd, validateCmd, serveCmd)
}
