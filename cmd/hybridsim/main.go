package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	dataDir      string
	logLevel     string
	dt           float64
	duration     float64
	integrator   string
	solver       string
	configFile   string
	preset       string
	params       map[string]string
	recordEach   int
	jsonOut      bool
	sweepParam   string
	sweepVals    []float64
	maxPlots     int
	frameRate    int
	gridSpec     []string
	searchMetric string
)

// main registers the commands and executes the root command. It exits
// with status 1 if the command returns an error.
func main() {
	rootCmd := &cobra.Command{
		Use:   "hybridsim",
		Short: "hybrid continuous/discrete simulation kernel",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(level)
			logrus.SetOutput(os.Stderr)
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".hybridsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warning", "log level (debug, info, warning, error)")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "run simulation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)
	runCmd.Flags().BoolVar(&jsonOut, "json", false, "write the trajectory as JSON to stdout")

	sweepCmd := &cobra.Command{
		Use:   "sweep [model]",
		Short: "run one simulation per parameter value in parallel",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	addRunFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "", "parameter to sweep")
	sweepCmd.Flags().Float64SliceVar(&sweepVals, "values", nil, "parameter values")
	_ = sweepCmd.MarkFlagRequired("param")
	_ = sweepCmd.MarkFlagRequired("values")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&maxPlots, "max", 6, "maximum number of states to plot")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	liveCmd := &cobra.Command{
		Use:   "live [model]",
		Short: "run simulation with a live terminal view",
		Args:  cobra.MaximumNArgs(1),
		RunE:  liveRun,
	}
	addRunFlags(liveCmd)
	liveCmd.Flags().IntVar(&frameRate, "fps", 30, "view refresh rate")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "summarize and estimate periods of a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a yaml scenario of simulations",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	searchCmd := &cobra.Command{
		Use:   "search [model]",
		Short: "grid search parameters minimizing a metric",
		Args:  cobra.MaximumNArgs(1),
		RunE:  searchParams,
	}
	addRunFlags(searchCmd)
	searchCmd.Flags().StringArrayVar(&gridSpec, "grid", nil, "parameter grid name=v1,v2,... (repeatable)")
	searchCmd.Flags().StringVar(&searchMetric, "metric", "events", "metric to minimize")
	_ = searchCmd.MarkFlagRequired("grid")

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list available models",
		RunE:  listModels,
	}

	backendsCmd := &cobra.Command{
		Use:   "backends",
		Short: "list linear solver backends",
		RunE:  listBackends,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE:  listPresets,
	}

	rootCmd.AddCommand(runCmd, sweepCmd, liveCmd, listCmd, plotCmd, analyzeCmd, exportCmd, scenarioCmd, searchCmd)
	rootCmd.AddCommand(modelsCmd, backendsCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&dt, "dt", 0, "timestep")
	cmd.Flags().Float64Var(&duration, "time", 0, "duration")
	cmd.Flags().StringVar(&integrator, "integrator", "", "integrator (euler, rk4)")
	cmd.Flags().StringVar(&solver, "solver", "", "linear solver backend")
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringToStringVar(&params, "set", nil, "model parameter name=value")
	cmd.Flags().IntVar(&recordEach, "record-every", 0, "keep every nth step")
}
