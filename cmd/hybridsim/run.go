package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/hybridsim/internal/config"
	"github.com/san-kum/hybridsim/internal/experiment"
	"github.com/san-kum/hybridsim/internal/sim"
	"github.com/san-kum/hybridsim/internal/storage"
)

// resolveConfig layers defaults, the preset, the config file and the
// flags that were set explicitly, in that order.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if len(args) > 0 {
		cfg.Model = args[0]
	}

	if preset != "" {
		p := config.GetPreset(cfg.Model, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(cfg.Model))
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if len(args) > 0 && loaded.Model != args[0] {
			return nil, fmt.Errorf("config file is for %s, not %s", loaded.Model, args[0])
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("solver") {
		cfg.Kernel.LinearSolver = solver
	}
	if flags.Changed("record-every") {
		cfg.RecordEvery = recordEach
	}
	if len(params) > 0 {
		if cfg.Params == nil {
			cfg.Params = make(map[string]float64)
		}
		for k, v := range params {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("parameter %s: %w", k, err)
			}
			cfg.Params[k] = f
		}
	}

	return cfg, cfg.Validate()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	exp := experiment.New(cfg, nil)
	if err := exp.Setup(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	result, runErr := exp.Run(ctx)
	elapsed := time.Since(start)
	if result == nil {
		return runErr
	}

	if jsonOut {
		if err := storage.WriteJSON(os.Stdout, cfg, result); err != nil {
			return err
		}
		return runErr
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(cfg, result)
	if err != nil {
		return err
	}

	printSummary(cfg, result, runID, elapsed, runErr)
	return runErr
}

func printSummary(cfg *config.Config, result *sim.Result, runID string, elapsed time.Duration, runErr error) {
	lines := []string{
		titleStyle.Render(cfg.Model),
		field("run id", runID),
		field("integrator", cfg.Integrator),
		field("solver", cfg.Settings().LinearSolver),
		field("steps", result.StepsTaken),
		field("events", len(result.Events)),
		field("elapsed", elapsed.Round(time.Microsecond)),
	}

	switch {
	case runErr != nil:
		lines = append(lines, errorStyle.Render("stopped: "+runErr.Error()))
	case result.Terminated():
		lines = append(lines, okStyle.Render("terminated: "+result.Termination.Msg))
	default:
		lines = append(lines, okStyle.Render("completed"))
	}
	for _, a := range result.Assertions {
		lines = append(lines, warnStyle.Render("assertion: "+a.Error()))
	}
	if n := len(result.LinearFailures); n > 0 {
		lines = append(lines, warnStyle.Render(fmt.Sprintf("linear failures: %d", n)))
	}

	if len(result.Metrics) > 0 {
		lines = append(lines, "", titleStyle.Render("metrics"))
		names := make([]string, 0, len(result.Metrics))
		for name := range result.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			lines = append(lines, field(name, fmt.Sprintf("%.6g", result.Metrics[name])))
		}
	}

	fmt.Println(panelStyle.Render(strings.Join(lines, "\n")))
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	results, err := experiment.New(cfg, nil).Sweep(ctx, sweepParam, sweepVals)
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("%s sweep over %s", cfg.Model, sweepParam)))
	fmt.Printf("%-12s  %-14s  %-8s  %-10s\n", sweepParam, "final_x0", "events", "terminated")
	fmt.Println(strings.Repeat("-", 50))
	for i, res := range results {
		final := 0.0
		if x := res.Final(); len(x) > 0 {
			final = x[0]
		}
		fmt.Printf("%-12.6g  %14.6g  %8d  %-10v\n", sweepVals[i], final, len(res.Events), res.Terminated())
	}
	return nil
}
