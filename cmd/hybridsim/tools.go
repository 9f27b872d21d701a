package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/hybridsim/internal/analysis"
	"github.com/san-kum/hybridsim/internal/automation"
	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/experiment"
	"github.com/san-kum/hybridsim/internal/optim"
	"github.com/san-kum/hybridsim/internal/storage"
	"github.com/san-kum/hybridsim/internal/tui"
)

func liveRun(cmd *cobra.Command, args []string) error {
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
	result, runErr := tui.RunLive(ctx, exp.GetSimulator(), exp.SimConfig(), stateCaptions[cfg.Model], frameRate)
	elapsed := time.Since(start)
	if result == nil {
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

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	rows, times, err := st.LoadStates(runID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no data to analyze")
	}
	states := make([]dynamo.State, len(rows))
	for i, row := range rows {
		states[i] = row
	}

	fmt.Println(titleStyle.Render(meta.ID))
	for i := range states[0] {
		r, err := analysis.Analyze(times, states, i)
		if err != nil {
			return err
		}
		name := fmt.Sprintf("x%d", i)
		if names := stateCaptions[meta.Model]; i < len(names) {
			name = names[i]
		}
		fmt.Println(labelStyle.Render(name))
		fmt.Println(field("  range", fmt.Sprintf("%.6g .. %.6g", r.Min, r.Max)))
		fmt.Println(field("  mean", fmt.Sprintf("%.6g ± %.3g", r.Mean, r.StdDev)))
		if r.DominantPeriod > 0 {
			fmt.Println(field("  spectral period", fmt.Sprintf("%.6g", r.DominantPeriod)))
		}
		if r.CrossingPeriod > 0 {
			fmt.Println(field("  crossing period", fmt.Sprintf("%.6g", r.CrossingPeriod)))
		}
	}
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	results, runErr := automation.RunScenario(ctx, scenario, nil, st)

	title := scenario.Name
	if title == "" {
		title = args[0]
	}
	fmt.Println(titleStyle.Render(title))
	for _, r := range results {
		status := okStyle.Render("ok")
		switch {
		case r.Err != nil:
			status = errorStyle.Render(r.Err.Error())
		case r.Result != nil && r.Result.Terminated():
			status = okStyle.Render("terminated: " + r.Result.Termination.Msg)
		}
		line := fmt.Sprintf("%-28s %s", r.Name, status)
		if r.RunID != "" {
			line += "  " + labelStyle.Render(r.RunID)
		}
		fmt.Println(line)
	}
	return runErr
}

// parseGrid reads name=v1,v2,... entries.
func parseGrid(entries []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(entries))
	ranges := make([][]float64, 0, len(entries))
	for _, e := range entries {
		name, list, ok := strings.Cut(e, "=")
		if !ok || name == "" {
			return nil, nil, fmt.Errorf("grid entry %q must be name=v1,v2", e)
		}
		var values []float64
		for _, s := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("grid %s: %w", name, err)
			}
			values = append(values, v)
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}
	return names, ranges, nil
}

func searchParams(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	names, ranges, err := parseGrid(gridSpec)
	if err != nil {
		return err
	}
	g, err := optim.NewGridSearch(names, ranges, nil)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	best, all, err := g.Search(ctx, cfg, searchMetric)
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("%s: minimize %s over %d points", cfg.Model, searchMetric, len(all))))
	for _, c := range all {
		value := fmt.Sprintf("%.6g", c.Value)
		if c.Err != nil {
			value = errorStyle.Render("failed")
		}
		fmt.Printf("%-40s %s\n", formatParams(c.Params), value)
	}
	fmt.Println(okStyle.Render("best: " + formatParams(best.Params) + fmt.Sprintf(" -> %.6g", best.Value)))
	return nil
}

func formatParams(p map[string]float64) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, p[k])
	}
	return strings.Join(parts, " ")
}
