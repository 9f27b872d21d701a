// Package optim searches model parameters for the run that minimizes a
// metric.
package optim

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/hybridsim/internal/config"
	"github.com/san-kum/hybridsim/internal/experiment"
)

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	registry   *experiment.Registry
}

// Candidate is one evaluated point of the grid. Err is set when the run
// failed; such candidates never win.
type Candidate struct {
	Params map[string]float64
	Value  float64
	Err    error
}

func NewGridSearch(params []string, ranges [][]float64, registry *experiment.Registry) (*GridSearch, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("grid search needs at least one parameter")
	}
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("%d parameters but %d ranges", len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("parameter %s has no values", params[i])
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges, registry: registry}, nil
}

// Search runs base once per grid point and returns the candidate with the
// smallest value of metric along with every evaluated candidate.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, metric string) (Candidate, []Candidate, error) {
	var all []Candidate
	if err := g.searchRecursive(ctx, 0, make(map[string]float64), base, metric, &all); err != nil {
		return Candidate{}, all, err
	}

	best := Candidate{Value: math.Inf(1)}
	found := false
	for _, c := range all {
		if c.Err == nil && c.Value < best.Value {
			best = c
			found = true
		}
	}
	if !found {
		return Candidate{}, all, fmt.Errorf("no grid point produced metric %q", metric)
	}
	return best, all, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	base *config.Config,
	metric string,
	all *[]Candidate,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		c := Candidate{Params: current}
		c.Value, c.Err = g.evaluate(ctx, base, current, metric)
		if c.Err != nil {
			logrus.WithField("params", current).Warnf("grid point failed: %v", c.Err)
		}
		*all = append(*all, c)
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, base, metric, all); err != nil {
			return err
		}
	}
	return nil
}

func (g *GridSearch) evaluate(ctx context.Context, base *config.Config, params map[string]float64, metric string) (float64, error) {
	cfg := base.Clone()
	if cfg.Params == nil {
		cfg.Params = make(map[string]float64)
	}
	for k, v := range params {
		cfg.Params[k] = v
	}

	exp := experiment.New(cfg, g.registry)
	if err := exp.Setup(); err != nil {
		return 0, err
	}
	result, err := exp.Run(ctx)
	if err != nil {
		return 0, err
	}
	val, ok := result.Metrics[metric]
	if !ok {
		return 0, fmt.Errorf("metric %q not recorded", metric)
	}
	return val, nil
}
