package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/san-kum/hybridsim/internal/config"
	"github.com/san-kum/hybridsim/internal/experiment"
	"github.com/san-kum/hybridsim/internal/integrators"
	"github.com/san-kum/hybridsim/internal/linsolve"
)

func listModels(cmd *cobra.Command, args []string) error {
	registry := experiment.NewRegistry()
	cfg := config.DefaultConfig()

	fmt.Println(titleStyle.Render("models"))
	for _, name := range registry.ListModels() {
		cfg.Model = name
		m, err := registry.GetModel(cfg)
		if err != nil {
			return err
		}
		dims := m.Dimensions()
		fmt.Printf("  %-18s %s  states=%d conditions=%d delays=%d\n",
			name, labelStyle.Render(m.Capabilities().String()), dims.States, dims.Conditions, dims.Delays)
	}
	fmt.Println()
	fmt.Println(field("integrators", strings.Join(integrators.Names(), ", ")))
	return nil
}

func listBackends(cmd *cobra.Command, args []string) error {
	nameCol := lipgloss.NewStyle().Width(14)
	fmt.Println(titleStyle.Render("linear solver backends"))
	for _, info := range linsolve.Table() {
		b, err := linsolve.NewBackend(info.Kind)
		if err != nil {
			return err
		}
		status := okStyle.Render("available")
		if !b.Available() {
			status = warnStyle.Render("placeholder")
		}
		fmt.Printf("  %d  %s %-12s %s\n", int(info.Kind), nameCol.Render(info.Name), status, labelStyle.Render(info.Description))
	}
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	presets := config.ListPresets(args[0])
	if len(presets) == 0 {
		fmt.Printf("no presets for model: %s\n", args[0])
		return nil
	}
	fmt.Println(titleStyle.Render("presets for " + args[0]))
	for _, p := range presets {
		cfg := config.GetPreset(args[0], p)
		fmt.Printf("  %-12s dt=%g duration=%g solver=%s params=%v\n",
			p, cfg.Dt, cfg.Duration, cfg.Settings().LinearSolver, cfg.Params)
	}
	return nil
}
