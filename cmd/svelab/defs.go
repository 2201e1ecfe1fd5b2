package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"svelab/internal/driver"
	"svelab/internal/elab"
	"svelab/internal/project/dag"
)

var defsCmd = &cobra.Command{
	Use:   "defs [flags] <design|directory>",
	Short: "List definitions with their parameters and instance counts",
	Args:  cobra.ExactArgs(1),
	RunE:  runDefs,
}

func init() {
	defsCmd.Flags().String("format", "text", "output format (text|json)")
	defsCmd.Flags().StringSlice("top", nil, "top-level modules")
}

type defRow struct {
	Name         string   `json:"name"`
	Kind         string   `json:"kind"`
	Params       []string `json:"params,omitempty"`
	Ports        []string `json:"ports,omitempty"`
	Instances    int      `json:"instances"`
	Instantiated bool     `json:"instantiated"`
	// Wave is the dependency level, leaves at 0; -1 marks recursion.
	Wave int `json:"wave"`
}

func runDefs(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be text or json)", format)
	}
	tops, err := cmd.Flags().GetStringSlice("top")
	if err != nil {
		return fmt.Errorf("failed to get top flag: %w", err)
	}

	tgt, err := driver.ResolveTarget(args[0])
	if err != nil {
		return err
	}
	opts, err := tgt.Options(driver.Options{Name: args[0], TopModules: tops})
	if err != nil {
		return err
	}
	res, err := driver.Elaborate(cmd.Context(), opts)
	if err != nil {
		return err
	}

	rows := collectDefs(res.Compilation)
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	printDefs(cmd.OutOrStdout(), rows)
	return nil
}

func collectDefs(comp *elab.Compilation) []defRow {
	idx := dag.BuildIndex(comp.Tree())
	topo := dag.ToposortKahn(dag.BuildGraph(idx, comp.Tree()))
	waves := make(map[string]int, len(idx.IDToName))
	for i, batch := range topo.Batches {
		for _, name := range idx.Names(batch) {
			waves[name] = i
		}
	}
	for _, name := range idx.Names(topo.Cycles) {
		waves[name] = -1
	}

	rows := make([]defRow, 0, len(comp.Definitions()))
	for _, def := range comp.Definitions() {
		row := defRow{
			Name:         def.Name,
			Kind:         def.KindString(),
			Ports:        def.PortNames(),
			Instances:    len(comp.Instances(def)),
			Instantiated: def.IsInstantiated(),
			Wave:         waves[def.Name],
		}
		for _, p := range def.Params {
			if p.IsLocal {
				continue
			}
			row.Params = append(row.Params, p.Name)
		}
		rows = append(rows, row)
	}
	return rows
}

func printDefs(out io.Writer, rows []defRow) {
	nameWidth := len("NAME")
	for _, r := range rows {
		nameWidth = max(nameWidth, len(r.Name))
	}
	fmt.Fprintf(out, "%-*s  %-9s  %5s  %4s  %s\n", nameWidth, "NAME", "KIND", "INST", "WAVE", "PARAMS")
	for _, r := range rows {
		params := strings.Join(r.Params, ",")
		if params == "" {
			params = "-"
		}
		wave := "cyc"
		if r.Wave >= 0 {
			wave = strconv.Itoa(r.Wave)
		}
		fmt.Fprintf(out, "%-*s  %-9s  %5d  %4s  %s\n", nameWidth, r.Name, r.Kind, r.Instances, wave, params)
	}
}
