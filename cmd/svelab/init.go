package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"svelab/internal/project"
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Create a svelab.toml manifest and a starter design",
	Long: `Create a svelab.toml manifest and rtl/top.toml in [path] (default: the
current directory). The directory is created when missing; an existing
manifest is never overwritten.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	target := "."
	if len(args) > 0 && args[0] != "" {
		target = args[0]
	}
	target, err := filepath.Abs(target)
	if err != nil {
		return err
	}
	if st, err := os.Stat(target); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %q: %w", target, err)
		}
	} else if !st.IsDir() {
		return fmt.Errorf("%q is not a directory", target)
	}

	manifestPath := filepath.Join(target, project.ManifestName)
	if _, err := os.Stat(manifestPath); err == nil {
		return fmt.Errorf("project already initialized: %s exists", manifestPath)
	}
	if err := os.WriteFile(manifestPath, []byte(defaultManifest), 0o600); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	designPath := filepath.Join(target, "rtl", "top.toml")
	createdDesign := false
	if _, err := os.Stat(designPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(designPath), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(designPath, []byte(defaultDesign), 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", designPath, err)
		}
		createdDesign = true
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Initialized svelab project in %s\n", target)
	fmt.Fprintf(out, "  - %s\n", project.ManifestName)
	if createdDesign {
		fmt.Fprintln(out, "  - rtl/top.toml")
	} else {
		fmt.Fprintln(out, "  - rtl/top.toml (existing)")
	}
	return nil
}

const defaultManifest = `# svelab project manifest
[design]
files = ["rtl/*.toml"]
top = ["top"]

[elab]
max_depth = 64

# Global overrides apply to top-level modules.
[params]

# Hierarchical overrides, for example "top.u0.W" = 16.
[overrides]
`

const defaultDesign = `[[module]]
name = "top"
members = [
  { kind = "net", name = "q", type = "logic [7:0]" },
  { kind = "inst", module = "counter", params = [".W(8)"], name = "u0", conns = [".q(q)"] },
]

[[module]]
name = "counter"
params = [ { name = "W", type = "int", default = "4" } ]
ports = [ { name = "q", dir = "output", type = "logic [W-1:0]" } ]
`
