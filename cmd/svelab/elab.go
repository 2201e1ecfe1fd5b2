package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"svelab/internal/diagfmt"
	"svelab/internal/driver"
	"svelab/internal/version"
)

var elabCmd = &cobra.Command{
	Use:   "elab [flags] <design|directory>...",
	Short: "Elaborate a design and report diagnostics",
	Long: `Elaborate one or more designs. A target is a design file, a directory
holding svelab.toml, or a plain directory whose design files are all loaded.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runElab,
}

func init() {
	elabCmd.Flags().StringSlice("top", nil, "top-level modules (default: every module nobody instantiates)")
	elabCmd.Flags().StringArrayP("param", "G", nil, "global parameter override NAME=VALUE")
	elabCmd.Flags().StringArray("override", nil, "hierarchical parameter override path.NAME=VALUE")
	elabCmd.Flags().String("dump", "", "print the elaborated hierarchy (text|json|msgpack)")
	elabCmd.Flags().String("format", "pretty", "diagnostic format (pretty|short|json|sarif)")
	elabCmd.Flags().Int("max-depth", 0, "maximum instance nesting depth (0 = default)")
	elabCmd.Flags().String("ui", "auto", "progress view (auto|on|off)")
	elabCmd.Flags().Bool("with-notes", false, "include diagnostic notes")
	elabCmd.Flags().String("path-mode", "auto", "file paths in diagnostics (auto|absolute|relative|basename)")
	elabCmd.Flags().Bool("cache", false, "reuse dumps of unchanged designs from the user cache")
	elabCmd.Flags().Int("jobs", 0, "max parallel targets (0=auto)")
}

type elabFlags struct {
	format    string
	dump      string
	ui        uiMode
	withNotes bool
	pathMode  diagfmt.PathMode
	jobs      int
	timings   bool
}

func readElabFlags(cmd *cobra.Command) (driver.Options, elabFlags, error) {
	var (
		base  driver.Options
		flags elabFlags
		err   error
	)
	if base.TopModules, err = cmd.Flags().GetStringSlice("top"); err != nil {
		return base, flags, fmt.Errorf("failed to get top flag: %w", err)
	}
	params, err := cmd.Flags().GetStringArray("param")
	if err != nil {
		return base, flags, fmt.Errorf("failed to get param flag: %w", err)
	}
	overrides, err := cmd.Flags().GetStringArray("override")
	if err != nil {
		return base, flags, fmt.Errorf("failed to get override flag: %w", err)
	}
	base.Overrides = append(params, overrides...)
	if base.MaxDepth, err = cmd.Flags().GetInt("max-depth"); err != nil {
		return base, flags, fmt.Errorf("failed to get max-depth flag: %w", err)
	}
	if base.MaxDepth < 0 {
		return base, flags, fmt.Errorf("--max-depth must not be negative")
	}
	if base.MaxDiagnostics, err = cmd.Root().PersistentFlags().GetInt("max-diagnostics"); err != nil {
		return base, flags, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	if flags.timings, err = cmd.Root().PersistentFlags().GetBool("timings"); err != nil {
		return base, flags, fmt.Errorf("failed to get timings flag: %w", err)
	}
	base.EnableTimings = flags.timings

	useCache, err := cmd.Flags().GetBool("cache")
	if err != nil {
		return base, flags, fmt.Errorf("failed to get cache flag: %w", err)
	}
	if useCache {
		if base.Cache, err = driver.OpenDumpCache("svelab"); err != nil {
			return base, flags, err
		}
	}

	if flags.format, err = cmd.Flags().GetString("format"); err != nil {
		return base, flags, fmt.Errorf("failed to get format flag: %w", err)
	}
	switch flags.format {
	case "pretty", "short", "json", "sarif":
	default:
		return base, flags, fmt.Errorf("unknown format: %s", flags.format)
	}
	if flags.dump, err = cmd.Flags().GetString("dump"); err != nil {
		return base, flags, fmt.Errorf("failed to get dump flag: %w", err)
	}
	if flags.dump != "" {
		if _, err := driver.ParseDumpFormat(flags.dump); err != nil {
			return base, flags, err
		}
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return base, flags, fmt.Errorf("failed to get ui flag: %w", err)
	}
	if flags.ui, err = readUIMode(uiValue); err != nil {
		return base, flags, err
	}
	if flags.withNotes, err = cmd.Flags().GetBool("with-notes"); err != nil {
		return base, flags, fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	pathMode, err := cmd.Flags().GetString("path-mode")
	if err != nil {
		return base, flags, fmt.Errorf("failed to get path-mode flag: %w", err)
	}
	var ok bool
	if flags.pathMode, ok = diagfmt.ParsePathMode(pathMode); !ok {
		return base, flags, fmt.Errorf("unknown path mode: %s", pathMode)
	}
	if flags.jobs, err = cmd.Flags().GetInt("jobs"); err != nil {
		return base, flags, fmt.Errorf("failed to get jobs flag: %w", err)
	}
	return base, flags, nil
}

// runElab executes "elab": every target is resolved, elaborated (in
// parallel when there are several) and reported in argument order. The
// process exits with status 1 when any target has errors.
func runElab(cmd *cobra.Command, args []string) error {
	defer dumpTraceOnPanic()

	base, flags, err := readElabFlags(cmd)
	if err != nil {
		return err
	}
	runs := make([]driver.Options, 0, len(args))
	for _, arg := range args {
		tgt, err := driver.ResolveTarget(arg)
		if err != nil {
			return err
		}
		opts, err := tgt.Options(base)
		if err != nil {
			return err
		}
		opts.Name = arg
		runs = append(runs, opts)
	}

	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	cleanup, err := setupTracing(cmd)
	if err != nil {
		stopProfiling()
		return err
	}
	var results []*driver.Result
	if shouldUseTUI(flags.ui, len(runs)) {
		results, err = runElabWithUI(cmd.Context(), "elab", runs, flags.jobs)
	} else {
		results, err = driver.ElaborateAll(cmd.Context(), runs, flags.jobs)
	}
	cleanup()
	stopProfiling()
	if err != nil {
		return fmt.Errorf("elaboration failed: %w", err)
	}

	colored, err := useColor(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	exit := 0
	for _, res := range results {
		if res.Bag.HasErrors() {
			exit = 1
		}
		if err := reportDiagnostics(out, res, flags, colored, args); err != nil {
			return err
		}
		if flags.timings && flags.format != "json" {
			printPhaseTimings(cmd.ErrOrStderr(), res)
		}
		if flags.dump != "" {
			format, _ := driver.ParseDumpFormat(flags.dump)
			if err := driver.WriteDump(out, res, format); err != nil {
				return fmt.Errorf("%s: %w", res.Name, err)
			}
		}
	}
	if exit != 0 {
		os.Exit(exit)
	}
	return nil
}

func reportDiagnostics(out io.Writer, res *driver.Result, flags elabFlags, colored bool, args []string) error {
	switch flags.format {
	case "pretty":
		return diagfmt.Pretty(out, withoutTimings(res.Bag), res.FileSet, diagfmt.PrettyOpts{
			Color:     colored,
			Context:   1,
			PathMode:  flags.pathMode,
			ShowNotes: flags.withNotes,
		})
	case "short":
		return diagfmt.Short(out, withoutTimings(res.Bag), res.FileSet, flags.pathMode)
	case "json":
		return diagfmt.JSON(out, res.Bag, res.FileSet, diagfmt.JSONOpts{
			IncludePositions: true,
			PathMode:         flags.pathMode,
			IncludeNotes:     flags.withNotes,
		})
	case "sarif":
		return diagfmt.Sarif(out, res.Bag, res.FileSet, diagfmt.SarifRunMeta{
			ToolName:       "svelab",
			ToolVersion:    version.Version,
			InvocationArgs: append([]string{"elab"}, args...),
		})
	}
	return fmt.Errorf("unknown format: %s", strings.TrimSpace(flags.format))
}
