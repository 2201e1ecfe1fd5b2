package driver

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"svelab/internal/design"
	"svelab/internal/diag"
	"svelab/internal/elab"
	"svelab/internal/observ"
	"svelab/internal/project"
	"svelab/internal/source"
	"svelab/internal/trace"
)

// Options describe one elaboration run.
type Options struct {
	// Name labels the run in timings and phase events.
	Name  string
	Files []string
	// BaseDir shortens paths in rendered diagnostics.
	BaseDir string
	// Overrides are "P=V" globals and "a.b.P=V" hierarchical overrides.
	Overrides      []string
	TopModules     []string
	MaxDepth       int
	MaxDiagnostics int
	EnableTimings  bool
	// Cache, when set, stores dumps keyed by the inputs and replays them.
	Cache    *DumpCache
	Observer PhaseObserver
}

// Result is what one run produced. Compilation is nil when the dump was
// replayed from the cache.
type Result struct {
	Name        string
	FileSet     *source.FileSet
	Bag         *diag.Bag
	Compilation *elab.Compilation
	// Dump is set on a cache hit.
	Dump     *elab.DumpNode
	CacheHit bool
	Timing   *observ.Report
}

// Elaborate loads the design files, applies overrides and elaborates.
// Problems inside the design end up in the bag; only IO, decoding and
// malformed overrides are returned as errors.
func Elaborate(ctx context.Context, opts Options) (res *Result, err error) {
	if opts.Observer != nil {
		defer func() {
			ev := PhaseEvent{Target: opts.Name, Status: PhaseDone}
			if err != nil || res.Bag.HasErrors() {
				ev.Status = PhaseFailed
			}
			opts.Observer(ev)
		}()
	}
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeDriver, "elab "+opts.Name, 0)
	defer span.End("")

	var timer *observ.Timer
	if opts.EnableTimings {
		timer = observ.NewTimer()
	}
	begin := func(name string) (int, time.Time) {
		if opts.Observer != nil {
			opts.Observer(PhaseEvent{Target: opts.Name, Name: name, Status: PhaseStart})
		}
		if timer == nil {
			return -1, time.Now()
		}
		return timer.Begin(name), time.Now()
	}
	end := func(idx int, started time.Time, name, note string) {
		if opts.Observer != nil {
			opts.Observer(PhaseEvent{Target: opts.Name, Name: name, Status: PhaseEnd, Elapsed: time.Since(started)})
		}
		if timer == nil || idx < 0 {
			return
		}
		timer.End(idx, note)
	}

	fs := source.NewFileSet()
	if opts.BaseDir != "" {
		fs.SetBaseDir(opts.BaseDir)
	}
	bag := diag.NewBag(opts.MaxDiagnostics)
	reporter := diag.BagReporter{Bag: bag}
	res = &Result{Name: opts.Name, FileSet: fs, Bag: bag}

	idx, started := begin("load")
	loader := design.NewLoader(fs, reporter)
	if err := loader.LoadFiles(ctx, opts.Files); err != nil {
		end(idx, started, "load", "failed")
		return nil, err
	}
	end(idx, started, "load", strconv.Itoa(len(opts.Files))+" files")

	idx, started = begin("overrides")
	overrides, oerr := elab.BuildOverrides(loader.Tree(), fs, opts.Overrides)
	end(idx, started, "overrides", strconv.Itoa(len(opts.Overrides)))
	if oerr != nil {
		return nil, oerr
	}

	var key project.Digest
	if opts.Cache != nil {
		key = cacheKey(fs, opts)
		var payload DumpPayload
		hit, cerr := opts.Cache.Get(key, &payload)
		if cerr != nil {
			trace.Point(tracer, trace.ScopeDriver, "cache", "unreadable: "+cerr.Error(), span.ID())
		}
		if hit && payload.Schema == dumpCacheSchemaVersion {
			res.Bag = diag.NewBag(opts.MaxDiagnostics)
			for _, d := range payload.Diagnostics {
				res.Bag.Add(d)
			}
			res.Dump = payload.Root
			res.CacheHit = true
			finishTimings(res, timer, opts)
			return res, nil
		}
	}

	idx, started = begin("elaborate")
	comp := elab.NewCompilation(loader.Tree(), elab.Options{
		TopModules:       opts.TopModules,
		MaxInstanceDepth: opts.MaxDepth,
		Overrides:        overrides,
	}, reporter)
	if err := comp.Elaborate(ctx); err != nil {
		end(idx, started, "elaborate", "cancelled")
		return nil, fmt.Errorf("elaborate %s: %w", opts.Name, err)
	}
	end(idx, started, "elaborate", strconv.Itoa(comp.SymbolCount())+" symbols")
	res.Compilation = comp

	if timer != nil {
		instances := 0
		for _, def := range comp.Definitions() {
			instances += len(comp.Instances(def))
		}
		timer.Count("instances", instances)
		timer.Count("classes", comp.BodyClassCount())
		timer.Count("definitions", len(comp.Definitions()))
	}

	bag.Sort()
	if opts.Cache != nil {
		payload := &DumpPayload{
			Schema:      dumpCacheSchemaVersion,
			Files:       opts.Files,
			Root:        elab.NewSerializer(comp).Root(),
			Diagnostics: bag.Items(),
		}
		if err := opts.Cache.Put(key, payload); err != nil {
			trace.Point(tracer, trace.ScopeDriver, "cache", "write failed: "+err.Error(), span.ID())
		}
	}
	finishTimings(res, timer, opts)
	return res, nil
}

func finishTimings(res *Result, timer *observ.Timer, opts Options) {
	if timer == nil {
		return
	}
	report := timer.Report()
	res.Timing = &report
	appendTimingDiagnostic(res.Bag, timingPayload{
		Path:     opts.Name,
		TotalMS:  report.TotalMS,
		Phases:   report.Phases,
		Counters: report.Counters,
	})
}

// cacheKey covers file contents, the elaboration options and the schema.
func cacheKey(fs *source.FileSet, opts Options) project.Digest {
	var content project.Digest
	deps := make([]project.Digest, 0, len(opts.Files)+3)
	for i := range fs.Len() {
		f := fs.Get(source.FileID(i)) // #nosec G115 -- file count is bounded by the command line
		if f == nil {
			continue
		}
		deps = append(deps, project.Digest(f.Hash))
	}
	deps = append(deps,
		project.StringsDigest([]string{strings.Join(opts.TopModules, "\x00")}),
		project.StringsDigest([]string{
			"depth=" + strconv.Itoa(opts.MaxDepth),
			"schema=" + strconv.Itoa(int(dumpCacheSchemaVersion)),
		}),
	)
	return project.Combine(content, deps...)
}
