package driver

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"svelab/internal/diag"
	"svelab/internal/elab"
	"svelab/internal/project"
)

const counterDesign = `
[[module]]
name = "top"
members = [
  { kind = "net", name = "q", type = "logic [3:0]" },
  { kind = "inst", module = "counter", name = "u", conns = [".q(q)"] },
]

[[module]]
name = "counter"
params = [ { name = "W", type = "int", default = "4" } ]
ports = [ { name = "q", dir = "output", type = "logic [W-1:0]" } ]
`

func writeDesign(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestElaborateFile(t *testing.T) {
	dir := t.TempDir()
	path := writeDesign(t, dir, "counter.toml", counterDesign)
	var mu sync.Mutex
	var phases []string
	res, err := Elaborate(context.Background(), Options{
		Name:          path,
		Files:         []string{path},
		Overrides:     []string{"top.u.W=8"},
		EnableTimings: true,
		Observer: func(ev PhaseEvent) {
			if ev.Status == PhaseEnd {
				mu.Lock()
				phases = append(phases, ev.Name)
				mu.Unlock()
			}
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(phases, ","); got != "load,overrides,elaborate" {
		t.Fatalf("phases = %s", got)
	}
	// the override makes the port 8 bits wide against a 4-bit net
	if res.Bag.Count(diag.PortWidthMismatch) != 1 {
		t.Fatalf("diagnostics:\n%s", diag.FormatGoldenDiagnostics(res.Bag.Items(), res.FileSet, false))
	}
	if res.Bag.Count(diag.ObsTimings) != 1 || res.Timing == nil {
		t.Fatal("missing timings")
	}
	u, ok := res.Compilation.LookupPath("top.u").(*elab.InstanceSymbol)
	if !ok {
		t.Fatal("top.u not found")
	}
	if v := u.Body().Param("W").Value; v.Int64() != 8 {
		t.Fatalf("W = %v", v)
	}
}

func TestElaborateErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeDesign(t, dir, "counter.toml", counterDesign)
	if _, err := Elaborate(context.Background(), Options{Files: []string{filepath.Join(dir, "nope.toml")}}); err == nil {
		t.Fatal("expected read error")
	}
	if _, err := Elaborate(context.Background(), Options{Files: []string{path}, Overrides: []string{"W"}}); err == nil {
		t.Fatal("expected override error")
	}
	bad := writeDesign(t, dir, "bad.toml", "[[module]\n")
	if _, err := Elaborate(context.Background(), Options{Files: []string{bad}}); err == nil {
		t.Fatal("expected decode error")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Elaborate(ctx, Options{Files: []string{path}}); err == nil {
		t.Fatal("expected cancellation")
	}
}

func TestDumpCacheReplay(t *testing.T) {
	dir := t.TempDir()
	path := writeDesign(t, dir, "counter.toml", counterDesign)
	cache, err := NewDumpCache(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	opts := Options{Name: "c", Files: []string{path}, Overrides: []string{"W=8"}, Cache: cache}

	first, err := Elaborate(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheHit {
		t.Fatal("cold cache reported a hit")
	}
	second, err := Elaborate(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheHit || second.Compilation != nil {
		t.Fatal("second run did not replay the cache")
	}
	var a, b bytes.Buffer
	if err := WriteDump(&a, first, DumpText); err != nil {
		t.Fatal(err)
	}
	if err := WriteDump(&b, second, DumpText); err != nil {
		t.Fatal(err)
	}
	if a.String() != b.String() {
		t.Fatalf("replayed dump differs\n%s\n%s", a.String(), b.String())
	}
	if first.Bag.Len() != second.Bag.Len() {
		t.Fatalf("diagnostics %d vs %d", first.Bag.Len(), second.Bag.Len())
	}
	if got, want := diag.FormatGoldenDiagnostics(second.Bag.Items(), second.FileSet, true),
		diag.FormatGoldenDiagnostics(first.Bag.Items(), first.FileSet, true); got != want {
		t.Fatalf("replayed diagnostics differ\n%s\n%s", got, want)
	}

	opts.Overrides = []string{"W=9"}
	third, err := Elaborate(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheHit {
		t.Fatal("different overrides hit the cache")
	}

	if err := cache.DropAll(); err != nil {
		t.Fatal(err)
	}
	var payload DumpPayload
	if hit, err := cache.Get(project.Digest{1}, &payload); hit || err != nil {
		t.Fatalf("after DropAll: hit=%v err=%v", hit, err)
	}
}

func TestWriteDumpFormats(t *testing.T) {
	dir := t.TempDir()
	path := writeDesign(t, dir, "counter.toml", counterDesign)
	res, err := Elaborate(context.Background(), Options{Files: []string{path}})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteDump(&buf, res, DumpJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"kind": "instance"`) {
		t.Fatalf("json dump:\n%s", buf.String())
	}
	buf.Reset()
	if err := WriteDump(&buf, res, DumpMsgpack); err != nil {
		t.Fatal(err)
	}
	root, err := elab.ReadMsgpack(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if root.Children[0].Name != "top" {
		t.Fatalf("msgpack root = %+v", root)
	}
	if _, err := ParseDumpFormat("xml"); err == nil {
		t.Fatal("expected format error")
	}
	if err := WriteDump(&buf, &Result{Name: "empty"}, DumpText); err == nil {
		t.Fatal("expected error for empty result")
	}
}

func TestResolveTarget(t *testing.T) {
	dir := t.TempDir()
	writeDesign(t, dir, "rtl/counter.toml", counterDesign)
	writeDesign(t, dir, project.ManifestName, `
[design]
files = ["rtl/*.toml"]
top = ["counter"]

[elab]
max_depth = 16

[params]
W = 6
`)
	tgt, err := ResolveTarget(dir)
	if err != nil {
		t.Fatal(err)
	}
	if tgt.Manifest == nil || len(tgt.Files) != 1 {
		t.Fatalf("target = %+v", tgt)
	}
	opts, err := tgt.Options(Options{Overrides: []string{"W=7"}})
	if err != nil {
		t.Fatal(err)
	}
	if opts.MaxDepth != 16 || len(opts.TopModules) != 1 {
		t.Fatalf("opts = %+v", opts)
	}
	if strings.Join(opts.Overrides, ";") != "W=6;W=7" {
		t.Fatalf("overrides = %q", opts.Overrides)
	}
	res, err := Elaborate(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	tops := res.Compilation.Root().TopInstances
	if len(tops) != 1 || tops[0].Name() != "counter" {
		t.Fatalf("tops = %v", tops)
	}
	// globals reach top-level instances only
	if w := tops[0].Body().Param("W").Value; w.Int64() != 7 {
		t.Fatalf("W = %v", w)
	}

	plain := t.TempDir()
	writeDesign(t, plain, "b.yaml", "module:\n  - name: b\n")
	writeDesign(t, plain, "a.toml", "[[module]]\nname = \"a\"\n")
	writeDesign(t, plain, "notes.txt", "")
	tgt, err = ResolveTarget(plain)
	if err != nil {
		t.Fatal(err)
	}
	if len(tgt.Files) != 2 || filepath.Base(tgt.Files[0]) != "a.toml" {
		t.Fatalf("files = %v", tgt.Files)
	}

	if _, err := ResolveTarget(filepath.Join(plain, "notes.txt")); err == nil {
		t.Fatal("expected error for non-design file")
	}
	if _, err := ResolveTarget(t.TempDir()); err == nil {
		t.Fatal("expected error for empty directory")
	}
}

func TestElaborateAllKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	var runs []Options
	for _, name := range []string{"x", "y", "z"} {
		p := writeDesign(t, dir, name+".toml", "[[module]]\nname = \""+name+"\"\n")
		runs = append(runs, Options{Name: name, Files: []string{p}})
	}
	results, err := ElaborateAll(context.Background(), runs, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i, res := range results {
		if got := res.Compilation.Root().TopInstances[0].Name(); got != runs[i].Name {
			t.Fatalf("result %d top = %s", i, got)
		}
	}
	runs = append(runs, Options{Name: "missing", Files: []string{filepath.Join(dir, "missing.toml")}})
	if _, err := ElaborateAll(context.Background(), runs, 0); err == nil {
		t.Fatal("expected error")
	}
}
