package design

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"svelab/internal/diag"
	"svelab/internal/source"
	"svelab/internal/syntax"
)

// ErrUnknownFormat is returned for files that are neither TOML nor YAML.
var ErrUnknownFormat = errors.New("unknown design file format")

// Parse decodes one design file. The format is picked by extension. The
// second result lists TOML keys that matched no field.
func Parse(path string, content []byte) (*File, []string, error) {
	var f File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		meta, err := toml.Decode(string(content), &f)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
		}
		var unknown []string
		for _, k := range meta.Undecoded() {
			unknown = append(unknown, k.String())
		}
		sort.Strings(unknown)
		return &f, unknown, nil
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(content))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%s: failed to parse YAML: %w", path, err)
		}
		return &f, nil, nil
	}
	return nil, nil, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
}

// Loader builds one syntax tree out of any number of design files.
type Loader struct {
	fs       *source.FileSet
	tree     *syntax.Tree
	reporter diag.Reporter
}

func NewLoader(fs *source.FileSet, reporter diag.Reporter) *Loader {
	if reporter == nil {
		reporter = diag.NopReporter{}
	}
	return &Loader{fs: fs, tree: syntax.NewTree(), reporter: reporter}
}

func (l *Loader) Tree() *syntax.Tree { return l.tree }

func (l *Loader) FileSet() *source.FileSet { return l.fs }

// AddSource lowers an in-memory design. name decides the format.
func (l *Loader) AddSource(name string, content []byte) error {
	id := l.fs.AddVirtual(name, content)
	f, unknown, err := Parse(name, content)
	if err != nil {
		return err
	}
	l.lower(id, f, unknown)
	return nil
}

type decoded struct {
	id      source.FileID
	file    *File
	unknown []string
}

// LoadFiles reads every path, decodes them concurrently and lowers them in
// the order given so ordinals and diagnostics stay deterministic.
func (l *Loader) LoadFiles(ctx context.Context, paths []string) error {
	ids := make([]source.FileID, len(paths))
	for i, p := range paths {
		id, err := l.fs.Load(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		ids[i] = id
	}

	out := make([]decoded, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, unknown, err := Parse(paths[i], l.fs.Get(ids[i]).Content)
			if err != nil {
				return err
			}
			out[i] = decoded{id: ids[i], file: f, unknown: unknown}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, d := range out {
		l.lower(d.id, d.file, d.unknown)
	}
	return nil
}

func (l *Loader) lower(id source.FileID, f *File, unknown []string) {
	lw := &lowerer{
		tree:     l.tree,
		file:     id,
		content:  string(l.fs.Get(id).Content),
		reporter: l.reporter,
		dirs:     f.Directives,
	}
	for _, k := range unknown {
		key := k
		if i := strings.LastIndexByte(k, '.'); i >= 0 {
			key = k[i+1:]
		}
		base := lw.locate(key)
		diag.ReportWarning(l.reporter, diag.SynUnknownMember, lw.spanAt(base, key),
			fmt.Sprintf("unknown key '%s' ignored", k)).Emit()
	}
	lw.cursor = 0
	for i := range f.Modules {
		if decl := lw.module("", &f.Modules[i]); decl != nil {
			l.tree.Decls = append(l.tree.Decls, decl)
		}
	}
	lw.floor = 0
	for i := range f.Binds {
		m := &f.Binds[i]
		if m.Kind == "" {
			m.Kind = "bind"
		}
		if b, ok := lw.member(m).(*syntax.BindDirective); ok {
			l.tree.Binds = append(l.tree.Binds, b)
		}
	}
}
