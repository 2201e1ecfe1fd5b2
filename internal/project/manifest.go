package project

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Manifest is a loaded svelab.toml.
type Manifest struct {
	Path   string
	Root   string
	Config Config
}

type Config struct {
	Design DesignConfig `toml:"design"`
	Elab   ElabConfig   `toml:"elab"`
	// Params are global parameter overrides applied to every top.
	Params map[string]any `toml:"params"`
	// Overrides maps hierarchical paths such as "top.u.W" to values.
	Overrides map[string]any `toml:"overrides"`
}

type DesignConfig struct {
	// Files are paths or glob patterns relative to the manifest.
	Files []string `toml:"files"`
	Top   []string `toml:"top"`
}

type ElabConfig struct {
	MaxDepth int `toml:"max_depth"`
}

// LoadManifest finds and loads the manifest above startDir. ok is false when
// there is none.
func LoadManifest(startDir string) (*Manifest, bool, error) {
	manifestPath, ok, err := FindManifest(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, err := LoadConfig(manifestPath)
	if err != nil {
		return nil, true, err
	}
	return &Manifest{
		Path:   manifestPath,
		Root:   filepath.Dir(manifestPath),
		Config: cfg,
	}, true, nil
}

func LoadConfig(path string) (Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("design") {
		return Config{}, fmt.Errorf("%s: missing [design]", path)
	}
	if !meta.IsDefined("design", "files") || len(cfg.Design.Files) == 0 {
		return Config{}, fmt.Errorf("%s: missing [design].files", path)
	}
	for _, f := range cfg.Design.Files {
		if strings.TrimSpace(f) == "" {
			return Config{}, fmt.Errorf("%s: empty entry in [design].files", path)
		}
	}
	if meta.IsDefined("elab", "max_depth") && cfg.Elab.MaxDepth <= 0 {
		return Config{}, fmt.Errorf("%s: [elab].max_depth must be positive", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// DesignFiles expands [design].files against the manifest directory. The
// result keeps pattern order, sorts matches within a pattern and drops
// duplicates.
func (m *Manifest) DesignFiles() ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, pattern := range m.Config.Design.Files {
		p := filepath.FromSlash(pattern)
		if !filepath.IsAbs(p) {
			p = filepath.Join(m.Root, p)
		}
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("%s: bad pattern %q: %w", m.Path, pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%s: [design].files entry %q matches nothing", m.Path, pattern)
		}
		sort.Strings(matches)
		for _, f := range matches {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out, nil
}

// OverrideTexts renders [params] and [overrides] as "name=value" strings in
// a stable order, globals first.
func (c *Config) OverrideTexts() ([]string, error) {
	var out []string
	for _, table := range []map[string]any{c.Params, c.Overrides} {
		keys := make([]string, 0, len(table))
		for k := range table {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v, err := valueText(table[k])
			if err != nil {
				return nil, fmt.Errorf("override %s: %w", k, err)
			}
			out = append(out, k+"="+v)
		}
	}
	return out, nil
}

func valueText(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case bool:
		if x {
			return "1", nil
		}
		return "0", nil
	}
	return "", fmt.Errorf("unsupported value %v (%T)", v, v)
}
