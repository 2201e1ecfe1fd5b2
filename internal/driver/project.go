package driver

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"svelab/internal/project"
)

// Target is a path given on the command line, resolved to design files and
// the manifest settings that apply to it.
type Target struct {
	Path     string
	Root     string
	Files    []string
	Manifest *project.Manifest
}

// ResolveTarget accepts a design file, a directory holding svelab.toml (or
// below one), or a plain directory of design files.
func ResolveTarget(path string) (*Target, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.IsDir() {
		if !isDesignFile(path) {
			return nil, fmt.Errorf("%s: expected a .toml, .yaml or .yml design file", path)
		}
		return &Target{Path: path, Root: filepath.Dir(path), Files: []string{path}}, nil
	}
	m, ok, err := project.LoadManifest(path)
	if err != nil {
		return nil, err
	}
	if ok {
		files, err := m.DesignFiles()
		if err != nil {
			return nil, err
		}
		return &Target{Path: path, Root: m.Root, Files: files, Manifest: m}, nil
	}
	files, err := listDesignFiles(path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: no design files and no %s found", path, project.ManifestName)
	}
	return &Target{Path: path, Root: path, Files: files}, nil
}

// Options merges the manifest with command-line settings. Command-line tops
// and depth replace the manifest's; overrides are appended so they win.
func (t *Target) Options(base Options) (Options, error) {
	opts := base
	opts.Name = t.Path
	opts.Files = t.Files
	if opts.BaseDir == "" {
		opts.BaseDir = t.Root
	}
	if t.Manifest == nil {
		return opts, nil
	}
	cfg := t.Manifest.Config
	if len(opts.TopModules) == 0 {
		opts.TopModules = cfg.Design.Top
	}
	if opts.MaxDepth == 0 {
		opts.MaxDepth = cfg.Elab.MaxDepth
	}
	texts, err := cfg.OverrideTexts()
	if err != nil {
		return opts, fmt.Errorf("%s: %w", t.Manifest.Path, err)
	}
	opts.Overrides = append(texts, base.Overrides...)
	return opts, nil
}

func isDesignFile(path string) bool {
	if filepath.Base(path) == project.ManifestName {
		return false
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".yaml", ".yml":
		return true
	}
	return false
}

// listDesignFiles возвращает отсортированный список файлов дизайна в директории
func listDesignFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isDesignFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
