package project

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestFindManifestWalksUp(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ManifestName), "[design]\nfiles = [\"a.toml\"]\n")
	deep := filepath.Join(root, "rtl", "sub")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}
	path, ok, err := FindManifest(deep)
	if err != nil || !ok {
		t.Fatalf("FindManifest: ok=%v err=%v", ok, err)
	}
	if path != filepath.Join(root, ManifestName) {
		t.Fatalf("path = %s", path)
	}
	dir, ok, err := FindProjectRoot(deep)
	if err != nil || !ok || dir != root {
		t.Fatalf("FindProjectRoot = %s %v %v", dir, ok, err)
	}
}

func TestFindManifestMissing(t *testing.T) {
	if _, ok, err := FindManifest(t.TempDir()); ok || err != nil {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
}

const manifestText = `
[design]
files = ["rtl/*.toml", "extra.yaml"]
top = ["top"]

[elab]
max_depth = 32

[params]
WIDTH = 8
NAME = "\"core\""

[overrides]
"top.u.W" = "16"
"top.arr[1].W" = 5
`

func TestLoadManifest(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ManifestName), manifestText)
	writeFile(t, filepath.Join(root, "rtl", "b.toml"), "")
	writeFile(t, filepath.Join(root, "rtl", "a.toml"), "")
	writeFile(t, filepath.Join(root, "extra.yaml"), "")

	m, ok, err := LoadManifest(root)
	if err != nil || !ok {
		t.Fatalf("LoadManifest: ok=%v err=%v", ok, err)
	}
	if m.Root != root || m.Config.Elab.MaxDepth != 32 {
		t.Fatalf("manifest = %+v", m)
	}
	if !reflect.DeepEqual(m.Config.Design.Top, []string{"top"}) {
		t.Fatalf("top = %v", m.Config.Design.Top)
	}
	files, err := m.DesignFiles()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(root, "rtl", "a.toml"),
		filepath.Join(root, "rtl", "b.toml"),
		filepath.Join(root, "extra.yaml"),
	}
	if !reflect.DeepEqual(files, want) {
		t.Fatalf("files = %v", files)
	}
	texts, err := m.Config.OverrideTexts()
	if err != nil {
		t.Fatal(err)
	}
	wantTexts := []string{`NAME="core"`, "WIDTH=8", "top.arr[1].W=5", "top.u.W=16"}
	if !reflect.DeepEqual(texts, wantTexts) {
		t.Fatalf("overrides = %q", texts)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"no design", "[elab]\nmax_depth = 3\n", "missing [design]"},
		{"no files", "[design]\ntop = [\"t\"]\n", "missing [design].files"},
		{"empty file", "[design]\nfiles = [\" \"]\n", "empty entry"},
		{"bad depth", "[design]\nfiles = [\"a\"]\n[elab]\nmax_depth = 0\n", "max_depth must be positive"},
		{"unknown key", "[design]\nfiles = [\"a\"]\ncolour = 1\n", "unknown keys: design.colour"},
		{"syntax", "[design\n", "failed to parse TOML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), ManifestName)
			writeFile(t, path, tt.text)
			_, err := LoadConfig(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestDesignFilesNoMatch(t *testing.T) {
	m := &Manifest{Path: "svelab.toml", Root: t.TempDir(), Config: Config{Design: DesignConfig{Files: []string{"*.toml"}}}}
	if _, err := m.DesignFiles(); err == nil {
		t.Fatal("expected error for empty glob")
	}
}

func TestOverrideTextsRejectsTables(t *testing.T) {
	c := Config{Params: map[string]any{"P": map[string]any{"x": int64(1)}}}
	if _, err := c.OverrideTexts(); err == nil {
		t.Fatal("expected error")
	}
}

func TestDigests(t *testing.T) {
	a := StringsDigest([]string{"x", "y"})
	if a != StringsDigest([]string{"y", "x"}) {
		t.Fatal("StringsDigest depends on order")
	}
	if a == StringsDigest([]string{"xy"}) {
		t.Fatal("StringsDigest joins items ambiguously")
	}
	var d Digest
	if Combine(d, a) == Combine(a, d) {
		t.Fatal("Combine ignores order")
	}
}
