package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"svelab/internal/driver"
)

func TestInitCreatesElaboratableProject(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "proj")
	var out bytes.Buffer
	initCmd.SetOut(&out)
	if err := runInit(initCmd, []string{dir}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "rtl/top.toml") {
		t.Fatalf("output:\n%s", out.String())
	}
	if err := runInit(initCmd, []string{dir}); err == nil {
		t.Fatal("second init must fail")
	}

	tgt, err := driver.ResolveTarget(dir)
	if err != nil {
		t.Fatal(err)
	}
	opts, err := tgt.Options(driver.Options{Name: "proj"})
	if err != nil {
		t.Fatal(err)
	}
	res, err := driver.Elaborate(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Bag.Len() != 0 {
		t.Fatalf("starter design has %d diagnostics", res.Bag.Len())
	}
	rows := collectDefs(res.Compilation)
	if len(rows) != 2 || rows[1].Name != "counter" || rows[1].Instances != 1 || rows[0].Wave != 1 {
		t.Fatalf("defs = %+v", rows)
	}
	var table bytes.Buffer
	printDefs(&table, rows)
	if !strings.HasPrefix(table.String(), "NAME   ") || !strings.Contains(table.String(), "counter  module") {
		t.Fatalf("table:\n%s", table.String())
	}
}

func TestReadUIMode(t *testing.T) {
	for in, want := range map[string]uiMode{"": uiModeAuto, "ON": uiModeOn, " off ": uiModeOff} {
		got, err := readUIMode(in)
		if err != nil || got != want {
			t.Errorf("readUIMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := readUIMode("sometimes"); err == nil {
		t.Fatal("expected error")
	}
	if shouldUseTUI(uiModeAuto, 1) || !shouldUseTUI(uiModeOn, 1) {
		t.Fatal("shouldUseTUI")
	}
}

func TestPrintPhaseTimings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.toml")
	if err := os.WriteFile(path, []byte("[[module]]\nname = \"a\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	res, err := driver.Elaborate(context.Background(), driver.Options{Name: "a", Files: []string{path}, EnableTimings: true})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	printPhaseTimings(&buf, res)
	for _, want := range []string{"a: ", "load", "elaborate", "definitions"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("timings missing %q:\n%s", want, buf.String())
		}
	}
	if withoutTimings(res.Bag).Len() != res.Bag.Len()-1 {
		t.Fatal("timing diagnostic not stripped")
	}
}
