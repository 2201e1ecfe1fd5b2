package diagfmt

import (
	"bytes"
	"encoding/json"
	"testing"

	"svelab/internal/diag"
	"svelab/internal/source"
)

// TestJSONBasic проверяет базовое JSON форматирование
func TestJSONBasic(t *testing.T) {
	bag, fs := unknownModuleBag(t)
	var buf bytes.Buffer
	opts := JSONOpts{IncludePositions: true, PathMode: PathModeBasename, IncludeNotes: true}
	if err := JSON(&buf, bag, fs, opts); err != nil {
		t.Fatalf("JSON() error: %v", err)
	}
	var out DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if out.Count != 1 || out.Errors != 1 {
		t.Fatalf("count=%d errors=%d", out.Count, out.Errors)
	}
	d := out.Diagnostics[0]
	if d.Code != "ELB5001" || d.Severity != "ERROR" {
		t.Errorf("diagnostic = %+v", d)
	}
	if d.Location.File != "top.toml" || d.Location.StartLine != 3 || d.Location.StartCol != 39 || d.Location.EndCol != 45 {
		t.Errorf("location = %+v", d.Location)
	}
	if len(d.Notes) != 1 || d.Notes[0].Location.StartLine != 2 {
		t.Errorf("notes = %+v", d.Notes)
	}
}

// TestJSONLimitsAndTimings проверяет Max и заметки таймингов
func TestJSONLimitsAndTimings(t *testing.T) {
	bag, fs := unknownModuleBag(t)
	bag.Add(diag.New(diag.SevInfo, diag.ObsTimings, source.Span{}, "timings").
		WithNote(source.Span{}, `{"kind":"elab"}`))

	out := BuildDiagnosticsOutput(bag, fs, JSONOpts{})
	if out.Count != 2 {
		t.Fatalf("count = %d", out.Count)
	}
	if len(out.Diagnostics[0].Notes) != 0 {
		t.Error("notes included without IncludeNotes")
	}
	if len(out.Diagnostics[1].Notes) != 1 {
		t.Error("timings note dropped")
	}
	if out.Diagnostics[0].Location.StartLine != 0 {
		t.Error("positions included without IncludePositions")
	}

	out = BuildDiagnosticsOutput(bag, fs, JSONOpts{Max: 1})
	if out.Count != 1 || out.Diagnostics[0].Code != "ELB5001" {
		t.Fatalf("max not applied: %+v", out)
	}
}

func TestSarif(t *testing.T) {
	bag, fs := unknownModuleBag(t)
	bag.Add(diag.New(diag.SevInfo, diag.ObsTimings, source.Span{}, "timings"))
	var buf bytes.Buffer
	meta := SarifRunMeta{ToolName: "svelab", ToolVersion: "1.0.0", InvocationArgs: []string{"elab", "top.toml"}}
	if err := Sarif(&buf, bag, fs, meta); err != nil {
		t.Fatal(err)
	}
	var log sarifLog
	if err := json.Unmarshal(buf.Bytes(), &log); err != nil {
		t.Fatalf("invalid SARIF: %v", err)
	}
	run := log.Runs[0]
	if len(run.Results) != 1 || run.Results[0].RuleID != "ELB5001" || run.Results[0].Level != "error" {
		t.Fatalf("results = %+v", run.Results)
	}
	region := run.Results[0].Locations[0].PhysicalLocation.Region
	if region.StartLine != 3 || region.StartColumn != 39 {
		t.Errorf("region = %+v", region)
	}
	if len(run.Tool.Driver.Rules) != 1 || run.Invocations[0].ExecutionSuccessful {
		t.Errorf("run = %+v", run)
	}
}
