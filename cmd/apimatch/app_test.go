package main

import (
	"apimatch/internal/core/config"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testCatalog = `version: 1
classes:
  HybridShapeFactory:
    full_path: api.hybrid_shape_interfaces.HybridShapeFactory
    methods:
      add_new_plane_offset: HybridShapeFactory.add_new_plane_offset(plane, offset, reverse)
      add_new_spline: HybridShapeFactory.add_new_spline()
    method_details:
      add_new_plane_offset:
        purpose: Create a new offset plane from a reference plane
      add_new_spline:
        purpose: Create a new spline curve through points
  Document:
    full_path: api.documents.Document
    methods:
      save: Document.save()
`

const testSteps = `steps:
  - step_number: 1
    title: Create offset plane
    description: Create Plane.1 offset from the XY plane
  - step_number: 2
    title: Bake a cake
    description: Whisk the sugar
`

func writeFixtures(t *testing.T) (catalogFile, stepsFile string) {
	t.Helper()
	dir := t.TempDir()
	catalogFile = filepath.Join(dir, "catalog.yaml")
	stepsFile = filepath.Join(dir, "steps.yaml")
	if err := os.WriteFile(catalogFile, []byte(testCatalog), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stepsFile, []byte(testSteps), 0o644); err != nil {
		t.Fatal(err)
	}
	return catalogFile, stepsFile
}

func TestLoadConfig_DefaultsWhenDefaultFileMissing(t *testing.T) {
	cfg, err := loadConfig(options{ConfigPath: defaultConfigPath, Threshold: -1})
	if err != nil {
		t.Fatalf("expected defaults, got %v", err)
	}
	if cfg.Resolver.Threshold != 0.6 {
		t.Fatalf("expected default threshold 0.6, got %v", cfg.Resolver.Threshold)
	}
}

func TestLoadConfig_ExplicitMissingFileFails(t *testing.T) {
	_, err := loadConfig(options{ConfigPath: filepath.Join(t.TempDir(), "nope.toml"), Threshold: -1})
	if err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "apimatch.toml")
	content := "[catalog]\npath = \"catalog.yaml\"\n\n[resolver]\nthreshold = 0.4\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(options{ConfigPath: path, Threshold: -1})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Catalog.Path != filepath.Join(dir, "catalog.yaml") {
		t.Fatalf("expected catalog path relative to config dir, got %q", cfg.Catalog.Path)
	}
	if cfg.Resolver.Threshold != 0.4 {
		t.Fatalf("expected file threshold, got %v", cfg.Resolver.Threshold)
	}

	cfg, err = loadConfig(options{ConfigPath: path, Threshold: 0.8, Format: "JSON", Sources: []string{"src"}})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Resolver.Threshold != 0.8 || cfg.Output.Format != "json" {
		t.Fatalf("flags not applied: threshold=%v format=%q", cfg.Resolver.Threshold, cfg.Output.Format)
	}
	if len(cfg.Sources.Paths) != 1 || cfg.Sources.Paths[0] != "src" {
		t.Fatalf("expected source paths from args, got %v", cfg.Sources.Paths)
	}

	if _, err := loadConfig(options{ConfigPath: path, Threshold: 2}); err == nil {
		t.Fatal("expected validation error for threshold above 1")
	}
}

func TestRun_ResolvesSteps(t *testing.T) {
	catalogFile, stepsFile := writeFixtures(t)
	cfg := config.Default()
	applyFlags(cfg, options{Catalog: catalogFile, StepsPath: stepsFile, Threshold: -1})

	var out bytes.Buffer
	if err := run(context.Background(), cfg, options{}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	body := out.String()
	for _, want := range []string{"Step 1: Create offset plane", "add_new_plane_offset", "no match", "1 matched, 1 unmatched"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in output:\n%s", want, body)
		}
	}
}

func TestRun_PersistsAndListsHistory(t *testing.T) {
	catalogFile, stepsFile := writeFixtures(t)
	cfg := config.Default()
	cfg.History.Enabled = true
	cfg.History.Path = filepath.Join(t.TempDir(), "history.db")
	cfg.Output.Path = filepath.Join(t.TempDir(), "out", "report.json")
	cfg.Output.Format = "json"
	applyFlags(cfg, options{Catalog: catalogFile, StepsPath: stepsFile, Threshold: -1})

	if err := run(context.Background(), cfg, options{}, &bytes.Buffer{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	written, err := os.ReadFile(cfg.Output.Path)
	if err != nil {
		t.Fatalf("expected report file: %v", err)
	}
	if !strings.Contains(string(written), `"kind": "steps"`) {
		t.Fatalf("unexpected report file:\n%s", written)
	}

	cfg.Output.Format = "tsv"
	var out bytes.Buffer
	if err := run(context.Background(), cfg, options{HistoryN: 5}, &out); err != nil {
		t.Fatalf("list runs: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "\tsteps\t") {
		t.Fatalf("expected one persisted steps run, got:\n%s", out.String())
	}
}

func TestRun_Failures(t *testing.T) {
	catalogFile, _ := writeFixtures(t)

	cfg := config.Default()
	cfg.Catalog.Path = filepath.Join(t.TempDir(), "missing.yaml")
	if err := run(context.Background(), cfg, options{}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected catalog failure")
	}

	cfg = config.Default()
	cfg.Catalog.Path = catalogFile
	cfg.Sources.Paths = nil
	if err := run(context.Background(), cfg, options{}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error when there is nothing to resolve")
	}
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "apimatch.toml")
	if err := initConfig(path); err != nil {
		t.Fatalf("initConfig failed: %v", err)
	}

	cfg, err := loadConfig(options{ConfigPath: path, Threshold: -1})
	if err != nil {
		t.Fatalf("written config must load: %v", err)
	}
	if cfg.Resolver.Threshold != 0.6 || cfg.Resolver.Bonuses.ReceiverType != 0.5 {
		t.Errorf("expected defaults to round trip, got %+v", cfg.Resolver)
	}

	err = initConfig(path)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected refusal to overwrite, got %v", err)
	}
}
