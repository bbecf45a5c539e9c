package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "apimatch.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[catalog]
path = "catalog.yaml"

[sources]
paths = ["./scripts"]
extensions = ["py"]
exclude_files = ["*_test.py"]

[resolver]
threshold = 0.5
max_depth = 2

[resolver.weights]
lexical = 0.4
action = 0.3
domain = 0.3
context = 0.0

[reasoning]
provider = "OpenAI"
mode = "always"
base_url = "http://127.0.0.1:8080/v1/"
timeout = "5s"

[watch]
debounce = "1s"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Catalog.Path != "catalog.yaml" {
		t.Errorf("expected catalog path catalog.yaml, got %q", cfg.Catalog.Path)
	}
	if cfg.Sources.Extensions[0] != ".py" {
		t.Errorf("expected normalized extension .py, got %q", cfg.Sources.Extensions[0])
	}
	if cfg.Resolver.Threshold != 0.5 || cfg.Resolver.MaxDepth != 2 {
		t.Errorf("unexpected resolver settings: %+v", cfg.Resolver)
	}
	if cfg.Resolver.Weights.Lexical != 0.4 || cfg.Resolver.Weights.Context != 0 {
		t.Errorf("explicit weights should be kept, got %+v", cfg.Resolver.Weights)
	}
	if cfg.Resolver.TopClasses != 15 {
		t.Errorf("expected default top_classes 15, got %d", cfg.Resolver.TopClasses)
	}
	if cfg.Reasoning.Provider != ProviderOpenAI || cfg.Reasoning.Mode != ModeAlways {
		t.Errorf("unexpected reasoning settings: %+v", cfg.Reasoning)
	}
	if cfg.Reasoning.BaseURL != "http://127.0.0.1:8080/v1" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.Reasoning.BaseURL)
	}
	if cfg.Reasoning.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", cfg.Reasoning.Timeout)
	}
	if cfg.Watch.Debounce != time.Second {
		t.Errorf("expected 1s debounce, got %v", cfg.Watch.Debounce)
	}
	if !cfg.ReasoningEnabled() {
		t.Error("expected reasoning to be enabled")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if b := cfg.Resolver.Bonuses; b.ReceiverType != 0.50 || b.WorkflowPosition != 0.10 {
		t.Errorf("unexpected default bonuses %+v", b)
	}
	w := cfg.Resolver.Weights
	if w.Lexical != 0.25 || w.Action != 0.30 || w.Domain != 0.30 || w.Context != 0.15 {
		t.Errorf("unexpected default weights %+v", w)
	}
	if cfg.Resolver.Threshold != 0.6 || cfg.Resolver.MaxDepth != 3 {
		t.Errorf("unexpected resolver defaults %+v", cfg.Resolver)
	}
	if cfg.Catalog.Format != "manifest" {
		t.Errorf("expected manifest catalog format, got %q", cfg.Catalog.Format)
	}
	if cfg.ReasoningEnabled() {
		t.Error("reasoning should be disabled by default")
	}
	if cfg.Reasoning.Timeout != 30*time.Second {
		t.Errorf("expected 30s reasoning timeout, got %v", cfg.Reasoning.Timeout)
	}
}

func TestLoadKeepsExplicitZeros(t *testing.T) {
	path := writeConfig(t, `
[resolver]
threshold = 0.0
class_floor = 0.0
inheritance_credit = 0.0
type_mismatch_penalty = 0.0

[resolver.bonuses]
receiver_type = 0.8
exact_method = 0.0

[reasoning]
weight = 0.0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	r := cfg.Resolver
	if r.Threshold != 0 || r.ClassFloor != 0 || r.InheritanceCredit != 0 || r.TypeMismatchPenalty != 0 {
		t.Errorf("explicit zeros must be kept, got %+v", r)
	}
	if cfg.Reasoning.Weight != 0 {
		t.Errorf("expected reasoning weight 0, got %v", cfg.Reasoning.Weight)
	}
	if r.MaxDepth != 3 || r.FlatSpread != 0.05 || r.ClassShare != 0.2 {
		t.Errorf("absent keys must keep their defaults, got %+v", r)
	}
	if r.Weights.Lexical != 0.25 || r.Weights.LexicalBoost != 1.5 {
		t.Errorf("absent weights must keep their defaults, got %+v", r.Weights)
	}

	b := r.Bonuses
	if b.ReceiverType != 0.8 || b.ExactMethod != 0 {
		t.Errorf("explicit bonuses must be kept, got %+v", b)
	}
	if b.ReceiverAncestor != 0.35 || b.CollectionAccess != 0.10 {
		t.Errorf("absent bonuses must keep their defaults, got %+v", b)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "bad version",
			content: "version = 3\n",
			wantErr: "unsupported config version",
		},
		{
			name:    "threshold out of range",
			content: "[resolver]\nthreshold = 1.5\n",
			wantErr: "resolver.threshold",
		},
		{
			name:    "negative weight",
			content: "[resolver.weights]\nlexical = -0.1\naction = 0.5\n",
			wantErr: "resolver.weights.lexical",
		},
		{
			name:    "bonus out of range",
			content: "[resolver.bonuses]\nreceiver_name = 1.5\n",
			wantErr: "resolver.bonuses.receiver_name",
		},
		{
			name:    "zero reasoning timeout",
			content: "[reasoning]\ntimeout = \"0s\"\n",
			wantErr: "reasoning.timeout",
		},
		{
			name:    "explicit zero workers",
			content: "[sources]\nworkers = 0\n",
			wantErr: "sources.workers",
		},
		{
			name:    "unknown provider",
			content: "[reasoning]\nprovider = \"magic\"\n",
			wantErr: "reasoning.provider",
		},
		{
			name:    "unknown mode",
			content: "[reasoning]\nmode = \"sometimes\"\n",
			wantErr: "reasoning.mode",
		},
		{
			name:    "invalid exclude glob",
			content: "[sources]\nexclude_files = [\"[\"]\n",
			wantErr: "sources.exclude_files",
		},
		{
			name:    "tracing without endpoint",
			content: "[observability]\nenable_tracing = true\n",
			wantErr: "otlp_endpoint",
		},
		{
			name:    "unknown catalog format",
			content: "[catalog]\nformat = \"wsdl\"\n",
			wantErr: "catalog.format",
		},
		{
			name:    "mcp response cap out of range",
			content: "[mcp]\nmax_response_items = 9000\n",
			wantErr: "mcp.max_response_items",
		},
		{
			name:    "unknown output format",
			content: "[output]\nformat = \"xml\"\n",
			wantErr: "output.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("APIMATCH_RESOLVER_THRESHOLD", "0.75")
	t.Setenv("APIMATCH_REASONING_PROVIDER", " OPENAI ")
	t.Setenv("APIMATCH_HISTORY_ENABLED", "true")
	t.Setenv("APIMATCH_REASONING_TIMEOUT", "2s")
	t.Setenv("APIMATCH_SOURCES_WORKERS", "not-a-number")

	cfg := Default()
	ApplyEnvOverrides(cfg)

	if cfg.Resolver.Threshold != 0.75 {
		t.Errorf("expected threshold override, got %v", cfg.Resolver.Threshold)
	}
	if cfg.Reasoning.Provider != ProviderOpenAI {
		t.Errorf("expected normalized provider, got %q", cfg.Reasoning.Provider)
	}
	if !cfg.History.Enabled {
		t.Error("expected history enabled")
	}
	if cfg.Reasoning.Timeout != 2*time.Second {
		t.Errorf("expected 2s timeout, got %v", cfg.Reasoning.Timeout)
	}
	if cfg.Sources.Workers != 4 {
		t.Errorf("invalid int override must be ignored, got %d", cfg.Sources.Workers)
	}
}

func TestResolveRelativeAndWrite(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Catalog.Path = "catalog.json"
	cfg.Steps.Path = "/abs/steps.yaml"
	cfg.ResolveRelative(dir)

	if cfg.Catalog.Path != filepath.Join(dir, "catalog.json") {
		t.Errorf("expected anchored catalog path, got %q", cfg.Catalog.Path)
	}
	if cfg.Steps.Path != "/abs/steps.yaml" {
		t.Errorf("absolute path must be kept, got %q", cfg.Steps.Path)
	}

	remote := Default()
	remote.Catalog.Format = "openapi"
	remote.Catalog.Path = "https://example.com/openapi.yaml"
	remote.ResolveRelative(dir)
	if remote.Catalog.Path != "https://example.com/openapi.yaml" {
		t.Errorf("URL catalog source must be kept, got %q", remote.Catalog.Path)
	}

	out := filepath.Join(dir, "nested", DefaultFile)
	if err := Write(out, cfg); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	loaded, err := Load(out)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if loaded.Catalog.Path != cfg.Catalog.Path {
		t.Errorf("round trip lost catalog path: %q", loaded.Catalog.Path)
	}
}
