package config

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateCatalog(cfg *Config) error {
	switch cfg.Catalog.Format {
	case "manifest", "openapi":
		return nil
	default:
		return fmt.Errorf("catalog.format must be one of: manifest, openapi")
	}
}

func validateSources(cfg *Config) error {
	for i, ext := range cfg.Sources.Extensions {
		if ext == "" || ext == "." {
			return fmt.Errorf("sources.extensions[%d] must not be empty", i)
		}
	}
	for _, pattern := range cfg.Sources.ExcludeFiles {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("sources.exclude_files: invalid pattern %q: %w", pattern, err)
		}
	}
	for _, pattern := range cfg.Sources.ExcludeDirs {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("sources.exclude_dirs: invalid pattern %q: %w", pattern, err)
		}
	}
	if cfg.Sources.Workers < 1 {
		return fmt.Errorf("sources.workers must be >= 1, got %d", cfg.Sources.Workers)
	}
	return nil
}

func validateResolver(cfg *Config) error {
	r := cfg.Resolver
	if r.Threshold < 0 || r.Threshold > 1 {
		return fmt.Errorf("resolver.threshold must be within [0,1], got %v", r.Threshold)
	}
	if r.MaxDepth < 1 {
		return fmt.Errorf("resolver.max_depth must be >= 1, got %d", r.MaxDepth)
	}
	if r.TopClasses < 1 || r.TopMethods < 1 || r.MaxSeedClasses < 1 {
		return fmt.Errorf("resolver.top_classes, top_methods and max_seed_classes must be >= 1")
	}
	if r.MinMethods < 0 {
		return fmt.Errorf("resolver.min_methods must be >= 0, got %d", r.MinMethods)
	}
	for name, v := range map[string]float64{
		"class_floor":           r.ClassFloor,
		"flat_spread":           r.FlatSpread,
		"inheritance_credit":    r.InheritanceCredit,
		"class_share":           r.ClassShare,
		"type_mismatch_penalty": r.TypeMismatchPenalty,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("resolver.%s must be within [0,1], got %v", name, v)
		}
	}
	if r.HighConfidenceFactor < 1 {
		return fmt.Errorf("resolver.high_confidence_factor must be >= 1, got %v", r.HighConfidenceFactor)
	}
	if r.LateStepStart < r.EarlyStepLimit {
		return fmt.Errorf("resolver.late_step_start (%d) must not precede early_step_limit (%d)", r.LateStepStart, r.EarlyStepLimit)
	}
	if err := validateWeights(r.Weights); err != nil {
		return err
	}
	return validateBonuses(r.Bonuses)
}

func validateWeights(w Weights) error {
	parts := []struct {
		name  string
		value float64
	}{
		{"lexical", w.Lexical},
		{"action", w.Action},
		{"domain", w.Domain},
		{"context", w.Context},
	}
	sum := 0.0
	for _, p := range parts {
		if p.value < 0 {
			return fmt.Errorf("resolver.weights.%s must be >= 0, got %v", p.name, p.value)
		}
		sum += p.value
	}
	if sum <= 0 {
		return fmt.Errorf("resolver.weights must not all be zero")
	}
	if w.LexicalBoost < 1 || w.ActionBoost < 1 || w.DomainBoost < 1 {
		return fmt.Errorf("resolver.weights boosts must be >= 1")
	}
	return nil
}

func validateBonuses(b Bonuses) error {
	for name, v := range map[string]float64{
		"receiver_type":     b.ReceiverType,
		"receiver_ancestor": b.ReceiverAncestor,
		"receiver_noun":     b.ReceiverNoun,
		"referenced_type":   b.ReferencedType,
		"receiver_name":     b.ReceiverName,
		"exact_method":      b.ExactMethod,
		"name_keyword":      b.NameKeyword,
		"workflow_position": b.WorkflowPosition,
		"collection_access": b.CollectionAccess,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("resolver.bonuses.%s must be within [0,1], got %v", name, v)
		}
	}
	return nil
}

func validateReasoning(cfg *Config) error {
	r := cfg.Reasoning
	switch r.Provider {
	case ProviderNone, ProviderOpenAI:
	default:
		return fmt.Errorf("reasoning.provider must be one of: none, openai")
	}
	switch r.Mode {
	case ModeFlat, ModeAlways:
	default:
		return fmt.Errorf("reasoning.mode must be one of: flat, always")
	}
	if r.Provider == ProviderOpenAI {
		if !strings.HasPrefix(r.BaseURL, "http://") && !strings.HasPrefix(r.BaseURL, "https://") {
			return fmt.Errorf("reasoning.base_url must be an http(s) URL, got %q", r.BaseURL)
		}
		if strings.TrimSpace(r.Model) == "" {
			return fmt.Errorf("reasoning.model must not be empty")
		}
	}
	if r.Timeout <= 0 {
		return fmt.Errorf("reasoning.timeout must be positive, got %v", r.Timeout)
	}
	if r.Weight < 0 || r.Weight > 1 {
		return fmt.Errorf("reasoning.weight must be within [0,1], got %v", r.Weight)
	}
	if r.MaxCandidates < 1 {
		return fmt.Errorf("reasoning.max_candidates must be >= 1, got %d", r.MaxCandidates)
	}
	if r.RatePerSecond < 0 {
		return fmt.Errorf("reasoning.rate_per_second must be >= 0, got %v", r.RatePerSecond)
	}
	return nil
}

func validateHistory(cfg *Config) error {
	if cfg.History.Enabled && strings.TrimSpace(cfg.History.Path) == "" {
		return fmt.Errorf("history.path must not be empty when history is enabled")
	}
	return nil
}

func validateOutput(cfg *Config) error {
	switch cfg.Output.Format {
	case "text", "tsv", "json":
		return nil
	default:
		return fmt.Errorf("output.format must be one of: text, tsv, json")
	}
}

func validateObservability(cfg *Config) error {
	if cfg.Observability.Port < 1 || cfg.Observability.Port > 65535 {
		return fmt.Errorf("observability.port must be within 1-65535, got %d", cfg.Observability.Port)
	}
	if cfg.Observability.EnableTracing && strings.TrimSpace(cfg.Observability.OTLPEndpoint) == "" {
		return fmt.Errorf("observability.otlp_endpoint is required when tracing is enabled")
	}
	return nil
}

func validateMCP(cfg *Config) error {
	if cfg.MCP.MaxResponseItems < 1 || cfg.MCP.MaxResponseItems > 5000 {
		return fmt.Errorf("mcp.max_response_items must be within 1-5000, got %d", cfg.MCP.MaxResponseItems)
	}
	rl := cfg.MCP.RateLimit
	if rl.Enabled && (rl.RequestsPerMinute < 1 || rl.Burst < 1) {
		return fmt.Errorf("mcp.rate_limit requires positive requests_per_minute and burst when enabled")
	}
	return nil
}
