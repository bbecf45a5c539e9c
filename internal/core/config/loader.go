package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	ProviderNone   = "none"
	ProviderOpenAI = "openai"

	ModeFlat   = "flat"
	ModeAlways = "always"
)

var defaultProductivePatterns = []string{
	"Application", "Document", "Part", "Bodies", "Body", "Factory", "HybridShape",
	"Shape", "Sketcher", "Reference", "Plane", "Axis", "Point", "Coordinate",
	"Origin", "Manager", "Collection", "Service", "Setting", "Workbench",
}

var defaultKeyDomains = []string{
	"Environment", "Infrastructure", "Measurable", "Analysis", "Validation",
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Decode over the defaults: absent keys keep them, explicit zeros stay zero.
	cfg := &Config{}
	applyDefaults(cfg)
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, err
	}
	normalize(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate runs every section validator in order and returns the first failure.
func Validate(cfg *Config) error {
	if err := validateVersion(cfg); err != nil {
		return err
	}
	if err := validateCatalog(cfg); err != nil {
		return err
	}
	if err := validateSources(cfg); err != nil {
		return err
	}
	if err := validateResolver(cfg); err != nil {
		return err
	}
	if err := validateReasoning(cfg); err != nil {
		return err
	}
	if err := validateHistory(cfg); err != nil {
		return err
	}
	if err := validateOutput(cfg); err != nil {
		return err
	}
	if err := validateObservability(cfg); err != nil {
		return err
	}
	return validateMCP(cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Catalog.Format) == "" {
		cfg.Catalog.Format = "manifest"
	}

	if len(cfg.Sources.Paths) == 0 {
		cfg.Sources.Paths = []string{"."}
	}
	if len(cfg.Sources.Extensions) == 0 {
		cfg.Sources.Extensions = []string{".py"}
	}
	if len(cfg.Sources.ExcludeDirs) == 0 {
		cfg.Sources.ExcludeDirs = []string{".git", "__pycache__", ".venv", "venv", "node_modules"}
	}
	if cfg.Sources.Workers <= 0 {
		cfg.Sources.Workers = 4
	}

	r := &cfg.Resolver
	if r.Threshold == 0 {
		r.Threshold = 0.6
	}
	if r.MaxDepth == 0 {
		r.MaxDepth = 3
	}
	if r.TopClasses == 0 {
		r.TopClasses = 15
	}
	if r.TopMethods == 0 {
		r.TopMethods = 10
	}
	if r.MaxSeedClasses == 0 {
		r.MaxSeedClasses = 40
	}
	if r.MinMethods == 0 {
		r.MinMethods = 2
	}
	if r.KeyDomainMinMethods == 0 {
		r.KeyDomainMinMethods = 3
	}
	if r.LargeClassMethods == 0 {
		r.LargeClassMethods = 15
	}
	if r.ClassFloor == 0 {
		r.ClassFloor = 0.1
	}
	if r.FlatSpread == 0 {
		r.FlatSpread = 0.05
	}
	if r.InheritanceCredit == 0 {
		r.InheritanceCredit = 0.5
	}
	if r.ClassShare == 0 {
		r.ClassShare = 0.2
	}
	if r.TypeMismatchPenalty == 0 {
		r.TypeMismatchPenalty = 0.3
	}
	if r.HighConfidenceAbove == 0 {
		r.HighConfidenceAbove = 0.6
	}
	if r.HighConfidenceFactor == 0 {
		r.HighConfidenceFactor = 1.1
	}
	if r.EarlyStepLimit == 0 {
		r.EarlyStepLimit = 10
	}
	if r.LateStepStart == 0 {
		r.LateStepStart = 15
	}
	if len(r.ProductivePatterns) == 0 {
		r.ProductivePatterns = append([]string(nil), defaultProductivePatterns...)
	}
	if len(r.KeyDomains) == 0 {
		r.KeyDomains = append([]string(nil), defaultKeyDomains...)
	}

	w := &r.Weights
	if w.Lexical == 0 && w.Action == 0 && w.Domain == 0 && w.Context == 0 {
		w.Lexical = 0.25
		w.Action = 0.30
		w.Domain = 0.30
		w.Context = 0.15
	}
	if w.LexicalBoost == 0 {
		w.LexicalBoost = 1.5
	}
	if w.ActionBoost == 0 {
		w.ActionBoost = 1.2
	}
	if w.DomainBoost == 0 {
		w.DomainBoost = 1.3
	}

	if r.Bonuses == (Bonuses{}) {
		r.Bonuses = Bonuses{
			ReceiverType:     0.50,
			ReceiverAncestor: 0.35,
			ReceiverNoun:     0.30,
			ReferencedType:   0.40,
			ReceiverName:     0.20,
			ExactMethod:      0.15,
			NameKeyword:      0.15,
			WorkflowPosition: 0.10,
			CollectionAccess: 0.10,
		}
	}

	if strings.TrimSpace(cfg.Reasoning.Provider) == "" {
		cfg.Reasoning.Provider = ProviderNone
	}
	if strings.TrimSpace(cfg.Reasoning.Mode) == "" {
		cfg.Reasoning.Mode = ModeFlat
	}
	if strings.TrimSpace(cfg.Reasoning.BaseURL) == "" {
		cfg.Reasoning.BaseURL = "http://localhost:11434/v1"
	}
	if strings.TrimSpace(cfg.Reasoning.Model) == "" {
		cfg.Reasoning.Model = "llama3.1"
	}
	if strings.TrimSpace(cfg.Reasoning.APIKeyEnv) == "" {
		cfg.Reasoning.APIKeyEnv = "APIMATCH_REASONING_API_KEY"
	}
	if cfg.Reasoning.Timeout <= 0 {
		cfg.Reasoning.Timeout = 30 * time.Second
	}
	if cfg.Reasoning.Weight == 0 {
		cfg.Reasoning.Weight = 0.5
	}
	if cfg.Reasoning.MaxCandidates == 0 {
		cfg.Reasoning.MaxCandidates = 10
	}
	if cfg.Reasoning.Burst <= 0 {
		cfg.Reasoning.Burst = 1
	}

	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = "apimatch-history.db"
	}

	// Default debounce if not set.
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}

	if strings.TrimSpace(cfg.Output.Format) == "" {
		cfg.Output.Format = "text"
	}

	if cfg.Observability.Port == 0 {
		cfg.Observability.Port = 9464
	}
	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "apimatch"
	}

	if cfg.MCP.MaxResponseItems == 0 {
		cfg.MCP.MaxResponseItems = 200
	}
	if cfg.MCP.RateLimit.RequestsPerMinute == 0 {
		cfg.MCP.RateLimit.RequestsPerMinute = 120
	}
	if cfg.MCP.RateLimit.Burst == 0 {
		cfg.MCP.RateLimit.Burst = 10
	}
}

func normalize(cfg *Config) {
	cfg.Catalog.Path = strings.TrimSpace(cfg.Catalog.Path)
	cfg.Catalog.Format = strings.ToLower(strings.TrimSpace(cfg.Catalog.Format))
	cfg.Catalog.PurposesDB = strings.TrimSpace(cfg.Catalog.PurposesDB)
	cfg.Steps.Path = strings.TrimSpace(cfg.Steps.Path)
	cfg.Steps.DB = strings.TrimSpace(cfg.Steps.DB)
	for i, ext := range cfg.Sources.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.Sources.Extensions[i] = ext
	}
	cfg.Reasoning.Provider = strings.ToLower(strings.TrimSpace(cfg.Reasoning.Provider))
	cfg.Reasoning.Mode = strings.ToLower(strings.TrimSpace(cfg.Reasoning.Mode))
	cfg.Reasoning.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Reasoning.BaseURL), "/")
	cfg.Output.Format = strings.ToLower(strings.TrimSpace(cfg.Output.Format))
}
