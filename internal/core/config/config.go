package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const DefaultFile = "apimatch.toml"

type Config struct {
	Version       int           `toml:"version"`
	Catalog       Catalog       `toml:"catalog"`
	Sources       Sources       `toml:"sources"`
	Steps         Steps         `toml:"steps"`
	Resolver      Resolver      `toml:"resolver"`
	Reasoning     Reasoning     `toml:"reasoning"`
	History       History       `toml:"history"`
	Watch         Watch         `toml:"watch"`
	Output        Output        `toml:"output"`
	Observability Observability `toml:"observability"`
	MCP           MCP           `toml:"mcp"`
}

type Catalog struct {
	Path       string `toml:"path"`
	Format     string `toml:"format"`
	PurposesDB string `toml:"purposes_db"`
}

type Sources struct {
	Paths        []string `toml:"paths"`
	Extensions   []string `toml:"extensions"`
	ExcludeDirs  []string `toml:"exclude_dirs"`
	ExcludeFiles []string `toml:"exclude_files"`
	Workers      int      `toml:"workers"`
}

type Steps struct {
	Path       string `toml:"path"`
	DB         string `toml:"db"`
	TemplateID int    `toml:"template_id"`
}

type Resolver struct {
	Threshold            float64  `toml:"threshold"`
	MaxDepth             int      `toml:"max_depth"`
	TopClasses           int      `toml:"top_classes"`
	TopMethods           int      `toml:"top_methods"`
	MaxSeedClasses       int      `toml:"max_seed_classes"`
	MinMethods           int      `toml:"min_methods"`
	KeyDomainMinMethods  int      `toml:"key_domain_min_methods"`
	LargeClassMethods    int      `toml:"large_class_methods"`
	ClassFloor           float64  `toml:"class_floor"`
	FlatSpread           float64  `toml:"flat_spread"`
	InheritanceCredit    float64  `toml:"inheritance_credit"`
	ClassShare           float64  `toml:"class_share"`
	TypeMismatchPenalty  float64  `toml:"type_mismatch_penalty"`
	HighConfidenceAbove  float64  `toml:"high_confidence_above"`
	HighConfidenceFactor float64  `toml:"high_confidence_factor"`
	EarlyStepLimit       int      `toml:"early_step_limit"`
	LateStepStart        int      `toml:"late_step_start"`
	ProductivePatterns   []string `toml:"productive_patterns"`
	KeyDomains           []string `toml:"key_domains"`
	Weights              Weights  `toml:"weights"`
	Bonuses              Bonuses  `toml:"bonuses"`
}

type Weights struct {
	Lexical      float64 `toml:"lexical"`
	Action       float64 `toml:"action"`
	Domain       float64 `toml:"domain"`
	Context      float64 `toml:"context"`
	LexicalBoost float64 `toml:"lexical_boost"`
	ActionBoost  float64 `toml:"action_boost"`
	DomainBoost  float64 `toml:"domain_boost"`
}

// Bonuses are the additive context evidence amounts. The scorer caps their
// sum at 1; all zero disables context evidence.
type Bonuses struct {
	ReceiverType     float64 `toml:"receiver_type"`
	ReceiverAncestor float64 `toml:"receiver_ancestor"`
	ReceiverNoun     float64 `toml:"receiver_noun"`
	ReferencedType   float64 `toml:"referenced_type"`
	ReceiverName     float64 `toml:"receiver_name"`
	ExactMethod      float64 `toml:"exact_method"`
	NameKeyword      float64 `toml:"name_keyword"`
	WorkflowPosition float64 `toml:"workflow_position"`
	CollectionAccess float64 `toml:"collection_access"`
}

type Reasoning struct {
	Provider      string        `toml:"provider"`
	Mode          string        `toml:"mode"`
	BaseURL       string        `toml:"base_url"`
	Model         string        `toml:"model"`
	APIKeyEnv     string        `toml:"api_key_env"`
	Timeout       time.Duration `toml:"timeout"`
	Weight        float64       `toml:"weight"`
	MaxCandidates int           `toml:"max_candidates"`
	RatePerSecond float64       `toml:"rate_per_second"`
	Burst         int           `toml:"burst"`
}

type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

type Output struct {
	Format string `toml:"format"`
	Path   string `toml:"path"`
}

// MCP configures the stdio tool server started by -mcp.
type MCP struct {
	MaxResponseItems int          `toml:"max_response_items"`
	RateLimit        MCPRateLimit `toml:"rate_limit"`
}

type MCPRateLimit struct {
	Enabled           bool `toml:"enabled"`
	RequestsPerMinute int  `toml:"requests_per_minute"`
	Burst             int  `toml:"burst"`
}

type Observability struct {
	Enabled       bool   `toml:"enabled"`
	Port          int    `toml:"port"`
	OTLPEndpoint  string `toml:"otlp_endpoint"`
	EnableTracing bool   `toml:"enable_tracing"`
	ServiceName   string `toml:"service_name"`
}

// Default returns a configuration with every default applied and nothing loaded.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	normalize(cfg)
	return cfg
}

// ReasoningEnabled reports whether an external reasoning backend is configured.
func (c *Config) ReasoningEnabled() bool {
	return c.Reasoning.Provider != "" && c.Reasoning.Provider != ProviderNone
}

// APIKey resolves the reasoning API key from the configured environment variable.
func (c *Config) APIKey() string {
	if strings.TrimSpace(c.Reasoning.APIKeyEnv) == "" {
		return ""
	}
	return os.Getenv(c.Reasoning.APIKeyEnv)
}

// ResolveRelative anchors relative file settings at baseDir, usually the
// directory holding the config file.
func (c *Config) ResolveRelative(baseDir string) {
	if strings.TrimSpace(baseDir) == "" {
		return
	}
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) || strings.Contains(p, "://") {
			return p
		}
		return filepath.Join(baseDir, p)
	}
	c.Catalog.Path = abs(c.Catalog.Path)
	c.Catalog.PurposesDB = abs(c.Catalog.PurposesDB)
	c.Steps.Path = abs(c.Steps.Path)
	c.Steps.DB = abs(c.Steps.DB)
	c.History.Path = abs(c.History.Path)
	for i, p := range c.Sources.Paths {
		c.Sources.Paths[i] = abs(p)
	}
}

// Write stores cfg as TOML at path.
func Write(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}
