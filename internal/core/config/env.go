package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: APIMATCH_[SECTION]_[KEY] (e.g., APIMATCH_RESOLVER_THRESHOLD).
func ApplyEnvOverrides(cfg *Config) {
	// Catalog
	setEnvString(&cfg.Catalog.Path, "APIMATCH_CATALOG_PATH")
	setEnvString(&cfg.Catalog.Format, "APIMATCH_CATALOG_FORMAT")
	setEnvString(&cfg.Catalog.PurposesDB, "APIMATCH_CATALOG_PURPOSES_DB")

	// Sources
	setEnvInt(&cfg.Sources.Workers, "APIMATCH_SOURCES_WORKERS")

	// Steps
	setEnvString(&cfg.Steps.Path, "APIMATCH_STEPS_PATH")
	setEnvString(&cfg.Steps.DB, "APIMATCH_STEPS_DB")
	setEnvInt(&cfg.Steps.TemplateID, "APIMATCH_STEPS_TEMPLATE_ID")

	// Resolver
	setEnvFloat64(&cfg.Resolver.Threshold, "APIMATCH_RESOLVER_THRESHOLD")
	setEnvInt(&cfg.Resolver.MaxDepth, "APIMATCH_RESOLVER_MAX_DEPTH")
	setEnvInt(&cfg.Resolver.TopClasses, "APIMATCH_RESOLVER_TOP_CLASSES")
	setEnvFloat64(&cfg.Resolver.Weights.Lexical, "APIMATCH_RESOLVER_WEIGHTS_LEXICAL")
	setEnvFloat64(&cfg.Resolver.Weights.Action, "APIMATCH_RESOLVER_WEIGHTS_ACTION")
	setEnvFloat64(&cfg.Resolver.Weights.Domain, "APIMATCH_RESOLVER_WEIGHTS_DOMAIN")
	setEnvFloat64(&cfg.Resolver.Weights.Context, "APIMATCH_RESOLVER_WEIGHTS_CONTEXT")

	// Reasoning
	setEnvString(&cfg.Reasoning.Provider, "APIMATCH_REASONING_PROVIDER")
	setEnvString(&cfg.Reasoning.Mode, "APIMATCH_REASONING_MODE")
	setEnvString(&cfg.Reasoning.BaseURL, "APIMATCH_REASONING_BASE_URL")
	setEnvString(&cfg.Reasoning.Model, "APIMATCH_REASONING_MODEL")
	setEnvDuration(&cfg.Reasoning.Timeout, "APIMATCH_REASONING_TIMEOUT")
	setEnvFloat64(&cfg.Reasoning.Weight, "APIMATCH_REASONING_WEIGHT")

	// History
	setEnvBool(&cfg.History.Enabled, "APIMATCH_HISTORY_ENABLED")
	setEnvString(&cfg.History.Path, "APIMATCH_HISTORY_PATH")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "APIMATCH_WATCH_DEBOUNCE")

	// Observability
	setEnvBool(&cfg.Observability.Enabled, "APIMATCH_OBSERVABILITY_ENABLED")
	setEnvInt(&cfg.Observability.Port, "APIMATCH_OBSERVABILITY_PORT")
	setEnvString(&cfg.Observability.OTLPEndpoint, "APIMATCH_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.EnableTracing, "APIMATCH_OBSERVABILITY_ENABLE_TRACING")

	// MCP
	setEnvInt(&cfg.MCP.MaxResponseItems, "APIMATCH_MCP_MAX_RESPONSE_ITEMS")
	setEnvBool(&cfg.MCP.RateLimit.Enabled, "APIMATCH_MCP_RATE_LIMIT_ENABLED")

	normalize(cfg)
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		log.Printf("Applying env override: %s=%s", key, val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = d
		}
	}
}
