package app

import (
	"apimatch/internal/core/config"
	"apimatch/internal/core/errors"
	"apimatch/internal/core/ports"
	"apimatch/internal/engine/catalog"
	"apimatch/internal/engine/parser"
	"apimatch/internal/engine/reasoning"
	"apimatch/internal/engine/resolver"
	"apimatch/internal/shared/observability"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gobwas/glob"
)

// Dependencies lets callers swap the collaborators of a Service. Nil fields
// get the configured defaults; a nil History disables persistence.
type Dependencies struct {
	Parser  ports.CallParser
	Port    reasoning.Port
	History ports.HistoryStore
}

// Service runs step and source batches against one catalog.
type Service struct {
	Config   *config.Config
	Graph    *catalog.KnowledgeGraph
	resolver *resolver.Resolver
	parser   ports.CallParser
	port     reasoning.Port
	history  ports.HistoryStore

	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob

	// content hashes of the last resolved version of each source unit
	hashes map[string]string
	hashMu sync.Mutex
}

func New(cfg *config.Config, graph *catalog.KnowledgeGraph) (*Service, error) {
	return NewWithDependencies(cfg, graph, Dependencies{})
}

func NewWithDependencies(cfg *config.Config, graph *catalog.KnowledgeGraph, deps Dependencies) (*Service, error) {
	if cfg == nil {
		return nil, errors.New(errors.CodeValidationError, "config is required")
	}
	if graph == nil {
		return nil, errors.New(errors.CodeCatalogUnavailable, "catalog is required")
	}

	excludeDirs, err := compileGlobs(cfg.Sources.ExcludeDirs, "exclude dir")
	if err != nil {
		return nil, err
	}
	excludeFiles, err := compileGlobs(cfg.Sources.ExcludeFiles, "exclude file")
	if err != nil {
		return nil, err
	}

	if deps.Parser == nil {
		deps.Parser = parser.NewParser(graph, cfg.Sources.Extensions...)
	}
	if deps.Port == nil {
		deps.Port = reasoning.FromConfig(cfg)
	}

	stats := graph.Stats()
	observability.CatalogClasses.Set(float64(stats.Classes))
	observability.CatalogMethods.Set(float64(stats.Methods))
	slog.Info("catalog loaded",
		"classes", stats.Classes,
		"methods", stats.Methods,
		"domains", stats.Domains,
		"fingerprint", graph.Fingerprint(),
		"reasoning", deps.Port.Enabled(),
	)

	return &Service{
		Config:       cfg,
		Graph:        graph,
		resolver:     resolver.New(graph, deps.Port, resolver.OptionsFromConfig(cfg)),
		parser:       deps.Parser,
		port:         deps.Port,
		history:      deps.History,
		excludeDirs:  excludeDirs,
		excludeFiles: excludeFiles,
		hashes:       make(map[string]string),
	}, nil
}

func (s *Service) Resolver() *resolver.Resolver {
	return s.resolver
}

func compileGlobs(patterns []string, label string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, fmt.Sprintf("invalid %s pattern %q", label, p))
		}
		out = append(out, g)
	}
	return out, nil
}
