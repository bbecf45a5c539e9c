package catalog

import (
	"apimatch/internal/core/errors"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestVersion is the only snapshot layout this build understands.
const ManifestVersion = 1

// Manifest is the serialized snapshot produced offline by reflecting over the
// target API.
type Manifest struct {
	Version     int                   `json:"version" yaml:"version"`
	API         string                `json:"api,omitempty" yaml:"api,omitempty"`
	GeneratedAt string                `json:"generated_at,omitempty" yaml:"generated_at,omitempty"`
	Classes     map[string]ClassEntry `json:"classes" yaml:"classes"`
}

type ClassEntry struct {
	FullPath      string                  `json:"full_path" yaml:"full_path"`
	Domain        string                  `json:"domain,omitempty" yaml:"domain,omitempty"`
	ParentClasses []string                `json:"parent_classes,omitempty" yaml:"parent_classes,omitempty"`
	Methods       map[string]string       `json:"methods" yaml:"methods"`
	MethodDetails map[string]MethodDetail `json:"method_details,omitempty" yaml:"method_details,omitempty"`
	Purpose       string                  `json:"purpose,omitempty" yaml:"purpose,omitempty"`
	Docstring     string                  `json:"docstring,omitempty" yaml:"docstring,omitempty"`
	IsFactory     *bool                   `json:"is_factory,omitempty" yaml:"is_factory,omitempty"`
	IsCollection  *bool                   `json:"is_collection,omitempty" yaml:"is_collection,omitempty"`
}

type MethodDetail struct {
	Parameters []string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	ReturnType string   `json:"return_type,omitempty" yaml:"return_type,omitempty"`
	Purpose    string   `json:"purpose,omitempty" yaml:"purpose,omitempty"`
	Kind       string   `json:"kind,omitempty" yaml:"kind,omitempty"`
}

// LoadManifest reads a JSON or YAML snapshot. Any failure is reported as
// CATALOG_UNAVAILABLE since nothing downstream can run without it.
func LoadManifest(path string) (*Manifest, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New(errors.CodeCatalogUnavailable, "catalog path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(
			errors.Wrap(err, errors.CodeCatalogUnavailable, "read catalog manifest"),
			errors.CtxPath, path,
		)
	}
	m, err := DecodeManifest(data, filepath.Ext(path))
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	return m, nil
}

// DecodeManifest parses data according to ext (".json", ".yaml" or ".yml").
func DecodeManifest(data []byte, ext string) (*Manifest, error) {
	var m Manifest
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, errors.Wrap(err, errors.CodeCatalogUnavailable, "decode json manifest")
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, errors.Wrap(err, errors.CodeCatalogUnavailable, "decode yaml manifest")
		}
	default:
		return nil, errors.New(errors.CodeCatalogUnavailable, "unsupported manifest format "+ext)
	}
	return &m, nil
}

// Catalog source formats.
const (
	FormatManifest = "manifest"
	FormatOpenAPI  = "openapi"
)

// Open loads the manifest, merges optional purposes and builds the graph.
func Open(manifestPath, purposesDB string) (*KnowledgeGraph, error) {
	return OpenFormat(FormatManifest, manifestPath, purposesDB)
}

// OpenFormat is Open for a catalog source in the given format.
func OpenFormat(format, path, purposesDB string) (*KnowledgeGraph, error) {
	var (
		m   *Manifest
		err error
	)
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatManifest:
		m, err = LoadManifest(path)
	case FormatOpenAPI:
		m, err = LoadOpenAPI(path)
	default:
		err = errors.New(errors.CodeCatalogUnavailable, "unsupported catalog format "+format)
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(purposesDB) != "" {
		if _, err := ImportPurposes(purposesDB, m); err != nil {
			return nil, err
		}
	}
	return Build(m)
}
