// Package steps loads the design steps of a workflow from YAML files or the
// design_steps table of a design database.
package steps

import (
	"apimatch/internal/core/errors"
	"apimatch/internal/core/ports"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type yamlFile struct {
	Steps []ports.DesignStep `yaml:"steps"`
}

// LoadYAML reads a `steps:` list and returns it normalized.
func LoadYAML(path string) ([]ports.DesignStep, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(
			errors.Wrap(err, errors.CodeNotFound, "read steps file"),
			errors.CtxPath, path,
		)
	}
	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.AddContext(
			errors.Wrap(err, errors.CodeValidationError, "decode steps file"),
			errors.CtxPath, path,
		)
	}
	return Normalize(f.Steps)
}

// Normalize trims text fields, sorts by step number and rejects duplicate
// or negative numbers and steps without any text.
func Normalize(in []ports.DesignStep) ([]ports.DesignStep, error) {
	out := make([]ports.DesignStep, 0, len(in))
	seen := make(map[int]bool, len(in))
	for _, s := range in {
		s.Title = strings.TrimSpace(s.Title)
		s.Description = strings.TrimSpace(s.Description)
		s.ExpectedOutcome = strings.TrimSpace(s.ExpectedOutcome)
		if s.StepNumber < 0 {
			return nil, errors.AddContext(
				errors.New(errors.CodeValidationError, "step number must not be negative"),
				errors.CtxStep, s.StepNumber,
			)
		}
		if seen[s.StepNumber] {
			return nil, errors.AddContext(
				errors.New(errors.CodeValidationError, fmt.Sprintf("duplicate step number %d", s.StepNumber)),
				errors.CtxStep, s.StepNumber,
			)
		}
		if s.Title == "" && s.Description == "" {
			return nil, errors.AddContext(
				errors.New(errors.CodeValidationError, "step has neither title nor description"),
				errors.CtxStep, s.StepNumber,
			)
		}
		if s.Title == "" {
			s.Title = fmt.Sprintf("Step %d", s.StepNumber)
		}
		seen[s.StepNumber] = true
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StepNumber < out[j].StepNumber })
	return out, nil
}

// FileSource adapts LoadYAML to ports.StepSource.
type FileSource struct {
	Path string
}

func (f FileSource) Load(ctx context.Context) ([]ports.DesignStep, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadYAML(f.Path)
}
