package ports

import (
	"apimatch/internal/data/history"
	"apimatch/internal/engine/parser"
	"context"
	"strings"
)

// DesignStep is one natural-language operation in a multi-step workflow.
// Steps are resolved in increasing StepNumber order.
type DesignStep struct {
	StepNumber      int      `json:"step_number" yaml:"step_number"`
	Title           string   `json:"title" yaml:"title"`
	Description     string   `json:"description" yaml:"description"`
	ExpectedOutcome string   `json:"expected_outcome,omitempty" yaml:"expected_outcome,omitempty"`
	Keywords        []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// Text joins every free-text field of the step.
func (s DesignStep) Text() string {
	parts := []string{s.Title, s.Description, s.ExpectedOutcome}
	parts = append(parts, s.Keywords...)
	return strings.Join(nonEmpty(parts), " ")
}

// MethodMatch is one ranked candidate produced by a resolution call.
type MethodMatch struct {
	FullSignature     string   `json:"full_signature"`
	OwningClass       string   `json:"owning_class"`
	MethodName        string   `json:"method_name"`
	Confidence        float64  `json:"confidence"`
	Reasoning         string   `json:"reasoning"`
	StepNumber        int      `json:"step_number"`
	ReferencedObjects []string `json:"referenced_objects,omitempty"`
	// ViaClass is the class the method was reached through; it differs from
	// OwningClass for inherited methods.
	ViaClass string `json:"via_class,omitempty"`
}

// CallParser abstracts source parsing and file support checks.
type CallParser interface {
	ParseFile(path string, content []byte) (*parser.Unit, error)
	IsSupportedPath(path string) bool
}

// HistoryStore abstracts run persistence.
type HistoryStore interface {
	SaveRun(run history.Run) error
	LoadRuns(limit int) ([]history.Run, error)
}

// StepSource loads the design steps of one workflow.
type StepSource interface {
	Load(ctx context.Context) ([]DesignStep, error)
}

func nonEmpty(in []string) []string {
	out := in[:0:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
