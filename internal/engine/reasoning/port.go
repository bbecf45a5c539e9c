// Package reasoning rates candidate classes or methods against a subject
// through an optional external backend.
package reasoning

import (
	"apimatch/internal/core/config"
	"apimatch/internal/core/errors"
	"apimatch/internal/shared/util"
	"context"
)

type Kind string

const (
	KindClass  Kind = "class"
	KindMethod Kind = "method"
)

// Candidate is one entry offered for rating. Position in Request.Candidates
// is the identity a Rating refers back to.
type Candidate struct {
	Label       string
	Description string
	Details     []string
}

type Request struct {
	Kind Kind
	// Subject is the step or call being resolved, rendered as text.
	Subject string
	// Context carries object-tracker and workflow hints.
	Context    string
	Level      int
	Candidates []Candidate
}

// Rating scores the candidate at Index (0-based) in the request.
type Rating struct {
	Index     int
	Score     float64
	Reasoning string
}

// Port is a reasoning backend. Implementations are safe for concurrent use.
type Port interface {
	Enabled() bool
	Rate(ctx context.Context, req Request) ([]Rating, error)
}

// Null is the disabled backend.
type Null struct{}

func (Null) Enabled() bool { return false }

func (Null) Rate(ctx context.Context, req Request) ([]Rating, error) {
	return nil, errors.New(errors.CodeReasoningUnavailable, "reasoning is disabled")
}

// FromConfig builds the port selected by the reasoning section.
func FromConfig(cfg *config.Config) Port {
	if cfg == nil || !cfg.ReasoningEnabled() {
		return Null{}
	}
	r := cfg.Reasoning
	return NewOpenAIPort(OpenAIOptions{
		BaseURL:       r.BaseURL,
		Model:         r.Model,
		APIKey:        cfg.APIKey(),
		Timeout:       r.Timeout,
		MaxCandidates: r.MaxCandidates,
		Limiter:       util.NewLimiter(r.RatePerSecond, r.Burst),
	})
}
