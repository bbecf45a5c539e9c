package app

import (
	"apimatch/internal/core/ports"
	"apimatch/internal/data/steps"
	"apimatch/internal/engine/resolver"
	"apimatch/internal/engine/tracker"
	"apimatch/internal/shared/observability"
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ResolveSteps resolves a workflow in increasing step order, threading one
// tracker through so later steps see the objects earlier steps created.
// On cancellation the partial report is returned together with ctx's error.
func (s *Service) ResolveSteps(ctx context.Context, in []ports.DesignStep) (*Report, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.ResolveSteps", trace.WithAttributes(
		attribute.Int("steps", len(in)),
	))
	defer span.End()

	ordered, err := steps.Normalize(in)
	if err != nil {
		return nil, err
	}

	report := s.newReport(KindSteps)
	tr := tracker.New()
	for _, step := range ordered {
		if err := ctx.Err(); err != nil {
			report.finish()
			return report, err
		}
		res := s.resolver.Resolve(ctx, resolver.StepSubject(step), tr)
		created := tr.Record(step, res.Matches)
		slog.Debug("step resolved",
			"step", step.StepNumber,
			"matches", len(res.Matches),
			"created", len(created),
			"fallback", res.FallbackUsed,
		)
		report.Items = append(report.Items, Item{
			Key:          resolver.StepSubject(step).Key,
			StepNumber:   step.StepNumber,
			Title:        step.Title,
			Matches:      res.Matches,
			FallbackUsed: res.FallbackUsed,
		})
	}

	report.finish()
	s.persist(report)
	span.SetAttributes(attribute.Int("succeeded", report.Succeeded), attribute.Int("unmatched", report.Unmatched))
	return report, nil
}

// LoadAndResolve loads steps from src and resolves them.
func (s *Service) LoadAndResolve(ctx context.Context, src ports.StepSource) (*Report, error) {
	in, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	return s.ResolveSteps(ctx, in)
}
