package runtime

import (
	"apimatch/internal/core/app"
	"apimatch/internal/core/ports"
	"apimatch/internal/mcp/contracts"
	"context"
	"time"
)

func handleResolveSteps(ctx context.Context, svc *app.Service, in contracts.ResolveStepsInput, maxItems int) (contracts.ResolveOutput, error) {
	designSteps := make([]ports.DesignStep, 0, len(in.Steps))
	for _, step := range in.Steps {
		designSteps = append(designSteps, ports.DesignStep{
			StepNumber:      step.StepNumber,
			Title:           step.Title,
			Description:     step.Description,
			ExpectedOutcome: step.ExpectedOutcome,
			Keywords:        step.Keywords,
		})
	}
	report, err := svc.ResolveSteps(ctx, designSteps)
	if err != nil {
		return contracts.ResolveOutput{}, err
	}
	return toResolveOutput(report, maxItems), nil
}

func handleResolveSources(ctx context.Context, svc *app.Service, in contracts.ResolveSourcesInput, maxItems int) (contracts.ResolveOutput, error) {
	report, err := svc.ResolveSources(ctx, in.Paths)
	if err != nil {
		return contracts.ResolveOutput{}, err
	}
	return toResolveOutput(report, maxItems), nil
}

func handleCatalogStats(svc *app.Service) contracts.CatalogStatsOutput {
	stats := svc.Graph.Stats()
	return contracts.CatalogStatsOutput{
		Fingerprint: svc.Graph.Fingerprint(),
		Classes:     stats.Classes,
		Methods:     stats.Methods,
		Factories:   stats.Factories,
		Collections: stats.Collections,
		Documented:  stats.Documented,
		Domains:     svc.Graph.Domains(),
	}
}

func handleHistoryRuns(svc *app.Service, in contracts.HistoryRunsInput, maxItems int) (contracts.HistoryRunsOutput, error) {
	limit := in.Limit
	if limit <= 0 || limit > maxItems {
		limit = maxItems
	}
	runs, err := svc.Runs(limit)
	if err != nil {
		return contracts.HistoryRunsOutput{}, err
	}
	out := contracts.HistoryRunsOutput{Runs: make([]contracts.RunSummary, 0, len(runs))}
	for _, run := range runs {
		out.Runs = append(out.Runs, contracts.RunSummary{
			ID:                 run.ID,
			Kind:               run.Kind,
			StartedAt:          run.StartedAt.Format(time.RFC3339),
			DurationMs:         run.Duration.Milliseconds(),
			CatalogFingerprint: run.CatalogFingerprint,
			Items:              run.Items,
			Succeeded:          run.Succeeded,
			Unmatched:          run.Unmatched,
			Failed:             run.Failed,
			Fallbacks:          run.Fallbacks,
		})
	}
	return out, nil
}

// toResolveOutput keeps the tally of the whole report even when the item
// list is cut at maxItems.
func toResolveOutput(r *app.Report, maxItems int) contracts.ResolveOutput {
	out := contracts.ResolveOutput{
		RunID:      r.RunID,
		Kind:       string(r.Kind),
		DurationMs: r.Duration.Milliseconds(),
		Succeeded:  r.Succeeded,
		Unmatched:  r.Unmatched,
		Failed:     r.Failed,
		Fallbacks:  r.Fallbacks,
		Items:      make([]contracts.Item, 0, len(r.Items)),
	}
	items := r.Items
	if maxItems > 0 && len(items) > maxItems {
		items = items[:maxItems]
		out.Truncated = true
	}
	for _, it := range items {
		item := contracts.Item{
			Key:          it.Key,
			StepNumber:   it.StepNumber,
			Title:        it.Title,
			File:         it.File,
			Line:         it.Line,
			Matches:      make([]contracts.Match, 0, len(it.Matches)),
			FallbackUsed: it.FallbackUsed,
		}
		if it.Err != nil {
			item.Error = it.Err.Error()
		}
		for i, m := range it.Matches {
			item.Matches = append(item.Matches, contracts.Match{
				Rank:          i + 1,
				FullSignature: m.FullSignature,
				OwningClass:   m.OwningClass,
				MethodName:    m.MethodName,
				Confidence:    m.Confidence,
				Reasoning:     m.Reasoning,
			})
		}
		out.Items = append(out.Items, item)
	}
	return out
}
