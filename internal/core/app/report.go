package app

import (
	"apimatch/internal/core/errors"
	"apimatch/internal/core/ports"
	"apimatch/internal/data/history"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindSteps   Kind = "steps"
	KindSources Kind = "sources"
)

// Item is the outcome for one step or call site. Err is set when the
// subject could not be processed at all, e.g. an unparsable source unit.
// File and Line locate call-site items and are empty for steps.
type Item struct {
	Key          string
	StepNumber   int
	Title        string
	File         string
	Line         int
	Matches      []ports.MethodMatch
	FallbackUsed bool
	Err          error
}

// Report is one batch: items in input order plus the tally.
type Report struct {
	RunID              string
	Kind               Kind
	StartedAt          time.Time
	Duration           time.Duration
	CatalogFingerprint string
	Items              []Item

	Succeeded int
	Unmatched int
	Failed    int
	Fallbacks int
}

func (s *Service) newReport(kind Kind) *Report {
	return &Report{
		Kind:               kind,
		StartedAt:          time.Now().UTC(),
		CatalogFingerprint: s.Graph.Fingerprint(),
	}
}

func (r *Report) tally() {
	r.Succeeded, r.Unmatched, r.Failed, r.Fallbacks = 0, 0, 0, 0
	for _, it := range r.Items {
		switch {
		case it.Err != nil:
			r.Failed++
		case len(it.Matches) == 0:
			r.Unmatched++
		default:
			r.Succeeded++
		}
		if it.FallbackUsed {
			r.Fallbacks++
		}
	}
}

func (r *Report) finish() {
	r.Duration = time.Since(r.StartedAt)
	r.tally()
}

// Run converts the report for the history store; matches keep their 1-based
// rank within each item.
func (r *Report) Run() history.Run {
	run := history.Run{
		ID:                 r.RunID,
		Kind:               string(r.Kind),
		StartedAt:          r.StartedAt,
		Duration:           r.Duration,
		CatalogFingerprint: r.CatalogFingerprint,
		Items:              len(r.Items),
		Succeeded:          r.Succeeded,
		Unmatched:          r.Unmatched,
		Failed:             r.Failed,
		Fallbacks:          r.Fallbacks,
	}
	for _, it := range r.Items {
		for i, m := range it.Matches {
			run.Matches = append(run.Matches, history.MatchRecord{
				RunID:         r.RunID,
				ItemKey:       it.Key,
				StepNumber:    it.StepNumber,
				Rank:          i + 1,
				FullSignature: m.FullSignature,
				OwningClass:   m.OwningClass,
				MethodName:    m.MethodName,
				Confidence:    m.Confidence,
				Reasoning:     m.Reasoning,
			})
		}
	}
	return run
}

// persist stores the report when history is enabled. Failures are logged;
// a lost history row never fails a batch.
func (s *Service) persist(r *Report) {
	if s.history == nil {
		return
	}
	r.RunID = uuid.NewString()
	if err := s.history.SaveRun(r.Run()); err != nil {
		slog.Warn("failed to persist run", "run_id", r.RunID, "error", err)
		return
	}
	slog.Debug("run persisted", "run_id", r.RunID, "items", len(r.Items))
}

// Runs lists persisted runs, newest first.
func (s *Service) Runs(limit int) ([]history.Run, error) {
	if s.history == nil {
		return nil, errors.New(errors.CodeNotSupported, "run history is disabled")
	}
	return s.history.LoadRuns(limit)
}
