package report

import (
	"apimatch/internal/data/history"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RenderRunsTSV lists persisted runs, newest first as loaded.
func RenderRunsTSV(runs []history.Run) ([]byte, error) {
	var buf strings.Builder

	buf.WriteString("RunID\tKind\tStartedAt\tDurationMS\tCatalog\tItems\tSucceeded\tUnmatched\tFailed\tFallbacks\tMatchRate\n")
	for _, run := range runs {
		buf.WriteString(fmt.Sprintf("%s\t%s\t%s\t%d\t%s\t%d\t%d\t%d\t%d\t%d\t%.2f\n",
			run.ID,
			run.Kind,
			run.StartedAt.UTC().Format(time.RFC3339),
			run.Duration.Milliseconds(),
			shortFingerprint(run.CatalogFingerprint),
			run.Items,
			run.Succeeded,
			run.Unmatched,
			run.Failed,
			run.Fallbacks,
			matchRate(run),
		))
	}

	return []byte(buf.String()), nil
}

func RenderRunsJSON(runs []history.Run) ([]byte, error) {
	type row struct {
		ID                 string    `json:"id"`
		Kind               string    `json:"kind"`
		StartedAt          time.Time `json:"started_at"`
		DurationMS         int64     `json:"duration_ms"`
		CatalogFingerprint string    `json:"catalog_fingerprint"`
		Items              int       `json:"items"`
		Succeeded          int       `json:"succeeded"`
		Unmatched          int       `json:"unmatched"`
		Failed             int       `json:"failed"`
		Fallbacks          int       `json:"fallbacks"`
		MatchRate          float64   `json:"match_rate"`
	}
	rows := make([]row, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, row{
			ID:                 run.ID,
			Kind:               run.Kind,
			StartedAt:          run.StartedAt.UTC(),
			DurationMS:         run.Duration.Milliseconds(),
			CatalogFingerprint: run.CatalogFingerprint,
			Items:              run.Items,
			Succeeded:          run.Succeeded,
			Unmatched:          run.Unmatched,
			Failed:             run.Failed,
			Fallbacks:          run.Fallbacks,
			MatchRate:          matchRate(run),
		})
	}
	return json.MarshalIndent(rows, "", "  ")
}

// matchRate is the share of processed items with at least one match.
func matchRate(run history.Run) float64 {
	processed := run.Items - run.Failed
	if processed <= 0 {
		return 0
	}
	return float64(run.Succeeded) / float64(processed)
}
