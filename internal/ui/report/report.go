package report

import (
	"apimatch/internal/core/app"
	"apimatch/internal/core/ports"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const (
	FormatText = "text"
	FormatTSV  = "tsv"
	FormatJSON = "json"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	matchStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	unmatchedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)

	reasonStyle = lipgloss.NewStyle().MarginLeft(6)
)

// Render renders rep in the named format.
func Render(rep *app.Report, format string) ([]byte, error) {
	if rep == nil {
		return nil, fmt.Errorf("report is nil")
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		return RenderText(rep), nil
	case FormatTSV:
		return RenderTSV(rep)
	case FormatJSON:
		return RenderJSON(rep)
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
}

func RenderText(rep *app.Report) []byte {
	var b strings.Builder

	header := fmt.Sprintf("apimatch %s report", rep.Kind)
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n")
	meta := []string{"catalog " + shortFingerprint(rep.CatalogFingerprint)}
	if rep.RunID != "" {
		meta = append(meta, "run "+rep.RunID)
	}
	b.WriteString(statusStyle.Render(strings.Join(meta, "  ")))
	b.WriteString("\n\n")

	for _, it := range rep.Items {
		b.WriteString(itemHeading(it))
		b.WriteString("\n")
		switch {
		case it.Err != nil:
			b.WriteString("  " + errorStyle.Render("error: ") + it.Err.Error() + "\n")
		case len(it.Matches) == 0:
			b.WriteString("  " + unmatchedStyle.Render("no match") + "\n")
		default:
			for i, m := range it.Matches {
				b.WriteString(fmt.Sprintf("  %d. %s  %s\n", i+1, m.FullSignature, matchStyle.Render(fmt.Sprintf("%.3f", m.Confidence))))
				if m.Reasoning != "" {
					b.WriteString(reasonStyle.Render(m.Reasoning))
					b.WriteString("\n")
				}
			}
		}
		if it.FallbackUsed {
			b.WriteString("  " + statusStyle.Render("reasoning unavailable, heuristic ranking used") + "\n")
		}
	}

	summary := fmt.Sprintf("%d matched, %d unmatched, %d failed, %d fallbacks (%s)",
		rep.Succeeded, rep.Unmatched, rep.Failed, rep.Fallbacks, rep.Duration.Round(time.Millisecond))
	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Summary: "))
	b.WriteString(summary)
	b.WriteString("\n")
	return []byte(b.String())
}

func itemHeading(it app.Item) string {
	if it.Title == "" {
		return titleStyle.Render(it.Key)
	}
	if it.StepNumber > 0 && it.Key == fmt.Sprintf("step %d", it.StepNumber) {
		return titleStyle.Render(fmt.Sprintf("Step %d: %s", it.StepNumber, it.Title))
	}
	return titleStyle.Render(it.Key) + " " + statusStyle.Render(it.Title)
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	if fp == "" {
		return "unknown"
	}
	return fp
}

// RenderTSV writes one row per match. Unmatched and failed items get one
// row with rank 0 so every item appears in the output.
func RenderTSV(rep *app.Report) ([]byte, error) {
	var buf strings.Builder

	buf.WriteString("Key\tStep\tTitle\tStatus\tRank\tClass\tMethod\tSignature\tConfidence\tFallback\tReasoning\n")
	for _, it := range rep.Items {
		if len(it.Matches) == 0 || it.Err != nil {
			status, note := "unmatched", ""
			if it.Err != nil {
				status, note = "failed", it.Err.Error()
			}
			buf.WriteString(fmt.Sprintf("%s\t%d\t%s\t%s\t0\t\t\t\t0.000\t%t\t%s\n",
				cell(it.Key), it.StepNumber, cell(it.Title), status, it.FallbackUsed, cell(note)))
			continue
		}
		for i, m := range it.Matches {
			buf.WriteString(fmt.Sprintf("%s\t%d\t%s\tmatched\t%d\t%s\t%s\t%s\t%.3f\t%t\t%s\n",
				cell(it.Key),
				it.StepNumber,
				cell(it.Title),
				i+1,
				m.OwningClass,
				m.MethodName,
				cell(m.FullSignature),
				m.Confidence,
				it.FallbackUsed,
				cell(m.Reasoning),
			))
		}
	}

	return []byte(buf.String()), nil
}

func cell(s string) string {
	return strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(s)
}

type jsonReport struct {
	RunID              string     `json:"run_id,omitempty"`
	Kind               string     `json:"kind"`
	StartedAt          time.Time  `json:"started_at"`
	DurationMS         int64      `json:"duration_ms"`
	CatalogFingerprint string     `json:"catalog_fingerprint"`
	Summary            jsonTally  `json:"summary"`
	Items              []jsonItem `json:"items"`
}

type jsonTally struct {
	Succeeded int `json:"succeeded"`
	Unmatched int `json:"unmatched"`
	Failed    int `json:"failed"`
	Fallbacks int `json:"fallbacks"`
}

type jsonItem struct {
	Key          string              `json:"key"`
	StepNumber   int                 `json:"step_number"`
	Title        string              `json:"title,omitempty"`
	FallbackUsed bool                `json:"fallback_used"`
	Error        string              `json:"error,omitempty"`
	Matches      []ports.MethodMatch `json:"matches"`
}

func RenderJSON(rep *app.Report) ([]byte, error) {
	doc := jsonReport{
		RunID:              rep.RunID,
		Kind:               string(rep.Kind),
		StartedAt:          rep.StartedAt,
		DurationMS:         rep.Duration.Milliseconds(),
		CatalogFingerprint: rep.CatalogFingerprint,
		Summary: jsonTally{
			Succeeded: rep.Succeeded,
			Unmatched: rep.Unmatched,
			Failed:    rep.Failed,
			Fallbacks: rep.Fallbacks,
		},
		Items: make([]jsonItem, 0, len(rep.Items)),
	}
	for _, it := range rep.Items {
		item := jsonItem{
			Key:          it.Key,
			StepNumber:   it.StepNumber,
			Title:        it.Title,
			FallbackUsed: it.FallbackUsed,
			Matches:      it.Matches,
		}
		if item.Matches == nil {
			item.Matches = []ports.MethodMatch{}
		}
		if it.Err != nil {
			item.Error = it.Err.Error()
		}
		doc.Items = append(doc.Items, item)
	}
	return json.MarshalIndent(doc, "", "  ")
}
