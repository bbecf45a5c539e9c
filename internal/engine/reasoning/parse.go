package reasoning

import (
	"apimatch/internal/core/errors"
	"apimatch/internal/shared/util"
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const noReasoning = "No reasoning provided"

// ratingLine matches "Candidate 2: 0.6843 - reasoning", "Class 2: ...",
// "2. 0.68 - ..." and markdown-decorated variants.
var ratingLine = regexp.MustCompile(`(?i)^[\s*#>-]*(?:candidate|class|method)?\s*#?(\d+)\**\s*[:.)]\s*\**\s*(\d*\.?\d+)\**\s*(?:[-:]+\s*(.*))?$`)

type jsonRating struct {
	Index     int     `json:"index"`
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// ParseRatings extracts ratings for n candidates from a backend answer. JSON
// (an object with "ratings" or a bare array) and the line format are both
// accepted; indices in the answer are 1-based. Out-of-range indices are
// dropped, scores clamped to [0,1], and the first rating per index wins.
func ParseRatings(content string, n int) ([]Rating, error) {
	body := stripFences(strings.TrimSpace(content))

	var raw []jsonRating
	switch {
	case strings.HasPrefix(body, "{"):
		var wrapped struct {
			Ratings []jsonRating `json:"ratings"`
		}
		if err := json.Unmarshal([]byte(body), &wrapped); err == nil {
			raw = wrapped.Ratings
		}
	case strings.HasPrefix(body, "["):
		_ = json.Unmarshal([]byte(body), &raw)
	}
	if raw == nil {
		raw = parseLines(body)
	}

	seen := map[int]bool{}
	var out []Rating
	for _, r := range raw {
		idx := r.Index - 1
		if idx < 0 || idx >= n || seen[idx] || math.IsNaN(r.Score) {
			continue
		}
		seen[idx] = true
		reasoning := strings.TrimSpace(r.Reasoning)
		if reasoning == "" {
			reasoning = noReasoning
		}
		out = append(out, Rating{Index: idx, Score: util.Clamp01(r.Score), Reasoning: reasoning})
	}
	if len(out) == 0 {
		return nil, errors.New(errors.CodeReasoningUnavailable, "no ratings found in reasoning response")
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func parseLines(body string) []jsonRating {
	var out []jsonRating
	for _, line := range strings.Split(body, "\n") {
		m := ratingLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		out = append(out, jsonRating{Index: idx, Score: score, Reasoning: m[3]})
	}
	return out
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
