package history

import "time"

const SchemaVersion = 1

// Run is one persisted batch report.
type Run struct {
	ID                 string
	Kind               string
	StartedAt          time.Time
	Duration           time.Duration
	CatalogFingerprint string
	Items              int
	Succeeded          int
	Unmatched          int
	Failed             int
	Fallbacks          int
	Matches            []MatchRecord
}

// MatchRecord is one ranked match of one run item. Rank is 1-based.
type MatchRecord struct {
	RunID         string
	ItemKey       string
	StepNumber    int
	Rank          int
	FullSignature string
	OwningClass   string
	MethodName    string
	Confidence    float64
	Reasoning     string
}
