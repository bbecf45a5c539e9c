package contracts

const (
	ToolNameAPIMatch = "apimatch"
	ContractVersion  = "v1"
)

type OperationID string

const (
	OperationResolveSteps   OperationID = "resolve.steps"
	OperationResolveSources OperationID = "resolve.sources"
	OperationCatalogStats   OperationID = "catalog.stats"
	OperationHistoryRuns    OperationID = "history.runs"
)

// Operations lists every operation in the order tools/list advertises them.
var Operations = []OperationID{
	OperationResolveSteps,
	OperationResolveSources,
	OperationCatalogStats,
	OperationHistoryRuns,
}

type Step struct {
	StepNumber      int      `json:"step_number"`
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	ExpectedOutcome string   `json:"expected_outcome,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
}

type ResolveStepsInput struct {
	Steps []Step `json:"steps"`
}

type ResolveSourcesInput struct {
	Paths []string `json:"paths"`
}

type Match struct {
	Rank          int     `json:"rank"`
	FullSignature string  `json:"full_signature"`
	OwningClass   string  `json:"owning_class"`
	MethodName    string  `json:"method_name"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning,omitempty"`
}

type Item struct {
	Key          string  `json:"key"`
	StepNumber   int     `json:"step_number,omitempty"`
	Title        string  `json:"title,omitempty"`
	File         string  `json:"file,omitempty"`
	Line         int     `json:"line,omitempty"`
	Matches      []Match `json:"matches"`
	FallbackUsed bool    `json:"fallback_used,omitempty"`
	Error        string  `json:"error,omitempty"`
}

type ResolveOutput struct {
	RunID      string `json:"run_id,omitempty"`
	Kind       string `json:"kind"`
	DurationMs int64  `json:"duration_ms"`
	Succeeded  int    `json:"succeeded"`
	Unmatched  int    `json:"unmatched"`
	Failed     int    `json:"failed"`
	Fallbacks  int    `json:"fallbacks"`
	Items      []Item `json:"items"`
	Truncated  bool   `json:"truncated,omitempty"`
}

type CatalogStatsInput struct{}

type CatalogStatsOutput struct {
	Fingerprint string   `json:"fingerprint"`
	Classes     int      `json:"classes"`
	Methods     int      `json:"methods"`
	Factories   int      `json:"factories"`
	Collections int      `json:"collections"`
	Documented  int      `json:"documented"`
	Domains     []string `json:"domains"`
}

type HistoryRunsInput struct {
	Limit int `json:"limit,omitempty"`
}

type RunSummary struct {
	ID                 string `json:"id"`
	Kind               string `json:"kind"`
	StartedAt          string `json:"started_at"`
	DurationMs         int64  `json:"duration_ms"`
	CatalogFingerprint string `json:"catalog_fingerprint"`
	Items              int    `json:"items"`
	Succeeded          int    `json:"succeeded"`
	Unmatched          int    `json:"unmatched"`
	Failed             int    `json:"failed"`
	Fallbacks          int    `json:"fallbacks"`
}

type HistoryRunsOutput struct {
	Runs []RunSummary `json:"runs"`
}

type ToolError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e ToolError) Error() string {
	return e.Message
}

const (
	ErrorInvalidArgument = "invalid_argument"
	ErrorNotFound        = "not_found"
	ErrorInternal        = "internal"
	ErrorUnavailable     = "unavailable"
)
