package schema

import (
	"apimatch/internal/mcp/contracts"
	"fmt"
	"strings"
)

type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
	Version     string         `json:"version"`
}

var operationSummaries = map[contracts.OperationID]string{
	contracts.OperationResolveSteps:   "params.steps: [{step_number, title, description, expected_outcome, keywords}] resolved in step order",
	contracts.OperationResolveSources: "params.paths: files or directories whose call sites are resolved",
	contracts.OperationCatalogStats:   "catalog size, fingerprint and domains",
	contracts.OperationHistoryRuns:    "params.limit: most recent persisted runs",
}

func BuildToolDefinitions() []ToolDefinition {
	operations := make([]string, 0, len(contracts.Operations))
	lines := []string{"Resolve design steps or source call sites to catalog methods."}
	for _, op := range contracts.Operations {
		operations = append(operations, string(op))
		lines = append(lines, fmt.Sprintf("%s: %s.", op, operationSummaries[op]))
	}

	return []ToolDefinition{
		{
			Name:        contracts.ToolNameAPIMatch,
			Description: strings.Join(lines, "\n"),
			Version:     contracts.ContractVersion,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"operation": map[string]any{
						"type":        "string",
						"description": "Operation identifier (e.g., resolve.steps).",
						"enum":        operations,
					},
					"params": map[string]any{
						"type":                 "object",
						"additionalProperties": true,
					},
				},
				"required": []string{"operation"},
			},
		},
	}
}
