package validate

import (
	"apimatch/internal/mcp/contracts"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	maxPathCount  = 64
	maxStepCount  = 500
	maxLimitValue = 5000
)

func ValidateToolArgs(tool string, raw map[string]any) (any, error) {
	_, input, err := ParseToolArgs(tool, raw)
	return input, err
}

func ParseToolArgs(tool string, raw map[string]any) (contracts.OperationID, any, error) {
	if strings.TrimSpace(tool) == "" {
		return "", nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "tool name is required"}
	}
	if tool != contracts.ToolNameAPIMatch {
		return "", nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: fmt.Sprintf("unsupported tool: %s", tool)}
	}
	if raw == nil {
		raw = map[string]any{}
	}

	operationRaw, ok := raw["operation"].(string)
	if !ok || strings.TrimSpace(operationRaw) == "" {
		return "", nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "operation is required"}
	}
	operation := contracts.OperationID(strings.TrimSpace(operationRaw))

	params := map[string]any{}
	if rawParams, ok := raw["params"]; ok && rawParams != nil {
		if typed, ok := rawParams.(map[string]any); ok {
			params = typed
		} else {
			return "", nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "params must be an object"}
		}
	}

	switch operation {
	case contracts.OperationResolveSteps:
		var input contracts.ResolveStepsInput
		if err := decodeParams(params, &input); err != nil {
			return "", nil, err
		}
		if len(input.Steps) == 0 {
			return "", nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "steps are required"}
		}
		if len(input.Steps) > maxStepCount {
			return "", nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "too many steps requested"}
		}
		for i, step := range input.Steps {
			if step.StepNumber < 0 {
				return "", nil, contracts.ToolError{
					Code:    contracts.ErrorInvalidArgument,
					Message: "step_number must not be negative",
					Details: map[string]any{"index": i},
				}
			}
			input.Steps[i].Title = strings.TrimSpace(step.Title)
		}
		return operation, input, nil
	case contracts.OperationResolveSources:
		var input contracts.ResolveSourcesInput
		if err := decodeParams(params, &input); err != nil {
			return "", nil, err
		}
		input.Paths = normalizeStrings(input.Paths, maxPathCount)
		if len(input.Paths) == 0 {
			return "", nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "paths are required"}
		}
		return operation, input, nil
	case contracts.OperationCatalogStats:
		var input contracts.CatalogStatsInput
		if err := decodeParams(params, &input); err != nil {
			return "", nil, err
		}
		return operation, input, nil
	case contracts.OperationHistoryRuns:
		var input contracts.HistoryRunsInput
		if err := decodeParams(params, &input); err != nil {
			return "", nil, err
		}
		if input.Limit < 0 || input.Limit > maxLimitValue {
			return "", nil, invalidLimitError("limit")
		}
		return operation, input, nil
	default:
		return "", nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: fmt.Sprintf("unsupported operation: %s", operation)}
	}
}

func decodeParams(params map[string]any, out any) error {
	data, err := json.Marshal(params)
	if err != nil {
		return contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "invalid params encoding"}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "invalid params", Details: map[string]any{"error": err.Error()}}
	}
	return nil
}

func normalizeStrings(values []string, maxCount int) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if seen[trimmed] {
			continue
		}
		if maxCount > 0 && len(out) >= maxCount {
			break
		}
		seen[trimmed] = true
		out = append(out, trimmed)
	}
	return out
}

func invalidLimitError(field string) error {
	return contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: fmt.Sprintf("%s is out of range", field)}
}
