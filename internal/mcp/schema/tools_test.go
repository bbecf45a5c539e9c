package schema

import (
	"apimatch/internal/mcp/contracts"
	"strings"
	"testing"
)

func TestBuildToolDefinitions(t *testing.T) {
	defs := BuildToolDefinitions()
	if len(defs) != 1 || defs[0].Name != contracts.ToolNameAPIMatch {
		t.Fatalf("expected the single apimatch tool, got %+v", defs)
	}

	props := defs[0].InputSchema["properties"].(map[string]any)
	enum := props["operation"].(map[string]any)["enum"].([]string)
	if len(enum) != len(contracts.Operations) {
		t.Fatalf("expected %d operations, got %v", len(contracts.Operations), enum)
	}
	for _, op := range contracts.Operations {
		if !strings.Contains(defs[0].Description, string(op)+":") {
			t.Errorf("description does not document %s", op)
		}
	}
}
