package transport

import (
	"apimatch/internal/core/config"
	"apimatch/internal/mcp/contracts"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(ctx context.Context, tool string, raw map[string]any) (any, error) {
	if tool != contracts.ToolNameAPIMatch {
		return nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "unsupported tool: " + tool}
	}
	return map[string]any{"operation": raw["operation"]}, nil
}

func serveLines(t *testing.T, cfg config.MCPRateLimit, lines ...string) []map[string]any {
	t.Helper()
	var out bytes.Buffer
	s := NewStream(cfg, strings.NewReader(strings.Join(lines, "\n")+"\n"), &out)
	require.NoError(t, s.Start(context.Background(), echoHandler))

	var responses []map[string]any
	dec := json.NewDecoder(&out)
	for dec.More() {
		var resp map[string]any
		require.NoError(t, dec.Decode(&resp))
		responses = append(responses, resp)
	}
	return responses
}

func TestStdio_JSONRPC(t *testing.T) {
	responses := serveLines(t, config.MCPRateLimit{},
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"apimatch","arguments":{"operation":"catalog.stats"}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"other"}}`,
		`{"jsonrpc":"2.0","id":5,"method":"resources/list"}`,
	)
	require.Len(t, responses, 5, "notifications must not be answered")

	info := responses[0]["result"].(map[string]any)["serverInfo"].(map[string]any)
	assert.Equal(t, "apimatch", info["name"])

	tools := responses[1]["result"].(map[string]any)["tools"].([]any)
	require.Len(t, tools, 1)
	assert.Equal(t, "apimatch", tools[0].(map[string]any)["name"])

	call := responses[2]["result"].(map[string]any)
	assert.Equal(t, false, call["isError"])
	assert.Equal(t, "catalog.stats", call["structuredContent"].(map[string]any)["operation"])

	failed := responses[3]["result"].(map[string]any)
	assert.Equal(t, true, failed["isError"])
	text := failed["content"].([]any)[0].(map[string]any)["text"].(string)
	assert.Contains(t, text, "invalid_argument")

	rpcErr := responses[4]["error"].(map[string]any)
	assert.Equal(t, float64(-32601), rpcErr["code"])
}

func TestStdio_LegacyToolRequest(t *testing.T) {
	responses := serveLines(t, config.MCPRateLimit{},
		`{"id":"a","tool":"apimatch","args":{"operation":"history.runs"}}`,
		`{"id":"b","tool":"nope"}`,
	)
	require.Len(t, responses, 2)

	assert.Equal(t, true, responses[0]["ok"])
	assert.Equal(t, "history.runs", responses[0]["result"].(map[string]any)["operation"])

	assert.Equal(t, false, responses[1]["ok"])
	assert.Equal(t, contracts.ErrorInvalidArgument, responses[1]["error"].(map[string]any)["code"])
}

func TestStdio_RateLimited(t *testing.T) {
	responses := serveLines(t, config.MCPRateLimit{Enabled: true, RequestsPerMinute: 1, Burst: 1},
		`{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
	)
	require.Len(t, responses, 2)
	assert.Nil(t, responses[0]["error"])
	rpcErr := responses[1]["error"].(map[string]any)
	assert.Equal(t, float64(-32005), rpcErr["code"])
	assert.Equal(t, float64(2), responses[1]["id"])
}

func TestStdio_RequiresHandler(t *testing.T) {
	s := NewStream(config.MCPRateLimit{}, strings.NewReader(""), &bytes.Buffer{})
	assert.Error(t, s.Start(context.Background(), nil))
}
