package transport

import (
	"apimatch/internal/core/config"
	"apimatch/internal/mcp/contracts"
	"apimatch/internal/mcp/schema"
	"apimatch/internal/shared/util"
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

const protocolVersion = "2025-06-18"

// JSON-RPC error codes.
const (
	codeMethodNotFound = -32601
	codeRateLimited    = -32005
)

type Handler func(ctx context.Context, tool string, raw map[string]any) (any, error)

type Adapter interface {
	Start(ctx context.Context, handler Handler) error
	Stop() error
}

// Stdio serves newline-delimited JSON requests. JSON-RPC 2.0 messages and
// the bare {"tool","args"} form are accepted on the same stream.
type Stdio struct {
	limiter *util.Limiter
	in      io.Reader
	out     io.Writer

	mu      sync.Mutex
	running bool
}

func NewStdio(cfg config.MCPRateLimit) (Adapter, error) {
	return NewStream(cfg, os.Stdin, os.Stdout), nil
}

// NewStream serves requests read from in and writes responses to out.
func NewStream(cfg config.MCPRateLimit, in io.Reader, out io.Writer) *Stdio {
	s := &Stdio{in: in, out: out}
	if cfg.Enabled {
		s.limiter = util.NewLimiter(float64(cfg.RequestsPerMinute)/60.0, cfg.Burst)
	}
	return s
}

// Start blocks until the input ends or ctx is cancelled. A second concurrent
// Start waits for ctx instead of reading the same stream.
func (s *Stdio) Start(ctx context.Context, handler Handler) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		<-ctx.Done()
		return ctx.Err()
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if err := s.serve(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}

func (s *Stdio) Stop() error {
	return nil
}

type toolRequest struct {
	ID   any            `json:"id,omitempty"`
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

type toolResponse struct {
	ID     any                  `json:"id,omitempty"`
	OK     bool                 `json:"ok"`
	Result any                  `json:"result,omitempty"`
	Error  *contracts.ToolError `json:"error,omitempty"`
}

type rpcRequest struct {
	ID     any
	Method string
	Params map[string]any
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id,omitempty"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// session owns the buffered output of one serve loop; every reply is
// flushed so clients see it before the next request is read.
type session struct {
	w   *bufio.Writer
	enc *json.Encoder
}

func (ss *session) reply(v any) error {
	if err := ss.enc.Encode(v); err != nil {
		return err
	}
	return ss.w.Flush()
}

func (s *Stdio) serve(ctx context.Context, handler Handler) error {
	if handler == nil {
		return contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "stdio handler is required"}
	}

	dec := json.NewDecoder(bufio.NewReader(s.in))
	w := bufio.NewWriter(s.out)
	ss := &session{w: w, enc: json.NewEncoder(w)}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var raw map[string]any
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if !s.limiter.Allow(1) {
			err := ss.reply(rpcResponse{
				JSONRPC: "2.0",
				ID:      raw["id"],
				Error:   &rpcError{Code: codeRateLimited, Message: "Rate limit exceeded"},
			})
			if err != nil {
				return err
			}
			continue
		}

		if req, ok := parseRPCRequest(raw); ok {
			resp, answer := handleRPC(ctx, handler, req)
			if !answer {
				continue
			}
			if err := ss.reply(resp); err != nil {
				return err
			}
			continue
		}

		if err := ss.reply(handleToolRequest(ctx, handler, parseToolRequest(raw))); err != nil {
			return err
		}
	}
}

// parseRPCRequest accepts messages carrying both "jsonrpc" and "method".
func parseRPCRequest(raw map[string]any) (rpcRequest, bool) {
	method, _ := raw["method"].(string)
	version, _ := raw["jsonrpc"].(string)
	if method == "" || version == "" {
		return rpcRequest{}, false
	}
	req := rpcRequest{ID: raw["id"], Method: method, Params: map[string]any{}}
	if params, ok := raw["params"].(map[string]any); ok {
		req.Params = params
	}
	return req, true
}

func parseToolRequest(raw map[string]any) toolRequest {
	req := toolRequest{ID: raw["id"], Args: map[string]any{}}
	req.Tool, _ = raw["tool"].(string)
	if args, ok := raw["args"].(map[string]any); ok {
		req.Args = args
	}
	return req
}

func handleToolRequest(ctx context.Context, handler Handler, req toolRequest) toolResponse {
	result, err := handler(ctx, req.Tool, req.Args)
	if err != nil {
		toolErr := normalizeToolError(err)
		return toolResponse{ID: req.ID, Error: &toolErr}
	}
	return toolResponse{ID: req.ID, OK: true, Result: result}
}

// handleRPC answers one JSON-RPC request. Notifications get no answer.
func handleRPC(ctx context.Context, handler Handler, req rpcRequest) (rpcResponse, bool) {
	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case "notifications/initialized":
		return resp, false
	case "initialize":
		resp.Result = initializeResult()
	case "ping":
		resp.Result = map[string]any{}
	case "tools/list":
		resp.Result = toolsListResult()
	case "tools/call":
		name, _ := req.Params["name"].(string)
		args, _ := req.Params["arguments"].(map[string]any)
		if args == nil {
			args = map[string]any{}
		}
		resp.Result = callToolResult(handler(ctx, name, args))
	default:
		resp.Error = &rpcError{Code: codeMethodNotFound, Message: "Method not found"}
	}
	return resp, true
}

func initializeResult() map[string]any {
	return map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{"tools": map[string]any{}},
		"serverInfo": map[string]any{
			"name":    contracts.ToolNameAPIMatch,
			"version": contracts.ContractVersion,
		},
	}
}

func toolsListResult() map[string]any {
	defs := schema.BuildToolDefinitions()
	tools := make([]map[string]any, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, map[string]any{
			"name":        def.Name,
			"description": def.Description,
			"inputSchema": def.InputSchema,
		})
	}
	return map[string]any{"tools": tools}
}

// callToolResult reports tool failures in-band with isError rather than as a
// JSON-RPC error, so clients can show the message to the model.
func callToolResult(result any, err error) map[string]any {
	if err != nil {
		toolErr := normalizeToolError(err)
		return map[string]any{
			"isError": true,
			"content": []map[string]any{{"type": "text", "text": fmt.Sprintf("%s: %s", toolErr.Code, toolErr.Message)}},
		}
	}
	return map[string]any{
		"isError":           false,
		"structuredContent": result,
		"content":           []map[string]any{{"type": "text", "text": jsonText(result)}},
	}
}

func jsonText(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func normalizeToolError(err error) contracts.ToolError {
	var toolErr contracts.ToolError
	if errors.As(err, &toolErr) {
		return toolErr
	}
	return contracts.ToolError{Code: contracts.ErrorInternal, Message: err.Error()}
}
