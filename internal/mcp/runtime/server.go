package runtime

import (
	"apimatch/internal/core/app"
	"apimatch/internal/core/config"
	domainerrors "apimatch/internal/core/errors"
	"apimatch/internal/mcp/contracts"
	"apimatch/internal/mcp/transport"
	"apimatch/internal/mcp/validate"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

type Dependencies struct {
	Service *app.Service
	Logger  *slog.Logger
}

// Server exposes one batch service as the single apimatch tool.
type Server struct {
	cfg       *config.Config
	deps      Dependencies
	transport transport.Adapter

	mu      sync.Mutex
	running bool
}

func New(cfg *config.Config, deps Dependencies, adapter transport.Adapter) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Service == nil {
		return nil, fmt.Errorf("batch service dependency is required")
	}
	if adapter == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Server{cfg: cfg, deps: deps, transport: adapter}, nil
}

func (s *Server) Start(ctx context.Context) error {
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

	s.deps.Logger.Info("mcp runtime active", "tool", contracts.ToolNameAPIMatch, "max_items", s.cfg.MCP.MaxResponseItems)

	err := s.transport.Start(ctx, s.handleToolCall)

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	return err
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	return s.transport.Stop()
}

func (s *Server) handleToolCall(ctx context.Context, tool string, raw map[string]any) (any, error) {
	if strings.TrimSpace(tool) == "" {
		return nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "tool is required"}
	}
	if !strings.EqualFold(tool, contracts.ToolNameAPIMatch) {
		return nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: fmt.Sprintf("unsupported tool: %s", tool)}
	}

	out, err := s.dispatchOperation(ctx, raw)
	if err != nil {
		s.deps.Logger.Debug("mcp operation failed", "operation", raw["operation"], "error", err)
		return nil, toToolError(err)
	}
	return out, nil
}

func (s *Server) dispatchOperation(ctx context.Context, raw map[string]any) (any, error) {
	operation, input, err := validate.ParseToolArgs(contracts.ToolNameAPIMatch, raw)
	if err != nil {
		return nil, err
	}

	maxItems := s.cfg.MCP.MaxResponseItems
	switch operation {
	case contracts.OperationResolveSteps:
		out, err := handleResolveSteps(ctx, s.deps.Service, input.(contracts.ResolveStepsInput), maxItems)
		return wrapToolResult(operation, out), err
	case contracts.OperationResolveSources:
		out, err := handleResolveSources(ctx, s.deps.Service, input.(contracts.ResolveSourcesInput), maxItems)
		return wrapToolResult(operation, out), err
	case contracts.OperationCatalogStats:
		return wrapToolResult(operation, handleCatalogStats(s.deps.Service)), nil
	case contracts.OperationHistoryRuns:
		out, err := handleHistoryRuns(s.deps.Service, input.(contracts.HistoryRunsInput), maxItems)
		return wrapToolResult(operation, out), err
	default:
		return nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: fmt.Sprintf("unsupported operation: %s", operation)}
	}
}

func wrapToolResult(operation contracts.OperationID, payload any) any {
	return map[string]any{
		"version":   contracts.ContractVersion,
		"operation": operation,
		"result":    payload,
	}
}

func toToolError(err error) error {
	var toolErr contracts.ToolError
	if errors.As(err, &toolErr) {
		return toolErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return contracts.ToolError{Code: contracts.ErrorUnavailable, Message: "request cancelled"}
	}

	code := contracts.ErrorInternal
	switch domainerrors.CodeOf(err) {
	case domainerrors.CodeNotFound:
		code = contracts.ErrorNotFound
	case domainerrors.CodeValidationError, domainerrors.CodeParseError:
		code = contracts.ErrorInvalidArgument
	case domainerrors.CodeNotSupported, domainerrors.CodeCatalogUnavailable, domainerrors.CodeReasoningUnavailable:
		code = contracts.ErrorUnavailable
	}
	return contracts.ToolError{Code: code, Message: err.Error()}
}
