package app

import (
	"apimatch/internal/shared/observability"
	"context"
	"fmt"
	"time"
)

// HealthService reports the state of the service for the /health endpoint.
type HealthService struct {
	svc *Service
}

var _ observability.HealthChecker = (*HealthService)(nil)

func NewHealthService(svc *Service) *HealthService {
	return &HealthService{svc: svc}
}

func (h *HealthService) Check(ctx context.Context) observability.HealthStatus {
	status := observability.HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}
	if h.svc == nil || h.svc.Graph == nil {
		status.Status = "down"
		status.Components["catalog"] = "missing"
		return status
	}

	stats := h.svc.Graph.Stats()
	status.Components["catalog"] = fmt.Sprintf("ok (%d classes, %d methods)", stats.Classes, stats.Methods)

	if h.svc.port != nil && h.svc.port.Enabled() {
		status.Components["reasoning"] = "enabled (" + h.svc.Config.Reasoning.Model + ")"
	} else {
		status.Components["reasoning"] = "disabled"
	}

	switch {
	case h.svc.history != nil:
		status.Components["history"] = "ok"
	case h.svc.Config.History.Enabled:
		status.Status = "degraded"
		status.Components["history"] = "missing but enabled in config"
	default:
		status.Components["history"] = "disabled"
	}
	return status
}
