package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/canteen/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// CheckFunc probes one dependency
type CheckFunc func(ctx context.Context) error

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	BaseHandler
	checks  map[string]CheckFunc
	timeout time.Duration
}

// NewHealthHandler creates a HealthHandler over the named dependency checks
func NewHealthHandler(checks map[string]CheckFunc) *HealthHandler {
	if checks == nil {
		checks = map[string]CheckFunc{}
	}
	return &HealthHandler{checks: checks, timeout: 2 * time.Second}
}

// HealthResponse reports overall and per-dependency status
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Live answers 200 while the process serves requests
func (h *HealthHandler) Live(c *gin.Context) {
	h.Success(c, HealthResponse{Status: "ok"})
}

// Ready answers 200 when every dependency check passes, 503 otherwise
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			resp.Status = "unavailable"
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	if resp.Status != "ok" {
		c.JSON(http.StatusServiceUnavailable, dto.Response{Success: false, Data: resp, Error: &dto.ErrorInfo{
			Code:    dto.ErrCodeInternal,
			Message: "One or more dependencies are unavailable",
		}})
		return
	}
	h.Success(c, resp)
}
