package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Payphone-Digital/identity/internal/constants"
	"github.com/Payphone-Digital/identity/pkg/circuit"
	"github.com/Payphone-Digital/identity/pkg/health"
	"github.com/Payphone-Digital/identity/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type HealthHandler struct {
	monitor  *health.Monitor
	breakers *circuit.Registry
	version  string
}

type HealthCheckResponse struct {
	Status    string                        `json:"status"`
	Version   string                        `json:"version"`
	Timestamp time.Time                     `json:"timestamp"`
	Checks    map[string]health.CheckResult `json:"checks"`
	Circuits  map[string]interface{}        `json:"circuits,omitempty"`
}

func NewHealthHandler(monitor *health.Monitor, breakers *circuit.Registry, version string) *HealthHandler {
	return &HealthHandler{
		monitor:  monitor,
		breakers: breakers,
		version:  version,
	}
}

// HealthCheck runs every registered dependency check. Only critical
// dependencies turn the response into 503.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, checks := h.monitor.CheckAll(ctx)
	response := HealthCheckResponse{
		Status:    status.String(),
		Version:   h.version,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	}
	if h.breakers != nil {
		response.Circuits = h.breakers.Stats()
	}

	statusCode := http.StatusOK
	if status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	logger.GetLogger().Debug("Health check performed",
		zap.String("overall_status", response.Status),
		zap.Int("status_code", statusCode),
	)

	c.JSON(statusCode, response)
}

// BasicHealth is a liveness probe that touches no dependency.
func (h *HealthHandler) BasicHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    constants.MsgHealthy,
		"version":   h.version,
		"timestamp": time.Now().UTC(),
	})
}
