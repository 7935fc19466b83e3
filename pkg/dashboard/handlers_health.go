package dashboard

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/voiceiq/viq-cli/pkg/buildinfo"
)

// HealthHandler serves liveness, version and metrics.
type HealthHandler struct {
	metrics http.Handler
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(gatherer prometheus.Gatherer) *HealthHandler {
	return &HealthHandler{metrics: metricsHandler(gatherer)}
}

// HandleHealth returns server health status
func (h *HealthHandler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": buildinfo.Version,
	})
}

// HandleVersion returns build info.
func (h *HealthHandler) HandleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, buildinfo.Get(buildinfo.ComponentDashboard))
}

// HandleMetrics exposes Prometheus metrics.
func (h *HealthHandler) HandleMetrics(c echo.Context) error {
	h.metrics.ServeHTTP(c.Response(), c.Request())
	return nil
}
