// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/insight-dashboard/insight/internal/result"
	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version  string
	endpoint string
	results  *result.Store
	jobs     JobManager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, endpoint string, results *result.Store, jobs JobManager) HealthHandler {
	return &HealthHandlerImpl{
		version:  version,
		endpoint: endpoint,
		results:  results,
		jobs:     jobs,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	_, err := h.results.Current()
	_, busy := h.jobs.ActiveJob()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":           "ok",
		"version":          h.version,
		"analysisEndpoint": h.endpoint,
		"hasResult":        err == nil,
		"busy":             busy,
	})
}
