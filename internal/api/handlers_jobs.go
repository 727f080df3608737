// handlers_jobs.go - Analysis job status handlers
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	streamInterval = 100 * time.Millisecond
	streamTimeout  = 10 * time.Minute
)

// JobHandlerImpl implements the JobHandler interface
type JobHandlerImpl struct {
	jobs JobManager
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobs JobManager) JobHandler {
	return &JobHandlerImpl{jobs: jobs}
}

// HandleGetJob returns the current state of a job
func (h *JobHandlerImpl) HandleGetJob(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	job, ok := h.jobs.GetJob(id)
	if !ok {
		return NewNotFoundError("job", id)
	}
	return c.JSON(http.StatusOK, job)
}

// HandleActiveJob returns the in-flight job, or 204 when idle
func (h *JobHandlerImpl) HandleActiveJob(c echo.Context) error {
	job, ok := h.jobs.ActiveJob()
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, job)
}

// HandleJobStream streams job progress via SSE until the job finishes
func (h *JobHandlerImpl) HandleJobStream(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	job, ok := h.jobs.GetJob(id)
	if !ok {
		return NewNotFoundError("job", id)
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	sendSSEData(c, job)
	if job.Status.Terminal() {
		return nil
	}

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	timeout := time.NewTimer(streamTimeout)
	defer timeout.Stop()

	lastProgress, lastStatus := job.Progress, job.Status
	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			job, ok := h.jobs.GetJob(id)
			if !ok {
				sendSSEError(c, "job not found")
				return nil
			}
			if job.Progress == lastProgress && job.Status == lastStatus {
				continue
			}
			lastProgress, lastStatus = job.Progress, job.Status

			sendSSEData(c, job)
			if job.Status.Terminal() {
				return nil
			}

		case <-timeout.C:
			sendSSEError(c, "stream timeout")
			return nil
		}
	}
}

func sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func sendSSEError(c echo.Context, message string) {
	sendSSEData(c, map[string]string{"error": message})
}
