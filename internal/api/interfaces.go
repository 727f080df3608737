// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/insight-dashboard/insight/internal/models"
	"github.com/labstack/echo/v4"
)

// UploadHandler accepts CSV files and starts analysis
type UploadHandler interface {
	HandleUpload(c echo.Context) error
}

// JobHandler reports analysis job progress
type JobHandler interface {
	HandleGetJob(c echo.Context) error
	HandleActiveJob(c echo.Context) error
	HandleJobStream(c echo.Context) error
}

// ResultHandler serves the current result and its rendered widgets
type ResultHandler interface {
	HandleGetResult(c echo.Context) error
	HandleClearResult(c echo.Context) error
	HandleKPIs(c echo.Context) error
	HandleSeries(c echo.Context) error
	HandleChart(c echo.Context) error
	HandleRaw(c echo.Context) error
}

// FileHandler serves previously uploaded files
type FileHandler interface {
	HandleRecentFiles(c echo.Context) error
	HandleDownloadFile(c echo.Context) error
}

// DashboardHandler renders the HTML dashboard and theme toggle
type DashboardHandler interface {
	HandleDashboard(c echo.Context) error
	HandleSetTheme(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// JobManager defines the interface for analysis job management
// This allows mocking in tests
type JobManager interface {
	StartJob(info *models.FileInfo) (*models.Job, error)
	RunJob(ctx context.Context, info *models.FileInfo) (*models.Job, error)
	GetJob(id string) (*models.Job, bool)
	ActiveJob() (*models.Job, bool)
	Subscribe() (<-chan models.Job, func())
}

// Recorder receives request-level events for metrics
type Recorder interface {
	UploadReceived(size int64)
	ChartRendered(format string)
	ClientConnected()
	ClientDisconnected()
}

type noopRecorder struct{}

func (noopRecorder) UploadReceived(int64) {}
func (noopRecorder) ChartRendered(string) {}
func (noopRecorder) ClientConnected() {}
func (noopRecorder) ClientDisconnected() {}
