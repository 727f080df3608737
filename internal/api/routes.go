// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"log/slog"
	"net/http"

	"github.com/insight-dashboard/insight/internal/result"
	"github.com/insight-dashboard/insight/internal/storage"
	"github.com/labstack/echo/v4"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store             storage.Store
	Jobs              JobManager
	Results           *result.Store
	Recorder          Recorder
	Metrics           http.Handler
	Logger            *slog.Logger
	AllowedExtensions []string
	RecentLimit       int
	AnalysisEndpoint  string
	Title             string
	Version           string
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Upload    UploadHandler
	Jobs      JobHandler
	Results   ResultHandler
	Files     FileHandler
	Dashboard DashboardHandler
	Progress  *ProgressSocket
	Metrics   http.Handler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	title := deps.Title
	if title == "" {
		title = "Insight"
	}

	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.AnalysisEndpoint, deps.Results, deps.Jobs),
		Upload:    NewUploadHandler(deps.Store, deps.Jobs, deps.Results, deps.AllowedExtensions, deps.Recorder, logger.With("component", "api")),
		Jobs:      NewJobHandler(deps.Jobs),
		Results:   NewResultHandler(deps.Results, deps.Recorder),
		Files:     NewFileHandler(deps.Store, deps.RecentLimit),
		Dashboard: NewDashboardHandler(deps.Results, deps.Store, deps.Jobs, title, deps.Version, deps.AllowedExtensions),
		Progress:  NewProgressSocket(deps.Jobs, deps.Recorder, logger),
		Metrics:   deps.Metrics,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/health", handlers.Health.HandleHealth)
	if handlers.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(handlers.Metrics))
	}

	// Dashboard page
	e.GET("/", handlers.Dashboard.HandleDashboard)

	apiGroup := e.Group("/api")
	apiGroup.POST("/upload", handlers.Upload.HandleUpload)
	apiGroup.POST("/theme", handlers.Dashboard.HandleSetTheme)

	// Job routes
	jobGroup := apiGroup.Group("/jobs")
	jobGroup.GET("/active", handlers.Jobs.HandleActiveJob)
	jobGroup.GET("/:id", handlers.Jobs.HandleGetJob)
	jobGroup.GET("/:id/stream", handlers.Jobs.HandleJobStream)

	// Result routes
	resultGroup := apiGroup.Group("/result")
	resultGroup.GET("", handlers.Results.HandleGetResult)
	resultGroup.DELETE("", handlers.Results.HandleClearResult)
	resultGroup.GET("/kpis", handlers.Results.HandleKPIs)
	resultGroup.GET("/series", handlers.Results.HandleSeries)
	resultGroup.GET("/chart.svg", handlers.Results.HandleChart)
	resultGroup.GET("/raw", handlers.Results.HandleRaw)

	// File routes
	fileGroup := apiGroup.Group("/files")
	fileGroup.GET("/recent", handlers.Files.HandleRecentFiles)
	fileGroup.GET("/:id", handlers.Files.HandleDownloadFile)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/ws/progress", handlers.Progress.HandleProgress)
}

// SetupMiddleware configures the error handler and request validator
func SetupMiddleware(e *echo.Echo) {
	e.HTTPErrorHandler = ErrorHandler
	e.Validator = NewRequestValidator()
}
