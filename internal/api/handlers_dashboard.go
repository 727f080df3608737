// handlers_dashboard.go - Dashboard page and theme handlers
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/insight-dashboard/insight/internal/render"
	"github.com/insight-dashboard/insight/internal/result"
	"github.com/insight-dashboard/insight/internal/storage"
	"github.com/insight-dashboard/insight/internal/web"
	"github.com/labstack/echo/v4"
)

// DashboardHandlerImpl implements the DashboardHandler interface
type DashboardHandlerImpl struct {
	results    *result.Store
	store      storage.Store
	jobs       JobManager
	title      string
	version    string
	extensions []string
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(results *result.Store, store storage.Store, jobs JobManager, title, version string, extensions []string) DashboardHandler {
	return &DashboardHandlerImpl{
		results:    results,
		store:      store,
		jobs:       jobs,
		title:      title,
		version:    version,
		extensions: extensions,
	}
}

// HandleDashboard renders the dashboard page
func (h *DashboardHandlerImpl) HandleDashboard(c echo.Context) error {
	page := web.DashboardPage{
		Title:   h.title,
		Version: h.version,
		Theme:   web.ThemeFromRequest(c.Request()),
		Raw:     render.NoData,
		Accept:  strings.Join(h.extensions, ","),
		Year:    time.Now().Year(),
	}

	if snap, err := h.results.Current(); err == nil {
		page.HasResult = true
		page.FileName = snap.Meta.FileName
		page.Received = snap.Meta.ReceivedAt
		page.Tiles = render.KPITiles(snap.Result)
		page.Chart = render.BuildChart(snap.Result.Sample)
		raw, err := render.RawJSON(snap.Result)
		if err != nil {
			return NewInternalError("failed to format result", err)
		}
		page.Raw = raw
	}

	if job, ok := h.jobs.ActiveJob(); ok {
		page.ActiveJob = job
	}

	if files, err := h.store.List(MaxRecentFiles); err == nil {
		page.Recent = files
	}

	return c.Render(http.StatusOK, web.DashboardTemplate, page)
}

type themeRequest struct {
	Theme string `json:"theme" form:"theme" validate:"omitempty,oneof=light dark"`
}

// HandleSetTheme sets or toggles the theme cookie
func (h *DashboardHandlerImpl) HandleSetTheme(c echo.Context) error {
	var req themeRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return NewBadRequestError("invalid request body", err)
		}
	}
	req.Theme = strings.ToLower(strings.TrimSpace(req.Theme))
	if err := c.Validate(&req); err != nil {
		return NewValidationError("theme")
	}

	theme := web.ThemeFromRequest(c.Request()).Toggle()
	if req.Theme != "" {
		theme = web.Theme(req.Theme)
	}

	c.SetCookie(web.ThemeCookieFor(theme))
	return c.JSON(http.StatusOK, map[string]string{"theme": string(theme)})
}
