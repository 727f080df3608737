package web

import (
	"time"

	"github.com/insight-dashboard/insight/internal/models"
	"github.com/insight-dashboard/insight/internal/render"
)

// DashboardTemplate is the template name of the main page.
const DashboardTemplate = "dashboard.html"

// DashboardPage is the data rendered into the dashboard template.
type DashboardPage struct {
	Title     string
	Version   string
	Theme     Theme
	HasResult bool
	FileName  string
	Received  time.Time
	Tiles     []render.Tile
	Chart     render.ChartData
	Raw       string
	Recent    []*models.FileInfo
	ActiveJob *models.Job
	Accept    string
	Year      int
}

// Dark reports whether the dark theme is active.
func (p DashboardPage) Dark() bool {
	return p.Theme == ThemeDark
}
