// Package web provides the embedded dashboard templates and static assets.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html static/*
var assets embed.FS

// StaticFS returns the embedded static directory as root.
func StaticFS() (fs.FS, error) {
	return fs.Sub(assets, "static")
}

// Renderer renders the embedded html/template set for echo.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses all embedded templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"join": strings.Join,
	}).ParseFS(assets, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

// Render implements echo.Renderer.
func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

// RegisterStaticRoutes serves the embedded assets under /static/.
func RegisterStaticRoutes(e *echo.Echo) error {
	staticFS, err := StaticFS()
	if err != nil {
		return err
	}

	fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))

	e.GET("/static/*", func(c echo.Context) error {
		name := strings.TrimPrefix(path.Clean(c.Param("*")), "/")
		if name == "" || name == "." {
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}

		file, err := staticFS.Open(name)
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}
		stat, err := file.Stat()
		file.Close()
		if err != nil || stat.IsDir() {
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}

		c.Response().Header().Set("Cache-Control", "public, max-age=3600")
		fileServer.ServeHTTP(c.Response(), c.Request())
		return nil
	})

	return nil
}
