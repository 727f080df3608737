// handlers_files.go - Uploaded file handlers
package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/insight-dashboard/insight/internal/storage"
	"github.com/labstack/echo/v4"
)

// MaxRecentFiles caps the recent uploads listing.
const MaxRecentFiles = 20

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	store       storage.Store
	recentLimit int
}

// NewFileHandler creates a new file handler
func NewFileHandler(store storage.Store, recentLimit int) FileHandler {
	if recentLimit <= 0 || recentLimit > MaxRecentFiles {
		recentLimit = MaxRecentFiles
	}
	return &FileHandlerImpl{store: store, recentLimit: recentLimit}
}

// HandleRecentFiles returns the most recently uploaded files
func (h *FileHandlerImpl) HandleRecentFiles(c echo.Context) error {
	files, err := h.store.List(h.recentLimit)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}
	return c.JSON(http.StatusOK, files)
}

// HandleDownloadFile returns a stored file as an attachment
func (h *FileHandlerImpl) HandleDownloadFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	rc, info, err := h.store.Open(id)
	if errors.Is(err, storage.ErrNotFound) {
		return NewNotFoundError("file", id)
	}
	if err != nil {
		return NewInternalError("failed to open file", err)
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s", info.Name, url.PathEscape(info.Name)))
	c.Response().Header().Set(echo.HeaderContentLength, fmt.Sprint(info.Size))
	return c.Stream(http.StatusOK, "text/csv", rc)
}
