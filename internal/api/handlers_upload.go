// handlers_upload.go - CSV upload handler
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/insight-dashboard/insight/internal/analysis"
	"github.com/insight-dashboard/insight/internal/result"
	"github.com/insight-dashboard/insight/internal/storage"
	"github.com/insight-dashboard/insight/internal/upload"
	"github.com/labstack/echo/v4"
)

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	store      storage.Store
	jobs       JobManager
	results    *result.Store
	extensions []string
	recorder   Recorder
	logger     *slog.Logger
}

// NewUploadHandler creates a new upload handler instance
func NewUploadHandler(store storage.Store, jobs JobManager, results *result.Store, extensions []string, recorder Recorder, logger *slog.Logger) UploadHandler {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadHandlerImpl{
		store:      store,
		jobs:       jobs,
		results:    results,
		extensions: extensions,
		recorder:   recorder,
		logger:     logger,
	}
}

// HandleUpload accepts a multipart file in field "file", stores it and
// starts analysis. With ?wait=true the analysis runs within the request.
func (h *UploadHandlerImpl) HandleUpload(c echo.Context) error {
	file, err := c.FormFile(analysis.FileField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			// A part without a filename is parsed as a plain form value.
			if form := c.Request().MultipartForm; form != nil && len(form.Value[analysis.FileField]) > 0 {
				return NewBadRequestError("no filename", nil)
			}
			return NewBadRequestError("no file part", nil)
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return NewBadRequestError("no file part", nil)
		}
		return NewBadRequestError("invalid multipart form", err)
	}
	if strings.TrimSpace(file.Filename) == "" {
		return NewBadRequestError("no filename", nil)
	}
	if !h.allowedExtension(file.Filename) {
		return &APIError{
			Status:  http.StatusBadRequest,
			Code:    "VALIDATION_ERROR",
			Message: "unsupported file type",
			Details: "allowed: " + strings.Join(h.extensions, ", "),
		}
	}

	wait := false
	if v := c.QueryParam("wait"); v != "" {
		wait, err = strconv.ParseBool(v)
		if err != nil {
			return NewValidationError("wait")
		}
	}

	if active, busy := h.jobs.ActiveJob(); busy {
		return busyError(active.ID)
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(file.Filename, src)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}
	h.recorder.UploadReceived(info.Size)
	h.logger.Info("file uploaded", "file", info.Name, "size", info.Size, "id", info.ID)

	if wait {
		return h.runSync(c, info.ID)
	}

	fileInfo, err := h.store.Get(info.ID)
	if err != nil {
		return NewInternalError("failed to read stored file", err)
	}
	job, err := h.jobs.StartJob(fileInfo)
	if err != nil {
		h.store.Delete(info.ID)
		if errors.Is(err, upload.ErrBusy) {
			return busyError("")
		}
		return NewInternalError("failed to start analysis", err)
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"jobId":  job.ID,
		"fileId": info.ID,
		"status": job.Status,
	})
}

func (h *UploadHandlerImpl) runSync(c echo.Context, fileID string) error {
	info, err := h.store.Get(fileID)
	if err != nil {
		return NewInternalError("failed to read stored file", err)
	}

	job, err := h.jobs.RunJob(c.Request().Context(), info)
	if errors.Is(err, upload.ErrBusy) {
		h.store.Delete(fileID)
		return busyError("")
	}
	if err != nil {
		return NewAnalysisError(err)
	}

	snap, err := h.results.Current()
	if err != nil {
		return NewInternalError("analysis finished without a result", err)
	}

	return c.JSON(http.StatusOK, resultResponse{
		Summary: snap.Result.Summary,
		Sample:  snap.Result.Sample,
		Meta:    snap.Meta,
		Job:     job,
	})
}

func (h *UploadHandlerImpl) allowedExtension(name string) bool {
	if len(h.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range h.extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func busyError(jobID string) *APIError {
	err := NewConflictError("an analysis is already in progress")
	if jobID != "" {
		err.Details = "active job: " + jobID
	}
	return err
}
