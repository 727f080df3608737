// errors.go - Structured error handling for API responses
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/insight-dashboard/insight/internal/analysis"
	"github.com/labstack/echo/v4"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ExposeErrorDetails controls whether unexpected errors carry their cause in
// the response body.
var ExposeErrorDetails = false

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	message := fmt.Sprintf("%s not found", resource)
	if id != "" {
		message = fmt.Sprintf("%s not found: %s", resource, id)
	}
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: message,
	}
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    "CONFLICT",
		Message: message,
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewAnalysisError maps a failed analysis round trip onto an API error.
// Client errors reported by the endpoint keep their status; everything else
// is a gateway failure.
func NewAnalysisError(err error) *APIError {
	var upErr *analysis.UpstreamError
	switch {
	case errors.As(err, &upErr):
		status := http.StatusBadGateway
		if upErr.Status >= 400 && upErr.Status < 500 {
			status = upErr.Status
		}
		return &APIError{
			Status:  status,
			Code:    "ANALYSIS_FAILED",
			Message: upErr.Message,
			Details: upErr.Detail,
		}
	case errors.Is(err, context.DeadlineExceeded):
		return &APIError{
			Status:  http.StatusGatewayTimeout,
			Code:    "ANALYSIS_TIMEOUT",
			Message: "analysis backend did not answer in time",
		}
	case errors.Is(err, analysis.ErrUnreachable):
		return &APIError{
			Status:  http.StatusBadGateway,
			Code:    "BACKEND_UNREACHABLE",
			Message: analysis.ErrUnreachable.Error(),
			Details: err.Error(),
		}
	case errors.Is(err, analysis.ErrInvalidResponse):
		return &APIError{
			Status:  http.StatusBadGateway,
			Code:    "INVALID_ANALYSIS_RESPONSE",
			Message: "analysis backend returned an invalid response",
			Details: err.Error(),
		}
	}
	return NewInternalError("analysis failed", err)
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var httpErr *echo.HTTPError

	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		apiErr = &APIError{
			Status:  httpErr.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
	default:
		apiErr = &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "UNKNOWN_ERROR",
			Message: "An unexpected error occurred",
		}
		if ExposeErrorDetails {
			apiErr.Details = err.Error()
		}
	}

	if c.Request().Method == http.MethodHead {
		c.NoContent(apiErr.Status)
		return
	}
	c.JSON(apiErr.Status, apiErr)
}
