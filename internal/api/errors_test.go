package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/insight-dashboard/insight/internal/analysis"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestNewAnalysisError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "upstream client error keeps status",
			err:        &analysis.UpstreamError{Status: http.StatusBadRequest, Message: "no file part"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "ANALYSIS_FAILED",
		},
		{
			name:       "upstream server error becomes bad gateway",
			err:        fmt.Errorf("job: %w", &analysis.UpstreamError{Status: http.StatusInternalServerError, Message: "boom"}),
			wantStatus: http.StatusBadGateway,
			wantCode:   "ANALYSIS_FAILED",
		},
		{
			name:       "unreachable",
			err:        fmt.Errorf("%w: dial tcp: refused", analysis.ErrUnreachable),
			wantStatus: http.StatusBadGateway,
			wantCode:   "BACKEND_UNREACHABLE",
		},
		{
			name:       "invalid response",
			err:        fmt.Errorf("%w: missing summary", analysis.ErrInvalidResponse),
			wantStatus: http.StatusBadGateway,
			wantCode:   "INVALID_ANALYSIS_RESPONSE",
		},
		{
			name:       "timeout",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   "ANALYSIS_TIMEOUT",
		},
		{
			name:       "anything else",
			err:        errors.New("disk full"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := NewAnalysisError(tt.err)
			assert.Equal(t, tt.wantStatus, apiErr.Status)
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "api error", err: NewConflictError("busy"), wantStatus: http.StatusConflict, wantCode: "CONFLICT"},
		{name: "echo error", err: echo.ErrMethodNotAllowed, wantStatus: http.StatusMethodNotAllowed, wantCode: "HTTP_ERROR"},
		{name: "plain error", err: errors.New("oops"), wantStatus: http.StatusInternalServerError, wantCode: "UNKNOWN_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			ErrorHandler(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			apiErr := decodeAPIError(t, rec.Body)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Empty(t, apiErr.Details)
		})
	}
}
