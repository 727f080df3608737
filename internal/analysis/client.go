// Package analysis talks to the external CSV analysis endpoint.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/insight-dashboard/insight/internal/models"
)

// FileField is the multipart field the endpoint reads the CSV from.
const FileField = "file"

// maxResponseBytes caps how much of the upstream response is read.
const maxResponseBytes = 64 << 20

var (
	// ErrUnreachable wraps transport-level failures reaching the endpoint.
	ErrUnreachable = errors.New("failed to contact analysis backend")
	// ErrInvalidResponse is returned when a 2xx body is not a valid result.
	ErrInvalidResponse = errors.New("invalid analysis response")
)

// UpstreamError is a non-2xx answer from the endpoint. The endpoint reports
// failures as {"error": "...", "detail": "..."}.
type UpstreamError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Detail  string `json:"detail,omitempty"`
}

func (e *UpstreamError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("analysis backend returned %d: %s (%s)", e.Status, e.Message, e.Detail)
	}
	return fmt.Sprintf("analysis backend returned %d: %s", e.Status, e.Message)
}

// ProgressFunc receives the number of file bytes sent so far and the total
// (-1 when unknown).
type ProgressFunc func(sent, total int64)

// Response is a decoded analysis result together with the body it came from.
type Response struct {
	Result *models.AnalysisResult
	Raw    json.RawMessage
}

// Client posts files to the analysis endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	validate   *validator.Validate
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the whole-request timeout on a copy of the HTTP client,
// leaving a shared client such as http.DefaultClient untouched.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// NewClient creates a client for the given endpoint URL.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		validate:   validator.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the configured endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Analyze uploads one file as multipart form data and decodes the result.
// size may be -1 when unknown, in which case the body is sent chunked.
func (c *Client) Analyze(ctx context.Context, name string, r io.Reader, size int64, onProgress ProgressFunc) (*Response, error) {
	body, contentType, contentLength, err := multipartBody(name, r, size, onProgress)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("building analysis request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.ContentLength = contentLength

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeUpstreamError(resp.StatusCode, data)
	}

	var envelope struct {
		Summary json.RawMessage `json:"summary"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(envelope.Summary) == 0 || string(envelope.Summary) == "null" {
		return nil, fmt.Errorf("%w: missing summary", ErrInvalidResponse)
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if err := c.validate.Struct(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	return &Response{Result: &result, Raw: json.RawMessage(data)}, nil
}

func decodeUpstreamError(status int, data []byte) *UpstreamError {
	upErr := &UpstreamError{}
	if err := json.Unmarshal(data, upErr); err != nil || upErr.Message == "" {
		upErr.Message = strings.TrimSpace(string(data))
		if upErr.Message == "" {
			upErr.Message = http.StatusText(status)
		}
	}
	upErr.Status = status
	return upErr
}

// multipartBody frames r as a single multipart file part without buffering
// the file itself.
func multipartBody(name string, r io.Reader, size int64, onProgress ProgressFunc) (io.Reader, string, int64, error) {
	var head bytes.Buffer
	mw := multipart.NewWriter(&head)
	if _, err := mw.CreateFormFile(FileField, name); err != nil {
		return nil, "", 0, fmt.Errorf("building multipart header: %w", err)
	}
	headLen := head.Len()
	if err := mw.Close(); err != nil {
		return nil, "", 0, fmt.Errorf("building multipart trailer: %w", err)
	}
	framed := head.Bytes()
	tail := framed[headLen:]

	counted := &progressReader{r: r, total: size, onProgress: onProgress}
	body := io.MultiReader(bytes.NewReader(framed[:headLen]), counted, bytes.NewReader(tail))

	contentLength := int64(-1)
	if size >= 0 {
		contentLength = int64(len(framed)) + size
	}
	return body, mw.FormDataContentType(), contentLength, nil
}

type progressReader struct {
	r          io.Reader
	sent       int64
	total      int64
	onProgress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.onProgress != nil {
			p.onProgress(p.sent, p.total)
		}
	}
	return n, err
}
