package analysis

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okBody = `{
  "summary": {
    "rows": 3, "columns": 2, "missing_values": 1,
    "numeric_columns": ["a", "b"],
    "kpis": {"a": {"mean": 2, "median": 2, "std": 1, "min": 1, "max": 3},
             "b": {"mean": null, "median": null, "std": null}},
    "outliers": {"outlier_rows": 0}
  },
  "sample": {"a": [1, 2, 3], "b": [0, 0, 0], "index": ["0", "1", "2"]}
}`

func TestClient_Analyze_Success(t *testing.T) {
	var gotName, gotContent, gotContentType string
	var gotLength int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotLength = r.ContentLength
		f, hdr, err := r.FormFile(FileField)
		if err != nil {
			http.Error(w, `{"error":"no file part"}`, http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		gotName, gotContent = hdr.Filename, string(data)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, okBody)
	}))
	defer srv.Close()

	content := "a,b\n1,\n2,x\n3,y\n"
	var mu sync.Mutex
	var lastSent, lastTotal int64
	progress := func(sent, total int64) {
		mu.Lock()
		defer mu.Unlock()
		assert.GreaterOrEqual(t, sent, lastSent, "progress must not go backwards")
		lastSent, lastTotal = sent, total
	}

	client := NewClient(srv.URL, WithTimeout(5*time.Second))
	resp, err := client.Analyze(context.Background(), "data.csv", strings.NewReader(content), int64(len(content)), progress)
	require.NoError(t, err)

	assert.Equal(t, "data.csv", gotName)
	assert.Equal(t, content, gotContent)
	assert.True(t, strings.HasPrefix(gotContentType, "multipart/form-data; boundary="))
	assert.Greater(t, gotLength, int64(len(content)), "content length should include multipart framing")
	assert.Equal(t, int64(len(content)), lastSent)
	assert.Equal(t, int64(len(content)), lastTotal)

	require.NotNil(t, resp.Result)
	assert.Equal(t, 3, resp.Result.Summary.Rows)
	assert.Equal(t, 1, resp.Result.Summary.MissingValues)
	assert.Nil(t, resp.Result.Summary.KPIs["b"].Mean)
	assert.Equal(t, []string{"a", "b"}, []string{resp.Result.Sample.Columns[0].Name, resp.Result.Sample.Columns[1].Name})
	assert.JSONEq(t, okBody, string(resp.Raw))
}

func TestClient_Analyze_UnknownSizeIsChunked(t *testing.T) {
	var gotLength int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLength = r.ContentLength
		f, _, err := r.FormFile(FileField)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.Close()
		io.WriteString(w, okBody)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Analyze(context.Background(), "x.csv", strings.NewReader("a\n1\n"), -1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), gotLength)
}

func TestClient_Analyze_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantDetail  string
	}{
		{
			name:        "json error payload",
			status:      http.StatusBadRequest,
			body:        `{"error": "failed to read CSV", "detail": "Expecting delimiter"}`,
			wantMessage: "failed to read CSV",
			wantDetail:  "Expecting delimiter",
		},
		{
			name:        "plain text body",
			status:      http.StatusBadGateway,
			body:        "upstream down",
			wantMessage: "upstream down",
		},
		{
			name:        "empty body",
			status:      http.StatusInternalServerError,
			body:        "",
			wantMessage: "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.Copy(io.Discard, r.Body)
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).Analyze(context.Background(), "x.csv", strings.NewReader("a\n1\n"), 4, nil)

			var upErr *UpstreamError
			require.True(t, errors.As(err, &upErr), "expected UpstreamError, got %v", err)
			assert.Equal(t, tt.status, upErr.Status)
			assert.Equal(t, tt.wantMessage, upErr.Message)
			assert.Equal(t, tt.wantDetail, upErr.Detail)
		})
	}
}

func TestClient_Analyze_InvalidResponse(t *testing.T) {
	bodies := map[string]string{
		"not json":         "<html>oops</html>",
		"missing summary":  `{"sample": {}}`,
		"negative rows":    `{"summary": {"rows": -1, "columns": 1, "missing_values": 0}}`,
		"negative outlier": `{"summary": {"rows": 1, "columns": 1, "missing_values": 0, "outliers": {"outlier_rows": -2}}}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.Copy(io.Discard, r.Body)
				io.WriteString(w, body)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).Analyze(context.Background(), "x.csv", strings.NewReader("a"), 1, nil)
			assert.ErrorIs(t, err, ErrInvalidResponse)
		})
	}
}

func TestClient_Analyze_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Analyze(context.Background(), "x.csv", strings.NewReader("a"), 1, nil)
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestClient_Analyze_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(srv.URL).Analyze(ctx, "x.csv", strings.NewReader("a"), 1, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithTimeout_DoesNotMutateSharedClient(t *testing.T) {
	shared := &http.Client{Timeout: time.Minute}

	c := NewClient("http://example.invalid", WithHTTPClient(shared), WithTimeout(3*time.Second))

	assert.Equal(t, time.Minute, shared.Timeout)
	assert.NotSame(t, shared, c.httpClient)
	assert.Equal(t, 3*time.Second, c.httpClient.Timeout)

	before := http.DefaultClient.Timeout
	NewClient("http://example.invalid", WithHTTPClient(http.DefaultClient), WithTimeout(time.Second))
	assert.Equal(t, before, http.DefaultClient.Timeout)
}
