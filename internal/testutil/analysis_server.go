package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// SampleResult is a representative analysis response used across tests.
const SampleResult = `{
  "summary": {
    "rows": 4,
    "columns": 3,
    "missing_values": 2,
    "numeric_columns": ["temp", "load"],
    "kpis": {
      "temp": {"mean": 21.456, "median": 21.5, "std": 0.3333, "min": 21, "max": 22},
      "load": {"mean": null, "median": null, "std": null}
    },
    "outliers": {"outlier_rows": 1}
  },
  "sample": {
    "temp": [21, 21.5, 22, 21.3],
    "load": [0.5, 0.75, 0.6, 0.9],
    "index": ["2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04"]
  }
}`

// AnalysisServer is a fake analysis endpoint that records what it receives.
type AnalysisServer struct {
	*httptest.Server

	mu       sync.Mutex
	status   int
	body     string
	block    chan struct{}
	calls    int
	lastName string
	lastData []byte
}

// NewAnalysisServer starts a fake endpoint answering 200 with SampleResult.
func NewAnalysisServer(t *testing.T) *AnalysisServer {
	t.Helper()
	s := &AnalysisServer{status: http.StatusOK, body: SampleResult}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(func() {
		s.Unblock()
		s.Server.Close()
	})
	return s
}

// Respond sets the status and body returned for subsequent requests.
func (s *AnalysisServer) Respond(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.body = body
}

// Block makes subsequent requests wait until Unblock is called.
func (s *AnalysisServer) Block() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.block = make(chan struct{})
}

// Unblock releases waiting requests.
func (s *AnalysisServer) Unblock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.block != nil {
		close(s.block)
		s.block = nil
	}
}

// Calls returns how many requests were received.
func (s *AnalysisServer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// LastUpload returns the file name and content of the latest request.
func (s *AnalysisServer) LastUpload() (string, []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastName, s.lastData
}

func (s *AnalysisServer) handle(w http.ResponseWriter, r *http.Request) {
	var name string
	var data []byte
	if f, hdr, err := r.FormFile("file"); err == nil {
		data, _ = io.ReadAll(f)
		f.Close()
		name = hdr.Filename
	}

	s.mu.Lock()
	s.calls++
	s.lastName, s.lastData = name, data
	status, body, block := s.status, s.body, s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}
