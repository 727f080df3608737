package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/insight-dashboard/insight/internal/analysis"
	"github.com/insight-dashboard/insight/internal/models"
	"github.com/insight-dashboard/insight/internal/result"
	"github.com/insight-dashboard/insight/internal/testutil"
	"github.com/insight-dashboard/insight/internal/upload"
	"github.com/insight-dashboard/insight/internal/web"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

// testEnv wires handlers against in-memory storage and a fake endpoint.
type testEnv struct {
	e        *echo.Echo
	store    *testutil.MockStorage
	results  *result.Store
	jobs     *upload.Manager
	server   *testutil.AnalysisServer
	handlers *Handlers
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		e:       echo.New(),
		store:   testutil.NewMockStorage(),
		results: result.NewStore(),
		server:  testutil.NewAnalysisServer(t),
	}
	env.jobs = upload.NewManager(env.store, analysis.NewClient(env.server.URL), env.results,
		upload.WithTimeout(5*time.Second))
	t.Cleanup(env.jobs.Shutdown)

	renderer, err := web.NewRenderer()
	require.NoError(t, err)
	env.e.Renderer = renderer
	SetupMiddleware(env.e)

	env.handlers = NewHandlers(&Dependencies{
		Store:             env.store,
		Jobs:              env.jobs,
		Results:           env.results,
		AllowedExtensions: []string{".csv"},
		AnalysisEndpoint:  env.server.URL,
		Version:           "test",
	})
	RegisterRoutes(env.e, env.handlers)
	RegisterWebSocketRoutes(env.e, env.handlers)
	return env
}

// seedResult runs one synchronous analysis so a result is present.
func (env *testEnv) seedResult(t *testing.T) {
	t.Helper()
	info := env.store.AddFile("seed", "seed.csv", []byte("temp,load\n21,0.5\n"))
	_, err := env.jobs.RunJob(context.Background(), info)
	require.NoError(t, err)
}

func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func multipartRequest(t *testing.T, target, field, filename string, content []byte) *http.Request {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	part.Write(content)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	return req
}

func decodeAPIError(t *testing.T, body io.Reader) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.NewDecoder(body).Decode(&apiErr))
	return apiErr
}

func waitForJob(t *testing.T, jobs JobManager, id string) *models.Job {
	t.Helper()
	var job *models.Job
	require.Eventually(t, func() bool {
		var ok bool
		job, ok = jobs.GetJob(id)
		return ok && job.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return job
}
