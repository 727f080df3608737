// handlers_result.go - Current result and rendered widget handlers
package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/insight-dashboard/insight/internal/models"
	"github.com/insight-dashboard/insight/internal/render"
	"github.com/insight-dashboard/insight/internal/result"
	"github.com/insight-dashboard/insight/internal/web"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const mimeMsgpack = "application/msgpack"

// ResultHandlerImpl implements the ResultHandler interface
type ResultHandlerImpl struct {
	results  *result.Store
	recorder Recorder
}

// NewResultHandler creates a new result handler
func NewResultHandler(results *result.Store, recorder Recorder) ResultHandler {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &ResultHandlerImpl{results: results, recorder: recorder}
}

type resultResponse struct {
	Summary models.Summary `json:"summary"`
	Sample  models.Sample  `json:"sample"`
	Meta    result.Meta    `json:"meta"`
	Job     *models.Job    `json:"job,omitempty"`
}

type kpiResponse struct {
	Tiles []render.Tile `json:"tiles"`
	Meta  result.Meta   `json:"meta"`
}

// current returns the snapshot or a 404 APIError.
func (h *ResultHandlerImpl) current() (*result.Snapshot, error) {
	snap, err := h.results.Current()
	if errors.Is(err, result.ErrEmpty) {
		return nil, NewNotFoundError("analysis result", "")
	}
	if err != nil {
		return nil, NewInternalError("failed to read result", err)
	}
	return snap, nil
}

// HandleGetResult returns the full result as JSON or MessagePack
func (h *ResultHandlerImpl) HandleGetResult(c echo.Context) error {
	snap, err := h.current()
	if err != nil {
		return err
	}

	resp := resultResponse{
		Summary: snap.Result.Summary,
		Sample:  snap.Result.Sample,
		Meta:    snap.Meta,
	}

	if wantsMsgpack(c) {
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(resp); err != nil {
			return NewInternalError("failed to encode msgpack", err)
		}
		return c.Blob(http.StatusOK, mimeMsgpack, buf.Bytes())
	}

	return c.JSON(http.StatusOK, resp)
}

// HandleClearResult drops the current result
func (h *ResultHandlerImpl) HandleClearResult(c echo.Context) error {
	h.results.Clear()
	return c.NoContent(http.StatusNoContent)
}

// HandleKPIs returns the KPI tiles
func (h *ResultHandlerImpl) HandleKPIs(c echo.Context) error {
	snap, err := h.current()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, kpiResponse{
		Tiles: render.KPITiles(snap.Result),
		Meta:  snap.Meta,
	})
}

// HandleSeries returns the chart model as JSON
func (h *ResultHandlerImpl) HandleSeries(c echo.Context) error {
	snap, err := h.current()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, render.BuildChart(snap.Result.Sample))
}

// HandleChart renders the line chart as SVG or PNG
func (h *ResultHandlerImpl) HandleChart(c echo.Context) error {
	format, err := render.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return NewBadRequestError("invalid chart format", err)
	}
	width, err := intParam(c, "width")
	if err != nil {
		return NewValidationError("width")
	}
	height, err := intParam(c, "height")
	if err != nil {
		return NewValidationError("height")
	}

	theme := web.ThemeFromRequest(c.Request())
	if q := c.QueryParam("theme"); q != "" {
		theme, err = web.ParseTheme(q)
		if err != nil {
			return NewValidationError("theme")
		}
	}

	snap, err := h.current()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	opts := render.ChartOptions{
		Format: format,
		Width:  width,
		Height: height,
		Theme:  render.Theme(theme),
	}
	if err := render.RenderChart(&buf, render.BuildChart(snap.Result.Sample), opts); err != nil {
		return NewInternalError("failed to render chart", err)
	}
	h.recorder.ChartRendered(string(format))

	c.Response().Header().Set("Cache-Control", "no-cache")
	return c.Blob(http.StatusOK, format.ContentType(), buf.Bytes())
}

// HandleRaw returns the pretty-printed raw JSON view as text
func (h *ResultHandlerImpl) HandleRaw(c echo.Context) error {
	snap, err := h.results.Current()
	var res *models.AnalysisResult
	if err == nil {
		res = snap.Result
	}

	text, err := render.RawJSON(res)
	if err != nil {
		return NewInternalError("failed to format result", err)
	}
	return c.String(http.StatusOK, text)
}

func wantsMsgpack(c echo.Context) bool {
	if strings.EqualFold(c.QueryParam("format"), "msgpack") {
		return true
	}
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), mimeMsgpack)
}

func intParam(c echo.Context, name string) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("must be a non-negative integer")
	}
	return n, nil
}
