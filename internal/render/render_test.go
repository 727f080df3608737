package render

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"github.com/insight-dashboard/insight/internal/models"
	"github.com/insight-dashboard/insight/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult(t *testing.T) *models.AnalysisResult {
	t.Helper()
	var res models.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(testutil.SampleResult), &res))
	return &res
}

func ptr(v float64) *float64 { return &v }

func TestKPITiles(t *testing.T) {
	tiles := KPITiles(sampleResult(t))
	require.Len(t, tiles, 6)

	titles := make([]string, len(tiles))
	for i, tile := range tiles {
		titles[i] = tile.Title
	}
	assert.Equal(t, []string{"Rows", "Columns", "Missing Values", "Detected Outliers", "temp", "load"}, titles)

	assert.Equal(t, "4", tiles[0].Value)
	assert.Equal(t, "3", tiles[1].Value)
	assert.Equal(t, "2", tiles[2].Value)
	assert.Equal(t, "1", tiles[3].Value)

	assert.Equal(t, TileColumn, tiles[4].Kind)
	assert.Equal(t, []string{"mean: 21.46", "median: 21.5", "std: 0.33"}, tiles[4].Lines)
	assert.Equal(t, "mean: 21.46\nmedian: 21.5\nstd: 0.33", tiles[4].Text())
	assert.Equal(t, []string{"mean: -", "median: -", "std: -"}, tiles[5].Lines)
}

func TestKPITiles_ColumnOrder(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "numeric_columns order wins over key order",
			body: `{"numeric_columns": ["zeta", "alpha"], "kpis": {"alpha": {"mean": 1}, "zeta": {"mean": 2}}}`,
			want: []string{"zeta", "alpha"},
		},
		{
			name: "kpis not listed follow in received order",
			body: `{"numeric_columns": ["m"], "kpis": {"zeta": {"mean": 1}, "m": {"mean": 2}, "alpha": {"mean": 3}}}`,
			want: []string{"m", "zeta", "alpha"},
		},
		{
			name: "numeric columns without kpis are skipped",
			body: `{"numeric_columns": ["ghost", "b"], "kpis": {"b": {"mean": 1}}}`,
			want: []string{"b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res models.AnalysisResult
			require.NoError(t, json.Unmarshal([]byte(`{"summary": `+tt.body+`}`), &res))

			var got []string
			for _, tile := range KPITiles(&res) {
				if tile.Kind == TileColumn {
					got = append(got, tile.Title)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKPITiles_BuiltSummarySortsUnknownOrder(t *testing.T) {
	res := &models.AnalysisResult{Summary: models.Summary{KPIs: map[string]models.ColumnKPI{
		"b": {}, "a": {},
	}}}
	tiles := KPITiles(res)
	require.Len(t, tiles, 6)
	assert.Equal(t, "a", tiles[4].Title)
	assert.Equal(t, "b", tiles[5].Title)
}

func TestKPITiles_MissingOutliers(t *testing.T) {
	res := &models.AnalysisResult{Summary: models.Summary{Rows: 1, Columns: 1}}
	tiles := KPITiles(res)
	require.Len(t, tiles, 4)
	assert.Equal(t, "0", tiles[3].Value)
	assert.Equal(t, "0", tiles[3].Text())
}

func TestKPITiles_NilResult(t *testing.T) {
	assert.Nil(t, KPITiles(nil))
}

func TestFormatStat(t *testing.T) {
	tests := []struct {
		in   *float64
		want string
	}{
		{nil, "-"},
		{ptr(2), "2"},
		{ptr(1.005), "1"},
		{ptr(3.14159), "3.14"},
		{ptr(-0.126), "-0.13"},
		{ptr(0.125), "0.13"},
		{ptr(-0.125), "-0.12"},
		{ptr(-0.004), "0"},
		{ptr(12345.678), "12345.68"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatStat(tt.in))
	}
}

func TestBuildChart(t *testing.T) {
	res := sampleResult(t)
	data := BuildChart(res.Sample)

	require.Len(t, data.Series, 2)
	assert.Equal(t, "temp", data.Series[0].Name)
	assert.Equal(t, "#60a5fa", data.Series[0].Color)
	assert.Equal(t, "load", data.Series[1].Name)
	assert.Equal(t, "#f472b6", data.Series[1].Color)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04"}, data.Labels)
	assert.Equal(t, 0.5, data.Min)
	assert.Equal(t, 22.0, data.Max)
	assert.Empty(t, data.Message)

	// Chart data must not alias the stored result
	data.Series[0].Values[0] = 999
	assert.Equal(t, 21.0, res.Sample.Columns[0].Values[0])
}

func TestBuildChart_PaletteCycles(t *testing.T) {
	var sample models.Sample
	require.NoError(t, json.Unmarshal([]byte(`{"a":[1],"b":[2],"c":[3],"d":[4],"e":[5]}`), &sample))

	data := BuildChart(sample)
	require.Len(t, data.Series, 5)
	assert.Equal(t, Palette[0], data.Series[4].Color)
	assert.Equal(t, []string{"1"}, data.Labels, "labels default to 1..n")
}

func TestBuildChart_NoColumns(t *testing.T) {
	var sample models.Sample
	require.NoError(t, json.Unmarshal([]byte(`{"index": ["a", "b"]}`), &sample))

	data := BuildChart(sample)
	assert.True(t, data.Empty())
	assert.Equal(t, NoColumnsMessage, data.Message)
}

func TestRenderChart(t *testing.T) {
	data := BuildChart(sampleResult(t).Sample)

	t.Run("svg", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, RenderChart(&buf, data, ChartOptions{Format: FormatSVG}))
		assert.Contains(t, buf.String(), "<svg")
		assert.Contains(t, buf.String(), "temp")
	})

	t.Run("png", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, RenderChart(&buf, data, ChartOptions{Format: FormatPNG, Width: 400, Height: 200, Theme: ThemeDark}))
		assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
	})

	t.Run("single row", func(t *testing.T) {
		var sample models.Sample
		require.NoError(t, json.Unmarshal([]byte(`{"a":[5],"b":[7],"index":["2024-01-01"]}`), &sample))
		data := BuildChart(sample)

		var svg bytes.Buffer
		require.NoError(t, RenderChart(&svg, data, ChartOptions{Format: FormatSVG}))
		assert.Contains(t, svg.String(), "<svg")
		assert.Contains(t, svg.String(), "2024-01-01")

		var png bytes.Buffer
		require.NoError(t, RenderChart(&png, data, ChartOptions{Format: FormatPNG}))
		assert.True(t, bytes.HasPrefix(png.Bytes(), []byte("\x89PNG")))
	})

	t.Run("single row next to empty column", func(t *testing.T) {
		var sample models.Sample
		require.NoError(t, json.Unmarshal([]byte(`{"a":[5],"b":[]}`), &sample))
		var buf bytes.Buffer
		require.NoError(t, RenderChart(&buf, BuildChart(sample), ChartOptions{}))
	})

	t.Run("placeholder", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, RenderChart(&buf, BuildChart(models.Sample{}), ChartOptions{}))
		assert.Contains(t, buf.String(), NoColumnsMessage)
	})
}

func TestXTicks(t *testing.T) {
	labels := make([]string, 23)
	for i := range labels {
		labels[i] = strconv.Itoa(i)
	}

	ticks := xTicks(labels, len(labels))
	require.NotEmpty(t, ticks)
	assert.Equal(t, 0.0, ticks[0].Value)
	last := ticks[len(ticks)-1]
	assert.Equal(t, 22.0, last.Value, "last row must stay inside the x-range")
	assert.Equal(t, "22", last.Label)
	assert.LessOrEqual(t, len(ticks), maxXTicks+1)

	assert.Nil(t, xTicks(nil, 0))
	assert.Len(t, xTicks([]string{"a", "b"}, 2), 2)
}

func TestClampSize(t *testing.T) {
	w, h := ClampSize(0, 0)
	assert.Equal(t, DefaultWidth, w)
	assert.Equal(t, DefaultHeight, h)

	w, h = ClampSize(10, 99999)
	assert.Equal(t, MinWidth, w)
	assert.Equal(t, MaxHeight, h)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatSVG, f)

	f, err = ParseFormat("PNG")
	require.NoError(t, err)
	assert.Equal(t, "image/png", f.ContentType())

	_, err = ParseFormat("gif")
	assert.Error(t, err)
}

func TestRawJSON(t *testing.T) {
	t.Run("no result", func(t *testing.T) {
		out, err := RawJSON(nil)
		require.NoError(t, err)
		assert.Equal(t, NoData, out)
	})

	t.Run("sample pretty printed in order", func(t *testing.T) {
		out, err := RawJSON(sampleResult(t))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "{\n  \"temp\": [\n    21,"), out)
		assert.Less(t, strings.Index(out, `"temp"`), strings.Index(out, `"load"`))
		assert.Less(t, strings.Index(out, `"load"`), strings.Index(out, `"index"`))
	})

	t.Run("falls back to summary", func(t *testing.T) {
		res := &models.AnalysisResult{Summary: models.Summary{Rows: 7, Columns: 2}}
		out, err := RawJSON(res)
		require.NoError(t, err)
		assert.Contains(t, out, `"rows": 7`)
	})

	decoded := func(t *testing.T, body string) *models.AnalysisResult {
		t.Helper()
		var res models.AnalysisResult
		require.NoError(t, json.Unmarshal([]byte(body), &res))
		return &res
	}

	t.Run("empty sample object prints as empty object", func(t *testing.T) {
		out, err := RawJSON(decoded(t, `{"summary": {"rows": 7}, "sample": {}}`))
		require.NoError(t, err)
		assert.Equal(t, "{}", out)
	})

	t.Run("null or missing sample falls back to summary", func(t *testing.T) {
		for _, body := range []string{
			`{"summary": {"rows": 7}, "sample": null}`,
			`{"summary": {"rows": 7}}`,
		} {
			out, err := RawJSON(decoded(t, body))
			require.NoError(t, err)
			assert.Contains(t, out, `"rows": 7`, body)
		}
	})
}
