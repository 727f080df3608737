package render

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/insight-dashboard/insight/internal/models"
	"github.com/montanaflynn/stats"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// NoColumnsMessage is the chart placeholder when the sample has no numeric
// columns.
const NoColumnsMessage = "No numeric columns detected."

// Palette is cycled over the chart series in order.
var Palette = []string{"#60a5fa", "#f472b6", "#f59e0b", "#34d399"}

// Chart image bounds.
const (
	DefaultWidth  = 800
	DefaultHeight = 320
	MinWidth      = 200
	MinHeight     = 120
	MaxWidth      = 2000
	MaxHeight     = 1200

	maxXTicks = 10
)

// Format is an image output format.
type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// ParseFormat maps a query value to a Format. Empty means SVG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "svg":
		return FormatSVG, nil
	case "png":
		return FormatPNG, nil
	}
	return "", fmt.Errorf("unsupported chart format %q", s)
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/svg+xml"
}

// Series is one line of the chart.
type Series struct {
	Name   string    `json:"name"`
	Color  string    `json:"color"`
	Values []float64 `json:"values"`
}

// ChartData is the render-ready chart model.
type ChartData struct {
	Labels  []string `json:"labels"`
	Series  []Series `json:"series"`
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
	Message string   `json:"message,omitempty"`
}

// Empty reports whether there is nothing to plot.
func (c ChartData) Empty() bool {
	return len(c.Series) == 0
}

// BuildChart derives the chart model from a sample. Columns keep their
// received order and the value slices are copied.
func BuildChart(sample models.Sample) ChartData {
	if sample.Empty() {
		return ChartData{Labels: []string{}, Series: []Series{}, Message: NoColumnsMessage}
	}

	data := ChartData{
		Labels: append([]string(nil), sample.Labels()...),
		Series: make([]Series, 0, len(sample.Columns)),
	}

	var all stats.Float64Data
	for i, col := range sample.Columns {
		values := append([]float64(nil), col.Values...)
		data.Series = append(data.Series, Series{
			Name:   col.Name,
			Color:  Palette[i%len(Palette)],
			Values: values,
		})
		all = append(all, values...)
	}

	if len(all) > 0 {
		data.Min, _ = stats.Min(all)
		data.Max, _ = stats.Max(all)
	}
	return data
}

// Theme selects chart colours.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ChartOptions controls image rendering.
type ChartOptions struct {
	Format Format
	Width  int
	Height int
	Theme  Theme
}

// ClampSize bounds a requested image size, substituting defaults for zero.
func ClampSize(width, height int) (int, int) {
	if width == 0 {
		width = DefaultWidth
	}
	if height == 0 {
		height = DefaultHeight
	}
	return clamp(width, MinWidth, MaxWidth), clamp(height, MinHeight, MaxHeight)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type themeColors struct {
	background drawing.Color
	text       drawing.Color
	grid       drawing.Color
}

func colorsFor(t Theme) themeColors {
	if t == ThemeDark {
		return themeColors{
			background: hexColor("#0f172a"),
			text:       hexColor("#e2e8f0"),
			grid:       hexColor("#334155"),
		}
	}
	return themeColors{
		background: hexColor("#ffffff"),
		text:       hexColor("#1e293b"),
		grid:       hexColor("#e2e8f0"),
	}
}

func hexColor(s string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(s, "#"))
}

// RenderChart draws the chart as SVG or PNG. An empty chart renders the
// placeholder message instead.
func RenderChart(w io.Writer, data ChartData, opts ChartOptions) error {
	width, height := ClampSize(opts.Width, opts.Height)
	if opts.Format == "" {
		opts.Format = FormatSVG
	}
	colors := colorsFor(opts.Theme)

	if data.Empty() {
		return renderPlaceholder(w, opts.Format, width, height, colors)
	}

	n := 0
	for _, s := range data.Series {
		if len(s.Values) > n {
			n = len(s.Values)
		}
	}
	if n == 0 {
		return renderPlaceholder(w, opts.Format, width, height, colors)
	}

	// go-chart needs two distinct x values; a single row is drawn as a
	// flat segment.
	single := n == 1
	if single {
		n = 2
	}

	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}

	series := make([]chart.Series, 0, len(data.Series))
	for _, s := range data.Series {
		color := hexColor(s.Color)
		values := s.Values
		if single && len(values) == 1 {
			values = []float64{values[0], values[0]}
		}
		series = append(series, chart.ContinuousSeries{
			Name:    s.Name,
			XValues: xs[:len(values)],
			YValues: values,
			Style: chart.Style{
				StrokeColor: color,
				StrokeWidth: 2,
				DotColor:    color,
				DotWidth:    2,
			},
		})
	}

	yMin, yMax := data.Min, data.Max
	if yMax <= yMin {
		yMin, yMax = yMin-1, yMax+1
	}
	xMax := float64(n - 1)
	if xMax < 1 {
		xMax = 1
	}

	axisStyle := chart.Style{FontColor: colors.text, StrokeColor: colors.grid}
	ch := chart.Chart{
		Width:  width,
		Height: height,
		Background: chart.Style{
			FillColor: colors.background,
			Padding:   chart.Box{Top: 20, Left: 16, Right: 12, Bottom: 28},
		},
		Canvas: chart.Style{FillColor: colors.background},
		XAxis: chart.XAxis{
			Style: axisStyle,
			Range: &chart.ContinuousRange{Min: 0, Max: xMax},
			Ticks: xTicks(data.Labels, n),
		},
		YAxis: chart.YAxis{
			Style:          axisStyle,
			Range:          &chart.ContinuousRange{Min: yMin, Max: yMax},
			GridMajorStyle: chart.Style{StrokeColor: colors.grid, StrokeWidth: 1},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return FormatNumber(f)
				}
				return ""
			},
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch, chart.Style{
		FillColor:   colors.background,
		FontColor:   colors.text,
		StrokeColor: colors.grid,
	})}

	provider := chart.SVG
	if opts.Format == FormatPNG {
		provider = chart.PNG
	}
	if err := ch.Render(provider, w); err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}
	return nil
}

// xTicks picks at most maxXTicks evenly spaced labels plus the last one.
func xTicks(labels []string, n int) []chart.Tick {
	if n == 0 {
		return nil
	}
	step := 1
	if n > maxXTicks {
		step = (n + maxXTicks - 1) / maxXTicks
	}
	ticks := make([]chart.Tick, 0, maxXTicks+1)
	for i := 0; i < n; i += step {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: label})
	}
	// The ticks set the x-range, so the last row always gets one.
	if last := n - 1; ticks[len(ticks)-1].Value != float64(last) {
		label := ""
		if last < len(labels) {
			label = labels[last]
		}
		ticks = append(ticks, chart.Tick{Value: float64(last), Label: label})
	}
	return ticks
}

var errNoFont = errors.New("no default font available")

func renderPlaceholder(w io.Writer, format Format, width, height int, colors themeColors) error {
	provider := chart.SVG
	if format == FormatPNG {
		provider = chart.PNG
	}
	r, err := provider(width, height)
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}
	font, err := chart.GetDefaultFont()
	if err != nil || font == nil {
		return errNoFont
	}

	r.SetFillColor(colors.background)
	r.MoveTo(0, 0)
	r.LineTo(width, 0)
	r.LineTo(width, height)
	r.LineTo(0, height)
	r.Close()
	r.Fill()

	r.SetFont(font)
	r.SetFontSize(14)
	r.SetFontColor(colors.text)
	box := r.MeasureText(NoColumnsMessage)
	r.Text(NoColumnsMessage, (width-box.Width())/2, height/2)

	return r.Save(w)
}
