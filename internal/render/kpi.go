// Package render turns an analysis result into dashboard widgets: KPI tiles,
// line-chart series and images, and the raw JSON view. Nothing here mutates
// the result it is given.
package render

import (
	"math"
	"strconv"
	"strings"

	"github.com/insight-dashboard/insight/internal/models"
	"github.com/montanaflynn/stats"
)

// Missing is shown in place of a null statistic.
const Missing = "-"

// TileKind distinguishes dataset-level tiles from per-column tiles.
type TileKind string

const (
	TileHeadline TileKind = "headline"
	TileColumn   TileKind = "column"
)

// Tile is a single KPI card.
type Tile struct {
	Kind  TileKind `json:"kind"`
	Title string   `json:"title"`
	Value string   `json:"value"`
	Lines []string `json:"lines,omitempty"`
}

// Text returns the tile body as displayed on the card.
func (t Tile) Text() string {
	if len(t.Lines) > 0 {
		return strings.Join(t.Lines, "\n")
	}
	return t.Value
}

// KPITiles builds the headline tiles followed by one tile per KPI column in
// the order the columns were reported.
func KPITiles(res *models.AnalysisResult) []Tile {
	if res == nil {
		return nil
	}
	s := res.Summary

	tiles := []Tile{
		{Kind: TileHeadline, Title: "Rows", Value: strconv.Itoa(s.Rows)},
		{Kind: TileHeadline, Title: "Columns", Value: strconv.Itoa(s.Columns)},
		{Kind: TileHeadline, Title: "Missing Values", Value: strconv.Itoa(s.MissingValues)},
		{Kind: TileHeadline, Title: "Detected Outliers", Value: strconv.Itoa(s.OutlierRows())},
	}

	for _, name := range s.KPIColumns() {
		kpi := s.KPIs[name]
		lines := []string{
			"mean: " + FormatStat(kpi.Mean),
			"median: " + FormatStat(kpi.Median),
			"std: " + FormatStat(kpi.Std),
		}
		tiles = append(tiles, Tile{
			Kind:  TileColumn,
			Title: name,
			Value: strings.Join(lines, " / "),
			Lines: lines,
		})
	}
	return tiles
}

// FormatStat rounds to 2 decimals and drops trailing zeros. nil renders as
// Missing.
func FormatStat(v *float64) string {
	if v == nil {
		return Missing
	}
	return FormatNumber(*v)
}

// FormatNumber rounds half up to 2 decimals and drops trailing zeros, so
// -0.125 shows as -0.12.
func FormatNumber(v float64) string {
	halfUp := math.Floor(v*100+0.5) / 100
	if halfUp == 0 {
		halfUp = 0 // no "-0"
	}
	rounded, err := stats.Round(halfUp, 2)
	if err != nil {
		return Missing
	}
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}
