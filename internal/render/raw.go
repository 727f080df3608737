package render

import (
	"encoding/json"

	"github.com/insight-dashboard/insight/internal/models"
)

// NoData is shown by the raw view before any analysis has completed.
const NoData = "No data yet"

// RawJSON pretty-prints the sample, falling back to the summary when the
// response had no sample. An empty sample object prints as {}.
func RawJSON(res *models.AnalysisResult) (string, error) {
	if res == nil {
		return NoData, nil
	}

	var v any = res.Sample
	if !res.Sample.Present() {
		v = res.Summary
	}

	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}
