// Package models contains domain types for the Insight dashboard.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
)

// IndexKey is the reserved sample key that carries the x-axis labels.
const IndexKey = "index"

// AnalysisResult is the payload returned by the external analysis endpoint.
// It is received wholesale and never mutated after decoding.
type AnalysisResult struct {
	Summary Summary `json:"summary"`
	Sample  Sample  `json:"sample"`
}

// Summary holds the dataset-level statistics.
type Summary struct {
	Rows           int                  `json:"rows" validate:"gte=0"`
	Columns        int                  `json:"columns" validate:"gte=0"`
	MissingValues  int                  `json:"missing_values" validate:"gte=0"`
	NumericColumns []string             `json:"numeric_columns,omitempty"`
	Outliers       *Outliers            `json:"outliers,omitempty"`
	KPIs           map[string]ColumnKPI `json:"kpis,omitempty"`

	// KPIOrder is the key order of "kpis" as received.
	KPIOrder []string `json:"-"`
}

// UnmarshalJSON decodes the summary and records the order of the kpis keys.
func (s *Summary) UnmarshalJSON(data []byte) error {
	type plain Summary
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var raw struct {
		KPIs json.RawMessage `json:"kpis"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	order, err := objectKeys(raw.KPIs)
	if err != nil {
		return fmt.Errorf("summary: kpis: %w", err)
	}

	*s = Summary(p)
	s.KPIOrder = order
	return nil
}

// KPIColumns returns the columns that have KPIs: numeric_columns order
// first, then remaining kpis keys as received, then anything else sorted.
func (s Summary) KPIColumns() []string {
	names := make([]string, 0, len(s.KPIs))
	seen := make(map[string]bool, len(s.KPIs))
	add := func(name string) {
		if _, ok := s.KPIs[name]; ok && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	for _, name := range s.NumericColumns {
		add(name)
	}
	for _, name := range s.KPIOrder {
		add(name)
	}
	if len(names) < len(s.KPIs) {
		rest := make([]string, 0, len(s.KPIs)-len(names))
		for name := range s.KPIs {
			if !seen[name] {
				rest = append(rest, name)
			}
		}
		sort.Strings(rest)
		names = append(names, rest...)
	}
	return names
}

// objectKeys lists the keys of a JSON object in document order. null or an
// absent value yields no keys.
func objectKeys(data json.RawMessage) ([]string, error) {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var keys []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)
		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// Outliers counts rows flagged as outliers upstream.
type Outliers struct {
	OutlierRows int `json:"outlier_rows" validate:"gte=0"`
}

// ColumnKPI holds per-column statistics. Values are nil when the column had
// no usable data.
type ColumnKPI struct {
	Mean   *float64 `json:"mean"`
	Median *float64 `json:"median"`
	Std    *float64 `json:"std"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
}

// OutlierRows returns the outlier row count, 0 when the upstream omitted it.
func (s Summary) OutlierRows() int {
	if s.Outliers == nil {
		return 0
	}
	return s.Outliers.OutlierRows
}

// SampleColumn is one numeric column of the sample, in upstream order.
type SampleColumn struct {
	Name   string
	Values []float64
}

// Sample holds the first rows of every numeric column plus optional labels.
// Column order is preserved as received.
type Sample struct {
	Columns []SampleColumn
	Index   []string

	received bool // decoded from a non-null JSON object
}

// Present reports whether the upstream sent a sample object, even an empty
// one, or the sample carries data.
func (s Sample) Present() bool {
	return s.received || len(s.Columns) > 0 || len(s.Index) > 0
}

// Empty reports whether the sample carries no numeric columns.
func (s Sample) Empty() bool {
	return len(s.Columns) == 0
}

// Labels returns the x-axis labels: the index when present, otherwise 1..n
// based on the first column.
func (s Sample) Labels() []string {
	if len(s.Index) > 0 {
		return s.Index
	}
	if len(s.Columns) == 0 {
		return nil
	}
	labels := make([]string, len(s.Columns[0].Values))
	for i := range labels {
		labels[i] = strconv.Itoa(i + 1)
	}
	return labels
}

// UnmarshalJSON decodes the sample object keeping key order. Values that are
// not numbers (null, NaN strings, objects) decode as 0.
func (s *Sample) UnmarshalJSON(data []byte) error {
	s.Columns = nil
	s.Index = nil
	s.received = false

	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("sample: expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var raw []json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("sample: column %q: %w", key, err)
		}

		if key == IndexKey {
			s.Index = make([]string, len(raw))
			for i, v := range raw {
				s.Index[i] = labelFromRaw(v)
			}
			continue
		}

		col := SampleColumn{Name: key, Values: make([]float64, len(raw))}
		for i, v := range raw {
			col.Values[i] = numberFromRaw(v)
		}
		s.Columns = append(s.Columns, col)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	s.received = true
	return nil
}

// MarshalJSON encodes the sample as an ordered object with the index last.
func (s Sample) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range s.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(col.Name)
		vals, err := json.Marshal(col.Values)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(vals)
	}
	if s.Index != nil {
		if len(s.Columns) > 0 {
			buf.WriteByte(',')
		}
		idx, _ := json.Marshal(s.Index)
		buf.WriteString(`"` + IndexKey + `":`)
		buf.Write(idx)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// EncodeMsgpack encodes the sample as an ordered map with the index last.
func (s Sample) EncodeMsgpack(enc *msgpack.Encoder) error {
	n := len(s.Columns)
	if s.Index != nil {
		n++
	}
	if err := enc.EncodeMapLen(n); err != nil {
		return err
	}
	for _, col := range s.Columns {
		if err := enc.EncodeString(col.Name); err != nil {
			return err
		}
		if err := enc.Encode(col.Values); err != nil {
			return err
		}
	}
	if s.Index != nil {
		if err := enc.EncodeString(IndexKey); err != nil {
			return err
		}
		return enc.Encode(s.Index)
	}
	return nil
}

func numberFromRaw(v json.RawMessage) float64 {
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	var str string
	if err := json.Unmarshal(v, &str); err == nil {
		if f, err := strconv.ParseFloat(str, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f
		}
	}
	return 0
}

func labelFromRaw(v json.RawMessage) string {
	var str string
	if err := json.Unmarshal(v, &str); err == nil {
		return str
	}
	return string(bytes.TrimSpace(v))
}
