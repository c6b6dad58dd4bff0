package station

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the upstream "t" field format.
const TimestampLayout = "2006-01-02 15:04"

// Record is one upstream row. Fields are kept raw because products disagree on
// which keys they carry (wind has "s" for speed, water_level has "s" for sigma).
type Record map[string]json.RawMessage

// Field returns the string form of a field, accepting JSON strings and numbers.
// Absent, null and blank fields report ok=false.
func (r Record) Field(name string) (string, bool) {
	raw, ok := r[name]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", false
		}
		s = n.String()
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

type upstreamError struct {
	Message string `json:"message"`
}

// envelope covers both payload shapes: observed products use "data",
// tide predictions use "predictions".
type envelope struct {
	Data        *[]Record      `json:"data"`
	Predictions *[]Record      `json:"predictions"`
	Error       *upstreamError `json:"error"`
}

// SkipReason explains why a record produced no sample.
type SkipReason string

const (
	SkipMissingValue SkipReason = "missing value"
	SkipBadValue     SkipReason = "unparsable value"
	SkipBadTimestamp SkipReason = "unparsable timestamp"
	SkipOutOfWindow  SkipReason = "outside requested window"
	SkipOutOfOrder   SkipReason = "not after previous record"
)

// Skipped describes a record that was omitted from a series.
type Skipped struct {
	Index     int
	Timestamp string
	Reason    SkipReason
}

// Payload extracts the record list from a response body, whichever key carries it.
func Payload(body []byte) ([]Record, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	switch {
	case env.Data != nil:
		return *env.Data, nil
	case env.Predictions != nil:
		return *env.Predictions, nil
	case env.Error != nil:
		return nil, fmt.Errorf("%w: %s", ErrUpstream, env.Error.Message)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedShape, preview(body))
	}
}

// Decode turns a response body into a series for spec. Records are taken in
// the order received and never reordered; anything unusable is listed in skipped.
func Decode(spec ParameterSpec, window DateRange, body []byte) (Series, []Skipped, error) {
	records, err := Payload(body)
	if err != nil {
		return Series{}, nil, err
	}
	series, skipped := BuildSeries(spec, window, records)
	return series, skipped, nil
}

// BuildSeries converts records into a series.
func BuildSeries(spec ParameterSpec, window DateRange, records []Record) (Series, []Skipped) {
	series := Series{
		Parameter: spec.Name,
		Label:     spec.Label,
		Samples:   make([]Sample, 0, len(records)),
		RawCount:  len(records),
	}
	var (
		skipped []Skipped
		last    time.Time
	)

	for i, rec := range records {
		rawTS, _ := rec.Field("t")
		ts, err := time.ParseInLocation(TimestampLayout, rawTS, time.UTC)
		if err != nil {
			skipped = append(skipped, Skipped{Index: i, Timestamp: rawTS, Reason: SkipBadTimestamp})
			continue
		}
		if !window.Contains(ts) {
			skipped = append(skipped, Skipped{Index: i, Timestamp: rawTS, Reason: SkipOutOfWindow})
			continue
		}
		if !last.IsZero() && !ts.After(last) {
			skipped = append(skipped, Skipped{Index: i, Timestamp: rawTS, Reason: SkipOutOfOrder})
			continue
		}
		last = ts

		rawValue, ok := rec.Field(spec.ValueField)
		if !ok {
			series.Gaps = append(series.Gaps, ts)
			skipped = append(skipped, Skipped{Index: i, Timestamp: rawTS, Reason: SkipMissingValue})
			continue
		}
		v, err := strconv.ParseFloat(rawValue, 64)
		if err != nil {
			series.Gaps = append(series.Gaps, ts)
			skipped = append(skipped, Skipped{Index: i, Timestamp: rawTS, Reason: SkipBadValue})
			continue
		}

		series.Samples = append(series.Samples, Sample{Timestamp: ts, Value: v})
	}

	return series, skipped
}

// ParseDay parses a YYYYMMDD date as midnight UTC.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation("20060102", s, time.UTC)
}

func preview(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
