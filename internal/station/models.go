package station

import (
	"time"
)

// Parameter names one environmental feed of the station.
type Parameter string

const (
	ParamWind             Parameter = "wind"
	ParamAirPressure      Parameter = "air_pressure"
	ParamWaterLevel       Parameter = "water_level"
	ParamTidePredictions  Parameter = "tide_predictions"
	ParamWaterTemperature Parameter = "water_temperature"
	ParamAirTemperature   Parameter = "air_temperature"
)

// Value field names used by the upstream records.
const (
	FieldValue = "v"
	FieldSpeed = "s"
)

// ParameterSpec describes how a parameter is requested and read.
type ParameterSpec struct {
	Name Parameter
	// Product is the upstream product name sent in the query.
	Product string
	// ValueField is the record field carrying the scalar measurement.
	ValueField string
	// Label is the axis title (with unit) shown on the chart.
	Label string
}

var knownParameters = []ParameterSpec{
	{Name: ParamWind, Product: "wind", ValueField: FieldSpeed, Label: "Wind (m/s)"},
	{Name: ParamAirPressure, Product: "air_pressure", ValueField: FieldValue, Label: "Pressure (hPa)"},
	{Name: ParamWaterLevel, Product: "water_level", ValueField: FieldValue, Label: "Water Lvl (m)"},
	{Name: ParamTidePredictions, Product: "predictions", ValueField: FieldValue, Label: "Tide Pred. (m)"},
	{Name: ParamWaterTemperature, Product: "water_temperature", ValueField: FieldValue, Label: "Water Temp (°C)"},
	{Name: ParamAirTemperature, Product: "air_temperature", ValueField: FieldValue, Label: "Air Temp (°C)"},
}

// DefaultParameters returns the six parameters of the reference deployment in display order.
func DefaultParameters() []ParameterSpec {
	out := make([]ParameterSpec, len(knownParameters))
	copy(out, knownParameters)
	return out
}

// LookupParameter returns the spec for a known parameter name.
func LookupParameter(name Parameter) (ParameterSpec, bool) {
	for _, p := range knownParameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterSpec{}, false
}

// Sample is a single measurement. Missing upstream values never become samples.
type Sample struct {
	Timestamp time.Time `json:"timestamp"` // always UTC, minute resolution
	Value     float64   `json:"value"`
}

// Millis returns the timestamp as epoch milliseconds, the chart's x coordinate.
func (s Sample) Millis() float64 {
	return float64(s.Timestamp.UnixMilli())
}

// Series is the ordered sequence of samples for one parameter.
type Series struct {
	Parameter Parameter `json:"parameter"`
	Label     string    `json:"label"`
	Samples   []Sample  `json:"samples"`

	// Gaps holds the timestamps of records whose value was missing.
	Gaps []time.Time `json:"gaps,omitempty"`

	// RawCount is the number of records received before any were skipped.
	RawCount int `json:"rawCount"`
}

// Len returns the number of samples.
func (s Series) Len() int {
	return len(s.Samples)
}

// Range returns the samples between from and to (inclusive).
func (s Series) Range(from, to time.Time) []Sample {
	var out []Sample
	for _, smp := range s.Samples {
		if smp.Timestamp.Before(from) || smp.Timestamp.After(to) {
			continue
		}
		out = append(out, smp)
	}
	return out
}

// DateRange is the requested [begin, end] day window.
type DateRange struct {
	Begin time.Time // midnight UTC of the first day
	End   time.Time // midnight UTC of the last day
}

// Contains reports whether t falls on any day of the range.
func (r DateRange) Contains(t time.Time) bool {
	if r.Begin.IsZero() && r.End.IsZero() {
		return true
	}
	return !t.Before(r.Begin) && t.Before(r.End.AddDate(0, 0, 1))
}

// TimeWindow is the span of all samples across all series.
type TimeWindow struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// Dataset is the read-only result of one assembly run.
type Dataset struct {
	Station  string           `json:"station"`
	Request  DateRange        `json:"-"`
	Series   []Series         `json:"series"` // configured parameter order
	Window   TimeWindow       `json:"window"`
	Failures []ParameterError `json:"failures,omitempty"`
}

// Lookup returns the series for a parameter.
func (d *Dataset) Lookup(p Parameter) (Series, bool) {
	for _, s := range d.Series {
		if s.Parameter == p {
			return s, true
		}
	}
	return Series{}, false
}

// Parameters returns the names of the series present, in order.
func (d *Dataset) Parameters() []Parameter {
	out := make([]Parameter, 0, len(d.Series))
	for _, s := range d.Series {
		out = append(out, s.Parameter)
	}
	return out
}
