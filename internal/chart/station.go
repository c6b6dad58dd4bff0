package chart

import (
	"fmt"
	"time"

	"github.com/Welkro/Tides-and-Currents-Predictions/internal/station"
)

// TimeAxisTitle labels the shared x-axis. Upstream timestamps are requested in GMT.
const TimeAxisTitle = "Time (GMT)"

// FromDataset lays out one stacked y-axis and progressive series per parameter
// present in ds, with the x-axis sized to the dataset's time window.
func FromDataset(ds *station.Dataset, stationName string) *Chart {
	c := New(Title(stationName, ds.Request))
	c.SetXAxis(TimeAxisTitle,
		float64(ds.Window.Min.UnixMilli()),
		float64(ds.Window.Max.UnixMilli()))

	for _, s := range ds.Series {
		ax := c.AddYAxis(s.Label, Interval{Min: 0, Max: 1})
		c.AddProgressiveSeries(string(s.Parameter), s.Label, ax)
	}
	return c
}

// Title renders the chart heading, e.g.
// "All Parameters at Trident Pier (Oct 8-12, 2024) - Simulated Real-time".
func Title(stationName string, r station.DateRange) string {
	return fmt.Sprintf("All Parameters at %s (%s) - Simulated Real-time", stationName, formatRange(r.Begin, r.End))
}

func formatRange(begin, end time.Time) string {
	switch {
	case begin.Year() != end.Year():
		return fmt.Sprintf("%s - %s", begin.Format("Jan 2, 2006"), end.Format("Jan 2, 2006"))
	case begin.Month() != end.Month():
		return fmt.Sprintf("%s - %s, %d", begin.Format("Jan 2"), end.Format("Jan 2"), end.Year())
	case begin.Day() != end.Day():
		return fmt.Sprintf("%s %d-%d, %d", begin.Format("Jan"), begin.Day(), end.Day(), end.Year())
	default:
		return begin.Format("Jan 2, 2006")
	}
}
