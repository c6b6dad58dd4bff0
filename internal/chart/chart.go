package chart

import (
	"errors"
	"sync"
)

// ErrUnknownSeries is returned when a series key is not attached to the chart.
var ErrUnknownSeries = errors.New("unknown series")

const (
	TickDateTime = "DateTime"
	// PatternProgressiveX marks a series whose x values only ever grow.
	PatternProgressiveX = "ProgressiveX"

	stackMargin = 15
)

// Point is one (x, y) pair appended to a series. X is epoch milliseconds.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Listener is notified after every point appended to any series of the chart.
type Listener interface {
	OnPoint(series string, p Point)
}

// ResetListener is implemented by listeners that want to know when the chart is cleared.
type ResetListener interface {
	OnReset(l Layout)
}

// Interval is a closed axis range.
type Interval struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// XAxis is the shared horizontal time axis.
type XAxis struct {
	Title        string   `json:"title"`
	TickStrategy string   `json:"tickStrategy"`
	Interval     Interval `json:"interval"`
}

// YAxis is one of the stacked, independently scaled vertical axes.
type YAxis struct {
	StackIndex   int      `json:"stackIndex"`
	Title        string   `json:"title"`
	MarginBefore int      `json:"marginBefore"`
	MarginAfter  int      `json:"marginAfter"`
	Interval     Interval `json:"interval"`

	initial Interval
	touched bool
}

// Chart is an in-memory XY chart with a time x-axis and stacked y-axes.
// It is safe for concurrent use: playback appends while HTTP handlers read.
type Chart struct {
	mu        sync.RWMutex
	title     string
	xAxis     XAxis
	yAxes     []*YAxis
	series    []*Series
	byKey     map[string]*Series
	listeners []Listener
}

// New creates an empty chart with a DateTime x-axis.
func New(title string) *Chart {
	return &Chart{
		title: title,
		xAxis: XAxis{TickStrategy: TickDateTime},
		byKey: make(map[string]*Series),
	}
}

// SetTitle replaces the chart title.
func (c *Chart) SetTitle(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.title = title
}

// SetXAxis sets the x-axis title and its explicit interval.
func (c *Chart) SetXAxis(title string, from, to float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.xAxis.Title = title
	c.xAxis.Interval = Interval{Min: from, Max: to}
}

// AddYAxis appends a vertical axis below the existing ones.
func (c *Chart) AddYAxis(title string, initial Interval) *YAxis {
	c.mu.Lock()
	defer c.mu.Unlock()
	ax := &YAxis{
		StackIndex: len(c.yAxes),
		Title:      title,
		Interval:   initial,
		initial:    initial,
	}
	c.yAxes = append(c.yAxes, ax)
	return ax
}

// AddProgressiveSeries attaches an append-only series to axis.
func (c *Chart) AddProgressiveSeries(key, name string, axis *YAxis) *Series {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &Series{
		chart: c,
		key:   key,
		name:  name,
		axis:  axis,
	}
	c.series = append(c.series, s)
	c.byKey[key] = s
	return s
}

// Subscribe registers a listener for appended points.
func (c *Chart) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Series returns the series attached under key.
func (c *Chart) Series(key string) (*Series, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.byKey[key]
	return s, ok
}

// Points returns a copy of the points appended so far to the series under key.
func (c *Chart) Points(key string) ([]Point, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.byKey[key]
	if !ok {
		return nil, ErrUnknownSeries
	}
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out, nil
}

// Reset clears every series and restores the initial y intervals. Listeners
// implementing ResetListener receive the cleared layout.
func (c *Chart) Reset() {
	c.mu.Lock()
	for _, s := range c.series {
		s.points = nil
	}
	for _, ax := range c.yAxes {
		ax.Interval = ax.initial
		ax.touched = false
	}
	listeners := c.listeners
	c.mu.Unlock()

	layout := c.Layout()
	for _, l := range listeners {
		if rl, ok := l.(ResetListener); ok {
			rl.OnReset(layout)
		}
	}
}

// SeriesLayout describes one series for clients.
type SeriesLayout struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	AxisIndex   int    `json:"axisIndex"`
	DataPattern string `json:"dataPattern"`
	Points      int    `json:"points"`
}

// Layout is a serializable snapshot of the chart configuration.
type Layout struct {
	Title  string         `json:"title"`
	XAxis  XAxis          `json:"xAxis"`
	YAxes  []YAxis        `json:"yAxes"`
	Series []SeriesLayout `json:"series"`
}

// Layout returns the current configuration. Margins separate stacked axes:
// every axis but the first gets a top margin, every axis but the last a bottom one.
func (c *Chart) Layout() Layout {
	c.mu.RLock()
	defer c.mu.RUnlock()

	l := Layout{
		Title: c.title,
		XAxis: c.xAxis,
		YAxes: make([]YAxis, 0, len(c.yAxes)),
	}
	n := len(c.yAxes)
	for i, ax := range c.yAxes {
		cp := *ax
		cp.MarginBefore, cp.MarginAfter = 0, 0
		if i > 0 {
			cp.MarginBefore = stackMargin
		}
		if i < n-1 {
			cp.MarginAfter = stackMargin
		}
		l.YAxes = append(l.YAxes, cp)
	}
	for _, s := range c.series {
		l.Series = append(l.Series, SeriesLayout{
			Key:         s.key,
			Name:        s.name,
			AxisIndex:   s.axis.StackIndex,
			DataPattern: PatternProgressiveX,
			Points:      len(s.points),
		})
	}
	return l
}

// Series is an append-only progressive line series.
type Series struct {
	chart  *Chart
	key    string
	name   string
	axis   *YAxis
	points []Point
}

func (s *Series) Key() string  { return s.key }
func (s *Series) Name() string { return s.name }

// Add appends one point and widens the series' y-axis to fit it.
func (s *Series) Add(x, y float64) {
	c := s.chart
	p := Point{X: x, Y: y}

	c.mu.Lock()
	s.points = append(s.points, p)
	ax := s.axis
	if !ax.touched {
		ax.Interval = Interval{Min: y, Max: y}
		ax.touched = true
	} else {
		ax.Interval.Min = min(ax.Interval.Min, y)
		ax.Interval.Max = max(ax.Interval.Max, y)
	}
	listeners := c.listeners
	c.mu.Unlock()

	for _, l := range listeners {
		l.OnPoint(s.key, p)
	}
}
