package playback

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Welkro/Tides-and-Currents-Predictions/internal/station"
)

type point struct{ x, y float64 }

// recordingChannel keeps every point it is given.
type recordingChannel struct {
	mu     sync.Mutex
	points []point
	onAdd  func()
}

func (r *recordingChannel) Add(x, y float64) {
	r.mu.Lock()
	r.points = append(r.points, point{x, y})
	fn := r.onAdd
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (r *recordingChannel) Points() []point {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]point, len(r.points))
	copy(out, r.points)
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var t0 = time.Date(2024, 10, 10, 9, 0, 0, 0, time.UTC)

func at(m int) time.Time { return t0.Add(time.Duration(m) * time.Minute) }

func testDataset() *station.Dataset {
	return &station.Dataset{
		Station: "8721604",
		Series: []station.Series{
			{
				Parameter: station.ParamWind,
				Samples: []station.Sample{
					{Timestamp: at(0), Value: 18.9},
					{Timestamp: at(6), Value: 19.5},
					{Timestamp: at(30), Value: 20.4},
				},
			},
			{
				Parameter: station.ParamAirPressure,
				Samples: []station.Sample{
					{Timestamp: at(0), Value: 1012.8},
					{Timestamp: at(6), Value: 1012.9},
				},
				Gaps: []time.Time{at(30)},
			},
		},
		Window: station.TimeWindow{Min: at(0), Max: at(30)},
	}
}

func newTestController(t *testing.T) (*Controller, map[station.Parameter]*recordingChannel) {
	t.Helper()
	recs := map[station.Parameter]*recordingChannel{
		station.ParamWind:        {},
		station.ParamAirPressure: {},
	}
	channels := map[station.Parameter]Channel{}
	for p, r := range recs {
		channels[p] = r
	}
	c, err := NewController(testDataset(), channels, Config{Pacing: PacingFixed}, discardLogger())
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	c.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return c, recs
}

func TestRun_EmitsEverySampleOnce(t *testing.T) {
	c, recs := newTestController(t)

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	ds := testDataset()
	for _, s := range ds.Series {
		got := recs[s.Parameter].Points()
		if len(got) != s.Len() {
			t.Fatalf("%s: expected %d points, got %d", s.Parameter, s.Len(), len(got))
		}
		for i, smp := range s.Samples {
			if got[i].x != float64(smp.Timestamp.UnixMilli()) || got[i].y != smp.Value {
				t.Errorf("%s[%d] = %+v, want (%v, %v)", s.Parameter, i, got[i], smp.Timestamp.UnixMilli(), smp.Value)
			}
		}
	}

	st := c.Status()
	if st.State != StateFinished {
		t.Errorf("expected finished, got %s", st.State)
	}
	if st.Step != 3 || st.Steps != 3 {
		t.Errorf("expected 3/3 steps, got %d/%d", st.Step, st.Steps)
	}
	if st.Emitted[station.ParamWind] != 3 || st.Emitted[station.ParamAirPressure] != 2 {
		t.Errorf("unexpected emitted counts %v", st.Emitted)
	}
}

func TestRun_WindScenarioAndMissingPressure(t *testing.T) {
	c, recs := newTestController(t)
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	x := float64(time.Date(2024, 10, 10, 9, 30, 0, 0, time.UTC).UnixMilli())

	var found bool
	for _, p := range recs[station.ParamWind].Points() {
		if p.x == x && p.y == 20.4 {
			found = true
		}
	}
	if !found {
		t.Error("wind channel never received add(x, 20.4) for 09:30")
	}
	for _, p := range recs[station.ParamAirPressure].Points() {
		if p.x == x {
			t.Errorf("air_pressure emitted a point at its missing timestamp: %+v", p)
		}
	}
}

func TestRun_StepsAreSequentialWithDelay(t *testing.T) {
	c, recs := newTestController(t)

	var (
		mu     sync.Mutex
		events []string
	)
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}
	recs[station.ParamWind].onAdd = func() { record("wind") }
	recs[station.ParamAirPressure].onAdd = func() { record("pressure") }
	c.sleep = func(ctx context.Context, d time.Duration) error {
		record("sleep")
		return nil
	}

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"wind", "pressure", "sleep", "wind", "pressure", "sleep", "wind", "sleep"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}
}

func TestPauseResume(t *testing.T) {
	c, recs := newTestController(t)

	entered := make(chan struct{})
	gate := make(chan struct{})
	var once sync.Once
	c.sleep = func(ctx context.Context, d time.Duration) error {
		once.Do(func() {
			close(entered)
			<-gate
		})
		return ctx.Err()
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	<-entered
	if err := c.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	close(gate)

	// The loop must hold at the next step while paused.
	time.Sleep(20 * time.Millisecond)
	if n := len(recs[station.ParamWind].Points()); n != 1 {
		t.Fatalf("expected 1 wind point while paused, got %d", n)
	}
	if st := c.Status(); st.State != StatePaused {
		t.Fatalf("expected paused, got %s", st.State)
	}
	if err := c.Pause(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning on double pause, got %v", err)
	}

	if err := c.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	c.Wait()

	if n := len(recs[station.ParamWind].Points()); n != 3 {
		t.Fatalf("expected 3 wind points after resume, got %d", n)
	}
	if err := c.Resume(); !errors.Is(err, ErrNotPaused) {
		t.Fatalf("expected ErrNotPaused, got %v", err)
	}
}

func TestStopAndRestart(t *testing.T) {
	c, recs := newTestController(t)

	gate := make(chan struct{})
	c.sleep = func(ctx context.Context, d time.Duration) error {
		select {
		case <-gate:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var resets int
	c.OnReset(func() {
		resets++
		for _, r := range recs {
			r.mu.Lock()
			r.points = nil
			r.mu.Unlock()
		}
	})
	var states []State
	var smu sync.Mutex
	c.OnChange(func(st Status) {
		smu.Lock()
		states = append(states, st.State)
		smu.Unlock()
	})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if st := c.Status(); st.State != StateStopped {
		t.Fatalf("expected stopped, got %s", st.State)
	}
	if err := c.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}

	close(gate)
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run after stop: %v", err)
	}
	if resets != 1 {
		t.Errorf("expected 1 reset, got %d", resets)
	}
	if n := len(recs[station.ParamWind].Points()); n != 3 {
		t.Errorf("expected a full replay after restart, got %d wind points", n)
	}
	st := c.Status()
	if st.Runs != 2 || st.State != StateFinished {
		t.Errorf("unexpected status after restart: %+v", st)
	}

	smu.Lock()
	defer smu.Unlock()
	if len(states) == 0 || states[0] != StateRunning || states[len(states)-1] != StateFinished {
		t.Errorf("unexpected state transitions %v", states)
	}
}

func TestStopWhilePausedEmitsNothingMore(t *testing.T) {
	for i := 0; i < 200; i++ {
		c, recs := newTestController(t)

		entered := make(chan struct{})
		gate := make(chan struct{})
		var once sync.Once
		c.sleep = func(ctx context.Context, d time.Duration) error {
			once.Do(func() {
				close(entered)
				<-gate
			})
			return ctx.Err()
		}

		if err := c.Start(context.Background()); err != nil {
			t.Fatalf("Start: %v", err)
		}
		<-entered
		if err := c.Pause(); err != nil {
			t.Fatalf("Pause: %v", err)
		}
		close(gate)

		before := len(recs[station.ParamWind].Points())
		if err := c.Stop(); err != nil {
			t.Fatalf("Stop: %v", err)
		}
		after := len(recs[station.ParamWind].Points())
		if after != before {
			t.Fatalf("iteration %d: %d wind points emitted after Stop", i, after-before)
		}
		if st := c.Status(); st.State != StateStopped {
			t.Fatalf("iteration %d: expected stopped, got %s", i, st.State)
		}
	}
}

func TestContextCancelStopsReplay(t *testing.T) {
	c, _ := newTestController(t)
	c.sleep = sleepContext
	c.cfg.Delay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	c.Wait()

	if st := c.Status(); st.State != StateStopped {
		t.Fatalf("expected stopped after cancel, got %s", st.State)
	}
}

func TestDelay(t *testing.T) {
	c, _ := newTestController(t)

	c.cfg = Config{Delay: 30 * time.Millisecond, Pacing: PacingFixed}
	if d := c.delay(0); d != 30*time.Millisecond {
		t.Errorf("fixed delay = %s, want 30ms", d)
	}

	// Steps are 6 and 24 minutes apart.
	c.cfg = Config{Delay: 30 * time.Millisecond, Pacing: PacingScaled, Speedup: 3600, MaxDelay: 300 * time.Millisecond}
	if d := c.delay(0); d != 100*time.Millisecond {
		t.Errorf("scaled delay = %s, want 100ms", d)
	}
	if d := c.delay(1); d != 300*time.Millisecond {
		t.Errorf("capped delay = %s, want 300ms", d)
	}
	if d := c.delay(2); d != 30*time.Millisecond {
		t.Errorf("last step delay = %s, want 30ms", d)
	}
}

func TestNewController_Errors(t *testing.T) {
	if _, err := NewController(&station.Dataset{}, nil, DefaultConfig(), nil); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
	if _, err := NewController(testDataset(), map[station.Parameter]Channel{}, DefaultConfig(), nil); err == nil {
		t.Error("expected error for missing channel")
	}
}
