package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Welkro/Tides-and-Currents-Predictions/internal/station"
)

var (
	ErrNoData         = errors.New("playback: no data to replay")
	ErrAlreadyRunning = errors.New("playback: already running")
	ErrNotRunning     = errors.New("playback: not running")
	ErrNotPaused      = errors.New("playback: not paused")
)

// Channel is the display side of one parameter.
type Channel interface {
	Add(x, y float64)
}

// State of the controller.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateStopped  State = "stopped"
	StateFinished State = "finished"
)

// Pacing selects how the delay between steps is derived.
type Pacing string

const (
	// PacingFixed waits Config.Delay after every step.
	PacingFixed Pacing = "fixed"
	// PacingScaled waits the real gap to the next step divided by Config.Speedup.
	PacingScaled Pacing = "scaled"
)

// Config controls replay speed.
type Config struct {
	Delay    time.Duration
	Pacing   Pacing
	Speedup  float64
	MaxDelay time.Duration
}

// DefaultConfig replays with a fixed 30ms delay.
func DefaultConfig() Config {
	return Config{
		Delay:    30 * time.Millisecond,
		Pacing:   PacingFixed,
		Speedup:  12000,
		MaxDelay: time.Second,
	}
}

// Status is a point-in-time view of the controller.
type Status struct {
	State      State                     `json:"state"`
	Step       int                       `json:"step"`
	Steps      int                       `json:"steps"`
	Emitted    map[station.Parameter]int `json:"emitted"`
	Runs       int                       `json:"runs"`
	StartedAt  time.Time                 `json:"startedAt,omitempty"`
	FinishedAt time.Time                 `json:"finishedAt,omitempty"`
}

// Controller replays a dataset onto display channels, one merged timestamp at
// a time. Steps run strictly in sequence on a single goroutine; the exported
// control methods only flip state that the loop observes between steps.
type Controller struct {
	steps    []station.Step
	order    []station.Parameter
	channels map[station.Parameter]Channel
	cfg      Config
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	state    State
	step     int
	runs     int
	emitted  map[station.Parameter]int
	started  time.Time
	finished time.Time
	resume   chan struct{}
	cancel   context.CancelFunc
	done     chan struct{}
	onReset  func()
	onChange func(Status)
}

// NewController prepares a replay of ds. Every series in ds needs a channel.
func NewController(ds *station.Dataset, channels map[station.Parameter]Channel, cfg Config, logger *slog.Logger) (*Controller, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if ds == nil || len(ds.Series) == 0 {
		return nil, ErrNoData
	}
	order := ds.Parameters()
	for _, p := range order {
		if _, ok := channels[p]; !ok {
			return nil, fmt.Errorf("playback: no channel for %s", p)
		}
	}
	steps := station.Timeline(ds.Series)
	if len(steps) == 0 {
		return nil, ErrNoData
	}
	if cfg.Pacing == "" {
		cfg.Pacing = PacingFixed
	}

	return &Controller{
		steps:    steps,
		order:    order,
		channels: channels,
		cfg:      cfg,
		logger:   logger,
		sleep:    sleepContext,
		state:    StateIdle,
		emitted:  make(map[station.Parameter]int),
	}, nil
}

// OnReset registers a hook run before every restart, typically clearing the chart.
func (c *Controller) OnReset(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReset = fn
}

// OnChange registers a hook run after every state transition.
func (c *Controller) OnChange(fn func(Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Steps returns the number of merged timestamps.
func (c *Controller) Steps() int {
	return len(c.steps)
}

// Start begins a replay in the background. A finished or stopped replay starts over.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateRunning, StatePaused:
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	if c.runs > 0 && c.onReset != nil {
		c.onReset()
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.state = StateRunning
	c.step = 0
	c.runs++
	c.emitted = make(map[station.Parameter]int)
	c.started = time.Now().UTC()
	c.finished = time.Time{}
	done := c.done
	c.mu.Unlock()

	c.notify()
	c.logger.Info("playback started", "steps", len(c.steps), "pacing", string(c.cfg.Pacing), "delay", c.cfg.Delay)

	go func() {
		defer close(done)
		defer cancel()
		c.loop(runCtx)
	}()
	return nil
}

// Run replays the whole dataset and blocks until it ends.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	c.Wait()
	return ctx.Err()
}

// Wait blocks until the current replay has ended.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Pause holds the replay before its next step.
func (c *Controller) Pause() error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return ErrNotRunning
	}
	c.state = StatePaused
	c.resume = make(chan struct{})
	c.mu.Unlock()

	c.logger.Info("playback paused")
	c.notify()
	return nil
}

// Resume continues a paused replay.
func (c *Controller) Resume() error {
	c.mu.Lock()
	if c.state != StatePaused {
		c.mu.Unlock()
		return ErrNotPaused
	}
	c.state = StateRunning
	close(c.resume)
	c.resume = nil
	c.mu.Unlock()

	c.logger.Info("playback resumed")
	c.notify()
	return nil
}

// Stop ends a running or paused replay and waits for its loop to exit.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state != StateRunning && c.state != StatePaused {
		c.mu.Unlock()
		return ErrNotRunning
	}
	c.state = StateStopped
	c.finished = time.Now().UTC()
	// Cancel before waking a paused loop so it sees the cancellation.
	c.cancel()
	if c.resume != nil {
		close(c.resume)
		c.resume = nil
	}
	c.mu.Unlock()

	c.Wait()
	c.logger.Info("playback stopped")
	c.notify()
	return nil
}

// Status returns the current state and progress.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller) statusLocked() Status {
	emitted := make(map[station.Parameter]int, len(c.emitted))
	for k, v := range c.emitted {
		emitted[k] = v
	}
	return Status{
		State:      c.state,
		Step:       c.step,
		Steps:      len(c.steps),
		Emitted:    emitted,
		Runs:       c.runs,
		StartedAt:  c.started,
		FinishedAt: c.finished,
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	st := c.statusLocked()
	c.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

func (c *Controller) loop(ctx context.Context) {
	for i := range c.steps {
		if err := c.waitWhilePaused(ctx); err != nil {
			c.interrupted()
			return
		}
		if !c.running() {
			return
		}
		c.emit(ctx, c.steps[i])

		c.mu.Lock()
		c.step = i + 1
		c.mu.Unlock()

		if err := c.sleep(ctx, c.delay(i)); err != nil {
			c.interrupted()
			return
		}
	}
	if err := c.waitWhilePaused(ctx); err != nil {
		c.interrupted()
		return
	}

	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	c.state = StateFinished
	c.finished = time.Now().UTC()
	c.mu.Unlock()

	c.logger.Info("playback finished", "steps", len(c.steps))
	c.notify()
}

func (c *Controller) running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateRunning
}

// interrupted records a loop that ended on context cancellation rather than Stop.
func (c *Controller) interrupted() {
	c.mu.Lock()
	if c.state != StateRunning && c.state != StatePaused {
		c.mu.Unlock()
		return
	}
	c.state = StateStopped
	c.finished = time.Now().UTC()
	c.mu.Unlock()

	c.logger.Info("playback interrupted")
	c.notify()
}

// emit writes every parameter's value for one step. Parameters with no sample
// at this timestamp get nothing; a recorded missing value is reported.
func (c *Controller) emit(ctx context.Context, st station.Step) {
	for _, p := range c.order {
		smp, ok := st.Values[p]
		if !ok {
			if slices.Contains(st.Missing, p) {
				c.logger.InfoContext(ctx, "missing value", "parameter", p, "timestamp", st.Timestamp.Format(station.TimestampLayout))
			} else {
				c.logger.DebugContext(ctx, "no sample at step", "parameter", p, "timestamp", st.Timestamp.Format(station.TimestampLayout))
			}
			continue
		}
		c.channels[p].Add(smp.Millis(), smp.Value)

		c.mu.Lock()
		c.emitted[p]++
		c.mu.Unlock()
	}
}

func (c *Controller) delay(i int) time.Duration {
	if c.cfg.Pacing != PacingScaled || c.cfg.Speedup <= 0 || i+1 >= len(c.steps) {
		return c.cfg.Delay
	}
	gap := c.steps[i+1].Timestamp.Sub(c.steps[i].Timestamp)
	d := time.Duration(float64(gap) / c.cfg.Speedup)
	if c.cfg.MaxDelay > 0 && d > c.cfg.MaxDelay {
		d = c.cfg.MaxDelay
	}
	return d
}

func (c *Controller) waitWhilePaused(ctx context.Context) error {
	c.mu.Lock()
	ch := c.resume
	paused := c.state == StatePaused
	c.mu.Unlock()
	if !paused {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return ctx.Err()
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
