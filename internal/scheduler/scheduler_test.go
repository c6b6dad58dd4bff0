package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Welkro/Tides-and-Currents-Predictions/internal/playback"
)

type fakeReplayer struct {
	mu     sync.Mutex
	state  playback.State
	starts int
}

func (f *fakeReplayer) Status() playback.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return playback.Status{State: f.state}
}

func (f *fakeReplayer) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.state = playback.StateRunning
	return nil
}

func (f *fakeReplayer) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func TestTick_RestartsOnlyEndedReplays(t *testing.T) {
	tests := []struct {
		state playback.State
		want  int
	}{
		{playback.StateFinished, 1},
		{playback.StateStopped, 1},
		{playback.StateRunning, 0},
		{playback.StatePaused, 0},
		{playback.StateIdle, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			r := &fakeReplayer{state: tt.state}
			s := New(context.Background(), 0, r, nil)
			s.tick()
			assert.Equal(t, tt.want, r.Starts())
		})
	}
}

func TestStart_DisabledInterval(t *testing.T) {
	r := &fakeReplayer{state: playback.StateFinished}
	s := New(context.Background(), 0, r, nil)
	require.NoError(t, s.Start())
	s.Stop()
	assert.Zero(t, r.Starts(), "disabled scheduler restarted the replay")
}

func TestStart_RestartsFinishedReplayOnSchedule(t *testing.T) {
	r := &fakeReplayer{state: playback.StateFinished}
	s := New(context.Background(), 50*time.Millisecond, r, nil)
	require.NoError(t, s.Start())
	defer s.Stop()

	// The first run waits for a full interval.
	assert.Zero(t, r.Starts(), "job fired before the first interval elapsed")

	assert.Eventually(t, func() bool { return r.Starts() == 1 }, time.Second, 10*time.Millisecond)

	// Once running, later ticks leave the replay alone.
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 1, r.Starts())
}
