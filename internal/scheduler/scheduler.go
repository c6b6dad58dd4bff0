package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/Welkro/Tides-and-Currents-Predictions/internal/playback"
)

// Replayer is the part of the playback controller the scheduler drives.
type Replayer interface {
	Status() playback.Status
	Start(ctx context.Context) error
}

// Scheduler periodically restarts a replay that has ended. It never refetches data.
type Scheduler struct {
	scheduler *gocron.Scheduler
	replayer  Replayer
	interval  time.Duration
	logger    *slog.Logger
	ctx       context.Context
}

// New creates a new Scheduler. The context is passed to every restarted replay.
func New(ctx context.Context, interval time.Duration, replayer Replayer, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		replayer:  replayer,
		interval:  interval,
		logger:    logger,
		ctx:       ctx,
	}
}

// Start schedules the restart job. A non-positive interval schedules nothing.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Debug("scheduler: replay interval disabled; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().SingletonMode().Do(s.tick)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler: replay restart scheduled", "interval", s.interval)
	return nil
}

// tick restarts the replay if it is finished or stopped.
func (s *Scheduler) tick() {
	st := s.replayer.Status()
	switch st.State {
	case playback.StateFinished, playback.StateStopped:
	default:
		s.logger.Debug("scheduler: replay still active, skipping", "state", string(st.State))
		return
	}

	if err := s.replayer.Start(s.ctx); err != nil {
		s.logger.Warn("scheduler: restart failed", "error", err)
		return
	}
	s.logger.Info("scheduler: replay restarted", "run", st.Runs+1)
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
