package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/chrisrobison/ouija/internal/logging"
)

// Sweeper purges invalid spirit records; *spirit.Service satisfies it.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Scheduler runs the periodic validity sweep
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	logger  *slog.Logger
}

// NewScheduler creates a scheduler running the sweep on schedule, a
// standard five-field cron expression.
func NewScheduler(sweeper Sweeper, schedule string) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		sweeper: sweeper,
		logger:  logging.WithComponent("scheduler"),
	}
	if err := s.scheduleSweep(schedule); err != nil {
		return nil, err
	}
	return s, nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) scheduleSweep(schedule string) error {
	_, err := s.cron.AddFunc(schedule, s.RunSweep)
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return nil
}

// RunSweep performs one sweep, logging the outcome.
func (s *Scheduler) RunSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	purged, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.Error("sweep failed", "purged", purged, "error", err)
		return
	}
	s.logger.Info("sweep finished", "purged", purged)
}
