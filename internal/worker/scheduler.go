package worker

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Scheduler runs jobs on cron schedules. A job never overlaps with itself.
type Scheduler struct {
	cron   *gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger zerolog.Logger
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	tz := cfg.Timezone
	if tz == nil {
		tz = time.UTC
	}

	cron := gocron.NewScheduler(tz)
	cron.SingletonModeAll()

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron,
		ctx:    ctx,
		cancel: cancel,
		logger: cfg.Logger,
	}
}

// Add registers job under expr: five fields, or six with leading seconds.
// The job's context is cancelled by Stop.
func (s *Scheduler) Add(expr string, job func(ctx context.Context)) error {
	fields, err := scheduleFields(expr)
	if err != nil {
		return err
	}

	var sched *gocron.Scheduler
	if fields == 6 {
		sched = s.cron.CronWithSeconds(expr)
	} else {
		sched = s.cron.Cron(expr)
	}

	_, err = sched.Do(func() {
		s.wg.Add(1)
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().Interface("panic", r).Str("schedule", expr).Msg("scheduled job panicked")
			}
		}()
		job(s.ctx)
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("schedule", expr).Msg("job scheduled")
	return nil
}

// NextRun returns when the next job is due, or the zero time if none is scheduled.
func (s *Scheduler) NextRun() time.Time {
	_, next := s.cron.NextRun()
	return next
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.StartAsync()
	s.logger.Info().Time("next_run", s.NextRun()).Msg("scheduler started")
}

// Stop cancels the jobs' context and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}
