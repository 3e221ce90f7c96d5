package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a unit of background work.
type Job interface {
	Run() error
	Name() string
}

// Scheduler runs jobs on cron schedules.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// New creates a scheduler. Schedules accept an optional seconds field.
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithParser(cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
		logger: logger.Named("scheduler"),
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// AddJob registers a job, e.g. "@every 1h", "0 */5 * * * *" or "@daily".
// A job still running when its next tick arrives is skipped.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	wrapped := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		s.runJob(job)
	}))

	if _, err := s.cron.AddJob(schedule, wrapped); err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", schedule, job.Name(), err)
	}

	s.logger.Info("Job registered", zap.String("schedule", schedule), zap.String("job", job.Name()))
	return nil
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	s.logger.Info("Running job immediately", zap.String("job", job.Name()))
	return job.Run()
}

func (s *Scheduler) runJob(job Job) {
	l := s.logger.With(zap.String("job", job.Name()))
	l.Debug("Running job")
	if err := job.Run(); err != nil {
		l.Error("Job failed", zap.Error(err))
		return
	}
	l.Debug("Job completed")
}
