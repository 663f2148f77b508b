package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amaumene/plexschedule/internal/controllers"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Runner executes one schedule run
type Runner interface {
	Run(ctx context.Context, today time.Time) (controllers.Summary, error)
}

// Scheduler runs the schedule on a cron expression
type Scheduler struct {
	cron     *cron.Cron
	runner   Runner
	schedule string
	now      func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup // initial run
	logger   *logrus.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(runner Runner, schedule string, logger *logrus.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(),
		runner:   runner,
		schedule: schedule,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
	}
}

// Start registers the run job and performs an initial run in the background
func (s *Scheduler) Start() error {
	s.logger.WithField("schedule", s.schedule).Info("Starting scheduler")

	_, err := s.cron.AddFunc(s.schedule, func() {
		s.runSchedule()
	})
	if err != nil {
		return fmt.Errorf("failed to add run job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSchedule()
	}()

	return nil
}

// Stop stops the scheduler, cancelling and waiting for an in-flight run
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

// runSchedule executes the run job
func (s *Scheduler) runSchedule() {
	s.logger.Info("Running scheduled actions")

	summary, err := s.runner.Run(s.ctx, s.now())
	if errors.Is(err, controllers.ErrRunInProgress) {
		s.logger.Warn("Previous run still in progress, skipping")
		return
	}
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"attempted":        summary.Attempted,
			"acted":            summary.Acted,
			"failed_action_id": summary.FailedActionID,
		}).Error("Run job failed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"attempted": summary.Attempted,
		"acted":     summary.Acted,
	}).Info("Run job completed successfully")
}
