package controllers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amaumene/plexschedule/internal/metrics"
	"github.com/amaumene/plexschedule/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrRunInProgress is returned when a run is triggered while another is active
var ErrRunInProgress = errors.New("a schedule run is already in progress")

// Summary reports what a run did
type Summary struct {
	Attempted      int    `json:"attempted"`
	Acted          int    `json:"acted"`
	FailedActionID uint64 `json:"failed_action_id,omitempty"`
}

// Failed reports whether the run halted on an action
func (s Summary) Failed() bool {
	return s.FailedActionID != 0
}

// RunnerController selects due actions and executes them one at a time,
// committing each action with its successor before moving to the next
type RunnerController struct {
	store     ActionStore
	executor  *ExecutorController
	lookahead int
	metrics   *metrics.Metrics
	mu        sync.Mutex
	logger    *logrus.Logger
}

// NewRunnerController creates a new runner
func NewRunnerController(store ActionStore, executor *ExecutorController, lookahead int, m *metrics.Metrics, logger *logrus.Logger) *RunnerController {
	return &RunnerController{
		store:     store,
		executor:  executor,
		lookahead: lookahead,
		metrics:   m,
		logger:    logger,
	}
}

// Run executes every action due on today. The first failing action halts
// the run; actions committed before it stay committed.
func (c *RunnerController) Run(ctx context.Context, today time.Time) (Summary, error) {
	if !c.mu.TryLock() {
		return Summary{}, ErrRunInProgress
	}
	defer c.mu.Unlock()

	start := time.Now()
	summary, err := c.run(ctx, models.Date(today))
	if c.metrics != nil {
		c.metrics.ObserveRun(summary.Attempted, summary.Acted, time.Since(start), err)
	}
	return summary, err
}

func (c *RunnerController) run(ctx context.Context, today time.Time) (Summary, error) {
	var summary Summary

	actions, err := c.selectActions(today)
	if err != nil {
		return summary, err
	}
	if len(actions) == 0 {
		c.logger.Info("Still no actions to take")
		return summary, nil
	}

	c.logger.WithField("count", len(actions)).Info("Found actions to check")

	for _, action := range actions {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("run cancelled: %w", err)
		}

		summary.Attempted++
		result, err := c.executor.Execute(ctx, today, action)
		if err != nil {
			summary.FailedActionID = action.ID
			c.logger.WithError(err).WithFields(logrus.Fields{
				"action_id": action.ID,
				"name":      action.Name,
			}).Error("Action failed, discarding its changes and halting run")
			return summary, fmt.Errorf("action %d (%s) failed: %w", action.ID, action.Name, err)
		}

		if !result.Acted {
			continue
		}

		if err := c.store.SaveExecution(action, result.Successor); err != nil {
			summary.FailedActionID = action.ID
			return summary, fmt.Errorf("failed to save action %d (%s): %w", action.ID, action.Name, err)
		}
		summary.Acted++

		c.logger.WithFields(logrus.Fields{
			"action_id": action.ID,
			"name":      action.Name,
		}).Debug("Action saved")
	}

	c.logger.WithFields(logrus.Fields{
		"acted":     summary.Acted,
		"attempted": summary.Attempted,
	}).Info("Completed schedule run")

	return summary, nil
}

// selectActions returns due actions, or when none are due, the next few
// series actions regardless of date
func (c *RunnerController) selectActions(today time.Time) ([]*models.Action, error) {
	actions, err := c.store.GetDueActions(today)
	if err != nil {
		return nil, fmt.Errorf("failed to get due actions: %w", err)
	}
	if len(actions) > 0 {
		return actions, nil
	}

	c.logger.Info("No actions due, checking for future series actions")

	actions, err = c.store.GetUpcomingActions(models.KindSeriesDaily, c.lookahead)
	if err != nil {
		return nil, fmt.Errorf("failed to get upcoming actions: %w", err)
	}
	return actions, nil
}
