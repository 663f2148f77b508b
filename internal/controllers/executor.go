package controllers

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/amaumene/plexschedule/internal/models"
	"github.com/amaumene/plexschedule/internal/recurrence"
	"github.com/sirupsen/logrus"
)

// ErrSequence means the previous episode of a started series chain could
// not be resolved
var ErrSequence = errors.New("series sequence error")

// ExecutionResult is the outcome of evaluating one action. Item is the
// resolved library item, kept for display only.
type ExecutionResult struct {
	Acted     bool
	Item      *models.MediaItem
	Successor *models.Action
}

// variant supplies the kind-specific parts of an execution
type variant interface {
	// gate reports whether the action may proceed; an error is fatal
	gate(ctx context.Context, e *ExecutorController, action *models.Action) (bool, error)
	resolve(ctx context.Context, e *ExecutorController, action *models.Action) (*models.MediaItem, error)
	successor(ctx context.Context, e *ExecutorController, action *models.Action) (*models.Action, error)
}

func variantFor(kind models.Kind) (variant, error) {
	switch kind {
	case models.KindAnnual:
		return annualVariant{}, nil
	case models.KindSeriesDaily:
		return seriesVariant{}, nil
	}
	return nil, fmt.Errorf("unknown action kind %q", kind)
}

// ExecutorController evaluates due actions against the media server
type ExecutorController struct {
	gateway     MediaGateway
	calc        *recurrence.Calculator
	callTimeout time.Duration
	roll        func() int // 1..100
	now         func() time.Time
	logger      *logrus.Logger
}

// NewExecutorController creates a new executor
func NewExecutorController(gateway MediaGateway, calc *recurrence.Calculator, callTimeout time.Duration, logger *logrus.Logger) *ExecutorController {
	return &ExecutorController{
		gateway:     gateway,
		calc:        calc,
		callTimeout: callTimeout,
		roll:        func() int { return rand.Intn(100) + 1 },
		now:         time.Now,
		logger:      logger,
	}
}

// Execute evaluates action against today. It only mutates the action after
// the media server accepted the change; any returned error leaves it as it was.
func (e *ExecutorController) Execute(ctx context.Context, today time.Time, action *models.Action) (ExecutionResult, error) {
	log := e.logger.WithFields(logrus.Fields{
		"action_id": action.ID,
		"kind":      action.Kind,
		"name":      action.Name,
		"due":       action.DueDate.Format("2006-01-02"),
	})

	v, err := variantFor(action.Kind)
	if err != nil {
		return ExecutionResult{}, err
	}

	if action.Completed {
		log.Debug("Not acting, action already completed")
		return ExecutionResult{}, nil
	}

	if action.DueDate.After(models.Date(today)) {
		log.Debug("Not acting, action not due yet")
		return ExecutionResult{}, nil
	}

	ok, err := v.gate(ctx, e, action)
	if err != nil {
		return ExecutionResult{}, err
	}
	if !ok {
		log.Info("Not acting, previous episode not watched yet")
		return ExecutionResult{}, nil
	}

	item, err := v.resolve(ctx, e, action)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ExecutionResult{}, fmt.Errorf("timed out resolving %q: %w", action.Name, err)
		}
		if errors.Is(err, context.Canceled) {
			return ExecutionResult{}, fmt.Errorf("cancelled resolving %q: %w", action.Name, err)
		}
		if errors.Is(err, models.ErrNotFound) {
			log.WithError(err).Warn("Unable to find item in library, skipping")
		} else {
			log.WithError(err).Error("Library lookup failed, skipping")
		}
		return ExecutionResult{}, nil
	}
	log = log.WithField("item", item.String())

	if roll := e.roll(); roll > action.Probability {
		successor, err := v.successor(ctx, e, action)
		if err != nil {
			return ExecutionResult{}, err
		}
		log.WithFields(logrus.Fields{
			"roll":        roll,
			"probability": action.Probability,
		}).Info("Probability missed, completing without marking unwatched")
		action.MarkCompleted(e.now())
		return ExecutionResult{Acted: true, Successor: successor}, nil
	}

	if err := e.markUnwatched(ctx, item); err != nil {
		return ExecutionResult{}, err
	}

	successor, err := v.successor(ctx, e, action)
	if err != nil {
		return ExecutionResult{}, err
	}

	action.MarkCompleted(e.now())
	if successor != nil {
		log.WithField("next_due", successor.DueDate.Format("2006-01-02")).Info("Action completed, next occurrence scheduled")
	} else {
		log.Info("Action completed, no further occurrence")
	}

	return ExecutionResult{Acted: true, Item: item, Successor: successor}, nil
}

func (e *ExecutorController) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.callTimeout)
}

func (e *ExecutorController) resolveItem(ctx context.Context, name, section string) (*models.MediaItem, error) {
	ctx, cancel := e.callContext(ctx)
	defer cancel()
	return e.gateway.ResolveItem(ctx, name, section)
}

func (e *ExecutorController) resolveEpisode(ctx context.Context, name, section string, index int) (*models.MediaItem, error) {
	ctx, cancel := e.callContext(ctx)
	defer cancel()
	return e.gateway.ResolveEpisode(ctx, name, section, index)
}

func (e *ExecutorController) isWatched(ctx context.Context, item *models.MediaItem) (bool, error) {
	ctx, cancel := e.callContext(ctx)
	defer cancel()
	return e.gateway.IsWatched(ctx, item)
}

func (e *ExecutorController) markUnwatched(ctx context.Context, item *models.MediaItem) error {
	ctx, cancel := e.callContext(ctx)
	defer cancel()
	if err := e.gateway.MarkUnwatched(ctx, item); err != nil {
		return fmt.Errorf("unable to mark %s unwatched: %w", item, err)
	}
	return nil
}

// annualVariant marks a named item unwatched every EveryXYears years
type annualVariant struct{}

func (annualVariant) gate(context.Context, *ExecutorController, *models.Action) (bool, error) {
	return true, nil
}

func (annualVariant) resolve(ctx context.Context, e *ExecutorController, action *models.Action) (*models.MediaItem, error) {
	return e.resolveItem(ctx, action.Name, action.Section)
}

func (annualVariant) successor(_ context.Context, e *ExecutorController, action *models.Action) (*models.Action, error) {
	next, err := e.calc.AddYears(action.DueDate, action.EveryXYears, true)
	if err != nil {
		return nil, err
	}

	return &models.Action{
		Kind:        models.KindAnnual,
		Name:        action.Name,
		Section:     action.Section,
		DueDate:     next,
		Probability: action.Probability,
		EveryXYears: action.EveryXYears,
	}, nil
}

// seriesVariant walks a show's episodes one at a time, every EveryXDays
// days, waiting for the viewer to watch the previous episode
type seriesVariant struct{}

func (seriesVariant) gate(ctx context.Context, e *ExecutorController, action *models.Action) (bool, error) {
	if action.EpisodeIndex == 0 {
		return true, nil
	}

	prev, err := e.resolveEpisode(ctx, action.Name, action.Section, action.EpisodeIndex-1)
	if err != nil {
		return false, fmt.Errorf("%w: previous episode %d of %q: %w", ErrSequence, action.EpisodeIndex-1, action.Name, err)
	}

	watched, err := e.isWatched(ctx, prev)
	if err != nil {
		return false, fmt.Errorf("failed to check watched state of %s: %w", prev, err)
	}
	return watched, nil
}

func (seriesVariant) resolve(ctx context.Context, e *ExecutorController, action *models.Action) (*models.MediaItem, error) {
	return e.resolveEpisode(ctx, action.Name, action.Section, action.EpisodeIndex)
}

func (seriesVariant) successor(ctx context.Context, e *ExecutorController, action *models.Action) (*models.Action, error) {
	nextIndex := action.EpisodeIndex + 1

	if _, err := e.resolveEpisode(ctx, action.Name, action.Section, nextIndex); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve episode %d of %q: %w", nextIndex, action.Name, err)
	}

	return &models.Action{
		Kind:         models.KindSeriesDaily,
		Name:         action.Name,
		Section:      action.Section,
		DueDate:      e.calc.AddDays(action.DueDate, action.EveryXDays),
		Probability:  action.Probability,
		EpisodeIndex: nextIndex,
		EveryXDays:   action.EveryXDays,
	}, nil
}
