package controllers

import (
	"fmt"
	"time"

	"github.com/amaumene/plexschedule/internal/models"
	"github.com/sirupsen/logrus"
)

// SeedController creates actions, including the example schedule
type SeedController struct {
	store        SeedStore
	movieSection string
	showSection  string
	logger       *logrus.Logger
}

// NewSeedController creates a new seed controller
func NewSeedController(store SeedStore, movieSection, showSection string, logger *logrus.Logger) *SeedController {
	return &SeedController{
		store:        store,
		movieSection: movieSection,
		showSection:  showSection,
		logger:       logger,
	}
}

// SeedExamples populates an empty store with the example schedule and
// returns how many actions were inserted
func (c *SeedController) SeedExamples(today time.Time) (int, error) {
	count, err := c.store.CountActions()
	if err != nil {
		return 0, fmt.Errorf("failed to count actions: %w", err)
	}
	if count > 0 {
		c.logger.WithField("count", count).Info("Database already has actions, skipping examples")
		return 0, nil
	}

	examples := []*models.Action{
		{
			// a few days before July 4
			Kind:        models.KindAnnual,
			Name:        "Independence Day",
			Section:     c.movieSection,
			DueDate:     time.Date(2016, time.June, 30, 0, 0, 0, 0, time.UTC),
			EveryXYears: 1,
		},
		{
			// a few days before Nov 5
			Kind:        models.KindAnnual,
			Name:        "V for Vendetta",
			Section:     c.movieSection,
			DueDate:     time.Date(2016, time.November, 1, 0, 0, 0, 0, time.UTC),
			EveryXYears: 2,
		},
		{
			Kind:       models.KindSeriesDaily,
			Name:       "Plebs",
			Section:    c.showSection,
			DueDate:    models.Date(today),
			EveryXDays: 7,
		},
	}

	for _, action := range examples {
		if err := c.Add(action); err != nil {
			return 0, err
		}
	}

	c.logger.WithField("count", len(examples)).Info("Example actions created")
	return len(examples), nil
}

// Add validates and stores a single action
func (c *SeedController) Add(action *models.Action) error {
	if err := c.store.CreateAction(action); err != nil {
		return fmt.Errorf("failed to create action %q: %w", action.Name, err)
	}

	c.logger.WithFields(logrus.Fields{
		"action_id": action.ID,
		"kind":      action.Kind,
		"name":      action.Name,
		"due":       action.DueDate.Format("2006-01-02"),
	}).Info("Created action")
	return nil
}
