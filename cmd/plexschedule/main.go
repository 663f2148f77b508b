package main

import (
	"fmt"
	"os"
	"time"

	"github.com/amaumene/plexschedule/internal/config"
	"github.com/amaumene/plexschedule/internal/controllers"
	"github.com/amaumene/plexschedule/internal/metrics"
	"github.com/amaumene/plexschedule/internal/models"
	"github.com/amaumene/plexschedule/internal/recurrence"
	"github.com/amaumene/plexschedule/internal/services/plex"
	"github.com/amaumene/plexschedule/internal/utils"
	"github.com/sirupsen/logrus"
)

var nowFunc = time.Now

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the components shared by every command
type app struct {
	cfg     *config.Config
	logger  *logrus.Logger
	db      *models.Database
	metrics *metrics.Metrics
}

// newApp loads configuration, sets up logging and opens the database
func newApp(dryRun bool) (*app, error) {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if dryRun {
		cfg.DryRun = true
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel)
	logger.WithField("config_dir", cfg.ConfigDir).Debug("Configuration loaded")

	// 3. Initialize database
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.WithField("path", cfg.DatabaseFile).Debug("Database initialized")

	return &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		metrics: metrics.New(),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func (a *app) seeder() *controllers.SeedController {
	return controllers.NewSeedController(a.db, a.cfg.DefaultMovieSection, a.cfg.DefaultShowSection, a.logger)
}

// runner connects to Plex and builds the schedule runner
func (a *app) runner() (*controllers.RunnerController, error) {
	plexClient, err := plex.NewClient(a.cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Plex client: %w", err)
	}
	a.logger.WithFields(logrus.Fields{
		"url":     a.cfg.PlexBaseURL,
		"dry_run": a.cfg.DryRun,
	}).Info("Plex client initialized")

	calc := recurrence.NewCalculator(a.cfg.LeapDayMaxSearch)
	executor := controllers.NewExecutorController(plexClient, calc, a.cfg.CallTimeout, a.logger)
	return controllers.NewRunnerController(a.db, executor, a.cfg.LookaheadLimit, a.metrics, a.logger), nil
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return models.Date(nowFunc()), nil
	}
	d, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", value, err)
	}
	return d, nil
}
