package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/amaumene/plexschedule/internal/controllers"
	"github.com/sirupsen/logrus"
)

// Runner executes one schedule run
type Runner interface {
	Run(ctx context.Context, today time.Time) (controllers.Summary, error)
}

// RunHandler triggers a schedule run on demand
type RunHandler struct {
	runner Runner
	now    func() time.Time
	logger *logrus.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(runner Runner, logger *logrus.Logger) *RunHandler {
	return &RunHandler{
		runner: runner,
		now:    time.Now,
		logger: logger,
	}
}

// RunResponse reports the outcome of a triggered run
type RunResponse struct {
	controllers.Summary
	Error string `json:"error,omitempty"`
}

// ServeHTTP handles the run trigger endpoint
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// A disconnecting client must not abort the run partway
	summary, err := h.runner.Run(context.WithoutCancel(r.Context()), h.now())
	if errors.Is(err, controllers.ErrRunInProgress) {
		http.Error(w, "Run already in progress", http.StatusConflict)
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Triggered run failed")
		writeJSON(w, http.StatusBadGateway, RunResponse{Summary: summary, Error: err.Error()}, h.logger)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"attempted": summary.Attempted,
		"acted":     summary.Acted,
	}).Info("Triggered run completed")

	writeJSON(w, http.StatusOK, RunResponse{Summary: summary}, h.logger)
}
