package handlers

import (
	"net/http"
	"time"

	"github.com/amaumene/plexschedule/internal/models"
	"github.com/sirupsen/logrus"
)

// ActionLister reads stored actions
type ActionLister interface {
	GetAllActions() ([]*models.Action, error)
	GetPendingActions() ([]*models.Action, error)
}

// StatusHandler handles status requests
type StatusHandler struct {
	store  ActionLister
	logger *logrus.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(store ActionLister, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		store:  store,
		logger: logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	TotalActions  int            `json:"total_actions"`
	Pending       int            `json:"pending"`
	Completed     int            `json:"completed"`
	PendingByKind map[string]int `json:"pending_by_kind"`
	NextDue       *time.Time     `json:"next_due,omitempty"`
}

// ServeHTTP handles the status endpoint
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	actions, err := h.store.GetAllActions()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get actions")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := StatusResponse{
		TotalActions:  len(actions),
		PendingByKind: make(map[string]int),
	}

	for _, action := range actions {
		if action.Completed {
			response.Completed++
			continue
		}

		response.Pending++
		response.PendingByKind[string(action.Kind)]++

		if response.NextDue == nil || action.DueDate.Before(*response.NextDue) {
			due := action.DueDate
			response.NextDue = &due
		}
	}

	writeJSON(w, http.StatusOK, response, h.logger)
}
