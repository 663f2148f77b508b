package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/amaumene/plexschedule/internal/models"
	"github.com/sirupsen/logrus"
)

const defaultActionsLimit = 50

// ActionsHandler lists pending actions, earliest due first
type ActionsHandler struct {
	store  ActionLister
	logger *logrus.Logger
}

// NewActionsHandler creates a new actions handler
func NewActionsHandler(store ActionLister, logger *logrus.Logger) *ActionsHandler {
	return &ActionsHandler{
		store:  store,
		logger: logger,
	}
}

// ActionResponse is the JSON form of an action
type ActionResponse struct {
	ID           uint64 `json:"id"`
	Kind         string `json:"kind"`
	Name         string `json:"name"`
	Section      string `json:"section,omitempty"`
	DueDate      string `json:"due_date"`
	Probability  int    `json:"probability"`
	EveryXYears  int    `json:"every_x_years,omitempty"`
	EpisodeIndex int    `json:"episode_index,omitempty"`
	EveryXDays   int    `json:"every_x_days,omitempty"`
}

func newActionResponse(a *models.Action) ActionResponse {
	resp := ActionResponse{
		ID:          a.ID,
		Kind:        string(a.Kind),
		Name:        a.Name,
		Section:     a.Section,
		DueDate:     a.DueDate.Format(time.DateOnly),
		Probability: a.Probability,
	}
	switch a.Kind {
	case models.KindAnnual:
		resp.EveryXYears = a.EveryXYears
	case models.KindSeriesDaily:
		resp.EpisodeIndex = a.EpisodeIndex
		resp.EveryXDays = a.EveryXDays
	}
	return resp
}

// ServeHTTP handles the actions endpoint
func (h *ActionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultActionsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	actions, err := h.store.GetPendingActions()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get pending actions")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if len(actions) > limit {
		actions = actions[:limit]
	}

	response := make([]ActionResponse, 0, len(actions))
	for _, a := range actions {
		response = append(response, newActionResponse(a))
	}

	writeJSON(w, http.StatusOK, response, h.logger)
}
