package controllers

import (
	"context"
	"time"

	"github.com/amaumene/plexschedule/internal/models"
)

// MediaGateway is the media server capability the executor needs.
// Missing items and episodes are reported as models.ErrNotFound.
type MediaGateway interface {
	ResolveItem(ctx context.Context, name, section string) (*models.MediaItem, error)
	ResolveEpisode(ctx context.Context, name, section string, index int) (*models.MediaItem, error)
	IsWatched(ctx context.Context, item *models.MediaItem) (bool, error)
	MarkUnwatched(ctx context.Context, item *models.MediaItem) error
}

// ActionStore is the persistence the runner needs. SaveExecution writes the
// action and its successor as one unit.
type ActionStore interface {
	GetDueActions(today time.Time) ([]*models.Action, error)
	GetUpcomingActions(kind models.Kind, limit int) ([]*models.Action, error)
	SaveExecution(action *models.Action, successor *models.Action) error
}

// SeedStore is the persistence the seeder needs
type SeedStore interface {
	CountActions() (int, error)
	CreateAction(action *models.Action) error
}
