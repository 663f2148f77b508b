package controllers

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/amaumene/plexschedule/internal/models"
	"github.com/amaumene/plexschedule/internal/recurrence"
	"github.com/amaumene/plexschedule/internal/utils"
	"github.com/sirupsen/logrus"
)

// fakeGateway is an in-memory media server
type fakeGateway struct {
	items    map[string]*models.MediaItem   // by name
	episodes map[string][]*models.MediaItem // by show name
	watched  map[string]bool                // by rating key

	lookupErr error            // returned by every resolve call when set
	markErr   map[string]error // by rating key
	marked    []string
	sections  []string

	sawDeadline bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		items:    make(map[string]*models.MediaItem),
		episodes: make(map[string][]*models.MediaItem),
		watched:  make(map[string]bool),
		markErr:  make(map[string]error),
	}
}

func (g *fakeGateway) addMovie(name, key string) {
	g.items[name] = &models.MediaItem{RatingKey: key, Title: name, Type: models.ItemTypeMovie}
}

func (g *fakeGateway) addShow(name string, count int) {
	for i := 0; i < count; i++ {
		g.episodes[name] = append(g.episodes[name], &models.MediaItem{
			RatingKey:     fmt.Sprintf("%s-%d", name, i),
			Title:         fmt.Sprintf("Episode %d", i+1),
			Type:          models.ItemTypeEpisode,
			ShowTitle:     name,
			SeasonNumber:  1,
			EpisodeNumber: i + 1,
		})
	}
}

func (g *fakeGateway) ResolveItem(ctx context.Context, name, section string) (*models.MediaItem, error) {
	g.checkDeadline(ctx)
	g.sections = append(g.sections, section)
	if g.lookupErr != nil {
		return nil, g.lookupErr
	}
	item, ok := g.items[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, models.ErrNotFound)
	}
	return item, nil
}

func (g *fakeGateway) ResolveEpisode(ctx context.Context, name, section string, index int) (*models.MediaItem, error) {
	g.checkDeadline(ctx)
	g.sections = append(g.sections, section)
	if g.lookupErr != nil {
		return nil, g.lookupErr
	}
	eps := g.episodes[name]
	if index < 0 || index >= len(eps) {
		return nil, fmt.Errorf("episode %d of %q: %w", index, name, models.ErrNotFound)
	}
	return eps[index], nil
}

func (g *fakeGateway) IsWatched(ctx context.Context, item *models.MediaItem) (bool, error) {
	g.checkDeadline(ctx)
	return g.watched[item.RatingKey], nil
}

func (g *fakeGateway) MarkUnwatched(ctx context.Context, item *models.MediaItem) error {
	g.checkDeadline(ctx)
	if err := g.markErr[item.RatingKey]; err != nil {
		return err
	}
	g.marked = append(g.marked, item.RatingKey)
	g.watched[item.RatingKey] = false
	return nil
}

func (g *fakeGateway) checkDeadline(ctx context.Context) {
	if _, ok := ctx.Deadline(); ok {
		g.sawDeadline = true
	}
}

func testLogger() *logrus.Logger {
	return utils.NewLoggerWithOutput("debug", io.Discard)
}

func newTestExecutor(gw MediaGateway) *ExecutorController {
	e := NewExecutorController(gw, recurrence.NewCalculator(recurrence.DefaultMaxLeapSearch), 5*time.Second, testLogger())
	e.roll = func() int { return 1 }
	return e
}

func newTestDB(t *testing.T) *models.Database {
	t.Helper()

	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "plexschedule.db"))
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
