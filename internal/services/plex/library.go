package plex

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"github.com/amaumene/plexschedule/internal/models"
	"github.com/amaumene/plexschedule/internal/utils"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const sectionsCacheKey = "sections"

// plex type filter for /library/sections/{key}/all
const plexTypeShow = "2"

type mediaContainer struct {
	MediaContainer struct {
		Size      int         `json:"size"`
		Directory []directory `json:"Directory"`
		Metadata  []metadata  `json:"Metadata"`
	} `json:"MediaContainer"`
}

type directory struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

type metadata struct {
	RatingKey        string `json:"ratingKey"`
	Title            string `json:"title"`
	Type             string `json:"type"`
	GrandparentTitle string `json:"grandparentTitle"`
	ParentIndex      int    `json:"parentIndex"`
	Index            int    `json:"index"`
	ViewCount        int    `json:"viewCount"`
}

func (m metadata) toItem() *models.MediaItem {
	item := &models.MediaItem{
		RatingKey: m.RatingKey,
		Title:     m.Title,
		Type:      models.ItemType(m.Type),
		ViewCount: m.ViewCount,
	}
	if item.Type == models.ItemTypeEpisode {
		item.ShowTitle = m.GrandparentTitle
		item.SeasonNumber = m.ParentIndex
		item.EpisodeNumber = m.Index
	}
	return item
}

// sections returns the library sections, cached
func (c *Client) sections(ctx context.Context) ([]directory, error) {
	if cached, ok := c.cache.Get(sectionsCacheKey); ok {
		return cached.([]directory), nil
	}

	var container mediaContainer
	if err := c.get(ctx, "/library/sections", nil, &container); err != nil {
		return nil, fmt.Errorf("failed to get library sections: %w", err)
	}

	dirs := container.MediaContainer.Directory
	c.cache.Set(sectionsCacheKey, dirs, cache.DefaultExpiration)
	return dirs, nil
}

// sectionKey resolves a section title to its key
func (c *Client) sectionKey(ctx context.Context, section string) (string, error) {
	dirs, err := c.sections(ctx)
	if err != nil {
		return "", err
	}

	for _, dir := range dirs {
		if utils.TitlesMatch(dir.Title, section) {
			return dir.Key, nil
		}
	}

	return "", fmt.Errorf("library section %q: %w", section, models.ErrNotFound)
}

// search lists candidate items for name, scoped to section when set
func (c *Client) search(ctx context.Context, name, section, plexType string) ([]metadata, error) {
	var container mediaContainer

	if section == "" {
		params := url.Values{}
		params.Set("query", name)
		if err := c.get(ctx, "/search", params, &container); err != nil {
			return nil, fmt.Errorf("failed to search library: %w", err)
		}
		return container.MediaContainer.Metadata, nil
	}

	key, err := c.sectionKey(ctx, section)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("title", name)
	if plexType != "" {
		params.Set("type", plexType)
	}
	if err := c.get(ctx, fmt.Sprintf("/library/sections/%s/all", key), params, &container); err != nil {
		return nil, fmt.Errorf("failed to search section %q: %w", section, err)
	}
	return container.MediaContainer.Metadata, nil
}

// findItem returns the item whose title matches name exactly (after
// normalization). itemType restricts the match when non-empty.
func (c *Client) findItem(ctx context.Context, name, section string, itemType models.ItemType) (*models.MediaItem, error) {
	plexType := ""
	if itemType == models.ItemTypeShow {
		plexType = plexTypeShow
	}

	results, err := c.search(ctx, name, section, plexType)
	if err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(results))
	for _, m := range results {
		if itemType != "" && models.ItemType(m.Type) != itemType {
			continue
		}
		if utils.TitlesMatch(m.Title, name) {
			return m.toItem(), nil
		}
		titles = append(titles, m.Title)
	}

	fields := logrus.Fields{
		"name":    name,
		"section": section,
	}
	if closest, distance := utils.ClosestTitle(name, titles); closest != "" {
		fields["closest"] = closest
		fields["distance"] = distance
	}
	c.logger.WithFields(fields).Debug("No exact title match in Plex library")

	return nil, fmt.Errorf("%q in section %q: %w", name, section, models.ErrNotFound)
}

// ResolveItem finds a library item by name. An empty section searches the
// whole library.
func (c *Client) ResolveItem(ctx context.Context, name, section string) (*models.MediaItem, error) {
	return c.findItem(ctx, name, section, "")
}

// episodes returns every episode of a show ordered by season then episode
func (c *Client) episodes(ctx context.Context, name, section string) ([]metadata, error) {
	showKey := "show:" + section + ":" + utils.NormalizeTitle(name)

	var ratingKey string
	if cached, ok := c.cache.Get(showKey); ok {
		ratingKey = cached.(string)
	} else {
		show, err := c.findItem(ctx, name, section, models.ItemTypeShow)
		if err != nil {
			return nil, err
		}
		ratingKey = show.RatingKey
		c.cache.Set(showKey, ratingKey, cache.DefaultExpiration)
	}

	var container mediaContainer
	if err := c.get(ctx, fmt.Sprintf("/library/metadata/%s/allLeaves", ratingKey), nil, &container); err != nil {
		return nil, fmt.Errorf("failed to list episodes of %q: %w", name, err)
	}

	leaves := container.MediaContainer.Metadata
	sort.SliceStable(leaves, func(i, j int) bool {
		if leaves[i].ParentIndex != leaves[j].ParentIndex {
			return leaves[i].ParentIndex < leaves[j].ParentIndex
		}
		return leaves[i].Index < leaves[j].Index
	})
	return leaves, nil
}

// ResolveEpisode returns the episode at position index of the show's
// ordered episode sequence. An out-of-range index is ErrNotFound.
func (c *Client) ResolveEpisode(ctx context.Context, name, section string, index int) (*models.MediaItem, error) {
	leaves, err := c.episodes(ctx, name, section)
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= len(leaves) {
		return nil, fmt.Errorf("episode %d of %q (%d episodes): %w", index, name, len(leaves), models.ErrNotFound)
	}
	return leaves[index].toItem(), nil
}

// IsWatched fetches the current watched state of an item
func (c *Client) IsWatched(ctx context.Context, item *models.MediaItem) (bool, error) {
	var container mediaContainer
	if err := c.get(ctx, "/library/metadata/"+item.RatingKey, nil, &container); err != nil {
		return false, fmt.Errorf("failed to get metadata for %s: %w", item, err)
	}

	if len(container.MediaContainer.Metadata) == 0 {
		return false, fmt.Errorf("metadata for %s: %w", item, models.ErrNotFound)
	}
	return container.MediaContainer.Metadata[0].ViewCount > 0, nil
}

// MarkUnwatched clears the watched state of an item. It is never retried.
func (c *Client) MarkUnwatched(ctx context.Context, item *models.MediaItem) error {
	if c.dryRun {
		c.logger.WithFields(logrus.Fields{
			"item":       item.String(),
			"rating_key": item.RatingKey,
		}).Info("Dry run: would have marked item unwatched")
		return nil
	}

	params := url.Values{}
	params.Set("key", item.RatingKey)
	params.Set("identifier", "com.plexapp.plugins.library")

	if err := c.doRequest(ctx, "GET", "/:/unscrobble", params, nil); err != nil {
		return fmt.Errorf("failed to mark %s unwatched: %w", item, err)
	}

	c.logger.WithFields(logrus.Fields{
		"item":       item.String(),
		"rating_key": item.RatingKey,
	}).Info("Marked item unwatched")
	return nil
}
