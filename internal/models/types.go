package models

import "errors"

// Kind selects the recurrence behavior of an action
type Kind string

const (
	KindAnnual      Kind = "mark_unwatched_annually"
	KindSeriesDaily Kind = "mark_series_unwatched_daily"
)

// Valid reports whether k is one of the known kinds
func (k Kind) Valid() bool {
	switch k {
	case KindAnnual, KindSeriesDaily:
		return true
	}
	return false
}

// ItemType is the Plex metadata type of a library item
type ItemType string

const (
	ItemTypeMovie   ItemType = "movie"
	ItemTypeShow    ItemType = "show"
	ItemTypeEpisode ItemType = "episode"
)

// ErrNotFound is returned when an item or episode is absent from the library
var ErrNotFound = errors.New("not found")

// Defaults applied to zero-valued action fields
const (
	DefaultEveryXYears = 1
	DefaultEveryXDays  = 7
	DefaultProbability = 100
)
