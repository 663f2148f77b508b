package models

import (
	"fmt"
	"time"
)

// Action is a scheduled "mark unwatched" task. Successive occurrences are
// separate records; DueDate is never rewritten once stored.
type Action struct {
	ID   uint64 `boltholdKey:"ID"`
	Kind Kind   `boltholdIndex:"Kind"`

	Name    string
	Section string // empty searches the whole library

	DueDate   time.Time
	Completed bool `boltholdIndex:"Completed"`

	// Percent chance that a due action actually marks the item unwatched
	Probability int

	// Annual
	EveryXYears int

	// Series daily/weekly
	EpisodeIndex int
	EveryXDays   int

	// Metadata
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// MediaItem is a library item resolved from the media server
type MediaItem struct {
	RatingKey string
	Title     string
	Type      ItemType

	// Episodes only
	ShowTitle     string
	SeasonNumber  int
	EpisodeNumber int

	ViewCount int
}

func (m *MediaItem) String() string {
	if m.Type == ItemTypeEpisode {
		return fmt.Sprintf("%s S%02dE%02d %s", m.ShowTitle, m.SeasonNumber, m.EpisodeNumber, m.Title)
	}
	return m.Title
}

// Date truncates t to its calendar date at UTC midnight
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsDue reports whether the action may run on today
func (a *Action) IsDue(today time.Time) bool {
	return !a.Completed && !a.DueDate.After(Date(today))
}

// MarkCompleted flips the action to its terminal state
func (a *Action) MarkCompleted(at time.Time) {
	a.Completed = true
	a.CompletedAt = &at
}

// ApplyDefaults fills zero-valued optional fields
func (a *Action) ApplyDefaults() {
	if a.Probability == 0 {
		a.Probability = DefaultProbability
	}
	switch a.Kind {
	case KindAnnual:
		if a.EveryXYears == 0 {
			a.EveryXYears = DefaultEveryXYears
		}
	case KindSeriesDaily:
		if a.EveryXDays == 0 {
			a.EveryXDays = DefaultEveryXDays
		}
	}
	a.DueDate = Date(a.DueDate)
}

// Validate checks the action before it is stored
func (a *Action) Validate() error {
	if !a.Kind.Valid() {
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
	if a.Name == "" {
		return fmt.Errorf("action name is required")
	}
	if a.DueDate.IsZero() {
		return fmt.Errorf("action due date is required")
	}
	if a.Probability < 1 || a.Probability > 100 {
		return fmt.Errorf("probability must be between 1 and 100, got %d", a.Probability)
	}

	switch a.Kind {
	case KindAnnual:
		if a.EveryXYears < 1 {
			return fmt.Errorf("every_x_years must be positive, got %d", a.EveryXYears)
		}
	case KindSeriesDaily:
		if a.EveryXDays < 1 {
			return fmt.Errorf("every_x_days must be positive, got %d", a.EveryXDays)
		}
		if a.EpisodeIndex < 0 {
			return fmt.Errorf("episode_index must not be negative, got %d", a.EpisodeIndex)
		}
	}

	return nil
}

func (a *Action) String() string {
	if a.Kind == KindSeriesDaily {
		return fmt.Sprintf("%s #%d (due %s)", a.Name, a.EpisodeIndex, a.DueDate.Format("2006-01-02"))
	}
	return fmt.Sprintf("%s (due %s)", a.Name, a.DueDate.Format("2006-01-02"))
}
