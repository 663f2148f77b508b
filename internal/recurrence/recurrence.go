package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// DefaultMaxLeapSearch bounds how many extra years AddYears will try when
// looking for the next February 29. Leap years are never more than 8 years apart.
const DefaultMaxLeapSearch = 8

// ErrRecurrenceOverflow is returned when no leap year is found within the search bound
var ErrRecurrenceOverflow = errors.New("recurrence overflow: no leap year within search bound")

// Calculator advances calendar dates
type Calculator struct {
	MaxLeapSearch int
}

// NewCalculator creates a calculator with the given leap-day search bound.
// A non-positive bound falls back to DefaultMaxLeapSearch.
func NewCalculator(maxLeapSearch int) *Calculator {
	if maxLeapSearch <= 0 {
		maxLeapSearch = DefaultMaxLeapSearch
	}
	return &Calculator{MaxLeapSearch: maxLeapSearch}
}

// AddDays returns d advanced by n calendar days
func (c *Calculator) AddDays(d time.Time, n int) time.Time {
	return d.AddDate(0, 0, n)
}

// AddYears returns the same month and day n years after d.
//
// When that date does not exist (February 29 into a non-leap year) and
// keepLeapDay is set, the year keeps advancing until a leap year is found.
// Otherwise the result is the day after the missing date, March 1.
func (c *Calculator) AddYears(d time.Time, n int, keepLeapDay bool) (time.Time, error) {
	for extra := 0; extra <= c.MaxLeapSearch; extra++ {
		target := d.Year() + n + extra
		next := time.Date(target, d.Month(), d.Day(), d.Hour(), d.Minute(), d.Second(), d.Nanosecond(), d.Location())
		if next.Month() == d.Month() {
			return next, nil
		}

		if !keepLeapDay {
			offset := time.Date(target, time.January, 1, 0, 0, 0, 0, d.Location()).
				Sub(time.Date(d.Year(), time.January, 1, 0, 0, 0, 0, d.Location()))
			return d.AddDate(0, 0, int(offset.Hours()/24)), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %s + %d years (searched %d)", ErrRecurrenceOverflow, d.Format("2006-01-02"), n, c.MaxLeapSearch)
}

var defaultCalculator = NewCalculator(DefaultMaxLeapSearch)

// AddDays advances d by n days using the default calculator
func AddDays(d time.Time, n int) time.Time {
	return defaultCalculator.AddDays(d, n)
}

// AddYears advances d by n years using the default calculator
func AddYears(d time.Time, n int, keepLeapDay bool) (time.Time, error) {
	return defaultCalculator.AddYears(d, n, keepLeapDay)
}
