package mill

import (
	"sort"
	"time"
)

// Season scopes arrivals and productions to a harvest campaign.
type Season struct {
	ID        int64
	Name      string
	Year      string
	StartDate time.Time
	EndDate   time.Time
}

// Covers reports whether the season date range includes day.
func (s Season) Covers(day time.Time) bool {
	return !day.Before(s.StartDate) && !day.After(s.EndDate)
}

// CurrentSeason resolves the season used for lookups on a given day:
// the season covering the day, else the season of the same year, else the
// most recent season starting on or before the day. At most one season is
// returned even when configured ranges overlap.
func CurrentSeason(day time.Time, seasons []Season) (Season, bool) {
	for _, s := range seasons {
		if s.Covers(day) {
			return s, true
		}
	}
	year := day.Format("2006")
	for _, s := range seasons {
		if s.Year == year {
			return s, true
		}
	}
	started := make([]Season, 0, len(seasons))
	for _, s := range seasons {
		if !s.StartDate.After(day) {
			started = append(started, s)
		}
	}
	if len(started) == 0 {
		return Season{}, false
	}
	sort.Slice(started, func(i, j int) bool {
		return started[i].StartDate.After(started[j].StartDate)
	})
	return started[0], true
}
