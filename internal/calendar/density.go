package calendar

import (
	"cmp"
	"slices"
	"time"

	"github.com/hpungsan/cadence/internal/post"
)

// DateLayout is the key format of a density map.
const DateLayout = "2006-01-02"

// Conflict is a pair of events on the same platform whose intervals overlap.
type Conflict struct {
	Date          string        `json:"date"`
	Platform      post.Platform `json:"platform"`
	FirstEventID  string        `json:"first_event_id"`
	SecondEventID string        `json:"second_event_id"`
}

// Density summarizes one calendar date.
type Density struct {
	Date         string     `json:"date"`
	Count        int        `json:"count"`
	HasConflicts bool       `json:"has_conflicts"`
	Conflicts    []Conflict `json:"conflicts,omitempty"`
}

// DateKey returns the calendar date of t in loc. Nil loc means UTC.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

// ComputeDensity groups events by the local date of their start and flags
// dates holding two same-platform events whose [start, end) intervals overlap.
func ComputeDensity(events []Event, loc *time.Location) map[string]Density {
	out := make(map[string]Density)
	byDate := groupByDate(events, loc)
	for date, group := range byDate {
		conflicts := dateConflicts(date, group)
		out[date] = Density{
			Date:         date,
			Count:        len(group),
			HasConflicts: len(conflicts) > 0,
			Conflicts:    conflicts,
		}
	}
	return out
}

// Conflicts returns every conflicting pair across all dates, ordered by date,
// then platform, then the start of the pair's first event.
func Conflicts(events []Event, loc *time.Location) []Conflict {
	byDate := groupByDate(events, loc)
	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	slices.Sort(dates)

	var out []Conflict
	for _, date := range dates {
		out = append(out, dateConflicts(date, byDate[date])...)
	}
	return out
}

// SortedDates returns the keys of a density map in ascending order.
func SortedDates(m map[string]Density) []string {
	dates := make([]string, 0, len(m))
	for date := range m {
		dates = append(dates, date)
	}
	slices.Sort(dates)
	return dates
}

// MonthRange returns the inclusive UTC instant range covering the given
// calendar month in loc.
func MonthRange(year int, month time.Month, loc *time.Location) DateRange {
	if loc == nil {
		loc = time.UTC
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	next := first.AddDate(0, 1, 0)
	return DateRange{Start: first.UTC(), End: next.Add(-time.Nanosecond).UTC()}
}

func groupByDate(events []Event, loc *time.Location) map[string][]Event {
	byDate := make(map[string][]Event)
	for _, e := range events {
		date := DateKey(e.Start, loc)
		byDate[date] = append(byDate[date], e)
	}
	return byDate
}

// dateConflicts partitions one date's events by platform, sorts each
// partition by start and scans it against the events still running.
func dateConflicts(date string, events []Event) []Conflict {
	byPlatform := make(map[post.Platform][]Event)
	for _, e := range events {
		for _, p := range post.NormalizePlatforms(e.Platforms) {
			byPlatform[p] = append(byPlatform[p], e)
		}
	}

	platforms := make([]post.Platform, 0, len(byPlatform))
	for p, part := range byPlatform {
		if len(part) > 1 {
			platforms = append(platforms, p)
		}
	}
	slices.Sort(platforms)

	var out []Conflict
	for _, p := range platforms {
		part := byPlatform[p]
		slices.SortStableFunc(part, func(a, b Event) int {
			if c := a.Start.Compare(b.Start); c != 0 {
				return c
			}
			if c := a.End.Compare(b.End); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})

		var active []Event
		for _, cur := range part {
			// Everything in active started no later than cur; drop the ones
			// that ended by the time cur starts.
			kept := active[:0]
			for _, prev := range active {
				if prev.End.After(cur.Start) {
					kept = append(kept, prev)
				}
			}
			active = kept

			for _, prev := range active {
				if overlaps(prev, cur) {
					out = append(out, Conflict{
						Date:          date,
						Platform:      p,
						FirstEventID:  prev.ID,
						SecondEventID: cur.ID,
					})
				}
			}
			active = append(active, cur)
		}
	}
	return out
}

func overlaps(a, b Event) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}
