package recommend

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/hpungsan/cadence/internal/errors"
	"github.com/hpungsan/cadence/internal/post"
)

// TimeSlot is a user-configured weekly posting window.
type TimeSlot struct {
	ID        string        `json:"id"`
	Platform  post.Platform `json:"platform"`
	DayOfWeek time.Weekday  `json:"day_of_week"`
	StartTime string        `json:"start_time"` // HH:MM
	EndTime   string        `json:"end_time"`   // HH:MM, after StartTime
	IsActive  bool          `json:"is_active"`
}

// Validate normalizes s in place and checks it.
func (s *TimeSlot) Validate() error {
	s.ID = strings.TrimSpace(s.ID)
	if s.ID == "" {
		return errors.NewValidation("id", "slot id is required")
	}
	s.Platform = post.NormalizePlatform(s.Platform)
	if !post.IsKnownPlatform(s.Platform) {
		return errors.NewValidation("platform", fmt.Sprintf("unknown platform %q", s.Platform))
	}
	if s.DayOfWeek < time.Sunday || s.DayOfWeek > time.Saturday {
		return errors.NewValidation("day_of_week", fmt.Sprintf("day_of_week must be 0-6 (got %d)", s.DayOfWeek))
	}
	start, err := ParseClock(s.StartTime)
	if err != nil {
		return errors.NewValidation("start_time", err.Error())
	}
	end, err := ParseClock(s.EndTime)
	if err != nil {
		return errors.NewValidation("end_time", err.Error())
	}
	if end <= start {
		return errors.NewValidation("end_time", "end_time must be after start_time")
	}
	s.StartTime, s.EndTime = start.String(), end.String()
	return nil
}

// Window is one concrete occurrence of a time slot.
type Window struct {
	SlotID   string        `json:"slot_id"`
	Platform post.Platform `json:"platform"`
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
}

var rruleDays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// UpcomingWindows expands the active slots for platform (all platforms when
// empty) into the windows that are still open at or after from and start no
// later than until. Slot times are wall-clock times in loc. Windows are
// ordered by start, then slot id.
func UpcomingWindows(slots []TimeSlot, platform post.Platform, from, until time.Time, loc *time.Location) ([]Window, error) {
	if until.Before(from) {
		return nil, errors.NewValidation("until", "until is before from")
	}
	if loc == nil {
		loc = time.UTC
	}
	platform = post.NormalizePlatform(platform)

	var out []Window
	for _, s := range slots {
		if !s.IsActive {
			continue
		}
		if platform != "" && post.NormalizePlatform(s.Platform) != platform {
			continue
		}
		windows, err := expandSlot(s, from, until, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, windows...)
	}

	slices.SortFunc(out, func(a, b Window) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.SlotID, b.SlotID)
	})
	return out, nil
}

func expandSlot(s TimeSlot, from, until time.Time, loc *time.Location) ([]Window, error) {
	start, err := ParseClock(s.StartTime)
	if err != nil {
		return nil, errors.NewValidation("start_time", err.Error())
	}
	end, err := ParseClock(s.EndTime)
	if err != nil {
		return nil, errors.NewValidation("end_time", err.Error())
	}
	day, ok := rruleDays[s.DayOfWeek]
	if !ok {
		return nil, errors.NewValidation("day_of_week", fmt.Sprintf("day_of_week must be 0-6 (got %d)", s.DayOfWeek))
	}
	length := time.Duration(end-start) * time.Minute

	// Anchor a week early so a window already running at from is found.
	local := from.In(loc)
	anchor := time.Date(local.Year(), local.Month(), local.Day()-7, start.Hour(), start.Minute(), 0, 0, loc)

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   anchor,
		Byweekday: []rrule.Weekday{day},
	})
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	var out []Window
	for _, occ := range rule.Between(from.Add(-length), until, true) {
		w := Window{
			SlotID:   s.ID,
			Platform: post.NormalizePlatform(s.Platform),
			Start:    occ.UTC(),
			End:      occ.Add(length).UTC(),
		}
		if !w.End.After(from) || w.Start.After(until) {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}
