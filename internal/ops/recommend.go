package ops

import (
	"context"
	"fmt"
	"time"

	"github.com/hpungsan/cadence/internal/calendar"
	"github.com/hpungsan/cadence/internal/errors"
	"github.com/hpungsan/cadence/internal/post"
	"github.com/hpungsan/cadence/internal/recommend"
)

// DefaultWindowSpan is how far ahead UpcomingWindows looks when no end is
// given.
const DefaultWindowSpan = 7 * 24 * time.Hour

// GetBestTime returns the best recommendation for platform, optionally on
// day. A nil result with a nil error means no recommendation is available.
func (c *Coordinator) GetBestTime(ctx context.Context, req Request, platform post.Platform, day *time.Weekday) (*recommend.Recommendation, error) {
	platform, err := checkPlatformDay(platform, day)
	if err != nil {
		return nil, err
	}
	recs, err := c.store.Recommendations(ctx, req.Credentials, platform)
	if err != nil {
		return nil, readErr(err)
	}
	return recommend.Best(recs, platform, day), nil
}

// RankBestTimes returns up to limit recommendations for platform (and day),
// best first. A limit of zero or less returns all.
func (c *Coordinator) RankBestTimes(ctx context.Context, req Request, platform post.Platform, day *time.Weekday, limit int) ([]recommend.Recommendation, error) {
	platform, err := checkPlatformDay(platform, day)
	if err != nil {
		return nil, err
	}
	recs, err := c.store.Recommendations(ctx, req.Credentials, platform)
	if err != nil {
		return nil, readErr(err)
	}
	return recommend.Rank(recs, platform, day, limit), nil
}

// ImportRecommendations hands externally computed recommendations to the
// store after validating every row.
func (c *Coordinator) ImportRecommendations(ctx context.Context, req Request, recs []recommend.Recommendation) (int, error) {
	if len(recs) == 0 {
		return 0, errors.NewInvalidRequest("no recommendations to import")
	}
	clean := make([]recommend.Recommendation, len(recs))
	copy(clean, recs)
	for i := range clean {
		if err := clean[i].Validate(); err != nil {
			if cErr, ok := errors.As(err); ok {
				cErr.Details["index"] = i
			}
			return 0, err
		}
	}
	return c.store.ImportRecommendations(ctx, req.Credentials, clean)
}

// UpcomingWindows expands the active time slots of platform (all when
// empty) into concrete windows between from and until. A zero from means
// now; a zero until means from plus DefaultWindowSpan.
func (c *Coordinator) UpcomingWindows(ctx context.Context, req Request, platform post.Platform, from, until time.Time) ([]recommend.Window, error) {
	if from.IsZero() {
		from = c.opts.Now()
	}
	if until.IsZero() {
		until = from.Add(DefaultWindowSpan)
	}
	if until.Before(from) {
		return nil, errors.NewValidation("until", "until is before from")
	}
	platform = post.NormalizePlatform(platform)
	slots, err := c.store.TimeSlots(ctx, req.Credentials, platform)
	if err != nil {
		return nil, readErr(err)
	}
	windows, err := recommend.UpcomingWindows(slots, platform, from, until, c.opts.Location)
	if err != nil {
		return nil, err
	}
	if windows == nil {
		windows = []recommend.Window{}
	}
	return windows, nil
}

// TimeSlots lists the time slots of platform, all when empty.
func (c *Coordinator) TimeSlots(ctx context.Context, req Request, platform post.Platform) ([]recommend.TimeSlot, error) {
	slots, err := c.store.TimeSlots(ctx, req.Credentials, post.NormalizePlatform(platform))
	if err != nil {
		return nil, readErr(err)
	}
	return slots, nil
}

// SaveTimeSlot validates and stores a slot. Slots do not feed the event
// cache, so nothing is invalidated.
func (c *Coordinator) SaveTimeSlot(ctx context.Context, req Request, slot recommend.TimeSlot) (*recommend.TimeSlot, error) {
	if err := slot.Validate(); err != nil {
		return nil, err
	}
	return c.store.SaveTimeSlot(ctx, req.Credentials, slot)
}

// SetTimeSlotActive toggles a slot.
func (c *Coordinator) SetTimeSlotActive(ctx context.Context, req Request, id string, active bool) (*recommend.TimeSlot, error) {
	id, err := requireID(id)
	if err != nil {
		return nil, err
	}
	return c.store.SetTimeSlotActive(ctx, req.Credentials, id, active)
}

// ExportICS renders the events matching filter as an iCalendar document.
func (c *Coordinator) ExportICS(ctx context.Context, req Request, filter calendar.Filter, name string) (string, *EventsResult, error) {
	res, err := c.GetEvents(ctx, req, filter)
	if err != nil {
		return "", nil, err
	}
	if name == "" {
		name = "Cadence"
	}
	return calendar.ExportICS(res.Events, name, c.opts.Now()), res, nil
}

// readErr reports a transport failure on a read that has no snapshot to
// fall back to as UNAVAILABLE. Other errors pass through.
func readErr(err error) error {
	if errors.Is(err, errors.ErrTransport) {
		return errors.NewUnavailable(err)
	}
	return err
}

func checkPlatformDay(platform post.Platform, day *time.Weekday) (post.Platform, error) {
	platform = post.NormalizePlatform(platform)
	if platform == "" {
		return "", errors.NewValidation("platform", "platform is required")
	}
	if day != nil && (*day < time.Sunday || *day > time.Saturday) {
		return "", errors.NewValidation("day_of_week", fmt.Sprintf("day_of_week must be 0-6 (got %d)", *day))
	}
	return platform, nil
}
