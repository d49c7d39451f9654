package ops

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/hpungsan/cadence/internal/cache"
	"github.com/hpungsan/cadence/internal/calendar"
	"github.com/hpungsan/cadence/internal/errors"
	"github.com/hpungsan/cadence/internal/observe"
)

// EventsResult is the outcome of GetEvents.
type EventsResult struct {
	Events     []calendar.Event `json:"events"`
	Source     Source           `json:"source"`
	FetchedAt  time.Time        `json:"fetched_at"`
	Generation uint64           `json:"generation,omitempty"`

	// Err is the transport failure behind a degraded result.
	Err error `json:"-"`
}

// DensityResult is the outcome of GetDensity.
type DensityResult struct {
	Year      int                         `json:"year"`
	Month     time.Month                  `json:"month"`
	Days      map[string]calendar.Density `json:"days"`
	Source    Source                      `json:"source"`
	FetchedAt time.Time                   `json:"fetched_at"`
	Err       error                       `json:"-"`
}

// GetEvents returns the events matching filter. A cached result is served
// when present; otherwise posts are fetched, projected and filtered. When the
// store is unreachable the last-known-good snapshot for the filter is served
// with Source degraded; with no snapshot the error is UNAVAILABLE.
func (c *Coordinator) GetEvents(ctx context.Context, req Request, filter calendar.Filter) (*EventsResult, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	f := filter.Normalized()
	key := f.Key()

	if e, ok := c.lookup(key); ok {
		return eventsResult(e, SourceCache), nil
	}
	e, res, err := c.fetch(ctx, req, f, key, "get_events", true)
	if err != nil {
		return nil, err
	}
	if res != nil {
		return res, nil
	}
	return eventsResult(e, SourceLive), nil
}

// GetDensity returns per-date density for a calendar month in the display
// timezone, over the events that match filter. A filter date range narrows
// the month; a range that misses the month yields no dates.
func (c *Coordinator) GetDensity(ctx context.Context, req Request, year int, month time.Month, filter calendar.Filter) (*DensityResult, error) {
	if month < time.January || month > time.December {
		return nil, errors.NewValidation("month", fmt.Sprintf("month must be 1-12 (got %d)", month))
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	span := calendar.MonthRange(year, month, c.opts.Location)
	if r := filter.DateRange; r != nil {
		if !r.Start.IsZero() && r.Start.After(span.Start) {
			span.Start = r.Start
		}
		if !r.End.IsZero() && r.End.Before(span.End) {
			span.End = r.End
		}
	}
	out := &DensityResult{Year: year, Month: month, Days: map[string]calendar.Density{}}
	if span.End.Before(span.Start) {
		out.Source = SourceLive
		out.FetchedAt = c.opts.Now().UTC()
		return out, nil
	}
	filter.DateRange = &span

	f := filter.Normalized()
	key := f.Key()

	e, ok := c.lookup(key)
	source := SourceCache
	if !ok {
		var res *EventsResult
		var err error
		e, res, err = c.fetch(ctx, req, f, key, "get_density", true)
		if err != nil {
			return nil, err
		}
		if res != nil {
			// Degraded results are not cached; compute density off the side.
			out.Days = calendar.ComputeDensity(res.Events, c.opts.Location)
			out.Source, out.FetchedAt, out.Err = res.Source, res.FetchedAt, res.Err
			return out, nil
		}
		source = SourceLive
	}

	out.Days = c.densityOf(e)
	out.Source = source
	out.FetchedAt = e.fetchedAt
	return out, nil
}

// Refresh drops every cached result and refetches the filters that were
// cached. Callers use it to recover after a CONSISTENCY error.
func (c *Coordinator) Refresh(ctx context.Context, req Request) error {
	return c.invalidateAndRefresh(ctx, req, "refresh")
}

// lookup returns a live cache entry for key.
func (c *Coordinator) lookup(key string) (*entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.opts.MaxAge > 0 && c.opts.Now().Sub(e.fetchedAt) > c.opts.MaxAge {
		delete(c.entries, key)
		return nil, false
	}
	return e, true
}

// fetch runs one read cycle for f. It returns either the stored entry or,
// for a degraded read, a ready result that was not cached.
//
// Each attempt takes a fresh generation. A completed fetch is stored only if
// no invalidation happened while it was in flight and no newer generation is
// already stored; a fetch superseded by a newer stored result returns that
// result instead of its own.
func (c *Coordinator) fetch(ctx context.Context, req Request, f calendar.Filter, key, op string, allowDegraded bool) (*entry, *EventsResult, error) {
	var lastErr error
	for attempt := 0; attempt < maxReadAttempts; attempt++ {
		c.mu.Lock()
		c.lastGen++
		gen, epoch := c.lastGen, c.epoch
		c.mu.Unlock()

		started := c.opts.Now()
		posts, err := c.store.List(ctx, req.Credentials, f)
		if err != nil {
			if allowDegraded && errors.Is(err, errors.ErrTransport) {
				res, derr := c.degrade(ctx, f, key, op, err)
				return nil, res, derr
			}
			c.opts.Hook.Observe(observe.Event{Kind: observe.KindRead, Op: op, Key: key, Generation: gen, Err: err})
			return nil, nil, err
		}

		fetchedAt := c.opts.Now().UTC()
		e := &entry{
			generation: gen,
			filter:     f,
			events:     calendar.Apply(calendar.ProjectAll(posts, c.projectOptions()), f),
			fetchedAt:  fetchedAt,
		}

		c.mu.Lock()
		if c.epoch != epoch {
			c.mu.Unlock()
			c.opts.Hook.Observe(observe.Event{Kind: observe.KindReadDiscarded, Op: op, Key: key, Generation: gen})
			lastErr = fmt.Errorf("read of %s invalidated by a concurrent mutation", key)
			continue
		}
		if cur, ok := c.entries[key]; ok && cur.generation > gen {
			c.mu.Unlock()
			c.opts.Hook.Observe(observe.Event{Kind: observe.KindReadDiscarded, Op: op, Key: key, Generation: gen})
			return cur, nil, nil
		}
		c.entries[key] = e
		c.mu.Unlock()

		if err := c.opts.Snapshots.Save(ctx, key, cache.Snapshot{Posts: posts, FetchedAt: fetchedAt}); err != nil {
			c.opts.Hook.Observe(observe.Event{Kind: observe.KindRead, Op: "save_snapshot", Key: key, Err: err})
		}
		c.opts.Hook.Observe(observe.Event{
			Kind:       observe.KindRead,
			Op:         op,
			Key:        key,
			Generation: gen,
			Source:     string(SourceLive),
			Duration:   c.opts.Now().Sub(started),
		})
		return e, nil, nil
	}
	return nil, nil, errors.NewUnavailable(lastErr)
}

// degrade serves the last-known-good snapshot for key after a transport
// failure.
func (c *Coordinator) degrade(ctx context.Context, f calendar.Filter, key, op string, cause error) (*EventsResult, error) {
	snap, ok, err := c.opts.Snapshots.Load(ctx, key)
	if err != nil || !ok {
		c.opts.Hook.Observe(observe.Event{Kind: observe.KindRead, Op: op, Key: key, Err: cause})
		return nil, errors.NewUnavailable(cause)
	}
	c.opts.Hook.Observe(observe.Event{Kind: observe.KindDegraded, Op: op, Key: key, Source: string(SourceDegraded), Err: cause})
	return &EventsResult{
		Events:    calendar.Apply(calendar.ProjectAll(snap.Posts, c.projectOptions()), f),
		Source:    SourceDegraded,
		FetchedAt: snap.FetchedAt,
		Err:       cause,
	}, nil
}

// densityOf computes and memoizes the density map of e.
func (c *Coordinator) densityOf(e *entry) map[string]calendar.Density {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.density == nil {
		e.density = calendar.ComputeDensity(e.events, c.opts.Location)
	}
	out := make(map[string]calendar.Density, len(e.density))
	for k, v := range e.density {
		v.Conflicts = slices.Clone(v.Conflicts)
		out[k] = v
	}
	return out
}

func eventsResult(e *entry, source Source) *EventsResult {
	return &EventsResult{
		Events:     slices.Clone(e.events),
		Source:     source,
		FetchedAt:  e.fetchedAt,
		Generation: e.generation,
	}
}
