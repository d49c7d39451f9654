package calendar

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/hpungsan/cadence/internal/errors"
	"github.com/hpungsan/cadence/internal/post"
)

// DateRange bounds event start times, inclusive on both ends.
// A zero Start or End leaves that side open.
type DateRange struct {
	Start time.Time `json:"start,omitzero"`
	End   time.Time `json:"end,omitzero"`
}

// Filter selects events. Every dimension is optional: a nil or empty
// collection, a nil range and an empty search term all mean "no constraint",
// so the zero Filter matches every event.
type Filter struct {
	Platforms  []post.Platform `json:"platforms,omitempty"`
	Status     []post.Status   `json:"status,omitempty"`
	DateRange  *DateRange      `json:"date_range,omitempty"`
	SearchTerm string          `json:"search_term,omitempty"`
	Tags       []string        `json:"tags,omitempty"`
}

// Validate rejects filters that can never match by construction.
func (f Filter) Validate() error {
	if r := f.DateRange; r != nil && !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return errors.NewValidation("date_range", "date_range end is before start")
	}
	return nil
}

// Normalized returns a copy with sorted, normalized, deduplicated values and
// UTC range bounds. Equivalent filters normalize to equal values.
func (f Filter) Normalized() Filter {
	out := Filter{
		SearchTerm: strings.TrimSpace(f.SearchTerm),
		Tags:       post.NormalizeTags(f.Tags),
	}

	if platforms := post.NormalizePlatforms(f.Platforms); len(platforms) > 0 {
		slices.Sort(platforms)
		out.Platforms = platforms
	}
	slices.Sort(out.Tags)

	for _, s := range f.Status {
		s = post.Status(post.Normalize(string(s)))
		if s != "" && !slices.Contains(out.Status, s) {
			out.Status = append(out.Status, s)
		}
	}
	slices.Sort(out.Status)

	if r := f.DateRange; r != nil && (!r.Start.IsZero() || !r.End.IsZero()) {
		out.DateRange = &DateRange{Start: r.Start.UTC(), End: r.End.UTC()}
	}
	return out
}

// Key returns a canonical cache key for the filter.
func (f Filter) Key() string {
	data, err := json.Marshal(f.Normalized())
	if err != nil {
		// Filter holds only strings and times; Marshal cannot fail.
		panic(err)
	}
	return string(data)
}

// Matches reports whether e passes every dimension of f.
func Matches(e Event, f Filter) bool {
	if len(f.Platforms) > 0 && !intersects(e.Platforms, f.Platforms, post.NormalizePlatform) {
		return false
	}
	if len(f.Status) > 0 && !intersects([]post.Status{e.Status}, f.Status, func(s post.Status) post.Status {
		return post.Status(post.Normalize(string(s)))
	}) {
		return false
	}
	if r := f.DateRange; r != nil {
		if !r.Start.IsZero() && e.Start.Before(r.Start) {
			return false
		}
		if !r.End.IsZero() && e.Start.After(r.End) {
			return false
		}
	}
	if term := strings.TrimSpace(f.SearchTerm); term != "" {
		if !strings.Contains(e.haystack(), strings.ToLower(term)) {
			return false
		}
	}
	if len(f.Tags) > 0 && !intersects(e.Tags, f.Tags, post.Normalize) {
		return false
	}
	return true
}

// Apply returns the events that match f, in input order.
func Apply(events []Event, f Filter) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if Matches(e, f) {
			out = append(out, e)
		}
	}
	return out
}

func intersects[T comparable](have, want []T, norm func(T) T) bool {
	for _, w := range want {
		w = norm(w)
		for _, h := range have {
			if norm(h) == w {
				return true
			}
		}
	}
	return false
}
