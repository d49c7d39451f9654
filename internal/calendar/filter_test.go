package calendar

import (
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/cadence/internal/errors"
	"github.com/hpungsan/cadence/internal/post"
)

func sampleEvent() Event {
	start := time.Date(2026, 11, 2, 10, 0, 0, 0, time.UTC)
	return Event{
		ID:          "evt_p1",
		PostID:      "p1",
		Title:       "Holiday Sale",
		Start:       start,
		End:         start.Add(DefaultDuration),
		Platforms:   []post.Platform{post.PlatformTwitter, post.PlatformInstagram},
		Status:      post.StatusScheduled,
		Tags:        []string{"promo", "q4"},
		Description: "Everything is 20% off this weekend",
	}
}

func TestMatches_EmptyFilterMatchesEverything(t *testing.T) {
	events := []Event{sampleEvent(), {ID: "bare"}}
	for _, e := range events {
		if !Matches(e, Filter{}) {
			t.Errorf("Matches(%q, {}) = false, want true", e.ID)
		}
	}
}

func TestMatches_EmptyCollectionsAreNoConstraint(t *testing.T) {
	f := Filter{
		Platforms: []post.Platform{},
		Status:    []post.Status{},
		Tags:      []string{},
		DateRange: &DateRange{},
	}
	if !Matches(sampleEvent(), f) {
		t.Error("empty collections filtered out the event")
	}
}

func TestMatches_Platforms(t *testing.T) {
	tests := []struct {
		name      string
		platforms []post.Platform
		want      bool
	}{
		{"intersecting", []post.Platform{post.PlatformInstagram, post.PlatformLinkedIn}, true},
		{"superset", []post.Platform{post.PlatformTwitter, post.PlatformInstagram, post.PlatformTikTok}, true},
		{"case-insensitive", []post.Platform{"TWITTER"}, true},
		{"disjoint", []post.Platform{post.PlatformLinkedIn, post.PlatformFacebook}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(sampleEvent(), Filter{Platforms: tt.platforms}); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatches_Status(t *testing.T) {
	if !Matches(sampleEvent(), Filter{Status: []post.Status{post.StatusDraft, post.StatusScheduled}}) {
		t.Error("scheduled event should match {draft, scheduled}")
	}
	if Matches(sampleEvent(), Filter{Status: []post.Status{post.StatusPublished}}) {
		t.Error("scheduled event should not match {published}")
	}
}

func TestMatches_DateRangeInclusive(t *testing.T) {
	ev := sampleEvent()
	tests := []struct {
		name string
		r    DateRange
		want bool
	}{
		{"start equals range start", DateRange{Start: ev.Start, End: ev.Start.Add(time.Hour)}, true},
		{"start equals range end", DateRange{Start: ev.Start.Add(-time.Hour), End: ev.Start}, true},
		{"before range", DateRange{Start: ev.Start.Add(time.Second), End: ev.Start.Add(time.Hour)}, false},
		{"after range", DateRange{Start: ev.Start.Add(-time.Hour), End: ev.Start.Add(-time.Second)}, false},
		{"open start", DateRange{End: ev.Start}, true},
		{"open end", DateRange{Start: ev.Start.Add(time.Second)}, false},
		// end lies inside the range but start does not: compared against start only
		{"only end inside", DateRange{Start: ev.Start.Add(time.Minute), End: ev.End}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.r
			if got := Matches(ev, Filter{DateRange: &r}); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatches_SearchTerm(t *testing.T) {
	tests := []struct {
		term string
		want bool
	}{
		{"", true},
		{"   ", true},
		{"holiday", true},
		{"SALE", true},
		{"20% off", true},
		{"sale everything", true}, // spans title and description
		{"black friday", false},
	}
	for _, tt := range tests {
		if got := Matches(sampleEvent(), Filter{SearchTerm: tt.term}); got != tt.want {
			t.Errorf("Matches(search=%q) = %v, want %v", tt.term, got, tt.want)
		}
	}
}

func TestMatches_SearchTermBeyondExcerpt(t *testing.T) {
	p := post.Post{
		ID:            "p1",
		Title:         "Long read",
		Content:       strings.Repeat("filler ", 60) + "**Needle**",
		Platforms:     []post.Platform{post.PlatformLinkedIn},
		ScheduledDate: time.Date(2026, 11, 2, 10, 0, 0, 0, time.UTC),
		Status:        post.StatusScheduled,
	}
	e := Project(p, ProjectOptions{})
	if strings.Contains(strings.ToLower(e.Description), "needle") {
		t.Fatalf("Description = %q, want the term cut from the excerpt", e.Description)
	}

	if !Matches(e, Filter{SearchTerm: "needle"}) {
		t.Error("Matches(needle) = false, want true for a term past the excerpt")
	}
	if !Matches(e, Filter{SearchTerm: "filler NEEDLE"}) {
		t.Error("Matches(filler NEEDLE) = false, want true against plain text")
	}
	if Matches(e, Filter{SearchTerm: "haystack"}) {
		t.Error("Matches(haystack) = true, want false")
	}
}

func TestMatches_Tags(t *testing.T) {
	if !Matches(sampleEvent(), Filter{Tags: []string{"Q4", "other"}}) {
		t.Error("tag intersection should match")
	}
	if Matches(sampleEvent(), Filter{Tags: []string{"evergreen"}}) {
		t.Error("disjoint tags should not match")
	}
}

func TestMatches_Conjunctive(t *testing.T) {
	f := Filter{
		Platforms: []post.Platform{post.PlatformTwitter},
		Status:    []post.Status{post.StatusPublished},
	}
	if Matches(sampleEvent(), f) {
		t.Error("platform matches but status does not: want false")
	}
}

func TestApply_PreservesOrder(t *testing.T) {
	a := sampleEvent()
	b := sampleEvent()
	b.ID = "evt_p2"
	b.Platforms = []post.Platform{post.PlatformLinkedIn}
	c := sampleEvent()
	c.ID = "evt_p3"

	got := Apply([]Event{a, b, c}, Filter{Platforms: []post.Platform{post.PlatformTwitter}})
	if len(got) != 2 || got[0].ID != "evt_p1" || got[1].ID != "evt_p3" {
		t.Errorf("Apply = %v, want [evt_p1 evt_p3]", ids(got))
	}
}

func TestFilter_Validate(t *testing.T) {
	now := time.Now()
	bad := Filter{DateRange: &DateRange{Start: now, End: now.Add(-time.Second)}}
	if err := bad.Validate(); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("Validate() = %v, want VALIDATION", err)
	}

	same := Filter{DateRange: &DateRange{Start: now, End: now}}
	if err := same.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil for single-instant range", err)
	}
	if err := (Filter{}).Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil for empty filter", err)
	}
}

func TestFilter_KeyIsCanonical(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	start := time.Date(2026, 11, 1, 2, 0, 0, 0, loc)
	a := Filter{
		Platforms:  []post.Platform{"Twitter", "instagram"},
		Status:     []post.Status{"scheduled", "draft"},
		Tags:       []string{"b", "A"},
		SearchTerm: " sale ",
		DateRange:  &DateRange{Start: start},
	}
	b := Filter{
		Platforms:  []post.Platform{"instagram", "twitter", "twitter"},
		Status:     []post.Status{"draft", "scheduled"},
		Tags:       []string{"a", "b"},
		SearchTerm: "sale",
		DateRange:  &DateRange{Start: start.UTC()},
	}
	if a.Key() != b.Key() {
		t.Errorf("keys differ:\n%s\n%s", a.Key(), b.Key())
	}
	if (Filter{}).Key() != (Filter{Platforms: []post.Platform{}}).Key() {
		t.Error("empty and nil platform sets should share a key")
	}
	if a.Key() == (Filter{}).Key() {
		t.Error("distinct filters should not share a key")
	}
}

func ids(events []Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}
