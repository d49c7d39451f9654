package calendar

import (
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/hpungsan/cadence/internal/post"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2026, 11, day, hour, minute, 0, 0, time.UTC)
}

func ev(id string, start, end time.Time, platforms ...post.Platform) Event {
	return Event{ID: id, PostID: id, Title: id, Start: start, End: end, Platforms: platforms, Status: post.StatusScheduled}
}

func TestComputeDensity_SamePlatformOverlapConflicts(t *testing.T) {
	events := []Event{
		ev("a", at(2, 10, 0), at(2, 10, 30), post.PlatformTwitter),
		ev("b", at(2, 10, 15), at(2, 10, 45), post.PlatformTwitter),
	}
	d := ComputeDensity(events, time.UTC)["2026-11-02"]

	if d.Count != 2 {
		t.Errorf("Count = %d, want 2", d.Count)
	}
	if !d.HasConflicts {
		t.Error("HasConflicts = false, want true")
	}
	if len(d.Conflicts) != 1 || d.Conflicts[0].FirstEventID != "a" || d.Conflicts[0].SecondEventID != "b" {
		t.Errorf("Conflicts = %+v, want [a b]", d.Conflicts)
	}
	if d.Conflicts[0].Platform != post.PlatformTwitter {
		t.Errorf("Conflict platform = %q, want twitter", d.Conflicts[0].Platform)
	}
}

func TestComputeDensity_DifferentPlatformsDoNotConflict(t *testing.T) {
	events := []Event{
		ev("a", at(2, 10, 0), at(2, 10, 30), post.PlatformTwitter),
		ev("b", at(2, 10, 15), at(2, 10, 45), post.PlatformInstagram),
	}
	d := ComputeDensity(events, time.UTC)["2026-11-02"]
	if d.HasConflicts {
		t.Errorf("HasConflicts = true, want false: %+v", d.Conflicts)
	}
	if d.Count != 2 {
		t.Errorf("Count = %d, want 2", d.Count)
	}
}

func TestComputeDensity_TouchingIntervalsDoNotConflict(t *testing.T) {
	events := []Event{
		ev("a", at(2, 10, 0), at(2, 10, 30), post.PlatformTwitter),
		ev("b", at(2, 10, 30), at(2, 11, 0), post.PlatformTwitter),
	}
	if ComputeDensity(events, time.UTC)["2026-11-02"].HasConflicts {
		t.Error("back-to-back events should not conflict")
	}
}

func TestComputeDensity_Count(t *testing.T) {
	events := []Event{
		ev("a", at(2, 8, 0), at(2, 8, 30), post.PlatformTwitter),
		ev("b", at(2, 12, 0), at(2, 12, 30), post.PlatformTwitter),
		ev("c", at(2, 18, 0), at(2, 18, 30), post.PlatformLinkedIn),
		ev("d", at(3, 9, 0), at(3, 9, 30), post.PlatformTwitter),
	}
	m := ComputeDensity(events, time.UTC)

	if len(m) != 2 {
		t.Fatalf("len(density) = %d, want 2", len(m))
	}
	if m["2026-11-02"].Count != 3 {
		t.Errorf("2026-11-02 count = %d, want 3", m["2026-11-02"].Count)
	}
	if m["2026-11-03"].Count != 1 {
		t.Errorf("2026-11-03 count = %d, want 1", m["2026-11-03"].Count)
	}
	for date, d := range m {
		if d.HasConflicts {
			t.Errorf("%s HasConflicts = true, want false", date)
		}
		if d.Date != date {
			t.Errorf("Date = %q, want %q", d.Date, date)
		}
	}
}

func TestComputeDensity_LongEventOverlapsLaterOne(t *testing.T) {
	// a spans b and c; b and c do not touch each other. A scan that only
	// compares neighbours would miss a/c.
	events := []Event{
		ev("c", at(2, 11, 0), at(2, 11, 30), post.PlatformTwitter),
		ev("a", at(2, 9, 0), at(2, 12, 0), post.PlatformTwitter),
		ev("b", at(2, 9, 30), at(2, 10, 0), post.PlatformTwitter),
	}
	got := Conflicts(events, time.UTC)
	want := [][2]string{{"a", "b"}, {"a", "c"}}
	if len(got) != len(want) {
		t.Fatalf("Conflicts = %+v, want %v", got, want)
	}
	for i, w := range want {
		if got[i].FirstEventID != w[0] || got[i].SecondEventID != w[1] {
			t.Errorf("Conflicts[%d] = %s/%s, want %s/%s", i, got[i].FirstEventID, got[i].SecondEventID, w[0], w[1])
		}
	}
}

func TestComputeDensity_MultiPlatformEventJoinsEachPartition(t *testing.T) {
	events := []Event{
		ev("a", at(2, 10, 0), at(2, 10, 30), post.PlatformTwitter, post.PlatformLinkedIn),
		ev("b", at(2, 10, 10), at(2, 10, 20), post.PlatformLinkedIn),
	}
	d := ComputeDensity(events, time.UTC)["2026-11-02"]
	if !d.HasConflicts {
		t.Fatal("HasConflicts = false, want true")
	}
	if len(d.Conflicts) != 1 || d.Conflicts[0].Platform != post.PlatformLinkedIn {
		t.Errorf("Conflicts = %+v, want one linkedin conflict", d.Conflicts)
	}
}

func TestComputeDensity_GroupsByLocalDate(t *testing.T) {
	loc := time.FixedZone("UTC-8", -8*3600)
	events := []Event{
		// 03:00 UTC Nov 3 is 19:00 Nov 2 in UTC-8
		ev("a", at(3, 3, 0), at(3, 3, 30), post.PlatformTwitter),
		ev("b", at(3, 3, 15), at(3, 3, 45), post.PlatformTwitter),
	}
	m := ComputeDensity(events, loc)
	d, ok := m["2026-11-02"]
	if !ok {
		t.Fatalf("density keys = %v, want 2026-11-02", SortedDates(m))
	}
	if d.Count != 2 || !d.HasConflicts {
		t.Errorf("density = %+v, want count 2 with conflicts", d)
	}
}

func TestComputeDensity_Deterministic(t *testing.T) {
	events := []Event{
		ev("a", at(2, 10, 0), at(2, 11, 0), post.PlatformTwitter),
		ev("b", at(2, 10, 0), at(2, 10, 30), post.PlatformTwitter),
		ev("c", at(2, 10, 20), at(2, 10, 40), post.PlatformTwitter),
	}
	first := Conflicts(events, time.UTC)
	for i := 0; i < 20; i++ {
		shuffled := []Event{events[(i)%3], events[(i+1)%3], events[(i+2)%3]}
		got := Conflicts(shuffled, time.UTC)
		if len(got) != len(first) {
			t.Fatalf("run %d: %d conflicts, want %d", i, len(got), len(first))
		}
		for j := range got {
			if got[j] != first[j] {
				t.Fatalf("run %d: conflict %d = %+v, want %+v", i, j, got[j], first[j])
			}
		}
	}
}

func TestComputeDensity_Empty(t *testing.T) {
	if m := ComputeDensity(nil, time.UTC); len(m) != 0 {
		t.Errorf("len(density) = %d, want 0", len(m))
	}
}

func TestMonthRange(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	r := MonthRange(2026, time.February, loc)

	wantStart := time.Date(2026, 1, 31, 21, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 2, 28, 20, 59, 59, 999999999, time.UTC)
	if !r.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", r.Start, wantStart)
	}
	if !r.End.Equal(wantEnd) {
		t.Errorf("End = %v, want %v", r.End, wantEnd)
	}
}

func TestExportICS(t *testing.T) {
	e := ev("evt_p1", at(2, 10, 0), at(2, 10, 30), post.PlatformTwitter)
	e.Title = "Launch"
	e.Tags = []string{"promo"}

	out := ExportICS([]Event{e}, "Content", at(1, 0, 0))

	if !strings.Contains(out, "BEGIN:VCALENDAR") {
		t.Fatalf("output is not a calendar:\n%s", out)
	}
	cal, err := ics.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ParseCalendar failed: %v", err)
	}
	events := cal.Events()
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if got := events[0].GetProperty(ics.ComponentPropertySummary).Value; got != "Launch" {
		t.Errorf("SUMMARY = %q, want %q", got, "Launch")
	}
	start, err := events[0].GetStartAt()
	if err != nil {
		t.Fatalf("GetStartAt failed: %v", err)
	}
	if !start.Equal(e.Start) {
		t.Errorf("DTSTART = %v, want %v", start, e.Start)
	}
	if !strings.Contains(out, "CATEGORIES:twitter") {
		t.Errorf("missing categories in:\n%s", out)
	}
}
