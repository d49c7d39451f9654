package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/cadence/internal/calendar"
	"github.com/hpungsan/cadence/internal/db"
	"github.com/hpungsan/cadence/internal/errors"
	"github.com/hpungsan/cadence/internal/post"
	"github.com/hpungsan/cadence/internal/recommend"
)

var (
	ctx   = context.Background()
	creds = Credentials{}
	clock = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
)

func newLocal(t *testing.T) *Local {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewLocal(database, WithMaxChars(500), WithClock(func() time.Time { return clock }))
}

func createReq(title string, at time.Time, platforms ...post.Platform) post.CreateRequest {
	return post.CreateRequest{
		Title:         title,
		Content:       "Content for " + title,
		Platforms:     platforms,
		ScheduledDate: at,
	}
}

func TestLocal_CreateGetDelete(t *testing.T) {
	s := newLocal(t)
	at := time.Date(2026, 11, 3, 9, 0, 0, 0, time.UTC)

	created, err := s.Create(ctx, creds, createReq("  Launch  ", at, " Twitter "))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(created.ID) != 26 {
		t.Errorf("ID = %q, want a ULID", created.ID)
	}
	if created.Title != "Launch" {
		t.Errorf("Title = %q, want trimmed", created.Title)
	}
	if created.Platforms[0] != post.PlatformTwitter {
		t.Errorf("Platforms = %v, want normalized twitter", created.Platforms)
	}
	if created.Status != post.StatusDraft {
		t.Errorf("Status = %q, want draft default", created.Status)
	}
	if !created.CreatedAt.Equal(clock) {
		t.Errorf("CreatedAt = %v, want %v", created.CreatedAt, clock)
	}

	got, err := s.Get(ctx, creds, created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.ScheduledDate.Equal(at) {
		t.Errorf("ScheduledDate = %v, want %v", got.ScheduledDate, at)
	}

	if err := s.Delete(ctx, creds, created.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, creds, created.ID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Get after delete error = %v, want NOT_FOUND", err)
	}
}

func TestLocal_CreateValidation(t *testing.T) {
	s := newLocal(t)

	_, err := s.Create(ctx, creds, createReq("x", time.Time{}, post.PlatformTwitter))
	if !errors.Is(err, errors.ErrValidation) {
		t.Errorf("Create(zero date) error = %v, want VALIDATION", err)
	}

	_, err = s.Create(ctx, creds, createReq("x", clock, "myspace"))
	if !errors.Is(err, errors.ErrValidation) {
		t.Errorf("Create(unknown platform) error = %v, want VALIDATION", err)
	}
}

func TestLocal_UpdateAndReschedule(t *testing.T) {
	s := newLocal(t)
	created, err := s.Create(ctx, creds, createReq("Launch", clock.Add(24*time.Hour), post.PlatformTwitter))
	require.NoError(t, err)

	status := post.StatusScheduled
	tags := []string{"Launch", "launch", " q4 "}
	updated, err := s.Update(ctx, creds, created.ID, post.UpdateRequest{Status: &status, Tags: &tags})
	require.NoError(t, err)
	require.Equal(t, post.StatusScheduled, updated.Status)
	require.Equal(t, []string{"launch", "q4"}, updated.Tags)
	require.Equal(t, "Launch", updated.Title)

	_, err = s.Update(ctx, creds, created.ID, post.UpdateRequest{})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "empty update: %v", err)

	next := time.Date(2026, 12, 1, 8, 30, 0, 0, time.FixedZone("EST", -5*3600))
	moved, err := s.Reschedule(ctx, creds, created.ID, next)
	require.NoError(t, err)
	require.True(t, moved.ScheduledDate.Equal(next))
	require.Equal(t, time.UTC, moved.ScheduledDate.Location())

	_, err = s.Reschedule(ctx, creds, "missing", next)
	require.True(t, errors.Is(err, errors.ErrNotFound), "reschedule missing: %v", err)
}

func TestLocal_List(t *testing.T) {
	s := newLocal(t)
	base := time.Date(2026, 11, 3, 9, 0, 0, 0, time.UTC)

	a, err := s.Create(ctx, creds, post.CreateRequest{
		Title: "Product launch", Content: "We are **live** today",
		Platforms: []post.Platform{"twitter"}, ScheduledDate: base, Tags: []string{"launch"},
	})
	require.NoError(t, err)
	b, err := s.Create(ctx, creds, createReq("Weekly digest", base.Add(48*time.Hour), "linkedin"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter calendar.Filter
		want   []string
	}{
		{"empty filter", calendar.Filter{}, []string{a.ID, b.ID}},
		{"platform", calendar.Filter{Platforms: []post.Platform{"LinkedIn"}}, []string{b.ID}},
		{"tag", calendar.Filter{Tags: []string{"LAUNCH"}}, []string{a.ID}},
		{"search in rendered markdown", calendar.Filter{SearchTerm: "are live"}, []string{a.ID}},
		{"date range", calendar.Filter{DateRange: &calendar.DateRange{Start: base.Add(time.Hour)}}, []string{b.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, creds, tt.filter)
			require.NoError(t, err)
			var ids []string
			for _, p := range got {
				ids = append(ids, p.ID)
			}
			require.Equal(t, tt.want, ids)
		})
	}

	_, err = s.List(ctx, creds, calendar.Filter{DateRange: &calendar.DateRange{Start: base, End: base.Add(-time.Hour)}})
	require.True(t, errors.Is(err, errors.ErrValidation))
}

func TestLocal_Recommendations(t *testing.T) {
	s := newLocal(t)

	n, err := s.ImportRecommendations(ctx, creds, []recommend.Recommendation{
		{Platform: "Twitter", DayOfWeek: time.Monday, TimeOfDay: "9:00", EngagementScore: 70, SampleSize: 64},
		{Platform: "twitter", DayOfWeek: time.Monday, TimeOfDay: "18:00", EngagementScore: 80, SampleSize: 3},
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	recs, err := s.Recommendations(ctx, creds, " TWITTER")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "09:00", recs[0].TimeOfDay)
	require.Equal(t, recommend.ConfidenceHigh, recs[0].Confidence)
	require.Equal(t, recommend.ConfidenceLow, recs[1].Confidence)

	_, err = s.ImportRecommendations(ctx, creds, []recommend.Recommendation{
		{Platform: "twitter", DayOfWeek: time.Monday, TimeOfDay: "09:00", EngagementScore: 170},
	})
	require.True(t, errors.Is(err, errors.ErrValidation))
	cErr, _ := errors.As(err)
	require.Equal(t, 0, cErr.Details["index"])

	// Rejected import left the stored rows alone.
	recs, err = s.Recommendations(ctx, creds, "twitter")
	require.NoError(t, err)
	require.Len(t, recs, 2)
}

func TestLocal_TimeSlots(t *testing.T) {
	s := newLocal(t)

	saved, err := s.SaveTimeSlot(ctx, creds, recommend.TimeSlot{
		ID: "morning", Platform: "Instagram", DayOfWeek: time.Tuesday,
		StartTime: "8:00", EndTime: "09:30", IsActive: true,
	})
	require.NoError(t, err)
	require.Equal(t, post.PlatformInstagram, saved.Platform)
	require.Equal(t, "08:00", saved.StartTime)

	_, err = s.SaveTimeSlot(ctx, creds, recommend.TimeSlot{
		ID: "bad", Platform: "instagram", StartTime: "10:00", EndTime: "09:00",
	})
	require.True(t, errors.Is(err, errors.ErrValidation))

	off, err := s.SetTimeSlotActive(ctx, creds, "morning", false)
	require.NoError(t, err)
	require.False(t, off.IsActive)

	slots, err := s.TimeSlots(ctx, creds, "")
	require.NoError(t, err)
	require.Len(t, slots, 1)
}

func TestLocal_CanceledContext(t *testing.T) {
	s := newLocal(t)
	canceled, cancel := context.WithCancel(ctx)
	cancel()

	if _, err := s.List(canceled, creds, calendar.Filter{}); err == nil {
		t.Error("List with canceled context: want error, got nil")
	}
}
