package calendar

import (
	"strings"
	"time"

	"github.com/hpungsan/cadence/internal/post"
)

// DefaultDuration is the length of a projected event for a timed post.
const DefaultDuration = 30 * time.Minute

// Event is the display-ready projection of a post. Events are derived on
// every read and carry no identity of their own beyond the post they mirror.
type Event struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
	Title  string `json:"title"`

	// Start / End are UTC instants; End is always after Start
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	AllDay bool      `json:"all_day,omitempty"`

	Platforms   []post.Platform `json:"platforms"`
	Status      post.Status     `json:"status"`
	Tags        []string        `json:"tags,omitempty"`
	Description string          `json:"description,omitempty"`

	// searchText is the lowercased title and full plain-text content that
	// search terms are matched against. Description is only an excerpt.
	searchText string
}

// haystack returns the lowercased text a search term is matched against.
// Events built outside Project fall back to title and description.
func (e Event) haystack() string {
	if e.searchText != "" {
		return e.searchText
	}
	return strings.ToLower(e.Title + " " + e.Description)
}

// ProjectOptions controls projection.
type ProjectOptions struct {
	// Duration of a timed event. Zero or negative means DefaultDuration.
	Duration time.Duration

	// Location decides where an all-day post's calendar day ends.
	// Nil means UTC.
	Location *time.Location

	// ExcerptChars bounds the description. Zero means post.DefaultExcerptChars.
	ExcerptChars int
}

// EventID returns the stable event id for a post id.
func EventID(postID string) string {
	return "evt_" + postID
}

// Project maps a post to its calendar event.
func Project(p post.Post, opts ProjectOptions) Event {
	duration := opts.Duration
	if duration <= 0 {
		duration = DefaultDuration
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	excerpt := opts.ExcerptChars
	if excerpt <= 0 {
		excerpt = post.DefaultExcerptChars
	}

	start := p.ScheduledDate.UTC()
	end := start.Add(duration)
	if p.AllDay {
		local := p.ScheduledDate.In(loc)
		nextDay := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
		end = nextDay.UTC()
	}

	return Event{
		ID:          EventID(p.ID),
		PostID:      p.ID,
		Title:       p.Title,
		Start:       start,
		End:         end,
		AllDay:      p.AllDay,
		Platforms:   append([]post.Platform(nil), p.Platforms...),
		Status:      p.Status,
		Tags:        append([]string(nil), p.Tags...),
		Description: post.Excerpt(p.Content, excerpt),
		searchText:  strings.ToLower(p.Title + " " + post.PlainText(p.Content)),
	}
}

// ProjectAll projects posts in order. A post id that appears more than once
// yields a single event built from its last occurrence, kept at the position
// of the first.
func ProjectAll(posts []post.Post, opts ProjectOptions) []Event {
	events := make([]Event, 0, len(posts))
	index := make(map[string]int, len(posts))
	for _, p := range posts {
		ev := Project(p, opts)
		if i, ok := index[p.ID]; ok {
			events[i] = ev
			continue
		}
		index[p.ID] = len(events)
		events = append(events, ev)
	}
	return events
}
