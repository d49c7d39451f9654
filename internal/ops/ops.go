// Package ops is the scheduling coordinator: it reads posts from a
// store.PostStore, projects and filters them into calendar events, derives
// density and recommendations, and runs post mutations while keeping the
// derived read cache consistent with the latest write.
package ops

import (
	"sync"
	"time"

	"github.com/hpungsan/cadence/internal/cache"
	"github.com/hpungsan/cadence/internal/calendar"
	"github.com/hpungsan/cadence/internal/observe"
	"github.com/hpungsan/cadence/internal/store"
)

// maxReadAttempts bounds refetches of a read that keeps being invalidated
// by concurrent mutations.
const maxReadAttempts = 3

// Source labels where a read result came from.
type Source string

const (
	SourceLive     Source = "live"     // fetched from the store by this call
	SourceCache    Source = "cache"    // derived cache, no store call
	SourceDegraded Source = "degraded" // last-known-good snapshot after a transport failure
)

// Request carries per-call context. Nothing is read from globals.
type Request struct {
	Credentials store.Credentials
}

// Options configures a Coordinator. Zero values select defaults.
type Options struct {
	// Duration of a timed event; default calendar.DefaultDuration.
	Duration time.Duration

	// Location is the display timezone for dates; default UTC.
	Location *time.Location

	// MaxChars bounds post content on create/update; zero disables.
	MaxChars int

	// MaxAge bounds how long a derived read is served without refetching;
	// zero keeps it until invalidated.
	MaxAge time.Duration

	// Now is the coordinator's clock; default time.Now.
	Now func() time.Time

	// Hook receives observations; default observe.Nop().
	Hook observe.Hook

	// Snapshots keeps last-known-good post lists for degraded reads;
	// default an unbounded in-memory store.
	Snapshots cache.Snapshots
}

// Coordinator is safe for concurrent use. It starts no goroutines.
type Coordinator struct {
	store store.PostStore
	opts  Options

	mu       sync.Mutex
	epoch    uint64 // bumped by every invalidation
	lastGen  uint64
	entries  map[string]*entry
	inflight map[string]struct{} // post ids with a mutation in flight
}

// entry is one derived read result. Event list and density live together so
// they are always invalidated together.
type entry struct {
	generation uint64
	filter     calendar.Filter
	events     []calendar.Event
	density    map[string]calendar.Density // computed on first use
	fetchedAt  time.Time
}

// New returns a Coordinator over s.
func New(s store.PostStore, opts Options) *Coordinator {
	if opts.Duration <= 0 {
		opts.Duration = calendar.DefaultDuration
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Hook == nil {
		opts.Hook = observe.Nop()
	}
	if opts.Snapshots == nil {
		opts.Snapshots = cache.NewMemory(0)
	}
	return &Coordinator{
		store:    s,
		opts:     opts,
		entries:  make(map[string]*entry),
		inflight: make(map[string]struct{}),
	}
}

// Location returns the display timezone.
func (c *Coordinator) Location() *time.Location {
	return c.opts.Location
}

// Now returns the coordinator's clock reading.
func (c *Coordinator) Now() time.Time {
	return c.opts.Now()
}

func (c *Coordinator) projectOptions() calendar.ProjectOptions {
	return calendar.ProjectOptions{Duration: c.opts.Duration, Location: c.opts.Location}
}
