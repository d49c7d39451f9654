// Package observe carries structured engine events to whatever logging or
// metrics sink the host wires in.
package observe

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Kind classifies an Event.
type Kind string

const (
	KindRead          Kind = "read"
	KindReadDiscarded Kind = "read_discarded"
	KindDegraded      Kind = "degraded"
	KindInvalidate    Kind = "invalidate"
	KindRefresh       Kind = "refresh"

	// Mutation state machine: idle -> in_flight -> success | failure.
	KindMutationInFlight Kind = "mutation_in_flight"
	KindMutationSuccess  Kind = "mutation_success"
	KindMutationFailure  Kind = "mutation_failure"
)

// Event is one observation from the scheduling coordinator.
type Event struct {
	Kind       Kind
	Op         string
	Key        string // filter key, for reads
	PostID     string // for mutations
	Generation uint64
	Source     string
	Duration   time.Duration
	Err        error
}

// Hook receives events. Implementations must be safe for concurrent use and
// must not block.
type Hook interface {
	Observe(Event)
}

// HookFunc adapts a function to Hook.
type HookFunc func(Event)

// Observe calls f(e).
func (f HookFunc) Observe(e Event) { f(e) }

type nop struct{}

func (nop) Observe(Event) {}

// Nop returns a hook that drops every event.
func Nop() Hook { return nop{} }

type zerologHook struct {
	log zerolog.Logger
}

// Zerolog returns a hook that writes events to logger. Failures log at error
// level, degraded reads at warn, everything else at debug.
func Zerolog(logger zerolog.Logger) Hook {
	return &zerologHook{log: logger}
}

func (h *zerologHook) Observe(e Event) {
	var ev *zerolog.Event
	switch {
	case e.Err != nil && e.Kind != KindDegraded:
		ev = h.log.Error().Err(e.Err)
	case e.Kind == KindDegraded:
		ev = h.log.Warn().AnErr("cause", e.Err)
	default:
		ev = h.log.Debug()
	}

	ev = ev.Str("kind", string(e.Kind)).Str("op", e.Op)
	if e.Key != "" {
		ev = ev.Str("filter", e.Key)
	}
	if e.PostID != "" {
		ev = ev.Str("post_id", e.PostID)
	}
	if e.Generation > 0 {
		ev = ev.Uint64("generation", e.Generation)
	}
	if e.Source != "" {
		ev = ev.Str("source", e.Source)
	}
	if e.Duration > 0 {
		ev = ev.Dur("duration", e.Duration)
	}
	ev.Msg("cadence " + string(e.Kind))
}

// Recorder collects events in memory. Tests use it to assert on the
// sequence of observations.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Observe appends e.
func (r *Recorder) Observe(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the kinds of the recorded events, optionally restricted to
// one post id.
func (r *Recorder) Kinds(postID string) []Kind {
	var out []Kind
	for _, e := range r.Events() {
		if postID == "" || e.PostID == postID {
			out = append(out, e.Kind)
		}
	}
	return out
}
