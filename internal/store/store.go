// Package store defines the post-store contract the scheduling coordinator
// talks to and a local implementation backed by sqlite.
package store

import (
	"context"
	"time"

	"github.com/hpungsan/cadence/internal/calendar"
	"github.com/hpungsan/cadence/internal/post"
	"github.com/hpungsan/cadence/internal/recommend"
)

// Credentials identify the caller to the store. They are passed explicitly
// on every call.
type Credentials struct {
	Token string
}

// PostStore is the request/response service that owns posts,
// recommendations and time slots.
//
// List may return a superset of the posts matching the filter; callers apply
// the filter again after projection.
type PostStore interface {
	List(ctx context.Context, creds Credentials, filter calendar.Filter) ([]post.Post, error)
	Get(ctx context.Context, creds Credentials, id string) (*post.Post, error)
	Create(ctx context.Context, creds Credentials, req post.CreateRequest) (*post.Post, error)
	Update(ctx context.Context, creds Credentials, id string, req post.UpdateRequest) (*post.Post, error)
	Reschedule(ctx context.Context, creds Credentials, id string, at time.Time) (*post.Post, error)
	Delete(ctx context.Context, creds Credentials, id string) error

	Recommendations(ctx context.Context, creds Credentials, platform post.Platform) ([]recommend.Recommendation, error)
	ImportRecommendations(ctx context.Context, creds Credentials, recs []recommend.Recommendation) (int, error)

	TimeSlots(ctx context.Context, creds Credentials, platform post.Platform) ([]recommend.TimeSlot, error)
	SaveTimeSlot(ctx context.Context, creds Credentials, slot recommend.TimeSlot) (*recommend.TimeSlot, error)
	SetTimeSlotActive(ctx context.Context, creds Credentials, id string, active bool) (*recommend.TimeSlot, error)
}
