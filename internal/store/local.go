package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/cadence/internal/calendar"
	"github.com/hpungsan/cadence/internal/db"
	"github.com/hpungsan/cadence/internal/errors"
	"github.com/hpungsan/cadence/internal/post"
	"github.com/hpungsan/cadence/internal/recommend"
)

// Local is a PostStore over a sqlite database opened with db.Init.
// Credentials are not checked; the HTTP layer in front of it does that.
type Local struct {
	db       *sql.DB
	maxChars int
	now      func() time.Time
}

// LocalOption configures a Local store.
type LocalOption func(*Local)

// WithMaxChars bounds post content. Zero disables the check.
func WithMaxChars(n int) LocalOption {
	return func(l *Local) { l.maxChars = n }
}

// WithClock replaces time.Now for created/updated timestamps.
func WithClock(now func() time.Time) LocalOption {
	return func(l *Local) { l.now = now }
}

// NewLocal returns a store over database.
func NewLocal(database *sql.DB, opts ...LocalOption) *Local {
	l := &Local{db: database, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ PostStore = (*Local)(nil)

// List pushes platform, status, tag and date constraints into SQL. The
// search term is matched against the title and the plain text of the
// content.
func (l *Local) List(ctx context.Context, _ Credentials, filter calendar.Filter) ([]post.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	f := filter.Normalized()

	params := db.ListParams{Tags: f.Tags}
	for _, p := range f.Platforms {
		params.Platforms = append(params.Platforms, string(p))
	}
	for _, s := range f.Status {
		params.Statuses = append(params.Statuses, string(s))
	}
	if f.DateRange != nil {
		params.From, params.To = f.DateRange.Start, f.DateRange.End
	}

	posts, err := db.ListPosts(l.db, params)
	if err != nil {
		return nil, err
	}
	if f.SearchTerm == "" {
		return posts, nil
	}

	term := strings.ToLower(f.SearchTerm)
	matched := posts[:0]
	for _, p := range posts {
		haystack := strings.ToLower(p.Title + " " + post.PlainText(p.Content))
		if strings.Contains(haystack, term) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// Get fetches one post.
func (l *Local) Get(ctx context.Context, _ Credentials, id string) (*post.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return db.GetPost(l.db, id)
}

// Create validates req and stores a new post with a fresh ULID.
func (l *Local) Create(ctx context.Context, _ Credentials, req post.CreateRequest) (*post.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := post.ValidateCreate(&req, l.maxChars); err != nil {
		return nil, err
	}

	id, err := generateULID(l.now())
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	now := l.now().UTC()
	p := &post.Post{
		ID:            id,
		Title:         req.Title,
		Content:       req.Content,
		Platforms:     req.Platforms,
		ScheduledDate: req.ScheduledDate,
		Status:        req.Status,
		Tags:          req.Tags,
		AllDay:        req.AllDay,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := db.InsertPost(l.db, p); err != nil {
		return nil, err
	}
	return db.GetPost(l.db, id)
}

// Update applies the non-nil fields of req.
func (l *Local) Update(ctx context.Context, _ Credentials, id string, req post.UpdateRequest) (*post.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := post.ValidateUpdate(&req, l.maxChars); err != nil {
		return nil, err
	}
	return l.modify(id, req.Apply)
}

// Reschedule moves a post to at. Whether at is acceptable is the caller's
// decision.
func (l *Local) Reschedule(ctx context.Context, _ Credentials, id string, at time.Time) (*post.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if at.IsZero() {
		return nil, errors.NewValidation("scheduled_date", "scheduled_date is required")
	}
	return l.modify(id, func(p *post.Post) { p.ScheduledDate = at.UTC() })
}

// Delete removes a post.
func (l *Local) Delete(ctx context.Context, _ Credentials, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.DeletePost(l.db, id)
}

// Recommendations lists recommendations for platform, all when empty.
func (l *Local) Recommendations(ctx context.Context, _ Credentials, platform post.Platform) ([]recommend.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return db.ListRecommendations(l.db, string(post.NormalizePlatform(platform)))
}

// ImportRecommendations validates every row before replacing the stored
// rows of the platforms present in recs.
func (l *Local) ImportRecommendations(ctx context.Context, _ Credentials, recs []recommend.Recommendation) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
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
	if err := db.ReplaceRecommendations(l.db, clean, l.now()); err != nil {
		return 0, err
	}
	return len(clean), nil
}

// TimeSlots lists slots for platform, all when empty.
func (l *Local) TimeSlots(ctx context.Context, _ Credentials, platform post.Platform) ([]recommend.TimeSlot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return db.ListTimeSlots(l.db, string(post.NormalizePlatform(platform)))
}

// SaveTimeSlot validates and upserts slot.
func (l *Local) SaveTimeSlot(ctx context.Context, _ Credentials, slot recommend.TimeSlot) (*recommend.TimeSlot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := slot.Validate(); err != nil {
		return nil, err
	}
	if err := db.UpsertTimeSlot(l.db, &slot); err != nil {
		return nil, err
	}
	return db.GetTimeSlot(l.db, slot.ID)
}

// SetTimeSlotActive toggles a slot.
func (l *Local) SetTimeSlotActive(ctx context.Context, _ Credentials, id string, active bool) (*recommend.TimeSlot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := db.SetTimeSlotActive(l.db, id, active); err != nil {
		return nil, err
	}
	return db.GetTimeSlot(l.db, id)
}

func (l *Local) modify(id string, change func(*post.Post)) (*post.Post, error) {
	p, err := db.GetPost(l.db, id)
	if err != nil {
		return nil, err
	}
	change(p)
	p.UpdatedAt = l.now().UTC()
	if err := db.UpdatePost(l.db, p); err != nil {
		return nil, err
	}
	return db.GetPost(l.db, id)
}

// generateULID creates a new ULID using crypto/rand entropy.
func generateULID(at time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(at), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
