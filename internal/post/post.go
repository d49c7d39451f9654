package post

import "time"

// Status is the publication status of a post.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusPublished, StatusFailed:
		return true
	}
	return false
}

// Platform identifies a social network a post is published to.
type Platform string

const (
	PlatformTwitter   Platform = "twitter"
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
	PlatformThreads   Platform = "threads"
	PlatformBluesky   Platform = "bluesky"
)

// KnownPlatforms returns every supported platform in display order.
func KnownPlatforms() []Platform {
	return []Platform{
		PlatformTwitter, PlatformInstagram, PlatformFacebook, PlatformLinkedIn,
		PlatformTikTok, PlatformYouTube, PlatformThreads, PlatformBluesky,
	}
}

// IsKnownPlatform checks if p (already normalized) is supported.
func IsKnownPlatform(p Platform) bool {
	for _, known := range KnownPlatforms() {
		if known == p {
			return true
		}
	}
	return false
}

// Post is a piece of content scheduled for one or more platforms.
// Posts are owned by the post store; the engine treats them as read-only
// input for a read cycle.
type Post struct {
	// ID is a ULID assigned by the store
	ID string `json:"id"`

	Title   string `json:"title"`
	Content string `json:"content"`

	// Platforms is never empty for a stored post
	Platforms []Platform `json:"platforms"`

	// ScheduledDate is an absolute instant, UTC on the wire
	ScheduledDate time.Time `json:"scheduled_date"`

	Status Status   `json:"status"`
	Tags   []string `json:"tags,omitempty"`

	// AllDay marks a post that occupies its whole calendar day
	AllDay bool `json:"all_day,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPlatform reports whether the post targets platform p.
func (p *Post) HasPlatform(platform Platform) bool {
	for _, x := range p.Platforms {
		if x == platform {
			return true
		}
	}
	return false
}

// CreateRequest carries the fields of a new post.
type CreateRequest struct {
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Platforms     []Platform `json:"platforms"`
	ScheduledDate time.Time  `json:"scheduled_date"`
	Status        Status     `json:"status,omitempty"` // default: draft
	Tags          []string   `json:"tags,omitempty"`
	AllDay        bool       `json:"all_day,omitempty"`
}

// UpdateRequest carries a partial update. Nil fields are left unchanged.
type UpdateRequest struct {
	Title         *string     `json:"title,omitempty"`
	Content       *string     `json:"content,omitempty"`
	Platforms     *[]Platform `json:"platforms,omitempty"`
	ScheduledDate *time.Time  `json:"scheduled_date,omitempty"`
	Status        *Status     `json:"status,omitempty"`
	Tags          *[]string   `json:"tags,omitempty"`
	AllDay        *bool       `json:"all_day,omitempty"`
}

// Empty reports whether the request changes nothing.
func (r UpdateRequest) Empty() bool {
	return r.Title == nil && r.Content == nil && r.Platforms == nil &&
		r.ScheduledDate == nil && r.Status == nil && r.Tags == nil && r.AllDay == nil
}

// Apply copies the non-nil fields of r onto p.
func (r UpdateRequest) Apply(p *Post) {
	if r.Title != nil {
		p.Title = *r.Title
	}
	if r.Content != nil {
		p.Content = *r.Content
	}
	if r.Platforms != nil {
		p.Platforms = *r.Platforms
	}
	if r.ScheduledDate != nil {
		p.ScheduledDate = r.ScheduledDate.UTC()
	}
	if r.Status != nil {
		p.Status = *r.Status
	}
	if r.Tags != nil {
		p.Tags = *r.Tags
	}
	if r.AllDay != nil {
		p.AllDay = *r.AllDay
	}
}
