package recommend

import (
	"fmt"
	"slices"
	"time"

	"github.com/hpungsan/cadence/internal/errors"
	"github.com/hpungsan/cadence/internal/post"
)

// Confidence grades how much history backs a recommendation.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Sample-size thresholds used when confidence is not supplied.
const (
	HighConfidenceSamples   = 50
	MediumConfidenceSamples = 10
)

// Recommendation is an externally computed engagement figure for posting on
// a platform at a time of day on a weekday. Several may exist for the same
// platform and day; ranking happens at query time.
type Recommendation struct {
	Platform        post.Platform `json:"platform"`
	DayOfWeek       time.Weekday  `json:"day_of_week"` // 0 = Sunday
	TimeOfDay       string        `json:"time_of_day"` // HH:MM
	EngagementScore float64       `json:"engagement_score"`
	Confidence      Confidence    `json:"confidence"`
	SampleSize      int           `json:"sample_size,omitempty"`
}

// ConfidenceFor derives a confidence grade from a sample size.
func ConfidenceFor(samples int) Confidence {
	switch {
	case samples >= HighConfidenceSamples:
		return ConfidenceHigh
	case samples >= MediumConfidenceSamples:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Validate normalizes r in place and checks its ranges.
func (r *Recommendation) Validate() error {
	r.Platform = post.NormalizePlatform(r.Platform)
	if r.Platform == "" {
		return errors.NewValidation("platform", "platform is required")
	}
	if r.DayOfWeek < time.Sunday || r.DayOfWeek > time.Saturday {
		return errors.NewValidation("day_of_week", fmt.Sprintf("day_of_week must be 0-6 (got %d)", r.DayOfWeek))
	}
	clock, err := ParseClock(r.TimeOfDay)
	if err != nil {
		return errors.NewValidation("time_of_day", err.Error())
	}
	r.TimeOfDay = clock.String()
	if r.EngagementScore < 0 || r.EngagementScore > 100 {
		return errors.NewValidation("engagement_score", fmt.Sprintf("engagement_score must be 0-100 (got %g)", r.EngagementScore))
	}
	switch r.Confidence {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
	case "":
		r.Confidence = ConfidenceFor(r.SampleSize)
	default:
		return errors.NewValidation("confidence", fmt.Sprintf("confidence must be one of: high, medium, low (got %q)", r.Confidence))
	}
	return nil
}

// Best returns the highest-scoring candidate for platform, restricted to day
// when day is non-nil. Ties go to the first candidate encountered. A nil
// result means no recommendation is available; it is not an error.
func Best(candidates []Recommendation, platform post.Platform, day *time.Weekday) *Recommendation {
	platform = post.NormalizePlatform(platform)
	var best *Recommendation
	for i := range candidates {
		c := &candidates[i]
		if !eligible(c, platform, day) {
			continue
		}
		if best == nil || c.EngagementScore > best.EngagementScore {
			best = c
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

// Rank returns the eligible candidates ordered by score, highest first.
// Equal scores keep input order. A limit of zero or less returns all.
func Rank(candidates []Recommendation, platform post.Platform, day *time.Weekday, limit int) []Recommendation {
	platform = post.NormalizePlatform(platform)
	out := make([]Recommendation, 0, len(candidates))
	for i := range candidates {
		if eligible(&candidates[i], platform, day) {
			out = append(out, candidates[i])
		}
	}
	slices.SortStableFunc(out, func(a, b Recommendation) int {
		switch {
		case a.EngagementScore > b.EngagementScore:
			return -1
		case a.EngagementScore < b.EngagementScore:
			return 1
		}
		return 0
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func eligible(c *Recommendation, platform post.Platform, day *time.Weekday) bool {
	if post.NormalizePlatform(c.Platform) != platform {
		return false
	}
	return day == nil || c.DayOfWeek == *day
}
