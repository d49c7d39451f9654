package post

import (
	"fmt"
	"strings"

	"github.com/hpungsan/cadence/internal/errors"
)

// ValidateCreate normalizes req in place and checks it.
// An empty status defaults to draft.
func ValidateCreate(req *CreateRequest, maxChars int) error {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return errors.NewValidation("title", "title is required")
	}
	if err := checkContent(req.Content, maxChars); err != nil {
		return err
	}

	platforms, err := checkPlatforms(req.Platforms)
	if err != nil {
		return err
	}
	req.Platforms = platforms

	if req.ScheduledDate.IsZero() {
		return errors.NewValidation("scheduled_date", "scheduled_date is required")
	}
	req.ScheduledDate = req.ScheduledDate.UTC()

	if req.Status == "" {
		req.Status = StatusDraft
	}
	if !req.Status.Valid() {
		return invalidStatus(req.Status)
	}

	req.Tags = NormalizeTags(req.Tags)
	return nil
}

// ValidateUpdate normalizes req in place and checks it.
func ValidateUpdate(req *UpdateRequest, maxChars int) error {
	if req.Empty() {
		return errors.NewInvalidRequest("at least one editable field must be provided")
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return errors.NewValidation("title", "title must not be empty")
		}
		req.Title = &title
	}
	if req.Content != nil {
		if err := checkContent(*req.Content, maxChars); err != nil {
			return err
		}
	}
	if req.Platforms != nil {
		platforms, err := checkPlatforms(*req.Platforms)
		if err != nil {
			return err
		}
		req.Platforms = &platforms
	}
	if req.ScheduledDate != nil {
		if req.ScheduledDate.IsZero() {
			return errors.NewValidation("scheduled_date", "scheduled_date must not be zero")
		}
		at := req.ScheduledDate.UTC()
		req.ScheduledDate = &at
	}
	if req.Status != nil && !req.Status.Valid() {
		return invalidStatus(*req.Status)
	}
	if req.Tags != nil {
		tags := NormalizeTags(*req.Tags)
		req.Tags = &tags
	}
	return nil
}

func checkContent(content string, maxChars int) error {
	if maxChars > 0 {
		if n := CountChars(content); n > maxChars {
			err := errors.NewValidation("content", fmt.Sprintf("content exceeds maximum size: %d chars (max %d)", n, maxChars))
			err.Details["max_chars"] = maxChars
			err.Details["actual_chars"] = n
			return err
		}
	}
	return nil
}

func checkPlatforms(in []Platform) ([]Platform, error) {
	platforms := NormalizePlatforms(in)
	if len(platforms) == 0 {
		return nil, errors.NewValidation("platforms", "at least one platform is required")
	}
	for _, p := range platforms {
		if !IsKnownPlatform(p) {
			return nil, errors.NewValidation("platforms", fmt.Sprintf("unknown platform %q", p))
		}
	}
	return platforms, nil
}

func invalidStatus(s Status) error {
	return errors.NewValidation("status", fmt.Sprintf("status must be one of: draft, scheduled, published, failed (got %q)", s))
}
