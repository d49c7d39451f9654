package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/cadence/internal/calendar"
	"github.com/hpungsan/cadence/internal/errors"
	"github.com/hpungsan/cadence/internal/ops"
	"github.com/hpungsan/cadence/internal/post"
	"github.com/hpungsan/cadence/internal/recommend"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	coord *ops.Coordinator
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(coord *ops.Coordinator) *Handlers {
	return &Handlers{coord: coord}
}

// Request types for each tool

// FilterArgs are the filter arguments shared by calendar tools.
type FilterArgs struct {
	Platforms []post.Platform `json:"platforms,omitempty"`
	Status    []post.Status   `json:"status,omitempty"`
	Tags      []string        `json:"tags,omitempty"`
	From      *time.Time      `json:"from,omitempty"`
	To        *time.Time      `json:"to,omitempty"`
	Query     string          `json:"query,omitempty"`
}

// Filter converts the arguments to a calendar filter.
func (a FilterArgs) Filter() calendar.Filter {
	f := calendar.Filter{
		Platforms:  a.Platforms,
		Status:     a.Status,
		Tags:       a.Tags,
		SearchTerm: a.Query,
	}
	if a.From != nil || a.To != nil {
		f.DateRange = &calendar.DateRange{}
		if a.From != nil {
			f.DateRange.Start = *a.From
		}
		if a.To != nil {
			f.DateRange.End = *a.To
		}
	}
	return f
}

// DensityRequest represents the arguments for calendar_density.
type DensityRequest struct {
	FilterArgs
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`
}

// BestTimeRequest represents the arguments for calendar_besttime.
type BestTimeRequest struct {
	Platform post.Platform `json:"platform"`
	Day      *Weekday      `json:"day,omitempty"`
	Limit    int           `json:"limit,omitempty"`
}

// BestTimeOutput is the result of calendar_besttime.
type BestTimeOutput struct {
	Recommendation *recommend.Recommendation  `json:"recommendation"`
	Ranked         []recommend.Recommendation `json:"ranked,omitempty"`
}

// WindowsRequest represents the arguments for calendar_windows.
type WindowsRequest struct {
	Platform post.Platform `json:"platform,omitempty"`
	From     *time.Time    `json:"from,omitempty"`
	Until    *time.Time    `json:"until,omitempty"`
}

// WindowsOutput is the result of calendar_windows.
type WindowsOutput struct {
	Windows []recommend.Window `json:"windows"`
}

// UpdateRequest represents the arguments for post_update.
type UpdateRequest struct {
	ID string `json:"id"`
	post.UpdateRequest
}

// RescheduleRequest represents the arguments for post_reschedule.
type RescheduleRequest struct {
	ID            string    `json:"id"`
	ScheduledDate time.Time `json:"scheduled_date"`
}

// DeleteRequest represents the arguments for post_delete.
type DeleteRequest struct {
	ID string `json:"id"`
}

// DeleteOutput is the result of post_delete.
type DeleteOutput struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// Weekday accepts a day as 0-6 or as a day name.
type Weekday time.Weekday

// UnmarshalJSON implements json.Unmarshaler.
func (d *Weekday) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		if n < 0 || n > 6 {
			return fmt.Errorf("day must be 0-6 (got %d)", n)
		}
		*d = Weekday(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("day must be a number or a day name")
	}
	wd, err := recommend.ParseWeekday(s)
	if err != nil {
		return err
	}
	*d = Weekday(wd)
	return nil
}

func (d *Weekday) weekday() *time.Weekday {
	if d == nil {
		return nil
	}
	wd := time.Weekday(*d)
	return &wd
}

// HandleEvents handles the calendar_events tool.
func (h *Handlers) HandleEvents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FilterArgs](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.coord.GetEvents(ctx, ops.Request{}, input.Filter())
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDensity handles the calendar_density tool.
func (h *Handlers) HandleDensity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DensityRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	now := h.coord.Now().In(h.coord.Location())
	if input.Year == 0 {
		input.Year = now.Year()
	}
	if input.Month == 0 {
		input.Month = int(now.Month())
	}

	result, err := h.coord.GetDensity(ctx, ops.Request{}, input.Year, time.Month(input.Month), input.Filter())
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleBestTime handles the calendar_besttime tool.
func (h *Handlers) HandleBestTime(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BestTimeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	day := input.Day.weekday()
	best, err := h.coord.GetBestTime(ctx, ops.Request{}, input.Platform, day)
	if err != nil {
		return errorResult(err), nil
	}
	out := BestTimeOutput{Recommendation: best}
	if input.Limit > 0 {
		out.Ranked, err = h.coord.RankBestTimes(ctx, ops.Request{}, input.Platform, day, input.Limit)
		if err != nil {
			return errorResult(err), nil
		}
	}

	return successResult(out)
}

// HandleWindows handles the calendar_windows tool.
func (h *Handlers) HandleWindows(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WindowsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var from, until time.Time
	if input.From != nil {
		from = *input.From
	}
	if input.Until != nil {
		until = *input.Until
	}
	windows, err := h.coord.UpcomingWindows(ctx, ops.Request{}, input.Platform, from, until)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(WindowsOutput{Windows: windows})
}

// HandleCreate handles the post_create tool.
func (h *Handlers) HandleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[post.CreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.coord.CreatePost(ctx, ops.Request{}, input)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleUpdate handles the post_update tool.
func (h *Handlers) HandleUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.coord.UpdatePost(ctx, ops.Request{}, input.ID, input.UpdateRequest)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleReschedule handles the post_reschedule tool.
func (h *Handlers) HandleReschedule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RescheduleRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.coord.ReschedulePost(ctx, ops.Request{}, input.ID, input.ScheduledDate)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDelete handles the post_delete tool.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if err := h.coord.DeletePost(ctx, ops.Request{}, input.ID); err != nil {
		return errorResult(err), nil
	}

	return successResult(DeleteOutput{ID: input.ID, Deleted: true})
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if ce, ok := errors.As(err); ok {
		errorObj := map[string]any{
			"code":    ce.Code,
			"message": ce.Message,
			"status":  ce.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if ce.Code != errors.ErrInternal && ce.Details != nil {
			errorObj["details"] = ce.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
