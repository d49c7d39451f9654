package mcp

import "github.com/mark3labs/mcp-go/mcp"

// Shared filter arguments for calendar tools.
var filterOptions = []mcp.ToolOption{
	mcp.WithArray("platforms", mcp.Description("Only events targeting any of these platforms"), mcp.WithStringItems()),
	mcp.WithArray("status", mcp.Description("Only events with one of these statuses (draft, scheduled, published, failed)"), mcp.WithStringItems()),
	mcp.WithArray("tags", mcp.Description("Only events carrying any of these tags"), mcp.WithStringItems()),
	mcp.WithString("from", mcp.Description("Earliest event start, RFC3339")),
	mcp.WithString("to", mcp.Description("Latest event start, RFC3339")),
	mcp.WithString("query", mcp.Description("Case-insensitive text matched against title and content")),
}

func withFilter(opts ...mcp.ToolOption) []mcp.ToolOption {
	return append(opts, filterOptions...)
}

var eventsToolDef = mcp.NewTool("calendar_events", withFilter(
	mcp.WithDescription("List calendar events projected from scheduled posts. The result says whether it is live, cached, or a degraded last-known-good snapshot."),
	mcp.WithReadOnlyHintAnnotation(true),
)...)

var densityToolDef = mcp.NewTool("calendar_density", withFilter(
	mcp.WithDescription("Per-day event counts and same-platform scheduling conflicts for one month in the display timezone."),
	mcp.WithNumber("year", mcp.Description("Calendar year; defaults to the current year")),
	mcp.WithNumber("month", mcp.Description("Month 1-12; defaults to the current month")),
	mcp.WithReadOnlyHintAnnotation(true),
)...)

var bestTimeToolDef = mcp.NewTool("calendar_besttime",
	mcp.WithDescription("Best time to post on a platform according to imported engagement recommendations. A null recommendation means none is available."),
	mcp.WithString("platform", mcp.Required(), mcp.Description("Platform name, e.g. twitter")),
	mcp.WithString("day", mcp.Description("Day of week: 0-6 (0 = Sunday) or a day name")),
	mcp.WithNumber("limit", mcp.Description("Also return up to this many ranked alternatives")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var windowsToolDef = mcp.NewTool("calendar_windows",
	mcp.WithDescription("Upcoming posting windows expanded from active weekly time slots."),
	mcp.WithString("platform", mcp.Description("Only windows for this platform")),
	mcp.WithString("from", mcp.Description("Start of the search, RFC3339; defaults to now")),
	mcp.WithString("until", mcp.Description("End of the search, RFC3339; defaults to one week after from")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var createToolDef = mcp.NewTool("post_create",
	mcp.WithDescription("Create a post. Derived calendar views are refreshed after the store accepts it."),
	mcp.WithString("title", mcp.Required(), mcp.Description("Post title")),
	mcp.WithString("content", mcp.Required(), mcp.Description("Post body (markdown)")),
	mcp.WithArray("platforms", mcp.Required(), mcp.Description("Target platforms"), mcp.WithStringItems()),
	mcp.WithString("scheduled_date", mcp.Required(), mcp.Description("Publication instant, RFC3339")),
	mcp.WithString("status", mcp.Description("draft (default), scheduled, published or failed")),
	mcp.WithArray("tags", mcp.Description("Free-form tags"), mcp.WithStringItems()),
	mcp.WithBoolean("all_day", mcp.Description("Occupy the whole calendar day")),
)

var updateToolDef = mcp.NewTool("post_update",
	mcp.WithDescription("Change fields of a post. Omitted fields are left unchanged."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Post id")),
	mcp.WithString("title", mcp.Description("New title")),
	mcp.WithString("content", mcp.Description("New body")),
	mcp.WithArray("platforms", mcp.Description("Replacement platform list"), mcp.WithStringItems()),
	mcp.WithString("scheduled_date", mcp.Description("New publication instant, RFC3339; must not be in the past")),
	mcp.WithString("status", mcp.Description("New status")),
	mcp.WithArray("tags", mcp.Description("Replacement tag list"), mcp.WithStringItems()),
	mcp.WithBoolean("all_day", mcp.Description("Occupy the whole calendar day")),
)

var rescheduleToolDef = mcp.NewTool("post_reschedule",
	mcp.WithDescription("Move a post to a new start time. Times in the past are rejected."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Post id")),
	mcp.WithString("scheduled_date", mcp.Required(), mcp.Description("New publication instant, RFC3339")),
)

var deleteToolDef = mcp.NewTool("post_delete",
	mcp.WithDescription("Permanently delete a post."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Post id")),
	mcp.WithDestructiveHintAnnotation(true),
)
