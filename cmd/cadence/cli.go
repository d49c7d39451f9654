package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/cadence/internal/calendar"
	"github.com/hpungsan/cadence/internal/errors"
	"github.com/hpungsan/cadence/internal/mcp"
	"github.com/hpungsan/cadence/internal/ops"
	"github.com/hpungsan/cadence/internal/post"
	"github.com/hpungsan/cadence/internal/recommend"
	"github.com/hpungsan/cadence/internal/web"
)

// newCLIApp creates the CLI application. rt may be nil for --help/--version.
func newCLIApp(rt *runtime) *cli.App {
	return &cli.App{
		Name:    "cadence",
		Usage:   "Content calendar and scheduling engine",
		Version: Version,
		// Prevent urfave/cli from calling os.Exit on errors
		ExitErrHandler: func(_ *cli.Context, _ error) {},
		Commands: []*cli.Command{
			serveCmd(rt),
			mcpCmd(rt),
			eventsCmd(rt),
			densityCmd(rt),
			besttimeCmd(rt),
			windowsCmd(rt),
			createCmd(rt),
			updateCmd(rt),
			rescheduleCmd(rt),
			deleteCmd(rt),
			slotsCmd(rt),
			importRecsCmd(rt),
			exportCmd(rt),
		},
	}
}

func serveCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Address to bind (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port to listen on (default from config)"},
		},
		Action: func(c *cli.Context) error {
			bind := rt.cfg.HTTPBind
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			port := rt.cfg.HTTPPort
			if c.IsSet("port") {
				port = c.Int("port")
			}
			handler := web.NewHandler(rt.coord, rt.store, rt.cfg, rt.log)
			return web.Run(web.NewServer(handler, bind, port), rt.log)
		},
	}
}

func mcpCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server on stdio",
		Action: func(c *cli.Context) error {
			warnUnknownDisabled(rt.cfg, rt.log)
			return mcp.Run(rt.coord, rt.cfg, Version)
		},
	}
}

// filterFlags are shared by the calendar read commands.
func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{Name: "platform", Usage: "Filter by platform (repeatable or comma-separated)"},
		&cli.StringSliceFlag{Name: "status", Usage: "Filter by status"},
		&cli.StringSliceFlag{Name: "tag", Usage: "Filter by tag"},
		&cli.StringFlag{Name: "from", Usage: "Range start (RFC3339)"},
		&cli.StringFlag{Name: "to", Usage: "Range end (RFC3339)"},
		&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Search title and content"},
	}
}

// filterFromFlags reads filterFlags through the same parser the HTTP API uses.
func filterFromFlags(c *cli.Context) (calendar.Filter, error) {
	v := url.Values{}
	v[calendar.ParamPlatform] = c.StringSlice("platform")
	v[calendar.ParamStatus] = c.StringSlice("status")
	v[calendar.ParamTag] = c.StringSlice("tag")
	if s := c.String("from"); s != "" {
		v.Set(calendar.ParamFrom, s)
	}
	if s := c.String("to"); s != "" {
		v.Set(calendar.ParamTo, s)
	}
	if s := c.String("query"); s != "" {
		v.Set(calendar.ParamSearch, s)
	}
	return calendar.ParseQuery(v)
}

func eventsCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "List calendar events",
		Flags: filterFlags(),
		Action: func(c *cli.Context) error {
			filter, err := filterFromFlags(c)
			if err != nil {
				return outputError(err)
			}
			res, err := rt.coord.GetEvents(c.Context, ops.Request{}, filter)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, res)
		},
	}
}

func densityCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "density",
		Usage: "Show per-day post counts and conflicts for a month",
		Flags: append(filterFlags(),
			&cli.IntFlag{Name: "year", Usage: "Year (default: current)"},
			&cli.IntFlag{Name: "month", Usage: "Month 1-12 (default: current)"},
		),
		Action: func(c *cli.Context) error {
			filter, err := filterFromFlags(c)
			if err != nil {
				return outputError(err)
			}
			now := rt.coord.Now().In(rt.coord.Location())
			year, month := now.Year(), now.Month()
			if c.IsSet("year") {
				year = c.Int("year")
			}
			if c.IsSet("month") {
				month = time.Month(c.Int("month"))
			}
			res, err := rt.coord.GetDensity(c.Context, ops.Request{}, year, month, filter)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, res)
		},
	}
}

func besttimeCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "besttime",
		Usage: "Recommend the best time to post",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "platform", Required: true, Usage: "Platform"},
			&cli.StringFlag{Name: "day", Usage: "Weekday (0-6 or name)"},
			&cli.IntFlag{Name: "limit", Usage: "Also list the top N recommendations"},
		},
		Action: func(c *cli.Context) error {
			platform := post.Platform(c.String("platform"))
			var day *time.Weekday
			if s := c.String("day"); s != "" {
				d, err := recommend.ParseWeekday(s)
				if err != nil {
					return outputError(errors.NewValidation("day", err.Error()))
				}
				day = &d
			}

			best, err := rt.coord.GetBestTime(c.Context, ops.Request{}, platform, day)
			if err != nil {
				return outputError(err)
			}
			out := web.BestTimeResult{Recommendation: best}
			if limit := c.Int("limit"); limit > 0 {
				out.Ranked, err = rt.coord.RankBestTimes(c.Context, ops.Request{}, platform, day, limit)
				if err != nil {
					return outputError(err)
				}
			}
			return outputJSON(c, out)
		},
	}
}

func windowsCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "windows",
		Usage: "List upcoming posting windows from active time slots",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "platform", Usage: "Platform (default: all)"},
			&cli.StringFlag{Name: "from", Usage: "Start (RFC3339, default: now)"},
			&cli.StringFlag{Name: "until", Usage: "End (RFC3339, default: one week after start)"},
		},
		Action: func(c *cli.Context) error {
			from, err := parseTime("from", c.String("from"))
			if err != nil {
				return outputError(err)
			}
			until, err := parseTime("until", c.String("until"))
			if err != nil {
				return outputError(err)
			}
			windows, err := rt.coord.UpcomingWindows(c.Context, ops.Request{}, post.Platform(c.String("platform")), from, until)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, web.WindowList{Windows: windows})
		},
	}
}

func createCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a post (content from --content or stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Required: true, Usage: "Post title"},
			&cli.StringFlag{Name: "content", Aliases: []string{"c"}, Usage: "Markdown content"},
			&cli.StringSliceFlag{Name: "platform", Required: true, Usage: "Target platform (repeatable or comma-separated)"},
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Required: true, Usage: "Scheduled date (RFC3339)"},
			&cli.StringFlag{Name: "status", Usage: "draft, scheduled or published (default: draft)"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
			&cli.BoolFlag{Name: "all-day", Usage: "Occupy the whole day"},
		},
		Action: func(c *cli.Context) error {
			date, err := parseTime("scheduled_date", c.String("date"))
			if err != nil {
				return outputError(err)
			}
			content, err := contentArg(c)
			if err != nil {
				return outputError(err)
			}

			in := post.CreateRequest{
				Title:         c.String("title"),
				Content:       content,
				Platforms:     parsePlatforms(c.StringSlice("platform")),
				ScheduledDate: date,
				Status:        post.Status(c.String("status")),
				Tags:          parseTags(c.String("tags")),
				AllDay:        c.Bool("all-day"),
			}
			p, err := rt.coord.CreatePost(c.Context, ops.Request{}, in)
			if err != nil && !errors.Is(err, errors.ErrConsistency) {
				return outputError(err)
			}
			return outputMutation(c, p, err)
		},
	}
}

func updateCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Update fields of a post",
		ArgsUsage: "[--id] <id>",
		Flags: []cli.Flag{
			idFlag(),
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "New title"},
			&cli.StringFlag{Name: "content", Aliases: []string{"c"}, Usage: "New content ('-' reads stdin)"},
			&cli.StringSliceFlag{Name: "platform", Usage: "Replace platforms"},
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "New scheduled date (RFC3339)"},
			&cli.StringFlag{Name: "status", Usage: "New status"},
			&cli.StringFlag{Name: "tags", Usage: "Replace tags (comma-separated)"},
			&cli.BoolFlag{Name: "all-day", Usage: "Occupy the whole day"},
		},
		Action: func(c *cli.Context) error {
			id, err := idArg(c, "post", true)
			if err != nil {
				return outputError(err)
			}

			var in post.UpdateRequest
			if c.IsSet("title") {
				title := c.String("title")
				in.Title = &title
			}
			if c.IsSet("content") {
				content, err := contentArg(c)
				if err != nil {
					return outputError(err)
				}
				in.Content = &content
			}
			if c.IsSet("platform") {
				platforms := parsePlatforms(c.StringSlice("platform"))
				in.Platforms = &platforms
			}
			if c.IsSet("date") {
				date, err := parseTime("scheduled_date", c.String("date"))
				if err != nil {
					return outputError(err)
				}
				in.ScheduledDate = &date
			}
			if c.IsSet("status") {
				status := post.Status(c.String("status"))
				in.Status = &status
			}
			if c.IsSet("tags") {
				tags := parseTags(c.String("tags"))
				in.Tags = &tags
			}
			if c.IsSet("all-day") {
				allDay := c.Bool("all-day")
				in.AllDay = &allDay
			}

			p, err := rt.coord.UpdatePost(c.Context, ops.Request{}, id, in)
			if err != nil && !errors.Is(err, errors.ErrConsistency) {
				return outputError(err)
			}
			return outputMutation(c, p, err)
		},
	}
}

func rescheduleCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "reschedule",
		Usage:     "Move a post to a new date",
		ArgsUsage: "[--id] <id>",
		Flags: []cli.Flag{
			idFlag(),
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "New scheduled date (RFC3339, required)"},
		},
		Action: func(c *cli.Context) error {
			id, err := idArg(c, "post", true)
			if err != nil {
				return outputError(err)
			}
			if err := requireFlags(c, "date"); err != nil {
				return outputError(err)
			}
			date, err := parseTime("scheduled_date", c.String("date"))
			if err != nil {
				return outputError(err)
			}
			p, err := rt.coord.ReschedulePost(c.Context, ops.Request{}, id, date)
			if err != nil && !errors.Is(err, errors.ErrConsistency) {
				return outputError(err)
			}
			return outputMutation(c, p, err)
		},
	}
}

func deleteCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a post",
		ArgsUsage: "[--id] <id>",
		Flags:     []cli.Flag{idFlag()},
		Action: func(c *cli.Context) error {
			id, err := idArg(c, "post", true)
			if err != nil {
				return outputError(err)
			}
			err = rt.coord.DeletePost(c.Context, ops.Request{}, id)
			if err != nil && !errors.Is(err, errors.ErrConsistency) {
				return outputError(err)
			}
			if err != nil {
				fmt.Fprintf(c.App.ErrWriter, "warning: %v\n", err)
			}
			return outputJSON(c, web.DeleteResult{ID: id, Deleted: true})
		},
	}
}

func slotsCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "slots",
		Usage: "Manage recurring posting time slots",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List time slots",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "platform", Usage: "Platform (default: all)"},
				},
				Action: func(c *cli.Context) error {
					slots, err := rt.coord.TimeSlots(c.Context, ops.Request{}, post.Platform(c.String("platform")))
					if err != nil {
						return outputError(err)
					}
					if slots == nil {
						slots = []recommend.TimeSlot{}
					}
					return outputJSON(c, web.SlotList{Slots: slots})
				},
			},
			{
				Name:      "save",
				Usage:     "Create or replace a time slot",
				ArgsUsage: "[--id] [id]",
				Flags: []cli.Flag{
					idFlag(),
					&cli.StringFlag{Name: "platform", Usage: "Platform (required)"},
					&cli.StringFlag{Name: "day", Usage: "Weekday, 0-6 or name (required)"},
					&cli.StringFlag{Name: "start", Usage: "Start time HH:MM (required)"},
					&cli.StringFlag{Name: "end", Usage: "End time HH:MM (required)"},
					&cli.BoolFlag{Name: "inactive", Usage: "Save the slot switched off"},
				},
				Action: func(c *cli.Context) error {
					id, err := idArg(c, "slot", false)
					if err != nil {
						return outputError(err)
					}
					if err := requireFlags(c, "platform", "day", "start", "end"); err != nil {
						return outputError(err)
					}
					day, err := recommend.ParseWeekday(c.String("day"))
					if err != nil {
						return outputError(errors.NewValidation("day_of_week", err.Error()))
					}
					slot := recommend.TimeSlot{
						ID:        id,
						Platform:  post.Platform(c.String("platform")),
						DayOfWeek: day,
						StartTime: c.String("start"),
						EndTime:   c.String("end"),
						IsActive:  !c.Bool("inactive"),
					}
					saved, err := rt.coord.SaveTimeSlot(c.Context, ops.Request{}, slot)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, saved)
				},
			},
			slotToggleCmd(rt, "activate", true),
			slotToggleCmd(rt, "deactivate", false),
		},
	}
}

func slotToggleCmd(rt *runtime, name string, active bool) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     "Switch a time slot on or off",
		ArgsUsage: "[--id] <id>",
		Flags:     []cli.Flag{idFlag()},
		Action: func(c *cli.Context) error {
			id, err := idArg(c, "slot", true)
			if err != nil {
				return outputError(err)
			}
			slot, err := rt.coord.SetTimeSlotActive(c.Context, ops.Request{}, id, active)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, slot)
		},
	}
}

func importRecsCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "import-recs",
		Usage:     "Import engagement recommendations from a JSON file or stdin",
		ArgsUsage: "[file]",
		Action: func(c *cli.Context) error {
			var data []byte
			var err error
			if path := c.Args().First(); path != "" && path != "-" {
				data, err = os.ReadFile(path)
			} else {
				data, err = io.ReadAll(c.App.Reader)
			}
			if err != nil {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("read recommendations: %v", err)))
			}

			recs, err := parseRecommendations(data)
			if err != nil {
				return outputError(err)
			}
			n, err := rt.coord.ImportRecommendations(c.Context, ops.Request{}, recs)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, web.ImportResult{Imported: n})
		},
	}
}

func exportCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export calendar events as iCalendar",
		Flags: append(filterFlags(),
			&cli.StringFlag{Name: "name", Usage: "Calendar name"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write to an .ics file instead of stdout"},
		),
		Action: func(c *cli.Context) error {
			filter, err := filterFromFlags(c)
			if err != nil {
				return outputError(err)
			}
			if path := c.String("output"); path != "" {
				res, err := rt.coord.ExportICSFile(c.Context, ops.Request{}, filter, c.String("name"), path)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c, res)
			}

			doc, _, err := rt.coord.ExportICS(c.Context, ops.Request{}, filter, c.String("name"))
			if err != nil {
				return outputError(err)
			}
			_, err = io.WriteString(c.App.Writer, doc)
			return err
		},
	}
}

// Helper functions

// outputJSON writes v to the app's writer as indented JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if ce, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", ce.Code, ce.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// outputMutation prints the post of a mutation that reached the store. A
// CONSISTENCY error means the change was applied but the calendar refresh
// failed, so the post is printed with a warning.
func outputMutation(c *cli.Context, p *post.Post, err error) error {
	if err != nil {
		fmt.Fprintf(c.App.ErrWriter, "warning: %v\n", err)
	}
	return outputJSON(c, p)
}

func idFlag() cli.Flag {
	return &cli.StringFlag{Name: "id", Usage: "Target id (alternative to the positional argument)"}
}

// idArg returns --id or the positional id. Flag parsing stops at the first
// positional argument, so anything after the id would be silently dropped
// and is rejected instead.
func idArg(c *cli.Context, kind string, required bool) (string, error) {
	args := c.Args().Slice()
	id := strings.TrimSpace(c.String("id"))
	if id == "" && len(args) > 0 {
		id, args = args[0], args[1:]
	}
	if len(args) > 0 {
		return "", errors.NewInvalidRequest(fmt.Sprintf(
			"unexpected arguments %q: put flags before the %s id or pass it with --id", strings.Join(args, " "), kind))
	}
	if id == "" && required {
		return "", errors.NewInvalidRequest(kind + " id is required")
	}
	return id, nil
}

// requireFlags reports the first of names that was not given.
func requireFlags(c *cli.Context, names ...string) error {
	for _, name := range names {
		if !c.IsSet(name) {
			return errors.NewInvalidRequest(fmt.Sprintf("flag --%s is required", name))
		}
	}
	return nil
}

// contentArg returns --content, or stdin when the flag is absent or "-".
func contentArg(c *cli.Context) (string, error) {
	content := c.String("content")
	if content != "" && content != "-" {
		return content, nil
	}
	if !stdinHasData(c.App.Reader) {
		return "", nil
	}
	data, err := io.ReadAll(c.App.Reader)
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("read content: %v", err))
	}
	return strings.TrimSpace(string(data)), nil
}

// stdinHasData returns true if r has piped data (not a terminal).
func stdinHasData(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return r != nil
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// parseTime parses an optional RFC3339 flag value.
func parseTime(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.NewValidation(field, field+" must be an RFC3339 timestamp")
	}
	return t.UTC(), nil
}

// parseTags splits a comma-separated string into a slice of tags.
func parseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// parsePlatforms flattens repeated and comma-separated platform flags.
func parsePlatforms(values []string) []post.Platform {
	var platforms []post.Platform
	for _, v := range values {
		for _, p := range parseTags(v) {
			platforms = append(platforms, post.Platform(p))
		}
	}
	return platforms
}

// parseRecommendations accepts either a JSON array or the HTTP API's
// {"recommendations": [...]} body.
func parseRecommendations(data []byte) ([]recommend.Recommendation, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, errors.NewInvalidRequest("no recommendations given")
	}
	if strings.HasPrefix(trimmed, "[") {
		var recs []recommend.Recommendation
		if err := json.Unmarshal([]byte(trimmed), &recs); err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid recommendations JSON: %v", err))
		}
		return recs, nil
	}
	var body web.RecommendationList
	if err := json.Unmarshal([]byte(trimmed), &body); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid recommendations JSON: %v", err))
	}
	return body.Recommendations, nil
}
