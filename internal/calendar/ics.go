package calendar

import (
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

// ExportICS serializes events as an iCalendar (RFC 5545) document.
// stamp is written as DTSTAMP on every event.
func ExportICS(events []Event, name string, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//cadence//content calendar//EN")
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, e := range events {
		ev := cal.AddEvent(e.ID + "@cadence")
		ev.SetDtStampTime(stamp.UTC())
		ev.SetStartAt(e.Start)
		ev.SetEndAt(e.End)
		ev.SetSummary(e.Title)
		if e.Description != "" {
			ev.SetDescription(e.Description)
		}

		categories := make([]string, 0, len(e.Platforms)+len(e.Tags))
		for _, p := range e.Platforms {
			categories = append(categories, string(p))
		}
		categories = append(categories, e.Tags...)
		if len(categories) > 0 {
			ev.SetProperty(ics.ComponentPropertyCategories, strings.Join(categories, ","))
		}
		ev.SetProperty(ics.ComponentProperty("X-CADENCE-STATUS"), string(e.Status))
	}

	return cal.Serialize()
}
