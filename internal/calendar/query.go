package calendar

import (
	"net/url"
	"strings"
	"time"

	"github.com/hpungsan/cadence/internal/errors"
	"github.com/hpungsan/cadence/internal/post"
)

// Query parameter names for a Filter on the HTTP API.
const (
	ParamPlatform = "platform"
	ParamStatus   = "status"
	ParamTag      = "tag"
	ParamFrom     = "from"
	ParamTo       = "to"
	ParamSearch   = "q"
)

// EncodeQuery writes f into URL query values. Collections repeat their
// parameter; bounds are RFC3339 with nanoseconds.
func EncodeQuery(f Filter) url.Values {
	v := url.Values{}
	for _, p := range f.Platforms {
		v.Add(ParamPlatform, string(p))
	}
	for _, s := range f.Status {
		v.Add(ParamStatus, string(s))
	}
	for _, t := range f.Tags {
		v.Add(ParamTag, t)
	}
	if r := f.DateRange; r != nil {
		if !r.Start.IsZero() {
			v.Set(ParamFrom, r.Start.UTC().Format(time.RFC3339Nano))
		}
		if !r.End.IsZero() {
			v.Set(ParamTo, r.End.UTC().Format(time.RFC3339Nano))
		}
	}
	if f.SearchTerm != "" {
		v.Set(ParamSearch, f.SearchTerm)
	}
	return v
}

// ParseQuery reads a Filter from URL query values. Collection parameters may
// repeat or hold comma-separated values.
func ParseQuery(v url.Values) (Filter, error) {
	var f Filter
	for _, p := range splitValues(v[ParamPlatform]) {
		f.Platforms = append(f.Platforms, post.Platform(p))
	}
	for _, s := range splitValues(v[ParamStatus]) {
		f.Status = append(f.Status, post.Status(s))
	}
	f.Tags = splitValues(v[ParamTag])
	f.SearchTerm = v.Get(ParamSearch)

	from, err := parseInstant(v.Get(ParamFrom), ParamFrom)
	if err != nil {
		return Filter{}, err
	}
	to, err := parseInstant(v.Get(ParamTo), ParamTo)
	if err != nil {
		return Filter{}, err
	}
	if !from.IsZero() || !to.IsZero() {
		f.DateRange = &DateRange{Start: from, End: to}
	}
	return f, f.Validate()
}

func splitValues(values []string) []string {
	var out []string
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseInstant(s, field string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.NewValidation(field, field+" must be an RFC3339 timestamp")
	}
	return t.UTC(), nil
}
