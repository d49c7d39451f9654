package calendar

import (
	"net/url"
	"testing"
	"time"

	"github.com/hpungsan/cadence/internal/errors"
	"github.com/hpungsan/cadence/internal/post"
)

func TestQuery_RoundTrip(t *testing.T) {
	in := Filter{
		Platforms:  []post.Platform{"twitter", "linkedin"},
		Status:     []post.Status{"scheduled"},
		Tags:       []string{"launch"},
		SearchTerm: "big news",
		DateRange: &DateRange{
			Start: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 11, 30, 23, 59, 59, 999999999, time.UTC),
		},
	}

	out, err := ParseQuery(EncodeQuery(in))
	if err != nil {
		t.Fatalf("ParseQuery() error = %v", err)
	}
	if out.Key() != in.Key() {
		t.Errorf("round trip key = %s, want %s", out.Key(), in.Key())
	}
}

func TestParseQuery_CommaSeparatedAndOpenRange(t *testing.T) {
	v := url.Values{}
	v.Set("platform", "twitter, instagram,")
	v.Set("from", "2026-11-01T09:00:00+02:00")

	f, err := ParseQuery(v)
	if err != nil {
		t.Fatalf("ParseQuery() error = %v", err)
	}
	if len(f.Platforms) != 2 {
		t.Errorf("Platforms = %v, want 2 values", f.Platforms)
	}
	if f.DateRange == nil || !f.DateRange.End.IsZero() {
		t.Fatalf("DateRange = %+v, want open end", f.DateRange)
	}
	if want := time.Date(2026, 11, 1, 7, 0, 0, 0, time.UTC); !f.DateRange.Start.Equal(want) {
		t.Errorf("Start = %v, want %v", f.DateRange.Start, want)
	}
}

func TestParseQuery_Errors(t *testing.T) {
	tests := []struct {
		name string
		v    url.Values
	}{
		{"bad from", url.Values{"from": {"yesterday"}}},
		{"reversed range", url.Values{"from": {"2026-11-02T00:00:00Z"}, "to": {"2026-11-01T00:00:00Z"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseQuery(tt.v); !errors.Is(err, errors.ErrValidation) {
				t.Errorf("ParseQuery() error = %v, want VALIDATION", err)
			}
		})
	}
}

func TestParseQuery_Empty(t *testing.T) {
	f, err := ParseQuery(url.Values{})
	if err != nil {
		t.Fatalf("ParseQuery() error = %v", err)
	}
	if f.Key() != (Filter{}).Key() {
		t.Errorf("empty query key = %s, want empty filter", f.Key())
	}
}
