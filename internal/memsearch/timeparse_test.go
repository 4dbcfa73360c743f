package memsearch

import (
	"testing"
	"time"
)

// Wednesday afternoon, UTC.
var refNow = time.Date(2026, 8, 26, 15, 30, 0, 0, time.UTC)

func TestParseTimeRange(t *testing.T) {
	cases := []struct {
		expr       string
		start, end time.Time
	}{
		{"today",
			time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC), refNow},
		{"yesterday",
			time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)},
		{"last week",
			time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)},
		{"past 3 days", refNow.Add(-3 * 24 * time.Hour), refNow},
		{"past 2 hours", refNow.Add(-2 * time.Hour), refNow},
		{"5 minutes ago", refNow.Add(-5 * time.Minute), refNow},
		{"2 weeks ago", refNow.Add(-14 * 24 * time.Hour), refNow},
		{"since yesterday",
			time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC), refNow},
		{"since 2026-08-01", time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), refNow},
		{"2026-08-20T09:00:00Z", time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC), refNow},
	}

	for _, c := range cases {
		got := ParseTimeRange(c.expr, refNow)
		if !got.Start.Equal(c.start) || !got.End.Equal(c.end) {
			t.Errorf("ParseTimeRange(%q) = [%v, %v], want [%v, %v]",
				c.expr, got.Start, got.End, c.start, c.end)
		}
	}
}

func TestParseTimeRangeDefaultsToToday(t *testing.T) {
	got := ParseTimeRange("blorp", refNow)
	if !got.Start.Equal(time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)) || !got.End.Equal(refNow) {
		t.Errorf("unparseable input = [%v, %v], want today", got.Start, got.End)
	}
}

func TestFormatRelative(t *testing.T) {
	cases := map[time.Time]string{
		refNow.Add(-30 * time.Second):       "just now",
		refNow.Add(-5 * time.Minute):        "5 minutes ago",
		refNow.Add(-1 * time.Minute):        "1 minute ago",
		refNow.Add(-3 * time.Hour):          "3 hours ago",
		refNow.Add(-30 * time.Hour):         "yesterday",
		refNow.Add(-5 * 24 * time.Hour):     "5 days ago",
		refNow.Add(-21 * 24 * time.Hour):    "3 weeks ago",
		refNow.Add(-90 * 24 * time.Hour):    "3 months ago",
		refNow.Add(-800 * 24 * time.Hour):   "2 years ago",
	}
	for ts, want := range cases {
		if got := FormatRelative(ts, refNow); got != want {
			t.Errorf("FormatRelative(%v) = %q, want %q", ts, got, want)
		}
	}
}
