package memsearch

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeRange is a half-open [Start, End) window in UTC.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

var relativeRe = regexp.MustCompile(`^(?:past|last)\s+(\d+)\s+(minute|hour|day|week|month)s?$`)
var agoRe = regexp.MustCompile(`^(\d+)\s+(minute|hour|day|week|month)s?\s+ago$`)

// ParseTimeRange resolves a natural-language or ISO time expression
// into a UTC range relative to now. Unparseable input defaults to
// today and logs a warning rather than failing the query.
func ParseTimeRange(expr string, now time.Time) TimeRange {
	now = now.UTC()
	r, err := parseTimeRange(expr, now)
	if err != nil {
		slog.Warn("unparseable time expression, defaulting to today", "expr", expr)
		return TimeRange{Start: startOfDay(now), End: now}
	}
	return r
}

func parseTimeRange(expr string, now time.Time) (TimeRange, error) {
	s := strings.ToLower(strings.TrimSpace(expr))
	switch s {
	case "", "today":
		if s == "" {
			return TimeRange{}, fmt.Errorf("empty expression")
		}
		return TimeRange{Start: startOfDay(now), End: now}, nil
	case "yesterday":
		start := startOfDay(now).AddDate(0, 0, -1)
		return TimeRange{Start: start, End: start.AddDate(0, 0, 1)}, nil
	case "this week":
		return TimeRange{Start: startOfWeek(now), End: now}, nil
	case "last week":
		start := startOfWeek(now).AddDate(0, 0, -7)
		return TimeRange{Start: start, End: start.AddDate(0, 0, 7)}, nil
	case "this month":
		return TimeRange{Start: startOfMonth(now), End: now}, nil
	case "last month":
		end := startOfMonth(now)
		return TimeRange{Start: end.AddDate(0, -1, 0), End: end}, nil
	}

	if m := relativeRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return TimeRange{Start: now.Add(-unitDuration(m[2], n, now)), End: now}, nil
	}
	if m := agoRe.FindStringSubmatch(s); m != nil {
		// "N units ago" anchors the start; everything since then counts.
		n, _ := strconv.Atoi(m[1])
		return TimeRange{Start: now.Add(-unitDuration(m[2], n, now)), End: now}, nil
	}
	if rest, ok := strings.CutPrefix(s, "since "); ok {
		inner, err := parseTimeRange(rest, now)
		if err == nil {
			return TimeRange{Start: inner.Start, End: now}, nil
		}
		if ts, err := parseUTC(strings.TrimSpace(rest)); err == nil {
			return TimeRange{Start: ts, End: now}, nil
		}
		return TimeRange{}, fmt.Errorf("unparseable since expression: %q", rest)
	}
	if ts, err := parseUTC(expr); err == nil {
		return TimeRange{Start: ts, End: now}, nil
	}
	return TimeRange{}, fmt.Errorf("unparseable time expression: %q", expr)
}

func unitDuration(unit string, n int, now time.Time) time.Duration {
	switch unit {
	case "minute":
		return time.Duration(n) * time.Minute
	case "hour":
		return time.Duration(n) * time.Hour
	case "week":
		return time.Duration(n) * 7 * 24 * time.Hour
	case "month":
		return now.Sub(now.AddDate(0, -n, 0))
	default:
		return time.Duration(n) * 24 * time.Hour
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// startOfWeek treats Monday as the first day.
func startOfWeek(t time.Time) time.Time {
	d := startOfDay(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// FormatRelative renders a past timestamp as rough natural language
// for previews ("5 minutes ago", "yesterday", "2 weeks ago").
func FormatRelative(ts, now time.Time) string {
	age := now.Sub(ts)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		n := int(age / time.Minute)
		return plural(n, "minute") + " ago"
	case age < 24*time.Hour:
		n := int(age / time.Hour)
		return plural(n, "hour") + " ago"
	case age < 48*time.Hour:
		return "yesterday"
	case age < 14*24*time.Hour:
		n := int(age / (24 * time.Hour))
		return plural(n, "day") + " ago"
	case age < 60*24*time.Hour:
		n := int(age / (7 * 24 * time.Hour))
		return plural(n, "week") + " ago"
	case age < 365*24*time.Hour:
		n := int(age / (30 * 24 * time.Hour))
		return plural(n, "month") + " ago"
	default:
		n := int(age / (365 * 24 * time.Hour))
		return plural(n, "year") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
