package memsearch

import (
	"log/slog"
	"math"
	"strings"
	"time"
)

// decayFactor is exp(-ln2 · age/halfLife): 1.0 for brand-new points,
// 0.5 at exactly the half-life, approaching 0 for ancient ones.
func decayFactor(age time.Duration, halfLifeDays float64) float64 {
	if age <= 0 {
		return 1.0
	}
	halfLife := halfLifeDays * 24 * float64(time.Hour)
	return math.Exp(-math.Ln2 * float64(age) / halfLife)
}

// decayedScore mixes the raw similarity with its decayed value:
// final = base·(1−w) + base·w·decay.
func decayedScore(base float64, age time.Duration, weight, halfLifeDays float64) float64 {
	return base*(1-weight) + base*weight*decayFactor(age, halfLifeDays)
}

// parsePointTimestamp reads the timestamp field of a stored payload.
// Malformed or missing values fall back to now so the point ranks as
// fresh rather than vanishing.
func parsePointTimestamp(payload map[string]any, now time.Time) time.Time {
	raw, _ := payload["timestamp"].(string)
	if raw == "" {
		return now
	}
	ts, err := parseUTC(raw)
	if err != nil {
		slog.Warn("malformed point timestamp, treating as now", "value", raw, "err", err)
		return now
	}
	return ts
}

// parseUTC parses an ISO-8601 timestamp into UTC. Trailing Z is
// normalized to an explicit offset first; naive timestamps are taken
// as already-UTC.
func parseUTC(raw string) (time.Time, error) {
	s := raw
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02",
	} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}
