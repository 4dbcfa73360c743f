package memsearch

import (
	"math"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestDecayHalfLife(t *testing.T) {
	halfLife := 90.0
	age := time.Duration(halfLife * 24 * float64(time.Hour))
	if got := decayFactor(age, halfLife); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("decay at half-life = %v, want 0.5", got)
	}
	if got := decayFactor(0, halfLife); got != 1.0 {
		t.Errorf("decay at age zero = %v, want 1", got)
	}
}

func TestDecayDemotesOldMatches(t *testing.T) {
	base := 0.8
	weight := 0.3
	halfLife := 90.0

	fresh := decayedScore(base, 24*time.Hour, weight, halfLife)
	old := decayedScore(base, 180*24*time.Hour, weight, halfLife)

	if old >= fresh {
		t.Errorf("older point scored %v, fresh scored %v; want strictly lower", old, fresh)
	}
	// decay only touches the weighted fraction
	floor := base * (1 - weight)
	if old < floor {
		t.Errorf("score %v fell below the undecayed floor %v", old, floor)
	}
}

func TestDecayMonotonicInAge(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		base := rapid.Float64Range(0.01, 1).Draw(rt, "base")
		weight := rapid.Float64Range(0.01, 1).Draw(rt, "weight")
		halfLife := rapid.Float64Range(1, 365).Draw(rt, "half_life")
		a := rapid.Int64Range(0, 1000*24).Draw(rt, "age_a_hours")
		b := rapid.Int64Range(0, 1000*24).Draw(rt, "age_b_hours")
		if a > b {
			a, b = b, a
		}

		young := decayedScore(base, time.Duration(a)*time.Hour, weight, halfLife)
		older := decayedScore(base, time.Duration(b)*time.Hour, weight, halfLife)
		if older > young {
			rt.Fatalf("score increased with age: %v (age %dh) > %v (age %dh)", older, b, young, a)
		}
	})
}

func TestParseUTC(t *testing.T) {
	cases := map[string]string{
		"2026-03-01T10:00:00Z":          "2026-03-01T10:00:00Z",
		"2026-03-01T10:00:00+02:00":     "2026-03-01T08:00:00Z",
		"2026-03-01T10:00:00.123456Z":   "2026-03-01T10:00:00Z",
		"2026-03-01T10:00:00":           "2026-03-01T10:00:00Z", // naive is taken as UTC
		"2026-03-01":                    "2026-03-01T00:00:00Z",
	}
	for in, want := range cases {
		got, err := parseUTC(in)
		if err != nil {
			t.Errorf("parseUTC(%q): %v", in, err)
			continue
		}
		if got.Truncate(time.Second).Format(time.RFC3339) != want {
			t.Errorf("parseUTC(%q) = %s, want %s", in, got.Format(time.RFC3339), want)
		}
	}

	if _, err := parseUTC("not a time"); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestParsePointTimestampFallsBackToNow(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if got := parsePointTimestamp(map[string]any{"timestamp": "garbage"}, now); !got.Equal(now) {
		t.Errorf("malformed timestamp = %v, want now", got)
	}
	if got := parsePointTimestamp(map[string]any{}, now); !got.Equal(now) {
		t.Errorf("missing timestamp = %v, want now", got)
	}
	if got := parsePointTimestamp(map[string]any{"timestamp": "2026-07-01T00:00:00Z"}, now); got.Equal(now) {
		t.Error("valid timestamp should not fall back to now")
	}
}
