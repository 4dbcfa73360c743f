package memsearch

import (
	"fmt"
	"sort"
	"time"
)

// Session is a derived grouping of points whose consecutive timestamps
// stay under the gap threshold within one project. Rebuilt per query,
// never stored.
type Session struct {
	ID            string
	Project       string
	Start         time.Time
	End           time.Time
	DurationMin   int
	Conversations []string
	Files         []string
	Concepts      []string
	MessageCount  int
	Points        []Result
}

// DetectSessions splits points into sessions: sorted ascending by time,
// a new session opens when the gap exceeds the threshold or the project
// changes. Sessions with fewer than minChunks points are discarded.
func DetectSessions(points []Result, gap time.Duration, minChunks int) []Session {
	if minChunks < 1 {
		minChunks = 1
	}
	sorted := make([]Result, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var sessions []Session
	var current []Result
	flush := func() {
		if len(current) >= minChunks {
			sessions = append(sessions, buildSession(current))
		}
		current = nil
	}
	for _, p := range sorted {
		if len(current) > 0 {
			prev := current[len(current)-1]
			if p.Timestamp.Sub(prev.Timestamp) > gap || p.ProjectName != prev.ProjectName {
				flush()
			}
		}
		current = append(current, p)
	}
	flush()
	return sessions
}

func buildSession(points []Result) Session {
	start := points[0].Timestamp
	end := points[len(points)-1].Timestamp

	s := Session{
		ID:          fmt.Sprintf("%s_%s", points[0].ProjectName, start.UTC().Format("20060102_150405")),
		Project:     points[0].ProjectName,
		Start:       start,
		End:         end,
		DurationMin: int(end.Sub(start) / time.Minute),
		Points:      points,
	}

	seen := make(map[string]bool)
	files := make(map[string]bool)
	conceptFreq := make(map[string]int)
	for _, p := range points {
		if p.ConversationID != "" && !seen[p.ConversationID] {
			seen[p.ConversationID] = true
			s.Conversations = append(s.Conversations, p.ConversationID)
		}
		for _, f := range p.Files {
			if !files[f] {
				files[f] = true
				s.Files = append(s.Files, f)
			}
		}
		for _, c := range p.Concepts {
			conceptFreq[c]++
		}
		s.MessageCount += p.TotalMessages
	}
	s.Concepts = topByFrequency(conceptFreq, 5)
	return s
}

func topByFrequency(freq map[string]int, n int) []string {
	keys := make([]string, 0, len(freq))
	for k := range freq {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if freq[keys[i]] != freq[keys[j]] {
			return freq[keys[i]] > freq[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
