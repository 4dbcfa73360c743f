package memsearch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

const scrollPageSize = 200

// WorkGroup is one bucket of recent activity: a conversation, a
// session, a calendar day, or a timeline bucket.
type WorkGroup struct {
	Key           string
	Start         time.Time
	End           time.Time
	Count         int
	Conversations []string
	Concepts      []string
	Files         []string
	Points        []Result
}

// RecentWork scrolls the newest points from all relevant collections
// and groups them by conversation, session, or calendar day.
func (e *Engine) RecentWork(ctx context.Context, limit int, groupBy, proj string) ([]WorkGroup, error) {
	switch groupBy {
	case "conversation", "session", "day":
	default:
		return nil, fmt.Errorf("%w: group_by must be conversation, session, or day, got %q", ErrInvalidInput, groupBy)
	}
	if limit <= 0 {
		limit = 10
	}

	points, err := e.scrollAll(ctx, proj, nil)
	if err != nil {
		return nil, err
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.After(points[j].Timestamp)
	})

	var groups []WorkGroup
	switch groupBy {
	case "conversation":
		groups = groupByKey(points, func(r Result) string { return r.ConversationID })
	case "day":
		groups = groupByKey(points, func(r Result) string {
			return r.Timestamp.UTC().Format("2006-01-02")
		})
	case "session":
		sessions := DetectSessions(points, e.cfg.SessionGap(), e.cfg.SessionMinChunks)
		for i := len(sessions) - 1; i >= 0; i-- {
			s := sessions[i]
			groups = append(groups, WorkGroup{
				Key:           s.ID,
				Start:         s.Start,
				End:           s.End,
				Count:         len(s.Points),
				Conversations: s.Conversations,
				Concepts:      s.Concepts,
				Files:         s.Files,
				Points:        s.Points,
			})
		}
	}

	if len(groups) > limit {
		groups = groups[:limit]
	}
	return groups, nil
}

// Timeline buckets points by a fixed granularity within the window.
func (e *Engine) Timeline(ctx context.Context, window TimeRange, granularity, proj string) ([]WorkGroup, error) {
	switch granularity {
	case "hour", "day", "week", "month":
	default:
		return nil, fmt.Errorf("%w: granularity must be hour, day, week, or month, got %q", ErrInvalidInput, granularity)
	}

	points, err := e.scrollAll(ctx, proj, nil)
	if err != nil {
		return nil, err
	}

	var inWindow []Result
	for _, p := range points {
		if !p.Timestamp.Before(window.Start) && p.Timestamp.Before(window.End) {
			inWindow = append(inWindow, p)
		}
	}
	sort.Slice(inWindow, func(i, j int) bool {
		return inWindow[i].Timestamp.Before(inWindow[j].Timestamp)
	})

	groups := groupByKey(inWindow, func(r Result) string {
		return bucketKey(r.Timestamp.UTC(), granularity)
	})
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups, nil
}

func bucketKey(t time.Time, granularity string) string {
	switch granularity {
	case "hour":
		return t.Format("2006-01-02 15:00")
	case "week":
		return startOfWeek(t).Format("2006-01-02") + " (week)"
	case "month":
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

func groupByKey(points []Result, key func(Result) string) []WorkGroup {
	index := make(map[string]int)
	var groups []WorkGroup
	for _, p := range points {
		k := key(p)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, WorkGroup{Key: k, Start: p.Timestamp, End: p.Timestamp})
		}
		g := &groups[i]
		g.Count++
		g.Points = append(g.Points, p)
		if p.Timestamp.Before(g.Start) {
			g.Start = p.Timestamp
		}
		if p.Timestamp.After(g.End) {
			g.End = p.Timestamp
		}
	}
	for i := range groups {
		g := &groups[i]
		seen := make(map[string]bool)
		files := make(map[string]bool)
		freq := make(map[string]int)
		for _, p := range g.Points {
			if p.ConversationID != "" && !seen[p.ConversationID] {
				seen[p.ConversationID] = true
				g.Conversations = append(g.Conversations, p.ConversationID)
			}
			for _, f := range p.Files {
				if !files[f] {
					files[f] = true
					g.Files = append(g.Files, f)
				}
			}
			for _, c := range p.Concepts {
				freq[c]++
			}
		}
		g.Concepts = topByFrequency(freq, 5)
	}
	return groups
}

// scrollAll pages through every target collection. Per-collection
// failures are logged and skipped, matching search fan-out semantics.
func (e *Engine) scrollAll(ctx context.Context, proj string, filter any) ([]Result, error) {
	collections, err := e.targetCollections(ctx, proj)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	var all []Result
	okCount := 0
	for _, name := range collections {
		var offset any
		failed := false
		for {
			points, next, err := e.store.Scroll(ctx, name, nil, scrollPageSize, offset)
			if err != nil {
				slog.Warn("scroll failed", "collection", name, "err", err)
				failed = true
				break
			}
			for _, p := range points {
				all = append(all, resultFromPoint(name, p, now))
			}
			if next == nil {
				break
			}
			offset = next
		}
		if !failed {
			okCount++
		}
	}
	if okCount == 0 && len(collections) > 0 {
		return nil, fmt.Errorf("%w: no collection could be scrolled", ErrAllUnavailable)
	}
	return all, nil
}
