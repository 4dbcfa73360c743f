// Package extract reduces a transcript to a dense, search-optimized summary:
// a search-index blob for embedding, a context cache for retrieval display,
// and a structured signature of the conversation's outcome.
package extract

import (
	"sort"
	"strings"

	"github.com/Zuo-Peng/ai-memory-search/internal/transcript"
)

// topSeedCount is how many high-scoring messages seed pattern and error
// extraction.
const topSeedCount = 20

var (
	blockingErrorMarkers  = []string{"error:", "exception", "traceback", "fatal:", "failed with"}
	compileSuccessMarkers = []string{"compiled successfully", "build succeeded", "build successful", "build complete"}
	testFailureMarkers    = []string{"test failed", "tests failed", "--- fail", "failures:"}
	confirmationMarkers   = []string{"fixed", "solved", "working", "success", "completed"}
)

var editToolNames = map[string]bool{
	"Edit":         true,
	"Write":        true,
	"MultiEdit":    true,
	"NotebookEdit": true,
}

var readToolNames = map[string]bool{
	"Read": true,
	"Grep": true,
	"Glob": true,
}

// Scored pairs a message index with its importance score.
type Scored struct {
	Index int
	Score float64
}

// ScoreMessages applies the importance rubric to every message. Matches
// accumulate; messages near the start or end of the transcript get a small
// positional boost.
func ScoreMessages(msgs []transcript.Message) []Scored {
	n := len(msgs)
	scored := make([]Scored, n)

	for i, m := range msgs {
		var score float64
		lower := strings.ToLower(m.Text)

		if m.Role == "user" && len(m.Text) > 50 && !m.HasToolResult {
			score += 10
		}
		if m.Role == "assistant" && hasEditToolUse(m) {
			score += 9
		}
		if containsAny(lower, blockingErrorMarkers) {
			score += 9
		}
		if containsAny(lower, compileSuccessMarkers) {
			score += 7
		}
		if containsAny(lower, testFailureMarkers) {
			score += 6
		}
		if containsAny(lower, confirmationMarkers) {
			score += 8
		}
		for _, tu := range m.ToolUses {
			if tu.Name == "Bash" {
				score += 5
			}
			if readToolNames[tu.Name] {
				score += 3
			}
		}

		// Openings state the goal, endings state the outcome.
		if n > 0 && (i < n/10 || i >= n-n*2/10) {
			score *= 1.1
		}

		scored[i] = Scored{Index: i, Score: score}
	}
	return scored
}

// TopIndices returns the indices of the n highest-scoring messages, in
// transcript order.
func TopIndices(scored []Scored, n int) []int {
	sorted := make([]Scored, len(scored))
	copy(sorted, scored)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	if n > len(sorted) {
		n = len(sorted)
	}

	idx := make([]int, 0, n)
	for _, s := range sorted[:n] {
		if s.Score > 0 {
			idx = append(idx, s.Index)
		}
	}
	sort.Ints(idx)
	return idx
}

func hasEditToolUse(m transcript.Message) bool {
	for _, tu := range m.ToolUses {
		if editToolNames[tu.Name] {
			return true
		}
	}
	return false
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
