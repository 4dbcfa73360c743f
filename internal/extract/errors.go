package extract

import (
	"strings"

	"github.com/Zuo-Peng/ai-memory-search/internal/transcript"
)

// resolutionScanWindow is how many subsequent messages are searched for
// evidence that an error was fixed.
const resolutionScanWindow = 15

var errorCandidateMarkers = []string{"error", "exception", "traceback", "failed"}

var resolutionKeywords = []string{"fixed", "solved", "working"}

// TrackedError is an error candidate with its resolution state.
type TrackedError struct {
	Index      int
	Excerpt    string
	Resolved   bool
	Resolution string
	ResolvedBy int // message index of the resolving message, -1 if unresolved
}

// TrackErrors finds error candidates and scans forward for resolutions,
// either explicit keywords or contextual cues tied to the error class.
func TrackErrors(msgs []transcript.Message) []TrackedError {
	var tracked []TrackedError
	for i, m := range msgs {
		lower := strings.ToLower(m.Text)
		if !containsAny(lower, errorCandidateMarkers) {
			continue
		}

		te := TrackedError{
			Index:      i,
			Excerpt:    errorExcerpt(m.Text),
			ResolvedBy: -1,
		}

		for j := i + 1; j < len(msgs) && j <= i+resolutionScanWindow; j++ {
			succ := strings.ToLower(msgs[j].Text)
			if succ == "" {
				continue
			}
			if resolvedBy(lower, succ) {
				te.Resolved = true
				te.Resolution = firstLine(msgs[j].Text, 160)
				te.ResolvedBy = j
				break
			}
		}
		tracked = append(tracked, te)
	}
	return tracked
}

// resolvedBy decides whether successor text resolves the error text.
func resolvedBy(errText, succ string) bool {
	if containsAny(succ, resolutionKeywords) {
		return true
	}
	// A refused connection is resolved once something is serving.
	if strings.Contains(errText, "connection refused") || strings.Contains(errText, "econnrefused") {
		if strings.Contains(succ, "server started") ||
			strings.Contains(succ, "server running") ||
			strings.Contains(succ, "listening on") ||
			strings.Contains(succ, "page loaded") {
			return true
		}
	}
	if strings.Contains(errText, "build") || strings.Contains(errText, "compile") {
		if strings.Contains(succ, "compiled successfully") {
			return true
		}
	}
	return false
}

// errorExcerpt pulls the first line mentioning the error, capped.
func errorExcerpt(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if containsAny(strings.ToLower(line), errorCandidateMarkers) {
			return firstLine(line, 200)
		}
	}
	return firstLine(text, 200)
}
