package extract

import (
	"sort"
	"strings"

	"github.com/Zuo-Peng/ai-memory-search/internal/transcript"
)

// Completion statuses.
const (
	CompletionSuccess = "success"
	CompletionPartial = "partial"
	CompletionFailed  = "failed"
)

// Pattern reusability grades.
const (
	ReusabilityHigh   = "high"
	ReusabilityMedium = "medium"
	ReusabilityLow    = "low"
)

// Signature is the structured record summarizing a conversation's outcome
// and composition.
type Signature struct {
	CompletionStatus   string   `json:"completion_status"`
	Frameworks         []string `json:"frameworks"`
	PatternReusability string   `json:"pattern_reusability"`
	ErrorRecovery      bool     `json:"error_recovery"`
	TotalEdits         int      `json:"total_edits"`
	IterationCount     int      `json:"iteration_count"`
	ToolsUsed          []string `json:"tools_used"`
	FilesModified      []string `json:"files_modified"`
	Concepts           []string `json:"concepts"`
	AnalysisOnly       bool     `json:"analysis_only"`
}

var frameworkNames = []string{
	"react", "vue", "svelte", "next.js", "django", "flask", "fastapi",
	"express", "rails", "spring", "pytorch", "tensorflow", "docker",
	"kubernetes", "terraform", "postgres", "redis", "qdrant", "sqlite",
	"typescript", "rust", "golang", "cobra", "bubbletea",
}

// minBlockingExcerpt filters out trivial error mentions when deciding
// whether a conversation ended blocked.
const minBlockingExcerpt = 30

// ComputeSignature derives the signature from the parsed transcript plus
// already-extracted patterns and errors. Completion heuristics look at the
// last 10 messages; only unresolved errors in the final 20% with
// non-trivial bodies and no URL contamination count as blocking.
func ComputeSignature(msgs []transcript.Message, patterns []EditPattern, errors []TrackedError) Signature {
	sig := Signature{
		TotalEdits:    len(patterns),
		FilesModified: uniqueFiles(patterns),
		ToolsUsed:     toolsUsed(msgs),
	}

	blocking := blockingErrors(msgs, errors)
	for _, te := range errors {
		if te.Resolved {
			sig.ErrorRecovery = true
			break
		}
	}

	switch {
	case hasTerminalSuccess(msgs) && len(blocking) == 0:
		sig.CompletionStatus = CompletionSuccess
	case len(blocking) > 0:
		sig.CompletionStatus = CompletionFailed
	default:
		sig.CompletionStatus = CompletionPartial
	}

	switch {
	case len(patterns) >= 3 && len(blocking) == 0:
		sig.PatternReusability = ReusabilityHigh
	case len(patterns) >= 1:
		sig.PatternReusability = ReusabilityMedium
	default:
		sig.PatternReusability = ReusabilityLow
	}

	sig.IterationCount = iterationCount(patterns)
	sig.AnalysisOnly = len(patterns) == 0
	sig.Frameworks = detectFrameworks(msgs)
	sig.Concepts = ExtractConcepts(msgs, 10)
	return sig
}

// blockingErrors returns unresolved errors in the final 20% of the
// transcript with substantive excerpts that are not just quoted URLs.
func blockingErrors(msgs []transcript.Message, errors []TrackedError) []TrackedError {
	cutoff := len(msgs) - len(msgs)/5
	var blocking []TrackedError
	for _, te := range errors {
		if te.Resolved || te.Index < cutoff {
			continue
		}
		if len(te.Excerpt) < minBlockingExcerpt {
			continue
		}
		if strings.Contains(te.Excerpt, "http://") || strings.Contains(te.Excerpt, "https://") {
			continue
		}
		blocking = append(blocking, te)
	}
	return blocking
}

// hasTerminalSuccess scans the last 10 messages for build/test/deployment
// success or an explicit completion confirmation.
func hasTerminalSuccess(msgs []transcript.Message) bool {
	start := len(msgs) - 10
	if start < 0 {
		start = 0
	}
	for _, m := range msgs[start:] {
		lower := strings.ToLower(m.Text)
		if containsAny(lower, compileSuccessMarkers) {
			return true
		}
		if strings.Contains(lower, "all tests pass") || strings.Contains(lower, "tests passed") {
			return true
		}
		if strings.Contains(lower, "deployed successfully") {
			return true
		}
		if m.Role == "user" && containsAny(lower, confirmationMarkers) {
			return true
		}
	}
	return false
}

// iterationCount counts repeat edits of the same file, a proxy for how many
// passes the work took.
func iterationCount(patterns []EditPattern) int {
	seen := make(map[string]bool)
	count := 0
	for _, p := range patterns {
		if p.File == "" {
			continue
		}
		if seen[p.File] {
			count++
		}
		seen[p.File] = true
	}
	return count
}

func detectFrameworks(msgs []transcript.Message) []string {
	var all strings.Builder
	for _, m := range msgs {
		all.WriteString(strings.ToLower(m.Text))
		all.WriteByte('\n')
	}
	text := all.String()

	var found []string
	for _, fw := range frameworkNames {
		if strings.Contains(text, fw) {
			found = append(found, fw)
		}
	}
	return found
}

func uniqueFiles(patterns []EditPattern) []string {
	seen := make(map[string]bool)
	var files []string
	for _, p := range patterns {
		if p.File == "" || seen[p.File] {
			continue
		}
		seen[p.File] = true
		files = append(files, p.File)
	}
	return files
}

func toolsUsed(msgs []transcript.Message) []string {
	seen := make(map[string]bool)
	for _, m := range msgs {
		for _, tu := range m.ToolUses {
			seen[tu.Name] = true
		}
	}
	tools := make([]string, 0, len(seen))
	for t := range seen {
		tools = append(tools, t)
	}
	sort.Strings(tools)
	return tools
}
