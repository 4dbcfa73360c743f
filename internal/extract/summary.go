package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/Zuo-Peng/ai-memory-search/internal/transcript"
)

// Token budgets for the two output blobs. Budgets are enforced by
// truncating each section's input, never the assembled text.
const (
	searchIndexBudget  = 500
	contextCacheBudget = 1000
)

// Summary is the extraction output for one conversation.
type Summary struct {
	ConversationID string
	ProjectPath    string
	SearchIndex    string
	ContextCache   string
	Signature      Signature
	Concepts       []string
	FilesAnalyzed  []string
	FilesEdited    []string
	ToolsUsed      []string
	HasCodeBlocks  bool
	MessageCount   int
	Timestamp      time.Time // timestamp of the last message
}

// Build runs the full extraction pipeline over a parsed transcript.
func Build(t *transcript.Transcript) *Summary {
	msgs := t.Messages

	scored := ScoreMessages(msgs)
	seeds := TopIndices(scored, topSeedCount)
	patterns := ExtractEditPatterns(msgs)
	errors := TrackErrors(msgs)
	sig := ComputeSignature(msgs, patterns, errors)

	s := &Summary{
		ConversationID: t.ConversationID,
		ProjectPath:    t.ProjectPath,
		Signature:      sig,
		Concepts:       sig.Concepts,
		FilesAnalyzed:  filesAnalyzed(msgs),
		FilesEdited:    sig.FilesModified,
		ToolsUsed:      sig.ToolsUsed,
		MessageCount:   len(msgs),
	}
	for _, m := range msgs {
		if strings.Contains(m.Text, "```") {
			s.HasCodeBlocks = true
		}
		if !m.Timestamp.IsZero() {
			s.Timestamp = m.Timestamp
		}
	}

	s.SearchIndex = buildSearchIndex(msgs, seeds, patterns, errors)
	s.ContextCache = buildContextCache(msgs, patterns, errors)
	return s
}

// buildSearchIndex produces the ~500-token blob optimized for embedding:
// top user requests, dominant edit patterns, active unresolved errors.
func buildSearchIndex(msgs []transcript.Message, seeds []int, patterns []EditPattern, errors []TrackedError) string {
	var sections []string

	if requests := topUserRequests(msgs, seeds, 2); len(requests) > 0 {
		sections = append(sections, "Requests: "+strings.Join(requests, " | "))
	}

	if descs := dominantPatterns(patterns, 3); len(descs) > 0 {
		sections = append(sections, "Patterns: "+strings.Join(descs, "; "))
	}

	var unresolved []string
	for _, te := range errors {
		if !te.Resolved {
			unresolved = append(unresolved, te.Excerpt)
		}
	}
	if len(unresolved) > 0 {
		sections = append(sections, "Unresolved errors: "+strings.Join(unresolved, "; "))
	}

	return assembleSections(sections, searchIndexBudget)
}

// buildContextCache produces the ~1000-token blob with detailed edit
// patterns, error→resolution pairs, and validation moments.
func buildContextCache(msgs []transcript.Message, patterns []EditPattern, errors []TrackedError) string {
	var sections []string

	if len(patterns) > 0 {
		var lines []string
		for _, p := range patterns {
			line := fmt.Sprintf("[msg %d] %s %s", p.MessageIndex, p.Kind, p.File)
			if p.Why != "" {
				line += " — " + p.Why
			}
			lines = append(lines, line)
		}
		sections = append(sections, "Edits:\n"+strings.Join(lines, "\n"))
	}

	var pairs []string
	for _, te := range errors {
		if te.Resolved {
			pairs = append(pairs, fmt.Sprintf("%s -> %s", te.Excerpt, te.Resolution))
		}
	}
	if len(pairs) > 0 {
		sections = append(sections, "Resolutions:\n"+strings.Join(pairs, "\n"))
	}

	var validations []string
	for i, m := range msgs {
		lower := strings.ToLower(m.Text)
		if containsAny(lower, compileSuccessMarkers) || strings.Contains(lower, "tests passed") {
			validations = append(validations, fmt.Sprintf("[msg %d] %s", i, firstLine(m.Text, 120)))
		}
	}
	if len(validations) > 0 {
		sections = append(sections, "Validations:\n"+strings.Join(validations, "\n"))
	}

	return assembleSections(sections, contextCacheBudget)
}

// topUserRequests picks up to max substantive user requests from the seeded
// indices, filtering meta-commands and system artifacts.
func topUserRequests(msgs []transcript.Message, seeds []int, max int) []string {
	var requests []string
	for _, i := range seeds {
		m := msgs[i]
		if m.Role != "user" || m.HasToolResult || len(m.Text) <= 50 {
			continue
		}
		if isMetaRequest(m.Text) {
			continue
		}
		requests = append(requests, firstLine(m.Text, 200))
		if len(requests) >= max {
			break
		}
	}
	return requests
}

func isMetaRequest(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasPrefix(trimmed, "/") ||
		strings.Contains(trimmed, "<command-name>") ||
		strings.HasPrefix(trimmed, "Caveat:") ||
		strings.Contains(trimmed, "[Request interrupted")
}

// dominantPatterns summarizes the most frequent edit-pattern kinds.
func dominantPatterns(patterns []EditPattern, max int) []string {
	counts := make(map[string]int)
	order := []string{}
	for _, p := range patterns {
		if counts[p.Kind] == 0 {
			order = append(order, p.Kind)
		}
		counts[p.Kind]++
	}
	var descs []string
	for _, kind := range order {
		descs = append(descs, fmt.Sprintf("%s x%d", kind, counts[kind]))
		if len(descs) >= max {
			break
		}
	}
	return descs
}

// assembleSections budgets tokens across sections proportionally, trimming
// each section's input before joining.
func assembleSections(sections []string, budget int) string {
	if len(sections) == 0 {
		return ""
	}
	perSection := budget / len(sections)
	trimmed := make([]string, 0, len(sections))
	for _, sec := range sections {
		trimmed = append(trimmed, TruncateTokens(sec, perSection))
	}
	return strings.Join(trimmed, "\n")
}

func filesAnalyzed(msgs []transcript.Message) []string {
	seen := make(map[string]bool)
	var files []string
	for _, m := range msgs {
		for _, tu := range m.ToolUses {
			if !readToolNames[tu.Name] {
				continue
			}
			if f := stringField(tu.Input, "file_path"); f != "" && !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	return files
}
