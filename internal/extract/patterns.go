package extract

import (
	"strings"

	"github.com/Zuo-Peng/ai-memory-search/internal/transcript"
)

// Edit pattern kinds.
const (
	PatternCascade      = "cascade_updates"
	PatternRefactor     = "refactor"
	PatternExpansion    = "expansion"
	PatternRemoval      = "removal"
	PatternModification = "modification"
	PatternCreation     = "creation"
)

// EditPattern classifies one assistant edit operation.
type EditPattern struct {
	MessageIndex int
	Kind         string
	File         string
	Why          string // nearest substantive user request before the edit
}

// ExtractEditPatterns walks assistant messages and classifies each edit
// tool-use by name and payload shape.
func ExtractEditPatterns(msgs []transcript.Message) []EditPattern {
	var patterns []EditPattern
	for i, m := range msgs {
		if m.Role != "assistant" {
			continue
		}
		for _, tu := range m.ToolUses {
			kind, file, ok := classifyEdit(tu)
			if !ok {
				continue
			}
			patterns = append(patterns, EditPattern{
				MessageIndex: i,
				Kind:         kind,
				File:         file,
				Why:          lookbackWhy(msgs, i),
			})
		}
	}
	return patterns
}

func classifyEdit(tu transcript.ToolUse) (kind, file string, ok bool) {
	if !editToolNames[tu.Name] {
		return "", "", false
	}
	file, _ = tu.Input["file_path"].(string)

	switch tu.Name {
	case "Write":
		return PatternCreation, file, true

	case "MultiEdit":
		edits, _ := tu.Input["edits"].([]any)
		if len(edits) > 5 {
			return PatternCascade, file, true
		}
		for _, e := range edits {
			em, _ := e.(map[string]any)
			if em == nil {
				continue
			}
			if isRemovalEdit(stringField(em, "old_string"), stringField(em, "new_string")) {
				return PatternRemoval, file, true
			}
		}
		return PatternRefactor, file, true

	default: // Edit, NotebookEdit
		oldStr := stringField(tu.Input, "old_string")
		newStr := stringField(tu.Input, "new_string")
		switch {
		case isRemovalEdit(oldStr, newStr):
			return PatternRemoval, file, true
		case len(oldStr) > 0 && len(newStr) > 2*len(oldStr):
			return PatternExpansion, file, true
		case len(oldStr) > 0 && 2*len(newStr) < len(oldStr):
			return PatternRemoval, file, true
		default:
			return PatternModification, file, true
		}
	}
}

// isRemovalEdit reports whether an atomic change deletes content outright.
func isRemovalEdit(oldStr, newStr string) bool {
	if strings.TrimSpace(newStr) == "" && strings.TrimSpace(oldStr) != "" {
		return true
	}
	lower := strings.ToLower(newStr)
	return strings.Contains(lower, "// removed") || strings.Contains(lower, "# removed")
}

// lookbackWhy finds the nearest substantive user message within the 5
// messages preceding index i.
func lookbackWhy(msgs []transcript.Message, i int) string {
	for j := i - 1; j >= 0 && j >= i-5; j-- {
		m := msgs[j]
		if m.Role == "user" && len(m.Text) > 50 && !m.HasToolResult {
			return firstLine(m.Text, 160)
		}
	}
	return ""
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func firstLine(s string, max int) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	if len(s) > max {
		s = s[:max]
	}
	return s
}
