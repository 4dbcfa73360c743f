package extract

import (
	"strings"
	"testing"

	"github.com/Zuo-Peng/ai-memory-search/internal/transcript"
)

func editMsg(tool string, input map[string]any) transcript.Message {
	return transcript.Message{
		Role:     "assistant",
		ToolUses: []transcript.ToolUse{{Name: tool, Input: input}},
	}
}

func TestClassifyEdit(t *testing.T) {
	manyEdits := make([]any, 6)
	for i := range manyEdits {
		manyEdits[i] = map[string]any{"old_string": "a", "new_string": "b"}
	}

	cases := []struct {
		name string
		tool string
		in   map[string]any
		want string
	}{
		{"write is creation", "Write", map[string]any{"file_path": "new.go"}, PatternCreation},
		{"multiedit over five is cascade", "MultiEdit",
			map[string]any{"file_path": "x.go", "edits": manyEdits}, PatternCascade},
		{"multiedit with deletion is removal", "MultiEdit",
			map[string]any{"file_path": "x.go", "edits": []any{
				map[string]any{"old_string": "dead code", "new_string": ""},
			}}, PatternRemoval},
		{"multiedit otherwise is refactor", "MultiEdit",
			map[string]any{"file_path": "x.go", "edits": []any{
				map[string]any{"old_string": "a", "new_string": "b"},
			}}, PatternRefactor},
		{"growing edit is expansion", "Edit",
			map[string]any{"file_path": "x.go", "old_string": "abc",
				"new_string": strings.Repeat("z", 10)}, PatternExpansion},
		{"shrinking edit is removal", "Edit",
			map[string]any{"file_path": "x.go", "old_string": strings.Repeat("z", 10),
				"new_string": "abc"}, PatternRemoval},
		{"balanced edit is modification", "Edit",
			map[string]any{"file_path": "x.go", "old_string": "abcd",
				"new_string": "abce"}, PatternModification},
	}

	for _, c := range cases {
		kind, file, ok := classifyEdit(transcript.ToolUse{Name: c.tool, Input: c.in})
		if !ok {
			t.Errorf("%s: classifyEdit rejected the edit", c.name)
			continue
		}
		if kind != c.want {
			t.Errorf("%s: kind = %q, want %q", c.name, kind, c.want)
		}
		if file == "" {
			t.Errorf("%s: file path lost", c.name)
		}
	}
}

func TestClassifyEditIgnoresNonEditTools(t *testing.T) {
	if _, _, ok := classifyEdit(transcript.ToolUse{Name: "Read", Input: map[string]any{}}); ok {
		t.Error("Read classified as an edit")
	}
	if _, _, ok := classifyEdit(transcript.ToolUse{Name: "TodoWrite", Input: map[string]any{}}); ok {
		t.Error("TodoWrite classified as an edit")
	}
}

func TestLookbackWhy(t *testing.T) {
	request := "Please migrate the retry logic into the shared client so every call path uses it"
	msgs := []transcript.Message{
		userMsg(request),
		{Role: "assistant", Text: "Looking at the client."},
		editMsg("Edit", map[string]any{
			"file_path": "client.go", "old_string": "aaaa", "new_string": "bbbb",
		}),
	}

	patterns := ExtractEditPatterns(msgs)
	if len(patterns) != 1 {
		t.Fatalf("got %d patterns, want 1", len(patterns))
	}
	if patterns[0].Why != request {
		t.Errorf("why = %q, want the user request", patterns[0].Why)
	}
	if patterns[0].MessageIndex != 2 {
		t.Errorf("message index = %d, want 2", patterns[0].MessageIndex)
	}
}

func TestLookbackWhyLimitedToFive(t *testing.T) {
	request := "Refactor the embedding manager to cache vectors across repeated identical queries"
	msgs := []transcript.Message{userMsg(request)}
	for i := 0; i < 6; i++ {
		msgs = append(msgs, transcript.Message{Role: "assistant", Text: "step"})
	}
	msgs = append(msgs, editMsg("Edit", map[string]any{
		"file_path": "m.go", "old_string": "x", "new_string": "y",
	}))

	patterns := ExtractEditPatterns(msgs)
	if len(patterns) != 1 {
		t.Fatalf("got %d patterns, want 1", len(patterns))
	}
	if patterns[0].Why != "" {
		t.Errorf("why = %q, want empty: request is beyond the look-back window", patterns[0].Why)
	}
}
