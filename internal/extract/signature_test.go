package extract

import (
	"strings"
	"testing"

	"github.com/Zuo-Peng/ai-memory-search/internal/transcript"
)

func buildTranscriptMsgs(tail ...transcript.Message) []transcript.Message {
	msgs := []transcript.Message{
		userMsg("Set up the Docker build for the API server and fix whatever breaks on the way"),
		editMsg("Write", map[string]any{"file_path": "Dockerfile"}),
		{Role: "assistant", Text: "error: missing base image tag"},
		editMsg("Edit", map[string]any{"file_path": "Dockerfile", "old_string": "FROM x", "new_string": "FROM golang:1.24"}),
	}
	for i := 0; i < 10; i++ {
		msgs = append(msgs, transcript.Message{Role: "assistant", Text: "iterating"})
	}
	return append(msgs, tail...)
}

func TestCompletionSuccess(t *testing.T) {
	msgs := buildTranscriptMsgs(
		transcript.Message{Role: "assistant", Text: "compiled successfully"},
	)
	sig := ComputeSignature(msgs, ExtractEditPatterns(msgs), TrackErrors(msgs))

	if sig.CompletionStatus != CompletionSuccess {
		t.Errorf("completion = %q, want success", sig.CompletionStatus)
	}
	if sig.TotalEdits != 2 {
		t.Errorf("total edits = %d, want 2", sig.TotalEdits)
	}
	if sig.IterationCount != 1 {
		t.Errorf("iteration count = %d, want 1 (Dockerfile edited twice)", sig.IterationCount)
	}
	if sig.AnalysisOnly {
		t.Error("conversation with edits is not analysis-only")
	}
}

func TestCompletionFailedOnLateBlockingError(t *testing.T) {
	msgs := buildTranscriptMsgs(
		transcript.Message{Role: "assistant", Text: "compiled successfully"},
		transcript.Message{Role: "assistant", Text: "error: segmentation fault while loading the model weights"},
		transcript.Message{Role: "assistant", Text: "out of ideas for tonight"},
	)
	sig := ComputeSignature(msgs, ExtractEditPatterns(msgs), TrackErrors(msgs))

	if sig.CompletionStatus != CompletionFailed {
		t.Errorf("completion = %q, want failed: unresolved blocking error in final 20%%", sig.CompletionStatus)
	}
}

func TestBlockingIgnoresTrivialAndURLErrors(t *testing.T) {
	n := 20
	msgs := make([]transcript.Message, 0, n)
	for i := 0; i < n-2; i++ {
		msgs = append(msgs, transcript.Message{Role: "assistant", Text: "work"})
	}
	msgs = append(msgs,
		transcript.Message{Role: "assistant", Text: "error: x"}, // too short to block
		transcript.Message{Role: "assistant", Text: "see https://example.com/docs/error-codes for the full error reference"},
	)
	sig := ComputeSignature(msgs, nil, TrackErrors(msgs))

	if sig.CompletionStatus == CompletionFailed {
		t.Error("trivial and URL-contaminated excerpts must not count as blocking")
	}
}

func TestCompletionPartialWithoutSignal(t *testing.T) {
	msgs := []transcript.Message{
		userMsg(strings.Repeat("investigate the flaky importer without changing anything yet ", 2)),
		{Role: "assistant", Text: "Here is what the importer does."},
	}
	sig := ComputeSignature(msgs, nil, nil)
	if sig.CompletionStatus != CompletionPartial {
		t.Errorf("completion = %q, want partial", sig.CompletionStatus)
	}
	if !sig.AnalysisOnly {
		t.Error("conversation without edits is analysis-only")
	}
	if sig.PatternReusability != ReusabilityLow {
		t.Errorf("reusability = %q, want low", sig.PatternReusability)
	}
}

func TestSignatureConceptsAndFrameworks(t *testing.T) {
	msgs := buildTranscriptMsgs(
		transcript.Message{Role: "assistant", Text: "docker build complete, container is running"},
	)
	sig := ComputeSignature(msgs, ExtractEditPatterns(msgs), TrackErrors(msgs))

	if !contains(sig.Concepts, "docker") {
		t.Errorf("concepts %v missing docker", sig.Concepts)
	}
	if !contains(sig.Frameworks, "docker") {
		t.Errorf("frameworks %v missing docker", sig.Frameworks)
	}
	if !contains(sig.ToolsUsed, "Edit") || !contains(sig.ToolsUsed, "Write") {
		t.Errorf("tools %v missing edit tools", sig.ToolsUsed)
	}
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
