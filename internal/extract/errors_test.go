package extract

import (
	"testing"

	"github.com/Zuo-Peng/ai-memory-search/internal/transcript"
)

func TestTrackErrorsExplicitResolution(t *testing.T) {
	msgs := []transcript.Message{
		{Role: "assistant", Text: "error: undefined symbol in parser.go"},
		{Role: "assistant", Text: "Let me look at the imports."},
		{Role: "user", Text: "that fixed it"},
	}
	tracked := TrackErrors(msgs)
	if len(tracked) != 1 {
		t.Fatalf("got %d tracked errors, want 1", len(tracked))
	}
	te := tracked[0]
	if !te.Resolved {
		t.Fatal("error should be resolved by the confirmation")
	}
	if te.ResolvedBy != 2 {
		t.Errorf("resolved by message %d, want 2", te.ResolvedBy)
	}
	if te.Resolution != "that fixed it" {
		t.Errorf("resolution = %q", te.Resolution)
	}
}

func TestTrackErrorsConnectionRefusedCue(t *testing.T) {
	msgs := []transcript.Message{
		{Role: "assistant", Text: "curl: (7) connection refused on port 8080 error"},
		{Role: "assistant", Text: "server started, listening on :8080"},
	}
	tracked := TrackErrors(msgs)
	if len(tracked) != 1 || !tracked[0].Resolved {
		t.Fatalf("connection-refused error not resolved by server start: %+v", tracked)
	}
}

func TestTrackErrorsBuildCue(t *testing.T) {
	msgs := []transcript.Message{
		{Role: "assistant", Text: "build failed: syntax error on line 10"},
		{Role: "assistant", Text: "compiled successfully"},
	}
	tracked := TrackErrors(msgs)
	if len(tracked) != 1 || !tracked[0].Resolved {
		t.Fatalf("build error not resolved by compile success: %+v", tracked)
	}
}

func TestTrackErrorsWindowBound(t *testing.T) {
	msgs := []transcript.Message{
		{Role: "assistant", Text: "error: something is off"},
	}
	for i := 0; i < resolutionScanWindow; i++ {
		msgs = append(msgs, transcript.Message{Role: "assistant", Text: "still digging"})
	}
	msgs = append(msgs, transcript.Message{Role: "user", Text: "ok it is fixed now"})

	tracked := TrackErrors(msgs)
	if len(tracked) != 1 {
		t.Fatalf("got %d tracked errors, want 1", len(tracked))
	}
	if tracked[0].Resolved {
		t.Error("resolution beyond the scan window should not count")
	}
}

func TestErrorExcerptPicksErrorLine(t *testing.T) {
	text := "running build\nstep 1 ok\nfatal: exception in module loader\nmore output"
	got := errorExcerpt(text)
	if got != "fatal: exception in module loader" {
		t.Errorf("excerpt = %q", got)
	}
}
