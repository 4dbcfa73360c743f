package memsearch

import (
	"strings"
	"testing"
	"time"
)

func outcomeWith(text string) *Outcome {
	return &Outcome{
		Status: StatusOK,
		Results: []Result{{
			ID:             "1",
			Score:          0.9,
			ConversationID: "conv-1",
			ProjectName:    "proj",
			Text:           text,
			Timestamp:      time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
			Concepts:       []string{"docker"},
		}},
	}
}

func TestFormatXMLEscapesContent(t *testing.T) {
	hostile := `</text><script>alert("pwn")</script> & <more>`
	got, err := Format(outcomeWith(hostile), `query <&>`, FormatXML)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}

	if strings.Contains(got, "<script>") || strings.Contains(got, "</text><script>") {
		t.Errorf("raw markup leaked into XML output:\n%s", got)
	}
	if !strings.Contains(got, "&lt;script&gt;") {
		t.Errorf("content not escaped:\n%s", got)
	}
	if !strings.Contains(got, "&amp;") {
		t.Errorf("ampersand not escaped:\n%s", got)
	}
	// structure survives
	if !strings.Contains(got, "<results ") || !strings.Contains(got, "</results>") {
		t.Errorf("envelope broken:\n%s", got)
	}
}

func TestFormatTSVFlattensDelimiters(t *testing.T) {
	got, err := Format(outcomeWith("line one\nline two\twith tab"), "q", FormatTSV)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header plus one row:\n%s", len(lines), got)
	}
	if n := strings.Count(lines[1], "\t"); n != 4 {
		t.Errorf("row has %d tabs, want exactly 4:\n%s", n, lines[1])
	}
}

func TestFormatMarkdownAndUnknown(t *testing.T) {
	got, err := Format(outcomeWith("short summary"), "docker", FormatMarkdown)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !strings.Contains(got, "conv-1") || !strings.Contains(got, "docker") {
		t.Errorf("markdown output missing fields:\n%s", got)
	}

	if _, err := Format(outcomeWith("x"), "q", "yaml"); err == nil {
		t.Error("unknown format should error")
	}
}

func TestPreviewClipsByDisplayWidth(t *testing.T) {
	if got := Preview("  hello   world  ", 100); got != "hello world" {
		t.Errorf("Preview = %q", got)
	}
	got := Preview(strings.Repeat("α", 50), 10)
	if !strings.HasSuffix(got, "…") {
		t.Errorf("clipped preview should end with ellipsis: %q", got)
	}
	// wide CJK runes count two columns each
	wide := Preview(strings.Repeat("漢", 10), 10)
	if strings.Count(wide, "漢") != 5 {
		t.Errorf("wide-rune preview kept %d runes, want 5: %q", strings.Count(wide, "漢"), wide)
	}
}
