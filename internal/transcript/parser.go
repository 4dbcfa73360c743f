package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type record struct {
	Type      string          `json:"type"`
	IsMeta    bool            `json:"isMeta"`
	Timestamp string          `json:"timestamp"`
	Cwd       string          `json:"cwd"`
	Message   json.RawMessage `json:"message"`
}

type message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type contentBlock struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	Name    string          `json:"name"`
	Input   map[string]any  `json:"input"`
	Content json.RawMessage `json:"content"` // tool_result body
}

// ParseFile parses a transcript starting at fromOffset, which must sit on a
// line boundary (0 or a previously returned EndOffset). Malformed lines are
// skipped and counted; the caller decides whether the count is worth a
// warning.
func ParseFile(path string, fromOffset int64) (*Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if fromOffset > 0 {
		if _, err := f.Seek(fromOffset, io.SeekStart); err != nil {
			return nil, err
		}
	}

	t := &Transcript{
		Path:           path,
		ConversationID: strings.TrimSuffix(filepath.Base(path), ".jsonl"),
		ProjectPath:    filepath.Base(filepath.Dir(path)),
		EndOffset:      fromOffset,
	}

	reader := bufio.NewReaderSize(f, 64*1024)
	lineNum := 0
	for {
		line, rerr := reader.ReadBytes('\n')
		if len(line) > 0 {
			lineNum++
			// Count the bytes actually consumed, terminator included, so
			// the offset is a valid resume point even for CRLF lines and
			// a final line with no trailing newline.
			t.EndOffset += int64(len(line))
			parseLine(t, bytes.TrimRight(line, "\r\n"), lineNum)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return t, rerr
		}
	}

	if t.SkippedLines > 0 {
		slog.Warn("skipped malformed transcript lines", "path", path, "count", t.SkippedLines)
	}
	return t, nil
}

func parseLine(t *Transcript, line []byte, lineNum int) {
	if len(line) == 0 {
		return
	}

	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		t.SkippedLines++
		return
	}
	if rec.Cwd != "" {
		t.ProjectPath = rec.Cwd
	}
	if rec.IsMeta || (rec.Type != "user" && rec.Type != "assistant") {
		return
	}

	var msg message
	if err := json.Unmarshal(rec.Message, &msg); err != nil {
		t.SkippedLines++
		return
	}

	m := Message{
		Role:      rec.Type,
		Timestamp: ParseTimestamp(rec.Timestamp),
		Line:      lineNum,
	}
	decodeContent(msg.Content, &m)
	if m.Text == "" && len(m.ToolUses) == 0 && !m.HasToolResult {
		return
	}
	t.Messages = append(t.Messages, m)
}

func decodeContent(raw json.RawMessage, m *Message) {
	// String content.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		m.Text = strings.TrimSpace(s)
		return
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return
	}

	var parts []string
	for _, b := range blocks {
		switch b.Type {
		case "text":
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		case "tool_use":
			m.ToolUses = append(m.ToolUses, ToolUse{Name: b.Name, Input: b.Input})
		case "tool_result":
			m.HasToolResult = true
			if txt := toolResultText(b.Content); txt != "" {
				parts = append(parts, txt)
			}
		}
	}
	m.Text = strings.TrimSpace(strings.Join(parts, "\n"))
}

func toolResultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// ParseTimestamp parses the timestamp formats seen in transcripts. A
// trailing Z is already an explicit UTC offset for RFC3339; naive
// timestamps are interpreted as UTC per the storage contract.
func ParseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
