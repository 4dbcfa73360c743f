package transcript

import "time"

// ToolUse is an assistant tool invocation extracted from a content block.
type ToolUse struct {
	Name  string
	Input map[string]any
}

// Message is one parsed transcript record.
type Message struct {
	Role          string // "user" or "assistant"
	Timestamp     time.Time
	Text          string
	ToolUses      []ToolUse
	HasToolResult bool // user message carrying a tool_result block
	Line          int  // line number in the source file
}

// Transcript is the parsed form of one conversation JSONL file.
type Transcript struct {
	Path           string
	ConversationID string // filename UUID without .jsonl
	ProjectPath    string // cwd recorded in the transcript, or the flattened dir name
	Messages       []Message
	SkippedLines   int   // malformed lines tolerated during parse
	EndOffset      int64 // byte offset after the last parsed line
}

// FileInfo describes a discovered transcript file.
type FileInfo struct {
	Path       string
	ProjectDir string // flattened project directory name under the root
	Mtime      int64
	Size       int64
}
