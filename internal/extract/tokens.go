package extract

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

func encoding() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		// Best effort: without the BPE data we fall back to a
		// bytes-per-token estimate.
		enc, _ = tiktoken.GetEncoding("cl100k_base")
	})
	return enc
}

// CountTokens estimates the token length of s.
func CountTokens(s string) int {
	if e := encoding(); e != nil {
		return len(e.Encode(s, nil, nil))
	}
	return len(s) / 4
}

// TruncateTokens shortens s to at most max tokens.
func TruncateTokens(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if e := encoding(); e != nil {
		tokens := e.Encode(s, nil, nil)
		if len(tokens) <= max {
			return s
		}
		return e.Decode(tokens[:max])
	}
	if len(s) <= max*4 {
		return s
	}
	return s[:max*4]
}
