package extract

import (
	"sort"
	"strings"

	"github.com/Zuo-Peng/ai-memory-search/internal/transcript"
)

// conceptKeywords maps a concept tag to the phrases that evidence it.
var conceptKeywords = map[string][]string{
	"docker":         {"docker", "dockerfile", "container"},
	"kubernetes":     {"kubernetes", "k8s", "kubectl"},
	"testing":        {"test", "pytest", "go test", "unit test"},
	"database":       {"database", "sql", "postgres", "sqlite", "migration"},
	"api":            {"api", "endpoint", "rest", "graphql"},
	"authentication": {"auth", "login", "token", "oauth", "credential"},
	"deployment":     {"deploy", "release", "ci/cd", "pipeline"},
	"debugging":      {"debug", "traceback", "stack trace", "breakpoint"},
	"performance":    {"performance", "latency", "optimize", "profiling"},
	"security":       {"security", "vulnerability", "cve", "sanitize"},
	"configuration":  {"config", "environment variable", "settings"},
	"git":            {"git ", "commit", "branch", "merge conflict"},
	"caching":        {"cache", "redis", "memoize"},
	"logging":        {"logging", "logger", "log level"},
	"vector-search":  {"embedding", "vector", "qdrant", "semantic search"},
	"websocket":      {"websocket", "socket.io"},
	"frontend":       {"css", "react", "component", "browser"},
}

// ExtractConcepts tags the conversation with up to max concepts, ordered by
// how often their keywords appear.
func ExtractConcepts(msgs []transcript.Message, max int) []string {
	var all strings.Builder
	for _, m := range msgs {
		all.WriteString(strings.ToLower(m.Text))
		all.WriteByte('\n')
	}
	text := all.String()

	type hit struct {
		concept string
		count   int
	}
	var hits []hit
	for concept, keywords := range conceptKeywords {
		count := 0
		for _, kw := range keywords {
			count += strings.Count(text, kw)
		}
		if count > 0 {
			hits = append(hits, hit{concept, count})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].count != hits[j].count {
			return hits[i].count > hits[j].count
		}
		return hits[i].concept < hits[j].concept
	})

	if max > 0 && len(hits) > max {
		hits = hits[:max]
	}
	concepts := make([]string, len(hits))
	for i, h := range hits {
		concepts[i] = h.concept
	}
	return concepts
}
