package memsearch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Zuo-Peng/ai-memory-search/internal/project"
	"github.com/Zuo-Peng/ai-memory-search/internal/qdrant"
)

var reflectionNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("aim-reflection"))

// StoreReflection embeds a user-authored insight and upserts it into
// the reflections collection for the active backend, creating the
// collection on first use. Tags are lowercased and deduplicated.
func (e *Engine) StoreReflection(ctx context.Context, content string, tags []string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: reflection content is empty", ErrInvalidInput)
	}

	vector, err := e.emb.EmbedOne(ctx, content)
	if err != nil {
		return "", fmt.Errorf("embed reflection: %w", err)
	}

	mode := e.emb.Current()
	collection := project.ReflectionsCollection(mode.WriteSuffix)
	if err := e.store.EnsureCollection(ctx, collection, mode.Dimension); err != nil {
		return "", fmt.Errorf("ensure %s: %w", collection, err)
	}

	seen := make(map[string]bool)
	var clean []string
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		clean = append(clean, t)
	}

	id := uuid.NewMD5(reflectionNamespace, []byte(content)).String()
	point := qdrant.Point{
		ID:     id,
		Vector: vector,
		Payload: map[string]any{
			"type":           "reflection",
			"text":           content,
			"tags":           clean,
			"timestamp":      e.now().UTC().Format(time.RFC3339),
			"conversation_id": "reflection_" + id[:8],
			"project_name":   "reflections",
			"message_index":  0,
			"total_messages": 1,
		},
	}
	if err := e.store.Upsert(ctx, collection, []qdrant.Point{point}); err != nil {
		return "", err
	}
	return id, nil
}
