package importer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Zuo-Peng/ai-memory-search/internal/catalog"
	"github.com/Zuo-Peng/ai-memory-search/internal/config"
	"github.com/Zuo-Peng/ai-memory-search/internal/embedding"
	"github.com/Zuo-Peng/ai-memory-search/internal/extract"
	"github.com/Zuo-Peng/ai-memory-search/internal/project"
	"github.com/Zuo-Peng/ai-memory-search/internal/qdrant"
	"github.com/Zuo-Peng/ai-memory-search/internal/state"
	"github.com/Zuo-Peng/ai-memory-search/internal/transcript"
)

var conversationNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("aim-conversation"))

// VectorStore is the slice of the vector client the importer needs.
type VectorStore interface {
	EnsureCollection(ctx context.Context, name string, dim int) error
	Upsert(ctx context.Context, collection string, points []qdrant.Point) error
}

// Embedder produces vectors for summaries.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	Current() embedding.ModeInfo
}

type Stats struct {
	Scanned  int
	Imported int
	Skipped  int
	Errors   int
	Chunks   int
}

func (s Stats) String() string {
	return fmt.Sprintf("scanned=%d imported=%d skipped=%d errors=%d chunks=%d",
		s.Scanned, s.Imported, s.Skipped, s.Errors, s.Chunks)
}

// Importer walks the transcript tree and pushes new conversation
// summaries into the vector store, tracking progress in the state
// ledger so repeated runs are idempotent.
type Importer struct {
	cfg   *config.Config
	st    *state.Store
	store VectorStore
	emb   Embedder
	cat   *catalog.DB // optional
	Force bool        // re-import even when state says done
}

func New(cfg *config.Config, st *state.Store, store VectorStore, emb Embedder, cat *catalog.DB) *Importer {
	return &Importer{cfg: cfg, st: st, store: store, emb: emb, cat: cat}
}

// Run imports everything new under the transcript root.
func (im *Importer) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	files, err := transcript.Scan(im.cfg.TranscriptRoot)
	if err != nil {
		return stats, fmt.Errorf("scan %s: %w", im.cfg.TranscriptRoot, err)
	}
	stats.Scanned = len(files)

	imported, err := im.st.Load()
	if err != nil {
		return stats, fmt.Errorf("load state: %w", err)
	}

	for _, fi := range files {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		n, err := im.importFile(ctx, fi, imported)
		if err != nil {
			stats.Errors++
			slog.Warn("import failed", "file", fi.Path, "err", err)
			continue
		}
		if n < 0 {
			stats.Skipped++
			continue
		}
		stats.Imported++
		stats.Chunks += n
	}
	return stats, nil
}

// ImportOne imports a single transcript file, used by the watcher.
func (im *Importer) ImportOne(ctx context.Context, path string) (int, error) {
	imported, err := im.st.Load()
	if err != nil {
		return 0, fmt.Errorf("load state: %w", err)
	}
	fi := transcript.FileInfo{Path: path}
	return im.importFile(ctx, fi, imported)
}

// importFile returns the number of chunks written, or -1 if the file
// was up to date.
func (im *Importer) importFile(ctx context.Context, fi transcript.FileInfo, imported map[string]state.Entry) (int, error) {
	hash, size, err := fileHash(fi.Path)
	if err != nil {
		return 0, err
	}

	if !im.Force {
		key := state.Canonical(fi.Path)
		if prev, ok := imported[key]; ok && prev.Hash == hash && prev.Offset >= size {
			return -1, nil
		}
	}

	// Scoring is positional over the whole conversation, so appended
	// transcripts are re-summarized from the start; the state offset
	// only gates whether any work is needed.
	t, err := transcript.ParseFile(fi.Path, 0)
	if err != nil {
		return 0, err
	}
	if len(t.Messages) == 0 {
		if err := im.st.Record(fi.Path, hash, t.EndOffset, 0); err != nil {
			return 0, err
		}
		return -1, nil
	}

	summary := extract.Build(t)
	point, err := im.buildPoint(ctx, summary)
	if err != nil {
		return 0, err
	}

	mode := im.emb.Current()
	collection := project.CollectionName(t.ProjectPath, mode.WriteSuffix)
	if err := im.store.EnsureCollection(ctx, collection, mode.Dimension); err != nil {
		return 0, fmt.Errorf("ensure %s: %w", collection, err)
	}
	if err := im.store.Upsert(ctx, collection, []qdrant.Point{point}); err != nil {
		return 0, err
	}

	if im.cat != nil {
		err := im.cat.Upsert(catalog.Conversation{
			ConversationID: summary.ConversationID,
			ProjectPath:    t.ProjectPath,
			ProjectName:    project.Normalize(t.ProjectPath),
			FilePath:       fi.Path,
			Timestamp:      summary.Timestamp.UTC().Format(time.RFC3339),
			MessageCount:   summary.MessageCount,
			SearchIndex:    summary.SearchIndex,
			ContextCache:   summary.ContextCache,
		})
		if err != nil {
			slog.Warn("catalog upsert failed", "conversation", summary.ConversationID, "err", err)
		}
	}

	if err := im.st.Record(fi.Path, hash, t.EndOffset, 1); err != nil {
		return 0, err
	}
	return 1, nil
}

func (im *Importer) buildPoint(ctx context.Context, s *extract.Summary) (qdrant.Point, error) {
	vector, err := im.emb.EmbedOne(ctx, s.SearchIndex)
	if err != nil {
		return qdrant.Point{}, fmt.Errorf("embed summary: %w", err)
	}

	id := uuid.NewMD5(conversationNamespace, []byte(s.ConversationID)).String()
	return qdrant.Point{
		ID:     id,
		Vector: vector,
		Payload: map[string]any{
			"timestamp":       s.Timestamp.UTC().Format(time.RFC3339),
			"conversation_id": s.ConversationID,
			"project_name":    project.Normalize(s.ProjectPath),
			"text":            s.SearchIndex,
			"message_index":   0,
			"total_messages":  s.MessageCount,
			"concepts":        s.Concepts,
			"files_analyzed":  s.FilesAnalyzed,
			"files_edited":    s.FilesEdited,
			"tools_used":      s.ToolsUsed,
			"has_code_blocks": s.HasCodeBlocks,
			"signature":       s.Signature,
		},
	}, nil
}

func fileHash(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := md5.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
