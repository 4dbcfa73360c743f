package memsearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Zuo-Peng/ai-memory-search/internal/catalog"
	"github.com/Zuo-Peng/ai-memory-search/internal/config"
	"github.com/Zuo-Peng/ai-memory-search/internal/embedding"
	"github.com/Zuo-Peng/ai-memory-search/internal/project"
	"github.com/Zuo-Peng/ai-memory-search/internal/qdrant"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("not found")
	ErrAllUnavailable = errors.New("all collections unavailable")
)

// Weights for mixing vector similarity with keyword rank when the
// catalog is available.
const (
	vectorWeight  = 0.7
	keywordWeight = 0.3
)

// VectorStore is the slice of the vector client the engine needs.
type VectorStore interface {
	ListCollections(ctx context.Context) ([]string, error)
	EnsureCollection(ctx context.Context, name string, dim int) error
	Upsert(ctx context.Context, collection string, points []qdrant.Point) error
	Search(ctx context.Context, collection string, params qdrant.SearchParams) ([]qdrant.ScoredPoint, error)
	Scroll(ctx context.Context, collection string, filter *qdrant.Filter, limit int, offset any) ([]qdrant.ScoredPoint, any, error)
}

// Embedder turns text into vectors and reports the active backend.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	Current() embedding.ModeInfo
}

// Engine answers semantic queries over imported conversations.
type Engine struct {
	cfg   *config.Config
	store VectorStore
	emb   Embedder
	cat   *catalog.DB // optional keyword boost + transcript lookup
	now   func() time.Time
}

func NewEngine(cfg *config.Config, store VectorStore, emb Embedder, cat *catalog.DB) *Engine {
	return &Engine{cfg: cfg, store: store, emb: emb, cat: cat, now: time.Now}
}

// Options parameterize one search.
type Options struct {
	Limit    int      // required, must be positive
	MinScore *float64 // nil means the operation's default; 0 keeps everything
	Offset   int
	Project  string // "" or "all" fans out everywhere
	UseDecay *bool  // nil means follow config
	Hybrid   bool   // mix in catalog keyword rank
}

// Result is one scored hit with its payload unpacked.
type Result struct {
	ID             string
	Score          float64
	Collection     string
	ConversationID string
	ProjectName    string
	Text           string
	Timestamp      time.Time
	MessageIndex   int
	TotalMessages  int
	Concepts       []string
	Files          []string
	Tools          []string
	IsReflection   bool
	Payload        map[string]any
}

// CollectionFailure records one collection that could not be searched.
type CollectionFailure struct {
	Collection string
	Err        error
}

// Outcome statuses. Partial means some collections failed but results
// were still obtained.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// Outcome is the structured response of a search: the caller can always
// tell "no matches" apart from "could not search."
type Outcome struct {
	Status  string
	Results []Result
	Failed  []CollectionFailure
	Note    string
}

func (o *Outcome) noteFailures() {
	if len(o.Failed) == 0 {
		return
	}
	names := make([]string, len(o.Failed))
	for i, f := range o.Failed {
		names[i] = f.Collection
	}
	o.Note = "some collections were unavailable: " + strings.Join(names, ", ")
}

func (o *Options) normalize(defaultMinScore float64) error {
	if o.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidInput, o.Limit)
	}
	// nil means unset; an explicit 0 is a valid threshold that keeps
	// every hit.
	if o.MinScore == nil {
		o.MinScore = &defaultMinScore
	}
	if *o.MinScore < 0 || *o.MinScore > 1 {
		return fmt.Errorf("%w: min_score must be in [0,1], got %g", ErrInvalidInput, *o.MinScore)
	}
	if o.Offset < 0 {
		return fmt.Errorf("%w: offset must not be negative, got %d", ErrInvalidInput, o.Offset)
	}
	return nil
}

// Search embeds the query once, fans out over the target collections,
// merges and ranks, and returns the requested page.
func (e *Engine) Search(ctx context.Context, query string, opts Options) (*Outcome, error) {
	if err := opts.normalize(0.3); err != nil {
		return nil, err
	}

	merged, failed, err := e.run(ctx, query, opts)
	if err != nil {
		return &Outcome{Status: StatusFailed, Failed: failed}, err
	}

	out := &Outcome{Status: StatusOK, Results: page(merged, opts.Offset, opts.Limit), Failed: failed}
	if len(failed) > 0 {
		out.Status = StatusPartial
	}
	out.noteFailures()
	return out, nil
}

// run is the shared pipeline: embed, fan out, merge, decay, rank,
// threshold. It returns the full merged list before pagination.
func (e *Engine) run(ctx context.Context, query string, opts Options) ([]Result, []CollectionFailure, error) {
	vector, err := e.emb.EmbedOne(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("embed query: %w", err)
	}

	collections, err := e.targetCollections(ctx, opts.Project)
	if err != nil {
		return nil, nil, err
	}
	if len(collections) == 0 {
		return nil, nil, nil
	}

	useDecay := e.cfg.EnableDecay
	if opts.UseDecay != nil {
		useDecay = *opts.UseDecay
	}
	native := useDecay && e.cfg.UseNativeDecay

	// Fetch 2x the page from each collection so the global merge has
	// candidates to rank, capped by the per-collection retrieval limit.
	perCollection := (opts.Offset + opts.Limit) * 2
	if m := e.cfg.MaxResultsPerCollection; m > 0 && perCollection > m {
		perCollection = m
	}

	params := qdrant.SearchParams{
		Vector:      vector,
		Limit:       perCollection,
		WithPayload: true,
	}
	if native {
		params.Decay = &qdrant.DecaySpec{
			Weight:       e.cfg.DecayWeight,
			HalfLifeDays: e.cfg.DecayHalfLifeDays,
			TimestampKey: "timestamp",
		}
	}

	var (
		mu      sync.Mutex
		merged  []Result
		failed  []CollectionFailure
		now     = e.now().UTC()
		g, gctx = errgroup.WithContext(ctx)
	)
	if e.cfg.EnableParallelSearch {
		g.SetLimit(e.cfg.MaxConcurrentSearch)
	} else {
		g.SetLimit(1)
	}

	for _, name := range collections {
		name := name
		g.Go(func() error {
			points, err := e.store.Search(gctx, name, params)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("collection search failed", "collection", name, "err", err)
				failed = append(failed, CollectionFailure{Collection: name, Err: err})
				return nil
			}
			for _, p := range points {
				r := resultFromPoint(name, p, now)
				if useDecay && !native {
					r.Score = decayedScore(r.Score, now.Sub(r.Timestamp), e.cfg.DecayWeight, e.cfg.DecayHalfLifeDays)
				}
				merged = append(merged, r)
			}
			return nil
		})
	}
	g.Wait()

	if len(failed) == len(collections) {
		return nil, failed, fmt.Errorf("%w: %d collections failed, first: %v",
			ErrAllUnavailable, len(failed), failed[0].Err)
	}

	if opts.Hybrid && e.cat != nil {
		e.keywordBoost(query, merged)
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})

	kept := merged[:0]
	for _, r := range merged {
		if r.Score >= *opts.MinScore {
			kept = append(kept, r)
		}
	}
	if m := e.cfg.MaxTotalResults; m > 0 && len(kept) > m {
		kept = kept[:m]
	}
	return kept, failed, nil
}

// keywordBoost folds catalog FTS rank into the vector score:
// final = 0.7·vector + 0.3·keyword (keyword 0 when not matched).
func (e *Engine) keywordBoost(query string, results []Result) {
	hits, err := e.cat.SearchKeyword(query, 100)
	if err != nil {
		slog.Warn("keyword boost failed", "err", err)
		return
	}
	if len(hits) == 0 {
		return
	}
	byConv := make(map[string]float64, len(hits))
	for _, h := range hits {
		byConv[h.ConversationID] = h.Score
	}
	for i := range results {
		results[i].Score = vectorWeight*results[i].Score + keywordWeight*byConv[results[i].ConversationID]
	}
}

// targetCollections resolves which collections to fan out to under the
// active backend's suffix. A specific project restricts the fan-out to
// its own collection plus reflections.
func (e *Engine) targetCollections(ctx context.Context, proj string) ([]string, error) {
	suffix := e.emb.Current().WriteSuffix
	if proj != "" && proj != "all" {
		return []string{
			project.CollectionName(proj, suffix),
			project.ReflectionsCollection(suffix),
		}, nil
	}

	all, err := e.store.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	var out []string
	for _, name := range all {
		if project.IsConversationCollection(name, suffix) || name == project.ReflectionsCollection(suffix) {
			out = append(out, name)
		}
	}
	return out, nil
}

func resultFromPoint(collection string, p qdrant.ScoredPoint, now time.Time) Result {
	pl := p.Payload
	r := Result{
		ID:             p.ID,
		Score:          p.Score,
		Collection:     collection,
		Payload:        pl,
		Timestamp:      parsePointTimestamp(pl, now),
		ConversationID: payloadString(pl, "conversation_id"),
		ProjectName:    payloadString(pl, "project_name"),
		Text:           payloadString(pl, "text"),
		Concepts:       payloadStrings(pl, "concepts"),
		Files:          payloadStrings(pl, "files_analyzed"),
		Tools:          payloadStrings(pl, "tools_used"),
	}
	r.Files = append(r.Files, payloadStrings(pl, "files_edited")...)
	r.MessageIndex = payloadInt(pl, "message_index")
	r.TotalMessages = payloadInt(pl, "total_messages")
	r.IsReflection = payloadString(pl, "type") == "reflection"
	return r
}

func payloadString(pl map[string]any, key string) string {
	s, _ := pl[key].(string)
	return s
}

func payloadInt(pl map[string]any, key string) int {
	switch v := pl[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func payloadStrings(pl map[string]any, key string) []string {
	raw, ok := pl[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func page(results []Result, offset, limit int) []Result {
	if offset >= len(results) {
		return nil
	}
	end := offset + limit
	if end > len(results) {
		end = len(results)
	}
	return results[offset:end]
}

// QuickCheck reports whether anything matches: a hit count and the top
// match, nothing more.
func (e *Engine) QuickCheck(ctx context.Context, query, proj string) (int, *Result, error) {
	opts := Options{Limit: 1, Project: proj, UseDecay: boolPtr(false)}
	if err := opts.normalize(0.3); err != nil {
		return 0, nil, err
	}
	merged, _, err := e.run(ctx, query, opts)
	if err != nil {
		return 0, nil, err
	}
	if len(merged) == 0 {
		return 0, nil, nil
	}
	return len(merged), &merged[0], nil
}

// GetMore fetches the next page of an earlier search. Payload retrieval
// stays on for the follow-up so previews are never empty.
func (e *Engine) GetMore(ctx context.Context, query string, offset, limit int, proj string) (*Outcome, error) {
	return e.Search(ctx, query, Options{Limit: limit, Offset: offset, Project: proj})
}

// SearchByFile returns conversations that touched the given file.
// Matching is substring over analyzed and edited paths with separators
// normalized.
func (e *Engine) SearchByFile(ctx context.Context, path string, limit int, proj string) (*Outcome, error) {
	opts := Options{Limit: limit, Project: proj}
	if err := opts.normalize(0.01); err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.ReplaceAll(path, "\\", "/"))
	merged, failed, err := e.run(ctx, path, opts)
	if err != nil {
		return &Outcome{Status: StatusFailed, Failed: failed}, err
	}

	var matched []Result
	for _, r := range merged {
		for _, f := range r.Files {
			if strings.Contains(strings.ToLower(strings.ReplaceAll(f, "\\", "/")), needle) {
				matched = append(matched, r)
				break
			}
		}
	}
	out := &Outcome{Status: StatusOK, Results: page(matched, 0, opts.Limit), Failed: failed}
	if len(failed) > 0 {
		out.Status = StatusPartial
	}
	out.noteFailures()
	return out, nil
}

// SearchByConcept returns conversations tagged with the concept.
func (e *Engine) SearchByConcept(ctx context.Context, concept string, limit int, includeFiles bool, proj string) (*Outcome, error) {
	opts := Options{Limit: limit, Project: proj}
	if err := opts.normalize(0.01); err != nil {
		return nil, err
	}
	needle := strings.ToLower(concept)
	merged, failed, err := e.run(ctx, concept, opts)
	if err != nil {
		return &Outcome{Status: StatusFailed, Failed: failed}, err
	}

	var matched []Result
	for _, r := range merged {
		for _, c := range r.Concepts {
			if strings.ToLower(c) == needle {
				if !includeFiles {
					r.Files = nil
				}
				matched = append(matched, r)
				break
			}
		}
	}
	out := &Outcome{Status: StatusOK, Results: page(matched, 0, opts.Limit), Failed: failed}
	if len(failed) > 0 {
		out.Status = StatusPartial
	}
	out.noteFailures()
	return out, nil
}

// SearchByRecency combines a semantic query with a time window.
func (e *Engine) SearchByRecency(ctx context.Context, query string, window TimeRange, limit int, proj string) (*Outcome, error) {
	opts := Options{Limit: limit, Project: proj}
	if err := opts.normalize(0.3); err != nil {
		return nil, err
	}
	merged, failed, err := e.run(ctx, query, opts)
	if err != nil {
		return &Outcome{Status: StatusFailed, Failed: failed}, err
	}

	var matched []Result
	for _, r := range merged {
		if !r.Timestamp.Before(window.Start) && r.Timestamp.Before(window.End) {
			matched = append(matched, r)
		}
	}
	out := &Outcome{Status: StatusOK, Results: page(matched, 0, opts.Limit), Failed: failed}
	if len(failed) > 0 {
		out.Status = StatusPartial
	}
	out.noteFailures()
	return out, nil
}

// FullConversation maps a conversation ID back to its transcript file.
func (e *Engine) FullConversation(conversationID string) (string, error) {
	if e.cat == nil {
		return "", fmt.Errorf("conversation catalog not available")
	}
	c, err := e.cat.Get(conversationID)
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
	}
	return c.FilePath, nil
}

func boolPtr(b bool) *bool { return &b }
