package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Zuo-Peng/ai-memory-search/internal/config"
)

const (
	voyageDimension = 1024
	voyageBaseURL   = "https://api.voyageai.com/v1"
	voyageRetries   = 3
)

// voyageProvider calls the Voyage embeddings API through its
// OpenAI-compatible endpoint.
type voyageProvider struct {
	client openai.Client
	model  string
}

func newVoyageProvider(cfg *config.Config) *voyageProvider {
	return &voyageProvider{
		client: openai.NewClient(
			option.WithAPIKey(cfg.VoyageKey),
			option.WithBaseURL(voyageBaseURL),
		),
		model: cfg.VoyageModel,
	}
}

func (p *voyageProvider) Name() string   { return "voyage" }
func (p *voyageProvider) Model() string  { return p.model }
func (p *voyageProvider) Dimension() int { return voyageDimension }
func (p *voyageProvider) Suffix() string { return "voyage" }

func (p *voyageProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < voyageRetries; attempt++ {
		if attempt > 0 {
			delay := time.Second * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Model: openai.EmbeddingModel(p.model),
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
		})
		if err != nil {
			lastErr = err
			if !isRetryable(err) {
				return nil, fmt.Errorf("voyage: %w", err)
			}
			continue
		}

		if len(resp.Data) != len(texts) {
			return nil, fmt.Errorf("voyage: got %d embeddings for %d texts", len(resp.Data), len(texts))
		}
		vecs := make([][]float32, len(resp.Data))
		for i, d := range resp.Data {
			v := make([]float32, len(d.Embedding))
			for j, f := range d.Embedding {
				v[j] = float32(f)
			}
			vecs[i] = v
		}
		return vecs, nil
	}
	return nil, fmt.Errorf("voyage: max retries exceeded: %w", lastErr)
}

func isRetryable(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "500") ||
		strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "timeout")
}
