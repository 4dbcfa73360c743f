package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Zuo-Peng/ai-memory-search/internal/config"
)

const localDimension = 384

// localEncodeSlots bounds in-flight encode requests: the sidecar encode is
// CPU-bound and queues internally, so piling on requests only adds latency.
const localEncodeSlots = 2

// localProvider talks to the local sentence-transformer sidecar over HTTP.
type localProvider struct {
	url    string
	model  string
	client *http.Client
	slots  *semaphore.Weighted
}

func newLocalProvider(cfg *config.Config) *localProvider {
	return &localProvider{
		url:    strings.TrimSuffix(cfg.LocalEmbeddingURL, "/"),
		model:  cfg.LocalModel,
		client: &http.Client{Timeout: 60 * time.Second},
		slots:  semaphore.NewWeighted(localEncodeSlots),
	}
}

func (p *localProvider) Name() string   { return "local" }
func (p *localProvider) Model() string  { return p.model }
func (p *localProvider) Dimension() int { return localDimension }
func (p *localProvider) Suffix() string { return "local" }

type localEmbedRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model,omitempty"`
}

type localEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (p *localProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.slots.Release(1)

	body, err := json.Marshal(localEmbedRequest{Texts: texts, Model: p.model})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("local embedding server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("local embedding server: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out localEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("local embedding server: decode: %w", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("local embedding server: got %d embeddings for %d texts", len(out.Embeddings), len(texts))
	}
	return out.Embeddings, nil
}
