package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Zuo-Peng/ai-memory-search/internal/config"
)

const upsertBatchSize = 100

// Client is a pooled, retrying HTTP client for one Qdrant instance.
type Client struct {
	baseURL     string
	http        *http.Client
	pool        *semaphore.Weighted
	poolTimeout time.Duration
	callTimeout time.Duration
	retries     int
	backoffBase time.Duration
	brk         *breaker
}

// New builds a client from the pool/retry/breaker settings in cfg.
func New(cfg *config.Config) *Client {
	poolSize := int64(cfg.PoolSize + cfg.PoolOverflow)
	if poolSize <= 0 {
		poolSize = 15
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.QdrantURL, "/"),
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        cfg.PoolSize + cfg.PoolOverflow,
				MaxIdleConnsPerHost: cfg.PoolSize,
			},
		},
		pool:        semaphore.NewWeighted(poolSize),
		poolTimeout: cfg.PoolTimeout(),
		callTimeout: cfg.RequestTimeout(),
		retries:     cfg.RetryAttempts,
		backoffBase: cfg.RetryBackoff(),
		brk:         newBreaker(cfg.BreakerThreshold, cfg.BreakerRecovery()),
	}
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

// do runs one logical call: breaker check, pool slot, then up to retries
// attempts with exponential backoff and jitter.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if !c.brk.allow() {
		return ErrCircuitOpen
	}

	acquireCtx, cancel := context.WithTimeout(ctx, c.poolTimeout)
	err := c.pool.Acquire(acquireCtx, 1)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrPoolExhausted
		}
		return err
	}
	defer c.pool.Release(1)

	var lastErr error
	attempts := c.retries
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = attempts
				continue
			case <-time.After(backoffDelay(c.backoffBase, attempt-1)):
			}
		}

		lastErr = c.attempt(ctx, method, path, body, out)
		if lastErr == nil {
			c.brk.success()
			return nil
		}
		if !retryableError(lastErr) {
			break
		}
	}

	c.brk.failure()
	return lastErr
}

func (c *Client) attempt(ctx context.Context, method, path string, body, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %s %s", ErrTimeout, method, path)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

func retryableError(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	var serr *StatusError
	if errors.As(err, &serr) {
		return serr.Code >= 500
	}
	return true
}

// backoffDelay is base·2^attempt with ±25% jitter.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	delay := base << uint(attempt)
	quarter := delay / 4
	if quarter > 0 {
		delay += time.Duration(rand.Int63n(int64(quarter*2))) - quarter
	}
	return delay
}

// ListCollections returns the names of all collections.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	var out struct {
		Collections []struct {
			Name string `json:"name"`
		} `json:"collections"`
	}
	if err := c.do(ctx, http.MethodGet, "/collections", nil, &out); err != nil {
		return nil, err
	}
	names := make([]string, len(out.Collections))
	for i, col := range out.Collections {
		names[i] = col.Name
	}
	return names, nil
}

// GetCollection returns the collection's vector dimension.
func (c *Client) GetCollection(ctx context.Context, name string) (CollectionInfo, error) {
	var out struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	if err := c.do(ctx, http.MethodGet, "/collections/"+name, nil, &out); err != nil {
		return CollectionInfo{}, err
	}
	return CollectionInfo{Name: name, Dimension: out.Config.Params.Vectors.Size}, nil
}

// EnsureCollection creates the collection if absent. Creating an existing
// collection is a no-op, but an existing collection with a different
// dimension is a hard error: there is no in-place conversion.
func (c *Client) EnsureCollection(ctx context.Context, name string, dim int) error {
	info, err := c.GetCollection(ctx, name)
	if err == nil {
		if info.Dimension != dim {
			return fmt.Errorf("collection %s has dimension %d, want %d", name, info.Dimension, dim)
		}
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	if err := c.do(ctx, http.MethodPut, "/collections/"+name, body, nil); err != nil {
		// Lost a creation race: fine as long as the dimension agrees.
		var serr *StatusError
		if errors.As(err, &serr) && serr.Code == http.StatusConflict {
			return nil
		}
		return err
	}
	slog.Info("collection created", "name", name, "dim", dim)
	return nil
}

// Upsert writes points in batches. A failed batch surfaces an error naming
// the affected range rather than succeeding partially in silence.
func (c *Client) Upsert(ctx context.Context, collection string, points []Point) error {
	for start := 0; start < len(points); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(points) {
			end = len(points)
		}
		body := map[string]any{"points": points[start:end]}
		if err := c.do(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", body, nil); err != nil {
			return fmt.Errorf("upsert %s points %d..%d: %w", collection, start, end-1, err)
		}
	}
	return nil
}

type rawPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (p rawPoint) scored() ScoredPoint {
	return ScoredPoint{ID: fmt.Sprint(p.ID), Score: p.Score, Payload: p.Payload}
}

// Search runs a vector similarity search. When params.Decay is set the
// decay formula is pushed down to the server through the query API.
func (c *Client) Search(ctx context.Context, collection string, params SearchParams) ([]ScoredPoint, error) {
	if params.Decay != nil {
		return c.searchWithDecay(ctx, collection, params)
	}

	body := map[string]any{
		"vector":       params.Vector,
		"limit":        params.Limit,
		"with_payload": params.WithPayload,
	}
	if params.Offset > 0 {
		body["offset"] = params.Offset
	}
	if params.ScoreThreshold > 0 {
		body["score_threshold"] = params.ScoreThreshold
	}
	if params.Filter != nil {
		body["filter"] = params.Filter
	}

	var out []rawPoint
	if err := c.do(ctx, http.MethodPost, "/collections/"+collection+"/points/search", body, &out); err != nil {
		return nil, err
	}
	points := make([]ScoredPoint, len(out))
	for i, rp := range out {
		points[i] = rp.scored()
	}
	return points, nil
}

// searchWithDecay submits final = score·(1−w) + score·w·exp_decay(age),
// where exp_decay has its midpoint (0.5) at the half-life.
func (c *Client) searchWithDecay(ctx context.Context, collection string, params SearchParams) ([]ScoredPoint, error) {
	d := params.Decay
	decayExpr := map[string]any{
		"exp_decay": map[string]any{
			"x":        map[string]any{"datetime_key": d.TimestampKey},
			"target":   map[string]any{"datetime": time.Now().UTC().Format(time.RFC3339)},
			"scale":    int64(d.HalfLifeDays * 24 * 3600 * 1000), // milliseconds
			"midpoint": 0.5,
		},
	}
	formula := map[string]any{
		"sum": []any{
			map[string]any{"mult": []any{"$score", 1 - d.Weight}},
			map[string]any{"mult": []any{"$score", d.Weight, decayExpr}},
		},
	}

	prefetch := map[string]any{
		"query": params.Vector,
		"limit": params.Limit + params.Offset,
	}
	if params.Filter != nil {
		prefetch["filter"] = params.Filter
	}

	body := map[string]any{
		"prefetch":     prefetch,
		"query":        map[string]any{"formula": formula},
		"limit":        params.Limit,
		"with_payload": params.WithPayload,
	}
	if params.Offset > 0 {
		body["offset"] = params.Offset
	}
	if params.ScoreThreshold > 0 {
		body["score_threshold"] = params.ScoreThreshold
	}

	var out struct {
		Points []rawPoint `json:"points"`
	}
	if err := c.do(ctx, http.MethodPost, "/collections/"+collection+"/points/query", body, &out); err != nil {
		return nil, err
	}
	points := make([]ScoredPoint, len(out.Points))
	for i, rp := range out.Points {
		points[i] = rp.scored()
	}
	return points, nil
}

// SupportsDecayFormula probes whether the server accepts formula queries.
// Older servers reject the query API with a 4xx; the engine then computes
// decay client-side.
func (c *Client) SupportsDecayFormula(ctx context.Context, anyCollection string) bool {
	if anyCollection == "" {
		return false
	}
	_, err := c.searchWithDecay(ctx, anyCollection, SearchParams{
		Vector: make([]float32, 1),
		Limit:  1,
		Decay:  &DecaySpec{Weight: 0.3, HalfLifeDays: 90, TimestampKey: "timestamp"},
	})
	var serr *StatusError
	if errors.As(err, &serr) && serr.Code >= 400 && serr.Code < 500 {
		return false
	}
	return true
}

// Scroll pages through points matching a filter, newest API shape:
// returns the page and the opaque next-page offset (nil at the end).
func (c *Client) Scroll(ctx context.Context, collection string, filter *Filter, limit int, offset any) ([]ScoredPoint, any, error) {
	body := map[string]any{
		"limit":        limit,
		"with_payload": true,
	}
	if filter != nil {
		body["filter"] = filter
	}
	if offset != nil {
		body["offset"] = offset
	}

	var out struct {
		Points         []rawPoint `json:"points"`
		NextPageOffset any        `json:"next_page_offset"`
	}
	if err := c.do(ctx, http.MethodPost, "/collections/"+collection+"/points/scroll", body, &out); err != nil {
		return nil, nil, err
	}
	points := make([]ScoredPoint, len(out.Points))
	for i, rp := range out.Points {
		points[i] = rp.scored()
	}
	return points, out.NextPageOffset, nil
}
