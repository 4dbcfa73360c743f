// Package qdrant is a small REST client for a Qdrant-compatible vector
// store: create-if-absent collections, batched upserts, vector search with
// optional server-side decay rescoring, scroll, and discovery. Calls go
// through a bounded connection pool, per-call timeouts, retry with
// exponential backoff, and a circuit breaker.
package qdrant

import (
	"errors"
	"fmt"
)

// Error kinds the retrieval engine distinguishes.
var (
	ErrTimeout       = errors.New("vector store call timed out")
	ErrCircuitOpen   = errors.New("vector store circuit open")
	ErrPoolExhausted = errors.New("vector store connection pool exhausted")
	ErrNotFound      = errors.New("not found")
)

// StatusError is a non-2xx response from the store.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vector store: status %d: %s", e.Code, e.Body)
}

// Point is the storage unit: a stable ID, one vector, and payload metadata.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// ScoredPoint is a search or scroll hit.
type ScoredPoint struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// CollectionInfo describes an existing collection.
type CollectionInfo struct {
	Name      string
	Dimension int
}

// Filter is the subset of Qdrant's filter DSL this system needs: exact
// matches and a timestamp range.
type Filter struct {
	Must []Condition `json:"must,omitempty"`
}

// Condition matches a payload key against a value or range.
type Condition struct {
	Key   string      `json:"key"`
	Match *MatchValue `json:"match,omitempty"`
	Range *RangeValue `json:"range,omitempty"`
}

type MatchValue struct {
	Value any `json:"value"`
}

type RangeValue struct {
	GTE any `json:"gte,omitempty"`
	LTE any `json:"lte,omitempty"`
}

// SearchParams drives one collection search.
type SearchParams struct {
	Vector         []float32
	Limit          int
	Offset         int
	ScoreThreshold float64
	WithPayload    bool
	Filter         *Filter

	// Decay, when non-nil, asks the server to rescore with the
	// time-decay formula instead of returning raw cosine similarity.
	Decay *DecaySpec
}

// DecaySpec parameterizes the server-side decay formula:
// final = score·(1−w) + score·w·exp(−ln2·age/half_life).
type DecaySpec struct {
	Weight       float64
	HalfLifeDays float64
	TimestampKey string // payload field holding the RFC3339 timestamp
}
