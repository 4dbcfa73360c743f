// Package embedding provides a uniform embed(text) → vector operation with
// two interchangeable backends: a local sentence-transformer sidecar
// (384-dim) and the Voyage API (1024-dim). Backends initialize lazily and
// can be switched at runtime; each backend family writes to its own
// collection suffix so existing collections stay readable after a switch.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Zuo-Peng/ai-memory-search/internal/config"
)

// Mode selects the active backend.
type Mode string

const (
	ModeLocal Mode = "local"
	ModeCloud Mode = "cloud"
)

// ErrNoCredential is returned when switching to the cloud backend without
// a configured API key.
var ErrNoCredential = errors.New("no Voyage API key configured (set VOYAGE_KEY)")

// Provider generates fixed-dimension vectors for text.
type Provider interface {
	Name() string
	Model() string
	Dimension() int
	Suffix() string // collection suffix: "local" or "voyage"
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ModeInfo reports the active backend for current_mode callers.
type ModeInfo struct {
	Backend       string `json:"backend"`
	Model         string `json:"model"`
	Dimension     int    `json:"dimension"`
	HasCredential bool   `json:"has_credential"`
	WriteSuffix   string `json:"write_suffix"`
}

const cacheSize = 4096

// Manager owns the process-wide backend state. It is the explicit-context
// replacement for the singletons the backends would otherwise be: construct
// one, pass it everywhere.
type Manager struct {
	cfg *config.Config

	mu     sync.Mutex
	mode   Mode
	active Provider
	cache  *lru.Cache[string, []float32]
}

// NewManager picks the default mode: local when preferred or when no
// credential is available, cloud otherwise. No backend is initialized
// until first use.
func NewManager(cfg *config.Config) *Manager {
	mode := ModeCloud
	if cfg.PreferLocal || cfg.VoyageKey == "" {
		mode = ModeLocal
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &Manager{cfg: cfg, mode: mode, cache: cache}
}

// Active returns the initialized provider for the current mode,
// initializing lazily and falling back to the other backend if the
// preferred one cannot start.
func (m *Manager) Active(ctx context.Context) (Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeLocked(ctx)
}

func (m *Manager) activeLocked(ctx context.Context) (Provider, error) {
	if m.active != nil {
		return m.active, nil
	}

	p, err := m.build(m.mode)
	if err == nil {
		err = probe(ctx, p)
	}
	if err != nil {
		other := ModeLocal
		if m.mode == ModeLocal {
			other = ModeCloud
		}
		fallback, ferr := m.build(other)
		if ferr == nil {
			ferr = probe(ctx, fallback)
		}
		if ferr != nil {
			return nil, fmt.Errorf("embedding backend %s unavailable (%v), fallback %s also failed: %w", m.mode, err, other, ferr)
		}
		slog.Warn("embedding backend unavailable, falling back", "preferred", m.mode, "using", other, "error", err)
		m.mode = other
		m.active = fallback
		return fallback, nil
	}

	slog.Info("embedding backend ready", "backend", p.Name(), "model", p.Model(), "dim", p.Dimension())
	m.active = p
	return p, nil
}

func (m *Manager) build(mode Mode) (Provider, error) {
	switch mode {
	case ModeCloud:
		if m.cfg.VoyageKey == "" {
			return nil, ErrNoCredential
		}
		return newVoyageProvider(m.cfg), nil
	default:
		return newLocalProvider(m.cfg), nil
	}
}

// probe embeds a short string to verify the backend actually works before
// it is adopted.
func probe(ctx context.Context, p Provider) error {
	vecs, err := p.Embed(ctx, []string{"ping"})
	if err != nil {
		return err
	}
	if len(vecs) != 1 || len(vecs[0]) != p.Dimension() {
		return fmt.Errorf("backend %s returned dimension %d, want %d", p.Name(), len(vecs[0]), p.Dimension())
	}
	return nil
}

// Switch replaces the active backend. Switching to cloud fails fast
// without a credential. Collections written under the previous suffix stay
// readable; new writes go to the new suffix.
func (m *Manager) Switch(target Mode) error {
	if target != ModeLocal && target != ModeCloud {
		return fmt.Errorf("unknown embedding mode %q", target)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if target == ModeCloud && m.cfg.VoyageKey == "" {
		return ErrNoCredential
	}
	if target == m.mode && m.active != nil {
		return nil
	}
	m.mode = target
	m.active = nil // re-initialize lazily
	slog.Info("embedding mode switched", "mode", target)
	return nil
}

// Current reports the active backend without initializing it.
func (m *Manager) Current() ModeInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := ModeInfo{
		Backend:       string(m.mode),
		HasCredential: m.cfg.VoyageKey != "",
	}
	switch m.mode {
	case ModeCloud:
		info.Model = m.cfg.VoyageModel
		info.Dimension = voyageDimension
		info.WriteSuffix = "voyage"
	default:
		info.Model = m.cfg.LocalModel
		info.Dimension = localDimension
		info.WriteSuffix = "local"
	}
	if m.active != nil {
		info.Model = m.active.Model()
		info.Dimension = m.active.Dimension()
		info.WriteSuffix = m.active.Suffix()
	}
	return info
}

// Embed runs texts through the active backend with an LRU cache in front,
// keyed by backend, model, and content hash.
func (m *Manager) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	p, err := m.Active(ctx)
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, t := range texts {
		if v, ok := m.cache.Get(cacheKey(p, t)); ok {
			out[i] = v
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) > 0 {
		vecs, err := p.Embed(ctx, missing)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(missing) {
			return nil, fmt.Errorf("backend %s returned %d vectors for %d texts", p.Name(), len(vecs), len(missing))
		}
		for j, v := range vecs {
			out[missingIdx[j]] = v
			m.cache.Add(cacheKey(p, missing[j]), v)
		}
	}
	return out, nil
}

// EmbedOne is the single-text convenience used by the query path.
func (m *Manager) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func cacheKey(p Provider, text string) string {
	sum := sha256.Sum256([]byte(text))
	return p.Name() + "|" + p.Model() + "|" + hex.EncodeToString(sum[:16])
}
