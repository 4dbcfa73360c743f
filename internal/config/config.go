package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds every tunable of the memory search core. Values come from
// ~/.config/aim/config.toml when present, with environment overrides for
// the handful of settings that differ per machine.
type Config struct {
	TranscriptRoot string `toml:"transcript_root"`
	StateDir       string `toml:"state_dir"`
	CatalogPath    string `toml:"catalog_path"`

	QdrantURL string `toml:"qdrant_url"`

	PreferLocal       bool   `toml:"prefer_local"`
	VoyageKey         string `toml:"voyage_key"`
	LocalEmbeddingURL string `toml:"local_embedding_url"`
	LocalModel        string `toml:"local_model"`
	VoyageModel       string `toml:"voyage_model"`

	EnableDecay       bool    `toml:"enable_decay"`
	DecayWeight       float64 `toml:"decay_weight"`
	DecayHalfLifeDays float64 `toml:"decay_half_life_days"`
	UseNativeDecay    bool    `toml:"use_native_decay"`

	MaxResultsPerCollection int `toml:"max_results_per_collection"`
	MaxTotalResults         int `toml:"max_total_results"`

	PoolSize             int     `toml:"pool_size"`
	PoolOverflow         int     `toml:"pool_overflow"`
	PoolTimeoutS         int     `toml:"pool_timeout_s"`
	RetryAttempts        int     `toml:"retry_attempts"`
	RetryBackoffS        float64 `toml:"retry_backoff_s"`
	RequestTimeoutS      int     `toml:"request_timeout_s"`
	BreakerThreshold     int     `toml:"breaker_threshold"`
	BreakerRecoveryS     int     `toml:"breaker_recovery_s"`
	MaxConcurrentSearch  int     `toml:"max_concurrent_searches"`
	EnableParallelSearch bool    `toml:"enable_parallel_search"`

	SessionGapMinutes int `toml:"session_gap_minutes"`
	SessionMinChunks  int `toml:"session_min_chunks"`
}

// Load reads config.toml if present and applies environment overrides.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	cfg := Defaults(home)

	cfgPath := filepath.Join(home, ".config", "aim", "config.toml")
	if _, err := os.Stat(cfgPath); err == nil {
		if _, err := toml.DecodeFile(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	cfg.TranscriptRoot = expandHome(cfg.TranscriptRoot, home)
	cfg.StateDir = expandHome(cfg.StateDir, home)
	cfg.CatalogPath = expandHome(cfg.CatalogPath, home)

	applyEnv(cfg)
	return cfg, nil
}

// Defaults returns a Config with every documented default filled in.
func Defaults(home string) *Config {
	return &Config{
		TranscriptRoot: filepath.Join(home, ".claude", "projects"),
		StateDir:       filepath.Join(home, ".config", "aim", "state"),
		CatalogPath:    filepath.Join(home, ".config", "aim", "catalog.db"),

		QdrantURL: "http://localhost:6333",

		LocalEmbeddingURL: "http://localhost:8765",
		LocalModel:        "all-MiniLM-L6-v2",
		VoyageModel:       "voyage-3.5",

		EnableDecay:       false,
		DecayWeight:       0.3,
		DecayHalfLifeDays: 90,

		MaxResultsPerCollection: 10,
		MaxTotalResults:         1000,

		PoolSize:             10,
		PoolOverflow:         5,
		PoolTimeoutS:         30,
		RetryAttempts:        3,
		RetryBackoffS:        1,
		RequestTimeoutS:      30,
		BreakerThreshold:     5,
		BreakerRecoveryS:     60,
		MaxConcurrentSearch:  10,
		EnableParallelSearch: true,

		SessionGapMinutes: 30,
		SessionMinChunks:  1,
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("QDRANT_URL"); v != "" {
		cfg.QdrantURL = v
	}
	if v := os.Getenv("VOYAGE_KEY"); v != "" {
		cfg.VoyageKey = v
	}
	if v := os.Getenv("PREFER_LOCAL_EMBEDDINGS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PreferLocal = b
		}
	}
	if v := os.Getenv("ENABLE_MEMORY_DECAY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.EnableDecay = b
		}
	}
	if v := os.Getenv("LOCAL_EMBEDDING_URL"); v != "" {
		cfg.LocalEmbeddingURL = v
	}
}

func (c *Config) SessionGap() time.Duration {
	return time.Duration(c.SessionGapMinutes) * time.Minute
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutS) * time.Second
}

func (c *Config) PoolTimeout() time.Duration {
	return time.Duration(c.PoolTimeoutS) * time.Second
}

func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffS * float64(time.Second))
}

func (c *Config) BreakerRecovery() time.Duration {
	return time.Duration(c.BreakerRecoveryS) * time.Second
}

func expandHome(path, home string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
