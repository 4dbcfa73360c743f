package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Zuo-Peng/ai-memory-search/internal/catalog"
	"github.com/Zuo-Peng/ai-memory-search/internal/config"
	"github.com/Zuo-Peng/ai-memory-search/internal/embedding"
	"github.com/Zuo-Peng/ai-memory-search/internal/memsearch"
	"github.com/Zuo-Peng/ai-memory-search/internal/qdrant"
)

// app bundles the wired-up components every command needs.
type app struct {
	cfg    *config.Config
	client *qdrant.Client
	emb    *embedding.Manager
	cat    *catalog.DB
	engine *memsearch.Engine
}

func newApp() (*app, error) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(),
	})))

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	client := qdrant.New(cfg)
	emb := embedding.NewManager(cfg)

	cat, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		// Search still works without the catalog, only keyword boost
		// and conversation lookup degrade.
		slog.Warn("catalog unavailable", "path", cfg.CatalogPath, "err", err)
		cat = nil
	}

	return &app{
		cfg:    cfg,
		client: client,
		emb:    emb,
		cat:    cat,
		engine: memsearch.NewEngine(cfg, client, emb, cat),
	}, nil
}

func (a *app) close() {
	if a.cat != nil {
		a.cat.Close()
	}
}

func logLevel() slog.Level {
	if os.Getenv("AIM_DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}
