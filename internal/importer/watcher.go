package importer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceWindow = 2 * time.Second

// Watcher follows the transcript tree and imports files shortly after
// they stop changing. Claude Code appends to transcripts while a
// session is live, so writes are debounced per path.
type Watcher struct {
	im   *Importer
	root string

	mu      sync.Mutex
	pending map[string]time.Time
}

func NewWatcher(im *Importer, root string) *Watcher {
	return &Watcher{im: im, root: root, pending: make(map[string]time.Time)}
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.addDirs(fw); err != nil {
		return err
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	slog.Info("watching transcripts", "root", w.root)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "err", err)
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) addDirs(fw *fsnotify.Watcher) error {
	return filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() && info.Name() != "subagents" {
			return fw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event) {
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if filepath.Base(ev.Name) != "subagents" {
				fw.Add(ev.Name)
			}
			return
		}
	}
	if !strings.HasSuffix(ev.Name, ".jsonl") {
		return
	}
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
		return
	}
	w.mu.Lock()
	w.pending[ev.Name] = time.Now()
	w.mu.Unlock()
}

// flush imports paths whose last write is older than the debounce
// window.
func (w *Watcher) flush(ctx context.Context) {
	now := time.Now()
	var ready []string
	w.mu.Lock()
	for path, last := range w.pending {
		if now.Sub(last) >= debounceWindow {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		n, err := w.im.ImportOne(ctx, path)
		if err != nil {
			slog.Warn("watch import failed", "file", path, "err", err)
			continue
		}
		if n >= 0 {
			slog.Info("imported", "file", path)
		}
	}
}
