// Package state tracks which transcript files have been imported and how
// far. The ledger is shared across processes: the batch importer and the
// streaming watchers each write their own file under the state directory,
// and reads merge them all.
package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// Entry records import progress for one transcript file.
type Entry struct {
	Offset int64  `json:"offset"`
	Chunks int    `json:"chunks"`
	Hash   string `json:"hash"`
}

type fileDoc struct {
	ImportedFiles map[string]Entry `json:"imported_files"`
	LastUpdated   string           `json:"last_updated"`
}

// Store is the filesystem-backed import ledger. Writes go to the store's
// own file; Load merges every *.json in the directory with last-writer
// precedence per path.
type Store struct {
	dir  string
	name string // this writer's file, e.g. "imported.json"
}

// NewStore creates a Store writing to <dir>/<name>.json.
func NewStore(dir, name string) *Store {
	return &Store{dir: dir, name: name + ".json"}
}

func (s *Store) path() string { return filepath.Join(s.dir, s.name) }

// Canonical resolves a path so the same logical file appears once in the
// ledger regardless of how it was spelled.
func Canonical(path string) string {
	p := path
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[2:])
		}
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		p = resolved
	}
	return filepath.ToSlash(p)
}

// Load reads and merges all state files in the directory. A corrupt file
// contributes nothing and logs a warning; it is never overwritten by Load.
func (s *Store) Load() (map[string]Entry, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, err
	}

	type doc struct {
		path string
		d    fileDoc
	}
	var docs []doc
	for _, m := range matches {
		d, err := readStateFileShared(m)
		if err != nil {
			slog.Warn("unreadable state file, treating as empty", "path", m, "error", err)
			continue
		}
		docs = append(docs, doc{path: m, d: d})
	}

	// Oldest first so newer files win per path.
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].d.LastUpdated < docs[j].d.LastUpdated
	})

	merged := make(map[string]Entry)
	for _, d := range docs {
		for p, e := range d.d.ImportedFiles {
			merged[Canonical(p)] = e
		}
	}
	return merged, nil
}

// IsImported reports whether the path has been imported past offset zero.
func (s *Store) IsImported(path string) bool {
	m, err := s.Load()
	if err != nil {
		return false
	}
	e, ok := m[Canonical(path)]
	return ok && e.Offset > 0
}

// Lookup returns the merged entry for a path.
func (s *Store) Lookup(path string) (Entry, bool) {
	m, err := s.Load()
	if err != nil {
		return Entry{}, false
	}
	e, ok := m[Canonical(path)]
	return e, ok
}

// Record commits an updated entry under an exclusive lock. The offset for a
// path never decreases unless the content hash changed, in which case the
// entry is replaced wholesale.
func (s *Store) Record(path, hash string, offset int64, chunks int) error {
	return s.update(func(doc *fileDoc) error {
		key := Canonical(path)
		if prev, ok := doc.ImportedFiles[key]; ok && prev.Hash == hash && offset < prev.Offset {
			return fmt.Errorf("offset regression for %s: %d < %d", key, offset, prev.Offset)
		}
		doc.ImportedFiles[key] = Entry{Offset: offset, Chunks: chunks, Hash: hash}
		return nil
	})
}

// Reset removes a path from this writer's ledger, forcing re-import.
func (s *Store) Reset(path string) error {
	return s.update(func(doc *fileDoc) error {
		delete(doc.ImportedFiles, Canonical(path))
		return nil
	})
}

// update performs a locked read-modify-write of this writer's state file.
func (s *Store) update(mutate func(*fileDoc) error) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	lock := flock.New(s.path() + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock state file: %w", err)
	}
	defer lock.Unlock()

	doc, err := readStateFile(s.path())
	if err != nil {
		if !os.IsNotExist(err) {
			// An unreadable file still holds every prior import record.
			// Set it aside for recovery; the rename below would
			// otherwise destroy it.
			aside := s.path() + ".corrupt"
			if rerr := os.Rename(s.path(), aside); rerr != nil {
				return fmt.Errorf("state file unreadable (%v) and could not be set aside: %w", err, rerr)
			}
			slog.Error("unreadable state file set aside", "path", s.path(), "moved_to", aside, "error", err)
		}
		doc = fileDoc{}
	}
	if doc.ImportedFiles == nil {
		doc.ImportedFiles = make(map[string]Entry)
	}

	if err := mutate(&doc); err != nil {
		return err
	}
	doc.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	return writeAtomic(s.path(), doc)
}

// readStateFileShared holds a shared lock for the read so a concurrent
// writer's read-modify-write cannot interleave with it.
func readStateFileShared(path string) (fileDoc, error) {
	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		slog.Warn("shared lock unavailable, reading unlocked", "path", path, "error", err)
	} else {
		defer lock.Unlock()
	}
	return readStateFile(path)
}

func readStateFile(path string) (fileDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileDoc{}, err
	}
	var doc fileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fileDoc{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if doc.ImportedFiles == nil {
		doc.ImportedFiles = make(map[string]Entry)
	}
	return doc, nil
}

// writeAtomic writes to a sibling temp file, fsyncs, then rename-replaces.
// A crash mid-write leaves an orphan temp file that the next start ignores.
func writeAtomic(path string, doc fileDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
