package catalog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	_ "modernc.org/sqlite"
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA cache_size = -64000;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS conversations (
    conversation_id TEXT PRIMARY KEY,
    project_path    TEXT NOT NULL,
    project_name    TEXT NOT NULL,
    file_path       TEXT NOT NULL,
    timestamp       TEXT NOT NULL DEFAULT '',
    message_count   INTEGER NOT NULL DEFAULT 0,
    search_index    TEXT NOT NULL DEFAULT '',
    context_cache   TEXT NOT NULL DEFAULT ''
);

CREATE VIRTUAL TABLE IF NOT EXISTS conversations_fts USING fts5(
    search_index,
    content=conversations,
    content_rowid=rowid,
    tokenize='unicode61'
);

-- triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS conversations_ai AFTER INSERT ON conversations BEGIN
    INSERT INTO conversations_fts(rowid, search_index) VALUES (new.rowid, new.search_index);
END;

CREATE TRIGGER IF NOT EXISTS conversations_ad AFTER DELETE ON conversations BEGIN
    INSERT INTO conversations_fts(conversations_fts, rowid, search_index) VALUES('delete', old.rowid, old.search_index);
END;

CREATE TRIGGER IF NOT EXISTS conversations_au AFTER UPDATE ON conversations BEGIN
    INSERT INTO conversations_fts(conversations_fts, rowid, search_index) VALUES('delete', old.rowid, old.search_index);
    INSERT INTO conversations_fts(rowid, search_index) VALUES (new.rowid, new.search_index);
END;
`

// DB is the local registry of imported conversations. It backs keyword
// boosting at search time and lets "get full conversation" map an ID
// straight back to its transcript file.
type DB struct {
	db *sql.DB
}

func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

type Conversation struct {
	ConversationID string
	ProjectPath    string
	ProjectName    string
	FilePath       string
	Timestamp      string
	MessageCount   int
	SearchIndex    string
	ContextCache   string
}

func (d *DB) Upsert(c Conversation) error {
	_, err := d.db.Exec(`
		INSERT INTO conversations
		    (conversation_id, project_path, project_name, file_path, timestamp, message_count, search_index, context_cache)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
		    project_path = excluded.project_path,
		    project_name = excluded.project_name,
		    file_path = excluded.file_path,
		    timestamp = excluded.timestamp,
		    message_count = excluded.message_count,
		    search_index = excluded.search_index,
		    context_cache = excluded.context_cache`,
		c.ConversationID, c.ProjectPath, c.ProjectName, c.FilePath,
		c.Timestamp, c.MessageCount, c.SearchIndex, c.ContextCache,
	)
	return err
}

func (d *DB) Get(conversationID string) (*Conversation, error) {
	var c Conversation
	err := d.db.QueryRow(`
		SELECT conversation_id, project_path, project_name, file_path, timestamp, message_count, search_index, context_cache
		FROM conversations WHERE conversation_id = ?`,
		conversationID,
	).Scan(&c.ConversationID, &c.ProjectPath, &c.ProjectName, &c.FilePath,
		&c.Timestamp, &c.MessageCount, &c.SearchIndex, &c.ContextCache)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// KeywordHit is one FTS match; Score is bm25 folded to 0..1 where higher
// is better, so it can merge with cosine similarity directly.
type KeywordHit struct {
	ConversationID string
	Score          float64
}

// SearchKeyword runs an FTS match over conversation summaries. Query terms
// are quoted individually so user punctuation cannot break FTS syntax.
func (d *DB) SearchKeyword(query string, limit int) ([]KeywordHit, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := d.db.Query(`
		SELECT c.conversation_id, bm25(conversations_fts)
		FROM conversations_fts f
		JOIN conversations c ON c.rowid = f.rowid
		WHERE conversations_fts MATCH ?
		ORDER BY bm25(conversations_fts)
		LIMIT ?`,
		match, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []KeywordHit
	for rows.Next() {
		var h KeywordHit
		var rank float64
		if err := rows.Scan(&h.ConversationID, &rank); err != nil {
			return nil, err
		}
		// bm25 returns negative ranks, best first.
		h.Score = 1.0 / (1.0 - rank)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func ftsQuery(query string) string {
	var terms []string
	for _, w := range strings.Fields(query) {
		w = strings.ReplaceAll(w, `"`, ``)
		if !strings.ContainsFunc(w, func(r rune) bool {
			return unicode.IsLetter(r) || unicode.IsDigit(r)
		}) {
			// pure punctuation tokenizes to an empty phrase
			continue
		}
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}

func (d *DB) Count() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM conversations").Scan(&n)
	return n, err
}

// Projects returns distinct project paths with conversation counts,
// most conversations first.
func (d *DB) Projects() (map[string]int, error) {
	rows, err := d.db.Query("SELECT project_path, COUNT(*) FROM conversations GROUP BY project_path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var p string
		var n int
		if err := rows.Scan(&p, &n); err != nil {
			return nil, err
		}
		out[p] = n
	}
	return out, rows.Err()
}
