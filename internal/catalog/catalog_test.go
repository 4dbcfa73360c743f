package catalog

import (
	"path/filepath"
	"testing"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpsertAndGet(t *testing.T) {
	db := openTest(t)

	c := Conversation{
		ConversationID: "conv-1",
		ProjectPath:    "/home/alice/projects/webapp",
		ProjectName:    "webapp",
		FilePath:       "/home/alice/.claude/projects/webapp/conv-1.jsonl",
		Timestamp:      "2026-08-20T10:00:00Z",
		MessageCount:   42,
		SearchIndex:    "Requests: fix the login redirect",
	}
	if err := db.Upsert(c); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := db.Get("conv-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for stored conversation")
	}
	if got.FilePath != c.FilePath || got.MessageCount != 42 {
		t.Errorf("got %+v", got)
	}

	// re-import replaces the row rather than duplicating it
	c.MessageCount = 50
	c.SearchIndex = "Requests: fix the login redirect and add tests"
	if err := db.Upsert(c); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	got, err = db.Get("conv-1")
	if err != nil {
		t.Fatalf("Get after update: %v", err)
	}
	if got.MessageCount != 50 {
		t.Errorf("MessageCount = %d after update, want 50", got.MessageCount)
	}
	n, err := db.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	db := openTest(t)
	got, err := db.Get("nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v for missing ID", got)
	}
}

func TestSearchKeywordRanksRelevance(t *testing.T) {
	db := openTest(t)

	seed := []Conversation{
		{ConversationID: "a", ProjectPath: "/p", ProjectName: "p", FilePath: "/p/a.jsonl",
			SearchIndex: "docker compose networking between containers, docker volumes"},
		{ConversationID: "b", ProjectPath: "/p", ProjectName: "p", FilePath: "/p/b.jsonl",
			SearchIndex: "database migrations with docker"},
		{ConversationID: "c", ProjectPath: "/p", ProjectName: "p", FilePath: "/p/c.jsonl",
			SearchIndex: "terminal rendering and ansi colors"},
	}
	for _, c := range seed {
		if err := db.Upsert(c); err != nil {
			t.Fatalf("Upsert %s: %v", c.ConversationID, err)
		}
	}

	hits, err := db.SearchKeyword("docker networking", 10)
	if err != nil {
		t.Fatalf("SearchKeyword: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %+v, want 2", hits)
	}
	if hits[0].ConversationID != "a" {
		t.Errorf("best hit = %s, want a (matches both terms)", hits[0].ConversationID)
	}
	for _, h := range hits {
		if h.Score <= 0 || h.Score > 1 {
			t.Errorf("score %f outside (0, 1]", h.Score)
		}
	}
	if hits[0].Score <= hits[1].Score {
		t.Errorf("scores not descending: %f then %f", hits[0].Score, hits[1].Score)
	}
}

func TestSearchKeywordSurvivesPunctuation(t *testing.T) {
	db := openTest(t)
	if err := db.Upsert(Conversation{
		ConversationID: "a", ProjectPath: "/p", ProjectName: "p", FilePath: "/p/a.jsonl",
		SearchIndex: "parsing jsonl transcripts",
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// FTS operators and quotes in user input must not produce a syntax error
	for _, q := range []string{`jsonl AND "NEAR(`, `"unterminated`, `* NOT -`, `   `} {
		if _, err := db.SearchKeyword(q, 5); err != nil {
			t.Errorf("SearchKeyword(%q): %v", q, err)
		}
	}
}

func TestUpdateKeepsIndexInSync(t *testing.T) {
	db := openTest(t)
	c := Conversation{ConversationID: "a", ProjectPath: "/p", ProjectName: "p",
		FilePath: "/p/a.jsonl", SearchIndex: "kubernetes ingress debugging"}
	if err := db.Upsert(c); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	c.SearchIndex = "redis caching strategy"
	if err := db.Upsert(c); err != nil {
		t.Fatalf("update: %v", err)
	}

	hits, err := db.SearchKeyword("kubernetes", 5)
	if err != nil {
		t.Fatalf("SearchKeyword: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("stale index still matches old text: %+v", hits)
	}
	hits, err = db.SearchKeyword("redis", 5)
	if err != nil {
		t.Fatalf("SearchKeyword: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("updated text not indexed: %+v", hits)
	}
}

func TestProjects(t *testing.T) {
	db := openTest(t)
	for _, c := range []Conversation{
		{ConversationID: "a", ProjectPath: "/p1", ProjectName: "p1", FilePath: "/p1/a.jsonl"},
		{ConversationID: "b", ProjectPath: "/p1", ProjectName: "p1", FilePath: "/p1/b.jsonl"},
		{ConversationID: "c", ProjectPath: "/p2", ProjectName: "p2", FilePath: "/p2/c.jsonl"},
	} {
		if err := db.Upsert(c); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	projects, err := db.Projects()
	if err != nil {
		t.Fatalf("Projects: %v", err)
	}
	if projects["/p1"] != 2 || projects["/p2"] != 1 {
		t.Errorf("projects = %v", projects)
	}
}

func TestFTSQueryQuoting(t *testing.T) {
	cases := map[string]string{
		"docker networking": `"docker" OR "networking"`,
		`say "hello"`:       `"say" OR "hello"`,
		"":                  "",
		`"`:                 "",
		"* - &&":            "",
		"fts5 && tricks":    `"fts5" OR "tricks"`,
	}
	for in, want := range cases {
		if got := ftsQuery(in); got != want {
			t.Errorf("ftsQuery(%q) = %q, want %q", in, got, want)
		}
	}
}
