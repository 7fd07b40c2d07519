//go:build sqlite_fts5

package index

import (
	"strings"
	"testing"

	"github.com/starford/monoid/internal/models"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes_fts`).Scan(&count); err != nil {
		t.Fatalf("notes_fts table missing: %v", err)
	}
}

func TestFTS5_SnippetMarkers(t *testing.T) {
	db := testDB(t)
	n := row("20240101000001", "Search Note", models.UserTag("search"))
	if err := db.UpsertNote(n, "Monoid provides powerful full-text search capabilities.", nil, nil); err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}

	hits, err := db.SearchLexical("powerful", 10)
	if err != nil {
		t.Fatalf("SearchLexical: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].ID != "20240101000001" {
		t.Errorf("id = %q", hits[0].ID)
	}
	if !strings.Contains(hits[0].Snippet, "<b>") {
		t.Errorf("snippet missing highlight markers: %q", hits[0].Snippet)
	}
}

func TestFTS5_RankOrdering(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(row("1", "One mention"), "database appears once here", nil, nil)
	_ = db.UpsertNote(row("2", "Many mentions"), "database database database design for database work", nil, nil)

	hits, err := db.SearchLexical("database", 10)
	if err != nil {
		t.Fatalf("SearchLexical: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(hits))
	}
	if hits[0].ID != "2" {
		t.Errorf("best match should be the repeated-term note, got %q", hits[0].ID)
	}
	if hits[0].Rank >= hits[1].Rank {
		t.Errorf("ranks not ascending: %f vs %f", hits[0].Rank, hits[1].Rank)
	}
}

func TestFTS5_TagsSearchable(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(row("1", "Tagged", models.UserTag("kubernetes")), "body without the keyword", nil, nil)

	hits, err := db.SearchLexical("kubernetes", 10)
	if err != nil {
		t.Fatalf("SearchLexical: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("tag content not searchable: %v", hits)
	}
}

func TestFTS5_QuotedTokensDoNotBreakSyntax(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(row("1", "Ops"), "searching AND OR NEAR operators", nil, nil)

	// Bare FTS keywords in user input must be treated as plain tokens.
	hits, err := db.SearchLexical(`AND OR "quoted"`, 10)
	if err != nil {
		t.Fatalf("SearchLexical: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("hits = %v", hits)
	}
}
