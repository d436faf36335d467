//go:build !sqlite_fts5

package index

import (
	"strings"
	"testing"
)

func TestFallbackSearch_WildcardsAreLiteral(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(row("pct.json", "Rewards", "1"), "earn 100% of the points", nil)
	_ = db.UpsertDocument(row("other.json", "Other", "2"), "earn 100 points", nil)

	results, err := db.Search("100%", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "pct.json" {
		t.Errorf("results = %+v", results)
	}
}

func TestFallbackSearch_TitleHitsFirst(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(row("body.json", "Alpha", "1"), "mentions galaxy in passing", nil)
	_ = db.UpsertDocument(row("title.json", "Galaxy quests", "2"), "nothing else", nil)

	results, _ := db.Search("galaxy", 10)
	if len(results) != 2 || results[0].Path != "title.json" {
		t.Errorf("results = %+v", results)
	}
}

func TestFallbackSearch_SnippetAroundMatch(t *testing.T) {
	db := testDB(t)
	body := strings.Repeat("filler ", 60) + "needle and more"
	_ = db.UpsertDocument(row("long.json", "Long", "1"), body, nil)

	results, _ := db.Search("needle", 10)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !strings.Contains(results[0].Snippet, "needle") {
		t.Errorf("snippet = %q", results[0].Snippet)
	}
}

func TestFallbackSearch_Blank(t *testing.T) {
	db := testDB(t)
	results, err := db.Search("  ", 10)
	if err != nil || len(results) != 0 {
		t.Errorf("blank search = %v, %v", results, err)
	}
}
