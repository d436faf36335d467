package index

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/questcard/internal/apperr"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "questcard-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func row(path, title, cs string) DocumentRow {
	return DocumentRow{Path: path, Title: title, Checksum: cs, UpdatedAt: time.Now()}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents`).Scan(&count); err != nil {
		t.Fatalf("documents table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM embeds`).Scan(&count); err != nil {
		t.Fatalf("embeds table missing: %v", err)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	f, err := os.CreateTemp("", "questcard-migrate-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	for i := 0; i < 2; i++ {
		db, err := Open(f.Name())
		if err != nil {
			t.Fatalf("Open #%d: %v", i+1, err)
		}
		v, err := db.SchemaVersion()
		db.Close()
		if err != nil {
			t.Fatalf("SchemaVersion: %v", err)
		}
		if v != len(migrations) {
			t.Errorf("version = %d, want %d", v, len(migrations))
		}
	}
}

func TestDeleteCascadesEmbeds(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(row("c.json", "C", "1"), "", []string{"q1", "q2"})
	if err := db.DeleteDocument("c.json"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM embeds WHERE source = 'c.json'`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("%d embeds left after delete", n)
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertDocument(row("hello.json", "Hello", "abc123"), "hello world", []string{"q1"}); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	cs, err := db.GetChecksum("hello.json")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestGetDocument(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(row("d.json", "Doc", "1"), "body", []string{"q2", "q1"})

	d, err := db.GetDocument("d.json")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if d.Title != "Doc" || len(d.QuestIDs) != 2 || d.QuestIDs[0] != "q2" || d.QuestIDs[1] != "q1" {
		t.Errorf("document = %+v", d)
	}

	if _, err := db.GetDocument("missing.json"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing document err = %v, want ErrNotFound", err)
	}
}

func TestEmbedders(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(row("a.json", "A", "1"), "body", []string{"q1"})
	_ = db.UpsertDocument(row("c.json", "C", "2"), "body", []string{"q1", "q2"})

	got, err := db.Embedders("q1")
	if err != nil {
		t.Fatalf("Embedders: %v", err)
	}
	if len(got) != 2 || got[0] != "a.json" || got[1] != "c.json" {
		t.Fatalf("embedders = %v", got)
	}

	counts, err := db.QuestCounts()
	if err != nil {
		t.Fatalf("QuestCounts: %v", err)
	}
	if counts["q1"] != 2 || counts["q2"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestDeleteDocument(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(row("del.json", "", "x"), "body", []string{"q1"})

	if err := db.DeleteDocument("del.json"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if cs, _ := db.GetChecksum("del.json"); cs != "" {
		t.Errorf("deleted document still has checksum %q", cs)
	}
	if got, _ := db.Embedders("q1"); len(got) != 0 {
		t.Errorf("expected no embedders after delete, got %v", got)
	}
}

func TestUpsertReplacesEmbeds(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(row("up.json", "Old", "1"), "old body", []string{"x"})
	_ = db.UpsertDocument(row("up.json", "New", "2"), "new body", []string{"y"})

	if cs, _ := db.GetChecksum("up.json"); cs != "2" {
		t.Errorf("checksum = %q, want %q", cs, "2")
	}
	if got, _ := db.Embedders("x"); len(got) != 0 {
		t.Error("old embed should be removed on upsert")
	}
	if got, _ := db.Embedders("y"); len(got) != 1 {
		t.Error("new embed should exist")
	}
}

func TestListDocuments(t *testing.T) {
	db := testDB(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = db.UpsertDocument(DocumentRow{Path: "b.json", Title: "beta", Checksum: "1", UpdatedAt: base}, "", []string{"q"})
	_ = db.UpsertDocument(DocumentRow{Path: "a.json", Title: "Alpha", Checksum: "2", UpdatedAt: base.Add(time.Hour)}, "", nil)
	_ = db.UpsertDocument(DocumentRow{Path: "c.json", Title: "gamma", Checksum: "3", UpdatedAt: base.Add(2 * time.Hour)}, "", []string{"q"})

	items, total, err := db.ListDocuments(10, 0, "", "")
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if total != 3 || len(items) != 3 || items[0].Path != "c.json" {
		t.Errorf("default order: total=%d items=%+v", total, items)
	}

	items, _, _ = db.ListDocuments(10, 0, "", "title")
	if items[0].Title != "Alpha" || items[1].Title != "beta" {
		t.Errorf("title order = %+v", items)
	}

	items, total, _ = db.ListDocuments(1, 0, "q", "title")
	if total != 2 || len(items) != 1 || items[0].Path != "b.json" {
		t.Errorf("filtered: total=%d items=%+v", total, items)
	}
	if len(items[0].QuestIDs) != 1 || items[0].QuestIDs[0] != "q" {
		t.Errorf("quest ids = %v", items[0].QuestIDs)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(row("s.json", "Search Me", "1"), "uniqueword appears here", nil)

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "s.json" {
		t.Errorf("search results = %+v, want 1 hit for s.json", results)
	}
}
