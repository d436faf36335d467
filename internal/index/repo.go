package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/questcard/internal/apperr"
)

// DocumentRow represents a row in the documents table together with the
// quests it embeds.
type DocumentRow struct {
	Path      string
	Title     string
	Checksum  string
	QuestIDs  []string
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string
	Title   string
	Snippet string
}

// UpsertDocument inserts or replaces a document, its FTS entry, and its embeds
// within a transaction. questIDs keep their document order.
func (db *DB) UpsertDocument(d DocumentRow, body string, questIDs []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO documents (path, title, checksum, body, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, d.Path, d.Title, d.Checksum, body, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	if err := ftsUpsert(tx, d.Path, d.Title, body); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM embeds WHERE source = ?`, d.Path); err != nil {
		return fmt.Errorf("index: clear embeds: %w", err)
	}
	if len(questIDs) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO embeds (source, quest_id, position) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare embed insert: %w", err)
		}
		defer stmt.Close()
		for i, id := range questIDs {
			if _, err := stmt.Exec(d.Path, id, i); err != nil {
				return fmt.Errorf("index: insert embed: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteDocument removes a document and its FTS entry. Embeds go with it
// through the foreign key cascade.
func (db *DB) DeleteDocument(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM documents WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete document: %w", err)
	}

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a document, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// GetDocument returns one indexed document with its embeds.
func (db *DB) GetDocument(path string) (*DocumentRow, error) {
	var d DocumentRow
	err := db.conn.QueryRow(`SELECT path, title, checksum, updated_at FROM documents WHERE path = ?`, path).
		Scan(&d.Path, &d.Title, &d.Checksum, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get document: %w", err)
	}
	ids, err := db.questIDs(path)
	if err != nil {
		return nil, err
	}
	d.QuestIDs = ids
	return &d, nil
}

// ListDocuments returns a page of documents and the total match count.
// A non-empty questID restricts the listing to documents embedding it.
// sort is "title" or "updated" (newest first, the default).
func (db *DB) ListDocuments(limit, offset int, questID, sort string) ([]DocumentRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	order := "d.updated_at DESC, d.path"
	if sort == "title" {
		order = "d.title COLLATE NOCASE, d.path"
	}

	where := ""
	var args []any
	if questID != "" {
		where = "WHERE EXISTS (SELECT 1 FROM embeds e WHERE e.source = d.path AND e.quest_id = ?)"
		args = append(args, questID)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents d `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count documents: %w", err)
	}

	rows, err := db.conn.Query(
		`SELECT d.path, d.title, d.checksum, d.updated_at FROM documents d `+where+
			` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentRow
	for rows.Next() {
		var d DocumentRow
		if err := rows.Scan(&d.Path, &d.Title, &d.Checksum, &d.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range out {
		ids, err := db.questIDs(out[i].Path)
		if err != nil {
			return nil, 0, err
		}
		out[i].QuestIDs = ids
	}
	return out, total, nil
}

func (db *DB) questIDs(path string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT quest_id FROM embeds WHERE source = ? ORDER BY position`, path)
	if err != nil {
		return nil, fmt.Errorf("index: quest ids: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Embedders returns the paths of all documents embedding questID.
func (db *DB) Embedders(questID string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM embeds WHERE quest_id = ? ORDER BY source`, questID)
	if err != nil {
		return nil, fmt.Errorf("index: embedders: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// QuestCounts returns, for every embedded quest, the number of documents embedding it.
func (db *DB) QuestCounts() (map[string]int, error) {
	rows, err := db.conn.Query(`SELECT quest_id, count(*) FROM embeds GROUP BY quest_id`)
	if err != nil {
		return nil, fmt.Errorf("index: quest counts: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

// AllChecksums returns path to checksum for every indexed document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

func scanSearchResults(rows *sql.Rows) ([]SearchResult, error) {
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
