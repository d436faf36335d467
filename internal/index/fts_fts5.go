//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			path UNINDEXED,
			title,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, path, title, body string) error {
	if _, err := tx.Exec(`DELETE FROM documents_fts WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: clear fts: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO documents_fts (path, title, body) VALUES (?, ?, ?)`,
		path, title, body); err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM documents_fts WHERE path = ?`, path)
}

// matchExpr turns free text into an FTS5 expression: every word becomes a
// quoted prefix term, so punctuation in quest URLs or ids is never parsed
// as query syntax.
func matchExpr(query string) string {
	words := strings.Fields(query)
	terms := make([]string, 0, len(words))
	for _, w := range words {
		terms = append(terms, `"`+strings.ReplaceAll(w, `"`, `""`)+`"*`)
	}
	return strings.Join(terms, " ")
}

// Search runs an FTS5 query over titles and text, best matches first.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	expr := matchExpr(query)
	if expr == "" {
		return nil, nil
	}
	rows, err := db.conn.Query(`
		SELECT path,
		       title,
		       snippet(documents_fts, 2, '<mark>', '</mark>', '...', 32)
		FROM documents_fts
		WHERE documents_fts MATCH ?
		ORDER BY bm25(documents_fts, 4.0, 1.0)
		LIMIT ?
	`, expr, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanSearchResults(rows)
}
