//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			id UNINDEXED,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, id, title, body, tags string) error {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE id = ?`, id)
	_, err := tx.Exec(`INSERT INTO notes_fts (id, title, body, tags) VALUES (?, ?, ?, ?)`,
		id, title, body, tags)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id string) {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE id = ?`, id)
}

func ftsClear(tx *sql.Tx) error {
	if _, err := tx.Exec(`DELETE FROM notes_fts`); err != nil {
		return fmt.Errorf("index: clear fts: %w", err)
	}
	return nil
}

// SearchLexical tokenizes query into an OR-of-tokens FTS5 match and
// returns hits best first. FTS5 ranks are negative; more negative is a
// better match. A query with no word tokens returns no results.
func (db *DB) SearchLexical(query string, limit int) ([]LexicalHit, error) {
	if limit <= 0 {
		limit = 20
	}
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}
	rows, err := db.conn.Query(`
		SELECT id,
		       title,
		       snippet(notes_fts, 2, '<b>', '</b>', '...', 64),
		       rank
		FROM notes_fts
		WHERE notes_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, matchExpr(tokens), limit)
	if err != nil {
		return nil, fmt.Errorf("index: lexical search: %w", err)
	}
	defer rows.Close()

	var out []LexicalHit
	for rows.Next() {
		var h LexicalHit
		if err := rows.Scan(&h.ID, &h.Title, &h.Snippet, &h.Rank); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
