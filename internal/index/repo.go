package index

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/starford/monoid/internal/apperr"
	"github.com/starford/monoid/internal/models"
)

// NoteRow represents a row in the notes relation.
type NoteRow struct {
	ID         string
	Title      string
	Type       models.NoteType
	Checksum   string
	Tags       []models.Tag
	Provenance string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Embedding is a stored vector for one note.
type Embedding struct {
	Model  string
	Vector []float32
}

// EmbeddingRow is one row of the embeddings relation.
type EmbeddingRow struct {
	NoteID     string
	Model      string
	Dimensions int
	Vector     []float32
}

// LexicalHit is one full-text search hit. Rank follows the FTS5
// convention: more negative means more relevant.
type LexicalHit struct {
	ID      string
	Title   string
	Snippet string
	Rank    float64
}

// TagHit is one tag search hit. MatchCount is the number of requested
// tags present on the note.
type TagHit struct {
	ID         string
	Title      string
	MatchCount int
}

// UpsertNote inserts or replaces a note with its lexical entry, tag rows,
// links, and (when emb is non-nil) embedding, all in one transaction.
// A nil emb drops any previously stored embedding: the vector relation
// only ever describes the note's current content.
func (db *DB) UpsertNote(n NoteRow, body string, links []string, emb *Embedding) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := upsertNoteTx(tx, n, body, links, emb); err != nil {
		return err
	}
	return tx.Commit()
}

// upsertNoteTx writes all relations for one note inside an existing
// transaction. Shared by UpsertNote and the sync rebuild.
func upsertNoteTx(tx *sql.Tx, n NoteRow, body string, links []string, emb *Embedding) error {
	tagsText := tagNamesJoined(n.Tags)

	_, err := tx.Exec(`
		INSERT INTO notes (id, title, note_type, checksum, body, tags, provenance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			note_type  = excluded.note_type,
			checksum   = excluded.checksum,
			body       = excluded.body,
			tags       = excluded.tags,
			provenance = excluded.provenance,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, n.ID, n.Title, string(n.Type), n.Checksum, body, tagsText, n.Provenance, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	if err := ftsUpsert(tx, n.ID, n.Title, body, tagsText); err != nil {
		return err
	}

	// Replace tag rows.
	if _, err := tx.Exec(`DELETE FROM tags WHERE note_id = ?`, n.ID); err != nil {
		return fmt.Errorf("index: clear tags: %w", err)
	}
	if len(n.Tags) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO tags (note_id, tag, source, confidence) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare tag insert: %w", err)
		}
		defer stmt.Close()
		for _, t := range n.Tags {
			if _, err := stmt.Exec(n.ID, t.Name, t.Source, t.Confidence); err != nil {
				return fmt.Errorf("index: insert tag: %w", err)
			}
		}
	}

	// Replace links.
	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, n.ID); err != nil {
		return fmt.Errorf("index: clear links: %w", err)
	}
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target, type) VALUES (?, ?, 'explicit')`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range links {
			if _, err := stmt.Exec(n.ID, target); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	if emb != nil {
		_, err := tx.Exec(`
			INSERT INTO embeddings (note_id, model, dimensions, vector)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(note_id) DO UPDATE SET
				model      = excluded.model,
				dimensions = excluded.dimensions,
				vector     = excluded.vector
		`, n.ID, emb.Model, len(emb.Vector), encodeVector(emb.Vector))
		if err != nil {
			return fmt.Errorf("index: upsert embedding: %w", err)
		}
	} else {
		// No vector for the current content. A vector computed from an
		// older revision must not keep scoring this note.
		if _, err := tx.Exec(`DELETE FROM embeddings WHERE note_id = ?`, n.ID); err != nil {
			return fmt.Errorf("index: clear embedding: %w", err)
		}
	}

	return nil
}

// DeleteNote removes a note from every relation.
func (db *DB) DeleteNote(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	_, _ = tx.Exec(`DELETE FROM tags WHERE note_id = ?`, id)
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, id)
	_, _ = tx.Exec(`DELETE FROM embeddings WHERE note_id = ?`, id)
	_, _ = tx.Exec(`DELETE FROM notes WHERE id = ?`, id)

	return tx.Commit()
}

// GetNote returns one indexed note with its tag rows, or ErrNotFound.
func (db *DB) GetNote(id string) (*NoteRow, error) {
	var n NoteRow
	var typ string
	var created, updated sql.NullTime
	err := db.conn.QueryRow(`
		SELECT id, title, note_type, checksum, provenance, created_at, updated_at
		FROM notes WHERE id = ?
	`, id).Scan(&n.ID, &n.Title, &typ, &n.Checksum, &n.Provenance, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	n.Type = models.NoteType(typ)
	n.CreatedAt = created.Time
	n.UpdatedAt = updated.Time

	tags, err := db.tagsFor([]string{id})
	if err != nil {
		return nil, err
	}
	n.Tags = tags[id]
	return &n, nil
}

// GetChecksum returns the stored checksum for a note, or empty string if
// the note is not indexed.
func (db *DB) GetChecksum(id string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE id = ?`, id).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns id -> checksum for every indexed note.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

// ListNotes returns a page of indexed notes plus the total count.
// tag filters to notes carrying that tag; sort is one of "id" (default,
// newest first), "updated_at", or "title".
func (db *DB) ListNotes(limit, offset int, tag, sort string) ([]NoteRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where := ""
	args := []any{}
	if tag != "" {
		where = `WHERE EXISTS (SELECT 1 FROM tags t WHERE t.note_id = notes.id AND t.tag = ?)`
		args = append(args, tag)
	}

	var orderBy string
	switch sort {
	case "updated_at":
		orderBy = "updated_at DESC"
	case "title":
		orderBy = "title COLLATE NOCASE ASC"
	default:
		orderBy = "id DESC"
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM notes `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notes: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, title, note_type, checksum, provenance, created_at, updated_at
		FROM notes %s ORDER BY %s LIMIT ? OFFSET ?
	`, where, orderBy)
	rows, err := db.conn.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	var ids []string
	for rows.Next() {
		var n NoteRow
		var typ string
		var created, updated sql.NullTime
		if err := rows.Scan(&n.ID, &n.Title, &typ, &n.Checksum, &n.Provenance, &created, &updated); err != nil {
			return nil, 0, err
		}
		n.Type = models.NoteType(typ)
		n.CreatedAt = created.Time
		n.UpdatedAt = updated.Time
		out = append(out, n)
		ids = append(ids, n.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	tags, err := db.tagsFor(ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range out {
		out[i].Tags = tags[out[i].ID]
	}
	return out, total, nil
}

// SearchTags returns notes matching the given tag names. With matchAll
// false (ANY) a single shared tag qualifies; with matchAll true the note
// must carry every requested tag. Results are ordered by match count
// descending, then id descending for determinism. An empty name list
// returns no results.
func (db *DB) SearchTags(names []string, matchAll bool) ([]TagHit, error) {
	if len(names) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")
	args := make([]any, 0, len(names)+1)
	for _, n := range names {
		args = append(args, n)
	}

	having := ""
	if matchAll {
		having = "HAVING COUNT(DISTINCT t.tag) = ?"
		args = append(args, len(names))
	}

	query := fmt.Sprintf(`
		SELECT t.note_id, n.title, COUNT(DISTINCT t.tag) AS matches
		FROM tags t
		JOIN notes n ON n.id = t.note_id
		WHERE t.tag IN (%s)
		GROUP BY t.note_id
		%s
		ORDER BY matches DESC, t.note_id DESC
	`, placeholders, having)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search tags: %w", err)
	}
	defer rows.Close()

	var out []TagHit
	for rows.Next() {
		var h TagHit
		if err := rows.Scan(&h.ID, &h.Title, &h.MatchCount); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// AllNotes returns every indexed note with its tags, ordered by id.
func (db *DB) AllNotes() ([]NoteRow, error) {
	rows, err := db.conn.Query(`
		SELECT id, title, note_type, checksum, provenance, created_at, updated_at
		FROM notes ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("index: all notes: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	var ids []string
	for rows.Next() {
		var n NoteRow
		var typ string
		var created, updated sql.NullTime
		if err := rows.Scan(&n.ID, &n.Title, &typ, &n.Checksum, &n.Provenance, &created, &updated); err != nil {
			return nil, err
		}
		n.Type = models.NoteType(typ)
		n.CreatedAt = created.Time
		n.UpdatedAt = updated.Time
		out = append(out, n)
		ids = append(ids, n.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tags, err := db.tagsFor(ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Tags = tags[out[i].ID]
	}
	return out, nil
}

// AllEmbeddings returns every stored embedding vector.
func (db *DB) AllEmbeddings() ([]EmbeddingRow, error) {
	rows, err := db.conn.Query(`SELECT note_id, model, dimensions, vector FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("index: all embeddings: %w", err)
	}
	defer rows.Close()

	var out []EmbeddingRow
	for rows.Next() {
		var r EmbeddingRow
		var blob []byte
		if err := rows.Scan(&r.NoteID, &r.Model, &r.Dimensions, &blob); err != nil {
			return nil, err
		}
		r.Vector = decodeVector(blob)
		out = append(out, r)
	}
	return out, rows.Err()
}

// AllLinks returns every stored link edge.
func (db *DB) AllLinks() ([]models.Link, error) {
	rows, err := db.conn.Query(`SELECT source, target, type FROM links`)
	if err != nil {
		return nil, fmt.Errorf("index: all links: %w", err)
	}
	defer rows.Close()

	var out []models.Link
	for rows.Next() {
		var l models.Link
		if err := rows.Scan(&l.Source, &l.Target, &l.Type); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Backlinks returns the ids of all notes linking to target.
func (db *DB) Backlinks(target string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT source FROM links WHERE target = ? ORDER BY source DESC`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
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

// tagsFor loads tag rows for the given note ids, keyed by note id.
func (db *DB) tagsFor(ids []string) (map[string][]models.Tag, error) {
	out := make(map[string][]models.Tag, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := db.conn.Query(
		`SELECT note_id, tag, source, confidence FROM tags WHERE note_id IN (`+placeholders+`) ORDER BY rowid`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("index: tags for notes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var t models.Tag
		if err := rows.Scan(&id, &t.Name, &t.Source, &t.Confidence); err != nil {
			return nil, err
		}
		out[id] = append(out[id], t)
	}
	return out, rows.Err()
}

func tagNamesJoined(tags []models.Tag) string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return strings.Join(names, " ")
}
